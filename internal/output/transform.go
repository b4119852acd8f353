package output

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"

	"github.com/ironsheep/omr-engine/internal/template"
)

// PageCollection is a batch of page outputs, typically one scan session.
type PageCollection struct {
	Pages []*PageOutput `json:"pages"`
}

// MarshalXML implements xml.Marshaler.
func (pc *PageCollection) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	start = xml.StartElement{Name: xml.Name{Space: Namespace, Local: elemPages}}
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	for _, p := range pc.Pages {
		if err := e.EncodeElement(p, xml.StartElement{Name: xml.Name{Local: elemPage}}); err != nil {
			return err
		}
	}
	return e.EncodeToken(start.End())
}

// UnmarshalXML implements xml.Unmarshaler.
func (pc *PageCollection) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}

		switch el := tok.(type) {
		case xml.StartElement:
			if el.Name.Local != elemPage {
				if err := d.Skip(); err != nil {
					return err
				}
				continue
			}
			p := &PageOutput{}
			if err := d.DecodeElement(p, &el); err != nil {
				return err
			}
			pc.Pages = append(pc.Pages, p)
		case xml.EndElement:
			return nil
		}
	}
}

// Transform renders a page collection into an export format.
type Transform interface {
	// Name identifies the transform, e.g. "xml".
	Name() string
	// Extension is the file extension of the rendered document, with the dot.
	Extension() string
	Transform(t *template.Template, pages *PageCollection) ([]byte, error)
}

// XMLTransform renders the collection as an analysis XML document.
type XMLTransform struct{}

func (XMLTransform) Name() string      { return "xml" }
func (XMLTransform) Extension() string { return ".xml" }

func (XMLTransform) Transform(_ *template.Template, pages *PageCollection) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(pages); err != nil {
		return nil, fmt.Errorf("xml transform: %w", err)
	}
	if err := enc.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// JSONTransform renders the collection as JSON, with the template summary
// when a template is given.
type JSONTransform struct{}

func (JSONTransform) Name() string      { return "json" }
func (JSONTransform) Extension() string { return ".json" }

func (JSONTransform) Transform(t *template.Template, pages *PageCollection) ([]byte, error) {
	doc := struct {
		Template *template.Summary `json:"template,omitempty"`
		*PageCollection
	}{PageCollection: pages}
	if t != nil {
		s := t.Summarize()
		doc.Template = &s
	}
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("json transform: %w", err)
	}
	return b, nil
}

// Transforms returns the built-in transforms keyed by name.
func Transforms() map[string]Transform {
	return map[string]Transform{
		"xml":  XMLTransform{},
		"json": JSONTransform{},
	}
}
