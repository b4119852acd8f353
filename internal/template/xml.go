package template

import (
	"bufio"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/hashicorp/go-version"

	omrerrors "github.com/ironsheep/omr-engine/internal/errors"
	"github.com/ironsheep/omr-engine/internal/geometry"
)

const (
	elemSourcePath = "sourcePath"
	elemScript     = "script"
	elemBarcode    = "barcodeQuestion"
	elemBubble     = "questionBubble"
	elemTrueFalse  = "trueFalseQuestion"
)

var maxVersion = version.Must(version.NewVersion(MaxVersion))

// Load reads a template document from disk. Templates newer than MaxVersion are
// rejected with a TEMPLATE_VERSION error and no template is returned.
func Load(fileName string) (*Template, error) {
	f, err := os.Open(fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to open template: %w", err)
	}
	defer f.Close()

	t, err := Decode(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("failed to load template %s: %w", fileName, err)
	}
	t.FileName = fileName
	return t, nil
}

// Decode parses a template document.
func Decode(r io.Reader) (*Template, error) {
	t := New()
	if err := xml.NewDecoder(r).Decode(t); err != nil {
		return nil, fmt.Errorf("failed to decode template: %w", err)
	}
	if err := checkVersion(t.Version); err != nil {
		return nil, err
	}
	return t, nil
}

func checkVersion(v string) error {
	parsed, err := version.NewVersion(v)
	if err != nil {
		return fmt.Errorf("invalid template version %q: %w", v, err)
	}
	if parsed.GreaterThan(maxVersion) {
		return omrerrors.NewTemplateVersionError(v, MaxVersion)
	}
	return nil
}

// Save writes the template back to FileName.
func (t *Template) Save() error {
	if t.FileName == "" {
		return fmt.Errorf("template %s has no file name", t.ID)
	}
	return t.SaveAs(t.FileName)
}

// SaveAs writes the template to fileName and records it as the template's FileName.
func (t *Template) SaveAs(fileName string) error {
	f, err := os.Create(fileName)
	if err != nil {
		return fmt.Errorf("failed to create template file: %w", err)
	}
	if err := t.Encode(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close template file: %w", err)
	}
	t.FileName = fileName
	return nil
}

// Encode writes the template document to w.
func (t *Template) Encode(w io.Writer) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return fmt.Errorf("failed to write template: %w", err)
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(t); err != nil {
		return fmt.Errorf("failed to encode template: %w", err)
	}
	return enc.Flush()
}

func local(name string) xml.StartElement {
	return xml.StartElement{Name: xml.Name{Local: name}}
}

func attr(name, value string) xml.Attr {
	return xml.Attr{Name: xml.Name{Local: name}, Value: value}
}

// MarshalXML implements xml.Marshaler. Fields are written in declaration order
// as barcodeQuestion, questionBubble or trueFalseQuestion elements.
func (t *Template) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	start = xml.StartElement{
		Name: xml.Name{Space: Namespace, Local: "template"},
		Attr: []xml.Attr{
			attr("id", t.ID),
			attr("version", t.Version),
			attr("scanThreshold", strconv.Itoa(t.ScanThreshold)),
			attr("topLeft", t.TopLeft.String()),
			attr("topRight", t.TopRight.String()),
			attr("bottomLeft", t.BottomLeft.String()),
			attr("bottomRight", t.BottomRight.String()),
		},
	}
	if err := e.EncodeToken(start); err != nil {
		return err
	}

	if t.SourcePath != "" {
		if err := e.EncodeElement(t.SourcePath, local(elemSourcePath)); err != nil {
			return err
		}
	}
	if t.Script != nil {
		if err := e.EncodeElement(t.Script, local(elemScript)); err != nil {
			return err
		}
	}

	for _, f := range t.Fields {
		var err error
		switch f := f.(type) {
		case *BarcodeField:
			err = e.EncodeElement(f, local(elemBarcode))
		case *BubbleField:
			err = e.EncodeElement(f, local(elemBubble))
		case *TrueFalseField:
			err = e.EncodeElement(f, local(elemTrueFalse))
		default:
			err = fmt.Errorf("unsupported field type %T", f)
		}
		if err != nil {
			return err
		}
	}

	return e.EncodeToken(start.End())
}

// UnmarshalXML implements xml.Unmarshaler. Unknown child elements are skipped.
func (t *Template) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	if start.Name.Local != "template" {
		return fmt.Errorf("unexpected root element <%s>, want <template>", start.Name.Local)
	}

	for _, a := range start.Attr {
		var err error
		switch a.Name.Local {
		case "id":
			t.ID = a.Value
		case "version":
			t.Version = a.Value
		case "scanThreshold":
			t.ScanThreshold, err = strconv.Atoi(a.Value)
		case "topLeft":
			t.TopLeft, err = geometry.ParsePoint(a.Value)
		case "topRight":
			t.TopRight, err = geometry.ParsePoint(a.Value)
		case "bottomLeft":
			t.BottomLeft, err = geometry.ParsePoint(a.Value)
		case "bottomRight":
			t.BottomRight, err = geometry.ParsePoint(a.Value)
		}
		if err != nil {
			return fmt.Errorf("attribute %s: %w", a.Name.Local, err)
		}
	}

	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}

		switch el := tok.(type) {
		case xml.StartElement:
			if err := t.decodeChild(d, el); err != nil {
				return err
			}
		case xml.EndElement:
			return nil
		}
	}
}

func (t *Template) decodeChild(d *xml.Decoder, el xml.StartElement) error {
	switch el.Name.Local {
	case elemSourcePath:
		return d.DecodeElement(&t.SourcePath, &el)
	case elemScript:
		t.Script = &Script{}
		return d.DecodeElement(t.Script, &el)
	case elemBarcode:
		f := &BarcodeField{}
		if err := d.DecodeElement(f, &el); err != nil {
			return fmt.Errorf("barcode field: %w", err)
		}
		t.Fields = append(t.Fields, f)
	case elemBubble:
		f := &BubbleField{Behavior: BehaviorOne}
		if err := d.DecodeElement(f, &el); err != nil {
			return fmt.Errorf("bubble field: %w", err)
		}
		t.Fields = append(t.Fields, f)
	case elemTrueFalse:
		f := &TrueFalseField{Orientation: Horizontal}
		if err := d.DecodeElement(f, &el); err != nil {
			return fmt.Errorf("true/false field: %w", err)
		}
		t.Fields = append(t.Fields, f)
	default:
		return d.Skip()
	}
	return nil
}
