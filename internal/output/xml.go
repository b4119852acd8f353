package output

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/ironsheep/omr-engine/internal/geometry"
)

// Namespace is the XML namespace of page output documents.
const Namespace = "urn:scan-omr:analysis"

const (
	elemPage          = "page"
	elemPages         = "pages"
	elemRefImage      = "refImage"
	elemParameter     = "parameter"
	elemErrorText     = "errorText"
	elemAnalyzedImage = "analyzedImage"
)

func attr(name, value string) xml.Attr {
	return xml.Attr{Name: xml.Name{Local: name}, Value: value}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339Nano)
}

func boundAttrs(b Bound) []xml.Attr {
	return []xml.Attr{
		attr("id", b.ID),
		attr("topLeft", b.TopLeft.String()),
		attr("topRight", geometry.Pt(b.BottomRight.X, b.TopLeft.Y).String()),
		attr("bottomLeft", geometry.Pt(b.TopLeft.X, b.BottomRight.Y).String()),
		attr("bottomRight", b.BottomRight.String()),
	}
}

// readAttr applies a bound attribute and reports whether it was one.
// topRight and bottomLeft are implied by the other two corners.
func (b *Bound) readAttr(a xml.Attr) (bool, error) {
	var err error
	switch a.Name.Local {
	case "id":
		b.ID = a.Value
	case "topLeft":
		b.TopLeft, err = geometry.ParsePoint(a.Value)
	case "bottomRight":
		b.BottomRight, err = geometry.ParsePoint(a.Value)
	case "topRight", "bottomLeft":
	default:
		return false, nil
	}
	if err != nil {
		return true, fmt.Errorf("attribute %s: %w", a.Name.Local, err)
	}
	return true, nil
}

// MarshalXML implements xml.Marshaler.
func (p *PageOutput) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	attrs := append(boundAttrs(p.Bound),
		attr("start", formatTime(p.StartTime)),
		attr("stopTime", formatTime(p.StopTime)),
		attr("templateId", p.TemplateID),
		attr("outcome", string(p.Outcome)),
	)
	start = xml.StartElement{Name: xml.Name{Space: Namespace, Local: elemPage}, Attr: attrs}
	if err := e.EncodeToken(start); err != nil {
		return err
	}

	text := func(name, value string) error {
		return e.EncodeElement(value, xml.StartElement{Name: xml.Name{Local: name}})
	}
	for _, r := range p.RefImages {
		if err := text(elemRefImage, r); err != nil {
			return err
		}
	}
	for _, v := range p.Parameters {
		if err := text(elemParameter, v); err != nil {
			return err
		}
	}
	if p.ErrorMessage != "" {
		if err := text(elemErrorText, p.ErrorMessage); err != nil {
			return err
		}
	}
	if p.AnalyzedImage != "" {
		if err := text(elemAnalyzedImage, p.AnalyzedImage); err != nil {
			return err
		}
	}

	if err := encodeDetails(e, p.Details); err != nil {
		return err
	}
	return e.EncodeToken(start.End())
}

func encodeDetails(e *xml.Encoder, ds Details) error {
	for _, d := range ds {
		if err := encodeData(e, d); err != nil {
			return err
		}
	}
	return nil
}

func encodeData(e *xml.Encoder, d Data) error {
	start := xml.StartElement{Name: xml.Name{Local: string(d.Kind())}, Attr: boundAttrs(d.Box())}

	var children Details
	switch d := d.(type) {
	case *BubbleData:
		start.Attr = append(start.Attr,
			attr("key", d.Key),
			attr("value", d.Value),
			attr("area", strconv.Itoa(d.BlobArea)))
	case *BarcodeData:
		start.Attr = append(start.Attr,
			attr("format", d.Format),
			attr("data", d.Text))
	case *RowData:
		children = d.Details
	case *AggregateData:
		start.Attr = append(start.Attr,
			attr("function", string(d.Function)),
			attr("value", strconv.Itoa(d.Value())))
		if d.RowID != "" {
			start.Attr = append(start.Attr, attr("rowId", d.RowID))
		}
		children = d.Details
	default:
		return fmt.Errorf("unsupported result type %T", d)
	}

	if err := e.EncodeToken(start); err != nil {
		return err
	}
	if err := encodeDetails(e, children); err != nil {
		return err
	}
	return e.EncodeToken(start.End())
}

// UnmarshalXML implements xml.Unmarshaler. Unknown elements are skipped.
func (p *PageOutput) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	if start.Name.Local != elemPage {
		return fmt.Errorf("unexpected element <%s>, want <%s>", start.Name.Local, elemPage)
	}

	for _, a := range start.Attr {
		if ok, err := p.readAttr(a); ok {
			if err != nil {
				return err
			}
			continue
		}
		var err error
		switch a.Name.Local {
		case "start":
			p.StartTime, err = parseTime(a.Value)
		case "stopTime":
			p.StopTime, err = parseTime(a.Value)
		case "templateId":
			p.TemplateID = a.Value
		case "outcome":
			p.Outcome = Outcome(a.Value)
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
			var s string
			switch el.Name.Local {
			case elemRefImage, elemParameter, elemErrorText, elemAnalyzedImage:
				if err := d.DecodeElement(&s, &el); err != nil {
					return err
				}
			}
			switch el.Name.Local {
			case elemRefImage:
				p.RefImages = append(p.RefImages, s)
			case elemParameter:
				p.Parameters = append(p.Parameters, s)
			case elemErrorText:
				p.ErrorMessage = s
			case elemAnalyzedImage:
				p.AnalyzedImage = s
			default:
				data, err := decodeData(d, el)
				if err != nil {
					return err
				}
				if data != nil {
					p.Add(data)
				}
			}
		case xml.EndElement:
			return nil
		}
	}
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

func decodeData(d *xml.Decoder, el xml.StartElement) (Data, error) {
	switch Kind(el.Name.Local) {
	case KindBubble:
		b := &BubbleData{}
		for _, a := range el.Attr {
			if ok, err := b.readAttr(a); ok {
				if err != nil {
					return nil, err
				}
				continue
			}
			switch a.Name.Local {
			case "key":
				b.Key = a.Value
			case "value":
				b.Value = a.Value
			case "area":
				n, err := strconv.Atoi(a.Value)
				if err != nil {
					return nil, fmt.Errorf("attribute area: %w", err)
				}
				b.BlobArea = n
			}
		}
		return b, d.Skip()

	case KindBarcode:
		b := &BarcodeData{}
		for _, a := range el.Attr {
			if ok, err := b.readAttr(a); ok {
				if err != nil {
					return nil, err
				}
				continue
			}
			switch a.Name.Local {
			case "format":
				b.Format = a.Value
			case "data":
				b.Text = a.Value
			}
		}
		return b, d.Skip()

	case KindRow:
		r := &RowData{}
		for _, a := range el.Attr {
			if _, err := r.readAttr(a); err != nil {
				return nil, err
			}
		}
		return r, decodeDetails(d, &r.Collection)

	case KindAggregate:
		agg := &AggregateData{Function: Count}
		for _, a := range el.Attr {
			if ok, err := agg.readAttr(a); ok {
				if err != nil {
					return nil, err
				}
				continue
			}
			switch a.Name.Local {
			case "function":
				agg.Function = AggregationFunction(a.Value)
			case "rowId":
				agg.RowID = a.Value
			}
		}
		return agg, decodeDetails(d, &agg.Collection)

	default:
		return nil, d.Skip()
	}
}

func decodeDetails(d *xml.Decoder, c *Collection) error {
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}

		switch el := tok.(type) {
		case xml.StartElement:
			data, err := decodeData(d, el)
			if err != nil {
				return err
			}
			if data != nil {
				c.Add(data)
			}
		case xml.EndElement:
			return nil
		}
	}
}

// EncodeXML writes the page as an indented XML document.
func (p *PageOutput) EncodeXML(w io.Writer) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(p); err != nil {
		return fmt.Errorf("failed to encode page %s: %w", p.ID, err)
	}
	return enc.Flush()
}

// DecodeXML reads a page document.
func DecodeXML(r io.Reader) (*PageOutput, error) {
	p := &PageOutput{}
	if err := xml.NewDecoder(r).Decode(p); err != nil {
		return nil, fmt.Errorf("failed to decode page: %w", err)
	}
	return p, nil
}
