// Package template describes the expected layout of a scannable form: the four
// registration-mark anchors, the binarization threshold and the ordered list of
// question fields whose regions are cross-referenced against a scanned page.
//
// Templates are authored by a designer tool, persisted as XML documents in the
// urn:scan-omr:template namespace and treated as immutable during a scan run.
package template

import (
	"fmt"

	"github.com/ironsheep/omr-engine/internal/geometry"
)

const (
	// Namespace is the XML namespace of template documents.
	Namespace = "urn:scan-omr:template"

	// MaxVersion is the newest template format this engine understands.
	MaxVersion = "0.8.0.0"

	// DefaultScanThreshold is the binarization cutoff used when a template omits one.
	DefaultScanThreshold = 120
)

// Template is the geometric description of one form.
//
// The embedded Quad holds the registration-mark centres as measured on the
// reference scan. BottomRight also defines the size of the page canvas that
// scanned images are resampled onto.
type Template struct {
	ID      string `json:"id"`
	Version string `json:"version"`
	geometry.Quad
	ScanThreshold int     `json:"scan_threshold"`
	SourcePath    string  `json:"source_path,omitempty"`
	Script        *Script `json:"script,omitempty"`
	Fields        []Field `json:"-"`

	// FileName is the path the template was loaded from. It is not persisted.
	FileName string `json:"-"`
}

// Script references post-processing logic attached to a template. The engine
// persists the reference but never executes it.
type Script struct {
	Language string `xml:"language,attr,omitempty" json:"language,omitempty"`
	Source   string `xml:",chardata" json:"source,omitempty"`
}

// New returns an empty template with the default id, version and threshold.
func New() *Template {
	return &Template{
		ID:            "MyForm",
		Version:       MaxVersion,
		ScanThreshold: DefaultScanThreshold,
	}
}

// FlatFields returns every field with containers replaced by their children,
// preserving declaration order.
func (t *Template) FlatFields() []Field {
	flat := make([]Field, 0, len(t.Fields))
	for _, f := range t.Fields {
		if c, ok := f.(*TrueFalseField); ok {
			for _, child := range c.Children {
				flat = append(flat, child)
			}
			continue
		}
		flat = append(flat, f)
	}
	return flat
}

// BubbleFields returns the flattened bubble fields.
func (t *Template) BubbleFields() []*BubbleField {
	var out []*BubbleField
	for _, f := range t.FlatFields() {
		if b, ok := f.(*BubbleField); ok {
			out = append(out, b)
		}
	}
	return out
}

// BarcodeFields returns the barcode fields.
func (t *Template) BarcodeFields() []*BarcodeField {
	var out []*BarcodeField
	for _, f := range t.FlatFields() {
		if b, ok := f.(*BarcodeField); ok {
			out = append(out, b)
		}
	}
	return out
}

// Field looks up a flattened field by id.
func (t *Template) Field(id string) (Field, bool) {
	for _, f := range t.FlatFields() {
		if f.FieldID() == id {
			return f, true
		}
	}
	return nil, false
}

// Questions maps each bubble question key to the bubbles that answer it.
func (t *Template) Questions() map[string][]*BubbleField {
	questions := make(map[string][]*BubbleField)
	for _, b := range t.BubbleFields() {
		questions[b.Question] = append(questions[b.Question], b)
	}
	return questions
}

// Summary is a compact description of a template used by tool responses and logs.
type Summary struct {
	ID            string        `json:"id"`
	Version       string        `json:"version"`
	ScanThreshold int           `json:"scan_threshold"`
	Corners       geometry.Quad `json:"corners"`
	BarcodeFields int           `json:"barcode_fields"`
	BubbleFields  int           `json:"bubble_fields"`
	Questions     int           `json:"questions"`
	RowGroups     []string      `json:"row_groups,omitempty"`
}

// Summarize counts the template's fields by kind.
func (t *Template) Summarize() Summary {
	s := Summary{
		ID:            t.ID,
		Version:       t.Version,
		ScanThreshold: t.ScanThreshold,
		Corners:       t.Quad,
		BarcodeFields: len(t.BarcodeFields()),
		BubbleFields:  len(t.BubbleFields()),
		Questions:     len(t.Questions()),
	}
	seen := make(map[string]bool)
	for _, f := range t.FlatFields() {
		if g := f.RowGroup(); g != "" && !seen[g] {
			seen[g] = true
			s.RowGroups = append(s.RowGroups, g)
		}
	}
	return s
}

// String implements fmt.Stringer.
func (t *Template) String() string {
	return fmt.Sprintf("template %s v%s (%d fields)", t.ID, t.Version, len(t.FlatFields()))
}
