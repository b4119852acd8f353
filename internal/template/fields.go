package template

import (
	"fmt"

	"github.com/ironsheep/omr-engine/internal/geometry"
)

// Field is a template region that produces an answer. The set of implementations
// is closed: *BarcodeField, *BubbleField and *TrueFalseField.
type Field interface {
	FieldID() string
	Bounds() geometry.Quad
	RowGroup() string

	isField()
}

// FieldBase carries the identity and template-space bounds shared by all fields.
type FieldBase struct {
	ID string `xml:"id,attr" json:"id"`
	geometry.Quad

	// AnswerRowGroup names the output row this field's answer belongs to.
	AnswerRowGroup string `xml:"answerRowGroup,attr,omitempty" json:"answer_row_group,omitempty"`
}

// FieldID returns the field identifier.
func (b FieldBase) FieldID() string { return b.ID }

// Bounds returns the field region in template coordinates.
func (b FieldBase) Bounds() geometry.Quad { return b.Quad }

// RowGroup returns the answer row group, or "" when the answer is page level.
func (b FieldBase) RowGroup() string { return b.AnswerRowGroup }

// BarcodeField is a region that holds a printed barcode.
type BarcodeField struct {
	FieldBase
}

func (*BarcodeField) isField() {}

// Behavior governs how marked bubbles sharing a question key are aggregated.
type Behavior string

const (
	// BehaviorOne keeps only the first marked bubble for a question.
	BehaviorOne Behavior = "One"
	// BehaviorMulti keeps every marked bubble.
	BehaviorMulti Behavior = "Multi"
	// BehaviorCount groups marked bubbles under an aggregate node that counts them.
	BehaviorCount Behavior = "Count"
)

// MarshalText implements encoding.TextMarshaler. The zero value encodes as One.
func (b Behavior) MarshalText() ([]byte, error) {
	if b == "" {
		return []byte(BehaviorOne), nil
	}
	return []byte(b), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (b *Behavior) UnmarshalText(text []byte) error {
	switch v := Behavior(text); v {
	case "":
		*b = BehaviorOne
	case BehaviorOne, BehaviorMulti, BehaviorCount:
		*b = v
	default:
		return fmt.Errorf("unknown bubble behavior %q", string(text))
	}
	return nil
}

// BubbleField is a single fillable target. When marked, Value answers Question.
type BubbleField struct {
	FieldBase
	Question string   `xml:"key,attr" json:"key"`
	Value    string   `xml:"value,attr" json:"value"`
	Behavior Behavior `xml:"behavior,attr" json:"behavior"`
}

func (*BubbleField) isField() {}

// Orientation is the layout of a container's children.
type Orientation string

const (
	Horizontal Orientation = "Horizontal"
	Vertical   Orientation = "Vertical"
)

// MarshalText implements encoding.TextMarshaler. The zero value encodes as Horizontal.
func (o Orientation) MarshalText() ([]byte, error) {
	if o == "" {
		return []byte(Horizontal), nil
	}
	return []byte(o), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *Orientation) UnmarshalText(text []byte) error {
	switch v := Orientation(text); v {
	case "":
		*o = Horizontal
	case Horizontal, Vertical:
		*o = v
	default:
		return fmt.Errorf("unknown orientation %q", string(text))
	}
	return nil
}

// TrueFalseField groups a pair (or more) of bubbles answering the same question.
type TrueFalseField struct {
	FieldBase
	Orientation Orientation    `xml:"orientation,attr" json:"orientation"`
	Children    []*BubbleField `xml:"questionBubble" json:"children"`
}

func (*TrueFalseField) isField() {}

// NewTrueFalseField lays out a true/false pair inside bounds. The children split
// the region in half along the orientation and answer question with "true" and
// "false". They inherit the container's row group.
func NewTrueFalseField(id, question string, bounds geometry.Quad, orientation Orientation, rowGroup string) *TrueFalseField {
	w, h := bounds.Width(), bounds.Height()
	x, y := bounds.TopLeft.X, bounds.TopLeft.Y

	var first, second geometry.Quad
	if orientation == Vertical {
		first = geometry.RectQuad(x, y, w, h/2)
		second = geometry.RectQuad(x, y+h/2, w, h/2)
	} else {
		first = geometry.RectQuad(x, y, w/2, h)
		second = geometry.RectQuad(x+w/2, y, w/2, h)
	}

	child := func(suffix, value string, q geometry.Quad) *BubbleField {
		return &BubbleField{
			FieldBase: FieldBase{ID: id + "-" + suffix, Quad: q, AnswerRowGroup: rowGroup},
			Question:  question,
			Value:     value,
			Behavior:  BehaviorOne,
		}
	}

	return &TrueFalseField{
		FieldBase:   FieldBase{ID: id, Quad: bounds, AnswerRowGroup: rowGroup},
		Orientation: orientation,
		Children: []*BubbleField{
			child("t", "true", first),
			child("f", "false", second),
		},
	}
}
