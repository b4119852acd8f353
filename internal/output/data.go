package output

import (
	"github.com/ironsheep/omr-engine/internal/geometry"
)

// Kind names a Data variant. It is the "type" discriminator in JSON and the
// element name in XML.
type Kind string

const (
	KindBubble    Kind = "bubble"
	KindBarcode   Kind = "barcode"
	KindRow       Kind = "row"
	KindAggregate Kind = "aggregate"
)

// Bound is the identity and analyzed-image rectangle shared by every result.
type Bound struct {
	ID          string         `json:"id"`
	TopLeft     geometry.Point `json:"top_left"`
	BottomRight geometry.Point `json:"bottom_right"`
}

// DataID returns the result identifier.
func (b *Bound) DataID() string { return b.ID }

// Box returns the bound itself.
func (b *Bound) Box() Bound { return *b }

// Data is a recognized result. The set of implementations is closed:
// *BubbleData, *BarcodeData, *RowData and *AggregateData.
type Data interface {
	DataID() string
	Box() Bound
	Kind() Kind

	isData()
}

// BubbleData is a marked bubble. Key is the question, Value the chosen answer.
type BubbleData struct {
	Bound
	Key      string `json:"key"`
	Value    string `json:"value"`
	BlobArea int    `json:"area"`
}

func (*BubbleData) Kind() Kind { return KindBubble }
func (*BubbleData) isData()    {}

// BarcodeData is a decoded barcode, or recognized text when Format is "TEXT".
type BarcodeData struct {
	Bound
	Format string `json:"format"`
	Text   string `json:"data"`
}

func (*BarcodeData) Kind() Kind { return KindBarcode }
func (*BarcodeData) isData()    {}

// Collection is an ordered list of results under a bound. It is the body of
// pages, rows and aggregates.
type Collection struct {
	Bound
	Details Details `json:"details,omitempty"`
}

// Add appends d.
func (c *Collection) Add(d Data) {
	c.Details = append(c.Details, d)
}

// Find returns the direct child with the given id.
func (c *Collection) Find(id string) (Data, bool) {
	for _, d := range c.Details {
		if d.DataID() == id {
			return d, true
		}
	}
	return nil, false
}

// AlreadyAnswered reports whether the collection directly holds an answer
// equivalent to d: a bubble with the same question key, or any result with
// the same id.
func (c *Collection) AlreadyAnswered(d Data) bool {
	if b, ok := d.(*BubbleData); ok {
		for _, existing := range c.Details {
			if e, ok := existing.(*BubbleData); ok && e.Key == b.Key {
				return true
			}
		}
		return false
	}
	_, found := c.Find(d.DataID())
	return found
}

// Walk calls fn for every result below the collection, depth first.
func (c *Collection) Walk(fn func(Data)) {
	for _, d := range c.Details {
		fn(d)
		switch d := d.(type) {
		case *RowData:
			d.Walk(fn)
		case *AggregateData:
			d.Walk(fn)
		}
	}
}

// RowData groups the answers of one answer row group.
type RowData struct {
	Collection
}

func (*RowData) Kind() Kind { return KindRow }
func (*RowData) isData()    {}

// AggregationFunction is how an aggregate reduces its children.
type AggregationFunction string

// Count is the number of children.
const Count AggregationFunction = "Count"

// AggregateData collects the marked bubbles of one Count question.
type AggregateData struct {
	Collection
	Function AggregationFunction `json:"function"`
	RowID    string              `json:"row_id,omitempty"`
}

func (*AggregateData) Kind() Kind { return KindAggregate }
func (*AggregateData) isData()    {}

// Value computes the aggregate from the current children.
func (a *AggregateData) Value() int {
	switch a.Function {
	case Count, "":
		return len(a.Details)
	default:
		return 0
	}
}
