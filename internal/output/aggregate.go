package output

import (
	"github.com/ironsheep/omr-engine/internal/template"
)

// AddAnswer places d, the result recognized for field, into c.
//
// Bubble answers follow the field's behavior:
//   - One keeps the first answer for a question key and drops later ones
//   - Multi keeps every answer
//   - Count appends the answer to an aggregate named after the question,
//     creating it on first use
//
// Other results are added unless c already holds one with the same id.
// rowID tags new aggregates with the row they were counted in.
func (c *Collection) AddAnswer(field template.Field, d Data, rowID string) {
	bf, ok := field.(*template.BubbleField)
	if !ok {
		if !c.AlreadyAnswered(d) {
			c.Add(d)
		}
		return
	}

	switch bf.Behavior {
	case template.BehaviorMulti:
		c.Add(d)
	case template.BehaviorCount:
		agg := c.aggregate(bf.Question)
		if rowID != "" {
			agg.RowID = rowID
		}
		agg.Add(d)
	default:
		if !c.AlreadyAnswered(d) {
			c.Add(d)
		}
	}
}

func (c *Collection) aggregate(question string) *AggregateData {
	if existing, ok := c.Find(question); ok {
		if agg, ok := existing.(*AggregateData); ok {
			return agg
		}
	}
	agg := &AggregateData{
		Collection: Collection{Bound: Bound{ID: question}},
		Function:   Count,
	}
	c.Add(agg)
	return agg
}

// Row returns the row for the given group, creating it under the page on
// first use.
func (p *PageOutput) Row(group string) *RowData {
	if existing, ok := p.Find(group); ok {
		if row, ok := existing.(*RowData); ok {
			return row
		}
	}
	row := &RowData{Collection: Collection{Bound: Bound{ID: group}}}
	p.Add(row)
	return row
}

// Place adds the result for field to the page, or to its answer row when the
// field belongs to one.
func (p *PageOutput) Place(field template.Field, d Data) {
	if group := field.RowGroup(); group != "" {
		row := p.Row(group)
		row.AddAnswer(field, d, group)
		return
	}
	p.AddAnswer(field, d, "")
}
