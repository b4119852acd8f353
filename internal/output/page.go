package output

import (
	"time"
)

// Outcome is the result of processing one page.
type Outcome string

const (
	Success Outcome = "Success"
	Failure Outcome = "Failure"
)

// PageOutput is the result tree for one scanned page.
//
// When Outcome is Failure the tree is empty and ErrorMessage says why.
type PageOutput struct {
	Collection

	TemplateID    string    `json:"template_id"`
	Parameters    []string  `json:"parameters,omitempty"`
	StartTime     time.Time `json:"start"`
	StopTime      time.Time `json:"stop_time"`
	Outcome       Outcome   `json:"outcome"`
	ErrorMessage  string    `json:"error_text,omitempty"`
	AnalyzedImage string    `json:"analyzed_image,omitempty"`
	RefImages     []string  `json:"ref_images,omitempty"`
}

// NewPage starts a page output with the given id at start.
func NewPage(id, templateID string, start time.Time) *PageOutput {
	return &PageOutput{
		Collection: Collection{Bound: Bound{ID: id}},
		TemplateID: templateID,
		StartTime:  start,
	}
}

// Fail discards any results and records err as the page failure.
func (p *PageOutput) Fail(err error) {
	p.Details = nil
	p.Outcome = Failure
	p.ErrorMessage = err.Error()
	if p.ErrorMessage == "" {
		p.ErrorMessage = "page processing failed"
	}
}

// Succeeded reports whether the page was processed successfully.
func (p *PageOutput) Succeeded() bool { return p.Outcome == Success }

// Bubbles returns every bubble answer in the tree, depth first.
func (p *PageOutput) Bubbles() []*BubbleData {
	var out []*BubbleData
	p.Walk(func(d Data) {
		if b, ok := d.(*BubbleData); ok {
			out = append(out, b)
		}
	})
	return out
}

// Barcodes returns every barcode result in the tree.
func (p *PageOutput) Barcodes() []*BarcodeData {
	var out []*BarcodeData
	p.Walk(func(d Data) {
		if b, ok := d.(*BarcodeData); ok {
			out = append(out, b)
		}
	})
	return out
}

// Aggregates returns every aggregate in the tree.
func (p *PageOutput) Aggregates() []*AggregateData {
	var out []*AggregateData
	p.Walk(func(d Data) {
		if a, ok := d.(*AggregateData); ok {
			out = append(out, a)
		}
	})
	return out
}

// Duration is the processing time of the page.
func (p *PageOutput) Duration() time.Duration {
	if p.StopTime.IsZero() {
		return 0
	}
	return p.StopTime.Sub(p.StartTime)
}
