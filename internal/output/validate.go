package output

import (
	"fmt"

	"github.com/ironsheep/omr-engine/internal/template"
)

// Severity grades a validation issue. Only errors make a page invalid.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one finding of a validation rule.
type Issue struct {
	Rule     string   `json:"rule"`
	Severity Severity `json:"severity"`
	ID       string   `json:"id,omitempty"`
	Message  string   `json:"message"`
}

func (i Issue) String() string {
	if i.ID == "" {
		return fmt.Sprintf("%s [%s]: %s", i.Severity, i.Rule, i.Message)
	}
	return fmt.Sprintf("%s [%s] %s: %s", i.Severity, i.Rule, i.ID, i.Message)
}

// ValidationResult is the outcome of Validate.
type ValidationResult struct {
	IsValid bool    `json:"is_valid"`
	Issues  []Issue `json:"issues,omitempty"`
}

// Rule checks one aspect of a page against its template.
type Rule interface {
	Name() string
	Check(t *template.Template, p *PageOutput) []Issue
}

// DefaultRules are applied when Validate is called without rules.
func DefaultRules() []Rule {
	return []Rule{
		OutcomeRule{},
		BarcodePresenceRule{},
		SingleAnswerRule{},
		AggregateRangeRule{},
		KnownQuestionRule{},
	}
}

// Validate checks the page against t. With no rules the defaults are used.
func (p *PageOutput) Validate(t *template.Template, rules ...Rule) ValidationResult {
	if len(rules) == 0 {
		rules = DefaultRules()
	}

	res := ValidationResult{IsValid: true}
	for _, r := range rules {
		for _, issue := range r.Check(t, p) {
			if issue.Rule == "" {
				issue.Rule = r.Name()
			}
			if issue.Severity == "" {
				issue.Severity = SeverityError
			}
			if issue.Severity == SeverityError {
				res.IsValid = false
			}
			res.Issues = append(res.Issues, issue)
		}
	}
	return res
}

// OutcomeRule rejects failed pages.
type OutcomeRule struct{}

func (OutcomeRule) Name() string { return "outcome" }

func (OutcomeRule) Check(_ *template.Template, p *PageOutput) []Issue {
	if p.Outcome == Success {
		return nil
	}
	msg := p.ErrorMessage
	if msg == "" {
		msg = fmt.Sprintf("page outcome is %q", p.Outcome)
	}
	return []Issue{{Message: msg}}
}

// BarcodePresenceRule requires a result for every barcode field.
type BarcodePresenceRule struct{}

func (BarcodePresenceRule) Name() string { return "barcode-presence" }

func (BarcodePresenceRule) Check(t *template.Template, p *PageOutput) []Issue {
	if t == nil || !p.Succeeded() {
		return nil
	}
	found := make(map[string]bool)
	for _, b := range p.Barcodes() {
		found[b.ID] = true
	}

	var issues []Issue
	for _, f := range t.BarcodeFields() {
		if !found[f.ID] {
			issues = append(issues, Issue{ID: f.ID, Message: "barcode field was not read"})
		}
	}
	return issues
}

// SingleAnswerRule flags One questions answered more than once in a page or
// row. The engine never produces this; it catches hand-edited output.
type SingleAnswerRule struct{}

func (SingleAnswerRule) Name() string { return "single-answer" }

func (SingleAnswerRule) Check(t *template.Template, p *PageOutput) []Issue {
	if t == nil {
		return nil
	}
	single := make(map[string]bool)
	for key, bubbles := range t.Questions() {
		single[key] = true
		for _, b := range bubbles {
			if b.Behavior == template.BehaviorMulti || b.Behavior == template.BehaviorCount {
				single[key] = false
			}
		}
	}

	var issues []Issue
	check := func(scope string, c *Collection) {
		seen := make(map[string]int)
		for _, d := range c.Details {
			if b, ok := d.(*BubbleData); ok && single[b.Key] {
				seen[b.Key]++
				if seen[b.Key] == 2 {
					issues = append(issues, Issue{
						ID:      b.Key,
						Message: fmt.Sprintf("question answered more than once in %s", scope),
					})
				}
			}
		}
	}

	check("page", &p.Collection)
	for _, d := range p.Details {
		if row, ok := d.(*RowData); ok {
			check("row "+row.ID, &row.Collection)
		}
	}
	return issues
}

// AggregateRangeRule requires every aggregate value to lie between zero and
// the number of bubbles the template declares for its question.
type AggregateRangeRule struct{}

func (AggregateRangeRule) Name() string { return "aggregate-range" }

func (AggregateRangeRule) Check(t *template.Template, p *PageOutput) []Issue {
	if t == nil {
		return nil
	}
	questions := t.Questions()

	var issues []Issue
	for _, agg := range p.Aggregates() {
		limit := 0
		for _, b := range questions[agg.ID] {
			if agg.RowID == "" || b.AnswerRowGroup == agg.RowID {
				limit++
			}
		}
		if v := agg.Value(); v < 0 || v > limit {
			issues = append(issues, Issue{
				ID:      agg.ID,
				Message: fmt.Sprintf("aggregate value %d outside [0, %d]", v, limit),
			})
		}
	}
	return issues
}

// KnownQuestionRule warns about answers whose question is not in the template.
type KnownQuestionRule struct{}

func (KnownQuestionRule) Name() string { return "known-question" }

func (KnownQuestionRule) Check(t *template.Template, p *PageOutput) []Issue {
	if t == nil {
		return nil
	}
	questions := t.Questions()

	var issues []Issue
	reported := make(map[string]bool)
	for _, b := range p.Bubbles() {
		if _, ok := questions[b.Key]; ok || reported[b.Key] {
			continue
		}
		reported[b.Key] = true
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			ID:       b.Key,
			Message:  "answer refers to a question the template does not define",
		})
	}
	return issues
}
