package output_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ironsheep/omr-engine/internal/output"
	"github.com/ironsheep/omr-engine/internal/template"
)

func surveyTemplate() *template.Template {
	t := template.New()
	t.ID = "Survey"
	t.Fields = []template.Field{
		&template.BarcodeField{FieldBase: template.FieldBase{ID: "patient"}},
		bubbleField("q1-a", "q1", "a", template.BehaviorOne, ""),
		bubbleField("q1-b", "q1", "b", template.BehaviorOne, ""),
		bubbleField("tally-1", "tally", "1", template.BehaviorCount, ""),
		bubbleField("tally-2", "tally", "2", template.BehaviorCount, ""),
	}
	return t
}

func issueRules(res output.ValidationResult) []string {
	var rules []string
	for _, i := range res.Issues {
		rules = append(rules, i.Rule)
	}
	return rules
}

var _ = Describe("Validate", func() {
	var (
		tmpl *template.Template
		page *output.PageOutput
	)

	BeforeEach(func() {
		tmpl = surveyTemplate()
		page = output.NewPage("Survey20261019000000", "Survey", time.Now())
		page.Outcome = output.Success
		page.Place(tmpl.Fields[0], &output.BarcodeData{Bound: output.Bound{ID: "patient"}, Format: "CODE_128", Text: "ID12345"})
	})

	It("accepts a complete page", func() {
		f := tmpl.Fields[1].(*template.BubbleField)
		page.Place(f, answerFor(f))

		res := page.Validate(tmpl)
		Expect(res.IsValid).To(BeTrue())
		Expect(res.Issues).To(BeEmpty())
	})

	It("rejects failed pages", func() {
		page.Fail(errString("no marks"))

		res := page.Validate(tmpl)
		Expect(res.IsValid).To(BeFalse())
		Expect(issueRules(res)).To(ConsistOf("outcome"))
		Expect(res.Issues[0].Message).To(Equal("no marks"))
	})

	It("reports unread barcode fields", func() {
		page.Details = nil

		res := page.Validate(tmpl)
		Expect(res.IsValid).To(BeFalse())
		Expect(issueRules(res)).To(ConsistOf("barcode-presence"))
		Expect(res.Issues[0].ID).To(Equal("patient"))
	})

	It("reports single-answer questions answered twice", func() {
		a := tmpl.Fields[1].(*template.BubbleField)
		b := tmpl.Fields[2].(*template.BubbleField)
		page.Add(answerFor(a))
		page.Add(answerFor(b))

		res := page.Validate(tmpl)
		Expect(res.IsValid).To(BeFalse())
		Expect(issueRules(res)).To(ConsistOf("single-answer"))
	})

	It("reports aggregates larger than the question", func() {
		for i := 0; i < 3; i++ {
			f := bubbleField("tally-x", "tally", "x", template.BehaviorCount, "")
			page.Place(f, answerFor(f))
		}

		res := page.Validate(tmpl)
		Expect(res.IsValid).To(BeFalse())
		Expect(issueRules(res)).To(ConsistOf("aggregate-range"))
	})

	It("warns about unknown questions without invalidating the page", func() {
		f := bubbleField("extra", "unknown", "x", template.BehaviorOne, "")
		page.Place(f, answerFor(f))

		res := page.Validate(tmpl)
		Expect(res.IsValid).To(BeTrue())
		Expect(res.Issues).To(HaveLen(1))
		Expect(res.Issues[0].Severity).To(Equal(output.SeverityWarning))
		Expect(res.Issues[0].Rule).To(Equal("known-question"))
	})

	It("runs only the given rules", func() {
		page.Details = nil

		res := page.Validate(tmpl, output.OutcomeRule{})
		Expect(res.IsValid).To(BeTrue())
	})
})
