package output_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ironsheep/omr-engine/internal/geometry"
	"github.com/ironsheep/omr-engine/internal/output"
	"github.com/ironsheep/omr-engine/internal/template"
)

func bubbleField(id, question, value string, behavior template.Behavior, row string) *template.BubbleField {
	return &template.BubbleField{
		FieldBase: template.FieldBase{ID: id, Quad: geometry.RectQuad(10, 10, 20, 20), AnswerRowGroup: row},
		Question:  question,
		Value:     value,
		Behavior:  behavior,
	}
}

func answerFor(f *template.BubbleField) *output.BubbleData {
	return &output.BubbleData{
		Bound:    output.Bound{ID: f.ID, TopLeft: geometry.Pt(10, 10), BottomRight: geometry.Pt(30, 30)},
		Key:      f.Question,
		Value:    f.Value,
		BlobArea: 120,
	}
}

var _ = Describe("Aggregation", func() {
	var page *output.PageOutput

	BeforeEach(func() {
		page = output.NewPage("Survey20261019120000", "Survey", time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC))
	})

	Context("with One behavior", func() {
		It("keeps only the first answer for a question", func() {
			a := bubbleField("q1-a", "q1", "a", template.BehaviorOne, "")
			b := bubbleField("q1-b", "q1", "b", template.BehaviorOne, "")

			page.Place(a, answerFor(a))
			page.Place(b, answerFor(b))

			Expect(page.Bubbles()).To(HaveLen(1))
			Expect(page.Bubbles()[0].Value).To(Equal("a"))
		})

		It("answers the same question separately in each row", func() {
			r1 := bubbleField("r1-yes", "smoker", "yes", template.BehaviorOne, "row1")
			r1b := bubbleField("r1-no", "smoker", "no", template.BehaviorOne, "row1")
			r2 := bubbleField("r2-no", "smoker", "no", template.BehaviorOne, "row2")

			page.Place(r1, answerFor(r1))
			page.Place(r1b, answerFor(r1b))
			page.Place(r2, answerFor(r2))

			Expect(page.Details).To(HaveLen(2))
			row1 := page.Row("row1")
			Expect(row1.Details).To(HaveLen(1))
			Expect(page.Row("row2").Details).To(HaveLen(1))
			Expect(page.Details).To(HaveLen(2), "Row must not create duplicates")
		})
	})

	Context("with Multi behavior", func() {
		It("keeps every answer", func() {
			for _, v := range []string{"red", "green", "blue"} {
				f := bubbleField("colour-"+v, "colour", v, template.BehaviorMulti, "")
				page.Place(f, answerFor(f))
			}
			Expect(page.Bubbles()).To(HaveLen(3))
		})
	})

	Context("with Count behavior", func() {
		It("collects N marks under one aggregate", func() {
			for _, v := range []string{"1", "2", "3", "4"} {
				f := bubbleField("tally-"+v, "tally", v, template.BehaviorCount, "")
				page.Place(f, answerFor(f))
			}

			Expect(page.Details).To(HaveLen(1))
			agg, ok := page.Details[0].(*output.AggregateData)
			Expect(ok).To(BeTrue())
			Expect(agg.ID).To(Equal("tally"))
			Expect(agg.Function).To(Equal(output.Count))
			Expect(agg.Details).To(HaveLen(4))
			Expect(agg.Value()).To(Equal(4))
			Expect(agg.RowID).To(BeEmpty())
		})

		It("tags aggregates inside a row with the row id", func() {
			f := bubbleField("r3-tally", "tally", "1", template.BehaviorCount, "row3")
			page.Place(f, answerFor(f))

			aggs := page.Aggregates()
			Expect(aggs).To(HaveLen(1))
			Expect(aggs[0].RowID).To(Equal("row3"))
		})
	})

	Context("with barcode fields", func() {
		It("adds a result once per id", func() {
			f := &template.BarcodeField{FieldBase: template.FieldBase{ID: "patient"}}
			first := &output.BarcodeData{Bound: output.Bound{ID: "patient"}, Format: "CODE_128", Text: "ID12345"}
			second := &output.BarcodeData{Bound: output.Bound{ID: "patient"}, Format: "CODE_128", Text: "OTHER"}

			page.Place(f, first)
			page.Place(f, second)

			Expect(page.Barcodes()).To(HaveLen(1))
			Expect(page.Barcodes()[0].Text).To(Equal("ID12345"))
		})
	})

	Describe("Collection", func() {
		It("finds direct children by id", func() {
			f := bubbleField("q9-a", "q9", "a", template.BehaviorOne, "")
			page.Place(f, answerFor(f))

			d, ok := page.Find("q9-a")
			Expect(ok).To(BeTrue())
			Expect(d.Kind()).To(Equal(output.KindBubble))

			_, ok = page.Find("missing")
			Expect(ok).To(BeFalse())
		})

		It("treats a bubble with the same key as already answered", func() {
			c := &output.Collection{}
			c.Add(&output.BubbleData{Bound: output.Bound{ID: "x"}, Key: "q"})

			Expect(c.AlreadyAnswered(&output.BubbleData{Bound: output.Bound{ID: "y"}, Key: "q"})).To(BeTrue())
			Expect(c.AlreadyAnswered(&output.BubbleData{Bound: output.Bound{ID: "x"}, Key: "other"})).To(BeFalse())
		})
	})

	Describe("Fail", func() {
		It("drops partial results and keeps the message", func() {
			f := bubbleField("q1-a", "q1", "a", template.BehaviorOne, "")
			page.Place(f, answerFor(f))

			page.Fail(errString("registration marks not found"))

			Expect(page.Outcome).To(Equal(output.Failure))
			Expect(page.ErrorMessage).To(Equal("registration marks not found"))
			Expect(page.Details).To(BeEmpty())
			Expect(page.Succeeded()).To(BeFalse())
		})
	})
})

type errString string

func (e errString) Error() string { return string(e) }
