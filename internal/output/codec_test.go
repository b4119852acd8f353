package output_test

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ironsheep/omr-engine/internal/geometry"
	"github.com/ironsheep/omr-engine/internal/output"
	"github.com/ironsheep/omr-engine/internal/template"
)

// samplePage builds a page holding every result kind.
func samplePage() *output.PageOutput {
	start := time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC)
	p := output.NewPage("Survey20261019093000", "Survey", start)
	p.StopTime = start.Add(1500 * time.Millisecond)
	p.Outcome = output.Success
	p.Parameters = []string{"site4", "batch7"}
	p.AnalyzedImage = "3f2c.jpg"
	p.RefImages = []string{"init.bmp", "bw.bmp"}

	p.Place(&template.BarcodeField{FieldBase: template.FieldBase{ID: "patient"}}, &output.BarcodeData{
		Bound:  output.Bound{ID: "patient", TopLeft: geometry.Pt(40, 50), BottomRight: geometry.Pt(300, 60)},
		Format: "CODE_128",
		Text:   "ID12345",
	})

	one := bubbleField("q1-b", "q1", "b", template.BehaviorOne, "")
	p.Place(one, answerFor(one))

	for _, v := range []string{"1", "2"} {
		f := bubbleField("r1-tally-"+v, "tally", v, template.BehaviorCount, "row1")
		p.Place(f, answerFor(f))
	}
	return p
}

var _ = Describe("Serialization", func() {
	Describe("XML", func() {
		It("writes the analysis namespace and attributes", func() {
			var buf bytes.Buffer
			Expect(samplePage().EncodeXML(&buf)).To(Succeed())

			doc := buf.String()
			Expect(doc).To(HavePrefix(xml.Header))
			Expect(doc).To(ContainSubstring(`xmlns="urn:scan-omr:analysis"`))
			Expect(doc).To(ContainSubstring(`templateId="Survey"`))
			Expect(doc).To(ContainSubstring(`outcome="Success"`))
			Expect(doc).To(ContainSubstring(`<parameter>site4</parameter>`))
			Expect(doc).To(ContainSubstring(`<refImage>init.bmp</refImage>`))
			Expect(doc).To(ContainSubstring(`format="CODE_128" data="ID12345"`))
			Expect(doc).To(ContainSubstring(`function="Count" value="2" rowId="row1"`))
			Expect(doc).To(ContainSubstring(`topRight="300,50"`))
		})

		It("round trips", func() {
			in := samplePage()
			var buf bytes.Buffer
			Expect(in.EncodeXML(&buf)).To(Succeed())

			out, err := output.DecodeXML(&buf)
			Expect(err).NotTo(HaveOccurred())

			Expect(out.ID).To(Equal(in.ID))
			Expect(out.TemplateID).To(Equal("Survey"))
			Expect(out.StartTime.Equal(in.StartTime)).To(BeTrue())
			Expect(out.StopTime.Equal(in.StopTime)).To(BeTrue())
			Expect(out.Outcome).To(Equal(output.Success))
			Expect(out.Parameters).To(Equal(in.Parameters))
			Expect(out.RefImages).To(Equal(in.RefImages))
			Expect(out.AnalyzedImage).To(Equal("3f2c.jpg"))

			Expect(out.Barcodes()).To(HaveLen(1))
			Expect(out.Barcodes()[0].Text).To(Equal("ID12345"))
			Expect(out.Barcodes()[0].BottomRight).To(Equal(geometry.Pt(300, 60)))

			Expect(out.Bubbles()).To(HaveLen(3))
			Expect(out.Bubbles()[0].BlobArea).To(Equal(120))

			aggs := out.Aggregates()
			Expect(aggs).To(HaveLen(1))
			Expect(aggs[0].Value()).To(Equal(2))
			Expect(aggs[0].RowID).To(Equal("row1"))
		})

		It("records failures with an error text", func() {
			p := output.NewPage("x", "Survey", time.Now())
			p.Fail(errString("image is not scannable"))

			var buf bytes.Buffer
			Expect(p.EncodeXML(&buf)).To(Succeed())
			Expect(buf.String()).To(ContainSubstring("<errorText>image is not scannable</errorText>"))

			out, err := output.DecodeXML(&buf)
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Outcome).To(Equal(output.Failure))
			Expect(out.ErrorMessage).To(Equal("image is not scannable"))
		})

		It("rejects other documents", func() {
			_, err := output.DecodeXML(strings.NewReader(`<template id="x"/>`))
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("JSON", func() {
		It("tags results with their type and round trips", func() {
			in := samplePage()
			data, err := in.MarshalJSONIndent()
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(ContainSubstring(`"type": "barcode"`))
			Expect(string(data)).To(ContainSubstring(`"type": "aggregate"`))
			Expect(string(data)).To(ContainSubstring(`"value": 2`))

			out := &output.PageOutput{}
			Expect(json.Unmarshal(data, out)).To(Succeed())
			Expect(out.ID).To(Equal(in.ID))
			Expect(out.Details).To(HaveLen(len(in.Details)))
			Expect(out.Details[0]).To(BeAssignableToTypeOf(&output.BarcodeData{}))
			Expect(out.Aggregates()).To(HaveLen(1))
			Expect(out.Aggregates()[0].Details).To(HaveLen(2))
			Expect(out.Bubbles()).To(HaveLen(3))
		})

		It("rejects unknown result types", func() {
			out := &output.PageOutput{}
			err := json.Unmarshal([]byte(`{"id":"x","details":[{"type":"shape"}]}`), out)
			Expect(err).To(MatchError(ContainSubstring("unknown type")))
		})
	})

	Describe("Transforms", func() {
		var pages *output.PageCollection

		BeforeEach(func() {
			pages = &output.PageCollection{Pages: []*output.PageOutput{samplePage(), samplePage()}}
		})

		It("lists the built-in transforms", func() {
			ts := output.Transforms()
			Expect(ts).To(HaveKey("xml"))
			Expect(ts).To(HaveKey("json"))
			Expect(ts["xml"].Extension()).To(Equal(".xml"))
			Expect(ts["json"].Name()).To(Equal("json"))
		})

		It("renders a pages document as XML", func() {
			data, err := output.XMLTransform{}.Transform(nil, pages)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(ContainSubstring("<pages"))
			Expect(strings.Count(string(data), "<page ")).To(Equal(2))

			back := &output.PageCollection{}
			Expect(xml.Unmarshal(data, back)).To(Succeed())
			Expect(back.Pages).To(HaveLen(2))
			Expect(back.Pages[1].Barcodes()[0].Text).To(Equal("ID12345"))
		})

		It("renders JSON with the template summary", func() {
			t := template.New()
			t.ID = "Survey"
			data, err := output.JSONTransform{}.Transform(t, pages)
			Expect(err).NotTo(HaveOccurred())

			var doc struct {
				Template struct {
					ID string `json:"id"`
				} `json:"template"`
				Pages []json.RawMessage `json:"pages"`
			}
			Expect(json.Unmarshal(data, &doc)).To(Succeed())
			Expect(doc.Template.ID).To(Equal("Survey"))
			Expect(doc.Pages).To(HaveLen(2))
		})
	})
})
