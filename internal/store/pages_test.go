package store

import (
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	omrerrors "github.com/ironsheep/omr-engine/internal/errors"
	"github.com/ironsheep/omr-engine/internal/output"
	"github.com/ironsheep/omr-engine/internal/template"
)

func storedPage(id string) *output.PageOutput {
	p := output.NewPage(id, "Survey", time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC))
	p.Outcome = output.Success
	p.Place(&template.BubbleField{FieldBase: template.FieldBase{ID: "q1-a"}, Question: "q1", Value: "a"},
		&output.BubbleData{Bound: output.Bound{ID: "q1-a"}, Key: "q1", Value: "a", BlobArea: 200})
	p.Place(&template.BarcodeField{FieldBase: template.FieldBase{ID: "patient"}},
		&output.BarcodeData{Bound: output.Bound{ID: "patient"}, Format: "CODE_128", Text: "ID12345"})
	return p
}

var _ = Describe("BoltStore", func() {
	var (
		tmpDir string
		db     *BoltStore
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		var err error
		db, err = OpenBolt(filepath.Join(tmpDir, "pages.db"))
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if db != nil {
			db.Close()
		}
	})

	Describe("SavePage", func() {
		var (
			page *output.PageOutput
			err  error
		)

		BeforeEach(func() {
			page = storedPage("Survey20261019080000")
		})

		JustBeforeEach(func() {
			err = db.SavePage(page)
		})

		When("the page has an id", func() {
			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})

			It("should keep the result tree", func() {
				saved, getErr := db.GetPage("Survey20261019080000")
				Expect(getErr).NotTo(HaveOccurred())
				Expect(saved.TemplateID).To(Equal("Survey"))
				Expect(saved.Bubbles()).To(HaveLen(1))
				Expect(saved.Barcodes()[0].Text).To(Equal("ID12345"))
			})
		})

		When("the page has no id", func() {
			BeforeEach(func() {
				page = output.NewPage("", "Survey", time.Now())
			})

			It("should return a storage error", func() {
				Expect(omrerrors.HasCode(err, omrerrors.ErrorStorageFailed)).To(BeTrue())
			})
		})
	})

	Describe("GetPage", func() {
		When("the page does not exist", func() {
			It("should return ErrNotFound", func() {
				_, err := db.GetPage("missing")
				Expect(err).To(MatchError(ErrNotFound))
			})
		})
	})

	Describe("ListPages", func() {
		BeforeEach(func() {
			Expect(db.SavePage(storedPage("b-page"))).To(Succeed())
			Expect(db.SavePage(storedPage("a-page"))).To(Succeed())
		})

		It("should summarize pages in id order", func() {
			pages, err := db.ListPages()
			Expect(err).NotTo(HaveOccurred())
			Expect(pages).To(HaveLen(2))
			Expect(pages[0].ID).To(Equal("a-page"))
			Expect(pages[0].Answers).To(Equal(2))
			Expect(pages[0].Outcome).To(Equal(output.Success))
		})
	})

	Describe("DeletePage", func() {
		It("should remove the page", func() {
			Expect(db.SavePage(storedPage("gone"))).To(Succeed())
			Expect(db.DeletePage("gone")).To(Succeed())

			_, err := db.GetPage("gone")
			Expect(err).To(MatchError(ErrNotFound))
		})

		It("should ignore missing pages", func() {
			Expect(db.DeletePage("never-saved")).To(Succeed())
		})
	})

	It("should reopen with existing pages", func() {
		path := filepath.Join(tmpDir, "reopen.db")
		first, err := OpenBolt(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(first.SavePage(storedPage("kept"))).To(Succeed())
		Expect(first.Close()).To(Succeed())

		second, err := OpenBolt(path)
		Expect(err).NotTo(HaveOccurred())
		defer second.Close()
		_, err = second.GetPage("kept")
		Expect(err).NotTo(HaveOccurred())
	})
})
