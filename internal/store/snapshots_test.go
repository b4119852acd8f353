package store

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("LocalStorage", func() {
	var (
		tmpDir  string
		storage *LocalStorage
	)

	BeforeEach(func() {
		tmpDir = filepath.Join(GinkgoT().TempDir(), "snapshots")
		var err error
		storage, err = NewLocalStorage(tmpDir)
		Expect(err).NotTo(HaveOccurred())
	})

	It("should create the directory", func() {
		Expect(tmpDir).To(BeADirectory())
		Expect(storage.Dir()).To(Equal(tmpDir))
	})

	Describe("Save", func() {
		var (
			savedPath string
			err       error
		)

		JustBeforeEach(func() {
			savedPath, err = storage.Save("page.jpg", []byte("jpeg bytes"))
		})

		It("should write the file and return its path", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(savedPath).To(Equal(filepath.Join(tmpDir, "page.jpg")))
			Expect(savedPath).To(BeAnExistingFile())
		})

		It("should read back by name or by path", func() {
			byName, err := storage.Get("page.jpg")
			Expect(err).NotTo(HaveOccurred())
			Expect(string(byName)).To(Equal("jpeg bytes"))

			byPath, err := storage.Get(savedPath)
			Expect(err).NotTo(HaveOccurred())
			Expect(byPath).To(Equal(byName))
		})
	})

	It("should keep files inside the directory", func() {
		path, err := storage.Save("../escape.jpg", []byte("x"))
		Expect(err).NotTo(HaveOccurred())
		Expect(filepath.Dir(path)).To(Equal(tmpDir))
		Expect(filepath.Join(tmpDir, "..", "escape.jpg")).NotTo(BeAnExistingFile())
	})

	Describe("Delete", func() {
		It("should remove a stored file", func() {
			path, err := storage.Save("old.jpg", []byte("x"))
			Expect(err).NotTo(HaveOccurred())
			Expect(storage.Delete("old.jpg")).To(Succeed())
			_, statErr := os.Stat(path)
			Expect(os.IsNotExist(statErr)).To(BeTrue())
		})

		It("should fail for a missing file", func() {
			Expect(storage.Delete("missing.jpg")).NotTo(Succeed())
		})
	})
})
