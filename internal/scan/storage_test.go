package scan

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("LocalStorage", func() {
	var (
		tmpDir  string
		storage Storage
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		var err error
		storage, err = NewLocalStorage(filepath.Join(tmpDir, "uploads"))
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("Save", func() {
		It("should write the file and return its name", func() {
			name, err := storage.Save("id-1_0_bon.jpg", []byte("jpeg"))
			Expect(err).NotTo(HaveOccurred())
			Expect(name).To(Equal("id-1_0_bon.jpg"))
			Expect(filepath.Join(tmpDir, "uploads", "id-1_0_bon.jpg")).To(BeAnExistingFile())
		})

		It("should reject names leaving the directory", func() {
			_, err := storage.Save("../escape.jpg", []byte("jpeg"))
			Expect(err).To(MatchError(ContainSubstring("invalid file name")))
			Expect(filepath.Join(tmpDir, "escape.jpg")).NotTo(BeAnExistingFile())
		})
	})

	Describe("Get", func() {
		It("should return the saved data", func() {
			_, err := storage.Save("bon.png", []byte("png"))
			Expect(err).NotTo(HaveOccurred())
			data, err := storage.Get("bon.png")
			Expect(err).NotTo(HaveOccurred())
			Expect(data).To(Equal([]byte("png")))
		})

		It("should fail for missing files", func() {
			_, err := storage.Get("missing.png")
			Expect(err).To(MatchError(ContainSubstring("reading file")))
		})
	})

	Describe("Delete", func() {
		It("should remove the file", func() {
			_, err := storage.Save("bon.png", []byte("png"))
			Expect(err).NotTo(HaveOccurred())
			Expect(storage.Delete("bon.png")).To(Succeed())
			_, statErr := os.Stat(filepath.Join(tmpDir, "uploads", "bon.png"))
			Expect(os.IsNotExist(statErr)).To(BeTrue())
		})

		It("should fail for missing files", func() {
			Expect(storage.Delete("missing.png")).To(MatchError(ContainSubstring("deleting file")))
		})
	})
})
