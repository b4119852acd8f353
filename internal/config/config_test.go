package config_test

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ironsheep/omr-engine/internal/config"
)

// setenv sets an environment variable for the current test only.
func setenv(key, value string) {
	old, had := os.LookupEnv(key)
	Expect(os.Setenv(key, value)).To(Succeed())
	DeferCleanup(func() {
		if had {
			os.Setenv(key, old)
		} else {
			os.Unsetenv(key)
		}
	})
}

var _ = Describe("Load", func() {
	var (
		envFile string
		args    []string
		cfg     *config.Config
		err     error
	)

	BeforeEach(func() {
		envFile = filepath.Join(GinkgoT().TempDir(), "missing.env")
		args = nil
	})

	JustBeforeEach(func() {
		cfg, err = config.Load(args, envFile)
	})

	When("nothing is set", func() {
		It("should use the defaults", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.TemplateDir).To(Equal("templates"))
			Expect(cfg.DBPath).To(Equal("omr-pages.db"))
			Expect(cfg.Workers).To(BeNumerically(">=", 1))
			Expect(cfg.SaveIntermediates).To(BeFalse())
			Expect(cfg.Thorough).To(BeTrue())
			Expect(cfg.OCRLanguage).To(Equal("eng"))
			Expect(cfg.Level()).To(Equal(slog.LevelInfo))
		})
	})

	When("flags are given", func() {
		BeforeEach(func() {
			args = []string{"--workers", "2", "--template-dir", "/forms", "--save-intermediates", "--log-level", "DEBUG"}
		})

		It("should apply them", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Workers).To(Equal(2))
			Expect(cfg.TemplateDir).To(Equal("/forms"))
			Expect(cfg.SaveIntermediates).To(BeTrue())
			Expect(cfg.Level()).To(Equal(slog.LevelDebug))
		})
	})

	When("OMR_ variables are set", func() {
		BeforeEach(func() {
			setenv("OMR_WORKERS", "6")
			setenv("OMR_OCR_LANGUAGE", "deu")
		})

		It("should read them", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Workers).To(Equal(6))
			Expect(cfg.OCRLanguage).To(Equal("deu"))
		})

		When("a flag is also given", func() {
			BeforeEach(func() {
				args = []string{"--workers", "3"}
			})

			It("should prefer the flag", func() {
				Expect(cfg.Workers).To(Equal(3))
			})
		})
	})

	When("a .env file exists", func() {
		BeforeEach(func() {
			envFile = filepath.Join(GinkgoT().TempDir(), ".env")
			Expect(os.WriteFile(envFile, []byte("OMR_DB=/var/lib/omr/pages.db\n"), 0o644)).To(Succeed())
			DeferCleanup(os.Unsetenv, "OMR_DB")
		})

		It("should load it", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.DBPath).To(Equal("/var/lib/omr/pages.db"))
		})
	})

	When("--quick is given", func() {
		BeforeEach(func() {
			args = []string{"--quick"}
		})

		It("should turn off the thorough marker search", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Thorough).To(BeFalse())
		})
	})

	When("workers is zero", func() {
		BeforeEach(func() {
			args = []string{"--workers", "0"}
		})

		It("should fail validation", func() {
			Expect(err).To(MatchError(ContainSubstring("workers")))
		})
	})

	When("the log level is unknown", func() {
		BeforeEach(func() {
			args = []string{"--log-level", "verbose"}
		})

		It("should fail validation", func() {
			Expect(err).To(MatchError(ContainSubstring("log level")))
		})
	})

	When("an unknown flag is given", func() {
		BeforeEach(func() {
			args = []string{"--colour", "red"}
		})

		It("should fail", func() {
			Expect(err).To(HaveOccurred())
		})
	})
})

var _ = Describe("Config", func() {
	It("should reject OCR fallback without a language", func() {
		c := &config.Config{Workers: 1, LogLevel: "info", OCRFallback: true}
		Expect(c.Validate()).To(MatchError(ContainSubstring("ocr-language")))
	})

	It("should build a logger at the configured level", func() {
		var buf bytes.Buffer
		c := &config.Config{Workers: 1, LogLevel: "warn"}
		logger := c.Logger(&buf)

		logger.Info("hidden")
		logger.Warn("shown")
		Expect(buf.String()).NotTo(ContainSubstring("hidden"))
		Expect(buf.String()).To(ContainSubstring("shown"))
	})
})
