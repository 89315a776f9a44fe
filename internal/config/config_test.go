package config_test

import (
	"os"
	"path/filepath"
	"time"

	"github.com/kevin-cantwell/knockout/internal/config"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Config", func() {
	var dir string
	noEnv := map[string]string{}

	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "knockout-config")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(dir)
	})

	writeFile := func(body string) string {
		path := filepath.Join(dir, "knockout.yaml")
		Expect(os.WriteFile(path, []byte(body), 0o644)).To(Succeed())
		return path
	}

	It("defaults to 30ms lossy frames at quality 80 that loop forever", func() {
		cfg, err := config.LoadWithEnv("", noEnv)
		Expect(err).NotTo(HaveOccurred())
		Expect(*cfg).To(Equal(config.Default()))
		Expect(cfg.Threshold).To(Equal(240))
		Expect(cfg.Quality).To(BeNumerically("==", 80))
		Expect(cfg.Duration()).To(Equal(30 * time.Millisecond))
		Expect(cfg.LoopCount).To(BeZero())
		Expect(cfg.Lossless).To(BeFalse())
		Expect(cfg.Validate()).To(Succeed())
	})

	It("reads a YAML file over the defaults", func() {
		path := writeFile("threshold: 200\nlossless: true\nmax_width: 320\n")
		cfg, err := config.LoadWithEnv(path, noEnv)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Threshold).To(Equal(200))
		Expect(cfg.Lossless).To(BeTrue())
		Expect(cfg.MaxWidth).To(Equal(320))
		Expect(cfg.DurationMs).To(Equal(30))
	})

	It("lets the environment override the file", func() {
		path := writeFile("threshold: 200\njobs: 2\n")
		cfg, err := config.LoadWithEnv(path, map[string]string{
			"KNOCKOUT_THRESHOLD":   "250",
			"KNOCKOUT_DURATION_MS": "40",
			"KNOCKOUT_LOG_LEVEL":   "debug",
			"THRESHOLD":            "1",
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Threshold).To(Equal(250))
		Expect(cfg.Jobs).To(Equal(2))
		Expect(cfg.Duration()).To(Equal(40 * time.Millisecond))
		Expect(cfg.LogLevel).To(Equal("debug"))
	})

	It("rejects unknown keys", func() {
		_, err := config.LoadWithEnv(writeFile("treshold: 200\n"), noEnv)
		Expect(err).To(MatchError(ContainSubstring("treshold")))
	})

	It("rejects malformed environment values", func() {
		_, err := config.LoadWithEnv("", map[string]string{"KNOCKOUT_JOBS": "many"})
		Expect(err).To(HaveOccurred())
	})

	It("fails on a missing file", func() {
		_, err := config.LoadWithEnv(filepath.Join(dir, "nope.yaml"), noEnv)
		Expect(err).To(MatchError(os.ErrNotExist))
	})

	It("reports every invalid setting", func() {
		cfg := config.Default()
		cfg.Threshold = 256
		cfg.Quality = 120
		cfg.DurationMs = 0
		cfg.LoopCount = -1
		cfg.Jobs = 0
		err := cfg.Validate()
		Expect(err).To(HaveOccurred())
		for _, s := range []string{"threshold", "quality", "duration", "loop count", "jobs"} {
			Expect(err.Error()).To(ContainSubstring(s))
		}
	})
})
