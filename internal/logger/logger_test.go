package logger_test

import (
	"github.com/kevin-cantwell/knockout/internal/logger"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"go.uber.org/zap/zapcore"
)

var _ = Describe("New", func() {
	It("builds a logger at the requested level", func() {
		log, err := logger.New("warn")
		Expect(err).NotTo(HaveOccurred())
		Expect(log.Core().Enabled(zapcore.WarnLevel)).To(BeTrue())
		Expect(log.Core().Enabled(zapcore.InfoLevel)).To(BeFalse())
	})

	It("rejects unknown levels", func() {
		_, err := logger.New("chatty")
		Expect(err).To(MatchError(ContainSubstring("log level")))
	})
})
