package knockout_test

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/kevin-cantwell/knockout"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeTerminal struct {
	clears  int
	cursors []bool
}

func (t *fakeTerminal) ClearLine()           { t.clears++ }
func (t *fakeTerminal) ShowCursor(show bool) { t.cursors = append(t.cursors, show) }

var _ = Describe("LogObserver", func() {
	It("logs the outcome of every conversion", func() {
		core, logs := observer.New(zapcore.DebugLevel)
		dir, err := os.MkdirTemp("", "knockout-log")
		Expect(err).NotTo(HaveOccurred())
		defer os.RemoveAll(dir)
		src := filepath.Join(dir, "in.gif")
		writeGIF(src, solidGIF(2, 2, white, black))

		conv := knockout.NewConverter(knockout.WithObserver(knockout.LogObserver{Logger: zap.New(core)}))
		Expect(conv.Convert(src, filepath.Join(dir, "out.webp"), 240).OK()).To(BeTrue())
		Expect(conv.Convert(filepath.Join(dir, "missing.gif"), filepath.Join(dir, "x.webp"), 240).OK()).To(BeFalse())

		Expect(logs.FilterMessage("converting").Len()).To(Equal(1))
		Expect(logs.FilterMessage("frame done").Len()).To(Equal(2))
		done := logs.FilterMessage("converted").All()
		Expect(done).To(HaveLen(1))
		Expect(done[0].ContextMap()).To(HaveKeyWithValue("frames", int64(2)))
		failed := logs.FilterMessage("conversion failed").All()
		Expect(failed).To(HaveLen(1))
		Expect(failed[0].Level).To(Equal(zapcore.ErrorLevel))
		Expect(failed[0].ContextMap()).To(HaveKeyWithValue("kind", "not found"))
	})
})

var _ = Describe("Progress", func() {
	It("redraws one status line and leaves a summary per conversion", func() {
		var out bytes.Buffer
		term := &fakeTerminal{}
		p := knockout.NewProgress(&out, term)

		p.Started("a.gif", 2)
		p.Frame("a.gif", 1, 2)
		p.Frame("a.gif", 2, 2)
		p.Finished(knockout.Result{Source: "a.gif", Destination: "a.webp", Frames: 2})

		Expect(term.cursors).To(Equal([]bool{false, true}))
		Expect(term.clears).To(Equal(4))
		Expect(out.String()).To(HaveSuffix("ok   a.gif -> a.webp (2 frames)\n"))
	})

	It("marks failures", func() {
		var out bytes.Buffer
		p := knockout.NewProgress(&out, &fakeTerminal{})
		p.Finished(knockout.Result{Source: "b.gif", Kind: knockout.NotFound, Message: "gone"})
		Expect(out.String()).To(Equal("FAIL b.gif: gone\n"))
	})

	It("speaks xterm by default", func() {
		var out bytes.Buffer
		p := knockout.NewProgress(&out, nil)
		p.Started("a.gif", 1)
		Expect(out.String()).To(HavePrefix("\033[?25l\033[999D\033[2K"))
	})
})
