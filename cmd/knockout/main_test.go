package main

import (
	"image"
	"image/color"
	"image/gif"
	"os"
	"path/filepath"

	"github.com/kevin-cantwell/knockout"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("parseSize", func() {
	It("reads WIDTH,HEIGHT", func() {
		w, h, err := parseSize("320, 240")
		Expect(err).NotTo(HaveOccurred())
		Expect(w).To(Equal(320))
		Expect(h).To(Equal(240))
	})

	It("allows an unbounded side", func() {
		w, h, err := parseSize("0,100")
		Expect(err).NotTo(HaveOccurred())
		Expect(w).To(BeZero())
		Expect(h).To(Equal(100))
	})

	It("rejects anything else", func() {
		for _, s := range []string{"", "320", "320x240", "a,b", "-1,10", "1,2,3"} {
			_, _, err := parseSize(s)
			Expect(err).To(HaveOccurred(), s)
		}
	})
})

var _ = Describe("fit", func() {
	It("scales to two columns and four rows per terminal cell", func() {
		img := image.NewNRGBA(image.Rect(0, 0, 400, 400))
		Expect(fit(img, 80, 25).Bounds().Size()).To(Equal(image.Pt(96, 96)))
	})

	It("never enlarges", func() {
		img := image.NewNRGBA(image.Rect(0, 0, 10, 6))
		Expect(fit(img, 80, 25).Bounds().Size()).To(Equal(image.Pt(10, 6)))
	})
})

var _ = Describe("knockout command", func() {
	var dir, src string

	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "knockout-cli")
		Expect(err).NotTo(HaveOccurred())
		src = filepath.Join(dir, "spinner.gif")

		g := &gif.GIF{}
		for _, c := range []color.Color{color.White, color.Black} {
			frame := image.NewPaletted(image.Rect(0, 0, 4, 4), color.Palette{c})
			g.Image = append(g.Image, frame)
			g.Delay = append(g.Delay, 10)
		}
		f, err := os.Create(src)
		Expect(err).NotTo(HaveOccurred())
		Expect(gif.EncodeAll(f, g)).To(Succeed())
		Expect(f.Close()).To(Succeed())
	})

	AfterEach(func() {
		os.RemoveAll(dir)
	})

	It("writes next to the input by default", func() {
		Expect(newApp().Run([]string{"knockout", "--log-level", "error", src})).To(Succeed())
		Expect(filepath.Join(dir, "spinner.webp")).To(BeAnExistingFile())
	})

	It("honours flags", func() {
		dst := filepath.Join(dir, "custom.webp")
		args := []string{"knockout", "--log-level", "error", "-o", dst, "--loop", "3", "-d", "80", "--lossless", src}
		Expect(newApp().Run(args)).To(Succeed())

		f, err := os.Open(dst)
		Expect(err).NotTo(HaveOccurred())
		defer f.Close()
		anim, err := knockout.ReadAnimation(f)
		Expect(err).NotTo(HaveOccurred())
		Expect(anim.LoopCount).To(Equal(3))
		Expect(anim.Frames).To(HaveLen(2))
		Expect(anim.Frames[1].Duration.Milliseconds()).To(Equal(int64(80)))
	})

	It("describes its own output", func() {
		Expect(newApp().Run([]string{"knockout", "--log-level", "error", src})).To(Succeed())
		Expect(newApp().Run([]string{"knockout", "inspect", filepath.Join(dir, "spinner.webp")})).To(Succeed())
	})
})
