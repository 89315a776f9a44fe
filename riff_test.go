package knockout

import (
	"bytes"
	"image"
	"image/color"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("RIFF chunks", func() {
	It("pads odd sized chunks without counting the pad", func() {
		var buf bytes.Buffer
		n, err := writeChunkTo("ALPH", []byte{1, 2, 3}, &buf)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(int64(12)))
		Expect(buf.Bytes()).To(Equal([]byte{'A', 'L', 'P', 'H', 3, 0, 0, 0, 1, 2, 3, 0}))
		Expect(chunk{fourCC: fccALPH, data: []byte{1, 2, 3}}.size()).To(Equal(12))
	})

	It("skips the pad byte when splitting", func() {
		var buf bytes.Buffer
		chunk{fourCC: fccALPH, data: []byte{1, 2, 3}}.WriteTo(&buf)
		chunk{fourCC: fccVP8L, data: []byte{4, 5}}.WriteTo(&buf)
		chunks, err := parseChunks(buf.Bytes())
		Expect(err).NotTo(HaveOccurred())
		Expect(chunks).To(HaveLen(2))
		Expect(chunks[1].fourCC).To(Equal(fccVP8L))
		Expect(chunks[1].data).To(Equal([]byte{4, 5}))
	})

	It("reports chunks that run past the end", func() {
		_, err := parseChunks([]byte{'V', 'P', '8', 'L', 9, 0, 0, 0, 1})
		Expect(err).To(MatchError(errMalformedRIFF))
		_, err = parseChunks([]byte{'V', 'P'})
		Expect(err).To(MatchError(errMalformedRIFF))
	})

	It("checks the file header", func() {
		_, err := parseWebP([]byte("RIFF\x04\x00\x00\x00WAVE"))
		Expect(err).To(MatchError(errMalformedRIFF))
		_, err = parseWebP([]byte("RIFF\xff\x00\x00\x00WEBP"))
		Expect(err).To(MatchError(errMalformedRIFF))

		var buf bytes.Buffer
		_, err = writeWebP(&buf, chunk{fourCC: fccANIM, data: make([]byte, 6)})
		Expect(err).NotTo(HaveOccurred())
		chunks, err := parseWebP(buf.Bytes())
		Expect(err).NotTo(HaveOccurred())
		Expect(chunks).To(HaveLen(1))
	})

	It("lays out frame headers as offsets, sizes minus one and milliseconds", func() {
		c := (&anmfChunk{X: 4, Y: 2, Width: 3, Height: 2, DurationMillis: 30, NoBlend: true}).chunk()
		Expect(c.fourCC).To(Equal(fccANMF))
		Expect(c.data[:16]).To(Equal([]byte{
			2, 0, 0,
			1, 0, 0,
			2, 0, 0,
			1, 0, 0,
			30, 0, 0,
			anmfNoBlend,
		}))
	})

	It("lays out the canvas header", func() {
		c := (&vp8xChunk{Flags: vp8xAnimation | vp8xAlpha, Width: 300, Height: 1}).chunk()
		Expect(c.data).To(Equal([]byte{0x12, 0, 0, 0, 0x2b, 0x01, 0, 0, 0, 0}))
	})
})

var _ = Describe("frame bitstreams", func() {
	fourCCs := func(lossless bool) []string {
		img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
		img.SetNRGBA(1, 1, color.NRGBA{R: 30, G: 60, B: 90, A: 255})
		opts := DefaultEncoderOptions()
		opts.Lossless = lossless
		var buf bytes.Buffer
		enc, err := NewAnimationEncoder(&buf, opts)
		Expect(err).NotTo(HaveOccurred())
		Expect(enc.Add(img)).To(Succeed())
		Expect(enc.Close()).To(Succeed())
		anim, err := ReadAnimation(&buf)
		Expect(err).NotTo(HaveOccurred())
		var names []string
		for _, c := range anim.Frames[0].bitstream {
			names = append(names, c.fourCC)
		}
		return names
	}

	It("stores lossy frames as VP8 with a separate alpha plane", func() {
		Expect(fourCCs(false)).To(Equal([]string{fccALPH, fccVP8}))
	})

	It("stores lossless frames as VP8L", func() {
		Expect(fourCCs(true)).To(Equal([]string{fccVP8L}))
	})
})
