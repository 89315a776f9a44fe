/*
Package knockout removes the near-white background of animated images.

Every frame of the source is normalized to non-premultiplied RGBA. A pixel
whose red, green and blue channels are all strictly greater than the
threshold is background and becomes fully transparent; every other pixel
becomes fully opaque. Color channels are never touched. The frames are then
written out as an animated WebP with a fixed frame duration and infinite
looping:

	res := knockout.Convert("spinner.gif", "spinner.webp", knockout.DefaultThreshold)
	if !res.OK() {
		log.Fatal(res.Message)
	}
*/
package knockout

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"
)

// DefaultThreshold classifies anything brighter than 240 on all three
// channels as background.
const DefaultThreshold = 240

const (
	transparent = 0x00
	opaque      = 0xff
)

func checkThreshold(threshold int) error {
	if threshold < 0 || threshold > 255 {
		return &Error{Kind: InvalidThreshold, Err: fmt.Errorf("%d is outside [0, 255]", threshold)}
	}
	return nil
}

// IsBackground reports whether a color is bright enough to be knocked out.
// The comparison is strict: a channel equal to threshold keeps the pixel.
func IsBackground(r, g, b uint8, threshold int) bool {
	return int(r) > threshold && int(g) > threshold && int(b) > threshold
}

// AlphaMask classifies every pixel of img, row-major from the top left
// corner of its bounds. True marks background. Alpha is ignored.
func AlphaMask(img *image.NRGBA, threshold int) []bool {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	mask := make([]bool, 0, w*h)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		row := img.Pix[img.PixOffset(bounds.Min.X, y):]
		for x := 0; x < w; x++ {
			p := row[x*4 : x*4+3]
			mask = append(mask, IsBackground(p[0], p[1], p[2], threshold))
		}
	}
	return mask
}

// ApplyMask rewrites the alpha channel of img in place: 0 where the mask is
// set, 255 elsewhere.
func ApplyMask(img *image.NRGBA, mask []bool) error {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if len(mask) != w*h {
		return &Error{
			Kind: TransformError,
			Op:   "apply mask",
			Err:  fmt.Errorf("mask has %d entries for a %dx%d frame", len(mask), w, h),
		}
	}
	i := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		row := img.Pix[img.PixOffset(bounds.Min.X, y):]
		for x := 0; x < w; x++ {
			if mask[i] {
				row[x*4+3] = transparent
			} else {
				row[x*4+3] = opaque
			}
			i++
		}
	}
	return nil
}

// Knockout returns a copy of img with its background made transparent.
// The result always starts at (0, 0) and has the dimensions of img.
// Source alpha is ignored: a fully transparent pixel whose color is dark,
// like a GIF's transparent index, comes out opaque.
func Knockout(img image.Image, threshold int) (*image.NRGBA, error) {
	if err := checkThreshold(threshold); err != nil {
		return nil, err
	}
	return knockout(img, threshold, false)
}

func knockout(img image.Image, threshold int, preserveAlpha bool) (*image.NRGBA, error) {
	if img == nil {
		return nil, &Error{Kind: TransformError, Op: "normalize", Err: fmt.Errorf("nil frame")}
	}
	frame := normalize(img)
	mask := AlphaMask(frame, threshold)
	if preserveAlpha {
		markTransparent(frame, mask)
	}
	if err := ApplyMask(frame, mask); err != nil {
		return nil, err
	}
	return frame, nil
}

// normalize copies img into a non-premultiplied RGBA image anchored at the
// origin, synthesizing an opaque alpha channel for formats without one.
func normalize(img image.Image) *image.NRGBA {
	switch img.(type) {
	case *image.NRGBA, *image.NRGBA64, *image.RGBA, *image.RGBA64,
		*image.Paletted, *image.Gray, *image.Gray16, *image.YCbCr, *image.NYCbCrA, *image.CMYK:
		return imaging.Clone(img)
	}
	// imaging scans on worker goroutines. Other image.Image implementations
	// are read here so that a panic in At stays recoverable by the caller.
	bounds := img.Bounds()
	frame := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(frame, frame.Bounds(), img, bounds.Min, draw.Src)
	return frame
}

// markTransparent adds pixels that are already fully transparent to mask.
func markTransparent(img *image.NRGBA, mask []bool) {
	bounds := img.Bounds()
	w := bounds.Dx()
	i := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		row := img.Pix[img.PixOffset(bounds.Min.X, y):]
		for x := 0; x < w && i < len(mask); x++ {
			if row[x*4+3] == transparent {
				mask[i] = true
			}
			i++
		}
	}
}
