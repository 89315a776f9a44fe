package knockout

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"io"
	"time"

	"golang.org/x/image/draw"
)

const (
	// MaxCanvasPixels bounds the area of a decoded canvas. A GIF header can
	// claim a 65535x65535 screen in a few bytes, so sizes are checked
	// before anything is allocated for them.
	MaxCanvasPixels = 1 << 25

	// MaxAnimationPixels bounds canvas area times frame count.
	MaxAnimationPixels = 1 << 32
)

// ErrCanvasTooLarge is returned for sources whose canvas exceeds
// MaxDimension, MaxCanvasPixels or MaxAnimationPixels.
var ErrCanvasTooLarge = errors.New("canvas too large")

func checkCanvas(width, height, frames int) error {
	if width > MaxDimension || height > MaxDimension {
		return fmt.Errorf("%w: %dx%d exceeds %d per side", ErrCanvasTooLarge, width, height, MaxDimension)
	}
	pixels := int64(width) * int64(height)
	if pixels > MaxCanvasPixels {
		return fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrCanvasTooLarge, width, height, MaxCanvasPixels)
	}
	if pixels*int64(frames) > MaxAnimationPixels {
		return fmt.Errorf("%w: %d frames of %dx%d", ErrCanvasTooLarge, frames, width, height)
	}
	return nil
}

// Sequence is a decoded animation: an ordered list of frames that all share
// the dimensions of the logical canvas.
type Sequence struct {
	Width  int
	Height int
	// Frames holds eagerly decoded frames. Sequences built by Composite
	// render their frames on demand instead; Each visits both kinds.
	Frames    []image.Image
	Delays    []time.Duration // as stored in the source; informational only
	LoopCount int             // as stored in the source; informational only

	giff *gif.GIF
}

// Len returns the number of frames.
func (s *Sequence) Len() int {
	if s.giff != nil {
		return len(s.giff.Image)
	}
	return len(s.Frames)
}

// Each calls fn for every frame in order and stops at the first error.
// Rendered frames share one buffer that is only valid during the call;
// fn must copy what it wants to keep.
func (s *Sequence) Each(fn func(index int, frame image.Image) error) error {
	if s.giff != nil {
		return s.render(fn)
	}
	for i, frame := range s.Frames {
		if err := fn(i, frame); err != nil {
			return err
		}
	}
	return nil
}

// FrameDecoder turns an encoded image into a frame sequence.
type FrameDecoder interface {
	DecodeFrames(r io.Reader) (*Sequence, error)
}

// GIFDecoder decodes every frame of an animated GIF.
type GIFDecoder struct{}

func (GIFDecoder) DecodeFrames(r io.Reader) (*Sequence, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return decodeGIF(data)
}

func decodeGIF(data []byte) (*Sequence, error) {
	// The decoder keeps frames inside the logical screen, so checking the
	// header bounds every allocation DecodeAll makes per frame.
	config, err := gif.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if err := checkCanvas(config.Width, config.Height, 1); err != nil {
		return nil, err
	}
	giff, err := gif.DecodeAll(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	seq := Composite(giff)
	if err := checkCanvas(seq.Width, seq.Height, seq.Len()); err != nil {
		return nil, err
	}
	return seq, nil
}

/*
Composite renders each frame of giff the way a viewer would show it: drawn
over whatever the previous frames left on the canvas. Transparent palette
entries let the canvas show through and disposal methods are respected, so
every frame the returned sequence yields is a complete picture of the
logical screen rather than the sub-rectangle stored in the file.

Nothing is drawn until Each is called, and then only into a single canvas
plus one saved copy for frames disposed to previous.
*/
func Composite(giff *gif.GIF) *Sequence {
	bounds := canvasBounds(giff)
	seq := &Sequence{
		Width:     bounds.Dx(),
		Height:    bounds.Dy(),
		Delays:    make([]time.Duration, len(giff.Image)),
		LoopCount: giff.LoopCount,
		giff:      giff,
	}
	for i := range giff.Image {
		if i < len(giff.Delay) {
			seq.Delays[i] = time.Duration(giff.Delay[i]) * time.Second / 100
		}
	}
	return seq
}

func canvasBounds(giff *gif.GIF) image.Rectangle {
	bounds := image.Rect(0, 0, giff.Config.Width, giff.Config.Height)
	for _, frame := range giff.Image {
		bounds = bounds.Union(frame.Bounds())
	}
	return bounds
}

func (s *Sequence) render(fn func(int, image.Image) error) error {
	if err := checkCanvas(s.Width, s.Height, 1); err != nil {
		return err
	}
	canvas := image.NewNRGBA(canvasBounds(s.giff))
	var previous *image.NRGBA
	for i, frame := range s.giff.Image {
		var disposal byte
		if i < len(s.giff.Disposal) {
			disposal = s.giff.Disposal[i]
		}

		// Dispose previous means draw, show, then undo.
		if disposal == gif.DisposalPrevious {
			if previous == nil {
				previous = image.NewNRGBA(canvas.Rect)
			}
			copy(previous.Pix, canvas.Pix)
		}

		draw.Draw(canvas, frame.Bounds(), frame, frame.Bounds().Min, draw.Over)
		if err := fn(i, canvas); err != nil {
			return err
		}

		switch disposal {
		case gif.DisposalBackground:
			draw.Draw(canvas, frame.Bounds(), image.Transparent, image.Point{}, draw.Src)
		case gif.DisposalPrevious:
			canvas, previous = previous, canvas
		}
	}
	return nil
}
