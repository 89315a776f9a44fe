package knockout

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"time"

	xwebp "golang.org/x/image/webp"
)

// Animation describes an animated WebP file.
type Animation struct {
	Width      int
	Height     int
	Alpha      bool
	Background color.NRGBA
	LoopCount  int // 0 loops forever
	Frames     []*AnimationFrame
}

// Duration is the time one pass through all frames takes.
func (a *Animation) Duration() time.Duration {
	var d time.Duration
	for _, f := range a.Frames {
		d += f.Duration
	}
	return d
}

// AnimationFrame is one ANMF entry. Its bitstream stays compressed until
// Decode is called.
type AnimationFrame struct {
	X, Y              int
	Width, Height     int
	Duration          time.Duration
	Blend             bool
	DisposeBackground bool

	bitstream []chunk
}

// HasAlpha reports whether the frame carries an alpha plane.
func (f *AnimationFrame) HasAlpha() bool {
	for _, c := range f.bitstream {
		if c.fourCC == fccALPH || c.fourCC == fccVP8L {
			return true
		}
	}
	return false
}

// Decode rebuilds the frame as a still WebP and decodes it.
func (f *AnimationFrame) Decode() (image.Image, error) {
	chunks := f.bitstream
	for _, c := range f.bitstream {
		if c.fourCC == fccALPH {
			header := &vp8xChunk{Flags: vp8xAlpha, Width: f.Width, Height: f.Height}
			chunks = append([]chunk{header.chunk()}, f.bitstream...)
			break
		}
	}
	var buf bytes.Buffer
	if _, err := writeWebP(&buf, chunks...); err != nil {
		return nil, err
	}
	return xwebp.Decode(&buf)
}

// ReadAnimation parses an animated WebP. Frame bitstreams are kept as they
// are; use AnimationFrame.Decode to get pixels.
func ReadAnimation(r io.Reader) (*Animation, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	chunks, err := parseWebP(b)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 || chunks[0].fourCC != fccVP8X {
		return nil, errors.New("not an extended WebP file")
	}
	header, err := parseVP8X(chunks[0].data)
	if err != nil {
		return nil, err
	}
	if header.Flags&vp8xAnimation == 0 {
		return nil, errors.New("WebP file is not animated")
	}

	anim := &Animation{
		Width:  header.Width,
		Height: header.Height,
		Alpha:  header.Flags&vp8xAlpha != 0,
	}
	for _, c := range chunks[1:] {
		switch c.fourCC {
		case fccANIM:
			params, err := parseANIM(c.data)
			if err != nil {
				return nil, err
			}
			anim.Background = params.Background
			anim.LoopCount = params.LoopCount
		case fccANMF:
			frame, err := parseANMF(c.data)
			if err != nil {
				return nil, fmt.Errorf("frame %d: %w", len(anim.Frames), err)
			}
			anim.Frames = append(anim.Frames, &AnimationFrame{
				X:                 frame.X,
				Y:                 frame.Y,
				Width:             frame.Width,
				Height:            frame.Height,
				Duration:          time.Duration(frame.DurationMillis) * time.Millisecond,
				Blend:             !frame.NoBlend,
				DisposeBackground: frame.DisposeBackground,
				bitstream:         frame.Bitstream,
			})
		}
	}
	return anim, nil
}
