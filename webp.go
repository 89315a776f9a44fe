package knockout

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"time"

	"github.com/kolesa-team/go-webp/encoder"
	"github.com/kolesa-team/go-webp/webp"
)

const (
	// MaxDimension is the largest frame side libwebp will encode.
	MaxDimension = 16383

	maxDurationMillis = 1<<24 - 1
	maxLoopCount      = 1<<16 - 1
)

// VP8X feature flags.
const (
	vp8xAnimation = 1 << 1
	vp8xAlpha     = 1 << 4
)

// ANMF flag bits.
const (
	anmfDispose = 1 << 0
	anmfNoBlend = 1 << 1
)

// vp8xChunk is the extended format header. It must be the first chunk of
// any file carrying alpha or animation.
type vp8xChunk struct {
	Flags  byte
	Width  int // Canvas width
	Height int // Canvas height
}

func (c *vp8xChunk) chunk() chunk {
	buf := make([]byte, 10)
	buf[0] = c.Flags
	putUint24(buf[4:7], uint32(c.Width-1))
	putUint24(buf[7:10], uint32(c.Height-1))
	return chunk{fourCC: fccVP8X, data: buf}
}

func parseVP8X(b []byte) (*vp8xChunk, error) {
	if len(b) < 10 {
		return nil, fmt.Errorf("%w: VP8X chunk is %d bytes", errMalformedRIFF, len(b))
	}
	return &vp8xChunk{
		Flags:  b[0],
		Width:  int(readUint24(b[4:7])) + 1,
		Height: int(readUint24(b[7:10])) + 1,
	}, nil
}

// animChunk holds the global animation parameters.
type animChunk struct {
	Background color.NRGBA
	LoopCount  int // 0 loops forever
}

func (c *animChunk) chunk() chunk {
	buf := make([]byte, 6)
	// Stored as blue, green, red, alpha.
	buf[0] = c.Background.B
	buf[1] = c.Background.G
	buf[2] = c.Background.R
	buf[3] = c.Background.A
	buf[4] = uint8(c.LoopCount)
	buf[5] = uint8(c.LoopCount >> 8)
	return chunk{fourCC: fccANIM, data: buf}
}

func parseANIM(b []byte) (*animChunk, error) {
	if len(b) < 6 {
		return nil, fmt.Errorf("%w: ANIM chunk is %d bytes", errMalformedRIFF, len(b))
	}
	return &animChunk{
		Background: color.NRGBA{R: b[2], G: b[1], B: b[0], A: b[3]},
		LoopCount:  int(b[4]) | int(b[5])<<8,
	}, nil
}

// anmfChunk is one frame of the animation together with its bitstream
// chunks (ALPH + "VP8 ", or VP8L).
type anmfChunk struct {
	X, Y              int // must be even
	Width, Height     int
	DurationMillis    int
	NoBlend           bool
	DisposeBackground bool
	Bitstream         []chunk
}

func (c *anmfChunk) chunk() chunk {
	var buf bytes.Buffer
	header := [16]byte{}
	putUint24(header[0:3], uint32(c.X/2))
	putUint24(header[3:6], uint32(c.Y/2))
	putUint24(header[6:9], uint32(c.Width-1))
	putUint24(header[9:12], uint32(c.Height-1))
	putUint24(header[12:15], uint32(c.DurationMillis))
	if c.NoBlend {
		header[15] |= anmfNoBlend
	}
	if c.DisposeBackground {
		header[15] |= anmfDispose
	}
	buf.Write(header[:])
	for _, bc := range c.Bitstream {
		bc.WriteTo(&buf)
	}
	return chunk{fourCC: fccANMF, data: buf.Bytes()}
}

func parseANMF(b []byte) (*anmfChunk, error) {
	if len(b) < 16 {
		return nil, fmt.Errorf("%w: ANMF chunk is %d bytes", errMalformedRIFF, len(b))
	}
	sub, err := parseChunks(b[16:])
	if err != nil {
		return nil, err
	}
	c := &anmfChunk{
		X:                 2 * int(readUint24(b[0:3])),
		Y:                 2 * int(readUint24(b[3:6])),
		Width:             int(readUint24(b[6:9])) + 1,
		Height:            int(readUint24(b[9:12])) + 1,
		DurationMillis:    int(readUint24(b[12:15])),
		NoBlend:           b[15]&anmfNoBlend != 0,
		DisposeBackground: b[15]&anmfDispose != 0,
	}
	c.Bitstream = bitstreamChunks(sub)
	return c, nil
}

// bitstreamChunks keeps the image data chunks of a still WebP and drops
// headers and metadata.
func bitstreamChunks(chunks []chunk) []chunk {
	var out []chunk
	for _, c := range chunks {
		switch c.fourCC {
		case fccALPH, fccVP8, fccVP8L:
			out = append(out, c)
		}
	}
	return out
}

// EncoderOptions controls the animated WebP output.
type EncoderOptions struct {
	Quality    float32       // 0-100, libwebp scale; effort when lossless
	Lossless   bool          // VP8L frames instead of lossy VP8
	Duration   time.Duration // display time of every frame
	LoopCount  int           // 0 loops forever
	Background color.NRGBA   // canvas color hint for players
}

// DefaultEncoderOptions returns lossy quality 80, 30ms per frame, looping
// forever over a transparent background.
func DefaultEncoderOptions() EncoderOptions {
	return EncoderOptions{
		Quality:  80,
		Duration: 30 * time.Millisecond,
	}
}

func (o EncoderOptions) validate() error {
	if o.Quality < 0 || o.Quality > 100 {
		return fmt.Errorf("quality %v is outside [0, 100]", o.Quality)
	}
	if ms := o.Duration.Milliseconds(); ms < 0 || ms > maxDurationMillis {
		return fmt.Errorf("frame duration %v is outside [0, %dms]", o.Duration, maxDurationMillis)
	}
	if o.LoopCount < 0 || o.LoopCount > maxLoopCount {
		return fmt.Errorf("loop count %d is outside [0, %d]", o.LoopCount, maxLoopCount)
	}
	return nil
}

/*
AnimationEncoder writes an animated WebP. Each frame handed to Add is
compressed right away by libwebp and only its bitstream is kept; the
container is written on Close, once the canvas size, alpha usage and frame
count are known.

Every frame covers the whole canvas, is drawn without blending and is left
in place for the next frame, so players show exactly the pixels that were
added, transparent ones included.
*/
type AnimationEncoder struct {
	w      io.Writer
	opts   EncoderOptions
	codec  *encoder.Options
	width  int
	height int
	alpha  bool
	frames []chunk
	closed bool
}

func NewAnimationEncoder(w io.Writer, opts EncoderOptions) (*AnimationEncoder, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	var (
		codec *encoder.Options
		err   error
	)
	if opts.Lossless {
		codec, err = encoder.NewLosslessEncoderOptions(encoder.PresetDefault, losslessLevel(opts.Quality))
	} else {
		codec, err = encoder.NewLossyEncoderOptions(encoder.PresetDefault, opts.Quality)
	}
	if err != nil {
		return nil, fmt.Errorf("webp options: %w", err)
	}
	return &AnimationEncoder{
		w:     w,
		opts:  opts,
		codec: codec,
	}, nil
}

// losslessLevel maps quality onto libwebp's lossless effort levels 0-9.
func losslessLevel(quality float32) int {
	return int(quality) * 9 / 100
}

// Len returns the number of frames added so far.
func (e *AnimationEncoder) Len() int {
	return len(e.frames)
}

// Add compresses img and appends it to the animation. All frames must have
// the dimensions of the first one.
func (e *AnimationEncoder) Add(img *image.NRGBA) error {
	if e.closed {
		return errors.New("add to closed encoder")
	}
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if len(e.frames) == 0 {
		if w < 1 || h < 1 || w > MaxDimension || h > MaxDimension {
			return fmt.Errorf("frame size %dx%d is outside [1, %d]", w, h, MaxDimension)
		}
		e.width, e.height = w, h
	} else if w != e.width || h != e.height {
		return fmt.Errorf("frame size %dx%d does not match canvas %dx%d", w, h, e.width, e.height)
	}

	var buf bytes.Buffer
	if err := webp.Encode(&buf, img, e.codec); err != nil {
		return fmt.Errorf("libwebp: %w", err)
	}
	still, err := parseWebP(buf.Bytes())
	if err != nil {
		return err
	}
	bitstream := bitstreamChunks(still)
	if len(bitstream) == 0 {
		return fmt.Errorf("%w: encoded frame has no image data", errMalformedRIFF)
	}

	if !img.Opaque() {
		e.alpha = true
	}
	frame := &anmfChunk{
		Width:          w,
		Height:         h,
		DurationMillis: int(e.opts.Duration.Milliseconds()),
		NoBlend:        true,
		Bitstream:      bitstream,
	}
	e.frames = append(e.frames, frame.chunk())
	return nil
}

// Close writes the container. It fails with ErrNoFrames when nothing was
// added, in which case nothing is written.
func (e *AnimationEncoder) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	if len(e.frames) == 0 {
		return ErrNoFrames
	}

	flags := byte(vp8xAnimation)
	if e.alpha {
		flags |= vp8xAlpha
	}
	header := &vp8xChunk{Flags: flags, Width: e.width, Height: e.height}
	anim := &animChunk{Background: e.opts.Background, LoopCount: e.opts.LoopCount}

	chunks := make([]chunk, 0, len(e.frames)+2)
	chunks = append(chunks, header.chunk(), anim.chunk())
	chunks = append(chunks, e.frames...)
	e.frames = nil
	_, err := writeWebP(e.w, chunks...)
	return err
}
