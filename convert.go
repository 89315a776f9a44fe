package knockout

import (
	"errors"
	"fmt"
	"image"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/nfnt/resize"
	"go.uber.org/zap"
)

type Option func(c *Converter)

// WithFrameDuration sets how long every output frame is shown. Source
// delays are always ignored.
func WithFrameDuration(d time.Duration) Option {
	return func(c *Converter) {
		c.enc.Duration = d
	}
}

// WithLoopCount sets how many times the output plays; 0 loops forever.
func WithLoopCount(n int) Option {
	return func(c *Converter) {
		c.enc.LoopCount = n
	}
}

// WithQuality sets the lossy quality on libwebp's 0-100 scale. In lossless
// mode it trades encoding effort for size instead.
func WithQuality(q float32) Option {
	return func(c *Converter) {
		c.enc.Quality = q
	}
}

// WithLossless switches frames to lossless VP8L.
func WithLossless(lossless bool) Option {
	return func(c *Converter) {
		c.enc.Lossless = lossless
	}
}

// WithMaxSize shrinks frames to fit within width x height, keeping the
// aspect ratio. Zero leaves that side unbounded. Sampling is nearest
// neighbour so no new colors are made up at the edges of the knockout.
func WithMaxSize(width, height int) Option {
	return func(c *Converter) {
		c.maxWidth, c.maxHeight = width, height
	}
}

// WithPreserveAlpha keeps pixels that are already fully transparent in the
// source frame transparent whatever their color.
func WithPreserveAlpha(preserve bool) Option {
	return func(c *Converter) {
		c.preserveAlpha = preserve
	}
}

func WithObserver(o Observer) Option {
	return func(c *Converter) {
		if o == nil {
			o = nopObserver{}
		}
		c.observer = o
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Converter) {
		if l == nil {
			l = zap.NewNop()
		}
		c.logger = l
	}
}

// WithDecoder replaces the source decoder, AutoDecoder by default.
func WithDecoder(d FrameDecoder) Option {
	return func(c *Converter) {
		if d == nil {
			d = AutoDecoder{}
		}
		c.decoder = d
	}
}

// Converter turns animated images into animated WebPs with their
// near-white background knocked out. A Converter holds no per-conversion
// state and may be used from several goroutines.
type Converter struct {
	decoder       FrameDecoder
	observer      Observer
	logger        *zap.Logger
	enc           EncoderOptions
	maxWidth      int
	maxHeight     int
	preserveAlpha bool
}

func NewConverter(opts ...Option) *Converter {
	c := Converter{
		decoder:  AutoDecoder{},
		observer: nopObserver{},
		logger:   zap.NewNop(),
		enc:      DefaultEncoderOptions(),
	}
	for _, opt := range opts {
		opt(&c)
	}
	return &c
}

var defaultConverter = NewConverter()

// Convert converts src into dst with the default settings: 30ms frames,
// infinite loop, lossy quality 80.
func Convert(src, dst string, threshold int) Result {
	return defaultConverter.Convert(src, dst, threshold)
}

/*
Convert reads the animation at src, knocks out every pixel brighter than
threshold on all three color channels and writes the result to dst.

Pixels that are transparent in a GIF are decoded as (0, 0, 0, 0) and the
knockout reads color only, so by default they come out opaque black; use
WithPreserveAlpha to keep them transparent.

Failures never escape as errors or panics: they are reported through the
returned Result, whose Kind says which stage failed. dst is only replaced
once the whole animation has been encoded, so a failed conversion leaves
no partial file behind.
*/
func (c *Converter) Convert(src, dst string, threshold int) (res Result) {
	log := c.logger.With(zap.String("source", src), zap.String("destination", dst))
	defer func() {
		c.observer.Finished(res)
	}()

	if err := checkThreshold(threshold); err != nil {
		return failure(src, dst, 0, err)
	}
	if _, err := os.Stat(src); err != nil {
		kind := DecodeError
		if errors.Is(err, fs.ErrNotExist) {
			kind = NotFound
		}
		return failure(src, dst, 0, &Error{Kind: kind, Op: "stat", Path: src, Err: unwrapPathError(err)})
	}

	f, err := os.Open(src)
	if err != nil {
		return failure(src, dst, 0, &Error{Kind: DecodeError, Op: "open", Path: src, Err: unwrapPathError(err)})
	}
	defer f.Close()

	var frames int
	err = writeFileAtomic(dst, func(w io.Writer) error {
		var err error
		frames, err = c.transcode(src, f, w, threshold)
		return err
	})
	if err != nil {
		// Errors without a kind come from the destination file itself.
		var e *Error
		if !errors.As(err, &e) {
			err = &Error{Kind: EncodeError, Op: "write", Path: dst, Err: unwrapPathError(err)}
		}
		log.Debug("conversion failed", zap.Error(err))
		return failure(src, dst, frames, err)
	}
	log.Debug("conversion done", zap.Int("frames", frames))
	return success(src, dst, frames)
}

// Transcode is Convert over streams. It returns the number of frames
// written. Unlike Convert it may leave partial output in w on failure.
func (c *Converter) Transcode(r io.Reader, w io.Writer, threshold int) (int, error) {
	if err := checkThreshold(threshold); err != nil {
		return 0, err
	}
	return c.transcode("", r, w, threshold)
}

func (c *Converter) transcode(src string, r io.Reader, w io.Writer, threshold int) (int, error) {
	seq, err := c.decoder.DecodeFrames(r)
	if err != nil {
		return 0, &Error{Kind: DecodeError, Op: "decode", Path: src, Err: err}
	}
	total := seq.Len()
	c.observer.Started(src, total)
	if total == 0 {
		return 0, &Error{Kind: EncodeError, Op: "encode", Path: src, Err: ErrNoFrames}
	}

	enc, err := NewAnimationEncoder(w, c.enc)
	if err != nil {
		return 0, &Error{Kind: EncodeError, Op: "configure encoder", Err: err}
	}
	// Only the compressed bitstream of each frame outlives its iteration.
	var written int
	err = seq.Each(func(i int, frame image.Image) error {
		out, err := c.transform(frame, threshold)
		if err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
		if err := enc.Add(out); err != nil {
			return &Error{Kind: EncodeError, Op: fmt.Sprintf("encode frame %d", i), Err: err}
		}
		written = i + 1
		c.observer.Frame(src, written, total)
		return nil
	})
	if err != nil {
		return written, err
	}
	if err := enc.Close(); err != nil {
		return total, &Error{Kind: EncodeError, Op: "write animation", Err: err}
	}
	return total, nil
}

// transform runs the per-frame pipeline. Anything that panics on the way,
// typically a broken image.Image implementation, becomes a TransformError.
func (c *Converter) transform(frame image.Image, threshold int) (out *image.NRGBA, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = &Error{Kind: TransformError, Op: "transform", Err: fmt.Errorf("%v", r)}
		}
	}()
	if frame == nil {
		return nil, &Error{Kind: TransformError, Op: "transform", Err: errors.New("nil frame")}
	}
	if c.maxWidth > 0 || c.maxHeight > 0 {
		frame = c.shrink(frame)
	}
	return knockout(frame, threshold, c.preserveAlpha)
}

func (c *Converter) shrink(frame image.Image) image.Image {
	bounds := frame.Bounds()
	w, h := c.maxWidth, c.maxHeight
	if w <= 0 {
		w = bounds.Dx()
	}
	if h <= 0 {
		h = bounds.Dy()
	}
	// resize also works on several goroutines; hand it a known image type.
	return resize.Thumbnail(uint(w), uint(h), normalize(frame), resize.NearestNeighbor)
}

// unwrapPathError drops the op and path of an *fs.PathError, which Error
// already carries.
func unwrapPathError(err error) error {
	var pe *fs.PathError
	if errors.As(err, &pe) {
		return pe.Err
	}
	return err
}
