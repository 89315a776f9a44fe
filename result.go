package knockout

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies why a conversion failed.
type Kind int

const (
	None Kind = iota
	NotFound
	InvalidThreshold
	DecodeError
	TransformError
	EncodeError
	Canceled
)

var kindNames = map[Kind]string{
	None:             "ok",
	NotFound:         "not found",
	InvalidThreshold: "invalid threshold",
	DecodeError:      "decode error",
	TransformError:   "transform error",
	EncodeError:      "encode error",
	Canceled:         "canceled",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ErrNoFrames is returned when a source yields an empty frame sequence.
var ErrNoFrames = errors.New("no frames to encode")

// Error is a failure tagged with the stage of the pipeline it came from.
type Error struct {
	Kind Kind
	Op   string // e.g. "decode", "encode frame 3"
	Path string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg += ": " + e.Op
	}
	if e.Path != "" {
		msg += " " + e.Path
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf reports the Kind carried by err. Untagged errors surface while
// writing the destination, so they count as EncodeError.
func KindOf(err error) Kind {
	if err == nil {
		return None
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Canceled
	}
	return EncodeError
}

// Result is the outcome of one conversion. A zero Kind means success;
// anything else is a failure described by Message.
type Result struct {
	Source      string
	Destination string
	Kind        Kind
	Message     string
	Frames      int

	err error
}

func (r Result) OK() bool {
	return r.Kind == None
}

// Err returns the underlying failure, or nil on success.
func (r Result) Err() error {
	return r.err
}

func (r Result) String() string {
	if r.OK() {
		return fmt.Sprintf("%s -> %s (%d frames)", r.Source, r.Destination, r.Frames)
	}
	return fmt.Sprintf("%s: %s", r.Source, r.Message)
}

func success(src, dst string, frames int) Result {
	return Result{Source: src, Destination: dst, Kind: None, Frames: frames}
}

func failure(src, dst string, frames int, err error) Result {
	return Result{
		Source:      src,
		Destination: dst,
		Kind:        KindOf(err),
		Message:     err.Error(),
		Frames:      frames,
		err:         err,
	}
}
