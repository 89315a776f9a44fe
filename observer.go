package knockout

import (
	"go.uber.org/zap"
)

// Observer receives progress events from a Converter. Calls for different
// sources may arrive concurrently when converting in batches.
type Observer interface {
	// Started is called once the source is decoded.
	Started(src string, frames int)
	// Frame is called after frame index (1-based) of total is encoded.
	Frame(src string, index, total int)
	// Finished is called exactly once per conversion, successful or not.
	Finished(r Result)
}

type nopObserver struct{}

func (nopObserver) Started(string, int)    {}
func (nopObserver) Frame(string, int, int) {}
func (nopObserver) Finished(Result)        {}

// LogObserver reports progress as structured log entries.
type LogObserver struct {
	Logger *zap.Logger
}

func (o LogObserver) Started(src string, frames int) {
	o.Logger.Info("converting", zap.String("source", src), zap.Int("frames", frames))
}

func (o LogObserver) Frame(src string, index, total int) {
	o.Logger.Debug("frame done", zap.String("source", src), zap.Int("frame", index), zap.Int("total", total))
}

func (o LogObserver) Finished(r Result) {
	if r.OK() {
		o.Logger.Info("converted",
			zap.String("source", r.Source),
			zap.String("destination", r.Destination),
			zap.Int("frames", r.Frames),
		)
		return
	}
	o.Logger.Error("conversion failed",
		zap.String("source", r.Source),
		zap.Stringer("kind", r.Kind),
		zap.Error(r.Err()),
	)
}
