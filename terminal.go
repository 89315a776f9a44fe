package knockout

import (
	"fmt"
	"io"
	"sync"
)

type Terminal interface {
	ClearLine()
	ShowCursor(show bool)
}

type Xterm struct {
	Writer io.Writer
}

// Move the cursor to the beginning of the line and erase it
func (term *Xterm) ClearLine() {
	term.Writer.Write([]byte("\033[999D\033[2K"))
}

func (term *Xterm) ShowCursor(show bool) {
	if show {
		term.Writer.Write([]byte("\033[?12l\033[?25h"))
	} else {
		term.Writer.Write([]byte("\033[?25l"))
	}
}

// Progress is an Observer that keeps a single status line up to date on a
// terminal and leaves one summary line behind per finished conversion.
type Progress struct {
	mu     sync.Mutex
	w      io.Writer
	t      Terminal
	active int
}

// NewProgress draws on w. If t is nil, xterm escape codes are written to w.
func NewProgress(w io.Writer, t Terminal) *Progress {
	if t == nil {
		t = &Xterm{Writer: w}
	}
	return &Progress{w: w, t: t}
}

func (p *Progress) Started(src string, frames int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active == 0 {
		p.t.ShowCursor(false)
	}
	p.active++
	p.t.ClearLine()
	fmt.Fprintf(p.w, "%s: 0/%d frames", src, frames)
}

func (p *Progress) Frame(src string, index, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.t.ClearLine()
	fmt.Fprintf(p.w, "%s: %d/%d frames", src, index, total)
}

func (p *Progress) Finished(r Result) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.t.ClearLine()
	if r.OK() {
		fmt.Fprintf(p.w, "ok   %s\n", r)
	} else {
		fmt.Fprintf(p.w, "FAIL %s\n", r)
	}
	// Failures before decoding never reach Started.
	if p.active > 0 {
		p.active--
		if p.active == 0 {
			p.t.ShowCursor(true)
		}
	}
}
