package hopping

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

// Hop is one observed step of the hopping schedule. On the transmit side
// Frequency always equals Expected; on the receive side they differ when the
// channel was tampered with.
type Hop struct {
	Index     int
	Char      rune
	Frequency float64
	Expected  float64
	OK        bool
}

// PatternSink observes hops as they happen, for visualization or assertions
// in tests.
type PatternSink interface {
	Observe(h Hop)
}

// NopSink discards all hops.
type NopSink struct{}

// Observe implements PatternSink.
func (NopSink) Observe(Hop) {}

// TextPlot collects hops and renders the schedule as an ASCII chart, hop
// index down the page and the frequency ladder across it.
type TextPlot struct {
	mu    sync.Mutex
	vocab []float64
	hops  []Hop
}

// NewTextPlot builds a plot over the given frequency ladder.
func NewTextPlot(vocab []float64) *TextPlot {
	return &TextPlot{vocab: vocab}
}

// Observe implements PatternSink.
func (p *TextPlot) Observe(h Hop) {
	p.mu.Lock()
	p.hops = append(p.hops, h)
	p.mu.Unlock()
}

// Hops returns a copy of everything observed so far.
func (p *TextPlot) Hops() []Hop {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Hop, len(p.hops))
	copy(out, p.hops)
	return out
}

// Render writes the chart. Each row is one hop: its character, the announced
// frequency, and a marker positioned on the ladder ('x' for a rejected hop).
func (p *TextPlot) Render(w io.Writer) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, err := fmt.Fprintf(w, "hop  char    MHz  %s\n", strings.Repeat("-", len(p.vocab))); err != nil {
		return err
	}
	for _, h := range p.hops {
		lane := p.laneFor(h.Frequency)
		row := []byte(strings.Repeat(".", len(p.vocab)))
		marker := byte('*')
		if !h.OK {
			marker = 'x'
		}
		if lane >= 0 {
			row[lane] = marker
		}
		ch := h.Char
		if ch < ' ' {
			ch = ' '
		}
		if _, err := fmt.Fprintf(w, "%3d  %q  %6.1f %s\n", h.Index, ch, h.Frequency, row); err != nil {
			return err
		}
	}
	return nil
}

// laneFor finds the ladder position of a frequency, or -1 when it is not on
// the ladder at all.
func (p *TextPlot) laneFor(freq float64) int {
	for i, f := range p.vocab {
		if f == freq {
			return i
		}
	}
	return -1
}
