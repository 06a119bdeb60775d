package hopping

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/pzverkov/qkd-go/internal/constants"
	qerrors "github.com/pzverkov/qkd-go/internal/errors"
	"github.com/pzverkov/qkd-go/pkg/metrics"
	"github.com/pzverkov/qkd-go/pkg/wire"
)

// Frame bodies for the hopping phase. Character frames are "<char>,<freq>"
// with the frequency printed to one decimal, matching the vocabulary.
const (
	frameReady = "FH_READY"
	frameAck   = "FH_ACK"
	frameEnd   = "FH_END"
)

// freqTolerance bounds how far an announced frequency may drift from the
// locally derived schedule before the character is rejected.
const freqTolerance = 0.01

// Transmitter sends a message across the hopping channel, one character per
// hop of the seed-derived schedule.
type Transmitter struct {
	link  *wire.Link
	seed  uint32
	vocab []float64
	log   *metrics.Logger
	sink  PatternSink
}

// NewTransmitter builds a transmitter over an established link. A nil vocab
// selects constants.Frequencies; a nil sink discards the schedule.
func NewTransmitter(link *wire.Link, seed uint32, vocab []float64, logger *metrics.Logger, sink PatternSink) *Transmitter {
	if vocab == nil {
		vocab = constants.Frequencies
	}
	if logger == nil {
		logger = metrics.NullLogger()
	}
	if sink == nil {
		sink = NopSink{}
	}
	return &Transmitter{link: link, seed: seed, vocab: vocab, log: logger.Named("hop.tx"), sink: sink}
}

// Transmit announces readiness, waits for the receiver's acknowledgement,
// then sends each character on its scheduled frequency and terminates the
// stream.
func (t *Transmitter) Transmit(ctx context.Context, message string) error {
	_, end := metrics.StartSpan(ctx, metrics.SpanHopTransmit, metrics.WithAttributes(map[string]interface{}{
		"chars": len(message),
	}))
	err := t.transmit(message)
	end(err)
	return err
}

func (t *Transmitter) transmit(message string) error {
	runes := []rune(message)
	pattern, err := Pattern(t.seed, t.vocab, len(runes))
	if err != nil {
		return err
	}
	if err := t.link.WriteFrame(frameReady); err != nil {
		return err
	}
	reply, err := t.link.ReadFrame()
	if err != nil {
		return err
	}
	if reply != frameAck {
		return fmt.Errorf("%w: got %q while expecting %s", qerrors.ErrProtocolViolation, reply, frameAck)
	}
	t.log.Info("hopping channel open", metrics.Fields{"chars": len(runes), "frequencies": len(t.vocab)})
	for i, ch := range runes {
		if err := t.link.WriteFrame(encodeHop(ch, pattern[i])); err != nil {
			return err
		}
		t.sink.Observe(Hop{Index: i, Char: ch, Frequency: pattern[i], Expected: pattern[i], OK: true})
	}
	if err := t.link.WriteFrame(frameEnd); err != nil {
		return err
	}
	t.log.Info("transmission complete", metrics.Fields{"chars": len(runes)})
	return nil
}

// Receiver reads a message off the hopping channel, deriving its own copy of
// the schedule and rejecting any character whose announced frequency strays
// from it.
type Receiver struct {
	link  *wire.Link
	seed  uint32
	vocab []float64
	log   *metrics.Logger
	sink  PatternSink
}

// NewReceiver builds a receiver over an established link. A nil vocab
// selects constants.Frequencies; a nil sink discards the schedule.
func NewReceiver(link *wire.Link, seed uint32, vocab []float64, logger *metrics.Logger, sink PatternSink) *Receiver {
	if vocab == nil {
		vocab = constants.Frequencies
	}
	if logger == nil {
		logger = metrics.NullLogger()
	}
	if sink == nil {
		sink = NopSink{}
	}
	return &Receiver{link: link, seed: seed, vocab: vocab, log: logger.Named("hop.rx"), sink: sink}
}

// Receive waits for the transmitter's ready frame, acknowledges it, and
// collects characters until the end-of-stream frame. A character whose
// frequency disagrees with the local schedule is recorded as '?'.
func (r *Receiver) Receive(ctx context.Context) (string, error) {
	_, end := metrics.StartSpan(ctx, metrics.SpanHopReceive)
	msg, err := r.receive()
	end(err)
	return msg, err
}

func (r *Receiver) receive() (string, error) {
	first, err := r.link.ReadFrame()
	if err != nil {
		return "", err
	}
	if first != frameReady {
		return "", fmt.Errorf("%w: got %q while expecting %s", qerrors.ErrProtocolViolation, first, frameReady)
	}
	if err := r.link.WriteFrame(frameAck); err != nil {
		return "", err
	}
	stream, err := NewPatternStream(r.seed, r.vocab)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	rejected := 0
	for i := 0; ; i++ {
		frame, err := r.link.ReadFrame()
		if err != nil {
			return "", err
		}
		if frame == frameEnd {
			if rejected > 0 {
				r.log.Warn("message received with rejected characters", metrics.Fields{
					"chars": i, "rejected": rejected,
				})
			} else {
				r.log.Info("message received", metrics.Fields{"chars": i})
			}
			return b.String(), nil
		}
		expected := stream.Next()
		ch, freq, err := parseHop(frame)
		if err != nil {
			r.log.Warn("malformed hop frame", metrics.Fields{"hop": i, "error": err})
			b.WriteRune('?')
			rejected++
			r.sink.Observe(Hop{Index: i, Char: '?', Expected: expected})
			continue
		}
		ok := math.Abs(freq-expected) <= freqTolerance
		if !ok {
			r.log.Warn("frequency mismatch", metrics.Fields{
				"hop": i, "announced": freq, "expected": expected,
			})
			ch = '?'
			rejected++
		}
		b.WriteRune(ch)
		r.sink.Observe(Hop{Index: i, Char: ch, Frequency: freq, Expected: expected, OK: ok})
	}
}

func encodeHop(ch rune, freq float64) string {
	return fmt.Sprintf("%c,%.1f", ch, freq)
}

// parseHop splits a character frame at its last comma, so a literal comma
// character stays transmittable.
func parseHop(frame string) (rune, float64, error) {
	i := strings.LastIndexByte(frame, ',')
	if i <= 0 {
		return 0, 0, fmt.Errorf("%w: hop frame %q", qerrors.ErrMalformedFrame, frame)
	}
	runes := []rune(frame[:i])
	if len(runes) != 1 {
		return 0, 0, fmt.Errorf("%w: hop frame %q", qerrors.ErrMalformedFrame, frame)
	}
	freq, err := strconv.ParseFloat(frame[i+1:], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: hop frame %q", qerrors.ErrMalformedFrame, frame)
	}
	return runes[0], freq, nil
}
