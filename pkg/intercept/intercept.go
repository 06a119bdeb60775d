// Package intercept implements an intercept-resend adversary that sits
// between the two QKD roles. It measures every photon in a basis of its own
// choosing and retransmits what it measured; all public-lane traffic passes
// through untouched. Roughly half the measurements happen in the wrong
// basis, so the legitimate parties' verification sample shows an expected
// 25% error rate and the session aborts — which is the point of the demo.
package intercept

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/pzverkov/qkd-go/internal/constants"
	qerrors "github.com/pzverkov/qkd-go/internal/errors"
	"github.com/pzverkov/qkd-go/pkg/metrics"
	"github.com/pzverkov/qkd-go/pkg/qkd"
	"github.com/pzverkov/qkd-go/pkg/wire"
)

// Strategy selects the measurement basis policy.
type Strategy int

// Measurement strategies.
const (
	// StrategyRandom measures each photon in a fresh random basis.
	StrategyRandom Strategy = iota
	// StrategyRectilinear always measures in the rectilinear basis.
	StrategyRectilinear
	// StrategyDiagonal always measures in the diagonal basis.
	StrategyDiagonal
)

// String returns the strategy name.
func (s Strategy) String() string {
	switch s {
	case StrategyRandom:
		return "random"
	case StrategyRectilinear:
		return "rectilinear"
	case StrategyDiagonal:
		return "diagonal"
	default:
		return "unknown"
	}
}

// Config parameterizes the interceptor. The zero value measures in random
// bases with a time-seeded source and stays silent.
type Config struct {
	Strategy Strategy
	Rand     *rand.Rand
	Logger   *metrics.Logger
}

// Stats summarizes one relayed session.
type Stats struct {
	// PhotonsIntercepted counts quantum frames measured and resent.
	PhotonsIntercepted int
	// MeasuredBits is what the interceptor learned, in intercept order.
	// Useless as key material once the session aborts, kept for the report.
	MeasuredBits []byte
	// ForwardFrames and BackwardFrames count public-lane frames relayed in
	// each direction.
	ForwardFrames  int
	BackwardFrames int
}

// Interceptor relays one session between two links.
type Interceptor struct {
	cfg Config
	log *metrics.Logger
}

// New builds an interceptor.
func New(cfg Config) *Interceptor {
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if cfg.Logger == nil {
		cfg.Logger = metrics.NullLogger()
	}
	return &Interceptor{cfg: cfg, log: cfg.Logger.Named("eve")}
}

// Run relays between the initiator-facing and responder-facing links until
// either side closes or ctx is cancelled. Photon frames flowing toward the
// responder are measured and re-encoded; everything else is relayed
// verbatim in both directions.
//
// Each direction is drained by exactly one goroutine; short read deadlines
// keep both loops responsive to cancellation.
func (e *Interceptor) Run(ctx context.Context, initiator, responder *wire.Link) (Stats, error) {
	_, end := metrics.StartSpan(ctx, metrics.SpanIntercept, metrics.WithAttributes(map[string]interface{}{
		"strategy": e.cfg.Strategy.String(),
	}))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		forward  forwardResult
		backward int
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		defer cancel()
		forward = e.relayForward(ctx, initiator, responder)
	}()
	go func() {
		defer wg.Done()
		defer cancel()
		backward = e.relayBackward(ctx, responder, initiator)
	}()
	wg.Wait()

	stats := Stats{
		PhotonsIntercepted: forward.intercepted,
		MeasuredBits:       forward.bits,
		ForwardFrames:      forward.relayed,
		BackwardFrames:     backward,
	}
	e.log.Info("relay finished", metrics.Fields{
		"intercepted": stats.PhotonsIntercepted,
		"forward":     stats.ForwardFrames,
		"backward":    stats.BackwardFrames,
	})
	end(forward.err)
	return stats, forward.err
}

type forwardResult struct {
	intercepted int
	relayed     int
	bits        []byte
	err         error
}

// relayForward drains initiator-to-responder traffic, measuring photons.
func (e *Interceptor) relayForward(ctx context.Context, from, to *wire.Link) forwardResult {
	var res forwardResult
	for {
		frame, err := from.ReadFrameTimeout(constants.RelayPollInterval)
		if err != nil {
			if qerrors.Is(err, qerrors.ErrTimeout) {
				if ctx.Err() != nil {
					return res
				}
				continue
			}
			if !qerrors.Is(err, qerrors.ErrConnectionClosed) {
				res.err = err
			}
			return res
		}
		if wire.IsEventFrame(frame) {
			ev, err := wire.ParseEvent(frame)
			if err != nil {
				// Unreadable photons are passed along; the responder
				// already tolerates them.
				e.log.Warn("relaying unparseable photon frame", metrics.Fields{"error": err})
			} else {
				basis := e.measureBasis()
				bit := qkd.Measure(e.cfg.Rand, basis, ev)
				res.bits = append(res.bits, bit)
				res.intercepted++
				frame = wire.EncodeEvent(wire.Event{Basis: basis, Bit: bit})
			}
		} else {
			res.relayed++
		}
		if err := to.WriteFrame(frame); err != nil {
			if !qerrors.Is(err, qerrors.ErrConnectionClosed) {
				res.err = err
			}
			return res
		}
	}
}

// relayBackward drains responder-to-initiator traffic verbatim.
func (e *Interceptor) relayBackward(ctx context.Context, from, to *wire.Link) int {
	relayed := 0
	for {
		frame, err := from.ReadFrameTimeout(constants.RelayPollInterval)
		if err != nil {
			if qerrors.Is(err, qerrors.ErrTimeout) {
				if ctx.Err() != nil {
					return relayed
				}
				continue
			}
			return relayed
		}
		if err := to.WriteFrame(frame); err != nil {
			return relayed
		}
		relayed++
	}
}

func (e *Interceptor) measureBasis() wire.Basis {
	switch e.cfg.Strategy {
	case StrategyRectilinear:
		return wire.Rectilinear
	case StrategyDiagonal:
		return wire.Diagonal
	default:
		return qkd.RandomBasis(e.cfg.Rand)
	}
}
