// Package qkd implements the two BB84 roles of the key exchange: the
// initiator (Sender) who prepares and transmits photons, and the responder
// (Receiver) who measures them. Both sides sift on matching bases, estimate
// the error rate from a disclosed sample, and either commit a shared key and
// hopping seed or abort.
//
// A session is driven by Run on either role; every outcome, including
// negotiated failures like an exceeded error rate, is reported as a Result
// with a Status, plus an error chain carrying the matching sentinel from
// internal/errors.
package qkd

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/pzverkov/qkd-go/internal/constants"
	qerrors "github.com/pzverkov/qkd-go/internal/errors"
	"github.com/pzverkov/qkd-go/pkg/hopping"
	"github.com/pzverkov/qkd-go/pkg/metrics"
	"github.com/pzverkov/qkd-go/pkg/wire"
)

// Config parameterizes one session. The zero value is usable: all fields
// default sensibly except LossRate, where zero genuinely means a lossless
// channel.
type Config struct {
	// PhotonCount is how many photons the initiator prepares. Defaults to
	// KeyLength * constants.DefaultPhotonFactor.
	PhotonCount int

	// KeyLength is the desired final key length in bits.
	KeyLength int

	// LossRate is the simulated probability that a prepared photon never
	// reaches the channel. Zero means no loss.
	LossRate float64

	// QBERThreshold is the maximum tolerated estimated error rate.
	QBERThreshold float64

	// Rand supplies all per-role randomness (bases, bits, loss, sampling).
	// Inject a seeded source for deterministic sessions; defaults to a
	// time-seeded source.
	Rand *rand.Rand

	// Logger defaults to the silent logger.
	Logger *metrics.Logger
}

func (c Config) withDefaults() Config {
	if c.KeyLength <= 0 {
		c.KeyLength = constants.DefaultKeyLength
	}
	if c.PhotonCount <= 0 {
		c.PhotonCount = c.KeyLength * constants.DefaultPhotonFactor
	}
	if c.QBERThreshold <= 0 {
		c.QBERThreshold = constants.DefaultQBERThreshold
	}
	if c.Rand == nil {
		c.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if c.Logger == nil {
		c.Logger = metrics.NullLogger()
	}
	return c
}

func (c Config) validate() error {
	if c.LossRate < 0 || c.LossRate >= 1 {
		return fmt.Errorf("qkd: loss rate %v outside [0,1)", c.LossRate)
	}
	if c.QBERThreshold >= 1 {
		return fmt.Errorf("qkd: error-rate threshold %v outside (0,1)", c.QBERThreshold)
	}
	return nil
}

// Status classifies the outcome of a session.
type Status int

// Session outcomes.
const (
	// StatusSuccess means both sides committed a key.
	StatusSuccess Status = iota
	// StatusErrorRateExceeded means verification estimated a QBER above
	// threshold and the session aborted.
	StatusErrorRateExceeded
	// StatusKeyTooShort means verification passed but the surviving bits
	// cannot satisfy the requested key length.
	StatusKeyTooShort
	// StatusAborted means the session terminated on an explicit peer ABORT
	// or a protocol violation.
	StatusAborted
	// StatusNetworkError means the transport failed mid-session.
	StatusNetworkError
)

// String returns a short outcome name.
func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusErrorRateExceeded:
		return "error-rate-exceeded"
	case StatusKeyTooShort:
		return "key-too-short"
	case StatusAborted:
		return "aborted"
	case StatusNetworkError:
		return "network-error"
	default:
		return "unknown"
	}
}

// Stats are per-session counters, populated as far as the session got.
type Stats struct {
	PhotonsPrepared int
	PhotonsSent     int
	PhotonsReceived int
	PeerBases       int
	Matches         int
	SiftedBits      int
	SampleSize      int
	Mismatches      int
	ErrorRate       float64
	FinalKeyBits    int

	// SeedFallback is set when the final key was too short to derive the
	// hopping seed deterministically and a random seed was used instead.
	SeedFallback bool
}

// Result is the outcome of a session. Key and Seed are only meaningful when
// Status is StatusSuccess.
type Result struct {
	Status Status
	Reason string
	Key    []byte // one bit per byte, values 0 or 1
	Seed   uint32
	Stats  Stats
}

// KeyString renders the key as a '0'/'1' string.
func (r Result) KeyString() string {
	return wire.EncodeBits(r.Key)
}

// RandomBasis draws a uniform basis choice.
func RandomBasis(rng *rand.Rand) wire.Basis {
	return wire.Basis(rng.Intn(2))
}

// Measure applies the BB84 measurement rule: a matching basis yields the
// encoded bit, a mismatched basis yields a uniformly random bit. The
// interceptor uses the same rule, which is what makes intercept-resend
// statistically visible.
func Measure(rng *rand.Rand, basis wire.Basis, ev wire.Event) byte {
	if basis == ev.Basis {
		return ev.Bit
	}
	return byte(rng.Intn(2))
}

// expectMessage reads the next public-lane message and requires it to carry
// tag. A peer ABORT surfaces as an AbortError; any other tag is a protocol
// violation.
func expectMessage(link *wire.Link, tag wire.Tag) (wire.Message, error) {
	msg, err := link.ReceiveMessage()
	if err != nil {
		return wire.Message{}, err
	}
	switch msg.Tag {
	case tag:
		return msg, nil
	case wire.TagAbort:
		return wire.Message{}, &qerrors.AbortError{Reason: msg.Payload}
	default:
		return wire.Message{}, fmt.Errorf("%w: got %s while expecting %s",
			qerrors.ErrProtocolViolation, msg.Tag, tag)
	}
}

// notifyAbort sends a best-effort ABORT with a short deadline so teardown
// never blocks on a dead peer.
func notifyAbort(link *wire.Link, reason string) {
	prev := link.Timeout()
	link.SetTimeout(constants.AbortNotifyTimeout)
	_ = link.SendMessage(wire.TagAbort, reason)
	link.SetTimeout(prev)
}

// shouldNotifyAbort reports whether a failure is worth announcing to the
// peer. Peer-initiated aborts and dead transports are not; neither is a
// too-short key, which both sides detect independently after confirmation.
func shouldNotifyAbort(err error) bool {
	return !qerrors.Is(err, qerrors.ErrAborted) &&
		!qerrors.Is(err, qerrors.ErrConnectionClosed) &&
		!qerrors.Is(err, qerrors.ErrTimeout) &&
		!qerrors.Is(err, qerrors.ErrKeyTooShort)
}

// resultFromError maps a session error onto its Result.
func resultFromError(stats Stats, err error) Result {
	res := Result{Reason: err.Error(), Stats: stats}
	switch {
	case qerrors.Is(err, qerrors.ErrAborted):
		res.Status = StatusAborted
		var abort *qerrors.AbortError
		if qerrors.As(err, &abort) {
			res.Reason = abort.Reason
		}
	case qerrors.Is(err, qerrors.ErrErrorRateExceeded):
		res.Status = StatusErrorRateExceeded
	case qerrors.Is(err, qerrors.ErrKeyTooShort):
		res.Status = StatusKeyTooShort
	case qerrors.Is(err, qerrors.ErrConnectionClosed), qerrors.Is(err, qerrors.ErrTimeout):
		res.Status = StatusNetworkError
	default:
		res.Status = StatusAborted
	}
	return res
}

// finalizeKey drops the disclosed sample from the sifted key, enforces the
// requested length, and derives the hopping seed. Shared by both roles so a
// passing verification always yields identical keys and seeds on both ends.
func finalizeKey(sifted []byte, checkIdx []int, keyLen int, stats *Stats) (key []byte, seed uint32, err error) {
	key = removeIndices(sifted, checkIdx)
	if len(key) < keyLen {
		return nil, 0, fmt.Errorf("%w: %d bits remain after verification, need %d",
			qerrors.ErrKeyTooShort, len(key), keyLen)
	}
	key = key[:keyLen]
	seed, fallback := hopping.DeriveSeed(key)
	stats.FinalKeyBits = len(key)
	stats.SeedFallback = fallback
	return key, seed, nil
}
