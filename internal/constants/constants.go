// Package constants defines protocol defaults and tuning parameters for the
// QKD-FH simulation suite.
//
// The defaults mirror a "classroom" BB84 run: short keys, generous photon
// budgets, and a QBER threshold loose enough to survive honest channel noise
// but tight enough to expose an intercept-resend adversary (whose expected
// QBER is 25%).
package constants

import "time"

// Protocol identification and key-derivation domain separation.
const (
	// ProtocolName identifies the wire protocol.
	ProtocolName = "QKD-FH-v1"

	// DomainSeparatorSeed is used when deriving the numeric hopping seed
	// from the final key.
	DomainSeparatorSeed = "QKD-FH-v1-Seed"

	// DomainSeparatorPattern is used when expanding the seed into the
	// hopping-pattern sample stream.
	DomainSeparatorPattern = "QKD-FH-v1-Pattern"
)

// QKD session defaults.
const (
	// DefaultKeyLength is the desired final key length in bits.
	DefaultKeyLength = 16

	// DefaultPhotonFactor is the number of photons prepared per desired key
	// bit. Sifting keeps ~50% and verification discloses up to another
	// quarter, so a factor of 10 leaves comfortable headroom even with loss.
	DefaultPhotonFactor = 10

	// DefaultLossRate is the simulated per-photon loss probability.
	DefaultLossRate = 0.10

	// DefaultQBERThreshold is the maximum acceptable estimated error rate.
	// Above this the session aborts rather than commit a suspect key.
	DefaultQBERThreshold = 0.15

	// MinSeedKeyBits is the minimum key length that DeriveSeed accepts
	// before falling back to random seeding.
	MinSeedKeyBits = 8

	// SeedBytes is the digest prefix width used for the numeric seed.
	SeedBytes = 4
)

// Network defaults.
const (
	// DefaultHost is the loopback host used by the demo driver.
	DefaultHost = "127.0.0.1"

	// DefaultPortQKD carries the interleaved quantum and public lanes.
	DefaultPortQKD = 12346

	// DefaultPortFH carries the frequency-hopping data transmission.
	DefaultPortFH = 12347

	// DefaultPortEve is where the interceptor listens for the responder.
	DefaultPortEve = 12348
)

// Timeouts.
const (
	// DefaultTimeout bounds every blocking receive on a protocol lane.
	DefaultTimeout = 45 * time.Second

	// RelayPollInterval is the short read deadline used by interceptor
	// relay loops so the shared cancellation token is observed promptly.
	RelayPollInterval = 500 * time.Millisecond

	// AbortNotifyTimeout bounds the best-effort ABORT notice sent while
	// tearing down a failed session.
	AbortNotifyTimeout = 2 * time.Second
)

// MaxFrameBytes bounds a single newline-delimited frame. Index lists scale
// with the photon budget; 1 MiB accommodates simulations far beyond the
// defaults without letting a broken peer exhaust memory.
const MaxFrameBytes = 1 << 20

// DefaultMessage is the demo payload for the frequency-hopping phase.
const DefaultMessage = "QKD-FH SECURE CHANNEL ESTABLISHED!"

// Frequencies is the hop vocabulary in MHz, an FM-band-and-above ladder.
// Order matters: pattern derivation samples this slice by index, so both
// parties must share it verbatim.
var Frequencies = []float64{
	88.1, 90.5, 92.3, 94.7, 96.9, 99.1, 101.3, 104.5, 107.9,
	110.2, 112.7, 115.3, 118.0, 121.5, 124.8, 127.1, 130.6,
	133.9, 136.4, 140.1, 142.5, 145.8, 148.2, 151.9, 155.0,
}
