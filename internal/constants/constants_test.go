package constants_test

import (
	"testing"

	"github.com/pzverkov/qkd-go/internal/constants"
)

// TestFrequencyLadder tests that the hop vocabulary is usable as-is: unique,
// ascending, and wide enough for the rejection-sampling draw.
func TestFrequencyLadder(t *testing.T) {
	if len(constants.Frequencies) == 0 {
		t.Fatal("empty frequency ladder")
	}
	for i := 1; i < len(constants.Frequencies); i++ {
		if constants.Frequencies[i] <= constants.Frequencies[i-1] {
			t.Errorf("ladder not strictly ascending at %d: %v then %v",
				i, constants.Frequencies[i-1], constants.Frequencies[i])
		}
	}
	if len(constants.Frequencies) > 1<<16 {
		t.Error("ladder too large for a 16-bit draw")
	}
}

// TestDefaultsConsistent tests the cross-parameter constraints the session
// code assumes.
func TestDefaultsConsistent(t *testing.T) {
	if constants.DefaultLossRate < 0 || constants.DefaultLossRate >= 1 {
		t.Errorf("loss rate %v outside [0,1)", constants.DefaultLossRate)
	}
	if constants.DefaultQBERThreshold <= 0 || constants.DefaultQBERThreshold >= 1 {
		t.Errorf("threshold %v outside (0,1)", constants.DefaultQBERThreshold)
	}
	// Intercept-resend induces ~25% QBER; the default threshold must sit
	// below that or the demo proves nothing.
	if constants.DefaultQBERThreshold >= 0.25 {
		t.Errorf("threshold %v cannot expose an intercept-resend adversary",
			constants.DefaultQBERThreshold)
	}
	if constants.MinSeedKeyBits > constants.DefaultKeyLength {
		t.Errorf("minimum seed key bits %d above the default key length %d",
			constants.MinSeedKeyBits, constants.DefaultKeyLength)
	}
	if constants.SeedBytes != 4 {
		t.Errorf("seed width %d bytes, the hopping seed is uint32", constants.SeedBytes)
	}
}
