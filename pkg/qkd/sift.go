package qkd

import (
	"fmt"
	"math/rand"
	"sort"

	qerrors "github.com/pzverkov/qkd-go/internal/errors"
	"github.com/pzverkov/qkd-go/pkg/wire"
)

// siftMatches returns the indices, in the responder's receive order, where
// the responder measured in the basis that was actually sent at that
// position. Extra entries on either side are ignored; the caller warns about
// a length mismatch.
func siftMatches(sent, peer []wire.Basis) []int {
	n := len(sent)
	if len(peer) < n {
		n = len(peer)
	}
	var matches []int
	for j := 0; j < n; j++ {
		if sent[j] == peer[j] {
			matches = append(matches, j)
		}
	}
	return matches
}

// verificationSize computes how many sifted bits to disclose for the error
// estimate: a quarter of the sifted key, capped at twice the desired key
// length, at least one. When the sifted key is too small for even that, it
// shrinks to half; a key that cannot spare any sample aborts the session.
func verificationSize(sifted, keyLen int) (int, error) {
	if sifted <= 0 {
		return 0, fmt.Errorf("%w: empty sifted key", qerrors.ErrInsufficientData)
	}
	n := sifted / 4
	if limit := 2 * keyLen; n > limit {
		n = limit
	}
	if n < 1 {
		n = 1
	}
	if sifted <= n {
		n = sifted / 2
		if n < 1 {
			n = 1
		}
	}
	if sifted <= n {
		return 0, fmt.Errorf("%w: %d sifted bits cannot spare a verification sample",
			qerrors.ErrInsufficientData, sifted)
	}
	return n, nil
}

// sampleIndices draws k distinct indices in [0,n), ascending.
func sampleIndices(rng *rand.Rand, n, k int) []int {
	idx := append([]int(nil), rng.Perm(n)[:k]...)
	sort.Ints(idx)
	return idx
}

// removeIndices returns bits with the given positions removed. Positions
// must be valid; duplicates are harmless.
func removeIndices(bits []byte, drop []int) []byte {
	dropped := make(map[int]struct{}, len(drop))
	for _, i := range drop {
		dropped[i] = struct{}{}
	}
	out := make([]byte, 0, len(bits)-len(dropped))
	for i, b := range bits {
		if _, ok := dropped[i]; !ok {
			out = append(out, b)
		}
	}
	return out
}

// checkMismatches counts positions where the local sifted bits disagree with
// the peer's disclosed bits at the sampled indices.
func checkMismatches(sifted, peerBits []byte, checkIdx []int) int {
	mismatches := 0
	for i, j := range checkIdx {
		if sifted[j] != peerBits[i] {
			mismatches++
		}
	}
	return mismatches
}
