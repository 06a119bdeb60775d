// Package hopping turns a committed QKD key into a frequency-hopping
// schedule and carries a message over it, one character per hop. Both
// parties derive the same schedule independently from the shared seed; the
// receiver flags any character whose announced frequency disagrees with its
// own schedule.
package hopping

import (
	crand "crypto/rand"
	"encoding/binary"
	"io"

	"golang.org/x/crypto/sha3"

	"github.com/pzverkov/qkd-go/internal/constants"
)

// DeriveSeed maps the final key bits onto the 32-bit hopping seed: the first
// four bytes of SHAKE-256 over the domain separator and the key's '0'/'1'
// rendering. Both parties hold the same key, so both derive the same seed
// without further communication.
//
// A key shorter than constants.MinSeedKeyBits has too little entropy to be
// worth stretching; DeriveSeed then draws a random seed and reports
// fallback=true so the caller can surface it.
func DeriveSeed(key []byte) (seed uint32, fallback bool) {
	if len(key) < constants.MinSeedKeyBits {
		var buf [constants.SeedBytes]byte
		_, _ = crand.Read(buf[:])
		return binary.BigEndian.Uint32(buf[:]), true
	}
	h := sha3.NewShake256()
	writeDomain(h, constants.DomainSeparatorSeed)
	ascii := make([]byte, len(key))
	for i, b := range key {
		ascii[i] = '0' + b&1
	}
	h.Write(ascii)
	var digest [constants.SeedBytes]byte
	h.Read(digest[:])
	return binary.BigEndian.Uint32(digest[:]), false
}

// writeDomain writes a length-prefixed domain separator so distinct
// separators can never collide by concatenation.
func writeDomain(w io.Writer, sep string) {
	var n [2]byte
	binary.BigEndian.PutUint16(n[:], uint16(len(sep)))
	w.Write(n[:])
	io.WriteString(w, sep)
}
