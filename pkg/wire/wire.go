// Package wire frames the two logical lanes of a QKD session over one
// ordered byte stream.
//
// Both lanes use newline-delimited text frames:
//
//	Quantum lane:  P:<basis>,<bit>          one photon event per frame
//	Public lane:   <TAG>:<payload>          tagged protocol message
//
// Because the lanes share a stream, a receiver polling one lane can observe
// a frame that belongs to the other. The Link receive methods surface that
// as a distinguishable result instead of an error where the protocol needs
// to redirect (a SYNC arriving mid-photon-stream), and as ErrLaneConfusion
// where it indicates desync.
//
// This package owns framing and payload validation only; no protocol logic.
package wire

import (
	"fmt"
	"strconv"
	"strings"

	qerrors "github.com/pzverkov/qkd-go/internal/errors"
)

// Basis is one of the two BB84 measurement/encoding conventions.
type Basis uint8

// The two bases. Only equality matters; the values are the wire encoding.
const (
	Rectilinear Basis = 0
	Diagonal    Basis = 1
)

// String returns the conventional symbol for the basis.
func (b Basis) String() string {
	if b == Rectilinear {
		return "+"
	}
	return "x"
}

// Event is a single photon as transmitted on the quantum lane.
type Event struct {
	Basis Basis
	Bit   byte // 0 or 1
}

// Tag identifies a public-lane message type.
type Tag string

// Public-lane message tags.
const (
	// TagSync announces how many photons were actually sent.
	TagSync Tag = "SYNC"
	// TagBases carries the responder's basis choices in receive order.
	TagBases Tag = "BOB_BASES"
	// TagMatchIndices carries basis-match indices relative to the
	// responder's receive order.
	TagMatchIndices Tag = "MATCH_INDICES_REL"
	// TagCheckIndices carries verification-sample indices relative to the
	// sifted key.
	TagCheckIndices Tag = "CHECK_INDICES_REL_SIFT"
	// TagCheckBits carries the disclosed verification bits.
	TagCheckBits Tag = "CHECK_BITS"
	// TagConfirmKey commits the key after a passing verification.
	TagConfirmKey Tag = "CONFIRM_KEY"
	// TagAbort terminates the session with a free-text reason.
	TagAbort Tag = "ABORT"
)

// Message is a parsed public-lane frame.
type Message struct {
	Tag     Tag
	Payload string
}

const eventPrefix = "P:"

// EncodeEvent renders a photon event frame body (without the newline).
func EncodeEvent(ev Event) string {
	return fmt.Sprintf("P:%d,%d", ev.Basis, ev.Bit)
}

// IsEventFrame reports whether a frame body is a quantum-lane frame.
func IsEventFrame(frame string) bool {
	return strings.HasPrefix(frame, eventPrefix)
}

// ParseEvent parses a quantum-lane frame body.
func ParseEvent(frame string) (Event, error) {
	if !IsEventFrame(frame) {
		return Event{}, fmt.Errorf("%w: not a photon frame: %q", qerrors.ErrMalformedFrame, frame)
	}
	body := frame[len(eventPrefix):]
	if len(body) != 3 || body[1] != ',' ||
		(body[0] != '0' && body[0] != '1') || (body[2] != '0' && body[2] != '1') {
		return Event{}, fmt.Errorf("%w: photon frame %q", qerrors.ErrMalformedFrame, frame)
	}
	return Event{Basis: Basis(body[0] - '0'), Bit: body[2] - '0'}, nil
}

// EncodeMessage renders a public-lane frame body (without the newline).
func EncodeMessage(tag Tag, payload string) string {
	return string(tag) + ":" + payload
}

// ParseMessage parses a public-lane frame body. The tag must be a non-empty
// run of uppercase letters, digits, and underscores; anything else is a
// malformed frame. Unknown-but-well-formed tags parse fine: rejecting a tag
// the current protocol state does not expect is the caller's job.
func ParseMessage(frame string) (Message, error) {
	i := strings.IndexByte(frame, ':')
	if i <= 0 {
		return Message{}, fmt.Errorf("%w: untagged frame %q", qerrors.ErrMalformedFrame, frame)
	}
	tag := frame[:i]
	for _, c := range tag {
		if !(c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_') {
			return Message{}, fmt.Errorf("%w: bad tag %q", qerrors.ErrMalformedFrame, tag)
		}
	}
	return Message{Tag: Tag(tag), Payload: frame[i+1:]}, nil
}

// --- Payload codecs ---

const syncPrefix = "PHOTONS_SENT:"

// EncodeSyncPayload renders the SYNC payload announcing n sent photons.
func EncodeSyncPayload(n int) string {
	return syncPrefix + strconv.Itoa(n)
}

// ParseSyncPayload extracts the sent-photon count from a SYNC payload.
func ParseSyncPayload(payload string) (int, error) {
	if !strings.HasPrefix(payload, syncPrefix) {
		return 0, fmt.Errorf("%w: sync payload %q", qerrors.ErrMalformedFrame, payload)
	}
	n, err := strconv.Atoi(payload[len(syncPrefix):])
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: sync payload %q", qerrors.ErrMalformedFrame, payload)
	}
	return n, nil
}

// EncodeIndexList renders a comma-joined index list. Empty list → empty string.
func EncodeIndexList(indices []int) string {
	if len(indices) == 0 {
		return ""
	}
	parts := make([]string, len(indices))
	for i, v := range indices {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}

// ParseIndexList parses a comma-joined index list. An empty payload is an
// empty list; negative entries are malformed.
func ParseIndexList(payload string) ([]int, error) {
	if payload == "" {
		return nil, nil
	}
	parts := strings.Split(payload, ",")
	indices := make([]int, len(parts))
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil || v < 0 {
			return nil, fmt.Errorf("%w: index list entry %q", qerrors.ErrMalformedFrame, p)
		}
		indices[i] = v
	}
	return indices, nil
}

// EncodeBases renders a basis sequence as a digit string.
func EncodeBases(bases []Basis) string {
	var b strings.Builder
	b.Grow(len(bases))
	for _, v := range bases {
		b.WriteByte('0' + byte(v))
	}
	return b.String()
}

// ParseBases parses a digit string of basis choices.
func ParseBases(payload string) ([]Basis, error) {
	bases := make([]Basis, len(payload))
	for i := 0; i < len(payload); i++ {
		switch payload[i] {
		case '0':
			bases[i] = Rectilinear
		case '1':
			bases[i] = Diagonal
		default:
			return nil, fmt.Errorf("%w: basis string %q", qerrors.ErrMalformedFrame, payload)
		}
	}
	return bases, nil
}

// EncodeBits renders a bit sequence as a '0'/'1' string.
func EncodeBits(bits []byte) string {
	var b strings.Builder
	b.Grow(len(bits))
	for _, v := range bits {
		b.WriteByte('0' + v&1)
	}
	return b.String()
}

// ParseBits parses a '0'/'1' string into a bit slice.
func ParseBits(payload string) ([]byte, error) {
	bits := make([]byte, len(payload))
	for i := 0; i < len(payload); i++ {
		if payload[i] != '0' && payload[i] != '1' {
			return nil, fmt.Errorf("%w: bit string %q", qerrors.ErrMalformedFrame, payload)
		}
		bits[i] = payload[i] - '0'
	}
	return bits, nil
}
