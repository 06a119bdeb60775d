package hopping

import (
	"encoding/binary"

	"github.com/cloudflare/circl/xof"

	"github.com/pzverkov/qkd-go/internal/constants"
	qerrors "github.com/pzverkov/qkd-go/internal/errors"
)

// PatternStream yields the hop schedule for one seed as an unbounded
// sequence of frequencies drawn uniformly, with replacement, from the
// vocabulary. Both parties consume the stream in lockstep: the transmitter
// one draw per character sent, the receiver one draw per character expected.
type PatternStream struct {
	src   xof.XOF
	vocab []float64
	limit uint16
}

// NewPatternStream seeds a stream over vocab. The draw order depends only on
// (seed, vocab), so equal seeds yield equal schedules.
func NewPatternStream(seed uint32, vocab []float64) (*PatternStream, error) {
	if len(vocab) == 0 {
		return nil, qerrors.ErrEmptyVocabulary
	}
	src := xof.BLAKE2XB.New()
	writeDomain(src, constants.DomainSeparatorPattern)
	var s [constants.SeedBytes]byte
	binary.BigEndian.PutUint32(s[:], seed)
	src.Write(s[:])
	// Rejection bound for an unbiased draw from a 16-bit sample.
	limit := uint16(65536 - 65536%len(vocab))
	return &PatternStream{src: src, vocab: vocab, limit: limit}, nil
}

// Next returns the next frequency in the schedule.
func (p *PatternStream) Next() float64 {
	var buf [2]byte
	for {
		p.src.Read(buf[:])
		v := binary.BigEndian.Uint16(buf[:])
		if p.limit != 0 && v >= p.limit {
			continue
		}
		return p.vocab[int(v)%len(p.vocab)]
	}
}

// Pattern derives the first n hops of the schedule for seed over vocab.
func Pattern(seed uint32, vocab []float64, n int) ([]float64, error) {
	if n <= 0 {
		return nil, nil
	}
	stream, err := NewPatternStream(seed, vocab)
	if err != nil {
		return nil, err
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = stream.Next()
	}
	return out, nil
}
