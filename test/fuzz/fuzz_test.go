// Package fuzz provides fuzz tests for the frame and payload parsers, which
// consume bytes straight off the network.
//
// Run fuzz tests with:
//
//	go test -fuzz=FuzzParseMessage -fuzztime=30s ./test/fuzz/
//	go test -fuzz=FuzzParseEvent -fuzztime=30s ./test/fuzz/
//	go test -fuzz=FuzzParseIndexList -fuzztime=30s ./test/fuzz/
package fuzz

import (
	"testing"

	"github.com/pzverkov/qkd-go/pkg/wire"
)

// FuzzParseEvent checks that photon frame parsing never panics and that
// accepted events re-encode to the same frame.
func FuzzParseEvent(f *testing.F) {
	f.Add("P:0,1")
	f.Add("P:1,0")
	f.Add("P:")
	f.Add("P:2,9")
	f.Fuzz(func(t *testing.T, frame string) {
		ev, err := wire.ParseEvent(frame)
		if err != nil {
			return
		}
		if wire.EncodeEvent(ev) != frame {
			t.Errorf("accepted frame %q does not re-encode to itself", frame)
		}
	})
}

// FuzzParseMessage checks that public-lane parsing never panics and that
// accepted messages re-encode to the same frame.
func FuzzParseMessage(f *testing.F) {
	f.Add("SYNC:PHOTONS_SENT:64")
	f.Add("BOB_BASES:0101")
	f.Add("ABORT:error rate 0.3 above threshold 0.15")
	f.Add(":")
	f.Add("CONFIRM_KEY:")
	f.Fuzz(func(t *testing.T, frame string) {
		msg, err := wire.ParseMessage(frame)
		if err != nil {
			return
		}
		if wire.EncodeMessage(msg.Tag, msg.Payload) != frame {
			t.Errorf("accepted frame %q does not re-encode to itself", frame)
		}
	})
}

// FuzzParseIndexList checks that index list parsing never panics and never
// yields negative indices.
func FuzzParseIndexList(f *testing.F) {
	f.Add("")
	f.Add("0,1,2")
	f.Add("-1")
	f.Add("999999999999999999999")
	f.Fuzz(func(t *testing.T, payload string) {
		indices, err := wire.ParseIndexList(payload)
		if err != nil {
			return
		}
		for _, v := range indices {
			if v < 0 {
				t.Errorf("ParseIndexList(%q) yielded negative index %d", payload, v)
			}
		}
	})
}

// FuzzParseBits checks the bit-string parser on arbitrary input.
func FuzzParseBits(f *testing.F) {
	f.Add("0110")
	f.Add("2")
	f.Add("")
	f.Fuzz(func(t *testing.T, payload string) {
		bits, err := wire.ParseBits(payload)
		if err != nil {
			return
		}
		if wire.EncodeBits(bits) != payload {
			t.Errorf("accepted bit string %q does not re-encode to itself", payload)
		}
	})
}
