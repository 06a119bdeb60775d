package wire_test

import (
	"testing"

	qerrors "github.com/pzverkov/qkd-go/internal/errors"
	"github.com/pzverkov/qkd-go/pkg/wire"
)

// TestEventRoundTrip tests photon frame encoding and parsing.
func TestEventRoundTrip(t *testing.T) {
	events := []wire.Event{
		{Basis: wire.Rectilinear, Bit: 0},
		{Basis: wire.Rectilinear, Bit: 1},
		{Basis: wire.Diagonal, Bit: 0},
		{Basis: wire.Diagonal, Bit: 1},
	}
	for _, ev := range events {
		frame := wire.EncodeEvent(ev)
		if !wire.IsEventFrame(frame) {
			t.Errorf("EncodeEvent(%v) = %q, not recognized as event frame", ev, frame)
		}
		got, err := wire.ParseEvent(frame)
		if err != nil {
			t.Fatalf("ParseEvent(%q) error: %v", frame, err)
		}
		if got != ev {
			t.Errorf("ParseEvent(%q) = %v, want %v", frame, got, ev)
		}
	}
}

// TestParseEventMalformed tests rejection of malformed photon frames.
func TestParseEventMalformed(t *testing.T) {
	frames := []string{
		"P:",
		"P:0",
		"P:0,2",
		"P:2,0",
		"P:-1,0",
		"P:0,1,1",
		"P:a,b",
		"SYNC:PHOTONS_SENT:5",
	}
	for _, frame := range frames {
		if _, err := wire.ParseEvent(frame); !qerrors.Is(err, qerrors.ErrMalformedFrame) {
			t.Errorf("ParseEvent(%q) error = %v, want ErrMalformedFrame", frame, err)
		}
	}
}

// TestParseMessage tests public-lane frame parsing.
func TestParseMessage(t *testing.T) {
	msg, err := wire.ParseMessage("BOB_BASES:0110")
	if err != nil {
		t.Fatalf("ParseMessage error: %v", err)
	}
	if msg.Tag != wire.TagBases || msg.Payload != "0110" {
		t.Errorf("ParseMessage = %+v, want tag BOB_BASES payload 0110", msg)
	}

	// Payload containing colons splits at the first one only.
	msg, err = wire.ParseMessage("SYNC:PHOTONS_SENT:42")
	if err != nil {
		t.Fatalf("ParseMessage error: %v", err)
	}
	if msg.Tag != wire.TagSync || msg.Payload != "PHOTONS_SENT:42" {
		t.Errorf("ParseMessage = %+v, want SYNC with full payload", msg)
	}

	// Empty payload is legal.
	msg, err = wire.ParseMessage("CONFIRM_KEY:")
	if err != nil {
		t.Fatalf("ParseMessage error: %v", err)
	}
	if msg.Tag != wire.TagConfirmKey || msg.Payload != "" {
		t.Errorf("ParseMessage = %+v, want empty CONFIRM_KEY", msg)
	}
}

// TestParseMessageMalformed tests rejection of untagged or badly tagged frames.
func TestParseMessageMalformed(t *testing.T) {
	frames := []string{
		"",
		"no-colon",
		":payload",
		"lower:case",
		"SP ACE:x",
	}
	for _, frame := range frames {
		if _, err := wire.ParseMessage(frame); !qerrors.Is(err, qerrors.ErrMalformedFrame) {
			t.Errorf("ParseMessage(%q) error = %v, want ErrMalformedFrame", frame, err)
		}
	}
}

// TestSyncPayload tests the SYNC payload codec.
func TestSyncPayload(t *testing.T) {
	for _, n := range []int{0, 1, 640} {
		got, err := wire.ParseSyncPayload(wire.EncodeSyncPayload(n))
		if err != nil {
			t.Fatalf("ParseSyncPayload error: %v", err)
		}
		if got != n {
			t.Errorf("sync payload round trip = %d, want %d", got, n)
		}
	}
	for _, bad := range []string{"", "42", "PHOTONS_SENT:", "PHOTONS_SENT:-1", "PHOTONS_SENT:x"} {
		if _, err := wire.ParseSyncPayload(bad); !qerrors.Is(err, qerrors.ErrMalformedFrame) {
			t.Errorf("ParseSyncPayload(%q) error = %v, want ErrMalformedFrame", bad, err)
		}
	}
}

// TestIndexList tests the comma-joined index list codec.
func TestIndexList(t *testing.T) {
	got, err := wire.ParseIndexList(wire.EncodeIndexList([]int{0, 3, 17}))
	if err != nil {
		t.Fatalf("ParseIndexList error: %v", err)
	}
	want := []int{0, 3, 17}
	if len(got) != len(want) {
		t.Fatalf("index list round trip = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index list round trip = %v, want %v", got, want)
			break
		}
	}

	// Empty list encodes to the empty payload and back.
	if s := wire.EncodeIndexList(nil); s != "" {
		t.Errorf("EncodeIndexList(nil) = %q, want empty", s)
	}
	if got, err := wire.ParseIndexList(""); err != nil || len(got) != 0 {
		t.Errorf("ParseIndexList(\"\") = %v, %v, want empty list", got, err)
	}

	for _, bad := range []string{",", "1,", "1,-2", "1,x"} {
		if _, err := wire.ParseIndexList(bad); !qerrors.Is(err, qerrors.ErrMalformedFrame) {
			t.Errorf("ParseIndexList(%q) error = %v, want ErrMalformedFrame", bad, err)
		}
	}
}

// TestBasesAndBits tests the digit-string codecs.
func TestBasesAndBits(t *testing.T) {
	bases := []wire.Basis{wire.Rectilinear, wire.Diagonal, wire.Diagonal, wire.Rectilinear}
	gotBases, err := wire.ParseBases(wire.EncodeBases(bases))
	if err != nil {
		t.Fatalf("ParseBases error: %v", err)
	}
	for i := range bases {
		if gotBases[i] != bases[i] {
			t.Fatalf("bases round trip = %v, want %v", gotBases, bases)
		}
	}

	bits := []byte{1, 0, 0, 1, 1}
	gotBits, err := wire.ParseBits(wire.EncodeBits(bits))
	if err != nil {
		t.Fatalf("ParseBits error: %v", err)
	}
	for i := range bits {
		if gotBits[i] != bits[i] {
			t.Fatalf("bits round trip = %v, want %v", gotBits, bits)
		}
	}

	if _, err := wire.ParseBases("012"); !qerrors.Is(err, qerrors.ErrMalformedFrame) {
		t.Errorf("ParseBases(\"012\") error = %v, want ErrMalformedFrame", err)
	}
	if _, err := wire.ParseBits("10x"); !qerrors.Is(err, qerrors.ErrMalformedFrame) {
		t.Errorf("ParseBits(\"10x\") error = %v, want ErrMalformedFrame", err)
	}
}
