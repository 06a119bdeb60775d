package qkd

import (
	"context"
	"fmt"

	qerrors "github.com/pzverkov/qkd-go/internal/errors"
	"github.com/pzverkov/qkd-go/pkg/metrics"
	"github.com/pzverkov/qkd-go/pkg/wire"
)

// Receiver is the BB84 responder. It measures arriving photons in random
// bases, announces its choices, and discloses the requested verification
// sample.
type Receiver struct {
	link *wire.Link
	cfg  Config
	log  *metrics.Logger
}

// NewReceiver wraps an established link in the responder role.
func NewReceiver(link *wire.Link, cfg Config) (*Receiver, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Receiver{link: link, cfg: cfg, log: cfg.Logger.Named("receiver")}, nil
}

// receivedPhoton is one measurement, in receive order.
type receivedPhoton struct {
	basis wire.Basis
	bit   byte
}

// Run executes the responder's side of a session to completion. The error is
// nil exactly when Result.Status is StatusSuccess.
func (r *Receiver) Run(ctx context.Context) (Result, error) {
	_, end := metrics.StartSpan(ctx, metrics.SpanReceiverSession, metrics.WithAttributes(map[string]interface{}{
		"key_bits": r.cfg.KeyLength,
	}))
	res, err := r.run()
	end(err)
	return res, err
}

func (r *Receiver) run() (Result, error) {
	var stats Stats

	records, err := r.collect(&stats)
	if err != nil {
		return r.fail(&stats, "collect photons", err)
	}

	if err := r.announceBases(records); err != nil {
		return r.fail(&stats, "announce bases", err)
	}

	sifted, err := r.awaitMatches(&stats, records)
	if err != nil {
		return r.fail(&stats, "sift", err)
	}

	checkIdx, err := r.discloseSample(&stats, sifted)
	if err != nil {
		return r.fail(&stats, "verification", err)
	}

	if _, err := expectMessage(r.link, wire.TagConfirmKey); err != nil {
		return r.fail(&stats, "await confirmation", err)
	}

	key, seed, err := finalizeKey(sifted, checkIdx, r.cfg.KeyLength, &stats)
	if err != nil {
		return r.fail(&stats, "finalize", err)
	}

	r.log.Info("key committed", metrics.Fields{"key_bits": len(key), "seed": seed})
	return Result{Status: StatusSuccess, Key: key, Seed: seed, Stats: stats}, nil
}

// collect measures photons until the SYNC announcement. Malformed quantum
// frames are skipped; the stream position stays aligned because framing is
// newline-delimited. A timeout or close with photons already in hand ends
// collection early and the session continues from the SYNC await; with
// nothing collected the same errors are fatal.
func (r *Receiver) collect(stats *Stats) ([]receivedPhoton, error) {
	var records []receivedPhoton
	announced := -1
loop:
	for {
		ev, msg, err := r.link.ReceiveEvent()
		if err != nil {
			switch {
			case qerrors.Is(err, qerrors.ErrMalformedFrame):
				r.log.Warn("skipping malformed quantum frame", metrics.Fields{"error": err})
				continue
			case len(records) > 0 &&
				(qerrors.Is(err, qerrors.ErrTimeout) || qerrors.Is(err, qerrors.ErrConnectionClosed)):
				r.log.Warn("photon stream ended early, keeping what arrived", metrics.Fields{
					"measured": len(records), "error": err,
				})
				break loop
			default:
				return nil, err
			}
		}
		if msg != nil {
			switch msg.Tag {
			case wire.TagSync:
				n, perr := wire.ParseSyncPayload(msg.Payload)
				if perr != nil {
					return nil, perr
				}
				announced = n
				break loop
			case wire.TagAbort:
				return nil, &qerrors.AbortError{Reason: msg.Payload}
			default:
				return nil, fmt.Errorf("%w: unexpected %s during photon collection",
					qerrors.ErrProtocolViolation, msg.Tag)
			}
		}
		basis := RandomBasis(r.cfg.Rand)
		records = append(records, receivedPhoton{basis: basis, bit: Measure(r.cfg.Rand, basis, ev)})
		stats.PhotonsReceived++
	}

	if announced < 0 {
		// Collection stopped before SYNC arrived; it is still owed on the
		// public lane, and errors from here on are fatal.
		msg, err := expectMessage(r.link, wire.TagSync)
		if err != nil {
			return nil, err
		}
		n, err := wire.ParseSyncPayload(msg.Payload)
		if err != nil {
			return nil, err
		}
		announced = n
	}
	if announced != len(records) {
		r.log.Warn("sync count differs from photons measured", metrics.Fields{
			"announced": announced, "measured": len(records),
		})
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: no photons received", qerrors.ErrInsufficientData)
	}
	r.log.Info("photon collection complete", metrics.Fields{"measured": len(records)})
	return records, nil
}

// announceBases discloses the measurement bases in receive order.
func (r *Receiver) announceBases(records []receivedPhoton) error {
	bases := make([]wire.Basis, len(records))
	for i, p := range records {
		bases[i] = p.basis
	}
	return r.link.SendMessage(wire.TagBases, wire.EncodeBases(bases))
}

// awaitMatches receives the match indices, relative to the receive order,
// and builds the sifted key from them.
func (r *Receiver) awaitMatches(stats *Stats, records []receivedPhoton) ([]byte, error) {
	msg, err := expectMessage(r.link, wire.TagMatchIndices)
	if err != nil {
		return nil, err
	}
	matches, err := wire.ParseIndexList(msg.Payload)
	if err != nil {
		return nil, err
	}
	sifted := make([]byte, len(matches))
	for i, j := range matches {
		if j >= len(records) {
			return nil, fmt.Errorf("%w: match index %d beyond %d measured photons",
				qerrors.ErrIndexOutOfRange, j, len(records))
		}
		sifted[i] = records[j].bit
	}
	if len(sifted) == 0 {
		return nil, fmt.Errorf("%w: no matching bases", qerrors.ErrInsufficientData)
	}
	stats.Matches = len(matches)
	stats.SiftedBits = len(sifted)
	r.log.Info("sifting complete", metrics.Fields{"matches": len(matches)})
	return sifted, nil
}

// discloseSample receives the sifted-key check indices and sends back the
// corresponding bits.
func (r *Receiver) discloseSample(stats *Stats, sifted []byte) ([]int, error) {
	msg, err := expectMessage(r.link, wire.TagCheckIndices)
	if err != nil {
		return nil, err
	}
	checkIdx, err := wire.ParseIndexList(msg.Payload)
	if err != nil {
		return nil, err
	}
	bits := make([]byte, len(checkIdx))
	for i, j := range checkIdx {
		if j >= len(sifted) {
			return nil, fmt.Errorf("%w: check index %d beyond %d sifted bits",
				qerrors.ErrIndexOutOfRange, j, len(sifted))
		}
		bits[i] = sifted[j]
	}
	stats.SampleSize = len(checkIdx)
	if err := r.link.SendMessage(wire.TagCheckBits, wire.EncodeBits(bits)); err != nil {
		return nil, err
	}
	r.log.Info("verification sample disclosed", metrics.Fields{"sample": len(checkIdx)})
	return checkIdx, nil
}

func (r *Receiver) fail(stats *Stats, phase string, err error) (Result, error) {
	perr := qerrors.NewProtocolError(phase, err)
	if shouldNotifyAbort(err) {
		notifyAbort(r.link, perr.Error())
	}
	r.log.Error("session failed", metrics.Fields{"phase": phase, "error": err})
	return resultFromError(*stats, perr), perr
}
