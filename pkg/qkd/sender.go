package qkd

import (
	"context"
	"fmt"

	qerrors "github.com/pzverkov/qkd-go/internal/errors"
	"github.com/pzverkov/qkd-go/pkg/metrics"
	"github.com/pzverkov/qkd-go/pkg/wire"
)

// Sender is the BB84 initiator. It prepares random (basis, bit) photons,
// transmits them through the lossy channel, and drives sifting and
// verification from the announcing side.
type Sender struct {
	link *wire.Link
	cfg  Config
	log  *metrics.Logger
}

// NewSender wraps an established link in the initiator role.
func NewSender(link *wire.Link, cfg Config) (*Sender, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Sender{link: link, cfg: cfg, log: cfg.Logger.Named("sender")}, nil
}

// sentPhoton records one photon that made it onto the channel. The original
// preparation index survives loss so logs can be correlated with the full
// preparation sequence.
type sentPhoton struct {
	originalIndex int
	event         wire.Event
}

// Run executes the initiator's side of a session to completion. The error is
// nil exactly when Result.Status is StatusSuccess; otherwise its chain
// carries the sentinel matching the status.
func (s *Sender) Run(ctx context.Context) (Result, error) {
	_, end := metrics.StartSpan(ctx, metrics.SpanSenderSession, metrics.WithAttributes(map[string]interface{}{
		"photons":  s.cfg.PhotonCount,
		"key_bits": s.cfg.KeyLength,
	}))
	res, err := s.run()
	end(err)
	return res, err
}

func (s *Sender) run() (Result, error) {
	var stats Stats

	sent, err := s.transmit(&stats)
	if err != nil {
		return s.fail(&stats, "transmit", err)
	}

	peerBases, err := s.awaitBases(&stats)
	if err != nil {
		return s.fail(&stats, "await bases", err)
	}

	sifted, err := s.sift(&stats, sent, peerBases)
	if err != nil {
		return s.fail(&stats, "sift", err)
	}

	checkIdx, peerBits, err := s.exchangeSample(&stats, len(sifted))
	if err != nil {
		return s.fail(&stats, "verification", err)
	}

	stats.Mismatches = checkMismatches(sifted, peerBits, checkIdx)
	stats.ErrorRate = float64(stats.Mismatches) / float64(stats.SampleSize)
	s.log.Info("verification sample compared", metrics.Fields{
		"sample":     stats.SampleSize,
		"mismatches": stats.Mismatches,
		"error_rate": fmt.Sprintf("%.4f", stats.ErrorRate),
		"threshold":  s.cfg.QBERThreshold,
	})

	if stats.ErrorRate > s.cfg.QBERThreshold {
		reason := fmt.Sprintf("error rate %.4f above threshold %.4f", stats.ErrorRate, s.cfg.QBERThreshold)
		notifyAbort(s.link, reason)
		err := fmt.Errorf("%w: %s", qerrors.ErrErrorRateExceeded, reason)
		s.log.Error("session aborted", metrics.Fields{"reason": reason})
		return Result{Status: StatusErrorRateExceeded, Reason: reason, Stats: stats},
			qerrors.NewProtocolError("verification", err)
	}

	if err := s.link.SendMessage(wire.TagConfirmKey, ""); err != nil {
		return s.fail(&stats, "confirm", err)
	}

	key, seed, err := finalizeKey(sifted, checkIdx, s.cfg.KeyLength, &stats)
	if err != nil {
		return s.fail(&stats, "finalize", err)
	}

	s.log.Info("key committed", metrics.Fields{"key_bits": len(key), "seed": seed})
	return Result{Status: StatusSuccess, Key: key, Seed: seed, Stats: stats}, nil
}

// transmit prepares PhotonCount photons, drops each with probability
// LossRate before it reaches the channel, streams the survivors, and
// announces the sent count with SYNC.
func (s *Sender) transmit(stats *Stats) ([]sentPhoton, error) {
	sent := make([]sentPhoton, 0, s.cfg.PhotonCount)
	for i := 0; i < s.cfg.PhotonCount; i++ {
		ev := wire.Event{Basis: RandomBasis(s.cfg.Rand), Bit: byte(s.cfg.Rand.Intn(2))}
		stats.PhotonsPrepared++
		if s.cfg.LossRate > 0 && s.cfg.Rand.Float64() < s.cfg.LossRate {
			continue
		}
		if err := s.link.SendEvent(ev); err != nil {
			return nil, err
		}
		p := sentPhoton{originalIndex: i, event: ev}
		sent = append(sent, p)
		s.log.Debug("photon sent", metrics.Fields{
			"prepared_index": p.originalIndex,
			"basis":          ev.Basis.String(),
		})
	}
	stats.PhotonsSent = len(sent)
	if err := s.link.SendMessage(wire.TagSync, wire.EncodeSyncPayload(len(sent))); err != nil {
		return nil, err
	}
	s.log.Info("photon transmission complete", metrics.Fields{
		"prepared": stats.PhotonsPrepared,
		"sent":     stats.PhotonsSent,
		"lost":     stats.PhotonsPrepared - stats.PhotonsSent,
	})
	return sent, nil
}

func (s *Sender) awaitBases(stats *Stats) ([]wire.Basis, error) {
	msg, err := expectMessage(s.link, wire.TagBases)
	if err != nil {
		return nil, err
	}
	bases, err := wire.ParseBases(msg.Payload)
	if err != nil {
		return nil, err
	}
	stats.PeerBases = len(bases)
	return bases, nil
}

// sift compares the peer's receive-order bases against what was actually
// sent, announces the matching indices, and keeps the matching bits.
func (s *Sender) sift(stats *Stats, sent []sentPhoton, peerBases []wire.Basis) ([]byte, error) {
	if len(peerBases) != len(sent) {
		s.log.Warn("peer basis count differs from sent count", metrics.Fields{
			"sent": len(sent), "peer": len(peerBases),
		})
	}
	sentBases := make([]wire.Basis, len(sent))
	for i, p := range sent {
		sentBases[i] = p.event.Basis
	}
	matches := siftMatches(sentBases, peerBases)
	if err := s.link.SendMessage(wire.TagMatchIndices, wire.EncodeIndexList(matches)); err != nil {
		return nil, err
	}
	sifted := make([]byte, len(matches))
	for i, j := range matches {
		sifted[i] = sent[j].event.Bit
	}
	stats.Matches = len(matches)
	stats.SiftedBits = len(sifted)
	s.log.Info("sifting complete", metrics.Fields{"matches": len(matches)})
	return sifted, nil
}

// exchangeSample picks the verification sample, announces the sifted-key
// indices, and collects the peer's disclosed bits.
func (s *Sender) exchangeSample(stats *Stats, siftedLen int) ([]int, []byte, error) {
	sampleLen, err := verificationSize(siftedLen, s.cfg.KeyLength)
	if err != nil {
		return nil, nil, err
	}
	checkIdx := sampleIndices(s.cfg.Rand, siftedLen, sampleLen)
	stats.SampleSize = sampleLen
	if err := s.link.SendMessage(wire.TagCheckIndices, wire.EncodeIndexList(checkIdx)); err != nil {
		return nil, nil, err
	}
	msg, err := expectMessage(s.link, wire.TagCheckBits)
	if err != nil {
		return nil, nil, err
	}
	peerBits, err := wire.ParseBits(msg.Payload)
	if err != nil {
		return nil, nil, err
	}
	if len(peerBits) != sampleLen {
		return nil, nil, fmt.Errorf("%w: %d check bits for %d indices",
			qerrors.ErrProtocolViolation, len(peerBits), sampleLen)
	}
	return checkIdx, peerBits, nil
}

func (s *Sender) fail(stats *Stats, phase string, err error) (Result, error) {
	perr := qerrors.NewProtocolError(phase, err)
	if shouldNotifyAbort(err) {
		notifyAbort(s.link, perr.Error())
	}
	s.log.Error("session failed", metrics.Fields{"phase": phase, "error": err})
	return resultFromError(*stats, perr), perr
}
