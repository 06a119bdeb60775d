package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/pzverkov/qkd-go/internal/constants"
	"github.com/pzverkov/qkd-go/pkg/hopping"
	"github.com/pzverkov/qkd-go/pkg/metrics"
	"github.com/pzverkov/qkd-go/pkg/qkd"
	"github.com/pzverkov/qkd-go/pkg/wire"
)

func runSender(args []string) error {
	fs := flag.NewFlagSet("sender", flag.ExitOnError)
	common := addCommonFlags(fs)
	qkdPort := fs.Int("qkd-port", constants.DefaultPortQKD, "port for the key-exchange session")
	fhPort := fs.Int("fh-port", constants.DefaultPortFH, "port for the hopping transmission")
	keyBits := fs.Int("key-bits", constants.DefaultKeyLength, "desired final key length in bits")
	photons := fs.Int("photons", 0, "photons to prepare (default key-bits * 10)")
	loss := fs.Float64("loss", constants.DefaultLossRate, "per-photon channel loss probability")
	threshold := fs.Float64("threshold", constants.DefaultQBERThreshold, "maximum acceptable error rate")
	timeout := fs.Duration("timeout", constants.DefaultTimeout, "receive timeout per protocol message")
	message := fs.String("message", constants.DefaultMessage, "message to transmit over the hopping channel")
	seed := fs.Int64("seed", 0, "RNG seed for reproducible runs (0 = time-seeded)")
	plot := fs.Bool("plot", false, "render the hop schedule after transmission")
	fs.Parse(args)

	log := common.logger().Named("qkd-fh")
	addr := net.JoinHostPort(common.host, strconv.Itoa(*qkdPort))
	log.Info("waiting for responder", metrics.Fields{"addr": addr})
	conn, err := acceptOne(addr)
	if err != nil {
		return err
	}
	link := wire.NewLink(conn, *timeout)
	defer link.Close()

	sender, err := qkd.NewSender(link, qkd.Config{
		PhotonCount:   *photons,
		KeyLength:     *keyBits,
		LossRate:      *loss,
		QBERThreshold: *threshold,
		Rand:          newRand(*seed),
		Logger:        log,
	})
	if err != nil {
		return err
	}
	res, runErr := sender.Run(context.Background())
	printResult("sender", res)
	if runErr != nil {
		return runErr
	}

	fhAddr := net.JoinHostPort(common.host, strconv.Itoa(*fhPort))
	log.Info("opening hopping channel", metrics.Fields{"addr": fhAddr})
	fhConn, err := acceptOne(fhAddr)
	if err != nil {
		return err
	}
	fhLink := wire.NewLink(fhConn, *timeout)
	defer fhLink.Close()

	var sink hopping.PatternSink = hopping.NopSink{}
	var plotter *hopping.TextPlot
	if *plot {
		plotter = hopping.NewTextPlot(constants.Frequencies)
		sink = plotter
	}
	tx := hopping.NewTransmitter(fhLink, res.Seed, nil, log, sink)
	if err := tx.Transmit(context.Background(), *message); err != nil {
		return err
	}
	fmt.Printf("transmitted %d characters over %d-frequency hopping channel\n",
		len(*message), len(constants.Frequencies))
	if plotter != nil {
		plotter.Render(os.Stdout)
	}
	return nil
}

// printResult writes the session summary to stdout.
func printResult(role string, res qkd.Result) {
	fmt.Printf("%s session: %s\n", role, res.Status)
	st := res.Stats
	switch res.Status {
	case qkd.StatusSuccess:
		fmt.Printf("  key:        %s (%d bits)\n", res.KeyString(), st.FinalKeyBits)
		fmt.Printf("  seed:       %d\n", res.Seed)
		if st.SeedFallback {
			fmt.Printf("  seed note:  key too short, random fallback seed in use\n")
		}
	default:
		if res.Reason != "" {
			fmt.Printf("  reason:     %s\n", res.Reason)
		}
	}
	if st.SampleSize > 0 {
		fmt.Printf("  error rate: %.4f (%d/%d mismatches)\n", st.ErrorRate, st.Mismatches, st.SampleSize)
	}
	fmt.Printf("  sifted:     %d bits of %d matches\n", st.SiftedBits, st.Matches)
}
