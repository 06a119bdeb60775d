package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"strconv"

	"github.com/pzverkov/qkd-go/internal/constants"
	"github.com/pzverkov/qkd-go/pkg/intercept"
	"github.com/pzverkov/qkd-go/pkg/metrics"
	"github.com/pzverkov/qkd-go/pkg/wire"
)

func runEve(args []string) error {
	fs := flag.NewFlagSet("eve", flag.ExitOnError)
	common := addCommonFlags(fs)
	listenPort := fs.Int("listen-port", constants.DefaultPortEve, "port the responder connects to")
	upstreamHost := fs.String("upstream-host", constants.DefaultHost, "host of the real initiator")
	upstreamPort := fs.Int("upstream-port", constants.DefaultPortQKD, "port of the real initiator")
	strategy := fs.String("strategy", "random", "measurement basis: random, rectilinear, diagonal")
	timeout := fs.Duration("timeout", constants.DefaultTimeout, "dial and relay timeout")
	seed := fs.Int64("seed", 0, "RNG seed for reproducible runs (0 = time-seeded)")
	fs.Parse(args)

	var strat intercept.Strategy
	switch *strategy {
	case "random":
		strat = intercept.StrategyRandom
	case "rectilinear":
		strat = intercept.StrategyRectilinear
	case "diagonal":
		strat = intercept.StrategyDiagonal
	default:
		return fmt.Errorf("unknown strategy %q", *strategy)
	}

	log := common.logger().Named("qkd-fh")
	listenAddr := net.JoinHostPort(common.host, strconv.Itoa(*listenPort))
	log.Info("waiting for responder", metrics.Fields{"addr": listenAddr})
	downstream, err := acceptOne(listenAddr)
	if err != nil {
		return err
	}
	responder := wire.NewLink(downstream, 0)
	defer responder.Close()

	upstreamAddr := net.JoinHostPort(*upstreamHost, strconv.Itoa(*upstreamPort))
	log.Info("connecting to initiator", metrics.Fields{"addr": upstreamAddr})
	upstream, err := dialRetry(upstreamAddr, *timeout)
	if err != nil {
		return err
	}
	initiator := wire.NewLink(upstream, 0)
	defer initiator.Close()

	eve := intercept.New(intercept.Config{
		Strategy: strat,
		Rand:     newRand(*seed),
		Logger:   log,
	})
	stats, err := eve.Run(context.Background(), initiator, responder)
	fmt.Printf("intercepted %d photons, relayed %d forward / %d backward frames\n",
		stats.PhotonsIntercepted, stats.ForwardFrames, stats.BackwardFrames)
	if len(stats.MeasuredBits) > 0 {
		fmt.Printf("eavesdropped raw bits: %s\n", wire.EncodeBits(stats.MeasuredBits))
	}
	return err
}
