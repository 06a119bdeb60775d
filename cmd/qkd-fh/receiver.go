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

func runReceiver(args []string) error {
	fs := flag.NewFlagSet("receiver", flag.ExitOnError)
	common := addCommonFlags(fs)
	qkdPort := fs.Int("qkd-port", constants.DefaultPortQKD, "port of the key-exchange session (the sender's, or eve's)")
	fhPort := fs.Int("fh-port", constants.DefaultPortFH, "port of the hopping transmission")
	keyBits := fs.Int("key-bits", constants.DefaultKeyLength, "desired final key length in bits")
	timeout := fs.Duration("timeout", constants.DefaultTimeout, "receive timeout per protocol message")
	seed := fs.Int64("seed", 0, "RNG seed for reproducible runs (0 = time-seeded)")
	plot := fs.Bool("plot", false, "render the observed hop schedule after reception")
	fs.Parse(args)

	log := common.logger().Named("qkd-fh")
	addr := net.JoinHostPort(common.host, strconv.Itoa(*qkdPort))
	log.Info("connecting to initiator", metrics.Fields{"addr": addr})
	conn, err := dialRetry(addr, *timeout)
	if err != nil {
		return err
	}
	link := wire.NewLink(conn, *timeout)
	defer link.Close()

	receiver, err := qkd.NewReceiver(link, qkd.Config{
		KeyLength: *keyBits,
		Rand:      newRand(*seed),
		Logger:    log,
	})
	if err != nil {
		return err
	}
	res, runErr := receiver.Run(context.Background())
	printResult("receiver", res)
	if runErr != nil {
		return runErr
	}

	fhAddr := net.JoinHostPort(common.host, strconv.Itoa(*fhPort))
	log.Info("joining hopping channel", metrics.Fields{"addr": fhAddr})
	fhConn, err := dialRetry(fhAddr, *timeout)
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
	rx := hopping.NewReceiver(fhLink, res.Seed, nil, log, sink)
	message, err := rx.Receive(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf("received message: %q\n", message)
	if plotter != nil {
		plotter.Render(os.Stdout)
	}
	return nil
}
