// Command qkd-fh runs the QKD-FH simulation roles.
//
//	qkd-fh sender    prepare photons, negotiate a key, transmit the message
//	qkd-fh receiver  measure photons, negotiate a key, receive the message
//	qkd-fh eve       intercept-resend relay between the two
//	qkd-fh version   print build identification
//
// Point the receiver at the sender directly for a clean run, or at eve to
// watch the session abort on the induced error rate.
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"net"
	"os"
	"time"

	"github.com/pzverkov/qkd-go/pkg/metrics"
	"github.com/pzverkov/qkd-go/pkg/version"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	var err error
	switch os.Args[1] {
	case "sender":
		err = runSender(os.Args[2:])
	case "receiver":
		err = runReceiver(os.Args[2:])
	case "eve":
		err = runEve(os.Args[2:])
	case "version":
		fmt.Println(version.String())
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `usage: qkd-fh <command> [flags]

commands:
  sender      run the QKD initiator and transmit the message
  receiver    run the QKD responder and receive the message
  eve         run the intercept-resend relay
  version     print build identification

run "qkd-fh <command> -h" for command flags
`)
}

// commonFlags are shared by every role.
type commonFlags struct {
	host      string
	logLevel  string
	logFormat string
}

func addCommonFlags(fs *flag.FlagSet) *commonFlags {
	c := &commonFlags{}
	fs.StringVar(&c.host, "host", "127.0.0.1", "host to listen on or connect to")
	fs.StringVar(&c.logLevel, "log-level", "info", "log level: debug, info, warn, error, silent")
	fs.StringVar(&c.logFormat, "log-format", "text", "log format: text or json")
	return c
}

func (c *commonFlags) logger() *metrics.Logger {
	format := metrics.FormatText
	if c.logFormat == "json" {
		format = metrics.FormatJSON
	}
	return metrics.NewLogger(
		metrics.WithLevel(metrics.ParseLevel(c.logLevel)),
		metrics.WithFormat(format),
	)
}

// newRand returns a seeded source for reproducible runs, or a time-seeded
// one when seed is zero.
func newRand(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// acceptOne listens on addr for exactly one connection.
func acceptOne(addr string) (net.Conn, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	defer ln.Close()
	return ln.Accept()
}

// dialRetry dials addr, retrying briefly so a role started moments before
// its peer opens the listener still connects.
func dialRetry(addr string, timeout time.Duration) (net.Conn, error) {
	deadline := time.Now().Add(timeout)
	for {
		conn, err := net.DialTimeout("tcp", addr, time.Second)
		if err == nil {
			return conn, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("dial %s: %w", addr, err)
		}
		time.Sleep(200 * time.Millisecond)
	}
}
