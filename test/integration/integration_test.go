// Package integration provides end-to-end tests for the QKD-FH pipeline over
// real TCP sockets: key exchange, seed agreement, and the hopping-channel
// message transfer, with and without an interceptor.
package integration

import (
	"context"
	"math/rand"
	"net"
	"sync"
	"testing"

	"github.com/pzverkov/qkd-go/internal/constants"
	"github.com/pzverkov/qkd-go/pkg/hopping"
	"github.com/pzverkov/qkd-go/pkg/intercept"
	"github.com/pzverkov/qkd-go/pkg/qkd"
	"github.com/pzverkov/qkd-go/pkg/wire"
)

// tcpPair returns two connected TCP endpoints on loopback.
func tcpPair(t *testing.T) (net.Conn, net.Conn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	type accepted struct {
		conn net.Conn
		err  error
	}
	ch := make(chan accepted, 1)
	go func() {
		conn, err := ln.Accept()
		ch <- accepted{conn, err}
	}()

	client, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	server := <-ch
	if server.err != nil {
		t.Fatalf("accept: %v", server.err)
	}
	t.Cleanup(func() {
		_ = client.Close()
		_ = server.conn.Close()
	})
	return server.conn, client
}

// TestFullPipeline runs key exchange and message transfer end to end over TCP.
func TestFullPipeline(t *testing.T) {
	senderConn, receiverConn := tcpPair(t)
	senderLink := wire.NewLink(senderConn, constants.DefaultTimeout)
	receiverLink := wire.NewLink(receiverConn, constants.DefaultTimeout)

	sender, err := qkd.NewSender(senderLink, qkd.Config{
		PhotonCount: 256,
		KeyLength:   16,
		LossRate:    0.1,
		Rand:        rand.New(rand.NewSource(101)),
	})
	if err != nil {
		t.Fatalf("NewSender: %v", err)
	}
	receiver, err := qkd.NewReceiver(receiverLink, qkd.Config{
		KeyLength: 16,
		Rand:      rand.New(rand.NewSource(102)),
	})
	if err != nil {
		t.Fatalf("NewReceiver: %v", err)
	}

	var (
		wg         sync.WaitGroup
		sRes, rRes qkd.Result
		sErr, rErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		sRes, sErr = sender.Run(context.Background())
	}()
	go func() {
		defer wg.Done()
		rRes, rErr = receiver.Run(context.Background())
	}()
	wg.Wait()

	if sErr != nil || rErr != nil {
		t.Fatalf("key exchange failed: sender=%v receiver=%v", sErr, rErr)
	}
	if sRes.Seed != rRes.Seed {
		t.Fatalf("seed disagreement: %d vs %d", sRes.Seed, rRes.Seed)
	}

	// Message transfer on a fresh connection, hopping on the agreed seed.
	txConn, rxConn := tcpPair(t)
	tx := hopping.NewTransmitter(wire.NewLink(txConn, constants.DefaultTimeout), sRes.Seed, nil, nil, nil)
	rx := hopping.NewReceiver(wire.NewLink(rxConn, constants.DefaultTimeout), rRes.Seed, nil, nil, nil)

	var (
		txErr    error
		received string
		rxErr    error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		txErr = tx.Transmit(context.Background(), constants.DefaultMessage)
	}()
	go func() {
		defer wg.Done()
		received, rxErr = rx.Receive(context.Background())
	}()
	wg.Wait()

	if txErr != nil || rxErr != nil {
		t.Fatalf("hopping transfer failed: tx=%v rx=%v", txErr, rxErr)
	}
	if received != constants.DefaultMessage {
		t.Errorf("received %q, want %q", received, constants.DefaultMessage)
	}
}

// TestPipelineWithInterceptor runs the exchange through an intercept-resend
// relay over TCP and verifies the session refuses to commit a key.
func TestPipelineWithInterceptor(t *testing.T) {
	senderConn, eveUpConn := tcpPair(t)
	eveDownConn, receiverConn := tcpPair(t)

	sender, err := qkd.NewSender(wire.NewLink(senderConn, constants.DefaultTimeout), qkd.Config{
		PhotonCount:   512,
		KeyLength:     32,
		QBERThreshold: 0.02,
		Rand:          rand.New(rand.NewSource(201)),
	})
	if err != nil {
		t.Fatalf("NewSender: %v", err)
	}
	receiver, err := qkd.NewReceiver(wire.NewLink(receiverConn, constants.DefaultTimeout), qkd.Config{
		KeyLength: 32,
		Rand:      rand.New(rand.NewSource(202)),
	})
	if err != nil {
		t.Fatalf("NewReceiver: %v", err)
	}
	eve := intercept.New(intercept.Config{
		Strategy: intercept.StrategyRandom,
		Rand:     rand.New(rand.NewSource(203)),
	})

	eveUp := wire.NewLink(eveUpConn, 0)
	eveDown := wire.NewLink(eveDownConn, 0)
	eveDone := make(chan intercept.Stats, 1)
	go func() {
		stats, _ := eve.Run(context.Background(), eveUp, eveDown)
		eveDone <- stats
	}()

	var (
		wg         sync.WaitGroup
		sRes, rRes qkd.Result
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		sRes, _ = sender.Run(context.Background())
	}()
	go func() {
		defer wg.Done()
		rRes, _ = receiver.Run(context.Background())
	}()
	wg.Wait()

	_ = eveUp.Close()
	_ = eveDown.Close()
	stats := <-eveDone

	if sRes.Status != qkd.StatusErrorRateExceeded {
		t.Errorf("sender status = %s (rate %v), want error-rate-exceeded",
			sRes.Status, sRes.Stats.ErrorRate)
	}
	if rRes.Status != qkd.StatusAborted {
		t.Errorf("receiver status = %s, want aborted", rRes.Status)
	}
	if len(sRes.Key) != 0 || len(rRes.Key) != 0 {
		t.Error("a key was committed through an intercepted channel")
	}
	if stats.PhotonsIntercepted == 0 {
		t.Error("interceptor saw no photons")
	}
}
