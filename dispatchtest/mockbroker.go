// Package dispatchtest provides an in-process mock Kafka broker for testing
// a Connector without a real cluster: a single listener serving one
// expectation per request, narrowed to the one request type this connector
// ever sends (Produce) and driven by wire.ProduceResponse values.
package dispatchtest

import (
	"encoding/binary"
	"errors"
	"io"
	"net"
	"time"

	"github.com/kafkarelay/dispatch/wire"
)

// TestState is the subset of *testing.T a MockBroker needs, so it can be
// used from any test framework without importing "testing" into a non-test
// file.
type TestState interface {
	Error(args ...interface{})
	Errorf(format string, args ...interface{})
	Fatal(args ...interface{})
}

// Expectation describes how the broker should respond to the next request
// it receives.
type Expectation struct {
	// Latency delays the response, for exercising socket-timeout and
	// slow-broker paths.
	Latency time.Duration
	// Response is sent back verbatim if non-nil. A nil Response means
	// "receive the request but never reply," for exercising ACK-timeout
	// and shutdown-while-waiting paths.
	Response *wire.ProduceResponse
	// CloseAfter, if true, closes the connection right after this
	// expectation is served (or instead of serving it, if Response is
	// also nil), for exercising connection-loss handling.
	CloseAfter bool
}

// MockBroker is a single-connection fake broker: a TCP listener on a
// kernel-assigned localhost port that reads one length-prefixed Produce
// request per queued Expectation and replies accordingly.
type MockBroker struct {
	t            TestState
	listener     net.Listener
	expectations chan *Expectation
	stopped      chan struct{}
}

// NewMockBroker starts a MockBroker listening on an ephemeral localhost
// port.
func NewMockBroker(t TestState) *MockBroker {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	b := &MockBroker{
		t:            t,
		listener:     ln,
		expectations: make(chan *Expectation, 512),
		stopped:      make(chan struct{}),
	}
	go b.serve()
	return b
}

// Addr returns the address a Connector should dial to reach this broker.
func (b *MockBroker) Addr() string { return b.listener.Addr().String() }

// Expect queues one expectation, consumed by the next request the broker
// receives.
func (b *MockBroker) Expect(e *Expectation) { b.expectations <- e }

// Returns is a convenience wrapper for the common case of always
// acknowledging successfully.
func (b *MockBroker) Returns(resp *wire.ProduceResponse) {
	b.Expect(&Expectation{Response: resp})
}

// Close stops accepting connections and fails the test if any queued
// expectation was never consumed.
func (b *MockBroker) Close() {
	if n := len(b.expectations); n > 0 {
		b.t.Errorf("mock broker closed with %d unconsumed expectation(s)", n)
	}
	close(b.expectations)
	// serve may be parked in Accept with no connection open (e.g. right
	// after a CloseAfter-triggered drop), which closing expectations
	// alone can never unblock; closing the listener does.
	_ = b.listener.Close()
	<-b.stopped
}

// serve accepts connections one at a time for as long as expectations
// remain, so a connector that reconnects after a CloseAfter-triggered drop
// (e.g. a Dispatcher restart) finds the broker still willing to talk.
func (b *MockBroker) serve() {
	defer close(b.stopped)
	for {
		conn, err := b.listener.Accept()
		if err != nil {
			return
		}
		done := b.serveConn(conn)
		conn.Close()
		if done {
			return
		}
	}
}

// serveConn drains queued expectations against one connection until either
// a CloseAfter expectation ends it (returning false: the broker should keep
// accepting reconnects) or the expectations channel itself is closed
// (returning true: no more connections will ever be served).
func (b *MockBroker) serveConn(conn net.Conn) bool {
	sizeBuf := make([]byte, 4)
	for exp := range b.expectations {
		if _, err := io.ReadFull(conn, sizeBuf); err != nil {
			if !errors.Is(err, io.EOF) {
				b.t.Error(err)
			}
			return false
		}
		body := make([]byte, binary.BigEndian.Uint32(sizeBuf))
		if _, err := io.ReadFull(conn, body); err != nil {
			b.t.Error(err)
			return false
		}

		if exp.Latency > 0 {
			time.Sleep(exp.Latency)
		}

		if exp.Response != nil {
			respBody, err := wire.EncodeProduceResponse(exp.Response)
			if err != nil {
				b.t.Error(err)
				return false
			}
			frame := make([]byte, 4+len(respBody))
			binary.BigEndian.PutUint32(frame, uint32(len(respBody)))
			copy(frame[4:], respBody)
			if _, err := conn.Write(frame); err != nil {
				b.t.Errorf("writing mock response: %v", err)
				return false
			}
		}

		if exp.CloseAfter {
			return false
		}
	}
	return true
}
