package dispatch

import (
	"testing"
	"time"

	"github.com/kafkarelay/dispatch/batch"
	"github.com/kafkarelay/dispatch/dispatchtest"
	"github.com/kafkarelay/dispatch/internal/metrics"
	"github.com/kafkarelay/dispatch/wire"
	"github.com/stretchr/testify/require"
)

func testConfig() *Config {
	c := NewConfig()
	c.Producer.Flush.Frequency = 10 * time.Millisecond
	c.KafkaSocketTimeout = 200 * time.Millisecond
	c.ShutdownMaxDelay = time.Second
	return c
}

func TestConnectorSendsAndClassifiesSuccess(t *testing.T) {
	broker := dispatchtest.NewMockBroker(t)
	defer broker.Close()

	broker.Returns(&wire.ProduceResponse{
		CorrelationID: 0,
		Blocks: map[string]map[int32]wire.ProduceResponseBlock{
			"events": {0: {Err: wire.ErrNoError, Offset: 42}},
		},
	})

	shared := NewDispatcherSharedState()
	conn := NewConnector(broker.Addr(), testConfig(), shared, metrics.New("t1"))

	conn.Input().Put(batch.NewMsg("events", 0, nil, []byte("hello")))

	done := make(chan Result, 1)
	go func() { done <- conn.Run() }()

	shared.triggerSlowShutdown()

	select {
	case res := <-done:
		require.NoError(t, res.Err)
		require.Equal(t, StateFinishedOk, res.State)
		require.Empty(t, res.AckWaitUndelivered)
	case <-time.After(3 * time.Second):
		t.Fatal("connector did not finish in time")
	}
}

func TestConnectorAssertsPauseOnFatalAck(t *testing.T) {
	broker := dispatchtest.NewMockBroker(t)
	defer broker.Close()

	broker.Returns(&wire.ProduceResponse{
		Blocks: map[string]map[int32]wire.ProduceResponseBlock{
			"events": {0: {Err: wire.ErrCorruptMessage, Offset: -1}},
		},
	})

	shared := NewDispatcherSharedState()
	shared.SetParticipants(1)
	conn := NewConnector(broker.Addr(), testConfig(), shared, metrics.New("t3"))

	conn.Input().Put(batch.NewMsg("events", 0, nil, []byte("hello")))

	done := make(chan Result, 1)
	go func() { done <- conn.Run() }()

	select {
	case <-shared.PauseChan():
	case <-time.After(3 * time.Second):
		t.Fatal("expected a fatal ACK to assert the shared pause")
	}

	select {
	case res := <-done:
		require.Error(t, res.Err)
		require.Equal(t, StateFinishedError, res.State)
	case <-time.After(3 * time.Second):
		t.Fatal("connector did not terminate after a fatal ACK")
	}
}

func TestConnectorAssertsPauseOnConnectionLoss(t *testing.T) {
	broker := dispatchtest.NewMockBroker(t)
	defer broker.Close()
	broker.Expect(&dispatchtest.Expectation{CloseAfter: true})

	shared := NewDispatcherSharedState()
	shared.SetParticipants(1)
	conn := NewConnector(broker.Addr(), testConfig(), shared, metrics.New("t4"))

	conn.Input().Put(batch.NewMsg("events", 0, nil, []byte("hello")))

	done := make(chan Result, 1)
	go func() { done <- conn.Run() }()

	select {
	case <-shared.PauseChan():
	case <-time.After(3 * time.Second):
		t.Fatal("expected a dropped connection to assert the shared pause")
	}

	select {
	case res := <-done:
		require.Error(t, res.Err)
		require.Equal(t, StateFinishedError, res.State)
	case <-time.After(3 * time.Second):
		t.Fatal("connector did not terminate after connection loss")
	}
}

func TestConnectorCarriesUndeliveredOnFastShutdown(t *testing.T) {
	broker := dispatchtest.NewMockBroker(t)
	defer broker.Close()
	// No expectation queued: the broker accepts the connection and then
	// never replies, so the request sits in ackWait until fast shutdown.

	shared := NewDispatcherSharedState()
	conn := NewConnector(broker.Addr(), testConfig(), shared, metrics.New("t2"))

	conn.Input().Put(batch.NewMsg("events", 0, nil, []byte("hello")))

	done := make(chan Result, 1)
	go func() { done <- conn.Run() }()

	time.Sleep(50 * time.Millisecond)
	shared.triggerFastShutdown()

	select {
	case res := <-done:
		require.Equal(t, StateFinishedOk, res.State)
		require.Len(t, res.AckWaitUndelivered, 1)
	case <-time.After(3 * time.Second):
		t.Fatal("connector did not finish in time")
	}
}
