package dispatch

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/eapache/go-resiliency/breaker"
	"github.com/eapache/queue"
	"github.com/kafkarelay/dispatch/anomaly"
	"github.com/kafkarelay/dispatch/batch"
	"github.com/kafkarelay/dispatch/internal/metrics"
	"github.com/kafkarelay/dispatch/wire"
)

// ConnectorState names the phase of the per-broker connector's lifecycle,
// matching the Unstarted -> Connecting -> Running -> Shutdown{Slow,Fast} ->
// Finished{Ok,Error} progression exactly.
type ConnectorState int

const (
	StateUnstarted ConnectorState = iota
	StateConnecting
	StateRunning
	StateShutdownSlow
	StateShutdownFast
	StateFinishedOk
	StateFinishedError
)

func (s ConnectorState) String() string {
	switch s {
	case StateUnstarted:
		return "unstarted"
	case StateConnecting:
		return "connecting"
	case StateRunning:
		return "running"
	case StateShutdownSlow:
		return "shutdown-slow"
	case StateShutdownFast:
		return "shutdown-fast"
	case StateFinishedOk:
		return "finished-ok"
	case StateFinishedError:
		return "finished-error"
	default:
		return "unknown"
	}
}

// Result is everything a Connector's Run leaves behind once it returns:
// its final state, any terminating error, and whatever messages never got
// a definitive ACK.
type Result struct {
	State ConnectorState
	Err   error

	// AckWaitUndelivered are messages that were sent but whose ACK never
	// arrived before shutdown or abort.
	AckWaitUndelivered batch.BatchOfLists
	// PendingUndelivered are messages that were queued but never even
	// made it into a produce request.
	PendingUndelivered batch.BatchOfLists
}

type frameResult struct {
	body []byte
	err  error
}

// inFlight pairs a sent ProduceRequest with the message lists it carries,
// kept in FIFO order in ackWait so a response (correlated only by arrival
// order, never by an explicit id the broker echoes reliably) can be
// matched back to its request.
type inFlight struct {
	req   *ProduceRequest
	lists batch.BatchOfLists
}

// Connector owns one TCP connection to one broker: it pulls messages off
// its InputQueue, assembles and pipelines produce requests, classifies
// ACKs, and participates in its Dispatcher's pause/shutdown rendezvous.
// Buffering (the request factory) and socket reads stay decoupled: Run's
// goroutine owns the factory and the writes, while a separate read-loop
// goroutine per connection delivers response frames to it over a channel.
type Connector struct {
	addr string
	cfg  *Config

	input     *InputQueue
	factory   *RequestFactory
	tracker   *batch.StateTracker
	processor *ProduceResponseProcessor
	counters  *metrics.Counters
	anomalies *anomaly.Tracker
	shared    *DispatcherSharedState

	conn   net.Conn
	reader *wire.StreamReader
	frames chan frameResult

	ackWait *queue.Queue // of *inFlight

	state ConnectorState
}

// NewConnector wires a Connector for one broker address, sharing the
// DispatcherSharedState's pause and shutdown signals with every sibling
// connector in the same Dispatcher.
func NewConnector(addr string, cfg *Config, shared *DispatcherSharedState, counters *metrics.Counters) *Connector {
	tracker := batch.NewStateTracker()
	return &Connector{
		addr:      addr,
		cfg:       cfg,
		input:     NewInputQueue(cfg.Producer.Flush.Frequency, cfg.Producer.Flush.Messages, cfg.Producer.Flush.Bytes),
		factory:   NewRequestFactory(cfg.ClientID, cfg.Producer.Compression, cfg.Producer.MaxRequestBytes, cfg.Producer.Flush.MaxMessages),
		tracker:   tracker,
		processor: NewProduceResponseProcessor(tracker),
		counters:  counters,
		anomalies: anomaly.New(30 * time.Second),
		shared:    shared,
		ackWait:   queue.New(),
		state:     StateUnstarted,
	}
}

// Input returns the queue a Dispatcher appends outgoing messages to.
func (c *Connector) Input() *InputQueue { return c.input }

// State returns the connector's current lifecycle phase.
func (c *Connector) State() ConnectorState { return c.state }

// Run drives the connector through its full lifecycle and returns once it
// reaches a Finished state. It is meant to be called in its own goroutine
// by a Dispatcher.
func (c *Connector) Run() Result {
	if err := c.connect(); err != nil {
		c.state = StateFinishedError
		return c.finish(err)
	}

	c.state = StateRunning
	c.counters.ConnectorStartRun.Inc(1)
	err := c.runLoop()

	if err != nil {
		c.state = StateFinishedError
	} else {
		c.state = StateFinishedOk
	}
	return c.finish(err)
}

func (c *Connector) finish(err error) Result {
	c.counters.ConnectorFinishRun.Inc(1)
	if c.conn != nil {
		_ = c.conn.Close()
	}

	res := Result{State: c.state, Err: err}
	for c.ackWait.Length() > 0 {
		fl := c.ackWait.Remove().(*inFlight)
		res.AckWaitUndelivered = append(res.AckWaitUndelivered, fl.lists...)
	}
	res.PendingUndelivered = append(res.PendingUndelivered, c.factory.GetAll()...)
	res.PendingUndelivered = append(res.PendingUndelivered, c.input.NonblockingGet()...)
	return res
}

// connect dials the broker with a breaker-guarded retry loop, aborting
// early if a fast shutdown is requested while still connecting.
func (c *Connector) connect() error {
	c.state = StateConnecting
	c.counters.ConnectorStartConnect.Inc(1)

	b := breaker.New(3, 1, 10*time.Second)
	for {
		select {
		case <-c.shared.FastShutdownChan():
			return fmt.Errorf("%w: fast shutdown requested while connecting", ErrShuttingDown)
		default:
		}

		err := b.Run(func() error {
			conn, dialErr := net.DialTimeout("tcp", c.addr, c.cfg.KafkaSocketTimeout)
			if dialErr != nil {
				return dialErr
			}
			if tc, ok := conn.(*net.TCPConn); ok {
				if sockErr := getTCPConnSockError(tc); sockErr != nil {
					_ = conn.Close()
					return sockErr
				}
			}
			c.conn = conn
			return nil
		})

		if err == nil {
			c.counters.ConnectorConnectSuccess.Inc(1)
			// Responses declaring a body over 4 MiB are rejected as corrupt.
			c.reader = wire.NewStreamReader(c.conn, false, true, 4<<20, 4096)
			c.frames = make(chan frameResult, c.cfg.ChannelBufferSize)
			go withRecover(func() { c.readLoop() })
			return nil
		}

		c.counters.ConnectorConnectFail.Inc(1)
		if errors.Is(err, breaker.ErrBreakerOpen) {
			return fmt.Errorf("%w: %v", ErrConnectTimedOut, err)
		}
		Logger.Printf("dispatch/connector/%s connect failed, retrying: %v", c.addr, err)
	}
}

// readLoop repeatedly drives the StreamReader to completion and forwards
// each finished frame to frames. Once the connection is no longer usable it
// sends one terminal error on frames, which is how the main loop learns of
// it, and then closes the channel.
func (c *Connector) readLoop() {
	defer close(c.frames)
	for {
		_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.KafkaSocketTimeout))
		state, err := c.reader.Read()
		if err != nil {
			c.frames <- frameResult{err: err}
			return
		}
		switch state {
		case wire.MsgReady:
			body := append([]byte(nil), c.reader.GetReadyMsg()...)
			c.frames <- frameResult{body: body}
			c.reader.ConsumeReadyMsg()
		case wire.DataInvalid:
			c.frames <- frameResult{err: fmt.Errorf("%w: declared frame length exceeded limit", ErrBadProduceResponse)}
			return
		case wire.AtEnd:
			c.frames <- frameResult{err: wire.ErrConnectionLost}
			return
		case wire.ReadNeeded:
			c.counters.ConnectorSocketTimeout.Inc(1)
		}
	}
}

// runLoop is the connector's steady-state event loop: it drains ready
// batches out of the input queue into the request factory, flushes
// assembled requests to the socket, and classifies responses as they
// arrive, all while watching for a pause or shutdown signal from its
// Dispatcher.
func (c *Connector) runLoop() error {
	var batchTimer resettableTimer = newRealTimer(c.cfg.ShutdownMaxDelay)
	defer batchTimer.Stop()

	for {
		select {
		case <-c.input.GetSenderNotifyFd():
			c.counters.ConnectorCheckInputQueue.Inc(1)
			if err := c.checkInput(batchTimer); err != nil {
				return err
			}

		case <-batchTimer.C():
			if err := c.checkInput(batchTimer); err != nil {
				return err
			}

		case fr, ok := <-c.frames:
			if !ok {
				return nil
			}
			if fr.err != nil {
				c.counters.ConnectorSocketError.Inc(1)
				c.shared.RequestPause()
				return fr.err
			}
			c.counters.ConnectorSocketReadSuccess.Inc(1)
			if err := c.handleResponse(fr.body); err != nil {
				return err
			}

		case <-c.shared.PauseChan():
			c.counters.ConnectorStartPause.Inc(1)
			return c.drainForPause()

		case <-c.shared.SlowShutdownChan():
			c.counters.ConnectorStartSlowShutdown.Inc(1)
			return c.drainSlow()

		case <-c.shared.FastShutdownChan():
			c.counters.ConnectorStartFastShutdown.Inc(1)
			return nil
		}
	}
}

// checkInput pulls whatever batches are ready out of the input queue into
// the request factory and flushes them, then re-arms timer to fire at the
// next partition's batch-expiry deadline (or, if nothing remains pending,
// parks it for ShutdownMaxDelay so it still wakes the loop eventually).
func (c *Connector) checkInput(timer resettableTimer) error {
	ready, expiry := c.input.Get(time.Now())
	for _, list := range ready {
		c.tracker.MsgEnterBatching(list)
		c.factory.Put(list)
	}
	c.rearmBatchTimer(timer, expiry)
	if len(ready) == 0 {
		return nil
	}
	return c.flush()
}

func (c *Connector) rearmBatchTimer(timer resettableTimer, expiry time.Time) {
	if expiry.IsZero() {
		timer.Reset(c.cfg.ShutdownMaxDelay)
		return
	}
	d := time.Until(expiry)
	if d < 0 {
		d = 0
	}
	timer.Reset(d)
}

// drainAllPending moves every message still sitting in the input queue
// into the request factory regardless of its batch-expiry deadline, for
// the shutdown path where waiting out the linger no longer makes sense.
func (c *Connector) drainAllPending() {
	for _, list := range c.input.NonblockingGet() {
		c.tracker.MsgEnterBatching(list)
		c.factory.Put(list)
	}
}

// flush builds one produce request from the pending set (whatever
// BuildRequest's byte and per-partition caps leave out stays in the
// factory), sends it, and
// parks it on ackWait awaiting a response (or, for RequiredAcks ==
// NoResponse, immediately resolves it as successful).
func (c *Connector) flush() error {
	if c.factory.IsEmpty() {
		return nil
	}

	req, ok := c.factory.BuildRequest()
	if !ok {
		c.counters.BugProduceRequestEmpty.Inc(1)
		Logger.Printf("dispatch/connector/%s bug: %v", c.addr, ErrProduceRequestEmpty)
		return nil
	}

	lists := req.Topics.flatten()

	payload, err := c.factory.Encode(req, c.cfg.Producer.RequiredAcks, int32(c.cfg.Producer.Timeout/time.Millisecond))
	if err != nil {
		return fmt.Errorf("encoding produce request: %w", err)
	}

	if err := c.writeAll(payload); err != nil {
		// Not fully sent: hand the lists back to the factory so they
		// surface in PendingUndelivered.
		for _, list := range lists {
			c.factory.PutFront(list)
		}
		return err
	}
	c.counters.SendProduceRequestOk.Inc(1)

	if c.cfg.Producer.RequiredAcks == NoResponse {
		c.counters.AckNotRequired.Inc(1)
		for _, list := range lists {
			c.tracker.MsgEnterProcessed(list)
		}
		return nil
	}

	for _, list := range lists {
		c.tracker.MsgEnterAckWait(list)
	}
	c.ackWait.Add(&inFlight{req: req, lists: lists})
	return nil
}

func (c *Connector) writeAll(payload []byte) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.KafkaSocketTimeout))
	for len(payload) > 0 {
		n, err := c.conn.Write(payload)
		if err != nil {
			c.shared.RequestPause()
			return fmt.Errorf("%w: %v", wire.ErrConnectionLost, err)
		}
		payload = payload[n:]
	}
	return nil
}

func (c *Connector) handleResponse(body []byte) error {
	if c.ackWait.Length() == 0 {
		c.counters.BadProduceResponse.Inc(1)
		return fmt.Errorf("%w: unsolicited response with nothing in flight", ErrBadProduceResponse)
	}

	resp, err := wire.DecodeProduceResponse(body)
	if err != nil {
		c.counters.BadProduceResponseSize.Inc(1)
		return fmt.Errorf("%w: %v", ErrBadProduceResponse, err)
	}

	fl := c.ackWait.Remove().(*inFlight)
	result, err := c.processor.Process(fl.req, resp)
	if err != nil {
		return err
	}

	// The result lists mix partitions while PutFront takes one partition's
	// list, so requeue message by message, backwards to keep their order.
	for i := len(result.ImmediateResend) - 1; i >= 0; i-- {
		c.factory.PutFront(batch.MsgList{result.ImmediateResend[i]})
	}
	if len(result.PauseAndResend) > 0 {
		c.shared.RequestPause()
		for i := len(result.PauseAndResend) - 1; i >= 0; i-- {
			c.factory.PutFront(batch.MsgList{result.PauseAndResend[i]})
		}
	}
	if len(result.Lost) > 0 {
		if c.anomalies.ShouldReport("lost-messages:"+c.addr, time.Now()) {
			Logger.Printf("dispatch/connector/%s broker rejected %d messages with a non-retryable error", c.addr, len(result.Lost))
		}
		c.shared.RequestPause()
		return fmt.Errorf("%w: broker rejected %d messages with a fatal error", ErrBadProduceResponse, len(result.Lost))
	}
	return nil
}

// drainForPause stops sending and waits only for whatever is already in
// flight to resolve, up to ShutdownMaxDelay, before exiting so the
// dispatcher can restart every connector together once the shared pause
// rendezvous releases them. Anything still sitting in the input queue or
// request factory surfaces through finish()'s PendingUndelivered bucket
// and gets requeued on the replacement connector.
func (c *Connector) drainForPause() error {
	deadline := time.NewTimer(c.cfg.ShutdownMaxDelay)
	defer deadline.Stop()

	for c.ackWait.Length() > 0 {
		select {
		case fr, ok := <-c.frames:
			if !ok {
				return ErrPauseRestart
			}
			if fr.err != nil {
				return fr.err
			}
			if err := c.handleResponse(fr.body); err != nil {
				return err
			}
		case <-deadline.C:
			return ErrPauseRestart
		case <-c.shared.FastShutdownChan():
			return nil
		}
	}
	return ErrPauseRestart
}

// drainSlow implements the slow-drain phase: stop accepting new traffic
// beyond what's already pending, keep flushing and waiting for ACKs until
// everything in flight resolves or ShutdownMaxDelay elapses, at which
// point it escalates to the fast-shutdown outcome on its own.
func (c *Connector) drainSlow() error {
	deadline := time.NewTimer(c.cfg.ShutdownMaxDelay)
	defer deadline.Stop()

	c.drainAllPending()
	if err := c.flush(); err != nil {
		return err
	}

	for c.ackWait.Length() > 0 {
		select {
		case fr, ok := <-c.frames:
			if !ok {
				return nil
			}
			if fr.err != nil {
				c.shared.RequestPause()
				return fr.err
			}
			if err := c.handleResponse(fr.body); err != nil {
				return err
			}
		case <-deadline.C:
			c.counters.ConnectorStartWaitShutdown.Inc(1)
			return nil
		case <-c.shared.FastShutdownChan():
			return nil
		}
	}

	c.counters.ConnectorFinishWaitShutdown.Inc(1)
	return nil
}
