package dispatch

import (
	"errors"
	"fmt"
	"sync"
	"time"

	multierror "github.com/hashicorp/go-multierror"
	"github.com/kafkarelay/dispatch/batch"
	"github.com/kafkarelay/dispatch/internal/metrics"
	"golang.org/x/sync/errgroup"
)

// Router resolves which broker address owns a given topic/partition. This
// package leaves broker discovery to the embedder, the same way it leaves
// message-state tracking and anomaly collaborators as pluggable concerns:
// broker discovery is a cluster-metadata concern, not a per-broker connector
// concern.
type Router func(topic string, partition int32) (brokerAddr string, err error)

// Dispatcher owns one Connector per broker address and routes outgoing
// messages to the right one: the component that starts, restarts, and
// jointly shuts down every per-broker connector.
type Dispatcher struct {
	cfg    *Config
	router Router
	shared *DispatcherSharedState

	mu         sync.Mutex
	connectors map[string]*Connector
	counters   map[string]*metrics.Counters

	group   *errgroup.Group
	results map[string]Result
}

// NewDispatcher returns a Dispatcher that will route through router once
// started.
func NewDispatcher(cfg *Config, router Router) *Dispatcher {
	return &Dispatcher{
		cfg:        cfg,
		router:     router,
		shared:     NewDispatcherSharedState(),
		connectors: make(map[string]*Connector),
		counters:   make(map[string]*metrics.Counters),
		results:    make(map[string]Result),
	}
}

// Start launches one Connector goroutine per broker address. Each
// connector runs until it reaches a Finished state; JoinAll collects their
// results.
func (d *Dispatcher) Start(brokerAddrs []string) error {
	if err := d.cfg.Validate(); err != nil {
		return err
	}

	var g errgroup.Group
	d.group = &g

	d.shared.SetParticipants(len(brokerAddrs))

	d.mu.Lock()
	for _, addr := range brokerAddrs {
		counters := metrics.New(addr)
		conn := NewConnector(addr, d.cfg, d.shared, counters)
		d.connectors[addr] = conn
		d.counters[addr] = counters
	}
	d.mu.Unlock()

	for addr, conn := range d.connectors {
		addr, conn := addr, conn
		g.Go(func() error { return d.runWithRestart(addr, conn) })
	}
	return nil
}

// runWithRestart drives one broker's Connector. It restarts the connector
// in one of two ways whenever it exits abnormally mid-lifecycle (a socket
// error, a bad response, anything other than a clean finish or a shutdown
// preempting it): immediately, once every sibling connector has also
// arrived at the shared pause rendezvous, if the exit was pause-triggered;
// otherwise with capped exponential backoff. Messages the dead connector
// never got an ACK for, or never even sent, are requeued ahead of anything
// new before the replacement connector starts, so a restart never silently
// drops traffic. The backoff path is grounded on the breaker-guarded retry
// loop Connector.connect already uses for dialing, generalized here to the
// whole connector lifecycle.
func (d *Dispatcher) runWithRestart(addr string, conn *Connector) error {
	backoff := 500 * time.Millisecond

	for {
		res := conn.Run()
		d.mu.Lock()
		d.results[addr] = res
		d.mu.Unlock()

		if res.Err == nil || errors.Is(res.Err, ErrShuttingDown) {
			return nil
		}

		select {
		case <-d.shared.FastShutdownChan():
			return fmt.Errorf("%w: broker %s: %v", ErrConnectorAborted, addr, res.Err)
		case <-d.shared.SlowShutdownChan():
			return fmt.Errorf("%w: broker %s: %v", ErrConnectorAborted, addr, res.Err)
		default:
		}

		if d.shared.IsPaused() {
			Logger.Printf("dispatch/dispatcher restarting connector %s after cross-connector pause: %v", addr, res.Err)
			if !d.shared.PauseRendezvous() {
				return fmt.Errorf("%w: broker %s: %v", ErrConnectorAborted, addr, res.Err)
			}
			backoff = 500 * time.Millisecond
		} else {
			Logger.Printf("dispatch/dispatcher restarting connector %s in %s after error: %v", addr, backoff, res.Err)
			time.Sleep(backoff)
			if backoff *= 2; backoff > d.cfg.DispatcherRestartMaxDelay {
				backoff = d.cfg.DispatcherRestartMaxDelay
			}
		}

		undelivered := append(res.AckWaitUndelivered.Flatten(), res.PendingUndelivered.Flatten()...)

		d.mu.Lock()
		conn = NewConnector(addr, d.cfg, d.shared, d.counters[addr])
		d.connectors[addr] = conn
		d.mu.Unlock()
		conn.Input().PutFront(undelivered)
	}
}

// connectorFor routes a topic/partition to its broker's Connector.
func (d *Dispatcher) connectorFor(topic string, partition int32) (*Connector, error) {
	addr, err := d.router(topic, partition)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	conn, ok := d.connectors[addr]
	d.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("dispatch: no connector for broker %q", addr)
	}
	return conn, nil
}

// Dispatch enqueues one message for its partition's broker, to be flushed
// on the connector's normal batching schedule.
func (d *Dispatcher) Dispatch(msg *batch.Msg) error {
	// A paused dispatcher still accepts enqueues; connectors simply won't
	// flush until the pause lifts. Only shutdown rejects.
	select {
	case <-d.shared.FastShutdownChan():
		return ErrShuttingDown
	case <-d.shared.SlowShutdownChan():
		return ErrShuttingDown
	default:
	}

	conn, err := d.connectorFor(msg.Topic, msg.Partition)
	if err != nil {
		return err
	}
	conn.Input().Put(msg)
	return nil
}

// DispatchNow enqueues exactly as Dispatch does: the message waits for its
// partition's normal batching trigger (linger deadline or size threshold)
// and does not force an immediate flush.
func (d *Dispatcher) DispatchNow(msg *batch.Msg) error {
	return d.Dispatch(msg)
}

// StartSlowShutdown begins the slow-drain phase on every connector: each
// will keep flushing and waiting on in-flight ACKs up to its
// ShutdownMaxDelay before finishing.
func (d *Dispatcher) StartSlowShutdown() {
	d.shared.triggerSlowShutdown()
}

// StartFastShutdown aborts every connector immediately, wherever it is in
// its lifecycle, whether or not a slow shutdown is already underway.
func (d *Dispatcher) StartFastShutdown() {
	d.shared.triggerFastShutdown()
}

// RequestPause trips the cross-connector pause rendezvous directly; normally
// a connector does this itself on a metadata-refresh-class ACK, a fatal ACK,
// or a transient socket error, but tests and embedders needing an external
// trigger (e.g. a manual topology change) can call it too. Every connector
// exits and restarts together once all of them have reached the rendezvous;
// nothing needs to explicitly lift the pause afterward.
func (d *Dispatcher) RequestPause() { d.shared.RequestPause() }

// GetPauseFd exposes the pause signal channel for external observers (test
// harnesses, health checks) that want to know a pause is in effect without
// going through a connector.
func (d *Dispatcher) GetPauseFd() <-chan struct{} { return d.shared.PauseChan() }

// GetShutdownWaitFd exposes the slow-shutdown signal channel.
func (d *Dispatcher) GetShutdownWaitFd() <-chan struct{} { return d.shared.SlowShutdownChan() }

// JoinAll blocks until every connector goroutine has finished, then returns
// a go-multierror wrapping the first abnormal connector exit the errgroup
// reported (later ones are not included), or nil if none ended abnormally.
func (d *Dispatcher) JoinAll() error {
	if d.group == nil {
		return nil
	}
	var merr *multierror.Error
	if err := d.group.Wait(); err != nil {
		merr = multierror.Append(merr, err)
	}
	return merr.ErrorOrNil()
}

// GetNoAckQueueAfterShutdown returns every message, across every connector,
// that was sent but never received a definitive ACK before shutdown. Valid
// only after JoinAll returns.
func (d *Dispatcher) GetNoAckQueueAfterShutdown() batch.BatchOfLists {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out batch.BatchOfLists
	for _, res := range d.results {
		out = append(out, res.AckWaitUndelivered...)
	}
	return out
}

// GetSendWaitQueueAfterShutdown returns every message, across every
// connector, that was queued but never assembled into a sent request
// before shutdown. Valid only after JoinAll returns.
func (d *Dispatcher) GetSendWaitQueueAfterShutdown() batch.BatchOfLists {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out batch.BatchOfLists
	for _, res := range d.results {
		out = append(out, res.PendingUndelivered...)
	}
	return out
}

// GetAckCount returns the total number of produce requests every connector
// sent successfully, for a coarse liveness/throughput signal.
func (d *Dispatcher) GetAckCount() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	var total int64
	for _, c := range d.counters {
		total += c.SendProduceRequestOk.Count()
	}
	return total
}
