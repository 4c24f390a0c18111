// Package metrics registers the connector's monotonic event counters using
// rcrowley/go-metrics.
package metrics

import gometrics "github.com/rcrowley/go-metrics"

// Counters is the set of named counters one Connector increments during
// its lifetime, one per lifecycle and socket event worth tracking.
type Counters struct {
	registry gometrics.Registry

	AckNotRequired              gometrics.Counter
	BadProduceResponse          gometrics.Counter
	BadProduceResponseSize      gometrics.Counter
	BugProduceRequestEmpty      gometrics.Counter
	ConnectorCheckInputQueue    gometrics.Counter
	ConnectorCleanupAfterJoin   gometrics.Counter
	ConnectorConnectFail        gometrics.Counter
	ConnectorConnectSuccess     gometrics.Counter
	ConnectorFinishRun          gometrics.Counter
	ConnectorFinishWaitShutdown gometrics.Counter
	ConnectorSocketBrokerClose  gometrics.Counter
	ConnectorSocketError        gometrics.Counter
	ConnectorSocketReadSuccess  gometrics.Counter
	ConnectorSocketTimeout      gometrics.Counter
	ConnectorStartConnect       gometrics.Counter
	ConnectorStartFastShutdown  gometrics.Counter
	ConnectorStartPause         gometrics.Counter
	ConnectorStartRun           gometrics.Counter
	ConnectorStartSlowShutdown  gometrics.Counter
	ConnectorStartWaitShutdown  gometrics.Counter
	SendProduceRequestOk        gometrics.Counter
}

// New registers a fresh Counters set in its own registry, namespaced under
// prefix (typically the broker index or id) so that multiple connectors
// sharing one embedding process don't clobber each other's counters.
func New(prefix string) *Counters {
	r := gometrics.NewRegistry()
	named := func(name string) gometrics.Counter {
		return gometrics.GetOrRegisterCounter(prefix+"."+name, r)
	}

	return &Counters{
		registry:                    r,
		AckNotRequired:              named("ack_not_required"),
		BadProduceResponse:          named("bad_produce_response"),
		BadProduceResponseSize:      named("bad_produce_response_size"),
		BugProduceRequestEmpty:      named("bug_produce_request_empty"),
		ConnectorCheckInputQueue:    named("connector_check_input_queue"),
		ConnectorCleanupAfterJoin:   named("connector_cleanup_after_join"),
		ConnectorConnectFail:        named("connector_connect_fail"),
		ConnectorConnectSuccess:     named("connector_connect_success"),
		ConnectorFinishRun:          named("connector_finish_run"),
		ConnectorFinishWaitShutdown: named("connector_finish_wait_shutdown_ack"),
		ConnectorSocketBrokerClose:  named("connector_socket_broker_close"),
		ConnectorSocketError:        named("connector_socket_error"),
		ConnectorSocketReadSuccess:  named("connector_socket_read_success"),
		ConnectorSocketTimeout:      named("connector_socket_timeout"),
		ConnectorStartConnect:       named("connector_start_connect"),
		ConnectorStartFastShutdown:  named("connector_start_fast_shutdown"),
		ConnectorStartPause:         named("connector_start_pause"),
		ConnectorStartRun:           named("connector_start_run"),
		ConnectorStartSlowShutdown:  named("connector_start_slow_shutdown"),
		ConnectorStartWaitShutdown:  named("connector_start_wait_shutdown_ack"),
		SendProduceRequestOk:        named("send_produce_request_ok"),
	}
}

// Registry exposes the underlying go-metrics registry so the embedding
// process can wire it into whatever reporter it uses (graphite, expvar,
// log dump, ...).
func (c *Counters) Registry() gometrics.Registry { return c.registry }
