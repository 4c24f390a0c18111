package dispatch

import "errors"

// Sentinel errors returned by the dispatch package. Wrapped with %w where a
// caller might want to unwrap down to one of these with errors.Is.
var (
	// ErrBadProduceResponse is returned when a broker's response body
	// fails to decode, or is missing a topic/partition block the request
	// asked about.
	ErrBadProduceResponse = errors.New("dispatch: bad produce response")

	// ErrProduceRequestEmpty guards against sending a produce request
	// with no message data, treated as a programming bug rather than a
	// runtime condition.
	ErrProduceRequestEmpty = errors.New("dispatch: produce request empty")

	// ErrShuttingDown is returned by Dispatch/DispatchNow once a slow or
	// fast shutdown has been requested; callers must stop enqueueing new
	// messages.
	ErrShuttingDown = errors.New("dispatch: dispatcher is shutting down")

	// ErrConnectorAborted is returned by JoinAll for any connector that
	// exited via a socket error or malformed response rather than a clean
	// shutdown.
	ErrConnectorAborted = errors.New("dispatch: connector aborted")

	// ErrInvalidConfig is wrapped by Config.Validate.
	ErrInvalidConfig = errors.New("dispatch: invalid configuration")

	// ErrConnectTimedOut is returned when dialing a broker keeps failing
	// (each attempt bounded by KafkaSocketTimeout) until the connect
	// breaker opens.
	ErrConnectTimedOut = errors.New("dispatch: connect timed out")

	// ErrPauseRestart is returned by a Connector's Run when it exits
	// cleanly because the shared cross-connector pause was asserted. A
	// Dispatcher restarts the connector once every sibling has also
	// arrived at the pause rendezvous, rather than on a backoff timer.
	ErrPauseRestart = errors.New("dispatch: connector restarting after cross-connector pause")
)
