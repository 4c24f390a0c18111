package dispatch

import "time"

// efficientBufferSize is a small channel buffer size. Bufferless channels
// force the goroutine scheduler to context-switch on every send; a small
// buffer smooths that out without masking backpressure. No channel in the
// package is sized with it: the response-frame channel uses
// Config.ChannelBufferSize and the input-queue notify channel holds one.
const efficientBufferSize = 32

// PanicHandler, if non-nil, is called with the recovered value whenever a
// goroutine launched via withRecover panics. It is nil by default, meaning
// a panic inside a connector or dispatcher goroutine propagates and crashes
// the process: a fail-fast stance on programming errors.
var PanicHandler func(interface{})

// withRecover launches fn with the configured PanicHandler as a last resort
// safety net. It does not swallow the panic when no handler is set.
func withRecover(fn func()) {
	defer func() {
		if PanicHandler != nil {
			if err := recover(); err != nil {
				PanicHandler(err)
			}
		}
	}()

	fn()
}

// resettableTimer wraps time.Timer behind an interface so tests can swap in
// a fake with a controllable channel instead of waiting on real time.
type resettableTimer interface {
	C() <-chan time.Time
	Reset(d time.Duration)
	Stop() bool
}

type realTimer struct {
	t *time.Timer
}

func newRealTimer(d time.Duration) *realTimer {
	return &realTimer{t: time.NewTimer(d)}
}

func (r *realTimer) C() <-chan time.Time     { return r.t.C }
func (r *realTimer) Reset(d time.Duration)   { r.t.Reset(d) }
func (r *realTimer) Stop() bool              { return r.t.Stop() }
