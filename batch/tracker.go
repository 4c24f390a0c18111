package batch

import "sync"

// StateTracker records aggregate counts of messages in each MsgState so
// that an embedding process can answer "how many messages are currently
// batching / awaiting ACK / processed" without walking every connector's
// queues. Connectors call the MsgEnter* methods as a message crosses a
// state transition; StateTracker never holds a reference to the message
// itself, only the counts, per the state-tracker abstraction sketched in
// the design notes ("connectors never hold a reference to a message's
// state bit directly").
type StateTracker struct {
	mu     sync.Mutex
	counts map[MsgState]int64
}

// NewStateTracker returns a zeroed StateTracker.
func NewStateTracker() *StateTracker {
	return &StateTracker{counts: make(map[MsgState]int64)}
}

func (t *StateTracker) move(list MsgList, from, to MsgState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counts[from] -= int64(len(list))
	t.counts[to] += int64(len(list))
	for _, m := range list {
		m.state = to
	}
}

// MsgEnterBatching records a freshly enqueued list entering Batching. A Msg
// in StateNew was never itself counted in the tracker (it only starts being
// tracked once a connector sees it for the first time), so this only
// increments the destination bucket; it does not debit StateNew the way
// every later transition debits its own prior bucket.
func (t *StateTracker) MsgEnterBatching(list MsgList) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counts[StateBatching] += int64(len(list))
	for _, m := range list {
		m.state = StateBatching
	}
}

// MsgRequeueForResend transitions a list back to Batching from whatever
// state it is actually in (AckWait, for a retryable or reroutable ACK), as
// opposed to MsgEnterBatching's fixed New->Batching edge.
func (t *StateTracker) MsgRequeueForResend(list MsgList) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, m := range list {
		t.counts[m.state]--
		m.state = StateBatching
	}
	t.counts[StateBatching] += int64(len(list))
}

// MsgEnterAckWait transitions a fully-sent list from Batching to AckWait.
func (t *StateTracker) MsgEnterAckWait(list MsgList) {
	t.move(list, StateBatching, StateAckWait)
}

// MsgEnterProcessed transitions an acknowledged (or fire-and-forget) list to
// Processed, from whichever state it was previously in.
func (t *StateTracker) MsgEnterProcessed(list MsgList) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, m := range list {
		t.counts[m.state]--
		m.state = StateProcessed
	}
	t.counts[StateProcessed] += int64(len(list))
}

// MsgEnterLost transitions a fatally-failed list to Lost.
func (t *StateTracker) MsgEnterLost(list MsgList) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, m := range list {
		t.counts[m.state]--
		m.state = StateLost
	}
	t.counts[StateLost] += int64(len(list))
}

// Snapshot returns a point-in-time copy of the state counts.
func (t *StateTracker) Snapshot() map[MsgState]int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[MsgState]int64, len(t.counts))
	for k, v := range t.counts {
		out[k] = v
	}
	return out
}
