package dispatch

import (
	"sync"
	"time"

	"github.com/kafkarelay/dispatch/batch"
)

// partitionKey identifies one partition's batching bucket in the input
// queue.
type partitionKey struct {
	topic     string
	partition int32
}

// pendingBatch is the batching state for one partition: the messages
// accumulated so far and the deadline by which they become ready even if
// nothing else arrives for that partition.
type pendingBatch struct {
	list   batch.MsgList
	expiry time.Time
}

func (p *pendingBatch) readyAt(now time.Time, maxMessages, maxBytes int) bool {
	if !p.expiry.After(now) {
		return true
	}
	if maxMessages > 0 && len(p.list) >= maxMessages {
		return true
	}
	if maxBytes > 0 && p.list.ByteSize() >= maxBytes {
		return true
	}
	return false
}

// InputQueue accumulates messages per topic/partition and releases them as
// a batch.BatchOfLists once each partition's linger deadline elapses or its
// size/message-count threshold is crossed, tracking the earliest
// outstanding deadline across every partition so a Connector's event loop
// can size its wait instead of polling on a fixed period.
type InputQueue struct {
	mu          sync.Mutex
	linger      time.Duration
	maxMessages int
	maxBytes    int

	pending map[partitionKey]*pendingBatch
	order   []partitionKey // first-arrived-first-released

	notify chan struct{}
}

// NewInputQueue returns an empty InputQueue. linger is how long a
// partition's first message waits for company before that partition is
// considered ready regardless of size; a zero linger means a partition is
// ready as soon as it has anything at all. maxMessages/maxBytes, when
// positive, make a partition ready early -- before its linger deadline --
// once either threshold is crossed.
func NewInputQueue(linger time.Duration, maxMessages, maxBytes int) *InputQueue {
	return &InputQueue{
		linger:      linger,
		maxMessages: maxMessages,
		maxBytes:    maxBytes,
		pending:     make(map[partitionKey]*pendingBatch),
		notify:      make(chan struct{}, 1),
	}
}

// GetSenderNotifyFd is the channel a Connector's event loop selects on to
// learn that at least one message is batching. A read from it does not by
// itself release anything; the reader must still call Get, NonblockingGet,
// or GetAllOnShutdown.
func (q *InputQueue) GetSenderNotifyFd() <-chan struct{} {
	return q.notify
}

func (q *InputQueue) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *InputQueue) keyFor(m *batch.Msg) partitionKey {
	return partitionKey{topic: m.Topic, partition: m.Partition}
}

// Put appends msg to its partition's pending batch, starting that
// partition's linger deadline if it is the first message queued for it
// since its last release.
func (q *InputQueue) Put(msg *batch.Msg) {
	q.mu.Lock()
	key := q.keyFor(msg)
	pb, ok := q.pending[key]
	if !ok {
		pb = &pendingBatch{expiry: time.Now().Add(q.linger)}
		q.pending[key] = pb
		q.order = append(q.order, key)
	}
	pb.list = append(pb.list, msg)
	q.mu.Unlock()
	q.signal()
}

// PutFront reinserts msgs ahead of anything else pending for their
// partitions and marks them immediately ready, used for messages that must
// go out before anything queued behind them: an immediate-resend ACK, or
// the residue a restarted connector inherits from its dead predecessor.
func (q *InputQueue) PutFront(msgs []*batch.Msg) {
	if len(msgs) == 0 {
		return
	}
	q.mu.Lock()
	now := time.Now()
	// Walk backwards so that prepending one message at a time leaves msgs
	// in their original order.
	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		key := q.keyFor(m)
		pb, ok := q.pending[key]
		if !ok {
			pb = &pendingBatch{expiry: now}
			q.pending[key] = pb
			q.order = append([]partitionKey{key}, q.order...)
		} else {
			pb.expiry = now
			q.moveToFront(key)
		}
		pb.list = append(batch.MsgList{m}, pb.list...)
	}
	q.mu.Unlock()
	q.signal()
}

func (q *InputQueue) moveToFront(key partitionKey) {
	for i, k := range q.order {
		if k == key {
			q.order = append(q.order[:i], q.order[i+1:]...)
			break
		}
	}
	q.order = append([]partitionKey{key}, q.order...)
}

// Get returns every partition batch that is ready at now -- its linger
// deadline has passed, or its size/message-count threshold has been
// crossed -- in the order their first message arrived. expiry is set to
// the earliest deadline among whatever partitions remain lingering, so the
// caller knows how long it may wait before calling Get again; expiry is
// the zero time if nothing remains.
func (q *InputQueue) Get(now time.Time) (ready batch.BatchOfLists, expiry time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var remaining []partitionKey
	for _, key := range q.order {
		pb := q.pending[key]
		if pb.readyAt(now, q.maxMessages, q.maxBytes) {
			ready = append(ready, pb.list)
			delete(q.pending, key)
			continue
		}
		remaining = append(remaining, key)
		if expiry.IsZero() || pb.expiry.Before(expiry) {
			expiry = pb.expiry
		}
	}
	q.order = remaining
	return ready, expiry
}

// NonblockingGet returns every partition batch regardless of its linger
// deadline or thresholds, clearing the queue. For callers (a forced flush,
// a shutdown drain) that cannot wait out the linger.
func (q *InputQueue) NonblockingGet() batch.BatchOfLists {
	q.mu.Lock()
	defer q.mu.Unlock()
	var ready batch.BatchOfLists
	for _, key := range q.order {
		ready = append(ready, q.pending[key].list)
	}
	q.pending = make(map[partitionKey]*pendingBatch)
	q.order = nil
	return ready
}

// GetAllOnShutdown drains the queue for disposition upstream, flattened to
// individual messages the way a shutdown's PendingUndelivered bucket wants
// them.
func (q *InputQueue) GetAllOnShutdown() []*batch.Msg {
	return q.NonblockingGet().Flatten()
}

// Reset discards every pending batch without returning it, for a connector
// abandoning its queue outright because its contents were already handed
// off elsewhere.
func (q *InputQueue) Reset() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = make(map[partitionKey]*pendingBatch)
	q.order = nil
}

// Len reports the number of messages currently queued across every
// partition.
func (q *InputQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for _, pb := range q.pending {
		n += len(pb.list)
	}
	return n
}
