package chat

import (
	"sync"

	"BeepPager/module/protocol"

	"github.com/pkg/errors"
)

var (
	ErrQueueClosed  = errors.New("outbound queue closed")
	ErrSlowConsumer = errors.New("outbound queue limit exceeded")
)

// outbox is the per-connection FIFO of outbound events. Producers never block;
// the single consumer waits on ready and drains everything queued so far.
type outbox struct {
	mu       sync.Mutex
	items    []protocol.Event
	ready    chan struct{}
	limit    int // <=0 means unbounded
	closed   bool
	overflow bool
}

func newOutbox(limit int) *outbox {
	return &outbox{ready: make(chan struct{}, 1), limit: limit}
}

// push enqueues e. It returns false once the queue is closed; exceeding the
// limit closes the queue.
func (o *outbox) push(e protocol.Event) bool {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return false
	}
	if o.limit > 0 && len(o.items) >= o.limit {
		o.closed = true
		o.overflow = true
		o.items = nil
		o.mu.Unlock()
		o.signal()
		return false
	}
	o.items = append(o.items, e)
	o.mu.Unlock()
	o.signal()
	return true
}

func (o *outbox) signal() {
	select {
	case o.ready <- struct{}{}:
	default:
	}
}

// drain takes every queued event in order. The error is set once the queue has
// been closed and nothing is left to deliver.
func (o *outbox) drain() ([]protocol.Event, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	items := o.items
	o.items = nil
	switch {
	case len(items) > 0:
		return items, nil
	case o.overflow:
		return nil, ErrSlowConsumer
	case o.closed:
		return nil, ErrQueueClosed
	}
	return nil, nil
}

func (o *outbox) close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	o.mu.Unlock()
	o.signal()
}
