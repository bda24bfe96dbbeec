package mailbox

import (
	"sync"

	"BeepPager/module/protocol"

	"github.com/pkg/errors"
)

const (
	DefaultRetention = 1024
	DefaultSyncBatch = 10
)

var ErrInconsistentLog = errors.New("mailbox log inconsistent")

// Subscriber receives live updates of one Mailbox.
// Both callbacks run with the mailbox lock held and must not block.
type Subscriber interface {
	// OnSubscribed is called once per successful registration, before any OnUpdate.
	OnSubscribed()
	OnUpdate(protocol.Update)
}

// OutOfSync is returned instead of a subscription when the device is behind.
type OutOfSync struct {
	// TooLong means the next update the device needs is no longer retained.
	TooLong bool
	Updates []protocol.Update
}

// Mailbox is the per-user ordered update log with its live subscriber set.
type Mailbox struct {
	mu    sync.Mutex
	pts   uint64
	log   ring
	batch int
	subs  map[Subscriber]struct{}
}

type Option func(*Mailbox)

// WithSyncBatch caps the catch-up batch returned by SubscribeOrSync.
func WithSyncBatch(n int) Option {
	return func(m *Mailbox) {
		if n > 0 {
			m.batch = n
		}
	}
}

// New creates an empty mailbox keeping the most recent retention updates.
func New(retention int, opts ...Option) *Mailbox {
	if retention <= 0 {
		retention = DefaultRetention
	}
	m := &Mailbox{
		log:   newRing(retention),
		batch: DefaultSyncBatch,
		subs:  make(map[Subscriber]struct{}),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Post appends payload as the next update and pushes it to every subscriber.
func (m *Mailbox) Post(payload protocol.Payload) protocol.Update {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pts++
	u := protocol.Update{Pts: m.pts, Payload: payload}
	m.log.push(u)
	for s := range m.subs {
		s.OnUpdate(u)
	}
	return u
}

// SubscribeOrSync registers sub for live delivery when the device at devicePts is
// caught up, and returns nil. Otherwise it returns the next catch-up batch and
// leaves sub unregistered.
func (m *Mailbox) SubscribeOrSync(devicePts uint64, sub Subscriber) (*OutOfSync, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.log.len() == 0 {
		m.subscribe(sub)
		return nil, nil
	}

	front := m.log.at(0).Pts
	if front+uint64(m.log.len())-1 != m.pts {
		return nil, errors.Wrapf(ErrInconsistentLog, "front=%d len=%d pts=%d", front, m.log.len(), m.pts)
	}

	var start int
	if devicePts >= front {
		if devicePts >= m.pts {
			m.subscribe(sub)
			return nil, nil
		}
		start = int(devicePts - front + 1)
	}

	end := start + m.batch
	if end > m.log.len() {
		end = m.log.len()
	}
	updates := make([]protocol.Update, 0, end-start)
	for i := start; i < end; i++ {
		updates = append(updates, m.log.at(i))
	}

	delete(m.subs, sub)
	return &OutOfSync{
		TooLong: devicePts+1 < front,
		Updates: updates,
	}, nil
}

func (m *Mailbox) subscribe(sub Subscriber) {
	m.subs[sub] = struct{}{}
	sub.OnSubscribed()
}

// Unsubscribe stops live delivery to sub. Unknown subscribers are ignored.
func (m *Mailbox) Unsubscribe(sub Subscriber) {
	m.mu.Lock()
	delete(m.subs, sub)
	m.mu.Unlock()
}

// Pts returns the last assigned sequence.
func (m *Mailbox) Pts() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pts
}

// Len returns the number of retained updates.
func (m *Mailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.log.len()
}

// Front returns the oldest retained pts, or 0 when nothing is retained.
func (m *Mailbox) Front() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.log.len() == 0 {
		return 0
	}
	return m.log.at(0).Pts
}

func (m *Mailbox) Subscribers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}
