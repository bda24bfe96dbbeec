package chat

import (
	"sync"
	"sync/atomic"

	"BeepPager/module/mailbox"
	"BeepPager/module/protocol"

	"github.com/pkg/errors"
)

var ErrQueueTaken = errors.New("outbound queue already taken")

// Conn is the state of one live connection: anonymous until login, then bound
// to a user's mailbox, and subscribed while it receives live updates.
type Conn struct {
	id  uint64
	out *outbox

	mu     sync.Mutex
	user   string
	device string
	box    *mailbox.Mailbox

	subscribed atomic.Bool
	taken      atomic.Bool
	teardown   sync.Once
}

func newConn(limit int) *Conn {
	return &Conn{out: newOutbox(limit)}
}

func (c *Conn) ID() uint64 { return c.id }

// User returns the logged-in user and device; both are empty while anonymous.
func (c *Conn) User() (user, device string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.user, c.device
}

func (c *Conn) LoggedIn() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.box != nil
}

func (c *Conn) Subscribed() bool { return c.subscribed.Load() }

// Push enqueues an event for this connection. It reports false when the
// connection is going away.
func (c *Conn) Push(e protocol.Event) bool { return c.out.push(e) }

// takeQueue hands the receive side of the queue to its single consumer.
func (c *Conn) takeQueue() (*outbox, error) {
	if !c.taken.CompareAndSwap(false, true) {
		return nil, ErrQueueTaken
	}
	return c.out, nil
}

func (c *Conn) session() (user, device string, box *mailbox.Mailbox) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.user, c.device, c.box
}

// bind stores the login identity and returns the previous binding.
func (c *Conn) bind(user, device string, box *mailbox.Mailbox) (prevUser, prevDevice string, prevBox *mailbox.Mailbox) {
	c.mu.Lock()
	defer c.mu.Unlock()
	prevUser, prevDevice, prevBox = c.user, c.device, c.box
	c.user, c.device, c.box = user, device, box
	return
}

// OnSubscribed runs under the mailbox lock, so the confirmation is queued
// before any live update.
func (c *Conn) OnSubscribed() {
	c.subscribed.Store(true)
	c.Push(protocol.SyncUpdates{Synced: true})
}

func (c *Conn) OnUpdate(u protocol.Update) {
	c.Push(protocol.UpdatePushed{Update: u})
}

var _ mailbox.Subscriber = (*Conn)(nil)
