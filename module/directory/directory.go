package directory

import (
	"sync"

	"BeepPager/module/mailbox"
)

// Directory maps a user identity to its Mailbox. Entries are created on first
// login and live for the lifetime of the process.
type Directory struct {
	mu        sync.RWMutex
	mailboxes map[string]*mailbox.Mailbox
	newBox    func() *mailbox.Mailbox
}

func New(retention int, opts ...mailbox.Option) *Directory {
	return &Directory{
		mailboxes: make(map[string]*mailbox.Mailbox),
		newBox:    func() *mailbox.Mailbox { return mailbox.New(retention, opts...) },
	}
}

// GetOrCreate returns the user's Mailbox, creating it on first use.
func (d *Directory) GetOrCreate(user string) *mailbox.Mailbox {
	d.mu.RLock()
	m, ok := d.mailboxes[user]
	d.mu.RUnlock()
	if ok {
		return m
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if m, ok = d.mailboxes[user]; ok {
		return m
	}
	m = d.newBox()
	d.mailboxes[user] = m
	return m
}

// Lookup returns the Mailbox of a user that has logged in at least once.
func (d *Directory) Lookup(user string) (*mailbox.Mailbox, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	m, ok := d.mailboxes[user]
	return m, ok
}

func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.mailboxes)
}
