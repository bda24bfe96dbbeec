package mailbox

import "BeepPager/module/protocol"

// ring is a fixed-capacity circular buffer of updates, oldest first.
// When full, push overwrites the oldest entry. Callers hold the mailbox lock.
type ring struct {
	buf   []protocol.Update
	head  int
	count int
}

func newRing(capacity int) ring {
	return ring{buf: make([]protocol.Update, capacity)}
}

func (r *ring) push(u protocol.Update) {
	idx := (r.head + r.count) % len(r.buf)
	r.buf[idx] = u
	if r.count == len(r.buf) {
		r.head = (r.head + 1) % len(r.buf)
	} else {
		r.count++
	}
}

// at returns the i-th retained update, 0 being the oldest.
func (r *ring) at(i int) protocol.Update {
	return r.buf[(r.head+i)%len(r.buf)]
}

func (r *ring) len() int { return r.count }
