package chat

import (
	"sync"

	"BeepPager/module/protocol"
)

// Registry owns every live connection of this process, keyed by connection id.
type Registry struct {
	mu    sync.RWMutex
	next  uint64
	conns map[uint64]*Conn
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[uint64]*Conn)}
}

// Register assigns the next id (starting at 1) to c and stores it.
func (r *Registry) Register(c *Conn) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	c.id = r.next
	r.conns[c.id] = c
	return c.id
}

func (r *Registry) Unregister(id uint64) {
	r.mu.Lock()
	delete(r.conns, id)
	r.mu.Unlock()
}

func (r *Registry) Get(id uint64) (*Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[id]
	return c, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Broadcast pushes e to every connection except exclude and returns how many
// accepted it. Connections already going away are skipped.
func (r *Registry) Broadcast(e protocol.Event, exclude uint64) int {
	r.mu.RLock()
	targets := make([]*Conn, 0, len(r.conns))
	for id, c := range r.conns {
		if id != exclude {
			targets = append(targets, c)
		}
	}
	r.mu.RUnlock()

	n := 0
	for _, c := range targets {
		if c.Push(e) {
			n++
		}
	}
	return n
}
