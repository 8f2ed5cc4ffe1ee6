package availability

import (
	"sync"

	"github.com/google/uuid"
)

// Subscriber is one connected client. Deliveries land in a bounded queue that the
// transport drains.
type Subscriber struct {
	id    string
	queue chan Snapshot
}

// NewSubscriber allocates a subscriber whose queue holds size pending snapshots.
func NewSubscriber(id string, size int) *Subscriber {
	if size < 1 {
		size = 1
	}
	return &Subscriber{id: id, queue: make(chan Snapshot, size)}
}

func (s *Subscriber) ID() string { return s.id }

// Updates is the receive side of the subscriber's queue.
func (s *Subscriber) Updates() <-chan Snapshot { return s.queue }

// offer enqueues without blocking and reports whether the snapshot was accepted.
func (s *Subscriber) offer(snap Snapshot) bool {
	select {
	case s.queue <- snap:
		return true
	default:
		return false
	}
}

// Registry is the set of subscribers per tour. Membership changes are independent, so a
// single RWMutex is enough.
type Registry struct {
	mu    sync.RWMutex
	rooms map[uuid.UUID]map[*Subscriber]struct{}
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[uuid.UUID]map[*Subscriber]struct{})}
}

// Add joins sub to tourID's room and reports whether it was newly added.
func (r *Registry) Add(tourID uuid.UUID, sub *Subscriber) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[tourID]
	if !ok {
		room = make(map[*Subscriber]struct{})
		r.rooms[tourID] = room
	}
	if _, exists := room[sub]; exists {
		return false
	}
	room[sub] = struct{}{}
	return true
}

// Remove drops sub from tourID's room. Unknown rooms and members are ignored.
func (r *Registry) Remove(tourID uuid.UUID, sub *Subscriber) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removeLocked(tourID, sub)
}

// RemoveAll drops sub from every room and returns how many it left.
func (r *Registry) RemoveAll(sub *Subscriber) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for tourID := range r.rooms {
		if r.removeLocked(tourID, sub) {
			removed++
		}
	}
	return removed
}

func (r *Registry) removeLocked(tourID uuid.UUID, sub *Subscriber) bool {
	room, ok := r.rooms[tourID]
	if !ok {
		return false
	}
	if _, exists := room[sub]; !exists {
		return false
	}
	delete(room, sub)
	if len(room) == 0 {
		delete(r.rooms, tourID)
	}
	return true
}

// Subscribers returns a copy of tourID's members, safe to range over without the lock.
func (r *Registry) Subscribers(tourID uuid.UUID) []*Subscriber {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room := r.rooms[tourID]
	out := make([]*Subscriber, 0, len(room))
	for sub := range room {
		out = append(out, sub)
	}
	return out
}

func (r *Registry) Count(tourID uuid.UUID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[tourID])
}
