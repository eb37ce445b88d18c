package session

import (
	"sync"
	"sync/atomic"
)

// Store holds the latest published session snapshot. One writer publishes,
// any number of readers load the snapshot or subscribe for updates.
type Store struct {
	latest atomic.Pointer[BrewSession]

	mu     sync.Mutex
	nextID int
	subs   map[int]chan *BrewSession
}

func NewStore() *Store {
	s := &Store{subs: make(map[int]chan *BrewSession)}
	s.latest.Store(empty)
	return s
}

// Latest returns the current snapshot. It never returns nil.
func (s *Store) Latest() *BrewSession {
	return s.latest.Load()
}

// Publish swaps in snap and notifies subscribers without blocking. A subscriber
// that has not drained its previous update gets the newer snapshot instead.
func (s *Store) Publish(snap *BrewSession) {
	if snap == nil {
		snap = empty
	}
	s.latest.Store(snap)

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- snap:
			continue
		default:
		}
		// Replace the stale pending update with the newest one.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}

// Subscribe registers for snapshot updates. The returned func unsubscribes and
// closes the channel; it is safe to call more than once.
func (s *Store) Subscribe(buffer int) (<-chan *BrewSession, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan *BrewSession, buffer)

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
			close(ch)
		})
	}
}

// Subscribers reports the number of active subscriptions.
func (s *Store) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}
