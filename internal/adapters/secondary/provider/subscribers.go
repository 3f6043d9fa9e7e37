package provider

import (
	"sync"

	"github.com/fredcamaral/bulletin/internal/domain/entities"
	"github.com/fredcamaral/bulletin/internal/domain/ports"
)

// subscription guards one callback so it never runs after cancel returns
type subscription struct {
	mu     sync.Mutex
	active bool
	fn     ports.SnapshotFunc
}

func (s *subscription) deliver(snapshot entities.ProviderSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		s.fn(snapshot)
	}
}

func (s *subscription) cancel() {
	s.mu.Lock()
	s.active = false
	s.mu.Unlock()
}

// subscribers is the callback registry shared by the providers
type subscribers struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]*subscription
}

func newSubscribers() *subscribers {
	return &subscribers{subs: make(map[int]*subscription)}
}

// add registers fn and reports whether it is the only subscriber
func (s *subscribers) add(fn ports.SnapshotFunc) (int, *subscription, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	sub := &subscription{active: true, fn: fn}
	s.subs[s.nextID] = sub
	return s.nextID, sub, len(s.subs) == 1
}

// remove cancels the subscription and returns how many remain
func (s *subscribers) remove(id int) int {
	s.mu.Lock()
	sub, ok := s.subs[id]
	delete(s.subs, id)
	remaining := len(s.subs)
	s.mu.Unlock()

	if ok {
		sub.cancel()
	}
	return remaining
}

func (s *subscribers) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

func (s *subscribers) broadcast(snapshot entities.ProviderSnapshot) {
	s.mu.Lock()
	subs := make([]*subscription, 0, len(s.subs))
	for _, sub := range s.subs {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	for _, sub := range subs {
		sub.deliver(snapshot)
	}
}
