package statsig

import (
	"sync"
	"time"
)

// TTLSet is a set whose members expire in bulk. The logger uses it as the
// exposure dedupe window, membership only needs to survive roughly one
// flush interval.
type TTLSet struct {
	store         map[string]struct{}
	mu            sync.RWMutex
	resetInterval time.Duration
	tick          *time.Ticker
	stop          chan struct{}
	stopOnce      sync.Once
}

func NewTTLSet() *TTLSet {
	set := &TTLSet{
		store:         make(map[string]struct{}),
		resetInterval: time.Minute,
	}
	set.tick = time.NewTicker(set.resetInterval)
	set.stop = make(chan struct{})

	go set.startResetThread()
	return set
}

func (s *TTLSet) Add(key string) {
	s.mu.Lock()
	s.store[key] = struct{}{}
	s.mu.Unlock()
}

func (s *TTLSet) Contains(key string) bool {
	s.mu.RLock()
	_, exists := s.store[key]
	s.mu.RUnlock()
	return exists
}

func (s *TTLSet) Reset() {
	s.mu.Lock()
	s.store = make(map[string]struct{})
	s.mu.Unlock()
}

func (s *TTLSet) Shutdown() {
	s.stopOnce.Do(func() {
		s.tick.Stop()
		close(s.stop)
	})
}

func (s *TTLSet) startResetThread() {
	for {
		select {
		case <-s.stop:
			return
		case <-s.tick.C:
			s.Reset()
		}
	}
}
