package state

import (
	"sync"
	"time"
)

// PublishedStore remembers the last payload sent per topic so the broker can
// skip unchanged publishes and still republish on a heartbeat cadence.
type PublishedStore interface {
	GetLast(topic string) (string, time.Time, bool)
	Update(topic string, payload string)
	HasChanged(topic string, payload string) bool
	Clear()
}

type publishedStore struct {
	store  map[string]string
	sentAt map[string]time.Time
	mu     sync.RWMutex
}

func NewPublishedStore() PublishedStore {
	return &publishedStore{
		store:  make(map[string]string),
		sentAt: make(map[string]time.Time),
	}
}

func (s *publishedStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store = make(map[string]string)
	s.sentAt = make(map[string]time.Time)
}

func (s *publishedStore) GetLast(topic string) (string, time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	payload, ok := s.store[topic]
	sent, ok2 := s.sentAt[topic]
	return payload, sent, ok && ok2
}

func (s *publishedStore) Update(topic string, payload string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store[topic] = payload
	s.sentAt[topic] = time.Now()
}

func (s *publishedStore) HasChanged(topic string, payload string) bool {
	last, _, ok := s.GetLast(topic)
	if !ok {
		return true
	}
	return last != payload
}
