// Package search keeps per-session recent weather searches in memory.
package search

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/mwesner/msn-weather-service/internal/models"
)

// DefaultCapacity is the number of searches remembered per session.
const DefaultCapacity = 10

// Search is one recorded lookup: the resolved location plus when it happened.
type Search struct {
	Location models.Location `json:"location"`
	Time     time.Time       `json:"time"`
}

type history struct {
	searches []Search // most recent first
	lastSeen time.Time
}

// Store holds bounded recent-search histories keyed by session ID. Repeating
// a search moves it to the front instead of duplicating it; sessions idle past
// maxIdle are pruned on the next write.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*history
	capacity int
	maxIdle  time.Duration
	clock    clockwork.Clock
}

// NewStore creates a store remembering capacity searches per session. Sessions
// untouched for maxIdle are dropped; maxIdle of 0 disables pruning.
func NewStore(capacity int, maxIdle time.Duration, clock clockwork.Clock) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Store{
		sessions: make(map[string]*history),
		capacity: capacity,
		maxIdle:  maxIdle,
		clock:    clock,
	}
}

// Add records a successful search for the session. An existing entry for the
// same location moves to the front; the oldest entry falls off past capacity.
func (s *Store) Add(sessionID string, location models.Location) {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked(now)

	h, ok := s.sessions[sessionID]
	if !ok {
		h = &history{}
		s.sessions[sessionID] = h
	}
	h.lastSeen = now

	for i, existing := range h.searches {
		if existing.Location.City == location.City && existing.Location.Country == location.Country {
			h.searches = append(h.searches[:i], h.searches[i+1:]...)
			break
		}
	}

	h.searches = append([]Search{{Location: location, Time: now}}, h.searches...)
	if len(h.searches) > s.capacity {
		h.searches = h.searches[:s.capacity]
	}
}

// List returns the session's searches, most recent first. The returned slice
// is a copy.
func (s *Store) List(sessionID string) []Search {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.sessions[sessionID]
	if !ok {
		return nil
	}
	h.lastSeen = s.clock.Now()

	out := make([]Search, len(h.searches))
	copy(out, h.searches)
	return out
}

// Clear forgets the session's history.
func (s *Store) Clear(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
}

func (s *Store) pruneLocked(now time.Time) {
	if s.maxIdle <= 0 {
		return
	}
	for id, h := range s.sessions {
		if now.Sub(h.lastSeen) > s.maxIdle {
			delete(s.sessions, id)
		}
	}
}
