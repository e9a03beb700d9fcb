// Package session holds the process-wide registry of live viva sessions.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/keshav2232/viva/internal/viva/domain"
)

// ErrTranscriptMoved is returned by AppendTurnAt when the transcript no longer
// has the expected length.
var ErrTranscriptMoved = errors.New("transcript changed since snapshot")

// Store is an in-memory session registry.
//
// The registry lock only guards the map. Each session has its own mutex that
// serialises transcript appends and stats accumulation, so independent
// sessions never contend with each other.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*entry

	idleTTL time.Duration
	now     func() time.Time
	newID   func() string
}

type entry struct {
	mu         sync.Mutex
	sess       domain.Session
	lastActive time.Time
	// gone is set once the entry left the registry; late writers must not touch it.
	gone bool
}

// Option configures a Store.
type Option func(*Store)

// WithIdleTTL enables expiry of sessions idle for longer than ttl.
// Expiry only happens through Sweep or Run; zero disables it.
func WithIdleTTL(ttl time.Duration) Option {
	return func(s *Store) { s.idleTTL = ttl }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator overrides session identifier generation.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) { s.newID = gen }
}

// NewStore creates an empty registry.
func NewStore(opts ...Option) *Store {
	s := &Store{
		sessions: make(map[string]*entry),
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create registers a new session with an empty transcript and zeroed stats.
func (s *Store) Create(cfg domain.SessionConfig) domain.Session {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.newID()
	for {
		if _, taken := s.sessions[id]; !taken {
			break
		}
		id = s.newID()
	}

	e := &entry{
		sess: domain.Session{
			ID:          id,
			Topic:       cfg.Topic,
			Difficulty:  cfg.Difficulty,
			Persona:     cfg.Persona,
			Notes:       cfg.Notes,
			Transcript:  []domain.Turn{},
			FillerStats: domain.NewFillerStats(),
			StartTime:   now,
		},
		lastActive: now,
	}
	s.sessions[id] = e
	return e.sess.Clone()
}

// Get returns a snapshot of the session.
func (s *Store) Get(id string) (domain.Session, bool) {
	e := s.lookup(id)
	if e == nil {
		return domain.Session{}, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gone {
		return domain.Session{}, false
	}
	return e.sess.Clone(), true
}

// AppendTurn appends turns in call order and returns the resulting snapshot.
// It is a no-op when the session does not exist.
func (s *Store) AppendTurn(id string, turns ...domain.Turn) (domain.Session, bool) {
	e := s.lookup(id)
	if e == nil {
		return domain.Session{}, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gone {
		return domain.Session{}, false
	}
	e.sess.Transcript = append(e.sess.Transcript, turns...)
	e.lastActive = s.now()
	return e.sess.Clone(), true
}

// AppendTurnAt appends turns only if the transcript still holds exactly at
// turns. It returns domain.ErrSessionNotFound or ErrTranscriptMoved otherwise.
func (s *Store) AppendTurnAt(id string, at int, turns ...domain.Turn) (domain.Session, error) {
	e := s.lookup(id)
	if e == nil {
		return domain.Session{}, domain.ErrSessionNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gone {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	if len(e.sess.Transcript) != at {
		return domain.Session{}, ErrTranscriptMoved
	}
	e.sess.Transcript = append(e.sess.Transcript, turns...)
	e.lastActive = s.now()
	return e.sess.Clone(), nil
}

// Record accumulates an analysis and appends turns in one critical section,
// so no reader observes the stats without the turn that produced them.
func (s *Store) Record(id string, analysis domain.AnalysisResult, turns ...domain.Turn) (domain.Session, bool) {
	e := s.lookup(id)
	if e == nil {
		return domain.Session{}, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gone {
		return domain.Session{}, false
	}
	e.sess.FillerStats.Add(analysis)
	e.sess.Transcript = append(e.sess.Transcript, turns...)
	e.lastActive = s.now()
	return e.sess.Clone(), true
}

// AccumulateFillerStats adds one analysis into the session aggregate.
// It is a no-op when the session does not exist.
func (s *Store) AccumulateFillerStats(id string, analysis domain.AnalysisResult) bool {
	e := s.lookup(id)
	if e == nil {
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gone {
		return false
	}
	e.sess.FillerStats.Add(analysis)
	e.lastActive = s.now()
	return true
}

// Destroy removes the session and returns its final snapshot.
// Destroying an absent session is a no-op.
func (s *Store) Destroy(id string) (domain.Session, bool) {
	s.mu.Lock()
	e, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if !ok {
		return domain.Session{}, false
	}

	// Wait out any in-flight mutation before taking the final snapshot.
	e.mu.Lock()
	defer e.mu.Unlock()
	e.gone = true
	return e.sess.Clone(), true
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Sweep removes sessions idle since before now-idleTTL and returns how many were removed.
func (s *Store) Sweep(now time.Time) int {
	if s.idleTTL <= 0 {
		return 0
	}
	cutoff := now.Add(-s.idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, e := range s.sessions {
		e.mu.Lock()
		idle := e.lastActive.Before(cutoff)
		if idle {
			e.gone = true
		}
		e.mu.Unlock()
		if idle {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// Run sweeps expired sessions every interval until ctx is done.
// It returns immediately when no idle TTL is configured.
func (s *Store) Run(ctx context.Context, interval time.Duration, onSweep func(removed int)) {
	if s.idleTTL <= 0 {
		return
	}
	if interval <= 0 {
		interval = s.idleTTL / 2
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(s.now()); n > 0 && onSweep != nil {
				onSweep(n)
			}
		}
	}
}

func (s *Store) lookup(id string) *entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[id]
}
