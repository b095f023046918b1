package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/peerwise/peerwise/internal/domain"
	"go.uber.org/zap"
)

var ErrSessionNotFound = errors.New("session not found")

const (
	DefaultTTL             = 10 * time.Minute
	DefaultCleanupInterval = 1 * time.Minute
)

// Store holds active consultation sessions and evicts idle ones on a
// background sweep. Multiple stores can coexist; each owns its sweep.
type Store struct {
	ttl    time.Duration
	logger *zap.Logger

	mu       sync.Mutex
	sessions map[string]*domain.ConsultationSession

	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	now func() time.Time
}

type Options struct {
	TTL             time.Duration
	CleanupInterval time.Duration
}

// NewStore creates a session store and starts its eviction sweep.
func NewStore(opts Options, logger *zap.Logger) *Store {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = DefaultCleanupInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Store{
		ttl:      opts.TTL,
		logger:   logger,
		sessions: make(map[string]*domain.ConsultationSession),
		interval: opts.CleanupInterval,
		stopCh:   make(chan struct{}),
		now:      time.Now,
	}

	s.wg.Add(1)
	go s.sweepLoop()
	return s
}

func (s *Store) sweepLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stopCh:
			return
		}
	}
}

// sweep removes idle sessions in one bounded pass under the lock.
func (s *Store) sweep() {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for id, sess := range s.sessions {
		if now.Sub(sess.LastActivity) > s.ttl {
			delete(s.sessions, id)
			evicted++
		}
	}
	if evicted > 0 {
		s.logger.Debug("evicted idle sessions", zap.Int("count", evicted))
	}
}

// CreateSession starts a new conversation and returns its id.
func (s *Store) CreateSession() string {
	id := uuid.NewString()
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = &domain.ConsultationSession{
		ID:           id,
		CreatedAt:    now,
		LastActivity: now,
	}
	return id
}

// AddExchange appends one question/response turn and bumps the
// session's activity timestamp.
func (s *Store) AddExchange(id, question, response string) error {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	sess.History = append(sess.History, domain.Exchange{
		Question:  question,
		Response:  response,
		Timestamp: now,
	})
	sess.LastActivity = now
	return nil
}

// GetHistory returns a copy of the session's ordered exchange list.
func (s *Store) GetHistory(id string) ([]domain.Exchange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	history := make([]domain.Exchange, len(sess.History))
	copy(history, sess.History)
	return history, nil
}

// ExpireSession removes a session immediately.
func (s *Store) ExpireSession(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(s.sessions, id)
	return nil
}

// ActiveCount reports the number of live sessions.
func (s *Store) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Destroy stops the sweep and drops all state. Safe to call more than
// once; intended for graceful shutdown.
func (s *Store) Destroy() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = make(map[string]*domain.ConsultationSession)
}
