package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

type storedSession struct {
	s        *Session
	lastUsed time.Time
}

// SessionStore keeps live sessions in memory. Games are never persisted;
// sessions idle for longer than the configured TTL are swept.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*storedSession
	deps     SessionDeps
	baseSeed uint64
	created  uint64
	now      func() time.Time
}

// NewSessionStore creates sessions sharing deps. A non-zero seed makes every
// session reproducible: the n-th session is seeded with seed+n.
func NewSessionStore(deps SessionDeps, seed uint64) *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*storedSession),
		deps:     deps,
		baseSeed: seed,
		now:      time.Now,
	}
}

func (st *SessionStore) Create(ctx context.Context, opts SessionOptions) (*Session, error) {
	st.mu.Lock()
	st.created++
	if st.baseSeed != 0 && opts.Seed == 0 {
		opts.Seed = st.baseSeed + st.created
	}
	st.mu.Unlock()

	id := uuid.NewString()
	s, err := NewSession(ctx, id, st.deps, opts)
	if err != nil {
		return nil, err
	}

	st.mu.Lock()
	st.sessions[id] = &storedSession{s: s, lastUsed: st.now()}
	st.mu.Unlock()
	return s, nil
}

// Get returns a session and marks it as used.
func (st *SessionStore) Get(id string) (*Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	e, ok := st.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	e.lastUsed = st.now()
	return e.s, nil
}

// Delete forgets a session and drops its event subscribers.
func (st *SessionStore) Delete(id string) error {
	st.mu.Lock()
	_, ok := st.sessions[id]
	delete(st.sessions, id)
	st.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	st.closeEvents(id)
	return nil
}

// Sweep deletes sessions not used for ttl and returns how many went.
func (st *SessionStore) Sweep(ttl time.Duration) int {
	cutoff := st.now().Add(-ttl)
	var expired []string
	st.mu.Lock()
	for id, e := range st.sessions {
		if e.lastUsed.Before(cutoff) {
			expired = append(expired, id)
			delete(st.sessions, id)
		}
	}
	st.mu.Unlock()

	for _, id := range expired {
		st.closeEvents(id)
	}
	if len(expired) > 0 {
		st.deps.Log.Info().Int("expired", len(expired)).Dur("idle_ttl", ttl).Msg("swept idle sessions")
	}
	return len(expired)
}

// RunSweeper sweeps every ttl/4 until ctx ends. A zero ttl disables it.
func (st *SessionStore) RunSweeper(ctx context.Context, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	ticker := time.NewTicker(max(ttl/4, time.Second))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st.Sweep(ttl)
		}
	}
}

func (st *SessionStore) closeEvents(id string) {
	if hub, ok := st.deps.Events.(*Hub); ok {
		hub.CloseSession(id)
	}
}

func (st *SessionStore) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

func (st *SessionStore) Tiers() *TierTable {
	return st.deps.Tiers
}
