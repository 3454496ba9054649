package telephony

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Store is the in-memory session map. It owns all membership
// mutation: sessions enter through Put and leave through Delete or
// the eviction sweep. A session absent from the store is
// indistinguishable from one that never existed.
type Store struct {
	mu        sync.RWMutex
	sessions  map[string]*Session
	byCallSID map[string]string // provider call SID -> session ID

	ttl    time.Duration // max age for sessions never explicitly ended
	linger time.Duration // how long terminal sessions stay visible to polls
	sweep  time.Duration

	log zerolog.Logger
}

// StoreConfig bounds the store's memory use. Zero values fall back
// to the defaults below.
type StoreConfig struct {
	SessionTTL     time.Duration
	TerminalLinger time.Duration
	SweepInterval  time.Duration
}

const (
	defaultSessionTTL     = time.Hour
	defaultTerminalLinger = 10 * time.Minute
	defaultSweepInterval  = time.Minute
)

// NewStore creates an empty session store.
func NewStore(cfg StoreConfig, log zerolog.Logger) *Store {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = defaultSessionTTL
	}
	if cfg.TerminalLinger <= 0 {
		cfg.TerminalLinger = defaultTerminalLinger
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = defaultSweepInterval
	}
	return &Store{
		sessions:  make(map[string]*Session),
		byCallSID: make(map[string]string),
		ttl:       cfg.SessionTTL,
		linger:    cfg.TerminalLinger,
		sweep:     cfg.SweepInterval,
		log:       log.With().Str("component", "session-store").Logger(),
	}
}

// Put inserts a new session. The session's ID and ProviderCallID
// must already be set; both are indexed and neither may collide with
// an existing entry.
func (st *Store) Put(s *Session) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	if _, exists := st.sessions[s.ID]; exists {
		return errors.Errorf("session %s already exists", s.ID)
	}
	st.sessions[s.ID] = s
	if s.ProviderCallID != "" {
		st.byCallSID[s.ProviderCallID] = s.ID
	}
	return nil
}

// Get looks a session up by its identifier.
func (st *Store) Get(id string) (*Session, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.sessions[id]
	return s, ok
}

// ByCallSID looks a session up by the provider's call identifier.
func (st *Store) ByCallSID(callSID string) (*Session, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	id, ok := st.byCallSID[callSID]
	if !ok {
		return nil, false
	}
	s, ok := st.sessions[id]
	return s, ok
}

// ByConference resolves a conference name back to its session using
// the deterministic name derivation. The session must both exist and
// actually be in conference mode.
func (st *Store) ByConference(name string) (*Session, bool) {
	id, ok := sessionIDForConference(name)
	if !ok {
		return nil, false
	}
	s, ok := st.Get(id)
	if !ok || s.ConferenceName != name {
		return nil, false
	}
	return s, true
}

// Delete removes a session. Deleting an unknown ID is a no-op.
func (st *Store) Delete(id string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.remove(id)
}

// remove must be called with st.mu held for writing.
func (st *Store) remove(id string) {
	s, ok := st.sessions[id]
	if !ok {
		return
	}
	delete(st.sessions, id)
	if s.ProviderCallID != "" {
		delete(st.byCallSID, s.ProviderCallID)
	}
}

// Len returns the number of live entries.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// ============================================
// EVICTION
// ============================================

// StartSweeper evicts aged sessions on a fixed interval until ctx is
// cancelled. Terminal sessions are kept for the linger window so
// late polls still observe the final status; everything else expires
// after the TTL. A webhook arriving for an evicted session is simply
// an unknown-session no-op.
func (st *Store) StartSweeper(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(st.sweep)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				st.evictAged(now)
			}
		}
	}()
}

func (st *Store) evictAged(now time.Time) {
	type victim struct {
		id     string
		status Status
	}
	var victims []victim

	st.mu.RLock()
	for id, s := range st.sessions {
		status, updated := s.sweepState()
		switch {
		case status.Terminal() && now.Sub(updated) > st.linger:
			victims = append(victims, victim{id, status})
		case !status.Terminal() && now.Sub(updated) > st.ttl:
			victims = append(victims, victim{id, status})
		}
	}
	st.mu.RUnlock()

	if len(victims) == 0 {
		return
	}

	st.mu.Lock()
	for _, v := range victims {
		st.remove(v.id)
	}
	st.mu.Unlock()

	for _, v := range victims {
		st.log.Info().
			Str("session_id", v.id).
			Str("status", string(v.status)).
			Msg("evicted aged session")
	}
}
