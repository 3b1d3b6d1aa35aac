package services

import (
	"sync"
	"time"

	"initium-core/models"
)

// Identity is the account the local node acts for.
type Identity struct {
	UserID string `json:"user_id"`
	Token  string `json:"-"`
	Guest  bool   `json:"guest"`
}

// Authenticated is true for a signed-in, non-guest identity with a token.
func (i Identity) Authenticated() bool {
	return i.UserID != "" && !i.Guest && i.UserID != models.GuestUserID && i.Token != ""
}

// SyncStatus is a point-in-time view of the session's sync state.
type SyncStatus struct {
	Identity      Identity   `json:"identity"`
	Authenticated bool       `json:"authenticated"`
	Syncing       bool       `json:"syncing"`
	LastSync      *time.Time `json:"last_sync,omitempty"`
	LastError     string     `json:"last_error,omitempty"`
}

// SessionState holds the per-process session: who is signed in and the sync cursor. It is created
// at startup, passed by pointer to the coordinator, the scheduler and the handlers, and never
// persisted. syncing and lastSync are written only by the SyncCoordinator.
type SessionState struct {
	mu        sync.RWMutex
	identity  Identity
	syncing   bool
	lastSync  *time.Time
	lastError string
	listeners []func(Identity)
}

func NewSessionState() *SessionState {
	return &SessionState{}
}

// SetIdentity switches the signed-in identity and notifies listeners when it changed.
func (s *SessionState) SetIdentity(id Identity) {
	s.mu.Lock()
	changed := s.identity != id
	s.identity = id
	listeners := append([]func(Identity){}, s.listeners...)
	s.mu.Unlock()

	if changed {
		for _, fn := range listeners {
			fn(id)
		}
	}
}

// OnIdentityChange registers fn to run after every identity change.
func (s *SessionState) OnIdentityChange(fn func(Identity)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

func (s *SessionState) Identity() Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity
}

func (s *SessionState) Syncing() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.syncing
}

func (s *SessionState) LastSync() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastSync == nil {
		return nil
	}
	t := *s.lastSync
	return &t
}

func (s *SessionState) Status() SyncStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := SyncStatus{
		Identity:      s.identity,
		Authenticated: s.identity.Authenticated(),
		Syncing:       s.syncing,
		LastError:     s.lastError,
	}
	if s.lastSync != nil {
		t := *s.lastSync
		st.LastSync = &t
	}
	return st
}

func (s *SessionState) beginSync() {
	s.mu.Lock()
	s.syncing = true
	s.mu.Unlock()
}

func (s *SessionState) endSync(at time.Time, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncing = false
	if err != nil {
		s.lastError = err.Error()
		return
	}
	s.lastError = ""
	s.lastSync = &at
}
