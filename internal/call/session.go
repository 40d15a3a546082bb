package call

import (
	"sync"
	"time"

	"github.com/medbridge/consult/internal/core"
	"github.com/medbridge/consult/internal/domain"
)

// Session represents one active or attempted call. It exclusively owns
// the token grant, the local track set and the room handle; the router,
// control surface and teardown receive them by reference. Never
// persisted.
type Session struct {
	Consultation domain.ConsultationID

	mu        sync.RWMutex
	grant     *core.TokenGrant
	local     *core.LocalTrackSet
	room      core.RoomHandle
	state     domain.ConnectionState
	startedAt time.Time
	onState   func(domain.ConnectionState)
}

func newSession(id domain.ConsultationID, onState func(domain.ConnectionState)) *Session {
	return &Session{Consultation: id, state: domain.StateIdle, onState: onState}
}

func (s *Session) State() domain.ConnectionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// setState moves to next and notifies the shell's consumer. Transitions
// out of a terminal state are refused so a late connect step cannot
// resurrect a torn-down session.
func (s *Session) setState(next domain.ConnectionState) bool {
	s.mu.Lock()
	if s.state.Terminal() {
		s.mu.Unlock()
		return false
	}
	s.state = next
	if next == domain.StateConnected && s.startedAt.IsZero() {
		s.startedAt = time.Now()
	}
	cb := s.onState
	s.mu.Unlock()
	if cb != nil {
		cb(next)
	}
	return true
}

func (s *Session) StartedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.startedAt
}

func (s *Session) Grant() *core.TokenGrant {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.grant
}

func (s *Session) Local() *core.LocalTrackSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.local
}

func (s *Session) Room() core.RoomHandle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.room
}

// releaseResources frees whatever the connect attempt acquired so far.
// Used on failed or canceled connects and by teardown.
func (s *Session) releaseResources() {
	s.mu.Lock()
	local, room := s.local, s.room
	s.room = nil
	s.mu.Unlock()
	if local != nil {
		local.Release()
	}
	if room != nil {
		_ = room.Disconnect()
	}
}
