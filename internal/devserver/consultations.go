package devserver

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/medbridge/consult/internal/domain"
)

// consultation is one session record. The first token fetch opens it;
// close stamps it once and later closes replay the same result.
type consultation struct {
	id       domain.ConsultationID
	room     domain.RoomName
	openedAt time.Time

	tokens map[string]domain.Identity

	closed   bool
	closedAt time.Time
}

type store struct {
	mu      sync.RWMutex
	byID    map[domain.ConsultationID]*consultation
	byToken map[string]domain.Identity
}

func newStore() *store {
	return &store{
		byID:    make(map[domain.ConsultationID]*consultation),
		byToken: make(map[string]domain.Identity),
	}
}

func (s *store) open(id domain.ConsultationID) *consultation {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byID[id]
	if !ok {
		rec = &consultation{
			id:       id,
			room:     domain.RoomName("consult-" + string(id)),
			openedAt: time.Now(),
			tokens:   make(map[string]domain.Identity),
		}
		s.byID[id] = rec
	}
	return rec
}

func (s *store) issue(rec *consultation, identity domain.Identity) string {
	token := uuid.NewString()
	s.mu.Lock()
	rec.tokens[token] = identity
	s.byToken[token] = identity
	s.mu.Unlock()
	return token
}

func (s *store) identityFor(token string) (domain.Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byToken[token]
	return id, ok
}

// peerOf returns the identity of the other party that already holds a
// token for this consultation, if any.
func (s *store) peerOf(rec *consultation, self domain.Identity) (domain.Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range rec.tokens {
		if id != self {
			return id, true
		}
	}
	return "", false
}

func (s *store) close(id domain.ConsultationID) (*consultation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byID[id]
	if !ok {
		return nil, false
	}
	if !rec.closed {
		rec.closed = true
		rec.closedAt = time.Now()
	}
	return rec, true
}

// sessionIdentity reads the caller identity from the cookie session,
// minting one on first contact so repeat fetches stay stable.
func sessionIdentity(c *gin.Context) domain.Identity {
	sess := sessions.Default(c)
	if v, ok := sess.Get("identity").(string); ok && v != "" {
		return domain.Identity(v)
	}
	identity := "user-" + uuid.NewString()[:8] + "@dev.local"
	sess.Set("identity", identity)
	if err := sess.Save(); err != nil {
		log.Warn().Err(err).Str("module", "devserver").Msg("session save")
	}
	return domain.Identity(identity)
}

func (s *Server) handleToken(c *gin.Context) {
	id := domain.ConsultationID(c.Param("id"))
	identity := sessionIdentity(c)

	rec := s.store.open(id)
	token := s.store.issue(rec, identity)

	peerSummary := "waiting for peer"
	if peer, ok := s.store.peerOf(rec, identity); ok {
		peerSummary = peer.DisplayName()
	}

	log.Info().
		Str("module", "devserver").
		Str("consultation", string(id)).
		Str("identity", string(identity)).
		Msg("token issued")

	c.JSON(http.StatusOK, gin.H{
		"token":          token,
		"room_name":      string(rec.room),
		"local_identity": string(identity),
		"peer_summary":   peerSummary,
	})
}

func (s *Server) handleClose(c *gin.Context) {
	id := domain.ConsultationID(c.Param("id"))
	rec, ok := s.store.close(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown consultation"})
		return
	}

	minutes := int(rec.closedAt.Sub(rec.openedAt).Round(time.Minute) / time.Minute)
	log.Info().
		Str("module", "devserver").
		Str("consultation", string(id)).
		Int("duration_minutes", minutes).
		Msg("session record closed")

	c.JSON(http.StatusOK, gin.H{
		"status":           "closed",
		"duration_minutes": minutes,
	})
}
