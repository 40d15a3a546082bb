// Package devserver is the development stand-in for the scheduling
// backend: it issues room tokens, closes session records, and relays
// signaling between the two parties of a consultation room.
package devserver

import (
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/medbridge/consult/internal/config"
)

type Server struct {
	cfg   *config.Config
	store *store
	hub   *hub
}

func NewServer(cfg *config.Config) *Server {
	st := newStore()
	return &Server{
		cfg:   cfg,
		store: st,
		hub:   newHub(st, cfg),
	}
}

func (s *Server) Router() *gin.Engine {
	if s.cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if s.cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	cookieStore := cookie.NewStore([]byte(s.cfg.Secret))
	r.Use(sessions.Sessions("ConsultSessions", cookieStore))

	api := r.Group("/api")
	api.POST("/consultations/:id/token", s.handleToken)
	api.POST("/consultations/:id/close", s.handleClose)

	r.GET("/ws/rooms/:room", s.hub.handleJoin)

	log.Info().Str("module", "devserver").Msg("router setup")
	return r
}
