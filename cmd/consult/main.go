package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/medbridge/consult/internal/adapters/backend"
	"github.com/medbridge/consult/internal/adapters/media"
	"github.com/medbridge/consult/internal/adapters/rtc"
	"github.com/medbridge/consult/internal/call"
	"github.com/medbridge/consult/internal/config"
	"github.com/medbridge/consult/internal/domain"
	"github.com/medbridge/consult/internal/render"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	if len(os.Args) < 2 {
		log.Fatal().Msg("usage: consult <consultation-id>")
	}
	consultationID := domain.ConsultationID(os.Args[1])

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	manager, err := media.NewManager()
	if err != nil {
		log.Fatal().Err(err).Msg("media manager")
	}
	api, err := manager.WebRTCAPI()
	if err != nil {
		log.Fatal().Err(err).Msg("webrtc api")
	}

	backendClient := backend.NewClient(cfg.BackendURL, cfg.DialTimeout)
	dialer := rtc.NewDialer(cfg, api)
	board := render.NewBoard()

	shell := call.NewShell(backendClient, manager, dialer, board, call.Callbacks{
		OnStateChange: func(s domain.ConnectionState) {
			log.Info().Str("state", s.String()).Msg("session state")
		},
		OnParticipants: func(ps []call.Participant) {
			for _, p := range ps {
				log.Info().
					Str("sid", string(p.SID)).
					Str("display_name", p.DisplayName).
					Bool("has_video", p.HasVideo).
					Msg("participant")
			}
		},
		OnError: func(err error) {
			log.Error().Err(err).Msg("session error")
		},
		OnDurationTick: func(seconds int) {
			if seconds%60 == 0 && seconds > 0 {
				log.Info().Int("minutes", seconds/60).Msg("in call")
			}
		},
		OnComplete: func() {
			log.Info().Msg("consultation ended")
		},
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := shell.Start(ctx, consultationID); err != nil {
			log.Error().Err(err).Msg("connect failed")
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	endCtx, endCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer endCancel()
	shell.EndCall(endCtx)
	<-done
	log.Info().Msg("exited")
}
