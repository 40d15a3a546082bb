package call

import (
	"context"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/medbridge/consult/internal/core"
	"github.com/medbridge/consult/internal/domain"
)

// Liveness is the caller-held "still mounted" flag. Every connect step
// checks it after resolving; there is no hard abort of an in-flight
// device-permission prompt.
type Liveness struct {
	dead atomic.Bool
}

func (l *Liveness) Kill()       { l.dead.Store(true) }
func (l *Liveness) Alive() bool { return !l.dead.Load() }

// Connector orchestrates credential fetch, local media acquisition and
// room connect into a live Session, or a typed failure with nothing
// left acquired.
type Connector struct {
	Backend core.Backend
	Devices core.DeviceManager
	Dialer  core.RoomDialer
}

// Connect runs the three-step connect sequence. Steps are sequential;
// after each one resolves the liveness flag is re-checked, and a dead
// caller gets ErrConnectCanceled with all partial resources released.
// The session is returned even on failure so the caller can observe its
// terminal state; it holds no resources unless err is nil.
func (c *Connector) Connect(
	ctx context.Context,
	id domain.ConsultationID,
	alive *Liveness,
	onState func(domain.ConnectionState),
) (*Session, error) {
	sess := newSession(id, onState)

	sess.setState(domain.StateAcquiringToken)
	grant, err := c.Backend.FetchSessionToken(ctx, id)
	if err != nil {
		sess.setState(domain.StateErrored)
		return sess, &TokenError{Consultation: id, Err: err}
	}
	if !c.stillWanted(ctx, alive) {
		log.Info().Str("module", "call.connector").Str("consultation", string(id)).Msg("caller gone after token fetch")
		sess.setState(domain.StateTerminated)
		return sess, ErrConnectCanceled
	}
	sess.mu.Lock()
	sess.grant = grant
	sess.mu.Unlock()

	sess.setState(domain.StateAcquiringMedia)
	local, err := c.Devices.RequestLocalTracks(ctx, core.MediaOptions{Video: true, Audio: true})
	if err != nil {
		sess.setState(domain.StateErrored)
		return sess, &PermissionError{Err: err}
	}
	if !c.stillWanted(ctx, alive) {
		log.Info().Str("module", "call.connector").Str("consultation", string(id)).Msg("caller gone after media acquisition")
		local.Release()
		sess.setState(domain.StateTerminated)
		return sess, ErrConnectCanceled
	}
	sess.mu.Lock()
	sess.local = local
	sess.mu.Unlock()

	sess.setState(domain.StateConnecting)
	room, err := c.Dialer.ConnectRoom(ctx, grant.Token, core.RoomOptions{
		RoomName:    grant.RoomName,
		LocalTracks: local,
	})
	if err != nil {
		sess.setState(domain.StateErrored)
		local.Release()
		return sess, &ConnectionError{Room: grant.RoomName, Err: err}
	}
	if !c.stillWanted(ctx, alive) {
		log.Info().Str("module", "call.connector").Str("consultation", string(id)).Msg("caller gone after room connect")
		local.Release()
		_ = room.Disconnect()
		sess.setState(domain.StateTerminated)
		return sess, ErrConnectCanceled
	}
	sess.mu.Lock()
	sess.room = room
	sess.mu.Unlock()

	sess.setState(domain.StateConnected)
	log.Info().
		Str("module", "call.connector").
		Str("consultation", string(id)).
		Str("room", string(grant.RoomName)).
		Str("identity", string(grant.LocalIdentity)).
		Msg("session connected")
	return sess, nil
}

func (c *Connector) stillWanted(ctx context.Context, alive *Liveness) bool {
	if alive != nil && !alive.Alive() {
		return false
	}
	return ctx.Err() == nil
}
