package call

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/medbridge/consult/internal/core"
	"github.com/medbridge/consult/internal/domain"
)

// Controls fans local toggle operations out to the session's local
// tracks and the bound remote audio elements. Every operation is
// local-only, non-blocking, and a silent no-op once the session is no
// longer connected.
type Controls struct {
	binder  *Binder
	session func() *Session

	mu    sync.Mutex
	state domain.ControlState
}

func NewControls(binder *Binder, session func() *Session) *Controls {
	return &Controls{
		binder:  binder,
		session: session,
		state:   domain.DefaultControlState(),
	}
}

func (c *Controls) State() domain.ControlState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ToggleVideo flips local video and enables/disables every local video
// publication. There may be more than one.
func (c *Controls) ToggleVideo() domain.ControlState {
	sess, ok := c.connected()
	if !ok {
		return c.State()
	}
	c.mu.Lock()
	c.state = c.state.WithVideoToggled()
	enabled := c.state.VideoEnabled
	c.mu.Unlock()

	for _, t := range sess.Local().ByKind(core.TrackKindVideo) {
		t.SetEnabled(enabled)
	}
	log.Info().Str("module", "call.controls").Bool("enabled", enabled).Msg("video toggled")
	return c.State()
}

// ToggleAudio flips the local microphone publications.
func (c *Controls) ToggleAudio() domain.ControlState {
	sess, ok := c.connected()
	if !ok {
		return c.State()
	}
	c.mu.Lock()
	c.state = c.state.WithAudioToggled()
	enabled := c.state.AudioEnabled
	c.mu.Unlock()

	for _, t := range sess.Local().ByKind(core.TrackKindAudio) {
		t.SetEnabled(enabled)
	}
	log.Info().Str("module", "call.controls").Bool("enabled", enabled).Msg("audio toggled")
	return c.State()
}

// ToggleSpeaker mutes or unmutes the rendered remote audio elements.
// No track is touched and no round-trip to the remote party happens.
func (c *Controls) ToggleSpeaker() domain.ControlState {
	if _, ok := c.connected(); !ok {
		return c.State()
	}
	c.mu.Lock()
	c.state = c.state.WithSpeakerToggled()
	muted := !c.state.SpeakerEnabled
	c.mu.Unlock()

	for _, el := range c.binder.AudioElements() {
		el.SetMuted(muted)
	}
	log.Info().Str("module", "call.controls").Bool("muted", muted).Msg("speaker toggled")
	return c.State()
}

func (c *Controls) connected() (*Session, bool) {
	sess := c.session()
	if sess == nil || sess.State() != domain.StateConnected || sess.Local() == nil {
		return nil, false
	}
	return sess, true
}
