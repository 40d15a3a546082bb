package media

import (
	"sync"
	"sync/atomic"

	"github.com/pion/mediadevices"
	"github.com/pion/webrtc/v4"

	"github.com/medbridge/consult/internal/core"
)

// localTrack wraps a mediadevices capture track as a core.LocalTrack.
// Enable and disable do not touch the device; the capture keeps
// running and the publisher-side mute is signaled to the remote party
// through the enabled-change hook the rtc dialer registers.
type localTrack struct {
	t    mediadevices.Track
	kind core.TrackKind

	enabled atomic.Bool
	stopped atomic.Bool

	mu        sync.Mutex
	onEnabled func(enabled bool)
}

func newLocalTrack(t mediadevices.Track) *localTrack {
	kind := core.TrackKindAudio
	if t.Kind() == webrtc.RTPCodecTypeVideo {
		kind = core.TrackKindVideo
	}
	lt := &localTrack{t: t, kind: kind}
	lt.enabled.Store(true)
	return lt
}

func (lt *localTrack) ID() string           { return lt.t.ID() }
func (lt *localTrack) Kind() core.TrackKind { return lt.kind }
func (lt *localTrack) Live() bool           { return !lt.stopped.Load() }
func (lt *localTrack) Enabled() bool        { return lt.enabled.Load() }

func (lt *localTrack) SetEnabled(enabled bool) {
	if lt.enabled.Swap(enabled) == enabled {
		return
	}
	lt.mu.Lock()
	fn := lt.onEnabled
	lt.mu.Unlock()
	if fn != nil {
		fn(enabled)
	}
}

func (lt *localTrack) Stop() {
	if lt.stopped.Swap(true) {
		return
	}
	_ = lt.t.Close()
}

func (lt *localTrack) markDead() { lt.stopped.Store(true) }

// WebRTC exposes the capture track for PeerConnection publication.
func (lt *localTrack) WebRTC() webrtc.TrackLocal { return lt.t }

// OnEnabledChange registers the hook fired on every enable flip. The
// rtc dialer uses it to relay mute state to the remote party.
func (lt *localTrack) OnEnabledChange(fn func(enabled bool)) {
	lt.mu.Lock()
	lt.onEnabled = fn
	lt.mu.Unlock()
}
