package rtc

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/medbridge/consult/internal/core"
	"github.com/medbridge/consult/internal/domain"
)

// remoteTrack wraps a subscribed webrtc.TrackRemote. Enabled tracks
// the publisher-side mute relayed over signaling, not the RTP flow.
type remoteTrack struct {
	tr   *webrtc.TrackRemote
	kind core.TrackKind

	enabled atomic.Bool
	dead    atomic.Bool
}

func newRemoteTrack(tr *webrtc.TrackRemote) *remoteTrack {
	kind := core.TrackKindAudio
	if tr.Kind() == webrtc.RTPCodecTypeVideo {
		kind = core.TrackKindVideo
	}
	rt := &remoteTrack{tr: tr, kind: kind}
	rt.enabled.Store(true)
	return rt
}

func (rt *remoteTrack) ID() string           { return rt.tr.ID() }
func (rt *remoteTrack) Kind() core.TrackKind { return rt.kind }
func (rt *remoteTrack) Live() bool           { return !rt.dead.Load() }
func (rt *remoteTrack) Enabled() bool        { return rt.enabled.Load() }

func (rt *remoteTrack) setEnabled(enabled bool) bool {
	return rt.enabled.Swap(enabled) != enabled
}

// readLoop drains inbound RTP; pion stops delivering when nobody
// reads. A read error means the subscription ended.
func (rt *remoteTrack) readLoop(onEnded func()) {
	var pkt *rtp.Packet
	var err error
	for {
		pkt, _, err = rt.tr.ReadRTP()
		if err != nil {
			rt.dead.Store(true)
			log.Info().
				Str("module", "rtc").
				Str("track_id", rt.ID()).
				Str("kind", string(rt.kind)).
				Msg("remote track ended")
			if onEnded != nil {
				onEnded()
			}
			return
		}
		_ = pkt.SequenceNumber
	}
}

// pliLoop asks the publisher for a keyframe right away and then
// periodically, so a newly attached surface does not wait for the
// encoder's own keyframe interval.
func (rt *remoteTrack) pliLoop(pc *webrtc.PeerConnection, done <-chan struct{}) {
	ticker := time.NewTicker(3 * time.Second)
	defer ticker.Stop()
	for {
		pli := []rtcp.Packet{
			&rtcp.PictureLossIndication{MediaSSRC: uint32(rt.tr.SSRC())},
		}
		if err := pc.WriteRTCP(pli); err != nil {
			return
		}
		select {
		case <-done:
			return
		case <-ticker.C:
		}
	}
}

// remoteParticipant is the other party of a two-party room.
type remoteParticipant struct {
	sid      core.ParticipantSID
	identity domain.Identity

	mu     sync.RWMutex
	tracks []*remoteTrack
}

func (p *remoteParticipant) SID() core.ParticipantSID  { return p.sid }
func (p *remoteParticipant) Identity() domain.Identity { return p.identity }

func (p *remoteParticipant) Tracks() []core.RemoteTrack {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]core.RemoteTrack, len(p.tracks))
	for i, t := range p.tracks {
		out[i] = t
	}
	return out
}

func (p *remoteParticipant) addTrack(rt *remoteTrack) {
	p.mu.Lock()
	p.tracks = append(p.tracks, rt)
	p.mu.Unlock()
}

func (p *remoteParticipant) tracksOfKind(kind core.TrackKind) []*remoteTrack {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*remoteTrack, 0, len(p.tracks))
	for _, t := range p.tracks {
		if t.kind == kind {
			out = append(out, t)
		}
	}
	return out
}
