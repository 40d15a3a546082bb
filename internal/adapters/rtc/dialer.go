// Package rtc connects sessions to rooms: a gorilla/websocket
// signaling channel carries the SDP exchange and peer announcements,
// and a pion PeerConnection carries the media.
package rtc

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/medbridge/consult/internal/config"
	"github.com/medbridge/consult/internal/core"
)

// publishable is what a local track must expose to go on the wire.
// The media adapter's tracks implement it; test fakes need not.
type publishable interface {
	core.LocalTrack
	WebRTC() webrtc.TrackLocal
	OnEnabledChange(func(enabled bool))
}

// Dialer implements core.RoomDialer against the signaling relay named
// in the config. The webrtc.API must come from the same media Manager
// that produced the local tracks, so offer and capture agree on codecs.
type Dialer struct {
	api *webrtc.API
	cfg *config.Config
}

func NewDialer(cfg *config.Config, api *webrtc.API) *Dialer {
	return &Dialer{api: api, cfg: cfg}
}

func (d *Dialer) ConnectRoom(ctx context.Context, token string, opts core.RoomOptions) (core.RoomHandle, error) {
	url := fmt.Sprintf("%s/ws/rooms/%s", d.cfg.SignalURL, opts.RoomName)
	header := http.Header{"Authorization": {"Bearer " + token}}

	wsDialer := websocket.Dialer{HandshakeTimeout: d.cfg.DialTimeout}
	conn, resp, err := wsDialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusConflict {
			return nil, core.ErrRoomFull
		}
		return nil, fmt.Errorf("signal dial %s: %w", url, err)
	}

	pc, err := d.api.NewPeerConnection(webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{{URLs: d.cfg.ICEServers}},
	})
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	ws := newWSClient(conn, d.cfg.ReadLimit, d.cfg.PingPeriod)
	rc := newRoomConn(opts.RoomName, pc, ws)

	if opts.LocalTracks != nil {
		for _, lt := range opts.LocalTracks.All() {
			d.publish(rc, lt)
		}
	}

	pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		if cand != nil {
			rc.sendCandidate(cand.ToJSON())
		}
	})
	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		log.Info().
			Str("module", "rtc").
			Str("room", string(opts.RoomName)).
			Str("peer_connection_state", s.String()).
			Msg("peer state")
	})
	pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		log.Info().
			Str("module", "rtc").
			Str("room", string(opts.RoomName)).
			Str("ice_state", s.String()).
			Msg("ICE state")
	})
	pc.OnTrack(func(tr *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		rc.handleRemoteTrack(tr)
	})

	go ws.writePump()
	go ws.readPump(rc.handleSignal, func(err error) {
		log.Info().Err(err).Str("module", "rtc").Str("room", string(opts.RoomName)).Msg("signal closed")
	})

	// The relay acks the join before any relaying starts; no ack within
	// the dial window means the room is unreachable.
	joinCtx, cancel := context.WithTimeout(ctx, d.cfg.DialTimeout)
	defer cancel()
	var ack joinAck
	select {
	case ack = <-rc.joined:
	case <-joinCtx.Done():
		_ = rc.Disconnect()
		return nil, fmt.Errorf("room %s join: %w", opts.RoomName, joinCtx.Err())
	}

	log.Info().
		Str("module", "rtc").
		Str("room", string(opts.RoomName)).
		Str("identity", ack.Self.Identity).
		Int("peers", len(ack.Peers)).
		Msg("room joined")

	if len(ack.Peers) > 0 {
		rc.makeOffer()
	}
	return rc, nil
}

// publish puts one local track on the PeerConnection and wires its
// mute relay. Controller test fakes never reach this path.
func (d *Dialer) publish(rc *roomConn, lt core.LocalTrack) {
	p, ok := lt.(publishable)
	if !ok {
		log.Warn().
			Str("module", "rtc").
			Str("track_id", lt.ID()).
			Msg("local track is not publishable, skipping")
		return
	}
	sender, err := rc.pc.AddTrack(p.WebRTC())
	if err != nil {
		log.Error().Err(err).
			Str("module", "rtc").
			Str("track_id", lt.ID()).
			Msg("add local track")
		return
	}
	// Drain sender reports; pion buffers them until read.
	go func() {
		buf := make([]byte, 1500)
		for {
			if _, _, err := sender.Read(buf); err != nil {
				return
			}
		}
	}()
	kind := lt.Kind()
	p.OnEnabledChange(func(enabled bool) {
		rc.sendMute(kind, enabled)
	})
}
