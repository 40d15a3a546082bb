package rtc

import (
	"encoding/json"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/medbridge/consult/internal/core"
	"github.com/medbridge/consult/internal/domain"
)

type peerInfo struct {
	SID      string `json:"sid"`
	Identity string `json:"identity"`
}

type joinAck struct {
	Self  peerInfo   `json:"self"`
	Peers []peerInfo `json:"peers"`
}

// roomConn is the live connection to one two-party room: the signaling
// socket plus the PeerConnection negotiated through it.
type roomConn struct {
	name domain.RoomName
	self domain.Identity
	pc   *webrtc.PeerConnection
	ws   *wsClient

	mu      sync.RWMutex
	peer    *remoteParticipant
	pending []*remoteTrack

	onParticipantConnected    func(core.RemoteParticipant)
	onParticipantDisconnected func(core.RemoteParticipant)
	onTrackSubscribed         func(core.RemoteParticipant, core.RemoteTrack)
	onTrackUnsubscribed       func(core.RemoteParticipant, core.RemoteTrack)
	onTrackEnabled            func(core.RemoteParticipant, core.RemoteTrack)
	onTrackDisabled           func(core.RemoteParticipant, core.RemoteTrack)

	joined chan joinAck

	closeOnce sync.Once
	done      chan struct{}
}

func newRoomConn(name domain.RoomName, pc *webrtc.PeerConnection, ws *wsClient) *roomConn {
	return &roomConn{
		name:   name,
		pc:     pc,
		ws:     ws,
		joined: make(chan joinAck, 1),
		done:   make(chan struct{}),
	}
}

func (rc *roomConn) RoomName() domain.RoomName      { return rc.name }
func (rc *roomConn) LocalIdentity() domain.Identity { return rc.self }

func (rc *roomConn) OnParticipantConnected(fn func(core.RemoteParticipant)) {
	rc.mu.Lock()
	rc.onParticipantConnected = fn
	rc.mu.Unlock()
}

func (rc *roomConn) OnParticipantDisconnected(fn func(core.RemoteParticipant)) {
	rc.mu.Lock()
	rc.onParticipantDisconnected = fn
	rc.mu.Unlock()
}

func (rc *roomConn) OnTrackSubscribed(fn func(core.RemoteParticipant, core.RemoteTrack)) {
	rc.mu.Lock()
	rc.onTrackSubscribed = fn
	rc.mu.Unlock()
}

func (rc *roomConn) OnTrackUnsubscribed(fn func(core.RemoteParticipant, core.RemoteTrack)) {
	rc.mu.Lock()
	rc.onTrackUnsubscribed = fn
	rc.mu.Unlock()
}

func (rc *roomConn) OnTrackEnabled(fn func(core.RemoteParticipant, core.RemoteTrack)) {
	rc.mu.Lock()
	rc.onTrackEnabled = fn
	rc.mu.Unlock()
}

func (rc *roomConn) OnTrackDisabled(fn func(core.RemoteParticipant, core.RemoteTrack)) {
	rc.mu.Lock()
	rc.onTrackDisabled = fn
	rc.mu.Unlock()
}

func (rc *roomConn) Participants() []core.RemoteParticipant {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	if rc.peer == nil {
		return nil
	}
	return []core.RemoteParticipant{rc.peer}
}

func (rc *roomConn) Disconnect() error {
	rc.closeOnce.Do(func() {
		close(rc.done)
		rc.ws.close()
		if err := rc.pc.Close(); err != nil {
			log.Error().Err(err).Str("module", "rtc").Str("room", string(rc.name)).Msg("pc close")
		}
		log.Info().Str("module", "rtc").Str("room", string(rc.name)).Msg("disconnected")
	})
	return nil
}

// sendMute relays local publisher mute state so the remote party can
// flip its track-enabled events without inspecting RTP flow.
func (rc *roomConn) sendMute(kind core.TrackKind, enabled bool) {
	rc.ws.sendJSON(struct {
		Type  string `json:"type"`
		Kind  string `json:"kind"`
		Muted bool   `json:"muted"`
	}{Type: "mute", Kind: string(kind), Muted: !enabled})
}

// handleRemoteTrack wires a freshly negotiated inbound track: parks it
// until the peer announcement arrives, then surfaces it as subscribed.
func (rc *roomConn) handleRemoteTrack(tr *webrtc.TrackRemote) {
	rt := newRemoteTrack(tr)
	log.Info().
		Str("module", "rtc").
		Str("room", string(rc.name)).
		Str("track_id", rt.ID()).
		Str("kind", string(rt.kind)).
		Msg("remote track subscribed")

	rc.mu.Lock()
	peer := rc.peer
	if peer == nil {
		rc.pending = append(rc.pending, rt)
		rc.mu.Unlock()
	} else {
		peer.addTrack(rt)
		fn := rc.onTrackSubscribed
		rc.mu.Unlock()
		if fn != nil {
			fn(peer, rt)
		}
	}

	if rt.kind == core.TrackKindVideo {
		go rt.pliLoop(rc.pc, rc.done)
	}
	go rt.readLoop(func() {
		rc.mu.RLock()
		peer, fn := rc.peer, rc.onTrackUnsubscribed
		rc.mu.RUnlock()
		if peer != nil && fn != nil {
			fn(peer, rt)
		}
	})
}

func (rc *roomConn) handleSignal(data []byte) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "rtc").Msg("bad json")
		return
	}

	switch env.Type {
	case "joined":
		rc.handleJoined(data)
	case "peer_joined":
		rc.handlePeerJoined(data)
	case "peer_left":
		rc.handlePeerLeft()
	case "offer":
		rc.handleOffer(data)
	case "answer":
		rc.handleAnswer(data)
	case "candidate":
		rc.handleCandidate(data)
	case "mute":
		rc.handleMute(data)
	default:
		log.Warn().Str("module", "rtc").Str("type", env.Type).Msg("unknown signal")
	}
}

func (rc *roomConn) handleJoined(data []byte) {
	var ack struct {
		Type string `json:"type"`
		joinAck
	}
	if err := json.Unmarshal(data, &ack); err != nil {
		log.Error().Err(err).Str("module", "rtc").Msg("bad joined payload")
		return
	}
	rc.self = domain.Identity(ack.Self.Identity)
	if len(ack.Peers) > 0 {
		rc.adoptPeer(ack.Peers[0])
	}
	select {
	case rc.joined <- ack.joinAck:
	default:
	}
}

func (rc *roomConn) handlePeerJoined(data []byte) {
	var p struct {
		Type string   `json:"type"`
		Peer peerInfo `json:"peer"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "rtc").Msg("bad peer_joined payload")
		return
	}
	rc.adoptPeer(p.Peer)
}

// adoptPeer records the remote party, attaches any tracks that arrived
// before the announcement, and fires the join callback.
func (rc *roomConn) adoptPeer(info peerInfo) {
	rc.mu.Lock()
	if rc.peer != nil {
		rc.mu.Unlock()
		return
	}
	peer := &remoteParticipant{
		sid:      core.ParticipantSID(info.SID),
		identity: domain.Identity(info.Identity),
	}
	rc.peer = peer
	parked := rc.pending
	rc.pending = nil
	for _, rt := range parked {
		peer.addTrack(rt)
	}
	onJoin, onSub := rc.onParticipantConnected, rc.onTrackSubscribed
	rc.mu.Unlock()

	log.Info().
		Str("module", "rtc").
		Str("room", string(rc.name)).
		Str("sid", info.SID).
		Str("identity", info.Identity).
		Msg("peer joined")

	if onJoin != nil {
		onJoin(peer)
	}
	if onSub != nil {
		for _, rt := range parked {
			onSub(peer, rt)
		}
	}
}

func (rc *roomConn) handlePeerLeft() {
	rc.mu.Lock()
	peer := rc.peer
	rc.peer = nil
	fn := rc.onParticipantDisconnected
	rc.mu.Unlock()
	if peer == nil {
		return
	}
	for _, rt := range peer.tracksOfKind(core.TrackKindAudio) {
		rt.dead.Store(true)
	}
	for _, rt := range peer.tracksOfKind(core.TrackKindVideo) {
		rt.dead.Store(true)
	}
	log.Info().
		Str("module", "rtc").
		Str("room", string(rc.name)).
		Str("sid", string(peer.sid)).
		Msg("peer left")
	if fn != nil {
		fn(peer)
	}
}

func (rc *roomConn) handleMute(data []byte) {
	var p struct {
		Type  string `json:"type"`
		Kind  string `json:"kind"`
		Muted bool   `json:"muted"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "rtc").Msg("bad mute payload")
		return
	}
	rc.mu.RLock()
	peer := rc.peer
	onEnabled, onDisabled := rc.onTrackEnabled, rc.onTrackDisabled
	rc.mu.RUnlock()
	if peer == nil {
		return
	}
	for _, rt := range peer.tracksOfKind(core.TrackKind(p.Kind)) {
		if !rt.setEnabled(!p.Muted) {
			continue
		}
		if p.Muted {
			if onDisabled != nil {
				onDisabled(peer, rt)
			}
		} else if onEnabled != nil {
			onEnabled(peer, rt)
		}
	}
}

// makeOffer starts negotiation; the later joiner offers, the party
// already in the room answers.
func (rc *roomConn) makeOffer() {
	offer, err := rc.pc.CreateOffer(nil)
	if err != nil {
		log.Error().Err(err).Str("module", "rtc").Msg("create offer")
		return
	}
	if err := rc.pc.SetLocalDescription(offer); err != nil {
		log.Error().Err(err).Str("module", "rtc").Msg("set local offer")
		return
	}
	rc.ws.sendJSON(struct {
		Type string `json:"type"`
		SDP  string `json:"sdp"`
	}{Type: "offer", SDP: offer.SDP})
}

func (rc *roomConn) handleOffer(data []byte) {
	var p struct {
		Type string `json:"type"`
		SDP  string `json:"sdp"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "rtc").Msg("bad offer payload")
		return
	}
	offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: p.SDP}
	if err := rc.pc.SetRemoteDescription(offer); err != nil {
		log.Error().Err(err).Str("module", "rtc").Msg("set remote offer")
		return
	}
	answer, err := rc.pc.CreateAnswer(nil)
	if err != nil {
		log.Error().Err(err).Str("module", "rtc").Msg("create answer")
		return
	}
	if err := rc.pc.SetLocalDescription(answer); err != nil {
		log.Error().Err(err).Str("module", "rtc").Msg("set local answer")
		return
	}
	rc.ws.sendJSON(struct {
		Type string `json:"type"`
		SDP  string `json:"sdp"`
	}{Type: "answer", SDP: answer.SDP})
}

func (rc *roomConn) handleAnswer(data []byte) {
	var p struct {
		Type string `json:"type"`
		SDP  string `json:"sdp"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "rtc").Msg("bad answer payload")
		return
	}
	answer := webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: p.SDP}
	if err := rc.pc.SetRemoteDescription(answer); err != nil {
		log.Error().Err(err).Str("module", "rtc").Msg("set remote answer")
	}
}

func (rc *roomConn) handleCandidate(data []byte) {
	var p struct {
		Type          string `json:"type"`
		Candidate     string `json:"candidate"`
		SDPMid        string `json:"sdpMid"`
		SDPMLineIndex uint16 `json:"sdpMLineIndex"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "rtc").Msg("bad candidate payload")
		return
	}
	cand := webrtc.ICECandidateInit{Candidate: p.Candidate}
	if p.SDPMid != "" {
		cand.SDPMid = &p.SDPMid
	}
	cand.SDPMLineIndex = &p.SDPMLineIndex
	if err := rc.pc.AddICECandidate(cand); err != nil {
		log.Error().Err(err).Str("module", "rtc").Msg("add ice candidate")
	}
}

func (rc *roomConn) sendCandidate(ci webrtc.ICECandidateInit) {
	resp := struct {
		Type          string `json:"type"`
		Candidate     string `json:"candidate"`
		SDPMid        string `json:"sdpMid,omitempty"`
		SDPMLineIndex uint16 `json:"sdpMLineIndex,omitempty"`
	}{
		Type:      "candidate",
		Candidate: ci.Candidate,
	}
	if ci.SDPMid != nil {
		resp.SDPMid = *ci.SDPMid
	}
	if ci.SDPMLineIndex != nil {
		resp.SDPMLineIndex = *ci.SDPMLineIndex
	}
	rc.ws.sendJSON(resp)
}
