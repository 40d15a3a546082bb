package call

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/medbridge/consult/internal/core"
	"github.com/medbridge/consult/internal/domain"
)

// Shared fakes for the controller tests. The controller only sees the
// core interfaces, so everything here is an in-memory stand-in for the
// backend, device and transport collaborators.

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

type fakeLocalTrack struct {
	id   string
	kind core.TrackKind

	mu      sync.Mutex
	enabled bool
	stopped bool
}

func newFakeLocalTrack(id string, kind core.TrackKind) *fakeLocalTrack {
	return &fakeLocalTrack{id: id, kind: kind, enabled: true}
}

func (f *fakeLocalTrack) ID() string           { return f.id }
func (f *fakeLocalTrack) Kind() core.TrackKind { return f.kind }

func (f *fakeLocalTrack) Live() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.stopped
}

func (f *fakeLocalTrack) Enabled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.enabled
}

func (f *fakeLocalTrack) SetEnabled(v bool) {
	f.mu.Lock()
	f.enabled = v
	f.mu.Unlock()
}

func (f *fakeLocalTrack) Stop() {
	f.mu.Lock()
	f.stopped = true
	f.mu.Unlock()
}

type fakeRemoteTrack struct {
	id      string
	kind    core.TrackKind
	enabled atomic.Bool
	dead    atomic.Bool
}

func newFakeRemoteTrack(id string, kind core.TrackKind, enabled bool) *fakeRemoteTrack {
	t := &fakeRemoteTrack{id: id, kind: kind}
	t.enabled.Store(enabled)
	return t
}

func (f *fakeRemoteTrack) ID() string           { return f.id }
func (f *fakeRemoteTrack) Kind() core.TrackKind { return f.kind }
func (f *fakeRemoteTrack) Live() bool           { return !f.dead.Load() }
func (f *fakeRemoteTrack) Enabled() bool        { return f.enabled.Load() }

type fakeParticipant struct {
	sid      core.ParticipantSID
	identity domain.Identity

	mu     sync.Mutex
	tracks []core.RemoteTrack
}

func newFakeParticipant(sid, identity string) *fakeParticipant {
	return &fakeParticipant{sid: core.ParticipantSID(sid), identity: domain.Identity(identity)}
}

func (f *fakeParticipant) SID() core.ParticipantSID  { return f.sid }
func (f *fakeParticipant) Identity() domain.Identity { return f.identity }

func (f *fakeParticipant) Tracks() []core.RemoteTrack {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]core.RemoteTrack(nil), f.tracks...)
}

// fakeRoom fires its registered callbacks synchronously, the way the
// transport adapter does from its read pump.
type fakeRoom struct {
	name     domain.RoomName
	identity domain.Identity

	mu               sync.Mutex
	initial          []core.RemoteParticipant
	onConnected      func(core.RemoteParticipant)
	onDisconnected   func(core.RemoteParticipant)
	onSubscribed     func(core.RemoteParticipant, core.RemoteTrack)
	onUnsubscribed   func(core.RemoteParticipant, core.RemoteTrack)
	onEnabled        func(core.RemoteParticipant, core.RemoteTrack)
	onDisabled       func(core.RemoteParticipant, core.RemoteTrack)
	disconnectCalls  atomic.Int32
}

func newFakeRoom(name string) *fakeRoom {
	return &fakeRoom{name: domain.RoomName(name), identity: "patient@example.com"}
}

func (f *fakeRoom) RoomName() domain.RoomName       { return f.name }
func (f *fakeRoom) LocalIdentity() domain.Identity  { return f.identity }

func (f *fakeRoom) OnParticipantConnected(fn func(core.RemoteParticipant)) {
	f.mu.Lock()
	f.onConnected = fn
	f.mu.Unlock()
}

func (f *fakeRoom) OnParticipantDisconnected(fn func(core.RemoteParticipant)) {
	f.mu.Lock()
	f.onDisconnected = fn
	f.mu.Unlock()
}

func (f *fakeRoom) OnTrackSubscribed(fn func(core.RemoteParticipant, core.RemoteTrack)) {
	f.mu.Lock()
	f.onSubscribed = fn
	f.mu.Unlock()
}

func (f *fakeRoom) OnTrackUnsubscribed(fn func(core.RemoteParticipant, core.RemoteTrack)) {
	f.mu.Lock()
	f.onUnsubscribed = fn
	f.mu.Unlock()
}

func (f *fakeRoom) OnTrackEnabled(fn func(core.RemoteParticipant, core.RemoteTrack)) {
	f.mu.Lock()
	f.onEnabled = fn
	f.mu.Unlock()
}

func (f *fakeRoom) OnTrackDisabled(fn func(core.RemoteParticipant, core.RemoteTrack)) {
	f.mu.Lock()
	f.onDisabled = fn
	f.mu.Unlock()
}

func (f *fakeRoom) Participants() []core.RemoteParticipant {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]core.RemoteParticipant(nil), f.initial...)
}

func (f *fakeRoom) Disconnect() error {
	f.disconnectCalls.Add(1)
	return nil
}

func (f *fakeRoom) fireConnected(p core.RemoteParticipant) {
	f.mu.Lock()
	fn := f.onConnected
	f.mu.Unlock()
	if fn != nil {
		fn(p)
	}
}

func (f *fakeRoom) fireDisconnected(p core.RemoteParticipant) {
	f.mu.Lock()
	fn := f.onDisconnected
	f.mu.Unlock()
	if fn != nil {
		fn(p)
	}
}

func (f *fakeRoom) fireSubscribed(p core.RemoteParticipant, t core.RemoteTrack) {
	f.mu.Lock()
	fn := f.onSubscribed
	f.mu.Unlock()
	if fn != nil {
		fn(p, t)
	}
}

func (f *fakeRoom) fireUnsubscribed(p core.RemoteParticipant, t core.RemoteTrack) {
	f.mu.Lock()
	fn := f.onUnsubscribed
	f.mu.Unlock()
	if fn != nil {
		fn(p, t)
	}
}

func (f *fakeRoom) fireEnabled(p core.RemoteParticipant, t core.RemoteTrack) {
	f.mu.Lock()
	fn := f.onEnabled
	f.mu.Unlock()
	if fn != nil {
		fn(p, t)
	}
}

func (f *fakeRoom) fireDisabled(p core.RemoteParticipant, t core.RemoteTrack) {
	f.mu.Lock()
	fn := f.onDisabled
	f.mu.Unlock()
	if fn != nil {
		fn(p, t)
	}
}

type fakeBackend struct {
	grant    *core.TokenGrant
	tokenErr error
	closeErr error

	fetchCalls atomic.Int32
	closeCalls atomic.Int32
	onFetch    func()
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{grant: &core.TokenGrant{
		Token:         "tok-1",
		RoomName:      "consult-42",
		LocalIdentity: "patient@example.com",
		PeerSummary:   "Dr. Chen",
	}}
}

func (f *fakeBackend) FetchSessionToken(_ context.Context, _ domain.ConsultationID) (*core.TokenGrant, error) {
	f.fetchCalls.Add(1)
	if f.onFetch != nil {
		f.onFetch()
	}
	if f.tokenErr != nil {
		return nil, f.tokenErr
	}
	return f.grant, nil
}

func (f *fakeBackend) CloseSessionRecord(_ context.Context, _ domain.ConsultationID) (*core.CloseResult, error) {
	f.closeCalls.Add(1)
	if f.closeErr != nil {
		return nil, f.closeErr
	}
	return &core.CloseResult{Status: "closed", DurationMinutes: 12}, nil
}

type fakeDevices struct {
	err       error
	onRequest func()

	mu   sync.Mutex
	sets []*core.LocalTrackSet
}

func (f *fakeDevices) RequestLocalTracks(_ context.Context, _ core.MediaOptions) (*core.LocalTrackSet, error) {
	if f.onRequest != nil {
		f.onRequest()
	}
	if f.err != nil {
		return nil, f.err
	}
	set := core.NewLocalTrackSet(
		newFakeLocalTrack("local-video", core.TrackKindVideo),
		newFakeLocalTrack("local-audio", core.TrackKindAudio),
	)
	f.mu.Lock()
	f.sets = append(f.sets, set)
	f.mu.Unlock()
	return set, nil
}

func (f *fakeDevices) lastSet() *core.LocalTrackSet {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sets) == 0 {
		return nil
	}
	return f.sets[len(f.sets)-1]
}

type fakeDialer struct {
	room      *fakeRoom
	err       error
	onConnect func()
	connects  atomic.Int32
}

func (f *fakeDialer) ConnectRoom(_ context.Context, _ string, _ core.RoomOptions) (core.RoomHandle, error) {
	f.connects.Add(1)
	if f.onConnect != nil {
		f.onConnect()
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.room, nil
}

// fakeSurface is a render target with injectable attach/detach failures.
type fakeSurface struct {
	name string

	mu        sync.Mutex
	elements  []*fakeElement
	attachErr error
	detachErr map[string]error // track ID -> error
}

func newFakeSurface(name string) *fakeSurface {
	return &fakeSurface{name: name, detachErr: make(map[string]error)}
}

type fakeElement struct {
	track core.Track
	muted atomic.Bool
	dead  atomic.Bool
}

func (e *fakeElement) TrackID() string      { return e.track.ID() }
func (e *fakeElement) Kind() core.TrackKind { return e.track.Kind() }
func (e *fakeElement) Live() bool           { return !e.dead.Load() && e.track.Live() }
func (e *fakeElement) SetMuted(m bool)      { e.muted.Store(m) }
func (e *fakeElement) Muted() bool          { return e.muted.Load() }

func (s *fakeSurface) Attach(t core.Track) (core.MediaElement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.attachErr != nil {
		return nil, s.attachErr
	}
	el := &fakeElement{track: t}
	s.elements = append(s.elements, el)
	return el, nil
}

func (s *fakeSurface) Detach(el core.MediaElement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.detachErr[el.TrackID()]; err != nil {
		return err
	}
	for i, have := range s.elements {
		if core.MediaElement(have) == el {
			s.elements = append(s.elements[:i], s.elements[i+1:]...)
			return nil
		}
	}
	return errors.New("element not attached")
}

func (s *fakeSurface) Elements() []core.MediaElement {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.MediaElement, len(s.elements))
	for i, el := range s.elements {
		out[i] = el
	}
	return out
}

func (s *fakeSurface) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.elements)
}

// fakeBoard is a SurfaceProvider handing out one fakeSurface per SID.
type fakeBoard struct {
	mu    sync.Mutex
	tiles map[core.ParticipantSID]*fakeSurface
	audio *fakeSurface
}

func newFakeBoard() *fakeBoard {
	return &fakeBoard{
		tiles: make(map[core.ParticipantSID]*fakeSurface),
		audio: newFakeSurface("audio"),
	}
}

func (b *fakeBoard) VideoSurface(sid core.ParticipantSID) core.RenderSurface {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.tiles[sid]
	if !ok {
		s = newFakeSurface(string(sid))
		b.tiles[sid] = s
	}
	return s
}

func (b *fakeBoard) AudioSink() core.RenderSurface { return b.audio }

func (b *fakeBoard) tile(sid core.ParticipantSID) *fakeSurface {
	return b.VideoSurface(sid).(*fakeSurface)
}
