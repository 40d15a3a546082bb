package render

import (
	"sync/atomic"
	"testing"

	"github.com/medbridge/consult/internal/core"
)

type stubTrack struct {
	id   string
	kind core.TrackKind
	dead atomic.Bool
}

func (s *stubTrack) ID() string           { return s.id }
func (s *stubTrack) Kind() core.TrackKind { return s.kind }
func (s *stubTrack) Live() bool           { return !s.dead.Load() }

func TestTile_attachDetach(t *testing.T) {
	tile := NewTile("a")
	track := &stubTrack{id: "v1", kind: core.TrackKindVideo}

	el, err := tile.Attach(track)
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	if len(tile.Elements()) != 1 {
		t.Fatal("one element expected")
	}
	if el.TrackID() != "v1" || el.Kind() != core.TrackKindVideo {
		t.Errorf("element metadata mismatch: %s/%s", el.TrackID(), el.Kind())
	}
	if !el.Live() {
		t.Error("element mirrors a live track")
	}
	track.dead.Store(true)
	if el.Live() {
		t.Error("element must follow the stream to dead")
	}

	if err := tile.Detach(el); err != nil {
		t.Fatalf("Detach: %v", err)
	}
	if len(tile.Elements()) != 0 {
		t.Error("tile should be empty")
	}
	if err := tile.Detach(el); err != ErrElementNotAttached {
		t.Errorf("double detach: got %v, want ErrElementNotAttached", err)
	}
}

func TestElement_mute(t *testing.T) {
	tile := NewTile("sink")
	el, _ := tile.Attach(&stubTrack{id: "a1", kind: core.TrackKindAudio})
	if el.Muted() {
		t.Error("elements start unmuted")
	}
	el.SetMuted(true)
	if !el.Muted() {
		t.Error("SetMuted(true) should stick")
	}
}

func TestBoard_tilesPerParticipant(t *testing.T) {
	b := NewBoard()
	s1 := b.VideoSurface("sid-a")
	s2 := b.VideoSurface("sid-a")
	if s1 != s2 {
		t.Error("same participant gets the same tile")
	}
	if b.VideoSurface("sid-b") == s1 {
		t.Error("different participants get different tiles")
	}
	if _, ok := b.Tile("sid-a"); !ok {
		t.Error("created tile should be discoverable")
	}
	if _, ok := b.Tile("sid-missing"); ok {
		t.Error("Tile must not create")
	}
	if b.AudioSink() == nil {
		t.Error("audio sink always exists")
	}
}
