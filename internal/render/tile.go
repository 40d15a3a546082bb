// Package render provides the in-process render surfaces the call shell
// hands to the controller: one tile per participant plus an audio sink.
package render

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/medbridge/consult/internal/core"
)

var ErrElementNotAttached = errors.New("element not attached to this tile")

// Element is one rendered media handle on a tile.
type Element struct {
	track core.Track
	muted atomic.Bool
}

func (e *Element) TrackID() string      { return e.track.ID() }
func (e *Element) Kind() core.TrackKind { return e.track.Kind() }

// Live mirrors the underlying stream state rather than any registry
// bookkeeping.
func (e *Element) Live() bool { return e.track.Live() }

func (e *Element) SetMuted(m bool) { e.muted.Store(m) }
func (e *Element) Muted() bool     { return e.muted.Load() }

// Tile is a single on-screen area. Only the binder mutates it.
type Tile struct {
	Name string

	mu       sync.Mutex
	elements []*Element
}

func NewTile(name string) *Tile {
	return &Tile{Name: name}
}

func (t *Tile) Attach(track core.Track) (core.MediaElement, error) {
	el := &Element{track: track}
	t.mu.Lock()
	t.elements = append(t.elements, el)
	t.mu.Unlock()
	return el, nil
}

func (t *Tile) Detach(el core.MediaElement) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, have := range t.elements {
		if core.MediaElement(have) == el {
			t.elements = append(t.elements[:i], t.elements[i+1:]...)
			return nil
		}
	}
	return ErrElementNotAttached
}

func (t *Tile) Elements() []core.MediaElement {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]core.MediaElement, len(t.elements))
	for i, el := range t.elements {
		out[i] = el
	}
	return out
}

// Board owns one tile per participant and the shared audio sink; it is
// the shell-side SurfaceProvider.
type Board struct {
	mu    sync.Mutex
	tiles map[core.ParticipantSID]*Tile
	audio *Tile
}

func NewBoard() *Board {
	return &Board{
		tiles: make(map[core.ParticipantSID]*Tile),
		audio: NewTile("audio-sink"),
	}
}

func (b *Board) VideoSurface(sid core.ParticipantSID) core.RenderSurface {
	b.mu.Lock()
	defer b.mu.Unlock()
	tile, ok := b.tiles[sid]
	if !ok {
		tile = NewTile(string(sid))
		b.tiles[sid] = tile
	}
	return tile
}

func (b *Board) AudioSink() core.RenderSurface { return b.audio }

// Tile returns the participant's tile without creating it.
func (b *Board) Tile(sid core.ParticipantSID) (*Tile, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	tile, ok := b.tiles[sid]
	return tile, ok
}
