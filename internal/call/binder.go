package call

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/medbridge/consult/internal/core"
)

type binding struct {
	track   core.Track
	surface core.RenderSurface
	element core.MediaElement
}

// Binder is the only component allowed to mutate render surfaces. It
// keeps each track bound to at most one element at a time and survives
// attach/detach failures on individual elements.
type Binder struct {
	mu    sync.Mutex
	bound map[string]binding
}

func NewBinder() *Binder {
	return &Binder{bound: make(map[string]binding)}
}

// Bind renders the track onto surface. Stale elements already on the
// surface (underlying stream no longer live) are swept first, trusting
// stream inspection over registry state. Re-binding a still-live track
// to its current surface is a no-op; a different surface unbinds the
// old element first. Render failures are logged and absorbed.
func (b *Binder) Bind(track core.Track, surface core.RenderSurface) {
	if track == nil || surface == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if cur, ok := b.bound[track.ID()]; ok {
		if cur.surface == surface && cur.element.Live() {
			return
		}
		b.detachLocked(cur)
		delete(b.bound, track.ID())
	}

	b.sweepStaleLocked(surface)

	el, err := surface.Attach(track)
	if err != nil {
		rerr := &RenderError{TrackID: track.ID(), Op: "attach", Err: err}
		log.Error().Err(rerr).Str("module", "call.binder").Msg("attach failed, skipping")
		return
	}
	b.bound[track.ID()] = binding{track: track, surface: surface, element: el}
}

// Unbind detaches the track from whatever surface currently shows it.
// Unknown tracks are a no-op.
func (b *Binder) Unbind(trackID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	cur, ok := b.bound[trackID]
	if !ok {
		return
	}
	b.detachLocked(cur)
	delete(b.bound, trackID)
}

// UnbindAll detaches every local and remote element. Failures on one
// element never block cleanup of the others.
func (b *Binder) UnbindAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, cur := range b.bound {
		b.detachLocked(cur)
		delete(b.bound, id)
	}
}

// BoundElement returns the element currently rendering the track, if any.
func (b *Binder) BoundElement(trackID string) (core.MediaElement, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	cur, ok := b.bound[trackID]
	if !ok {
		return nil, false
	}
	return cur.element, true
}

// AudioElements returns every bound audio element; the speaker toggle
// mutes these rather than touching any track.
func (b *Binder) AudioElements() []core.MediaElement {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]core.MediaElement, 0, len(b.bound))
	for _, cur := range b.bound {
		if cur.element.Kind() == core.TrackKindAudio {
			out = append(out, cur.element)
		}
	}
	return out
}

func (b *Binder) detachLocked(cur binding) {
	if err := cur.surface.Detach(cur.element); err != nil {
		rerr := &RenderError{TrackID: cur.track.ID(), Op: "detach", Err: err}
		log.Warn().Err(rerr).Str("module", "call.binder").Msg("detach failed, continuing")
	}
}

func (b *Binder) sweepStaleLocked(surface core.RenderSurface) {
	for _, el := range surface.Elements() {
		if el.Live() {
			continue
		}
		if err := surface.Detach(el); err != nil {
			rerr := &RenderError{TrackID: el.TrackID(), Op: "detach", Err: err}
			log.Warn().Err(rerr).Str("module", "call.binder").Msg("stale sweep detach failed, continuing")
			continue
		}
		delete(b.bound, el.TrackID())
	}
}
