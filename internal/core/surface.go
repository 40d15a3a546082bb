package core

// MediaElement is one rendered handle for a track on a surface, the
// in-process analogue of an <audio>/<video> element.
type MediaElement interface {
	TrackID() string
	Kind() TrackKind
	// Live mirrors the underlying stream's readyState.
	Live() bool
	SetMuted(bool)
	Muted() bool
}

// RenderSurface is an opaque on-screen area media is rendered into.
// Owned by the call shell but mutated only through the binder's
// bind/unbind calls, so concurrent callbacks cannot race on raw
// element lists.
type RenderSurface interface {
	// Attach renders the track onto this surface and returns its element.
	Attach(t Track) (MediaElement, error)
	Detach(el MediaElement) error
	Elements() []MediaElement
}
