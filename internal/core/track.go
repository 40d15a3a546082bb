package core

import "sync/atomic"

// TrackKind tells audio from video. The zero value is not a valid kind.
type TrackKind string

const (
	TrackKindAudio TrackKind = "audio"
	TrackKindVideo TrackKind = "video"
)

// Track is a single media stream published by one party.
type Track interface {
	ID() string
	Kind() TrackKind
	// Live reports whether the underlying stream still produces media.
	// Render cleanup trusts this, not registry state, because detach
	// ordering from the network layer is not guaranteed.
	Live() bool
}

// LocalTrack is a device-backed track owned by the local party.
// Owned by the adapter that opened the device; the session releases it
// through LocalTrackSet, never directly.
type LocalTrack interface {
	Track
	Enabled() bool
	SetEnabled(bool)
	// Stop releases the underlying device capture.
	Stop()
}

// RemoteTrack is a subscribed track published by a remote participant.
// Enabled reflects the publisher-side mute state.
type RemoteTrack interface {
	Track
	Enabled() bool
}

// LocalTrackSet owns every local track acquired in one device request
// and releases them as a unit.
type LocalTrackSet struct {
	tracks   []LocalTrack
	released atomic.Bool
}

func NewLocalTrackSet(tracks ...LocalTrack) *LocalTrackSet {
	return &LocalTrackSet{tracks: tracks}
}

func (s *LocalTrackSet) All() []LocalTrack { return s.tracks }

// ByKind returns every local track of the given kind; there may be more
// than one publication per kind.
func (s *LocalTrackSet) ByKind(kind TrackKind) []LocalTrack {
	out := make([]LocalTrack, 0, len(s.tracks))
	for _, t := range s.tracks {
		if t.Kind() == kind {
			out = append(out, t)
		}
	}
	return out
}

// Release disables and stops every track. Safe to call repeatedly;
// only the first call touches the devices.
func (s *LocalTrackSet) Release() {
	if !s.released.CompareAndSwap(false, true) {
		return
	}
	for _, t := range s.tracks {
		t.SetEnabled(false)
		t.Stop()
	}
}

// Released reports whether Release has run.
func (s *LocalTrackSet) Released() bool { return s.released.Load() }
