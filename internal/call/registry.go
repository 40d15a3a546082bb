package call

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/medbridge/consult/internal/core"
	"github.com/medbridge/consult/internal/domain"
)

// Participant is the derived display state for one remote party.
type Participant struct {
	SID         core.ParticipantSID `json:"sid"`
	Identity    domain.Identity     `json:"identity"`
	DisplayName string              `json:"display_name"`
	Initials    string              `json:"initials"`
	HasVideo    bool                `json:"has_video"`
}

type trackState struct {
	kind       core.TrackKind
	subscribed bool
	enabled    bool
}

type participantEntry struct {
	identity domain.Identity
	tracks   map[string]trackState
}

// Registry is the in-memory map of remote participants keyed by their
// stable session identity. HasVideo is always recomputed from track
// state, never toggled directly.
type Registry struct {
	mu      sync.RWMutex
	order   []core.ParticipantSID
	entries map[core.ParticipantSID]*participantEntry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[core.ParticipantSID]*participantEntry)}
}

func (r *Registry) OnParticipantJoined(sid core.ParticipantSID, identity domain.Identity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[sid]; ok {
		e.identity = identity
		return
	}
	r.entries[sid] = &participantEntry{identity: identity, tracks: make(map[string]trackState)}
	r.order = append(r.order, sid)
	log.Info().Str("module", "call.registry").Str("sid", string(sid)).Str("identity", string(identity)).Msg("participant joined")
}

// OnParticipantLeft removes the participant and returns the IDs of its
// known tracks so the caller can unbind them.
func (r *Registry) OnParticipantLeft(sid core.ParticipantSID) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[sid]
	if !ok {
		return nil
	}
	ids := make([]string, 0, len(e.tracks))
	for id := range e.tracks {
		ids = append(ids, id)
	}
	delete(r.entries, sid)
	for i, s := range r.order {
		if s == sid {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	log.Info().Str("module", "call.registry").Str("sid", string(sid)).Msg("participant left")
	return ids
}

// UpsertTrackState records the latest observed lifecycle state for one
// track. Unknown participants get a placeholder entry: track events may
// outrun the participant-connected notification.
func (r *Registry) UpsertTrackState(sid core.ParticipantSID, trackID string, kind core.TrackKind, subscribed, enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[sid]
	if !ok {
		e = &participantEntry{tracks: make(map[string]trackState)}
		r.entries[sid] = e
		r.order = append(r.order, sid)
	}
	e.tracks[trackID] = trackState{kind: kind, subscribed: subscribed, enabled: enabled}
}

// SetTrackEnabled flips only the enabled flag, keeping whatever
// subscription state is already known for the track.
func (r *Registry) SetTrackEnabled(sid core.ParticipantSID, trackID string, kind core.TrackKind, enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[sid]
	if !ok {
		e = &participantEntry{tracks: make(map[string]trackState)}
		r.entries[sid] = e
		r.order = append(r.order, sid)
	}
	ts := e.tracks[trackID]
	ts.kind = kind
	ts.enabled = enabled
	e.tracks[trackID] = ts
}

// Subscribed reports whether the track is currently known subscribed.
func (r *Registry) Subscribed(sid core.ParticipantSID, trackID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.entries[sid]; ok {
		return e.tracks[trackID].subscribed
	}
	return false
}

// Snapshot returns participants in join order with HasVideo recomputed
// from live track state.
func (r *Registry) Snapshot() []Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Participant, 0, len(r.order))
	for _, sid := range r.order {
		e, ok := r.entries[sid]
		if !ok {
			continue
		}
		hasVideo := false
		for _, ts := range e.tracks {
			if ts.kind == core.TrackKindVideo && ts.subscribed && ts.enabled {
				hasVideo = true
				break
			}
		}
		out = append(out, Participant{
			SID:         sid,
			Identity:    e.identity,
			DisplayName: e.identity.DisplayName(),
			Initials:    e.identity.Initials(),
			HasVideo:    hasVideo,
		})
	}
	return out
}

// Clear wipes the registry as a whole on session termination.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = make(map[core.ParticipantSID]*participantEntry)
	r.order = nil
}
