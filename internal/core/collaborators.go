// Package core holds the interface contracts between the controller and
// its collaborators. Adapters own the concrete resources behind these
// interfaces and must close them; the controller only orchestrates.
package core

import (
	"context"

	"github.com/medbridge/consult/internal/domain"
)

// TokenGrant is the credential exchange result: a single-use,
// time-bound room token plus the metadata to connect with.
type TokenGrant struct {
	Token         string          `json:"token"`
	RoomName      domain.RoomName `json:"room_name"`
	LocalIdentity domain.Identity `json:"local_identity"`
	PeerSummary   string          `json:"peer_summary"`
}

// CloseResult is the backend's acknowledgement of a closed session record.
type CloseResult struct {
	Status          string `json:"status"`
	DurationMinutes int    `json:"duration_minutes,omitempty"`
}

// Backend is the out-of-scope record-keeping collaborator.
type Backend interface {
	FetchSessionToken(ctx context.Context, id domain.ConsultationID) (*TokenGrant, error)
	CloseSessionRecord(ctx context.Context, id domain.ConsultationID) (*CloseResult, error)
}

// MediaOptions selects which device kinds to open.
type MediaOptions struct {
	Video bool
	Audio bool
}

// DeviceManager is the platform media-access primitive. It fails when
// the user denies access or no device exists.
type DeviceManager interface {
	RequestLocalTracks(ctx context.Context, opts MediaOptions) (*LocalTrackSet, error)
}
