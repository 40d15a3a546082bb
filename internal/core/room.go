package core

import (
	"context"
	"errors"

	"github.com/medbridge/consult/internal/domain"
)

// ErrRoomFull is returned by ConnectRoom when the room already holds
// both parties of a two-party consultation.
var ErrRoomFull = errors.New("room full")

// ParticipantSID is the provider-assigned stable per-connection identity.
type ParticipantSID string

// RemoteParticipant is a remote party currently present in the room.
type RemoteParticipant interface {
	SID() ParticipantSID
	Identity() domain.Identity
	Tracks() []RemoteTrack
}

// RoomHandle is a live connection to one room.
// Owned by the session; the router, control surface and teardown hold
// it by reference only. Callback setters follow the transport's
// event-driven surface; the router must unregister per-participant
// interest when a participant leaves.
type RoomHandle interface {
	RoomName() domain.RoomName
	LocalIdentity() domain.Identity

	OnParticipantConnected(func(RemoteParticipant))
	OnParticipantDisconnected(func(RemoteParticipant))
	OnTrackSubscribed(func(RemoteParticipant, RemoteTrack))
	OnTrackUnsubscribed(func(RemoteParticipant, RemoteTrack))
	OnTrackEnabled(func(RemoteParticipant, RemoteTrack))
	OnTrackDisabled(func(RemoteParticipant, RemoteTrack))

	// Participants returns the remote parties already in the room at
	// call time; later arrivals come through OnParticipantConnected.
	Participants() []RemoteParticipant

	Disconnect() error
}

// RoomOptions carries what ConnectRoom needs besides the token.
type RoomOptions struct {
	RoomName    domain.RoomName
	LocalTracks *LocalTrackSet
}

// RoomDialer opens room connections. Implemented by the rtc adapter;
// faked in controller tests.
type RoomDialer interface {
	ConnectRoom(ctx context.Context, token string, opts RoomOptions) (RoomHandle, error)
}
