package call

import (
	"errors"
	"fmt"

	"github.com/medbridge/consult/internal/core"
	"github.com/medbridge/consult/internal/domain"
)

var (
	// ErrConnectCanceled is returned when the liveness flag went false
	// while a connect step was in flight.
	ErrConnectCanceled = errors.New("connect canceled")
	ErrSessionEnded    = errors.New("session already ended")
	ErrNotConnected    = errors.New("session not connected")
	ErrRoomFull        = core.ErrRoomFull
)

// TokenError means the credential exchange failed. Recoverable by retry
// or re-authentication.
type TokenError struct {
	Consultation domain.ConsultationID
	Err          error
}

func (e *TokenError) Error() string {
	return fmt.Sprintf("session token for consultation %s: %v", e.Consultation, e.Err)
}

func (e *TokenError) Unwrap() error { return e.Err }

// PermissionError means camera/microphone access was denied or no
// device exists. Only user action outside this controller recovers it.
type PermissionError struct {
	Err error
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("local media access: %v", e.Err)
}

func (e *PermissionError) Unwrap() error { return e.Err }

// ConnectionError means the room connection failed (network, timeout,
// room full). Recoverable by retry.
type ConnectionError struct {
	Room domain.RoomName
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("room %s connect: %v", e.Room, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// RenderError is an attach/detach failure on a render surface. It is
// absorbed by the binder and only logged, never surfaced to the shell's
// consumer.
type RenderError struct {
	TrackID string
	Op      string
	Err     error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render %s track %s: %v", e.Op, e.TrackID, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// TeardownNotifyError means the backend close-record call failed during
// teardown. Surfaced as a warning; never blocks call completion.
type TeardownNotifyError struct {
	Consultation domain.ConsultationID
	Err          error
}

func (e *TeardownNotifyError) Error() string {
	return fmt.Sprintf("close record for consultation %s: %v", e.Consultation, e.Err)
}

func (e *TeardownNotifyError) Unwrap() error { return e.Err }
