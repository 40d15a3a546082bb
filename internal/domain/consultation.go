package domain

import (
	"errors"
	"time"
)

const MaxRoomNameLen = 36

var (
	ErrConsultationIDEmpty = errors.New("consultation id empty")
	ErrRoomNameTooLong     = errors.New("room name too long")
)

type (
	ConsultationID string
	RoomName       string
)

// Consultation is the booking a call session is opened against.
// No transport or lifecycle logic here.
type Consultation struct {
	ID          ConsultationID
	Room        RoomName
	PeerSummary string
	StartedAt   time.Time
}

// NewConsultation avoids raw literals in adapters and keeps construction obvious.
func NewConsultation(id ConsultationID, room RoomName, peer string) (*Consultation, error) {
	if id == "" {
		return nil, ErrConsultationIDEmpty
	}
	if len(room) > MaxRoomNameLen {
		return nil, ErrRoomNameTooLong
	}
	return &Consultation{ID: id, Room: room, PeerSummary: peer}, nil
}
