package rtc

import (
	"testing"
	"time"

	"github.com/medbridge/consult/internal/core"
	"github.com/medbridge/consult/internal/domain"
)

func newTestRoomConn() *roomConn {
	ws := newWSClient(nil, 32768, time.Minute)
	return newRoomConn(domain.RoomName("consult-c1"), nil, ws)
}

func TestHandleJoined_recordsSelfAndPeers(t *testing.T) {
	rc := newTestRoomConn()

	rc.handleSignal([]byte(`{"type":"joined","self":{"sid":"s1","identity":"dr.chen@example.com"},"peers":[{"sid":"s2","identity":"patient@example.com"}]}`))

	select {
	case ack := <-rc.joined:
		if ack.Self.Identity != "dr.chen@example.com" {
			t.Errorf("self identity = %q", ack.Self.Identity)
		}
		if len(ack.Peers) != 1 {
			t.Fatalf("peers = %d, want 1", len(ack.Peers))
		}
	default:
		t.Fatal("joined ack not delivered")
	}

	if rc.LocalIdentity() != domain.Identity("dr.chen@example.com") {
		t.Errorf("LocalIdentity = %q", rc.LocalIdentity())
	}
	parts := rc.Participants()
	if len(parts) != 1 || parts[0].SID() != core.ParticipantSID("s2") {
		t.Errorf("Participants = %v, want the announced peer", parts)
	}
}

func TestHandlePeerJoined_firesCallbackOnce(t *testing.T) {
	rc := newTestRoomConn()

	var joined []core.RemoteParticipant
	rc.OnParticipantConnected(func(p core.RemoteParticipant) {
		joined = append(joined, p)
	})

	msg := []byte(`{"type":"peer_joined","peer":{"sid":"s2","identity":"patient@example.com"}}`)
	rc.handleSignal(msg)
	rc.handleSignal(msg) // duplicate announcement is ignored

	if len(joined) != 1 {
		t.Fatalf("join callback fired %d times, want 1", len(joined))
	}
	if joined[0].Identity() != domain.Identity("patient@example.com") {
		t.Errorf("identity = %q", joined[0].Identity())
	}
}

func TestHandlePeerLeft(t *testing.T) {
	rc := newTestRoomConn()
	rc.handleSignal([]byte(`{"type":"peer_joined","peer":{"sid":"s2","identity":"patient@example.com"}}`))

	var left []core.RemoteParticipant
	rc.OnParticipantDisconnected(func(p core.RemoteParticipant) {
		left = append(left, p)
	})

	rc.handleSignal([]byte(`{"type":"peer_left","sid":"s2"}`))
	rc.handleSignal([]byte(`{"type":"peer_left","sid":"s2"}`))

	if len(left) != 1 {
		t.Fatalf("left callback fired %d times, want 1", len(left))
	}
	if len(rc.Participants()) != 0 {
		t.Error("participant still present after peer_left")
	}
}

func TestHandleSignal_badPayloadIgnored(t *testing.T) {
	rc := newTestRoomConn()
	rc.handleSignal([]byte(`{"garbage`))
	rc.handleSignal([]byte(`{"type":"unknown_kind"}`))
	if len(rc.Participants()) != 0 {
		t.Error("bad payloads changed room state")
	}
}
