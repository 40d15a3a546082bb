package call

import (
	"context"
	"errors"
	"testing"

	"github.com/medbridge/consult/internal/domain"
)

func TestConnector_happyPath(t *testing.T) {
	backend := newFakeBackend()
	devices := &fakeDevices{}
	dialer := &fakeDialer{room: newFakeRoom("consult-42")}
	c := &Connector{Backend: backend, Devices: devices, Dialer: dialer}

	var states []domain.ConnectionState
	sess, err := c.Connect(context.Background(), "c1", &Liveness{}, func(s domain.ConnectionState) {
		states = append(states, s)
	})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if sess.State() != domain.StateConnected {
		t.Errorf("state = %v, want connected", sess.State())
	}
	if sess.StartedAt().IsZero() {
		t.Error("startedAt should be set on connect")
	}
	want := []domain.ConnectionState{
		domain.StateAcquiringToken,
		domain.StateAcquiringMedia,
		domain.StateConnecting,
		domain.StateConnected,
	}
	if len(states) != len(want) {
		t.Fatalf("state transitions = %v, want %v", states, want)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Errorf("transition %d = %v, want %v", i, states[i], want[i])
		}
	}
}

func TestConnector_tokenFailure(t *testing.T) {
	backend := newFakeBackend()
	backend.tokenErr = errors.New("401")
	c := &Connector{Backend: backend, Devices: &fakeDevices{}, Dialer: &fakeDialer{}}

	_, err := c.Connect(context.Background(), "c1", &Liveness{}, nil)
	var terr *TokenError
	if !errors.As(err, &terr) {
		t.Fatalf("want TokenError, got %v", err)
	}
}

func TestConnector_permissionFailure(t *testing.T) {
	devices := &fakeDevices{err: errors.New("denied")}
	dialer := &fakeDialer{room: newFakeRoom("r")}
	c := &Connector{Backend: newFakeBackend(), Devices: devices, Dialer: dialer}

	_, err := c.Connect(context.Background(), "c1", &Liveness{}, nil)
	var perr *PermissionError
	if !errors.As(err, &perr) {
		t.Fatalf("want PermissionError, got %v", err)
	}
	if dialer.connects.Load() != 0 {
		t.Error("room connect must not run after media denial")
	}
}

func TestConnector_roomConnectFailure_releasesMedia(t *testing.T) {
	devices := &fakeDevices{}
	dialer := &fakeDialer{err: errors.New("room full")}
	c := &Connector{Backend: newFakeBackend(), Devices: devices, Dialer: dialer}

	var last domain.ConnectionState
	_, err := c.Connect(context.Background(), "c1", &Liveness{}, func(s domain.ConnectionState) { last = s })
	var cerr *ConnectionError
	if !errors.As(err, &cerr) {
		t.Fatalf("want ConnectionError, got %v", err)
	}
	if last != domain.StateErrored {
		t.Errorf("final state = %v, want errored", last)
	}
	set := devices.lastSet()
	if set == nil || !set.Released() {
		t.Fatal("acquired local media must be released on connect failure")
	}
	for _, tr := range set.All() {
		if tr.Enabled() || tr.Live() {
			t.Errorf("track %s still enabled/live after release", tr.ID())
		}
	}
}

func TestConnector_unmountBetweenMediaAndConnect(t *testing.T) {
	alive := &Liveness{}
	devices := &fakeDevices{onRequest: func() { alive.Kill() }}
	dialer := &fakeDialer{room: newFakeRoom("r")}
	c := &Connector{Backend: newFakeBackend(), Devices: devices, Dialer: dialer}

	_, err := c.Connect(context.Background(), "c1", alive, nil)
	if !errors.Is(err, ErrConnectCanceled) {
		t.Fatalf("want ErrConnectCanceled, got %v", err)
	}
	if dialer.connects.Load() != 0 {
		t.Error("no room connection may ever be opened after unmount")
	}
	if set := devices.lastSet(); set == nil || !set.Released() {
		t.Error("acquired local tracks must be released on unmount")
	}
}

func TestConnector_unmountAfterToken(t *testing.T) {
	alive := &Liveness{}
	backend := newFakeBackend()
	backend.onFetch = func() { alive.Kill() }
	devices := &fakeDevices{}
	c := &Connector{Backend: backend, Devices: devices, Dialer: &fakeDialer{}}

	_, err := c.Connect(context.Background(), "c1", alive, nil)
	if !errors.Is(err, ErrConnectCanceled) {
		t.Fatalf("want ErrConnectCanceled, got %v", err)
	}
	if devices.lastSet() != nil {
		t.Error("media must not be acquired after unmount")
	}
}

func TestConnector_unmountAfterConnect_disconnectsRoom(t *testing.T) {
	alive := &Liveness{}
	room := newFakeRoom("r")
	dialer := &fakeDialer{room: room, onConnect: func() { alive.Kill() }}
	c := &Connector{Backend: newFakeBackend(), Devices: &fakeDevices{}, Dialer: dialer}

	_, err := c.Connect(context.Background(), "c1", alive, nil)
	if !errors.Is(err, ErrConnectCanceled) {
		t.Fatalf("want ErrConnectCanceled, got %v", err)
	}
	if room.disconnectCalls.Load() != 1 {
		t.Errorf("room should be disconnected exactly once, got %d", room.disconnectCalls.Load())
	}
}

func TestConnector_contextCancelTreatedAsCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	backend := newFakeBackend()
	backend.onFetch = func() { cancel() }
	c := &Connector{Backend: backend, Devices: &fakeDevices{}, Dialer: &fakeDialer{}}

	_, err := c.Connect(ctx, "c1", &Liveness{}, nil)
	if !errors.Is(err, ErrConnectCanceled) {
		t.Fatalf("want ErrConnectCanceled, got %v", err)
	}
}
