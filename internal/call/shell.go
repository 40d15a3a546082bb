package call

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/medbridge/consult/internal/core"
	"github.com/medbridge/consult/internal/domain"
)

// Callbacks is the outbound surface the shell's consumer observes.
// Any nil callback is simply skipped.
type Callbacks struct {
	OnStateChange  func(domain.ConnectionState)
	OnParticipants func([]Participant)
	OnError        func(error)
	OnDurationTick func(seconds int)
	OnComplete     func()
}

// Shell composes the connector, registry, router, binder, control
// surface and teardown into one call experience. Presentation lives in
// the consumer; the shell only exposes state and imperative handles.
type Shell struct {
	backend  core.Backend
	devices  core.DeviceManager
	dialer   core.RoomDialer
	surfaces SurfaceProvider
	cb       Callbacks

	alive Liveness

	mu       sync.Mutex
	sess     *Session
	router   *Router
	registry *Registry
	binder   *Binder
	controls *Controls
	teardown *Teardown
	tickStop chan struct{}
}

func NewShell(backend core.Backend, devices core.DeviceManager, dialer core.RoomDialer, surfaces SurfaceProvider, cb Callbacks) *Shell {
	s := &Shell{
		backend:  backend,
		devices:  devices,
		dialer:   dialer,
		surfaces: surfaces,
		cb:       cb,
	}
	s.registry = NewRegistry()
	s.binder = NewBinder()
	s.controls = NewControls(s.binder, s.currentSession)
	s.teardown = &Teardown{
		Backend:    backend,
		Binder:     s.binder,
		Registry:   s.registry,
		OnComplete: cb.OnComplete,
	}
	return s
}

func (s *Shell) currentSession() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sess
}

// Start runs the connect state machine and, on success, wires the room
// events into the registry and binder. Errors surface once through
// OnError with the session left in a terminal state.
func (s *Shell) Start(ctx context.Context, id domain.ConsultationID) error {
	connector := &Connector{Backend: s.backend, Devices: s.devices, Dialer: s.dialer}

	sess, err := connector.Connect(ctx, id, &s.alive, s.cb.OnStateChange)
	s.mu.Lock()
	s.sess = sess
	s.mu.Unlock()
	if err != nil {
		if err != ErrConnectCanceled && s.cb.OnError != nil {
			s.cb.OnError(err)
		}
		return err
	}

	// Teardown may have raced the tail of the connect; a released
	// session has no room left to wire.
	room := sess.Room()
	if room == nil {
		s.EndCall(ctx)
		return nil
	}

	s.mu.Lock()
	s.router = NewRouter(s.registry, s.binder, s.surfaces, s.cb.OnParticipants)
	s.router.Attach(room)
	s.bindLocalLocked(sess)
	s.tickStop = make(chan struct{})
	go s.tickLoop(sess, s.tickStop)
	s.mu.Unlock()

	// The caller may have unmounted while the router was being wired.
	if !s.alive.Alive() {
		s.EndCall(ctx)
	}
	return nil
}

// bindLocalLocked renders the local self-view and keeps the local audio
// out of the sink: the local party never hears themselves.
func (s *Shell) bindLocalLocked(sess *Session) {
	for _, t := range sess.Local().ByKind(core.TrackKindVideo) {
		s.binder.Bind(t, s.surfaces.VideoSurface(localSurfaceSID))
	}
}

// localSurfaceSID keys the self-view surface in the provider.
const localSurfaceSID = core.ParticipantSID("local")

func (s *Shell) tickLoop(sess *Session, stop chan struct{}) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if s.cb.OnDurationTick != nil {
				s.cb.OnDurationTick(int(time.Since(sess.StartedAt()) / time.Second))
			}
		}
	}
}

func (s *Shell) ToggleVideo() domain.ControlState   { return s.controls.ToggleVideo() }
func (s *Shell) ToggleAudio() domain.ControlState   { return s.controls.ToggleAudio() }
func (s *Shell) ToggleSpeaker() domain.ControlState { return s.controls.ToggleSpeaker() }

// ControlState returns the current local toggle flags for UI reflection.
func (s *Shell) ControlState() domain.ControlState { return s.controls.State() }

// State returns the session state, or Idle before any Start.
func (s *Shell) State() domain.ConnectionState {
	if sess := s.currentSession(); sess != nil {
		return sess.State()
	}
	return domain.StateIdle
}

// EndCall tears the session down. Safe to call at any time, from any
// goroutine, any number of times; it also serves as the unmount
// cleanup, canceling a connect still in flight.
func (s *Shell) EndCall(ctx context.Context) {
	s.alive.Kill()

	s.mu.Lock()
	sess := s.sess
	router := s.router
	teardown := s.teardown
	tickStop := s.tickStop
	s.tickStop = nil
	s.mu.Unlock()

	if tickStop != nil {
		close(tickStop)
	}
	if router != nil {
		router.Close()
	}
	if teardown != nil && sess != nil {
		teardown.End(ctx, sess)
		// A bind racing the teardown tail could leave a stray element.
		s.binder.UnbindAll()
		return
	}
	log.Debug().Str("module", "call.shell").Msg("end call before session established")
}
