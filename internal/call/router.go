package call

import (
	"sync"

	"github.com/gammazero/deque"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/medbridge/consult/internal/core"
)

// SurfaceProvider hands the router the render targets the call shell
// owns: one video surface per participant and a shared audio sink.
type SurfaceProvider interface {
	VideoSurface(sid core.ParticipantSID) core.RenderSurface
	AudioSink() core.RenderSurface
}

type eventKind int

const (
	evParticipantJoined eventKind = iota
	evParticipantLeft
	evTrackSubscribed
	evTrackUnsubscribed
	evTrackEnabled
	evTrackDisabled
)

type roomEvent struct {
	kind        eventKind
	participant core.RemoteParticipant
	track       core.RemoteTrack
}

// Router consumes per-participant track lifecycle notifications and
// keeps the registry and binder in agreement. All events flow through
// one FIFO and one dispatcher goroutine, so events are processed in
// strict arrival order with no coalescing: enable/disable can arrive
// faster than subscription during rapid toggling.
type Router struct {
	registry *Registry
	binder   *Binder
	surfaces SurfaceProvider

	onParticipants func([]Participant)

	mu      sync.Mutex
	cond    *sync.Cond
	queue   deque.Deque[roomEvent]
	started bool
	closed  bool
	done    chan struct{}
	logger  zerolog.Logger
}

func NewRouter(registry *Registry, binder *Binder, surfaces SurfaceProvider, onParticipants func([]Participant)) *Router {
	r := &Router{
		registry:       registry,
		binder:         binder,
		surfaces:       surfaces,
		onParticipants: onParticipants,
		done:           make(chan struct{}),
		logger:         log.With().Str("module", "call.router").Logger(),
	}
	r.cond = sync.NewCond(&r.mu)
	return r
}

// Attach subscribes the router to the room's notifications and starts
// the dispatcher. Participants already present at attach time are
// replayed as joined/subscribed events so late attachment misses
// nothing.
func (r *Router) Attach(room core.RoomHandle) {
	room.OnParticipantConnected(func(p core.RemoteParticipant) {
		r.enqueue(roomEvent{kind: evParticipantJoined, participant: p})
	})
	room.OnParticipantDisconnected(func(p core.RemoteParticipant) {
		r.enqueue(roomEvent{kind: evParticipantLeft, participant: p})
	})
	room.OnTrackSubscribed(func(p core.RemoteParticipant, t core.RemoteTrack) {
		r.enqueue(roomEvent{kind: evTrackSubscribed, participant: p, track: t})
	})
	room.OnTrackUnsubscribed(func(p core.RemoteParticipant, t core.RemoteTrack) {
		r.enqueue(roomEvent{kind: evTrackUnsubscribed, participant: p, track: t})
	})
	room.OnTrackEnabled(func(p core.RemoteParticipant, t core.RemoteTrack) {
		r.enqueue(roomEvent{kind: evTrackEnabled, participant: p, track: t})
	})
	room.OnTrackDisabled(func(p core.RemoteParticipant, t core.RemoteTrack) {
		r.enqueue(roomEvent{kind: evTrackDisabled, participant: p, track: t})
	})

	for _, p := range room.Participants() {
		r.enqueue(roomEvent{kind: evParticipantJoined, participant: p})
		for _, t := range p.Tracks() {
			r.enqueue(roomEvent{kind: evTrackSubscribed, participant: p, track: t})
		}
	}

	r.mu.Lock()
	alreadyStarted := r.started
	r.started = true
	r.mu.Unlock()
	if !alreadyStarted {
		go r.loop()
	}
}

func (r *Router) enqueue(ev roomEvent) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.queue.PushBack(ev)
	r.cond.Signal()
	r.mu.Unlock()
}

func (r *Router) loop() {
	defer close(r.done)
	for {
		r.mu.Lock()
		for r.queue.Len() == 0 && !r.closed {
			r.cond.Wait()
		}
		if r.queue.Len() == 0 && r.closed {
			r.mu.Unlock()
			return
		}
		ev := r.queue.PopFront()
		r.mu.Unlock()

		r.handle(ev)
		if r.onParticipants != nil {
			r.onParticipants(r.registry.Snapshot())
		}
	}
}

func (r *Router) handle(ev roomEvent) {
	sid := ev.participant.SID()
	switch ev.kind {
	case evParticipantJoined:
		r.registry.OnParticipantJoined(sid, ev.participant.Identity())

	case evParticipantLeft:
		for _, trackID := range r.registry.OnParticipantLeft(sid) {
			r.binder.Unbind(trackID)
		}

	case evTrackSubscribed:
		enabled := ev.track.Enabled()
		r.registry.UpsertTrackState(sid, ev.track.ID(), ev.track.Kind(), true, enabled)
		if ev.track.Kind() == core.TrackKindAudio {
			// Audio is always attached; publisher-side muting covers
			// enable state without unsubscription.
			r.binder.Bind(ev.track, r.surfaces.AudioSink())
			return
		}
		if enabled {
			r.binder.Bind(ev.track, r.surfaces.VideoSurface(sid))
		}
		r.logger.Debug().Str("sid", string(sid)).Str("track", ev.track.ID()).Bool("enabled", enabled).Msg("track subscribed")

	case evTrackUnsubscribed:
		r.registry.UpsertTrackState(sid, ev.track.ID(), ev.track.Kind(), false, ev.track.Enabled())
		r.binder.Unbind(ev.track.ID())

	case evTrackEnabled:
		r.registry.SetTrackEnabled(sid, ev.track.ID(), ev.track.Kind(), true)
		if ev.track.Kind() == core.TrackKindVideo && r.registry.Subscribed(sid, ev.track.ID()) {
			r.binder.Bind(ev.track, r.surfaces.VideoSurface(sid))
		}

	case evTrackDisabled:
		r.registry.SetTrackEnabled(sid, ev.track.ID(), ev.track.Kind(), false)
		if ev.track.Kind() == core.TrackKindVideo {
			r.binder.Unbind(ev.track.ID())
		}
	}
}

// Close stops the dispatcher after draining queued events. Idempotent
// and safe to call concurrently with enqueue.
func (r *Router) Close() {
	r.mu.Lock()
	started := r.started
	if !r.closed {
		r.closed = true
		r.cond.Broadcast()
	}
	r.mu.Unlock()
	if started {
		<-r.done
	}
}
