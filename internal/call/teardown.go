package call

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/medbridge/consult/internal/core"
	"github.com/medbridge/consult/internal/domain"
)

// Teardown coordinates the terminal sequence: detach every render
// target, release local media, disconnect the room, notify the backend
// and fire the completion callback exactly once. Ending a call must
// always succeed from the user's perspective, so the backend
// notification failure is reported but never fatal.
type Teardown struct {
	Backend    core.Backend
	Binder     *Binder
	Registry   *Registry
	OnComplete func()

	once sync.Once
}

// End is safe to invoke concurrently and repeatedly, e.g. from a user
// click and an unmount cleanup firing at nearly the same time. Calls
// after the first completed teardown are pure no-ops.
func (t *Teardown) End(ctx context.Context, sess *Session) {
	if sess == nil {
		return
	}
	t.once.Do(func() {
		sess.setState(domain.StateEnding)

		if t.Binder != nil {
			t.Binder.UnbindAll()
		}
		if t.Registry != nil {
			t.Registry.Clear()
		}
		sess.releaseResources()

		if t.Backend != nil {
			if _, err := t.Backend.CloseSessionRecord(ctx, sess.Consultation); err != nil {
				nerr := &TeardownNotifyError{Consultation: sess.Consultation, Err: err}
				log.Warn().Err(nerr).Str("module", "call.teardown").Msg("close record failed, completing locally")
			}
		}

		sess.setState(domain.StateTerminated)
		log.Info().
			Str("module", "call.teardown").
			Str("consultation", string(sess.Consultation)).
			Msg("session torn down")

		if t.OnComplete != nil {
			t.OnComplete()
		}
	})
}
