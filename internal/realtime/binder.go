package realtime

import (
	"context"

	"github.com/chrisdamba/chowrider/internal/session"
)

// SessionSource is the subscription side of the session controller.
type SessionSource interface {
	Subscribe() (<-chan session.State, func())
}

// Bind keeps the manager in step with the session: an authenticated actor is
// connected and joined to its rooms, anything else is disconnected. It blocks
// until ctx is done and closes the manager on return.
func Bind(ctx context.Context, m *Manager, src SessionSource) {
	states, cancel := src.Subscribe()
	defer cancel()
	defer m.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case st, ok := <-states:
			if !ok {
				return
			}
			if !st.Authenticated() {
				if m.Actor() != (Actor{}) {
					m.logger.Info("session ended, closing socket")
					m.Close()
				}
				continue
			}
			actor := ActorFromUser(st.User)
			if m.Actor() == actor {
				continue
			}
			if err := m.Connect(ctx, actor); err != nil {
				m.logger.Error("failed to start socket", "error", err)
			}
		}
	}
}
