package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/chrisdamba/chowrider/internal/logger"
	"github.com/chrisdamba/chowrider/internal/models"
	"github.com/chrisdamba/chowrider/internal/session"
)

type fakeSource struct {
	ch chan session.State
}

func (f *fakeSource) Subscribe() (<-chan session.State, func()) {
	return f.ch, func() {}
}

func TestBindFollowsSession(t *testing.T) {
	fs := newFakeServer(t)
	m := NewManager(testConfig(fs.url()), staticToken("tok-123"), logger.Discard())
	src := &fakeSource{ch: make(chan session.State)}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		Bind(ctx, m, src)
		close(done)
	}()

	src.ch <- session.State{Status: session.StatusOTPRequired, TempToken: "temp"}
	src.ch <- session.State{
		Status: session.StatusAuthenticated,
		User:   &models.User{ID: "d1", Role: models.RoleDispatcher},
	}

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer waitCancel()
	if err := m.WaitConnected(waitCtx); err != nil {
		t.Fatalf("not connected after authentication: %v", err)
	}
	fs.expect(t, `40{"token":"tok-123"}`)
	fs.expect(t, `42["join_room","dispatchers"]`)
	fs.expect(t, `42["join_room","dispatcher_d1"]`)

	src.ch <- session.State{Status: session.StatusLoggedOut}
	deadline := time.Now().Add(2 * time.Second)
	for m.Connected() || m.Actor() != (Actor{}) {
		if time.Now().After(deadline) {
			t.Fatal("still connected after logout")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	<-done
}
