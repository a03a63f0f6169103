package push

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/chrisdamba/chowrider/internal/logger"
	"github.com/chrisdamba/chowrider/internal/models"
	"github.com/chrisdamba/chowrider/internal/session"
)

type fakePlatform struct {
	device    bool
	status    Permission
	grant     Permission
	token     string
	requested bool
}

func (f *fakePlatform) IsPhysicalDevice() bool { return f.device }

func (f *fakePlatform) PermissionStatus(context.Context) (Permission, error) { return f.status, nil }

func (f *fakePlatform) RequestPermission(context.Context) (Permission, error) {
	f.requested = true
	return f.grant, nil
}

func (f *fakePlatform) PushToken(context.Context) (string, error) { return f.token, nil }

type fakeProfile struct {
	mu     sync.Mutex
	tokens []string
	err    error
}

func (f *fakeProfile) UpdateProfile(_ context.Context, p models.UpdateProfilePayload) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.tokens = append(f.tokens, p.PushToken)
	return &models.User{PushToken: p.PushToken}, nil
}

func (f *fakeProfile) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.tokens...)
}

type fakeSession struct {
	mu     sync.Mutex
	state  session.State
	states chan session.State
}

func newFakeSession(st session.State) *fakeSession {
	return &fakeSession{state: st, states: make(chan session.State, 4)}
}

func (f *fakeSession) State() session.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeSession) Subscribe() (<-chan session.State, func()) {
	return f.states, func() {}
}

func (f *fakeSession) set(st session.State) {
	f.mu.Lock()
	f.state = st
	f.mu.Unlock()
	f.states <- st
}

func signedIn(id string) session.State {
	return session.State{Status: session.StatusAuthenticated, User: &models.User{ID: id, Role: models.RoleRider}}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRegisterWhenSignedIn(t *testing.T) {
	platform := &fakePlatform{device: true, status: PermissionGranted, token: "ExponentPushToken[abc]"}
	profile := &fakeProfile{}
	r := NewRegistrant(platform, profile, newFakeSession(signedIn("u1")), logger.Discard())

	token, err := r.Register(context.Background())
	if err != nil || token != "ExponentPushToken[abc]" {
		t.Fatalf("token = %q, err = %v", token, err)
	}
	if platform.requested {
		t.Error("permission requested although already granted")
	}
	if got := profile.calls(); len(got) != 1 || got[0] != token {
		t.Fatalf("profile updates = %v", got)
	}

	// Same token for the same actor is not sent again.
	r.Register(context.Background())
	if got := profile.calls(); len(got) != 1 {
		t.Fatalf("profile updates = %v", got)
	}
}

func TestRegisterIsNoOpWithoutDeviceOrPermission(t *testing.T) {
	tests := []struct {
		name     string
		platform *fakePlatform
	}{
		{"simulator", &fakePlatform{device: false, status: PermissionGranted, token: "t"}},
		{"denied", &fakePlatform{device: true, status: PermissionUndetermined, grant: PermissionDenied, token: "t"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			profile := &fakeProfile{}
			r := NewRegistrant(tt.platform, profile, newFakeSession(signedIn("u1")), logger.Discard())
			token, err := r.Register(context.Background())
			if token != "" || err != nil {
				t.Fatalf("token = %q, err = %v", token, err)
			}
			if len(profile.calls()) != 0 {
				t.Fatal("profile updated")
			}
		})
	}
}

func TestTokenDeferredUntilSignIn(t *testing.T) {
	platform := &fakePlatform{device: true, status: PermissionUndetermined, grant: PermissionGranted, token: "tok"}
	profile := &fakeProfile{}
	sess := newFakeSession(session.State{Status: session.StatusLoggedOut})
	r := NewRegistrant(platform, profile, sess, logger.Discard())

	if _, err := r.Register(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(profile.calls()) != 0 {
		t.Fatal("token submitted before sign-in")
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	sess.set(session.State{Status: session.StatusOTPRequired})
	sess.set(signedIn("u1"))
	waitFor(t, func() bool { return len(profile.calls()) == 1 })

	// A second actor on the same device gets the token too.
	sess.set(signedIn("u2"))
	waitFor(t, func() bool { return len(profile.calls()) == 2 })

	cancel()
	<-done
}

func TestSubmitFailureIsRetriedOnNextSignIn(t *testing.T) {
	platform := &fakePlatform{device: true, status: PermissionGranted, token: "tok"}
	profile := &fakeProfile{err: errors.New("network down")}
	sess := newFakeSession(signedIn("u1"))
	r := NewRegistrant(platform, profile, sess, logger.Discard())

	if _, err := r.Register(context.Background()); err == nil {
		t.Fatal("expected error")
	}

	profile.mu.Lock()
	profile.err = nil
	profile.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)
	sess.set(signedIn("u1"))
	waitFor(t, func() bool { return len(profile.calls()) == 1 })
}
