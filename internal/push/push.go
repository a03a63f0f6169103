// Package push registers the device's push token with the backend once an
// actor is signed in.
package push

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/chrisdamba/chowrider/internal/models"
	"github.com/chrisdamba/chowrider/internal/session"
)

type Permission string

const (
	PermissionGranted      Permission = "granted"
	PermissionDenied       Permission = "denied"
	PermissionUndetermined Permission = "undetermined"
)

// Platform is the device side of push notifications.
type Platform interface {
	IsPhysicalDevice() bool
	PermissionStatus(ctx context.Context) (Permission, error)
	RequestPermission(ctx context.Context) (Permission, error)
	PushToken(ctx context.Context) (string, error)
}

type ProfileAPI interface {
	UpdateProfile(ctx context.Context, payload models.UpdateProfilePayload) (*models.User, error)
}

type SessionSource interface {
	State() session.State
	Subscribe() (<-chan session.State, func())
}

// Registrant obtains the push token and submits it for the signed-in actor.
// A token obtained before sign-in is held until the session authenticates.
type Registrant struct {
	platform Platform
	profile  ProfileAPI
	session  SessionSource
	logger   *slog.Logger

	mu        sync.Mutex
	token     string
	submitted map[string]string // actor id -> token the backend has
}

func NewRegistrant(platform Platform, profile ProfileAPI, sess SessionSource, logger *slog.Logger) *Registrant {
	return &Registrant{
		platform:  platform,
		profile:   profile,
		session:   sess,
		logger:    logger,
		submitted: make(map[string]string),
	}
}

// Register asks for permission, obtains the token and submits it if an actor
// is signed in. It returns the token, or "" when push is unavailable on this
// device.
func (r *Registrant) Register(ctx context.Context) (string, error) {
	token, err := r.obtain(ctx)
	if err != nil || token == "" {
		return "", err
	}

	r.mu.Lock()
	r.token = token
	r.mu.Unlock()

	st := r.session.State()
	if !st.Authenticated() {
		r.logger.Info("push token held until sign-in")
		return token, nil
	}
	return token, r.submit(ctx, st.User)
}

func (r *Registrant) obtain(ctx context.Context) (string, error) {
	if !r.platform.IsPhysicalDevice() {
		r.logger.Warn("push notifications require a physical device")
		return "", nil
	}

	status, err := r.platform.PermissionStatus(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read push permission: %w", err)
	}
	if status != PermissionGranted {
		status, err = r.platform.RequestPermission(ctx)
		if err != nil {
			return "", fmt.Errorf("failed to request push permission: %w", err)
		}
	}
	if status != PermissionGranted {
		r.logger.Warn("push notification permission denied")
		return "", nil
	}

	token, err := r.platform.PushToken(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get push token: %w", err)
	}
	return token, nil
}

// Run submits the held token on every transition to an authenticated actor
// until ctx is done.
func (r *Registrant) Run(ctx context.Context) {
	states, cancel := r.session.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case st, ok := <-states:
			if !ok {
				return
			}
			if !st.Authenticated() {
				continue
			}
			if err := r.submit(ctx, st.User); err != nil {
				r.logger.Error("failed to save push token", "error", err)
			}
		}
	}
}

func (r *Registrant) submit(ctx context.Context, user *models.User) error {
	if user == nil {
		return nil
	}
	r.mu.Lock()
	token := r.token
	done := token == "" || r.submitted[user.ID] == token || user.PushToken == token
	r.mu.Unlock()
	if done {
		return nil
	}

	if _, err := r.profile.UpdateProfile(ctx, models.UpdateProfilePayload{PushToken: token}); err != nil {
		return fmt.Errorf("failed to save push token: %w", err)
	}

	r.mu.Lock()
	r.submitted[user.ID] = token
	r.mu.Unlock()
	r.logger.Info("push token registered", "user_id", user.ID)
	return nil
}
