// Package session owns the authenticated-actor state. Other components read
// it through State and react to changes through Subscribe; only the
// Controller writes it.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chrisdamba/chowrider/internal/api"
	"github.com/chrisdamba/chowrider/internal/cache"
	"github.com/chrisdamba/chowrider/internal/models"
	"github.com/chrisdamba/chowrider/internal/storage"
	"github.com/chrisdamba/chowrider/internal/validate"
)

var (
	ErrNotAuthenticated = errors.New("session: not authenticated")
	ErrNoPendingOTP     = errors.New("session: no OTP verification in progress")
)

type Status string

const (
	StatusUnknown       Status = "unknown"
	StatusLoggedOut     Status = "logged_out"
	StatusOTPRequired   Status = "otp_required"
	StatusAuthenticated Status = "authenticated"
)

// State is a read-only copy of the session.
type State struct {
	Status Status
	User   *models.User
	// Email and TempToken are only set while an OTP is pending.
	Email     string
	TempToken string
	ExpiresAt time.Time
}

func (s State) Authenticated() bool {
	return s.Status == StatusAuthenticated && s.User != nil
}

func (s State) clone() State {
	if s.User != nil {
		u := *s.User
		s.User = &u
	}
	return s
}

// AuthAPI is the part of the backend the session needs.
type AuthAPI interface {
	Login(ctx context.Context, data models.LoginData) (*models.AuthResponse, error)
	Register(ctx context.Context, data models.RegisterData) (*models.AuthResponse, error)
	VerifyOTP(ctx context.Context, tempToken, code string) (*models.VerifyOtpResponse, error)
	ForgotPassword(ctx context.Context, email string) (*models.MessageResponse, error)
	VerifyResetOTP(ctx context.Context, email, code string) (*models.MessageResponse, error)
	ResetPassword(ctx context.Context, payload models.ResetPasswordPayload) (*models.MessageResponse, error)
	CurrentUser(ctx context.Context) (*models.User, error)
}

type Controller struct {
	api    AuthAPI
	store  storage.Store
	cache  *cache.Cache
	logger *slog.Logger
	now    func() time.Time

	// opMu serialises operations that move the session between states.
	opMu sync.Mutex

	mu      sync.RWMutex
	state   State
	subs    map[int]chan State
	nextSub int
}

func NewController(authAPI AuthAPI, store storage.Store, c *cache.Cache, logger *slog.Logger) *Controller {
	ctl := &Controller{
		api:    authAPI,
		store:  store,
		cache:  c,
		logger: logger,
		now:    time.Now,
		state:  State{Status: StatusUnknown},
		subs:   make(map[int]chan State),
	}
	c.Register(cache.KeyCurrentUser, func(ctx context.Context) (interface{}, error) {
		u, err := authAPI.CurrentUser(ctx)
		if err != nil {
			return nil, err
		}
		if u == nil {
			return nil, errors.New("session: profile response without user")
		}
		return u, nil
	}, cache.Options{StaleTime: 5 * time.Minute})
	return ctl
}

// Token returns the stored session token, or "" when logged out. A pending
// OTP temp token is never returned.
func (c *Controller) Token(ctx context.Context) (string, error) {
	return storage.GetOptional(ctx, c.store, models.KeyAuthToken)
}

func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.clone()
}

// Subscribe delivers the current state and every later change. Only the
// newest undelivered state is kept.
func (c *Controller) Subscribe() (<-chan State, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextSub
	c.nextSub++
	ch := make(chan State, 1)
	c.subs[id] = ch
	ch <- c.state.clone()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if sub, ok := c.subs[id]; ok {
				delete(c.subs, id)
				close(sub)
			}
		})
	}
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = s
	for _, ch := range c.subs {
		select {
		case <-ch:
		default:
		}
		ch <- s.clone()
	}
}

// Restore resumes a session from the stored token.
func (c *Controller) Restore(ctx context.Context) (State, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	token, err := c.Token(ctx)
	if err != nil {
		return c.State(), fmt.Errorf("failed to read stored token: %w", err)
	}
	if token == "" {
		c.setState(State{Status: StatusLoggedOut})
		return c.State(), nil
	}

	expiresAt := c.expiry(token)
	if !expiresAt.IsZero() && !expiresAt.After(c.now()) {
		c.logger.Info("stored token expired", "expired_at", expiresAt)
		err := c.clearLocked(ctx)
		return c.State(), err
	}

	snap, err := c.cache.Fetch(ctx, cache.KeyCurrentUser)
	if err != nil {
		if api.IsUnauthorized(err) {
			c.logger.Info("stored token rejected, clearing session")
			err := c.clearLocked(ctx)
			return c.State(), err
		}
		return c.State(), fmt.Errorf("failed to restore session: %w", err)
	}
	user, _ := cache.Value[*models.User](snap)
	c.setState(State{Status: StatusAuthenticated, User: user, ExpiresAt: expiresAt})
	return c.State(), nil
}

// Login validates the credentials and signs in. A response that requires an
// OTP leaves the session in StatusOTPRequired; call VerifyOTP next.
func (c *Controller) Login(ctx context.Context, email, password string) (State, error) {
	creds := models.LoginData{Email: email, Password: password}
	if err := validate.Login(creds); err != nil {
		return c.State(), err
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()

	resp, err := c.api.Login(ctx, creds)
	if err != nil {
		return c.State(), err
	}
	return c.handleAuthResponse(ctx, email, resp)
}

// Register creates an account. Depending on the backend the new account is
// signed in, sent to OTP verification, or only acknowledged.
func (c *Controller) Register(ctx context.Context, data models.RegisterData) (State, error) {
	if err := validate.Signup(data); err != nil {
		return c.State(), err
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()

	resp, err := c.api.Register(ctx, data)
	if err != nil {
		return c.State(), err
	}
	if resp.Token == "" && !resp.RequireOTP {
		c.logger.Info("account created", "email", data.Email, "message", resp.Message)
		return c.State(), nil
	}
	return c.handleAuthResponse(ctx, data.Email, resp)
}

func (c *Controller) handleAuthResponse(ctx context.Context, email string, resp *models.AuthResponse) (State, error) {
	if resp.RequireOTP {
		if resp.Token == "" {
			return c.State(), api.ErrNoTokenOrOTP
		}
		c.setState(State{Status: StatusOTPRequired, Email: email, TempToken: resp.Token})
		c.logger.Info("otp required", "email", email)
		return c.State(), nil
	}
	if resp.Token == "" {
		return c.State(), api.ErrNoTokenOrOTP
	}
	return c.authenticateLocked(ctx, resp.Token, resp.User)
}

// VerifyOTP completes a login that required an OTP.
func (c *Controller) VerifyOTP(ctx context.Context, code string) (State, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	current := c.State()
	if current.Status != StatusOTPRequired {
		return current, ErrNoPendingOTP
	}
	if err := validate.OTP(current.TempToken, code); err != nil {
		return current, err
	}

	resp, err := c.api.VerifyOTP(ctx, current.TempToken, code)
	if err != nil {
		return c.State(), err
	}
	if resp.Token == "" {
		return c.State(), api.ErrNoTokenOrOTP
	}
	return c.authenticateLocked(ctx, resp.Token, resp.User)
}

// AwaitOTP resumes OTP verification with a temp token from an earlier
// Login, for callers that do not keep the Controller between the two steps.
func (c *Controller) AwaitOTP(email, tempToken string) {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	c.setState(State{Status: StatusOTPRequired, Email: email, TempToken: tempToken})
}

func (c *Controller) authenticateLocked(ctx context.Context, token string, user *models.User) (State, error) {
	if err := c.store.Set(ctx, models.KeyAuthToken, token); err != nil {
		return c.State(), fmt.Errorf("failed to store token: %w", err)
	}

	prev := c.State().User
	if cached, ok := cache.Value[*models.User](c.cache.Get(cache.KeyCurrentUser)); ok && cached != nil {
		prev = cached
	}

	if user == nil {
		snap, err := c.cache.Fetch(ctx, cache.KeyCurrentUser)
		if err != nil {
			return c.State(), c.dropToken(ctx, fmt.Errorf("failed to load profile: %w", err))
		}
		user, _ = cache.Value[*models.User](snap)
		if user == nil {
			return c.State(), c.dropToken(ctx, errors.New("session: profile unavailable"))
		}
	}

	// Queries cached for another actor must not leak into this session.
	if prev != nil && prev.ID != user.ID {
		c.logger.Info("actor changed, dropping cached queries", "previous_user_id", prev.ID, "user_id", user.ID)
		c.cache.Clear()
	}
	c.cache.Set(cache.KeyCurrentUser, user)

	c.setState(State{Status: StatusAuthenticated, User: user, ExpiresAt: c.expiry(token)})
	c.logger.Info("signed in", "user_id", user.ID, "role", user.Role)
	return c.State(), nil
}

// dropToken removes a token whose sign-in could not complete and returns
// cause, joined with any failure to remove it.
func (c *Controller) dropToken(ctx context.Context, cause error) error {
	if err := c.store.Remove(ctx, models.KeyAuthToken); err != nil {
		c.logger.Error("failed to remove token after sign-in failure", "error", err)
		return errors.Join(cause, fmt.Errorf("failed to remove token: %w", err))
	}
	return cause
}

// Refresh reloads the profile of the signed-in actor.
func (c *Controller) Refresh(ctx context.Context) (State, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	current := c.State()
	if !current.Authenticated() {
		return current, ErrNotAuthenticated
	}
	snap, err := c.cache.Fetch(ctx, cache.KeyCurrentUser)
	if err != nil {
		if api.IsUnauthorized(err) {
			clearErr := c.clearLocked(ctx)
			return c.State(), errors.Join(ErrNotAuthenticated, clearErr)
		}
		return current, err
	}
	user, _ := cache.Value[*models.User](snap)
	current.User = user
	c.setState(current)
	return c.State(), nil
}

// Logout forgets the token and every cached query.
func (c *Controller) Logout(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	return c.clearLocked(ctx)
}

func (c *Controller) clearLocked(ctx context.Context) error {
	err := c.store.Remove(ctx, models.KeyAuthToken)
	c.cache.Clear()
	c.setState(State{Status: StatusLoggedOut})
	if err != nil {
		return fmt.Errorf("failed to remove token: %w", err)
	}
	return nil
}

func (c *Controller) ForgotPassword(ctx context.Context, email string) (*models.MessageResponse, error) {
	if err := validate.Email(email); err != nil {
		return nil, err
	}
	return c.api.ForgotPassword(ctx, email)
}

func (c *Controller) VerifyResetOTP(ctx context.Context, email, code string) (*models.MessageResponse, error) {
	if err := validate.ResetOTP(email, code); err != nil {
		return nil, err
	}
	return c.api.VerifyResetOTP(ctx, email, code)
}

func (c *Controller) ResetPassword(ctx context.Context, payload models.ResetPasswordPayload) (*models.MessageResponse, error) {
	if err := validate.ResetPassword(payload); err != nil {
		return nil, err
	}
	return c.api.ResetPassword(ctx, payload)
}

func (c *Controller) OnboardingSeen(ctx context.Context) (bool, error) {
	v, err := storage.GetOptional(ctx, c.store, models.KeyOnboardingSeen)
	if err != nil {
		return false, err
	}
	return v == "true", nil
}

func (c *Controller) MarkOnboardingSeen(ctx context.Context) error {
	return c.store.Set(ctx, models.KeyOnboardingSeen, "true")
}

func (c *Controller) expiry(token string) time.Time {
	claims, err := ParseClaims(token)
	if err != nil {
		c.logger.Debug("token is not a readable jwt", "error", err)
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}
