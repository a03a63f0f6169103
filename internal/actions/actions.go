// Package actions performs the state-changing requests of the rider and
// dispatcher apps and reconciles the query cache afterwards.
package actions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/chrisdamba/chowrider/internal/api"
	"github.com/chrisdamba/chowrider/internal/cache"
	"github.com/chrisdamba/chowrider/internal/eventsync"
	"github.com/chrisdamba/chowrider/internal/models"
	"github.com/chrisdamba/chowrider/internal/validate"
	"github.com/google/uuid"
)

var (
	// ErrPending is returned when the same action on the same order is
	// already in flight.
	ErrPending = errors.New("actions: already in progress")
	// ErrConflict means another actor claimed the order first.
	ErrConflict = errors.New("actions: order already taken")
)

// idempotencyNamespace scopes the deterministic keys of order actions.
var idempotencyNamespace = uuid.MustParse("6f1c2b9e-3d7a-4c55-9a0e-8b4f5d2e7c31")

// Error is a failed action with the message to show the user.
type Error struct {
	Action  string
	Message string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s failed: %s", e.Action, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// DispatchAPI is the dispatcher side of the backend.
type DispatchAPI interface {
	DispatcherAcceptOrder(ctx context.Context, orderID string, opts ...api.RequestOption) (*models.AcceptOrderResponse, error)
	RequestWithdrawal(ctx context.Context, req models.WithdrawalRequest, opts ...api.RequestOption) (*models.PayoutResponse, error)
}

type Mutator struct {
	rider    RiderAPI
	dispatch DispatchAPI
	queries  *RiderQueries
	cache    *cache.Cache
	notifier Notifier
	limits   models.PayoutConfig
	logger   *slog.Logger

	mu      sync.Mutex
	pending map[string]bool
	// retryKeys keeps the idempotency key of an accept or money movement
	// that has not settled yet, so a resubmit carries the same key.
	retryKeys map[string]string
}

func New(rider RiderAPI, dispatch DispatchAPI, queries *RiderQueries, c *cache.Cache, notifier Notifier, limits models.PayoutConfig, logger *slog.Logger) *Mutator {
	if notifier == nil {
		notifier = NotifierFunc(func(Notification) {})
	}
	return &Mutator{
		rider:     rider,
		dispatch:  dispatch,
		queries:   queries,
		cache:     c,
		notifier:  notifier,
		limits:    limits,
		logger:    logger,
		pending:   make(map[string]bool),
		retryKeys: make(map[string]string),
	}
}

func (m *Mutator) begin(slot string) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending[slot] {
		return nil, ErrPending
	}
	m.pending[slot] = true
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.pending, slot)
	}, nil
}

// orderKey is stable for one action on one order, so any resubmit of it is
// recognisable by the backend.
func orderKey(parts ...string) string {
	name := ""
	for _, p := range parts {
		name += p + "\x00"
	}
	return uuid.NewSHA1(idempotencyNamespace, []byte(name)).String()
}

func (m *Mutator) retryKey(slot string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	key, ok := m.retryKeys[slot]
	if !ok {
		key = uuid.NewString()
		m.retryKeys[slot] = key
	}
	return key
}

func (m *Mutator) settle(slot string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.retryKeys, slot)
}

func (m *Mutator) fail(action, title, fallback string, err error) error {
	msg := api.UserMessage(err, fallback)
	m.logger.Warn("action failed", "action", action, "error", err)
	m.notifier.Notify(Notification{Kind: KindError, Title: title, Body: msg})
	return &Error{Action: action, Message: msg, Err: err}
}

// AcceptRequest is the dispatcher accepting an incoming order.
func (m *Mutator) AcceptRequest(ctx context.Context, orderID string) (*models.AcceptOrderResponse, error) {
	slot := "dispatch-accept:" + orderID
	release, err := m.begin(slot)
	if err != nil {
		return nil, err
	}
	defer release()

	resp, err := m.dispatch.DispatcherAcceptOrder(ctx, orderID, api.WithIdempotencyKey(m.retryKey(slot)))
	m.cache.Invalidate(ctx, cache.KeyDispatcherDashboard)
	if err != nil {
		if api.IsConflict(err) {
			m.settle(slot)
			err = fmt.Errorf("%w: %w", ErrConflict, err)
		}
		return nil, m.fail("accept", "Error", "Failed to accept order", err)
	}
	m.settle(slot)
	m.notifier.Notify(Notification{Kind: KindSuccess, Title: "Success", Body: "Order Accepted! You can now share the link."})
	return resp, nil
}

// Accept is the rider claiming an available order. On a conflict the order
// is dropped from the available list for good. The idempotency key lives
// until the accept settles, so a retry after a transport failure resends it
// while a later accept of the same order gets a new one.
func (m *Mutator) Accept(ctx context.Context, orderID string) (*models.RiderOrder, error) {
	slot := "accept:" + orderID
	release, err := m.begin(slot)
	if err != nil {
		return nil, err
	}
	defer release()

	order, err := m.rider.AcceptOrder(ctx, orderID, api.WithIdempotencyKey(m.retryKey(slot)))
	if err != nil {
		if api.IsConflict(err) {
			m.settle(slot)
			m.dropAvailable(ctx, orderID)
			m.logger.Info("order already taken", "order_id", orderID)
			wrapped := fmt.Errorf("%w: %w", ErrConflict, err)
			m.notifier.Notify(Notification{Kind: KindError, Title: "Too Late", Body: "This order has already been taken."})
			return nil, &Error{Action: "accept", Message: "This order has already been taken.", Err: wrapped}
		}
		return nil, m.fail("accept", "Error", "Failed to accept order", err)
	}
	m.settle(slot)

	m.cache.Patch(cache.KeyAvailableOrders, eventsync.RemoveOrder(orderID))
	if order != nil {
		m.cache.Set(cache.KeyActiveOrder, order)
	}
	m.cache.Invalidate(ctx, cache.KeyAvailableOrders, cache.KeyActiveOrder)
	m.notifier.Notify(Notification{Kind: KindSuccess, Title: "Order Accepted!", Body: "You are now assigned."})
	return order, nil
}

func (m *Mutator) dropAvailable(ctx context.Context, orderID string) {
	if m.queries != nil {
		m.queries.exclude(orderID)
	}
	m.cache.Patch(cache.KeyAvailableOrders, eventsync.RemoveOrder(orderID))
	m.cache.Invalidate(ctx, cache.KeyAvailableOrders)
}

func (m *Mutator) Reject(ctx context.Context, orderID, reason string) error {
	slot := "reject:" + orderID
	release, err := m.begin(slot)
	if err != nil {
		return err
	}
	defer release()

	if _, err := m.rider.RejectOrder(ctx, orderID, reason, api.WithIdempotencyKey(m.retryKey(slot))); err != nil {
		return m.fail("reject", "Error", "Failed to reject order", err)
	}
	m.settle(slot)
	// An unsettled accept key must not be replayed by a later accept.
	m.settle("accept:" + orderID)
	m.dropAvailable(ctx, orderID)
	m.cache.Invalidate(ctx, cache.KeyActiveOrder)
	return nil
}

func (m *Mutator) ConfirmPickup(ctx context.Context, orderID string) (*models.RiderOrder, error) {
	release, err := m.begin("pickup:" + orderID)
	if err != nil {
		return nil, err
	}
	defer release()

	order, err := m.rider.ConfirmPickup(ctx, orderID, api.WithIdempotencyKey(orderKey("pickup", orderID)))
	if err != nil {
		return nil, m.fail("pickup", "Error", "Failed to confirm pickup", err)
	}
	m.cache.Invalidate(ctx, cache.KeyActiveOrder)
	m.notifier.Notify(Notification{Kind: KindSuccess, Title: "Pickup Confirmed", Body: "Start heading to the customer."})
	return order, nil
}

// ConfirmDelivery submits the customer's code. Repeating it with the same
// code sends the same idempotency key.
func (m *Mutator) ConfirmDelivery(ctx context.Context, orderID, code string) (*models.RiderOrder, error) {
	if code == "" {
		return nil, validate.FieldErrors{"code": "Invalid Code"}
	}
	release, err := m.begin("deliver:" + orderID)
	if err != nil {
		return nil, err
	}
	defer release()

	order, err := m.rider.ConfirmDelivery(ctx, orderID, code, api.WithIdempotencyKey(orderKey("deliver", orderID, code)))
	if err != nil {
		return nil, m.fail("deliver", "Failed", "Invalid Code", err)
	}
	m.cache.Invalidate(ctx, cache.KeyActiveOrder, cache.KeyEarnings)
	m.notifier.Notify(Notification{Kind: KindSuccess, Title: "Delivery Complete!", Body: "Earnings credited to wallet."})
	return order, nil
}

// RequestPayout moves rider earnings to a bank account. The form is checked
// against the cached balance before anything is sent.
func (m *Mutator) RequestPayout(ctx context.Context, req models.PayoutRequest) (*models.PayoutResponse, error) {
	available, known := m.cachedEarnings()
	if !known {
		if err := validate.Payout(req, math.Inf(1), m.limits.MinAmount); err != nil {
			return nil, err
		}
		snap, err := m.cache.Ensure(ctx, cache.KeyEarnings)
		if err != nil {
			return nil, m.fail("payout", "Payout failed", "Payout failed. Please try again.", err)
		}
		e, _ := cache.Value[*models.Earnings](snap)
		if e != nil {
			available = e.AvailableBalance
		}
	}
	if err := validate.Payout(req, available, m.limits.MinAmount); err != nil {
		return nil, err
	}

	const slot = "payout"
	release, err := m.begin(slot)
	if err != nil {
		return nil, err
	}
	defer release()

	resp, err := m.rider.RequestPayout(ctx, req, api.WithIdempotencyKey(m.retryKey(slot)))
	if err != nil {
		return nil, m.fail("payout", "Payout failed", "Payout failed. Please try again.", err)
	}
	m.settle(slot)
	m.cache.Invalidate(ctx, cache.KeyEarnings)
	m.notifier.Notify(Notification{Kind: KindSuccess, Title: "Payout processed successfully"})
	return resp, nil
}

func (m *Mutator) cachedEarnings() (float64, bool) {
	e, ok := cache.Value[*models.Earnings](m.cache.Get(cache.KeyEarnings))
	if !ok || e == nil {
		return 0, false
	}
	return e.AvailableBalance, true
}

// RequestWithdrawal moves dispatcher wallet funds to a bank account.
func (m *Mutator) RequestWithdrawal(ctx context.Context, req models.WithdrawalRequest) (*models.PayoutResponse, error) {
	w, ok := cache.Value[*models.WalletData](m.cache.Get(cache.KeyDispatcherWallet))
	if !ok || w == nil {
		if err := validate.Withdrawal(req, math.Inf(1), m.limits.WithdrawalMinAmount); err != nil {
			return nil, err
		}
		snap, err := m.cache.Ensure(ctx, cache.KeyDispatcherWallet)
		if err != nil {
			return nil, m.fail("withdraw", "Error", "Withdrawal failed. Please try again.", err)
		}
		w, _ = cache.Value[*models.WalletData](snap)
	}
	balance := 0.0
	if w != nil {
		balance = w.Balance
	}
	if balance <= 0 {
		return nil, validate.FieldErrors{"amount": "You have no available funds to withdraw."}
	}
	if err := validate.Withdrawal(req, balance, m.limits.WithdrawalMinAmount); err != nil {
		return nil, err
	}

	const slot = "withdraw"
	release, err := m.begin(slot)
	if err != nil {
		return nil, err
	}
	defer release()

	resp, err := m.dispatch.RequestWithdrawal(ctx, req, api.WithIdempotencyKey(m.retryKey(slot)))
	if err != nil {
		return nil, m.fail("withdraw", "Error", "Withdrawal failed. Please try again.", err)
	}
	m.settle(slot)
	m.cache.Invalidate(ctx, cache.KeyDispatcherWallet)
	m.notifier.Notify(Notification{Kind: KindSuccess, Title: "Success", Body: "Withdrawal request submitted successfully."})
	return resp, nil
}

// SetOnline toggles whether the rider receives new orders.
func (m *Mutator) SetOnline(ctx context.Context, online bool) (*models.StatusResponse, error) {
	release, err := m.begin("status")
	if err != nil {
		return nil, err
	}
	defer release()

	resp, err := m.rider.UpdateStatus(ctx, online, api.WithIdempotencyKey(uuid.NewString()))
	if err != nil {
		return nil, m.fail("status", "Failed to update status", "Failed to update status", err)
	}
	m.cache.Invalidate(ctx, cache.KeyCurrentUser)
	if resp.IsOnline {
		m.notifier.Notify(Notification{Kind: KindSuccess, Title: "You are Online 🟢", Body: "Ready to receive orders"})
	} else {
		m.notifier.Notify(Notification{Kind: KindSuccess, Title: "You are Offline 🔴", Body: "You won't receive orders"})
	}
	return resp, nil
}
