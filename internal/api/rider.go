package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/chrisdamba/chowrider/internal/models"
)

func orderPath(orderID, action string) string {
	return "/rider/orders/" + url.PathEscape(orderID) + "/" + action
}

// AvailableOrders fetches the pool of orders ready for pickup
func (c *Client) AvailableOrders(ctx context.Context) ([]models.RiderOrder, error) {
	var resp envelope[[]models.RiderOrder]
	if err := c.doRequest(ctx, http.MethodGet, "/rider/orders/available", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// ActiveOrder returns the rider's current order, or nil when there is none
func (c *Client) ActiveOrder(ctx context.Context) (*models.RiderOrder, error) {
	var resp envelope[*models.RiderOrder]
	if err := c.doRequest(ctx, http.MethodGet, "/rider/orders/active", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// AcceptOrder assigns an order to the current rider
func (c *Client) AcceptOrder(ctx context.Context, orderID string, opts ...RequestOption) (*models.RiderOrder, error) {
	var resp envelope[models.RiderOrder]
	if err := c.doRequest(ctx, http.MethodPatch, orderPath(orderID, "accept"), nil, &resp, opts...); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// RejectOrder unassigns an order and returns it to the pool
func (c *Client) RejectOrder(ctx context.Context, orderID, reason string, opts ...RequestOption) (*models.RiderOrder, error) {
	var resp envelope[models.RiderOrder]
	err := c.doRequest(ctx, http.MethodPatch, orderPath(orderID, "reject"), models.RejectOrderPayload{Reason: reason}, &resp, opts...)
	if err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// ConfirmPickup moves the order to OUT_FOR_DELIVERY
func (c *Client) ConfirmPickup(ctx context.Context, orderID string, opts ...RequestOption) (*models.RiderOrder, error) {
	var resp envelope[models.RiderOrder]
	if err := c.doRequest(ctx, http.MethodPatch, orderPath(orderID, "pickup"), nil, &resp, opts...); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// ConfirmDelivery moves the order to DELIVERED using the customer's code
func (c *Client) ConfirmDelivery(ctx context.Context, orderID, code string, opts ...RequestOption) (*models.RiderOrder, error) {
	var resp envelope[models.RiderOrder]
	err := c.doRequest(ctx, http.MethodPatch, orderPath(orderID, "deliver"), models.DeliverOrderPayload{Code: code}, &resp, opts...)
	if err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// Earnings fetches wallet balances and transaction history
func (c *Client) Earnings(ctx context.Context) (*models.Earnings, error) {
	var resp envelope[models.Earnings]
	if err := c.doRequest(ctx, http.MethodGet, "/rider/earnings", nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// RequestPayout withdraws from the rider wallet to a bank account
func (c *Client) RequestPayout(ctx context.Context, req models.PayoutRequest, opts ...RequestOption) (*models.PayoutResponse, error) {
	var resp models.PayoutResponse
	if err := c.doRequest(ctx, http.MethodPost, "/rider/payout", req, &resp, opts...); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Banks lists the banks a payout can target
func (c *Client) Banks(ctx context.Context) ([]models.Bank, error) {
	var resp envelope[[]models.Bank]
	if err := c.doRequest(ctx, http.MethodGet, "/payment/banks", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// History lists the rider's past orders
func (c *Client) History(ctx context.Context) ([]models.RiderOrder, error) {
	var resp envelope[[]models.RiderOrder]
	if err := c.doRequest(ctx, http.MethodGet, "/rider/history", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// UpdateStatus toggles the rider's online availability
func (c *Client) UpdateStatus(ctx context.Context, online bool, opts ...RequestOption) (*models.StatusResponse, error) {
	var resp envelope[models.StatusResponse]
	if err := c.doRequest(ctx, http.MethodPatch, "/rider/status", models.StatusPayload{IsOnline: online}, &resp, opts...); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}
