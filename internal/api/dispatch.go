package api

import (
	"context"
	"net/http"

	"github.com/chrisdamba/chowrider/internal/models"
)

// Dashboard fetches stats and order requests for the dispatcher
func (c *Client) Dashboard(ctx context.Context) (*models.DashboardData, error) {
	var resp envelope[models.DashboardData]
	if err := c.doRequest(ctx, http.MethodGet, "/dispatch/dashboard", nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// DispatcherAcceptOrder accepts an order on behalf of the dispatcher's rider pool
func (c *Client) DispatcherAcceptOrder(ctx context.Context, orderID string, opts ...RequestOption) (*models.AcceptOrderResponse, error) {
	var resp models.AcceptOrderResponse
	err := c.doRequest(ctx, http.MethodPost, "/dispatch/accept", models.AcceptOrderPayload{OrderID: orderID}, &resp, opts...)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// DispatcherWallet fetches the logistics company wallet
func (c *Client) DispatcherWallet(ctx context.Context) (*models.WalletData, error) {
	var resp envelope[models.WalletData]
	if err := c.doRequest(ctx, http.MethodGet, "/dispatch/wallet", nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// RequestWithdrawal requests a payout from the logistics company wallet
func (c *Client) RequestWithdrawal(ctx context.Context, req models.WithdrawalRequest, opts ...RequestOption) (*models.PayoutResponse, error) {
	var resp models.PayoutResponse
	if err := c.doRequest(ctx, http.MethodPost, "/dispatch/wallet/withdraw", req, &resp, opts...); err != nil {
		return nil, err
	}
	return &resp, nil
}
