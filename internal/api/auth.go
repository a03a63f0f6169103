package api

import (
	"context"
	"net/http"

	"github.com/chrisdamba/chowrider/internal/models"
)

// Login posts credentials. The response always carries a token or an OTP
// requirement; anything else is ErrNoTokenOrOTP.
func (c *Client) Login(ctx context.Context, data models.LoginData) (*models.AuthResponse, error) {
	data.ClientType = models.ClientType

	var resp models.AuthResponse
	if err := c.doRequest(ctx, http.MethodPost, "/auth/login", data, &resp, withoutAuth()); err != nil {
		return nil, err
	}
	if resp.Token == "" && !resp.RequireOTP {
		return nil, ErrNoTokenOrOTP
	}
	return &resp, nil
}

// Register creates a new dispatcher or rider account
func (c *Client) Register(ctx context.Context, data models.RegisterData) (*models.AuthResponse, error) {
	var resp models.AuthResponse
	if err := c.doRequest(ctx, http.MethodPost, "/auth/register", data, &resp, withoutAuth()); err != nil {
		return nil, err
	}
	return &resp, nil
}

// VerifyOTP exchanges a temporary token and OTP code for a session token
func (c *Client) VerifyOTP(ctx context.Context, tempToken, code string) (*models.VerifyOtpResponse, error) {
	payload := models.VerifyOtpPayload{Token: tempToken, Code: code, ClientType: models.ClientType}

	var resp models.VerifyOtpResponse
	if err := c.doRequest(ctx, http.MethodPost, "/auth/verify-otp", payload, &resp, withoutAuth()); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ForgotPassword asks the backend to email a reset code
func (c *Client) ForgotPassword(ctx context.Context, email string) (*models.MessageResponse, error) {
	var resp models.MessageResponse
	err := c.doRequest(ctx, http.MethodPost, "/auth/forgot-password", models.ForgotPasswordPayload{Email: email}, &resp, withoutAuth())
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// VerifyResetOTP checks the emailed reset code
func (c *Client) VerifyResetOTP(ctx context.Context, email, code string) (*models.MessageResponse, error) {
	var resp models.MessageResponse
	err := c.doRequest(ctx, http.MethodPost, "/auth/verify-reset-otp", models.VerifyResetOtpPayload{Email: email, Code: code}, &resp, withoutAuth())
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// ResetPassword sets a new password after a verified reset code
func (c *Client) ResetPassword(ctx context.Context, payload models.ResetPasswordPayload) (*models.MessageResponse, error) {
	var resp models.MessageResponse
	if err := c.doRequest(ctx, http.MethodPost, "/auth/reset-password", payload, &resp, withoutAuth()); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CurrentUser fetches the profile of the authenticated actor
func (c *Client) CurrentUser(ctx context.Context) (*models.User, error) {
	var resp struct {
		User *models.User `json:"user"`
	}
	if err := c.doRequest(ctx, http.MethodGet, "/auth/me", nil, &resp); err != nil {
		return nil, err
	}
	return resp.User, nil
}

// UpdateProfile patches profile fields, including the push token
func (c *Client) UpdateProfile(ctx context.Context, payload models.UpdateProfilePayload) (*models.User, error) {
	var resp struct {
		User *models.User `json:"user"`
	}
	if err := c.doRequest(ctx, http.MethodPatch, "/auth/profile", payload, &resp); err != nil {
		return nil, err
	}
	return resp.User, nil
}
