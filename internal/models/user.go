package models

import "time"

// User is the authenticated actor as returned by /auth/me.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone,omitempty"`
	Address      string    `json:"address,omitempty"`
	Role         string    `json:"role"`
	IsVerified   bool      `json:"isVerified"`
	IsOnline     bool      `json:"isOnline"`
	RestaurantID string    `json:"restaurantId,omitempty"`
	PushToken    string    `json:"pushToken,omitempty"`
	CreatedAt    time.Time `json:"createdAt,omitempty"`
}

func (u *User) IsDispatcher() bool { return u != nil && u.Role == RoleDispatcher }

func (u *User) IsRider() bool { return u != nil && u.Role == RoleRider }

type LoginData struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	ClientType string `json:"clientType,omitempty"`
}

type RegisterData struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

// AuthResponse is returned by login and register. Either Token or RequireOTP
// is set; when RequireOTP is true Token is a temporary token for /auth/verify-otp.
type AuthResponse struct {
	Token      string `json:"token,omitempty"`
	User       *User  `json:"user,omitempty"`
	RequireOTP bool   `json:"requireOtp,omitempty"`
	Message    string `json:"message,omitempty"`
}

type VerifyOtpPayload struct {
	Token      string `json:"token"`
	Code       string `json:"code"`
	ClientType string `json:"clientType,omitempty"`
}

type VerifyOtpResponse struct {
	Token   string `json:"token"`
	User    *User  `json:"user,omitempty"`
	Message string `json:"message,omitempty"`
}

type ForgotPasswordPayload struct {
	Email string `json:"email"`
}

type VerifyResetOtpPayload struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type ResetPasswordPayload struct {
	Email       string `json:"email"`
	Code        string `json:"code,omitempty"`
	ResetToken  string `json:"resetToken,omitempty"`
	NewPassword string `json:"newPassword"`
}

// MessageResponse covers the auth endpoints that only acknowledge.
type MessageResponse struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	ResetToken string `json:"resetToken,omitempty"`
}

type UpdateProfilePayload struct {
	Name      string `json:"name,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Address   string `json:"address,omitempty"`
	PushToken string `json:"pushToken,omitempty"`
}

type StatusPayload struct {
	IsOnline bool `json:"isOnline"`
}

type StatusResponse struct {
	IsOnline bool `json:"isOnline"`
}
