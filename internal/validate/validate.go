// Package validate holds the form checks that run before any request leaves
// the client.
package validate

import (
	"math"
	"net/mail"
	"regexp"
	"sort"
	"strings"

	"github.com/chrisdamba/chowrider/internal/models"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// FieldErrors maps a form field to the message shown next to it.
type FieldErrors map[string]string

func (fe FieldErrors) Error() string {
	fields := make([]string, 0, len(fe))
	for f := range fe {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+fe[f])
	}
	return strings.Join(parts, "; ")
}

// err returns nil for an empty set so callers can return it directly.
func (fe FieldErrors) err() error {
	if len(fe) == 0 {
		return nil
	}
	return fe
}

var (
	phonePattern         = regexp.MustCompile(`^[0-9]{10,11}$`)
	accountNumberPattern = regexp.MustCompile(`^[0-9]{10}$`)
	otpPattern           = regexp.MustCompile(`^[0-9]{6}$`)
	printer              = message.NewPrinter(language.English)
)

// Naira formats an amount the way the wallet screens show it: grouped
// thousands and kobo, e.g. ₦2,500.00.
func Naira(amount float64) string {
	return printer.Sprintf("₦%.2f", amount)
}

// finite reports whether amount is a real number. NaN compares false against
// every bound, so range checks alone let it through.
func finite(amount float64) bool {
	return !math.IsNaN(amount) && !math.IsInf(amount, 0)
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

func Login(d models.LoginData) error {
	fe := FieldErrors{}
	if !validEmail(d.Email) {
		fe["email"] = "Invalid email address"
	}
	if d.Password == "" {
		fe["password"] = "Password is required"
	}
	return fe.err()
}

func Signup(d models.RegisterData) error {
	fe := FieldErrors{}
	if len([]rune(strings.TrimSpace(d.Name))) < 2 {
		fe["name"] = "Company Name must be at least 2 characters"
	}
	if !validEmail(d.Email) {
		fe["email"] = "Invalid email address"
	}
	if !phonePattern.MatchString(d.Phone) {
		fe["phone"] = "Phone number must be 10 or 11 digits"
	}
	if len([]rune(strings.TrimSpace(d.Address))) < 5 {
		fe["address"] = "Address is too short"
	}
	if len(d.Password) < 6 {
		fe["password"] = "Password must be at least 6 characters"
	}
	return fe.err()
}

func OTP(tempToken, code string) error {
	fe := FieldErrors{}
	if !otpPattern.MatchString(code) {
		fe["code"] = "Please enter a valid 6-digit code"
	}
	if tempToken == "" {
		fe["token"] = "Session missing. Please login again."
	}
	return fe.err()
}

// ResetOTP checks the code step of the password reset flow.
func ResetOTP(email, code string) error {
	fe := FieldErrors{}
	if !validEmail(email) {
		fe["email"] = "Invalid email address"
	}
	if !otpPattern.MatchString(code) {
		fe["code"] = "Invalid Code"
	}
	return fe.err()
}

func Email(email string) error {
	if email == "" {
		return FieldErrors{"email": "Please enter your email"}
	}
	if !validEmail(email) {
		return FieldErrors{"email": "Invalid email address"}
	}
	return nil
}

func ResetPassword(p models.ResetPasswordPayload) error {
	fe := FieldErrors{}
	if !validEmail(p.Email) {
		fe["email"] = "Invalid email address"
	}
	if p.Code == "" && p.ResetToken == "" {
		fe["code"] = "Invalid Code"
	}
	if len(p.NewPassword) < 6 {
		fe["newPassword"] = "Password must be at least 6 characters"
	}
	return fe.err()
}

// Payout checks a rider payout against the available balance and the
// configured minimum.
func Payout(req models.PayoutRequest, available, minimum float64) error {
	if req.Amount == 0 || req.AccountNumber == "" || req.BankCode == "" {
		return FieldErrors{"form": "Please fill all fields."}
	}
	if !finite(req.Amount) || req.Amount < 0 {
		return FieldErrors{"amount": "Please enter a valid amount."}
	}
	if req.Amount > available {
		return FieldErrors{"amount": "Insufficient funds. You only have " + Naira(available)}
	}
	if req.Amount < minimum {
		return FieldErrors{"amount": "Minimum withdrawal is " + Naira(minimum) + "."}
	}
	return nil
}

// Withdrawal checks a dispatcher withdrawal.
func Withdrawal(req models.WithdrawalRequest, balance, minimum float64) error {
	fe := FieldErrors{}
	switch {
	case !finite(req.Amount) || req.Amount < 0:
		fe["amount"] = "Please enter a valid amount"
	case req.Amount < minimum:
		fe["amount"] = "Minimum withdrawal is " + Naira(minimum)
	case req.Amount > balance:
		fe["amount"] = "Insufficient funds"
	}
	if len([]rune(strings.TrimSpace(req.BankName))) < 3 {
		fe["bankName"] = "Please enter a valid bank name"
	}
	if !accountNumberPattern.MatchString(req.AccountNumber) {
		fe["accountNumber"] = "Account number must be exactly 10 digits"
	}
	if len([]rune(strings.TrimSpace(req.AccountName))) < 3 {
		fe["accountName"] = "Please enter the account holder's name"
	}
	return fe.err()
}
