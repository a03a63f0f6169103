package validate

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/chrisdamba/chowrider/internal/models"
)

func fieldErrors(t *testing.T, err error) FieldErrors {
	t.Helper()
	var fe FieldErrors
	if !errors.As(err, &fe) {
		t.Fatalf("expected FieldErrors, got %v", err)
	}
	return fe
}

func TestLogin(t *testing.T) {
	if err := Login(models.LoginData{Email: "rider@example.com", Password: "x"}); err != nil {
		t.Fatalf("valid login rejected: %v", err)
	}
	fe := fieldErrors(t, Login(models.LoginData{Email: "not-an-email"}))
	if fe["email"] != "Invalid email address" || fe["password"] != "Password is required" {
		t.Errorf("unexpected errors %v", fe)
	}
	fe = fieldErrors(t, Login(models.LoginData{Email: "Bob <bob@example.com>", Password: "x"}))
	if _, ok := fe["email"]; !ok {
		t.Error("display-name address should be rejected")
	}
}

func TestSignup(t *testing.T) {
	valid := models.RegisterData{
		Name:     "Swift Logistics",
		Email:    "ops@swift.ng",
		Phone:    "08012345678",
		Address:  "12 Allen Avenue, Ikeja",
		Password: "secret1",
	}
	if err := Signup(valid); err != nil {
		t.Fatalf("valid signup rejected: %v", err)
	}

	tests := []struct {
		field  string
		mutate func(*models.RegisterData)
	}{
		{"name", func(d *models.RegisterData) { d.Name = "A" }},
		{"email", func(d *models.RegisterData) { d.Email = "ops@" }},
		{"phone", func(d *models.RegisterData) { d.Phone = "123456789" }},
		{"phone", func(d *models.RegisterData) { d.Phone = "080123456789" }},
		{"phone", func(d *models.RegisterData) { d.Phone = "0801234567a" }},
		{"address", func(d *models.RegisterData) { d.Address = "Ikj" }},
		{"password", func(d *models.RegisterData) { d.Password = "12345" }},
	}
	for _, tt := range tests {
		d := valid
		tt.mutate(&d)
		fe := fieldErrors(t, Signup(d))
		if len(fe) != 1 {
			t.Errorf("%s: expected one error, got %v", tt.field, fe)
		}
		if _, ok := fe[tt.field]; !ok {
			t.Errorf("%s: missing error, got %v", tt.field, fe)
		}
	}
}

func TestOTP(t *testing.T) {
	if err := OTP("temp", "123456"); err != nil {
		t.Fatal(err)
	}
	for _, code := range []string{"", "12345", "1234567", "12a456"} {
		if _, ok := fieldErrors(t, OTP("temp", code))["code"]; !ok {
			t.Errorf("code %q accepted", code)
		}
	}
	if _, ok := fieldErrors(t, OTP("", "123456"))["token"]; !ok {
		t.Error("missing temp token accepted")
	}
}

func TestPayoutBelowMinimum(t *testing.T) {
	req := models.PayoutRequest{Amount: 50, BankCode: "058", AccountNumber: "0123456789"}
	fe := fieldErrors(t, Payout(req, 5000, 100))
	if fe["amount"] != "Minimum withdrawal is ₦100.00." {
		t.Errorf("amount error = %q", fe["amount"])
	}
}

func TestNaira(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "₦0.00"},
		{2500, "₦2,500.00"},
		{2500.5, "₦2,500.50"},
		{1234567.891, "₦1,234,567.89"},
	}
	for _, tt := range tests {
		if got := Naira(tt.in); got != tt.want {
			t.Errorf("Naira(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPayout(t *testing.T) {
	ok := models.PayoutRequest{Amount: 500, BankCode: "058", AccountNumber: "0123456789"}
	if err := Payout(ok, 500, 100); err != nil {
		t.Fatalf("exact balance rejected: %v", err)
	}

	fe := fieldErrors(t, Payout(models.PayoutRequest{Amount: 500}, 1000, 100))
	if fe["form"] != "Please fill all fields." {
		t.Errorf("got %v", fe)
	}

	fe = fieldErrors(t, Payout(models.PayoutRequest{Amount: 2000, BankCode: "058", AccountNumber: "1"}, 1000, 100))
	if fe["amount"] != "Insufficient funds. You only have ₦1,000.00" {
		t.Errorf("got %v", fe)
	}

	for _, amount := range []float64{math.NaN(), math.Inf(1), math.Inf(-1), -50} {
		req := models.PayoutRequest{Amount: amount, BankCode: "058", AccountNumber: "0123456789"}
		fe := fieldErrors(t, Payout(req, 1000, 100))
		if _, ok := fe["amount"]; !ok {
			t.Errorf("amount %v: got %v", amount, fe)
		}
	}
}

func TestWithdrawal(t *testing.T) {
	valid := models.WithdrawalRequest{Amount: 1500, BankName: "GTBank", AccountNumber: "0123456789", AccountName: "Swift Logistics"}
	if err := Withdrawal(valid, 2000, 1000); err != nil {
		t.Fatalf("valid withdrawal rejected: %v", err)
	}

	low := valid
	low.Amount = 999
	if !strings.HasPrefix(fieldErrors(t, Withdrawal(low, 2000, 1000))["amount"], "Minimum withdrawal") {
		t.Error("below minimum accepted")
	}

	high := valid
	high.Amount = 2500
	if fieldErrors(t, Withdrawal(high, 2000, 1000))["amount"] != "Insufficient funds" {
		t.Error("above balance accepted")
	}

	for _, amount := range []float64{math.NaN(), math.Inf(1)} {
		req := valid
		req.Amount = amount
		if _, ok := fieldErrors(t, Withdrawal(req, 2000, 1000))["amount"]; !ok {
			t.Errorf("amount %v accepted", amount)
		}
	}

	bad := models.WithdrawalRequest{Amount: 1500, BankName: "GT", AccountNumber: "12345", AccountName: "Jo"}
	fe := fieldErrors(t, Withdrawal(bad, 2000, 1000))
	for _, f := range []string{"bankName", "accountNumber", "accountName"} {
		if _, ok := fe[f]; !ok {
			t.Errorf("missing %s error", f)
		}
	}
}

func TestFieldErrorsMessageIsSorted(t *testing.T) {
	fe := FieldErrors{"phone": "bad phone", "email": "bad email"}
	if got := fe.Error(); got != "email: bad email; phone: bad phone" {
		t.Errorf("Error() = %q", got)
	}
}
