package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/chrisdamba/chowrider/internal/logger"
	"github.com/chrisdamba/chowrider/internal/models"
)

func newTestClient(t *testing.T, handler http.Handler, token string) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg := models.APIConfig{
		BaseURL:      srv.URL,
		Timeout:      5 * time.Second,
		RetryMax:     2,
		RetryBackoff: time.Millisecond,
	}
	return NewClient(cfg, func(context.Context) (string, error) { return token, nil }, logger.Discard())
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func TestLoginReturnsToken(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body models.LoginData
		json.NewDecoder(r.Body).Decode(&body)
		if body.ClientType != "mobile" {
			t.Errorf("clientType = %q, want mobile", body.ClientType)
		}
		if r.Header.Get("Authorization") != "" {
			t.Error("login must not send a bearer token")
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"token": "session-token",
			"user":  map[string]interface{}{"id": "u1", "role": "RIDER"},
		})
	})
	c := newTestClient(t, mux, "stale")

	resp, err := c.Login(context.Background(), models.LoginData{Email: "a@b.co", Password: "pw"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if resp.Token != "session-token" || resp.RequireOTP {
		t.Errorf("unexpected response %+v", resp)
	}
	if resp.User == nil || resp.User.ID != "u1" {
		t.Errorf("user = %+v", resp.User)
	}
}

func TestLoginRequiresOTP(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"requireOtp": true, "token": "temp"})
	})
	c := newTestClient(t, mux, "")

	resp, err := c.Login(context.Background(), models.LoginData{Email: "a@b.co", Password: "pw"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if !resp.RequireOTP || resp.Token != "temp" {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestLoginWithoutTokenOrOTPFails(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"user": map[string]string{"id": "u1"}})
	})
	c := newTestClient(t, mux, "")

	_, err := c.Login(context.Background(), models.LoginData{Email: "a@b.co", Password: "pw"})
	if !errors.Is(err, ErrNoTokenOrOTP) {
		t.Fatalf("err = %v, want ErrNoTokenOrOTP", err)
	}
}

func TestErrorMessageFromBody(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("PATCH /rider/orders/o-1/accept", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusConflict, map[string]interface{}{"success": false, "message": "Order already taken"})
	})
	c := newTestClient(t, mux, "tok")

	_, err := c.AcceptOrder(context.Background(), "o-1")
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("err = %v, want *HTTPError", err)
	}
	if httpErr.StatusCode != http.StatusConflict {
		t.Errorf("status = %d", httpErr.StatusCode)
	}
	if got := UserMessage(err, "fallback"); got != "Order already taken" {
		t.Errorf("UserMessage = %q", got)
	}
	if !IsConflict(err) {
		t.Error("IsConflict should be true")
	}
}

func TestUserMessageFallback(t *testing.T) {
	if got := UserMessage(errors.New("dial tcp: refused"), "Failed to accept order"); got != "Failed to accept order" {
		t.Errorf("UserMessage = %q", got)
	}
	if got := UserMessage(&HTTPError{StatusCode: 500}, "fallback"); got != "fallback" {
		t.Errorf("UserMessage with empty message = %q", got)
	}
}

func TestIsConflictByMessage(t *testing.T) {
	err := &HTTPError{StatusCode: http.StatusBadRequest, Message: "This order has already been taken"}
	if !IsConflict(err) {
		t.Error("expected conflict from message text")
	}
	if IsConflict(&HTTPError{StatusCode: http.StatusBadRequest, Message: "Invalid code"}) {
		t.Error("unexpected conflict")
	}
}

func TestGetIsRetriedButMutationIsNot(t *testing.T) {
	var gets, patches int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /rider/earnings", func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&gets, 1) < 3 {
			writeJSON(w, http.StatusBadGateway, map[string]string{"message": "upstream"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"data":    map[string]interface{}{"availableBalance": 1500, "pendingBalance": 200},
		})
	})
	mux.HandleFunc("PATCH /rider/orders/o-1/pickup", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&patches, 1)
		writeJSON(w, http.StatusBadGateway, map[string]string{"message": "upstream"})
	})
	c := newTestClient(t, mux, "tok")

	earnings, err := c.Earnings(context.Background())
	if err != nil {
		t.Fatalf("Earnings: %v", err)
	}
	if earnings.AvailableBalance != 1500 || earnings.PendingBalance != 200 {
		t.Errorf("earnings = %+v", earnings)
	}
	if n := atomic.LoadInt32(&gets); n != 3 {
		t.Errorf("GET attempts = %d, want 3", n)
	}

	if _, err := c.ConfirmPickup(context.Background(), "o-1"); err == nil {
		t.Fatal("expected error")
	}
	if n := atomic.LoadInt32(&patches); n != 1 {
		t.Errorf("PATCH attempts = %d, want 1", n)
	}
}

func TestHeaders(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("PATCH /rider/orders/o-9/deliver", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.Header.Get("Idempotency-Key"); got != "key-1" {
			t.Errorf("Idempotency-Key = %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		var payload models.DeliverOrderPayload
		json.Unmarshal(body, &payload)
		if payload.Code != "123456" {
			t.Errorf("code = %q", payload.Code)
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"data":    map[string]interface{}{"id": "o-9", "status": models.OrderStatusDelivered},
		})
	})
	c := newTestClient(t, mux, "tok")

	order, err := c.ConfirmDelivery(context.Background(), "o-9", "123456", WithIdempotencyKey("key-1"))
	if err != nil {
		t.Fatalf("ConfirmDelivery: %v", err)
	}
	if order.Status != models.OrderStatusDelivered {
		t.Errorf("status = %q", order.Status)
	}
}

func TestActiveOrderNull(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /rider/orders/active", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "data": nil})
	})
	c := newTestClient(t, mux, "tok")

	order, err := c.ActiveOrder(context.Background())
	if err != nil {
		t.Fatalf("ActiveOrder: %v", err)
	}
	if order != nil {
		t.Errorf("order = %+v, want nil", order)
	}
}

func TestDashboardEnvelope(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /dispatch/dashboard", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"data": map[string]interface{}{
				"stats": map[string]interface{}{"completed": 4, "revenue": 12000, "active": 1},
				"requests": []map[string]interface{}{
					{"id": "o-1", "vendor": "Mama Put", "status": "READY_FOR_PICKUP"},
					{"id": "o-2", "vendor": "Suya Spot", "trackingId": "trk-2"},
				},
			},
		})
	})
	c := newTestClient(t, mux, "tok")

	data, err := c.Dashboard(context.Background())
	if err != nil {
		t.Fatalf("Dashboard: %v", err)
	}
	if data.Stats.Completed != 4 || len(data.Requests) != 2 {
		t.Fatalf("data = %+v", data)
	}
	if !data.Requests[0].IsRequest() || data.Requests[1].IsRequest() {
		t.Error("trackingId should split requests from active trips")
	}
}
