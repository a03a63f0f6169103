package cmd

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/chrisdamba/chowrider/internal/actions"
	"github.com/chrisdamba/chowrider/internal/dashboard"
	"github.com/chrisdamba/chowrider/internal/models"
	"github.com/chrisdamba/chowrider/internal/validate"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"2500", 2500, false},
		{"2,500", 2500, false},
		{"₦2,500.50", 2500.5, false},
		{"abc", 0, true},
		{"-5", 0, true},
		{"NaN", 0, true},
		{"inf", 0, true},
		{"-Inf", 0, true},
		{"1e400", 0, true},
	}
	for _, tt := range tests {
		got, err := parseAmount(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseAmount(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parseAmount(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestRedactURL(t *testing.T) {
	got := redactURL("postgres://rider:s3cret@db:5432/chow")
	if strings.Contains(got, "s3cret") {
		t.Fatalf("password leaked: %s", got)
	}
	if redactURL("") != "" {
		t.Fatal("empty dsn should stay empty")
	}
}

func TestDescribe(t *testing.T) {
	if describe(nil) != nil {
		t.Fatal("nil should stay nil")
	}
	err := describe(&actions.Error{Action: "accept", Message: "Order has already been taken", Err: actions.ErrConflict})
	if err.Error() != "Order has already been taken" {
		t.Fatalf("got %q", err)
	}
	fe := validate.FieldErrors{"amount": "Insufficient funds"}
	if !errors.As(describe(fe), &validate.FieldErrors{}) {
		t.Fatal("field errors should pass through")
	}
}

func TestConsoleNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := consoleNotifier(&buf)
	n.Notify(actions.Notification{Kind: actions.KindSuccess, Title: "Order Accepted!"})
	n.Notify(actions.Notification{Kind: actions.KindError, Title: "Error", Body: "Invalid Code"})
	want := "✔ Order Accepted!\n✖ Error: Invalid Code\n"
	if buf.String() != want {
		t.Fatalf("got %q, want %q", buf.String(), want)
	}
}

func TestPrintView(t *testing.T) {
	v := dashboard.View{Data: &models.DashboardData{
		Stats: models.DispatcherStats{Completed: 3, Active: 1, Revenue: 12000},
		Requests: []models.DispatcherOrderRequest{
			{ID: "o1", Vendor: "Mama Put", CustomerAddress: "12 Allen Ave", Amount: 4500},
			{ID: "o2", Vendor: "Suya Spot", TrackingID: "task-1", Rider: &models.AssignedRider{Name: "Tunde"}},
		},
	}, UpdatedAt: time.Now()}

	var buf bytes.Buffer
	printView(&buf, v, dashboard.TabRequests)
	out := buf.String()
	if !strings.Contains(out, "Mama Put") || strings.Contains(out, "Suya Spot") {
		t.Fatalf("requests tab:\n%s", out)
	}

	buf.Reset()
	printView(&buf, v, dashboard.TabActive)
	out = buf.String()
	if !strings.Contains(out, "task-1") || !strings.Contains(out, "Tunde") {
		t.Fatalf("active tab:\n%s", out)
	}
}
