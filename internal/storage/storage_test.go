package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/chrisdamba/chowrider/internal/models"
)

func backends(t *testing.T) map[string]Store {
	t.Helper()
	fs, err := NewFileStore(filepath.Join(t.TempDir(), "secure"))
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	stores := map[string]Store{
		"file":   fs,
		"memory": NewMemoryStore(),
	}
	if dsn := os.Getenv("CHOWRIDER_TEST_PG_DSN"); dsn != "" {
		pg, err := NewPostgresStore(context.Background(), dsn, "client_kv_test")
		if err != nil {
			t.Fatalf("NewPostgresStore: %v", err)
		}
		t.Cleanup(pg.Close)
		stores["postgres"] = pg
	}
	return stores
}

func TestTokenRoundTrip(t *testing.T) {
	ctx := context.Background()
	token := "eyJhbGciOiJIUzI1NiJ9.eyJpZCI6InJpZGVyLTEifQ.c2ln"
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if err := s.Set(ctx, models.KeyAuthToken, token); err != nil {
				t.Fatalf("Set: %v", err)
			}
			got, err := s.Get(ctx, models.KeyAuthToken)
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if got != token {
				t.Errorf("Get = %q, want %q", got, token)
			}

			if err := s.Set(ctx, models.KeyAuthToken, "second"); err != nil {
				t.Fatalf("overwrite: %v", err)
			}
			if got, _ := s.Get(ctx, models.KeyAuthToken); got != "second" {
				t.Errorf("after overwrite Get = %q", got)
			}

			if err := s.Remove(ctx, models.KeyAuthToken); err != nil {
				t.Fatalf("Remove: %v", err)
			}
			if _, err := s.Get(ctx, models.KeyAuthToken); !errors.Is(err, ErrNotFound) {
				t.Errorf("Get after Remove err = %v, want ErrNotFound", err)
			}
			if err := s.Remove(ctx, models.KeyAuthToken); err != nil {
				t.Errorf("second Remove should be a no-op, got %v", err)
			}
		})
	}
}

func TestGetOptional(t *testing.T) {
	s := NewMemoryStore()
	v, err := GetOptional(context.Background(), s, models.KeyOnboardingSeen)
	if err != nil || v != "" {
		t.Fatalf("GetOptional = %q, %v", v, err)
	}
}

func TestFileStorePermissions(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "secure")
	s, err := NewFileStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Set(context.Background(), models.KeyAuthToken, "tok"); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(filepath.Join(dir, models.KeyAuthToken))
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("token file mode = %o, want 600", perm)
	}
}

func TestFileStoreRejectsPathKeys(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Set(context.Background(), "../escape", "x"); err == nil {
		t.Fatal("expected error for key with path separator")
	}
}

func TestNewUnknownBackend(t *testing.T) {
	_, err := New(context.Background(), models.StorageConfig{Backend: "sqlite"})
	if err == nil {
		t.Fatal("expected error for unsupported backend")
	}
}
