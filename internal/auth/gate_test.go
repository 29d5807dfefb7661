package auth

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/xzytten/eventsy-chat-server/internal/store"
	"github.com/xzytten/eventsy-chat-server/internal/store/memory"
)

func testJWTConfig() *JWTConfig {
	return &JWTConfig{
		Secret:   []byte("testsecret"),
		Issuer:   "eventsy",
		Audience: "eventsy-chat",
		TTL:      time.Hour,
	}
}

func newTestGate(t *testing.T, origins []string) (*Gate, *JWTConfig) {
	t.Helper()

	st := memory.New()
	if err := st.CreateUser(context.Background(), &store.User{
		Email: "c@x.com",
		Name:  "Chloe",
		Role:  store.RoleCustomer,
	}); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	logger := zerolog.Nop()
	cfg := testJWTConfig()
	return NewGate(cfg, st, origins, &logger), cfg
}

func TestGateAuthorizesValidHandshake(t *testing.T) {
	gate, cfg := newTestGate(t, []string{"*"})

	token, err := GenerateToken(cfg, "c@x.com")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	r := httptest.NewRequest("GET", "/?email=c@x.com", nil)
	r.Header.Set("Origin", "https://eventsy.example")
	r.Header.Set("Cookie", CookieName+"="+token)

	identity, err := gate.Authorize(context.Background(), r)
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if identity.Email != "c@x.com" || identity.Name != "Chloe" || identity.IsAdmin() {
		t.Fatalf("unexpected identity: %+v", identity)
	}
}

func TestGateRejectsMissingCookie(t *testing.T) {
	gate, _ := newTestGate(t, []string{"*"})

	r := httptest.NewRequest("GET", "/", nil)
	_, err := gate.Authorize(context.Background(), r)
	if !errors.Is(err, ErrNoAuthCookie) {
		t.Fatalf("expected ErrNoAuthCookie, got %v", err)
	}
}

func TestGateRejectsForgedToken(t *testing.T) {
	gate, _ := newTestGate(t, []string{"*"})

	forged, err := GenerateToken(&JWTConfig{
		Secret:   []byte("wrongsecret"),
		Issuer:   "eventsy",
		Audience: "eventsy-chat",
		TTL:      time.Hour,
	}, "c@x.com")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("Cookie", CookieName+"="+forged)

	_, err = gate.Authorize(context.Background(), r)
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestGateRejectsExpiredToken(t *testing.T) {
	gate, cfg := newTestGate(t, []string{"*"})

	expired := *cfg
	expired.TTL = -time.Minute
	token, err := GenerateToken(&expired, "c@x.com")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("Cookie", CookieName+"="+token)

	_, err = gate.Authorize(context.Background(), r)
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestGateRejectsUnknownUser(t *testing.T) {
	gate, cfg := newTestGate(t, []string{"*"})

	token, err := GenerateToken(cfg, "stranger@z.com")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("Cookie", CookieName+"="+token)

	_, err = gate.Authorize(context.Background(), r)
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestGateEnforcesOriginAllowList(t *testing.T) {
	gate, cfg := newTestGate(t, []string{"https://eventsy.example"})

	token, err := GenerateToken(cfg, "c@x.com")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("Origin", "https://evil.example")
	r.Header.Set("Cookie", CookieName+"="+token)

	// Origin is checked before any cookie or token work.
	if _, err := gate.Authorize(context.Background(), r); !errors.Is(err, ErrOriginNotAllowed) {
		t.Fatalf("expected ErrOriginNotAllowed, got %v", err)
	}

	r.Header.Set("Origin", "https://eventsy.example")
	if _, err := gate.Authorize(context.Background(), r); err != nil {
		t.Fatalf("allowed origin rejected: %v", err)
	}
}
