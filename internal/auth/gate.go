package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/xzytten/eventsy-chat-server/internal/store"
)

// CookieName is the cookie carrying the signed credential.
const CookieName = "authToken"

var (
	// ErrOriginNotAllowed is returned when the Origin header is not in the allow-list.
	ErrOriginNotAllowed = errors.New("origin not allowed")
	// ErrNoAuthCookie is returned when the handshake carries no authToken cookie.
	ErrNoAuthCookie = errors.New("no auth cookie")
	// ErrInvalidToken is returned when the credential fails signature or expiry checks.
	ErrInvalidToken = errors.New("invalid token")
	// ErrUserNotFound is returned when the token's email has no directory entry.
	ErrUserNotFound = errors.New("user not found")
)

// Identity is a verified connecting user.
type Identity struct {
	Email string
	Name  string
	Role  store.Role
}

// IsAdmin reports whether the identity belongs to a support admin.
func (id *Identity) IsAdmin() bool {
	return id.Role == store.RoleAdmin
}

// Gate validates inbound WebSocket handshakes before the upgrade.
type Gate struct {
	jwt            *JWTConfig
	directory      store.UserDirectory
	allowedOrigins []string
	log            *zerolog.Logger
}

// NewGate builds a handshake gate.
func NewGate(jwtConfig *JWTConfig, directory store.UserDirectory, allowedOrigins []string, logger *zerolog.Logger) *Gate {
	return &Gate{
		jwt:            jwtConfig,
		directory:      directory,
		allowedOrigins: allowedOrigins,
		log:            logger,
	}
}

// Authorize verifies a handshake request and resolves the connecting identity.
// A failed handshake is terminal for that attempt; the gate never retries.
func (g *Gate) Authorize(ctx context.Context, r *http.Request) (*Identity, error) {
	origin := r.Header.Get("Origin")
	if !g.originAllowed(origin) {
		g.log.Warn().Str("origin", origin).Msg("handshake from disallowed origin")
		return nil, ErrOriginNotAllowed
	}

	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return nil, ErrNoAuthCookie
	}

	claims, err := ValidateToken(g.jwt, cookie.Value)
	if err != nil {
		g.log.Debug().Err(err).Msg("handshake token rejected")
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	user, err := g.directory.FindUserByEmail(ctx, claims.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("directory lookup: %w", err)
	}

	return &Identity{
		Email: user.Email,
		Name:  user.Name,
		Role:  user.Role,
	}, nil
}

// originAllowed checks the configured allow-list. Browsers always send an
// Origin header; non-browser clients that omit it are let through.
func (g *Gate) originAllowed(origin string) bool {
	if origin == "" {
		return true
	}
	for _, allowed := range g.allowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}
