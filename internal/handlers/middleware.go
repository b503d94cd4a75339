package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/reviewdb/apiserver/types"
)

type contextKey string

const contextIdentityKey contextKey = "identity"

// Identity is the authenticated caller extracted from a verified token.
// A nil *Identity means the request is anonymous.
type Identity struct {
	UserID   int
	Username string
	Role     string
}

// IsAdmin reports whether the identity is present and holds the admin role.
func (id *Identity) IsAdmin() bool {
	return id != nil && id.Role == types.RoleAdmin
}

// IsModerator reports whether the identity is present and holds the
// moderator role.
func (id *Identity) IsModerator() bool {
	return id != nil && id.Role == types.RoleModerator
}

func identityFromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(contextIdentityKey).(*Identity)
	return id
}

func withIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, contextIdentityKey, id)
}

// RequireAuth enforces a valid bearer token and injects the identity into
// the request context.
func RequireAuth(jwtSecret string) func(http.Handler) http.Handler {
	secret := []byte(jwtSecret)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := identityFromRequest(r, secret)
			if err != nil || id == nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), id)))
		})
	}
}

// OptionalAuth injects the identity when a valid bearer token is present
// and lets anonymous requests through. A token that is present but invalid
// is still rejected.
func OptionalAuth(jwtSecret string) func(http.Handler) http.Handler {
	secret := []byte(jwtSecret)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.TrimSpace(r.Header.Get("Authorization")) == "" {
				next.ServeHTTP(w, r)
				return
			}
			id, err := identityFromRequest(r, secret)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), id)))
		})
	}
}

func identityFromRequest(r *http.Request, secret []byte) (*Identity, error) {
	tokenString, err := bearerToken(r)
	if err != nil {
		return nil, err
	}
	claims, err := parseToken(tokenString, secret)
	if err != nil {
		return nil, err
	}
	userID, err := strconv.Atoi(claims.Subject)
	if err != nil || userID < 1 {
		return nil, errors.New("invalid subject")
	}
	return &Identity{
		UserID:   userID,
		Username: claims.Username,
		Role:     claims.Role,
	}, nil
}
