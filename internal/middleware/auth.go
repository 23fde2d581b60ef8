package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/schoolrun/backend/internal/domain"
)

type contextKey int

const (
	userIDKey contextKey = iota
	roleKey
)

// Identity is the authenticated caller extracted from a bearer token.
type Identity struct {
	UserID uuid.UUID
	Role   domain.Role
}

// NewAuthenticator returns a middleware that requires a valid HS256 bearer
// token signed with secret. The token's "sub" claim carries the user ID and
// the "role" claim the caller's role; both are stored on the request context
// for handlers to read via IdentityFrom.
//
// A missing, malformed, or expired token short-circuits with 401 and the
// API's standard error envelope.
func NewAuthenticator(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r)
			if !ok {
				unauthorized(w)
				return
			}

			claims := jwt.MapClaims{}
			_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
				}
				return secret, nil
			}, jwt.WithValidMethods([]string{"HS256"}))
			if err != nil {
				unauthorized(w)
				return
			}

			sub, err := claims.GetSubject()
			if err != nil {
				unauthorized(w)
				return
			}
			userID, err := uuid.Parse(sub)
			if err != nil {
				unauthorized(w)
				return
			}

			roleClaim, _ := claims["role"].(string)
			role := domain.ParseRole(roleClaim)

			ctx := context.WithValue(r.Context(), userIDKey, userID)
			ctx = context.WithValue(ctx, roleKey, role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IdentityFrom returns the authenticated caller stored by NewAuthenticator.
// The second return is false when the request never passed through it.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	userID, ok := ctx.Value(userIDKey).(uuid.UUID)
	if !ok {
		return Identity{}, false
	}
	role, ok := ctx.Value(roleKey).(domain.Role)
	if !ok {
		return Identity{}, false
	}
	return Identity{UserID: userID, Role: role}, true
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return header[len(prefix):], true
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"message": "unauthorized",
	})
}
