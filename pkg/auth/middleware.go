package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/rentfold/esign/pkg/httpx"
)

// Claims are the token claims issued by the platform's identity service.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Validator validates bearer tokens with the shared HMAC secret.
type Validator struct {
	secret []byte
}

func NewValidator(secret []byte) *Validator {
	if len(secret) == 0 {
		return nil
	}
	return &Validator{secret: secret}
}

func (v *Validator) Validate(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("token validation failed: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// Middleware builds an Actor from the bearer token and injects it into the
// request context. A nil validator rejects everything (fail closed).
func Middleware(validator *Validator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				httpx.WriteError(w, 401, "UNAUTHORIZED", "missing Authorization header", nil)
				return
			}
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				httpx.WriteError(w, 401, "UNAUTHORIZED", "invalid Authorization header format (expected 'Bearer <token>')", nil)
				return
			}
			if validator == nil {
				httpx.WriteError(w, 401, "UNAUTHORIZED", "authentication not configured", nil)
				return
			}

			claims, err := validator.Validate(parts[1])
			if err != nil {
				httpx.WriteError(w, 401, "UNAUTHORIZED", "invalid or expired token", nil)
				return
			}
			if claims.Subject == "" || claims.Email == "" {
				httpx.WriteError(w, 401, "UNAUTHORIZED", "token subject and email are required", nil)
				return
			}

			actor := Actor{ID: claims.Subject, Email: claims.Email, Role: claims.Role}
			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}
