package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret")

func signToken(t *testing.T, claims Claims, secret []byte) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	require.NoError(t, err)
	return token
}

func validClaims() Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "usr_1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Email: "user@example.com",
		Role:  "landlord",
	}
}

func TestValidator_Validate(t *testing.T) {
	v := NewValidator(testSecret)

	claims, err := v.Validate(signToken(t, validClaims(), testSecret))
	require.NoError(t, err)
	assert.Equal(t, "usr_1", claims.Subject)
	assert.Equal(t, "user@example.com", claims.Email)

	_, err = v.Validate(signToken(t, validClaims(), []byte("other-secret")))
	require.Error(t, err)

	expired := validClaims()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
	_, err = v.Validate(signToken(t, expired, testSecret))
	require.Error(t, err)

	_, err = v.Validate("not.a.token")
	require.Error(t, err)
}

func TestNewValidator_EmptySecret(t *testing.T) {
	assert.Nil(t, NewValidator(nil))
}

func TestMiddleware(t *testing.T) {
	var got Actor
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, err := ActorFrom(r.Context())
		require.NoError(t, err)
		got = actor
		w.WriteHeader(200)
	})
	handler := Middleware(NewValidator(testSecret))(next)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, validClaims(), testSecret))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, 200, rec.Code)
	assert.Equal(t, Actor{ID: "usr_1", Email: "user@example.com", Role: "landlord"}, got)
}

func TestMiddleware_Rejections(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not run for rejected requests")
	})

	tests := []struct {
		name      string
		validator *Validator
		header    string
	}{
		{"missing header", NewValidator(testSecret), ""},
		{"not bearer", NewValidator(testSecret), "Basic abc"},
		{"bad token", NewValidator(testSecret), "Bearer junk"},
		{"nil validator fails closed", nil, "Bearer junk"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := Middleware(tt.validator)(next)
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, 401, rec.Code)
		})
	}
}

func TestMiddleware_RequiresSubjectAndEmail(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not run without a subject")
	})
	handler := Middleware(NewValidator(testSecret))(next)

	claims := validClaims()
	claims.Subject = ""
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, claims, testSecret))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, 401, rec.Code)
}

func TestActorFrom_MissingActor(t *testing.T) {
	_, err := ActorFrom(httptest.NewRequest(http.MethodGet, "/", nil).Context())
	require.Error(t, err)
}
