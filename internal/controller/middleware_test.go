package controller

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cinemasync/server/internal/domain"
)

func signToken(t *testing.T, secret string, claims identityClaims) string {
	t.Helper()

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestParseIdentity(t *testing.T) {
	c := controller{jwtSecret: []byte("test-secret")}

	token := signToken(t, "test-secret", identityClaims{
		UserID: " user-1 ",
		Name:   "Alice",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	r := httptest.NewRequest("GET", "/api/v1/rooms", nil)
	r.Header.Set("Authorization", "Bearer "+token)

	claims, err := c.parseIdentity(r)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID, "the user id must be canonicalized")
	assert.Equal(t, "Alice", claims.Name)

	// websocket dials pass the token as a query parameter instead
	r = httptest.NewRequest("GET", "/api/v1/ws/room/ROOM1234?token="+token, nil)
	claims, err = c.parseIdentity(r)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
}

func TestParseIdentityRejections(t *testing.T) {
	c := controller{jwtSecret: []byte("test-secret")}

	tests := []struct {
		name    string
		token   string
		message string
	}{
		{
			name:    "missing token",
			token:   "",
			message: "authentication token is missing",
		},
		{
			name: "wrong secret",
			token: signToken(t, "other-secret", identityClaims{
				UserID: "user-1",
			}),
			message: "token is invalid",
		},
		{
			name: "expired token",
			token: signToken(t, "test-secret", identityClaims{
				UserID: "user-1",
				RegisteredClaims: jwt.RegisteredClaims{
					ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
				},
			}),
			message: "token has expired",
		},
		{
			name:    "missing user id",
			token:   signToken(t, "test-secret", identityClaims{Name: "Alice"}),
			message: "token is invalid",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/api/v1/rooms", nil)
			if tt.token != "" {
				r.Header.Set("Authorization", "Bearer "+tt.token)
			}

			_, err := c.parseIdentity(r)
			require.Error(t, err)
			assert.Equal(t, domain.KindAuthentication, domain.KindOf(err))
			assert.EqualError(t, err, tt.message)
		})
	}
}
