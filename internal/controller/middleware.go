package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/cinemasync/server/internal/domain"
	"github.com/cinemasync/server/pkg/ctxlogger"
	"github.com/cinemasync/server/pkg/rest"
)

func (c controller) requestIdMw(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ctx = ctxlogger.AppendCtx(ctx, slog.String("request_id", uuid.NewString()))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (c controller) requestLoggingMw(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.logger.InfoContext(r.Context(), "request",
			"method", r.Method,
			"url", r.URL.String(),
			"remote_addr", r.RemoteAddr,
		)
		next.ServeHTTP(w, r)
	})
}

type identityClaims struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	jwt.RegisteredClaims
}

// parseIdentity verifies a bearer identity token. The token may arrive in the
// Authorization header or, for websocket dials where headers are unavailable,
// in the "token" query parameter.
func (c controller) parseIdentity(r *http.Request) (*identityClaims, error) {
	var token string

	if authHeader := r.Header.Get("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
		token = strings.TrimPrefix(authHeader, "Bearer ")
	}
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	if token == "" {
		return nil, domain.NewError(domain.KindAuthentication, "authentication token is missing")
	}

	claims := identityClaims{}
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return c.jwtSecret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domain.NewError(domain.KindAuthentication, "token has expired")
		}
		return nil, domain.NewError(domain.KindAuthentication, "token is invalid")
	}
	if !parsed.Valid || claims.UserID == "" {
		return nil, domain.NewError(domain.KindAuthentication, "token is invalid")
	}

	claims.UserID = domain.CanonicalID(claims.UserID)

	return &claims, nil
}

func (c controller) authMw(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := c.parseIdentity(r)
		if err != nil {
			rest.WriteJSON(w, http.StatusUnauthorized, rest.Envelope{"error": err.Error()})
			return
		}

		ctx := context.WithValue(r.Context(), userIDCtxKey, claims.UserID)
		ctx = context.WithValue(ctx, userNameCtxKey, claims.Name)
		ctx = ctxlogger.AppendCtx(ctx, slog.String("user_id", claims.UserID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
