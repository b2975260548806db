package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const memberKey contextKey = "member"

// Claims carries the authenticated wallet member identity.
type Claims struct {
	Member string `json:"member"`
	jwt.RegisteredClaims
}

// GenerateToken issues an HS256 token for the given member, valid for ttl.
func GenerateToken(secret, member string, ttl time.Duration) (string, error) {
	claims := &Claims{
		Member: member,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   member,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "treasury-layer",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func validateToken(secret, tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil {
		return "", err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("invalid token")
	}
	member := claims.Member
	if member == "" {
		member = claims.Subject
	}
	if member == "" {
		return "", fmt.Errorf("token carries no member identity")
	}
	return member, nil
}

// authMiddleware resolves the caller identity. With a secret configured it
// requires a bearer token; without one it trusts the X-Member header.
func authMiddleware(secret string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/healthz" {
			next.ServeHTTP(w, r)
			return
		}

		var member string
		if secret == "" {
			member = strings.TrimSpace(r.Header.Get("X-Member"))
			if member == "" {
				writeError(w, http.StatusUnauthorized, fmt.Errorf("missing X-Member header"))
				return
			}
		} else {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				writeError(w, http.StatusUnauthorized, fmt.Errorf("missing authorization"))
				return
			}
			resolved, err := validateToken(secret, strings.TrimPrefix(authHeader, "Bearer "))
			if err != nil {
				writeError(w, http.StatusUnauthorized, fmt.Errorf("invalid token"))
				return
			}
			member = resolved
		}

		ctx := context.WithValue(r.Context(), memberKey, member)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// memberFrom returns the authenticated member for the request, or "" on the
// unauthenticated health path.
func memberFrom(r *http.Request) string {
	member, _ := r.Context().Value(memberKey).(string)
	return member
}
