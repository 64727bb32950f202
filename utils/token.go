package utils

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims reads the subject and expiry of a bearer token without
// verifying its signature. The API verifies tokens; the UI only needs to
// know when a stored token has obviously expired.
func TokenClaims(tokenString string) (subject string, expiresAt time.Time, err error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return "", time.Time{}, fmt.Errorf("parse token: %w", err)
	}

	if sub, err := claims.GetSubject(); err == nil {
		subject = sub
	}
	if subject == "" {
		if id, ok := claims["user_id"].(string); ok {
			subject = id
		}
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return subject, time.Time{}, fmt.Errorf("read exp claim: %w", err)
	}
	if exp != nil {
		expiresAt = exp.Time
	}
	return subject, expiresAt, nil
}
