// Package session holds the bearer token and user identity for one browser.
//
// Lifecycle: a Manager loads the session named by the request cookie from a
// Store (or starts an anonymous one), Login sets the token and user and
// persists them, Logout deletes the stored record and clears the cookie.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/raushankrgupta/meal-planner/models"
	"github.com/raushankrgupta/meal-planner/utils"
)

// ErrNotFound is returned by stores for unknown session ids.
var ErrNotFound = errors.New("session not found")

// Session is the per-browser auth state.
type Session struct {
	ID        string      `json:"id" bson:"_id"`
	Token     string      `json:"token,omitempty" bson:"token,omitempty"`
	User      models.User `json:"user" bson:"user"`
	CreatedAt time.Time   `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time   `json:"updated_at" bson:"updated_at"`
}

// Authenticated reports whether a token is held.
func (s *Session) Authenticated() bool {
	return s != nil && s.Token != ""
}

// Expired reports whether the token carries an exp claim in the past.
// Tokens that are not JWTs, or carry no exp, never expire here.
func (s *Session) Expired(now time.Time) bool {
	if !s.Authenticated() {
		return false
	}
	_, exp, err := utils.TokenClaims(s.Token)
	if err != nil || exp.IsZero() {
		return false
	}
	return !now.Before(exp)
}

func (s *Session) clone() *Session {
	c := *s
	return &c
}

// Store persists sessions.
type Store interface {
	Load(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
}
