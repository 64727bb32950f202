// Package auth implements the login, signup and password reset flows on top
// of the API client and the session manager.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/raushankrgupta/meal-planner/apiclient"
	"github.com/raushankrgupta/meal-planner/logger"
	"github.com/raushankrgupta/meal-planner/session"
)

// Messages shown to the user.
const (
	MsgLoginFailed      = "Login failed"
	MsgSignupFailed     = "Signup failed"
	MsgPasswordMismatch = "Passwords do not match"
	MsgOTPFailed        = "Failed to send OTP"
	MsgOTPSent          = "OTP sent to your email! Please check your inbox."
	MsgResetFailed      = "Invalid OTP or failed reset"
	MsgResetDone        = "Password Reset Successful! You can now login."
	MsgRequired         = "Email and password are required"
	MsgEmailRequired    = "Email is required"
	MsgResetRequired    = "Email, OTP and new password are required"
)

// ErrValidation marks failures caught before any network call.
var ErrValidation = errors.New("validation failed")

// Error carries the message to display.
type Error struct {
	Message string
	Err     error
}

func (e *Error) Error() string { return e.Message }
func (e *Error) Unwrap() error { return e.Err }

func validation(msg string) error {
	return &Error{Message: msg, Err: ErrValidation}
}

// API is the part of the API client the flows need.
type API interface {
	Login(ctx context.Context, creds apiclient.Credentials) (*apiclient.AuthResult, error)
	Signup(ctx context.Context, creds apiclient.Credentials) (*apiclient.AuthResult, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, email, otp, newPassword string) error
}

// Service runs the auth flows.
type Service struct {
	api      API
	sessions *session.Manager
}

func NewService(api API, sessions *session.Manager) *Service {
	return &Service{api: api, sessions: sessions}
}

// Login authenticates and stores the token on sess. On failure sess is left
// exactly as it was.
func (s *Service) Login(ctx context.Context, w http.ResponseWriter, sess *session.Session, email, password string) error {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return validation(MsgRequired)
	}

	res, err := s.api.Login(ctx, apiclient.Credentials{Email: email, Password: password})
	if err != nil {
		logger.Info("Login rejected", zap.String("email", email), zap.Error(err))
		return &Error{Message: apiclient.ServerMessage(err, MsgLoginFailed), Err: err}
	}
	if err := s.sessions.Login(ctx, w, sess, res.Token, res.User); err != nil {
		logger.Error("Failed to persist session", zap.Error(err))
		return &Error{Message: MsgLoginFailed, Err: err}
	}
	return nil
}

// Signup registers and logs the user in straight away.
func (s *Service) Signup(ctx context.Context, w http.ResponseWriter, sess *session.Session, email, password, confirm string) error {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return validation(MsgRequired)
	}
	if password != confirm {
		return validation(MsgPasswordMismatch)
	}

	res, err := s.api.Signup(ctx, apiclient.Credentials{Email: email, Password: password})
	if err != nil {
		logger.Info("Signup rejected", zap.String("email", email), zap.Error(err))
		return &Error{Message: apiclient.ServerMessage(err, MsgSignupFailed), Err: err}
	}
	if err := s.sessions.Login(ctx, w, sess, res.Token, res.User); err != nil {
		logger.Error("Failed to persist session", zap.Error(err))
		return &Error{Message: MsgSignupFailed, Err: err}
	}
	return nil
}

// RequestOTP starts a password reset. The code arrives out of band.
func (s *Service) RequestOTP(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return validation(MsgEmailRequired)
	}
	if err := s.api.ForgotPassword(ctx, email); err != nil {
		return &Error{Message: apiclient.ServerMessage(err, MsgOTPFailed), Err: err}
	}
	return nil
}

// ResetPassword completes a password reset with the emailed code.
func (s *Service) ResetPassword(ctx context.Context, email, otp, newPassword string) error {
	email = strings.TrimSpace(email)
	otp = strings.TrimSpace(otp)
	if email == "" || otp == "" || newPassword == "" {
		return validation(MsgResetRequired)
	}
	if err := s.api.ResetPassword(ctx, email, otp, newPassword); err != nil {
		return &Error{Message: apiclient.ServerMessage(err, MsgResetFailed), Err: err}
	}
	return nil
}

// Logout tears the session down.
func (s *Service) Logout(ctx context.Context, w http.ResponseWriter, sess *session.Session) error {
	return s.sessions.Logout(ctx, w, sess)
}

// Message extracts the text to display for err.
func Message(err error, fallback string) string {
	var authErr *Error
	if errors.As(err, &authErr) {
		return authErr.Message
	}
	return fallback
}
