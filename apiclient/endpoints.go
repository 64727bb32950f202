package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/raushankrgupta/meal-planner/models"
)

// Credentials is the body of login and signup.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResult is the token plus the user record that came with it.
type AuthResult struct {
	Token string
	User  models.User
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Email       string `json:"email"`
	OTP         string `json:"otp"`
	NewPassword string `json:"newPassword"`
}

// RegenerateRequest is the profile plus the slot being replaced.
type RegenerateRequest struct {
	models.UserProfile
	MealType      string `json:"mealType"`
	CurrentFoodID string `json:"currentFoodId"`
}

type regenerateResponse struct {
	Meal *models.Meal `json:"meal"`
}

func (c *Client) Login(ctx context.Context, creds Credentials) (*AuthResult, error) {
	return c.authenticate(ctx, "/api/auth/login", creds)
}

func (c *Client) Signup(ctx context.Context, creds Credentials) (*AuthResult, error) {
	return c.authenticate(ctx, "/api/auth/signup", creds)
}

func (c *Client) authenticate(ctx context.Context, path string, creds Credentials) (*AuthResult, error) {
	var raw json.RawMessage
	if err := c.Request(ctx, http.MethodPost, path, "", creds, &raw); err != nil {
		return nil, err
	}
	return decodeAuth(raw)
}

// decodeAuth reads {token, ...user}. Some deployments nest the user under
// "user"; both shapes are accepted.
func decodeAuth(raw json.RawMessage) (*AuthResult, error) {
	var envelope struct {
		Token string          `json:"token"`
		User  json.RawMessage `json:"user"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, &Error{Status: http.StatusOK, Message: GenericMessage, Err: fmt.Errorf("decode auth response: %w", err)}
	}
	if envelope.Token == "" {
		return nil, &Error{Status: http.StatusOK, Message: GenericMessage, Err: fmt.Errorf("auth response has no token")}
	}

	userJSON := raw
	if len(envelope.User) > 0 && string(envelope.User) != "null" {
		userJSON = envelope.User
	}
	var fields struct {
		ID    any    `json:"id"`
		MID   any    `json:"_id"`
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	_ = json.Unmarshal(userJSON, &fields)

	user := models.User{Email: fields.Email, Name: fields.Name, Raw: userJSON}
	switch {
	case fields.ID != nil:
		user.ID = fmt.Sprint(fields.ID)
	case fields.MID != nil:
		user.ID = fmt.Sprint(fields.MID)
	}
	return &AuthResult{Token: envelope.Token, User: user}, nil
}

// ForgotPassword asks the API to send a one-time code to email.
func (c *Client) ForgotPassword(ctx context.Context, email string) error {
	return c.Request(ctx, http.MethodPost, "/api/auth/forgot-password", "", forgotPasswordRequest{Email: email}, nil)
}

// ResetPassword sets a new password using the emailed code.
func (c *Client) ResetPassword(ctx context.Context, email, otp, newPassword string) error {
	body := resetPasswordRequest{Email: email, OTP: otp, NewPassword: newPassword}
	return c.Request(ctx, http.MethodPost, "/api/auth/reset-password", "", body, nil)
}

// GeneratePlan requests a new weekly plan for profile.
func (c *Client) GeneratePlan(ctx context.Context, token string, profile models.UserProfile) (*models.MealPlan, error) {
	var plan models.MealPlan
	if err := c.Request(ctx, http.MethodPost, "/api/generate-plan", token, profile, &plan); err != nil {
		return nil, err
	}
	return &plan, nil
}

// Regenerate requests a replacement meal for one slot.
func (c *Client) Regenerate(ctx context.Context, token string, req RegenerateRequest) (*models.Meal, error) {
	var resp regenerateResponse
	if err := c.Request(ctx, http.MethodPost, "/api/regenerate", token, req, &resp); err != nil {
		return nil, err
	}
	if resp.Meal == nil {
		return nil, &Error{Status: http.StatusOK, Message: GenericMessage, Err: fmt.Errorf("regenerate response has no meal")}
	}
	return resp.Meal, nil
}

// SendFeedback records a like or dislike for a food item.
func (c *Client) SendFeedback(ctx context.Context, token string, fb models.Feedback) error {
	return c.Request(ctx, http.MethodPost, "/api/user/feedback", token, fb, nil)
}
