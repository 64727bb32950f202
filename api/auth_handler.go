package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/raushankrgupta/meal-planner/apiclient"
	"github.com/raushankrgupta/meal-planner/auth"
	"github.com/raushankrgupta/meal-planner/utils"
)

type authPage struct {
	Error   string
	Notice  string
	Email   string
	OTPSent bool
}

// statusFor maps an auth failure to the status of the re-rendered form.
func statusFor(err error) int {
	if errors.Is(err, auth.ErrValidation) {
		return http.StatusBadRequest
	}
	var apiErr *apiclient.Error
	if errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500 {
		return apiErr.Status
	}
	return http.StatusBadGateway
}

// LoginPageHandler shows the login form
func (s *Server) LoginPageHandler(w http.ResponseWriter, r *http.Request) {
	page := authPage{}
	if r.URL.Query().Get("notice") == "reset" {
		page.Notice = auth.MsgResetDone
	}
	render(w, http.StatusOK, "login.html", page)
}

// LoginHandler handles the login form
func (s *Server) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var logMessageBuilder strings.Builder
	defer utils.FlushLogMessage(r, &logMessageBuilder)
	utils.AddToLogMessage(&logMessageBuilder, "[Login API]")

	if err := r.ParseForm(); err != nil {
		render(w, http.StatusBadRequest, "login.html", authPage{Error: auth.MsgRequired})
		return
	}
	email := r.PostFormValue("email")
	sess, _ := sessionFrom(r.Context())

	if err := s.auth.Login(r.Context(), w, sess, email, r.PostFormValue("password")); err != nil {
		utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("Login failed: %v", err))
		render(w, statusFor(err), "login.html", authPage{Error: auth.Message(err, auth.MsgLoginFailed), Email: email})
		return
	}

	utils.AddToLogMessage(&logMessageBuilder, "Login successful")
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

// SignupPageHandler shows the signup form
func (s *Server) SignupPageHandler(w http.ResponseWriter, r *http.Request) {
	render(w, http.StatusOK, "signup.html", authPage{})
}

// SignupHandler registers the user and logs them in
func (s *Server) SignupHandler(w http.ResponseWriter, r *http.Request) {
	var logMessageBuilder strings.Builder
	defer utils.FlushLogMessage(r, &logMessageBuilder)
	utils.AddToLogMessage(&logMessageBuilder, "[Signup API]")

	if err := r.ParseForm(); err != nil {
		render(w, http.StatusBadRequest, "signup.html", authPage{Error: auth.MsgRequired})
		return
	}
	email := r.PostFormValue("email")
	sess, _ := sessionFrom(r.Context())

	err := s.auth.Signup(r.Context(), w, sess, email, r.PostFormValue("password"), r.PostFormValue("confirm"))
	if err != nil {
		utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("Signup failed: %v", err))
		render(w, statusFor(err), "signup.html", authPage{Error: auth.Message(err, auth.MsgSignupFailed), Email: email})
		return
	}

	utils.AddToLogMessage(&logMessageBuilder, "Signup successful")
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

// LogoutHandler tears down the session and its dashboard state
func (s *Server) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	var logMessageBuilder strings.Builder
	defer utils.FlushLogMessage(r, &logMessageBuilder)
	utils.AddToLogMessage(&logMessageBuilder, "[Logout API]")

	sess, _ := sessionFrom(r.Context())
	if err := s.auth.Logout(r.Context(), w, sess); err != nil {
		utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("Failed to delete session: %v", err))
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
