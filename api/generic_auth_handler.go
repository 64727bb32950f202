package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/raushankrgupta/meal-planner/auth"
	"github.com/raushankrgupta/meal-planner/utils"
)

// ForgotPasswordPageHandler shows the first reset step
func (s *Server) ForgotPasswordPageHandler(w http.ResponseWriter, r *http.Request) {
	render(w, http.StatusOK, "forgot.html", authPage{})
}

// RequestOTPHandler asks the API to email a reset code and moves the form to
// the second step.
func (s *Server) RequestOTPHandler(w http.ResponseWriter, r *http.Request) {
	var logMessageBuilder strings.Builder
	defer utils.FlushLogMessage(r, &logMessageBuilder)
	utils.AddToLogMessage(&logMessageBuilder, "[Forgot Password API]")

	_ = r.ParseForm()
	email := strings.TrimSpace(r.PostFormValue("email"))

	if err := s.auth.RequestOTP(r.Context(), email); err != nil {
		utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("OTP request failed: %v", err))
		render(w, statusFor(err), "forgot.html", authPage{Error: auth.Message(err, auth.MsgOTPFailed), Email: email})
		return
	}

	utils.AddToLogMessage(&logMessageBuilder, "OTP sent")
	render(w, http.StatusOK, "forgot.html", authPage{Notice: auth.MsgOTPSent, Email: email, OTPSent: true})
}

// ResetPasswordHandler completes the reset and returns to the login page
func (s *Server) ResetPasswordHandler(w http.ResponseWriter, r *http.Request) {
	var logMessageBuilder strings.Builder
	defer utils.FlushLogMessage(r, &logMessageBuilder)
	utils.AddToLogMessage(&logMessageBuilder, "[Reset Password API]")

	_ = r.ParseForm()
	email := strings.TrimSpace(r.PostFormValue("email"))

	err := s.auth.ResetPassword(r.Context(), email, r.PostFormValue("otp"), r.PostFormValue("newPassword"))
	if err != nil {
		utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("Reset failed: %v", err))
		render(w, statusFor(err), "forgot.html", authPage{Error: auth.Message(err, auth.MsgResetFailed), Email: email, OTPSent: email != ""})
		return
	}

	utils.AddToLogMessage(&logMessageBuilder, "Password reset")
	http.Redirect(w, r, "/login?notice=reset", http.StatusSeeOther)
}
