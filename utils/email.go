package utils

import (
	"encoding/base64"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"

	"github.com/raushankrgupta/meal-planner/config"
	"github.com/raushankrgupta/meal-planner/logger"
)

// Attachment is a file sent along with an email.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// SendEmail sends an email using SendGrid
func SendEmail(toName, toEmail, subject, textContent, htmlContent string, attachments ...Attachment) error {
	if config.SendGridAPIKey == "" {
		return fmt.Errorf("SENDGRID_API_KEY is not set in environment variables")
	}

	from := mail.NewEmail("Meal Planner", config.ExportMailFrom)
	to := mail.NewEmail(toName, toEmail)
	message := mail.NewSingleEmail(from, subject, to, textContent, htmlContent)
	for _, a := range attachments {
		att := mail.NewAttachment()
		att.SetContent(base64.StdEncoding.EncodeToString(a.Data))
		att.SetType(a.ContentType)
		att.SetFilename(a.Filename)
		att.SetDisposition("attachment")
		message.AddAttachment(att)
	}
	client := sendgrid.NewSendClient(config.SendGridAPIKey)

	response, err := client.Send(message)
	if err != nil {
		logger.Error("Error sending email", zap.String("to", toEmail), zap.Error(err))
		return err
	}

	if response.StatusCode >= 400 {
		logger.Error("SendGrid API Error", zap.Int("status", response.StatusCode), zap.String("body", response.Body))
		return fmt.Errorf("failed to send email, status code: %d", response.StatusCode)
	}

	logger.Info("Email sent", zap.String("to", toEmail), zap.Int("status", response.StatusCode))
	return nil
}
