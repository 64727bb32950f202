package export

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"path"

	"go.uber.org/zap"

	"github.com/raushankrgupta/meal-planner/logger"
	"github.com/raushankrgupta/meal-planner/models"
	"github.com/raushankrgupta/meal-planner/utils"
)

// Sink receives a finished document in addition to the download.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, user models.User, doc *Document) error
}

// Deliver hands doc to every sink. Failures are logged and otherwise
// ignored.
func Deliver(ctx context.Context, user models.User, doc *Document, sinks ...Sink) {
	for _, s := range sinks {
		if err := s.Deliver(ctx, user, doc); err != nil {
			logger.Warn("Export sink failed", zap.String("sink", s.Name()), zap.String("file", doc.Filename), zap.Error(err))
		}
	}
}

// S3Sink archives exports in the configured bucket.
type S3Sink struct {
	Upload  func(ctx context.Context, body *bytes.Reader, key, contentType string) (string, error)
	Presign func(ctx context.Context, key string) (string, error)
}

func NewS3Sink() *S3Sink {
	return &S3Sink{
		Upload: func(ctx context.Context, body *bytes.Reader, key, contentType string) (string, error) {
			return utils.UploadFileToS3(ctx, body, key, contentType)
		},
		Presign: utils.GetPresignedURL,
	}
}

func (s *S3Sink) Name() string { return "s3" }

// Key is the object key an export is archived under.
func Key(user models.User, filename string) string {
	owner := user.ID
	if owner == "" {
		owner = "anonymous"
	}
	return path.Join("exports", owner, filename)
}

func (s *S3Sink) Deliver(ctx context.Context, user models.User, doc *Document) error {
	key, err := s.Upload(ctx, bytes.NewReader(doc.Data), Key(user, doc.Filename), "application/pdf")
	if err != nil {
		return err
	}
	url, err := s.Presign(ctx, key)
	if err != nil {
		return err
	}
	logger.Info("Export archived", zap.String("key", key), zap.String("url", url))
	return nil
}

// MailSink emails the PDF to the signed-in user.
type MailSink struct {
	Send func(toName, toEmail, subject, text, html string, attachments ...utils.Attachment) error
}

func NewMailSink() *MailSink {
	return &MailSink{Send: utils.SendEmail}
}

func (m *MailSink) Name() string { return "mail" }

func (m *MailSink) Deliver(_ context.Context, user models.User, doc *Document) error {
	if user.Email == "" {
		return fmt.Errorf("user has no email address")
	}
	text := fmt.Sprintf("Hi %s,\n\nYour weekly meal plan is attached.\n", user.DisplayName())
	body := fmt.Sprintf("<p>Hi %s,</p><p>Your weekly meal plan is attached.</p>", html.EscapeString(user.DisplayName()))
	return m.Send(user.DisplayName(), user.Email, "Your weekly meal plan", text, body, utils.Attachment{
		Filename:    doc.Filename,
		ContentType: "application/pdf",
		Data:        doc.Data,
	})
}
