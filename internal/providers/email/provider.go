package email

import (
	"context"

	"go.uber.org/zap"
)

type Attachment struct {
	Filename string
	MIMEType string
	Content  []byte
}

type Provider interface {
	Send(ctx context.Context, to []string, subject string, htmlBody string) error
	SendWithAttachments(ctx context.Context, to []string, subject string, htmlBody string, attachments []Attachment) error
}

// NoOpProvider stands in when SMTP is unconfigured. It logs what would
// have been sent so local environments keep a visible trail.
type NoOpProvider struct {
	log *zap.Logger
}

func NewNoOp(log *zap.Logger) *NoOpProvider {
	return &NoOpProvider{log: log.Named("providers.email")}
}

func (p *NoOpProvider) Send(ctx context.Context, to []string, subject string, htmlBody string) error {
	p.log.Info("email skipped, smtp not configured",
		zap.Strings("to", to),
		zap.String("subject", subject),
	)
	return nil
}

func (p *NoOpProvider) SendWithAttachments(ctx context.Context, to []string, subject string, htmlBody string, attachments []Attachment) error {
	p.log.Info("email skipped, smtp not configured",
		zap.Strings("to", to),
		zap.String("subject", subject),
		zap.Int("attachments", len(attachments)),
	)
	return nil
}
