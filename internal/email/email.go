// Package email sends plain-text email through Postmark, or writes it to
// disk when running locally.
package email

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/popeskul/gathering-dispatch/internal/config"
)

//go:generate mockgen -source=email.go -destination=mocks/mock_email.go -package=mocks

var (
	ErrNotConfigured     = errors.New("email transport not configured")
	ErrInvalidParams     = errors.New("invalid email parameters")
	ErrFailedToSendEmail = errors.New("failed to send email")
)

// Sender delivers one email synchronously.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Select returns a Postmark sender when a server token is configured, a
// disk-writing sender when an output directory is configured, and
// ErrNotConfigured otherwise.
func Select(cfg *config.EmailConfig) (Sender, error) {
	switch {
	case cfg.PostmarkServerToken != "":
		s, err := NewPostmarkSender(cfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	case cfg.DevOutputDir != "":
		return NewDevSender(cfg.DevOutputDir, cfg.DefaultSubject), nil
	default:
		return nil, fmt.Errorf("%w: set email.postmark_server_token or email.dev_output_dir", ErrNotConfigured)
	}
}

func validate(to, body string) error {
	to = strings.TrimSpace(to)
	if to == "" {
		return fmt.Errorf("%w: recipient is required", ErrInvalidParams)
	}
	if _, err := mail.ParseAddress(to); err != nil {
		return fmt.Errorf("%w: recipient must be a valid email address", ErrInvalidParams)
	}
	if strings.TrimSpace(body) == "" {
		return fmt.Errorf("%w: body is required", ErrInvalidParams)
	}
	return nil
}

func subjectOr(subject, fallback string) string {
	if s := strings.TrimSpace(subject); s != "" {
		return s
	}
	return fallback
}
