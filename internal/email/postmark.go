package email

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/mrz1836/postmark"

	"github.com/popeskul/gathering-dispatch/internal/config"
)

const postmarkTimeout = 30 * time.Second

type PostmarkSender struct {
	client         *postmark.Client
	from           string
	replyTo        string
	defaultSubject string
}

func NewPostmarkSender(cfg *config.EmailConfig) (*PostmarkSender, error) {
	if cfg.PostmarkServerToken == "" {
		return nil, fmt.Errorf("%w: postmark server token is required", ErrNotConfigured)
	}
	if _, err := mail.ParseAddress(cfg.SenderEmail); err != nil {
		return nil, fmt.Errorf("%w: sender email must be a valid email address", ErrNotConfigured)
	}

	client := postmark.NewClient(cfg.PostmarkServerToken, cfg.PostmarkAccountToken)
	client.HTTPClient = &http.Client{Timeout: postmarkTimeout}
	if cfg.PostmarkBaseURL != "" {
		client.BaseURL = strings.TrimRight(cfg.PostmarkBaseURL, "/")
	}

	return &PostmarkSender{
		client:         client,
		from:           cfg.SenderEmail,
		replyTo:        cfg.ReplyTo,
		defaultSubject: cfg.DefaultSubject,
	}, nil
}

func (s *PostmarkSender) Send(ctx context.Context, to, subject, body string) error {
	if err := validate(to, body); err != nil {
		return err
	}

	resp, err := s.client.SendEmail(ctx, postmark.Email{
		From:     s.from,
		ReplyTo:  s.replyTo,
		To:       strings.TrimSpace(to),
		Subject:  subjectOr(subject, s.defaultSubject),
		TextBody: body,
		Tag:      "gathering",
	})
	if err != nil {
		return errors.Join(ErrFailedToSendEmail, err)
	}
	if resp.ErrorCode > 0 {
		return errors.Join(
			ErrFailedToSendEmail,
			fmt.Errorf("postmark error: %d - %s", resp.ErrorCode, resp.Message),
		)
	}
	return nil
}
