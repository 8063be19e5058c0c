package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/popeskul/gathering-dispatch/internal/config"
	"github.com/popeskul/gathering-dispatch/internal/phone"
)

const (
	// MaxBodyLength is the provider limit on message characters.
	MaxBodyLength = 500
	// MaxSenderIDLength is the provider limit on sender id characters.
	MaxSenderIDLength = 11

	pushrCurrency       = "GHS"
	pushrStatusCurrency = "USD"

	maxResponseBytes = 1 << 20
)

// PushrClient talks to the primary SMS API. Credentials travel in the JSON
// body, never in headers. It keeps no state between calls and is safe for
// concurrent use.
type PushrClient struct {
	baseURL       string
	publicKey     string
	secretKey     string
	senderID      string
	sendTimeout   time.Duration
	statusTimeout time.Duration
	httpClient    *http.Client
	logger        *zap.Logger
}

func NewPushrClient(cfg *config.ProviderConfig, logger *zap.Logger) *PushrClient {
	if !cfg.Configured() {
		logger.Warn("SMS API keys not configured, SMS sending will fail")
	}

	return &PushrClient{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		publicKey:     cfg.PublicKey,
		secretKey:     cfg.SecretKey,
		senderID:      cfg.SenderID,
		sendTimeout:   cfg.SendTimeoutDuration(),
		statusTimeout: cfg.StatusTimeoutDuration(),
		httpClient:    &http.Client{},
		logger:        logger,
	}
}

func (c *PushrClient) Name() string {
	return "pushr"
}

func (c *PushrClient) configured() bool {
	return c.publicKey != "" && c.secretKey != ""
}

type pushrSendRequest struct {
	APIKeyPublic  string   `json:"api_key_public"`
	APIKeySecret  string   `json:"api_key_secret"`
	Message       string   `json:"message"`
	Recipients    []string `json:"recipients"`
	SenderID      string   `json:"sender_id,omitempty"`
	Scheduled     bool     `json:"scheduled"`
	TimeScheduled *string  `json:"time_scheduled"`
}

type pushrSendResponse struct {
	ID              json.RawMessage `json:"id"`
	Status          string          `json:"status"`
	Cost            json.RawMessage `json:"cost"`
	SenderID        string          `json:"sender_id"`
	RecipientsCount int             `json:"recipients_count"`
}

type pushrStatusResponse struct {
	Data struct {
		Status      string          `json:"status"`
		Recipient   string          `json:"recipient"`
		Cost        json.RawMessage `json:"cost"`
		Currency    string          `json:"currency"`
		SentAt      string          `json:"sent_at"`
		DeliveredAt string          `json:"delivered_at"`
		ErrorCode   json.RawMessage `json:"error_code"`
	} `json:"data"`
}

// Send implements Sender. Credentials, body length and recipient format are
// checked locally first; those failures never reach the network.
func (c *PushrClient) Send(ctx context.Context, req SendRequest) (*SendResult, error) {
	if !c.configured() {
		return nil, configurationError("SMS API keys not configured. Set provider.public_key and provider.secret_key")
	}

	if n := utf8.RuneCountInString(req.Body); n > MaxBodyLength {
		return nil, validationError(fmt.Sprintf("Message is too long (%d characters). Maximum is %d characters.", n, MaxBodyLength))
	}

	to, ok := phone.NormalizeForProvider(req.To)
	if !ok {
		c.logger.Warn("Phone number is not in provider format, sending as-is",
			zap.String("recipient", req.To),
			zap.String("formatted", to))
	}
	if err := phone.ValidateForProvider(to); err != nil {
		return nil, validationError(fmt.Sprintf(
			"Invalid phone number format. API requires Ghana format (233XXXXXXXXX, 12 digits). Got: %s. Original: %s", to, req.To))
	}

	payload := pushrSendRequest{
		APIKeyPublic: c.publicKey,
		APIKeySecret: c.secretKey,
		Message:      req.Body,
		Recipients:   []string{to},
		SenderID:     c.resolveSenderID(req.SenderID),
		Scheduled:    false,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, validationError(fmt.Sprintf("failed to marshal request: %v", err))
	}

	ctx, cancel := context.WithTimeout(ctx, c.sendTimeout)
	defer cancel()

	endpoint := c.baseURL + "/sms/send-sms"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, validationError(fmt.Sprintf("failed to create request: %v", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	c.logger.Info("Sending SMS",
		zap.String("provider", c.Name()),
		zap.String("recipient", to),
		zap.String("channel", string(req.Channel)))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Error("SMS API request failed", zap.String("recipient", to), zap.Error(err))
		return nil, transportError(fmt.Sprintf("Failed to connect to SMS API: %v", err))
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Warn("Failed to close response body", zap.Error(err))
		}
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, transportError(fmt.Sprintf("Failed to read SMS API response: %v", err))
	}

	c.logger.Info("SMS API responded",
		zap.Int("statusCode", resp.StatusCode),
		zap.String("response", truncate(string(raw), rawLength)))

	return c.parseSendResponse(resp.StatusCode, raw, to)
}

func (c *PushrClient) parseSendResponse(statusCode int, raw []byte, to string) (*SendResult, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && !json.Valid(trimmed) {
		re := extractError(statusCode, trimmed)
		c.logger.Error("SMS API returned non-JSON response", zap.Int("statusCode", statusCode))
		return nil, &Error{Kind: ErrRejected, StatusCode: statusCode, Message: re.message, Raw: truncate(string(trimmed), rawLength)}
	}

	if statusCode == http.StatusOK || statusCode == http.StatusCreated {
		var out pushrSendResponse
		if len(trimmed) > 0 {
			// A success body that is valid JSON but not an object carries no id.
			_ = json.Unmarshal(trimmed, &out)
		}
		return &SendResult{
			MessageID: jsonText(out.ID),
			Status:    out.Status,
			Cost:      jsonFloat(out.Cost),
			Currency:  pushrCurrency,
		}, nil
	}

	re := extractError(statusCode, trimmed)
	pe := &Error{Kind: ErrRejected, StatusCode: statusCode, Message: re.message, Raw: truncate(string(trimmed), rawLength)}
	if statusCode == http.StatusBadRequest {
		pe.Hint = badRequestHint(re.message)
	}

	c.logger.Error("SMS API error",
		zap.Int("statusCode", statusCode),
		zap.String("error", re.message),
		zap.String("recipient", to),
		zap.String("response", pe.Raw))

	return nil, pe
}

// CheckStatus implements Sender. It uses the short status timeout so an
// interactive refresh is never held up by a slow provider.
func (c *PushrClient) CheckStatus(ctx context.Context, externalID string) (*StatusResult, error) {
	if !c.configured() {
		return nil, configurationError("SMS API keys not configured.")
	}
	if strings.TrimSpace(externalID) == "" {
		return nil, validationError("external message id is required")
	}

	ctx, cancel := context.WithTimeout(ctx, c.statusTimeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/sms/status/%s/", c.baseURL, url.PathEscape(externalID))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, validationError(fmt.Sprintf("failed to create request: %v", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Warn("SMS status request failed", zap.String("externalID", externalID), zap.Error(err))
		return nil, transportError(fmt.Sprintf("Failed to connect to SMS API: %v", err))
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Warn("Failed to close response body", zap.Error(err))
		}
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, transportError(fmt.Sprintf("Failed to read SMS status response: %v", err))
	}

	if resp.StatusCode != http.StatusOK {
		re := extractError(resp.StatusCode, raw)
		return nil, &Error{Kind: ErrRejected, StatusCode: resp.StatusCode, Message: re.message, Raw: truncate(string(raw), rawLength)}
	}

	var out pushrStatusResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		c.logger.Error("SMS status API returned invalid response",
			zap.String("externalID", externalID),
			zap.String("response", truncate(string(raw), excerptLength)))
		return nil, &Error{Kind: ErrRejected, StatusCode: resp.StatusCode, Message: "Status API returned invalid response", Raw: truncate(string(raw), rawLength)}
	}

	d := out.Data
	result := &StatusResult{
		Status:      d.Status,
		Recipient:   d.Recipient,
		Cost:        jsonFloat(d.Cost),
		Currency:    d.Currency,
		SentAt:      parseTimestamp(d.SentAt),
		DeliveredAt: parseTimestamp(d.DeliveredAt),
		ErrorCode:   jsonText(d.ErrorCode),
	}
	if result.Status == "" {
		result.Status = StatusUnknown
	}
	if result.Currency == "" {
		result.Currency = pushrStatusCurrency
	}
	return result, nil
}

func (c *PushrClient) resolveSenderID(requested string) string {
	id := requested
	if id == "" {
		id = c.senderID
	}
	return truncate(id, MaxSenderIDLength)
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05",
	time.RFC1123Z,
}

func parseTimestamp(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
