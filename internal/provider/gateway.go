package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/popeskul/gathering-dispatch/internal/config"
	"github.com/popeskul/gathering-dispatch/internal/models"
)

const (
	gatewayCurrency = "USD"
	whatsappPrefix  = "whatsapp:"
)

// GatewayClient sends through a generic carrier gateway with explicit
// from/to addressing. WhatsApp messages are addressed by prefixing both
// endpoints with "whatsapp:".
type GatewayClient struct {
	baseURL       string
	accountSID    string
	authToken     string
	fromNumber    string
	sendTimeout   time.Duration
	statusTimeout time.Duration
	httpClient    *http.Client
	logger        *zap.Logger
}

func NewGatewayClient(cfg *config.FallbackConfig, timeouts *config.ProviderConfig, logger *zap.Logger) *GatewayClient {
	return &GatewayClient{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		accountSID:    cfg.AccountSID,
		authToken:     cfg.AuthToken,
		fromNumber:    cfg.FromNumber,
		sendTimeout:   timeouts.SendTimeoutDuration(),
		statusTimeout: timeouts.StatusTimeoutDuration(),
		httpClient:    &http.Client{},
		logger:        logger,
	}
}

func (c *GatewayClient) Name() string {
	return "gateway"
}

type gatewayMessage struct {
	SID       string          `json:"sid"`
	Status    string          `json:"status"`
	To        string          `json:"to"`
	Price     json.RawMessage `json:"price"`
	PriceUnit string          `json:"price_unit"`
	ErrorCode json.RawMessage `json:"error_code"`
	DateSent  string          `json:"date_sent"`
}

// gatewayStatuses folds carrier states onto the provider vocabulary.
var gatewayStatuses = map[string]string{
	"queued":      StatusPending,
	"accepted":    StatusPending,
	"scheduled":   StatusPending,
	"sending":     StatusPending,
	"sent":        StatusSent,
	"delivered":   StatusDelivered,
	"read":        StatusRead,
	"undelivered": StatusFailed,
	"failed":      StatusFailed,
	"canceled":    StatusFailed,
}

func (c *GatewayClient) Send(ctx context.Context, req SendRequest) (*SendResult, error) {
	if c.accountSID == "" || c.authToken == "" || c.fromNumber == "" {
		return nil, configurationError("SMS service not configured. Set provider keys or fallback gateway credentials")
	}
	if strings.TrimSpace(req.To) == "" {
		return nil, validationError("recipient number is required")
	}

	from, to := c.fromNumber, req.To
	if req.Channel == models.ChannelWhatsApp {
		from, to = whatsappPrefix+from, whatsappPrefix+to
	}

	form := url.Values{}
	form.Set("From", from)
	form.Set("To", to)
	form.Set("Body", req.Body)

	ctx, cancel := context.WithTimeout(ctx, c.sendTimeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", c.baseURL, url.PathEscape(c.accountSID))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, validationError(fmt.Sprintf("failed to create request: %v", err))
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.SetBasicAuth(c.accountSID, c.authToken)

	c.logger.Info("Sending via gateway",
		zap.String("provider", c.Name()),
		zap.String("recipient", to),
		zap.String("channel", string(req.Channel)))

	msg, err := c.do(httpReq)
	if err != nil {
		return nil, err
	}

	return &SendResult{
		MessageID: msg.SID,
		Status:    msg.Status,
		Cost:      jsonFloat(msg.Price),
		Currency:  gatewayCurrency,
	}, nil
}

func (c *GatewayClient) CheckStatus(ctx context.Context, externalID string) (*StatusResult, error) {
	if c.accountSID == "" || c.authToken == "" {
		return nil, configurationError("gateway credentials not configured")
	}
	if strings.TrimSpace(externalID) == "" {
		return nil, validationError("external message id is required")
	}

	ctx, cancel := context.WithTimeout(ctx, c.statusTimeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages/%s.json", c.baseURL, url.PathEscape(c.accountSID), url.PathEscape(externalID))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, validationError(fmt.Sprintf("failed to create request: %v", err))
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.SetBasicAuth(c.accountSID, c.authToken)

	msg, err := c.do(httpReq)
	if err != nil {
		return nil, err
	}

	status, ok := gatewayStatuses[strings.ToLower(msg.Status)]
	if !ok {
		status = StatusUnknown
	}

	currency := strings.ToUpper(msg.PriceUnit)
	if currency == "" {
		currency = gatewayCurrency
	}

	result := &StatusResult{
		Status:    status,
		Recipient: strings.TrimPrefix(msg.To, whatsappPrefix),
		Cost:      jsonFloat(msg.Price),
		Currency:  currency,
		SentAt:    parseTimestamp(msg.DateSent),
		ErrorCode: jsonText(msg.ErrorCode),
	}
	if status == StatusDelivered || status == StatusRead {
		result.DeliveredAt = result.SentAt
	}
	return result, nil
}

func (c *GatewayClient) do(httpReq *http.Request) (*gatewayMessage, error) {
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Error("Gateway request failed", zap.Error(err))
		return nil, transportError(fmt.Sprintf("Failed to connect to SMS gateway: %v", err))
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Warn("Failed to close response body", zap.Error(err))
		}
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, transportError(fmt.Sprintf("Failed to read SMS gateway response: %v", err))
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		re := extractError(resp.StatusCode, raw)
		c.logger.Error("SMS gateway error",
			zap.Int("statusCode", resp.StatusCode),
			zap.String("error", re.message))
		return nil, &Error{Kind: ErrRejected, StatusCode: resp.StatusCode, Message: re.message, Raw: truncate(string(raw), rawLength)}
	}

	var msg gatewayMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		re := extractError(resp.StatusCode, raw)
		return nil, &Error{Kind: ErrRejected, StatusCode: resp.StatusCode, Message: re.message, Raw: truncate(string(raw), rawLength)}
	}
	return &msg, nil
}
