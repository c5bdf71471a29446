package submission

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/goliatone/go-formsheet/pkg/answers"
)

// Response is the JSON body returned by the submission endpoint.
type Response struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Details string `json:"details,omitempty"`
}

// Client submits accumulated answers to a remote submission endpoint and maps
// the response back onto the error taxonomy.
type Client struct {
	endpoint   string
	httpClient *http.Client
	logger     *zap.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithClientLogger sets the logger used for request events.
func WithClientLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient targets endpoint, the full URL of the submit route.
func NewClient(endpoint string, opts ...ClientOption) (*Client, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, errors.New("submission: endpoint is required")
	}
	c := &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// SubmitValue posts value as JSON. Transport failures and unclassified
// statuses are reported as CodeStoreUnavailable.
func (c *Client) SubmitValue(ctx context.Context, value answers.Value) error {
	body, err := answers.Marshal(value)
	if err != nil {
		return Wrap(CodeMalformedInput, "encode answers", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return Wrap(CodeStoreUnavailable, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("submit request failed", zap.String("endpoint", c.endpoint), zap.Error(err))
		return Wrap(CodeStoreUnavailable, "send request", err)
	}
	defer resp.Body.Close()

	payload, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var decoded Response
	_ = json.Unmarshal(payload, &decoded)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		c.logger.Debug("submit accepted", zap.Int("status", resp.StatusCode), zap.String("message", decoded.Message))
		return nil
	}

	code := CodeForStatus(resp.StatusCode)
	if code == CodeUnknown {
		code = CodeStoreUnavailable
	}
	message := decoded.Error
	if message == "" {
		message = fmt.Sprintf("unexpected status %d", resp.StatusCode)
	}
	c.logger.Warn("submit rejected",
		zap.Int("status", resp.StatusCode),
		zap.String("code", string(code)),
		zap.String("details", decoded.Details))

	if decoded.Details != "" {
		return Wrap(code, message, errors.New(decoded.Details))
	}
	return NewError(code, message)
}
