// Package whatsapp connects the record agent to the WhatsApp Cloud API:
// an outbound client, webhook parsing and verification, and a worker pool
// that feeds inbound messages through per-sender conversations.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/HendryAvila/recordpilot/internal/logging"
)

// MaxBodyRunes is the Cloud API limit for one text message body.
const MaxBodyRunes = 4096

// Config configures the Cloud API client.
type Config struct {
	APIBase       string
	APIVersion    string
	PhoneNumberID string
	AccessToken   string
	Timeout       time.Duration
	MaxRetries    int
}

// Client sends messages through the Cloud API.
type Client struct {
	log        *logging.Logger
	cfg        Config
	httpClient *http.Client
	endpoint   string
	backoff    time.Duration
}

// New validates cfg and returns a Client.
func New(log *logging.Logger, cfg Config) (*Client, error) {
	if log == nil {
		log = logging.Nop()
	}
	cfg.AccessToken = strings.TrimSpace(cfg.AccessToken)
	if cfg.AccessToken == "" {
		return nil, errors.New("whatsapp: access token required")
	}
	cfg.PhoneNumberID = strings.TrimSpace(cfg.PhoneNumberID)
	if cfg.PhoneNumberID == "" {
		return nil, errors.New("whatsapp: phone number id required")
	}
	if strings.TrimSpace(cfg.APIBase) == "" {
		cfg.APIBase = "https://graph.facebook.com"
	}
	cfg.APIBase = strings.TrimRight(cfg.APIBase, "/")
	if cfg.APIVersion == "" {
		cfg.APIVersion = "v23.0"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	return &Client{
		log:        log.With("client", "WhatsAppClient"),
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		endpoint:   fmt.Sprintf("%s/%s/%s/messages", cfg.APIBase, cfg.APIVersion, cfg.PhoneNumberID),
		backoff:    time.Second,
	}, nil
}

// SendResult is the Cloud API answer to a send request.
type SendResult struct {
	MessagingProduct string `json:"messaging_product,omitempty"`
	Contacts         []struct {
		Input string `json:"input"`
		WaID  string `json:"wa_id"`
	} `json:"contacts,omitempty"`
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages,omitempty"`
}

// MessageID returns the id of the first accepted message.
func (r *SendResult) MessageID() string {
	if r == nil || len(r.Messages) == 0 {
		return ""
	}
	return r.Messages[0].ID
}

type textBody struct {
	Body string `json:"body"`
}

type replyContext struct {
	MessageID string `json:"message_id"`
}

type sendRequest struct {
	MessagingProduct string        `json:"messaging_product"`
	To               string        `json:"to"`
	Type             string        `json:"type"`
	Text             textBody      `json:"text"`
	Context          *replyContext `json:"context,omitempty"`
}

type typingIndicator struct {
	Type string `json:"type"`
}

type readRequest struct {
	MessagingProduct string           `json:"messaging_product"`
	Status           string           `json:"status"`
	MessageID        string           `json:"message_id"`
	TypingIndicator  *typingIndicator `json:"typing_indicator,omitempty"`
}

// Send delivers body to the E.164 number to. A non-empty replyTo quotes
// that inbound message. Bodies over MaxBodyRunes are sent in parts; the
// result of the last part is returned.
func (c *Client) Send(ctx context.Context, to, body, replyTo string) (*SendResult, error) {
	to = strings.TrimPrefix(strings.TrimSpace(to), "+")
	if to == "" {
		return nil, errors.New("whatsapp: recipient required")
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, errors.New("whatsapp: message body required")
	}

	var last *SendResult
	for i, part := range Split(body, MaxBodyRunes) {
		req := sendRequest{
			MessagingProduct: "whatsapp",
			To:               to,
			Type:             "text",
			Text:             textBody{Body: part},
		}
		if replyTo != "" && i == 0 {
			req.Context = &replyContext{MessageID: replyTo}
		}
		out, err := doJSON[SendResult](c, ctx, req)
		if err != nil {
			return nil, err
		}
		last = out
	}
	return last, nil
}

// Typing marks messageID as read and shows the typing indicator until the
// next outbound message.
func (c *Client) Typing(ctx context.Context, messageID string) error {
	if messageID == "" {
		return errors.New("whatsapp: message id required")
	}
	_, err := doJSON[struct {
		Success bool `json:"success"`
	}](c, ctx, readRequest{
		MessagingProduct: "whatsapp",
		Status:           "read",
		MessageID:        messageID,
		TypingIndicator:  &typingIndicator{Type: "text"},
	})
	return err
}

// Split cuts s into parts of at most limit runes, preferring line breaks
// and then spaces as cut points.
func Split(s string, limit int) []string {
	runes := []rune(s)
	if limit <= 0 || len(runes) <= limit {
		return []string{s}
	}
	var parts []string
	for len(runes) > limit {
		cut := limit
		if i := lastIndex(runes[:limit], '\n'); i > limit/2 {
			cut = i + 1
		} else if i := lastIndex(runes[:limit], ' '); i > limit/2 {
			cut = i + 1
		}
		parts = append(parts, strings.TrimSpace(string(runes[:cut])))
		runes = runes[cut:]
	}
	if rest := strings.TrimSpace(string(runes)); rest != "" {
		parts = append(parts, rest)
	}
	return parts
}

func lastIndex(runes []rune, r rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if runes[i] == r {
			return i
		}
	}
	return -1
}

// ---------- HTTP / retry helpers ----------

type apiError struct {
	Error struct {
		Message   string `json:"message"`
		Type      string `json:"type"`
		Code      int    `json:"code"`
		FBTraceID string `json:"fbtrace_id"`
	} `json:"error"`
}

// HTTPError is a non-2xx answer from the Cloud API.
type HTTPError struct {
	StatusCode int
	Body       string
	Code       int
	Message    string
}

func (e *HTTPError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("whatsapp http %d: %s (code=%d)", e.StatusCode, e.Message, e.Code)
	}
	msg := strings.TrimSpace(e.Body)
	if msg == "" {
		msg = "<empty body>"
	}
	if len(msg) > 2000 {
		msg = msg[:2000] + "..."
	}
	return fmt.Sprintf("whatsapp http %d: %s", e.StatusCode, msg)
}

func retryable(err error) bool {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.StatusCode == http.StatusTooManyRequests || he.StatusCode >= 500
	}
	var ne net.Error
	return errors.As(err, &ne)
}

func doJSON[T any](c *Client, ctx context.Context, payload any) (*T, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("whatsapp: encode request: %w", err)
	}

	backoff := c.backoff
	for attempt := 0; ; attempt++ {
		out, err := doJSONOnce[T](c, ctx, body)
		if err == nil {
			return out, nil
		}
		if !retryable(err) || attempt >= c.cfg.MaxRetries {
			return nil, err
		}

		c.log.Warn("WhatsApp request retrying",
			"attempt", attempt+1,
			"max_retries", c.cfg.MaxRetries,
			"sleep", backoff.String(),
			"error", err.Error(),
		)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}

func doJSONOnce[T any](c *Client, ctx context.Context, body []byte) (*T, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return nil, readErr
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		he := &HTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
		var ae apiError
		if json.Unmarshal(raw, &ae) == nil && ae.Error.Message != "" {
			he.Message = ae.Error.Message
			he.Code = ae.Error.Code
		}
		return nil, he
	}

	var out T
	if len(raw) == 0 {
		return &out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("whatsapp: decode response: %w", err)
	}
	return &out, nil
}
