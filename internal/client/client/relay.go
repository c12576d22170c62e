package client

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
	"unicode/utf8"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lumensanctum/sanctum/internal/client/models"
	"github.com/lumensanctum/sanctum/internal/logging"
)

const (
	classifyPath   = "/classify"
	tokenTTL       = time.Minute
	maxBodyBytes   = 4 << 20
	defaultTimeout = 30 * time.Second
	stubLatency    = 350 * time.Millisecond
)

// RelayClient classifies turns through the HTTP relay. In stub mode no
// request is made and every turn echoes back as a normal reply.
type RelayClient struct {
	baseURL    string
	secret     []byte
	stubMode   bool
	stubDelay  time.Duration
	httpClient *http.Client
	decoder    *OutcomeDecoder
	logger     logging.Logger
	now        func() time.Time
}

func NewRelayClient(baseURL, secret string, stubMode bool, logger logging.Logger) (*RelayClient, error) {
	decoder, err := NewOutcomeDecoder()
	if err != nil {
		return nil, err
	}
	if !stubMode && baseURL == "" {
		return nil, errors.New("relay URL is required unless stub mode is enabled")
	}
	return &RelayClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		secret:     []byte(secret),
		stubMode:   stubMode,
		stubDelay:  stubLatency,
		httpClient: &http.Client{Timeout: defaultTimeout},
		decoder:    decoder,
		logger:     logger.With("component", "relay"),
		now:        time.Now,
	}, nil
}

var _ Classifier = (*RelayClient)(nil)

func (c *RelayClient) Classify(ctx context.Context, req ClassifyRequest) (models.Outcome, error) {
	if c.stubMode {
		return c.stubClassify(ctx, req)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal classify request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+classifyPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create classify request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if req.APIKey != "" {
		httpReq.Header.Set("X-Provider-Key", req.APIKey)
	}
	if len(c.secret) > 0 {
		token, err := c.bearer(req.User.Username)
		if err != nil {
			return nil, fmt.Errorf("sign relay token: %w", err)
		}
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", ErrUnavailable, err)
	}

	if err := mapStatus(resp.StatusCode, payload); err != nil {
		c.logger.Warn(ctx, "relay rejected classification",
			"status", resp.StatusCode, "entity", req.Entity.ID)
		return nil, err
	}

	return c.decoder.Decode(payload)
}

func (c *RelayClient) bearer(username string) (string, error) {
	now := c.now()
	claims := jwt.RegisteredClaims{
		Subject:   username,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
}

// mapStatus converts a non-2xx relay status into one of the package errors.
func mapStatus(code int, body []byte) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return ErrUnauthorized
	case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests, code >= 500:
		return fmt.Errorf("%w: status %d", ErrUnavailable, code)
	default:
		return fmt.Errorf("relay returned status %d: %s", code, truncate(strings.TrimSpace(string(body)), maxErrorBody))
	}
}

const maxErrorBody = 200

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func (c *RelayClient) stubClassify(ctx context.Context, req ClassifyRequest) (models.Outcome, error) {
	if c.stubDelay > 0 {
		t := time.NewTimer(c.stubDelay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-t.C:
		}
	}

	var latest string
	for i := len(req.History) - 1; i >= 0; i-- {
		if req.History[i].Sender == models.SenderUser {
			latest = req.History[i].Content
			break
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "(%s) I receive you, %s. ", req.Entity.Name, req.User.Username)
	if req.Attachment != nil {
		b.WriteString("Attachment noted. ")
	}
	fmt.Fprintf(&b, "You said: %q. I am with you in this moment.", latest)

	confidence := 0.9
	return models.OutcomeOK{Response: b.String(), Confidence: &confidence}, nil
}
