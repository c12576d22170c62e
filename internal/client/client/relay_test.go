package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lumensanctum/sanctum/internal/client/models"
	"github.com/lumensanctum/sanctum/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRequest() ClassifyRequest {
	u := &models.User{
		Username:           "kora",
		Role:               models.RoleUser,
		Subscription:       models.TierFree,
		AccessibleEntities: []string{"ent-001"},
		Strikes:            1,
		AppAPIKey:          "app-key",
	}
	e := models.Entity{ID: "ent-001", Name: "Kora", Status: models.StatusOnline}
	history := []models.ChatMessage{
		{ID: "1", Sender: models.SenderUser, Content: "hello there"},
		{ID: "2", Sender: "Kora", Content: "hi"},
		{ID: "3", Sender: models.SenderUser, Content: "how are you"},
	}
	return NewClassifyRequest(u, e, history, true, nil)
}

func newTestRelay(t *testing.T, url, secret string) *RelayClient {
	t.Helper()
	c, err := NewRelayClient(url, secret, false, logging.Discard())
	require.NoError(t, err)
	return c
}

func TestNewClassifyRequest_OmitsCredentials(t *testing.T) {
	req := sampleRequest()
	assert.Equal(t, "app-key", req.APIKey)

	raw, err := json.Marshal(req)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "app-key")
	assert.Contains(t, string(raw), `"lastTurnWasStrike":true`)
	assert.Contains(t, string(raw), `"strikes":1`)
}

func TestRelayClient_Classify_OK(t *testing.T) {
	var gotPath, gotKey, gotAuth string
	var gotBody ClassifyRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("X-Provider-Key")
		gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"response":"I am here","confidence":0.75}`))
	}))
	defer srv.Close()

	c := newTestRelay(t, srv.URL+"/", "")
	out, err := c.Classify(context.Background(), sampleRequest())
	require.NoError(t, err)

	ok, isOK := out.(models.OutcomeOK)
	require.True(t, isOK, "got %T", out)
	assert.Equal(t, "I am here", ok.Response)
	require.NotNil(t, ok.Confidence)
	assert.InDelta(t, 0.75, *ok.Confidence, 1e-9)

	assert.Equal(t, "/classify", gotPath)
	assert.Equal(t, "app-key", gotKey)
	assert.Empty(t, gotAuth)
	assert.Equal(t, "kora", gotBody.User.Username)
	assert.Len(t, gotBody.History, 3)
}

func TestRelayClient_Classify_BearerToken(t *testing.T) {
	const secret = "relay-secret"
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"response":"ok"}`))
	}))
	defer srv.Close()

	c := newTestRelay(t, srv.URL, secret)
	_, err := c.Classify(context.Background(), sampleRequest())
	require.NoError(t, err)

	require.True(t, strings.HasPrefix(gotAuth, "Bearer "))
	claims := &jwt.RegisteredClaims{}
	tok, err := jwt.ParseWithClaims(strings.TrimPrefix(gotAuth, "Bearer "), claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	require.NoError(t, err)
	assert.True(t, tok.Valid)
	assert.Equal(t, "kora", claims.Subject)
	require.NotNil(t, claims.ExpiresAt)
	require.NotNil(t, claims.IssuedAt)
	assert.Equal(t, time.Minute, claims.ExpiresAt.Sub(claims.IssuedAt.Time))
}

func TestRelayClient_Classify_Variants(t *testing.T) {
	tests := []struct {
		name string
		body string
		want models.Outcome
	}{
		{
			name: "consent violation",
			body: `{"guidance":"Please step back.","consentViolation":true}`,
			want: models.OutcomeConsentViolation{Guidance: "Please step back."},
		},
		{
			name: "tampering",
			body: `{"suspectedTampering":true}`,
			want: models.OutcomeSuspectedTampering{},
		},
		{
			name: "tampering beats violation",
			body: `{"guidance":"x","consentViolation":true,"suspectedTampering":true}`,
			want: models.OutcomeSuspectedTampering{},
		},
		{
			name: "false violation flag with response is ok",
			body: `{"response":"fine","consentViolation":false}`,
			want: models.OutcomeOK{Response: "fine"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			got, err := newTestRelay(t, srv.URL, "").Classify(context.Background(), sampleRequest())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRelayClient_Classify_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"unauthorized", http.StatusUnauthorized, `{}`, ErrUnauthorized},
		{"forbidden", http.StatusForbidden, `{}`, ErrUnauthorized},
		{"server error", http.StatusBadGateway, `oops`, ErrUnavailable},
		{"rate limited", http.StatusTooManyRequests, ``, ErrUnavailable},
		{"not json", http.StatusOK, `<html>`, ErrInvalidResponse},
		{"no variant", http.StatusOK, `{"confidence":0.5}`, ErrInvalidResponse},
		{"false flags only", http.StatusOK, `{"consentViolation":false}`, ErrInvalidResponse},
		{"bad confidence type", http.StatusOK, `{"response":"x","confidence":"high"}`, ErrInvalidResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			got, err := newTestRelay(t, srv.URL, "").Classify(context.Background(), sampleRequest())
			require.Error(t, err)
			assert.Nil(t, got)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestRelayClient_Classify_OtherStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("missing entity"))
	}))
	defer srv.Close()

	_, err := newTestRelay(t, srv.URL, "").Classify(context.Background(), sampleRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
	assert.Contains(t, err.Error(), "missing entity")
	assert.False(t, errors.Is(err, ErrUnavailable))
}

func TestRelayClient_Classify_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := newTestRelay(t, url, "").Classify(context.Background(), sampleRequest())
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestNewRelayClient_RequiresURL(t *testing.T) {
	_, err := NewRelayClient("", "", false, logging.Discard())
	require.Error(t, err)

	_, err = NewRelayClient("", "", true, logging.Discard())
	require.NoError(t, err)
}

func TestRelayClient_Stub(t *testing.T) {
	c, err := NewRelayClient("", "", true, logging.Discard())
	require.NoError(t, err)
	c.stubDelay = 0

	out, err := c.Classify(context.Background(), sampleRequest())
	require.NoError(t, err)
	ok, isOK := out.(models.OutcomeOK)
	require.True(t, isOK)
	assert.Equal(t, `(Kora) I receive you, kora. You said: "how are you". I am with you in this moment.`, ok.Response)

	req := sampleRequest()
	req.Attachment = &models.Attachment{Name: "a.png"}
	out, err = c.Classify(context.Background(), req)
	require.NoError(t, err)
	assert.Contains(t, out.(models.OutcomeOK).Response, "Attachment noted.")
}

func TestRelayClient_StubHonoursContext(t *testing.T) {
	c, err := NewRelayClient("", "", true, logging.Discard())
	require.NoError(t, err)
	c.stubDelay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Classify(ctx, sampleRequest())
	require.ErrorIs(t, err, context.Canceled)
}

func TestMapStatus_LongBodyKeepsRunesWhole(t *testing.T) {
	body := strings.Repeat("a", maxErrorBody-1) + "é" + strings.Repeat("b", 50)

	err := mapStatus(http.StatusBadRequest, []byte(body))
	require.Error(t, err)
	assert.True(t, utf8.ValidString(err.Error()))
	assert.True(t, strings.HasSuffix(err.Error(), ": "+strings.Repeat("a", maxErrorBody-1)))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "ab", truncate("abcd", 2))
	assert.Equal(t, "", truncate("日本", 2))
	assert.Equal(t, "日", truncate("日本", 4))
}
