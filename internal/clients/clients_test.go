package clients

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caraudio-league/points-engine/internal/config"
	"github.com/caraudio-league/points-engine/internal/logger"
	"github.com/caraudio-league/points-engine/internal/models"
)

func fastConfig() HTTPClientConfig {
	return HTTPClientConfig{
		Timeout:           2 * time.Second,
		MaxRetries:        1,
		RetryWaitMin:      time.Millisecond,
		RetryWaitMax:      2 * time.Millisecond,
		RateLimit:         0,
		CircuitBreakerMax: 2,
		CircuitCooldown:   time.Minute,
	}
}

func TestImageClient_GenerateBadge(t *testing.T) {
	recipientID := uuid.New()
	var got models.BadgeRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/badges", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(map[string]string{"image_url": "https://cdn.example.com/b.png"})
	}))
	defer server.Close()

	client := NewImageClient(NewRateLimitedHTTPClient(fastConfig(), logger.NewNopLogger()), server.URL+"/", "secret", logger.NewNopLogger())
	url, err := client.GenerateBadge(context.Background(), models.BadgeRequest{
		RecipientID: recipientID,
		TemplateKey: "headrest",
		Value:       "150",
	})

	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/b.png", url)
	assert.Equal(t, recipientID, got.RecipientID)
	assert.Equal(t, "150", got.Value)
}

func TestImageClient_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"client error", http.StatusUnprocessableEntity, "unknown template", "422: unknown template"},
		{"empty url", http.StatusOK, `{"image_url":""}`, "no image url"},
		{"bad json", http.StatusOK, `not json`, "decode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := NewImageClient(NewRateLimitedHTTPClient(fastConfig(), logger.NewNopLogger()), server.URL, "", logger.NewNopLogger())
			_, err := client.GenerateBadge(context.Background(), models.BadgeRequest{TemplateKey: "x"})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRateLimitedHTTPClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewRateLimitedHTTPClient(fastConfig(), logger.NewNopLogger())
	resp, err := client.Post(context.Background(), server.URL, "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(2), calls.Load())
}

func TestRateLimitedHTTPClient_CircuitBreaker(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	cfg := fastConfig()
	cfg.MaxRetries = 0
	client := NewRateLimitedHTTPClient(cfg, logger.NewNopLogger())
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	client.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		_, err := client.Post(context.Background(), server.URL, "application/json", nil)
		require.Error(t, err)
	}
	assert.True(t, client.IsOpen())

	_, err := client.Post(context.Background(), server.URL, "application/json", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circuit breaker open")
	assert.Equal(t, int32(2), calls.Load())

	// after the cooldown one request is let through
	now = now.Add(2 * time.Minute)
	assert.False(t, client.IsOpen())
	_, _ = client.Post(context.Background(), server.URL, "application/json", nil)
	assert.Equal(t, int32(3), calls.Load())
}

func TestHTTPClientConfigFrom(t *testing.T) {
	cfg := HTTPClientConfigFrom(config.ImageServiceConfig{RequestTimeoutSeconds: 3, RetryAttempts: 7, RequestsPerSecond: 1.5})
	assert.Equal(t, 3*time.Second, cfg.Timeout)
	assert.Equal(t, 7, cfg.MaxRetries)
	assert.Equal(t, 1.5, cfg.RateLimit)

	defaults := HTTPClientConfigFrom(config.ImageServiceConfig{})
	assert.Equal(t, DefaultHTTPClientConfig(), defaults)
}

type fakeDeleter struct {
	keys []string
	err  error
}

func (f *fakeDeleter) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.keys = append(f.keys, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, f.err
}

func TestS3ImageStore_DeleteImage(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantKey string
	}{
		{"public base url", "https://cdn.example.com/badges/abc.png", "badges/abc.png"},
		{"path style url", "https://storage.example.com/achievements/badges/abc.png", "badges/abc.png"},
		{"virtual host url", "https://achievements.s3.amazonaws.com/badges/abc.png", "badges/abc.png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deleter := &fakeDeleter{}
			store := newS3ImageStore(deleter, "achievements", "https://cdn.example.com/")

			require.NoError(t, store.DeleteImage(context.Background(), tt.url))
			assert.Equal(t, []string{tt.wantKey}, deleter.keys)
		})
	}
}

func TestS3ImageStore_DeleteImageErrors(t *testing.T) {
	deleter := &fakeDeleter{err: errors.New("access denied")}
	store := newS3ImageStore(deleter, "achievements", "")

	err := store.DeleteImage(context.Background(), "https://storage.example.com/achievements/badges/abc.png")
	assert.ErrorContains(t, err, "access denied")

	err = store.DeleteImage(context.Background(), "https://storage.example.com/")
	assert.ErrorContains(t, err, "no object key")
}
