package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/caraudio-league/points-engine/internal/models"
)

const maxErrorBody = 512

// ImageClient asks the badge rendering service to produce achievement images
type ImageClient struct {
	http    *RateLimitedHTTPClient
	baseURL string
	apiKey  string
	logger  *logrus.Logger
}

type badgeResponse struct {
	ImageURL string `json:"image_url"`
}

// NewImageClient creates a new image client
func NewImageClient(httpClient *RateLimitedHTTPClient, baseURL, apiKey string, logger *logrus.Logger) *ImageClient {
	return &ImageClient{
		http:    httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		logger:  logger,
	}
}

// GenerateBadge renders one recipient's badge and returns its public URL
func (c *ImageClient) GenerateBadge(ctx context.Context, badge models.BadgeRequest) (string, error) {
	body, err := json.Marshal(badge)
	if err != nil {
		return "", fmt.Errorf("failed to encode badge request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/badges", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return "", fmt.Errorf("badge request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", fmt.Errorf("badge service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var out badgeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode badge response: %w", err)
	}
	if out.ImageURL == "" {
		return "", fmt.Errorf("badge service returned no image url")
	}

	c.logger.WithFields(logrus.Fields{
		"recipient_id": badge.RecipientID,
		"template":     badge.TemplateKey,
	}).Debug("Badge image generated")
	return out.ImageURL, nil
}
