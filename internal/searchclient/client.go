// Package searchclient talks to the external flight search service.
package searchclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dharmasatrya/flightsearch-web/internal/models"
)

const DefaultPath = "/api/flights/search"

// maxErrorBody caps how much of a failed response is read looking for a message.
const maxErrorBody = 64 << 10

type Config struct {
	BaseURL string
	Path    string
	Timeout time.Duration
}

type Client struct {
	endpoint   string
	httpClient *http.Client
	logger     *zap.Logger
}

func New(cfg Config, logger *zap.Logger) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("searchclient: base URL is required")
	}
	path := cfg.Path
	if path == "" {
		path = DefaultPath
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		endpoint:   base + path,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}, nil
}

func (c *Client) Endpoint() string {
	return c.endpoint
}

// Search posts q to the service exactly once and decodes the offer list.
func (c *Client) Search(ctx context.Context, q models.Query) ([]models.FlightOffer, error) {
	body, err := json.Marshal(q.Request())
	if err != nil {
		return nil, fmt.Errorf("encode search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("flight search request failed",
			zap.String("endpoint", c.endpoint),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return nil, &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		serr := &ServiceError{StatusCode: resp.StatusCode, Message: readMessage(resp.Body)}
		c.logger.Warn("flight search service error",
			zap.Int("status", resp.StatusCode),
			zap.String("message", serr.Message),
			zap.Duration("elapsed", time.Since(start)))
		return nil, serr
	}

	var offers []models.FlightOffer
	if err := json.NewDecoder(resp.Body).Decode(&offers); err != nil {
		c.logger.Warn("flight search response undecodable", zap.Error(err))
		return nil, &ServiceError{StatusCode: resp.StatusCode, Err: fmt.Errorf("decode offers: %w", err)}
	}
	if offers == nil {
		offers = []models.FlightOffer{}
	}

	c.logger.Info("flight search completed",
		zap.String("from", q.Origin),
		zap.String("to", q.Destination),
		zap.Int("results", len(offers)),
		zap.Duration("elapsed", time.Since(start)))

	return offers, nil
}

func readMessage(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil || len(data) == 0 {
		return ""
	}
	var body models.ServiceErrorBody
	if err := json.Unmarshal(data, &body); err != nil {
		return ""
	}
	return strings.TrimSpace(body.Message)
}
