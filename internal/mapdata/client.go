package mapdata

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

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"refillplan/internal/metrics"
	"refillplan/internal/model"
)

// Client talks to the game service. Every outgoing request waits on the
// rate limiter; map and general data are cached when a Cache is set.
type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
	Limiter *rate.Limiter
	Cache   Cache
	TTL     time.Duration
	Logger  *zap.Logger
}

func NewClient(baseURL, apiKey string, rps float64, burst int) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
		Limiter: rate.NewLimiter(rate.Limit(rps), burst),
		TTL:     10 * time.Minute,
		Logger:  zap.NewNop(),
	}
}

func (c *Client) MapData(ctx context.Context, mapName string) (model.MapData, error) {
	var md model.MapData
	q := url.Values{"mapName": {mapName}}
	if err := c.getCached(ctx, "map:"+mapName, "/api/game/getmapdata?"+q.Encode(), &md); err != nil {
		return model.MapData{}, err
	}
	normalize(&md)
	return md, nil
}

func (c *Client) GeneralData(ctx context.Context) (model.GeneralData, error) {
	var gd model.GeneralData
	if err := c.getCached(ctx, "general", "/api/game/getgeneralgamedata", &gd); err != nil {
		return model.GeneralData{}, err
	}
	return gd, nil
}

// Submit posts sol for mapName and returns the service's scored solution.
func (c *Client) Submit(ctx context.Context, mapName string, sol model.Solution) (model.ScoredSolution, error) {
	body, err := json.Marshal(model.SubmitSolution{Locations: sol})
	if err != nil {
		return model.ScoredSolution{}, err
	}
	q := url.Values{"mapName": {mapName}}
	b, err := c.do(ctx, http.MethodPost, "/api/game/submit?"+q.Encode(), body)
	if err != nil {
		return model.ScoredSolution{}, err
	}
	var out model.ScoredSolution
	if err := json.Unmarshal(b, &out); err != nil {
		return model.ScoredSolution{}, fmt.Errorf("mapdata: decoding submit response: %w", err)
	}
	return out, nil
}

func (c *Client) getCached(ctx context.Context, key, path string, v any) error {
	log := c.logger()
	if c.Cache != nil {
		b, ok, err := c.Cache.Get(ctx, key)
		if err != nil {
			log.Warn("map data cache read failed", zap.String("key", key), zap.Error(err))
		}
		if ok {
			if err := json.Unmarshal(b, v); err == nil {
				metrics.MapFetches.WithLabelValues("cache", "hit").Inc()
				return nil
			}
		}
	}
	b, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		metrics.MapFetches.WithLabelValues("remote", "error").Inc()
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		metrics.MapFetches.WithLabelValues("remote", "error").Inc()
		return fmt.Errorf("mapdata: decoding %s: %w", key, err)
	}
	metrics.MapFetches.WithLabelValues("remote", "ok").Inc()
	if c.Cache != nil {
		if err := c.Cache.Set(ctx, key, b, c.TTL); err != nil {
			log.Warn("map data cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rd)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.APIKey != "" {
		req.Header.Set("x-api-key", c.APIKey)
	}
	hc := c.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}
	start := time.Now()
	resp, err := hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	c.logger().Debug("game service call",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)))
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrMapNotFound, path)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("mapdata: %s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(b)))
	}
	return b, nil
}

func (c *Client) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}
