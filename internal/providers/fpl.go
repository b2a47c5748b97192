// Package providers sources player data from the Fantasy Premier League API.
package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/stitts-dev/ff-epl/pkg/metrics"
)

const DefaultBaseURL = "https://fantasy.premierleague.com/api"

// ClientConfig configures the FPL client.
type ClientConfig struct {
	BaseURL          string
	RequestsPerSec   float64
	Timeout          time.Duration
	BreakerThreshold int
	UserAgent        string
}

// FPLClient talks to the public FPL API. Requests are rate limited and wrapped
// in a circuit breaker so a flapping upstream fails fast.
type FPLClient struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	logger     *logrus.Entry
	metrics    *metrics.Manager
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Endpoint   string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fpl api %s returned status %d", e.Endpoint, e.StatusCode)
}

func NewFPLClient(cfg ClientConfig, logger *logrus.Entry, m *metrics.Manager) *FPLClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.RequestsPerSec <= 0 {
		cfg.RequestsPerSec = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.BreakerThreshold <= 0 {
		cfg.BreakerThreshold = 5
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "ff-epl/1.0"
	}

	settings := gobreaker.Settings{
		Name:        "fpl-api",
		MaxRequests: uint32(cfg.BreakerThreshold),
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		// a 404 for one player is an answer, not an outage
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			se, ok := err.(*StatusError)
			return ok && se.StatusCode == http.StatusNotFound
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"component": "circuit_breaker",
				"service":   name,
				"from":      from.String(),
				"to":        to.String(),
			}).Info("Circuit breaker state changed")
		},
	}

	burst := int(cfg.RequestsPerSec)
	if burst < 1 {
		burst = 1
	}

	return &FPLClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		userAgent:  cfg.UserAgent,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), burst),
		breaker:    gobreaker.NewCircuitBreaker(settings),
		logger:     logger,
		metrics:    m,
	}
}

// BreakerState reports the circuit breaker state.
func (c *FPLClient) BreakerState() gobreaker.State {
	return c.breaker.State()
}

// Bootstrap fetches bootstrap-static: every player, team and position.
func (c *FPLClient) Bootstrap(ctx context.Context) (*BootstrapStatic, error) {
	var out BootstrapStatic
	if err := c.get(ctx, "bootstrap", "bootstrap-static/", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ElementSummary fetches one player's fixtures and past seasons.
func (c *FPLClient) ElementSummary(ctx context.Context, playerID int) (*ElementSummary, error) {
	var out ElementSummary
	if err := c.get(ctx, "element_summary", fmt.Sprintf("element-summary/%d/", playerID), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *FPLClient) get(ctx context.Context, label, endpoint string, dest interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		c.metrics.RecordFetch(label, "cancelled")
		return fmt.Errorf("rate limiter: %w", err)
	}

	start := time.Now()
	_, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", c.userAgent)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			io.Copy(io.Discard, resp.Body)
			return nil, &StatusError{Endpoint: endpoint, StatusCode: resp.StatusCode}
		}
		if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
			return nil, fmt.Errorf("decode %s: %w", endpoint, err)
		}
		return nil, nil
	})

	fields := logrus.Fields{
		"endpoint":    endpoint,
		"duration_ms": time.Since(start).Milliseconds(),
	}
	if err != nil {
		c.metrics.RecordFetch(label, "error")
		c.logger.WithFields(fields).WithError(err).Warn("FPL request failed")
		return fmt.Errorf("fetch %s: %w", endpoint, err)
	}
	c.metrics.RecordFetch(label, "success")
	c.logger.WithFields(fields).Debug("FPL request completed")
	return nil
}
