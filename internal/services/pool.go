package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/ff-epl/internal/models"
	"github.com/stitts-dev/ff-epl/internal/players"
	"github.com/stitts-dev/ff-epl/internal/providers"
	"github.com/stitts-dev/ff-epl/pkg/metrics"
)

// ErrPoolNotLoaded is returned before the first successful refresh.
var ErrPoolNotLoaded = errors.New("player pool not loaded")

// PoolSource produces a fresh player pool.
type PoolSource interface {
	Name() string
	LoadPool(ctx context.Context) (*models.PlayerPool, error)
}

// FilePoolSource reads players.csv, optionally overlaying live availability.
type FilePoolSource struct {
	Path    string
	Options players.LoadOptions
	// Live, when set, supplies availability overrides on every load.
	Live providers.BootstrapFetcher
}

func (s *FilePoolSource) Name() string { return "file" }

func (s *FilePoolSource) LoadPool(ctx context.Context) (*models.PlayerPool, error) {
	pool, err := players.LoadFile(s.Path, s.Options)
	if err != nil {
		return nil, err
	}
	if s.Live == nil {
		return pool, nil
	}
	overrides, err := providers.LiveAvailability(ctx, s.Live)
	if err != nil {
		return nil, fmt.Errorf("live availability: %w", err)
	}
	pool, _ = players.ApplyAvailability(pool, overrides)
	return pool, nil
}

// LivePoolSource builds the pool from the FPL API on every load.
type LivePoolSource struct {
	Client  providers.BootstrapFetcher
	Options players.LoadOptions
}

func (s *LivePoolSource) Name() string { return "fpl" }

func (s *LivePoolSource) LoadPool(ctx context.Context) (*models.PlayerPool, error) {
	return providers.LivePool(ctx, s.Client, s.Options)
}

// PoolHolder keeps the current pool snapshot. Pools are immutable, so
// readers share the snapshot without copying.
type PoolHolder struct {
	source  PoolSource
	logger  *logrus.Entry
	metrics *metrics.Manager

	mu       sync.RWMutex
	pool     *models.PlayerPool
	loadedAt time.Time
}

func NewPoolHolder(source PoolSource, logger *logrus.Entry, m *metrics.Manager) *PoolHolder {
	return &PoolHolder{source: source, logger: logger, metrics: m}
}

// Current returns the snapshot and when it was loaded.
func (h *PoolHolder) Current() (*models.PlayerPool, time.Time, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.pool == nil {
		return nil, time.Time{}, ErrPoolNotLoaded
	}
	return h.pool, h.loadedAt, nil
}

// Set installs pool directly.
func (h *PoolHolder) Set(pool *models.PlayerPool) {
	h.mu.Lock()
	h.pool = pool
	h.loadedAt = time.Now()
	h.mu.Unlock()
	h.metrics.SetPoolSize(pool.Len())
}

// Refresh reloads from the source. On failure the previous snapshot stays.
func (h *PoolHolder) Refresh(ctx context.Context) error {
	start := time.Now()
	pool, err := h.source.LoadPool(ctx)
	if err != nil {
		h.metrics.RecordPoolRefresh("error")
		h.logger.WithField("source", h.source.Name()).WithError(err).Error("Failed to refresh player pool")
		return fmt.Errorf("refresh pool from %s: %w", h.source.Name(), err)
	}

	h.Set(pool)
	h.metrics.RecordPoolRefresh("success")
	h.logger.WithFields(logrus.Fields{
		"source":      h.source.Name(),
		"players":     pool.Len(),
		"fingerprint": pool.Fingerprint(),
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("Player pool refreshed")
	return nil
}
