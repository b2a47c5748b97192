package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/stitts-dev/ff-epl/internal/models"
	"github.com/stitts-dev/ff-epl/internal/optimizer"
)

// ErrRunNotFound is returned when no run has the requested ID.
var ErrRunNotFound = errors.New("optimisation run not found")

// RunStore persists run summaries with gorm.
type RunStore struct {
	db     *gorm.DB
	logger *logrus.Entry
}

func NewRunStore(db *gorm.DB, logger *logrus.Entry) *RunStore {
	return &RunStore{db: db, logger: logger}
}

// Migrate creates the runs table.
func (s *RunStore) Migrate() error {
	return s.db.AutoMigrate(&models.OptimisationRun{})
}

// RunRecord summarises a run that reached at least the Solved state.
func RunRecord(run *optimizer.Run) (*models.OptimisationRun, error) {
	if run.Model == nil || run.Result == nil {
		return nil, fmt.Errorf("run %s has not been solved", run.ID)
	}

	rec := &models.OptimisationRun{
		ID:              run.ID,
		Metric:          run.Metric,
		Solver:          run.Solver,
		Status:          run.Result.Status.String(),
		PoolSize:        run.Model.Pool.Len(),
		PoolFingerprint: run.Model.Pool.Fingerprint(),
		NodesExplored:   run.Result.Nodes,
		DurationMs:      run.Duration().Milliseconds(),
		CreatedAt:       run.StartedAt,
	}

	players := []models.PlayerRecord{}
	if run.Roster != nil {
		rec.Status = run.Roster.Status
		rec.Feasible = run.Roster.Feasible
		rec.TotalCost = run.Roster.TotalCost
		rec.TotalMetric = run.Roster.TotalMetric
		rec.BenchReserve = run.Roster.BenchReserve
		players = run.Roster.Players
	}

	playersJSON, err := json.Marshal(players)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal roster players: %w", err)
	}
	rulesJSON, err := json.Marshal(run.Model.Rules)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal rules: %w", err)
	}
	rec.Players = datatypes.JSON(playersJSON)
	rec.Rules = datatypes.JSON(rulesJSON)
	return rec, nil
}

// Save stores the summary of run.
func (s *RunStore) Save(ctx context.Context, run *optimizer.Run) (*models.OptimisationRun, error) {
	rec, err := RunRecord(run)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return nil, fmt.Errorf("failed to save run %s: %w", run.ID, err)
	}

	s.logger.WithFields(logrus.Fields{
		"run_id": rec.ID,
		"status": rec.Status,
	}).Debug("Saved optimisation run")
	return rec, nil
}

// Get loads one run.
func (s *RunStore) Get(ctx context.Context, id string) (*models.OptimisationRun, error) {
	var rec models.OptimisationRun
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", id, err)
	}
	return &rec, nil
}

// RunFilter narrows List.
type RunFilter struct {
	Metric       string
	FeasibleOnly bool
	Limit        int
	Offset       int
}

// List returns runs newest first together with the unpaged total.
func (s *RunStore) List(ctx context.Context, f RunFilter) ([]models.OptimisationRun, int64, error) {
	filter := func(db *gorm.DB) *gorm.DB {
		if f.Metric != "" {
			db = db.Where("metric = ?", f.Metric)
		}
		if f.FeasibleOnly {
			db = db.Where("feasible = ?", true)
		}
		return db
	}

	var total int64
	if err := s.db.WithContext(ctx).Model(&models.OptimisationRun{}).Scopes(filter).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count runs: %w", err)
	}

	switch {
	case f.Limit <= 0:
		f.Limit = 20
	case f.Limit > 100:
		f.Limit = 100
	}
	var runs []models.OptimisationRun
	err := s.db.WithContext(ctx).Scopes(filter).
		Order("created_at DESC").Limit(f.Limit).Offset(f.Offset).
		Find(&runs).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, total, nil
}
