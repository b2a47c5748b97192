package providers

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/ff-epl/internal/models"
	"github.com/stitts-dev/ff-epl/internal/players"
)

// BootstrapFetcher is the part of FPLClient that lists players.
type BootstrapFetcher interface {
	Bootstrap(ctx context.Context) (*BootstrapStatic, error)
}

// LivePool builds a pool straight from bootstrap-static, with availability
// taken from each player's status.
func LivePool(ctx context.Context, src BootstrapFetcher, opts players.LoadOptions) (*models.PlayerPool, error) {
	data, err := src.Bootstrap(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := data.PlayerRows()
	if err != nil {
		return nil, err
	}
	pool, err := players.FromRows(PlayersHeader, rows, opts)
	if err != nil {
		return nil, err
	}
	pool, _ = players.ApplyAvailability(pool, data.Availability())
	return pool, nil
}

// LiveAvailability fetches the current availability of every player.
func LiveAvailability(ctx context.Context, src BootstrapFetcher) (map[string]bool, error) {
	data, err := src.Bootstrap(ctx)
	if err != nil {
		return nil, err
	}
	return data.Availability(), nil
}

// SyncOptions controls a full data refresh.
type SyncOptions struct {
	DataDir string
	// Force wipes existing CSVs first; without it an existing players.csv
	// is an error.
	Force bool
	// SkipHistory fetches players.csv only.
	SkipHistory bool
	Workers     int
}

// SyncResult describes what a refresh wrote.
type SyncResult struct {
	PlayersPath string
	Players     int
	Removed     int
	History     *HistoryReport
}

// ErrDataExists is returned when the data directory already holds players.csv
// and Force is not set.
var ErrDataExists = errors.New(PlayersFile + " already exists")

// Sync writes players.csv and one p_<id>.csv per player with history.
func Sync(ctx context.Context, client *FPLClient, opts SyncOptions, logger *logrus.Entry) (*SyncResult, error) {
	if err := os.MkdirAll(opts.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	result := &SyncResult{}
	if _, err := os.Stat(filepath.Join(opts.DataDir, PlayersFile)); err == nil {
		if !opts.Force {
			return nil, ErrDataExists
		}
		removed, err := CleanDataDir(opts.DataDir)
		if err != nil {
			return nil, err
		}
		result.Removed = removed
		logger.WithField("removed", removed).Info("Cleared existing data files")
	}

	data, err := client.Bootstrap(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := data.PlayerRows()
	if err != nil {
		return nil, err
	}
	path, err := WritePlayersCSV(opts.DataDir, rows)
	if err != nil {
		return nil, err
	}
	result.PlayersPath = path
	result.Players = len(rows)
	logger.WithFields(logrus.Fields{"path": path, "players": len(rows)}).Info("Wrote player data")

	if opts.SkipHistory {
		return result, nil
	}
	result.History = NewHistoryFetcher(client, opts.Workers, logger).
		FetchAll(ctx, data.PlayerIDs(), CSVHistorySink(opts.DataDir))
	return result, nil
}

