package providers

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
)

// SummaryFetcher is the part of FPLClient the history workers need.
type SummaryFetcher interface {
	ElementSummary(ctx context.Context, playerID int) (*ElementSummary, error)
}

// HistorySink receives each player's past seasons. It is called from worker
// goroutines and must be safe for concurrent use.
type HistorySink func(playerID int, seasons []SeasonHistory) error

// HistoryFailure records one player whose history could not be fetched or
// stored.
type HistoryFailure struct {
	PlayerID int
	Err      error
}

func (f HistoryFailure) Error() string {
	return fmt.Sprintf("player %d: %v", f.PlayerID, f.Err)
}

// HistoryReport summarises a batch. Failures never abort the batch.
type HistoryReport struct {
	Requested int
	Stored    int
	Empty     int
	Failures  []HistoryFailure
}

type historyResult struct {
	playerID int
	empty    bool
	err      error
}

// HistoryFetcher fetches per-player history with a bounded worker pool.
type HistoryFetcher struct {
	source  SummaryFetcher
	workers int
	logger  *logrus.Entry
}

// NewHistoryFetcher uses runtime.NumCPU workers when workers is not positive.
func NewHistoryFetcher(source SummaryFetcher, workers int, logger *logrus.Entry) *HistoryFetcher {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &HistoryFetcher{source: source, workers: workers, logger: logger}
}

// FetchAll fetches every id and hands non-empty histories to sink. Players
// with no past seasons are skipped. A cancelled ctx stops queueing; players
// not yet fetched are reported as failures.
func (h *HistoryFetcher) FetchAll(ctx context.Context, playerIDs []int, sink HistorySink) *HistoryReport {
	idsChan := make(chan int, len(playerIDs))
	resultsChan := make(chan historyResult, len(playerIDs))

	var wg sync.WaitGroup
	for w := 0; w < h.workers; w++ {
		wg.Add(1)
		go h.worker(ctx, idsChan, resultsChan, sink, &wg)
	}

	for _, id := range playerIDs {
		idsChan <- id
	}
	close(idsChan)

	wg.Wait()
	close(resultsChan)

	report := &HistoryReport{Requested: len(playerIDs)}
	for res := range resultsChan {
		switch {
		case res.err != nil:
			report.Failures = append(report.Failures, HistoryFailure{PlayerID: res.playerID, Err: res.err})
		case res.empty:
			report.Empty++
		default:
			report.Stored++
		}
	}
	sort.Slice(report.Failures, func(i, j int) bool {
		return report.Failures[i].PlayerID < report.Failures[j].PlayerID
	})

	h.logger.WithFields(logrus.Fields{
		"requested": report.Requested,
		"stored":    report.Stored,
		"empty":     report.Empty,
		"failed":    len(report.Failures),
	}).Info("Player history fetch completed")
	return report
}

func (h *HistoryFetcher) worker(ctx context.Context, ids <-chan int, results chan<- historyResult, sink HistorySink, wg *sync.WaitGroup) {
	defer wg.Done()

	for id := range ids {
		if err := ctx.Err(); err != nil {
			results <- historyResult{playerID: id, err: err}
			continue
		}

		summary, err := h.source.ElementSummary(ctx, id)
		if err != nil {
			h.logger.WithField("player_id", id).WithError(err).Warn("Failed to fetch player history")
			results <- historyResult{playerID: id, err: err}
			continue
		}
		if len(summary.HistoryPast) == 0 {
			results <- historyResult{playerID: id, empty: true}
			continue
		}
		if err := sink(id, summary.HistoryPast); err != nil {
			h.logger.WithField("player_id", id).WithError(err).Warn("Failed to store player history")
			results <- historyResult{playerID: id, err: err}
			continue
		}
		results <- historyResult{playerID: id}
	}
}
