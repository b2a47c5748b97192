package providers

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSummaries struct {
	mu    sync.Mutex
	calls []int
	fail  map[int]bool
}

func (f *fakeSummaries) ElementSummary(ctx context.Context, id int) (*ElementSummary, error) {
	f.mu.Lock()
	f.calls = append(f.calls, id)
	f.mu.Unlock()
	if f.fail[id] {
		return nil, errors.New("upstream error")
	}
	return &ElementSummary{HistoryPast: []SeasonHistory{{SeasonName: "2023/24", TotalPoints: id}}}, nil
}

func TestHistoryFetcher_PartialFailure(t *testing.T) {
	src := &fakeSummaries{fail: map[int]bool{3: true, 7: true}}
	var mu sync.Mutex
	stored := make(map[int]int)
	sink := func(id int, seasons []SeasonHistory) error {
		if id == 5 {
			return errors.New("disk full")
		}
		mu.Lock()
		stored[id] = seasons[0].TotalPoints
		mu.Unlock()
		return nil
	}

	ids := []int{1, 2, 3, 4, 5, 6, 7, 8}
	report := NewHistoryFetcher(src, 3, testLogger()).FetchAll(context.Background(), ids, sink)

	assert.Len(t, src.calls, len(ids), "every player is attempted")
	assert.Equal(t, 5, report.Stored)
	require.Len(t, report.Failures, 3)
	assert.Equal(t, []int{3, 5, 7}, []int{report.Failures[0].PlayerID, report.Failures[1].PlayerID, report.Failures[2].PlayerID})
	assert.Equal(t, "player 5: disk full", report.Failures[1].Error())
	assert.Equal(t, 8, stored[8])
}

func TestHistoryFetcher_Cancelled(t *testing.T) {
	src := &fakeSummaries{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := NewHistoryFetcher(src, 0, testLogger()).FetchAll(ctx, []int{1, 2}, func(int, []SeasonHistory) error { return nil })
	assert.Empty(t, src.calls)
	require.Len(t, report.Failures, 2)
	assert.ErrorIs(t, report.Failures[0].Err, context.Canceled)
}
