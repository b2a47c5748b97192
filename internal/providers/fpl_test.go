package providers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stitts-dev/ff-epl/internal/models"
	"github.com/stitts-dev/ff-epl/internal/players"
)

const bootstrapJSON = `{
  "teams": [
    {"id": 1, "code": 3, "name": "Arsenal", "short_name": "ARS"},
    {"id": 2, "code": 14, "name": "Liverpool", "short_name": "LIV"}
  ],
  "element_types": [
    {"id": 1, "singular_name_short": "GKP"},
    {"id": 2, "singular_name_short": "DEF"},
    {"id": 3, "singular_name_short": "MID"},
    {"id": 4, "singular_name_short": "FWD"}
  ],
  "elements": [
    {"id": 2, "first_name": "William", "second_name": "Saliba", "web_name": "Saliba", "team_code": 3, "element_type": 2, "now_cost": 60, "status": "a", "total_points": 140, "form": "5.0", "points_per_game": "4.1", "ict_index": "80.2", "selected_by_percent": "30.5"},
    {"id": 1, "first_name": "David", "second_name": "Raya", "web_name": "Raya", "team_code": 3, "element_type": 1, "now_cost": 55, "status": "a", "total_points": 120, "form": "", "points_per_game": "3.5", "ict_index": "40.0", "selected_by_percent": "12.0"},
    {"id": 3, "first_name": "Mohamed", "second_name": "Salah", "web_name": "M.Salah", "team_code": 14, "element_type": 3, "now_cost": 125, "status": "d", "chance_of_playing_next_round": 25, "total_points": 210, "form": "8.1", "points_per_game": "7.0", "ict_index": "200.1", "selected_by_percent": "55.0"},
    {"id": 4, "first_name": "Darwin", "second_name": "Nunez", "web_name": "Nunez", "team_code": 14, "element_type": 4, "now_cost": 75, "status": "d", "chance_of_playing_next_round": 75, "total_points": 90, "form": "3.0", "points_per_game": "3.2", "ict_index": "90.0", "selected_by_percent": "8.0"}
  ]
}`

const historyJSON = `{"history_past": [
  {"season_name": "2022/23", "element_code": 1001, "start_cost": 50, "end_cost": 52, "total_points": 100, "minutes": 3000, "influence": "500.0", "creativity": "10.0", "threat": "0.0", "ict_index": "51.0"}
]}`

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func newFPLServer(t *testing.T) (*httptest.Server, *int32) {
	t.Helper()
	var requests int32
	mux := http.NewServeMux()
	mux.HandleFunc("/bootstrap-static/", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, bootstrapJSON)
	})
	mux.HandleFunc("/element-summary/", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		switch strings.TrimPrefix(r.URL.Path, "/element-summary/") {
		case "1/", "4/":
			io.WriteString(w, historyJSON)
		case "2/":
			io.WriteString(w, `{"history_past": []}`)
		default:
			http.NotFound(w, r)
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &requests
}

func newTestClient(baseURL string) *FPLClient {
	return NewFPLClient(ClientConfig{BaseURL: baseURL, RequestsPerSec: 1000}, testLogger(), nil)
}

func TestFPLClient_Bootstrap(t *testing.T) {
	srv, _ := newFPLServer(t)
	data, err := newTestClient(srv.URL).Bootstrap(context.Background())
	require.NoError(t, err)

	require.Len(t, data.Elements, 4)
	assert.Equal(t, []int{1, 2, 3, 4}, data.PlayerIDs())

	rows, err := data.PlayerRows()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, len(PlayersHeader), len(rows[0]))
	assert.Equal(t, []string{"1", "David", "Raya", "Raya", "55", "Arsenal", "ARS", "GKP", "a"}, rows[0][:9])
	assert.Equal(t, "0", rows[0][11], "blank form is loadable as zero")
	assert.Equal(t, "LIV", rows[2][6])
}

func TestFPLClient_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Bootstrap(context.Background())
	var serr *StatusError
	require.True(t, errors.As(err, &serr), "got %v", err)
	assert.Equal(t, http.StatusServiceUnavailable, serr.StatusCode)
}

func TestFPLClient_BreakerOpens(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	for i := 0; i < 5; i++ {
		_, err := client.Bootstrap(context.Background())
		require.Error(t, err)
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits), "the breaker opens after three failures")
	assert.Equal(t, "open", client.BreakerState().String())
}

func TestElement_IsAvailable(t *testing.T) {
	chance := func(n int) *int { return &n }
	tests := []struct {
		status string
		chance *int
		want   bool
	}{
		{"a", nil, true},
		{"d", nil, true},
		{"d", chance(75), true},
		{"d", chance(50), true},
		{"d", chance(25), false},
		{"i", nil, false},
		{"s", nil, false},
		{"u", nil, false},
		{"n", nil, false},
	}
	for _, tt := range tests {
		e := Element{Status: tt.status, ChanceOfPlayingNextRound: tt.chance}
		assert.Equal(t, tt.want, e.IsAvailable(), "status %q", tt.status)
	}
}

func TestLivePool(t *testing.T) {
	srv, _ := newFPLServer(t)
	pool, err := LivePool(context.Background(), newTestClient(srv.URL), players.LoadOptions{
		Metric:           "total_points",
		NowCostDivisor:   10,
		DefaultAvailable: true,
	})
	require.NoError(t, err)

	require.Equal(t, 4, pool.Len())
	assert.Equal(t, []string{"ARS", "LIV"}, pool.Clubs())

	salah, ok := pool.ByID("3")
	require.True(t, ok)
	assert.Equal(t, "M.Salah", salah.Name)
	assert.Equal(t, models.Midfielder, salah.Position)
	assert.InDelta(t, 12.5, salah.Cost, 1e-9)
	assert.False(t, salah.Available, "25% chance of playing")

	nunez, _ := pool.ByID("4")
	assert.True(t, nunez.Available)
}

func TestSync(t *testing.T) {
	srv, requests := newFPLServer(t)
	client := newTestClient(srv.URL)
	dir := t.TempDir()

	res, err := Sync(context.Background(), client, SyncOptions{DataDir: dir, Workers: 2}, testLogger())
	require.NoError(t, err)
	assert.Equal(t, 4, res.Players)
	assert.Equal(t, int32(5), atomic.LoadInt32(requests))

	require.NotNil(t, res.History)
	assert.Equal(t, 4, res.History.Requested)
	assert.Equal(t, 2, res.History.Stored)
	assert.Equal(t, 1, res.History.Empty)
	require.Len(t, res.History.Failures, 1)
	assert.Equal(t, 3, res.History.Failures[0].PlayerID)

	for _, name := range []string{"players.csv", "p_1.csv", "p_4.csv"} {
		assert.FileExists(t, filepath.Join(dir, name))
	}
	assert.NoFileExists(t, filepath.Join(dir, "p_2.csv"), "empty history is not written")

	pool, err := players.LoadFile(res.PlayersPath, players.DefaultLoadOptions())
	require.NoError(t, err)
	assert.Equal(t, 4, pool.Len())

	history, err := os.ReadFile(filepath.Join(dir, "p_1.csv"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(history), strings.Join(HistoryHeader, ",")+"\n"))
	assert.Contains(t, string(history), "2022/23,1001,50,52,100,3000")

	_, err = Sync(context.Background(), client, SyncOptions{DataDir: dir}, testLogger())
	assert.ErrorIs(t, err, ErrDataExists)

	res, err = Sync(context.Background(), client, SyncOptions{DataDir: dir, Force: true, SkipHistory: true}, testLogger())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Removed)
	assert.Nil(t, res.History)
	assert.NoFileExists(t, filepath.Join(dir, "p_1.csv"))
}
