package main

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bootstrap = `{
  "teams": [{"id": 1, "code": 3, "name": "Arsenal", "short_name": "ARS"}],
  "element_types": [{"id": 1, "singular_name_short": "GKP"}, {"id": 2, "singular_name_short": "DEF"}],
  "elements": [
    {"id": 1, "web_name": "Raya", "team_code": 3, "element_type": 1, "now_cost": 55, "status": "a", "total_points": 120},
    {"id": 2, "web_name": "Saliba", "team_code": 3, "element_type": 2, "now_cost": 60, "status": "i", "total_points": 140}
  ]
}`

func fplServer(t *testing.T) string {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/bootstrap-static/", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, bootstrap)
	})
	mux.HandleFunc("/element-summary/1/", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"history_past": [{"season_name": "2023/24", "element_code": 11, "total_points": 150}]}`)
	})
	mux.HandleFunc("/element-summary/2/", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"history_past": []}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestRun(t *testing.T) {
	t.Setenv("FPL_RATE_LIMIT", "1000")
	t.Setenv("LOG_LEVEL", "error")
	dir := t.TempDir()
	args := []string{"--data-dir", dir, "--fpl-base-url", fplServer(t), "--fetch-workers", "2"}

	var out bytes.Buffer
	require.Equal(t, 0, run(args, &out), out.String())
	assert.Contains(t, out.String(), "Wrote 2 players")
	assert.Contains(t, out.String(), "History: 1 stored, 1 without past seasons, 0 failed")
	assert.FileExists(t, filepath.Join(dir, "players.csv"))
	assert.FileExists(t, filepath.Join(dir, "p_1.csv"))
	assert.NoFileExists(t, filepath.Join(dir, "p_2.csv"))

	out.Reset()
	assert.Equal(t, 1, run(args, &out), "existing data without --force")

	out.Reset()
	require.Equal(t, 0, run(append(args, "--force", "--skip-history"), &out))
	assert.Contains(t, out.String(), "Removed 2 old files")
	assert.NoFileExists(t, filepath.Join(dir, "p_1.csv"))

	players, err := os.ReadFile(filepath.Join(dir, "players.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(players), "2,,,Saliba,60,Arsenal,ARS,DEF,i,")
}
