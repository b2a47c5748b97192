package services

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stitts-dev/ff-epl/internal/optimizer"
	"github.com/stitts-dev/ff-epl/internal/players"
	"github.com/stitts-dev/ff-epl/pkg/metrics"
)

func TestRosterCacheKey(t *testing.T) {
	rules := optimizer.DefaultSquadRules()
	key := RosterCacheKey("abc", "total_points", rules)
	assert.Regexp(t, `^total_points:[0-9a-f]{32}$`, key)
	assert.Equal(t, key, RosterCacheKey("abc", "total_points", optimizer.DefaultSquadRules()))

	assert.NotEqual(t, key, RosterCacheKey("abd", "total_points", rules))
	assert.NotEqual(t, key, RosterCacheKey("abc", "form", rules))
	rules.BudgetCap = 99
	assert.NotEqual(t, key, RosterCacheKey("abc", "total_points", rules))
}

func TestPoolHolder_Refresh(t *testing.T) {
	m := metrics.NewManager(metrics.WithRegistry(prometheus.NewRegistry()))
	src := &staticSource{pool: tinyPool(t)}
	holder := NewPoolHolder(src, testLogger(), m)

	_, _, err := holder.Current()
	assert.ErrorIs(t, err, ErrPoolNotLoaded)

	require.NoError(t, holder.Refresh(context.Background()))
	pool, loadedAt, err := holder.Current()
	require.NoError(t, err)
	assert.Equal(t, 4, pool.Len())
	assert.WithinDuration(t, time.Now(), loadedAt, time.Minute)

	src.err = errUpstream
	err = holder.Refresh(context.Background())
	assert.ErrorIs(t, err, errUpstream)

	kept, _, err := holder.Current()
	require.NoError(t, err)
	assert.Same(t, pool, kept, "a failed refresh keeps the previous snapshot")

	expected := `
# HELP ffepl_pool_players Players in the current pool snapshot
# TYPE ffepl_pool_players gauge
ffepl_pool_players 4
# HELP ffepl_pool_refreshes_total Pool refresh attempts by result
# TYPE ffepl_pool_refreshes_total counter
ffepl_pool_refreshes_total{result="error"} 1
ffepl_pool_refreshes_total{result="success"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected),
		"ffepl_pool_players", "ffepl_pool_refreshes_total"))
}

func TestFilePoolSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "players.csv")
	data := "id,position,club,now_cost,total_points\n1,GKP,ARS,45,10\n2,DEF,LIV,40,5\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	src := &FilePoolSource{Path: path, Options: players.DefaultLoadOptions()}
	assert.Equal(t, "file", src.Name())

	pool, err := src.LoadPool(context.Background())
	require.NoError(t, err)
	rec, ok := pool.ByID("1")
	require.True(t, ok)
	assert.InDelta(t, 4.5, rec.Cost, 1e-9)

	src.Path = filepath.Join(t.TempDir(), "missing.csv")
	_, err = src.LoadPool(context.Background())
	assert.Error(t, err)
}
