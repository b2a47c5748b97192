package players

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stitts-dev/ff-epl/internal/models"
)

const fplCSV = `id,first_name,second_name,now_cost,name,short_name,position,total_points,form,status
1,David,Raya,55,Arsenal,ARS,GKP,120,4.5,a
2,William,Saliba,60,Arsenal,ARS,DEF,140,5.0,a
3,Mohamed,Salah,125,Liverpool,LIV,MID,210,8.1,i
4,Erling,Haaland,140,Man City,MCI,FWD,190,7.2,a
`

func TestLoad_FPLExport(t *testing.T) {
	pool, err := Load(strings.NewReader(fplCSV), LoadOptions{Metric: "total_points", NowCostDivisor: 10, DefaultAvailable: true})
	require.NoError(t, err)

	require.Equal(t, 4, pool.Len())
	assert.Equal(t, []string{"ARS", "LIV", "MCI"}, pool.Clubs())
	assert.Equal(t, []string{"form", "total_points"}, pool.MetricNames())

	raya, ok := pool.ByID("1")
	require.True(t, ok)
	assert.Equal(t, "David Raya", raya.Name)
	assert.Equal(t, models.Goalkeeper, raya.Position)
	assert.InDelta(t, 5.5, raya.Cost, 1e-9)
	assert.True(t, raya.Available)

	salah, _ := pool.ByID("3")
	assert.False(t, salah.Available, "status i is injured")

	values, err := pool.MetricValues("total_points")
	require.NoError(t, err)
	assert.Equal(t, []float64{120, 140, 210, 190}, values)
}

func TestLoad_MetricNameIgnoresCase(t *testing.T) {
	pool, err := Load(strings.NewReader(fplCSV), LoadOptions{Metric: "Total_Points", DefaultAvailable: true})
	require.NoError(t, err)

	values, err := pool.MetricValues("Total_Points")
	require.NoError(t, err)
	assert.Equal(t, []float64{120, 140, 210, 190}, values)

	_, err = Load(strings.NewReader(fplCSV), LoadOptions{Metric: " FORM "})
	assert.NoError(t, err)
}

func TestLoad_AvailabilityColumns(t *testing.T) {
	data := "id,position,club,cost,points,available,injured\n" +
		"a,GK,X,4.5,1,yes,\n" +
		"b,DEF,X,4.0,2,0,\n" +
		"c,MID,Y,5.0,3,,1\n" +
		"d,FWD,Y,6.0,4,,\n"

	pool, err := Load(strings.NewReader(data), LoadOptions{DefaultAvailable: false})
	require.NoError(t, err)

	want := map[string]bool{"a": true, "b": false, "c": false, "d": false}
	for id, available := range want {
		rec, ok := pool.ByID(id)
		require.True(t, ok)
		assert.Equal(t, available, rec.Available, id)
	}

	rec, _ := pool.ByID("a")
	assert.Equal(t, 4.5, rec.Cost, "plain cost columns are not divided")
}

func TestLoad_IDDefaultsToRowNumber(t *testing.T) {
	data := "position,team,cost,points\nGK,X,4.5,1\nDEF,Y,4.0,2\n"
	pool, err := Load(strings.NewReader(data), DefaultLoadOptions())
	require.NoError(t, err)

	_, ok := pool.ByID("2")
	assert.True(t, ok)
	assert.Equal(t, []string{"X", "Y"}, pool.Clubs())
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name  string
		data  string
		opts  LoadOptions
		field string
		row   int
	}{
		{"unknown position", "id,position,club,cost\n1,GK,X,4\n2,ST,Y,5\n", DefaultLoadOptions(), "position", 2},
		{"missing club column", "id,position,cost\n1,GK,4\n", DefaultLoadOptions(), "club", 0},
		{"missing cost column", "id,position,club\n1,GK,X\n", DefaultLoadOptions(), "cost", 0},
		{"non numeric cost", "id,position,club,cost\n1,GK,X,cheap\n", DefaultLoadOptions(), "cost", 1},
		{"negative cost", "id,position,club,cost\n1,GK,X,-1\n", DefaultLoadOptions(), "cost", 1},
		{"duplicate id", "id,position,club,cost\n1,GK,X,4\n1,DEF,X,4\n", DefaultLoadOptions(), "id", 2},
		{"missing metric", "id,position,club,cost\n1,GK,X,4\n", LoadOptions{Metric: "total_points"}, "total_points", 0},
		{"metric not numeric", "id,position,club,cost,total_points\n1,GK,X,4,10\n2,DEF,X,4,n/a\n", LoadOptions{Metric: "total_points"}, "total_points", 2},
		{"bad availability", "id,position,club,cost,available\n1,GK,X,4,maybe\n", DefaultLoadOptions(), "available", 1},
		{"bad status", "id,position,club,cost,status\n1,GK,X,4,zz\n", DefaultLoadOptions(), "available", 1},
		{"no rows", "id,position,club,cost\n", DefaultLoadOptions(), "players", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.data), tt.opts)
			var verr *models.ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Equal(t, tt.field, verr.Field)
			assert.Equal(t, tt.row, verr.Row)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "players.csv")
	require.NoError(t, os.WriteFile(path, []byte(fplCSV), 0o600))

	pool, err := LoadFile(path, DefaultLoadOptions())
	require.NoError(t, err)
	assert.Equal(t, 4, pool.Len())

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.csv"), DefaultLoadOptions())
	assert.Error(t, err)
}

func TestApplyAvailability(t *testing.T) {
	pool, err := Load(strings.NewReader(fplCSV), DefaultLoadOptions())
	require.NoError(t, err)

	next, unknown := ApplyAvailability(pool, map[string]bool{"3": true, "4": false, "404": true})
	assert.Equal(t, []string{"404"}, unknown)
	salah, _ := next.ByID("3")
	assert.True(t, salah.Available)
	haaland, _ := next.ByID("4")
	assert.False(t, haaland.Available)

	original, _ := pool.ByID("4")
	assert.True(t, original.Available, "the source pool is not mutated")
}
