package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialector(t *testing.T) {
	tests := []struct {
		url    string
		driver string
	}{
		{"postgres://u:p@localhost:5432/ff?sslmode=disable", "postgres"},
		{"postgresql://localhost/ff", "postgres"},
		{"sqlite://ff_epl.db", "sqlite"},
		{"file::memory:?cache=shared", "sqlite"},
	}
	for _, tt := range tests {
		_, driver, err := Dialector(tt.url)
		require.NoError(t, err, tt.url)
		assert.Equal(t, tt.driver, driver)
	}

	_, _, err := Dialector("mysql://localhost/ff")
	assert.Error(t, err)
	_, _, err = Dialector("")
	assert.Error(t, err)
}

func TestNewConnection_SQLite(t *testing.T) {
	db, err := NewConnection("sqlite://file::memory:", true)
	require.NoError(t, err)
	defer db.Close()

	assert.NoError(t, db.HealthCheck())

	type sample struct {
		ID   uint
		Name string
	}
	require.NoError(t, db.Migrate(&sample{}))
	require.NoError(t, db.Create(&sample{Name: "ok"}).Error)

	var count int64
	require.NoError(t, db.Model(&sample{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
