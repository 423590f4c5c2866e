package database

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hazardmap/mapservice/internal/config"
	"github.com/hazardmap/mapservice/internal/model"
)

func TestPostgresDSN(t *testing.T) {
	dsn := PostgresDSN(config.PostgresConfig{
		Host: "db", Port: "5433", Username: "u", Password: "p", Database: "geo",
	})
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=geo sslmode=disable", dsn)

	dsn = PostgresDSN(config.PostgresConfig{Host: "db", SSLMode: "require"})
	assert.Contains(t, dsn, "sslmode=require")
}

func TestConnect_SQLiteFile(t *testing.T) {
	m := NewManager(zerolog.Nop())
	path := filepath.Join(t.TempDir(), "cache.db")

	require.NoError(t, m.Connect(config.CacheConfig{Type: "sqlite", SQLite: config.SQLiteConfig{Path: path}}))
	defer m.Close()

	assert.True(t, m.IsValid)
	require.NoError(t, m.Setup())
	assert.True(t, m.DB.Migrator().HasTable(&model.GeocodeEntry{}))
	assert.True(t, m.DB.Migrator().HasTable(&model.ReverseEntry{}))
}

func TestConnect_UnknownType(t *testing.T) {
	m := NewManager(zerolog.Nop())
	err := m.Connect(config.CacheConfig{Type: "memory"})
	assert.Error(t, err)
	assert.False(t, m.IsValid)
}

func TestSetup_NotConnected(t *testing.T) {
	m := NewManager(zerolog.Nop())
	assert.Error(t, m.Setup())
}

func TestClose_NotConnected(t *testing.T) {
	m := NewManager(zerolog.Nop())
	assert.NoError(t, m.Close())
}
