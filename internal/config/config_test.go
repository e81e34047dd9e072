package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaultOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8080", cfg.Listen)
	assert.Equal(t, "sunday", cfg.WeekStart)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	in := &Config{
		Listen:      "0.0.0.0:9000",
		Timezone:    "Europe/Berlin",
		WeekStart:   "monday",
		RefreshCron: "0 * * * *",
		Authors:     []string{"Alice", "Bob"},
		Database: DatabaseConfig{
			Host: "db.internal",
			Port: "5433",
			Name: "calendar",
			User: "caldash",
		},
		BasicAuth: &BasicAuthConfig{Username: "admin", Password: "hunter2"},
	}
	require.NoError(t, Save(path, in))

	out, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, in.Listen, out.Listen)
	assert.Equal(t, in.Timezone, out.Timezone)
	assert.Equal(t, in.WeekStart, out.WeekStart)
	assert.Equal(t, in.Authors, out.Authors)
	assert.Equal(t, in.Database, out.Database)
	require.NotNil(t, out.BasicAuth)
	assert.Equal(t, "admin", out.BasicAuth.Username)
}

func TestNormalizeFillsDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.Normalize()

	assert.Equal(t, "127.0.0.1:8080", cfg.Listen)
	assert.Equal(t, "America/New_York", cfg.Timezone)
	assert.Equal(t, "sunday", cfg.WeekStart)
	assert.Equal(t, "*/15 * * * *", cfg.RefreshCron)
	assert.NotNil(t, cfg.Authors)
}

func TestNormalizeRejectsUnknownWeekStart(t *testing.T) {
	cfg := &Config{WeekStart: "saturday"}
	cfg.Normalize()
	assert.Equal(t, "sunday", cfg.WeekStart)

	cfg = &Config{WeekStart: "monday"}
	cfg.Normalize()
	assert.Equal(t, "monday", cfg.WeekStart)
}

func TestNormalizeClampsNegativeRetention(t *testing.T) {
	cfg := &Config{RetentionDays: -7}
	cfg.Normalize()
	assert.Equal(t, 0, cfg.RetentionDays)

	cfg = &Config{RetentionDays: 365}
	cfg.Normalize()
	assert.Equal(t, 365, cfg.RetentionDays)
}

func TestNormalizeDisablesHalfConfiguredAuth(t *testing.T) {
	cfg := &Config{BasicAuth: &BasicAuthConfig{Username: "admin"}}
	cfg.Normalize()
	assert.Nil(t, cfg.BasicAuth)
}

func TestDatabaseDSN(t *testing.T) {
	d := DatabaseConfig{
		Host:     "localhost",
		Port:     "5432",
		Name:     "calendar",
		User:     "app",
		Password: "secret",
		SSLMode:  "require",
	}
	assert.Equal(t,
		"host=localhost port=5432 dbname=calendar user=app password=secret sslmode=require",
		d.DSN())

	// Empty fields are omitted so pgx can fall back to PG* env vars.
	assert.Equal(t, "", DatabaseConfig{}.DSN())
	assert.Equal(t, "host=db", DatabaseConfig{Host: "db"}.DSN())
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: [unclosed"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}
