package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "development", cfg.Server.Environment)
	assert.Equal(t, "localhost", cfg.Redis.Host)
	assert.Equal(t, 24*time.Hour, cfg.Redis.SessionTTL)
	assert.Equal(t, 60*time.Second, cfg.SRI.NavTimeout)
	assert.Equal(t, 200*time.Millisecond, cfg.SRI.ItemPause)
	assert.Equal(t, 20, cfg.SRI.BlockEvery)
	assert.Equal(t, 1, cfg.SRI.FetchWorkers)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, "descargas", cfg.Storage.DownloadDir)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Contains(t, cfg.SRI.LoginURL, "srienlinea.sri.gob.ec")
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("SRI_FETCH_WORKERS", "3")
	t.Setenv("SRI_ITEM_PAUSE_MS", "500")
	t.Setenv("BROWSER_HEADLESS", "false")
	t.Setenv("DOWNLOAD_DIR", "/var/descargas")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 3, cfg.SRI.FetchWorkers)
	assert.Equal(t, 500*time.Millisecond, cfg.SRI.ItemPause)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, "/var/descargas", cfg.Storage.DownloadDir)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadIgnoresInvalidValues(t *testing.T) {
	t.Setenv("PORT", "not-a-number")
	t.Setenv("BROWSER_HEADLESS", "not-a-bool")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.True(t, cfg.Browser.Headless)
}
