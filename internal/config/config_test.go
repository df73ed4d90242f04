package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allKeys = []string{
	"STORAGE_BACKEND", "DATA_DIR", "DATABASE_URL", "REDIS_URL", "SERVER_PORT",
	"PLAYER_COMMAND", "PLAYER_ARGS", "PLAYER_HLS_ARGS", "AUTOPLAY",
	"FETCHER_USER_AGENT", "FETCHER_TIMEOUT", "LOGO_WORKERS", "LOGO_RATE", "LOG_LEVEL",
}

// clearEnv unsets every config variable for the duration of the test and
// moves into an empty directory so no .env file is picked up.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allKeys {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
	t.Chdir(t.TempDir())
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, BackendFile, c.Backend)
	assert.Equal(t, "./data", c.DataDir)
	assert.Equal(t, "8080", c.ServerPort)
	assert.Equal(t, "mpv", c.PlayerCommand)
	assert.Equal(t, []string{"--demuxer-lavf-format=hls"}, c.PlayerHLSArgs)
	assert.True(t, c.Autoplay)
	assert.Equal(t, 30*time.Second, c.Timeout)
	assert.Equal(t, 4, c.LogoWorkers)
	assert.Equal(t, 10, c.LogoRate)
	assert.False(t, c.Cached())
}

func TestLoad_BackendFromURLs(t *testing.T) {
	clearEnv(t)
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, BackendRedis, c.Backend)

	t.Setenv("DATABASE_URL", "postgres://localhost/tv")
	c, err = Load()
	require.NoError(t, err)
	assert.Equal(t, BackendPostgres, c.Backend)
	assert.True(t, c.Cached())
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PLAYER_COMMAND", "vlc")
	t.Setenv("PLAYER_ARGS", "--fullscreen --no-osd")
	t.Setenv("PLAYER_HLS_ARGS", "")
	t.Setenv("AUTOPLAY", "false")
	t.Setenv("FETCHER_TIMEOUT", "5s")
	t.Setenv("LOGO_WORKERS", "8")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "vlc", c.PlayerCommand)
	assert.Equal(t, []string{"--fullscreen", "--no-osd"}, c.PlayerArgs)
	assert.Empty(t, c.PlayerHLSArgs)
	assert.False(t, c.Autoplay)
	assert.Equal(t, 5*time.Second, c.Timeout)
	assert.Equal(t, 8, c.LogoWorkers)
}

func TestLoad_Errors(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORAGE_BACKEND", "sqlite")
	_, err := Load()
	assert.ErrorIs(t, err, ErrInvalidBackend)

	t.Setenv("STORAGE_BACKEND", "postgres")
	_, err = Load()
	assert.ErrorIs(t, err, ErrMissingDatabaseURL)

	t.Setenv("STORAGE_BACKEND", "redis")
	_, err = Load()
	assert.ErrorIs(t, err, ErrMissingRedisURL)

	t.Setenv("STORAGE_BACKEND", "")
	t.Setenv("LOGO_RATE", "fast")
	_, err = Load()
	assert.Error(t, err)
}

func TestLoad_EnvFile(t *testing.T) {
	clearEnv(t)
	require.NoError(t, os.WriteFile(".env", []byte("# local\nSERVER_PORT=9090\nPLAYER_COMMAND=\"vlc\"\n"), 0o644))
	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9090", c.ServerPort)
	assert.Equal(t, "vlc", c.PlayerCommand)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tvplayer.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
storage_backend: file
data_dir: /var/lib/tvplayer
player_command: vlc
player_args: ["--fullscreen"]
autoplay: false
timeout: 10s
logo_rate: 3
`), 0o644))

	c, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, BackendFile, c.Backend)
	assert.Equal(t, "/var/lib/tvplayer", c.DataDir)
	assert.Equal(t, "vlc", c.PlayerCommand)
	assert.Equal(t, []string{"--fullscreen"}, c.PlayerArgs)
	assert.Equal(t, []string{"--demuxer-lavf-format=hls"}, c.PlayerHLSArgs)
	assert.False(t, c.Autoplay)
	assert.Equal(t, 10*time.Second, c.Timeout)
	assert.Equal(t, 3, c.LogoRate)
	assert.Equal(t, 4, c.LogoWorkers)
	assert.Equal(t, "8080", c.ServerPort)
}

func TestLoadFromFile_InvalidBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tvplayer.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage_backend: bolt\n"), 0o644))
	_, err := LoadFromFile(path)
	assert.ErrorIs(t, err, ErrInvalidBackend)
}
