package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startedWatcher(t *testing.T, loader *Loader) chan *Config {
	t.Helper()

	reloaded := make(chan *Config, 1)
	w, err := NewWatcher(loader, zerolog.Nop(), func(cfg *Config) {
		reloaded <- cfg
	})
	require.NoError(t, err)
	require.NoError(t, w.Start())
	t.Cleanup(w.Stop)
	return reloaded
}

func awaitReload(t *testing.T, reloaded chan *Config) *Config {
	t.Helper()

	select {
	case cfg := <-reloaded:
		return cfg
	case <-time.After(5 * time.Second):
		t.Fatal("config reload did not fire")
		return nil
	}
}

// The watcher must follow the file the daemon was started from, not the
// default location.
func TestWatcherReloadsExplicitPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom-zana.json")
	loader := NewLoader(path)

	cfg := validConfig()
	cfg.Models.Primary = "first-model"
	require.NoError(t, loader.Save(cfg))

	reloaded := startedWatcher(t, loader)

	cfg.Models.Primary = "second-model"
	require.NoError(t, loader.Save(cfg))

	got := awaitReload(t, reloaded)
	assert.Equal(t, "second-model", got.Models.Primary)
	assert.Equal(t, cfg.Telegram.BotToken, got.Telegram.BotToken)
}

func TestWatcherSkipsInvalidEdit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zana.json")
	loader := NewLoader(path)

	cfg := validConfig()
	require.NoError(t, loader.Save(cfg))

	reloaded := startedWatcher(t, loader)

	// An edit that fails validation must not reach the callback; a later
	// valid edit must.
	require.NoError(t, os.WriteFile(path, []byte(`{"models":{"provider":"nope"}}`), 0644))
	time.Sleep(500 * time.Millisecond)

	cfg.Models.Primary = "recovered-model"
	require.NoError(t, loader.Save(cfg))

	got := awaitReload(t, reloaded)
	assert.Equal(t, "recovered-model", got.Models.Primary)
}
