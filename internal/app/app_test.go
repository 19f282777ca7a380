package app

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sapatrack/sapatrack/internal/config"
	"github.com/sapatrack/sapatrack/internal/logging"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.UserID = "u1"
	cfg.LocalDBPath = filepath.Join(t.TempDir(), "cache.db")
	return cfg
}

func TestNewLogger_SelectsBackend(t *testing.T) {
	l, err := newLogger(config.LogZerolog)
	require.NoError(t, err)
	require.IsType(t, &logging.ZerologLogger{}, l)

	l, err = newLogger(config.LogSlog)
	require.NoError(t, err)
	require.IsType(t, &logging.SlogLogger{}, l)

	l, err = newLogger("")
	require.NoError(t, err)
	require.IsType(t, &logging.ZerologLogger{}, l)

	_, err = newLogger("syslog")
	require.Error(t, err)
}

func TestNewApp_UsesConfiguredLogBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.LogBackend = config.LogSlog

	a, err := NewApp(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()

	require.IsType(t, &logging.SlogLogger{}, a.log)
}

func TestRun_StopsWhileEventFeedOpen(t *testing.T) {
	a, err := NewApp(context.Background(), testConfig(t))
	require.NoError(t, err)
	defer a.Close()

	// A pipe that never delivers data keeps the reader parked in Scan,
	// like an attached but silent stdin.
	pr, pw := io.Pipe()
	defer pw.Close()
	a.events = pr

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		a.Run(ctx)
		close(done)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop while the event feed was open")
	}
}
