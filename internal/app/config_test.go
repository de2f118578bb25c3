package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.AppAddr)
	require.Equal(t, "solicitacoes.changes", cfg.FeedChannel)
	require.Equal(t, 30*time.Second, cfg.ReconcileInterval)
	require.Equal(t, time.Hour, cfg.HRNotifyGrace)
	require.Equal(t, 12*time.Hour, cfg.SessionTTL)
	require.False(t, cfg.IsProduction())
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("DESCANSO_APP_ENV", "production")
	t.Setenv("DESCANSO_RECONCILE_INTERVAL", "10s")
	t.Setenv("DESCANSO_FEED_CHANNEL", "leave.changes")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.True(t, cfg.IsProduction())
	require.Equal(t, 10*time.Second, cfg.ReconcileInterval)
	require.Equal(t, "leave.changes", cfg.FeedChannel)
}
