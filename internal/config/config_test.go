package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewConfigFromViper_Defaults loads a viper instance populated only with
// SetDefaults and checks the values actually reach the Config getters. A
// regression here means decoding silently produced a zero-valued struct.
func TestNewConfigFromViper_Defaults(t *testing.T) {
	v := viper.New()
	SetDefaults(v)

	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Logger().Level)
	assert.Equal(t, "console", cfg.Logger().Format)
	assert.Equal(t, "apiscribe", cfg.Logger().ServiceName)
	assert.Equal(t, 100, cfg.Registry().HistorySize)
	assert.Equal(t, 1<<20, cfg.Inference().MaxBodyBytes)
	assert.Equal(t, 0.5, cfg.Inference().CommonHeaderThreshold)
	assert.Equal(t, "127.0.0.1:8889", cfg.Capture().ListenAddr)
	assert.Equal(t, 30*time.Second, cfg.Importer().FetchTimeout)
	assert.Equal(t, int64(16<<20), cfg.Importer().MaxFetchBytes)
}

func TestNewConfigFromViper_Overrides(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("logger.level", "debug")
	v.Set("registry.history_size", 5)
	v.Set("inference.max_body_bytes", 4096)
	v.Set("database.url", "postgres://localhost/apiscribe")

	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logger().Level)
	assert.Equal(t, 5, cfg.Registry().HistorySize)
	assert.Equal(t, 4096, cfg.Inference().MaxBodyBytes)
	assert.Equal(t, "postgres://localhost/apiscribe", cfg.Database().URL)
}

func TestNewConfigFromViper_Invalid(t *testing.T) {
	cases := []struct {
		name  string
		key   string
		value any
		want  string
	}{
		{"negative history size", "registry.history_size", -1, "registry.history_size"},
		{"zero body cap", "inference.max_body_bytes", 0, "inference.max_body_bytes"},
		{"threshold above one", "inference.common_header_threshold", 1.5, "inference.common_header_threshold"},
		{"negative fetch rate", "importer.rate_per_second", -0.1, "importer.rate_per_second"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := viper.New()
			SetDefaults(v)
			v.Set(tc.key, tc.value)

			_, err := NewConfigFromViper(v)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 100, cfg.Registry().HistorySize)

	cfg.SetRegistryHistorySize(7)
	cfg.SetCapturePreserveBodies(false)
	assert.Equal(t, 7, cfg.Registry().HistorySize)
	assert.False(t, cfg.Capture().PreserveBodies)
}
