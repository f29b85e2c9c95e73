package configs

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestViper(overrides map[string]any) *viper.Viper {
	v := viper.New()
	setDefaults(v)
	for k, val := range overrides {
		v.Set(k, val)
	}
	return v
}

func TestDefaults(t *testing.T) {
	cfg, err := fromViper(newTestViper(nil))
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.Environment)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, 3001, cfg.Port)
	assert.Equal(t, 256, cfg.SendQueueSize)
	assert.Equal(t, 5.0, cfg.APIRate)
	assert.Equal(t, 20, cfg.APIBurst)
	assert.Equal(t, 30*time.Second, cfg.DiagnosticsInterval)
	assert.False(t, cfg.UniqueUserIDs)
	assert.Empty(t, cfg.AllowedOrigins)

	require.Len(t, cfg.ICEServers, 1)
	assert.Len(t, cfg.ICEServers[0].URLs, 3)
	assert.Equal(t, "stun:stun.l.google.com:19302", cfg.ICEServers[0].URLs[0])
}

func TestEnvironmentVariablesOverrideDefaults(t *testing.T) {
	t.Setenv("PORT", "4100")
	t.Setenv("ALLOWED_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("UNIQUE_USER_IDS", "true")
	t.Setenv("DIAGNOSTICS_INTERVAL", "45s")
	t.Setenv("SEND_QUEUE_SIZE", "8")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 4100, cfg.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.True(t, cfg.UniqueUserIDs)
	assert.Equal(t, 45*time.Second, cfg.DiagnosticsInterval)
	assert.Equal(t, 8, cfg.SendQueueSize)
}

func TestConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relay.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: 5200\nmessage_burst: 7\n"), 0o600))
	t.Setenv("CONFIG_FILE", path)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 5200, cfg.Port)
	assert.Equal(t, 7, cfg.MessageBurst)
}

func TestConfigFileMissing(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "nope.yaml"))

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestValidation(t *testing.T) {
	cases := map[string]map[string]any{
		"privileged port":          {"port": 80},
		"zero queue":               {"send_queue_size": 0},
		"tiny message limit":       {"max_message_size": 10},
		"negative message rate":    {"message_rate": -1},
		"zero join burst":          {"join_burst": 0},
		"zero api rate":            {"api_rate": 0},
		"negative api burst":       {"api_burst": -1},
		"sub-second diagnostics":   {"diagnostics_interval": 10 * time.Millisecond},
		"production without CORS":  {"environment": "production"},
		"turn without credentials": {"turn_urls": "turn:turn.example.com:3478"},
		"bad ice url":              {"stun_urls": "http://example.com"},
		"bad ice json":             {"ice_servers_json": "{not json"},
	}

	for name, overrides := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := fromViper(newTestViper(overrides))
			assert.Error(t, err)
		})
	}
}

func TestProductionWithOrigins(t *testing.T) {
	cfg, err := fromViper(newTestViper(map[string]any{
		"environment":     "production",
		"allowed_origins": "https://voice.example",
	}))
	require.NoError(t, err)

	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, []string{"https://voice.example"}, cfg.AllowedOrigins)
}
