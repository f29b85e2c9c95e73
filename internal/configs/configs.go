/*
Package configs loads and validates the relay's configuration.

Values come from defaults, an optional config file named by CONFIG_FILE, and environment
variables, in increasing order of precedence. Environment variable names are the
upper-cased keys (PORT, ALLOWED_ORIGINS, ...).
*/
package configs

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/spf13/viper"
)

const (
	// EnvDevelopment is the default environment name.
	EnvDevelopment = "development"

	// DefaultStunURLs are the public STUN servers offered to clients when nothing else is configured.
	DefaultStunURLs = "stun:stun.l.google.com:19302,stun:stun1.l.google.com:19302,stun:stun2.l.google.com:19302"
)

// AppConfig contains every configuration parameter required to run the relay.
type AppConfig struct {
	// General Server Settings
	Environment string
	Port        int
	StaticDir   string

	// Security Settings
	AllowedOrigins []string
	JoinRate       float64
	JoinBurst      int
	APIRate        float64
	APIBurst       int

	// Connection Settings
	SendQueueSize  int
	MaxMessageSize int64
	MessageRate    float64
	MessageBurst   int

	// Room Settings
	UniqueUserIDs       bool
	DiagnosticsInterval time.Duration

	// ICEServers are rendezvous addresses handed to clients; the relay never contacts them.
	ICEServers []webrtc.ICEServer
}

// IsDevelopment reports whether the relay runs in the development environment.
func (c *AppConfig) IsDevelopment() bool {
	return c.Environment == EnvDevelopment
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", EnvDevelopment)
	v.SetDefault("port", 3001)
	v.SetDefault("static_dir", "./public")
	v.SetDefault("allowed_origins", "")
	v.SetDefault("join_rate", 0.5)
	v.SetDefault("join_burst", 10)
	v.SetDefault("api_rate", 5.0)
	v.SetDefault("api_burst", 20)
	v.SetDefault("send_queue_size", 256)
	v.SetDefault("max_message_size", 64*1024)
	v.SetDefault("message_rate", 20.0)
	v.SetDefault("message_burst", 60)
	v.SetDefault("unique_user_ids", false)
	v.SetDefault("diagnostics_interval", 30*time.Second)
	v.SetDefault("ice_servers_json", "")
	v.SetDefault("stun_urls", DefaultStunURLs)
	v.SetDefault("turn_urls", "")
	v.SetDefault("turn_username", "")
	v.SetDefault("turn_credential", "")
}

// LoadConfig reads and validates the configuration.
func LoadConfig() (*AppConfig, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*AppConfig, error) {
	cfg := &AppConfig{}

	// --- General Server Settings ---
	cfg.Environment = strings.TrimSpace(v.GetString("environment"))
	if cfg.Environment == "" {
		cfg.Environment = EnvDevelopment
	}

	cfg.Port = v.GetInt("port")
	if cfg.Port < 1024 || cfg.Port > 65535 {
		return nil, fmt.Errorf("port number %d is outside the allowed range (%d-%d)", cfg.Port, 1024, 65535)
	}

	cfg.StaticDir = v.GetString("static_dir")

	// --- Security Settings ---
	cfg.AllowedOrigins = splitCommaSeparated(v.GetString("allowed_origins"))
	if !cfg.IsDevelopment() && len(cfg.AllowedOrigins) == 0 {
		return nil, fmt.Errorf("ALLOWED_ORIGINS is required in %s environment", cfg.Environment)
	}

	cfg.JoinRate = v.GetFloat64("join_rate")
	cfg.JoinBurst = v.GetInt("join_burst")
	if cfg.JoinRate <= 0 || cfg.JoinBurst <= 0 {
		return nil, fmt.Errorf("join_rate and join_burst must be positive, got %v/%d", cfg.JoinRate, cfg.JoinBurst)
	}

	cfg.APIRate = v.GetFloat64("api_rate")
	cfg.APIBurst = v.GetInt("api_burst")
	if cfg.APIRate <= 0 || cfg.APIBurst <= 0 {
		return nil, fmt.Errorf("api_rate and api_burst must be positive, got %v/%d", cfg.APIRate, cfg.APIBurst)
	}

	// --- Connection Settings ---
	cfg.SendQueueSize = v.GetInt("send_queue_size")
	if cfg.SendQueueSize <= 0 {
		return nil, fmt.Errorf("send_queue_size must be positive, got %d", cfg.SendQueueSize)
	}

	cfg.MaxMessageSize = v.GetInt64("max_message_size")
	if cfg.MaxMessageSize < 1024 {
		return nil, fmt.Errorf("max_message_size must be at least 1024 bytes, got %d", cfg.MaxMessageSize)
	}

	cfg.MessageRate = v.GetFloat64("message_rate")
	cfg.MessageBurst = v.GetInt("message_burst")
	if cfg.MessageRate <= 0 || cfg.MessageBurst <= 0 {
		return nil, fmt.Errorf("message_rate and message_burst must be positive, got %v/%d", cfg.MessageRate, cfg.MessageBurst)
	}

	// --- Room Settings ---
	cfg.UniqueUserIDs = v.GetBool("unique_user_ids")

	cfg.DiagnosticsInterval = v.GetDuration("diagnostics_interval")
	if cfg.DiagnosticsInterval < time.Second {
		return nil, fmt.Errorf("diagnostics_interval must be at least 1s, got %s", cfg.DiagnosticsInterval)
	}

	// --- ICE Servers ---
	iceServers, err := parseICEServersFromValues(
		v.GetString("ice_servers_json"),
		v.GetString("stun_urls"),
		v.GetString("turn_urls"),
		v.GetString("turn_username"),
		v.GetString("turn_credential"),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid ICE server configuration: %w", err)
	}
	cfg.ICEServers = iceServers

	return cfg, nil
}

func splitCommaSeparated(value string) []string {
	value = strings.TrimSpace(value)
	if value == "" {
		return []string{}
	}

	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
