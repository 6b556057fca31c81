package config

import (
	"fmt"
	"strings"

	"github.com/kkyr/fig"
)

// EnvPrefix prefixes every environment override, e.g. WHITEBOARD_REDIS_HOST.
const EnvPrefix = "WHITEBOARD"

type Config struct {
	Port           string   `fig:"port" default:"8080"`
	Environment    string   `fig:"environment" default:"development"`
	AllowedOrigins []string `fig:"allowedOrigins" default:"[http://localhost:3000,http://localhost:5173]"`
	JWTSecret      string   `fig:"jwtSecret" default:"change-me-in-production"`
	// RequireAuth rejects websocket upgrades without a valid token.
	RequireAuth bool `fig:"requireAuth"`

	Store     StoreConfig
	Redis     RedisConfig
	SQLite    SQLiteConfig
	ICE       ICEConfig
	Log       LogConfig
	Metrics   MetricsConfig
	WebSocket WebSocketConfig
}

type StoreConfig struct {
	Backend string `fig:"backend" default:"redis"`
}

type RedisConfig struct {
	Host     string `fig:"host" default:"localhost"`
	Port     string `fig:"port" default:"6379"`
	Password string `fig:"password"`
	DB       int    `fig:"db"`
}

func (r RedisConfig) Addr() string {
	return r.Host + ":" + r.Port
}

type SQLiteConfig struct {
	Path string `fig:"path" default:"data/whiteboard.db"`
}

// ICEConfig holds the single STUN server handed to peers. No TURN relay is
// configured, so peers behind symmetric NAT may fail to connect.
type ICEConfig struct {
	STUNServer string `fig:"stunServer" default:"stun:stun.l.google.com:19302"`
}

type LogConfig struct {
	Level  string `fig:"level" default:"info"`
	Pretty bool   `fig:"pretty"`
}

// MetricsConfig is on unless disabled; fig cannot default a bool to true.
type MetricsConfig struct {
	Disabled bool   `fig:"disabled"`
	Path     string `fig:"path" default:"/metrics"`
}

type WebSocketConfig struct {
	// Snapshots travel over the socket, so the limit is far above SDP size.
	MaxMessageBytes int64 `fig:"maxMessageBytes" default:"16777216"`
	SendBuffer      int   `fig:"sendBuffer" default:"256"`
}

const (
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

// Load reads configuration with the following priority:
// 1. Environment variables (WHITEBOARD_*)
// 2. config.yaml in dir, when dir is not empty
// 3. Defaults from struct tags
func Load(dir string) (*Config, error) {
	var cfg Config

	opts := []fig.Option{fig.UseEnv(EnvPrefix)}
	if dir == "" {
		opts = append(opts, fig.IgnoreFile())
	} else {
		opts = append(opts, fig.File("config.yaml"), fig.Dirs(dir))
	}

	if err := fig.Load(&cfg, opts...); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Store.Backend {
	case BackendRedis, BackendSQLite:
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}

	origins := c.AllowedOrigins[:0]
	for _, o := range c.AllowedOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	c.AllowedOrigins = origins

	if c.WebSocket.SendBuffer <= 0 {
		return fmt.Errorf("websocket send buffer must be positive, got %d", c.WebSocket.SendBuffer)
	}
	return nil
}

// IsProduction reports whether gin should run in release mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
