package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverSupabase = "supabase"

	AuthModeProxy   = "proxy"
	AuthModeJWT     = "jwt"
	AuthModeSession = "session"
)

type HTTPConfig struct {
	Host             string
	Port             int
	StaticDir        string
	CORSAllowOrigins []string
	RateLimitRPS     float64
	RateLimitBurst   int
}

type DBConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime string
}

type SupabaseConfig struct {
	URL   string
	Key   string
	Table string
}

type AuthConfig struct {
	Modes           []string
	AccessSecret    string
	PortalURL       string
	SessionCacheTTL time.Duration
	LoginURL        string
}

type Config struct {
	Environment string
	LogLevel    string
	StoreDriver string
	HTTP        HTTPConfig
	DB          DBConfig
	Supabase    SupabaseConfig
	Auth        AuthConfig
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("./deploy")
	v.AutomaticEnv()

	_ = v.ReadInConfig()

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("STORE_DRIVER", StoreDriverPostgres)
	v.SetDefault("HTTP_HOST", "0.0.0.0")
	v.SetDefault("HTTP_PORT", 3001)
	v.SetDefault("STATIC_DIR", "public")
	v.SetDefault("CORS_ALLOW_ORIGINS", "*")
	v.SetDefault("RATE_LIMIT_RPS", 10)
	v.SetDefault("RATE_LIMIT_BURST", 30)
	v.SetDefault("SUPABASE_TABLE", "cotacoes")
	v.SetDefault("AUTH_MODES", "proxy,jwt")
	v.SetDefault("SESSION_CACHE_TTL", "1m")
	v.SetDefault("LOGIN_URL", "http://localhost:3000")

	sessionTTL, err := time.ParseDuration(v.GetString("SESSION_CACHE_TTL"))
	if err != nil {
		return nil, fmt.Errorf("invalid SESSION_CACHE_TTL: %w", err)
	}

	cfg := &Config{
		Environment: v.GetString("APP_ENV"),
		LogLevel:    v.GetString("LOG_LEVEL"),
		StoreDriver: strings.ToLower(strings.TrimSpace(v.GetString("STORE_DRIVER"))),
		HTTP: HTTPConfig{
			Host:             v.GetString("HTTP_HOST"),
			Port:             v.GetInt("HTTP_PORT"),
			StaticDir:        v.GetString("STATIC_DIR"),
			CORSAllowOrigins: parseList(v.GetString("CORS_ALLOW_ORIGINS")),
			RateLimitRPS:     v.GetFloat64("RATE_LIMIT_RPS"),
			RateLimitBurst:   v.GetInt("RATE_LIMIT_BURST"),
		},
		DB: DBConfig{
			DSN:             v.GetString("DB_DSN"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetString("DB_CONN_MAX_LIFETIME"),
		},
		Supabase: SupabaseConfig{
			URL:   v.GetString("SUPABASE_URL"),
			Key:   v.GetString("SUPABASE_KEY"),
			Table: v.GetString("SUPABASE_TABLE"),
		},
		Auth: AuthConfig{
			Modes:           parseList(strings.ToLower(v.GetString("AUTH_MODES"))),
			AccessSecret:    v.GetString("JWT_ACCESS_SECRET"),
			PortalURL:       v.GetString("PORTAL_URL"),
			SessionCacheTTL: sessionTTL,
			LoginURL:        v.GetString("LOGIN_URL"),
		},
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// HasAuthMode reports whether mode is enabled for this deployment.
func (c *Config) HasAuthMode(mode string) bool {
	for _, m := range c.Auth.Modes {
		if m == mode {
			return true
		}
	}
	return false
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func validate(cfg *Config) error {
	switch cfg.StoreDriver {
	case StoreDriverPostgres:
		if cfg.DB.DSN == "" {
			return fmt.Errorf("DB_DSN is required")
		}
	case StoreDriverSupabase:
		if cfg.Supabase.URL == "" || cfg.Supabase.Key == "" {
			return fmt.Errorf("SUPABASE_URL and SUPABASE_KEY are required")
		}
		if !strings.HasPrefix(cfg.Supabase.URL, "http://") && !strings.HasPrefix(cfg.Supabase.URL, "https://") {
			return fmt.Errorf("SUPABASE_URL must be an http(s) url")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}

	if len(cfg.Auth.Modes) == 0 {
		return fmt.Errorf("AUTH_MODES must list at least one mode")
	}
	for _, mode := range cfg.Auth.Modes {
		switch mode {
		case AuthModeProxy:
		case AuthModeJWT:
			if cfg.Auth.AccessSecret == "" {
				return fmt.Errorf("JWT_ACCESS_SECRET is required")
			}
		case AuthModeSession:
			if cfg.Auth.PortalURL == "" {
				return fmt.Errorf("PORTAL_URL is required")
			}
		default:
			return fmt.Errorf("unknown auth mode %q", mode)
		}
	}
	return nil
}

func parseList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	items := strings.Split(raw, ",")
	result := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item != "" {
			result = append(result, item)
		}
	}
	return result
}
