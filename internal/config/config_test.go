package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func newViper(values map[string]any) *viper.Viper {
	v := viper.New()
	for k, val := range values {
		v.Set(k, val)
	}
	return v
}

func TestFromViper_Defaults(t *testing.T) {
	cfg, err := fromViper(newViper(map[string]any{
		"DB_DSN":            "postgres://localhost/quotes",
		"JWT_ACCESS_SECRET": "secret",
	}))
	if err != nil {
		t.Fatalf("fromViper returned error: %v", err)
	}

	if cfg.Environment != "development" {
		t.Errorf("Environment = %q, want development", cfg.Environment)
	}
	if cfg.HTTP.Port != 3001 {
		t.Errorf("HTTP.Port = %d, want 3001", cfg.HTTP.Port)
	}
	if cfg.StoreDriver != StoreDriverPostgres {
		t.Errorf("StoreDriver = %q, want postgres", cfg.StoreDriver)
	}
	if !cfg.HasAuthMode(AuthModeProxy) || !cfg.HasAuthMode(AuthModeJWT) || cfg.HasAuthMode(AuthModeSession) {
		t.Errorf("Auth.Modes = %v, want [proxy jwt]", cfg.Auth.Modes)
	}
	if cfg.Auth.SessionCacheTTL != time.Minute {
		t.Errorf("SessionCacheTTL = %v, want 1m", cfg.Auth.SessionCacheTTL)
	}
	if cfg.Supabase.Table != "cotacoes" {
		t.Errorf("Supabase.Table = %q, want cotacoes", cfg.Supabase.Table)
	}
	if len(cfg.HTTP.CORSAllowOrigins) != 1 || cfg.HTTP.CORSAllowOrigins[0] != "*" {
		t.Errorf("CORSAllowOrigins = %v, want [*]", cfg.HTTP.CORSAllowOrigins)
	}
}

func TestFromViper_Validation(t *testing.T) {
	tests := []struct {
		name    string
		values  map[string]any
		wantErr string
	}{
		{
			name:    "postgres without dsn",
			values:  map[string]any{"JWT_ACCESS_SECRET": "s"},
			wantErr: "DB_DSN",
		},
		{
			name:    "jwt without secret",
			values:  map[string]any{"DB_DSN": "dsn"},
			wantErr: "JWT_ACCESS_SECRET",
		},
		{
			name:    "supabase without key",
			values:  map[string]any{"STORE_DRIVER": "supabase", "SUPABASE_URL": "https://x.supabase.co", "AUTH_MODES": "proxy"},
			wantErr: "SUPABASE_KEY",
		},
		{
			name:    "session without portal",
			values:  map[string]any{"DB_DSN": "dsn", "AUTH_MODES": "session"},
			wantErr: "PORTAL_URL",
		},
		{
			name:    "unknown mode",
			values:  map[string]any{"DB_DSN": "dsn", "AUTH_MODES": "ldap"},
			wantErr: "unknown auth mode",
		},
		{
			name:    "unknown driver",
			values:  map[string]any{"STORE_DRIVER": "mysql", "AUTH_MODES": "proxy"},
			wantErr: "unknown STORE_DRIVER",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := fromViper(newViper(tt.values))
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %q, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestFromViper_SessionDeployment(t *testing.T) {
	cfg, err := fromViper(newViper(map[string]any{
		"STORE_DRIVER":      "supabase",
		"SUPABASE_URL":      "https://example.supabase.co",
		"SUPABASE_KEY":      "key",
		"AUTH_MODES":        "Session, proxy",
		"PORTAL_URL":        "https://portal.example.com",
		"SESSION_CACHE_TTL": "30s",
	}))
	if err != nil {
		t.Fatalf("fromViper returned error: %v", err)
	}
	if !cfg.HasAuthMode(AuthModeSession) || !cfg.HasAuthMode(AuthModeProxy) {
		t.Fatalf("Auth.Modes = %v", cfg.Auth.Modes)
	}
	if cfg.Auth.SessionCacheTTL != 30*time.Second {
		t.Fatalf("SessionCacheTTL = %v, want 30s", cfg.Auth.SessionCacheTTL)
	}
}

func TestParseList(t *testing.T) {
	got := parseList(" a, ,b ,c,")
	if strings.Join(got, "|") != "a|b|c" {
		t.Fatalf("parseList = %v, want [a b c]", got)
	}
	if parseList("  ") != nil {
		t.Fatal("parseList of blank should be nil")
	}
}
