package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix  = "KENO_"
	envFileVar = "KENO_CONFIG_FILE"

	DriverProvider = "provider"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config is the runtime configuration of the admin API.
type Config struct {
	HTTP            HTTPConfig     `koanf:"http"`
	GRPC            GRPCConfig     `koanf:"grpc"`
	PublicURL       string         `koanf:"public_url"`
	AppCookie       string         `koanf:"app_cookie"`
	Store           StoreConfig    `koanf:"store"`
	Provider        ProviderConfig `koanf:"provider"`
	DatabaseID      string         `koanf:"database_id"`
	StaffTeamID     string         `koanf:"staff_team_id"`
	StaffTeamName   string         `koanf:"staff_team_name"`
	Collections     Collections    `koanf:"collections"`
	RolesCacheTTL   time.Duration  `koanf:"roles_cache_ttl"`
	ParallelLookups bool           `koanf:"parallel_lookups"`
	RateLimit       RateLimit      `koanf:"rate_limit"`
	CORS            CORSConfig     `koanf:"cors"`
	DevAdmin        DevAdmin       `koanf:"dev_admin"`
}

type HTTPConfig struct {
	Addr string `koanf:"addr"`
}

type GRPCConfig struct {
	Addr string `koanf:"addr"`
}

type StoreConfig struct {
	Driver string `koanf:"driver"`
	PGDSN  string `koanf:"pg_dsn"`
}

// ProviderConfig addresses the hosted identity and database service.
type ProviderConfig struct {
	Endpoint  string        `koanf:"endpoint"`
	ProjectID string        `koanf:"project_id"`
	APIKey    string        `koanf:"api_key"`
	Timeout   time.Duration `koanf:"timeout"`
}

// Collections names the document collections used by the services.
type Collections struct {
	Staff           string `koanf:"staff"`
	Roles           string `koanf:"roles"`
	Permissions     string `koanf:"permissions"`
	RolePermissions string `koanf:"role_permissions"`
	Venues          string `koanf:"venues"`
}

type RateLimit struct {
	Burst     int     `koanf:"burst"`
	PerSecond float64 `koanf:"per_second"`
}

type CORSConfig struct {
	AllowedOrigins []string `koanf:"allowed_origins"`
}

// DevAdmin seeds an owner account when the memory driver is used.
type DevAdmin struct {
	Email    string `koanf:"email"`
	Password string `koanf:"password"`
}

// Default returns the configuration used when nothing overrides a key.
func Default() Config {
	return Config{
		HTTP:          HTTPConfig{Addr: ":8080"},
		GRPC:          GRPCConfig{Addr: ":9090"},
		PublicURL:     "http://localhost:3000",
		AppCookie:     "keno_admin_auth",
		Store:         StoreConfig{Driver: DriverProvider},
		Provider:      ProviderConfig{Timeout: 10 * time.Second},
		StaffTeamName: "Staff",
		Collections: Collections{
			Staff:           "staff",
			Roles:           "roles",
			Permissions:     "permissions",
			RolePermissions: "role_permissions",
			Venues:          "venues",
		},
		RolesCacheTTL:   5 * time.Minute,
		ParallelLookups: false,
		RateLimit:       RateLimit{Burst: 20, PerSecond: 10},
		CORS:            CORSConfig{AllowedOrigins: []string{"http://localhost:3000"}},
	}
}

// legacyEnv lists the flat variables of earlier deployments, first match wins.
var legacyEnv = []struct {
	keys  []string
	field func(*Config) *string
}{
	{[]string{"APPWRITE_ENDPOINT", "NEXT_PUBLIC_APPWRITE_ENDPOINT"}, func(c *Config) *string { return &c.Provider.Endpoint }},
	{[]string{"APPWRITE_PROJECT_ID", "NEXT_PUBLIC_APPWRITE_PROJECT_ID"}, func(c *Config) *string { return &c.Provider.ProjectID }},
	{[]string{"APPWRITE_API_KEY"}, func(c *Config) *string { return &c.Provider.APIKey }},
	{[]string{"APPWRITE_DATABASE_ID", "NEXT_PUBLIC_APPWRITE_DATABASE_ID"}, func(c *Config) *string { return &c.DatabaseID }},
	{[]string{"APPWRITE_STAFF_TEAM_ID", "NEXT_PUBLIC_APPWRITE_STAFF_TEAM_ID"}, func(c *Config) *string { return &c.StaffTeamID }},
}

// Load builds the configuration. Loading order:
// 1) defaults
// 2) YAML file named by KENO_CONFIG_FILE (optional)
// 3) environment variables with prefix KENO_, __ as nested separator, e.g. KENO_PROVIDER__API_KEY
// 4) legacy flat variables (APPWRITE_*, NEXT_PUBLIC_APPWRITE_*) for keys still empty
func Load() (Config, error) {
	k := koanf.New(".")

	if path := strings.TrimSpace(os.Getenv(envFileVar)); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("config: load %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		if s == envFileVar {
			return ""
		}
		// KENO_PROVIDER__API_KEY -> provider.api_key
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".")
	}), nil); err != nil {
		return Config{}, fmt.Errorf("config: load env: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	applyLegacy(&cfg, os.LookupEnv)
	cfg.normalize()
	return cfg, nil
}

func applyLegacy(cfg *Config, lookup func(string) (string, bool)) {
	for _, le := range legacyEnv {
		dst := le.field(cfg)
		if strings.TrimSpace(*dst) != "" {
			continue
		}
		for _, key := range le.keys {
			if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
				*dst = strings.TrimSpace(v)
				break
			}
		}
	}
}

func (c *Config) normalize() {
	c.Store.Driver = strings.ToLower(strings.TrimSpace(c.Store.Driver))
	c.Provider.Endpoint = strings.TrimRight(strings.TrimSpace(c.Provider.Endpoint), "/")
	c.PublicURL = strings.TrimRight(strings.TrimSpace(c.PublicURL), "/")
	if c.Store.Driver != DriverProvider && c.DatabaseID == "" {
		c.DatabaseID = "local"
	}
	if c.StaffTeamName == "" {
		c.StaffTeamName = "Staff"
	}
}

// Validate reports the first missing or inconsistent setting.
func (c Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.StaffTeamID) == "" {
		problems = append(problems, "staff_team_id is required")
	}
	switch c.Store.Driver {
	case DriverProvider, DriverPostgres:
		if c.Provider.Endpoint == "" {
			problems = append(problems, "provider.endpoint is required")
		}
		if c.Provider.ProjectID == "" {
			problems = append(problems, "provider.project_id is required")
		}
		if c.Provider.APIKey == "" {
			problems = append(problems, "provider.api_key is required")
		}
		if c.Store.Driver == DriverProvider && c.DatabaseID == "" {
			problems = append(problems, "database_id is required")
		}
		if c.Store.Driver == DriverPostgres && strings.TrimSpace(c.Store.PGDSN) == "" {
			problems = append(problems, "store.pg_dsn is required")
		}
	case DriverMemory:
	default:
		problems = append(problems, fmt.Sprintf("store.driver %q is not one of provider, postgres, memory", c.Store.Driver))
	}
	if c.RateLimit.Burst < 0 || c.RateLimit.PerSecond < 0 {
		problems = append(problems, "rate_limit values must not be negative")
	}
	if len(problems) > 0 {
		return errors.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

// ProviderSessionCookies returns the cookie names the hosted provider sets for a session.
func (c Config) ProviderSessionCookies() []string {
	base := "a_session_" + strings.ToLower(c.Provider.ProjectID)
	return []string{base, base + "_legacy"}
}
