package app

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"arcshell/cmd/internal/auth/session"
)

// ErrConfig is returned for invalid configuration.
var ErrConfig = errors.New("invalid config")

// Flag store backends.
const (
	FlagStoreFile     = "file"
	FlagStoreMemory   = "memory"
	FlagStorePostgres = "postgres"
	FlagStoreRedis    = "redis"
)

// Config contains all runtime configuration.
//
// Sources, later wins: defaults, the TOML file named by ARC_CONFIG_FILE, environment.
type Config struct {
	HTTPAddr  string `toml:"http_addr"`
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`

	ReadHeaderTimeout time.Duration `toml:"read_header_timeout"`
	ReadTimeout       time.Duration `toml:"read_timeout"`
	IdleTimeout       time.Duration `toml:"idle_timeout"`
	MaxHeaderBytes    int           `toml:"max_header_bytes"`

	// Identity Service.
	APIURL         string        `toml:"api_url"`
	APITimeout     time.Duration `toml:"api_timeout"`
	CSRFCookieName string        `toml:"csrf_cookie_name"`
	CSRFHeaderName string        `toml:"csrf_header_name"`

	// Durable flag store.
	FlagStore     string `toml:"flag_store"`
	FlagDir       string `toml:"flag_dir"`
	FlagNamespace string `toml:"flag_namespace"`

	DatabaseURL  string `toml:"database_url"`
	DBSchema     string `toml:"db_schema"`
	DBMaxConns   int32  `toml:"db_max_conns"`
	DBMinConns   int32  `toml:"db_min_conns"`
	DBAutoSchema bool   `toml:"db_auto_schema"`

	RedisURL string `toml:"redis_url"`

	// Session event stream.
	WSHeartbeatInterval time.Duration `toml:"ws_heartbeat_interval"`
	WSRateEvents        int           `toml:"ws_rate_events"`
	WSRateWindow        time.Duration `toml:"ws_rate_window"`
	WSOriginPatterns    []string      `toml:"ws_origin_patterns"`

	CORSAllowedOrigins   []string `toml:"cors_allowed_origins"`
	CORSAllowCredentials bool     `toml:"cors_allow_credentials"`
	CORSMaxAgeSeconds    int      `toml:"cors_max_age_seconds"`

	SessionRenewalInterval time.Duration `toml:"session_renewal_interval"`
	SessionRequestTimeout  time.Duration `toml:"session_request_timeout"`
	SessionFlagKey         string        `toml:"session_flag_key"`

	// Session is derived from the Session* fields and ARC_SESSION_* variables.
	Session session.Config `toml:"-"`
}

// DefaultConfig returns development defaults.
func DefaultConfig() Config {
	sc := session.DefaultConfig()
	return Config{
		HTTPAddr:  "127.0.0.1:3000",
		LogLevel:  "info",
		LogFormat: "json",

		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,

		APIURL:         "http://127.0.0.1:8080",
		APITimeout:     10 * time.Second,
		CSRFCookieName: "arc_csrf_token",
		CSRFHeaderName: "X-CSRF-Token",

		FlagStore: FlagStoreFile,

		DBSchema:   "arc",
		DBMaxConns: 4,
		DBMinConns: 0,

		WSHeartbeatInterval: 25 * time.Second,
		WSRateEvents:        30,
		WSRateWindow:        10 * time.Second,

		CORSMaxAgeSeconds: 600,

		SessionRenewalInterval: sc.RenewalInterval,
		SessionRequestTimeout:  sc.RequestTimeout,
		SessionFlagKey:         sc.FlagKey,
	}
}

// LoadConfig loads Config from defaults, the optional TOML file and environment variables.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()

	if path := EnvString("ARC_CONFIG_FILE", ""); path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("%w: %s: %v", ErrConfig, path, err)
		}
	}

	cfg.HTTPAddr = EnvString("ARC_HTTP_ADDR", cfg.HTTPAddr)
	cfg.LogLevel = EnvString("ARC_LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = EnvString("ARC_LOG_FORMAT", cfg.LogFormat)

	cfg.ReadHeaderTimeout = EnvDuration("ARC_HTTP_READ_HEADER_TIMEOUT", cfg.ReadHeaderTimeout)
	cfg.ReadTimeout = EnvDuration("ARC_HTTP_READ_TIMEOUT", cfg.ReadTimeout)
	cfg.IdleTimeout = EnvDuration("ARC_HTTP_IDLE_TIMEOUT", cfg.IdleTimeout)
	cfg.MaxHeaderBytes = EnvInt("ARC_HTTP_MAX_HEADER_BYTES", cfg.MaxHeaderBytes)

	cfg.APIURL = EnvString("ARC_API_URL", cfg.APIURL)
	cfg.APITimeout = EnvDuration("ARC_API_TIMEOUT", cfg.APITimeout)
	cfg.CSRFCookieName = EnvString("ARC_CSRF_COOKIE_NAME", cfg.CSRFCookieName)
	cfg.CSRFHeaderName = EnvString("ARC_CSRF_HEADER_NAME", cfg.CSRFHeaderName)

	cfg.FlagStore = strings.ToLower(EnvString("ARC_FLAG_STORE", cfg.FlagStore))
	cfg.FlagDir = EnvString("ARC_FLAG_DIR", cfg.FlagDir)
	cfg.FlagNamespace = EnvString("ARC_FLAG_NAMESPACE", cfg.FlagNamespace)

	cfg.DatabaseURL = EnvString("ARC_DATABASE_URL", cfg.DatabaseURL)
	cfg.DBSchema = EnvString("ARC_DB_SCHEMA", cfg.DBSchema)
	cfg.DBMaxConns = EnvInt32("ARC_DB_MAX_CONNS", cfg.DBMaxConns)
	cfg.DBMinConns = EnvInt32("ARC_DB_MIN_CONNS", cfg.DBMinConns)
	cfg.DBAutoSchema = EnvBool("ARC_DB_AUTO_SCHEMA", cfg.DBAutoSchema)

	cfg.RedisURL = EnvString("ARC_REDIS_URL", cfg.RedisURL)

	cfg.WSHeartbeatInterval = EnvDuration("ARC_WS_HEARTBEAT_INTERVAL", cfg.WSHeartbeatInterval)
	cfg.WSRateEvents = EnvInt("ARC_WS_RATE_EVENTS", cfg.WSRateEvents)
	cfg.WSRateWindow = EnvDuration("ARC_WS_RATE_WINDOW", cfg.WSRateWindow)
	cfg.WSOriginPatterns = EnvCSV("ARC_WS_ORIGIN_PATTERNS", cfg.WSOriginPatterns)

	cfg.CORSAllowedOrigins = EnvCSV("ARC_CORS_ALLOWED_ORIGINS", cfg.CORSAllowedOrigins)
	cfg.CORSAllowCredentials = EnvBool("ARC_CORS_ALLOW_CREDENTIALS", cfg.CORSAllowCredentials)
	cfg.CORSMaxAgeSeconds = EnvInt("ARC_CORS_MAX_AGE_SECONDS", cfg.CORSMaxAgeSeconds)

	sc, err := session.ApplyEnv(session.Config{
		RenewalInterval: cfg.SessionRenewalInterval,
		RequestTimeout:  cfg.SessionRequestTimeout,
		FlagKey:         cfg.SessionFlagKey,
	})
	if err != nil {
		return Config{}, fmt.Errorf("%w: session: %v", ErrConfig, err)
	}
	cfg.Session = sc

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field invariants.
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: ARC_API_URL must be an absolute http(s) URL", ErrConfig)
	}

	if c.FlagNamespace == "" {
		c.FlagNamespace = u.Scheme + "://" + u.Host
	}

	switch c.FlagStore {
	case FlagStoreFile, FlagStoreMemory:
	case FlagStorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("%w: flag store %q requires ARC_DATABASE_URL", ErrConfig, c.FlagStore)
		}
	case FlagStoreRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("%w: flag store %q requires ARC_REDIS_URL", ErrConfig, c.FlagStore)
		}
	default:
		return fmt.Errorf("%w: unknown flag store %q", ErrConfig, c.FlagStore)
	}

	switch strings.ToLower(c.LogFormat) {
	case "json", "pretty":
	default:
		return fmt.Errorf("%w: unknown log format %q", ErrConfig, c.LogFormat)
	}
	return nil
}
