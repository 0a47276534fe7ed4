// Package config loads settings from defaults, an optional YAML file, a
// .env file and the environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"realestate/internal/dispatch"
	"realestate/internal/logging"
	"realestate/internal/providers/portal"
	"realestate/internal/server"
	"realestate/internal/service"
	"realestate/internal/store/sqlite"
)

const EnvPrefix = "REALESTATE"

type Config struct {
	Credentials Credentials `mapstructure:"credentials"`
	Portals     Portals     `mapstructure:"portals"`
	HTTP        HTTP        `mapstructure:"http"`
	Retry       Retry       `mapstructure:"retry"`
	Limits      Limits      `mapstructure:"limits"`
	Region      Region      `mapstructure:"region"`
	Log         Log         `mapstructure:"log"`
	Server      Server      `mapstructure:"server"`
}

// Credentials are opaque portal keys. They are never validated here; a
// missing key surfaces as an auth failure on the first call that needs it.
type Credentials struct {
	DataGoKr          string `mapstructure:"data_go_kr"`
	Onbid             string `mapstructure:"onbid"`
	ODCloudAPIKey     string `mapstructure:"odcloud_api_key"`
	ODCloudServiceKey string `mapstructure:"odcloud_service_key"`
}

type Portals struct {
	DataGoKr string `mapstructure:"data_go_kr"`
	ODCloud  string `mapstructure:"odcloud"`
	Onbid    string `mapstructure:"onbid"`
}

type HTTP struct {
	Timeout         time.Duration `mapstructure:"timeout"`
	UserAgent       string        `mapstructure:"user_agent"`
	RateLimitPerSec float64       `mapstructure:"rate_limit_per_sec"`
	RateLimitBurst  int           `mapstructure:"rate_limit_burst"`
}

type Retry struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
}

type Limits struct {
	MaxConcurrentCalls int64         `mapstructure:"max_concurrent_calls"`
	CallTimeout        time.Duration `mapstructure:"call_timeout"`
	MaxSpanMonths      int           `mapstructure:"max_span_months"`
	MaxRowBudget       int           `mapstructure:"max_row_budget"`
	DefaultRowBudget   int           `mapstructure:"default_row_budget"`
}

type Region struct {
	// IndexPath is the sqlite file backing the region index. The default
	// keeps it in memory for the life of the process.
	IndexPath string `mapstructure:"index_path"`
}

type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type Server struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// credentialEnv lists the bare variable names accepted besides the
// REALESTATE_ prefixed ones.
var credentialEnv = map[string]string{
	"credentials.data_go_kr":          "DATA_GO_KR_API_KEY",
	"credentials.onbid":               "ONBID_API_KEY",
	"credentials.odcloud_api_key":     "ODCLOUD_API_KEY",
	"credentials.odcloud_service_key": "ODCLOUD_SERVICE_KEY",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("credentials.data_go_kr", "")
	v.SetDefault("credentials.onbid", "")
	v.SetDefault("credentials.odcloud_api_key", "")
	v.SetDefault("credentials.odcloud_service_key", "")

	v.SetDefault("portals.data_go_kr", "https://apis.data.go.kr")
	v.SetDefault("portals.odcloud", "https://api.odcloud.kr/api")
	v.SetDefault("portals.onbid", "http://openapi.onbid.co.kr/openapi/services")

	v.SetDefault("http.timeout", 15*time.Second)
	v.SetDefault("http.user_agent", "realestate/0.1")
	v.SetDefault("http.rate_limit_per_sec", 5.0)
	v.SetDefault("http.rate_limit_burst", 2)

	v.SetDefault("retry.max_attempts", 4)
	v.SetDefault("retry.base_delay", 500*time.Millisecond)
	v.SetDefault("retry.max_delay", 8*time.Second)

	v.SetDefault("limits.max_concurrent_calls", service.DefaultMaxConcurrentCalls)
	v.SetDefault("limits.call_timeout", service.DefaultCallTimeout)
	v.SetDefault("limits.max_span_months", dispatch.DefaultMaxSpanMonths)
	v.SetDefault("limits.max_row_budget", dispatch.DefaultMaxRowBudget)
	v.SetDefault("limits.default_row_budget", dispatch.DefaultDefaultRowBudget)

	v.SetDefault("region.index_path", sqlite.MemoryPath)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", logging.FormatAuto)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.shutdown_timeout", server.DefaultShutdownTimeout)
}

// Load reads configuration. path names an optional YAML file; when empty,
// realestate.yaml is looked up in the working directory and skipped if
// absent. envFiles default to .env, and missing env files are ignored.
func Load(path string, envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load env file: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigType("yaml")
	if strings.TrimSpace(path) != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		v.SetConfigName("realestate")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range credentialEnv {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var problems []string
	check := func(ok bool, format string, args ...any) {
		if !ok {
			problems = append(problems, fmt.Sprintf(format, args...))
		}
	}

	check(c.HTTP.Timeout > 0, "http.timeout must be positive")
	check(c.HTTP.RateLimitPerSec > 0, "http.rate_limit_per_sec must be positive")
	check(c.HTTP.RateLimitBurst > 0, "http.rate_limit_burst must be positive")
	check(c.Retry.MaxAttempts >= 1, "retry.max_attempts must be at least 1")
	check(c.Retry.BaseDelay > 0, "retry.base_delay must be positive")
	check(c.Retry.MaxDelay >= c.Retry.BaseDelay, "retry.max_delay must not be below retry.base_delay")
	check(c.Limits.MaxConcurrentCalls >= 1, "limits.max_concurrent_calls must be at least 1")
	check(c.Limits.CallTimeout > 0, "limits.call_timeout must be positive")
	check(c.Limits.MaxSpanMonths >= 1, "limits.max_span_months must be at least 1")
	check(c.Limits.DefaultRowBudget >= 1, "limits.default_row_budget must be at least 1")
	check(c.Limits.MaxRowBudget >= c.Limits.DefaultRowBudget, "limits.max_row_budget must not be below limits.default_row_budget")
	check(strings.TrimSpace(c.Region.IndexPath) != "", "region.index_path must not be empty")
	check(c.Server.ShutdownTimeout > 0, "server.shutdown_timeout must be positive")
	for name, base := range map[string]string{
		"portals.data_go_kr": c.Portals.DataGoKr,
		"portals.odcloud":    c.Portals.ODCloud,
		"portals.onbid":      c.Portals.Onbid,
	} {
		check(strings.HasPrefix(base, "http://") || strings.HasPrefix(base, "https://"), "%s must be an http(s) URL", name)
	}
	if _, err := logging.New(logging.Options{Level: c.Log.Level, Format: c.Log.Format}); err != nil {
		problems = append(problems, err.Error())
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) PortalConfig() portal.Config {
	return portal.Config{
		DataGoKrBaseURL: c.Portals.DataGoKr,
		ODCloudBaseURL:  c.Portals.ODCloud,
		OnbidBaseURL:    c.Portals.Onbid,
		Credentials: portal.Credentials{
			DataGoKr:          c.Credentials.DataGoKr,
			Onbid:             c.Credentials.Onbid,
			ODCloudAPIKey:     c.Credentials.ODCloudAPIKey,
			ODCloudServiceKey: c.Credentials.ODCloudServiceKey,
		},
		Timeout:         c.HTTP.Timeout,
		UserAgent:       c.HTTP.UserAgent,
		RateLimitPerSec: c.HTTP.RateLimitPerSec,
		RateLimitBurst:  c.HTTP.RateLimitBurst,
		MaxAttempts:     c.Retry.MaxAttempts,
		BaseDelay:       c.Retry.BaseDelay,
		MaxDelay:        c.Retry.MaxDelay,
	}
}

func (c *Config) DispatchConfig() dispatch.Config {
	return dispatch.Config{
		MaxSpanMonths:    c.Limits.MaxSpanMonths,
		MaxRowBudget:     c.Limits.MaxRowBudget,
		DefaultRowBudget: c.Limits.DefaultRowBudget,
	}
}

func (c *Config) ServiceConfig() service.Config {
	return service.Config{
		MaxConcurrentCalls: c.Limits.MaxConcurrentCalls,
		CallTimeout:        c.Limits.CallTimeout,
	}
}

func (c *Config) ServerConfig() server.Config {
	return server.Config{
		Addr:            c.Server.Addr,
		ShutdownTimeout: c.Server.ShutdownTimeout,
	}
}

func (c *Config) LogOptions() logging.Options {
	return logging.Options{Level: c.Log.Level, Format: c.Log.Format}
}
