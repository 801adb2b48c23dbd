// Package config loads switchboard settings from defaults, the config file
// and the environment.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/furisto/switchboard/shared"
	"github.com/furisto/switchboard/shared/keyring"
)

const (
	FileName  = "config.yaml"
	EnvPrefix = "SWITCHBOARD"

	KeyringScheme = "keyring://"
)

type Config struct {
	Agent     AgentConfig     `mapstructure:"agent"`
	API       APIConfig       `mapstructure:"api"`
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Sentry    SentryConfig    `mapstructure:"sentry"`
	Analytics AnalyticsConfig `mapstructure:"analytics"`
}

type AgentConfig struct {
	Address  string `mapstructure:"address"`
	Protocol string `mapstructure:"protocol"`
	Token    string `mapstructure:"token"`
	// TokenRef points at a token in the OS keyring, as
	// keyring://switchboard/<key>.
	TokenRef         string        `mapstructure:"token_ref"`
	BreakerThreshold int           `mapstructure:"breaker_threshold"`
	BreakerReset     time.Duration `mapstructure:"breaker_reset"`
}

type APIConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`

	// CacheTTL is how long serve reuses a health result. Zero disables caching.
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

type ServerConfig struct {
	ListenHTTP     string   `mapstructure:"listen_http"`
	ListenUnix     string   `mapstructure:"listen_unix"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type SentryConfig struct {
	DSN string `mapstructure:"dsn"`
}

// AnalyticsConfig enables PostHog usage events when PosthogKey is set.
type AnalyticsConfig struct {
	PosthogKey      string `mapstructure:"posthog_key"`
	PosthogEndpoint string `mapstructure:"posthog_endpoint"`
}

// Loader reads configuration. Precedence, highest first: bound flags,
// environment, config file, defaults.
type Loader struct {
	v          *viper.Viper
	fs         afero.Fs
	configDir  string
	configFile string
}

func NewLoader(fs afero.Fs, configDir string) *Loader {
	v := viper.New()
	v.SetFs(fs)

	return &Loader{
		v:         v,
		fs:        fs,
		configDir: configDir,
	}
}

// WithConfigFile reads path instead of searching the config directory.
func (l *Loader) WithConfigFile(path string) *Loader {
	l.configFile = path
	return l
}

// Viper returns the underlying viper instance for flag binding.
func (l *Loader) Viper() *viper.Viper {
	return l.v
}

func (l *Loader) ConfigFile() string {
	if l.configFile != "" {
		return l.configFile
	}
	return filepath.Join(l.configDir, FileName)
}

func (l *Loader) Load() (*Config, error) {
	l.setDefaults()

	l.v.SetEnvPrefix(EnvPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()
	if err := l.bindEnv(); err != nil {
		return nil, shared.Wrap(shared.ErrorSourceConfig, err, "binding environment")
	}

	if l.configFile != "" {
		l.v.SetConfigFile(l.configFile)
	} else {
		l.v.SetConfigName(strings.TrimSuffix(FileName, filepath.Ext(FileName)))
		l.v.SetConfigType("yaml")
		l.v.AddConfigPath(l.configDir)
	}

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, shared.Wrap(shared.ErrorSourceConfig, err, "reading config")
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, shared.Wrap(shared.ErrorSourceConfig, err, "unmarshaling config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (l *Loader) setDefaults() {
	l.v.SetDefault("agent.address", "localhost:50051")
	l.v.SetDefault("agent.protocol", "grpc")
	l.v.SetDefault("agent.breaker_threshold", 5)
	l.v.SetDefault("agent.breaker_reset", "30s")

	l.v.SetDefault("api.url", "http://localhost:8080")
	l.v.SetDefault("api.timeout", "5s")
	l.v.SetDefault("api.cache_ttl", "2s")

	l.v.SetDefault("server.listen_http", "localhost:3000")
	l.v.SetDefault("server.listen_unix", "")
	l.v.SetDefault("server.allowed_origins", []string{})

	l.v.SetDefault("log.level", "info")
	l.v.SetDefault("sentry.dsn", "")
	l.v.SetDefault("analytics.posthog_key", "")
	l.v.SetDefault("analytics.posthog_endpoint", "https://eu.i.posthog.com")
}

// bindEnv accepts the environment names the dashboard has always used
// alongside the prefixed ones. Earlier names win.
func (l *Loader) bindEnv() error {
	bindings := [][]string{
		{"agent.address", "SWITCHBOARD_AGENT_ADDRESS", "GRPC_URL"},
		{"api.url", "SWITCHBOARD_API_URL", "API_URL", "NEXT_PUBLIC_API_URL"},
	}
	for _, binding := range bindings {
		if err := l.v.BindEnv(binding...); err != nil {
			return err
		}
	}
	return nil
}

// Save sets key to value in the config file, leaving the file's other
// settings untouched. Defaults and environment overrides are not written.
func (l *Loader) Save(key string, value any) error {
	path := l.ConfigFile()

	file := viper.New()
	file.SetFs(l.fs)
	file.SetConfigFile(path)

	exists, err := afero.Exists(l.fs, path)
	if err != nil {
		return shared.Wrap(shared.ErrorSourceConfig, err, "checking config file")
	}
	if exists {
		if err := file.ReadInConfig(); err != nil {
			return shared.Wrap(shared.ErrorSourceConfig, err, "reading config")
		}
	}

	file.Set(key, value)
	l.v.Set(key, value)

	if err := l.fs.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return shared.Wrap(shared.ErrorSourceConfig, err, "creating config directory")
	}
	if err := file.WriteConfigAs(path); err != nil {
		return shared.Wrap(shared.ErrorSourceConfig, err, "writing config")
	}
	return nil
}

func (c *Config) Validate() error {
	switch c.Agent.Protocol {
	case "grpc", "grpcweb", "connect":
	default:
		return shared.Errorf(shared.ErrorSourceConfig, "invalid agent.protocol %q: must be grpc, grpcweb or connect", c.Agent.Protocol)
	}

	if c.Agent.BreakerThreshold < 0 {
		return shared.Errorf(shared.ErrorSourceConfig, "invalid agent.breaker_threshold %d: must not be negative", c.Agent.BreakerThreshold)
	}

	if c.API.CacheTTL < 0 {
		return shared.Errorf(shared.ErrorSourceConfig, "invalid api.cache_ttl %s: must not be negative", c.API.CacheTTL)
	}

	if c.API.Timeout <= 0 {
		return shared.Errorf(shared.ErrorSourceConfig, "invalid api.timeout %s: must be positive", c.API.Timeout)
	}

	if c.Agent.TokenRef != "" {
		if _, err := ParseTokenRef(c.Agent.TokenRef); err != nil {
			return err
		}
	}

	return nil
}

// TokenRef returns the reference under which the agent token for key is
// stored.
func TokenRef(key string) string {
	return fmt.Sprintf("%s%s/%s", KeyringScheme, keyring.ServiceName, key)
}

// ParseTokenRef returns the keyring key of a keyring://switchboard/<key>
// reference.
func ParseTokenRef(ref string) (string, error) {
	rest, ok := strings.CutPrefix(ref, KeyringScheme)
	if !ok {
		return "", shared.Errorf(shared.ErrorSourceConfig, "invalid token reference %q: must start with %s", ref, KeyringScheme)
	}

	service, key, ok := strings.Cut(rest, "/")
	if !ok || key == "" {
		return "", shared.Errorf(shared.ErrorSourceConfig, "invalid token reference %q: missing key", ref)
	}
	if service != keyring.ServiceName {
		return "", shared.Errorf(shared.ErrorSourceConfig, "invalid token reference %q: unknown keyring service %q", ref, service)
	}

	return key, nil
}

// AgentToken returns the bearer token for the agent service, looking it up in
// the keyring when only a reference is configured. Empty means no token.
func (c *Config) AgentToken(provider keyring.Provider) (string, error) {
	if c.Agent.Token != "" {
		return c.Agent.Token, nil
	}
	if c.Agent.TokenRef == "" {
		return "", nil
	}

	key, err := ParseTokenRef(c.Agent.TokenRef)
	if err != nil {
		return "", err
	}

	token, err := provider.Get(key)
	if err != nil {
		return "", shared.Wrap(shared.ErrorSourceConfig, err, "resolving agent token")
	}
	return token, nil
}
