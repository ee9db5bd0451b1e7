package config

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	StoreDynamoDB = "dynamodb"
	StoreRedis    = "redis"
	StoreMemory   = "memory"
)

// Parameter names under PARAM_PREFIX.
const (
	paramChannelSecret = "channel-secret"
	paramRelaySecret   = "relay-secret"
	paramAccessToken   = "access-token"
)

// ParameterGetter resolves secrets by full parameter name.
// *paramstore.Client satisfies this interface.
type ParameterGetter interface {
	GetParameters(ctx context.Context, names ...string) (map[string]string, error)
}

// Edge configures the public webhook receiver.
type Edge struct {
	Port            string        `env:"PORT" envDefault:"8080"`
	ChannelSecret   string        `env:"LINE_CHANNEL_SECRET"`
	RelaySecret     string        `env:"RELAY_SECRET"`
	ForwardURL      string        `env:"RELAY_FORWARD_URL"`
	ParamPrefix     string        `env:"PARAM_PREFIX"`
	ForwardTimeout  time.Duration `env:"FORWARD_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	MaxBodyBytes    int64         `env:"MAX_BODY_BYTES" envDefault:"1048576"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
}

// Backend configures the conversation backend.
type Backend struct {
	RelaySecret    string `env:"RELAY_SECRET"`
	AccessToken    string `env:"LINE_ACCESS_TOKEN"`
	ParamPrefix    string `env:"PARAM_PREFIX"`
	StoreBackend   string `env:"STORE_BACKEND" envDefault:"dynamodb"`
	StateTable     string `env:"STATE_TABLE"`
	RedisURL       string `env:"REDIS_URL"`
	LineAPIBaseURL string `env:"LINE_API_BASE_URL" envDefault:"https://api.line.me"`
	LoadingSeconds int    `env:"LOADING_SECONDS" envDefault:"15"`
	HTTPAddr       string `env:"HTTP_ADDR" envDefault:":8081"`
	LogLevel       string `env:"LOG_LEVEL" envDefault:"info"`
}

// LoadEdge reads the edge configuration from the environment, loading a
// .env file first when one exists.
func LoadEdge() (*Edge, error) {
	_ = godotenv.Load()

	cfg, err := env.ParseAs[Edge]()
	if err != nil {
		return nil, fmt.Errorf("config: parse edge: %w", err)
	}
	cfg.trim()
	return &cfg, nil
}

// LoadBackend reads the backend configuration from the environment, loading
// a .env file first when one exists.
func LoadBackend() (*Backend, error) {
	_ = godotenv.Load()

	cfg, err := env.ParseAs[Backend]()
	if err != nil {
		return nil, fmt.Errorf("config: parse backend: %w", err)
	}
	cfg.trim()
	return &cfg, nil
}

func (c *Edge) trim() {
	c.ChannelSecret = strings.TrimSpace(c.ChannelSecret)
	c.RelaySecret = strings.TrimSpace(c.RelaySecret)
	c.ForwardURL = strings.TrimSpace(c.ForwardURL)
	c.ParamPrefix = strings.TrimRight(strings.TrimSpace(c.ParamPrefix), "/")
}

func (c *Backend) trim() {
	c.RelaySecret = strings.TrimSpace(c.RelaySecret)
	c.AccessToken = strings.TrimSpace(c.AccessToken)
	c.ParamPrefix = strings.TrimRight(strings.TrimSpace(c.ParamPrefix), "/")
	c.StoreBackend = strings.ToLower(strings.TrimSpace(c.StoreBackend))
}

// NeedsSecrets reports whether ResolveSecrets has anything to fetch.
func (c *Edge) NeedsSecrets() bool {
	return c.ParamPrefix != "" && len(c.missing()) > 0
}

func (c *Edge) missing() map[string]*string {
	m := map[string]*string{}
	if c.ChannelSecret == "" {
		m[paramChannelSecret] = &c.ChannelSecret
	}
	if c.RelaySecret == "" && c.ForwardURL != "" {
		m[paramRelaySecret] = &c.RelaySecret
	}
	return m
}

// ResolveSecrets fills empty secrets from Parameter Store under ParamPrefix.
// Without a prefix it does nothing.
func (c *Edge) ResolveSecrets(ctx context.Context, getter ParameterGetter) error {
	if c.ParamPrefix == "" {
		return nil
	}
	return resolve(ctx, getter, c.ParamPrefix, c.missing())
}

// Validate checks the settings the receiver cannot run without.
func (c *Edge) Validate() error {
	var errs []error
	if c.ChannelSecret == "" {
		errs = append(errs, errors.New("LINE_CHANNEL_SECRET is required"))
	}
	if c.ForwardURL != "" && c.RelaySecret == "" {
		errs = append(errs, errors.New("RELAY_SECRET is required when RELAY_FORWARD_URL is set"))
	}
	if c.ForwardTimeout <= 0 {
		errs = append(errs, errors.New("FORWARD_TIMEOUT must be positive"))
	}
	if c.MaxBodyBytes <= 0 {
		errs = append(errs, errors.New("MAX_BODY_BYTES must be positive"))
	}
	return joinErrors(errs)
}

// NeedsSecrets reports whether ResolveSecrets has anything to fetch.
func (c *Backend) NeedsSecrets() bool {
	return c.ParamPrefix != "" && len(c.missing()) > 0
}

func (c *Backend) missing() map[string]*string {
	m := map[string]*string{}
	if c.RelaySecret == "" {
		m[paramRelaySecret] = &c.RelaySecret
	}
	if c.AccessToken == "" {
		m[paramAccessToken] = &c.AccessToken
	}
	return m
}

// ResolveSecrets fills empty secrets from Parameter Store under ParamPrefix.
// Without a prefix it does nothing.
func (c *Backend) ResolveSecrets(ctx context.Context, getter ParameterGetter) error {
	if c.ParamPrefix == "" {
		return nil
	}
	return resolve(ctx, getter, c.ParamPrefix, c.missing())
}

func (c *Backend) Validate() error {
	var errs []error
	if c.RelaySecret == "" {
		errs = append(errs, errors.New("RELAY_SECRET is required"))
	}
	if c.AccessToken == "" {
		errs = append(errs, errors.New("LINE_ACCESS_TOKEN is required"))
	}
	switch c.StoreBackend {
	case StoreDynamoDB:
		if strings.TrimSpace(c.StateTable) == "" {
			errs = append(errs, errors.New("STATE_TABLE is required for the dynamodb store"))
		}
	case StoreRedis:
		if strings.TrimSpace(c.RedisURL) == "" {
			errs = append(errs, errors.New("REDIS_URL is required for the redis store"))
		}
	case StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("STORE_BACKEND %q is not one of dynamodb, redis, memory", c.StoreBackend))
	}
	if c.LoadingSeconds < 0 {
		errs = append(errs, errors.New("LOADING_SECONDS must not be negative"))
	}
	return joinErrors(errs)
}

func resolve(ctx context.Context, getter ParameterGetter, prefix string, targets map[string]*string) error {
	if len(targets) == 0 {
		return nil
	}
	if getter == nil {
		return errors.New("config: parameter getter must not be nil")
	}

	names := make([]string, 0, len(targets))
	byName := make(map[string]*string, len(targets))
	for key, dst := range targets {
		name := prefix + "/" + key
		names = append(names, name)
		byName[name] = dst
	}
	sort.Strings(names)

	values, err := getter.GetParameters(ctx, names...)
	if err != nil {
		return fmt.Errorf("config: resolve secrets: %w", err)
	}
	for name, dst := range byName {
		v, ok := values[name]
		if !ok || v == "" {
			return fmt.Errorf("config: parameter %q is empty", name)
		}
		*dst = v
	}
	return nil
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("config: %w", errors.Join(errs...))
}
