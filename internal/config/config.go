// Package config resolves formflow settings. Sources are applied in order:
// built-in defaults, an optional YAML file, then FORMFLOW_* environment
// variables. Command-line flags are layered on top by the binary.
package config

import (
	"bytes"
	"errors"
	"io"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/m-mizutani/goerr/v2"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-formflow/pkg/forms"
	"github.com/goliatone/go-formflow/pkg/schema"
	"github.com/goliatone/go-formflow/pkg/store"
	"github.com/goliatone/go-formflow/pkg/visibility"
	"github.com/goliatone/go-formflow/pkg/visibility/expr"
	"github.com/goliatone/go-formflow/pkg/visibility/exprlang"
)

// EnvPrefix prefixes every environment variable.
const EnvPrefix = "FORMFLOW_"

// Rule engines.
const (
	EngineExpr     = "expr"
	EngineExprLang = "exprlang"
)

var (
	ErrInvalidConfig  = goerr.New("invalid configuration")
	ErrConfigNotFound = goerr.New("configuration file not found")
)

// Config is the resolved configuration.
type Config struct {
	Addr            string  `yaml:"addr" env:"ADDR"`
	Catalog         string  `yaml:"catalog" env:"CATALOG"`
	ValidateCatalog bool    `yaml:"validateCatalog" env:"VALIDATE_CATALOG"`
	Templates       string  `yaml:"templates" env:"TEMPLATES"`
	Engine          string  `yaml:"engine" env:"ENGINE"`
	LenientSurvey   bool    `yaml:"lenientSurvey" env:"LENIENT_SURVEY"`
	Storage         Storage `yaml:"storage" envPrefix:"STORAGE_"`
	Log             Log     `yaml:"log" envPrefix:"LOG_"`

	// Scopes and Keys override the storage scope and key per form id. In the
	// environment they are written as "registration:persistent,survey:session".
	Scopes map[string]string `yaml:"scopes" env:"SCOPES"`
	Keys   map[string]string `yaml:"keys" env:"KEYS"`
}

// Storage selects the persistent backend. Session-scoped history always
// lives in memory and is dropped after SessionTTL without activity.
type Storage struct {
	Backend    string        `yaml:"backend" env:"BACKEND"`
	Path       string        `yaml:"path" env:"PATH"`
	SessionTTL time.Duration `yaml:"sessionTTL" env:"SESSION_TTL"`
}

// Log configures the zap logger.
type Log struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Addr:    ":8080",
		Engine:  EngineExpr,
		Storage: Storage{Backend: "sqlite", Path: "formflow.db", SessionTTL: 30 * time.Minute},
		Log:     Log{Level: "info", Format: "json"},
	}
}

// Load resolves the configuration from the YAML file at path (skipped when
// empty) and the process environment.
func Load(path string) (Config, error) {
	return LoadWith(path, environ())
}

// LoadWith is Load with an explicit environment.
func LoadWith(path string, environment map[string]string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			return Config{}, goerr.Wrap(ErrConfigNotFound, "read config", goerr.V("path", path))
		}
		if err != nil {
			return Config{}, goerr.Wrap(err, "read config", goerr.V("path", path))
		}
		if err := decodeYAML(raw, &cfg); err != nil {
			return Config{}, goerr.Wrap(err, "parse config", goerr.V("path", path))
		}
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix, Environment: environment}); err != nil {
		return Config{}, goerr.Wrap(err, "parse environment")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decodeYAML(raw []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Validate checks every setting that can be checked without touching the
// filesystem.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return goerr.Wrap(ErrInvalidConfig, "addr is required")
	}
	switch c.Engine {
	case EngineExpr, EngineExprLang:
	default:
		return goerr.Wrap(ErrInvalidConfig, "unknown rule engine", goerr.V("engine", c.Engine))
	}
	switch c.Storage.Backend {
	case "memory":
	case "file", "sqlite":
		if strings.TrimSpace(c.Storage.Path) == "" {
			return goerr.Wrap(ErrInvalidConfig, "storage path is required", goerr.V("backend", c.Storage.Backend))
		}
	default:
		return goerr.Wrap(ErrInvalidConfig, "unknown storage backend", goerr.V("backend", c.Storage.Backend))
	}
	if c.Storage.SessionTTL < 0 {
		return goerr.Wrap(ErrInvalidConfig, "session ttl must not be negative", goerr.V("ttl", c.Storage.SessionTTL))
	}
	for id, scope := range c.Scopes {
		if _, err := store.ParseScope(scope); err != nil {
			return goerr.Wrap(ErrInvalidConfig, "invalid storage scope", goerr.V("form", id), goerr.V("scope", scope))
		}
	}
	for id, key := range c.Keys {
		if strings.TrimSpace(key) == "" {
			return goerr.Wrap(ErrInvalidConfig, "empty storage key", goerr.V("form", id))
		}
	}
	return nil
}

// CatalogOptions returns the options used to load the form catalogue.
func (c Config) CatalogOptions() []forms.LoadOption {
	opts := []forms.LoadOption{forms.WithValidation(c.ValidateCatalog)}
	if c.Catalog != "" {
		opts = append(opts, forms.WithSource(schema.SourceFromFile(c.Catalog)))
	}
	return opts
}

// Apply writes the per-form storage overrides into catalog.
func (c Config) Apply(catalog *forms.Catalog) error {
	for id, scope := range c.Scopes {
		if err := catalog.SetScope(id, scope); err != nil {
			return goerr.Wrap(err, "apply storage scope", goerr.V("form", id))
		}
	}
	for id, key := range c.Keys {
		if err := catalog.SetKey(id, key); err != nil {
			return goerr.Wrap(err, "apply storage key", goerr.V("form", id))
		}
	}
	return nil
}

// Evaluator returns the configured rule engine.
func (c Config) Evaluator() visibility.Evaluator {
	if c.Engine == EngineExprLang {
		return exprlang.New()
	}
	return expr.New()
}

// SchemaOptions returns validation options for form id.
func (c Config) SchemaOptions(id string) []schema.Option {
	opts := []schema.Option{schema.WithEvaluator(c.Evaluator())}
	if id == forms.SurveyID && c.LenientSurvey {
		opts = append(opts, schema.WithVariantRequirements(false))
	}
	return opts
}

// OpenRouter opens the persistent backend and pairs it with an in-memory
// session store whose keys expire after SessionTTL of inactivity. The
// returned function closes the backend.
func (c Config) OpenRouter() (store.Router, func() error, error) {
	persistent, closeFn, err := store.Open(c.Storage.Backend, c.Storage.Path)
	if err != nil {
		return store.Router{}, nil, goerr.Wrap(err, "open storage",
			goerr.V("backend", c.Storage.Backend), goerr.V("path", c.Storage.Path))
	}
	session := store.NewMemory(store.WithIdleTTL(c.Storage.SessionTTL))
	return store.Router{Session: session, Persistent: persistent}, closeFn, nil
}

func environ() map[string]string {
	out := make(map[string]string)
	for _, kv := range os.Environ() {
		key, value, ok := strings.Cut(kv, "=")
		if ok && strings.HasPrefix(key, EnvPrefix) {
			out[key] = value
		}
	}
	return out
}
