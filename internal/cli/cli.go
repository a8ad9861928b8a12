// Package cli implements the formflow command line.
package cli

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/goliatone/go-formflow/internal/config"
	"github.com/goliatone/go-formflow/internal/logging"
	"github.com/goliatone/go-formflow/pkg/controller"
	"github.com/goliatone/go-formflow/pkg/forms"
)

var processSession = uuid.NewString()

// runtime is what Before resolves for the subcommands.
type runtime struct {
	cfg     config.Config
	logger  *zap.Logger
	catalog *forms.Catalog
	out     io.Writer
}

// overrides holds global flag values. Only flags set on the command line
// (or through their env var) replace the loaded configuration.
type overrides struct {
	configPath      string
	catalog         string
	validateCatalog bool
	templates       string
	engine          string
	lenientSurvey   bool
	storageBackend  string
	storagePath     string
	sessionTTL      time.Duration
	logLevel        string
	logFormat       string
}

func (o *overrides) flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "YAML configuration file",
			Sources:     cli.EnvVars(config.EnvPrefix + "CONFIG"),
			Destination: &o.configPath,
		},
		&cli.StringFlag{
			Name:        "catalog",
			Usage:       "OpenAPI form catalogue (embedded catalogue when empty)",
			Sources:     cli.EnvVars(config.EnvPrefix + "CATALOG"),
			Destination: &o.catalog,
		},
		&cli.BoolFlag{
			Name:        "validate-catalog",
			Usage:       "Validate the catalogue document against OpenAPI 3",
			Sources:     cli.EnvVars(config.EnvPrefix + "VALIDATE_CATALOG"),
			Destination: &o.validateCatalog,
		},
		&cli.StringFlag{
			Name:        "templates",
			Usage:       "Directory with page template overrides",
			Sources:     cli.EnvVars(config.EnvPrefix + "TEMPLATES"),
			Destination: &o.templates,
		},
		&cli.StringFlag{
			Name:        "engine",
			Usage:       "Rule engine for refinements (expr|exprlang)",
			Sources:     cli.EnvVars(config.EnvPrefix + "ENGINE"),
			Destination: &o.engine,
		},
		&cli.BoolFlag{
			Name:        "lenient-survey",
			Usage:       "Make the survey topic's fields optional (enforced by default)",
			Sources:     cli.EnvVars(config.EnvPrefix + "LENIENT_SURVEY"),
			Destination: &o.lenientSurvey,
		},
		&cli.StringFlag{
			Name:        "storage-backend",
			Usage:       "Persistent storage backend (memory|file|sqlite)",
			Category:    "Storage",
			Sources:     cli.EnvVars(config.EnvPrefix + "STORAGE_BACKEND"),
			Destination: &o.storageBackend,
		},
		&cli.StringFlag{
			Name:        "storage-path",
			Usage:       "Directory (file) or database file (sqlite)",
			Category:    "Storage",
			Sources:     cli.EnvVars(config.EnvPrefix + "STORAGE_PATH"),
			Destination: &o.storagePath,
		},
		&cli.DurationFlag{
			Name:        "session-ttl",
			Usage:       "Drop session-scoped history after this long without activity",
			Category:    "Storage",
			Sources:     cli.EnvVars(config.EnvPrefix + "STORAGE_SESSION_TTL"),
			Destination: &o.sessionTTL,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level (debug|info|warn|error)",
			Category:    "Logging",
			Sources:     cli.EnvVars(config.EnvPrefix + "LOG_LEVEL"),
			Destination: &o.logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "Log format (json|console)",
			Category:    "Logging",
			Sources:     cli.EnvVars(config.EnvPrefix + "LOG_FORMAT"),
			Destination: &o.logFormat,
		},
	}
}

func (o *overrides) apply(c *cli.Command, cfg *config.Config) {
	if c.IsSet("catalog") {
		cfg.Catalog = o.catalog
	}
	if c.IsSet("validate-catalog") {
		cfg.ValidateCatalog = o.validateCatalog
	}
	if c.IsSet("templates") {
		cfg.Templates = o.templates
	}
	if c.IsSet("engine") {
		cfg.Engine = o.engine
	}
	if c.IsSet("lenient-survey") {
		cfg.LenientSurvey = o.lenientSurvey
	}
	if c.IsSet("storage-backend") {
		cfg.Storage.Backend = o.storageBackend
	}
	if c.IsSet("storage-path") {
		cfg.Storage.Path = o.storagePath
	}
	if c.IsSet("session-ttl") {
		cfg.Storage.SessionTTL = o.sessionTTL
	}
	if c.IsSet("log-level") {
		cfg.Log.Level = o.logLevel
	}
	if c.IsSet("log-format") {
		cfg.Log.Format = o.logFormat
	}
}

// Run executes the command line in args, writing command output to out.
func Run(ctx context.Context, args []string, version string, out io.Writer) error {
	var flags overrides
	rt := &runtime{out: out, logger: zap.NewNop()}

	app := &cli.Command{
		Name:    "formflow",
		Usage:   "Declarative forms with validation and submission history",
		Version: version,
		Writer:  out,
		Flags:   flags.flags(),
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			cfg, err := config.Load(flags.configPath)
			if err != nil {
				return ctx, err
			}
			flags.apply(c, &cfg)
			if err := cfg.Validate(); err != nil {
				return ctx, err
			}
			rt.cfg = cfg

			logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
			if err != nil {
				return ctx, goerr.Wrap(err, "configure logger")
			}
			rt.logger = logger

			catalog, err := forms.Load(ctx, cfg.CatalogOptions()...)
			if err != nil {
				return ctx, goerr.Wrap(err, "load catalogue", goerr.V("catalog", cfg.Catalog))
			}
			if err := cfg.Apply(catalog); err != nil {
				return ctx, err
			}
			rt.catalog = catalog
			return ctx, nil
		},
		After: func(ctx context.Context, c *cli.Command) error {
			_ = rt.logger.Sync()
			return nil
		},
		Commands: []*cli.Command{
			cmdServe(rt),
			cmdFill(rt),
			cmdHistory(rt),
			cmdForms(rt),
			cmdValidate(rt),
		},
	}

	if err := app.Run(ctx, args); err != nil {
		rt.logger.Error("command failed", zap.Error(err))
		return err
	}
	return nil
}

// openForm opens form id over freshly opened storage. Session-scoped forms
// get a session that lives as long as the process.
func (rt *runtime) openForm(ctx context.Context, id string) (controller.Form, func() error, error) {
	if id == "" {
		return nil, nil, goerr.New("form id is required", goerr.V("forms", formIDs(rt.catalog)))
	}
	router, closeFn, err := rt.cfg.OpenRouter()
	if err != nil {
		return nil, nil, err
	}
	form, err := controller.Open(ctx, rt.catalog, id, router.WithSession(processSession),
		controller.WithLogger(rt.logger.With(zap.String("form", id))),
		controller.WithSchemaOptions(rt.cfg.SchemaOptions(id)...),
	)
	if err != nil {
		_ = closeFn()
		return nil, nil, err
	}
	return form, closeFn, nil
}

func formIDs(catalog *forms.Catalog) []string {
	var ids []string
	for _, form := range catalog.Forms() {
		ids = append(ids, form.ID)
	}
	return ids
}
