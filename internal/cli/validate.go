package cli

import (
	"context"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/goliatone/go-formflow/pkg/forms"
	"github.com/goliatone/go-formflow/pkg/schema"
)

// cmdValidate checks catalogue documents strictly: OpenAPI validation, no
// unknown x-formflow keys, and the identifiers the built-in records expect.
func cmdValidate(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Aliases:   []string{"v"},
		Usage:     "Validate catalogue documents",
		ArgsUsage: "[paths...]",
		Action: func(ctx context.Context, c *cli.Command) error {
			paths := c.Args().Slice()
			if len(paths) == 0 {
				paths = []string{rt.cfg.Catalog}
			}

			var failed int
			for _, path := range paths {
				opts := []forms.LoadOption{forms.WithValidation(true), forms.WithStrictExtensions(true)}
				name := forms.CatalogName + " (embedded)"
				if path != "" {
					opts = append(opts, forms.WithSource(schema.SourceFromFile(path)))
					name = path
				}
				catalog, err := forms.Load(ctx, opts...)
				if err != nil {
					failed++
					fmt.Fprintf(rt.out, "%s: %v\n", name, err)
					continue
				}
				for _, form := range catalog.Forms() {
					rt.logger.Debug("form validated",
						zap.String("catalog", name),
						zap.String("id", form.ID),
						zap.Int("field_count", len(form.Fields)),
					)
				}
				fmt.Fprintf(rt.out, "%s: ok (%d forms)\n", name, len(catalog.Forms()))
			}
			if failed > 0 {
				return goerr.New("catalogue validation failed", goerr.V("failed", failed))
			}
			return nil
		},
	}
}
