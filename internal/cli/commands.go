package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/goliatone/go-formflow/internal/server"
	"github.com/goliatone/go-formflow/pkg/render"
	"github.com/goliatone/go-formflow/pkg/renderers/html"
	"github.com/goliatone/go-formflow/pkg/renderers/tui"
	"github.com/goliatone/go-formflow/pkg/store"
)

const serveDescription = `Serves every catalogue form on its route.

The survey requires the fields of the selected topic. Pass --lenient-survey
to accept a topic submitted without them.`

func cmdServe(rt *runtime) *cli.Command {
	var addr string

	return &cli.Command{
		Name:        "serve",
		Aliases:     []string{"s"},
		Usage:       "Start the HTTP server",
		Description: serveDescription,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "HTTP server address",
				Sources:     cli.EnvVars("FORMFLOW_ADDR"),
				Destination: &addr,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.IsSet("addr") {
				rt.cfg.Addr = addr
			}
			router, closeFn, err := rt.cfg.OpenRouter()
			if err != nil {
				return err
			}
			defer func() {
				if err := closeFn(); err != nil {
					rt.logger.Error("failed to close storage", zap.Error(err))
				}
			}()

			var pageOpts []html.Option
			if rt.cfg.Templates != "" {
				pageOpts = append(pageOpts, html.WithTemplatesDir(rt.cfg.Templates))
			}
			renderers, err := server.DefaultRenderers(pageOpts...)
			if err != nil {
				return goerr.Wrap(err, "failed to build renderers")
			}
			handler, err := server.New(rt.catalog, router,
				server.WithLogger(rt.logger),
				server.WithRenderers(renderers),
				server.WithSchemaOptions(rt.cfg.SchemaOptions),
			)
			if err != nil {
				return goerr.Wrap(err, "failed to create http server")
			}
			srv := &http.Server{
				Addr:              rt.cfg.Addr,
				Handler:           handler,
				ReadHeaderTimeout: 30 * time.Second,
			}

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(sigCh)

			errCh := make(chan error, 1)
			go func() {
				rt.logger.Info("starting HTTP server",
					zap.String("addr", rt.cfg.Addr),
					zap.String("storage", rt.cfg.Storage.Backend),
				)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- goerr.Wrap(err, "failed to start server")
				}
			}()

			select {
			case err := <-errCh:
				return err
			case sig := <-sigCh:
				rt.logger.Info("received shutdown signal", zap.Stringer("signal", sig))
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return goerr.Wrap(err, "failed to shutdown server gracefully")
			}
			rt.logger.Info("server shutdown completed")
			return nil
		},
	}
}

func cmdFill(rt *runtime) *cli.Command {
	var confirm bool

	return &cli.Command{
		Name:      "fill",
		Usage:     "Fill a form interactively",
		ArgsUsage: "<form>",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "confirm",
				Usage:       "Ask before submitting",
				Value:       true,
				Destination: &confirm,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			form, closeFn, err := rt.openForm(ctx, c.Args().First())
			if err != nil {
				return err
			}
			defer closeFn() //nolint:errcheck // read-only after Submit

			filler, err := tui.New(tui.WithOutput(rt.out), tui.WithConfirmation(confirm))
			if err != nil {
				return err
			}
			if _, err := filler.Fill(ctx, form); err != nil {
				if errors.Is(err, tui.ErrAborted) {
					fmt.Fprintln(rt.out, "Aborted.")
					return nil
				}
				return err
			}

			view := render.BuildView(form)
			view.Fields = nil
			body, err := tui.NewTextRenderer(tui.DefaultTheme).Render(ctx, view)
			if err != nil {
				return err
			}
			_, err = rt.out.Write(body)
			return err
		},
	}
}

func cmdHistory(rt *runtime) *cli.Command {
	var format string

	return &cli.Command{
		Name:      "history",
		Usage:     "Print the stored submissions of a form",
		ArgsUsage: "<form>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "format",
				Aliases:     []string{"f"},
				Usage:       "Output format (text|json|html)",
				Value:       "text",
				Destination: &format,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			form, closeFn, err := rt.openForm(ctx, c.Args().First())
			if err != nil {
				return err
			}
			defer closeFn() //nolint:errcheck // nothing is written

			var body []byte
			switch format {
			case "json":
				body, err = json.MarshalIndent(form.Records(), "", "  ")
				body = append(body, '\n')
			case "text":
				view := render.BuildView(form)
				view.Fields = nil
				body, err = tui.NewTextRenderer(tui.DefaultTheme).Render(ctx, view)
			case "html":
				var page *html.Renderer
				if page, err = html.New(); err == nil {
					body, err = page.Render(ctx, render.BuildView(form))
				}
			default:
				return goerr.New("unknown output format", goerr.V("format", format))
			}
			if err != nil {
				return err
			}
			_, err = rt.out.Write(body)
			return err
		},
	}
}

func cmdForms(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "forms",
		Usage: "List the forms in the catalogue",
		Action: func(ctx context.Context, c *cli.Command) error {
			tw := tabwriter.NewWriter(rt.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTITLE\tROUTE\tSCOPE\tKEY")
			for _, form := range rt.catalog.Forms() {
				scope, err := store.ParseScope(form.Storage.Scope)
				if err != nil {
					return err
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", form.ID, form.Title, form.Route, scope, form.Storage.Key)
			}
			return tw.Flush()
		},
	}
}
