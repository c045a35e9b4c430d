// Package cmd defines and implements the CLI commands for the catalogsvc executable.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/gfw-catalog-pipeline/internal/api"
	"github.com/JakeFAU/gfw-catalog-pipeline/internal/config"
	"github.com/JakeFAU/gfw-catalog-pipeline/internal/pipeline"
	"github.com/JakeFAU/gfw-catalog-pipeline/internal/server"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App is the subset of *server.App the commands use. Run closes the app when
// the server stops; one-shot commands close it themselves.
type App interface {
	Run(ctx context.Context) error
	Close(ctx context.Context) error
	Stage(stage pipeline.Stage) api.Runner
	Logger() *zap.Logger
}

// newApp is the application factory. Tests replace it with a fake.
var newApp = func(ctx context.Context, cfgFile string) (App, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	app, err := server.Build(ctx, &cfg)
	if err != nil {
		return nil, fmt.Errorf("build app: %w", err)
	}
	return app, nil
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "catalogsvc",
		Short: "Fetches the Global Forest Watch dataset catalog and loads it into Postgres.",
		Long: `catalogsvc copies the Global Forest Watch dataset catalog into a JSON
artifact in object storage (fetch) and upserts that artifact into the
datasets table (load). Both stages run once per invocation, either from
the command line or through the HTTP service started by "serve".`,
		SilenceUsage:  true,
		SilenceErrors: true,

		// Runs after flags are parsed and before the subcommand's RunE.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := newApp(cmd.Context(), cfgFile)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newStageCmd(pipeline.StageFetch, "Fetch the catalog and overwrite the artifact"))
	cmd.AddCommand(newStageCmd(pipeline.StageLoad, "Upsert the artifact into the datasets table"))

	return cmd
}

// Execute is the main entry point.
func Execute() {
	root := newRootCmd()
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(root.ErrOrStderr(), "Error:", err)
		os.Exit(1)
	}
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, fmt.Errorf("application not initialized")
	}
	return appInstance, nil
}
