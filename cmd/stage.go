package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/gfw-catalog-pipeline/internal/pipeline"
)

// newStageCmd builds a one-shot command that runs a single pipeline stage.
func newStageCmd(stage pipeline.Stage, short string) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   string(stage),
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			defer closeApp(cmd.Context(), appInstance)

			runner := appInstance.Stage(stage)
			if runner == nil {
				return fmt.Errorf("stage %s not configured", stage)
			}

			ctx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			out := runner.Run(ctx)
			fmt.Fprintln(cmd.OutOrStdout(), out.Message)
			if !out.OK() {
				return fmt.Errorf("%s failed: %w", stage, out.Err)
			}
			appInstance.Logger().Debug("stage completed",
				zap.String("stage", string(stage)),
				zap.String("run_id", out.RunID),
			)
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "abort the run after this long (0 disables)")
	return cmd
}

// closeApp releases the app on every exit path of a one-shot command.
func closeApp(ctx context.Context, appInstance App) {
	if err := appInstance.Close(ctx); err != nil {
		appInstance.Logger().Warn("close app failed", zap.Error(err))
	}
}
