package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newNotifyCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Assignment notifications",
	}

	var at string
	run := &cobra.Command{
		Use:   "run",
		Short: "Emit due-soon and past-due events once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ref := time.Now().UTC()
			if at != "" {
				parsed, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("invalid --at value %q: %w", at, err)
				}
				ref = parsed.UTC()
			}
			return withDeps(cmd, opts, func(ctx context.Context, deps *Deps) error {
				sent, err := deps.Notifications.RunDueDateChecks(ctx, ref)
				if outErr := output(cmd.OutOrStdout(), opts.Format,
					fmt.Sprintf("dispatched %d event(s)", sent),
					map[string]interface{}{"dispatched": sent, "reference": ref}); outErr != nil {
					return outErr
				}
				return err
			})
		},
	}
	run.Flags().StringVar(&at, "at", "", "reference time (RFC3339), defaults to now")

	cmd.AddCommand(run)
	return cmd
}
