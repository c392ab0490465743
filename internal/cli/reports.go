package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/noah-isme/survey-review-api/internal/service"
)

func newReportsCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reports",
		Short: "Composite report maintenance",
	}
	cmd.AddCommand(newResetCacheCommand(opts))
	cmd.AddCommand(newFingerprintCommand(opts))
	return cmd
}

func newResetCacheCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-cache",
		Short: "Delete every cached composite report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd, opts, func(ctx context.Context, deps *Deps) error {
				deleted, err := deps.Reports.ResetCache(ctx)
				if err != nil {
					return fmt.Errorf("reset report cache: %w", err)
				}
				return output(cmd.OutOrStdout(), opts.Format,
					fmt.Sprintf("deleted %d cached report(s)", deleted),
					map[string]int{"deleted": deleted})
			})
		},
	}
}

func newFingerprintCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "fingerprint <response-id>",
		Short: "Print the cache fingerprint of a response's composite report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd, opts, func(ctx context.Context, deps *Deps) error {
				subject, err := deps.Reports.LoadSubject(ctx, args[0])
				if err != nil {
					return err
				}
				fp := service.Fingerprint(*subject)
				return output(cmd.OutOrStdout(), opts.Format, fp, map[string]string{
					"response_id": args[0],
					"fingerprint": fp,
					"cache_key":   service.ReportCacheKey(args[0], fp),
				})
			})
		},
	}
}
