package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/noah-isme/survey-review-api/internal/models"
	"github.com/noah-isme/survey-review-api/pkg/config"
)

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

type reportOps interface {
	ResetCache(ctx context.Context) (int, error)
	LoadSubject(ctx context.Context, responseID string) (*models.ReportSubject, error)
}

type dueDateRunner interface {
	RunDueDateChecks(ctx context.Context, ref time.Time) (int, error)
}

// Deps are the services a command may need once the backing stores are open.
type Deps struct {
	Reports       reportOps
	Notifications dueDateRunner
}

// Opener connects to the backing stores. The returned func releases them.
type Opener func(ctx context.Context, cfg *config.Config) (*Deps, func() error, error)

// RootOptions holds global flags and the dependency hooks for all commands.
type RootOptions struct {
	Format string

	LoadConfig func() (*config.Config, error)
	Open       Opener
}

// NewRootCommand creates the surveyctl root command.
func NewRootCommand(opts *RootOptions) *cobra.Command {
	if opts.LoadConfig == nil {
		opts.LoadConfig = config.Load
	}

	cmd := &cobra.Command{
		Use:   "surveyctl",
		Short: "Administrative tooling for the survey review API",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(newReportsCommand(opts))
	cmd.AddCommand(newNotifyCommand(opts))
	cmd.AddCommand(newTokenCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// withDeps loads config, opens the stores and runs fn.
func withDeps(cmd *cobra.Command, opts *RootOptions, fn func(context.Context, *Deps) error) error {
	cfg, err := opts.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if opts.Open == nil {
		return fmt.Errorf("no backing store configured")
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	deps, closeFn, err := opts.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeFn() //nolint:errcheck
	return fn(ctx, deps)
}

// output writes v as JSON, or text as-is for the text format.
func output(w io.Writer, format, text string, v interface{}) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	_, err := fmt.Fprintln(w, text)
	return err
}
