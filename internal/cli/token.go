package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/noah-isme/survey-review-api/internal/models"
	"github.com/noah-isme/survey-review-api/internal/service"
)

func newTokenCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Access token tooling",
	}

	var (
		role string
		ttl  time.Duration
	)
	issue := &cobra.Command{
		Use:   "issue <user-id>",
		Short: "Sign an access token for local testing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userRole := models.UserRole(strings.ToUpper(role))
			switch userRole {
			case models.RoleAdmin, models.RoleAdvisor, models.RoleStudent:
			default:
				return fmt.Errorf("invalid role %q", role)
			}

			cfg, err := opts.LoadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			tokens := service.NewTokenService(service.TokenConfig{
				Secret:   cfg.JWT.Secret,
				Issuer:   cfg.JWT.Issuer,
				Audience: cfg.JWT.Audience,
			})
			signed, expires, err := tokens.IssueToken(&models.User{ID: args[0], Role: userRole}, ttl)
			if err != nil {
				return fmt.Errorf("sign token: %w", err)
			}
			return output(cmd.OutOrStdout(), opts.Format, signed, map[string]interface{}{
				"token":      signed,
				"expires_at": expires,
			})
		},
	}
	issue.Flags().StringVar(&role, "role", string(models.RoleStudent), "ADMIN, ADVISOR or STUDENT")
	issue.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")

	cmd.AddCommand(issue)
	return cmd
}
