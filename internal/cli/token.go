package cli

import (
	"time"

	"github.com/leonardo-panseri/discord-coins/internal/config"
	"github.com/leonardo-panseri/discord-coins/shared/middleware"
	"github.com/leonardo-panseri/discord-coins/shared/utils"
	"github.com/spf13/cobra"
)

// NewTokenCommand mints bearer tokens for the HTTP API, signed with JWT_SECRET.
func NewTokenCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		admin bool
		ttl   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token <member-id>",
		Short: "Issue an API token for a member",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			memberID, err := utils.ParseID(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid member id", err)
			}
			cfg, err := config.Load()
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid configuration", err)
			}
			if cfg.HTTP.JWTSecret == "" {
				return WrapExitError(ExitCommandError, "JWT_SECRET is required", nil)
			}

			token, err := middleware.GenerateToken([]byte(cfg.HTTP.JWTSecret), memberID, admin, ttl)
			if err != nil {
				return WrapExitError(ExitFailure, "failed to issue token", err)
			}

			out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			return out.Success(map[string]any{
				"token":     token,
				"memberId":  utils.FormatID(memberID),
				"admin":     admin,
				"expiresAt": time.Now().Add(ttl).UTC(),
			}, token)
		},
	}

	cmd.Flags().BoolVar(&admin, "admin", false, "grant administrator rights")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
