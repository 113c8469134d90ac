package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Format  string // "json" | "text"
	Economy string // overrides ECONOMY_CONFIG
}

var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the coinsbot command tree.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "coinsbot",
		Short: "Coins economy bot",
		Long: `A chat bot keeping a per-member and per-organization coins ledger,
fed by voice presence, chat activity, role grants and administrator commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return WrapExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats), nil)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Economy, "economy", "", "path to the economy YAML (default $ECONOMY_CONFIG)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewBalanceCommand(opts))
	cmd.AddCommand(NewTopCommand(opts))
	cmd.AddCommand(NewOrgCommand(opts))
	cmd.AddCommand(NewTokenCommand(opts))

	return cmd
}
