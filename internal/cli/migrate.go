package cli

import (
	"github.com/leonardo-panseri/discord-coins/internal/repository"
	"github.com/spf13/cobra"
)

func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the ledger schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// openApp applies the schema.
			a, err := openApp(cmd.Context(), cmd, rootOpts, false)
			if err != nil {
				return err
			}
			defer a.Close()

			out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			return out.Success(map[string]string{"driver": a.db.Driver()}, "schema up to date ("+driverLabel(a.db.Driver())+")")
		},
	}
}

func driverLabel(driver string) string {
	if driver == repository.DriverSQLite {
		return "sqlite"
	}
	return driver
}
