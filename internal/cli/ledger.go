package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/leonardo-panseri/discord-coins/internal/repository"
	"github.com/leonardo-panseri/discord-coins/shared/cqrs"
	"github.com/leonardo-panseri/discord-coins/shared/utils"
	"github.com/spf13/cobra"
)

func NewBalanceCommand(rootOpts *RootOptions) *cobra.Command {
	var organization bool

	cmd := &cobra.Command{
		Use:   "balance <member-id|organization>",
		Short: "Show a member or organization balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), cmd, rootOpts, false)
			if err != nil {
				return err
			}
			defer a.Close()
			out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}

			if organization {
				view, err := a.queries.GetOrganizationBalance(cmd.Context(), cqrs.GetOrganizationBalanceQuery{Name: args[0]})
				if err != nil {
					return storageError(err)
				}
				return out.Success(view, fmt.Sprintf("%s: %s", view.Name, view.Balance.String()))
			}

			memberID, err := utils.ParseID(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid member id", err)
			}
			view, err := a.queries.GetBalance(cmd.Context(), cqrs.GetBalanceQuery{MemberID: memberID})
			if err != nil {
				return storageError(err)
			}
			text := fmt.Sprintf("%s: %s (donated %s)", utils.FormatID(view.MemberID), view.Balance.String(), view.Donations.String())
			if view.Blacklisted {
				text += " [blacklisted]"
			}
			return out.Success(view, text)
		},
	}

	cmd.Flags().BoolVar(&organization, "org", false, "treat the argument as an organization name")
	return cmd
}

func NewTopCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		limit        int
		organization string
		orgs         bool
	)

	cmd := &cobra.Command{
		Use:   "top",
		Short: "Print a leaderboard",
		Long: `Prints the richest members. With --orgs prints the richest organizations,
with --donors <organization> the biggest donors of an organization.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), cmd, rootOpts, false)
			if err != nil {
				return err
			}
			defer a.Close()
			out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}

			var lines []string
			switch {
			case organization != "":
				board, err := a.queries.TopDonors(cmd.Context(), cqrs.TopDonorsQuery{Organization: organization, Limit: limit})
				if err != nil {
					return storageError(err)
				}
				for i, e := range board.Entries {
					lines = append(lines, fmt.Sprintf("%d. %s %s", i+1, utils.FormatID(e.MemberID), e.Donations.String()))
				}
				return out.Success(board, strings.Join(lines, "\n"))
			case orgs:
				board, err := a.queries.TopOrganizations(cmd.Context(), cqrs.TopOrganizationsQuery{Limit: limit})
				if err != nil {
					return storageError(err)
				}
				for i, e := range board.Entries {
					lines = append(lines, fmt.Sprintf("%d. %s %s", i+1, e.Name, e.Balance.String()))
				}
				return out.Success(board, strings.Join(lines, "\n"))
			default:
				board, err := a.queries.TopAccounts(cmd.Context(), cqrs.TopAccountsQuery{Limit: limit})
				if err != nil {
					return storageError(err)
				}
				for i, e := range board.Entries {
					lines = append(lines, fmt.Sprintf("%d. %s %s", i+1, utils.FormatID(e.MemberID), e.Balance.String()))
				}
				return out.Success(board, strings.Join(lines, "\n"))
			}
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", cqrs.DefaultLimit, "number of rows")
	cmd.Flags().BoolVar(&orgs, "orgs", false, "rank organizations")
	cmd.Flags().StringVar(&organization, "donors", "", "rank the donors of this organization")
	cmd.MarkFlagsMutuallyExclusive("orgs", "donors")
	return cmd
}

func storageError(err error) error {
	if errors.Is(err, repository.ErrStorageUnavailable) {
		return WrapExitError(ExitCommandError, "ledger store unavailable", err)
	}
	return WrapExitError(ExitFailure, "query failed", err)
}
