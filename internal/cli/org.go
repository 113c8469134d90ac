package cli

import (
	"errors"
	"fmt"

	"github.com/leonardo-panseri/discord-coins/internal/repository"
	"github.com/leonardo-panseri/discord-coins/shared/cqrs"
	"github.com/leonardo-panseri/discord-coins/shared/utils"
	"github.com/spf13/cobra"
)

// NewOrgCommand groups the organization registry commands. Organizations are
// managed out of band, the bot only reads and credits them.
func NewOrgCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "org",
		Short: "Manage organizations",
	}
	cmd.AddCommand(newOrgCreateCommand(rootOpts))
	cmd.AddCommand(newOrgAddMemberCommand(rootOpts))
	return cmd
}

func newOrgCreateCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		tag        string
		faction    string
		categoryID string
		roleID     string
	)

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Register an organization",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			create := cqrs.CreateOrganizationCommand{Name: args[0], Tag: tag, Faction: faction}
			var err error
			if categoryID != "" {
				if create.CategoryID, err = utils.ParseID(categoryID); err != nil {
					return WrapExitError(ExitCommandError, "invalid category id", err)
				}
			}
			if roleID != "" {
				if create.RoleID, err = utils.ParseID(roleID); err != nil {
					return WrapExitError(ExitCommandError, "invalid role id", err)
				}
			}

			a, err := openApp(cmd.Context(), cmd, rootOpts, false)
			if err != nil {
				return err
			}
			defer a.Close()

			org, err := a.commandService(nil).CreateOrganization(cmd.Context(), create)
			switch {
			case errors.Is(err, repository.ErrAlreadyExists):
				return WrapExitError(ExitFailure, fmt.Sprintf("organization %q already exists", create.Name), nil)
			case err != nil:
				return WrapExitError(ExitFailure, "failed to create organization", err)
			}

			out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			return out.Success(org, fmt.Sprintf("created %s [%s]", org.Name, org.Tag))
		},
	}

	cmd.Flags().StringVar(&tag, "tag", "", "short tag, 1-4 characters")
	cmd.Flags().StringVar(&faction, "faction", "", "faction the organization belongs to")
	cmd.Flags().StringVar(&categoryID, "category", "", "channel category for purchased services")
	cmd.Flags().StringVar(&roleID, "role", "", "role held by the organization members")
	_ = cmd.MarkFlagRequired("tag")
	return cmd
}

func newOrgAddMemberCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "add-member <organization> <member-id>",
		Short: "Affiliate a member with an organization",
		Long:  `Affiliates a member with an organization. An empty organization name ("") clears the affiliation.`,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			memberID, err := utils.ParseID(args[1])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid member id", err)
			}

			a, err := openApp(cmd.Context(), cmd, rootOpts, false)
			if err != nil {
				return err
			}
			defer a.Close()

			err = a.commandService(nil).JoinOrganization(cmd.Context(), cqrs.JoinOrganizationCommand{
				MemberID:     memberID,
				Organization: args[0],
			})
			switch {
			case errors.Is(err, repository.ErrNotFound):
				return WrapExitError(ExitFailure, fmt.Sprintf("organization %q not found", args[0]), nil)
			case err != nil:
				return WrapExitError(ExitFailure, "failed to update member", err)
			}

			out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			return out.Success(
				map[string]string{"memberId": utils.FormatID(memberID), "organization": utils.NormalizeName(args[0])},
				fmt.Sprintf("%s joined %s", utils.FormatID(memberID), utils.NormalizeName(args[0])),
			)
		},
	}
}
