package discord

import "strings"

// Message keys. Every key can be overridden from the economy config "messages" map.
const (
	msgBalance             = "balance"
	msgOrganizationBalance = "organization_balance"
	msgPaid                = "paid"
	msgDeposited           = "deposited"
	msgTopAccounts         = "top_accounts"
	msgTopOrganizations    = "top_organizations"
	msgTopDonors           = "top_donors"
	msgLeaderboardEmpty    = "leaderboard_empty"
	msgServices            = "services"
	msgOrganizationSvcs    = "organization_services"
	msgCatalogEmpty        = "catalog_empty"
	msgPurchased           = "purchased"
	msgServiceGiven        = "service_given"
	msgBalanceSet          = "balance_set"
	msgBalanceChanged      = "balance_changed"
	msgOrgBalanceSet       = "organization_balance_set"
	msgMemberBalance       = "member_balance"
	msgOrgCoins            = "organization_coins"
	msgBlacklisted         = "blacklisted"
	msgUnblacklisted       = "unblacklisted"
	msgRoleBlacklisted     = "role_blacklisted"
	msgPayToggled          = "pay_toggled"
	msgDepositToggled      = "deposit_toggled"
	msgHelp                = "help"
	msgAdminHelp           = "admin_help"
	msgUsage               = "usage"
	msgUnknownCommand      = "unknown_command"
	msgNotAdmin            = "not_admin"
	msgNotStaff            = "not_staff"
	msgWrongChannel        = "wrong_channel"
	msgYouAreBlacklisted   = "you_are_blacklisted"
	msgInvalidAmount       = "invalid_amount"
	msgInvalidMember       = "invalid_member"
	msgSelfPayment         = "self_payment"
	msgPaymentsDisabled    = "payments_disabled"
	msgDepositsDisabled    = "deposits_disabled"
	msgPartyBlacklisted    = "party_blacklisted"
	msgInsufficientFunds   = "insufficient_funds"
	msgNoOrganization      = "no_organization"
	msgServiceNotFound     = "service_not_found"
	msgOrgNotFound         = "organization_not_found"
	msgInternalError       = "internal_error"
	msgPurchaseNotQueued   = "purchase_not_queued"
	msgServiceNotification = "service_notification"
	msgOrgSvcNotification  = "organization_service_notification"
	msgPrivateChannel      = "service_private_channel"
	msgEnabled             = "enabled"
	msgDisabled            = "disabled"
)

var defaultMessages = map[string]string{
	msgBalance:             "Your balance is **{balance}** coins.",
	msgOrganizationBalance: "**{organization}** has **{balance}** coins. You donated {donations}.",
	msgPaid:                "You paid **{amount}** coins to {member}. Your balance is now {balance}.",
	msgDeposited:           "You deposited **{amount}** coins to **{organization}**. Organization balance: {org_balance}.",
	msgTopAccounts:         "Richest members",
	msgTopOrganizations:    "Richest organizations",
	msgTopDonors:           "Top donors of {organization}",
	msgLeaderboardEmpty:    "Nobody here yet.",
	msgServices:            "Available services",
	msgOrganizationSvcs:    "Available organization services",
	msgCatalogEmpty:        "No services available.",
	msgPurchased:           "You bought **{service}** for {cost} coins. Remaining balance: {balance}.",
	msgServiceGiven:        "Service **{service}** given to {member}.",
	msgBalanceSet:          "Balance of {member} set to **{balance}**.",
	msgBalanceChanged:      "Balance of {member} is now **{balance}**.",
	msgOrgBalanceSet:       "Balance of **{organization}** set to **{balance}**.",
	msgMemberBalance:       "{member} has **{balance}** coins and donated {donations}.",
	msgOrgCoins:            "**{organization}** has **{balance}** coins.",
	msgBlacklisted:         "{member} has been blacklisted.",
	msgUnblacklisted:       "{member} has been removed from the blacklist.",
	msgRoleBlacklisted:     "Blacklisted {count} members with role {role}.",
	msgPayToggled:          "Payments are now {state}.",
	msgDepositToggled:      "Deposits are now {state}.",
	msgHelp:                "Commands",
	msgAdminHelp:           "Admin commands",
	msgUsage:               "Usage: `{usage}`",
	msgUnknownCommand:      "Unknown command. Type `{prefix}help` for the list of commands.",
	msgNotAdmin:            "This command is reserved to administrators.",
	msgNotStaff:            "Only organization staff can buy organization services.",
	msgWrongChannel:        "Commands can only be used in <#{channel}>.",
	msgYouAreBlacklisted:   "You are blacklisted.",
	msgInvalidAmount:       "The amount must be a number greater than zero.",
	msgInvalidMember:       "Mention a member or use their id.",
	msgSelfPayment:         "You can't pay yourself.",
	msgPaymentsDisabled:    "Payments are currently disabled.",
	msgDepositsDisabled:    "Deposits are currently disabled.",
	msgPartyBlacklisted:    "One of the members involved is blacklisted.",
	msgInsufficientFunds:   "Not enough coins.",
	msgNoOrganization:      "You are not part of an organization.",
	msgServiceNotFound:     "Service not found.",
	msgOrgNotFound:         "Organization not found.",
	msgInternalError:       "Something went wrong, try again later.",
	msgPurchaseNotQueued:   "The service can't be delivered right now. You were not charged, try again later.",
	msgServiceNotification: "{member} bought **{service}**.",
	msgOrgSvcNotification:  "**{organization}** bought **{service}**.",
	msgPrivateChannel:      "{member}, this channel was created for your **{service}** service.",
	msgEnabled:             "enabled",
	msgDisabled:            "disabled",
}

// Messages renders reply templates. Placeholders are written as {name}.
type Messages struct {
	templates map[string]string
}

func NewMessages(overrides map[string]string) *Messages {
	templates := make(map[string]string, len(defaultMessages))
	for k, v := range defaultMessages {
		templates[k] = v
	}
	for k, v := range overrides {
		if v != "" {
			templates[k] = v
		}
	}
	return &Messages{templates: templates}
}

// Format fills the template named key with args, given as name/value pairs.
func (m *Messages) Format(key string, args ...string) string {
	tmpl, ok := m.templates[key]
	if !ok {
		return key
	}
	if len(args) == 0 {
		return tmpl
	}
	pairs := make([]string, 0, len(args))
	for i := 0; i+1 < len(args); i += 2 {
		pairs = append(pairs, "{"+args[i]+"}", args[i+1])
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}
