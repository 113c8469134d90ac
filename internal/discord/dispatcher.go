package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/leonardo-panseri/discord-coins/internal/command"
	"github.com/leonardo-panseri/discord-coins/internal/config"
	"github.com/leonardo-panseri/discord-coins/internal/logger"
	"github.com/leonardo-panseri/discord-coins/internal/repository"
	"github.com/leonardo-panseri/discord-coins/shared/cqrs"
	"github.com/leonardo-panseri/discord-coins/shared/models"
	"github.com/leonardo-panseri/discord-coins/shared/utils"
	"github.com/shopspring/decimal"
)

// Commander is the write side used by chat commands.
type Commander interface {
	SetBalance(ctx context.Context, cmd cqrs.SetBalanceCommand) (*models.Account, error)
	AddToBalance(ctx context.Context, cmd cqrs.AddToBalanceCommand) (decimal.Decimal, error)
	SetOrganizationBalance(ctx context.Context, cmd cqrs.SetOrganizationBalanceCommand) error
	Blacklist(ctx context.Context, cmd cqrs.BlacklistCommand) error
	BlacklistMembers(ctx context.Context, cmd cqrs.BlacklistMembersCommand) (int, error)
	Pay(ctx context.Context, cmd cqrs.PayCommand) (*command.PaymentResult, error)
	DepositToOrganization(ctx context.Context, cmd cqrs.DepositCommand) (*command.DepositResult, error)
	PurchaseService(ctx context.Context, cmd cqrs.PurchaseServiceCommand) (*command.PurchaseResult, error)
	PurchaseOrganizationService(ctx context.Context, cmd cqrs.PurchaseOrganizationServiceCommand) (*command.PurchaseResult, error)
	TogglePayments(ctx context.Context) (bool, error)
	ToggleDeposits(ctx context.Context) (bool, error)
}

// Querier is the read side used by chat commands.
type Querier interface {
	GetBalance(ctx context.Context, q cqrs.GetBalanceQuery) (*models.BalanceView, error)
	GetOrganizationBalance(ctx context.Context, q cqrs.GetOrganizationBalanceQuery) (*models.OrganizationView, error)
	TopAccounts(ctx context.Context, q cqrs.TopAccountsQuery) (*models.AccountLeaderboard, error)
	TopOrganizations(ctx context.Context, q cqrs.TopOrganizationsQuery) (*models.OrganizationLeaderboard, error)
	TopDonors(ctx context.Context, q cqrs.TopDonorsQuery) (*models.DonorLeaderboard, error)
}

// RoleMembers lists the members of a guild holding a role.
type RoleMembers interface {
	MembersWithRole(ctx context.Context, guildID, roleID int64) ([]int64, error)
}

// Invocation is a prefixed chat message addressed to the bot.
type Invocation struct {
	GuildID     int64
	ChannelID   int64
	AuthorID    int64
	AuthorRoles []int64
	Admin       bool
	Content     string
}

type Field struct {
	Name  string
	Value string
}

// Reply is rendered as a green (OK) or red embed.
type Reply struct {
	OK     bool
	Title  string
	Text   string
	Fields []Field
}

type handlerFunc func(ctx context.Context, inv Invocation, args []string) Reply

type route struct {
	name        string
	usage       string
	description string
	admin       bool
	handle      handlerFunc
}

type Dispatcher struct {
	economy  *config.Economy
	commands Commander
	queries  Querier
	members  RoleMembers
	messages *Messages

	routes map[string]*route
	order  []*route
}

func NewDispatcher(economy *config.Economy, commands Commander, queries Querier, members RoleMembers) *Dispatcher {
	d := &Dispatcher{
		economy:  economy,
		commands: commands,
		queries:  queries,
		members:  members,
		messages: NewMessages(economy.Messages),
		routes:   make(map[string]*route),
	}
	d.registerRoutes()
	return d
}

func (d *Dispatcher) registerRoutes() {
	// Member commands
	d.add(route{name: "help", description: "Show this message", handle: d.help})
	d.add(route{name: "balance", description: "Show your balance", handle: d.balance})
	d.add(route{name: "org-balance", description: "Show your organization's balance", handle: d.organizationBalance})
	d.add(route{name: "pay", usage: "<member> <amount>", description: "Pay another member", handle: d.pay})
	d.add(route{name: "deposit", usage: "<amount>", description: "Deposit coins to your organization", handle: d.deposit})
	d.add(route{name: "top", description: "Show the 10 richest members", handle: d.topAccounts})
	d.add(route{name: "top-orgs", description: "Show the 10 richest organizations", handle: d.topOrganizations})
	d.add(route{name: "top-donors", description: "Show the top donors of your organization", handle: d.topDonors})
	d.add(route{name: "services", description: "List the services you can buy", handle: d.services})
	d.add(route{name: "org-services", description: "List the organization services", handle: d.organizationServices})
	d.add(route{name: "buy", usage: "<service>", description: "Buy a service", handle: d.buy})
	d.add(route{name: "buy-org", usage: "<service>", description: "Buy a service for your organization", handle: d.buyOrganization})

	// Admin commands
	d.add(route{name: "set-coins", usage: "<member> <amount>", admin: true, handle: d.setCoins})
	d.add(route{name: "add-coins", usage: "<member> <amount>", admin: true, handle: d.addCoins(false)})
	d.add(route{name: "remove-coins", usage: "<member> <amount>", admin: true, handle: d.addCoins(true)})
	d.add(route{name: "set-org-coins", usage: "<organization> <amount>", admin: true, handle: d.setOrganizationCoins})
	d.add(route{name: "member-coins", usage: "<member>", admin: true, handle: d.memberCoins})
	d.add(route{name: "org-coins", usage: "<organization>", admin: true, handle: d.organizationCoins})
	d.add(route{name: "blacklist", usage: "<member>", admin: true, handle: d.blacklist(true)})
	d.add(route{name: "blacklist-remove", usage: "<member>", admin: true, handle: d.blacklist(false)})
	d.add(route{name: "blacklist-role", usage: "<role>", admin: true, handle: d.blacklistRole})
	d.add(route{name: "toggle-pay", admin: true, handle: d.togglePay})
	d.add(route{name: "toggle-deposit", admin: true, handle: d.toggleDeposit})
	d.add(route{name: "give-service", usage: "<member> <service>", admin: true, handle: d.giveService})
	d.add(route{name: "give-org-service", usage: "<member> <service>", admin: true, handle: d.giveOrganizationService})
}

func (d *Dispatcher) add(r route) {
	d.routes[r.name] = &r
	d.order = append(d.order, &r)
}

// Dispatch runs the command in inv. It returns false when the message is not a
// command for this bot.
func (d *Dispatcher) Dispatch(ctx context.Context, inv Invocation) (Reply, bool) {
	content, ok := strings.CutPrefix(strings.TrimSpace(inv.Content), d.economy.Prefix)
	if !ok {
		return Reply{}, false
	}
	fields := strings.Fields(content)
	if len(fields) == 0 {
		return Reply{}, false
	}

	name := strings.ToLower(fields[0])
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "coins.discord.dispatcher",
		Command:   logger.Ptr(name),
		MemberID:  logger.Ptr(inv.AuthorID),
		GuildID:   logger.Ptr(inv.GuildID),
		ChannelID: logger.Ptr(inv.ChannelID),
	})

	r, ok := d.routes[name]
	if !ok {
		return d.fail(msgUnknownCommand, "prefix", d.economy.Prefix), true
	}
	if r.admin && !inv.Admin {
		return d.fail(msgNotAdmin), true
	}

	if !inv.Admin {
		if ch := d.economy.UserCommandChannel; ch != 0 && inv.ChannelID != ch {
			return d.fail(msgWrongChannel, "channel", utils.FormatID(ch)), true
		}
		view, err := d.queries.GetBalance(ctx, cqrs.GetBalanceQuery{MemberID: inv.AuthorID})
		if err != nil {
			return d.errorReply(ctx, err), true
		}
		if view.Blacklisted {
			return d.fail(msgYouAreBlacklisted), true
		}
	}

	slog.DebugContext(ctx, "dispatching command", "args", len(fields)-1)
	return r.handle(ctx, inv, fields[1:]), true
}

func (d *Dispatcher) ok(key string, args ...string) Reply {
	return Reply{OK: true, Text: d.messages.Format(key, args...)}
}

func (d *Dispatcher) fail(key string, args ...string) Reply {
	return Reply{OK: false, Text: d.messages.Format(key, args...)}
}

func (d *Dispatcher) usage(name string) Reply {
	r := d.routes[name]
	usage := strings.TrimSpace(d.economy.Prefix + r.name + " " + r.usage)
	return d.fail(msgUsage, "usage", usage)
}

// errorReply maps service errors to member-facing messages. Unexpected errors are
// logged and reported generically.
func (d *Dispatcher) errorReply(ctx context.Context, err error) Reply {
	switch {
	case errors.Is(err, command.ErrInvalidAmount):
		return d.fail(msgInvalidAmount)
	case errors.Is(err, command.ErrSelfPayment):
		return d.fail(msgSelfPayment)
	case errors.Is(err, command.ErrPaymentsDisabled):
		return d.fail(msgPaymentsDisabled)
	case errors.Is(err, command.ErrDepositsDisabled):
		return d.fail(msgDepositsDisabled)
	case errors.Is(err, command.ErrBlacklisted):
		return d.fail(msgPartyBlacklisted)
	case errors.Is(err, command.ErrInsufficientFunds):
		return d.fail(msgInsufficientFunds)
	case errors.Is(err, command.ErrNoOrganization):
		return d.fail(msgNoOrganization)
	case errors.Is(err, command.ErrServiceNotFound):
		return d.fail(msgServiceNotFound)
	case errors.Is(err, repository.ErrNotFound):
		return d.fail(msgOrgNotFound)
	case errors.Is(err, command.ErrRefundFailed):
		slog.ErrorContext(ctx, "purchase charged but not queued", "error", err)
		return d.fail(msgInternalError)
	case errors.Is(err, command.ErrPurchaseNotQueued):
		slog.WarnContext(ctx, "purchase refunded", "error", err)
		return d.fail(msgPurchaseNotQueued)
	default:
		slog.ErrorContext(ctx, "command failed", "error", err)
		return d.fail(msgInternalError)
	}
}

// ---------- Member commands ----------

func (d *Dispatcher) help(ctx context.Context, inv Invocation, args []string) Reply {
	var member, admin []string
	for _, r := range d.order {
		line := "`" + strings.TrimSpace(d.economy.Prefix+r.name+" "+r.usage) + "`"
		if r.description != "" {
			line += " " + r.description
		}
		if r.admin {
			admin = append(admin, line)
		} else {
			member = append(member, line)
		}
	}

	reply := Reply{OK: true, Title: d.messages.Format(msgHelp), Text: strings.Join(member, "\n")}
	if inv.Admin {
		reply.Fields = append(reply.Fields, Field{Name: d.messages.Format(msgAdminHelp), Value: strings.Join(admin, "\n")})
	}
	return reply
}

func (d *Dispatcher) balance(ctx context.Context, inv Invocation, args []string) Reply {
	view, err := d.queries.GetBalance(ctx, cqrs.GetBalanceQuery{MemberID: inv.AuthorID})
	if err != nil {
		return d.errorReply(ctx, err)
	}
	return d.ok(msgBalance, "balance", view.Balance.String())
}

func (d *Dispatcher) organizationBalance(ctx context.Context, inv Invocation, args []string) Reply {
	view, err := d.queries.GetBalance(ctx, cqrs.GetBalanceQuery{MemberID: inv.AuthorID})
	if err != nil {
		return d.errorReply(ctx, err)
	}
	if view.Organization == "" {
		return d.fail(msgNoOrganization)
	}
	org, err := d.queries.GetOrganizationBalance(ctx, cqrs.GetOrganizationBalanceQuery{Name: view.Organization})
	if err != nil {
		return d.errorReply(ctx, err)
	}
	return d.ok(msgOrganizationBalance,
		"organization", org.Name,
		"balance", org.Balance.String(),
		"donations", view.Donations.String())
}

func (d *Dispatcher) pay(ctx context.Context, inv Invocation, args []string) Reply {
	if len(args) != 2 {
		return d.usage("pay")
	}
	receiver, err := ParseMention(args[0])
	if err != nil {
		return d.fail(msgInvalidMember)
	}
	amount, err := decimal.NewFromString(args[1])
	if err != nil {
		return d.fail(msgInvalidAmount)
	}

	result, err := d.commands.Pay(ctx, cqrs.PayCommand{
		SenderID:   inv.AuthorID,
		ReceiverID: receiver,
		Amount:     amount,
		Privileged: inv.Admin,
	})
	if err != nil {
		return d.errorReply(ctx, err)
	}
	return d.ok(msgPaid,
		"amount", amount.String(),
		"member", Mention(receiver),
		"balance", result.SenderBalance.String())
}

func (d *Dispatcher) deposit(ctx context.Context, inv Invocation, args []string) Reply {
	if len(args) != 1 {
		return d.usage("deposit")
	}
	amount, err := decimal.NewFromString(args[0])
	if err != nil {
		return d.fail(msgInvalidAmount)
	}

	result, err := d.commands.DepositToOrganization(ctx, cqrs.DepositCommand{
		SenderID:   inv.AuthorID,
		Amount:     amount,
		Privileged: inv.Admin,
	})
	if err != nil {
		return d.errorReply(ctx, err)
	}
	return d.ok(msgDeposited,
		"amount", amount.String(),
		"organization", result.Organization,
		"org_balance", result.OrganizationBalance.String())
}

func (d *Dispatcher) topAccounts(ctx context.Context, inv Invocation, args []string) Reply {
	board, err := d.queries.TopAccounts(ctx, cqrs.TopAccountsQuery{})
	if err != nil {
		return d.errorReply(ctx, err)
	}
	lines := make([]string, len(board.Entries))
	for i, e := range board.Entries {
		lines[i] = fmt.Sprintf("%d. %s: %s", i+1, Mention(e.MemberID), e.Balance.String())
	}
	return d.leaderboard(d.messages.Format(msgTopAccounts), lines)
}

func (d *Dispatcher) topOrganizations(ctx context.Context, inv Invocation, args []string) Reply {
	board, err := d.queries.TopOrganizations(ctx, cqrs.TopOrganizationsQuery{})
	if err != nil {
		return d.errorReply(ctx, err)
	}
	lines := make([]string, len(board.Entries))
	for i, e := range board.Entries {
		lines[i] = fmt.Sprintf("%d. %s: %s", i+1, e.Name, e.Balance.String())
	}
	return d.leaderboard(d.messages.Format(msgTopOrganizations), lines)
}

func (d *Dispatcher) topDonors(ctx context.Context, inv Invocation, args []string) Reply {
	view, err := d.queries.GetBalance(ctx, cqrs.GetBalanceQuery{MemberID: inv.AuthorID})
	if err != nil {
		return d.errorReply(ctx, err)
	}
	if view.Organization == "" {
		return d.fail(msgNoOrganization)
	}
	board, err := d.queries.TopDonors(ctx, cqrs.TopDonorsQuery{Organization: view.Organization})
	if err != nil {
		return d.errorReply(ctx, err)
	}
	lines := make([]string, len(board.Entries))
	for i, e := range board.Entries {
		lines[i] = fmt.Sprintf("%d. %s: %s", i+1, Mention(e.MemberID), e.Donations.String())
	}
	return d.leaderboard(d.messages.Format(msgTopDonors, "organization", view.Organization), lines)
}

func (d *Dispatcher) leaderboard(title string, lines []string) Reply {
	if len(lines) == 0 {
		return Reply{OK: true, Title: title, Text: d.messages.Format(msgLeaderboardEmpty)}
	}
	return Reply{OK: true, Title: title, Text: strings.Join(lines, "\n")}
}

func (d *Dispatcher) services(ctx context.Context, inv Invocation, args []string) Reply {
	return d.catalog(d.messages.Format(msgServices), d.economy.ServiceCatalog())
}

func (d *Dispatcher) organizationServices(ctx context.Context, inv Invocation, args []string) Reply {
	return d.catalog(d.messages.Format(msgOrganizationSvcs), d.economy.OrganizationServiceCatalog())
}

func (d *Dispatcher) catalog(title string, services []models.ServiceDefinition) Reply {
	if len(services) == 0 {
		return Reply{OK: true, Title: title, Text: d.messages.Format(msgCatalogEmpty)}
	}
	reply := Reply{OK: true, Title: title}
	for _, s := range services {
		value := s.Cost.String() + " coins"
		if s.Description != "" {
			value = s.Description + "\n" + value
		}
		reply.Fields = append(reply.Fields, Field{Name: s.Name, Value: value})
	}
	return reply
}

func (d *Dispatcher) buy(ctx context.Context, inv Invocation, args []string) Reply {
	if len(args) == 0 {
		return d.usage("buy")
	}
	result, err := d.commands.PurchaseService(ctx, cqrs.PurchaseServiceCommand{
		GuildID: inv.GuildID,
		Service: strings.Join(args, " "),
		BuyerID: inv.AuthorID,
	})
	if err != nil {
		return d.errorReply(ctx, err)
	}
	return d.ok(msgPurchased,
		"service", result.Service.Name,
		"cost", result.Service.Cost.String(),
		"balance", result.Balance.String())
}

func (d *Dispatcher) buyOrganization(ctx context.Context, inv Invocation, args []string) Reply {
	if len(args) == 0 {
		return d.usage("buy-org")
	}
	if !inv.Admin && !d.economy.IsStaff(inv.AuthorRoles) {
		return d.fail(msgNotStaff)
	}
	result, err := d.commands.PurchaseOrganizationService(ctx, cqrs.PurchaseOrganizationServiceCommand{
		GuildID: inv.GuildID,
		Service: strings.Join(args, " "),
		BuyerID: inv.AuthorID,
	})
	if err != nil {
		return d.errorReply(ctx, err)
	}
	return d.ok(msgPurchased,
		"service", result.Service.Name,
		"cost", result.Service.Cost.String(),
		"balance", result.Balance.String())
}

// ---------- Admin commands ----------

func (d *Dispatcher) memberAndAmount(name string, args []string) (int64, decimal.Decimal, *Reply) {
	if len(args) != 2 {
		r := d.usage(name)
		return 0, decimal.Zero, &r
	}
	member, err := ParseMention(args[0])
	if err != nil {
		r := d.fail(msgInvalidMember)
		return 0, decimal.Zero, &r
	}
	amount, err := decimal.NewFromString(args[1])
	if err != nil {
		r := d.fail(msgInvalidAmount)
		return 0, decimal.Zero, &r
	}
	return member, amount, nil
}

func (d *Dispatcher) setCoins(ctx context.Context, inv Invocation, args []string) Reply {
	member, amount, bad := d.memberAndAmount("set-coins", args)
	if bad != nil {
		return *bad
	}
	account, err := d.commands.SetBalance(ctx, cqrs.SetBalanceCommand{MemberID: member, Amount: amount})
	if err != nil {
		return d.errorReply(ctx, err)
	}
	return d.ok(msgBalanceSet, "member", Mention(member), "balance", account.Balance.String())
}

func (d *Dispatcher) addCoins(remove bool) handlerFunc {
	name := "add-coins"
	if remove {
		name = "remove-coins"
	}
	return func(ctx context.Context, inv Invocation, args []string) Reply {
		member, amount, bad := d.memberAndAmount(name, args)
		if bad != nil {
			return *bad
		}
		if remove {
			amount = amount.Neg()
		}
		balance, err := d.commands.AddToBalance(ctx, cqrs.AddToBalanceCommand{MemberID: member, Delta: amount})
		if err != nil {
			return d.errorReply(ctx, err)
		}
		return d.ok(msgBalanceChanged, "member", Mention(member), "balance", balance.String())
	}
}

func (d *Dispatcher) setOrganizationCoins(ctx context.Context, inv Invocation, args []string) Reply {
	if len(args) < 2 {
		return d.usage("set-org-coins")
	}
	amount, err := decimal.NewFromString(args[len(args)-1])
	if err != nil {
		return d.fail(msgInvalidAmount)
	}
	name := strings.Join(args[:len(args)-1], " ")
	if err := d.commands.SetOrganizationBalance(ctx, cqrs.SetOrganizationBalanceCommand{Name: name, Amount: amount}); err != nil {
		return d.errorReply(ctx, err)
	}
	return d.ok(msgOrgBalanceSet, "organization", utils.NormalizeName(name), "balance", amount.String())
}

func (d *Dispatcher) memberCoins(ctx context.Context, inv Invocation, args []string) Reply {
	if len(args) != 1 {
		return d.usage("member-coins")
	}
	member, err := ParseMention(args[0])
	if err != nil {
		return d.fail(msgInvalidMember)
	}
	view, err := d.queries.GetBalance(ctx, cqrs.GetBalanceQuery{MemberID: member})
	if err != nil {
		return d.errorReply(ctx, err)
	}
	return d.ok(msgMemberBalance,
		"member", Mention(member),
		"balance", view.Balance.String(),
		"donations", view.Donations.String())
}

func (d *Dispatcher) organizationCoins(ctx context.Context, inv Invocation, args []string) Reply {
	if len(args) == 0 {
		return d.usage("org-coins")
	}
	org, err := d.queries.GetOrganizationBalance(ctx, cqrs.GetOrganizationBalanceQuery{Name: strings.Join(args, " ")})
	if err != nil {
		return d.errorReply(ctx, err)
	}
	return d.ok(msgOrgCoins, "organization", org.Name, "balance", org.Balance.String())
}

func (d *Dispatcher) blacklist(blacklisted bool) handlerFunc {
	name, key := "blacklist", msgBlacklisted
	if !blacklisted {
		name, key = "blacklist-remove", msgUnblacklisted
	}
	return func(ctx context.Context, inv Invocation, args []string) Reply {
		if len(args) != 1 {
			return d.usage(name)
		}
		member, err := ParseMention(args[0])
		if err != nil {
			return d.fail(msgInvalidMember)
		}
		if err := d.commands.Blacklist(ctx, cqrs.BlacklistCommand{MemberID: member, Blacklisted: blacklisted}); err != nil {
			return d.errorReply(ctx, err)
		}
		return d.ok(key, "member", Mention(member))
	}
}

func (d *Dispatcher) blacklistRole(ctx context.Context, inv Invocation, args []string) Reply {
	if len(args) != 1 {
		return d.usage("blacklist-role")
	}
	role, err := ParseMention(args[0])
	if err != nil {
		return d.usage("blacklist-role")
	}
	members, err := d.members.MembersWithRole(ctx, inv.GuildID, role)
	if err != nil {
		return d.errorReply(ctx, err)
	}
	count, err := d.commands.BlacklistMembers(ctx, cqrs.BlacklistMembersCommand{MemberIDs: members, Blacklisted: true})
	if err != nil {
		return d.errorReply(ctx, err)
	}
	return d.ok(msgRoleBlacklisted, "count", fmt.Sprint(count), "role", "<@&"+utils.FormatID(role)+">")
}

func (d *Dispatcher) togglePay(ctx context.Context, inv Invocation, args []string) Reply {
	enabled, err := d.commands.TogglePayments(ctx)
	if err != nil {
		return d.errorReply(ctx, err)
	}
	return d.ok(msgPayToggled, "state", d.state(enabled))
}

func (d *Dispatcher) toggleDeposit(ctx context.Context, inv Invocation, args []string) Reply {
	enabled, err := d.commands.ToggleDeposits(ctx)
	if err != nil {
		return d.errorReply(ctx, err)
	}
	return d.ok(msgDepositToggled, "state", d.state(enabled))
}

func (d *Dispatcher) state(enabled bool) string {
	if enabled {
		return d.messages.Format(msgEnabled)
	}
	return d.messages.Format(msgDisabled)
}

func (d *Dispatcher) giveService(ctx context.Context, inv Invocation, args []string) Reply {
	if len(args) < 2 {
		return d.usage("give-service")
	}
	member, err := ParseMention(args[0])
	if err != nil {
		return d.fail(msgInvalidMember)
	}
	result, err := d.commands.PurchaseService(ctx, cqrs.PurchaseServiceCommand{
		GuildID: inv.GuildID,
		Service: strings.Join(args[1:], " "),
		BuyerID: member,
		Force:   true,
	})
	if err != nil {
		return d.errorReply(ctx, err)
	}
	return d.ok(msgServiceGiven, "service", result.Service.Name, "member", Mention(member))
}

func (d *Dispatcher) giveOrganizationService(ctx context.Context, inv Invocation, args []string) Reply {
	if len(args) < 2 {
		return d.usage("give-org-service")
	}
	member, err := ParseMention(args[0])
	if err != nil {
		return d.fail(msgInvalidMember)
	}
	result, err := d.commands.PurchaseOrganizationService(ctx, cqrs.PurchaseOrganizationServiceCommand{
		GuildID: inv.GuildID,
		Service: strings.Join(args[1:], " "),
		BuyerID: member,
		Force:   true,
	})
	if err != nil {
		return d.errorReply(ctx, err)
	}
	return d.ok(msgServiceGiven, "service", result.Service.Name, "member", Mention(member))
}
