package discord

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/leonardo-panseri/discord-coins/internal/command"
	"github.com/leonardo-panseri/discord-coins/internal/config"
	"github.com/leonardo-panseri/discord-coins/internal/provisioning"
	"github.com/leonardo-panseri/discord-coins/internal/query"
	"github.com/leonardo-panseri/discord-coins/internal/repository"
	"github.com/leonardo-panseri/discord-coins/shared/cqrs"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testEconomy = `
prefix: "!"
coins_gain: 1
accrual_role: 900
user_command_channel: 10
service_category: 500
organization_service_category: 501
staff_roles: [600]
pay_enabled: true
deposit_enabled: true
services:
  vip:
    cost: 50
    notify_to: 42
    description: Access to the lounge
organization_services:
  headquarters:
    cost: 200
    notify_to: 43
messages:
  balance: "Saldo: {balance}"
`

type mockRoleMembers struct {
	members []int64
	err     error
}

func (m *mockRoleMembers) MembersWithRole(ctx context.Context, guildID, roleID int64) ([]int64, error) {
	return m.members, m.err
}

type testEnv struct {
	dispatcher *Dispatcher
	commands   *command.LedgerCommandService
	queries    *query.LedgerQueryService
	members    *mockRoleMembers
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithPublisher(t, nil)
}

func newTestEnvWithPublisher(t *testing.T, publisher command.EventPublisher) *testEnv {
	t.Helper()
	ctx := context.Background()

	economy, err := config.ParseEconomy("test.yaml", []byte(testEconomy))
	require.NoError(t, err)

	db, err := repository.Open(ctx, repository.Config{
		Driver: repository.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "discord.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate(ctx))

	commands := command.NewLedgerCommandService(db, economy, config.NewToggleStore(economy.Toggles(), nil), publisher)
	queries := query.NewLedgerQueryService(repository.NewLedgerReadRepository(db, nil, 0))
	members := &mockRoleMembers{}

	return &testEnv{
		dispatcher: NewDispatcher(economy, commands, queries, members),
		commands:   commands,
		queries:    queries,
		members:    members,
	}
}

func (e *testEnv) run(t *testing.T, inv Invocation) Reply {
	t.Helper()
	reply, handled := e.dispatcher.Dispatch(context.Background(), inv)
	require.True(t, handled, "command %q not handled", inv.Content)
	return reply
}

func (e *testEnv) balance(t *testing.T, id int64) decimal.Decimal {
	t.Helper()
	view, err := e.queries.GetBalance(context.Background(), cqrs.GetBalanceQuery{MemberID: id})
	require.NoError(t, err)
	return view.Balance
}

func (e *testEnv) setBalance(t *testing.T, id int64, amount int64) {
	t.Helper()
	_, err := e.commands.SetBalance(context.Background(), cqrs.SetBalanceCommand{MemberID: id, Amount: decimal.NewFromInt(amount)})
	require.NoError(t, err)
}

func member(content string) Invocation {
	return Invocation{GuildID: 1, ChannelID: 10, AuthorID: 100, Content: content}
}

func admin(content string) Invocation {
	return Invocation{GuildID: 1, ChannelID: 99, AuthorID: 1, Admin: true, Content: content}
}

func TestDispatch_NotACommand(t *testing.T) {
	env := newTestEnv(t)

	for _, content := range []string{"hello", "", "!", "?balance"} {
		_, handled := env.dispatcher.Dispatch(context.Background(), member(content))
		assert.False(t, handled, content)
	}
}

func TestDispatch_Gates(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.commands.Blacklist(context.Background(), cqrs.BlacklistCommand{MemberID: 200, Blacklisted: true}))

	tests := []struct {
		name     string
		inv      Invocation
		wantOK   bool
		wantText string
	}{
		{
			name:     "unknown command",
			inv:      member("!nope"),
			wantText: "Unknown command",
		},
		{
			name:     "admin command from member",
			inv:      member("!set-coins 100 5"),
			wantText: "reserved to administrators",
		},
		{
			name:     "wrong channel",
			inv:      Invocation{GuildID: 1, ChannelID: 11, AuthorID: 100, Content: "!balance"},
			wantText: "<#10>",
		},
		{
			name:     "blacklisted member",
			inv:      Invocation{GuildID: 1, ChannelID: 10, AuthorID: 200, Content: "!balance"},
			wantText: "blacklisted",
		},
		{
			name:     "admin in any channel",
			inv:      admin("!balance"),
			wantOK:   true,
			wantText: "Saldo: 0",
		},
		{
			name:     "message override",
			inv:      member("!BALANCE"),
			wantOK:   true,
			wantText: "Saldo: 0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply := env.run(t, tt.inv)
			assert.Equal(t, tt.wantOK, reply.OK)
			assert.Contains(t, reply.Text, tt.wantText)
		})
	}
}

func TestDispatch_Pay(t *testing.T) {
	env := newTestEnv(t)
	env.setBalance(t, 100, 50)

	reply := env.run(t, member("!pay <@!300> 20"))
	require.True(t, reply.OK, reply.Text)
	assert.Contains(t, reply.Text, "<@300>")
	assert.True(t, env.balance(t, 100).Equal(decimal.NewFromInt(30)))
	assert.True(t, env.balance(t, 300).Equal(decimal.NewFromInt(20)))

	tests := []struct {
		content  string
		wantText string
	}{
		{"!pay <@300>", "Usage: `!pay <member> <amount>`"},
		{"!pay someone 5", "Mention a member"},
		{"!pay <@300> lots", "greater than zero"},
		{"!pay <@300> -5", "greater than zero"},
		{"!pay <@300> 1000", "Not enough coins"},
		{"!pay <@100> 1", "can't pay yourself"},
	}
	for _, tt := range tests {
		reply := env.run(t, member(tt.content))
		assert.False(t, reply.OK, tt.content)
		assert.Contains(t, reply.Text, tt.wantText, tt.content)
	}
	assert.True(t, env.balance(t, 100).Equal(decimal.NewFromInt(30)))

	reply = env.run(t, admin("!toggle-pay"))
	assert.Equal(t, "Payments are now disabled.", reply.Text)
	reply = env.run(t, member("!pay <@300> 1"))
	assert.Equal(t, "Payments are currently disabled.", reply.Text)
}

// Administrators keep paying and depositing while the toggles are off.
func TestDispatch_AdminBypassesToggles(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.setBalance(t, 1, 100)

	_, err := env.commands.CreateOrganization(ctx, cqrs.CreateOrganizationCommand{Name: "acme", Tag: "ACM"})
	require.NoError(t, err)
	require.NoError(t, env.commands.JoinOrganization(ctx, cqrs.JoinOrganizationCommand{MemberID: 1, Organization: "acme"}))

	reply := env.run(t, admin("!toggle-pay"))
	require.Equal(t, "Payments are now disabled.", reply.Text)
	reply = env.run(t, admin("!toggle-deposit"))
	require.True(t, reply.OK, reply.Text)

	reply = env.run(t, admin("!pay <@200> 10"))
	require.True(t, reply.OK, reply.Text)
	assert.True(t, env.balance(t, 1).Equal(decimal.NewFromInt(90)))
	assert.True(t, env.balance(t, 200).Equal(decimal.NewFromInt(10)))

	reply = env.run(t, admin("!deposit 40"))
	require.True(t, reply.OK, reply.Text)
	assert.True(t, env.balance(t, 1).Equal(decimal.NewFromInt(50)))
	org, err := env.queries.GetOrganizationBalance(ctx, cqrs.GetOrganizationBalanceQuery{Name: "acme"})
	require.NoError(t, err)
	assert.True(t, org.Balance.Equal(decimal.NewFromInt(40)))

	env.setBalance(t, 100, 100)
	reply = env.run(t, member("!pay <@200> 10"))
	assert.Equal(t, "Payments are currently disabled.", reply.Text)
	assert.True(t, env.balance(t, 100).Equal(decimal.NewFromInt(100)))
}

func TestDispatch_Organization(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.setBalance(t, 100, 500)

	reply := env.run(t, member("!deposit 10"))
	assert.Contains(t, reply.Text, "not part of an organization")

	_, err := env.commands.CreateOrganization(ctx, cqrs.CreateOrganizationCommand{Name: "Acme", Tag: "ACM"})
	require.NoError(t, err)
	require.NoError(t, env.commands.JoinOrganization(ctx, cqrs.JoinOrganizationCommand{MemberID: 100, Organization: "acme"}))

	reply = env.run(t, member("!deposit 300"))
	require.True(t, reply.OK, reply.Text)
	assert.Contains(t, reply.Text, "**acme**")

	reply = env.run(t, member("!org-balance"))
	assert.Equal(t, "**acme** has **300** coins. You donated 300.", reply.Text)

	reply = env.run(t, member("!top-donors"))
	assert.Equal(t, "1. <@100>: 300", reply.Text)

	// Organization services need a staff role.
	reply = env.run(t, member("!buy-org headquarters"))
	assert.Contains(t, reply.Text, "organization staff")

	staff := member("!buy-org Headquarters")
	staff.AuthorRoles = []int64{600}
	reply = env.run(t, staff)
	require.True(t, reply.OK, reply.Text)
	assert.Contains(t, reply.Text, "Remaining balance: 100")

	reply = env.run(t, admin("!set-org-coins acme 42"))
	require.True(t, reply.OK, reply.Text)
	reply = env.run(t, admin("!org-coins ACME"))
	assert.Equal(t, "**acme** has **42** coins.", reply.Text)

	reply = env.run(t, admin("!set-org-coins ghost 42"))
	assert.Equal(t, "Organization not found.", reply.Text)
}

func TestDispatch_Services(t *testing.T) {
	env := newTestEnv(t)
	env.setBalance(t, 100, 60)

	reply := env.run(t, member("!services"))
	require.Len(t, reply.Fields, 1)
	assert.Equal(t, "vip", reply.Fields[0].Name)
	assert.Equal(t, "Access to the lounge\n50 coins", reply.Fields[0].Value)

	reply = env.run(t, member("!buy VIP"))
	require.True(t, reply.OK, reply.Text)
	assert.True(t, env.balance(t, 100).Equal(decimal.NewFromInt(10)))

	reply = env.run(t, member("!buy vip"))
	assert.Equal(t, "Not enough coins.", reply.Text)

	reply = env.run(t, member("!buy yacht"))
	assert.Equal(t, "Service not found.", reply.Text)

	reply = env.run(t, admin("!give-service <@100> vip"))
	require.True(t, reply.OK, reply.Text)
	assert.True(t, env.balance(t, 100).Equal(decimal.NewFromInt(10)))
}

func TestDispatch_PurchaseRefundedWhenProvisioningClosed(t *testing.T) {
	api := &mockSession{}
	direct := provisioning.NewDirectPublisher(NewProvisioner(api, NewMessages(nil)))
	direct.Close()
	env := newTestEnvWithPublisher(t, direct)
	env.setBalance(t, 100, 60)

	reply := env.run(t, member("!buy vip"))
	assert.False(t, reply.OK)
	assert.Equal(t, "The service can't be delivered right now. You were not charged, try again later.", reply.Text)
	assert.True(t, env.balance(t, 100).Equal(decimal.NewFromInt(60)))
	assert.Empty(t, api.sent)
}

func TestDispatch_AdminBalance(t *testing.T) {
	env := newTestEnv(t)

	reply := env.run(t, admin("!set-coins <@100> 100"))
	require.True(t, reply.OK, reply.Text)
	reply = env.run(t, admin("!remove-coins <@100> 30"))
	require.True(t, reply.OK, reply.Text)
	assert.Equal(t, "Balance of <@100> is now **70**.", reply.Text)
	reply = env.run(t, admin("!add-coins 100 5"))
	require.True(t, reply.OK, reply.Text)

	reply = env.run(t, admin("!member-coins <@100>"))
	assert.Equal(t, "<@100> has **75** coins and donated 0.", reply.Text)
}

func TestDispatch_Blacklist(t *testing.T) {
	env := newTestEnv(t)

	reply := env.run(t, admin("!blacklist <@100>"))
	require.True(t, reply.OK, reply.Text)
	assert.Contains(t, env.run(t, member("!balance")).Text, "blacklisted")

	reply = env.run(t, admin("!blacklist-remove <@100>"))
	require.True(t, reply.OK, reply.Text)
	assert.True(t, env.run(t, member("!balance")).OK)

	env.members.members = []int64{100, 101}
	reply = env.run(t, admin("!blacklist-role <@&700>"))
	assert.Equal(t, "Blacklisted 2 members with role <@&700>.", reply.Text)

	env.members.err = errors.New("missing access")
	reply = env.run(t, admin("!blacklist-role <@&700>"))
	assert.False(t, reply.OK)
	assert.Equal(t, "Something went wrong, try again later.", reply.Text)
}

func TestDispatch_Leaderboards(t *testing.T) {
	env := newTestEnv(t)

	reply := env.run(t, member("!top"))
	assert.Equal(t, "Nobody here yet.", reply.Text)

	env.setBalance(t, 5, 10)
	env.setBalance(t, 6, 20)
	reply = env.run(t, member("!top"))
	assert.Equal(t, "1. <@6>: 20\n2. <@5>: 10", reply.Text)
}

func TestDispatch_Help(t *testing.T) {
	env := newTestEnv(t)

	reply := env.run(t, member("!help"))
	assert.Contains(t, reply.Text, "`!pay <member> <amount>` Pay another member")
	assert.Empty(t, reply.Fields)

	reply = env.run(t, admin("!help"))
	require.Len(t, reply.Fields, 1)
	assert.True(t, strings.Contains(reply.Fields[0].Value, "`!set-coins <member> <amount>`"))
}
