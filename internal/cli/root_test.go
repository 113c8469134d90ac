package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "coinsbot", cmd.Use)
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := [][]string{
		{"serve"}, {"migrate"}, {"balance"}, {"top"}, {"token"},
		{"org", "create"}, {"org", "add-member"},
	}

	for _, path := range commands {
		t.Run(strings.Join(path, " "), func(t *testing.T) {
			subCmd, _, err := cmd.Find(path)
			require.NoError(t, err)
			require.NotNil(t, subCmd)
			assert.Equal(t, path[len(path)-1], subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	serveCmd, _, err := cmd.Find([]string{"serve"})
	require.NoError(t, err)
	intervalFlag := serveCmd.Flags().Lookup("interval")
	require.NotNil(t, intervalFlag)
	assert.Equal(t, "1m0s", intervalFlag.DefValue)
}

// setupEnv points the CLI at a fresh sqlite ledger with every optional backend off.
func setupEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"REDIS_ADDR", "HTTP_PORT", "OTEL_EXPORTER_OTLP_ENDPOINT", "JWT_SECRET"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	t.Setenv("COINS_ENV", "test")
	t.Setenv("DATABASE_URL", "sqlite://"+filepath.Join(t.TempDir(), "ledger.db"))
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestInvalidFormat(t *testing.T) {
	setupEnv(t)

	_, err := execute(t, "migrate", "--format", "xml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestMigrate(t *testing.T) {
	setupEnv(t)

	out, err := execute(t, "migrate", "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string            `json:"status"`
		Data   map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "sqlite3", resp.Data["driver"])
}

func TestOrganizationLifecycle(t *testing.T) {
	setupEnv(t)

	out, err := execute(t, "org", "create", "Acme", "--tag", "ACM")
	require.NoError(t, err)
	assert.Contains(t, out, "created acme [ACM]")

	_, err = execute(t, "org", "create", "acme", "--tag", "ACM")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	_, err = execute(t, "org", "add-member", "acme", "1148309572936417399")
	require.NoError(t, err)

	out, err = execute(t, "balance", "1148309572936417399", "--format", "json")
	require.NoError(t, err)
	var resp struct {
		Data struct {
			MemberID     string `json:"memberId"`
			Organization string `json:"organization"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "1148309572936417399", resp.Data.MemberID)
	assert.Equal(t, "acme", resp.Data.Organization)

	out, err = execute(t, "top", "--orgs")
	require.NoError(t, err)
	assert.Contains(t, out, "1. acme 0")
}

func TestAddMember_UnknownOrganization(t *testing.T) {
	setupEnv(t)

	_, err := execute(t, "org", "add-member", "ghost", "42")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "not found")
}

func TestBalance_InvalidMember(t *testing.T) {
	setupEnv(t)

	_, err := execute(t, "balance", "not-a-number")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestToken(t *testing.T) {
	setupEnv(t)

	_, err := execute(t, "token", "42")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	t.Setenv("JWT_SECRET", "s3cret")
	out, err := execute(t, "token", "42", "--admin", "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Data struct {
			Token string `json:"token"`
			Admin bool   `json:"admin"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.True(t, resp.Data.Admin)
	assert.Equal(t, 3, len(strings.Split(resp.Data.Token, ".")))
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("boom")))
	assert.Equal(t, ExitCommandError, GetExitCode(WrapExitError(ExitCommandError, "bad", nil)))

	wrapped := WrapExitError(ExitFailure, "outer", errors.New("inner"))
	assert.Equal(t, "outer: inner", wrapped.Error())
	assert.EqualError(t, errors.Unwrap(wrapped), "inner")
}
