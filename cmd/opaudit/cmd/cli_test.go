package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAuthorityScript stands in for the authority CLI. It answers the exact
// queries the audit pipeline issues with canned JSON.
const fakeAuthorityScript = `#!/bin/sh
case "$*" in
  "whoami")
    echo '{"user_uuid":"me"}' ;;
  "vault list --format=json --permission manage_vault")
    echo '[{"id":"v1","name":"Eng-Secrets"}]' ;;
  "vault list --format=json")
    echo '[{"id":"v1","name":"Eng-Secrets"},{"id":"v2","name":"Shared"}]' ;;
  "group list --format=json")
    echo '[{"id":"g1","name":"Admins"}]' ;;
  "vault user list v1 --format=json")
    echo '[{"id":"alice","name":"Alice","email":"alice@x.com","permissions":["read","write"]}]' ;;
  "vault group list v1 --format=json")
    echo '[{"id":"g1","name":"Admins","permissions":["read","write","manage"]}]' ;;
  "group user list g1 --format=json")
    echo '[{"id":"bob","name":"Bob","email":"bob@x.com"}]' ;;
  *)
    echo '[]' ;;
esac
`

func writeFakeAuthority(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake authority script requires a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "op")
	require.NoError(t, os.WriteFile(path, []byte(fakeAuthorityScript), 0o755))
	return path
}

func executeCommand(root *cobra.Command, args ...string) (string, error) {
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func TestAuditCommand(t *testing.T) {
	op := writeFakeAuthority(t)
	out := filepath.Join(t.TempDir(), "report.csv")

	output, err := executeCommand(rootCmd, "audit",
		"--op-path", op, "--output", out, "--log-level", "ERROR")
	require.NoError(t, err)
	assert.Contains(t, output, "Audited 1 vaults, 1 groups: 2 rows")

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	report := string(data)
	assert.Contains(t, report, "User Name,User Email,Vault Name,Permissions,Access Via")
	assert.Contains(t, report, `Alice,alice@x.com,Eng-Secrets,"read, write",Direct`)
	assert.Contains(t, report, `Bob,bob@x.com,Eng-Secrets,"manage, read, write","Group: Admins"`)
}

func TestAuditCommand_MetricsFile(t *testing.T) {
	op := writeFakeAuthority(t)
	dir := t.TempDir()
	out := filepath.Join(dir, "report.csv")
	metricsFile := filepath.Join(dir, "opaudit.prom")

	_, err := executeCommand(rootCmd, "audit",
		"--op-path", op, "--output", out, "--metrics-file", metricsFile, "--log-level", "ERROR")
	require.NoError(t, err)

	data, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "opaudit_authority_calls_total")
	assert.Contains(t, string(data), "opaudit_report_rows")
}

func TestVaultsCommand(t *testing.T) {
	op := writeFakeAuthority(t)

	output, err := executeCommand(rootCmd, "vaults", "--op-path", op, "--log-level", "ERROR")
	require.NoError(t, err)
	assert.Contains(t, output, "ID")
	assert.Contains(t, output, "Eng-Secrets")
	assert.NotContains(t, output, "Shared")
}

func TestVaultsCommand_All(t *testing.T) {
	op := writeFakeAuthority(t)

	output, err := executeCommand(rootCmd, "vaults", "--op-path", op, "--all", "--log-level", "ERROR")
	require.NoError(t, err)
	assert.Contains(t, output, "Eng-Secrets")
	assert.Contains(t, output, "Shared")
}

func TestGroupsCommand(t *testing.T) {
	op := writeFakeAuthority(t)

	output, err := executeCommand(rootCmd, "groups", "--op-path", op, "--log-level", "ERROR")
	require.NoError(t, err)
	assert.Contains(t, output, "Admins")
}

func TestGroupsCommand_Members(t *testing.T) {
	op := writeFakeAuthority(t)

	output, err := executeCommand(rootCmd, "groups", "--op-path", op, "--members", "--log-level", "ERROR")
	require.NoError(t, err)
	assert.Contains(t, output, "Admins")
	assert.Contains(t, output, "1")
}

func TestConfigSetCreatesFileOnFirstRun(t *testing.T) {
	// A fresh home directory has no config file; the first set must create
	// one instead of failing.
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Cleanup(viper.Reset)

	output, err := executeCommand(rootCmd, "config", "set", "editor", "vim")
	require.NoError(t, err)
	assert.Contains(t, output, "Set editor to vim")

	data, err := os.ReadFile(filepath.Join(home, ".opaudit.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "editor: vim")

	output, err = executeCommand(rootCmd, "config", "get", "editor")
	require.NoError(t, err)
	assert.Contains(t, output, "vim")

	output, err = executeCommand(rootCmd, "config", "view")
	require.NoError(t, err)
	assert.Contains(t, output, "editor: vim")
}

func TestConfigGetUnsetKey(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Cleanup(viper.Reset)

	output, err := executeCommand(rootCmd, "config", "get", "no-such-key")
	require.NoError(t, err)
	assert.Contains(t, output, "Not set")
}

func TestConfigFileProvidesFlagDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Cleanup(viper.Reset)

	op := writeFakeAuthority(t)
	cfg := "op-path: " + op + "\nrate-limit: 0\n"
	require.NoError(t, os.WriteFile(filepath.Join(home, ".opaudit.yaml"), []byte(cfg), 0o644))

	// Earlier executions in this process passed --op-path explicitly; clear
	// the flag state so the config file is the only source here.
	rootCmd.PersistentFlags().Lookup("op-path").Changed = false
	rootCmd.PersistentFlags().Lookup("rate-limit").Changed = false

	output, err := executeCommand(rootCmd, "vaults", "--log-level", "ERROR")
	require.NoError(t, err)
	assert.Contains(t, output, "Eng-Secrets")

	// An explicit zero in the file is honored, not confused with unset.
	assert.Equal(t, 0, rateLimit)
	assert.Equal(t, op, opPath)
}
