package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "escrow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
platform: "0x00000000000000000000000000000000000000aa"
court: "0x00000000000000000000000000000000000000bb"
fee_basis_points: 250
`), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd("test")
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func Test_RunCmd(t *testing.T) {
	cfgFile := writeConfig(t)
	out, err := execute(t, "run", "--config", cfgFile, "--log-level", "error", "--env-file", "", "../sim/testdata/dispute.yaml")
	require.NoError(t, err)
	require.Contains(t, out, " 1. create    ok")
	require.Contains(t, out, "TransactionCreated id=1")
	require.Contains(t, out, " 3. reimburse failed: invalid amount, max 5000")
	require.Contains(t, out, "RulingGiven dispute=1")
	require.Contains(t, out, "8 steps, 3 calls failed")
	require.Contains(t, out, "balances:")
	require.Contains(t, out, "  alice      2500\n")

	_, err = execute(t, "run", "--config", cfgFile, "--env-file", "", "missing.yaml")
	require.Error(t, err)

	_, err = execute(t, "run", "--config", cfgFile, "--log-level", "loud", "--env-file", "", "../sim/testdata/dispute.yaml")
	require.ErrorContains(t, err, "not a valid logrus Level")
}

func Test_ConfigCmd(t *testing.T) {
	out, err := execute(t, "config", "--config", writeConfig(t), "--env-file", "")
	require.NoError(t, err)
	require.Contains(t, out, "fee_basis_points: 250")
	require.Contains(t, out, "log_level: info")
}

func Test_RunCmd_multipleScenarios(t *testing.T) {
	out, err := execute(t, "run", "--config", writeConfig(t), "--log-level", "error", "--env-file", "", "--parallel", "2",
		"../sim/testdata/dispute.yaml", "../sim/testdata/dispute.yaml")
	require.NoError(t, err)
	require.Equal(t, 2, strings.Count(out, "== ../sim/testdata/dispute.yaml\n"))
	require.Equal(t, 2, strings.Count(out, "balances:"))
}
