package commands

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestListCmd(t *testing.T) {
	out, err := runCommand(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "SIGNATURE")
	assert.Contains(t, out, "0d19c1c6")
	assert.Contains(t, out, "mdx_final/0d19c1c6-0403dcb9.th")
}

func TestGetCmdUnittestModel(t *testing.T) {
	out, err := runCommand(t, "get", "demucs_unittest")
	require.NoError(t, err)
	assert.Contains(t, out, "Loaded demucs_unittest")
	assert.Contains(t, out, "drums bass other vocals")
}

func TestGetCmdRejectsMissingRepo(t *testing.T) {
	_, err := runCommand(t, "get", "0d19c1c6", "--repo", t.TempDir()+"/absent")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model repository")
}

func TestPullCmdUnknownLegacyName(t *testing.T) {
	_, err := runCommand(t, "pull", "--legacy", "transformer")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "transformer")
}
