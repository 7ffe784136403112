package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := buildRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestImport_RequiresTeam(t *testing.T) {
	_, err := execute(t, "import", "karma", "karma.csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"team"`)
}

func TestImport_RequiresToken(t *testing.T) {
	_, err := execute(t, "import", "factoids", "--team", "T1", "--token", "", "factoids.csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SLACK_BOT_TOKEN")
}

func TestImport_RequiresFile(t *testing.T) {
	_, err := execute(t, "import", "karma", "--team", "T1")
	assert.Error(t, err)
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "lullabot")
}
