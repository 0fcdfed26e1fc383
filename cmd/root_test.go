package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmd_VersionFlag(t *testing.T) {
	resetForTest(t)

	out, err := executeCommand(t, "--version")

	require.NoError(t, err)
	assert.Equal(t, Version+"\n", out)
}

func TestRootCmd_NoArgs(t *testing.T) {
	resetForTest(t)

	out, err := executeCommand(t)

	require.NoError(t, err)
	assert.Contains(t, out, "apiscribe converts, infers, and diffs API specifications.")
	assert.Contains(t, out, "Available Commands:")
}

func TestRootCmd_UnknownCommand(t *testing.T) {
	resetForTest(t)

	_, err := executeCommand(t, "definitely-not-a-command")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown command")
}
