package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatsCmd_ListsAllHandlers(t *testing.T) {
	resetForTest(t)

	out, err := executeCommand(t, "formats")

	require.NoError(t, err)
	for _, format := range []string{
		"curl", "postman", "insomnia", "openapi", "asyncapi",
		"raml", "wadl", "wsdl", "har", "graphql",
	} {
		assert.Contains(t, out, format)
	}
	assert.Contains(t, out, "import, export")
}

func TestValidateCmd_ValidDocument(t *testing.T) {
	resetForTest(t)
	path := writeTempFile(t, "spec.json", `{
		"openapi": "3.0.3",
		"info": {"title": "Widgets", "version": "1.0.0"},
		"paths": {}
	}`)

	out, err := executeCommand(t, "validate", path)

	require.NoError(t, err)
	assert.Contains(t, out, "valid (openapi)")
}

func TestValidateCmd_InvalidDocument(t *testing.T) {
	resetForTest(t)
	// Missing the required info block.
	path := writeTempFile(t, "broken.json", `{"openapi": "3.0.3", "paths": {}}`)

	out, err := executeCommand(t, "validate", "--format", "openapi", path)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "not valid")
	assert.NotEmpty(t, out)
}

func TestValidateCmd_MissingFile(t *testing.T) {
	resetForTest(t)

	_, err := executeCommand(t, "validate", filepath.Join(t.TempDir(), "absent.json"))

	require.Error(t, err)
}

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}
