package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImportCmd_PreviewCurl(t *testing.T) {
	resetForTest(t)
	path := writeTempFile(t, "request.sh",
		`curl -X POST https://api.example.com/widgets -H 'Content-Type: application/json' -d '{"name":"gear"}'`)

	out, err := executeCommand(t, "import", "--preview", path)

	require.NoError(t, err)
	assert.Contains(t, out, "(curl)")
	assert.Contains(t, out, `collection "Imported curl": 1 requests`)
}

func TestImportCmd_NothingToImport(t *testing.T) {
	resetForTest(t)

	_, err := executeCommand(t, "import")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "nothing to import")
}

func TestImportCmd_UnrecognizedSource(t *testing.T) {
	resetForTest(t)
	path := writeTempFile(t, "noise.txt", "just some prose, not an API definition")

	_, err := executeCommand(t, "import", path)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to import")
}

func TestExportCmd_CurlToOpenAPI(t *testing.T) {
	resetForTest(t)
	path := writeTempFile(t, "request.sh",
		`curl https://api.example.com/widgets/42 -H 'Accept: application/json'`)

	out, err := executeCommand(t, "export", path, "--to", "openapi")

	require.NoError(t, err)
	assert.Contains(t, out, `"openapi"`)
	assert.Contains(t, out, "/widgets/42")
}
