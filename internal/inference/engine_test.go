package inference

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apiscribe/apiscribe/api/schemas"
	"github.com/apiscribe/apiscribe/internal/config"
	"github.com/apiscribe/apiscribe/internal/observability"
)

// TestMain sets up the global logger for all tests in this package.
func TestMain(m *testing.M) {
	observability.ResetForTest()

	cfg := config.NewDefaultConfig().Logger()
	cfg.Level = "debug"
	cfg.LogFile = ""
	cfg.Format = "console"
	observability.InitializeLogger(cfg)

	code := m.Run()

	observability.Sync()
	os.Exit(code)
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	return NewEngine(config.InferenceConfig{
		MaxBodyBytes:          1 << 20,
		CommonHeaderThreshold: 0.5,
	}, observability.GetLogger())
}

func request(id, method, url string, headers map[string]string, body string) schemas.CaptureEntry {
	return schemas.CaptureEntry{
		ID:      id,
		Type:    schemas.CaptureRequest,
		Method:  method,
		URL:     url,
		Headers: headers,
		Body:    body,
	}
}

func response(id, requestID string, status int, body string) schemas.CaptureEntry {
	return schemas.CaptureEntry{
		ID:        id,
		Type:      schemas.CaptureResponse,
		Status:    status,
		Body:      body,
		RequestID: requestID,
	}
}

func TestAnalyze_EndpointDeduplication(t *testing.T) {
	engine := newTestEngine(t)

	entries := []schemas.CaptureEntry{
		request("r1", "GET", "https://api.example.com/users/123", nil, ""),
		request("r2", "GET", "https://api.example.com/users/456", nil, ""),
		request("r3", "POST", "https://api.example.com/users", nil, ""),
	}

	result := engine.Analyze(entries)

	require.Len(t, result.Endpoints, 2)
	assert.Equal(t, "GET", result.Endpoints[0].Method)
	assert.Equal(t, "/users/{id}", result.Endpoints[0].Path)
	assert.Equal(t, "POST", result.Endpoints[1].Method)
	assert.Equal(t, "/users", result.Endpoints[1].Path)

	assert.Equal(t, 3, result.Metadata.TotalRequests)
	assert.Equal(t, 2, result.Metadata.UniqueEndpoints)
	assert.Equal(t, []string{"https://api.example.com"}, result.BasePaths)
}

func TestAnalyze_PathParameterFromNumericSegment(t *testing.T) {
	engine := newTestEngine(t)

	result := engine.Analyze([]schemas.CaptureEntry{
		request("r1", "GET", "https://api.example.com/users/123", nil, ""),
	})

	require.Len(t, result.Endpoints, 1)
	params := result.Endpoints[0].Parameters
	require.Len(t, params, 1)
	assert.Equal(t, "id", params[0].Name)
	assert.Equal(t, "path", params[0].In)
	assert.True(t, params[0].Required)
	require.NotNil(t, params[0].Schema)
	assert.Equal(t, schemas.TypeInteger, params[0].Schema.Type)
}

func TestAnalyze_PathParameterFromUUIDSegment(t *testing.T) {
	engine := newTestEngine(t)

	result := engine.Analyze([]schemas.CaptureEntry{
		request("r1", "GET", "https://api.example.com/orders/550e8400-e29b-41d4-a716-446655440000", nil, ""),
	})

	require.Len(t, result.Endpoints, 1)
	assert.Equal(t, "/orders/{id}", result.Endpoints[0].Path)
	params := result.Endpoints[0].Parameters
	require.Len(t, params, 1)
	require.NotNil(t, params[0].Schema)
	assert.Equal(t, schemas.TypeString, params[0].Schema.Type)
	assert.Equal(t, schemas.FormatUUID, params[0].Schema.Format)
}

// Two observations of the same endpoint merge into one response schema with
// the shared required set and detected string formats.
func TestAnalyze_ResponseSchemaMerging(t *testing.T) {
	engine := newTestEngine(t)

	entries := []schemas.CaptureEntry{
		request("r1", "GET", "https://api.example.com/users/1", nil, ""),
		response("p1", "r1", 200, `{"id": 1, "name": "alice", "email": "alice@example.com"}`),
		request("r2", "GET", "https://api.example.com/users/2", nil, ""),
		response("p2", "r2", 200, `{"id": 2, "name": "bob"}`),
	}

	result := engine.Analyze(entries)

	require.Len(t, result.Endpoints, 1)
	obs := result.Endpoints[0].Responses[200]
	require.NotNil(t, obs)
	assert.Equal(t, 2, obs.Count)

	schema := obs.Schema
	require.NotNil(t, schema)
	assert.Equal(t, schemas.TypeObject, schema.Type)
	// email appeared in only one sample, so required is the intersection.
	assert.ElementsMatch(t, []string{"id", "name"}, schema.Required)

	require.Contains(t, schema.Properties, "email")
	assert.Equal(t, schemas.TypeString, schema.Properties["email"].Type)
	assert.Equal(t, schemas.FormatEmail, schema.Properties["email"].Format)
	assert.Equal(t, schemas.TypeInteger, schema.Properties["id"].Type)
}

func TestAnalyze_TypeConflictYieldsDiagnostic(t *testing.T) {
	engine := newTestEngine(t)

	entries := []schemas.CaptureEntry{
		request("r1", "POST", "https://api.example.com/items", nil, `{"value": "text"}`),
		request("r2", "POST", "https://api.example.com/items", nil, `{"value": true}`),
	}

	result := engine.Analyze(entries)

	require.NotEmpty(t, result.Diagnostics)
	assert.Equal(t, DiagMergeConflict, result.Diagnostics[0].Code)
	assert.Equal(t, "value", result.Diagnostics[0].Field)

	// The earlier-seen type wins.
	body := result.Endpoints[0].RequestBody
	require.NotNil(t, body)
	assert.Equal(t, schemas.TypeString, body.Schema.Properties["value"].Type)
}

func TestAnalyze_AuthDetection(t *testing.T) {
	engine := newTestEngine(t)

	// A syntactically plausible JWT (unsigned, not a real credential).
	jwt := "eyJhbGciOiJub25lIiwidHlwIjoiSldUIn0.eyJzdWIiOiIxMjM0NTY3ODkwIn0."

	entries := []schemas.CaptureEntry{
		request("r1", "GET", "https://api.example.com/me",
			map[string]string{"Authorization": "Bearer " + jwt, "Accept": "application/json"}, ""),
		request("r2", "GET", "https://api.example.com/admin",
			map[string]string{"X-API-Key": "k-123"}, ""),
	}

	result := engine.Analyze(entries)

	require.Len(t, result.Authentication, 2)
	bearer := result.Authentication[0]
	assert.Equal(t, schemas.AuthBearer, bearer.Type)
	assert.Equal(t, "bearer", bearer.Scheme)
	assert.Equal(t, "JWT", bearer.BearerFormat)
	assert.Equal(t, []string{"GET /me"}, bearer.Endpoints)

	apikey := result.Authentication[1]
	assert.Equal(t, schemas.AuthAPIKey, apikey.Type)
	assert.Equal(t, "X-API-Key", apikey.HeaderName)

	// Auth headers never leak into common headers.
	for _, h := range result.CommonHeaders {
		assert.NotEqual(t, "authorization", h.Name)
		assert.NotEqual(t, "x-api-key", h.Name)
	}
}

func TestAnalyze_CommonHeaders(t *testing.T) {
	engine := newTestEngine(t)

	entries := []schemas.CaptureEntry{
		request("r1", "GET", "https://api.example.com/a",
			map[string]string{"Accept": "application/json", "X-Trace": "1"}, ""),
		request("r2", "GET", "https://api.example.com/b",
			map[string]string{"Accept": "application/json"}, ""),
		request("r3", "GET", "https://api.example.com/c",
			map[string]string{"Accept": "application/json"}, ""),
	}

	result := engine.Analyze(entries)

	require.Len(t, result.CommonHeaders, 1, "X-Trace is below the 50%% threshold")
	assert.Equal(t, "Accept", result.CommonHeaders[0].Name)
	assert.Equal(t, 3, result.CommonHeaders[0].Count)
}

func TestAnalyze_QueryParameters(t *testing.T) {
	engine := newTestEngine(t)

	entries := []schemas.CaptureEntry{
		request("r1", "GET", "https://api.example.com/items?limit=10&active=true", nil, ""),
		request("r2", "GET", "https://api.example.com/items?limit=abc", nil, ""),
	}

	result := engine.Analyze(entries)

	require.Len(t, result.Endpoints, 1)
	params := result.Endpoints[0].Parameters
	require.Len(t, params, 2)

	active := findParam(params, "active", "query")
	require.NotNil(t, active)
	assert.Equal(t, schemas.TypeBoolean, active.Schema.Type)
	assert.False(t, active.Required, "absence across samples cannot prove a query parameter required")

	// limit saw both an integer and a non-numeric value, so it widens.
	limit := findParam(params, "limit", "query")
	require.NotNil(t, limit)
	assert.Equal(t, schemas.TypeString, limit.Schema.Type)
}

func TestAnalyze_SkipsMalformedEntries(t *testing.T) {
	engine := newTestEngine(t)

	entries := []schemas.CaptureEntry{
		{ID: "bad1", Type: schemas.CaptureRequest},                              // no method/url
		request("bad2", "GET", "://not-a-url", nil, ""),                         // unparseable
		{ID: "ws", Type: schemas.CaptureWebSocket, URL: "wss://api.example.com"}, // not a request
		request("ok", "GET", "https://api.example.com/ping", nil, ""),
	}

	result := engine.Analyze(entries)

	require.Len(t, result.Endpoints, 1)
	assert.Equal(t, "/ping", result.Endpoints[0].Path)
	assert.Equal(t, 1, result.Metadata.TotalRequests)
}

func TestAnalyze_EmptyBatch(t *testing.T) {
	engine := newTestEngine(t)
	result := engine.Analyze(nil)
	assert.Empty(t, result.Endpoints)
	assert.Zero(t, result.Metadata.TotalRequests)
}

func TestAnalyze_SchemaCatalog(t *testing.T) {
	engine := newTestEngine(t)

	entries := []schemas.CaptureEntry{
		request("r1", "POST", "https://api.example.com/users", nil, `{"name": "alice"}`),
		response("p1", "r1", 201, `{"id": 1, "name": "alice"}`),
	}

	result := engine.Analyze(entries)

	require.Contains(t, result.Schemas, "postUsers.request")
	require.Contains(t, result.Schemas, "postUsers.response.201")
	assert.Same(t, result.Endpoints[0].RequestBody.Schema, result.Schemas["postUsers.request"])
	assert.Equal(t, schemas.TypeObject, result.Schemas["postUsers.response.201"].Type)
}

func TestAnalyze_NonJSONResponseStillCountsStatus(t *testing.T) {
	engine := newTestEngine(t)

	entries := []schemas.CaptureEntry{
		request("r1", "GET", "https://api.example.com/health", nil, ""),
		response("p1", "r1", 204, ""),
		request("r2", "GET", "https://api.example.com/health", nil, ""),
		response("p2", "r2", 204, ""),
	}

	result := engine.Analyze(entries)

	obs := result.Endpoints[0].Responses[204]
	require.NotNil(t, obs)
	assert.Nil(t, obs.Schema)
	assert.Equal(t, 2, obs.Count)
}
