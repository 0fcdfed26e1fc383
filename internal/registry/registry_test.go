package registry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

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

// TestNoGoroutineLeaks drives the registry from concurrent callers and
// verifies nothing is left running.
func TestNoGoroutineLeaks(t *testing.T) {
	defer goleak.VerifyNone(t)

	reg := newTestRegistry(t, nil)
	reg.RegisterHandler(&fakeHandler{format: "x", canImport: func(string) bool { return true }})

	done := make(chan struct{})
	for i := 0; i < 4; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 50; j++ {
				reg.Import(context.Background(), "content", ImportOptions{Preview: true})
				reg.DetectFormat("content")
			}
		}()
	}
	for i := 0; i < 4; i++ {
		<-done
	}
}

// fakeHandler is a scriptable Handler implementation.
type fakeHandler struct {
	format    string
	canImport func(string) bool
	parse     func(string, ParseOptions) (*ParseResult, error)
	serialize func(ExportInput, SerializeOptions) (string, error)
	validate  func(string) ValidationResult
}

func (f *fakeHandler) Format() string { return f.format }

func (f *fakeHandler) CanExport() bool { return f.serialize != nil }

func (f *fakeHandler) CanImport(content string) bool {
	if f.canImport == nil {
		return false
	}
	return f.canImport(content)
}

func (f *fakeHandler) Validate(content string) ValidationResult {
	if f.validate == nil {
		return ValidationResult{Valid: true}
	}
	return f.validate(content)
}

func (f *fakeHandler) Parse(content string, opts ParseOptions) (*ParseResult, error) {
	if f.parse == nil {
		return &ParseResult{}, nil
	}
	return f.parse(content, opts)
}

func (f *fakeHandler) Serialize(input ExportInput, opts SerializeOptions) (string, error) {
	if f.serialize == nil {
		return "", Error{Code: ErrCodeUnsupported, Message: "not supported"}
	}
	return f.serialize(input, opts)
}

// memStore records persistence calls. It mirrors the contract of the real
// store: CreateCollection writes the collection and all of its requests in
// one shot, and CreateRequest rejects a request whose key was already
// written, the way a primary key violation would.
type memStore struct {
	collections  []schemas.Collection
	requests     []schemas.Request
	environments []schemas.Environment
	variables    map[string]string
	seenRequests map[string]bool
	failOn       string
}

func newMemStore() *memStore {
	return &memStore{
		variables:    map[string]string{},
		seenRequests: map[string]bool{},
	}
}

func requestKey(req *schemas.Request) string {
	if req.ID != "" {
		return req.ID
	}
	return req.Method + " " + req.URL
}

func (s *memStore) CreateCollection(ctx context.Context, col *schemas.Collection) error {
	if s.failOn == "collection" {
		return errors.New("collection insert failed")
	}
	s.collections = append(s.collections, *col)
	var err error
	col.WalkRequests(func(req *schemas.Request) {
		if err != nil {
			return
		}
		err = s.writeRequest(req)
	})
	return err
}

func (s *memStore) writeRequest(req *schemas.Request) error {
	key := requestKey(req)
	if s.seenRequests[key] {
		return fmt.Errorf("duplicate key value violates unique constraint: request %q", key)
	}
	s.seenRequests[key] = true
	s.requests = append(s.requests, *req)
	return nil
}

func (s *memStore) CreateRequest(ctx context.Context, collectionID string, req *schemas.Request) error {
	if s.failOn == "request" {
		return errors.New("request insert failed")
	}
	return s.writeRequest(req)
}

func (s *memStore) CreateEnvironment(ctx context.Context, env *schemas.Environment) error {
	s.environments = append(s.environments, *env)
	return nil
}

func (s *memStore) SetVariable(ctx context.Context, environment, key, value string) error {
	s.variables[environment+"."+key] = value
	return nil
}

func newTestRegistry(t *testing.T, store Store) *Registry {
	t.Helper()
	return New(observability.GetLogger(), store, 10)
}

func TestRegisterHandler(t *testing.T) {
	t.Run("registration order drives detection", func(t *testing.T) {
		reg := newTestRegistry(t, nil)
		reg.RegisterHandler(&fakeHandler{format: "a", canImport: func(string) bool { return true }})
		reg.RegisterHandler(&fakeHandler{format: "b", canImport: func(string) bool { return true }})

		assert.Equal(t, []string{"a", "b"}, reg.Formats())
		assert.Equal(t, "a", reg.DetectFormat("anything"))
	})

	t.Run("last registration wins and moves to end of order", func(t *testing.T) {
		reg := newTestRegistry(t, nil)
		reg.RegisterHandler(&fakeHandler{format: "a", canImport: func(string) bool { return true }})
		reg.RegisterHandler(&fakeHandler{format: "b", canImport: func(string) bool { return true }})
		reg.RegisterHandler(&fakeHandler{format: "a", canImport: func(string) bool { return false }})

		assert.Equal(t, []string{"b", "a"}, reg.Formats())
		// The replacement's sniff rejects, so detection falls to b.
		assert.Equal(t, "b", reg.DetectFormat("anything"))
	})

	t.Run("unregister removes handler", func(t *testing.T) {
		reg := newTestRegistry(t, nil)
		reg.RegisterHandler(&fakeHandler{format: "a"})
		reg.UnregisterHandler("a")
		assert.Empty(t, reg.Formats())
		reg.UnregisterHandler("missing") // no-op
	})
}

func TestDetectFormat(t *testing.T) {
	t.Run("returns empty string when nothing matches", func(t *testing.T) {
		reg := newTestRegistry(t, nil)
		reg.RegisterHandler(&fakeHandler{format: "a"})
		assert.Equal(t, "", reg.DetectFormat("unrecognizable"))
	})

	t.Run("a panicking sniff is treated as a non-match", func(t *testing.T) {
		reg := newTestRegistry(t, nil)
		reg.RegisterHandler(&fakeHandler{format: "bomb", canImport: func(string) bool { panic("boom") }})
		reg.RegisterHandler(&fakeHandler{format: "ok", canImport: func(string) bool { return true }})

		assert.Equal(t, "ok", reg.DetectFormat("anything"))
	})
}

func TestValidate(t *testing.T) {
	t.Run("no handler yields NO_HANDLER", func(t *testing.T) {
		reg := newTestRegistry(t, nil)
		result := reg.Validate("content", "")
		require.False(t, result.Valid)
		require.Len(t, result.Errors, 1)
		assert.Equal(t, ErrCodeNoHandler, result.Errors[0].Code)
	})

	t.Run("pins explicit format and labels result", func(t *testing.T) {
		reg := newTestRegistry(t, nil)
		reg.RegisterHandler(&fakeHandler{format: "a"})
		result := reg.Validate("content", "a")
		assert.True(t, result.Valid)
		assert.Equal(t, "a", result.Format)
	})

	t.Run("panicking validator becomes a structured error", func(t *testing.T) {
		reg := newTestRegistry(t, nil)
		reg.RegisterHandler(&fakeHandler{
			format:   "bomb",
			validate: func(string) ValidationResult { panic("kaboom") },
		})
		result := reg.Validate("content", "bomb")
		require.False(t, result.Valid)
		require.Len(t, result.Errors, 1)
		assert.Equal(t, ErrCodeValidationError, result.Errors[0].Code)
		assert.Contains(t, result.Errors[0].Message, "kaboom")
	})
}

func TestImport(t *testing.T) {
	ctx := context.Background()

	collection := schemas.Collection{
		ID:   "col-1",
		Name: "Sample",
		Requests: []schemas.Request{
			{Name: "List", Method: "GET", URL: "https://api.example.com/items"},
		},
	}

	okHandler := func(format string) *fakeHandler {
		return &fakeHandler{
			format:    format,
			canImport: func(string) bool { return true },
			parse: func(string, ParseOptions) (*ParseResult, error) {
				return &ParseResult{
					Collections: []schemas.Collection{collection},
					Requests:    collection.Requests,
				}, nil
			},
		}
	}

	t.Run("undetectable content fails with NO_HANDLER", func(t *testing.T) {
		reg := newTestRegistry(t, nil)
		result := reg.Import(ctx, "garbage", ImportOptions{})
		require.False(t, result.Success)
		assert.Equal(t, ErrCodeNoHandler, result.Errors[0].Code)
	})

	t.Run("preview parses without persisting", func(t *testing.T) {
		store := newMemStore()
		reg := newTestRegistry(t, store)
		reg.RegisterHandler(okHandler("x"))

		result := reg.Import(ctx, "content", ImportOptions{Preview: true})
		require.True(t, result.Success)
		assert.Equal(t, "x", result.Format)
		require.Len(t, result.Collections, 1)
		assert.Empty(t, store.collections, "preview must not touch the store")
	})

	t.Run("non-preview import persists collections and requests", func(t *testing.T) {
		store := newMemStore()
		reg := newTestRegistry(t, store)
		reg.RegisterHandler(okHandler("x"))

		result := reg.Import(ctx, "content", ImportOptions{})
		require.True(t, result.Success)
		require.Len(t, store.collections, 1)
		require.Len(t, store.requests, 1)
		assert.Equal(t, "List", store.requests[0].Name)
	})

	t.Run("each request is written exactly once", func(t *testing.T) {
		// The store enforces request uniqueness like the database does,
		// so any second write of the same request fails the import.
		store := newMemStore()
		reg := newTestRegistry(t, store)
		reg.RegisterHandler(&fakeHandler{
			format:    "multi",
			canImport: func(string) bool { return true },
			parse: func(string, ParseOptions) (*ParseResult, error) {
				return &ParseResult{Collections: []schemas.Collection{{
					ID:   "col-2",
					Name: "Widgets",
					Requests: []schemas.Request{
						{ID: "req-1", Name: "List", Method: "GET", URL: "https://api.example.com/widgets"},
						{ID: "req-2", Name: "Create", Method: "POST", URL: "https://api.example.com/widgets"},
					},
				}}}, nil
			},
		})

		result := reg.Import(ctx, "content", ImportOptions{})
		require.True(t, result.Success, "errors: %v", result.Errors)
		require.Len(t, store.collections, 1)
		require.Len(t, store.requests, 2)
	})

	t.Run("selective import filters by id or name", func(t *testing.T) {
		reg := newTestRegistry(t, nil)
		reg.RegisterHandler(&fakeHandler{
			format:    "multi",
			canImport: func(string) bool { return true },
			parse: func(string, ParseOptions) (*ParseResult, error) {
				return &ParseResult{Collections: []schemas.Collection{
					{ID: "a", Name: "Alpha"},
					{ID: "b", Name: "Beta"},
				}}, nil
			},
		})

		result := reg.Import(ctx, "content", ImportOptions{
			SelectiveImport:       true,
			SelectedCollectionIDs: []string{"Beta"},
		})
		require.True(t, result.Success)
		require.Len(t, result.Collections, 1)
		assert.Equal(t, "b", result.Collections[0].ID)
	})

	t.Run("persistence failure surfaces as PERSISTENCE_ERROR", func(t *testing.T) {
		store := newMemStore()
		store.failOn = "collection"
		reg := newTestRegistry(t, store)
		reg.RegisterHandler(okHandler("x"))

		result := reg.Import(ctx, "content", ImportOptions{})
		require.False(t, result.Success)
		assert.Equal(t, ErrCodePersistence, result.Errors[0].Code)
	})

	t.Run("canceled context surfaces as CANCELED", func(t *testing.T) {
		store := newMemStore()
		reg := newTestRegistry(t, store)
		reg.RegisterHandler(okHandler("x"))

		canceled, cancel := context.WithCancel(ctx)
		cancel()

		result := reg.Import(canceled, "content", ImportOptions{})
		require.False(t, result.Success)
		assert.Equal(t, ErrCodeCanceled, result.Errors[0].Code)
		assert.Empty(t, store.collections)
	})

	t.Run("a panicking parser becomes a PARSE_ERROR, never a crash", func(t *testing.T) {
		reg := newTestRegistry(t, nil)
		reg.RegisterHandler(&fakeHandler{
			format:    "bomb",
			canImport: func(string) bool { return true },
			parse:     func(string, ParseOptions) (*ParseResult, error) { panic("exploded") },
		})

		result := reg.Import(ctx, "content", ImportOptions{})
		require.False(t, result.Success)
		assert.Equal(t, ErrCodeParseError, result.Errors[0].Code)
		assert.Contains(t, result.Errors[0].Message, "exploded")
	})
}

func TestExport(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown format fails with NO_HANDLER", func(t *testing.T) {
		reg := newTestRegistry(t, nil)
		result := reg.Export(ctx, ExportInput{}, "nope", SerializeOptions{})
		require.False(t, result.Success)
		assert.Equal(t, ErrCodeNoHandler, result.Errors[0].Code)
	})

	t.Run("import-only handler reports UNSUPPORTED_OPERATION", func(t *testing.T) {
		reg := newTestRegistry(t, nil)
		reg.RegisterHandler(&fakeHandler{format: "importonly"})
		result := reg.Export(ctx, ExportInput{}, "importonly", SerializeOptions{})
		require.False(t, result.Success)
		assert.Equal(t, ErrCodeUnsupported, result.Errors[0].Code)
	})

	t.Run("successful export returns data", func(t *testing.T) {
		reg := newTestRegistry(t, nil)
		reg.RegisterHandler(&fakeHandler{
			format:    "txt",
			serialize: func(ExportInput, SerializeOptions) (string, error) { return "payload", nil },
		})
		result := reg.Export(ctx, ExportInput{}, "txt", SerializeOptions{})
		require.True(t, result.Success)
		assert.Equal(t, "payload", result.Data)
	})

	t.Run("canceled context never reaches the handler", func(t *testing.T) {
		called := false
		reg := newTestRegistry(t, nil)
		reg.RegisterHandler(&fakeHandler{
			format: "txt",
			serialize: func(ExportInput, SerializeOptions) (string, error) {
				called = true
				return "payload", nil
			},
		})

		canceled, cancel := context.WithCancel(ctx)
		cancel()
		result := reg.Export(canceled, ExportInput{}, "txt", SerializeOptions{})
		require.False(t, result.Success)
		assert.Equal(t, ErrCodeCanceled, result.Errors[0].Code)
		assert.False(t, called)
	})
}

func TestHistory(t *testing.T) {
	t.Run("every import and export lands in the history", func(t *testing.T) {
		reg := newTestRegistry(t, nil)
		reg.RegisterHandler(&fakeHandler{
			format:    "x",
			canImport: func(string) bool { return true },
			serialize: func(ExportInput, SerializeOptions) (string, error) { return "", nil },
		})

		reg.Import(context.Background(), "ok", ImportOptions{Preview: true})
		reg.Import(context.Background(), "ok", ImportOptions{Format: "missing"})
		reg.Export(context.Background(), ExportInput{}, "x", SerializeOptions{})

		entries := reg.History().Entries()
		require.Len(t, entries, 3)
		assert.Equal(t, HistoryImport, entries[0].Direction)
		assert.True(t, entries[0].Success)
		assert.False(t, entries[1].Success)
		assert.NotEmpty(t, entries[1].ErrorSummary)
		assert.Equal(t, HistoryExport, entries[2].Direction)
	})

	t.Run("the ring drops oldest entries past capacity", func(t *testing.T) {
		h := NewHistory(3)
		for i := 0; i < 5; i++ {
			h.Append(HistoryEntry{Format: fmt.Sprintf("f%d", i)})
		}
		entries := h.Entries()
		require.Len(t, entries, 3)
		assert.Equal(t, "f2", entries[0].Format)
		assert.Equal(t, "f4", entries[2].Format)
		assert.Equal(t, 3, h.Len())

		h.Clear()
		assert.Zero(t, h.Len())
	})
}
