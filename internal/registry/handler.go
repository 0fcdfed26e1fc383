package registry

import (
	"context"

	"github.com/apiscribe/apiscribe/api/schemas"
)

// Handler is the closed contract every format handler implements. New
// formats are added by registering a new implementer, never by branching
// inside the registry.
type Handler interface {
	// Format returns the stable identifier this handler is keyed by
	// (e.g. "postman", "openapi", "curl").
	Format() string

	// CanImport is a cheap structural sniff, not a full parse. It must be
	// fast and must never panic on arbitrary input.
	CanImport(content string) bool

	// CanExport reports whether Serialize is implemented. Import-only
	// handlers return false.
	CanExport() bool

	// Validate performs handler-specific structural checks and reports all
	// violations, not just the first.
	Validate(content string) ValidationResult

	// Parse converts foreign content into the canonical model.
	Parse(content string, opts ParseOptions) (*ParseResult, error)

	// Serialize renders the canonical model in this handler's format.
	// Import-only handlers return an Error with ErrCodeUnsupported.
	Serialize(input ExportInput, opts SerializeOptions) (string, error)
}

// ParseOptions carries per-import knobs a handler may honor.
type ParseOptions struct {
	// CollectionName overrides the collection name derived from content.
	CollectionName string
}

// SerializeOptions carries per-export knobs a handler may honor.
type SerializeOptions struct {
	// Pretty enables indented output for formats that support it.
	Pretty bool
	// AsYAML selects the YAML rendering for formats that offer one.
	AsYAML bool
}

// ParseResult is the canonical-model output of a successful parse.
type ParseResult struct {
	Collections  []schemas.Collection
	Requests     []schemas.Request
	Environments []schemas.Environment
}

// ExportInput names what is being serialized: one or more collections,
// or a single request.
type ExportInput struct {
	Collections []schemas.Collection
	Request     *schemas.Request
}

// ValidationResult reports the outcome of Validate.
type ValidationResult struct {
	Valid  bool    `json:"valid"`
	Format string  `json:"format,omitempty"`
	Errors []Error `json:"errors,omitempty"`
}

// ImportOptions controls one registry Import call.
type ImportOptions struct {
	// Format pins the handler; empty means auto-detect.
	Format string
	// Preview parses without persisting.
	Preview bool
	// SelectiveImport keeps only collections named in SelectedCollectionIDs.
	SelectiveImport       bool
	SelectedCollectionIDs []string
}

// ImportResult is the discriminated-success outcome of Import. Success is
// authoritative; callers never need to recover from a panic or a raw error
// for an expected failure mode.
type ImportResult struct {
	Success      bool                  `json:"success"`
	Format       string                `json:"format,omitempty"`
	Collections  []schemas.Collection  `json:"collections,omitempty"`
	Requests     []schemas.Request     `json:"requests,omitempty"`
	Environments []schemas.Environment `json:"environments,omitempty"`
	Errors       []Error               `json:"errors,omitempty"`
}

// ExportResult is the discriminated-success outcome of Export.
type ExportResult struct {
	Success bool    `json:"success"`
	Format  string  `json:"format,omitempty"`
	Data    string  `json:"data,omitempty"`
	Errors  []Error `json:"errors,omitempty"`
}

// Store is the persistence collaborator consumed after a successful,
// non-preview import. Implemented by internal/store.
type Store interface {
	CreateCollection(ctx context.Context, col *schemas.Collection) error
	CreateRequest(ctx context.Context, collectionID string, req *schemas.Request) error
	CreateEnvironment(ctx context.Context, env *schemas.Environment) error
	SetVariable(ctx context.Context, environment, key, value string) error
}
