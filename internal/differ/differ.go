// Package differ compares two specification versions and emits a
// classified, breaking-change-aware change list. Diffing is synchronous and
// pure: it never performs I/O and never fails for well-formed input.
package differ

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/apiscribe/apiscribe/api/schemas"
)

// ResponseRemovalPolicy decides whether removing a documented status code
// breaks existing clients. Kept injectable so the product decision (only
// 2xx removals break) stays pinned by tests instead of hardcoded.
type ResponseRemovalPolicy func(status string) bool

// DefaultResponseRemovalPolicy flags only documented success codes:
// removing a 2xx response breaks clients that parse it.
func DefaultResponseRemovalPolicy(status string) bool {
	return strings.HasPrefix(status, "2")
}

// Differ computes changelogs between specification versions.
type Differ struct {
	log                       *zap.Logger
	isBreakingResponseRemoval ResponseRemovalPolicy
}

// Option configures a Differ.
type Option func(*Differ)

// WithResponseRemovalPolicy overrides the breaking rule for removed
// response codes.
func WithResponseRemovalPolicy(policy ResponseRemovalPolicy) Option {
	return func(d *Differ) {
		d.isBreakingResponseRemoval = policy
	}
}

// New creates a Differ with the default response-removal policy.
func New(logger *zap.Logger, opts ...Option) *Differ {
	d := &Differ{
		log:                       logger.Named("differ"),
		isBreakingResponseRemoval: DefaultResponseRemovalPolicy,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Diff compares two specifications and returns the classified change list.
// Diffing a specification against itself yields zero changes.
func (d *Differ) Diff(oldSpec, newSpec *schemas.Specification) *schemas.Changelog {
	changelog := &schemas.Changelog{
		Version: newSpec.Info.Version,
		Date:    time.Now().UTC(),
		Changes: []schemas.Change{},
	}

	d.diffPaths(changelog, oldSpec, newSpec)
	d.diffSchemas(changelog, oldSpec, newSpec)
	d.diffSecuritySchemes(changelog, oldSpec, newSpec)

	d.log.Debug("Specification diff complete",
		zap.String("version", changelog.Version),
		zap.Int("changes", len(changelog.Changes)))
	return changelog
}

func (d *Differ) diffPaths(cl *schemas.Changelog, oldSpec, newSpec *schemas.Specification) {
	// New paths first, in the new specification's order.
	for _, path := range newSpec.Paths.Keys() {
		if oldSpec.Paths.Get(path) == nil {
			for _, op := range newSpec.Paths.Get(path).Operations() {
				cl.Changes = append(cl.Changes, schemas.Change{
					Type:        schemas.ChangeAdded,
					Category:    schemas.CategoryEndpoint,
					Path:        path,
					Method:      op.Method,
					Description: fmt.Sprintf("Added endpoint %s %s", strings.ToUpper(op.Method), path),
				})
			}
		}
	}

	// Removed paths: every operation a client could previously call is gone.
	for _, path := range oldSpec.Paths.Keys() {
		if newSpec.Paths.Get(path) == nil {
			for _, op := range oldSpec.Paths.Get(path).Operations() {
				cl.Changes = append(cl.Changes, schemas.Change{
					Type:        schemas.ChangeRemoved,
					Category:    schemas.CategoryEndpoint,
					Path:        path,
					Method:      op.Method,
					Description: fmt.Sprintf("Removed endpoint %s %s", strings.ToUpper(op.Method), path),
					Breaking:    true,
				})
			}
		}
	}

	// Shared paths: method-level granularity, then per-operation detail.
	for _, path := range newSpec.Paths.Keys() {
		oldItem := oldSpec.Paths.Get(path)
		newItem := newSpec.Paths.Get(path)
		if oldItem == nil {
			continue
		}
		for _, op := range newItem.Operations() {
			oldOp := oldItem.Operation(op.Method)
			if oldOp == nil {
				cl.Changes = append(cl.Changes, schemas.Change{
					Type:        schemas.ChangeAdded,
					Category:    schemas.CategoryEndpoint,
					Path:        path,
					Method:      op.Method,
					Description: fmt.Sprintf("Added method %s on %s", strings.ToUpper(op.Method), path),
				})
				continue
			}
			d.diffOperation(cl, path, op.Method, oldOp, op.Endpoint)
		}
		for _, op := range oldItem.Operations() {
			if newItem.Operation(op.Method) == nil {
				cl.Changes = append(cl.Changes, schemas.Change{
					Type:        schemas.ChangeRemoved,
					Category:    schemas.CategoryEndpoint,
					Path:        path,
					Method:      op.Method,
					Description: fmt.Sprintf("Removed method %s on %s", strings.ToUpper(op.Method), path),
					Breaking:    true,
				})
			}
		}
	}
}

func (d *Differ) diffOperation(cl *schemas.Changelog, path, method string, oldOp, newOp *schemas.Endpoint) {
	d.diffParameters(cl, path, method, oldOp, newOp)
	d.diffResponses(cl, path, method, oldOp, newOp)
}

func (d *Differ) diffParameters(cl *schemas.Changelog, path, method string, oldOp, newOp *schemas.Endpoint) {
	oldParams := indexParams(oldOp.Parameters)
	for _, p := range newOp.Parameters {
		oldParam, existed := oldParams[paramKey(p)]
		if !existed {
			cl.Changes = append(cl.Changes, schemas.Change{
				Type:        schemas.ChangeAdded,
				Category:    schemas.CategoryParameter,
				Path:        path,
				Method:      method,
				Description: fmt.Sprintf("Added %s parameter %q to %s %s", p.In, p.Name, strings.ToUpper(method), path),
				// A new required parameter rejects every existing call.
				Breaking: p.Required,
			})
			continue
		}
		if oldParam.Required != p.Required {
			change := schemas.Change{
				Type:     schemas.ChangeChanged,
				Category: schemas.CategoryParameter,
				Path:     path,
				Method:   method,
			}
			if p.Required {
				change.Description = fmt.Sprintf("Parameter %q on %s %s is now required", p.Name, strings.ToUpper(method), path)
				change.Breaking = true
			} else {
				change.Description = fmt.Sprintf("Parameter %q on %s %s is no longer required", p.Name, strings.ToUpper(method), path)
			}
			cl.Changes = append(cl.Changes, change)
		}
	}
}

func (d *Differ) diffResponses(cl *schemas.Changelog, path, method string, oldOp, newOp *schemas.Endpoint) {
	for _, status := range sortedKeys(newOp.Responses) {
		if _, existed := oldOp.Responses[status]; !existed {
			cl.Changes = append(cl.Changes, schemas.Change{
				Type:        schemas.ChangeAdded,
				Category:    schemas.CategoryResponse,
				Path:        path,
				Method:      method,
				Description: fmt.Sprintf("Added %s response to %s %s", status, strings.ToUpper(method), path),
			})
		}
	}
	for _, status := range sortedKeys(oldOp.Responses) {
		if _, exists := newOp.Responses[status]; !exists {
			cl.Changes = append(cl.Changes, schemas.Change{
				Type:        schemas.ChangeRemoved,
				Category:    schemas.CategoryResponse,
				Path:        path,
				Method:      method,
				Description: fmt.Sprintf("Removed %s response from %s %s", status, strings.ToUpper(method), path),
				Breaking:    d.isBreakingResponseRemoval(status),
			})
		}
	}
}

func (d *Differ) diffSchemas(cl *schemas.Changelog, oldSpec, newSpec *schemas.Specification) {
	oldSchemas := componentSchemas(oldSpec)
	newSchemas := componentSchemas(newSpec)
	for _, name := range sortedKeys(oldSchemas) {
		if _, exists := newSchemas[name]; !exists {
			cl.Changes = append(cl.Changes, schemas.Change{
				Type:        schemas.ChangeRemoved,
				Category:    schemas.CategorySchema,
				Description: fmt.Sprintf("Removed schema %q from components", name),
				Breaking:    true,
			})
		}
	}
}

func (d *Differ) diffSecuritySchemes(cl *schemas.Changelog, oldSpec, newSpec *schemas.Specification) {
	oldSchemes := securitySchemes(oldSpec)
	newSchemes := securitySchemes(newSpec)
	for _, name := range sortedKeys(newSchemes) {
		if _, existed := oldSchemes[name]; !existed {
			// Adding an auth option does not break existing clients.
			cl.Changes = append(cl.Changes, schemas.Change{
				Type:        schemas.ChangeAdded,
				Category:    schemas.CategoryAuth,
				Description: fmt.Sprintf("Added security scheme %q", name),
			})
		}
	}
	for _, name := range sortedKeys(oldSchemes) {
		if _, exists := newSchemes[name]; !exists {
			cl.Changes = append(cl.Changes, schemas.Change{
				Type:        schemas.ChangeRemoved,
				Category:    schemas.CategoryAuth,
				Description: fmt.Sprintf("Removed security scheme %q", name),
				Breaking:    true,
			})
		}
	}
}

// GetBreakingChanges is a pure filter over a changelog.
func GetBreakingChanges(cl *schemas.Changelog) []schemas.Change {
	var out []schemas.Change
	for _, c := range cl.Changes {
		if c.Breaking {
			out = append(out, c)
		}
	}
	return out
}

func indexParams(params []schemas.Parameter) map[string]schemas.Parameter {
	out := make(map[string]schemas.Parameter, len(params))
	for _, p := range params {
		out[paramKey(p)] = p
	}
	return out
}

func paramKey(p schemas.Parameter) string {
	return p.In + "/" + p.Name
}

func componentSchemas(spec *schemas.Specification) map[string]*schemas.Schema {
	if spec.Components == nil {
		return nil
	}
	return spec.Components.Schemas
}

func securitySchemes(spec *schemas.Specification) map[string]*schemas.SecurityScheme {
	if spec.Components == nil {
		return nil
	}
	return spec.Components.SecuritySchemes
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sortStrings(keys)
	return keys
}
