package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/apiscribe/apiscribe/api/schemas"
)

// Registry is the pluggable dispatch point for all format handlers. It owns
// the only mutable state in the interchange core: the handler map and the
// bounded import/export history. Both are guarded by one mutex so the
// registry is safe to use from concurrent callers.
type Registry struct {
	mu       sync.Mutex
	handlers map[string]Handler
	order    []string // registration order, drives detection
	history  *History
	store    Store
	log      *zap.Logger
}

// New creates a registry. store may be nil, in which case imports behave as
// preview-only. historySize bounds the attempt ring buffer.
func New(logger *zap.Logger, store Store, historySize int) *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
		history:  NewHistory(historySize),
		store:    store,
		log:      logger.Named("registry"),
	}
}

// RegisterHandler adds or replaces the handler for its format id. The last
// registration for a format wins; there is no merging. A replaced handler
// keeps detection priority at the end of the order.
func (r *Registry) RegisterHandler(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	format := h.Format()
	if _, exists := r.handlers[format]; exists {
		r.removeFromOrder(format)
		r.log.Debug("Replacing format handler", zap.String("format", format))
	}
	r.handlers[format] = h
	r.order = append(r.order, format)
}

// UnregisterHandler removes the handler for the given format id, if any.
func (r *Registry) UnregisterHandler(format string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[format]; !exists {
		return
	}
	delete(r.handlers, format)
	r.removeFromOrder(format)
}

func (r *Registry) removeFromOrder(format string) {
	for i, f := range r.order {
		if f == format {
			r.order = append(r.order[:i], r.order[i+1:]...)
			return
		}
	}
}

// Formats returns the registered format ids in detection order.
func (r *Registry) Formats() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order...)
}

// CanExport reports whether the named format's handler serializes. The
// answer comes from the handler itself, so capability never drifts from
// what Serialize actually does.
func (r *Registry) CanExport(format string) bool {
	h, ok := r.handler(format)
	return ok && h.CanExport()
}

// History exposes the registry's bounded attempt log.
func (r *Registry) History() *History {
	return r.history
}

// snapshot returns the handlers in detection order without holding the lock
// during handler calls. Handler sniffs can be arbitrarily slow; they must
// not serialize registration.
func (r *Registry) snapshot() []Handler {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Handler, 0, len(r.order))
	for _, f := range r.order {
		out = append(out, r.handlers[f])
	}
	return out
}

func (r *Registry) handler(format string) (Handler, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.handlers[format]
	return h, ok
}

// DetectFormat iterates registered handlers' CanImport in registration order
// and returns the first match. It returns the empty string when nothing
// matches; it never panics, even when a handler's sniff does.
func (r *Registry) DetectFormat(content string) string {
	for _, h := range r.snapshot() {
		if safeCanImport(h, content) {
			return h.Format()
		}
	}
	return ""
}

func safeCanImport(h Handler, content string) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	return h.CanImport(content)
}

// Validate checks content against a specific format, or auto-detects when
// format is empty. Detection failure yields a single NO_HANDLER error.
func (r *Registry) Validate(content, format string) ValidationResult {
	if format == "" {
		format = r.DetectFormat(content)
		if format == "" {
			return ValidationResult{
				Valid:  false,
				Errors: []Error{{Code: ErrCodeNoHandler, Message: "no registered handler recognizes this content"}},
			}
		}
	}
	h, ok := r.handler(format)
	if !ok {
		return ValidationResult{
			Valid:  false,
			Errors: []Error{{Code: ErrCodeNoHandler, Message: fmt.Sprintf("no handler registered for format %q", format)}},
		}
	}
	result := safeValidate(h, content)
	result.Format = format
	return result
}

func safeValidate(h Handler, content string) (result ValidationResult) {
	defer func() {
		if rec := recover(); rec != nil {
			result = ValidationResult{
				Valid:  false,
				Errors: []Error{{Code: ErrCodeValidationError, Message: fmt.Sprintf("handler panic: %v", rec)}},
			}
		}
	}()
	return h.Validate(content)
}

// Import parses content into the canonical model and, unless opts.Preview is
// set, hands the result to the persistence collaborator. Every call appends
// to the history, success or not. Expected failures surface as structured
// errors in the result; Import never panics and never returns a partial
// persist: a canceled context stops before anything is committed.
func (r *Registry) Import(ctx context.Context, content string, opts ImportOptions) ImportResult {
	result := r.runImport(ctx, content, opts)
	r.record(HistoryImport, result.Format, result.Success, result.Errors)
	return result
}

func (r *Registry) runImport(ctx context.Context, content string, opts ImportOptions) ImportResult {
	format := opts.Format
	if format == "" {
		format = r.DetectFormat(content)
		if format == "" {
			return ImportResult{
				Success: false,
				Errors:  []Error{{Code: ErrCodeNoHandler, Message: "format could not be detected"}},
			}
		}
	}
	h, ok := r.handler(format)
	if !ok {
		return ImportResult{
			Success: false,
			Errors:  []Error{{Code: ErrCodeNoHandler, Message: fmt.Sprintf("no handler registered for format %q", format)}},
		}
	}

	parsed, err := safeParse(h, content, ParseOptions{})
	if err != nil {
		r.log.Debug("Handler parse failed", zap.String("format", format), zap.Error(err))
		return ImportResult{
			Success: false,
			Format:  format,
			Errors:  []Error{{Code: ErrCodeParseError, Message: err.Error()}},
		}
	}

	collections := parsed.Collections
	if opts.SelectiveImport {
		collections = filterCollections(collections, opts.SelectedCollectionIDs)
	}

	if !opts.Preview && r.store != nil {
		if err := r.persist(ctx, collections, parsed.Environments); err != nil {
			code := ErrCodePersistence
			if ctx.Err() != nil {
				code = ErrCodeCanceled
			}
			return ImportResult{
				Success: false,
				Format:  format,
				Errors:  []Error{{Code: code, Message: err.Error()}},
			}
		}
	}

	return ImportResult{
		Success:      true,
		Format:       format,
		Collections:  collections,
		Requests:     parsed.Requests,
		Environments: parsed.Environments,
	}
}

// safeParse invokes the handler's Parse, converting panics into errors so a
// misbehaving handler cannot take down the import boundary.
func safeParse(h Handler, content string, opts ParseOptions) (result *ParseResult, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			result = nil
			err = fmt.Errorf("handler panic: %v", rec)
		}
	}()
	result, err = h.Parse(content, opts)
	if err == nil && result == nil {
		err = fmt.Errorf("handler returned no result")
	}
	return result, err
}

// persist writes parsed results through the store collaborator. The context
// is checked before each collection so cancellation cannot commit a partial
// import beyond the entity boundary already written.
func (r *Registry) persist(ctx context.Context, collections []schemas.Collection, envs []schemas.Environment) error {
	for i := range collections {
		if err := ctx.Err(); err != nil {
			return err
		}
		col := &collections[i]
		// CreateCollection persists the collection together with every
		// request it holds. Writing requests again here would collide
		// with the rows the collection insert already created.
		if err := r.store.CreateCollection(ctx, col); err != nil {
			return fmt.Errorf("create collection %q: %w", col.Name, err)
		}
	}
	for i := range envs {
		if err := ctx.Err(); err != nil {
			return err
		}
		env := &envs[i]
		if err := r.store.CreateEnvironment(ctx, env); err != nil {
			return fmt.Errorf("create environment %q: %w", env.Name, err)
		}
		for k, v := range env.Variables {
			if err := r.store.SetVariable(ctx, env.Name, k, v); err != nil {
				return fmt.Errorf("set variable %q: %w", k, err)
			}
		}
	}
	return nil
}

func filterCollections(collections []schemas.Collection, ids []string) []schemas.Collection {
	if len(ids) == 0 {
		return nil
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []schemas.Collection
	for _, c := range collections {
		if want[c.ID] || want[c.Name] {
			out = append(out, c)
		}
	}
	return out
}

// Export serializes the given input in the requested format. Symmetric with
// Import: structured errors, history tracking, no panics across the boundary.
func (r *Registry) Export(ctx context.Context, input ExportInput, format string, opts SerializeOptions) ExportResult {
	result := r.runExport(ctx, input, format, opts)
	r.record(HistoryExport, format, result.Success, result.Errors)
	return result
}

func (r *Registry) runExport(ctx context.Context, input ExportInput, format string, opts SerializeOptions) ExportResult {
	if err := ctx.Err(); err != nil {
		return ExportResult{
			Success: false,
			Format:  format,
			Errors:  []Error{{Code: ErrCodeCanceled, Message: err.Error()}},
		}
	}
	h, ok := r.handler(format)
	if !ok {
		return ExportResult{
			Success: false,
			Format:  format,
			Errors:  []Error{{Code: ErrCodeNoHandler, Message: fmt.Sprintf("no handler registered for format %q", format)}},
		}
	}
	data, err := safeSerialize(h, input, opts)
	if err != nil {
		code := ErrCodeParseError
		if regErr, ok := err.(Error); ok {
			code = regErr.Code
		}
		return ExportResult{
			Success: false,
			Format:  format,
			Errors:  []Error{{Code: code, Message: err.Error()}},
		}
	}
	return ExportResult{Success: true, Format: format, Data: data}
}

func safeSerialize(h Handler, input ExportInput, opts SerializeOptions) (data string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			data = ""
			err = fmt.Errorf("handler panic: %v", rec)
		}
	}()
	return h.Serialize(input, opts)
}

func (r *Registry) record(dir HistoryDirection, format string, success bool, errs []Error) {
	entry := HistoryEntry{
		Direction: dir,
		Format:    format,
		Timestamp: time.Now(),
		Success:   success,
	}
	if len(errs) > 0 {
		entry.ErrorSummary = errs[0].Message
	}
	r.history.Append(entry)
}
