package inference

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/apiscribe/apiscribe/api/schemas"
	"github.com/apiscribe/apiscribe/internal/config"
)

// jsonNumber decodes numbers as json.Number so integer and number samples
// stay distinguishable during schema inference.
var jsonNumber = jsoniter.Config{UseNumber: true}.Froze()

// Endpoint is the merged inference output for one deduplicated
// (method, normalizedPath) pair. It is never persisted; the assembler folds
// it into a Specification.
type Endpoint struct {
	Method      string               `json:"method"`
	Path        string               `json:"path"`
	OperationID string               `json:"operationId"`
	Tags        []string             `json:"tags,omitempty"`
	Parameters  []schemas.Parameter  `json:"parameters,omitempty"`
	RequestBody *Observation         `json:"requestBody,omitempty"`
	Responses   map[int]*Observation `json:"responses,omitempty"`
}

// Observation is a schema merged across every sample of one slot (a request
// body, or one status code's response body), with the first sample kept as
// the example.
type Observation struct {
	Schema  *schemas.Schema `json:"schema"`
	Example interface{}     `json:"example,omitempty"`
	Count   int             `json:"count"`
}

// HeaderStat reports a header seen across a large share of requests.
type HeaderStat struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Metadata summarizes one inference pass.
type Metadata struct {
	TotalRequests   int       `json:"totalRequests"`
	UniqueEndpoints int       `json:"uniqueEndpoints"`
	Protocols       []string  `json:"protocols"`
	AnalyzedAt      time.Time `json:"analyzedAt"`
}

// Result is the full output of Engine.Analyze.
type Result struct {
	Endpoints []*Endpoint `json:"endpoints"`
	// Schemas catalogs the merged object schemas by operation, e.g.
	// "getUsersById.response.200". Views over the endpoint observations,
	// not copies.
	Schemas        map[string]*schemas.Schema `json:"schemas,omitempty"`
	Authentication []AuthScheme               `json:"authentication,omitempty"`
	CommonHeaders  []HeaderStat `json:"commonHeaders,omitempty"`
	BasePaths      []string     `json:"basePaths,omitempty"`
	Diagnostics    []Diagnostic `json:"diagnostics,omitempty"`
	Metadata       Metadata     `json:"metadata"`
}

// Engine turns a finite, already-captured batch of traffic into endpoints,
// parameters, and merged type descriptors. Analyze is a pure function over
// its input: the engine holds no mutable state between calls and is safe
// for concurrent use.
type Engine struct {
	log             *zap.Logger
	maxBodyBytes    int
	headerThreshold float64
}

// NewEngine builds an inference engine from configuration.
func NewEngine(cfg config.InferenceConfig, logger *zap.Logger) *Engine {
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 1 << 20
	}
	threshold := cfg.CommonHeaderThreshold
	if threshold <= 0 || threshold > 1 {
		threshold = 0.5
	}
	return &Engine{
		log:             logger.Named("inference"),
		maxBodyBytes:    maxBody,
		headerThreshold: threshold,
	}
}

// analysis is the per-call working state, so Analyze stays reentrant.
type analysis struct {
	endpoints     map[string]*Endpoint
	order         []string
	schemes       map[string]*AuthScheme
	schemeOrder   []string
	headerCounts  map[string]int
	headerNames   map[string]string // lowercase -> first-seen spelling
	authHeaders   map[string]bool
	basePaths     map[string]bool
	basePathOrder []string
	protocols     map[string]bool
	diagnostics   []Diagnostic
	totalRequests int
}

// Analyze processes the capture batch in order. Malformed entries are
// skipped, never fatal: inference is total over well-typed input.
func (e *Engine) Analyze(entries []schemas.CaptureEntry) *Result {
	a := &analysis{
		endpoints:    make(map[string]*Endpoint),
		schemes:      make(map[string]*AuthScheme),
		headerCounts: make(map[string]int),
		headerNames:  make(map[string]string),
		authHeaders:  make(map[string]bool),
		basePaths:    make(map[string]bool),
		protocols:    make(map[string]bool),
	}

	responses := indexResponses(entries)

	for _, entry := range entries {
		if entry.Type != schemas.CaptureRequest {
			continue
		}
		if entry.Method == "" || entry.URL == "" {
			e.log.Debug("Skipping malformed capture entry", zap.String("id", entry.ID))
			continue
		}
		u, err := url.Parse(entry.URL)
		if err != nil {
			e.log.Debug("Skipping entry with unparseable URL",
				zap.String("id", entry.ID), zap.String("url", entry.URL))
			continue
		}
		e.analyzeRequest(a, entry, u, responses[entry.ID])
	}

	return e.buildResult(a)
}

// indexResponses groups response entries by the correlation id linking them
// to their request.
func indexResponses(entries []schemas.CaptureEntry) map[string][]schemas.CaptureEntry {
	byRequest := make(map[string][]schemas.CaptureEntry)
	for _, entry := range entries {
		if entry.Type == schemas.CaptureResponse && entry.RequestID != "" {
			byRequest[entry.RequestID] = append(byRequest[entry.RequestID], entry)
		}
	}
	return byRequest
}

func (e *Engine) analyzeRequest(a *analysis, entry schemas.CaptureEntry, u *url.URL, responses []schemas.CaptureEntry) {
	a.totalRequests++

	method := strings.ToUpper(entry.Method)
	path := NormalizePath(u.Path)
	key := endpointKey(method, path)

	ep, seen := a.endpoints[key]
	if !seen {
		ep = &Endpoint{
			Method:      method,
			Path:        path,
			OperationID: operationID(method, path),
			Tags:        []string{tagFor(path)},
			Responses:   make(map[int]*Observation),
		}
		a.endpoints[key] = ep
		a.order = append(a.order, key)
		e.addPathParams(ep, u.Path)
	}

	// Base path (scheme://host), first-seen order.
	if u.Scheme != "" && u.Host != "" {
		base := u.Scheme + "://" + u.Host
		if !a.basePaths[base] {
			a.basePaths[base] = true
			a.basePathOrder = append(a.basePathOrder, base)
		}
	}

	protocol := entry.Protocol
	if protocol == "" {
		protocol = schemas.ProtocolREST
	}
	a.protocols[string(protocol)] = true

	// Auth headers feed scheme detection and are excluded from parameter
	// and common-header extraction.
	scheme, authHeaders := detectAuth(entry.Headers)
	if scheme != nil {
		e.recordScheme(a, scheme, key)
	}
	for name := range entry.Headers {
		lower := strings.ToLower(name)
		if authHeaders[lower] {
			a.authHeaders[lower] = true
			continue
		}
		a.headerCounts[lower]++
		if _, ok := a.headerNames[lower]; !ok {
			a.headerNames[lower] = name
		}
	}

	e.addQueryParams(ep, u)

	if body := e.decodeBody(entry.Body); body != nil {
		e.mergeObservation(a, &ep.RequestBody, body, key+" request body")
	}

	for _, resp := range responses {
		if resp.Status == 0 {
			continue
		}
		obs := ep.Responses[resp.Status]
		if body := e.decodeBody(resp.Body); body != nil {
			target := obs
			e.mergeObservation(a, &target, body, key+" response "+strconv.Itoa(resp.Status))
			ep.Responses[resp.Status] = target
		} else if obs == nil {
			// Status observed with an empty or non-JSON body.
			ep.Responses[resp.Status] = &Observation{Count: 1}
		} else {
			obs.Count++
		}
	}
}

// addPathParams declares one {id} path parameter when normalization
// collapsed identifier segments. The inferred type comes from the raw
// segment that was collapsed.
func (e *Engine) addPathParams(ep *Endpoint, rawPath string) {
	if !strings.Contains(ep.Path, "{id}") {
		return
	}
	paramType := schemas.TypeString
	for _, seg := range strings.Split(rawPath, "/") {
		if numericSegment.MatchString(seg) {
			paramType = schemas.TypeInteger
			break
		}
		if isUUID(seg) {
			break
		}
	}
	schema := &schemas.Schema{Type: paramType}
	if paramType == schemas.TypeString {
		schema.Format = schemas.FormatUUID
	}
	ep.Parameters = append(ep.Parameters, schemas.Parameter{
		Name:     "id",
		In:       "path",
		Required: true,
		Schema:   schema,
	})
}

// addQueryParams records query-string keys as query parameters. Required
// stays false: absence across samples cannot prove a parameter required.
func (e *Engine) addQueryParams(ep *Endpoint, u *url.URL) {
	query := u.Query()
	if len(query) == 0 {
		return
	}
	names := make([]string, 0, len(query))
	for name := range query {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		values := query[name]
		value := ""
		if len(values) > 0 {
			value = values[0]
		}
		if existing := findParam(ep.Parameters, name, "query"); existing != nil {
			// Conflicting value types across samples widen to string.
			if existing.Schema != nil && existing.Schema.Type != InferValueType(value) {
				existing.Schema.Type = schemas.TypeString
			}
			continue
		}
		ep.Parameters = append(ep.Parameters, schemas.Parameter{
			Name:   name,
			In:     "query",
			Schema: &schemas.Schema{Type: InferValueType(value)},
		})
	}
}

func findParam(params []schemas.Parameter, name, in string) *schemas.Parameter {
	for i := range params {
		if params[i].Name == name && params[i].In == in {
			return &params[i]
		}
	}
	return nil
}

func (e *Engine) recordScheme(a *analysis, scheme *AuthScheme, endpointKey string) {
	key := scheme.key()
	existing, ok := a.schemes[key]
	if !ok {
		scheme.Endpoints = []string{endpointKey}
		a.schemes[key] = scheme
		a.schemeOrder = append(a.schemeOrder, key)
		return
	}
	for _, epKey := range existing.Endpoints {
		if epKey == endpointKey {
			return
		}
	}
	existing.Endpoints = append(existing.Endpoints, endpointKey)
	if existing.BearerFormat == "" {
		existing.BearerFormat = scheme.BearerFormat
	}
}

// decodeBody parses a captured body as JSON, returning nil for empty,
// oversized, or non-JSON payloads. Skipped bodies are not an error;
// inference simply has nothing to learn from them.
func (e *Engine) decodeBody(body string) interface{} {
	trimmed := strings.TrimSpace(body)
	if trimmed == "" || len(trimmed) > e.maxBodyBytes {
		return nil
	}
	if trimmed[0] != '{' && trimmed[0] != '[' {
		return nil
	}
	var decoded interface{}
	if err := jsonNumber.UnmarshalFromString(trimmed, &decoded); err != nil {
		return nil
	}
	return decoded
}

func (e *Engine) mergeObservation(a *analysis, slot **Observation, sample interface{}, context string) {
	inferred := InferSchema(sample)
	if *slot == nil {
		*slot = &Observation{Schema: inferred, Example: sample, Count: 1}
		return
	}
	merged, diags := MergeSchemas((*slot).Schema, inferred)
	(*slot).Schema = merged
	(*slot).Count++
	for _, d := range diags {
		e.log.Warn("Schema merge conflict",
			zap.String("context", context),
			zap.String("field", d.Field),
			zap.String("detail", d.Message))
	}
	a.diagnostics = append(a.diagnostics, diags...)
}

// catalogSchemas names every merged body schema so callers can look them up
// without walking the endpoint list.
func catalogSchemas(endpoints []*Endpoint) map[string]*schemas.Schema {
	catalog := make(map[string]*schemas.Schema)
	for _, ep := range endpoints {
		if ep.RequestBody != nil && ep.RequestBody.Schema != nil {
			catalog[ep.OperationID+".request"] = ep.RequestBody.Schema
		}
		for code, obs := range ep.Responses {
			if obs.Schema != nil {
				catalog[fmt.Sprintf("%s.response.%d", ep.OperationID, code)] = obs.Schema
			}
		}
	}
	if len(catalog) == 0 {
		return nil
	}
	return catalog
}

func (e *Engine) buildResult(a *analysis) *Result {
	result := &Result{
		Endpoints:   make([]*Endpoint, 0, len(a.order)),
		BasePaths:   a.basePathOrder,
		Diagnostics: a.diagnostics,
		Metadata: Metadata{
			TotalRequests:   a.totalRequests,
			UniqueEndpoints: len(a.order),
			AnalyzedAt:      time.Now().UTC(),
		},
	}
	for _, key := range a.order {
		result.Endpoints = append(result.Endpoints, a.endpoints[key])
	}
	result.Schemas = catalogSchemas(result.Endpoints)
	for _, key := range a.schemeOrder {
		result.Authentication = append(result.Authentication, *a.schemes[key])
	}

	minCount := int(float64(a.totalRequests)*e.headerThreshold + 0.5)
	if minCount < 1 {
		minCount = 1
	}
	var names []string
	for lower, count := range a.headerCounts {
		if count >= minCount {
			names = append(names, lower)
		}
	}
	sort.Strings(names)
	for _, lower := range names {
		result.CommonHeaders = append(result.CommonHeaders, HeaderStat{
			Name:  a.headerNames[lower],
			Count: a.headerCounts[lower],
		})
	}

	for p := range a.protocols {
		result.Metadata.Protocols = append(result.Metadata.Protocols, p)
	}
	sort.Strings(result.Metadata.Protocols)

	e.log.Info("Traffic analysis complete",
		zap.Int("requests", a.totalRequests),
		zap.Int("endpoints", len(result.Endpoints)),
		zap.Int("authSchemes", len(result.Authentication)))
	return result
}

