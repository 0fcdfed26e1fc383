// Package assembler folds an inference result (or a canonical collection)
// into a single normalized, OpenAPI-shaped specification. Assembly is a
// pure, deterministic function: the same input and options always produce a
// structurally identical specification, with paths in first-seen order.
// That determinism is what makes diffing and snapshot testing stable.
package assembler

import (
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/apiscribe/apiscribe/api/schemas"
	"github.com/apiscribe/apiscribe/internal/inference"
)

// Options enumerates every knob assembly honors. There are no hidden
// defaults beyond the zero-value fallbacks documented per field.
type Options struct {
	Title       string           // defaults to "Inferred API"
	Version     string           // defaults to "1.0.0"
	Description string
	Servers     []schemas.Server // overrides servers derived from base paths
	// IncludeExamples embeds the first observed sample as each media type's
	// example.
	IncludeExamples bool
	// IncludeAuth emits components.securitySchemes plus the global security
	// requirement.
	IncludeAuth bool
	// GroupByTags derives the top-level tags array from endpoint tags.
	GroupByTags bool
}

func (o Options) withDefaults() Options {
	if o.Title == "" {
		o.Title = "Inferred API"
	}
	if o.Version == "" {
		o.Version = "1.0.0"
	}
	return o
}

// Assemble builds a specification from an inference result.
func Assemble(result *inference.Result, opts Options) *schemas.Specification {
	opts = opts.withDefaults()
	spec := newSpec(opts)

	if len(opts.Servers) > 0 {
		spec.Servers = opts.Servers
	} else {
		for _, base := range result.BasePaths {
			spec.Servers = append(spec.Servers, schemas.Server{URL: base})
		}
	}

	schemeNames := map[string]string{}
	if opts.IncludeAuth {
		schemeNames = attachSecurity(spec, result.Authentication)
	}

	tagSet := make(map[string]bool)
	for _, ep := range result.Endpoints {
		endpoint := buildEndpoint(ep, opts)
		if opts.IncludeAuth {
			attachEndpointSecurity(endpoint, ep, result.Authentication, schemeNames)
		}
		for _, t := range ep.Tags {
			tagSet[t] = true
		}
		item := spec.Paths.Get(ep.Path)
		if item == nil {
			item = &schemas.PathItem{}
			spec.Paths.Set(ep.Path, item)
		}
		item.SetOperation(strings.ToLower(ep.Method), endpoint)
	}

	if opts.GroupByTags {
		spec.Tags = sortedTags(tagSet)
	}
	return spec
}

// AssembleFromCollection builds a specification from an imported canonical
// collection. Requests map one-to-one onto operations; there is no
// observation merging because a collection declares rather than observes.
func AssembleFromCollection(col *schemas.Collection, opts Options) *schemas.Specification {
	opts = opts.withDefaults()
	if opts.Title == "Inferred API" && col.Name != "" {
		opts.Title = col.Name
	}
	if opts.Description == "" {
		opts.Description = col.Description
	}
	spec := newSpec(opts)
	spec.Servers = opts.Servers

	tagSet := make(map[string]bool)
	col.WalkRequests(func(req *schemas.Request) {
		u, err := url.Parse(req.URL)
		if err != nil {
			return
		}
		path := u.Path
		if path == "" {
			path = "/"
		}
		endpoint := &schemas.Endpoint{
			OperationID: req.ID,
			Summary:     req.Name,
			Responses:   map[string]*schemas.Response{"200": {Description: "Successful response"}},
		}
		for _, p := range req.PathParams {
			p.In = "path"
			p.Required = true
			endpoint.Parameters = append(endpoint.Parameters, p)
		}
		for _, p := range req.QueryParams {
			p.In = "query"
			endpoint.Parameters = append(endpoint.Parameters, p)
		}
		if req.Body != nil && req.Body.Type != schemas.BodyNone {
			endpoint.RequestBody = &schemas.RequestBody{
				Content: map[string]*schemas.MediaType{
					mediaTypeFor(req.Body.Type): {},
				},
			}
		}
		if tag := firstSegment(path); tag != "" {
			endpoint.Tags = []string{tag}
			tagSet[tag] = true
		}
		item := spec.Paths.Get(path)
		if item == nil {
			item = &schemas.PathItem{}
			spec.Paths.Set(path, item)
		}
		item.SetOperation(strings.ToLower(req.Method), endpoint)
	})

	if opts.GroupByTags {
		spec.Tags = sortedTags(tagSet)
	}
	return spec
}

func newSpec(opts Options) *schemas.Specification {
	return &schemas.Specification{
		OpenAPI: "3.0.3",
		Info: schemas.Info{
			Title:       opts.Title,
			Version:     opts.Version,
			Description: opts.Description,
		},
		Paths: schemas.NewPathMap(),
	}
}

func buildEndpoint(ep *inference.Endpoint, opts Options) *schemas.Endpoint {
	out := &schemas.Endpoint{
		OperationID: ep.OperationID,
		Summary:     fmt.Sprintf("%s %s", ep.Method, ep.Path),
		Tags:        ep.Tags,
		Parameters:  ep.Parameters,
		Responses:   make(map[string]*schemas.Response, len(ep.Responses)),
	}

	if ep.RequestBody != nil && ep.RequestBody.Schema != nil {
		media := &schemas.MediaType{Schema: ep.RequestBody.Schema.Clone()}
		if opts.IncludeExamples {
			media.Example = ep.RequestBody.Example
		}
		out.RequestBody = &schemas.RequestBody{
			Content: map[string]*schemas.MediaType{"application/json": media},
		}
	}

	// Status codes render sorted so the output is deterministic.
	codes := make([]int, 0, len(ep.Responses))
	for code := range ep.Responses {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	for _, code := range codes {
		obs := ep.Responses[code]
		resp := &schemas.Response{Description: statusDescription(code)}
		if obs.Schema != nil {
			media := &schemas.MediaType{Schema: obs.Schema.Clone()}
			if opts.IncludeExamples {
				media.Example = obs.Example
			}
			resp.Content = map[string]*schemas.MediaType{"application/json": media}
		}
		out.Responses[strconv.Itoa(code)] = resp
	}
	if len(out.Responses) == 0 {
		out.Responses["200"] = &schemas.Response{Description: "Successful response"}
	}
	return out
}

// attachSecurity registers one named security scheme per detected auth
// mechanism and installs the global security requirement. Returns the
// scheme-key -> component-name mapping for per-endpoint wiring.
func attachSecurity(spec *schemas.Specification, auth []inference.AuthScheme) map[string]string {
	if len(auth) == 0 {
		return nil
	}
	spec.Components = &schemas.Components{
		SecuritySchemes: make(map[string]*schemas.SecurityScheme, len(auth)),
	}
	names := make(map[string]string, len(auth))
	for _, scheme := range auth {
		name, component := securityComponent(scheme)
		// Two API-key headers share the base name; the second one gets the
		// header folded into the component name so neither is overwritten.
		if _, taken := spec.Components.SecuritySchemes[name]; taken {
			name += headerSuffix(scheme.HeaderName)
		}
		spec.Components.SecuritySchemes[name] = component
		names[schemeKey(scheme)] = name
		spec.Security = append(spec.Security, schemas.SecurityRequirement{name: {}})
	}
	return names
}

// headerSuffix collapses a header name into an identifier fragment, so
// "X-Client-Token" becomes "XClientToken".
func headerSuffix(header string) string {
	var b strings.Builder
	startWord := true
	for _, r := range header {
		switch {
		case r >= 'a' && r <= 'z':
			if startWord {
				r -= 'a' - 'A'
			}
			b.WriteRune(r)
			startWord = false
		case (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			startWord = false
		default:
			startWord = true
		}
	}
	return b.String()
}

func attachEndpointSecurity(endpoint *schemas.Endpoint, ep *inference.Endpoint, auth []inference.AuthScheme, names map[string]string) {
	key := ep.Method + " " + ep.Path
	for _, scheme := range auth {
		for _, seen := range scheme.Endpoints {
			if seen == key {
				name := names[schemeKey(scheme)]
				endpoint.Security = append(endpoint.Security, schemas.SecurityRequirement{name: {}})
			}
		}
	}
}

func securityComponent(scheme inference.AuthScheme) (string, *schemas.SecurityScheme) {
	switch scheme.Type {
	case schemas.AuthBearer:
		return "bearerAuth", &schemas.SecurityScheme{
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: scheme.BearerFormat,
		}
	case schemas.AuthBasic:
		return "basicAuth", &schemas.SecurityScheme{Type: "http", Scheme: "basic"}
	default:
		return "apiKeyAuth", &schemas.SecurityScheme{
			Type: "apiKey",
			In:   "header",
			Name: scheme.HeaderName,
		}
	}
}

func schemeKey(scheme inference.AuthScheme) string {
	return string(scheme.Type) + "/" + scheme.HeaderName
}

func sortedTags(set map[string]bool) []schemas.Tag {
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	tags := make([]schemas.Tag, 0, len(names))
	for _, name := range names {
		tags = append(tags, schemas.Tag{Name: name})
	}
	return tags
}

func statusDescription(code int) string {
	if text := http.StatusText(code); text != "" {
		return text
	}
	return "Response"
}

func mediaTypeFor(t schemas.BodyType) string {
	switch t {
	case schemas.BodyXML:
		return "application/xml"
	case schemas.BodyForm:
		return "application/x-www-form-urlencoded"
	default:
		return "application/json"
	}
}

func firstSegment(path string) string {
	for _, seg := range strings.Split(path, "/") {
		if seg != "" && !strings.HasPrefix(seg, "{") {
			return seg
		}
	}
	return ""
}
