package schemas

import (
	"fmt"
	"regexp"
)

// -- Canonical Model --
//
// The canonical model is the format-agnostic representation every format
// handler converts to and from. Importers produce it, the assembler consumes
// it, and exporters render it back out.

// Protocol tags a request with the wire protocol it targets.
type Protocol string

const (
	ProtocolREST      Protocol = "rest"
	ProtocolGraphQL   Protocol = "graphql"
	ProtocolSOAP      Protocol = "soap"
	ProtocolWebSocket Protocol = "websocket"
	ProtocolSSE       Protocol = "sse"
	ProtocolMQTT      Protocol = "mqtt"
	ProtocolGRPC      Protocol = "grpc"
)

// Collection is a named, ordered group of requests with optional nested
// folders. Folders are themselves collections; the nesting must be acyclic.
type Collection struct {
	ID          string            `json:"id,omitempty"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Requests    []Request         `json:"requests,omitempty"`
	Folders     []Collection      `json:"folders,omitempty"`
	Variables   map[string]string `json:"variables,omitempty"`
}

// WalkRequests visits every request in the collection, depth-first through
// nested folders, in declaration order.
func (c *Collection) WalkRequests(fn func(r *Request)) {
	for i := range c.Requests {
		fn(&c.Requests[i])
	}
	for i := range c.Folders {
		c.Folders[i].WalkRequests(fn)
	}
}

// Request is a single API call description. The URL may be a template
// containing {param} placeholders; each placeholder must be declared as a
// path parameter.
type Request struct {
	ID          string      `json:"id,omitempty"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Protocol    Protocol    `json:"protocol,omitempty"`
	Method      string      `json:"method"`
	URL         string      `json:"url"`
	Headers     []Header    `json:"headers,omitempty"`
	QueryParams []Parameter `json:"queryParams,omitempty"`
	PathParams  []Parameter `json:"pathParams,omitempty"`
	Body        *Body       `json:"body,omitempty"`
	Auth        *Auth       `json:"auth,omitempty"`
	Assertions  []Assertion `json:"assertions,omitempty"`
}

var placeholderPattern = regexp.MustCompile(`\{([^{}/]+)\}`)

// Placeholders returns the {param} names embedded in the URL template, in
// order of appearance.
func (r *Request) Placeholders() []string {
	matches := placeholderPattern.FindAllStringSubmatch(r.URL, -1)
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, m[1])
	}
	return names
}

// Validate checks the canonical invariants of a single request. Currently
// that is the placeholder rule: every {param} in the URL template must be
// declared as a path parameter.
func (r *Request) Validate() error {
	declared := make(map[string]bool, len(r.PathParams))
	for _, p := range r.PathParams {
		declared[p.Name] = true
	}
	for _, name := range r.Placeholders() {
		if !declared[name] {
			return fmt.Errorf("url template references undeclared path parameter %q", name)
		}
	}
	return nil
}

// Header is an ordered name/value pair on a request.
type Header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Parameter describes a path, query, or header parameter.
type Parameter struct {
	Name        string  `json:"name"`
	In          string  `json:"in,omitempty"` // "path", "query", or "header"
	Value       string  `json:"value,omitempty"`
	Required    bool    `json:"required,omitempty"`
	Description string  `json:"description,omitempty"`
	Schema      *Schema `json:"schema,omitempty"`
}

// BodyType discriminates the payload encoding of a request body.
type BodyType string

const (
	BodyNone    BodyType = "none"
	BodyJSON    BodyType = "json"
	BodyXML     BodyType = "xml"
	BodyForm    BodyType = "form"
	BodyGraphQL BodyType = "graphql"
)

// Body is a typed request payload. Content holds the raw text for json/xml
// bodies; Form and GraphQL carry structured variants for their types.
type Body struct {
	Type    BodyType     `json:"type"`
	Content string       `json:"content,omitempty"`
	Form    []NVPair     `json:"form,omitempty"`
	GraphQL *GraphQLBody `json:"graphql,omitempty"`
}

// GraphQLBody is the structured form of a GraphQL request payload.
type GraphQLBody struct {
	Query         string `json:"query"`
	Variables     string `json:"variables,omitempty"` // raw JSON object
	OperationName string `json:"operationName,omitempty"`
}

// AuthType discriminates the authentication descriptor attached to a request.
type AuthType string

const (
	AuthBearer AuthType = "bearer"
	AuthBasic  AuthType = "basic"
	AuthAPIKey AuthType = "apikey"
	AuthOAuth2 AuthType = "oauth2"
)

// Auth describes how a request authenticates. Only the fields relevant to
// the Type are populated.
type Auth struct {
	Type         AuthType `json:"type"`
	Token        string   `json:"token,omitempty"`        // bearer
	BearerFormat string   `json:"bearerFormat,omitempty"` // e.g. "JWT"
	Username     string   `json:"username,omitempty"`     // basic
	Password     string   `json:"password,omitempty"`     // basic
	HeaderName   string   `json:"headerName,omitempty"`   // apikey header
	Key          string   `json:"key,omitempty"`          // apikey value
}

// Assertion is a declarative check attached to a request, evaluated by the
// execution collaborator after the response arrives.
type Assertion struct {
	Target     string `json:"target"`     // e.g. "status", "body.id"
	Comparison string `json:"comparison"` // e.g. "equals", "contains"
	Expected   string `json:"expected"`
}

// Environment is a named set of variables importers may carry alongside
// collections (Postman environments, Insomnia base environments).
type Environment struct {
	Name      string            `json:"name"`
	Variables map[string]string `json:"variables,omitempty"`
}
