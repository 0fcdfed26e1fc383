package schemas

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// -- Specification (OpenAPI-shaped) --

// Specification is the normalized, OpenAPI-shaped output of the assembler
// and the input of the differ. Path order is significant: it follows
// first-seen order and must survive serialization so diffs and snapshots
// stay stable.
type Specification struct {
	OpenAPI    string                `json:"openapi" yaml:"openapi"`
	Info       Info                  `json:"info" yaml:"info"`
	Servers    []Server              `json:"servers,omitempty" yaml:"servers,omitempty"`
	Tags       []Tag                 `json:"tags,omitempty" yaml:"tags,omitempty"`
	Paths      *PathMap              `json:"paths" yaml:"paths"`
	Components *Components           `json:"components,omitempty" yaml:"components,omitempty"`
	Security   []SecurityRequirement `json:"security,omitempty" yaml:"security,omitempty"`
}

// Info carries the specification's identifying metadata.
type Info struct {
	Title       string `json:"title" yaml:"title"`
	Version     string `json:"version" yaml:"version"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Server is a base URL the described API is reachable at.
type Server struct {
	URL         string `json:"url" yaml:"url"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Tag is a grouping label attached to endpoints.
type Tag struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Components holds the reusable pieces of a specification.
type Components struct {
	Schemas         map[string]*Schema         `json:"schemas,omitempty" yaml:"schemas,omitempty"`
	SecuritySchemes map[string]*SecurityScheme `json:"securitySchemes,omitempty" yaml:"securitySchemes,omitempty"`
}

// SecurityScheme describes one authentication mechanism.
type SecurityScheme struct {
	Type         string `json:"type" yaml:"type"` // "http" or "apiKey"
	Scheme       string `json:"scheme,omitempty" yaml:"scheme,omitempty"`
	BearerFormat string `json:"bearerFormat,omitempty" yaml:"bearerFormat,omitempty"`
	In           string `json:"in,omitempty" yaml:"in,omitempty"`
	Name         string `json:"name,omitempty" yaml:"name,omitempty"`
	Description  string `json:"description,omitempty" yaml:"description,omitempty"`
}

// SecurityRequirement maps a security scheme name to its required scopes.
type SecurityRequirement map[string][]string

// Endpoint is one operation on a normalized path. It doubles as the merged
// inference output for a deduplicated (method, path) pair.
type Endpoint struct {
	OperationID string                `json:"operationId,omitempty" yaml:"operationId,omitempty"`
	Summary     string                `json:"summary,omitempty" yaml:"summary,omitempty"`
	Description string                `json:"description,omitempty" yaml:"description,omitempty"`
	Tags        []string              `json:"tags,omitempty" yaml:"tags,omitempty"`
	Parameters  []Parameter           `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	RequestBody *RequestBody          `json:"requestBody,omitempty" yaml:"requestBody,omitempty"`
	Responses   map[string]*Response  `json:"responses,omitempty" yaml:"responses,omitempty"`
	Security    []SecurityRequirement `json:"security,omitempty" yaml:"security,omitempty"`
}

// RequestBody describes the payload an operation accepts.
type RequestBody struct {
	Description string                `json:"description,omitempty" yaml:"description,omitempty"`
	Required    bool                  `json:"required,omitempty" yaml:"required,omitempty"`
	Content     map[string]*MediaType `json:"content,omitempty" yaml:"content,omitempty"`
}

// Response describes one status code's payload.
type Response struct {
	Description string                `json:"description" yaml:"description"`
	Content     map[string]*MediaType `json:"content,omitempty" yaml:"content,omitempty"`
}

// MediaType pairs a schema with an optional observed example.
type MediaType struct {
	Schema  *Schema     `json:"schema,omitempty" yaml:"schema,omitempty"`
	Example interface{} `json:"example,omitempty" yaml:"example,omitempty"`
}

// PathItem groups the operations available on a single path, one field per
// HTTP method as OpenAPI lays them out.
type PathItem struct {
	Get     *Endpoint `json:"get,omitempty" yaml:"get,omitempty"`
	Put     *Endpoint `json:"put,omitempty" yaml:"put,omitempty"`
	Post    *Endpoint `json:"post,omitempty" yaml:"post,omitempty"`
	Delete  *Endpoint `json:"delete,omitempty" yaml:"delete,omitempty"`
	Options *Endpoint `json:"options,omitempty" yaml:"options,omitempty"`
	Head    *Endpoint `json:"head,omitempty" yaml:"head,omitempty"`
	Patch   *Endpoint `json:"patch,omitempty" yaml:"patch,omitempty"`
	Trace   *Endpoint `json:"trace,omitempty" yaml:"trace,omitempty"`
}

// methodOrder is the canonical iteration order for operations on a path.
var methodOrder = []string{"get", "put", "post", "delete", "options", "head", "patch", "trace"}

// Operation returns the endpoint registered for the given lowercase method,
// or nil.
func (pi *PathItem) Operation(method string) *Endpoint {
	switch method {
	case "get":
		return pi.Get
	case "put":
		return pi.Put
	case "post":
		return pi.Post
	case "delete":
		return pi.Delete
	case "options":
		return pi.Options
	case "head":
		return pi.Head
	case "patch":
		return pi.Patch
	case "trace":
		return pi.Trace
	}
	return nil
}

// SetOperation registers an endpoint under the given lowercase method.
// Unknown methods are ignored.
func (pi *PathItem) SetOperation(method string, ep *Endpoint) {
	switch method {
	case "get":
		pi.Get = ep
	case "put":
		pi.Put = ep
	case "post":
		pi.Post = ep
	case "delete":
		pi.Delete = ep
	case "options":
		pi.Options = ep
	case "head":
		pi.Head = ep
	case "patch":
		pi.Patch = ep
	case "trace":
		pi.Trace = ep
	}
}

// Operations returns the populated (method, endpoint) pairs in canonical
// method order.
func (pi *PathItem) Operations() []MethodOperation {
	var ops []MethodOperation
	for _, m := range methodOrder {
		if ep := pi.Operation(m); ep != nil {
			ops = append(ops, MethodOperation{Method: m, Endpoint: ep})
		}
	}
	return ops
}

// MethodOperation is one (method, endpoint) pair during path iteration.
type MethodOperation struct {
	Method   string
	Endpoint *Endpoint
}

// PathMap is an insertion-ordered map of normalized path -> PathItem. The
// assembler emits paths in first-seen order; PathMap preserves that order
// across JSON and YAML round trips.
type PathMap struct {
	keys  []string
	items map[string]*PathItem
}

// NewPathMap returns an empty, ready-to-use path map.
func NewPathMap() *PathMap {
	return &PathMap{items: make(map[string]*PathItem)}
}

// Get returns the item registered for path, or nil.
func (p *PathMap) Get(path string) *PathItem {
	if p == nil || p.items == nil {
		return nil
	}
	return p.items[path]
}

// Set registers an item, appending the path to the order on first insert.
func (p *PathMap) Set(path string, item *PathItem) {
	if p.items == nil {
		p.items = make(map[string]*PathItem)
	}
	if _, seen := p.items[path]; !seen {
		p.keys = append(p.keys, path)
	}
	p.items[path] = item
}

// Keys returns the paths in insertion order. The returned slice is shared;
// callers must not mutate it.
func (p *PathMap) Keys() []string {
	if p == nil {
		return nil
	}
	return p.keys
}

// Len reports the number of registered paths.
func (p *PathMap) Len() int {
	if p == nil {
		return 0
	}
	return len(p.keys)
}

// MarshalJSON renders the map as a JSON object with keys in insertion order.
func (p *PathMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range p.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(p.items[k])
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON rebuilds the map preserving the document's key order.
func (p *PathMap) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("paths: expected object, got %v", tok)
	}
	p.keys = nil
	p.items = make(map[string]*PathItem)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key := keyTok.(string)
		var item PathItem
		if err := dec.Decode(&item); err != nil {
			return fmt.Errorf("paths[%s]: %w", key, err)
		}
		p.Set(key, &item)
	}
	_, err = dec.Token() // consume closing brace
	return err
}

// MarshalYAML renders the map as a YAML mapping with keys in insertion order.
func (p *PathMap) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, k := range p.keys {
		keyNode := &yaml.Node{Kind: yaml.ScalarNode, Value: k}
		valNode := &yaml.Node{}
		if err := valNode.Encode(p.items[k]); err != nil {
			return nil, err
		}
		node.Content = append(node.Content, keyNode, valNode)
	}
	return node, nil
}

// UnmarshalYAML rebuilds the map preserving the document's key order.
func (p *PathMap) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("paths: expected mapping, got %v", value.Kind)
	}
	p.keys = nil
	p.items = make(map[string]*PathItem)
	for i := 0; i+1 < len(value.Content); i += 2 {
		var item PathItem
		if err := value.Content[i+1].Decode(&item); err != nil {
			return fmt.Errorf("paths[%s]: %w", value.Content[i].Value, err)
		}
		p.Set(value.Content[i].Value, &item)
	}
	return nil
}
