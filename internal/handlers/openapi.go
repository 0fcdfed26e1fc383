package handlers

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/apiscribe/apiscribe/api/schemas"
	"github.com/apiscribe/apiscribe/internal/assembler"
	"github.com/apiscribe/apiscribe/internal/registry"
)

// openapiStructure is the minimal structural contract an OpenAPI/Swagger
// document must satisfy before we walk it. Full RFC-level validation is a
// non-goal; this catches documents that are JSON but not specs.
const openapiStructure = `{
	"type": "object",
	"properties": {
		"info": {
			"type": "object",
			"required": ["title", "version"]
		},
		"paths": {"type": "object"}
	},
	"required": ["info", "paths"]
}`

// OpenAPIHandler imports OpenAPI 3.x and Swagger 2.0 documents (JSON or
// YAML) and exports collections as OpenAPI 3 in both renderings.
type OpenAPIHandler struct{}

func NewOpenAPIHandler() *OpenAPIHandler { return &OpenAPIHandler{} }

func (h *OpenAPIHandler) Format() string { return "openapi" }

func (h *OpenAPIHandler) CanExport() bool { return true }

func (h *OpenAPIHandler) CanImport(content string) bool {
	return strings.Contains(content, "openapi") && strings.Contains(content, "paths") ||
		strings.Contains(content, "swagger") && strings.Contains(content, "paths")
}

func (h *OpenAPIHandler) Validate(content string) registry.ValidationResult {
	trimmed := strings.TrimSpace(content)
	if strings.HasPrefix(trimmed, "{") {
		result, err := gojsonschema.Validate(
			gojsonschema.NewStringLoader(openapiStructure),
			gojsonschema.NewStringLoader(content),
		)
		if err != nil {
			return invalid(registry.ErrCodeParseError, err.Error())
		}
		if !result.Valid() {
			var msgs []string
			for _, issue := range result.Errors() {
				msgs = append(msgs, issue.String())
			}
			return invalid(registry.ErrCodeValidationError, msgs...)
		}
		return valid
	}
	doc, err := decodeLooseYAML(content)
	if err != nil {
		return invalid(registry.ErrCodeParseError, err.Error())
	}
	var msgs []string
	if _, ok := doc["info"]; !ok {
		msgs = append(msgs, "info is required")
	}
	if _, ok := doc["paths"]; !ok {
		msgs = append(msgs, "paths is required")
	}
	if len(msgs) > 0 {
		return invalid(registry.ErrCodeValidationError, msgs...)
	}
	return valid
}

func (h *OpenAPIHandler) Parse(content string, opts registry.ParseOptions) (*registry.ParseResult, error) {
	doc, err := decodeLooseYAML(content)
	if err != nil {
		return nil, fmt.Errorf("invalid openapi document: %w", err)
	}
	paths, ok := doc["paths"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("openapi document has no paths object")
	}

	col := schemas.Collection{Name: specTitle(doc)}
	if opts.CollectionName != "" {
		col.Name = opts.CollectionName
	}
	base := specBaseURL(doc)

	for _, path := range sortedMapKeys(paths) {
		item, ok := paths[path].(map[string]interface{})
		if !ok {
			continue
		}
		for _, method := range sortedMapKeys(item) {
			if !isHTTPMethod(method) {
				continue
			}
			op, _ := item[method].(map[string]interface{})
			req := schemas.Request{
				Name:     operationSummary(op, method, path),
				Protocol: schemas.ProtocolREST,
				Method:   strings.ToUpper(method),
				URL:      base + path,
			}
			for _, p := range operationParameters(op) {
				switch p.In {
				case "path":
					p.Required = true
					req.PathParams = append(req.PathParams, p)
				case "query":
					req.QueryParams = append(req.QueryParams, p)
				}
			}
			if _, hasBody := op["requestBody"]; hasBody {
				req.Body = &schemas.Body{Type: schemas.BodyJSON}
			}
			col.Requests = append(col.Requests, req)
		}
	}

	result := &registry.ParseResult{Collections: []schemas.Collection{col}}
	col.WalkRequests(func(r *schemas.Request) { result.Requests = append(result.Requests, *r) })
	return result, nil
}

func (h *OpenAPIHandler) Serialize(input registry.ExportInput, opts registry.SerializeOptions) (string, error) {
	if len(input.Collections) == 0 {
		return "", fmt.Errorf("openapi export needs a collection")
	}
	spec := assembler.AssembleFromCollection(&input.Collections[0], assembler.Options{GroupByTags: true})
	if opts.AsYAML {
		data, err := yaml.Marshal(spec)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	if opts.Pretty {
		data, err := json.MarshalIndent(spec, "", "  ")
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	return json.MarshalToString(spec)
}

// decodeLooseYAML decodes YAML or JSON (YAML is a superset) into nested
// string-keyed maps.
func decodeLooseYAML(content string) (map[string]interface{}, error) {
	var doc map[string]interface{}
	if err := yaml.Unmarshal([]byte(content), &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func specTitle(doc map[string]interface{}) string {
	if info, ok := doc["info"].(map[string]interface{}); ok {
		if title, ok := info["title"].(string); ok {
			return title
		}
	}
	return "Imported API"
}

func specBaseURL(doc map[string]interface{}) string {
	if servers, ok := doc["servers"].([]interface{}); ok && len(servers) > 0 {
		if server, ok := servers[0].(map[string]interface{}); ok {
			if u, ok := server["url"].(string); ok {
				return strings.TrimSuffix(u, "/")
			}
		}
	}
	// Swagger 2.0 fallback.
	if base, ok := doc["basePath"].(string); ok {
		return strings.TrimSuffix(base, "/")
	}
	return ""
}

func operationSummary(op map[string]interface{}, method, path string) string {
	if op != nil {
		if summary, ok := op["summary"].(string); ok && summary != "" {
			return summary
		}
		if id, ok := op["operationId"].(string); ok && id != "" {
			return id
		}
	}
	return strings.ToUpper(method) + " " + path
}

func operationParameters(op map[string]interface{}) []schemas.Parameter {
	if op == nil {
		return nil
	}
	raw, ok := op["parameters"].([]interface{})
	if !ok {
		return nil
	}
	var out []schemas.Parameter
	for _, rp := range raw {
		p, ok := rp.(map[string]interface{})
		if !ok {
			continue
		}
		param := schemas.Parameter{}
		param.Name, _ = p["name"].(string)
		param.In, _ = p["in"].(string)
		param.Required, _ = p["required"].(bool)
		if param.Name != "" {
			out = append(out, param)
		}
	}
	return out
}

func isHTTPMethod(s string) bool {
	switch strings.ToLower(s) {
	case "get", "put", "post", "delete", "options", "head", "patch", "trace":
		return true
	}
	return false
}
