package handlers

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/apiscribe/apiscribe/api/schemas"
	"github.com/apiscribe/apiscribe/internal/registry"
)

// RAMLHandler imports RAML 0.8/1.0 API definitions. Import-only.
type RAMLHandler struct{}

func NewRAMLHandler() *RAMLHandler { return &RAMLHandler{} }

func (h *RAMLHandler) Format() string { return "raml" }

func (h *RAMLHandler) CanExport() bool { return false }

func (h *RAMLHandler) CanImport(content string) bool {
	return strings.HasPrefix(strings.TrimSpace(content), "#%RAML")
}

func (h *RAMLHandler) Validate(content string) registry.ValidationResult {
	if !h.CanImport(content) {
		return invalid(registry.ErrCodeValidationError, "missing #%RAML version header")
	}
	var doc map[string]interface{}
	if err := yaml.Unmarshal([]byte(content), &doc); err != nil {
		return invalid(registry.ErrCodeParseError, err.Error())
	}
	if _, ok := doc["title"]; !ok {
		return invalid(registry.ErrCodeValidationError, "missing required title")
	}
	return valid
}

func (h *RAMLHandler) Parse(content string, opts registry.ParseOptions) (*registry.ParseResult, error) {
	var doc map[string]interface{}
	if err := yaml.Unmarshal([]byte(content), &doc); err != nil {
		return nil, fmt.Errorf("invalid raml document: %w", err)
	}

	name := opts.CollectionName
	if name == "" {
		if title, ok := doc["title"].(string); ok {
			name = title
		} else {
			name = "RAML import"
		}
	}
	baseURI, _ := doc["baseUri"].(string)
	baseURI = strings.TrimSuffix(baseURI, "/")

	col := schemas.Collection{Name: name}
	for _, key := range sortedMapKeys(doc) {
		if !strings.HasPrefix(key, "/") {
			continue
		}
		node, _ := doc[key].(map[string]interface{})
		h.walkResource(key, node, baseURI, &col)
	}
	if len(col.Requests) == 0 {
		return nil, fmt.Errorf("raml document declares no resources")
	}

	result := &registry.ParseResult{Collections: []schemas.Collection{col}}
	col.WalkRequests(func(r *schemas.Request) { result.Requests = append(result.Requests, *r) })
	return result, nil
}

func (h *RAMLHandler) walkResource(path string, node map[string]interface{}, baseURI string, col *schemas.Collection) {
	if node == nil {
		return
	}
	for _, key := range sortedMapKeys(node) {
		value := node[key]
		switch {
		case strings.HasPrefix(key, "/"):
			child, _ := value.(map[string]interface{})
			h.walkResource(path+key, child, baseURI, col)
		case isHTTPMethod(key):
			req := schemas.Request{
				Name:     strings.ToUpper(key) + " " + path,
				Protocol: schemas.ProtocolREST,
				Method:   strings.ToUpper(key),
				URL:      baseURI + ramlToTemplatePath(path),
			}
			for _, placeholder := range req.Placeholders() {
				req.PathParams = append(req.PathParams, schemas.Parameter{
					Name: placeholder, In: "path", Required: true,
				})
			}
			if method, ok := value.(map[string]interface{}); ok {
				if desc, ok := method["description"].(string); ok {
					req.Description = desc
				}
				if qp, ok := method["queryParameters"].(map[string]interface{}); ok {
					for _, pname := range sortedMapKeys(qp) {
						param := schemas.Parameter{Name: pname, In: "query"}
						if pnode, ok := qp[pname].(map[string]interface{}); ok {
							param.Required, _ = pnode["required"].(bool)
							if pdesc, ok := pnode["description"].(string); ok {
								param.Description = pdesc
							}
						}
						req.QueryParams = append(req.QueryParams, param)
					}
				}
			}
			col.Requests = append(col.Requests, req)
		}
	}
}

// ramlToTemplatePath keeps RAML URI parameters as-is; RAML already uses the
// {name} convention, so only normalization of duplicate slashes is needed.
func ramlToTemplatePath(path string) string {
	return "/" + strings.Trim(path, "/")
}

func (h *RAMLHandler) Serialize(registry.ExportInput, registry.SerializeOptions) (string, error) {
	return "", errUnsupported(h.Format())
}
