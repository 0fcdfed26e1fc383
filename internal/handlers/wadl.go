package handlers

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"

	"github.com/apiscribe/apiscribe/api/schemas"
	"github.com/apiscribe/apiscribe/internal/registry"
)

// WADLHandler imports WADL application descriptions. Import-only.
type WADLHandler struct{}

func NewWADLHandler() *WADLHandler { return &WADLHandler{} }

func (h *WADLHandler) Format() string { return "wadl" }

func (h *WADLHandler) CanExport() bool { return false }

func (h *WADLHandler) CanImport(content string) bool {
	return strings.Contains(content, "<application") && strings.Contains(content, "<resources")
}

func (h *WADLHandler) Validate(content string) registry.ValidationResult {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(content); err != nil {
		return invalid(registry.ErrCodeParseError, err.Error())
	}
	root := doc.Root()
	if root == nil || root.Tag != "application" {
		return invalid(registry.ErrCodeValidationError, "root element must be application")
	}
	return valid
}

func (h *WADLHandler) Parse(content string, opts registry.ParseOptions) (*registry.ParseResult, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(content); err != nil {
		return nil, fmt.Errorf("invalid wadl document: %w", err)
	}
	root := doc.Root()
	if root == nil || root.Tag != "application" {
		return nil, fmt.Errorf("not a wadl document")
	}

	name := opts.CollectionName
	if name == "" {
		name = "WADL import"
	}
	col := schemas.Collection{Name: name}

	for _, resources := range root.SelectElements("resources") {
		base := strings.TrimSuffix(resources.SelectAttrValue("base", ""), "/")
		for _, resource := range resources.SelectElements("resource") {
			h.walkResource(resource, base, &col)
		}
	}
	if len(col.Requests) == 0 {
		return nil, fmt.Errorf("wadl document declares no methods")
	}

	result := &registry.ParseResult{Collections: []schemas.Collection{col}}
	col.WalkRequests(func(r *schemas.Request) { result.Requests = append(result.Requests, *r) })
	return result, nil
}

func (h *WADLHandler) walkResource(resource *etree.Element, base string, col *schemas.Collection) {
	path := joinResourcePath(base, resource.SelectAttrValue("path", ""))

	params := resource.SelectElements("param")

	for _, method := range resource.SelectElements("method") {
		verb := strings.ToUpper(method.SelectAttrValue("name", ""))
		if verb == "" {
			continue
		}
		reqName := method.SelectAttrValue("id", "")
		if reqName == "" {
			reqName = verb + " " + path
		}
		req := schemas.Request{
			Name:     reqName,
			Protocol: schemas.ProtocolREST,
			Method:   verb,
			URL:      path,
		}
		for _, p := range params {
			addWADLParam(&req, p)
		}
		if request := method.SelectElement("request"); request != nil {
			for _, p := range request.SelectElements("param") {
				addWADLParam(&req, p)
			}
		}
		col.Requests = append(col.Requests, req)
	}

	for _, child := range resource.SelectElements("resource") {
		h.walkResource(child, path, col)
	}
}

func addWADLParam(req *schemas.Request, el *etree.Element) {
	name := el.SelectAttrValue("name", "")
	if name == "" {
		return
	}
	switch el.SelectAttrValue("style", "") {
	case "template":
		req.PathParams = append(req.PathParams, schemas.Parameter{
			Name: name, In: "path", Required: true,
		})
	case "header":
		req.Headers = append(req.Headers, schemas.Header{Name: name})
	default:
		req.QueryParams = append(req.QueryParams, schemas.Parameter{
			Name:     name,
			In:       "query",
			Required: el.SelectAttrValue("required", "") == "true",
		})
	}
}

func joinResourcePath(base, path string) string {
	path = strings.Trim(path, "/")
	if path == "" {
		return base
	}
	return base + "/" + path
}

func (h *WADLHandler) Serialize(registry.ExportInput, registry.SerializeOptions) (string, error) {
	return "", errUnsupported(h.Format())
}
