package handlers

import (
	"fmt"
	"strings"

	"github.com/apiscribe/apiscribe/api/schemas"
	"github.com/apiscribe/apiscribe/internal/registry"
)

// Insomnia export v4 wire structures.

type insomniaExport struct {
	Type      string             `json:"_type"`
	Format    int                `json:"__export_format"`
	Resources []insomniaResource `json:"resources"`
}

type insomniaResource struct {
	ID       string             `json:"_id"`
	Type     string             `json:"_type"`
	ParentID string             `json:"parentId,omitempty"`
	Name     string             `json:"name,omitempty"`
	Method   string             `json:"method,omitempty"`
	URL      string             `json:"url,omitempty"`
	Headers  []insomniaKV       `json:"headers,omitempty"`
	Params   []insomniaKV       `json:"parameters,omitempty"`
	Body     *insomniaBody      `json:"body,omitempty"`
	Data     map[string]string  `json:"data,omitempty"` // environments
}

type insomniaKV struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type insomniaBody struct {
	MimeType string `json:"mimeType,omitempty"`
	Text     string `json:"text,omitempty"`
}

// InsomniaHandler imports Insomnia v4 export documents. Import-only: the
// canonical model loses Insomnia-specific state an export would need.
type InsomniaHandler struct{}

func NewInsomniaHandler() *InsomniaHandler { return &InsomniaHandler{} }

func (h *InsomniaHandler) Format() string { return "insomnia" }

func (h *InsomniaHandler) CanExport() bool { return false }

func (h *InsomniaHandler) CanImport(content string) bool {
	return strings.Contains(content, `"_type"`) && strings.Contains(content, `"export"`) &&
		strings.Contains(content, "__export_format")
}

func (h *InsomniaHandler) Validate(content string) registry.ValidationResult {
	var doc insomniaExport
	if err := json.UnmarshalFromString(content, &doc); err != nil {
		return invalid(registry.ErrCodeParseError, err.Error())
	}
	if doc.Type != "export" {
		return invalid(registry.ErrCodeValidationError, "_type must be \"export\"")
	}
	if doc.Format != 4 {
		return invalid(registry.ErrCodeValidationError, fmt.Sprintf("unsupported export format %d", doc.Format))
	}
	return valid
}

func (h *InsomniaHandler) Parse(content string, opts registry.ParseOptions) (*registry.ParseResult, error) {
	var doc insomniaExport
	if err := json.UnmarshalFromString(content, &doc); err != nil {
		return nil, fmt.Errorf("invalid insomnia export: %w", err)
	}
	if doc.Type != "export" {
		return nil, fmt.Errorf("not an insomnia export document")
	}

	name := opts.CollectionName
	if name == "" {
		name = "Insomnia import"
		for _, res := range doc.Resources {
			if res.Type == "workspace" && res.Name != "" {
				name = res.Name
				break
			}
		}
	}

	col := schemas.Collection{Name: name}
	result := &registry.ParseResult{}
	for _, res := range doc.Resources {
		switch res.Type {
		case "request":
			req := schemas.Request{
				ID:       res.ID,
				Name:     res.Name,
				Protocol: schemas.ProtocolREST,
				Method:   strings.ToUpper(res.Method),
				URL:      res.URL,
			}
			for _, hdr := range res.Headers {
				req.Headers = append(req.Headers, schemas.Header{Name: hdr.Name, Value: hdr.Value})
			}
			for _, p := range res.Params {
				req.QueryParams = append(req.QueryParams, schemas.Parameter{Name: p.Name, In: "query", Value: p.Value})
			}
			if res.Body != nil && res.Body.Text != "" {
				bodyType := schemas.BodyJSON
				if strings.Contains(res.Body.MimeType, "xml") {
					bodyType = schemas.BodyXML
				} else if strings.Contains(res.Body.MimeType, "graphql") {
					bodyType = schemas.BodyGraphQL
				}
				req.Body = &schemas.Body{Type: bodyType, Content: res.Body.Text}
			}
			col.Requests = append(col.Requests, req)
		case "environment":
			if len(res.Data) > 0 {
				result.Environments = append(result.Environments, schemas.Environment{
					Name:      res.Name,
					Variables: res.Data,
				})
			}
		}
	}

	result.Collections = []schemas.Collection{col}
	col.WalkRequests(func(r *schemas.Request) { result.Requests = append(result.Requests, *r) })
	return result, nil
}

func (h *InsomniaHandler) Serialize(registry.ExportInput, registry.SerializeOptions) (string, error) {
	return "", errUnsupported(h.Format())
}
