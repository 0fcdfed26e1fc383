package handlers

import (
	"fmt"
	"strings"

	"github.com/apiscribe/apiscribe/api/schemas"
	"github.com/apiscribe/apiscribe/internal/registry"
)

// Postman Collection v2.1 wire structures, limited to the fields the
// canonical model can represent.

type postmanCollection struct {
	Info  postmanInfo   `json:"info"`
	Items []postmanItem `json:"item"`
}

type postmanInfo struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Schema      string `json:"schema"`
}

// postmanItem is either a request (Request != nil) or a folder (Items).
type postmanItem struct {
	Name    string          `json:"name"`
	Request *postmanRequest `json:"request,omitempty"`
	Items   []postmanItem   `json:"item,omitempty"`
}

type postmanRequest struct {
	Method string       `json:"method"`
	Header []postmanKV  `json:"header,omitempty"`
	URL    postmanURL   `json:"url"`
	Body   *postmanBody `json:"body,omitempty"`
	Auth   *postmanAuth `json:"auth,omitempty"`
}

type postmanKV struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type postmanURL struct {
	Raw   string      `json:"raw"`
	Query []postmanKV `json:"query,omitempty"`
}

type postmanBody struct {
	Mode       string      `json:"mode"`
	Raw        string      `json:"raw,omitempty"`
	URLEncoded []postmanKV `json:"urlencoded,omitempty"`
}

type postmanAuth struct {
	Type   string      `json:"type"`
	Bearer []postmanKV `json:"bearer,omitempty"`
	Basic  []postmanKV `json:"basic,omitempty"`
	APIKey []postmanKV `json:"apikey,omitempty"`
}

const postmanSchemaURL = "https://schema.getpostman.com/json/collection/v2.1.0/collection.json"

// PostmanHandler imports and exports Postman Collection v2.1 documents.
type PostmanHandler struct{}

func NewPostmanHandler() *PostmanHandler { return &PostmanHandler{} }

func (h *PostmanHandler) Format() string { return "postman" }

func (h *PostmanHandler) CanExport() bool { return true }

func (h *PostmanHandler) CanImport(content string) bool {
	return strings.Contains(content, "schema.getpostman.com") &&
		strings.Contains(content, `"item"`)
}

func (h *PostmanHandler) Validate(content string) registry.ValidationResult {
	var col postmanCollection
	if err := json.UnmarshalFromString(content, &col); err != nil {
		return invalid(registry.ErrCodeParseError, err.Error())
	}
	var msgs []string
	if col.Info.Name == "" {
		msgs = append(msgs, "info.name is required")
	}
	if !strings.Contains(col.Info.Schema, "v2.1") && !strings.Contains(col.Info.Schema, "v2.0") {
		msgs = append(msgs, "unsupported collection schema version: "+col.Info.Schema)
	}
	if len(msgs) > 0 {
		return invalid(registry.ErrCodeValidationError, msgs...)
	}
	return valid
}

func (h *PostmanHandler) Parse(content string, opts registry.ParseOptions) (*registry.ParseResult, error) {
	var col postmanCollection
	if err := json.UnmarshalFromString(content, &col); err != nil {
		return nil, fmt.Errorf("invalid postman collection: %w", err)
	}
	name := col.Info.Name
	if opts.CollectionName != "" {
		name = opts.CollectionName
	}
	out := schemas.Collection{Name: name, Description: col.Info.Description}
	convertPostmanItems(col.Items, &out)

	result := &registry.ParseResult{Collections: []schemas.Collection{out}}
	out.WalkRequests(func(r *schemas.Request) {
		result.Requests = append(result.Requests, *r)
	})
	return result, nil
}

func convertPostmanItems(items []postmanItem, parent *schemas.Collection) {
	for _, item := range items {
		if item.Request == nil {
			folder := schemas.Collection{Name: item.Name}
			convertPostmanItems(item.Items, &folder)
			parent.Folders = append(parent.Folders, folder)
			continue
		}
		req := schemas.Request{
			Name:     item.Name,
			Protocol: schemas.ProtocolREST,
			Method:   strings.ToUpper(item.Request.Method),
			URL:      item.Request.URL.Raw,
		}
		for _, hdr := range item.Request.Header {
			req.Headers = append(req.Headers, schemas.Header{Name: hdr.Key, Value: hdr.Value})
		}
		for _, q := range item.Request.URL.Query {
			req.QueryParams = append(req.QueryParams, schemas.Parameter{Name: q.Key, In: "query", Value: q.Value})
		}
		if body := item.Request.Body; body != nil {
			switch body.Mode {
			case "raw":
				bodyType := schemas.BodyJSON
				if !strings.HasPrefix(strings.TrimSpace(body.Raw), "{") &&
					!strings.HasPrefix(strings.TrimSpace(body.Raw), "[") {
					bodyType = schemas.BodyXML
				}
				req.Body = &schemas.Body{Type: bodyType, Content: body.Raw}
			case "urlencoded":
				b := &schemas.Body{Type: schemas.BodyForm}
				for _, kv := range body.URLEncoded {
					b.Form = append(b.Form, schemas.NVPair{Name: kv.Key, Value: kv.Value})
				}
				req.Body = b
			}
		}
		req.Auth = convertPostmanAuth(item.Request.Auth)
		parent.Requests = append(parent.Requests, req)
	}
}

func convertPostmanAuth(auth *postmanAuth) *schemas.Auth {
	if auth == nil {
		return nil
	}
	kv := func(pairs []postmanKV, key string) string {
		for _, p := range pairs {
			if p.Key == key {
				return p.Value
			}
		}
		return ""
	}
	switch auth.Type {
	case "bearer":
		return &schemas.Auth{Type: schemas.AuthBearer, Token: kv(auth.Bearer, "token")}
	case "basic":
		return &schemas.Auth{
			Type:     schemas.AuthBasic,
			Username: kv(auth.Basic, "username"),
			Password: kv(auth.Basic, "password"),
		}
	case "apikey":
		return &schemas.Auth{
			Type:       schemas.AuthAPIKey,
			HeaderName: kv(auth.APIKey, "key"),
			Key:        kv(auth.APIKey, "value"),
		}
	}
	return nil
}

func (h *PostmanHandler) Serialize(input registry.ExportInput, opts registry.SerializeOptions) (string, error) {
	if len(input.Collections) == 0 {
		return "", fmt.Errorf("postman export needs a collection")
	}
	src := input.Collections[0]
	col := postmanCollection{
		Info: postmanInfo{
			Name:        src.Name,
			Description: src.Description,
			Schema:      postmanSchemaURL,
		},
		Items: buildPostmanItems(&src),
	}
	if opts.Pretty {
		data, err := json.MarshalIndent(col, "", "  ")
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	return json.MarshalToString(col)
}

func buildPostmanItems(col *schemas.Collection) []postmanItem {
	items := make([]postmanItem, 0, len(col.Requests)+len(col.Folders))
	for _, req := range col.Requests {
		item := postmanItem{
			Name: req.Name,
			Request: &postmanRequest{
				Method: req.Method,
				URL:    postmanURL{Raw: req.URL},
			},
		}
		for _, hdr := range req.Headers {
			item.Request.Header = append(item.Request.Header, postmanKV{Key: hdr.Name, Value: hdr.Value})
		}
		for _, q := range req.QueryParams {
			item.Request.URL.Query = append(item.Request.URL.Query, postmanKV{Key: q.Name, Value: q.Value})
		}
		if req.Body != nil && req.Body.Content != "" {
			item.Request.Body = &postmanBody{Mode: "raw", Raw: req.Body.Content}
		}
		items = append(items, item)
	}
	for i := range col.Folders {
		items = append(items, postmanItem{
			Name:  col.Folders[i].Name,
			Items: buildPostmanItems(&col.Folders[i]),
		})
	}
	return items
}
