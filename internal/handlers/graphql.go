package handlers

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/apiscribe/apiscribe/api/schemas"
	"github.com/apiscribe/apiscribe/internal/registry"
)

var (
	sdlTypePattern  = regexp.MustCompile(`(?m)^\s*(type|interface|enum|input|schema|scalar|union)\s+\w*`)
	sdlFieldPattern = regexp.MustCompile(`(?m)^\s*(\w+)\s*(\([^)]*\))?\s*:\s*[\[\]\w!]+`)
)

// GraphQLHandler imports GraphQL SDL documents. Each field on the Query and
// Mutation root types becomes a POST /graphql request carrying a skeleton
// operation. Import-only: SDL cannot be reconstructed from requests.
type GraphQLHandler struct{}

func NewGraphQLHandler() *GraphQLHandler { return &GraphQLHandler{} }

func (h *GraphQLHandler) Format() string { return "graphql" }

func (h *GraphQLHandler) CanExport() bool { return false }

func (h *GraphQLHandler) CanImport(content string) bool {
	trimmed := strings.TrimSpace(content)
	if strings.HasPrefix(trimmed, "{") {
		return false // JSON belongs to other handlers
	}
	return sdlTypePattern.MatchString(content)
}

func (h *GraphQLHandler) Validate(content string) registry.ValidationResult {
	if !sdlTypePattern.MatchString(content) {
		return invalid(registry.ErrCodeValidationError, "no GraphQL type definitions found")
	}
	if strings.Count(content, "{") != strings.Count(content, "}") {
		return invalid(registry.ErrCodeValidationError, "unbalanced braces in SDL document")
	}
	return valid
}

func (h *GraphQLHandler) Parse(content string, opts registry.ParseOptions) (*registry.ParseResult, error) {
	if !sdlTypePattern.MatchString(content) {
		return nil, fmt.Errorf("not a GraphQL SDL document")
	}
	name := opts.CollectionName
	if name == "" {
		name = "GraphQL API"
	}
	col := schemas.Collection{Name: name}

	for _, root := range []string{"Query", "Mutation"} {
		body := rootTypeBody(content, root)
		if body == "" {
			continue
		}
		operation := "query"
		if root == "Mutation" {
			operation = "mutation"
		}
		for _, match := range sdlFieldPattern.FindAllStringSubmatch(body, -1) {
			field := match[1]
			col.Requests = append(col.Requests, schemas.Request{
				Name:     root + "." + field,
				Protocol: schemas.ProtocolGraphQL,
				Method:   "POST",
				URL:      "/graphql",
				Headers:  []schemas.Header{{Name: "Content-Type", Value: "application/json"}},
				Body: &schemas.Body{
					Type: schemas.BodyGraphQL,
					GraphQL: &schemas.GraphQLBody{
						Query:         fmt.Sprintf("%s %s { %s }", operation, field, field),
						OperationName: field,
					},
				},
			})
		}
	}
	if len(col.Requests) == 0 {
		return nil, fmt.Errorf("SDL document has no Query or Mutation root type")
	}

	result := &registry.ParseResult{Collections: []schemas.Collection{col}}
	col.WalkRequests(func(r *schemas.Request) { result.Requests = append(result.Requests, *r) })
	return result, nil
}

// rootTypeBody extracts the brace-delimited body of `type <name> { ... }`,
// tolerating interface implementations and directives before the brace.
func rootTypeBody(content, name string) string {
	pattern := regexp.MustCompile(`type\s+` + name + `\b[^{]*\{`)
	loc := pattern.FindStringIndex(content)
	if loc == nil {
		return ""
	}
	depth := 1
	start := loc[1]
	for i := start; i < len(content); i++ {
		switch content[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return content[start:i]
			}
		}
	}
	return ""
}

func (h *GraphQLHandler) Serialize(registry.ExportInput, registry.SerializeOptions) (string, error) {
	return "", errUnsupported(h.Format())
}
