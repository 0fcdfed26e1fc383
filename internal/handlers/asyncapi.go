package handlers

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/apiscribe/apiscribe/api/schemas"
	"github.com/apiscribe/apiscribe/internal/registry"
)

// asyncapiStructure is the minimal structural contract for AsyncAPI 2.x
// documents, mirroring the OpenAPI handler's approach.
const asyncapiStructure = `{
	"type": "object",
	"properties": {
		"asyncapi": {"type": "string"},
		"channels": {"type": "object"}
	},
	"required": ["asyncapi", "channels"]
}`

// AsyncAPIHandler imports AsyncAPI 2.x documents (JSON or YAML). Channels
// become websocket or mqtt requests keyed by the declared protocol.
// Import-only.
type AsyncAPIHandler struct{}

func NewAsyncAPIHandler() *AsyncAPIHandler { return &AsyncAPIHandler{} }

func (h *AsyncAPIHandler) Format() string { return "asyncapi" }

func (h *AsyncAPIHandler) CanExport() bool { return false }

func (h *AsyncAPIHandler) CanImport(content string) bool {
	return strings.Contains(content, "asyncapi")
}

func (h *AsyncAPIHandler) Validate(content string) registry.ValidationResult {
	if strings.HasPrefix(strings.TrimSpace(content), "{") {
		result, err := gojsonschema.Validate(
			gojsonschema.NewStringLoader(asyncapiStructure),
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
	if _, ok := doc["asyncapi"]; !ok {
		return invalid(registry.ErrCodeValidationError, "asyncapi version is required")
	}
	return valid
}

func (h *AsyncAPIHandler) Parse(content string, opts registry.ParseOptions) (*registry.ParseResult, error) {
	doc, err := decodeLooseYAML(content)
	if err != nil {
		return nil, fmt.Errorf("invalid asyncapi document: %w", err)
	}
	if _, ok := doc["asyncapi"]; !ok {
		return nil, fmt.Errorf("not an asyncapi document")
	}
	channels, _ := doc["channels"].(map[string]interface{})

	col := schemas.Collection{Name: specTitle(doc)}
	if opts.CollectionName != "" {
		col.Name = opts.CollectionName
	}

	protocol := serverProtocol(doc)
	for _, channel := range sortedMapKeys(channels) {
		item, _ := channels[channel].(map[string]interface{})
		for _, operation := range []string{"subscribe", "publish"} {
			op, ok := item[operation].(map[string]interface{})
			if !ok {
				continue
			}
			col.Requests = append(col.Requests, schemas.Request{
				Name:     operationSummary(op, operation, channel),
				Protocol: protocol,
				Method:   strings.ToUpper(operation),
				URL:      channel,
			})
		}
	}

	result := &registry.ParseResult{Collections: []schemas.Collection{col}}
	col.WalkRequests(func(r *schemas.Request) { result.Requests = append(result.Requests, *r) })
	return result, nil
}

// serverProtocol picks the canonical protocol tag from the first declared
// server, defaulting to websocket.
func serverProtocol(doc map[string]interface{}) schemas.Protocol {
	servers, _ := doc["servers"].(map[string]interface{})
	for _, rawServer := range servers {
		server, _ := rawServer.(map[string]interface{})
		if p, ok := server["protocol"].(string); ok {
			switch {
			case strings.HasPrefix(p, "mqtt"):
				return schemas.ProtocolMQTT
			case strings.HasPrefix(p, "ws"):
				return schemas.ProtocolWebSocket
			}
		}
	}
	return schemas.ProtocolWebSocket
}

func (h *AsyncAPIHandler) Serialize(registry.ExportInput, registry.SerializeOptions) (string, error) {
	return "", errUnsupported(h.Format())
}
