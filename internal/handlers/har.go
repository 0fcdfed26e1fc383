package handlers

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/apiscribe/apiscribe/api/schemas"
	"github.com/apiscribe/apiscribe/internal/registry"
)

// HARHandler imports HAR 1.2 archives as collections and exports
// collections back out as HAR logs. HAR is also the bridge into traffic
// inference: ToCaptureEntries converts an archive into capture entries.
type HARHandler struct{}

func NewHARHandler() *HARHandler { return &HARHandler{} }

func (h *HARHandler) Format() string { return "har" }

func (h *HARHandler) CanExport() bool { return true }

func (h *HARHandler) CanImport(content string) bool {
	return strings.Contains(content, `"log"`) && strings.Contains(content, `"entries"`)
}

func (h *HARHandler) Validate(content string) registry.ValidationResult {
	var har schemas.HAR
	if err := json.UnmarshalFromString(content, &har); err != nil {
		return invalid(registry.ErrCodeParseError, err.Error())
	}
	if har.Log.Version == "" {
		return invalid(registry.ErrCodeValidationError, "log.version is required")
	}
	return valid
}

func (h *HARHandler) Parse(content string, opts registry.ParseOptions) (*registry.ParseResult, error) {
	har, err := h.decode(content)
	if err != nil {
		return nil, err
	}
	name := opts.CollectionName
	if name == "" {
		name = "HAR import"
		if har.Log.Creator.Name != "" {
			name = "HAR import (" + har.Log.Creator.Name + ")"
		}
	}
	col := schemas.Collection{Name: name}
	for _, entry := range har.Log.Entries {
		req := schemas.Request{
			Name:     entry.Request.Method + " " + entry.Request.URL,
			Protocol: schemas.ProtocolREST,
			Method:   entry.Request.Method,
			URL:      entry.Request.URL,
		}
		for _, hdr := range entry.Request.Headers {
			req.Headers = append(req.Headers, schemas.Header{Name: hdr.Name, Value: hdr.Value})
		}
		for _, q := range entry.Request.QueryString {
			req.QueryParams = append(req.QueryParams, schemas.Parameter{Name: q.Name, In: "query", Value: q.Value})
		}
		if pd := entry.Request.PostData; pd != nil && pd.Text != "" {
			bodyType := schemas.BodyJSON
			if !strings.Contains(pd.MimeType, "json") {
				bodyType = schemas.BodyForm
			}
			req.Body = &schemas.Body{Type: bodyType, Content: pd.Text}
		}
		col.Requests = append(col.Requests, req)
	}

	result := &registry.ParseResult{Collections: []schemas.Collection{col}}
	col.WalkRequests(func(r *schemas.Request) { result.Requests = append(result.Requests, *r) })
	return result, nil
}

func (h *HARHandler) decode(content string) (*schemas.HAR, error) {
	var har schemas.HAR
	if err := json.UnmarshalFromString(content, &har); err != nil {
		return nil, fmt.Errorf("invalid HAR archive: %w", err)
	}
	return &har, nil
}

// ToCaptureEntries flattens an archive into the ordered request/response
// entry pairs the inference engine consumes. Entry ids correlate each
// response to its request.
func (h *HARHandler) ToCaptureEntries(content string) ([]schemas.CaptureEntry, error) {
	har, err := h.decode(content)
	if err != nil {
		return nil, err
	}
	entries := make([]schemas.CaptureEntry, 0, len(har.Log.Entries)*2)
	for i, e := range har.Log.Entries {
		id := "har-" + strconv.Itoa(i)
		reqEntry := schemas.CaptureEntry{
			ID:        id,
			Timestamp: e.StartedDateTime,
			Type:      schemas.CaptureRequest,
			Method:    e.Request.Method,
			URL:       e.Request.URL,
			Headers:   nvToMap(e.Request.Headers),
		}
		if e.Request.PostData != nil {
			reqEntry.Body = e.Request.PostData.Text
		}
		entries = append(entries, reqEntry)

		body := e.Response.Content.Text
		if e.Response.Content.Encoding == "base64" {
			if decoded, err := base64.StdEncoding.DecodeString(body); err == nil {
				body = string(decoded)
			}
		}
		entries = append(entries, schemas.CaptureEntry{
			ID:        id + "-resp",
			Timestamp: e.StartedDateTime.Add(time.Duration(e.Time) * time.Millisecond),
			Type:      schemas.CaptureResponse,
			Status:    e.Response.Status,
			Headers:   nvToMap(e.Response.Headers),
			Body:      body,
			RequestID: id,
		})
	}
	return entries, nil
}

func nvToMap(pairs []schemas.NVPair) map[string]string {
	if len(pairs) == 0 {
		return nil
	}
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		out[p.Name] = p.Value
	}
	return out
}

func (h *HARHandler) Serialize(input registry.ExportInput, opts registry.SerializeOptions) (string, error) {
	if len(input.Collections) == 0 {
		return "", fmt.Errorf("har export needs a collection")
	}
	har := schemas.NewHAR()
	input.Collections[0].WalkRequests(func(req *schemas.Request) {
		entry := schemas.HAREntry{
			StartedDateTime: time.Now().UTC(),
			Request: schemas.HARRequest{
				Method:      req.Method,
				URL:         req.URL,
				HTTPVersion: "HTTP/1.1",
				Cookies:     []schemas.HARCookie{},
				Headers:     headersToNV(req.Headers),
				QueryString: paramsToNV(req.QueryParams),
				HeadersSize: -1,
				BodySize:    -1,
			},
			Response: schemas.HARResponse{
				HTTPVersion: "HTTP/1.1",
				Cookies:     []schemas.HARCookie{},
				Headers:     []schemas.NVPair{},
				HeadersSize: -1,
				BodySize:    -1,
			},
		}
		if req.Body != nil && req.Body.Content != "" {
			entry.Request.PostData = &schemas.HARPostData{
				MimeType: string(req.Body.Type),
				Text:     req.Body.Content,
			}
		}
		har.Log.Entries = append(har.Log.Entries, entry)
	})
	if opts.Pretty {
		data, err := json.MarshalIndent(har, "", "  ")
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	return json.MarshalToString(har)
}

func headersToNV(headers []schemas.Header) []schemas.NVPair {
	out := make([]schemas.NVPair, 0, len(headers))
	for _, h := range headers {
		out = append(out, schemas.NVPair{Name: h.Name, Value: h.Value})
	}
	return out
}

func paramsToNV(params []schemas.Parameter) []schemas.NVPair {
	out := make([]schemas.NVPair, 0, len(params))
	for _, p := range params {
		out = append(out, schemas.NVPair{Name: p.Name, Value: p.Value})
	}
	return out
}
