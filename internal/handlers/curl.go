package handlers

import (
	"fmt"
	"strings"

	"github.com/apiscribe/apiscribe/api/schemas"
	"github.com/apiscribe/apiscribe/internal/registry"
)

// CurlHandler imports and exports single requests as curl command lines.
type CurlHandler struct{}

func NewCurlHandler() *CurlHandler { return &CurlHandler{} }

func (h *CurlHandler) Format() string { return "curl" }

func (h *CurlHandler) CanExport() bool { return true }

func (h *CurlHandler) CanImport(content string) bool {
	return strings.HasPrefix(strings.TrimSpace(content), "curl ")
}

func (h *CurlHandler) Validate(content string) registry.ValidationResult {
	if !h.CanImport(content) {
		return invalid(registry.ErrCodeValidationError, "content is not a curl command")
	}
	if _, err := h.parseCommand(content); err != nil {
		return invalid(registry.ErrCodeValidationError, err.Error())
	}
	return valid
}

func (h *CurlHandler) Parse(content string, opts registry.ParseOptions) (*registry.ParseResult, error) {
	req, err := h.parseCommand(content)
	if err != nil {
		return nil, err
	}
	name := opts.CollectionName
	if name == "" {
		name = "Imported curl"
	}
	return &registry.ParseResult{
		Collections: []schemas.Collection{{Name: name, Requests: []schemas.Request{*req}}},
		Requests:    []schemas.Request{*req},
	}, nil
}

func (h *CurlHandler) parseCommand(content string) (*schemas.Request, error) {
	tokens := splitShellWords(strings.TrimSpace(content))
	if len(tokens) < 2 || tokens[0] != "curl" {
		return nil, fmt.Errorf("not a curl command")
	}

	req := &schemas.Request{Method: "GET", Protocol: schemas.ProtocolREST}
	for i := 1; i < len(tokens); i++ {
		tok := tokens[i]
		next := func() string {
			if i+1 < len(tokens) {
				i++
				return tokens[i]
			}
			return ""
		}
		switch tok {
		case "-X", "--request":
			req.Method = strings.ToUpper(next())
		case "-H", "--header":
			if name, value, ok := strings.Cut(next(), ":"); ok {
				req.Headers = append(req.Headers, schemas.Header{
					Name:  strings.TrimSpace(name),
					Value: strings.TrimSpace(value),
				})
			}
		case "-d", "--data", "--data-raw", "--data-binary", "--data-ascii":
			data := next()
			bodyType := schemas.BodyForm
			if strings.HasPrefix(strings.TrimSpace(data), "{") || strings.HasPrefix(strings.TrimSpace(data), "[") {
				bodyType = schemas.BodyJSON
			}
			req.Body = &schemas.Body{Type: bodyType, Content: data}
			if req.Method == "GET" {
				req.Method = "POST"
			}
		case "-u", "--user":
			if user, pass, ok := strings.Cut(next(), ":"); ok {
				req.Auth = &schemas.Auth{Type: schemas.AuthBasic, Username: user, Password: pass}
			}
		case "--url":
			req.URL = next()
		case "-s", "-k", "-v", "-L", "--silent", "--insecure", "--verbose", "--location", "--compressed":
			// No-op transfer flags.
		case "-o", "--output", "-A", "--user-agent", "-b", "--cookie", "-m", "--max-time":
			next() // flag takes a value we do not model
		default:
			if req.URL == "" && !strings.HasPrefix(tok, "-") {
				req.URL = tok
			}
		}
	}
	if req.URL == "" {
		return nil, fmt.Errorf("curl command has no URL")
	}
	req.Name = req.Method + " " + req.URL
	return req, nil
}

func (h *CurlHandler) Serialize(input registry.ExportInput, _ registry.SerializeOptions) (string, error) {
	req := input.Request
	if req == nil {
		if len(input.Collections) == 0 || len(input.Collections[0].Requests) == 0 {
			return "", fmt.Errorf("curl export needs a request")
		}
		req = &input.Collections[0].Requests[0]
	}
	var b strings.Builder
	b.WriteString("curl")
	if req.Method != "" && req.Method != "GET" {
		fmt.Fprintf(&b, " -X %s", req.Method)
	}
	for _, hdr := range req.Headers {
		fmt.Fprintf(&b, " -H %s", shellQuote(hdr.Name+": "+hdr.Value))
	}
	if req.Auth != nil && req.Auth.Type == schemas.AuthBasic {
		fmt.Fprintf(&b, " -u %s", shellQuote(req.Auth.Username+":"+req.Auth.Password))
	}
	if req.Body != nil && req.Body.Content != "" {
		fmt.Fprintf(&b, " -d %s", shellQuote(req.Body.Content))
	}
	fmt.Fprintf(&b, " %s", shellQuote(req.URL))
	return b.String(), nil
}

// splitShellWords tokenizes a command line honoring single and double
// quotes. It is intentionally not a full shell: no expansion, no escapes
// beyond the quote pairs curl exports actually contain.
func splitShellWords(s string) []string {
	var (
		tokens  []string
		current strings.Builder
		quote   rune
		inWord  bool
	)
	for _, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				current.WriteRune(r)
			}
		case r == '\'' || r == '"':
			quote = r
			inWord = true
		case r == ' ' || r == '\t' || r == '\n' || r == '\\':
			if inWord {
				tokens = append(tokens, current.String())
				current.Reset()
				inWord = false
			}
		default:
			current.WriteRune(r)
			inWord = true
		}
	}
	if inWord {
		tokens = append(tokens, current.String())
	}
	return tokens
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
