package inference

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/apiscribe/apiscribe/api/schemas"
)

// AuthScheme is one distinct authentication mechanism observed in traffic,
// recorded once with the set of endpoint keys it was seen on.
type AuthScheme struct {
	Type         schemas.AuthType `json:"type"`
	Scheme       string           `json:"scheme,omitempty"`       // "bearer" or "basic" for http auth
	BearerFormat string           `json:"bearerFormat,omitempty"` // "JWT" when the token decodes as one
	HeaderName   string           `json:"headerName,omitempty"`   // populated for apiKey schemes
	Endpoints    []string         `json:"endpoints"`
}

// key returns the identity under which distinct observations collapse.
func (a *AuthScheme) key() string {
	return string(a.Type) + "/" + a.HeaderName
}

// apiKeyHeaders are the header names commonly used to carry API keys.
// Matched case-insensitively.
var apiKeyHeaders = map[string]bool{
	"x-api-key":    true,
	"x-apikey":     true,
	"api-key":      true,
	"apikey":       true,
	"x-auth-token": true,
	"x-access-key": true,
}

// detectAuth inspects one request's headers and returns the auth scheme in
// use, if any, plus the lowercase names of the headers that carried it.
// Those headers are excluded from common-header statistics and parameter
// extraction.
func detectAuth(headers map[string]string) (*AuthScheme, map[string]bool) {
	authHeaders := make(map[string]bool)
	var scheme *AuthScheme

	for name, value := range headers {
		lower := strings.ToLower(name)
		switch {
		case lower == "authorization":
			authHeaders[lower] = true
			switch {
			case strings.HasPrefix(value, "Bearer "):
				scheme = &AuthScheme{Type: schemas.AuthBearer, Scheme: "bearer"}
				if isJWT(strings.TrimPrefix(value, "Bearer ")) {
					scheme.BearerFormat = "JWT"
				}
			case strings.HasPrefix(value, "Basic "):
				scheme = &AuthScheme{Type: schemas.AuthBasic, Scheme: "basic"}
			}
		case apiKeyHeaders[lower]:
			authHeaders[lower] = true
			if scheme == nil {
				scheme = &AuthScheme{Type: schemas.AuthAPIKey, HeaderName: name}
			}
		}
	}
	return scheme, authHeaders
}

// isJWT reports whether the bearer token parses structurally as a JWT. The
// signature is deliberately not verified; inference only classifies.
func isJWT(token string) bool {
	parser := jwt.NewParser()
	_, _, err := parser.ParseUnverified(strings.TrimSpace(token), jwt.MapClaims{})
	return err == nil
}
