package inference

import (
	"encoding/json"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/apiscribe/apiscribe/api/schemas"
)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// InferSchema builds a structural type descriptor from one decoded JSON
// sample. Numbers arrive as json.Number so integer and number stay
// distinguishable; objects recurse per property, collecting required as the
// keys present in this sample; arrays infer from the first non-null element.
func InferSchema(value interface{}) *schemas.Schema {
	switch v := value.(type) {
	case nil:
		return &schemas.Schema{Type: schemas.TypeNull}
	case bool:
		return &schemas.Schema{Type: schemas.TypeBoolean}
	case json.Number:
		if isIntegerNumber(v) {
			return &schemas.Schema{Type: schemas.TypeInteger}
		}
		return &schemas.Schema{Type: schemas.TypeNumber}
	case float64:
		// Callers that decode without UseNumber still get a sane answer.
		if v == float64(int64(v)) {
			return &schemas.Schema{Type: schemas.TypeInteger}
		}
		return &schemas.Schema{Type: schemas.TypeNumber}
	case string:
		s := &schemas.Schema{Type: schemas.TypeString}
		if format := classifyString(v); format != "" {
			s.Format = format
		}
		return s
	case map[string]interface{}:
		s := &schemas.Schema{
			Type:       schemas.TypeObject,
			Properties: make(map[string]*schemas.Schema, len(v)),
		}
		for key, val := range v {
			s.Properties[key] = InferSchema(val)
			s.Required = append(s.Required, key)
		}
		sortStrings(s.Required)
		return s
	case []interface{}:
		s := &schemas.Schema{Type: schemas.TypeArray}
		for _, elem := range v {
			if elem == nil {
				continue
			}
			s.Items = InferSchema(elem)
			break
		}
		if s.Items == nil {
			// Empty (or all-null) arrays default to string items.
			s.Items = &schemas.Schema{Type: schemas.TypeString}
		}
		return s
	default:
		return &schemas.Schema{Type: schemas.TypeNull}
	}
}

func isIntegerNumber(n json.Number) bool {
	if _, err := n.Int64(); err == nil {
		return !strings.ContainsAny(n.String(), ".eE")
	}
	return false
}

// classifyString assigns a string format by regex, in priority order:
// email, date-time, uuid, uri. First match wins.
func classifyString(s string) string {
	if emailPattern.MatchString(s) {
		return schemas.FormatEmail
	}
	if isDateTime(s) {
		return schemas.FormatDateTime
	}
	if len(s) == 36 {
		if _, err := uuid.Parse(s); err == nil {
			return schemas.FormatUUID
		}
	}
	if isURI(s) {
		return schemas.FormatURI
	}
	return ""
}

func isDateTime(s string) bool {
	if len(s) < 10 {
		return false
	}
	if _, err := time.Parse(time.RFC3339, s); err == nil {
		return true
	}
	_, err := time.Parse("2006-01-02T15:04:05", s)
	return err == nil
}

func isURI(s string) bool {
	if !strings.Contains(s, "://") {
		return false
	}
	u, err := url.Parse(s)
	return err == nil && u.Scheme != "" && u.Host != ""
}

// InferValueType maps a raw query-string value to its scalar schema type.
// Values stay strings on the wire; this is a best-effort classification.
func InferValueType(value string) schemas.SchemaType {
	if value == "" {
		return schemas.TypeString
	}
	if value == "true" || value == "false" {
		return schemas.TypeBoolean
	}
	if numericSegment.MatchString(strings.TrimPrefix(value, "-")) {
		return schemas.TypeInteger
	}
	if _, err := json.Number(value).Float64(); err == nil && strings.Contains(value, ".") {
		return schemas.TypeNumber
	}
	return schemas.TypeString
}
