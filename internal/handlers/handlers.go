// Package handlers contains the pluggable format handler implementations
// registered with the format handler registry. Each handler is a closed
// unit implementing the registry.Handler contract: a cheap structural
// sniff, validation, parse into the canonical model, and (where the format
// supports it) serialization back out.
package handlers

import (
	"sort"

	jsoniter "github.com/json-iterator/go"

	"github.com/apiscribe/apiscribe/internal/registry"
)

// json is the shared fast JSON codec for handler hot paths.
var json = jsoniter.ConfigCompatibleWithStandardLibrary

// errUnsupported builds the structured error import-only handlers return
// from Serialize.
func errUnsupported(format string) error {
	return registry.Error{
		Code:    registry.ErrCodeUnsupported,
		Message: "format " + format + " does not support export",
	}
}

// invalid is a small helper for building a failed ValidationResult.
func invalid(code registry.ErrorCode, msgs ...string) registry.ValidationResult {
	result := registry.ValidationResult{Valid: false}
	for _, m := range msgs {
		result.Errors = append(result.Errors, registry.Error{Code: code, Message: m})
	}
	return result
}

var valid = registry.ValidationResult{Valid: true}

// sortedMapKeys makes walks over decoded YAML/JSON maps deterministic.
func sortedMapKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
