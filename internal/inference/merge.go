package inference

import (
	"fmt"
	"sort"

	"github.com/apiscribe/apiscribe/api/schemas"
)

// Diagnostic is a non-fatal observation recorded during inference, such as
// an irreconcilable primitive-type mismatch resolved by widening.
type Diagnostic struct {
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// DiagMergeConflict marks a schema merge that hit a primitive-type mismatch.
// The merge widens instead of failing; the diagnostic exists for
// observability only.
const DiagMergeConflict = "MERGE_CONFLICT"

// MergeSchemas combines two independently inferred descriptors for the same
// logical value into one conservative descriptor.
//
// The widening lattice is: null fits under any scalar, integer fits under
// number, and any remaining conflict resolves to the earlier-seen type with
// a MERGE_CONFLICT diagnostic. Object merges union properties and intersect
// required; array merges recurse into items; a format survives only when
// both sides agree on it.
func MergeSchemas(a, b *schemas.Schema) (*schemas.Schema, []Diagnostic) {
	return mergeSchemas(a, b, "")
}

func mergeSchemas(a, b *schemas.Schema, fieldPath string) (*schemas.Schema, []Diagnostic) {
	switch {
	case a == nil:
		return b.Clone(), nil
	case b == nil:
		return a.Clone(), nil
	}

	// null fits under anything: adopt the non-null side wholesale.
	if a.Type == schemas.TypeNull {
		return b.Clone(), nil
	}
	if b.Type == schemas.TypeNull {
		return a.Clone(), nil
	}

	if a.Type != b.Type {
		// integer to number is a lossless widening, not a conflict.
		if isNumeric(a.Type) && isNumeric(b.Type) {
			merged := &schemas.Schema{Type: schemas.TypeNumber, Example: pickExample(a, b)}
			return merged, nil
		}
		// Irreconcilable mismatch: widen to the earlier-seen type, record
		// the conflict, never fail the batch.
		diag := Diagnostic{
			Code:    DiagMergeConflict,
			Field:   fieldPath,
			Message: fmt.Sprintf("type mismatch: %s vs %s, keeping %s", a.Type, b.Type, a.Type),
		}
		return a.Clone(), []Diagnostic{diag}
	}

	merged := &schemas.Schema{Type: a.Type, Example: pickExample(a, b)}
	var diags []Diagnostic

	switch a.Type {
	case schemas.TypeObject:
		merged.Properties = make(map[string]*schemas.Schema, len(a.Properties))
		for name, sa := range a.Properties {
			if sb, ok := b.Properties[name]; ok {
				childPath := joinField(fieldPath, name)
				child, childDiags := mergeSchemas(sa, sb, childPath)
				merged.Properties[name] = child
				diags = append(diags, childDiags...)
				continue
			}
			merged.Properties[name] = sa.Clone()
		}
		for name, sb := range b.Properties {
			if _, ok := a.Properties[name]; !ok {
				merged.Properties[name] = sb.Clone()
			}
		}
		// A field stays required only when required in both samples.
		merged.Required = intersect(a.Required, b.Required)
	case schemas.TypeArray:
		items, childDiags := mergeSchemas(a.Items, b.Items, fieldPath+"[]")
		merged.Items = items
		diags = append(diags, childDiags...)
	default:
		if a.Format == b.Format {
			merged.Format = a.Format
		}
	}
	return merged, diags
}

func isNumeric(t schemas.SchemaType) bool {
	return t == schemas.TypeInteger || t == schemas.TypeNumber
}

func pickExample(a, b *schemas.Schema) interface{} {
	if a.Example != nil {
		return a.Example
	}
	return b.Example
}

func intersect(a, b []string) []string {
	if len(a) == 0 || len(b) == 0 {
		return nil
	}
	inB := make(map[string]bool, len(b))
	for _, s := range b {
		inB[s] = true
	}
	var out []string
	for _, s := range a {
		if inB[s] {
			out = append(out, s)
		}
	}
	sortStrings(out)
	return out
}

func joinField(base, name string) string {
	if base == "" {
		return name
	}
	return base + "." + name
}

func sortStrings(s []string) {
	sort.Strings(s)
}
