package schemas

// SchemaType enumerates the JSON-Schema-like type tags used by inferred and
// declared type descriptors.
type SchemaType string

const (
	TypeString  SchemaType = "string"
	TypeInteger SchemaType = "integer"
	TypeNumber  SchemaType = "number"
	TypeBoolean SchemaType = "boolean"
	TypeObject  SchemaType = "object"
	TypeArray   SchemaType = "array"
	TypeNull    SchemaType = "null"
)

// String formats recognized by the inference engine, in detection priority
// order.
const (
	FormatEmail    = "email"
	FormatDateTime = "date-time"
	FormatUUID     = "uuid"
	FormatURI      = "uri"
)

// Schema is a structural type descriptor, either inferred from traffic
// samples or declared by an imported specification.
//
// Object schemas carry Properties plus the Required names present in every
// merged sample. Array schemas carry a single Items descriptor, itself
// possibly merged from element samples.
type Schema struct {
	Type       SchemaType         `json:"type"`
	Format     string             `json:"format,omitempty"`
	Properties map[string]*Schema `json:"properties,omitempty"`
	Required   []string           `json:"required,omitempty"`
	Items      *Schema            `json:"items,omitempty"`
	Example    interface{}        `json:"example,omitempty"`
}

// Clone returns a deep copy. Inference hands merged schemas to the assembler
// by value, so downstream mutation cannot corrupt the inference result.
func (s *Schema) Clone() *Schema {
	if s == nil {
		return nil
	}
	out := &Schema{
		Type:    s.Type,
		Format:  s.Format,
		Example: s.Example,
		Items:   s.Items.Clone(),
	}
	if s.Properties != nil {
		out.Properties = make(map[string]*Schema, len(s.Properties))
		for k, v := range s.Properties {
			out.Properties[k] = v.Clone()
		}
	}
	if s.Required != nil {
		out.Required = append([]string(nil), s.Required...)
	}
	return out
}
