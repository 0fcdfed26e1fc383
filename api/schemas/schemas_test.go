package schemas

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestRequestPlaceholders(t *testing.T) {
	req := Request{URL: "https://api.example.com/users/{userId}/orders/{orderId}"}
	assert.Equal(t, []string{"userId", "orderId"}, req.Placeholders())

	noParams := Request{URL: "https://api.example.com/users"}
	assert.Empty(t, noParams.Placeholders())
}

func TestRequestValidate(t *testing.T) {
	req := Request{
		URL: "https://api.example.com/users/{userId}",
		PathParams: []Parameter{
			{Name: "userId", In: "path", Required: true},
		},
	}
	require.NoError(t, req.Validate())

	undeclared := Request{URL: "https://api.example.com/users/{userId}"}
	err := undeclared.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"userId"`)
}

func TestCollectionWalkRequests(t *testing.T) {
	col := Collection{
		Requests: []Request{{Name: "a"}, {Name: "b"}},
		Folders: []Collection{
			{
				Requests: []Request{{Name: "c"}},
				Folders: []Collection{
					{Requests: []Request{{Name: "d"}}},
				},
			},
			{Requests: []Request{{Name: "e"}}},
		},
	}
	var names []string
	col.WalkRequests(func(r *Request) { names = append(names, r.Name) })
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, names, "depth-first, declaration order")
}

func TestSchemaClone(t *testing.T) {
	original := &Schema{
		Type:     TypeObject,
		Required: []string{"id"},
		Properties: map[string]*Schema{
			"id":   {Type: TypeInteger},
			"tags": {Type: TypeArray, Items: &Schema{Type: TypeString, Format: FormatUUID}},
		},
	}
	clone := original.Clone()
	require.NotNil(t, clone)

	clone.Required[0] = "changed"
	clone.Properties["id"].Type = TypeString
	clone.Properties["tags"].Items.Format = ""

	assert.Equal(t, []string{"id"}, original.Required)
	assert.Equal(t, TypeInteger, original.Properties["id"].Type)
	assert.Equal(t, FormatUUID, original.Properties["tags"].Items.Format)

	var nilSchema *Schema
	assert.Nil(t, nilSchema.Clone())
}

func newOrderedSpec() *Specification {
	spec := &Specification{
		OpenAPI: "3.0.3",
		Info:    Info{Title: "Ordered API", Version: "1.0.0"},
		Paths:   NewPathMap(),
	}
	for _, path := range []string{"/zebras", "/apples", "/middle/{id}"} {
		spec.Paths.Set(path, &PathItem{
			Get: &Endpoint{Responses: map[string]*Response{"200": {Description: "OK"}}},
		})
	}
	return spec
}

func TestPathMapJSONRoundTripPreservesOrder(t *testing.T) {
	spec := newOrderedSpec()

	data, err := json.Marshal(spec)
	require.NoError(t, err)

	// Insertion order survives serialization, not lexical order.
	zebras := strings.Index(string(data), "/zebras")
	apples := strings.Index(string(data), "/apples")
	middle := strings.Index(string(data), "/middle/{id}")
	assert.True(t, zebras < apples && apples < middle, "serialized order must match insertion order")

	var decoded Specification
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, []string{"/zebras", "/apples", "/middle/{id}"}, decoded.Paths.Keys())
	require.NotNil(t, decoded.Paths.Get("/apples").Get)
	assert.Equal(t, "OK", decoded.Paths.Get("/apples").Get.Responses["200"].Description)
}

func TestPathMapYAMLRoundTripPreservesOrder(t *testing.T) {
	spec := newOrderedSpec()

	data, err := yaml.Marshal(spec)
	require.NoError(t, err)

	var decoded Specification
	require.NoError(t, yaml.Unmarshal(data, &decoded))
	assert.Equal(t, []string{"/zebras", "/apples", "/middle/{id}"}, decoded.Paths.Keys())
}

func TestPathItemOperations(t *testing.T) {
	item := &PathItem{}
	item.SetOperation("post", &Endpoint{OperationID: "create"})
	item.SetOperation("get", &Endpoint{OperationID: "list"})
	item.SetOperation("bogus", &Endpoint{OperationID: "ignored"})

	ops := item.Operations()
	require.Len(t, ops, 2)
	assert.Equal(t, "get", ops[0].Method)
	assert.Equal(t, "post", ops[1].Method)
	assert.Nil(t, item.Operation("bogus"))
}

func TestNewHAR(t *testing.T) {
	har := NewHAR()
	assert.Equal(t, "1.2", har.Log.Version)
	assert.NotEmpty(t, har.Log.Creator.Name)
	assert.NotNil(t, har.Log.Entries)
}
