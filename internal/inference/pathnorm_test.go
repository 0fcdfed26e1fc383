package inference

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePath(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"/users/123", "/users/{id}"},
		{"/users/123/orders/456", "/users/{id}/orders/{id}"},
		{"/users/550e8400-e29b-41d4-a716-446655440000", "/users/{id}"},
		{"/users/alice", "/users/alice"},
		{"/users/v2/items", "/users/v2/items"},
		{"/health", "/health"},
		{"/users/", "/users"},
		{"users/7", "/users/{id}"},
		{"/", "/"},
		{"", "/"},
		// Hex that is not 8-4-4-4-12 stays literal.
		{"/users/deadbeef", "/users/deadbeef"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, NormalizePath(tc.in), "input %q", tc.in)
	}
}

func TestOperationID(t *testing.T) {
	assert.Equal(t, "getUsers", operationID("GET", "/users"))
	assert.Equal(t, "getUsersById", operationID("GET", "/users/{id}"))
	assert.Equal(t, "postUsersByIdOrders", operationID("POST", "/users/{id}/orders"))
	assert.Equal(t, "deleteApiKeys", operationID("DELETE", "/api-keys"))
	assert.Equal(t, "get", operationID("GET", "/"))
}

func TestTagFor(t *testing.T) {
	assert.Equal(t, "users", tagFor("/users/{id}"))
	assert.Equal(t, "orders", tagFor("/{id}/orders"))
	assert.Equal(t, "root", tagFor("/"))
	assert.Equal(t, "root", tagFor("/{id}"))
}
