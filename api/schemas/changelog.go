package schemas

import "time"

// -- Specification Changelog --

// ChangeType classifies the direction of a specification delta.
type ChangeType string

const (
	ChangeAdded   ChangeType = "added"
	ChangeRemoved ChangeType = "removed"
	ChangeChanged ChangeType = "changed"
)

// ChangeCategory names the part of the specification a change touches.
type ChangeCategory string

const (
	CategoryEndpoint  ChangeCategory = "endpoint"
	CategoryParameter ChangeCategory = "parameter"
	CategoryResponse  ChangeCategory = "response"
	CategorySchema    ChangeCategory = "schema"
	CategoryAuth      ChangeCategory = "auth"
)

// Change is a single classified specification delta. Changes are produced
// once per diff invocation and are immutable afterwards; persistence is a
// collaborator concern.
type Change struct {
	Type        ChangeType     `json:"type"`
	Category    ChangeCategory `json:"category"`
	Path        string         `json:"path,omitempty"`
	Method      string         `json:"method,omitempty"`
	Description string         `json:"description"`
	Breaking    bool           `json:"breaking"`
}

// Changelog is the full output of one diff invocation.
type Changelog struct {
	Version string    `json:"version"` // the new specification's version
	Date    time.Time `json:"date"`
	Changes []Change  `json:"changes"`
}
