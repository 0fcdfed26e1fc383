package registry

// ErrorCode is a string type used for structured error reporting across the
// import/export boundary. Using a custom type ensures that only predefined
// constants can be used where an ErrorCode is expected.
type ErrorCode string

const (
	// ErrCodeNoHandler indicates no registered handler recognized the content.
	ErrCodeNoHandler ErrorCode = "NO_HANDLER"
	// ErrCodeParseError indicates a handler failed (or panicked) while
	// parsing; the raw failure never crosses the registry boundary.
	ErrCodeParseError ErrorCode = "PARSE_ERROR"
	// ErrCodeValidationError carries handler-specific schema violations.
	ErrCodeValidationError ErrorCode = "VALIDATION_ERROR"
	// ErrCodeUnsupported indicates the handler does not implement the
	// requested direction (e.g. serialize on an import-only format).
	ErrCodeUnsupported ErrorCode = "UNSUPPORTED_OPERATION"
	// ErrCodeCanceled indicates the caller's context was canceled before
	// results were handed to persistence.
	ErrCodeCanceled ErrorCode = "CANCELED"
	// ErrCodePersistence indicates the store collaborator rejected the
	// parsed results.
	ErrCodePersistence ErrorCode = "PERSISTENCE_ERROR"
)

// Error is one structured failure in an import, export, or validation result.
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// Error implements the error interface so structured errors can still be
// wrapped and logged like ordinary ones.
func (e Error) Error() string { return string(e.Code) + ": " + e.Message }
