package schemas

import "time"

// -- Traffic Capture --

// CaptureEntryType tags a capture log entry with what was observed.
type CaptureEntryType string

const (
	CaptureRequest   CaptureEntryType = "request"
	CaptureResponse  CaptureEntryType = "response"
	CaptureWebSocket CaptureEntryType = "websocket"
	CaptureSSE       CaptureEntryType = "sse"
	CaptureScript    CaptureEntryType = "script"
	CaptureError     CaptureEntryType = "error"
)

// CaptureEntry is one record in the ordered, append-only traffic log that
// feeds the inference engine. Response entries correlate to their request
// via RequestID.
type CaptureEntry struct {
	ID        string            `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	Type      CaptureEntryType  `json:"type"`
	Protocol  Protocol          `json:"protocol,omitempty"`
	Method    string            `json:"method,omitempty"`
	URL       string            `json:"url,omitempty"`
	Headers   map[string]string `json:"headers,omitempty"`
	Body      string            `json:"body,omitempty"`
	Status    int               `json:"status,omitempty"`
	RequestID string            `json:"requestId,omitempty"`
}
