package schemas

import (
	"time"
)

// -- HAR (HTTP Archive) Schemas --

// HAR is the root object of the HTTP Archive format, which represents a log of
// HTTP requests and responses. See http://www.softwareishard.com/blog/har-1-2-spec/
// for the full specification.
type HAR struct {
	Log HARLog `json:"log"`
}

// HARLog is the main container within a HAR file, holding metadata about the
// creator, pages, and a list of all network entries.
type HARLog struct {
	Version string     `json:"version"` // The version of the HAR format.
	Creator HARCreator `json:"creator"` // Information about the tool that created the HAR.
	Pages   []HARPage  `json:"pages,omitempty"`
	Entries []HAREntry `json:"entries"` // All recorded HTTP request/response pairs.
}

// HARCreator provides information about the application that generated the HAR file.
type HARCreator struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// HARPage represents a single page that was loaded during the recording session.
type HARPage struct {
	StartedDateTime time.Time `json:"startedDateTime"`
	ID              string    `json:"id"`
	Title           string    `json:"title"`
}

// HAREntry represents a single HTTP request-response pair recorded in the HAR.
type HAREntry struct {
	Pageref         string      `json:"pageref,omitempty"`
	StartedDateTime time.Time   `json:"startedDateTime"`
	Time            float64     `json:"time"` // Total time for the request-response cycle, in ms.
	Request         HARRequest  `json:"request"`
	Response        HARResponse `json:"response"`
}

// HARRequest contains detailed information about a single HTTP request,
// including the method, URL, headers, and any posted data.
type HARRequest struct {
	Method      string       `json:"method"`
	URL         string       `json:"url"`
	HTTPVersion string       `json:"httpVersion"`
	Cookies     []HARCookie  `json:"cookies"`
	Headers     []NVPair     `json:"headers"`
	QueryString []NVPair     `json:"queryString"`
	PostData    *HARPostData `json:"postData,omitempty"`
	HeadersSize int64        `json:"headersSize"`
	BodySize    int64        `json:"bodySize"`
}

// HARResponse contains detailed information about an HTTP response, including
// the status code, headers, and content.
type HARResponse struct {
	Status      int         `json:"status"`
	StatusText  string      `json:"statusText"`
	HTTPVersion string      `json:"httpVersion"`
	Cookies     []HARCookie `json:"cookies"`
	Headers     []NVPair    `json:"headers"`
	Content     HARContent  `json:"content"`
	RedirectURL string      `json:"redirectURL"`
	HeadersSize int64       `json:"headersSize"`
	BodySize    int64       `json:"bodySize"`
}

// NVPair represents a simple name-value pair, used for headers, query strings,
// and form parameters.
type NVPair struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// HARCookie represents an HTTP cookie as defined in the HAR specification.
// It uses a string for the 'Expires' field to maintain strict conformance.
type HARCookie struct {
	Name     string `json:"name"`
	Value    string `json:"value"`
	Path     string `json:"path,omitempty"`
	Domain   string `json:"domain,omitempty"`
	Expires  string `json:"expires,omitempty"`
	HTTPOnly bool   `json:"httpOnly,omitempty"`
	Secure   bool   `json:"secure,omitempty"`
}

// HARPostData contains information about the data sent in an HTTP request body.
type HARPostData struct {
	MimeType string   `json:"mimeType"`
	Text     string   `json:"text"`
	Params   []NVPair `json:"params,omitempty"`
}

// HARContent describes the content of an HTTP response body.
type HARContent struct {
	Size     int64  `json:"size"`
	MimeType string `json:"mimeType"`
	Text     string `json:"text,omitempty"`
	Encoding string `json:"encoding,omitempty"` // e.g. "base64" for binary payloads.
}

// NewHAR is a factory function that creates and initializes a new HAR object
// with default values for the log version and creator information.
func NewHAR() *HAR {
	return &HAR{
		Log: HARLog{
			Version: "1.2",
			Creator: HARCreator{
				Name:    "apiscribe",
				Version: "1.0",
			},
			Entries: make([]HAREntry, 0),
		},
	}
}
