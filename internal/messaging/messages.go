package messaging

import (
	"github.com/alvmarrod/profile-weaver/internal/storage"
)

// Message types
const (
	TypeScrapeBatch   = "SCRAPE_BATCH"
	TypeExportCSV     = "EXPORT_CSV"
	TypeClearScraped  = "CLEAR_SCRAPED"
	TypeGetCount      = "GET_COUNT"
	TypeGetProxy      = "GET_PROXY"
	TypeSaveProxy     = "SAVE_PROXY"
	TypeSaveUploadURL = "SAVE_UPLOAD_URL"
	TypeGetUploadURL  = "GET_UPLOAD_URL"
	TypeStartScraping = "START_SCRAPING"
	TypeStopScraping  = "STOP_SCRAPING"
	TypeFlush         = "FLUSH"
)

// Response statuses
const (
	StatusOK      = "ok"
	StatusError   = "error"
	StatusStarted = "started"
	StatusStopped = "stopped"
	StatusFlushed = "flushed"
)

// ErrNoActiveTab is reported when a scraping command has no session to act on
const ErrNoActiveTab = "no active tab"

// Request is one inbound message
type Request struct {
	Type               string            `json:"type"`
	Items              []storage.Profile `json:"items,omitempty"`
	BackgroundDownload bool              `json:"backgroundDownload,omitempty"`
	Filename           string            `json:"filename,omitempty"`
	Proxy              string            `json:"proxy,omitempty"`
	UploadURL          string            `json:"uploadUrl,omitempty"`
	AutoUpload         bool              `json:"autoUpload,omitempty"`
}

// Response is a loosely shaped JSON object; "status" is always set
type Response map[string]interface{}

// Status returns the response status
func (r Response) Status() string {
	s, _ := r["status"].(string)
	return s
}

// Err returns the error text of an error response
func (r Response) Err() string {
	s, _ := r["error"].(string)
	return s
}

func ok(fields Response) Response {
	out := Response{"status": StatusOK}
	for k, v := range fields {
		out[k] = v
	}
	return out
}

func failure(err error) Response {
	return Response{"status": StatusError, "error": err.Error()}
}
