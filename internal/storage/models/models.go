package models

import (
	"time"
)

// StoredObject is a raw listing entry from the object store.
type StoredObject struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
}

// UploadEntry is the display form of a stored object: size rounded to
// kilobytes and the timestamp formatted for the dashboard.
type UploadEntry struct {
	Key          string  `json:"key"`
	SizeKB       float64 `json:"size_kb"`
	LastModified string  `json:"last_modified"`
}

// DetectionRecord is one row of the detection table. Fields are opaque to
// the dashboard except for the timestamp attribute rewritten during export.
type DetectionRecord map[string]interface{}

// DetectionResult is one response from the remote detection endpoint.
// Fields holds the full response body, including verdict and confidence.
type DetectionResult struct {
	Verdict    string                 `json:"verdict"`
	Confidence float64                `json:"confidence"`
	Fields     map[string]interface{} `json:"fields"`
}

// UploadsResponse is the payload of the listing endpoint.
type UploadsResponse struct {
	Uploads []UploadEntry `json:"uploads"`
	Total   int           `json:"total"`
}

// DeleteResponse is the payload of the deletion endpoint. Uploads carries
// the authoritative re-listing fetched after the delete.
type DeleteResponse struct {
	Key     string        `json:"key"`
	Uploads []UploadEntry `json:"uploads"`
}

// DashboardStats is the payload of the stats endpoint.
type DashboardStats struct {
	UploadCount int `json:"upload_count"`
	RecordCount int `json:"record_count"`
}
