// Package export implements the governed bulk-data export service: jobs are
// approval-gated, rate-limited per user, converted to the requested format and
// served through expiring download links.
package export

import (
	"time"

	"github.com/google/uuid"
)

// Status of an export job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Format of the produced artifact.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatXML  Format = "xml"
	FormatXLSX Format = "xlsx"
)

// KnownFormat reports whether f is a supported export format.
func KnownFormat(f Format) bool {
	switch f {
	case FormatCSV, FormatJSON, FormatXML, FormatXLSX:
		return true
	}
	return false
}

// ContentType returns the MIME type the artifact is served with.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv"
	case FormatJSON:
		return "application/json"
	case FormatXML:
		return "application/xml"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "application/octet-stream"
}

// Job is one governed export request.
type Job struct {
	ID                uuid.UUID      `json:"id"`
	Requester         string         `json:"requester"`
	ResourceType      string         `json:"resourceType"`
	Format            Format         `json:"format"`
	Status            Status         `json:"status"`
	RecordCount       int            `json:"recordCount"`
	RequiresApproval  bool           `json:"requiresApproval"`
	ApprovalRequestID *uuid.UUID     `json:"approvalRequestId,omitempty"`
	Filters           map[string]any `json:"filters,omitempty"`
	Checksum          string         `json:"checksum,omitempty"`
	FailureReason     string         `json:"failureReason,omitempty"`
	ExpiresAt         *time.Time     `json:"expiresAt,omitempty"`
	CreatedAt         time.Time      `json:"createdAt"`
	UpdatedAt         time.Time      `json:"updatedAt"`
}

// RequiresApproval decides whether an export must pass the approval workflow:
// sensitive resource types always do, and so does any export whose record
// count exceeds the threshold.
func RequiresApproval(resourceType string, recordCount int, sensitiveResources []string, thresholdRecords int) bool {
	for _, sensitive := range sensitiveResources {
		if resourceType == sensitive {
			return true
		}
	}
	return recordCount > thresholdRecords
}
