// Package tasks defines the structure for tasks that are sent to Kafka.
package tasks

// DocumentIngestTask represents a single-document ingest job.
// ObjectName is the full object key in storage, including any folder prefix.
type DocumentIngestTask struct {
	ObjectName  string `json:"object_name"`
	RequestedBy string `json:"requested_by,omitempty"`
}
