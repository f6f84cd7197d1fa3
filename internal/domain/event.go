package domain

import "time"

// EventKind enumerates the push-channel message kinds from §4.9.
type EventKind string

const (
	EventCatalogSnapshot EventKind = "catalog_snapshot"
	EventJobCreated      EventKind = "job_created"
	EventJobUpdated      EventKind = "job_updated"
	EventJobError        EventKind = "job_error"
	EventCaptureComplete EventKind = "capture_complete"
	EventClipComplete    EventKind = "clip_complete"
	EventPreviewComplete EventKind = "preview_complete"
	EventUploadComplete  EventKind = "upload_complete"
)

// Event is a single message published on the event bus. Exactly one of
// Catalog/Job is populated depending on Kind.
type Event struct {
	Kind    EventKind        `json:"kind"`
	At      time.Time        `json:"at"`
	Catalog *CatalogSnapshot `json:"catalog,omitempty"`
	Job     *Job             `json:"job,omitempty"`
	Frames  []string         `json:"frames,omitempty"`
}

// NewCatalogEvent builds a catalog_snapshot event.
func NewCatalogEvent(snap CatalogSnapshot) Event {
	return Event{Kind: EventCatalogSnapshot, At: snap.GeneratedAt, Catalog: &snap}
}

// NewJobEvent builds a job-kind event carrying a copy of the job.
func NewJobEvent(kind EventKind, j Job, at time.Time) Event {
	jc := j.Clone()
	return Event{Kind: kind, At: at, Job: &jc}
}
