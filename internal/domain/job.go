package domain

import "time"

// State is a job's position in the §4.8 transition graph.
type State string

const (
	StateInitializing State = "initializing"
	StateResolving     State = "resolving"
	StateCapturing     State = "capturing"
	StateCaptured      State = "captured"
	StateProcessing    State = "processing"
	StateCompleted     State = "completed"
	StateUploading     State = "uploading"
	StateUploaded      State = "uploaded"
	StateError         State = "error"
)

// Terminal reports whether no further transitions occur from this state.
func (s State) Terminal() bool {
	return s == StateUploaded || s == StateCompleted || s == StateError
}

// transitions is the adjacency table built once at package init from the
// §4.8 graph text. Every non-error state may also transition to error; this
// is encoded explicitly rather than assumed so the table remains the single
// source of truth for what ForceError is allowed to bypass.
var transitions = map[State]map[State]bool{
	StateInitializing: {StateResolving: true, StateError: true},
	StateResolving:     {StateCapturing: true, StateError: true},
	StateCapturing:     {StateCaptured: true, StateError: true},
	StateCaptured:      {StateProcessing: true, StateError: true},
	StateProcessing:    {StateCompleted: true, StateError: true},
	StateCompleted:     {StateUploading: true, StateError: true},
	StateUploading:     {StateUploaded: true, StateError: true},
	StateUploaded:      {},
	StateError:         {},
}

// CanTransition reports whether from→to is a legal edge in the graph.
func CanTransition(from, to State) bool {
	edges, ok := transitions[from]
	if !ok {
		return false
	}
	return edges[to]
}

// Job is one clip-pipeline task tracked by the job broker. Mutated only by
// the broker under serialized per-job access; every other component holds
// a snapshot copy.
type Job struct {
	ID          string      `json:"id"`
	Platform    Platform    `json:"platform"`
	StreamerRef StreamerRef `json:"streamerRef"`
	State       State       `json:"state"`
	Progress    int         `json:"progress"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
	Title       string      `json:"title,omitempty"`

	BufferPath         string   `json:"bufferPath,omitempty"`
	StreamURL          string   `json:"streamUrl,omitempty"`
	ClipPath           string   `json:"clipPath,omitempty"`
	ThumbnailPath      string   `json:"thumbnailPath,omitempty"`
	PreviewFramePaths  []string `json:"previewFramePaths,omitempty"`
	UploadedURL        string   `json:"uploadedUrl,omitempty"`
	ErrorReason        string   `json:"errorReason,omitempty"`

	// MaxDuration is the capture wall-clock cap for this job (seconds),
	// defaulted from config and optionally overridden per request.
	MaxDuration int `json:"maxDuration"`
}

// Clone returns a deep-enough copy safe to hand to a reader outside the
// broker's lock (PreviewFramePaths is copied; nothing else is a reference
// type that mutates in place).
func (j Job) Clone() Job {
	out := j
	if j.PreviewFramePaths != nil {
		out.PreviewFramePaths = append([]string(nil), j.PreviewFramePaths...)
	}
	return out
}

// Patch describes a partial update applied during a transition. Nil/zero
// fields are left untouched; Progress uses a pointer so 0 is distinguishable
// from "unset".
type Patch struct {
	Progress          *int
	BufferPath        *string
	StreamURL         *string
	ClipPath          *string
	ThumbnailPath     *string
	PreviewFramePaths []string
	UploadedURL       *string
	ErrorReason       *string
	Title             *string
}

func (p Patch) apply(j *Job) {
	if p.Progress != nil {
		j.Progress = *p.Progress
	}
	if p.BufferPath != nil {
		j.BufferPath = *p.BufferPath
	}
	if p.StreamURL != nil {
		j.StreamURL = *p.StreamURL
	}
	if p.ClipPath != nil {
		j.ClipPath = *p.ClipPath
	}
	if p.ThumbnailPath != nil {
		j.ThumbnailPath = *p.ThumbnailPath
	}
	if p.PreviewFramePaths != nil {
		j.PreviewFramePaths = p.PreviewFramePaths
	}
	if p.UploadedURL != nil {
		j.UploadedURL = *p.UploadedURL
	}
	if p.ErrorReason != nil {
		j.ErrorReason = *p.ErrorReason
	}
	if p.Title != nil {
		j.Title = *p.Title
	}
}

// Apply is exported so the broker package (which owns the lock) can apply a
// patch to its stored copy without duplicating the field list.
func (p Patch) Apply(j *Job) { p.apply(j) }
