// Package pipeline is the application layer — the only component that
// references the job broker, resolver, capturer, clip extractor, and
// uploader together. It orchestrates the C4–C7 use cases the HTTP surface
// and push-channel control messages both drive, so the two entry points
// share one implementation of each operation's semantics. Grounded on the
// teacher's internal/app.Service, which plays the identical role for its
// own domain components.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/Riotcoke123/clipper/internal/apierr"
	"github.com/Riotcoke123/clipper/internal/clip"
	"github.com/Riotcoke123/clipper/internal/domain"
)

// Broker is the subset of jobs.Broker the pipeline needs.
type Broker interface {
	Create(platform domain.Platform, ref domain.StreamerRef, maxDuration int) domain.Job
	Get(id string) (domain.Job, bool)
	List() []domain.Job
	Transition(id string, to domain.State, patch domain.Patch) (domain.Job, error)
	UpdateProgress(id string, pct int) (domain.Job, error)
	RecordPreviewFrames(id string, frames []string) (domain.Job, error)
	PublishCompletion(id string, kind domain.EventKind) (domain.Job, error)
	Delete(id string) error
}

// Service wires the job broker to the resolver, capturer, clip extractor,
// and uploader, running each pipeline stage as a detached goroutine kicked
// off by the triggering call, per §5's "handlers return immediately; work
// continues on the job's own goroutine, observable via its state."
type Service struct {
	jobs      Broker
	resolver  domain.Resolver
	capturer  domain.Capturer
	extractor domain.ClipExtractor
	uploader  domain.Uploader

	tempDir     string
	clipsDir    string
	thumbsDir   string
	previewsDir string

	defaultMaxDuration int
}

func New(jobs Broker, resolver domain.Resolver, capturer domain.Capturer, extractor domain.ClipExtractor, uploader domain.Uploader, tempDir, clipsDir, thumbsDir, previewsDir string, defaultMaxDuration int) *Service {
	return &Service{
		jobs:               jobs,
		resolver:           resolver,
		capturer:           capturer,
		extractor:          extractor,
		uploader:           uploader,
		tempDir:            tempDir,
		clipsDir:           clipsDir,
		thumbsDir:          thumbsDir,
		previewsDir:        previewsDir,
		defaultMaxDuration: defaultMaxDuration,
	}
}

// StartCapture creates a job and launches its resolve→capture pipeline in
// the background, returning the job in state initializing immediately.
func (s *Service) StartCapture(ctx context.Context, platform domain.Platform, ref domain.StreamerRef, maxDuration int) domain.Job {
	if maxDuration <= 0 {
		maxDuration = s.defaultMaxDuration
	}
	j := s.jobs.Create(platform, ref, maxDuration)
	go s.runCapture(context.WithoutCancel(ctx), j)
	return j
}

func (s *Service) runCapture(ctx context.Context, j domain.Job) {
	if _, err := s.jobs.Transition(j.ID, domain.StateResolving, domain.Patch{}); err != nil {
		slog.Error("pipeline: resolving transition failed", "job_id", j.ID, "error", err)
		return
	}

	streamURL, err := s.resolver.Resolve(ctx, j.StreamerRef)
	if err != nil {
		s.fail(j.ID, apierr.AsStructured(err).Message)
		return
	}

	if _, err := s.jobs.Transition(j.ID, domain.StateCapturing, domain.Patch{StreamURL: &streamURL}); err != nil {
		slog.Error("pipeline: capturing transition failed", "job_id", j.ID, "error", err)
		return
	}

	bufferPath := filepath.Join(s.tempDir, j.ID+".ts")
	onProgress := func(pct int) {
		if _, err := s.jobs.UpdateProgress(j.ID, pct); err != nil {
			slog.Warn("pipeline: progress update failed", "job_id", j.ID, "error", err)
		}
	}

	if err := s.capturer.Capture(ctx, streamURL, bufferPath, j.MaxDuration, onProgress); err != nil {
		if ctx.Err() != nil {
			s.fail(j.ID, "cancelled")
		} else {
			s.fail(j.ID, apierr.AsStructured(err).Message)
		}
		return
	}

	full := 100
	if _, err := s.jobs.Transition(j.ID, domain.StateCaptured, domain.Patch{BufferPath: &bufferPath, Progress: &full}); err != nil {
		slog.Error("pipeline: captured transition failed", "job_id", j.ID, "error", err)
		return
	}
	if _, err := s.jobs.PublishCompletion(j.ID, domain.EventCaptureComplete); err != nil {
		slog.Warn("pipeline: capture_complete publish failed", "job_id", j.ID, "error", err)
	}
}

// CreateClip validates the requested range against the job's max capture
// duration and launches the extract+thumbnail pipeline in the background.
func (s *Service) CreateClip(ctx context.Context, jobID string, startS, durationS int, title string) (domain.Job, error) {
	j, ok := s.jobs.Get(jobID)
	if !ok {
		return domain.Job{}, apierr.NotFoundError(fmt.Sprintf("job %s not found", jobID))
	}
	if j.State != domain.StateCaptured {
		return domain.Job{}, apierr.InvalidTransitionError(fmt.Sprintf("job %s must be captured before clipping (is %s)", jobID, j.State))
	}
	if err := clip.ValidateRange(startS, durationS, j.MaxDuration); err != nil {
		return domain.Job{}, err
	}

	patch := domain.Patch{}
	if title != "" {
		patch.Title = &title
	}
	j, err := s.jobs.Transition(jobID, domain.StateProcessing, patch)
	if err != nil {
		return domain.Job{}, err
	}

	go s.runClip(context.WithoutCancel(ctx), j, startS, durationS)
	return j, nil
}

func (s *Service) runClip(ctx context.Context, j domain.Job, startS, durationS int) {
	clipPath := filepath.Join(s.clipsDir, j.ID+".mp4")
	onProgress := func(pct int) {
		if _, err := s.jobs.UpdateProgress(j.ID, pct); err != nil {
			slog.Warn("pipeline: clip progress update failed", "job_id", j.ID, "error", err)
		}
	}

	if err := s.extractor.ExtractClip(ctx, j.BufferPath, clipPath, startS, durationS, onProgress); err != nil {
		s.fail(j.ID, apierr.AsStructured(err).Message)
		return
	}

	thumbPath := filepath.Join(s.thumbsDir, j.ID+".jpg")
	thumbAtS := startS + durationS/2
	if err := s.extractor.Thumbnail(ctx, j.BufferPath, thumbPath, thumbAtS); err != nil {
		slog.Warn("pipeline: thumbnail generation failed, continuing", "job_id", j.ID, "error", err)
		thumbPath = ""
	}

	full := 100
	patch := domain.Patch{ClipPath: &clipPath, Progress: &full}
	if thumbPath != "" {
		patch.ThumbnailPath = &thumbPath
	}
	if _, err := s.jobs.Transition(j.ID, domain.StateCompleted, patch); err != nil {
		slog.Error("pipeline: completed transition failed", "job_id", j.ID, "error", err)
		return
	}
	if _, err := s.jobs.PublishCompletion(j.ID, domain.EventClipComplete); err != nil {
		slog.Warn("pipeline: clip_complete publish failed", "job_id", j.ID, "error", err)
	}
}

// defaultPreviewFrames is used when a preview request omits numFrames.
const defaultPreviewFrames = 6

// GeneratePreview produces evenly spaced preview frames from the job's
// capture buffer. Unlike clip/upload it does not advance the job's state:
// a client may preview a buffer before deciding the final clip range.
func (s *Service) GeneratePreview(ctx context.Context, jobID string, numFrames int) (domain.Job, error) {
	j, ok := s.jobs.Get(jobID)
	if !ok {
		return domain.Job{}, apierr.NotFoundError(fmt.Sprintf("job %s not found", jobID))
	}
	if j.State != domain.StateCaptured {
		return domain.Job{}, apierr.InvalidTransitionError(fmt.Sprintf("job %s must be captured before previewing (is %s)", jobID, j.State))
	}
	if numFrames <= 0 {
		numFrames = defaultPreviewFrames
	}

	outDir := filepath.Join(s.previewsDir, "preview_"+j.ID)
	frames, err := s.extractor.GeneratePreviews(ctx, j.BufferPath, outDir, numFrames, j.MaxDuration)
	if err != nil {
		return domain.Job{}, apierr.TranscodeErrorf("preview generation failed", err)
	}

	updated, err := s.jobs.RecordPreviewFrames(jobID, frames)
	if err != nil {
		return domain.Job{}, err
	}
	return updated, nil
}

// Upload pushes a completed clip to the external file host.
func (s *Service) Upload(ctx context.Context, jobID string) (domain.Job, error) {
	j, ok := s.jobs.Get(jobID)
	if !ok {
		return domain.Job{}, apierr.NotFoundError(fmt.Sprintf("job %s not found", jobID))
	}
	if j.State != domain.StateCompleted {
		return domain.Job{}, apierr.InvalidTransitionError(fmt.Sprintf("job %s must be completed before upload (is %s)", jobID, j.State))
	}

	j, err := s.jobs.Transition(jobID, domain.StateUploading, domain.Patch{})
	if err != nil {
		return domain.Job{}, err
	}

	go s.runUpload(context.WithoutCancel(ctx), j)
	return j, nil
}

func (s *Service) runUpload(ctx context.Context, j domain.Job) {
	onProgress := func(sent int64) {
		// Upload progress is byte-granular; the job's percentage only needs
		// a coarse signal, so this intentionally does not spam UpdateProgress
		// on every chunk.
	}

	url, err := s.uploader.Upload(ctx, j.ClipPath, onProgress)
	if err != nil {
		s.fail(j.ID, apierr.AsStructured(err).Message)
		return
	}

	if _, err := s.jobs.Transition(j.ID, domain.StateUploaded, domain.Patch{UploadedURL: &url}); err != nil {
		slog.Error("pipeline: uploaded transition failed", "job_id", j.ID, "error", err)
		return
	}
	if _, err := s.jobs.PublishCompletion(j.ID, domain.EventUploadComplete); err != nil {
		slog.Warn("pipeline: upload_complete publish failed", "job_id", j.ID, "error", err)
	}
}

func (s *Service) fail(jobID, reason string) {
	if _, err := s.jobs.Transition(jobID, domain.StateError, domain.Patch{ErrorReason: &reason}); err != nil {
		slog.Error("pipeline: error transition failed", "job_id", jobID, "error", err)
	}
}
