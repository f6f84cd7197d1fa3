// Package jobs owns the in-memory job registry (C8): creation, serialized
// per-job state transitions enforced by the domain transition graph, and
// publication of job lifecycle events. Grounded on the teacher's
// single-mutex-guarded-map style for shared in-process state.
package jobs

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/Riotcoke123/clipper/internal/apierr"
	"github.com/Riotcoke123/clipper/internal/domain"
	"github.com/Riotcoke123/clipper/internal/metrics"
)

// Broker is the sole mutator of job state, per §5's "job registry is
// serialized by a single mutex; holders must not perform I/O while holding
// it."
type Broker struct {
	mu        sync.Mutex
	jobs      map[string]*domain.Job
	clock     clockwork.Clock
	publisher domain.Publisher
}

func New(clock clockwork.Clock, publisher domain.Publisher) *Broker {
	return &Broker{
		jobs:      make(map[string]*domain.Job),
		clock:     clock,
		publisher: publisher,
	}
}

// Create initializes a job in StateInitializing and publishes job_created.
func (b *Broker) Create(platform domain.Platform, ref domain.StreamerRef, maxDuration int) domain.Job {
	now := b.clock.Now()
	j := &domain.Job{
		ID:          uuid.NewString(),
		Platform:    platform,
		StreamerRef: ref,
		State:       domain.StateInitializing,
		CreatedAt:   now,
		UpdatedAt:   now,
		MaxDuration: maxDuration,
	}

	b.mu.Lock()
	b.jobs[j.ID] = j
	clone := j.Clone()
	b.mu.Unlock()

	metrics.JobsCreatedTotal.WithLabelValues(string(platform)).Inc()
	metrics.JobsByStateGauge.WithLabelValues(string(domain.StateInitializing)).Inc()
	b.publish(domain.NewJobEvent(domain.EventJobCreated, clone, now))
	return clone
}

// Transition enforces the legal-edge graph, applies patch, bumps
// updated_at, and publishes job_updated (or job_error for the error state).
// Concurrent calls against the same job id observe transitions in the order
// the broker's lock grants them.
func (b *Broker) Transition(id string, to domain.State, patch domain.Patch) (domain.Job, error) {
	b.mu.Lock()
	j, ok := b.jobs[id]
	if !ok {
		b.mu.Unlock()
		return domain.Job{}, apierr.NotFoundError(fmt.Sprintf("job %s not found", id))
	}
	from := j.State
	if !domain.CanTransition(from, to) {
		b.mu.Unlock()
		metrics.JobTransitionRejectedTotal.Inc()
		return domain.Job{}, apierr.InvalidTransitionError(fmt.Sprintf("cannot transition job %s from %s to %s", id, from, to))
	}

	now := b.clock.Now()
	j.State = to
	j.UpdatedAt = now
	patch.Apply(j)
	clone := j.Clone()
	b.mu.Unlock()

	metrics.JobTransitionsTotal.WithLabelValues(string(from), string(to)).Inc()
	metrics.JobsByStateGauge.WithLabelValues(string(from)).Dec()
	metrics.JobsByStateGauge.WithLabelValues(string(to)).Inc()

	kind := domain.EventJobUpdated
	if to == domain.StateError {
		kind = domain.EventJobError
	}
	b.publish(domain.NewJobEvent(kind, clone, now))
	return clone, nil
}

// UpdateProgress records incremental progress within the job's current
// state without performing a state transition (a capturing job reporting
// 40% is not an edge in the transition graph), publishing job_updated.
func (b *Broker) UpdateProgress(id string, pct int) (domain.Job, error) {
	b.mu.Lock()
	j, ok := b.jobs[id]
	if !ok {
		b.mu.Unlock()
		return domain.Job{}, apierr.NotFoundError(fmt.Sprintf("job %s not found", id))
	}
	now := b.clock.Now()
	j.Progress = pct
	j.UpdatedAt = now
	clone := j.Clone()
	b.mu.Unlock()

	b.publish(domain.NewJobEvent(domain.EventJobUpdated, clone, now))
	return clone, nil
}

// RecordPreviewFrames stores generated preview frame paths on an
// already-captured job without performing a state transition (captured→
// captured is not an edge in the graph — a buffer may be previewed
// repeatedly before a clip range is chosen). Publishes preview_complete
// with Frames set, per §4.9.
func (b *Broker) RecordPreviewFrames(id string, frames []string) (domain.Job, error) {
	b.mu.Lock()
	j, ok := b.jobs[id]
	if !ok {
		b.mu.Unlock()
		return domain.Job{}, apierr.NotFoundError(fmt.Sprintf("job %s not found", id))
	}
	now := b.clock.Now()
	j.PreviewFramePaths = frames
	j.UpdatedAt = now
	clone := j.Clone()
	b.mu.Unlock()

	ev := domain.NewJobEvent(domain.EventPreviewComplete, clone, now)
	ev.Frames = frames
	b.publish(ev)
	return clone, nil
}

// PublishCompletion re-publishes the job's current snapshot under a
// stage-completion event kind (capture_complete, clip_complete,
// upload_complete), alongside the job_updated event the triggering
// Transition call already published. §4.9 lists these as distinct push
// channel message kinds.
func (b *Broker) PublishCompletion(id string, kind domain.EventKind) (domain.Job, error) {
	j, ok := b.Get(id)
	if !ok {
		return domain.Job{}, apierr.NotFoundError(fmt.Sprintf("job %s not found", id))
	}
	b.publish(domain.NewJobEvent(kind, j, j.UpdatedAt))
	return j, nil
}

// ForceError bypasses the normal graph check for watchdog/GC use: any
// non-terminal job may be force-transitioned to error regardless of its
// current state, per §4.8's stall-sweep contract.
func (b *Broker) ForceError(id, reason string) (domain.Job, error) {
	b.mu.Lock()
	j, ok := b.jobs[id]
	if !ok {
		b.mu.Unlock()
		return domain.Job{}, apierr.NotFoundError(fmt.Sprintf("job %s not found", id))
	}
	if j.State.Terminal() {
		b.mu.Unlock()
		return domain.Job{}, apierr.InvalidTransitionError(fmt.Sprintf("job %s is already terminal (%s)", id, j.State))
	}

	from := j.State
	now := b.clock.Now()
	j.State = domain.StateError
	j.UpdatedAt = now
	j.ErrorReason = reason
	clone := j.Clone()
	b.mu.Unlock()

	metrics.JobTransitionsTotal.WithLabelValues(string(from), string(domain.StateError)).Inc()
	metrics.JobsByStateGauge.WithLabelValues(string(from)).Dec()
	metrics.JobsByStateGauge.WithLabelValues(string(domain.StateError)).Inc()
	b.publish(domain.NewJobEvent(domain.EventJobError, clone, now))
	return clone, nil
}

// Get returns a snapshot copy of the job.
func (b *Broker) Get(id string) (domain.Job, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	j, ok := b.jobs[id]
	if !ok {
		return domain.Job{}, false
	}
	return j.Clone(), true
}

// List returns a snapshot copy of every tracked job.
func (b *Broker) List() []domain.Job {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]domain.Job, 0, len(b.jobs))
	for _, j := range b.jobs {
		out = append(out, j.Clone())
	}
	return out
}

// Delete removes a job from the registry. Only legal on terminal jobs,
// per §3's artifact-lifecycle invariant (GC must have already reclaimed
// the job's files before — or as part of — this call).
func (b *Broker) Delete(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	j, ok := b.jobs[id]
	if !ok {
		return apierr.NotFoundError(fmt.Sprintf("job %s not found", id))
	}
	if !j.State.Terminal() {
		return apierr.InvalidTransitionError(fmt.Sprintf("job %s is not in a terminal state (%s)", id, j.State))
	}
	delete(b.jobs, id)
	return nil
}

func (b *Broker) publish(ev domain.Event) {
	if b.publisher != nil {
		b.publisher.Publish(ev)
	}
}
