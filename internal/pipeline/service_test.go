package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Riotcoke123/clipper/internal/apierr"
	"github.com/Riotcoke123/clipper/internal/domain"
	"github.com/Riotcoke123/clipper/internal/jobs"
)

type fakeResolver struct {
	url string
	err error
}

func (f *fakeResolver) Resolve(ctx context.Context, ref domain.StreamerRef) (string, error) {
	return f.url, f.err
}

type fakeCapturer struct {
	err error
}

func (f *fakeCapturer) Capture(ctx context.Context, streamURL, outPath string, maxDuration int, onProgress func(pct int)) error {
	onProgress(50)
	return f.err
}

type fakeExtractor struct {
	clipErr  error
	thumbErr error
	frames   []string
}

func (f *fakeExtractor) ExtractClip(ctx context.Context, bufferPath, outPath string, startS, durationS int, onProgress func(pct int)) error {
	onProgress(75)
	return f.clipErr
}

func (f *fakeExtractor) Thumbnail(ctx context.Context, bufferPath, outPath string, atS int) error {
	return f.thumbErr
}

func (f *fakeExtractor) GeneratePreviews(ctx context.Context, bufferPath, outDir string, numFrames, maxClipDuration int) ([]string, error) {
	return f.frames, nil
}

type fakeUploader struct {
	url string
	err error
}

func (f *fakeUploader) Upload(ctx context.Context, clipPath string, onProgress func(bytesSent int64)) (string, error) {
	onProgress(1024)
	return f.url, f.err
}

func waitForState(t *testing.T, b *jobs.Broker, id string, want domain.State) domain.Job {
	t.Helper()
	var j domain.Job
	assert.Eventually(t, func() bool {
		var ok bool
		j, ok = b.Get(id)
		return ok && j.State == want
	}, time.Second, 5*time.Millisecond, "job never reached state %s", want)
	return j
}

func TestStartCaptureRunsResolveThenCapture(t *testing.T) {
	broker := jobs.New(clockwork.NewFakeClock(), nil)
	svc := New(broker, &fakeResolver{url: "https://cdn.example/live.m3u8"}, &fakeCapturer{}, &fakeExtractor{}, &fakeUploader{}, t.TempDir(), t.TempDir(), t.TempDir(), t.TempDir(), 240)

	j := svc.StartCapture(context.Background(), domain.PlatformTwitch, domain.StreamerRef{Platform: domain.PlatformTwitch, PlatformID: "s1"}, 0)
	assert.Equal(t, domain.StateInitializing, j.State)
	assert.Equal(t, 240, j.MaxDuration)

	final := waitForState(t, broker, j.ID, domain.StateCaptured)
	assert.Equal(t, "https://cdn.example/live.m3u8", final.StreamURL)
	assert.NotEmpty(t, final.BufferPath)
	assert.Equal(t, 100, final.Progress)
}

func TestStartCaptureResolveFailureErrorsJob(t *testing.T) {
	broker := jobs.New(clockwork.NewFakeClock(), nil)
	svc := New(broker, &fakeResolver{err: apierr.ResolveErrorf("no media url", nil)}, &fakeCapturer{}, &fakeExtractor{}, &fakeUploader{}, t.TempDir(), t.TempDir(), t.TempDir(), t.TempDir(), 240)

	j := svc.StartCapture(context.Background(), domain.PlatformTwitch, domain.StreamerRef{}, 120)

	final := waitForState(t, broker, j.ID, domain.StateError)
	assert.Contains(t, final.ErrorReason, "no media url")
}

func TestCreateClipRejectsUncapturedJob(t *testing.T) {
	broker := jobs.New(clockwork.NewFakeClock(), nil)
	svc := New(broker, &fakeResolver{}, &fakeCapturer{}, &fakeExtractor{}, &fakeUploader{}, t.TempDir(), t.TempDir(), t.TempDir(), t.TempDir(), 240)

	j := broker.Create(domain.PlatformTwitch, domain.StreamerRef{}, 240)

	_, err := svc.CreateClip(context.Background(), j.ID, 0, 30, "")
	require.Error(t, err)
	assert.Equal(t, apierr.InvalidTransition, apierr.AsStructured(err).Type)
}

func TestCreateClipValidatesRangeBeforeTransitioning(t *testing.T) {
	broker := jobs.New(clockwork.NewFakeClock(), nil)
	svc := New(broker, &fakeResolver{}, &fakeCapturer{}, &fakeExtractor{}, &fakeUploader{}, t.TempDir(), t.TempDir(), t.TempDir(), t.TempDir(), 240)

	j := broker.Create(domain.PlatformTwitch, domain.StreamerRef{}, 240)
	_, err := broker.Transition(j.ID, domain.StateResolving, domain.Patch{})
	require.NoError(t, err)
	_, err = broker.Transition(j.ID, domain.StateCapturing, domain.Patch{})
	require.NoError(t, err)
	_, err = broker.Transition(j.ID, domain.StateCaptured, domain.Patch{})
	require.NoError(t, err)

	_, err = svc.CreateClip(context.Background(), j.ID, -1, 30, "")
	require.Error(t, err)
	assert.Equal(t, apierr.InvalidRange, apierr.AsStructured(err).Type)

	stillCaptured, ok := broker.Get(j.ID)
	require.True(t, ok)
	assert.Equal(t, domain.StateCaptured, stillCaptured.State)
}

func TestCreateClipRunsExtractThenCompletes(t *testing.T) {
	broker := jobs.New(clockwork.NewFakeClock(), nil)
	svc := New(broker, &fakeResolver{}, &fakeCapturer{}, &fakeExtractor{}, &fakeUploader{}, t.TempDir(), t.TempDir(), t.TempDir(), t.TempDir(), 240)

	j := broker.Create(domain.PlatformTwitch, domain.StreamerRef{}, 240)
	_, err := broker.Transition(j.ID, domain.StateResolving, domain.Patch{})
	require.NoError(t, err)
	_, err = broker.Transition(j.ID, domain.StateCapturing, domain.Patch{})
	require.NoError(t, err)
	bufferPath := "buffer.ts"
	_, err = broker.Transition(j.ID, domain.StateCaptured, domain.Patch{BufferPath: &bufferPath})
	require.NoError(t, err)

	started, err := svc.CreateClip(context.Background(), j.ID, 10, 30, "my clip")
	require.NoError(t, err)
	assert.Equal(t, domain.StateProcessing, started.State)
	assert.Equal(t, "my clip", started.Title)

	final := waitForState(t, broker, j.ID, domain.StateCompleted)
	assert.NotEmpty(t, final.ClipPath)
	assert.NotEmpty(t, final.ThumbnailPath)
}

func TestGeneratePreviewRejectsUncapturedJob(t *testing.T) {
	broker := jobs.New(clockwork.NewFakeClock(), nil)
	svc := New(broker, &fakeResolver{}, &fakeCapturer{}, &fakeExtractor{}, &fakeUploader{}, t.TempDir(), t.TempDir(), t.TempDir(), t.TempDir(), 240)

	j := broker.Create(domain.PlatformTwitch, domain.StreamerRef{}, 240)

	_, err := svc.GeneratePreview(context.Background(), j.ID, 0)
	require.Error(t, err)
	assert.Equal(t, apierr.InvalidTransition, apierr.AsStructured(err).Type)
}

func TestGeneratePreviewRecordsFramesWithoutChangingState(t *testing.T) {
	broker := jobs.New(clockwork.NewFakeClock(), nil)
	frames := []string{"preview_001.jpg", "preview_002.jpg", "preview_003.jpg"}
	svc := New(broker, &fakeResolver{}, &fakeCapturer{}, &fakeExtractor{frames: frames}, &fakeUploader{}, t.TempDir(), t.TempDir(), t.TempDir(), t.TempDir(), 240)

	j := broker.Create(domain.PlatformTwitch, domain.StreamerRef{}, 240)
	_, err := broker.Transition(j.ID, domain.StateResolving, domain.Patch{})
	require.NoError(t, err)
	_, err = broker.Transition(j.ID, domain.StateCapturing, domain.Patch{})
	require.NoError(t, err)
	bufferPath := "buffer.ts"
	_, err = broker.Transition(j.ID, domain.StateCaptured, domain.Patch{BufferPath: &bufferPath})
	require.NoError(t, err)

	updated, err := svc.GeneratePreview(context.Background(), j.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, domain.StateCaptured, updated.State)
	assert.Equal(t, frames, updated.PreviewFramePaths)

	stored, ok := broker.Get(j.ID)
	require.True(t, ok)
	assert.Equal(t, frames, stored.PreviewFramePaths)

	// a buffer may be previewed again before a clip range is chosen; a second
	// call must not fail with an invalid-transition error.
	_, err = svc.GeneratePreview(context.Background(), j.ID, 3)
	require.NoError(t, err)
}

func TestCreateClipGeneratesThumbnailAtRangeMidpoint(t *testing.T) {
	broker := jobs.New(clockwork.NewFakeClock(), nil)
	var gotAtS int
	extractor := &recordingThumbnailExtractor{onThumbnail: func(atS int) { gotAtS = atS }}
	svc := New(broker, &fakeResolver{}, &fakeCapturer{}, extractor, &fakeUploader{}, t.TempDir(), t.TempDir(), t.TempDir(), t.TempDir(), 240)

	j := broker.Create(domain.PlatformTwitch, domain.StreamerRef{}, 240)
	_, err := broker.Transition(j.ID, domain.StateResolving, domain.Patch{})
	require.NoError(t, err)
	_, err = broker.Transition(j.ID, domain.StateCapturing, domain.Patch{})
	require.NoError(t, err)
	bufferPath := "buffer.ts"
	_, err = broker.Transition(j.ID, domain.StateCaptured, domain.Patch{BufferPath: &bufferPath})
	require.NoError(t, err)

	_, err = svc.CreateClip(context.Background(), j.ID, 100, 40, "")
	require.NoError(t, err)

	waitForState(t, broker, j.ID, domain.StateCompleted)
	assert.Equal(t, 120, gotAtS)
}

type recordingThumbnailExtractor struct {
	onThumbnail func(atS int)
}

func (r *recordingThumbnailExtractor) ExtractClip(ctx context.Context, bufferPath, outPath string, startS, durationS int, onProgress func(pct int)) error {
	onProgress(75)
	return nil
}

func (r *recordingThumbnailExtractor) Thumbnail(ctx context.Context, bufferPath, outPath string, atS int) error {
	r.onThumbnail(atS)
	return nil
}

func (r *recordingThumbnailExtractor) GeneratePreviews(ctx context.Context, bufferPath, outDir string, numFrames, maxClipDuration int) ([]string, error) {
	return nil, nil
}

func TestUploadRejectsJobNotCompleted(t *testing.T) {
	broker := jobs.New(clockwork.NewFakeClock(), nil)
	svc := New(broker, &fakeResolver{}, &fakeCapturer{}, &fakeExtractor{}, &fakeUploader{}, t.TempDir(), t.TempDir(), t.TempDir(), t.TempDir(), 240)

	j := broker.Create(domain.PlatformTwitch, domain.StreamerRef{}, 240)
	_, err := svc.Upload(context.Background(), j.ID)
	require.Error(t, err)
}

func TestUploadRunsAndCompletes(t *testing.T) {
	broker := jobs.New(clockwork.NewFakeClock(), nil)
	svc := New(broker, &fakeResolver{}, &fakeCapturer{}, &fakeExtractor{}, &fakeUploader{url: "https://files.example/clip.mp4"}, t.TempDir(), t.TempDir(), t.TempDir(), t.TempDir(), 240)

	j := broker.Create(domain.PlatformTwitch, domain.StreamerRef{}, 240)
	_, err := broker.Transition(j.ID, domain.StateResolving, domain.Patch{})
	require.NoError(t, err)
	_, err = broker.Transition(j.ID, domain.StateCapturing, domain.Patch{})
	require.NoError(t, err)
	_, err = broker.Transition(j.ID, domain.StateCaptured, domain.Patch{})
	require.NoError(t, err)
	_, err = broker.Transition(j.ID, domain.StateProcessing, domain.Patch{})
	require.NoError(t, err)
	_, err = broker.Transition(j.ID, domain.StateCompleted, domain.Patch{})
	require.NoError(t, err)

	started, err := svc.Upload(context.Background(), j.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateUploading, started.State)

	final := waitForState(t, broker, j.ID, domain.StateUploaded)
	assert.Equal(t, "https://files.example/clip.mp4", final.UploadedURL)
}
