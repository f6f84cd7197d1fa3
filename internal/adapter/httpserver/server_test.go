package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Riotcoke123/clipper/internal/domain"
	"github.com/Riotcoke123/clipper/internal/events"
	"github.com/Riotcoke123/clipper/internal/platform/config"
)

const testAPIKey = "test-key"

type fakeCatalog struct {
	snap          domain.CatalogSnapshot
	refreshedAll  bool
	refreshedOnly domain.Platform
}

func (f *fakeCatalog) Latest() domain.CatalogSnapshot { return f.snap }

func (f *fakeCatalog) Refresh(ctx context.Context) (domain.CatalogSnapshot, error) {
	f.refreshedAll = true
	return f.snap, nil
}

func (f *fakeCatalog) RefreshPlatform(ctx context.Context, platform domain.Platform) (domain.CatalogSnapshot, error) {
	f.refreshedOnly = platform
	return f.snap, nil
}

type fakePipeline struct {
	startedJob domain.Job
	clipErr    error
	uploadErr  error
}

func (f *fakePipeline) StartCapture(ctx context.Context, platform domain.Platform, ref domain.StreamerRef, maxDuration int) domain.Job {
	return f.startedJob
}

func (f *fakePipeline) CreateClip(ctx context.Context, jobID string, startS, durationS int, title string) (domain.Job, error) {
	if f.clipErr != nil {
		return domain.Job{}, f.clipErr
	}
	return domain.Job{ID: jobID, State: domain.StateProcessing}, nil
}

func (f *fakePipeline) GeneratePreview(ctx context.Context, jobID string, numFrames int) (domain.Job, error) {
	return domain.Job{ID: jobID, State: domain.StateCaptured}, nil
}

func (f *fakePipeline) Upload(ctx context.Context, jobID string) (domain.Job, error) {
	if f.uploadErr != nil {
		return domain.Job{}, f.uploadErr
	}
	return domain.Job{ID: jobID, State: domain.StateUploading}, nil
}

type fakeJobs struct {
	jobs      map[string]domain.Job
	deleteErr error
}

func (f *fakeJobs) Get(id string) (domain.Job, bool) {
	j, ok := f.jobs[id]
	return j, ok
}

func (f *fakeJobs) List() []domain.Job {
	out := make([]domain.Job, 0, len(f.jobs))
	for _, j := range f.jobs {
		out = append(out, j)
	}
	return out
}

func (f *fakeJobs) Delete(id string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.jobs, id)
	return nil
}

func newTestServer(t *testing.T) (*Server, *fakeCatalog, *fakePipeline, *fakeJobs) {
	t.Helper()
	cat := &fakeCatalog{snap: domain.CatalogSnapshot{
		Streamers: []domain.StreamerRecord{
			{Platform: domain.PlatformTwitch, PlatformID: "s1", Status: domain.Status{Kind: domain.StatusLive, ViewerCount: 10}},
		},
	}}
	pl := &fakePipeline{startedJob: domain.Job{ID: "job-1", State: domain.StateInitializing}}
	jb := &fakeJobs{jobs: map[string]domain.Job{
		"job-1": {ID: "job-1", State: domain.StateCaptured},
	}}
	bus := events.New(clockwork.NewFakeClock())
	t.Cleanup(bus.Stop)

	cfg := &config.Config{APIKey: testAPIKey, ClipsDir: t.TempDir(), ThumbnailsDir: t.TempDir()}
	srv := NewServer(cfg, cat, pl, jb, bus, nil)
	return srv, cat, pl, jb
}

func doRequest(t *testing.T, srv *Server, method, path, apiKey string, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)
	return rec
}

func TestAPIKeyMiddlewareRejectsMissingKey(t *testing.T) {
	srv, _, _, _ := newTestServer(t)
	rec := doRequest(t, srv, http.MethodGet, "/api/streamers", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAPIKeyMiddlewareRejectsWrongKey(t *testing.T) {
	srv, _, _, _ := newTestServer(t)
	rec := doRequest(t, srv, http.MethodGet, "/api/streamers", "wrong", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestListStreamersPartitionsByPlatform(t *testing.T) {
	srv, _, _, _ := newTestServer(t)
	rec := doRequest(t, srv, http.MethodGet, "/api/streamers", testAPIKey, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var byPlatform map[domain.Platform][]domain.StreamerRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &byPlatform))
	assert.Len(t, byPlatform[domain.PlatformTwitch], 1)
}

func TestStreamersByUnknownPlatformReturns404(t *testing.T) {
	srv, _, _, _ := newTestServer(t)
	rec := doRequest(t, srv, http.MethodGet, "/api/streamers/nonexistent", testAPIKey, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRefreshReturns202Immediately(t *testing.T) {
	srv, cat, _, _ := newTestServer(t)
	rec := doRequest(t, srv, http.MethodPost, "/api/refresh", testAPIKey, "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Eventually(t, func() bool { return cat.refreshedAll }, time.Second, 5*time.Millisecond)
}

func TestRefreshPlatformRejectsUnknownPlatformSynchronously(t *testing.T) {
	srv, cat, _, _ := newTestServer(t)
	rec := doRequest(t, srv, http.MethodPost, "/api/refresh/nonexistent", testAPIKey, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, cat.refreshedOnly)
}

func TestCaptureCreatesJob(t *testing.T) {
	srv, _, _, _ := newTestServer(t)
	rec := doRequest(t, srv, http.MethodPost, "/api/capture", testAPIKey, `{"platform":"twitch","streamerId":"s1"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var j domain.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &j))
	assert.Equal(t, "job-1", j.ID)
}

func TestCaptureRejectsMissingFields(t *testing.T) {
	srv, _, _, _ := newTestServer(t)
	rec := doRequest(t, srv, http.MethodPost, "/api/capture", testAPIKey, `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetJobReturns404ForUnknown(t *testing.T) {
	srv, _, _, _ := newTestServer(t)
	rec := doRequest(t, srv, http.MethodGet, "/api/jobs/missing", testAPIKey, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetJobReturnsExisting(t *testing.T) {
	srv, _, _, _ := newTestServer(t)
	rec := doRequest(t, srv, http.MethodGet, "/api/jobs/job-1", testAPIKey, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var j domain.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &j))
	assert.Equal(t, domain.StateCaptured, j.State)
}

func TestCreateClipDelegatesToPipeline(t *testing.T) {
	srv, _, _, _ := newTestServer(t)
	rec := doRequest(t, srv, http.MethodPost, "/api/clip", testAPIKey, `{"clipId":"job-1","startTime":5,"duration":30}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var j domain.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &j))
	assert.Equal(t, domain.StateProcessing, j.State)
}

func TestUploadDelegatesToPipeline(t *testing.T) {
	srv, _, _, _ := newTestServer(t)
	rec := doRequest(t, srv, http.MethodPost, "/api/upload", testAPIKey, `{"clipId":"job-1"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
}

func TestListClipsOnEmptyDirectory(t *testing.T) {
	srv, _, _, _ := newTestServer(t)
	rec := doRequest(t, srv, http.MethodGet, "/api/clips", testAPIKey, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())
}

func TestDeleteClipRemovesJobRegistryEntry(t *testing.T) {
	srv, _, _, jb := newTestServer(t)
	jb.jobs["job-1"] = domain.Job{ID: "job-1", State: domain.StateUploaded}

	rec := doRequest(t, srv, http.MethodDelete, "/api/clips/job-1", testAPIKey, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	_, ok := jb.Get("job-1")
	assert.False(t, ok)
}

func TestHealthRoutesBypassAPIKey(t *testing.T) {
	srv, _, _, _ := newTestServer(t)
	rec := doRequest(t, srv, http.MethodGet, "/health/live", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
