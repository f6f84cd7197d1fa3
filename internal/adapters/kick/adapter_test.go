package kick

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"

	"github.com/Riotcoke123/clipper/internal/domain"
)

func TestIsNotFoundTitle(t *testing.T) {
	assert.True(t, isNotFoundTitle("404 - Page Not Found"))
	assert.True(t, isNotFoundTitle("Kick - Channel Not Found"))
	assert.False(t, isNotFoundTitle("waxiest - Kick"))
}

// TestFetchNotFoundFastPathSkipsBrowser asserts the HTTP status probe alone
// is enough to short-circuit Fetch into a NotFound record without ever
// touching the (nil, deliberately unusable) browser pool, per §4.1.2's
// "detect not-found deterministically ... before further work."
func TestFetchNotFoundFastPathSkipsBrowser(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	a := NewWithBaseURL(nil, clockwork.NewFakeClock(), srv.URL+"/")
	rec := a.Fetch(context.Background(), domain.StreamerRef{Platform: domain.PlatformKick, PlatformID: "ghost"})

	assert.Equal(t, domain.StatusNotFound, rec.Status.Kind)
}

func TestFetchNotFoundByTitleFastPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head><title>404 Not Found</title></head></html>`))
	}))
	defer srv.Close()

	a := NewWithBaseURL(nil, clockwork.NewFakeClock(), srv.URL+"/")
	rec := a.Fetch(context.Background(), domain.StreamerRef{Platform: domain.PlatformKick, PlatformID: "ghost2"})

	assert.Equal(t, domain.StatusNotFound, rec.Status.Kind)
}

func TestFetchProbeErrorYieldsErrorRecord(t *testing.T) {
	a := NewWithBaseURL(nil, clockwork.NewFakeClock(), "http://127.0.0.1:1/")
	rec := a.Fetch(context.Background(), domain.StreamerRef{Platform: domain.PlatformKick, PlatformID: "unreachable"})
	assert.Equal(t, domain.StatusError, rec.Status.Kind)
}
