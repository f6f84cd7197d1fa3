package trovo

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Riotcoke123/clipper/internal/domain"
)

func TestFetchLive(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/chan1", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"username":   "chan1",
			"avatar_url": "http://a",
			"stream_info": map[string]any{
				"is_live":      true,
				"stream_title": "ranked grind",
				"viewers":      42,
			},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	a := NewWithEndpoint(clockwork.NewFakeClock(), srv.URL+"/")
	rec := a.Fetch(context.Background(), domain.StreamerRef{Platform: domain.PlatformTrovo, PlatformID: "chan1"})

	assert.Equal(t, domain.StatusLive, rec.Status.Kind)
	assert.Equal(t, uint32(42), rec.Status.ViewerCount)
	assert.Equal(t, "ranked grind", rec.Status.Title)
	assert.Equal(t, "chan1", rec.DisplayName)
}

func TestFetchOfflineWithLastLiveAt(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/chan2", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"username":     "chan2",
			"avatar_url":   "http://b",
			"last_live_at": "2026-02-01T00:00:00Z",
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	a := NewWithEndpoint(clockwork.NewFakeClock(), srv.URL+"/")
	rec := a.Fetch(context.Background(), domain.StreamerRef{Platform: domain.PlatformTrovo, PlatformID: "chan2"})

	assert.Equal(t, domain.StatusOffline, rec.Status.Kind)
	require.NotNil(t, rec.Status.LastBroadcastAt)
	assert.Equal(t, 2026, rec.Status.LastBroadcastAt.Year())
}

func TestFetchChannelErrorYieldsErrorRecord(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/chan3", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	a := NewWithEndpoint(clockwork.NewFakeClock(), srv.URL+"/")
	rec := a.Fetch(context.Background(), domain.StreamerRef{Platform: domain.PlatformTrovo, PlatformID: "chan3"})
	assert.Equal(t, domain.StatusError, rec.Status.Kind)
}
