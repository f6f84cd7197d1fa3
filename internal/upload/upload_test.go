package upload

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempClip(t *testing.T) string {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "clip-*.mp4")
	require.NoError(t, err)
	_, err = f.WriteString("fake clip bytes")
	require.NoError(t, err)
	require.NoError(t, f.Close())
	return f.Name()
}

func TestUploadSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		json.NewEncoder(w).Encode(hostResponse{Success: true, URL: "https://host.example/abc"})
	}))
	defer srv.Close()

	u := New(srv.URL)
	var progressCalls int
	url, err := u.Upload(context.Background(), writeTempClip(t), func(bytesSent int64) { progressCalls++ })

	require.NoError(t, err)
	assert.Equal(t, "https://host.example/abc", url)
	assert.Greater(t, progressCalls, 0)
}

func TestUploadHostFailureReportsReason(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(hostResponse{Success: false, Reason: "quota exceeded"})
	}))
	defer srv.Close()

	u := New(srv.URL)
	_, err := u.Upload(context.Background(), writeTempClip(t), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestUploadNon2xxStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	u := New(srv.URL)
	_, err := u.Upload(context.Background(), writeTempClip(t), nil)
	require.Error(t, err)
}
