// Package upload implements the C7 uploader: a multipart POST of a
// finished clip to an external file host, reporting per-byte progress as
// the body streams, per §4.7. No automatic retry.
package upload

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/Riotcoke123/clipper/internal/apierr"
)

type Uploader struct {
	client   *http.Client
	endpoint string
}

func New(endpoint string) *Uploader {
	return &Uploader{client: &http.Client{}, endpoint: endpoint}
}

type hostResponse struct {
	Success bool   `json:"success"`
	URL     string `json:"url"`
	Reason  string `json:"reason"`
}

// countingReader calls onProgress with cumulative bytes read, driving the
// job's per-byte upload progress as the multipart body streams out.
type countingReader struct {
	r          io.Reader
	read       int64
	onProgress func(read int64)
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.read += int64(n)
	if c.onProgress != nil {
		c.onProgress(c.read)
	}
	return n, err
}

// Upload streams clipPath as multipart form data to the configured host.
// On 2xx with success=true it returns the host-assigned URL; any other
// outcome is an apierr.UploadError carrying the host's reason when present.
func (u *Uploader) Upload(ctx context.Context, clipPath string, onProgress func(bytesSent int64)) (string, error) {
	f, err := os.Open(clipPath)
	if err != nil {
		return "", apierr.UploadErrorf("open clip file", err)
	}
	defer f.Close()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		defer pw.Close()
		defer mw.Close()

		part, err := mw.CreateFormFile("file", filepath.Base(clipPath))
		if err != nil {
			pw.CloseWithError(fmt.Errorf("create form file: %w", err))
			return
		}
		if _, err := io.Copy(part, f); err != nil {
			pw.CloseWithError(fmt.Errorf("stream clip body: %w", err))
			return
		}
	}()

	counting := &countingReader{r: pr, onProgress: onProgress}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.endpoint, counting)
	if err != nil {
		return "", apierr.UploadErrorf("build upload request", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := u.client.Do(req)
	if err != nil {
		return "", apierr.UploadErrorf("upload request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", apierr.UploadErrorf(fmt.Sprintf("upload host returned status %d", resp.StatusCode), nil)
	}

	var hr hostResponse
	if err := json.NewDecoder(resp.Body).Decode(&hr); err != nil {
		return "", apierr.UploadErrorf("decode upload host response", err)
	}
	if !hr.Success {
		reason := hr.Reason
		if reason == "" {
			reason = "upload host reported failure"
		}
		return "", apierr.UploadErrorf(reason, nil)
	}
	return hr.URL, nil
}
