package httpserver

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Riotcoke123/clipper/internal/apierr"
)

// clipInfo describes one finished clip file on disk for the listing
// endpoint.
type clipInfo struct {
	ID            string `json:"id"`
	SizeBytes     int64  `json:"sizeBytes"`
	HasThumbnail  bool   `json:"hasThumbnail"`
	ThumbnailPath string `json:"thumbnailPath,omitempty"`
}

// handleListClips lists every finished clip file in the clips directory
// alongside its size and whether a matching thumbnail exists.
func (s *Server) handleListClips(c echo.Context) error {
	entries, err := os.ReadDir(s.clipsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return c.JSON(http.StatusOK, []clipInfo{})
		}
		return apierr.HandleError(c, apierr.InternalError("failed to list clips", err))
	}

	clips := make([]clipInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".mp4" {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), ".mp4")

		info, err := entry.Info()
		if err != nil {
			continue
		}

		ci := clipInfo{ID: id, SizeBytes: info.Size()}
		thumbPath := filepath.Join(s.thumbsDir, id+".jpg")
		if _, err := os.Stat(thumbPath); err == nil {
			ci.HasThumbnail = true
			ci.ThumbnailPath = thumbPath
		}
		clips = append(clips, ci)
	}

	return c.JSON(http.StatusOK, clips)
}

// handleDeleteClip removes a clip's file, thumbnail, and job registry
// entry. The job must be in a terminal state for the registry delete to
// succeed; the clip and thumbnail files are removed regardless.
func (s *Server) handleDeleteClip(c echo.Context) error {
	id := c.Param("id")

	clipPath := filepath.Join(s.clipsDir, id+".mp4")
	if err := os.Remove(clipPath); err != nil && !os.IsNotExist(err) {
		return apierr.HandleError(c, apierr.InternalError("failed to remove clip file", err))
	}

	thumbPath := filepath.Join(s.thumbsDir, id+".jpg")
	if err := os.Remove(thumbPath); err != nil && !os.IsNotExist(err) {
		return apierr.HandleError(c, apierr.InternalError("failed to remove thumbnail file", err))
	}

	if err := s.jobs.Delete(id); err != nil {
		return apierr.HandleError(c, err)
	}

	return c.NoContent(http.StatusNoContent)
}
