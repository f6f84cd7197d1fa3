package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Riotcoke123/clipper/internal/apierr"
	"github.com/Riotcoke123/clipper/internal/domain"
)

type captureRequest struct {
	Platform    domain.Platform `json:"platform"`
	StreamerID  string          `json:"streamerId"`
	MaxDuration int             `json:"maxDuration"`
}

// handleCapture creates a job and starts its resolve/capture pipeline,
// returning the job's id immediately.
func (s *Server) handleCapture(c echo.Context) error {
	var req captureRequest
	if err := c.Bind(&req); err != nil {
		return apierr.HandleError(c, apierr.InvalidRangeError("malformed request body"))
	}
	if req.Platform == "" || req.StreamerID == "" {
		return apierr.HandleError(c, apierr.InvalidRangeError("platform and streamerId are required"))
	}

	ref := domain.StreamerRef{Platform: req.Platform, PlatformID: req.StreamerID}
	j := s.pipeline.StartCapture(c.Request().Context(), req.Platform, ref, req.MaxDuration)
	return c.JSON(http.StatusAccepted, j)
}

// handleListJobs returns every tracked job.
func (s *Server) handleListJobs(c echo.Context) error {
	return c.JSON(http.StatusOK, s.jobs.List())
}

// handleGetJob returns one job's current state, 404ing if unknown.
func (s *Server) handleGetJob(c echo.Context) error {
	j, ok := s.jobs.Get(c.Param("id"))
	if !ok {
		return apierr.HandleError(c, apierr.NotFoundError("job "+c.Param("id")+" not found"))
	}
	return c.JSON(http.StatusOK, j)
}

type clipRequest struct {
	ClipID    string `json:"clipId"`
	StartTime int    `json:"startTime"`
	Duration  int    `json:"duration"`
	Title     string `json:"title"`
}

// handleCreateClip starts extraction for a captured job's buffer.
func (s *Server) handleCreateClip(c echo.Context) error {
	var req clipRequest
	if err := c.Bind(&req); err != nil {
		return apierr.HandleError(c, apierr.InvalidRangeError("malformed request body"))
	}

	j, err := s.pipeline.CreateClip(c.Request().Context(), req.ClipID, req.StartTime, req.Duration, req.Title)
	if err != nil {
		return apierr.HandleError(c, err)
	}
	return c.JSON(http.StatusAccepted, j)
}

type previewRequest struct {
	ClipID    string `json:"clipId"`
	NumFrames int    `json:"numFrames"`
}

// handleGeneratePreview produces preview frames from a captured job's
// buffer without advancing its state.
func (s *Server) handleGeneratePreview(c echo.Context) error {
	var req previewRequest
	if err := c.Bind(&req); err != nil {
		return apierr.HandleError(c, apierr.InvalidRangeError("malformed request body"))
	}

	j, err := s.pipeline.GeneratePreview(c.Request().Context(), req.ClipID, req.NumFrames)
	if err != nil {
		return apierr.HandleError(c, err)
	}
	return c.JSON(http.StatusOK, j)
}

type uploadRequest struct {
	ClipID string `json:"clipId"`
}

// handleUpload pushes a completed job's clip to the external file host.
func (s *Server) handleUpload(c echo.Context) error {
	var req uploadRequest
	if err := c.Bind(&req); err != nil {
		return apierr.HandleError(c, apierr.InvalidRangeError("malformed request body"))
	}

	j, err := s.pipeline.Upload(c.Request().Context(), req.ClipID)
	if err != nil {
		return apierr.HandleError(c, err)
	}
	return c.JSON(http.StatusAccepted, j)
}
