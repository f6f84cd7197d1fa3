package httpserver

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Riotcoke123/clipper/internal/apierr"
	"github.com/Riotcoke123/clipper/internal/domain"
)

// handleListStreamers returns the current catalog partitioned by platform.
func (s *Server) handleListStreamers(c echo.Context) error {
	snap := s.catalog.Latest()
	return c.JSON(http.StatusOK, snap.ByPlatform())
}

// handleLiveStreamers returns the live subset, already sorted by viewer
// count in the snapshot's total order.
func (s *Server) handleLiveStreamers(c echo.Context) error {
	snap := s.catalog.Latest()
	return c.JSON(http.StatusOK, snap.Live())
}

// handleStreamersByPlatform returns one platform's slice, 404ing on an
// unrecognized platform.
func (s *Server) handleStreamersByPlatform(c echo.Context) error {
	platform := domain.Platform(c.Param("platform"))
	byPlatform := s.catalog.Latest().ByPlatform()
	records, ok := byPlatform[platform]
	if !ok {
		return apierr.HandleError(c, apierr.NotFoundError("unknown platform "+string(platform)))
	}
	return c.JSON(http.StatusOK, records)
}

// handleRefresh triggers an immediate full refresh in the background and
// returns 202 without waiting for it to complete.
func (s *Server) handleRefresh(c echo.Context) error {
	ctx := c.Request().Context()
	go func() {
		if _, err := s.catalog.Refresh(context.WithoutCancel(ctx)); err != nil {
			c.Logger().Error(err)
		}
	}()
	return c.NoContent(http.StatusAccepted)
}

// handleRefreshPlatform triggers an immediate refresh scoped to one
// platform in the background, returning 404 synchronously for an unknown
// one before any work is scheduled.
func (s *Server) handleRefreshPlatform(c echo.Context) error {
	platform := domain.Platform(c.Param("platform"))
	if !isKnownPlatform(platform) {
		return apierr.HandleError(c, apierr.NotFoundError("unknown platform "+string(platform)))
	}

	ctx := c.Request().Context()
	go func() {
		if _, err := s.catalog.RefreshPlatform(context.WithoutCancel(ctx), platform); err != nil {
			c.Logger().Error(err)
		}
	}()
	return c.NoContent(http.StatusAccepted)
}

func isKnownPlatform(platform domain.Platform) bool {
	for _, p := range domain.Platforms {
		if p == platform {
			return true
		}
	}
	return false
}
