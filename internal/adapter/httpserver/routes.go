package httpserver

import (
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/Riotcoke123/clipper/internal/apierr"
)

func (s *Server) registerRoutes() {
	s.echo.Use(correlationMiddleware)
	s.echo.Use(s.setupRequestLoggerMiddleware())
	s.echo.Use(middleware.Recover())
	s.echo.Use(apierr.Middleware())
	s.echo.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:      "",
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "DENY",
		ReferrerPolicy:     "strict-origin-when-cross-origin",
	}))

	s.registerHealthRoutes()

	api := s.echo.Group("/api", s.apiKeyMiddleware(), newRateLimiter(20, 40))
	api.GET("/streamers", s.handleListStreamers)
	api.GET("/streamers/live", s.handleLiveStreamers)
	api.GET("/streamers/:platform", s.handleStreamersByPlatform)
	api.POST("/refresh", s.handleRefresh)
	api.POST("/refresh/:platform", s.handleRefreshPlatform)
	api.POST("/capture", s.handleCapture)
	api.GET("/jobs", s.handleListJobs)
	api.GET("/jobs/:id", s.handleGetJob)
	api.POST("/clip", s.handleCreateClip)
	api.POST("/preview", s.handleGeneratePreview)
	api.POST("/upload", s.handleUpload)
	api.GET("/clips", s.handleListClips)
	api.DELETE("/clips/:id", s.handleDeleteClip)

	s.echo.GET("/ws", s.handleWebSocket, s.apiKeyMiddleware())
}

func (s *Server) setupRequestLoggerMiddleware() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
			}
			if v.Error != nil {
				attrs = append(attrs, "error", v.Error)
			}
			slog.Info("request", attrs...)
			return nil
		},
	})
}
