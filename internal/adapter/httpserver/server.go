package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Riotcoke123/clipper/internal/domain"
	"github.com/Riotcoke123/clipper/internal/events"
	"github.com/Riotcoke123/clipper/internal/platform/config"
)

// Catalog is the subset of catalog.Aggregator the HTTP surface needs.
type Catalog interface {
	Latest() domain.CatalogSnapshot
	Refresh(ctx context.Context) (domain.CatalogSnapshot, error)
	RefreshPlatform(ctx context.Context, platform domain.Platform) (domain.CatalogSnapshot, error)
}

// Pipeline is the subset of pipeline.Service the HTTP surface needs.
type Pipeline interface {
	StartCapture(ctx context.Context, platform domain.Platform, ref domain.StreamerRef, maxDuration int) domain.Job
	CreateClip(ctx context.Context, jobID string, startS, durationS int, title string) (domain.Job, error)
	GeneratePreview(ctx context.Context, jobID string, numFrames int) (domain.Job, error)
	Upload(ctx context.Context, jobID string) (domain.Job, error)
}

// Jobs is the subset of jobs.Broker the HTTP surface needs for reads and
// the clip deletion endpoint.
type Jobs interface {
	Get(id string) (domain.Job, bool)
	List() []domain.Job
	Delete(id string) error
}

// Server wires the catalog, pipeline, job registry, and event bus into
// §6's REST + WebSocket surface.
type Server struct {
	echo     *echo.Echo
	config   *config.Config
	catalog  Catalog
	pipeline Pipeline
	jobs     Jobs
	bus      *events.Bus

	clipsDir  string
	thumbsDir string

	healthChecks []HealthCheck
	startTime    time.Time
}

func NewServer(cfg *config.Config, catalog Catalog, pl Pipeline, jobsBroker Jobs, bus *events.Bus, healthChecks []HealthCheck) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := &Server{
		echo:         e,
		config:       cfg,
		catalog:      catalog,
		pipeline:     pl,
		jobs:         jobsBroker,
		bus:          bus,
		clipsDir:     cfg.ClipsDir,
		thumbsDir:    cfg.ThumbnailsDir,
		healthChecks: healthChecks,
		startTime:    time.Now(),
	}

	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	slog.Info("starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil {
		return fmt.Errorf("start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown server: %w", err)
	}
	return nil
}
