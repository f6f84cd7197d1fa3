package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/Riotcoke123/clipper/internal/adapter/httpserver"
	"github.com/Riotcoke123/clipper/internal/adapters/kick"
	"github.com/Riotcoke123/clipper/internal/adapters/parti"
	"github.com/Riotcoke123/clipper/internal/adapters/rumble"
	"github.com/Riotcoke123/clipper/internal/adapters/trovo"
	"github.com/Riotcoke123/clipper/internal/adapters/twitch"
	"github.com/Riotcoke123/clipper/internal/adapters/youtube"
	"github.com/Riotcoke123/clipper/internal/browser"
	"github.com/Riotcoke123/clipper/internal/capture"
	"github.com/Riotcoke123/clipper/internal/catalog"
	"github.com/Riotcoke123/clipper/internal/clip"
	"github.com/Riotcoke123/clipper/internal/domain"
	"github.com/Riotcoke123/clipper/internal/events"
	"github.com/Riotcoke123/clipper/internal/gc"
	"github.com/Riotcoke123/clipper/internal/jobs"
	"github.com/Riotcoke123/clipper/internal/pipeline"
	"github.com/Riotcoke123/clipper/internal/platform/config"
	"github.com/Riotcoke123/clipper/internal/platform/logging"
	"github.com/Riotcoke123/clipper/internal/resolve"
	"github.com/Riotcoke123/clipper/internal/scheduler"
	"github.com/Riotcoke123/clipper/internal/upload"
)

const shutdownGrace = 10 * time.Second

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized.
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

// buildRoster constructs one catalog.RosterEntry per enabled platform,
// wiring the API-backed adapters directly and the scrape-backed ones
// (kick, youtube) against the shared headless browser pool.
func buildRoster(cfg *config.Config, roster *config.Roster, pool *browser.Pool, clock clockwork.Clock) []catalog.RosterEntry {
	var entries []catalog.RosterEntry

	add := func(enabled bool, platform domain.Platform, adapter domain.Adapter) {
		if !enabled {
			return
		}
		entries = append(entries, catalog.RosterEntry{Adapter: adapter, Refs: roster.Refs[platform]})
	}

	add(cfg.EnableTwitch, domain.PlatformTwitch, twitch.New(roster.Credentials.TwitchClientID, roster.Credentials.TwitchClientSecret, clock))
	add(cfg.EnableParti, domain.PlatformParti, parti.New(clock))
	add(cfg.EnableRumble, domain.PlatformRumble, rumble.New(clock))
	add(cfg.EnableTrovo, domain.PlatformTrovo, trovo.New(clock))
	add(cfg.EnableKick, domain.PlatformKick, kick.New(pool, clock))
	add(cfg.EnableYouTube, domain.PlatformYouTube, youtube.New(pool, clock))

	return entries
}

// watchPages maps each scrape-capable platform to the watch-page URL the
// resolver falls back to when a catalog entry's StreamURL is stale or
// missing.
func watchPages(cfg *config.Config) map[domain.Platform]resolve.WatchPageFunc {
	return map[domain.Platform]resolve.WatchPageFunc{
		domain.PlatformKick:    func(ref domain.StreamerRef) string { return "https://kick.com/" + ref.PlatformID },
		domain.PlatformYouTube: func(ref domain.StreamerRef) string { return "https://www.youtube.com/channel/" + ref.PlatformID },
	}
}

// schedulerRefresher adapts catalog.Aggregator's Refresh (which returns a
// snapshot) to scheduler.Refresher's error-only signature.
type schedulerRefresher struct {
	aggregator *catalog.Aggregator
}

func (r schedulerRefresher) Refresh(ctx context.Context) error {
	_, err := r.aggregator.Refresh(ctx)
	return err
}

func buildHealthChecks(aggregator *catalog.Aggregator) []httpserver.HealthCheck {
	return []httpserver.HealthCheck{
		{
			Name: "catalog",
			Check: func(ctx context.Context) error {
				if aggregator.Latest().GeneratedAt.IsZero() {
					return errors.New("catalog has not completed an initial refresh")
				}
				return nil
			},
		},
	}
}

func runGracefulShutdown(srv *httpserver.Server, sched *scheduler.Scheduler, bus *events.Bus, pool *browser.Pool) <-chan struct{} {
	done := make(chan struct{})
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigCh
		slog.Info("shutdown signal received, cleaning up")

		sched.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}

		pool.Close(shutdownGrace)
		bus.Stop()

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("application starting", "port", cfg.Port)

	roster, err := config.LoadRoster(cfg.RosterFile)
	if err != nil {
		slog.Error("failed to load roster", "error", err)
		os.Exit(1)
	}

	pool := browser.New()

	bus := events.New(clock)
	store := catalog.NewStore(cfg.CatalogPath)
	rosterEntries := buildRoster(cfg, roster, pool, clock)
	aggregator := catalog.NewAggregator(rosterEntries, store, bus, clock)

	resolver := resolve.New(aggregator, pool, watchPages(cfg))
	capturer := capture.NewWithBinary(cfg.FFmpegPath)
	extractor := clip.NewWithBinary(cfg.FFmpegPath)
	uploader := upload.New(cfg.UploadEndpoint)

	jobsBroker := jobs.New(clock, bus)

	pipelineSvc := pipeline.New(jobsBroker, resolver, capturer, extractor, uploader,
		cfg.TempDir, cfg.ClipsDir, cfg.ThumbnailsDir, cfg.PreviewsDir, cfg.MaxClipDuration)

	collector := gc.New(jobsBroker, clock, cfg.TempDir, cfg.ClipsDir, cfg.ThumbnailsDir, cfg.PreviewsDir)
	sched := scheduler.New(schedulerRefresher{aggregator: aggregator}, collector, clock, cfg.RefreshInterval)

	healthChecks := buildHealthChecks(aggregator)
	srv := httpserver.NewServer(cfg, aggregator, pipelineSvc, jobsBroker, bus, healthChecks)

	schedCtx, schedCancel := context.WithCancel(context.Background())
	defer schedCancel()
	sched.Start(schedCtx)

	done := runGracefulShutdown(srv, sched, bus, pool)

	slog.Info("server starting", "port", cfg.Port)
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	<-done
}
