package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/errgroup"

	"github.com/Riotcoke123/clipper/internal/domain"
	"github.com/Riotcoke123/clipper/internal/metrics"
)

// apiWorkerLimit bounds concurrent API adapter calls per refresh, per §4.2.
const apiWorkerLimit = 5

// RosterEntry pairs a platform adapter with its configured streamer refs.
type RosterEntry struct {
	Adapter domain.Adapter
	Refs    []domain.StreamerRef
}

// Aggregator fans adapter calls out across the roster, merges results under
// the §4.2 total order, and publishes/persists the resulting snapshot.
type Aggregator struct {
	roster    []RosterEntry
	store     domain.CatalogStore
	publisher domain.Publisher
	clock     clockwork.Clock

	breakers map[domain.Platform]*gobreaker.CircuitBreaker

	mu   sync.Mutex
	last domain.CatalogSnapshot
}

func NewAggregator(roster []RosterEntry, store domain.CatalogStore, publisher domain.Publisher, clock clockwork.Clock) *Aggregator {
	a := &Aggregator{
		roster:    roster,
		store:     store,
		publisher: publisher,
		clock:     clock,
		breakers:  make(map[domain.Platform]*gobreaker.CircuitBreaker),
	}
	for _, entry := range roster {
		platform := entry.Adapter.Platform()
		a.breakers[platform] = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        string(platform),
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
		})
	}
	return a
}

// Latest returns the most recently published snapshot held in memory,
// avoiding a round trip through the store for callers (the C4 resolver)
// that only need the current in-process view.
func (a *Aggregator) Latest() domain.CatalogSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.last
}

// Refresh fans out every roster entry, substituting the prior snapshot's
// slice for any platform that fails, and publishes/persists the merged
// result. It never returns a catastrophically empty catalog if at least one
// platform succeeded.
func (a *Aggregator) Refresh(ctx context.Context) (domain.CatalogSnapshot, error) {
	return a.refresh(ctx, "")
}

// RefreshPlatform runs a full refresh cycle but only actually re-fetches the
// named platform's roster entries, substituting the prior snapshot's slice
// for every other platform. Returns an error if platform is not present in
// the roster.
func (a *Aggregator) RefreshPlatform(ctx context.Context, platform domain.Platform) (domain.CatalogSnapshot, error) {
	found := false
	for _, entry := range a.roster {
		if entry.Adapter.Platform() == platform {
			found = true
			break
		}
	}
	if !found {
		return domain.CatalogSnapshot{}, fmt.Errorf("unknown platform %q", platform)
	}
	return a.refresh(ctx, platform)
}

// refresh fans every roster entry out, restricting the actual fetch to
// `only` when non-empty and substituting the prior snapshot's slice for
// every other platform.
func (a *Aggregator) refresh(ctx context.Context, only domain.Platform) (domain.CatalogSnapshot, error) {
	start := a.clock.Now()
	prior := a.priorSnapshot(ctx)
	priorByPlatform := prior.ByPlatform()

	results := make(map[domain.Platform][]domain.StreamerRecord, len(a.roster))
	var mu sync.Mutex

	api, scrape := splitByKind(a.roster)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(apiWorkerLimit)
	for _, entry := range api {
		entry := entry
		if only != "" && entry.Adapter.Platform() != only {
			continue
		}
		g.Go(func() error {
			recs := a.fetchPlatform(gctx, entry)
			mu.Lock()
			results[entry.Adapter.Platform()] = recs
			mu.Unlock()
			return nil
		})
	}

	var scrapeWg sync.WaitGroup
	for _, entry := range scrape {
		entry := entry
		if only != "" && entry.Adapter.Platform() != only {
			continue
		}
		scrapeWg.Add(1)
		go func() {
			defer scrapeWg.Done()
			recs := a.fetchPlatform(ctx, entry)
			mu.Lock()
			results[entry.Adapter.Platform()] = recs
			mu.Unlock()
		}()
	}

	_ = g.Wait()
	scrapeWg.Wait()

	merged := make([]domain.StreamerRecord, 0, len(prior.Streamers))
	anySucceeded := false
	for _, entry := range a.roster {
		platform := entry.Adapter.Platform()
		recs, ok := results[platform]
		if !ok || len(recs) == 0 && len(entry.Refs) > 0 {
			slog.Warn("platform refresh failed, substituting prior snapshot", "platform", platform)
			recs = priorByPlatform[platform]
		} else {
			anySucceeded = true
		}
		merged = append(merged, recs...)
	}
	if !anySucceeded && len(prior.Streamers) > 0 {
		merged = append(merged[:0], prior.Streamers...)
	}

	Sort(merged)
	snap := domain.CatalogSnapshot{GeneratedAt: a.clock.Now(), Streamers: merged}

	if err := a.store.Save(ctx, snap); err != nil {
		slog.Error("failed to persist catalog snapshot", "error", err)
	}

	a.mu.Lock()
	a.last = snap
	a.mu.Unlock()

	if a.publisher != nil {
		a.publisher.Publish(domain.NewCatalogEvent(snap))
	}

	metrics.CatalogRefreshDurationSeconds.Observe(a.clock.Since(start).Seconds())
	metrics.CatalogRefreshTotal.Inc()
	metrics.CatalogStreamersLive.Set(float64(len(snap.Live())))

	return snap, nil
}

func (a *Aggregator) priorSnapshot(ctx context.Context) domain.CatalogSnapshot {
	a.mu.Lock()
	if len(a.last.Streamers) > 0 {
		defer a.mu.Unlock()
		return a.last
	}
	a.mu.Unlock()

	loaded, err := a.store.Load(ctx)
	if err != nil {
		slog.Error("failed to load persisted catalog", "error", err)
		return domain.CatalogSnapshot{}
	}
	return loaded
}

func (a *Aggregator) fetchPlatform(ctx context.Context, entry RosterEntry) []domain.StreamerRecord {
	platform := entry.Adapter.Platform()
	breaker := a.breakers[platform]

	if batch, ok := entry.Adapter.(domain.BatchAdapter); ok {
		return a.fetchPlatformBatched(ctx, batch, entry.Refs, breaker)
	}

	out := make([]domain.StreamerRecord, 0, len(entry.Refs))
	for _, ref := range entry.Refs {
		ref := ref
		rec, err := breaker.Execute(func() (any, error) {
			r := entry.Adapter.Fetch(ctx, ref)
			if r.Status.Kind == domain.StatusError {
				return r, errCircuitTrip
			}
			return r, nil
		})
		if err != nil {
			metrics.AdapterFetchErrorsTotal.WithLabelValues(string(platform)).Inc()
			if rec == nil {
				out = append(out, domain.StreamerRecord{
					Platform:    ref.Platform,
					PlatformID:  ref.PlatformID,
					Status:      domain.Status{Kind: domain.StatusError, Reason: "circuit open"},
					LastChecked: a.clock.Now(),
				})
				continue
			}
		}
		out = append(out, rec.(domain.StreamerRecord))
	}
	return out
}

// oauthBatchSize is the documented Helix chunk size from §4.1.
const oauthBatchSize = 100

func (a *Aggregator) fetchPlatformBatched(ctx context.Context, adapter domain.BatchAdapter, refs []domain.StreamerRef, breaker *gobreaker.CircuitBreaker) []domain.StreamerRecord {
	out := make([]domain.StreamerRecord, 0, len(refs))
	for start := 0; start < len(refs); start += oauthBatchSize {
		end := start + oauthBatchSize
		if end > len(refs) {
			end = len(refs)
		}
		chunk := refs[start:end]

		res, err := breaker.Execute(func() (any, error) {
			recs := adapter.FetchAll(ctx, chunk)
			if allErrored(recs) {
				return recs, errCircuitTrip
			}
			return recs, nil
		})
		if err != nil {
			metrics.AdapterFetchErrorsTotal.WithLabelValues(string(adapter.Platform())).Inc()
			if res == nil {
				for _, ref := range chunk {
					out = append(out, domain.StreamerRecord{
						Platform:    ref.Platform,
						PlatformID:  ref.PlatformID,
						Status:      domain.Status{Kind: domain.StatusError, Reason: "circuit open"},
						LastChecked: a.clock.Now(),
					})
				}
				continue
			}
		}
		out = append(out, res.([]domain.StreamerRecord)...)
	}
	return out
}

// errCircuitTrip is a sentinel so gobreaker counts adapter-reported Error
// records as failures without the adapter itself returning a Go error
// (adapters never return errors, per §4.1).
var errCircuitTrip = errBreakerTrip{}

type errBreakerTrip struct{}

func (errBreakerTrip) Error() string { return "adapter reported error record" }

func allErrored(recs []domain.StreamerRecord) bool {
	if len(recs) == 0 {
		return true
	}
	for _, r := range recs {
		if r.Status.Kind != domain.StatusError {
			return false
		}
	}
	return true
}

func splitByKind(roster []RosterEntry) (api, scrape []RosterEntry) {
	for _, entry := range roster {
		if entry.Adapter.Kind() == domain.AdapterScrape {
			scrape = append(scrape, entry)
		} else {
			api = append(api, entry)
		}
	}
	return api, scrape
}
