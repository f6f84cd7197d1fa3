// Package resolve implements the C4 stream-URL resolver: a catalog lookup
// first, then a live browser probe that intercepts the platform's media
// playlist request. Concurrent resolves for the same streamer are
// collapsed with singleflight so two capture jobs started back-to-back
// don't each pay for a separate browser probe.
package resolve

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"golang.org/x/sync/singleflight"

	"github.com/Riotcoke123/clipper/internal/apierr"
	"github.com/Riotcoke123/clipper/internal/browser"
	"github.com/Riotcoke123/clipper/internal/domain"
)

const (
	postReadyWaitBudget = 10 * time.Second
	playlistExt         = ".m3u8"
)

// Catalog is the subset of catalog.Aggregator the resolver needs: the
// latest in-memory snapshot, consulted before any browser probe.
type Catalog interface {
	Latest() domain.CatalogSnapshot
}

// WatchPageFunc returns the platform's watch-page URL for a streamer ref,
// one per scrape-capable platform (the API-backed platforms are expected
// to populate StreamerRecord.StreamURL directly and never reach the probe
// fallback in practice, but a watch page is still provided for completeness
// when a catalog entry is missing or stale).
type WatchPageFunc func(ref domain.StreamerRef) string

type Resolver struct {
	catalog    Catalog
	pool       *browser.Pool
	watchPages map[domain.Platform]WatchPageFunc
	group      singleflight.Group
}

func New(catalog Catalog, pool *browser.Pool, watchPages map[domain.Platform]WatchPageFunc) *Resolver {
	return &Resolver{catalog: catalog, pool: pool, watchPages: watchPages}
}

// Resolve implements §4.4's two-step lookup. Failure is always an
// apierr.ResolveError — no silent retry, since the catalog refreshes every
// minute and the caller can simply retry the surrounding job.
func (r *Resolver) Resolve(ctx context.Context, ref domain.StreamerRef) (string, error) {
	if rec, ok := r.catalog.Latest().Find(ref); ok && rec.IsLive() && rec.StreamURL != "" {
		return rec.StreamURL, nil
	}

	v, err, _ := r.group.Do(ref.String(), func() (any, error) {
		return r.probe(ctx, ref)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (r *Resolver) probe(ctx context.Context, ref domain.StreamerRef) (string, error) {
	watchPage, ok := r.watchPages[ref.Platform]
	if !ok {
		return "", apierr.ResolveErrorf(fmt.Sprintf("no watch-page probe configured for platform %s", ref.Platform), nil)
	}
	url := watchPage(ref)

	page, err := r.pool.Acquire(ctx)
	if err != nil {
		return "", apierr.ResolveErrorf("acquire browser page", err)
	}
	defer page.Close()

	found := make(chan string, 1)
	ctx, cancel := context.WithTimeout(page.Ctx, postReadyWaitBudget+30*time.Second)
	defer cancel()

	chromedp.ListenTarget(ctx, func(ev any) {
		resp, ok := ev.(*network.EventResponseReceived)
		if !ok {
			return
		}
		if strings.Contains(resp.Response.URL, playlistExt) {
			select {
			case found <- resp.Response.URL:
			default:
			}
		}
	})

	err = chromedp.Run(ctx,
		network.Enable(),
		chromedp.Navigate(url),
		chromedp.WaitReady("video", chromedp.ByQuery),
		chromedp.Evaluate(`(function(){var v=document.querySelector("video"); if(v){v.currentTime=0; v.play();}})()`, nil),
	)
	if err != nil {
		return "", apierr.ResolveErrorf(fmt.Sprintf("navigate/probe failed for %s", ref), err)
	}

	select {
	case u := <-found:
		return u, nil
	case <-time.After(postReadyWaitBudget):
		return "", apierr.ResolveErrorf(fmt.Sprintf("no media playlist intercepted within wait budget for %s", ref), nil)
	case <-ctx.Done():
		return "", apierr.ResolveErrorf(fmt.Sprintf("probe context done for %s", ref), ctx.Err())
	}
}
