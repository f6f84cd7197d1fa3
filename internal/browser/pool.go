// Package browser owns the single process-wide headless-browser instance
// used by the HTML-scrape adapters and the stream-URL resolver's probe
// fallback. Pages are created per operation and guaranteed to close on every
// exit path, including panics.
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/Riotcoke123/clipper/internal/metrics"
)

// Pool lazily initializes one chromedp allocator context and refcounts
// pages acquired from it so Close can wait for in-flight work to drain.
type Pool struct {
	mu        sync.Mutex
	allocCtx  context.Context
	allocStop context.CancelFunc
	browCtx   context.Context
	browStop  context.CancelFunc
	wg        sync.WaitGroup
	closed    bool
}

func New() *Pool {
	return &Pool{}
}

func (p *Pool) ensureStarted() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.allocCtx != nil {
		return
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
	)
	p.allocCtx, p.allocStop = chromedp.NewExecAllocator(context.Background(), opts...)
	p.browCtx, p.browStop = chromedp.NewContext(p.allocCtx)
}

// Page is an acquired browser tab. Close must be called exactly once; it is
// safe to call via defer immediately after a successful Acquire.
type Page struct {
	Ctx   context.Context
	stop  context.CancelFunc
	pool  *Pool
	start time.Time
}

func (pg *Page) Close() {
	pg.stop()
	pg.pool.wg.Done()
	metrics.BrowserPoolActivePages.Dec()
}

// Acquire returns a fresh tab context derived from the shared browser. The
// caller must defer Close() on every exit path (including panic recovery).
func (p *Pool) Acquire(ctx context.Context) (*Page, error) {
	start := time.Now()
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, fmt.Errorf("browser pool is closed")
	}
	p.mu.Unlock()

	p.ensureStarted()

	p.mu.Lock()
	p.wg.Add(1)
	browCtx := p.browCtx
	p.mu.Unlock()

	tabCtx, cancel := chromedp.NewContext(browCtx)
	tabCtx, timeoutCancel := context.WithCancel(tabCtx)
	_ = ctx

	stop := func() {
		timeoutCancel()
		cancel()
	}

	metrics.BrowserPoolActivePages.Inc()
	metrics.BrowserPoolAcquireDurationSeconds.Observe(time.Since(start).Seconds())

	return &Page{Ctx: tabCtx, stop: stop, pool: p, start: start}, nil
}

// Close shuts down the shared browser, blocking until all acquired pages
// have been released or the given timeout elapses.
func (p *Pool) Close(timeout time.Duration) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	browStop, allocStop := p.browStop, p.allocStop
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
	}

	if browStop != nil {
		browStop()
	}
	if allocStop != nil {
		allocStop()
	}
}
