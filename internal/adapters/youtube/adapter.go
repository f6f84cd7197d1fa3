// Package youtube implements the second HTML-scrape adapter, grounded on
// original_source/yt.py: a live-page probe at /channel/{id}/live, falling
// back to the plain channel page for display name, avatar, and last
// broadcast text when no live badge is found.
package youtube

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/jonboulle/clockwork"

	"github.com/Riotcoke123/clipper/internal/browser"
	"github.com/Riotcoke123/clipper/internal/domain"
	"github.com/Riotcoke123/clipper/internal/scrapeutil"
)

const (
	defaultBaseURL  = "https://www.youtube.com/channel/"
	navigateTimeout = 60 * time.Second
	selectorWait    = 3 * time.Second
	userAgent       = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/135.0.0.0 Safari/537.36"
)

const (
	viewerCountSel  = "#view-count yt-animated-rolling-number"
	liveUsernameSel = "#text a"
	liveAvatarSel   = "#img"
	liveTitleSel    = "#title h1 yt-formatted-string"

	offUsernameSel = "#page-header h1 span"
	offAvatarSel   = "#page-header img"
	offLastSel     = "#metadata-line span:nth-child(4)"
)

type Adapter struct {
	pool    *browser.Pool
	clock   clockwork.Clock
	baseURL string
	probe   *http.Client
}

func New(pool *browser.Pool, clock clockwork.Clock) *Adapter {
	return &Adapter{pool: pool, clock: clock, baseURL: defaultBaseURL, probe: &http.Client{Timeout: 10 * time.Second}}
}

func NewWithBaseURL(pool *browser.Pool, clock clockwork.Clock, baseURL string) *Adapter {
	a := New(pool, clock)
	a.baseURL = baseURL
	return a
}

func (a *Adapter) Platform() domain.Platform { return domain.PlatformYouTube }
func (a *Adapter) Kind() domain.AdapterKind  { return domain.AdapterScrape }

func (a *Adapter) Fetch(ctx context.Context, ref domain.StreamerRef) domain.StreamerRecord {
	now := a.clock.Now()
	channelURL := a.baseURL + ref.PlatformID
	rec := domain.StreamerRecord{
		Platform:    ref.Platform,
		PlatformID:  ref.PlatformID,
		ChannelURL:  channelURL,
		DisplayName: ref.PlatformID,
		LastChecked: now,
	}

	if notFound, err := a.probeNotFound(ctx, channelURL); err != nil {
		rec.Status = domain.Status{Kind: domain.StatusError, Reason: fmt.Sprintf("probe failed: %v", err)}
		return rec
	} else if notFound {
		rec.Status = domain.Status{Kind: domain.StatusNotFound}
		return rec
	}

	page, err := a.pool.Acquire(ctx)
	if err != nil {
		rec.Status = domain.Status{Kind: domain.StatusError, Reason: fmt.Sprintf("acquire browser page: %v", err)}
		return rec
	}
	defer page.Close()

	navCtx, cancel := context.WithTimeout(page.Ctx, navigateTimeout)
	defer cancel()

	liveURL := channelURL + "/live"
	var pageTitle string
	if err := chromedp.Run(navCtx,
		network.SetBlockedURLS([]string{"*.woff", "*.woff2", "*.ttf"}),
		chromedp.Navigate(liveURL),
		chromedp.Title(&pageTitle),
	); err != nil {
		rec.Status = domain.Status{Kind: domain.StatusError, Reason: fmt.Sprintf("navigate failed: %v", err)}
		return rec
	}

	if viewerText := a.textOrDefault(navCtx, viewerCountSel, ""); viewerText != "" {
		rec.DisplayName = a.textOrDefault(navCtx, liveUsernameSel, ref.PlatformID)
		rec.AvatarURL = a.attrOrDefault(navCtx, liveAvatarSel, "src", "")
		title := a.textOrDefault(navCtx, liveTitleSel, "")
		rec.Status = domain.Status{
			Kind:        domain.StatusLive,
			Title:       title,
			ViewerCount: parseViewerCount(viewerText),
			StartedAt:   now,
		}
		return rec
	}

	if err := chromedp.Run(navCtx, chromedp.Navigate(channelURL)); err != nil {
		rec.Status = domain.Status{Kind: domain.StatusError, Reason: fmt.Sprintf("channel page navigate failed: %v", err)}
		return rec
	}

	rec.DisplayName = a.textOrDefault(navCtx, offUsernameSel, ref.PlatformID)
	rec.AvatarURL = a.attrOrDefault(navCtx, offAvatarSel, "src", "")
	lastText := a.textOrDefault(navCtx, offLastSel, "Unavailable")
	status := domain.Status{Kind: domain.StatusOffline}
	if t, ok := scrapeutil.ParseRelativeTime(lastText, now); ok {
		status.LastBroadcastAt = &t
	}
	rec.Status = status
	return rec
}

func (a *Adapter) probeNotFound(ctx context.Context, url string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("User-Agent", userAgent)
	resp, err := a.probe.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return true, nil
	}
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return false, nil
	}
	title := strings.ToLower(doc.Find("title").Text())
	return strings.Contains(title, "404") || strings.Contains(title, "not found"), nil
}

// parseViewerCount handles YouTube's "1,234 watching now" shape, which
// differs from the Kick/Trovo "1.2k"/"3M" shape scrapeutil.ParseViewerCount
// targets: strip commas, take the leading numeric token.
func parseViewerCount(text string) uint32 {
	t := strings.ReplaceAll(text, ",", "")
	fields := strings.Fields(t)
	if len(fields) == 0 {
		return 0
	}
	n, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return uint32(n)
}

func (a *Adapter) textOrDefault(ctx context.Context, sel, def string) string {
	waitCtx, cancel := context.WithTimeout(ctx, selectorWait)
	defer cancel()
	var text string
	if err := chromedp.Run(waitCtx, chromedp.Text(sel, &text, chromedp.ByQuery)); err != nil {
		return def
	}
	return strings.TrimSpace(text)
}

func (a *Adapter) attrOrDefault(ctx context.Context, sel, attr, def string) string {
	waitCtx, cancel := context.WithTimeout(ctx, selectorWait)
	defer cancel()
	var val string
	var ok bool
	if err := chromedp.Run(waitCtx, chromedp.AttributeValue(sel, attr, &val, &ok, chromedp.ByQuery)); err != nil || !ok {
		return def
	}
	return val
}
