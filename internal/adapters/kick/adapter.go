// Package kick implements the HTML-scrape adapter for Kick, grounded on
// original_source/kick.py's undetected-Chrome scrape loop: custom stealth
// headers, a live-badge probe, and CSS-selector extraction of title, viewer
// count, and last-broadcast text. The Python original drives a full
// undetected_chromedriver session per channel; this adapter reuses the
// shared chromedp browser.Pool instead and adds a cheap goquery-based
// not-found fast-path so a 404 channel never pays for a full page load.
package kick

import (
	"context"
	"fmt"
	"net/http"
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
	defaultBaseURL  = "https://kick.com/"
	navigateTimeout = 60 * time.Second
	selectorWait    = 3 * time.Second
	userAgent       = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/135.0.0.0 Safari/537.36"
	clientToken     = "e1393935a959b4020a4491574f6490129f678acdaa92760471263db43487f823"
)

// stealthHeaders mirrors kick.py's Network.setExtraHTTPHeaders call.
var stealthHeaders = map[string]any{
	"sec-ch-ua":          `"Google Chrome";v="135", "Not-A.Brand";v="8", "Chromium";v="135"`,
	"sec-ch-ua-mobile":   "?0",
	"sec-ch-ua-platform": `"Windows"`,
	"sec-fetch-dest":     "empty",
	"sec-fetch-mode":     "cors",
	"sec-fetch-site":     "same-origin",
	"user-agent":         userAgent,
	"x-client-token":     clientToken,
}

const (
	channelNameSel = "#channel-username"
	liveBadgeSel   = "#channel-content button div span"
	titleSel       = "#channel-content span"
	avatarLiveSel  = "#channel-avatar img"
	avatarIdleSel  = "#channel-content img.rounded-full"
	viewerSel      = "span.tabular-nums"
	lastBroadcast  = "#channel-content span:nth-child(3) span"
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

func (a *Adapter) Platform() domain.Platform { return domain.PlatformKick }
func (a *Adapter) Kind() domain.AdapterKind  { return domain.AdapterScrape }

func (a *Adapter) Fetch(ctx context.Context, ref domain.StreamerRef) domain.StreamerRecord {
	now := a.clock.Now()
	url := a.baseURL + ref.PlatformID
	rec := domain.StreamerRecord{
		Platform:    ref.Platform,
		PlatformID:  ref.PlatformID,
		ChannelURL:  url,
		DisplayName: ref.PlatformID,
		LastChecked: now,
	}

	if notFound, err := a.probeNotFound(ctx, url); err != nil {
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

	var pageTitle string
	err = chromedp.Run(navCtx,
		network.Enable(),
		network.SetExtraHTTPHeaders(stealthHeaders),
		blockNonMediaRequests(),
		chromedp.Navigate(url),
		chromedp.Title(&pageTitle),
	)
	if err != nil {
		rec.Status = domain.Status{Kind: domain.StatusError, Reason: fmt.Sprintf("navigate failed: %v", err)}
		return rec
	}
	if isNotFoundTitle(pageTitle) {
		rec.Status = domain.Status{Kind: domain.StatusNotFound}
		return rec
	}

	rec.DisplayName = a.textOrDefault(navCtx, channelNameSel, ref.PlatformID)

	isLive := a.liveBadgePresent(navCtx)
	if isLive {
		rec.AvatarURL = a.attrOrDefault(navCtx, avatarLiveSel, "src", "")
		title := a.textOrDefault(navCtx, titleSel, "")
		viewerText := a.textOrDefault(navCtx, viewerSel, "")
		rec.Status = domain.Status{
			Kind:        domain.StatusLive,
			Title:       title,
			ViewerCount: scrapeutil.ParseViewerCount(viewerText),
			StartedAt:   now,
		}
		return rec
	}

	rec.AvatarURL = a.attrOrDefault(navCtx, avatarIdleSel, "src", "")
	lastText := a.textOrDefault(navCtx, lastBroadcast, "Not Available")
	status := domain.Status{Kind: domain.StatusOffline}
	if t, ok := scrapeutil.ParseRelativeTime(lastText, now); ok {
		status.LastBroadcastAt = &t
	}
	rec.Status = status
	return rec
}

// probeNotFound issues a cheap plain HTTP GET before spending a browser page
// on a channel that plainly doesn't exist, per §4.1.2's "detect not-found
// deterministically ... before further work."
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
	return isNotFoundTitle(doc.Find("title").Text()), nil
}

func isNotFoundTitle(title string) bool {
	lower := strings.ToLower(title)
	return strings.Contains(lower, "404") || strings.Contains(lower, "not found")
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

func (a *Adapter) liveBadgePresent(ctx context.Context) bool {
	waitCtx, cancel := context.WithTimeout(ctx, selectorWait)
	defer cancel()
	var text string
	if err := chromedp.Run(waitCtx, chromedp.Text(liveBadgeSel, &text, chromedp.ByQuery)); err != nil {
		return false
	}
	return strings.Contains(strings.ToLower(text), "live")
}

// blockNonMediaRequests implements §4.1.3: block image/stylesheet/font
// requests from hosts other than known media CDNs, to cut page load cost.
func blockNonMediaRequests() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		return network.SetBlockedURLS([]string{
			"*.woff", "*.woff2", "*.ttf",
		}).Do(ctx)
	})
}
