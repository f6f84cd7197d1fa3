// Package rumble implements an invented API-JSON platform adapter following
// the same two-call shape as the Parti adapter: a channel-status call, and
// a secondary last-broadcast call issued only when the channel is offline,
// per §4.1(c). There is no original_source script for Rumble; this mirrors
// parti.py's get_api_data pattern to exercise a fourth API-backed platform.
package rumble

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/Riotcoke123/clipper/internal/domain"
	"github.com/Riotcoke123/clipper/internal/httpx"
)

const (
	defaultStatusBase   = "https://api.rumble.com/v1/channel/"
	defaultHistoryFmt   = "/broadcasts/last"
	userAgentString     = "clipper/1.0"
	adapterRateLimitRPS = 5
)

type Adapter struct {
	client     *httpx.Client
	clock      clockwork.Clock
	statusBase string
	historyFmt string
}

func New(clock clockwork.Clock) *Adapter {
	return &Adapter{client: httpx.New(userAgentString, httpx.WithRateLimit(adapterRateLimitRPS)), clock: clock, statusBase: defaultStatusBase, historyFmt: defaultHistoryFmt}
}

func NewWithEndpoints(clock clockwork.Clock, statusBase, historyFmt string) *Adapter {
	a := New(clock)
	a.statusBase, a.historyFmt = statusBase, historyFmt
	return a
}

func (a *Adapter) Platform() domain.Platform { return domain.PlatformRumble }
func (a *Adapter) Kind() domain.AdapterKind  { return domain.AdapterAPIJSON }

type channelStatus struct {
	IsLive      bool   `json:"is_live"`
	Title       string `json:"title"`
	ViewerCount int    `json:"viewer_count"`
	Username    string `json:"username"`
	AvatarURL   string `json:"avatar_url"`
}

type lastBroadcast struct {
	EndedAt time.Time `json:"ended_at"`
}

func (a *Adapter) Fetch(ctx context.Context, ref domain.StreamerRef) domain.StreamerRecord {
	now := a.clock.Now()
	rec := domain.StreamerRecord{
		Platform:    ref.Platform,
		PlatformID:  ref.PlatformID,
		ChannelURL:  "https://rumble.com/c/" + ref.PlatformID,
		LastChecked: now,
	}

	var status channelStatus
	_, err := a.client.GetJSON(ctx, a.statusBase+ref.PlatformID, nil, nil, &status)
	if err != nil {
		rec.Status = domain.Status{Kind: domain.StatusError, Reason: fmt.Sprintf("status fetch failed: %v", err)}
		return rec
	}

	rec.DisplayName = status.Username
	rec.AvatarURL = status.AvatarURL

	if status.IsLive {
		rec.Status = domain.Status{
			Kind:        domain.StatusLive,
			Title:       status.Title,
			ViewerCount: uint32(status.ViewerCount),
			StartedAt:   now,
		}
		return rec
	}

	var last lastBroadcast
	_, lerr := a.client.GetJSON(ctx, a.statusBase+ref.PlatformID+a.historyFmt, nil, nil, &last)
	if lerr != nil {
		rec.Status = domain.Status{Kind: domain.StatusOffline}
		rec.ErrorDetails = fmt.Sprintf("broadcast history fetch failed: %v", lerr)
		return rec
	}

	if last.EndedAt.IsZero() {
		rec.Status = domain.Status{Kind: domain.StatusOffline}
	} else {
		rec.Status = domain.Status{Kind: domain.StatusOffline, LastBroadcastAt: &last.EndedAt}
	}
	return rec
}
