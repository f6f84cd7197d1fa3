// Package trovo implements a second invented API-JSON platform adapter.
// Like rumble, there is no original_source script for it; it exercises the
// same §4.1 contract with a differently shaped upstream payload (nested
// "stream_info" object) to keep the adapter set from converging on one
// JSON shape.
package trovo

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/Riotcoke123/clipper/internal/domain"
	"github.com/Riotcoke123/clipper/internal/httpx"
)

const (
	defaultChannelBase  = "https://open-api.trovo.live/openplatform/channels/"
	userAgentString     = "clipper/1.0"
	adapterRateLimitRPS = 5
)

type Adapter struct {
	client      *httpx.Client
	clock       clockwork.Clock
	channelBase string
}

func New(clock clockwork.Clock) *Adapter {
	return &Adapter{client: httpx.New(userAgentString, httpx.WithRateLimit(adapterRateLimitRPS)), clock: clock, channelBase: defaultChannelBase}
}

func NewWithEndpoint(clock clockwork.Clock, channelBase string) *Adapter {
	a := New(clock)
	a.channelBase = channelBase
	return a
}

func (a *Adapter) Platform() domain.Platform { return domain.PlatformTrovo }
func (a *Adapter) Kind() domain.AdapterKind  { return domain.AdapterAPIJSON }

type channelPayload struct {
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url"`
	StreamInfo *struct {
		IsLive      bool   `json:"is_live"`
		StreamTitle string `json:"stream_title"`
		Viewers     int    `json:"viewers"`
	} `json:"stream_info"`
	LastLiveAt *time.Time `json:"last_live_at"`
}

func (a *Adapter) Fetch(ctx context.Context, ref domain.StreamerRef) domain.StreamerRecord {
	now := a.clock.Now()
	rec := domain.StreamerRecord{
		Platform:    ref.Platform,
		PlatformID:  ref.PlatformID,
		ChannelURL:  "https://trovo.live/" + ref.PlatformID,
		LastChecked: now,
	}

	var payload channelPayload
	_, err := a.client.GetJSON(ctx, a.channelBase+ref.PlatformID, nil, nil, &payload)
	if err != nil {
		rec.Status = domain.Status{Kind: domain.StatusError, Reason: fmt.Sprintf("channel fetch failed: %v", err)}
		return rec
	}

	rec.DisplayName = payload.Username
	rec.AvatarURL = payload.AvatarURL

	if payload.StreamInfo != nil && payload.StreamInfo.IsLive {
		rec.Status = domain.Status{
			Kind:        domain.StatusLive,
			Title:       payload.StreamInfo.StreamTitle,
			ViewerCount: uint32(payload.StreamInfo.Viewers),
			StartedAt:   now,
		}
		return rec
	}

	rec.Status = domain.Status{Kind: domain.StatusOffline, LastBroadcastAt: payload.LastLiveAt}
	return rec
}
