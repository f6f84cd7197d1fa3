// Package parti implements the Parti API-JSON platform adapter (§4.1): two
// independent GET calls per streamer (livestream channel info and user
// profile), combined into one record with partial-failure tolerance.
// Grounded on original_source/parti.py's get_api_data/two-endpoint shape.
package parti

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"

	"github.com/Riotcoke123/clipper/internal/domain"
	"github.com/Riotcoke123/clipper/internal/httpx"
)

const (
	defaultLivestreamBase = "https://api-backend.parti.com/parti_v2/profile/get_livestream_channel_info/"
	defaultProfileBase    = "https://api-backend.parti.com/parti_v2/profile/user_profile/"
	userAgentString       = "clipper/1.0"
	adapterRateLimitRPS   = 5
)

type Adapter struct {
	client         *httpx.Client
	clock          clockwork.Clock
	livestreamBase string
	profileBase    string
}

func New(clock clockwork.Clock) *Adapter {
	return &Adapter{
		client:         httpx.New(userAgentString, httpx.WithRateLimit(adapterRateLimitRPS)),
		clock:          clock,
		livestreamBase: defaultLivestreamBase,
		profileBase:    defaultProfileBase,
	}
}

func NewWithEndpoints(clock clockwork.Clock, livestreamBase, profileBase string) *Adapter {
	a := New(clock)
	a.livestreamBase, a.profileBase = livestreamBase, profileBase
	return a
}

func (a *Adapter) Platform() domain.Platform { return domain.PlatformParti }
func (a *Adapter) Kind() domain.AdapterKind  { return domain.AdapterAPIJSON }

type livestreamInfo struct {
	IsStreamingLiveNow bool `json:"is_streaming_live_now"`
	ChannelInfo        struct {
		Stream struct {
			ViewerCount int `json:"viewer_count"`
		} `json:"stream"`
		LivestreamEventInfo struct {
			EventName string `json:"event_name"`
		} `json:"livestream_event_info"`
	} `json:"channel_info"`
}

type profileInfo struct {
	UserName   string `json:"user_name"`
	AvatarLink string `json:"avatar_link"`
}

// Fetch issues both calls and collapses partial failure into a record with
// ErrorDetails populated but otherwise-usable core fields, per §4.1(d).
func (a *Adapter) Fetch(ctx context.Context, ref domain.StreamerRef) domain.StreamerRecord {
	now := a.clock.Now()
	rec := domain.StreamerRecord{
		Platform:    ref.Platform,
		PlatformID:  ref.PlatformID,
		ChannelURL:  "https://parti.com/creator/" + ref.PlatformID,
		LastChecked: now,
	}

	var live livestreamInfo
	_, liveErr := a.client.GetJSON(ctx, a.livestreamBase+ref.PlatformID, nil, nil, &live)

	var profile profileInfo
	_, profileErr := a.client.GetJSON(ctx, a.profileBase+ref.PlatformID, nil, nil, &profile)

	var errDetails string
	if liveErr != nil {
		errDetails = fmt.Sprintf("livestream error: %v", liveErr)
	}
	if profileErr != nil {
		if errDetails != "" {
			errDetails += "; "
		}
		errDetails += fmt.Sprintf("profile error: %v", profileErr)
	}
	rec.ErrorDetails = errDetails

	if profileErr == nil {
		rec.DisplayName = profile.UserName
		rec.AvatarURL = profile.AvatarLink
	}

	if liveErr == nil && live.IsStreamingLiveNow {
		rec.Status = domain.Status{
			Kind:        domain.StatusLive,
			Title:       live.ChannelInfo.LivestreamEventInfo.EventName,
			ViewerCount: uint32(live.ChannelInfo.Stream.ViewerCount),
			StartedAt:   now,
		}
		return rec
	}

	rec.Status = domain.Status{Kind: domain.StatusOffline}
	return rec
}
