// Package twitch implements the API-OAuth platform adapter (§4.1): a
// client-credentials bearer token cached with a refresh margin, and
// chunked Helix calls for user lookup, live streams, and last broadcast.
// Grounded on original_source/twitch.py's get_app_access_token/get_users/
// get_live_streams/get_last_broadcast sequence, ported to the Helix
// batch-identity shape.
package twitch

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/Riotcoke123/clipper/internal/domain"
	"github.com/Riotcoke123/clipper/internal/httpx"
	"github.com/Riotcoke123/clipper/internal/platform/retry"
)

const (
	defaultTokenURL     = "https://id.twitch.tv/oauth2/token"
	defaultUsersURL     = "https://api.twitch.tv/helix/users"
	defaultStreamsURL   = "https://api.twitch.tv/helix/streams"
	defaultVideosURL    = "https://api.twitch.tv/helix/videos"
	refreshMargin       = 60 * time.Second
	userAgentString     = "clipper/1.0"
	adapterRateLimitRPS = 5
)

// Adapter implements domain.BatchAdapter for Twitch.
type Adapter struct {
	clientID     string
	clientSecret string
	client       *httpx.Client
	clock        clockwork.Clock

	tokenURL   string
	usersURL   string
	streamsURL string
	videosURL  string

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

func New(clientID, clientSecret string, clock clockwork.Clock) *Adapter {
	return &Adapter{
		clientID:     clientID,
		clientSecret: clientSecret,
		client:       httpx.New(userAgentString, httpx.WithRateLimit(adapterRateLimitRPS)),
		clock:        clock,
		tokenURL:     defaultTokenURL,
		usersURL:     defaultUsersURL,
		streamsURL:   defaultStreamsURL,
		videosURL:    defaultVideosURL,
	}
}

// NewWithEndpoints is used by tests to point the adapter at a fake server.
func NewWithEndpoints(clientID, clientSecret string, clock clockwork.Clock, tokenURL, usersURL, streamsURL, videosURL string) *Adapter {
	a := New(clientID, clientSecret, clock)
	a.tokenURL, a.usersURL, a.streamsURL, a.videosURL = tokenURL, usersURL, streamsURL, videosURL
	return a
}

func (a *Adapter) Platform() domain.Platform { return domain.PlatformTwitch }
func (a *Adapter) Kind() domain.AdapterKind  { return domain.AdapterAPIOAuth }

// Fetch satisfies domain.Adapter for callers that don't special-case
// BatchAdapter; it simply delegates to a single-element FetchAll.
func (a *Adapter) Fetch(ctx context.Context, ref domain.StreamerRef) domain.StreamerRecord {
	recs := a.FetchAll(ctx, []domain.StreamerRef{ref})
	if len(recs) == 0 {
		return errorRecord(ref, "no data returned", a.clock.Now())
	}
	return recs[0]
}

// FetchAll resolves a chunk of logins to ids, splits into live/offline,
// and fetches live-stream/last-broadcast data accordingly. A token fetch
// failure makes every record in the chunk Error, per §4.1.
func (a *Adapter) FetchAll(ctx context.Context, refs []domain.StreamerRef) []domain.StreamerRecord {
	now := a.clock.Now()
	token, err := a.ensureToken(ctx)
	if err != nil {
		out := make([]domain.StreamerRecord, len(refs))
		for i, ref := range refs {
			out[i] = errorRecord(ref, fmt.Sprintf("token fetch failed: %v", err), now)
		}
		return out
	}

	logins := make([]string, len(refs))
	for i, ref := range refs {
		logins[i] = ref.PlatformID
	}

	users, err := a.getUsers(ctx, token, logins)
	if err != nil {
		out := make([]domain.StreamerRecord, len(refs))
		for i, ref := range refs {
			out[i] = errorRecord(ref, fmt.Sprintf("user lookup failed: %v", err), now)
		}
		return out
	}

	userIDs := make([]string, 0, len(users))
	for _, u := range users {
		userIDs = append(userIDs, u.ID)
	}

	liveStreams, _ := a.getLiveStreams(ctx, token, userIDs)
	liveByID := make(map[string]helixStream, len(liveStreams))
	for _, s := range liveStreams {
		liveByID[s.UserID] = s
	}

	out := make([]domain.StreamerRecord, 0, len(refs))
	for _, ref := range refs {
		u, ok := users[ref.PlatformID]
		if !ok {
			out = append(out, domain.StreamerRecord{
				Platform:    ref.Platform,
				PlatformID:  ref.PlatformID,
				Status:      domain.Status{Kind: domain.StatusNotFound},
				LastChecked: now,
			})
			continue
		}

		rec := domain.StreamerRecord{
			Platform:    ref.Platform,
			PlatformID:  ref.PlatformID,
			DisplayName: ref.PlatformID,
			AvatarURL:   u.ProfileImageURL,
			ChannelURL:  "https://twitch.tv/" + ref.PlatformID,
			LastChecked: now,
		}

		if stream, live := liveByID[u.ID]; live {
			rec.Status = domain.Status{
				Kind:        domain.StatusLive,
				Title:       stream.Title,
				ViewerCount: uint32(stream.ViewerCount),
				StartedAt:   stream.StartedAt,
			}
		} else {
			last, lerr := a.getLastBroadcast(ctx, token, u.ID)
			if lerr != nil {
				rec.Status = domain.Status{Kind: domain.StatusOffline}
				rec.ErrorDetails = fmt.Sprintf("last broadcast lookup failed: %v", lerr)
			} else {
				rec.Status = domain.Status{Kind: domain.StatusOffline, LastBroadcastAt: last}
			}
		}
		out = append(out, rec)
	}
	return out
}

func errorRecord(ref domain.StreamerRef, reason string, at time.Time) domain.StreamerRecord {
	return domain.StreamerRecord{
		Platform:    ref.Platform,
		PlatformID:  ref.PlatformID,
		Status:      domain.Status{Kind: domain.StatusError, Reason: reason},
		LastChecked: at,
	}
}

func (a *Adapter) ensureToken(ctx context.Context) (string, error) {
	a.mu.Lock()
	if a.token != "" && a.clock.Now().Add(refreshMargin).Before(a.expiresAt) {
		token := a.token
		a.mu.Unlock()
		return token, nil
	}
	a.mu.Unlock()

	policy := retry.Policy{MaxAttempts: 3, InitialBackoff: 200 * time.Millisecond, RateLimitBackoff: time.Second}
	classify := func(err error) retry.Action {
		return retry.Retry
	}

	type tokenResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}

	resp, err := retry.Do(ctx, policy, classify, func() (tokenResp, error) {
		var tr tokenResp
		form := url.Values{
			"client_id":     {a.clientID},
			"client_secret": {a.clientSecret},
			"grant_type":    {"client_credentials"},
		}
		_, err := a.client.PostForm(ctx, a.tokenURL, form, &tr)
		if err != nil {
			return tokenResp{}, err
		}
		if tr.AccessToken == "" {
			return tokenResp{}, fmt.Errorf("empty access token in response")
		}
		return tr, nil
	})
	if err != nil {
		return "", err
	}

	a.mu.Lock()
	a.token = resp.AccessToken
	a.expiresAt = a.clock.Now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	a.mu.Unlock()

	return resp.AccessToken, nil
}

type helixUser struct {
	ID              string `json:"id"`
	Login           string `json:"login"`
	ProfileImageURL string `json:"profile_image_url"`
}

func (a *Adapter) getUsers(ctx context.Context, token string, logins []string) (map[string]helixUser, error) {
	q := url.Values{}
	for _, l := range logins {
		q.Add("login", l)
	}
	headers := map[string]string{
		"Authorization": "Bearer " + token,
		"Client-Id":     a.clientID,
	}

	var body struct {
		Data []helixUser `json:"data"`
	}
	if _, err := a.client.GetJSON(ctx, a.usersURL, q, headers, &body); err != nil {
		return nil, err
	}

	out := make(map[string]helixUser, len(body.Data))
	for _, u := range body.Data {
		out[u.Login] = u
	}
	return out, nil
}

type helixStream struct {
	UserID      string    `json:"user_id"`
	Title       string    `json:"title"`
	ViewerCount int       `json:"viewer_count"`
	StartedAt   time.Time `json:"started_at"`
}

func (a *Adapter) getLiveStreams(ctx context.Context, token string, userIDs []string) ([]helixStream, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	q := url.Values{}
	for _, id := range userIDs {
		q.Add("user_id", id)
	}
	headers := map[string]string{
		"Authorization": "Bearer " + token,
		"Client-Id":     a.clientID,
	}

	var body struct {
		Data []helixStream `json:"data"`
	}
	if _, err := a.client.GetJSON(ctx, a.streamsURL, q, headers, &body); err != nil {
		return nil, err
	}
	return body.Data, nil
}

func (a *Adapter) getLastBroadcast(ctx context.Context, token, userID string) (*time.Time, error) {
	q := url.Values{"user_id": {userID}, "first": {"1"}, "type": {"archive"}}
	headers := map[string]string{
		"Authorization": "Bearer " + token,
		"Client-Id":     a.clientID,
	}

	var body struct {
		Data []struct {
			CreatedAt time.Time `json:"created_at"`
		} `json:"data"`
	}
	if _, err := a.client.GetJSON(ctx, a.videosURL, q, headers, &body); err != nil {
		return nil, err
	}
	if len(body.Data) == 0 {
		return nil, nil
	}
	return &body.Data[0].CreatedAt, nil
}
