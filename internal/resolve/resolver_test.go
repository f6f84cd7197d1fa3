package resolve

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Riotcoke123/clipper/internal/domain"
)

type fakeCatalog struct {
	snap domain.CatalogSnapshot
}

func (f fakeCatalog) Latest() domain.CatalogSnapshot { return f.snap }

func TestResolveReturnsCatalogStreamURLWithoutProbing(t *testing.T) {
	ref := domain.StreamerRef{Platform: domain.PlatformTwitch, PlatformID: "streamer1"}
	now := time.Now()
	cat := fakeCatalog{snap: domain.CatalogSnapshot{
		GeneratedAt: now,
		Streamers: []domain.StreamerRecord{{
			Platform:    ref.Platform,
			PlatformID:  ref.PlatformID,
			Status:      domain.Status{Kind: domain.StatusLive, StartedAt: now},
			StreamURL:   "https://cdn.example/live.m3u8",
			LastChecked: now,
		}},
	}}

	r := New(cat, nil, nil)
	url, err := r.Resolve(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/live.m3u8", url)
}

func TestResolveFailsClearlyWithNoWatchPageConfigured(t *testing.T) {
	ref := domain.StreamerRef{Platform: domain.PlatformKick, PlatformID: "offline1"}
	cat := fakeCatalog{snap: domain.CatalogSnapshot{}}

	r := New(cat, nil, map[domain.Platform]WatchPageFunc{})
	_, err := r.Resolve(context.Background(), ref)
	require.Error(t, err)
}
