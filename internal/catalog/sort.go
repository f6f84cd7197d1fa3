// Package catalog implements the catalog aggregator (C2): fanning out
// platform adapters, merging their results under a uniform total order, and
// persisting/publishing the resulting snapshot.
package catalog

import (
	"sort"
	"time"

	"github.com/Riotcoke123/clipper/internal/domain"
)

// Sort applies the §4.2 total order in place and also returns the slice for
// convenience: live before not-live; among live, higher viewer_count first;
// among not-live, more recent last_broadcast_at first (absent treated as
// epoch zero); ties broken by (platform, platform_id) ascending.
func Sort(records []domain.StreamerRecord) []domain.StreamerRecord {
	sort.SliceStable(records, func(i, j int) bool {
		return Less(records[i], records[j])
	})
	return records
}

// Less reports whether a sorts before b under the §4.2 total order.
func Less(a, b domain.StreamerRecord) bool {
	aLive, bLive := a.IsLive(), b.IsLive()
	if aLive != bLive {
		return aLive
	}
	if aLive {
		if a.Status.ViewerCount != b.Status.ViewerCount {
			return a.Status.ViewerCount > b.Status.ViewerCount
		}
		return tieBreak(a, b)
	}

	at, bt := lastBroadcast(a), lastBroadcast(b)
	if !at.Equal(bt) {
		return at.After(bt)
	}
	return tieBreak(a, b)
}

func lastBroadcast(r domain.StreamerRecord) time.Time {
	if r.Status.Kind == domain.StatusOffline && r.Status.LastBroadcastAt != nil {
		return *r.Status.LastBroadcastAt
	}
	return time.Unix(0, 0).UTC()
}

func tieBreak(a, b domain.StreamerRecord) bool {
	if a.Platform != b.Platform {
		return a.Platform < b.Platform
	}
	return a.PlatformID < b.PlatformID
}
