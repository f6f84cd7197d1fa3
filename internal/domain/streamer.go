// Package domain holds the core types shared by every layer of the
// aggregator and clipping pipeline: catalog records, jobs, events, and the
// port interfaces that connect them.
package domain

import (
	"sort"
	"time"
)

// Platform identifies one of the roster's external live-streaming services.
type Platform string

const (
	PlatformTwitch  Platform = "twitch"
	PlatformParti   Platform = "parti"
	PlatformRumble  Platform = "rumble"
	PlatformTrovo   Platform = "trovo"
	PlatformKick    Platform = "kick"
	PlatformYouTube Platform = "youtube"
)

// Platforms is the full roster in a stable declaration order, used by
// config validation and the catalog aggregator's fan-out.
var Platforms = []Platform{
	PlatformTwitch, PlatformParti, PlatformRumble, PlatformTrovo, PlatformKick, PlatformYouTube,
}

// AdapterKind distinguishes the three adapter capability shapes of §4.1.
type AdapterKind string

const (
	AdapterAPIJSON  AdapterKind = "api_json"
	AdapterAPIOAuth AdapterKind = "api_oauth"
	AdapterScrape   AdapterKind = "html_scrape"
)

// StatusKind tags which variant of Status is populated.
type StatusKind string

const (
	StatusLive     StatusKind = "live"
	StatusOffline  StatusKind = "offline"
	StatusNotFound StatusKind = "not_found"
	StatusError    StatusKind = "error"
)

// Status is a tagged union over the four record variants in §3. Exactly one
// branch is meaningful per Kind; fields marshal additively so new fields can
// be appended without breaking the persisted catalog schema.
type Status struct {
	Kind StatusKind `json:"kind"`

	// Live fields.
	Title       string    `json:"title,omitempty"`
	ViewerCount uint32    `json:"viewerCount,omitempty"`
	StartedAt   time.Time `json:"startedAt,omitempty"`

	// Offline fields.
	LastBroadcastAt *time.Time `json:"lastBroadcastAt,omitempty"`

	// Error fields.
	Reason string `json:"reason,omitempty"`
}

// StreamerRef is the roster key: a platform plus whatever natural key that
// platform uses for identity (login name, numeric id, channel id).
type StreamerRef struct {
	Platform   Platform `json:"platform"`
	PlatformID string   `json:"platformId"`
}

func (r StreamerRef) String() string {
	return string(r.Platform) + ":" + r.PlatformID
}

// StreamerRecord is one roster entry as of the most recent poll cycle.
// Records are never mutated after creation: a new poll produces a new record
// that supplants the old one in the next published snapshot.
type StreamerRecord struct {
	Platform    Platform  `json:"platform"`
	PlatformID  string    `json:"platformId"`
	DisplayName string    `json:"displayName"`
	AvatarURL   string    `json:"avatarUrl"`
	ChannelURL  string    `json:"channelUrl"`
	Status      Status    `json:"status"`
	LastChecked time.Time `json:"lastChecked"`

	// ErrorDetails records a non-fatal partial failure alongside otherwise
	// usable fields, per §4.1(d) — distinct from Status.Kind == StatusError,
	// which means the record itself could not be produced at all.
	ErrorDetails string `json:"errorDetails,omitempty"`

	// StreamURL is the adapter's best-effort cached media-playlist URL for a
	// live record, consulted first by the resolver before it falls back to a
	// browser probe.
	StreamURL string `json:"streamUrl,omitempty"`
}

// Ref returns the record's roster identity.
func (r StreamerRecord) Ref() StreamerRef {
	return StreamerRef{Platform: r.Platform, PlatformID: r.PlatformID}
}

// IsLive reports whether the record's status variant is Live.
func (r StreamerRecord) IsLive() bool {
	return r.Status.Kind == StatusLive
}

// CatalogSnapshot is an ordered, totally-sorted sequence of StreamerRecord
// produced atomically by the catalog aggregator and published via the event
// bus.
type CatalogSnapshot struct {
	GeneratedAt time.Time        `json:"generatedAt"`
	Streamers   []StreamerRecord `json:"streamers"`
}

// ByPlatform partitions the snapshot into per-platform slices, preserving
// each slice's relative order from the snapshot's total order.
func (c CatalogSnapshot) ByPlatform() map[Platform][]StreamerRecord {
	out := make(map[Platform][]StreamerRecord)
	for _, r := range c.Streamers {
		out[r.Platform] = append(out[r.Platform], r)
	}
	return out
}

// Live returns the live subset, sorted by viewer count descending per §6.
func (c CatalogSnapshot) Live() []StreamerRecord {
	out := make([]StreamerRecord, 0, len(c.Streamers))
	for _, r := range c.Streamers {
		if r.IsLive() {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Status.ViewerCount > out[j].Status.ViewerCount
	})
	return out
}

// Find returns the record matching ref, if present.
func (c CatalogSnapshot) Find(ref StreamerRef) (StreamerRecord, bool) {
	for _, r := range c.Streamers {
		if r.Ref() == ref {
			return r, true
		}
	}
	return StreamerRecord{}, false
}
