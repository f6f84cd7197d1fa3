package domain

import "context"

// Adapter fetches one streamer's state from one platform. Implementations
// must never let a network or parse error escape Fetch: all failures are
// absorbed into the returned record's Status or ErrorDetails, per §4.1.
type Adapter interface {
	Platform() Platform
	Kind() AdapterKind
	Fetch(ctx context.Context, ref StreamerRef) StreamerRecord
}

// CatalogStore persists and loads the canonical catalog snapshot.
type CatalogStore interface {
	Save(ctx context.Context, snap CatalogSnapshot) error
	Load(ctx context.Context) (CatalogSnapshot, error)
}

// Publisher fan-outs domain events to subscribed clients. Implementations
// must never block the publisher on a slow subscriber.
type Publisher interface {
	Publish(Event)
}

// BatchAdapter is an optional capability an Adapter may also implement when
// its upstream API supports fetching many identities in one call (the
// OAuth adapter's chunked Helix requests, per §4.1). The catalog aggregator
// prefers this over per-ref Fetch when available.
type BatchAdapter interface {
	Adapter
	FetchAll(ctx context.Context, refs []StreamerRef) []StreamerRecord
}

// Resolver returns a current media-playlist URL for a live streamer.
type Resolver interface {
	Resolve(ctx context.Context, ref StreamerRef) (string, error)
}

// Capturer drives the external transcoder to buffer a live stream.
type Capturer interface {
	Capture(ctx context.Context, streamURL, outPath string, maxDuration int, onProgress func(pct int)) error
}

// ClipExtractor cuts and re-encodes a sub-range of a buffer.
type ClipExtractor interface {
	ExtractClip(ctx context.Context, bufferPath, outPath string, startS, durationS int, onProgress func(pct int)) error
	Thumbnail(ctx context.Context, bufferPath, outPath string, atS int) error
	GeneratePreviews(ctx context.Context, bufferPath, outDir string, numFrames, maxClipDuration int) ([]string, error)
}

// Uploader POSTs a finished clip to the external file host.
type Uploader interface {
	Upload(ctx context.Context, clipPath string, onProgress func(bytesSent int64)) (url string, err error)
}
