// Package config loads the service's typed configuration from environment
// variables (optionally seeded by a .env file) and the platform roster/
// credentials INI file, per §6.
package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
	"gopkg.in/ini.v1"

	"github.com/Riotcoke123/clipper/internal/domain"
)

// Config is the full environment-derived configuration surface.
type Config struct {
	Port      string `env:"PORT" default:"8080"`
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`
	APIKey    string `env:"API_KEY"`

	RefreshInterval time.Duration `env:"REFRESH_INTERVAL" default:"60s"`
	MaxClipDuration int           `env:"MAX_CLIP_DURATION" default:"240"`

	UploadEndpoint string `env:"UPLOAD_ENDPOINT" default:"https://uploads.example.com/clips"`

	FFmpegPath string `env:"FFMPEG_PATH" default:"ffmpeg"`

	TempDir       string `env:"TEMP_DIR" default:"temp"`
	ClipsDir      string `env:"CLIPS_DIR" default:"clips"`
	ThumbnailsDir string `env:"THUMBNAILS_DIR" default:"thumbnails"`
	PreviewsDir   string `env:"PREVIEWS_DIR" default:"temp/previews"`
	CatalogPath   string `env:"CATALOG_PATH" default:"catalog.json"`

	RosterFile string `env:"ROSTER_FILE" default:"roster.ini"`

	EnableTwitch  bool `env:"ENABLE_TWITCH" default:"true"`
	EnableParti   bool `env:"ENABLE_PARTI" default:"true"`
	EnableRumble  bool `env:"ENABLE_RUMBLE" default:"true"`
	EnableTrovo   bool `env:"ENABLE_TROVO" default:"true"`
	EnableKick    bool `env:"ENABLE_KICK" default:"true"`
	EnableYouTube bool `env:"ENABLE_YOUTUBE" default:"true"`
}

// PlatformCredentials holds the API-OAuth adapter's client credentials, the
// only platform in the roster that needs any (§4.1).
type PlatformCredentials struct {
	TwitchClientID     string
	TwitchClientSecret string
}

// Roster is the parsed INI roster/credentials file: per-platform lists of
// streamer identifiers plus any credentials a platform's adapter needs.
type Roster struct {
	Credentials PlatformCredentials
	Refs        map[domain.Platform][]domain.StreamerRef
}

// Load parses environment variables (seeded by a .env file when present)
// into a Config and validates it.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	if cfg.APIKey == "" {
		return fmt.Errorf("API_KEY is required")
	}
	if cfg.MaxClipDuration <= 0 {
		return fmt.Errorf("MAX_CLIP_DURATION must be positive")
	}
	if cfg.RefreshInterval <= 0 {
		return fmt.Errorf("REFRESH_INTERVAL must be positive")
	}
	return nil
}

// LoadRoster parses the INI file at path into a Roster. Each platform
// section holds a flat `ids` comma-separated list (generalizing each
// original_source script's hardcoded usernames/user_ids/channel_ids list,
// per SPEC_FULL.md §10); the [twitch] section additionally carries
// client_id/client_secret.
func LoadRoster(path string) (*Roster, error) {
	f, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load roster file %s: %w", path, err)
	}

	roster := &Roster{Refs: make(map[domain.Platform][]domain.StreamerRef)}

	sectionByPlatform := map[domain.Platform]string{
		domain.PlatformTwitch:  "twitch",
		domain.PlatformParti:   "parti",
		domain.PlatformRumble:  "rumble",
		domain.PlatformTrovo:   "trovo",
		domain.PlatformKick:    "kick",
		domain.PlatformYouTube: "youtube",
	}

	for platform, name := range sectionByPlatform {
		if !f.HasSection(name) {
			continue
		}
		section := f.Section(name)
		ids := section.Key("ids").Strings(",")
		refs := make([]domain.StreamerRef, 0, len(ids))
		for _, id := range ids {
			refs = append(refs, domain.StreamerRef{Platform: platform, PlatformID: id})
		}
		roster.Refs[platform] = refs
	}

	if f.HasSection("twitch") {
		section := f.Section("twitch")
		roster.Credentials.TwitchClientID = section.Key("client_id").String()
		roster.Credentials.TwitchClientSecret = section.Key("client_secret").String()
	}

	return roster, nil
}
