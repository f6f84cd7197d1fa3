package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Riotcoke123/clipper/internal/domain"
)

func TestLoadDefaultsWhenOnlyAPIKeySet(t *testing.T) {
	t.Setenv("API_KEY", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 240, cfg.MaxClipDuration)
	assert.True(t, cfg.EnableTwitch)
}

func TestLoadMissingAPIKey(t *testing.T) {
	t.Setenv("API_KEY", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API_KEY")
}

func TestLoadRosterParsesPerPlatformIDs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "roster.ini")
	contents := `
[twitch]
client_id = abc123
client_secret = shh
ids = 111,222

[kick]
ids = xqc
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	roster, err := LoadRoster(path)
	require.NoError(t, err)

	assert.Equal(t, "abc123", roster.Credentials.TwitchClientID)
	assert.Equal(t, "shh", roster.Credentials.TwitchClientSecret)
	assert.Equal(t, []domain.StreamerRef{
		{Platform: domain.PlatformTwitch, PlatformID: "111"},
		{Platform: domain.PlatformTwitch, PlatformID: "222"},
	}, roster.Refs[domain.PlatformTwitch])
	assert.Equal(t, []domain.StreamerRef{
		{Platform: domain.PlatformKick, PlatformID: "xqc"},
	}, roster.Refs[domain.PlatformKick])
	assert.Empty(t, roster.Refs[domain.PlatformRumble])
}

func TestLoadRosterMissingFile(t *testing.T) {
	_, err := LoadRoster(filepath.Join(t.TempDir(), "missing.ini"))
	require.Error(t, err)
}
