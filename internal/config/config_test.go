package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bidflow/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Port)
	assert.Equal(t, 5, cfg.Consensus.MinRoster)
	assert.Equal(t, 2, cfg.Consensus.MinSuccessful)
	assert.InDelta(t, 0.6, cfg.Consensus.DescriptionThreshold, 1e-9)
	assert.InDelta(t, 0.15, cfg.Consensus.NumericTolerance, 1e-9)
	assert.Equal(t, 120, cfg.Consensus.ModelTimeoutSecs)
	assert.Equal(t, config.DefaultRoster(), cfg.Roster)
	assert.Equal(t, []string{"claude-sonnet", "gpt-4o", "gemini-flash"}, cfg.Invoice.Chain())
	assert.Equal(t, 100000, cfg.Invoice.MaxTextRunes)
	assert.Equal(t, "claude", cfg.Providers.Claude.Provider)
	assert.Equal(t, 60, cfg.Providers.OpenAI.RequestsPerMinute)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("BIDFLOW_PROVIDERS_CLAUDE_API_KEY", "sk-test")
	t.Setenv("BIDFLOW_CONSENSUS_MIN_SUCCESSFUL", "3")
	t.Setenv("BIDFLOW_ROSTER", "a=claude:m1, b=openai:m2")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "sk-test", cfg.Providers.Claude.APIKey)
	assert.Equal(t, 3, cfg.Consensus.MinSuccessful)
	require.Len(t, cfg.Roster, 2)
	assert.Equal(t, config.RosterEntry{ID: "b", Provider: "openai", Model: "m2"}, cfg.Roster[1])
}

func TestLoad_PortFromPlatform(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PORT", "9999")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Server.Port)
}

func TestParseRoster(t *testing.T) {
	roster, err := config.ParseRoster("x=gemini:gemini-2.0-flash,,y=claude:claude-3-5-haiku-latest")
	require.NoError(t, err)
	assert.Equal(t, []config.RosterEntry{
		{ID: "x", Provider: "gemini", Model: "gemini-2.0-flash"},
		{ID: "y", Provider: "claude", Model: "claude-3-5-haiku-latest"},
	}, roster)

	_, err = config.ParseRoster("broken")
	assert.Error(t, err)
	_, err = config.ParseRoster("id=claude")
	assert.Error(t, err)
}

func TestDefaultRoster_HasFiveDistinctEntries(t *testing.T) {
	roster := config.DefaultRoster()
	require.Len(t, roster, 5)
	seen := map[string]bool{}
	vendors := map[string]bool{}
	for _, e := range roster {
		assert.False(t, seen[e.ID], "duplicate id %s", e.ID)
		seen[e.ID] = true
		vendors[e.Provider] = true
	}
	assert.Len(t, vendors, 3)
}

func TestProvidersConfig_For(t *testing.T) {
	p := config.ProvidersConfig{Gemini: config.ProviderConfig{Provider: "gemini", APIKey: "g"}}
	got, ok := p.For("gemini")
	assert.True(t, ok)
	assert.Equal(t, "g", got.APIKey)
	_, ok = p.For("mistral")
	assert.False(t, ok)
}

func TestProviderConfig_Timeout(t *testing.T) {
	assert.Equal(t, 120*time.Second, config.ProviderConfig{}.Timeout())
	assert.Equal(t, 5*time.Second, config.ProviderConfig{TimeoutSecs: 5}.Timeout())
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, config.InitLogger(config.LogConfig{Level: "info", Format: "json"}))
	assert.Error(t, config.InitLogger(config.LogConfig{Level: "loud", Format: "console"}))
}
