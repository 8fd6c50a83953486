package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peakmont/driftbot/internal/domain"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const validYAML = `
venue:
  base_url: https://venue.test/api
assets:
  - symbol: usdc
    chain: eth
    address: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"
    decimals: 6
    category: stablecoin
    volatility: low
    target_weight: 0.30
  - symbol: WETH
    chain: eth
    address: "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"
    decimals: 18
    category: major
    volatility: medium
    target_weight: 0.30
  - symbol: SOL
    chain: svm
    address: "So11111111111111111111111111111111111111112"
    decimals: 9
    category: major
    volatility: high
    target_weight: 0.25
  - symbol: LINK
    chain: eth
    address: "0x514910771AF9Ca656af840dff83E8264EcF986CA"
    decimals: 18
    category: oracle
    volatility: high
    target_weight: 0.15
  - symbol: PEPE
    chain: eth
    address: "0x6982508145454Ce325dDbE47a25d4ec3d2311933"
    decimals: 18
    category: meme
    volatility: very_high
    enabled: false
    target_weight: 0.10
`

func TestLoadFile(t *testing.T) {
	t.Setenv("DRIFTBOT_VENUE_API_KEY", "file-test-key")

	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)

	assert.Equal(t, "https://venue.test/api", cfg.Venue.BaseURL)
	assert.Equal(t, "file-test-key", cfg.Venue.APIKey)

	require.Len(t, cfg.Assets, 5)
	assert.Equal(t, "USDC", cfg.Assets[0].Symbol, "symbols are canonicalized to upper case")
	assert.False(t, cfg.Assets[4].IsEnabled(), "explicit enabled: false must survive loading")

	enabled := cfg.EnabledAssets()
	require.Len(t, enabled, 4)
	assert.Equal(t, []string{"LINK", "SOL", "USDC", "WETH"},
		[]string{enabled[0].Symbol, enabled[1].Symbol, enabled[2].Symbol, enabled[3].Symbol})

	// Sections absent from the file pick up their defaults.
	assert.Equal(t, 10, cfg.Venue.TimeoutSeconds)
	assert.Equal(t, 60, cfg.Scheduler.RebalanceMinutes)
	assert.Equal(t, 0.05, cfg.Rebalance.Threshold)
	assert.Equal(t, "USDC", cfg.Rebalance.ReserveSymbol)
	assert.Equal(t, 168, cfg.Market.HistoryRetentionHours)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.True(t, cfg.Strategies.Momentum.Enabled)
	assert.Equal(t, 0.15, cfg.Strategies.Momentum.Thresholds[domain.CategoryMeme])
	assert.Equal(t, 0.20, cfg.Sizing.MaxMeme)

	reserve, ok := cfg.ReserveAsset()
	require.True(t, ok)
	assert.Equal(t, domain.CategoryStablecoin, reserve.Category)
}

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	t.Setenv("DRIFTBOT_VENUE_API_KEY", "default-test-key")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "https://api.sandbox.competitions.recall.network/api", cfg.Venue.BaseURL)
	require.Len(t, cfg.Assets, 4)

	weights := cfg.BaselineWeights()
	assert.Equal(t, 0.30, weights["USDC"])
	assert.Equal(t, 0.30, weights["WETH"])
	assert.Equal(t, 0.25, weights["SOL"])
	assert.Equal(t, 0.15, weights["LINK"])
}

func TestLoadExplicitMissingFileFails(t *testing.T) {
	t.Setenv("DRIFTBOT_VENUE_API_KEY", "k")

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("DRIFTBOT_VENUE_API_KEY", "k")
	t.Setenv("DRIFTBOT_VENUE_URL", "https://override.test/api")
	t.Setenv("DRIFTBOT_LOG_LEVEL", "debug")
	t.Setenv("DRIFTBOT_OPS_ADDR", "127.0.0.1:9999")

	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)

	assert.Equal(t, "https://override.test/api", cfg.Venue.BaseURL, "env beats the file")
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "127.0.0.1:9999", cfg.Ops.ListenAddr)
}

func TestLoadCustomAPIKeyEnv(t *testing.T) {
	t.Setenv("DRIFTBOT_VENUE_API_KEY", "")
	t.Setenv("ALT_VENUE_KEY", "alt-key")

	body := `
venue:
  base_url: https://venue.test/api
  api_key_env: ALT_VENUE_KEY
assets:
  - {symbol: USDC, chain: eth, address: "0x1", decimals: 6, category: stablecoin, volatility: low, target_weight: 1.0}
sizing:
  max_single_token_allocation: 1.0
`
	cfg, err := Load(writeConfig(t, body))
	require.NoError(t, err)
	assert.Equal(t, "alt-key", cfg.Venue.APIKey)
}

func TestLoadStrategyToggleSurvives(t *testing.T) {
	t.Setenv("DRIFTBOT_VENUE_API_KEY", "k")

	body := validYAML + `
strategies:
  momentum:
    enabled: false
  mean_reversion:
    lookback_hours: 72
`
	cfg, err := Load(writeConfig(t, body))
	require.NoError(t, err)

	assert.False(t, cfg.Strategies.Momentum.Enabled, "explicit enabled: false must not be reset to the default")
	assert.True(t, cfg.Strategies.MeanReversion.Enabled)
	assert.Equal(t, 72, cfg.Strategies.MeanReversion.LookbackHours)
	assert.Equal(t, 10, cfg.Strategies.MeanReversion.MinPoints, "unset fields keep their defaults")
}

func TestLoadRejects(t *testing.T) {
	cases := []struct {
		name    string
		mutate  string
		wantErr string
	}{
		{
			name: "duplicate symbol",
			mutate: `
assets:
  - {symbol: USDC, chain: eth, address: "0x1", decimals: 6, category: stablecoin, volatility: low, target_weight: 0.3}
  - {symbol: usdc, chain: eth, address: "0x2", decimals: 6, category: stablecoin, volatility: low, target_weight: 0.3}
`,
			wantErr: "already declared",
		},
		{
			name: "weights off",
			mutate: `
assets:
  - {symbol: USDC, chain: eth, address: "0x1", decimals: 6, category: stablecoin, volatility: low, target_weight: 0.3}
  - {symbol: WETH, chain: eth, address: "0x2", decimals: 18, category: major, volatility: medium, target_weight: 0.3}
`,
			wantErr: "sum to",
		},
		{
			name: "baseline over single-token cap",
			mutate: `
assets:
  - {symbol: USDC, chain: eth, address: "0x1", decimals: 6, category: stablecoin, volatility: low, target_weight: 0.6}
  - {symbol: WETH, chain: eth, address: "0x2", decimals: 18, category: major, volatility: medium, target_weight: 0.4}
`,
			wantErr: "exceeds max_single_token_allocation",
		},
		{
			name: "meme weights over category cap",
			mutate: `
assets:
  - {symbol: USDC, chain: eth, address: "0x1", decimals: 6, category: stablecoin, volatility: low, target_weight: 0.3}
  - {symbol: WETH, chain: eth, address: "0x2", decimals: 18, category: major, volatility: medium, target_weight: 0.3}
  - {symbol: SOL, chain: svm, address: "0x3", decimals: 9, category: major, volatility: high, target_weight: 0.15}
  - {symbol: PEPE, chain: eth, address: "0x4", decimals: 18, category: meme, volatility: very_high, target_weight: 0.15}
  - {symbol: BONK, chain: svm, address: "0x5", decimals: 5, category: meme, volatility: very_high, target_weight: 0.10}
`,
			wantErr: "exceeding max_meme_allocation",
		},
		{
			name: "reserve not listed",
			mutate: `
assets:
  - {symbol: WETH, chain: eth, address: "0x2", decimals: 18, category: major, volatility: medium, target_weight: 0.3}
  - {symbol: SOL, chain: svm, address: "0x3", decimals: 9, category: major, volatility: high, target_weight: 0.3}
  - {symbol: LINK, chain: eth, address: "0x4", decimals: 18, category: oracle, volatility: high, target_weight: 0.25}
  - {symbol: UNI, chain: eth, address: "0x5", decimals: 18, category: defi, volatility: high, target_weight: 0.15}
`,
			wantErr: "reserve symbol USDC",
		},
		{
			name: "unknown category",
			mutate: `
assets:
  - {symbol: USDC, chain: eth, address: "0x1", decimals: 6, category: stable, volatility: low, target_weight: 0.3}
`,
			wantErr: "unknown category",
		},
		{
			name: "partial threshold table",
			mutate: `
assets:
  - {symbol: USDC, chain: eth, address: "0x1", decimals: 6, category: stablecoin, volatility: low, target_weight: 0.3}
  - {symbol: WETH, chain: eth, address: "0x2", decimals: 18, category: major, volatility: medium, target_weight: 0.3}
strategies:
  momentum:
    thresholds:
      stablecoin: 0.02
`,
			wantErr: "no momentum threshold for category major",
		},
		{
			name: "bad log level",
			mutate: `
assets:
  - {symbol: USDC, chain: eth, address: "0x1", decimals: 6, category: stablecoin, volatility: low, target_weight: 0.3}
logging:
  level: loud
`,
			wantErr: "validation",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("DRIFTBOT_VENUE_API_KEY", "k")

			body := "venue:\n  base_url: https://venue.test/api\n" + tc.mutate
			_, err := Load(writeConfig(t, body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestLoadMissingAPIKey(t *testing.T) {
	t.Setenv("DRIFTBOT_VENUE_API_KEY", "")

	_, err := Load(writeConfig(t, validYAML))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DRIFTBOT_VENUE_API_KEY")
}
