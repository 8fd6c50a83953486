package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/peakmont/driftbot/internal/domain"
	"github.com/peakmont/driftbot/internal/portfolio"
	"github.com/peakmont/driftbot/internal/strategy"
)

// Enabled target weights must sum to one within this tolerance.
const weightSumTolerance = 1e-3

var structValidator = validator.New()

// Load reads the config file at path, layering defaults, file values,
// and environment overrides in that order. An empty path falls back to
// DefaultPath; if that file does not exist the built-in defaults are
// used. An explicitly named file that cannot be read is an error, as is
// any file that fails validation.
//
// A .env file in the working directory is loaded first so local runs
// can keep the API key out of the shell profile.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	// Defaults go in before the file is parsed: yaml only touches keys
	// present in the document, so explicit false and zero survive.
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}

	explicit := path != ""
	if path == "" {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case os.IsNotExist(err) && !explicit:
		log.Warn().Str("path", path).Msg("config file not found, running on built-in defaults")
		cfg.Assets = DefaultAssets()
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg.applyEnv()
	cfg.normalize()

	if err := structValidator.Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv maps DRIFTBOT_* environment variables over the file values.
// The venue API key only ever comes from the environment.
func (c *Config) applyEnv() {
	if v := os.Getenv("DRIFTBOT_VENUE_URL"); v != "" {
		c.Venue.BaseURL = v
	}
	if v := os.Getenv("DRIFTBOT_STREAM_URL"); v != "" {
		c.Venue.StreamURL = v
	}
	if v := os.Getenv("DRIFTBOT_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("DRIFTBOT_JOURNAL_DSN"); v != "" {
		c.Journal.DSN = v
	}
	if v := os.Getenv("DRIFTBOT_REDIS_ADDR"); v != "" {
		c.Cache.Redis.Addr = v
	}
	if v := os.Getenv("DRIFTBOT_OPS_ADDR"); v != "" {
		c.Ops.ListenAddr = v
	}
	c.Venue.APIKey = os.Getenv(c.Venue.APIKeyEnv)
}

// normalize canonicalizes symbols and fills threshold tables left out of
// the file with the package defaults. A table the file does set is taken
// as-is and must cover every referenced category, so a typo surfaces at
// load instead of silently falling back.
func (c *Config) normalize() {
	for i := range c.Assets {
		c.Assets[i].Symbol = strings.ToUpper(strings.TrimSpace(c.Assets[i].Symbol))
	}
	c.Rebalance.ReserveSymbol = strings.ToUpper(strings.TrimSpace(c.Rebalance.ReserveSymbol))

	if c.Strategies.Momentum.Thresholds == nil {
		c.Strategies.Momentum.Thresholds = strategy.DefaultMomentumThresholds()
	}
	if c.Strategies.MeanReversion.ZThresholds == nil {
		c.Strategies.MeanReversion.ZThresholds = strategy.DefaultZThresholds()
	}
	if c.Sizing.BaseSizes == nil {
		c.Sizing.BaseSizes = portfolio.DefaultBaseSizes()
	}
	if c.Sizing.Multipliers == nil {
		c.Sizing.Multipliers = portfolio.DefaultMultipliers()
	}
}

// Validate enforces the rules that span sections: the key is present,
// symbols are unique, enabled weights sum to one, the reserve asset is
// tradable, and every enabled asset has a row in each tuning table.
func (c *Config) Validate() error {
	if c.Venue.APIKey == "" {
		return fmt.Errorf("venue API key missing: set %s", c.Venue.APIKeyEnv)
	}

	seen := make(map[string]int, len(c.Assets))
	enabled := 0
	weightSum := 0.0
	memeSum := 0.0
	for i, a := range c.Assets {
		if prev, dup := seen[a.Symbol]; dup {
			return fmt.Errorf("assets[%d]: symbol %s already declared at assets[%d]", i, a.Symbol, prev)
		}
		seen[a.Symbol] = i

		if !a.Category.Valid() {
			return fmt.Errorf("asset %s: unknown category %q", a.Symbol, a.Category)
		}
		if !a.Volatility.Valid() {
			return fmt.Errorf("asset %s: unknown volatility tier %q", a.Symbol, a.Volatility)
		}
		if !a.IsEnabled() {
			continue
		}
		enabled++
		weightSum += a.TargetWeight
		if a.Category == domain.CategoryMeme {
			memeSum += a.TargetWeight
		}

		// A baseline over the cap would be clamped every cycle and the
		// portfolio could never settle on it.
		if a.TargetWeight > c.Sizing.MaxSingle {
			return fmt.Errorf("asset %s: target weight %.2f exceeds max_single_token_allocation %.2f",
				a.Symbol, a.TargetWeight, c.Sizing.MaxSingle)
		}

		if err := c.checkTables(a.Symbol, a.Category, a.Volatility); err != nil {
			return err
		}
	}

	if enabled == 0 {
		return errors.New("no enabled assets configured")
	}
	if math.Abs(weightSum-1) > weightSumTolerance {
		return fmt.Errorf("enabled target weights sum to %.4f, want 1.0", weightSum)
	}
	if memeSum > c.Sizing.MaxMeme {
		return fmt.Errorf("meme target weights sum to %.2f, exceeding max_meme_allocation %.2f",
			memeSum, c.Sizing.MaxMeme)
	}

	reserve, ok := seen[c.Rebalance.ReserveSymbol]
	if !ok {
		return fmt.Errorf("reserve symbol %s is not in the asset list", c.Rebalance.ReserveSymbol)
	}
	if !c.Assets[reserve].IsEnabled() {
		return fmt.Errorf("reserve symbol %s is disabled", c.Rebalance.ReserveSymbol)
	}
	return nil
}

func (c *Config) checkTables(symbol string, cat domain.Category, tier domain.VolatilityTier) error {
	if c.Strategies.Momentum.Enabled {
		if _, ok := c.Strategies.Momentum.Thresholds[cat]; !ok {
			return fmt.Errorf("asset %s: no momentum threshold for category %s", symbol, cat)
		}
	}
	if c.Strategies.MeanReversion.Enabled {
		if _, ok := c.Strategies.MeanReversion.ZThresholds[cat]; !ok {
			return fmt.Errorf("asset %s: no z-score threshold for category %s", symbol, cat)
		}
	}
	if _, ok := c.Sizing.BaseSizes[cat]; !ok {
		return fmt.Errorf("asset %s: no base size for category %s", symbol, cat)
	}
	if _, ok := c.Sizing.Multipliers[tier]; !ok {
		return fmt.Errorf("asset %s: no multiplier for volatility tier %s", symbol, tier)
	}
	return nil
}
