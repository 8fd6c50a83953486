// Package domain holds the shared data model for the allocation pipeline:
// assets, price samples, signals, decisions, portfolio snapshots, and trade
// intents. Everything here is plain data; behavior lives in the packages
// that consume it.
package domain

// Category classifies an asset's risk/behavior profile and drives
// threshold and sizing defaults.
type Category string

const (
	CategoryStablecoin Category = "stablecoin"
	CategoryMajor      Category = "major"
	CategoryDefi       Category = "defi"
	CategoryOracle     Category = "oracle"
	CategoryMeme       Category = "meme"
)

// Categories lists every known category, in a stable order.
func Categories() []Category {
	return []Category{CategoryStablecoin, CategoryMajor, CategoryDefi, CategoryOracle, CategoryMeme}
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryStablecoin, CategoryMajor, CategoryDefi, CategoryOracle, CategoryMeme:
		return true
	}
	return false
}

// VolatilityTier is the expected volatility band of an asset.
type VolatilityTier string

const (
	VolatilityLow      VolatilityTier = "low"
	VolatilityMedium   VolatilityTier = "medium"
	VolatilityHigh     VolatilityTier = "high"
	VolatilityVeryHigh VolatilityTier = "very_high"
)

// VolatilityTiers lists every known tier, in a stable order.
func VolatilityTiers() []VolatilityTier {
	return []VolatilityTier{VolatilityLow, VolatilityMedium, VolatilityHigh, VolatilityVeryHigh}
}

// Valid reports whether v is a known tier.
func (v VolatilityTier) Valid() bool {
	switch v {
	case VolatilityLow, VolatilityMedium, VolatilityHigh, VolatilityVeryHigh:
		return true
	}
	return false
}

// Asset is immutable reference data for one tradable token, loaded once
// from configuration.
type Asset struct {
	Symbol     string
	Chain      string
	Address    string
	Decimals   int
	Category   Category
	Volatility VolatilityTier
	Enabled    bool
}

// IsMeme reports whether the asset falls under the meme allocation cap.
func (a Asset) IsMeme() bool {
	return a.Category == CategoryMeme
}
