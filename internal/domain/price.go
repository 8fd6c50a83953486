package domain

import "time"

// PricePoint is one observed price sample for an asset.
type PricePoint struct {
	At    time.Time
	Price float64
}
