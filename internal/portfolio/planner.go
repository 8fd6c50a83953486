package portfolio

import (
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/peakmont/driftbot/internal/domain"
	"github.com/peakmont/driftbot/internal/metrics"
)

// PlannerConfig holds the rebalance trigger and trade hygiene limits.
type PlannerConfig struct {
	Threshold      float64 `yaml:"threshold" default:"0.05" validate:"gt=0,lt=1"`
	MinTradeAmount float64 `yaml:"min_trade_amount" default:"10" validate:"gte=0"`
	MaxSlippage    float64 `yaml:"max_slippage" default:"0.01" validate:"gt=0,lte=0.5"`
}

// Planner compares current weights against targets and emits the trades
// needed to close any drift beyond the threshold.
type Planner struct {
	cfg     PlannerConfig
	metrics *metrics.Registry
}

func NewPlanner(cfg PlannerConfig, m *metrics.Registry) *Planner {
	return &Planner{cfg: cfg, metrics: m}
}

// Plan returns the intents for one rebalance pass. Sells come before
// buys so the quote balance is freed before it is spent; within a side,
// larger drift trades first. Drift at or below the threshold is left
// alone, and amounts under the trade minimum are deferred to a later
// cycle rather than churned.
func (p *Planner) Plan(current domain.Portfolio, targets map[string]float64) []domain.TradeIntent {
	if current.TotalValue <= 0 {
		return nil
	}

	symbols := make([]string, 0, len(targets))
	for sym := range targets {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	intents := make([]domain.TradeIntent, 0, len(targets))
	for _, sym := range symbols {
		target := targets[sym]
		weight := current.Weight(sym)
		drift := math.Abs(weight - target)
		if drift <= p.cfg.Threshold {
			continue
		}

		amount := floorToCent(drift * current.TotalValue)
		if amount < p.cfg.MinTradeAmount {
			p.metrics.RecordSuppressed()
			log.Debug().
				Str("symbol", sym).
				Float64("amount", amount).
				Float64("min", p.cfg.MinTradeAmount).
				Msg("rebalance trade below venue minimum, deferred")
			continue
		}

		side := domain.Sell
		if weight < target {
			side = domain.Buy
		}
		intents = append(intents, domain.TradeIntent{
			Symbol:      sym,
			Side:        side,
			Amount:      amount,
			Drift:       drift,
			MaxSlippage: p.cfg.MaxSlippage,
			Reason:      fmt.Sprintf("weight %.4f drifted %.4f from target %.4f", weight, drift, target),
		})
	}

	sort.SliceStable(intents, func(i, j int) bool {
		a, b := intents[i], intents[j]
		if a.Side != b.Side {
			return a.Side == domain.Sell
		}
		if a.Drift != b.Drift {
			return a.Drift > b.Drift
		}
		return a.Symbol < b.Symbol
	})
	return intents
}

// floorToCent truncates a USD amount to whole cents, the venue's
// smallest quotable unit. The epsilon absorbs float error so amounts a
// hair under a cent boundary do not lose the cent.
func floorToCent(x float64) float64 {
	return math.Floor(x*100+1e-6) / 100
}
