package domain

// Portfolio is a read-only snapshot of current holdings, valued in the
// quote currency, captured at cycle start. Holdings maps symbol to held
// value; TotalValue is the sum over all holdings.
type Portfolio struct {
	Holdings   map[string]float64
	TotalValue float64
}

// Weight returns the current allocation weight of symbol, or 0 when the
// portfolio is empty.
func (p Portfolio) Weight(symbol string) float64 {
	if p.TotalValue <= 0 {
		return 0
	}
	return p.Holdings[symbol] / p.TotalValue
}

// Weights returns the full symbol -> weight mapping.
func (p Portfolio) Weights() map[string]float64 {
	out := make(map[string]float64, len(p.Holdings))
	for sym, held := range p.Holdings {
		out[sym] = 0
		if p.TotalValue > 0 {
			out[sym] = held / p.TotalValue
		}
	}
	return out
}

// TradeIntent is one planned trade, sized in quote currency. Once emitted
// it is never revised; execution success or failure is the executor's
// concern. MaxSlippage is a hard ceiling passed through to execution.
type TradeIntent struct {
	Symbol      string
	Side        Direction
	Amount      float64
	Drift       float64
	MaxSlippage float64
	Reason      string
}
