// Package report renders the operator-facing portfolio report: current
// allocations against targets, active signals, the pending rebalance
// plan, and recent activity. The same text goes to stdout for the status
// command and to a dated file for the daily report job.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/peakmont/driftbot/internal/domain"
)

// Config sets where report files land.
type Config struct {
	OutDir string `yaml:"out_dir" default:"logs"`
}

// CycleStats summarizes the cycle a report was generated after.
type CycleStats struct {
	CycleID  string
	Outcome  string
	Took     time.Duration
	Intents  int
	Executed int
	Failed   int
	DryRun   bool
}

// Trade is one settled venue trade for the history section. FromAmount
// is in from-token units, not dollars.
type Trade struct {
	At         time.Time
	FromSymbol string
	ToSymbol   string
	FromAmount float64
}

// PriceMove is one asset's trailing price change for the market section.
// Change is fractional (0.05 = 5%).
type PriceMove struct {
	Symbol  string
	Price   float64
	Change  float64
	Samples int
}

// Data carries everything a report can show. Decisions, Intents, Moves,
// Cycle, Trades, and Competition are optional; empty sections explain
// themselves rather than disappearing silently, except Moves which only
// renders when price history exists.
type Data struct {
	GeneratedAt time.Time
	Portfolio   domain.Portfolio
	Targets     map[string]float64
	Decisions   map[string]domain.Decision
	Intents     []domain.TradeIntent
	Moves       []PriceMove
	Cycle       *CycleStats
	Trades      []Trade
	Competition string
}

// Writer renders reports and writes the daily file.
type Writer struct {
	outDir string
}

// NewWriter builds a writer from config.
func NewWriter(cfg Config) *Writer {
	return &Writer{outDir: cfg.OutDir}
}

const (
	ruleHeavy = "=================================================="
	ruleLight = "--------------------------------------------------"
)

// Render produces the plain-text report.
func (w *Writer) Render(d Data) string {
	var b strings.Builder

	fmt.Fprintln(&b, ruleHeavy)
	fmt.Fprintf(&b, "PORTFOLIO REPORT  %s\n", d.GeneratedAt.UTC().Format("2006-01-02 15:04 UTC"))
	fmt.Fprintf(&b, "Total Value: %s\n", usd(d.Portfolio.TotalValue))
	fmt.Fprintln(&b, ruleHeavy)

	w.renderAllocations(&b, d)
	w.renderSignals(&b, d)
	if len(d.Moves) > 0 {
		w.renderMoves(&b, d.Moves)
	}
	w.renderPlan(&b, d)

	if d.Cycle != nil {
		w.renderCycle(&b, *d.Cycle)
	}
	if len(d.Trades) > 0 {
		w.renderTrades(&b, d.Trades)
	}
	if d.Competition != "" {
		fmt.Fprintln(&b)
		fmt.Fprintln(&b, "COMPETITION STATUS")
		fmt.Fprintln(&b, ruleLight)
		fmt.Fprintln(&b, d.Competition)
	}

	return b.String()
}

func (w *Writer) renderAllocations(b *strings.Builder, d Data) {
	fmt.Fprintln(b)
	fmt.Fprintln(b, "CURRENT ALLOCATIONS")
	fmt.Fprintln(b, ruleLight)

	for _, sym := range sortedKeys(d.Targets) {
		target := d.Targets[sym]
		current := d.Portfolio.Weight(sym)
		value := d.Portfolio.Holdings[sym]
		fmt.Fprintf(b, "%-6s target %5.1f%% | current %5.1f%% | drift %+6.1f%% | %s\n",
			sym, target*100, current*100, (current-target)*100, usd(value))
	}
}

func (w *Writer) renderSignals(b *strings.Builder, d Data) {
	fmt.Fprintln(b)
	fmt.Fprintln(b, "ACTIVE SIGNALS")
	fmt.Fprintln(b, ruleLight)

	directional := 0
	for _, sym := range sortedKeys(d.Decisions) {
		dec := d.Decisions[sym]
		if dec.Direction == domain.Hold {
			continue
		}
		directional++
		fmt.Fprintf(b, "%-6s %-4s strength %.2f  %s\n",
			sym, strings.ToUpper(string(dec.Direction)), dec.Strength, dec.Reason)
	}
	if directional == 0 {
		fmt.Fprintln(b, "No directional signals.")
	}
}

func (w *Writer) renderMoves(b *strings.Builder, moves []PriceMove) {
	fmt.Fprintln(b)
	fmt.Fprintln(b, "24H PRICE MOVES")
	fmt.Fprintln(b, ruleLight)

	for _, m := range moves {
		fmt.Fprintf(b, "%-6s %s %+6.1f%% (%d samples)\n",
			m.Symbol, usd(m.Price), m.Change*100, m.Samples)
	}
}

func (w *Writer) renderPlan(b *strings.Builder, d Data) {
	fmt.Fprintln(b)
	fmt.Fprintln(b, "REBALANCE RECOMMENDATIONS")
	fmt.Fprintln(b, ruleLight)

	if len(d.Intents) == 0 {
		fmt.Fprintln(b, "No rebalancing needed.")
		return
	}
	for _, intent := range d.Intents {
		fmt.Fprintf(b, "%-4s %-6s %s (drift %.1f%%)\n",
			strings.ToUpper(string(intent.Side)), intent.Symbol, usd(intent.Amount), intent.Drift*100)
	}
}

func (w *Writer) renderCycle(b *strings.Builder, c CycleStats) {
	fmt.Fprintln(b)
	fmt.Fprintln(b, "LAST CYCLE")
	fmt.Fprintln(b, ruleLight)

	line := fmt.Sprintf("cycle %s %s in %s: %d intents, %d executed, %d failed",
		c.CycleID, c.Outcome, c.Took.Round(time.Millisecond), c.Intents, c.Executed, c.Failed)
	if c.DryRun {
		line += " (dry run)"
	}
	fmt.Fprintln(b, line)
}

func (w *Writer) renderTrades(b *strings.Builder, trades []Trade) {
	fmt.Fprintln(b)
	fmt.Fprintln(b, "RECENT TRADES")
	fmt.Fprintln(b, ruleLight)

	for _, tr := range trades {
		fmt.Fprintf(b, "%s  %s %s -> %s\n",
			tr.At.UTC().Format("2006-01-02 15:04 UTC"), commas(tr.FromAmount), tr.FromSymbol, tr.ToSymbol)
	}
}

// WriteDaily writes the report to <out_dir>/report_YYYY-MM-DD.txt and
// returns the path. The same date overwrites, so reruns stay idempotent.
func (w *Writer) WriteDaily(d Data) (string, error) {
	if err := os.MkdirAll(w.outDir, 0o755); err != nil {
		return "", fmt.Errorf("create report dir %s: %w", w.outDir, err)
	}
	name := fmt.Sprintf("report_%s.txt", d.GeneratedAt.UTC().Format("2006-01-02"))
	path := filepath.Join(w.outDir, name)

	if err := os.WriteFile(path, []byte(w.Render(d)), 0o644); err != nil {
		return "", fmt.Errorf("write report %s: %w", path, err)
	}
	log.Info().Str("path", path).Msg("report written")
	return path, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// usd formats a dollar amount with thousands separators, the way the
// venue dashboard shows it.
func usd(v float64) string {
	if v < 0 {
		return "-$" + commas(-v)
	}
	return "$" + commas(v)
}

// commas renders v with two decimals and thousands separators.
func commas(v float64) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)
	dot := strings.IndexByte(s, '.')
	ip := s[:dot]
	for i := len(ip) - 3; i > 0; i -= 3 {
		ip = ip[:i] + "," + ip[i:]
	}
	return ip + s[dot:]
}
