package domain

import (
	"sort"
	"strings"
	"time"
)

// AssetType classifies a tradable instrument.
type AssetType string

const (
	AssetStock   AssetType = "Stock"
	AssetCrypto  AssetType = "Crypto"
	AssetIndex   AssetType = "Index"
	AssetUnknown AssetType = "Unknown"
)

// ParseAssetType maps a server-provided type string to an AssetType.
// Unrecognized values become AssetUnknown rather than an error.
func ParseAssetType(s string) AssetType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "stock", "equity":
		return AssetStock
	case "crypto", "cryptocurrency":
		return AssetCrypto
	case "index":
		return AssetIndex
	default:
		return AssetUnknown
	}
}

// Asset is a tradable instrument. Identity is the symbol.
type Asset struct {
	Symbol string    `json:"symbol"`
	Name   string    `json:"name"`
	Type   AssetType `json:"type"`
}

// PricePoint is one OHLCV bar in a chronological series.
type PricePoint struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// PriceChange returns the absolute and percent change between the last two
// closes of a series. A series shorter than two points, or a zero previous
// close, yields a zero percent change instead of a division error.
func PriceChange(points []PricePoint) (change, pct float64) {
	if len(points) < 2 {
		return 0, 0
	}
	last := points[len(points)-1].Close
	prev := points[len(points)-2].Close
	change = last - prev
	if prev == 0 {
		return change, 0
	}
	return change, change / prev * 100
}

// PatternType is the directional bias of a detected chart pattern.
type PatternType string

const (
	PatternBullish PatternType = "Bullish"
	PatternBearish PatternType = "Bearish"
)

// Pattern is a chart pattern detected by the remote analysis engine.
type Pattern struct {
	Name        string      `json:"name"`
	Type        PatternType `json:"type"`
	Description string      `json:"description"`
	Symbol      string      `json:"symbol,omitempty"`
	Reliability string      `json:"reliability,omitempty"`
	Timeframe   string      `json:"timeframe,omitempty"`
	StopLoss    float64     `json:"stop_loss,omitempty"`
	TargetPrice float64     `json:"target_price,omitempty"`
	Timestamp   time.Time   `json:"timestamp"`
}

// Credibility is the qualitative trust rating attached to a news item.
type Credibility string

const (
	CredibilityHigh   Credibility = "High"
	CredibilityMedium Credibility = "Medium"
	CredibilityLow    Credibility = "Low"
)

type NewsItem struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Publisher   string      `json:"publisher"`
	Timestamp   time.Time   `json:"timestamp"`
	Credibility Credibility `json:"credibility"`
	URL         string      `json:"url"`
}

// Mover is one row of the market movers feed.
type Mover struct {
	Symbol string    `json:"symbol"`
	Name   string    `json:"name,omitempty"`
	Type   AssetType `json:"type,omitempty"`
	Price  float64   `json:"price"`
	Change float64   `json:"change"`
	Volume float64   `json:"volume"`
}

// Asset converts a mover row into a selectable asset. The movers feed omits
// display names for some rows, so the symbol doubles as the name.
func (m Mover) Asset() Asset {
	name := m.Name
	if name == "" {
		name = m.Symbol
	}
	typ := m.Type
	if typ == "" {
		typ = AssetStock
	}
	return Asset{Symbol: m.Symbol, Name: name, Type: typ}
}

// MoverBoard partitions the flat movers feed into the three dashboard lists.
type MoverBoard struct {
	Gainers    []Mover
	Losers     []Mover
	MostActive []Mover
}

const moverBoardSize = 5

// RankMovers builds a MoverBoard from the flat server list: gainers by change
// descending, losers by change ascending, most active by volume descending.
func RankMovers(movers []Mover) MoverBoard {
	gainers := make([]Mover, 0, len(movers))
	losers := make([]Mover, 0, len(movers))
	for _, m := range movers {
		if m.Change > 0 {
			gainers = append(gainers, m)
		} else if m.Change < 0 {
			losers = append(losers, m)
		}
	}
	active := append([]Mover(nil), movers...)

	sort.SliceStable(gainers, func(i, j int) bool { return gainers[i].Change > gainers[j].Change })
	sort.SliceStable(losers, func(i, j int) bool { return losers[i].Change < losers[j].Change })
	sort.SliceStable(active, func(i, j int) bool { return active[i].Volume > active[j].Volume })

	return MoverBoard{
		Gainers:    capMovers(gainers, moverBoardSize),
		Losers:     capMovers(losers, moverBoardSize),
		MostActive: capMovers(active, moverBoardSize),
	}
}

func capMovers(movers []Mover, n int) []Mover {
	if len(movers) > n {
		return movers[:n]
	}
	return movers
}

// SearchGroups holds search hits partitioned by asset type. Each group keeps
// the relative order the server returned.
type SearchGroups struct {
	Stocks []Asset
	Crypto []Asset
	Other  []Asset
}

func GroupSearchResults(assets []Asset) SearchGroups {
	var g SearchGroups
	for _, a := range assets {
		switch a.Type {
		case AssetStock:
			g.Stocks = append(g.Stocks, a)
		case AssetCrypto:
			g.Crypto = append(g.Crypto, a)
		default:
			g.Other = append(g.Other, a)
		}
	}
	return g
}

// Recommendation is one verdict row of a technical-analysis summary.
type Recommendation struct {
	Verdict string `json:"RECOMMENDATION"`
	Buy     int    `json:"BUY"`
	Sell    int    `json:"SELL"`
	Neutral int    `json:"NEUTRAL"`
}

// TechnicalSummary is the oscillator/moving-average rollup for an asset.
type TechnicalSummary struct {
	Summary        Recommendation `json:"summary"`
	Oscillators    Recommendation `json:"oscillators"`
	MovingAverages Recommendation `json:"moving_averages"`
}

type LogEntry struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Category  string    `json:"category"`
	Message   string    `json:"message"`
}

type LogStats struct {
	TotalLogs    int `json:"total_logs"`
	ErrorCount   int `json:"error_count"`
	WarningCount int `json:"warning_count"`
}

type AgentStatus struct {
	IsRunning     bool       `json:"is_running"`
	CurrentAction string     `json:"current_action"`
	LastRun       *time.Time `json:"last_run"`
	AIEnabled     bool       `json:"ai_enabled"`
}

type BrainStatus struct {
	Status           string         `json:"status"`
	Accuracy         float64        `json:"accuracy"`
	TotalPredictions int            `json:"total_predictions"`
	Parameters       map[string]any `json:"parameters"`
	Lessons          []string       `json:"lessons"`
}

type PatternStats struct {
	TotalPatterns int     `json:"total_patterns"`
	SuccessRate   float64 `json:"success_rate"`
}

// PortfolioState is the paper-trading ledger payload persisted between runs.
type PortfolioState struct {
	Cash     float64            `json:"cash"`
	Holdings map[string]float64 `json:"holdings"`
}
