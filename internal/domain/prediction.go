package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// Signal is a prediction's directional recommendation.
type Signal string

const (
	SignalBuy     Signal = "Buy"
	SignalSell    Signal = "Sell"
	SignalNeutral Signal = "Neutral"
)

// ParseSignal normalizes the server's signal spelling. The remote API emits
// mixed casing and uses "hold" interchangeably with neutral.
func ParseSignal(s string) Signal {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buy":
		return SignalBuy
	case "sell":
		return SignalSell
	default:
		return SignalNeutral
	}
}

// UnmarshalJSON accepts the server's mixed spellings ("BUY", "hold", ...).
func (s *Signal) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = ParseSignal(raw)
	return nil
}

// KeyLevels are the suggested trade levels attached to a prediction.
type KeyLevels struct {
	Entry    float64 `json:"entry"`
	Target   float64 `json:"target"`
	StopLoss float64 `json:"stop_loss"`
}

// AnalysisBlock is one style-specific scoring section of a prediction. All
// five styles share the shape {score, verdict, details, metrics}; only the
// metrics record differs, so the block is generic over it. The verdict field
// is spelled differently per style on the wire (rating/status/mindset) and is
// normalized during decoding.
type AnalysisBlock[M any] struct {
	Score   float64
	Verdict string
	Details []string
	Metrics M
}

func (b *AnalysisBlock[M]) UnmarshalJSON(data []byte) error {
	var raw struct {
		Score   float64  `json:"score"`
		Verdict string   `json:"verdict"`
		Rating  string   `json:"rating"`
		Quality string   `json:"quality"`
		Status  string   `json:"status"`
		Mindset string   `json:"mindset"`
		Details []string `json:"details"`
		Metrics M        `json:"metrics"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	b.Score = raw.Score
	b.Details = raw.Details
	b.Metrics = raw.Metrics
	for _, v := range []string{raw.Verdict, raw.Rating, raw.Quality, raw.Status, raw.Mindset} {
		if v != "" {
			b.Verdict = v
			break
		}
	}
	return nil
}

// GrahamMetrics backs the value-investing analysis block.
type GrahamMetrics struct {
	PERatio      float64 `json:"pe_ratio"`
	PBRatio      float64 `json:"pb_ratio"`
	EPS          float64 `json:"eps"`
	BookValue    float64 `json:"book_value"`
	CurrentRatio float64 `json:"current_ratio"`
	DebtToEquity float64 `json:"debt_to_equity"`
}

// LynchMetrics backs the growth analysis block.
type LynchMetrics struct {
	PEGRatio          float64 `json:"peg_ratio"`
	EarningsGrowth    float64 `json:"earnings_growth"`
	InventoryTurnover float64 `json:"inventory_turnover"`
	DebtEquity        float64 `json:"debt_equity"`
}

// BuffettMetrics backs the moat analysis block.
type BuffettMetrics struct {
	ROE          float64 `json:"roe"`
	GrossMargin  float64 `json:"gross_margin"`
	DebtToEquity float64 `json:"debt_to_equity"`
	FreeCashFlow float64 `json:"free_cash_flow"`
}

// TalebMetrics backs the fragility/risk analysis block.
type TalebMetrics struct {
	FragilityScore float64 `json:"fragility_score"`
	MaxDrawdown    float64 `json:"max_drawdown"`
	Volatility     float64 `json:"volatility"`
	TailRisk       string  `json:"tail_risk"`
}

// HouselMetrics backs the investor-psychology analysis block.
type HouselMetrics struct {
	FOMORisk        string  `json:"fomo_risk"`
	PatienceScore   float64 `json:"patience_score"`
	RSI             float64 `json:"rsi"`
	MarketSentiment string  `json:"market_sentiment"`
}

// Prediction is the AI forecast for one asset. One prediction per asset per
// fetch; no history is retained on the client.
type Prediction struct {
	Symbol             string    `json:"symbol,omitempty"`
	HorizonDays        int       `json:"horizon_days"`
	CurrentPrice       float64   `json:"current_price"`
	PredictedPrice     float64   `json:"predicted_price"`
	PredictedChangePct float64   `json:"predicted_change_pct"`
	LowerBound         float64   `json:"lower_bound"`
	UpperBound         float64   `json:"upper_bound"`
	Signal             Signal    `json:"signal"`
	Confidence         float64   `json:"confidence"`
	Reasoning          string    `json:"reasoning,omitempty"`
	Accuracy           float64   `json:"accuracy,omitempty"`
	Timestamp          time.Time `json:"timestamp,omitempty"`

	KeyLevels *KeyLevels `json:"key_levels,omitempty"`

	Graham  *AnalysisBlock[GrahamMetrics]  `json:"graham_analysis,omitempty"`
	Lynch   *AnalysisBlock[LynchMetrics]   `json:"lynch_analysis,omitempty"`
	Buffett *AnalysisBlock[BuffettMetrics] `json:"buffett_analysis,omitempty"`
	Taleb   *AnalysisBlock[TalebMetrics]   `json:"taleb_analysis,omitempty"`
	Housel  *AnalysisBlock[HouselMetrics]  `json:"housel_analysis,omitempty"`
}

// AnalysisSummary lists the analysis blocks present on a prediction in a
// fixed display order, normalized to a common row shape.
type AnalysisRow struct {
	Title   string
	Score   float64
	Verdict string
	Details []string
}

func (p *Prediction) AnalysisSummary() []AnalysisRow {
	var rows []AnalysisRow
	if p.Graham != nil {
		rows = append(rows, AnalysisRow{"Graham Value", p.Graham.Score, p.Graham.Verdict, p.Graham.Details})
	}
	if p.Lynch != nil {
		rows = append(rows, AnalysisRow{"Lynch Growth", p.Lynch.Score, p.Lynch.Verdict, p.Lynch.Details})
	}
	if p.Buffett != nil {
		rows = append(rows, AnalysisRow{"Buffett Moat", p.Buffett.Score, p.Buffett.Verdict, p.Buffett.Details})
	}
	if p.Taleb != nil {
		rows = append(rows, AnalysisRow{"Taleb Risk", p.Taleb.Score, p.Taleb.Verdict, p.Taleb.Details})
	}
	if p.Housel != nil {
		rows = append(rows, AnalysisRow{"Psychology", p.Housel.Score, p.Housel.Verdict, p.Housel.Details})
	}
	return rows
}
