package domain

import (
	"encoding/json"
	"time"
)

// The remote API emits timestamps both with and without a zone suffix.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses a server timestamp, returning the zero time for
// values no layout matches.
func ParseTimestamp(s string) time.Time {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func (p *PricePoint) UnmarshalJSON(data []byte) error {
	var raw struct {
		Time   string  `json:"time"`
		Open   float64 `json:"open"`
		High   float64 `json:"high"`
		Low    float64 `json:"low"`
		Close  float64 `json:"close"`
		Volume float64 `json:"volume"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = PricePoint{
		Time:   ParseTimestamp(raw.Time),
		Open:   raw.Open,
		High:   raw.High,
		Low:    raw.Low,
		Close:  raw.Close,
		Volume: raw.Volume,
	}
	return nil
}

func (p *Pattern) UnmarshalJSON(data []byte) error {
	type alias Pattern
	var raw struct {
		alias
		Timestamp string `json:"timestamp"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = Pattern(raw.alias)
	p.Timestamp = ParseTimestamp(raw.Timestamp)
	return nil
}

func (n *NewsItem) UnmarshalJSON(data []byte) error {
	type alias NewsItem
	var raw struct {
		alias
		Timestamp string `json:"timestamp"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*n = NewsItem(raw.alias)
	n.Timestamp = ParseTimestamp(raw.Timestamp)
	return nil
}

func (l *LogEntry) UnmarshalJSON(data []byte) error {
	type alias LogEntry
	var raw struct {
		alias
		Timestamp string `json:"timestamp"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*l = LogEntry(raw.alias)
	l.Timestamp = ParseTimestamp(raw.Timestamp)
	return nil
}

func (a *AgentStatus) UnmarshalJSON(data []byte) error {
	var raw struct {
		IsRunning     bool   `json:"is_running"`
		CurrentAction string `json:"current_action"`
		LastRun       string `json:"last_run"`
		AIEnabled     bool   `json:"ai_enabled"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*a = AgentStatus{
		IsRunning:     raw.IsRunning,
		CurrentAction: raw.CurrentAction,
		AIEnabled:     raw.AIEnabled,
	}
	if raw.LastRun != "" {
		if t := ParseTimestamp(raw.LastRun); !t.IsZero() {
			a.LastRun = &t
		}
	}
	return nil
}
