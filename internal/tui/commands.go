package tui

import (
	"context"
	"time"

	"marketdeck/internal/domain"
	"marketdeck/internal/marketdata"
	"marketdeck/internal/portfolio"

	tea "github.com/charmbracelet/bubbletea"
)

type assetDataMsg marketdata.Update

type moversMsg struct {
	board domain.MoverBoard
	err   error
}

type globalNewsMsg struct {
	items []domain.NewsItem
	err   error
}

type patternsFeedMsg struct {
	patterns []domain.Pattern
	stats    *domain.PatternStats
	err      error
}

type logsMsg struct {
	entries []domain.LogEntry
	stats   *domain.LogStats
	err     error
}

type systemMsg struct {
	agent *domain.AgentStatus
	brain *domain.BrainStatus
	err   error
}

type agentActionMsg struct{ err error }

type searchMsg struct {
	query  string
	groups domain.SearchGroups
	err    error
}

type watchlistLoadedMsg struct{ err error }

type watchlistSyncMsg struct{ err error }

type authMsg struct{ err error }

type tradeMsg struct {
	state domain.PortfolioState
	err   error
}

// tickMsg drives per-tab polling. Ticks carry the tab they were scheduled
// for; a tick arriving after the user left that tab is dropped, which ends
// the loop.
type tickMsg struct {
	tab tab
	at  time.Time
}

func tickCmd(t tab, every time.Duration) tea.Cmd {
	return tea.Tick(every, func(at time.Time) tea.Msg {
		return tickMsg{tab: t, at: at}
	})
}

func (m *AppModel) fetchAssetCmd(asset domain.Asset, gen uint64) tea.Cmd {
	return func() tea.Msg {
		return assetDataMsg(m.svc.Market.Fetch(context.Background(), asset, gen))
	}
}

func (m *AppModel) fetchMoversCmd() tea.Cmd {
	return func() tea.Msg {
		movers, err := m.svc.Backend.MarketMovers(context.Background())
		if err != nil {
			return moversMsg{err: err}
		}
		return moversMsg{board: domain.RankMovers(movers)}
	}
}

func (m *AppModel) fetchGlobalNewsCmd() tea.Cmd {
	return func() tea.Msg {
		items, err := m.svc.Backend.GlobalNews(context.Background())
		return globalNewsMsg{items: items, err: err}
	}
}

func (m *AppModel) fetchPatternsFeedCmd() tea.Cmd {
	return func() tea.Msg {
		patterns, err := m.svc.Backend.RecentPatterns(context.Background())
		if err != nil {
			return patternsFeedMsg{err: err}
		}
		stats, err := m.svc.Backend.PatternStats(context.Background())
		return patternsFeedMsg{patterns: patterns, stats: stats, err: err}
	}
}

func (m *AppModel) fetchLogsCmd(level string) tea.Cmd {
	return func() tea.Msg {
		entries, err := m.svc.Backend.Logs(context.Background(), level, logFetchLimit)
		if err != nil {
			return logsMsg{err: err}
		}
		stats, err := m.svc.Backend.LogStats(context.Background())
		return logsMsg{entries: entries, stats: stats, err: err}
	}
}

func (m *AppModel) fetchSystemCmd() tea.Cmd {
	return func() tea.Msg {
		agent, err := m.svc.Backend.AgentStatus(context.Background())
		if err != nil {
			return systemMsg{err: err}
		}
		brain, err := m.svc.Backend.BrainStatus(context.Background())
		return systemMsg{agent: agent, brain: brain, err: err}
	}
}

func (m *AppModel) agentActionCmd(action func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		return agentActionMsg{err: action(context.Background())}
	}
}

func (m *AppModel) searchCmd(query string) tea.Cmd {
	return func() tea.Msg {
		assets, err := m.svc.Backend.Search(context.Background(), query)
		if err != nil {
			return searchMsg{query: query, err: err}
		}
		return searchMsg{query: query, groups: domain.GroupSearchResults(assets)}
	}
}

func (m *AppModel) loadWatchlistCmd() tea.Cmd {
	return func() tea.Msg {
		return watchlistLoadedMsg{err: m.svc.Watchlist.Load(context.Background())}
	}
}

func (m *AppModel) toggleWatchlistCmd(asset domain.Asset) tea.Cmd {
	return func() tea.Msg {
		_, err := m.svc.Watchlist.Toggle(context.Background(), asset)
		return watchlistSyncMsg{err: err}
	}
}

func (m *AppModel) removeWatchlistCmd(symbol string) tea.Cmd {
	return func() tea.Msg {
		return watchlistSyncMsg{err: m.svc.Watchlist.Remove(context.Background(), symbol)}
	}
}

func (m *AppModel) loginCmd(username, password string, register bool) tea.Cmd {
	return func() tea.Msg {
		var err error
		if register {
			err = m.svc.Session.Register(context.Background(), username, password)
		} else {
			err = m.svc.Session.Login(context.Background(), username, password)
		}
		return authMsg{err: err}
	}
}

func (m *AppModel) logoutCmd() tea.Cmd {
	return func() tea.Msg {
		err := m.svc.Session.Logout(context.Background())
		m.svc.Watchlist.Clear()
		return authMsg{err: err}
	}
}

func (m *AppModel) tradeCmd(side portfolio.Side, symbol string, qty, price float64) tea.Cmd {
	return func() tea.Msg {
		state, err := m.svc.Portfolio.Trade(context.Background(), side, symbol, qty, price)
		return tradeMsg{state: state, err: err}
	}
}
