package tui

import (
	"fmt"
	"strings"

	"marketdeck/internal/domain"
	"marketdeck/internal/portfolio"

	"github.com/charmbracelet/lipgloss"
)

func (m *AppModel) View() string {
	var b strings.Builder

	b.WriteString(m.headerView())
	b.WriteString("\n")

	if m.showLogin {
		b.WriteString(m.loginView())
	} else {
		switch m.active {
		case tabStocks, tabCrypto:
			b.WriteString(m.assetView())
		case tabExplore:
			b.WriteString(m.exploreView())
		case tabPatterns:
			b.WriteString(m.patternsView())
		case tabNews:
			b.WriteString(m.newsView(m.news))
		case tabTrade:
			b.WriteString(m.tradeView())
		case tabWatchlist:
			b.WriteString(m.watchlistView())
		case tabLogs:
			b.WriteString(m.logsView())
		case tabSystem:
			b.WriteString(m.systemView())
		}
	}

	b.WriteString("\n")
	b.WriteString(m.footerView())
	return b.String()
}

func (m *AppModel) headerView() string {
	parts := make([]string, 0, tabCount+1)
	parts = append(parts, titleStyle.Render("marketdeck"))
	for i, name := range tabNames {
		label := fmt.Sprintf("%d %s", i+1, name)
		if tab(i) == m.active {
			parts = append(parts, activeTabStyle.Render(label))
		} else {
			parts = append(parts, tabStyle.Render(label))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m *AppModel) footerView() string {
	help := "1-9/tab switch · / search · w watchlist · o sign in/out · q quit"
	switch m.active {
	case tabExplore, tabWatchlist:
		help = "j/k move · enter select · w toggle · " + help
		if m.active == tabWatchlist {
			help = "d remove · " + help
		}
	case tabTrade:
		help = "b buy · s sell · i quantity · enter submit · " + help
	case tabLogs:
		help = "f filter level · " + help
	case tabSystem:
		help = "s start · x stop · r run once · " + help
	}

	line := helpStyle.Render(help)
	if m.status != "" {
		line = warnStyle.Render(m.status) + "\n" + line
	}
	return line
}

func (m *AppModel) assetView() string {
	snap := m.svc.Market.Snapshot()
	if snap.Asset.Symbol == "" {
		return dimStyle.Render("no asset selected, press / to search")
	}

	var b strings.Builder

	title := fmt.Sprintf("%s (%s) · %s", snap.Asset.Name, snap.Asset.Symbol, snap.Asset.Type)
	if snap.Loading {
		title += dimStyle.Render("  loading…")
	}
	b.WriteString(headingStyle.Render(title))
	b.WriteString("\n\n")

	if len(snap.Prices) > 0 {
		last := snap.Prices[len(snap.Prices)-1].Close
		change, pct := domain.PriceChange(snap.Prices)
		st := changeStyle(change)
		b.WriteString(fmt.Sprintf("%.2f  %s\n", last,
			st.Render(fmt.Sprintf("%+.2f (%+.2f%%)", change, pct))))
		b.WriteString(st.Render(sparkline(snap.Prices, m.chartWidth())))
		b.WriteString("\n\n")
	} else {
		b.WriteString(dimStyle.Render("no price data"))
		b.WriteString("\n\n")
	}

	if p := snap.Prediction; p != nil {
		b.WriteString(m.predictionView(p))
		b.WriteString("\n")
	}
	if t := snap.Technicals; t != nil {
		b.WriteString(headingStyle.Render("Technicals"))
		b.WriteString(fmt.Sprintf("\n%s  summary %s · oscillators %s · moving averages %s\n\n",
			labelStyle.Render("verdict"),
			t.Summary.Verdict, t.Oscillators.Verdict, t.MovingAverages.Verdict))
	}
	if len(snap.Patterns) > 0 {
		b.WriteString(headingStyle.Render("Patterns"))
		b.WriteString("\n")
		for _, p := range snap.Patterns {
			b.WriteString(fmt.Sprintf("  %s %s  %s\n",
				patternBadge(p.Type), p.Name, dimStyle.Render(p.Description)))
		}
		b.WriteString("\n")
	}
	if len(snap.News) > 0 {
		b.WriteString(headingStyle.Render("News"))
		b.WriteString("\n")
		b.WriteString(m.newsLines(snap.News, 5))
	}

	return b.String()
}

func (m *AppModel) predictionView(p *domain.Prediction) string {
	var b strings.Builder

	b.WriteString(headingStyle.Render("Prediction"))
	b.WriteString(fmt.Sprintf("\n  %s  %.2f → %.2f (%+.2f%%) · confidence %.0f%%\n",
		signalBadge(p.Signal), p.CurrentPrice, p.PredictedPrice,
		p.PredictedChangePct, p.Confidence*100))

	if p.KeyLevels != nil {
		b.WriteString(fmt.Sprintf("  %s entry %.2f · target %.2f · stop %.2f\n",
			labelStyle.Render("levels"), p.KeyLevels.Entry, p.KeyLevels.Target, p.KeyLevels.StopLoss))
	}
	if p.Reasoning != "" {
		b.WriteString("  " + dimStyle.Render(p.Reasoning) + "\n")
	}
	for _, row := range p.AnalysisSummary() {
		b.WriteString(fmt.Sprintf("  %-14s %5.1f  %s\n", row.Title, row.Score, row.Verdict))
	}
	return b.String()
}

func (m *AppModel) exploreView() string {
	var b strings.Builder

	b.WriteString(m.search.View())
	b.WriteString("\n\n")

	rows := m.rows()
	if m.haveResults {
		b.WriteString(m.groupedResultsView(rows))
	} else {
		b.WriteString(m.moversView(rows))
	}
	return b.String()
}

func (m *AppModel) groupedResultsView(rows []domain.Asset) string {
	if len(rows) == 0 {
		return dimStyle.Render("no results")
	}

	var b strings.Builder
	idx := 0
	writeGroup := func(name string, assets []domain.Asset) {
		if len(assets) == 0 {
			return
		}
		b.WriteString(headingStyle.Render(name))
		b.WriteString("\n")
		for _, a := range assets {
			line := fmt.Sprintf("  %-12s %s", a.Symbol, a.Name)
			if idx == m.cursor {
				line = selectedStyle.Render(line)
			}
			if m.svc.Watchlist.Contains(a.Symbol) {
				line += upStyle.Render(" ★")
			}
			b.WriteString(line + "\n")
			idx++
		}
	}
	writeGroup("Stocks", m.results.Stocks)
	writeGroup("Crypto", m.results.Crypto)
	writeGroup("Other", m.results.Other)
	return b.String()
}

func (m *AppModel) moversView(rows []domain.Asset) string {
	if len(rows) == 0 {
		return dimStyle.Render("loading market movers…")
	}

	var b strings.Builder
	idx := 0
	writeBoard := func(name string, movers []domain.Mover) {
		if len(movers) == 0 {
			return
		}
		b.WriteString(headingStyle.Render(name))
		b.WriteString("\n")
		for _, mv := range movers {
			line := fmt.Sprintf("  %-12s %10.2f  %s", mv.Symbol, mv.Price,
				changeStyle(mv.Change).Render(fmt.Sprintf("%+.2f%%", mv.Change)))
			if idx == m.cursor {
				line = selectedStyle.Render(fmt.Sprintf("  %-12s %10.2f  %+.2f%%", mv.Symbol, mv.Price, mv.Change))
			}
			b.WriteString(line + "\n")
			idx++
		}
		b.WriteString("\n")
	}
	writeBoard("Top Gainers", m.board.Gainers)
	writeBoard("Top Losers", m.board.Losers)
	writeBoard("Most Active", m.board.MostActive)
	return b.String()
}

func (m *AppModel) patternsView() string {
	var b strings.Builder

	if s := m.patternAgg; s != nil {
		b.WriteString(fmt.Sprintf("%s %d detected · %.0f%% success\n\n",
			labelStyle.Render("recent patterns"), s.TotalPatterns, s.SuccessRate*100))
	}
	if len(m.patterns) == 0 {
		b.WriteString(dimStyle.Render("no recent patterns"))
		return b.String()
	}
	for _, p := range m.patterns {
		b.WriteString(fmt.Sprintf("%s %-10s %s  %s\n",
			patternBadge(p.Type), p.Symbol, p.Name, dimStyle.Render(p.Timeframe)))
	}
	return b.String()
}

func (m *AppModel) newsView(items []domain.NewsItem) string {
	if len(items) == 0 {
		return dimStyle.Render("no news")
	}
	return m.newsLines(items, 15)
}

func (m *AppModel) newsLines(items []domain.NewsItem, max int) string {
	var b strings.Builder
	for i, n := range items {
		if i >= max {
			break
		}
		b.WriteString(fmt.Sprintf("  %s %s  %s\n",
			credibilityBadge(n.Credibility), n.Title, dimStyle.Render(n.Publisher)))
	}
	return b.String()
}

func (m *AppModel) tradeView() string {
	snap := m.svc.Market.Snapshot()
	state := m.svc.Portfolio.Snapshot()

	var b strings.Builder
	b.WriteString(headingStyle.Render("Demo Portfolio"))
	b.WriteString(fmt.Sprintf("\n  cash %.2f\n", state.Cash))
	for symbol, qty := range state.Holdings {
		b.WriteString(fmt.Sprintf("  %-12s %g\n", symbol, qty))
	}
	b.WriteString("\n")

	if snap.Asset.Symbol == "" || len(snap.Prices) == 0 {
		b.WriteString(dimStyle.Render("select a priced asset to trade"))
		return b.String()
	}

	price := snap.Prices[len(snap.Prices)-1].Close
	b.WriteString(fmt.Sprintf("%s %s @ %.2f\n", headingStyle.Render("Order"), snap.Asset.Symbol, price))

	buy, sell := "[ BUY ]", "[ SELL ]"
	if m.side == portfolio.SideBuy {
		buy = upStyle.Render("[*BUY*]")
	} else {
		sell = downStyle.Render("[*SELL*]")
	}
	b.WriteString(fmt.Sprintf("  %s %s  %s\n", buy, sell, m.qtyInput.View()))
	return b.String()
}

func (m *AppModel) watchlistView() string {
	items := m.svc.Watchlist.Items()
	if len(items) == 0 {
		return dimStyle.Render("watchlist is empty, press w on an asset to add it")
	}

	var b strings.Builder
	for i, a := range items {
		line := fmt.Sprintf("  %-12s %s", a.Symbol, a.Name)
		if i == m.cursor {
			line = selectedStyle.Render(line)
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}

func (m *AppModel) logsView() string {
	var b strings.Builder

	filter := fmt.Sprintf("level: %s", m.logLevel)
	if s := m.logStats; s != nil {
		filter += fmt.Sprintf(" · %d total · %s · %s",
			s.TotalLogs,
			errStyle.Render(fmt.Sprintf("%d errors", s.ErrorCount)),
			warnStyle.Render(fmt.Sprintf("%d warnings", s.WarningCount)))
	}
	b.WriteString(labelStyle.Render(filter))
	b.WriteString("\n\n")

	if len(m.logs) == 0 {
		b.WriteString(dimStyle.Render("no log entries"))
		return b.String()
	}
	for _, e := range m.logs {
		b.WriteString(fmt.Sprintf("%s %s %-8s %s\n",
			dimStyle.Render(e.Timestamp.Format("15:04:05")),
			levelBadge(e.Level), e.Category, e.Message))
	}
	return b.String()
}

func (m *AppModel) systemView() string {
	var b strings.Builder

	b.WriteString(headingStyle.Render("Agent"))
	if a := m.agentStatus; a != nil {
		state := downStyle.Render("stopped")
		if a.IsRunning {
			state = upStyle.Render("running")
		}
		b.WriteString(fmt.Sprintf("\n  %s · %s", state, a.CurrentAction))
		if a.LastRun != nil {
			b.WriteString(dimStyle.Render("  last run " + a.LastRun.Format("15:04:05")))
		}
		if a.AIEnabled {
			b.WriteString("  " + labelStyle.Render("ai on"))
		}
		b.WriteString("\n\n")
	} else {
		b.WriteString("\n" + dimStyle.Render("  loading…") + "\n\n")
	}

	b.WriteString(headingStyle.Render("Brain"))
	if br := m.brainStatus; br != nil {
		b.WriteString(fmt.Sprintf("\n  %s · accuracy %.1f%% · %d predictions\n",
			br.Status, br.Accuracy*100, br.TotalPredictions))
		for _, lesson := range br.Lessons {
			b.WriteString("  " + dimStyle.Render("· "+lesson) + "\n")
		}
	} else {
		b.WriteString("\n" + dimStyle.Render("  loading…") + "\n")
	}
	return b.String()
}

func (m *AppModel) loginView() string {
	mode := "Sign in"
	if m.registerMode {
		mode = "Create account"
	}

	var b strings.Builder
	b.WriteString(headingStyle.Render(mode))
	b.WriteString("\n\n  " + m.userInput.View())
	b.WriteString("\n  " + m.passInput.View())
	b.WriteString("\n\n" + helpStyle.Render("enter submit · tab switch field · ctrl+r toggle sign up · esc cancel"))
	return panelStyle.Render(b.String())
}

func (m *AppModel) chartWidth() int {
	if m.width > 20 {
		return m.width - 10
	}
	return 60
}

func signalBadge(s domain.Signal) string {
	switch s {
	case domain.SignalBuy:
		return upStyle.Render("BUY")
	case domain.SignalSell:
		return downStyle.Render("SELL")
	default:
		return flatStyle.Render("NEUTRAL")
	}
}

func patternBadge(t domain.PatternType) string {
	if t == domain.PatternBullish {
		return upStyle.Render("▲")
	}
	return downStyle.Render("▼")
}

func credibilityBadge(c domain.Credibility) string {
	switch c {
	case domain.CredibilityHigh:
		return upStyle.Render("●")
	case domain.CredibilityLow:
		return downStyle.Render("●")
	default:
		return warnStyle.Render("●")
	}
}

func levelBadge(level string) string {
	switch strings.ToLower(level) {
	case "error":
		return errStyle.Render("ERROR")
	case "warning", "warn":
		return warnStyle.Render("WARN ")
	default:
		return flatStyle.Render("INFO ")
	}
}
