package tui

import (
	"context"
	"strings"
	"testing"
	"time"

	"marketdeck/internal/domain"
	"marketdeck/internal/marketdata"
	"marketdeck/internal/portfolio"
	"marketdeck/internal/session"
	"marketdeck/internal/store"
	"marketdeck/internal/watchlist"

	tea "github.com/charmbracelet/bubbletea"
)

type fakeBackend struct {
	movers  []domain.Mover
	results []domain.Asset
	logs    []domain.LogEntry
	started bool
	stopped bool
	ran     bool
}

func (f *fakeBackend) MarketMovers(context.Context) ([]domain.Mover, error) { return f.movers, nil }
func (f *fakeBackend) Search(_ context.Context, q string) ([]domain.Asset, error) {
	return f.results, nil
}
func (f *fakeBackend) GlobalNews(context.Context) ([]domain.NewsItem, error) {
	return []domain.NewsItem{{Title: "Markets rally", Credibility: domain.CredibilityHigh}}, nil
}
func (f *fakeBackend) RecentPatterns(context.Context) ([]domain.Pattern, error) {
	return []domain.Pattern{{Name: "Double Bottom", Type: domain.PatternBullish, Symbol: "AAPL"}}, nil
}
func (f *fakeBackend) PatternStats(context.Context) (*domain.PatternStats, error) {
	return &domain.PatternStats{TotalPatterns: 12, SuccessRate: 0.75}, nil
}
func (f *fakeBackend) BrainStatus(context.Context) (*domain.BrainStatus, error) {
	return &domain.BrainStatus{Status: "learning", Accuracy: 0.6}, nil
}
func (f *fakeBackend) Logs(context.Context, string, int) ([]domain.LogEntry, error) {
	return f.logs, nil
}
func (f *fakeBackend) LogStats(context.Context) (*domain.LogStats, error) {
	return &domain.LogStats{TotalLogs: len(f.logs)}, nil
}
func (f *fakeBackend) AgentStatus(context.Context) (*domain.AgentStatus, error) {
	return &domain.AgentStatus{IsRunning: f.started && !f.stopped, CurrentAction: "idle"}, nil
}
func (f *fakeBackend) AgentStart(context.Context) error { f.started = true; return nil }
func (f *fakeBackend) AgentStop(context.Context) error  { f.stopped = true; return nil }
func (f *fakeBackend) AgentRun(context.Context) error   { f.ran = true; return nil }

type fakeAssetAPI struct {
	prices map[string][]domain.PricePoint
}

func (f *fakeAssetAPI) PriceHistory(_ context.Context, symbol string, _ int) ([]domain.PricePoint, error) {
	return f.prices[symbol], nil
}
func (f *fakeAssetAPI) Prediction(_ context.Context, symbol string) (*domain.Prediction, error) {
	return &domain.Prediction{Symbol: symbol, Signal: domain.SignalBuy, Confidence: 0.8}, nil
}
func (f *fakeAssetAPI) Patterns(context.Context, string) ([]domain.Pattern, error) { return nil, nil }
func (f *fakeAssetAPI) AssetNews(context.Context, string) ([]domain.NewsItem, error) {
	return nil, nil
}
func (f *fakeAssetAPI) Technicals(context.Context, string) (*domain.TechnicalSummary, error) {
	return &domain.TechnicalSummary{Summary: domain.Recommendation{Verdict: "BUY"}}, nil
}

type fakeAuth struct{ token string }

func (f *fakeAuth) Login(context.Context, string, string) (string, error)    { return f.token, nil }
func (f *fakeAuth) Register(context.Context, string, string) (string, error) { return f.token, nil }

type fakeWatchRemote struct{ symbols []string }

func (f *fakeWatchRemote) FetchWatchlist(context.Context) ([]string, error) { return f.symbols, nil }
func (f *fakeWatchRemote) AddWatchlistSymbol(_ context.Context, s string) error {
	f.symbols = append(f.symbols, s)
	return nil
}
func (f *fakeWatchRemote) RemoveWatchlistSymbol(context.Context, string) error { return nil }

func newTestModel(t *testing.T, backend *fakeBackend) *AppModel {
	t.Helper()

	ledger, err := portfolio.NewLedger(context.Background(), store.NewMemStore(), 100000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	api := &fakeAssetAPI{prices: map[string][]domain.PricePoint{
		"RELIANCE.NS": {{Close: 100}, {Close: 105}},
		"TCS.NS":      {{Close: 50}, {Close: 48}},
	}}

	svc := Services{
		Backend:   backend,
		Session:   session.New(store.NewMemStore(), &fakeAuth{token: "jwt"}),
		Watchlist: watchlist.NewService(&fakeWatchRemote{}),
		Portfolio: ledger,
		Market:    marketdata.NewFetcher(api, 30),
	}
	opt := Options{
		DefaultAsset: domain.Asset{Symbol: "RELIANCE.NS", Name: "Reliance Industries", Type: domain.AssetStock},
		LogPoll:      time.Millisecond,
		AgentPoll:    time.Millisecond,
		MoversPoll:   time.Millisecond,
	}
	m := NewAppModel(svc, opt)
	m.SetSize(120, 40)
	return m
}

// drain runs a command tree synchronously and feeds every produced message
// back into the model, mirroring what the bubbletea runtime does.
func drain(t *testing.T, m *AppModel, cmd tea.Cmd) {
	t.Helper()
	if cmd == nil {
		return
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		for _, c := range batch {
			drain(t, m, c)
		}
		return
	}
	if _, ok := msg.(tickMsg); ok {
		// Stop tick loops from recursing forever in tests.
		return
	}
	_, next := m.Update(msg)
	drain(t, m, next)
}

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestAppInitLoadsDefaultAsset(t *testing.T) {
	t.Parallel()

	m := newTestModel(t, &fakeBackend{})
	drain(t, m, m.Init())

	snap := m.svc.Market.Snapshot()
	if snap.Asset.Symbol != "RELIANCE.NS" {
		t.Fatalf("expected default asset selected, got %+v", snap.Asset)
	}
	if snap.Loading || len(snap.Prices) != 2 {
		t.Fatalf("expected loaded prices, got %+v", snap)
	}

	view := m.View()
	if !strings.Contains(view, "RELIANCE.NS") {
		t.Error("expected dashboard to show the selected symbol")
	}
}

func TestAppTabSwitching(t *testing.T) {
	t.Parallel()

	m := newTestModel(t, &fakeBackend{movers: []domain.Mover{
		{Symbol: "AAPL", Price: 210, Change: 2.5, Volume: 100},
	}})
	drain(t, m, m.Init())

	_, cmd := m.Update(key("3"))
	if m.active != tabExplore {
		t.Fatalf("expected explore tab, got %d", m.active)
	}
	drain(t, m, cmd)

	if len(m.board.Gainers) != 1 || m.board.Gainers[0].Symbol != "AAPL" {
		t.Fatalf("expected movers loaded, got %+v", m.board)
	}
}

func TestAppDropsTickForInactiveTab(t *testing.T) {
	t.Parallel()

	m := newTestModel(t, &fakeBackend{})
	drain(t, m, m.Init())

	// A logs tick arriving while the dashboard is active must not reschedule.
	_, cmd := m.Update(tickMsg{tab: tabLogs, at: time.Now()})
	if cmd != nil {
		t.Fatal("expected stale tick to be dropped")
	}
}

func TestAppSelectingMoverJumpsToStocksPanel(t *testing.T) {
	t.Parallel()

	m := newTestModel(t, &fakeBackend{movers: []domain.Mover{
		{Symbol: "TCS.NS", Price: 50, Change: -1.2, Volume: 10},
	}})
	drain(t, m, m.Init())

	_, cmd := m.Update(key("3"))
	drain(t, m, cmd)

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if m.active != tabStocks {
		t.Fatalf("expected stocks panel after selection, got tab %d", m.active)
	}
	drain(t, m, cmd)

	snap := m.svc.Market.Snapshot()
	if snap.Asset.Symbol != "TCS.NS" {
		t.Fatalf("expected TCS.NS selected, got %+v", snap.Asset)
	}
	if snap.Prices[len(snap.Prices)-1].Close != 48 {
		t.Fatalf("expected TCS.NS prices, got %+v", snap.Prices)
	}
}

func TestAppSelectingCryptoSwitchesPanel(t *testing.T) {
	t.Parallel()

	m := newTestModel(t, &fakeBackend{})
	drain(t, m, m.Init())

	if m.active != tabStocks {
		t.Fatalf("expected stocks panel for the default asset, got tab %d", m.active)
	}

	drain(t, m, m.selectAsset(domain.Asset{Symbol: "BTC-USD", Name: "Bitcoin", Type: domain.AssetCrypto}))
	if m.active != tabCrypto {
		t.Fatalf("expected crypto panel, got tab %d", m.active)
	}
}

func TestAppStaleSearchResultDropped(t *testing.T) {
	t.Parallel()

	m := newTestModel(t, &fakeBackend{})
	drain(t, m, m.Init())
	drain(t, m, m.setTab(tabExplore))

	m.search.SetValue("newer query")
	m.Update(searchMsg{query: "old query", groups: domain.SearchGroups{
		Stocks: []domain.Asset{{Symbol: "STALE"}},
	}})

	if m.haveResults {
		t.Fatal("expected stale search results to be dropped")
	}
}

func TestAppTradeFlow(t *testing.T) {
	t.Parallel()

	m := newTestModel(t, &fakeBackend{})
	drain(t, m, m.Init())

	drain(t, m, m.setTab(tabTrade))
	m.qtyInput.SetValue("10")
	drain(t, m, m.submitTrade())

	state := m.svc.Portfolio.Snapshot()
	if state.Holdings["RELIANCE.NS"] != 10 {
		t.Fatalf("expected 10 shares held, got %+v", state.Holdings)
	}
	// Filled at the last close of 105.
	if state.Cash != 100000-1050 {
		t.Fatalf("unexpected cash: %v", state.Cash)
	}
	if !strings.Contains(m.status, "trade filled") {
		t.Fatalf("expected fill confirmation, got %q", m.status)
	}
}

func TestAppTradeRejectionKeepsState(t *testing.T) {
	t.Parallel()

	m := newTestModel(t, &fakeBackend{})
	drain(t, m, m.Init())

	drain(t, m, m.setTab(tabTrade))
	m.side = portfolio.SideSell
	m.qtyInput.SetValue("5")
	drain(t, m, m.submitTrade())

	if !strings.Contains(m.status, "trade rejected") {
		t.Fatalf("expected rejection status, got %q", m.status)
	}
	if state := m.svc.Portfolio.Snapshot(); state.Cash != 100000 {
		t.Fatalf("expected untouched cash, got %v", state.Cash)
	}
}

func TestAppWatchlistRequiresAuth(t *testing.T) {
	t.Parallel()

	m := newTestModel(t, &fakeBackend{})
	drain(t, m, m.Init())

	_, _ = m.Update(key("w"))
	if !m.showLogin {
		t.Fatal("expected login prompt for anonymous watchlist toggle")
	}
}

func TestAppLoginThenWatchlistToggle(t *testing.T) {
	t.Parallel()

	m := newTestModel(t, &fakeBackend{})
	drain(t, m, m.Init())

	m.openLogin()
	m.userInput.SetValue("demo")
	m.passInput.SetValue("secret")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	drain(t, m, cmd)

	if m.showLogin {
		t.Fatal("expected login overlay closed after success")
	}
	if !m.svc.Session.IsAuthenticated() {
		t.Fatal("expected authenticated session")
	}

	_, cmd = m.Update(key("w"))
	drain(t, m, cmd)
	if !m.svc.Watchlist.Contains("RELIANCE.NS") {
		t.Fatal("expected current asset added to watchlist")
	}
}

func TestAppCursorSurvivesWatchlistShrink(t *testing.T) {
	t.Parallel()

	m := newTestModel(t, &fakeBackend{})
	drain(t, m, m.Init())

	ctx := context.Background()
	if err := m.svc.Session.Login(ctx, "demo", "secret"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, s := range []string{"AAPL", "MSFT", "GOOG"} {
		if err := m.svc.Watchlist.Add(ctx, domain.Asset{Symbol: s, Name: s, Type: domain.AssetStock}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	_, cmd := m.Update(key("7"))
	drain(t, m, cmd)
	m.Update(key("j"))
	m.Update(key("j"))
	if m.cursor != 2 {
		t.Fatalf("expected cursor on last row, got %d", m.cursor)
	}

	// A removal command can complete before the message that reclamps the
	// cursor arrives, leaving the cursor past the shrunken list.
	if err := m.svc.Watchlist.Remove(ctx, "GOOG"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	drain(t, m, cmd)

	if got := m.svc.Market.Snapshot().Asset.Symbol; got != "MSFT" {
		t.Fatalf("expected last remaining row selected, got %q", got)
	}
}

func TestAppAgentControls(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{}
	m := newTestModel(t, backend)
	drain(t, m, m.Init())
	drain(t, m, m.setTab(tabSystem))

	_, cmd := m.Update(key("s"))
	drain(t, m, cmd)
	if !backend.started {
		t.Fatal("expected agent start call")
	}
	if m.agentStatus == nil || !m.agentStatus.IsRunning {
		t.Fatalf("expected refreshed running status, got %+v", m.agentStatus)
	}

	_, cmd = m.Update(key("r"))
	drain(t, m, cmd)
	if !backend.ran {
		t.Fatal("expected agent run call")
	}
}

func TestAppLogLevelCycle(t *testing.T) {
	t.Parallel()

	m := newTestModel(t, &fakeBackend{})
	drain(t, m, m.Init())
	drain(t, m, m.setTab(tabLogs))

	levels := []string{"info", "warning", "error", "all"}
	for _, want := range levels {
		_, cmd := m.Update(key("f"))
		drain(t, m, cmd)
		if m.logLevel != want {
			t.Fatalf("expected level %q, got %q", want, m.logLevel)
		}
	}
}

func TestSparkline(t *testing.T) {
	t.Parallel()

	points := []domain.PricePoint{{Close: 1}, {Close: 5}, {Close: 9}}
	got := sparkline(points, 10)
	if got == "" {
		t.Fatal("expected non-empty sparkline")
	}
	runes := []rune(got)
	if runes[0] != '▁' || runes[len(runes)-1] != '█' {
		t.Fatalf("expected min/max at extremes, got %q", got)
	}

	if sparkline(nil, 10) != "" {
		t.Error("expected empty sparkline for empty series")
	}

	flat := sparkline([]domain.PricePoint{{Close: 5}, {Close: 5}}, 10)
	for _, r := range flat {
		if r != '▁' {
			t.Fatalf("expected flat series at baseline, got %q", flat)
		}
	}
}
