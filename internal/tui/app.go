package tui

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"marketdeck/internal/domain"
	"marketdeck/internal/marketdata"
	"marketdeck/internal/portfolio"
	"marketdeck/internal/session"
	"marketdeck/internal/watchlist"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

const logFetchLimit = 100

// Backend is the market-wide surface of the API client used by the TUI.
// Per-asset data goes through the marketdata fetcher instead.
type Backend interface {
	MarketMovers(ctx context.Context) ([]domain.Mover, error)
	Search(ctx context.Context, query string) ([]domain.Asset, error)
	GlobalNews(ctx context.Context) ([]domain.NewsItem, error)
	RecentPatterns(ctx context.Context) ([]domain.Pattern, error)
	PatternStats(ctx context.Context) (*domain.PatternStats, error)
	BrainStatus(ctx context.Context) (*domain.BrainStatus, error)
	Logs(ctx context.Context, level string, limit int) ([]domain.LogEntry, error)
	LogStats(ctx context.Context) (*domain.LogStats, error)
	AgentStatus(ctx context.Context) (*domain.AgentStatus, error)
	AgentStart(ctx context.Context) error
	AgentStop(ctx context.Context) error
	AgentRun(ctx context.Context) error
}

// Services bundles everything the dashboard needs. Built once per process
// for the local binary, once per connection for the SSH server.
type Services struct {
	Backend   Backend
	Session   *session.Session
	Watchlist *watchlist.Service
	Portfolio *portfolio.Ledger
	Market    *marketdata.Fetcher
}

// Options tune polling and the initially selected asset.
type Options struct {
	DefaultAsset domain.Asset
	LogPoll      time.Duration
	AgentPoll    time.Duration
	MoversPoll   time.Duration
}

type tab int

const (
	tabStocks tab = iota
	tabCrypto
	tabExplore
	tabPatterns
	tabNews
	tabTrade
	tabWatchlist
	tabLogs
	tabSystem
	tabCount
)

var tabNames = [tabCount]string{
	"Stocks", "Crypto", "Explore", "Patterns", "News", "Trade", "Watchlist", "Logs", "System",
}

type AppModel struct {
	svc Services
	opt Options

	width  int
	height int

	active tab
	status string

	board       domain.MoverBoard
	news        []domain.NewsItem
	patterns    []domain.Pattern
	patternAgg  *domain.PatternStats
	logs        []domain.LogEntry
	logStats    *domain.LogStats
	logLevel    string
	agentStatus *domain.AgentStatus
	brainStatus *domain.BrainStatus

	search      textinput.Model
	results     domain.SearchGroups
	haveResults bool
	cursor      int

	qtyInput textinput.Model
	side     portfolio.Side

	showLogin    bool
	registerMode bool
	userInput    textinput.Model
	passInput    textinput.Model
	loginFocus   int
}

func NewAppModel(svc Services, opt Options) *AppModel {
	if opt.LogPoll <= 0 {
		opt.LogPoll = 5 * time.Second
	}
	if opt.AgentPoll <= 0 {
		opt.AgentPoll = 5 * time.Second
	}
	if opt.MoversPoll <= 0 {
		opt.MoversPoll = 60 * time.Second
	}

	search := textinput.New()
	search.Placeholder = "search assets"
	search.CharLimit = 40

	qty := textinput.New()
	qty.Placeholder = "quantity"
	qty.CharLimit = 12

	user := textinput.New()
	user.Placeholder = "username"
	user.CharLimit = 40

	pass := textinput.New()
	pass.Placeholder = "password"
	pass.CharLimit = 64
	pass.EchoMode = textinput.EchoPassword

	return &AppModel{
		svc:       svc,
		opt:       opt,
		logLevel:  "all",
		search:    search,
		qtyInput:  qty,
		userInput: user,
		passInput: pass,
		side:      portfolio.SideBuy,
	}
}

// SetSize fixes the viewport before the first frame; the wish middleware
// calls it with the PTY dimensions.
func (m *AppModel) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m *AppModel) Init() tea.Cmd {
	cmds := []tea.Cmd{m.selectAsset(m.opt.DefaultAsset)}
	if m.svc.Session.IsAuthenticated() {
		cmds = append(cmds, m.loadWatchlistCmd())
	}
	return tea.Batch(cmds...)
}

func (m *AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tickMsg:
		return m, m.handleTick(msg)

	case assetDataMsg:
		if m.svc.Market.Apply(marketdata.Update(msg)) {
			if errs := m.svc.Market.Snapshot().Errs; len(errs) > 0 {
				m.status = fmt.Sprintf("partial load: %v", errs[0])
			}
		}
		return m, nil

	case moversMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("movers: %v", msg.err)
			return m, nil
		}
		m.board = msg.board
		m.clampCursor()
		return m, nil

	case globalNewsMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("news: %v", msg.err)
			return m, nil
		}
		m.news = msg.items
		return m, nil

	case patternsFeedMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("patterns: %v", msg.err)
			return m, nil
		}
		m.patterns = msg.patterns
		m.patternAgg = msg.stats
		return m, nil

	case logsMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("logs: %v", msg.err)
			return m, nil
		}
		m.logs = msg.entries
		m.logStats = msg.stats
		return m, nil

	case systemMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("system: %v", msg.err)
			return m, nil
		}
		m.agentStatus = msg.agent
		m.brainStatus = msg.brain
		return m, nil

	case agentActionMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("agent: %v", msg.err)
			return m, nil
		}
		return m, m.fetchSystemCmd()

	case searchMsg:
		if msg.query != m.search.Value() {
			// The query changed while this search was in flight.
			return m, nil
		}
		if msg.err != nil {
			m.status = fmt.Sprintf("search: %v", msg.err)
			return m, nil
		}
		m.results = msg.groups
		m.haveResults = true
		m.cursor = 0
		return m, nil

	case watchlistLoadedMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("watchlist: %v", msg.err)
		}
		m.clampCursor()
		return m, nil

	case watchlistSyncMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("watchlist sync failed: %v", msg.err)
		}
		m.clampCursor()
		return m, nil

	case authMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("auth: %v", msg.err)
			return m, nil
		}
		if m.svc.Session.IsAuthenticated() {
			m.showLogin = false
			m.userInput.SetValue("")
			m.passInput.SetValue("")
			m.status = "signed in as " + m.svc.Session.Username()
			return m, m.loadWatchlistCmd()
		}
		m.status = "signed out"
		return m, nil

	case tradeMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("trade rejected: %v", msg.err)
			return m, nil
		}
		m.qtyInput.SetValue("")
		m.status = fmt.Sprintf("trade filled, cash %.2f", msg.state.Cash)
		return m, nil
	}

	return m, nil
}

// handleTick refreshes the data behind the active tab and schedules the next
// tick. Ticks for a tab the user has left are dropped.
func (m *AppModel) handleTick(msg tickMsg) tea.Cmd {
	if msg.tab != m.active {
		return nil
	}
	switch msg.tab {
	case tabExplore:
		return tea.Batch(m.fetchMoversCmd(), tickCmd(tabExplore, m.opt.MoversPoll))
	case tabLogs:
		return tea.Batch(m.fetchLogsCmd(m.logLevel), tickCmd(tabLogs, m.opt.LogPoll))
	case tabSystem:
		return tea.Batch(m.fetchSystemCmd(), tickCmd(tabSystem, m.opt.AgentPoll))
	}
	return nil
}

func (m *AppModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return m, tea.Quit
	}
	if m.showLogin {
		return m.handleLoginKey(msg)
	}
	if m.search.Focused() {
		return m.handleSearchKey(msg)
	}
	if m.qtyInput.Focused() {
		return m.handleQtyKey(msg)
	}

	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "tab":
		return m, m.setTab((m.active + 1) % tabCount)
	case "shift+tab":
		return m, m.setTab((m.active + tabCount - 1) % tabCount)
	case "1", "2", "3", "4", "5", "6", "7", "8", "9":
		n, _ := strconv.Atoi(msg.String())
		return m, m.setTab(tab(n - 1))
	case "/":
		cmd := m.setTab(tabExplore)
		m.search.Focus()
		return m, cmd
	case "w":
		return m.toggleCurrentAsset()
	case "o":
		if !m.svc.Session.IsAuthenticated() {
			m.openLogin()
			return m, nil
		}
		return m, m.logoutCmd()
	}

	return m.handleTabKey(msg)
}

func (m *AppModel) handleTabKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.active {
	case tabExplore, tabWatchlist:
		switch msg.String() {
		case "j", "down":
			m.cursor++
			m.clampCursor()
		case "k", "up":
			if m.cursor > 0 {
				m.cursor--
			}
		case "enter":
			if asset, ok := m.selectedRow(); ok {
				return m, m.selectAsset(asset)
			}
		case "d":
			if m.active == tabWatchlist {
				if asset, ok := m.selectedRow(); ok {
					return m, m.removeWatchlistCmd(asset.Symbol)
				}
			}
		}

	case tabTrade:
		switch msg.String() {
		case "b":
			m.side = portfolio.SideBuy
		case "s":
			m.side = portfolio.SideSell
		case "i", "enter":
			m.qtyInput.Focus()
			return m, textinput.Blink
		}

	case tabLogs:
		if msg.String() == "f" {
			m.logLevel = nextLogLevel(m.logLevel)
			return m, m.fetchLogsCmd(m.logLevel)
		}

	case tabSystem:
		switch msg.String() {
		case "s":
			return m, m.agentActionCmd(m.svc.Backend.AgentStart)
		case "x":
			return m, m.agentActionCmd(m.svc.Backend.AgentStop)
		case "r":
			return m, m.agentActionCmd(m.svc.Backend.AgentRun)
		}
	}

	return m, nil
}

func (m *AppModel) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.search.Blur()
		m.search.SetValue("")
		m.haveResults = false
		m.cursor = 0
		return m, nil
	case tea.KeyEnter:
		m.search.Blur()
		if query := m.search.Value(); query != "" {
			return m, m.searchCmd(query)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	return m, cmd
}

func (m *AppModel) handleQtyKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.qtyInput.Blur()
		return m, nil
	case tea.KeyEnter:
		m.qtyInput.Blur()
		return m, m.submitTrade()
	}

	var cmd tea.Cmd
	m.qtyInput, cmd = m.qtyInput.Update(msg)
	return m, cmd
}

func (m *AppModel) handleLoginKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.showLogin = false
		return m, nil
	case tea.KeyTab, tea.KeyShiftTab:
		m.loginFocus = 1 - m.loginFocus
		if m.loginFocus == 0 {
			m.userInput.Focus()
			m.passInput.Blur()
		} else {
			m.passInput.Focus()
			m.userInput.Blur()
		}
		return m, textinput.Blink
	case tea.KeyCtrlR:
		m.registerMode = !m.registerMode
		return m, nil
	case tea.KeyEnter:
		user, pass := m.userInput.Value(), m.passInput.Value()
		if user == "" || pass == "" {
			m.status = "username and password required"
			return m, nil
		}
		return m, m.loginCmd(user, pass, m.registerMode)
	}

	var cmd tea.Cmd
	if m.loginFocus == 0 {
		m.userInput, cmd = m.userInput.Update(msg)
	} else {
		m.passInput, cmd = m.passInput.Update(msg)
	}
	return m, cmd
}

// setTab switches the active tab and kicks off its initial load and, for
// polled tabs, the tick loop.
func (m *AppModel) setTab(t tab) tea.Cmd {
	if t < 0 || t >= tabCount {
		return nil
	}
	m.active = t
	m.cursor = 0
	m.status = ""

	switch t {
	case tabStocks, tabCrypto:
		if asset := m.svc.Market.Snapshot().Asset; asset.Symbol != "" {
			return m.fetchAssetCmd(asset, m.svc.Market.Begin(asset))
		}
	case tabExplore:
		return tea.Batch(m.fetchMoversCmd(), tickCmd(tabExplore, m.opt.MoversPoll))
	case tabPatterns:
		return m.fetchPatternsFeedCmd()
	case tabNews:
		return m.fetchGlobalNewsCmd()
	case tabWatchlist:
		if m.svc.Session.IsAuthenticated() {
			return m.loadWatchlistCmd()
		}
		m.openLogin()
	case tabLogs:
		return tea.Batch(m.fetchLogsCmd(m.logLevel), tickCmd(tabLogs, m.opt.LogPoll))
	case tabSystem:
		return tea.Batch(m.fetchSystemCmd(), tickCmd(tabSystem, m.opt.AgentPoll))
	}
	return nil
}

// selectAsset makes the asset current and jumps to the panel matching its
// type. The fetch runs under a fresh generation so a slower fetch for a
// previously selected asset cannot overwrite it.
func (m *AppModel) selectAsset(asset domain.Asset) tea.Cmd {
	gen := m.svc.Market.Begin(asset)
	if asset.Type == domain.AssetCrypto {
		m.active = tabCrypto
	} else {
		m.active = tabStocks
	}
	m.cursor = 0
	return m.fetchAssetCmd(asset, gen)
}

func (m *AppModel) toggleCurrentAsset() (tea.Model, tea.Cmd) {
	if !m.svc.Session.IsAuthenticated() {
		m.openLogin()
		return m, nil
	}
	asset := m.svc.Market.Snapshot().Asset
	if m.active == tabExplore || m.active == tabWatchlist {
		if row, ok := m.selectedRow(); ok {
			asset = row
		}
	}
	if asset.Symbol == "" {
		return m, nil
	}
	return m, m.toggleWatchlistCmd(asset)
}

func (m *AppModel) openLogin() {
	m.showLogin = true
	m.loginFocus = 0
	m.userInput.Focus()
	m.passInput.Blur()
}

// rows flattens the selectable list behind the cursor on the active tab.
func (m *AppModel) rows() []domain.Asset {
	switch m.active {
	case tabExplore:
		if m.haveResults {
			var rows []domain.Asset
			rows = append(rows, m.results.Stocks...)
			rows = append(rows, m.results.Crypto...)
			rows = append(rows, m.results.Other...)
			return rows
		}
		var rows []domain.Asset
		for _, mv := range m.board.Gainers {
			rows = append(rows, mv.Asset())
		}
		for _, mv := range m.board.Losers {
			rows = append(rows, mv.Asset())
		}
		for _, mv := range m.board.MostActive {
			rows = append(rows, mv.Asset())
		}
		return rows
	case tabWatchlist:
		return m.svc.Watchlist.Items()
	}
	return nil
}

// selectedRow returns the asset under the cursor. The list can shrink between
// a mutation and the message that reclamps the cursor, so clamp again here
// before indexing.
func (m *AppModel) selectedRow() (domain.Asset, bool) {
	rows := m.rows()
	if len(rows) == 0 {
		return domain.Asset{}, false
	}
	if m.cursor >= len(rows) {
		m.cursor = len(rows) - 1
	}
	return rows[m.cursor], true
}

func (m *AppModel) clampCursor() {
	if n := len(m.rows()); m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m *AppModel) submitTrade() tea.Cmd {
	snap := m.svc.Market.Snapshot()
	if snap.Asset.Symbol == "" || len(snap.Prices) == 0 {
		m.status = "no priced asset selected"
		return nil
	}
	qty, err := strconv.ParseFloat(m.qtyInput.Value(), 64)
	if err != nil {
		m.status = "invalid quantity"
		return nil
	}
	price := snap.Prices[len(snap.Prices)-1].Close
	return m.tradeCmd(m.side, snap.Asset.Symbol, qty, price)
}

func nextLogLevel(level string) string {
	switch level {
	case "all":
		return "info"
	case "info":
		return "warning"
	case "warning":
		return "error"
	default:
		return "all"
	}
}
