package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"marketdeck/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

// ErrUnauthorized is returned for 401/403 responses so callers can force a
// re-login instead of surfacing a raw status code.
var ErrUnauthorized = errors.New("api: unauthorized")

// TokenSource supplies the bearer token for authenticated endpoints. An empty
// token means the request goes out anonymously.
type TokenSource interface {
	Token() string
}

// Client talks to the market analytics backend over HTTP.
type Client struct {
	client  *http.Client
	baseURL string
	tracer  trace.Tracer
	limiter *RateLimiter
	tokens  TokenSource
}

// NewClient creates a client with built-in rate limiting. tokens may be nil
// for a purely anonymous client.
func NewClient(baseURL string, timeout time.Duration, limiter *RateLimiter, tokens TokenSource, tracer trace.Tracer) *Client {
	return &Client{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		tracer:  tracer,
		limiter: limiter,
		tokens:  tokens,
	}
}

// PriceHistory fetches the OHLCV series for a symbol over the given number of
// days. Points come back oldest first.
func (c *Client) PriceHistory(ctx context.Context, symbol string, days int) ([]domain.PricePoint, error) {
	ctx, span := c.tracer.Start(ctx, "api.price-history")
	defer span.End()

	q := url.Values{"days": {strconv.Itoa(days)}}
	body, err := c.get(ctx, "/api/asset/"+url.PathEscape(symbol)+"/price", q)
	if err != nil {
		return nil, fmt.Errorf("fetch price history for %s: %w", symbol, err)
	}

	var points []domain.PricePoint
	if err := json.Unmarshal(body, &points); err != nil {
		return nil, fmt.Errorf("parse price history for %s: %w", symbol, err)
	}
	return points, nil
}

// Prediction fetches the AI prediction and per-mentor analysis blocks for a symbol.
func (c *Client) Prediction(ctx context.Context, symbol string) (*domain.Prediction, error) {
	ctx, span := c.tracer.Start(ctx, "api.prediction")
	defer span.End()

	body, err := c.get(ctx, "/api/asset/"+url.PathEscape(symbol)+"/predict", nil)
	if err != nil {
		return nil, fmt.Errorf("fetch prediction for %s: %w", symbol, err)
	}

	var p domain.Prediction
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("parse prediction for %s: %w", symbol, err)
	}
	return &p, nil
}

// Patterns fetches chart patterns detected on a symbol.
func (c *Client) Patterns(ctx context.Context, symbol string) ([]domain.Pattern, error) {
	ctx, span := c.tracer.Start(ctx, "api.patterns")
	defer span.End()

	body, err := c.get(ctx, "/api/asset/"+url.PathEscape(symbol)+"/patterns", nil)
	if err != nil {
		return nil, fmt.Errorf("fetch patterns for %s: %w", symbol, err)
	}

	var patterns []domain.Pattern
	if err := json.Unmarshal(body, &patterns); err != nil {
		return nil, fmt.Errorf("parse patterns for %s: %w", symbol, err)
	}
	return patterns, nil
}

// AssetNews fetches news scoped to a single symbol.
func (c *Client) AssetNews(ctx context.Context, symbol string) ([]domain.NewsItem, error) {
	ctx, span := c.tracer.Start(ctx, "api.asset-news")
	defer span.End()

	body, err := c.get(ctx, "/api/asset/"+url.PathEscape(symbol)+"/news", nil)
	if err != nil {
		return nil, fmt.Errorf("fetch news for %s: %w", symbol, err)
	}
	return parseNews(body, symbol)
}

// GlobalNews fetches the market-wide news feed.
func (c *Client) GlobalNews(ctx context.Context) ([]domain.NewsItem, error) {
	ctx, span := c.tracer.Start(ctx, "api.global-news")
	defer span.End()

	body, err := c.get(ctx, "/api/news", nil)
	if err != nil {
		return nil, fmt.Errorf("fetch global news: %w", err)
	}
	return parseNews(body, "market")
}

// parseNews accepts either a bare list or an {"articles": [...]} wrapper.
func parseNews(body []byte, scope string) ([]domain.NewsItem, error) {
	var items []domain.NewsItem
	if err := json.Unmarshal(body, &items); err == nil {
		return items, nil
	}
	var wrapped struct {
		Articles []domain.NewsItem `json:"articles"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, fmt.Errorf("parse news for %s: %w", scope, err)
	}
	return wrapped.Articles, nil
}

// Technicals fetches the indicator rollup for a symbol.
func (c *Client) Technicals(ctx context.Context, symbol string) (*domain.TechnicalSummary, error) {
	ctx, span := c.tracer.Start(ctx, "api.technicals")
	defer span.End()

	body, err := c.get(ctx, "/api/asset/"+url.PathEscape(symbol)+"/technicals", nil)
	if err != nil {
		return nil, fmt.Errorf("fetch technicals for %s: %w", symbol, err)
	}

	var t domain.TechnicalSummary
	if err := json.Unmarshal(body, &t); err != nil {
		return nil, fmt.Errorf("parse technicals for %s: %w", symbol, err)
	}
	return &t, nil
}

// MarketMovers fetches the flat movers feed.
func (c *Client) MarketMovers(ctx context.Context) ([]domain.Mover, error) {
	ctx, span := c.tracer.Start(ctx, "api.market-movers")
	defer span.End()

	body, err := c.get(ctx, "/api/market/movers", nil)
	if err != nil {
		return nil, fmt.Errorf("fetch market movers: %w", err)
	}

	var movers []domain.Mover
	if err := json.Unmarshal(body, &movers); err != nil {
		return nil, fmt.Errorf("parse market movers: %w", err)
	}
	return movers, nil
}

// Search looks up assets matching the query string.
func (c *Client) Search(ctx context.Context, query string) ([]domain.Asset, error) {
	ctx, span := c.tracer.Start(ctx, "api.search")
	defer span.End()

	body, err := c.get(ctx, "/api/search", url.Values{"q": {query}})
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}

	var raw []struct {
		Symbol string `json:"symbol"`
		Name   string `json:"name"`
		Type   string `json:"type"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("parse search results for %q: %w", query, err)
	}

	assets := make([]domain.Asset, 0, len(raw))
	for _, r := range raw {
		name := r.Name
		if name == "" {
			name = r.Symbol
		}
		assets = append(assets, domain.Asset{
			Symbol: r.Symbol,
			Name:   name,
			Type:   domain.ParseAssetType(r.Type),
		})
	}
	return assets, nil
}

// RecentPatterns fetches the cross-asset pattern feed.
func (c *Client) RecentPatterns(ctx context.Context) ([]domain.Pattern, error) {
	ctx, span := c.tracer.Start(ctx, "api.recent-patterns")
	defer span.End()

	body, err := c.get(ctx, "/api/patterns/recent", nil)
	if err != nil {
		return nil, fmt.Errorf("fetch recent patterns: %w", err)
	}

	var patterns []domain.Pattern
	if err := json.Unmarshal(body, &patterns); err != nil {
		return nil, fmt.Errorf("parse recent patterns: %w", err)
	}
	return patterns, nil
}

// PatternStats fetches aggregate pattern-detection statistics.
func (c *Client) PatternStats(ctx context.Context) (*domain.PatternStats, error) {
	ctx, span := c.tracer.Start(ctx, "api.pattern-stats")
	defer span.End()

	body, err := c.get(ctx, "/api/patterns/stats", nil)
	if err != nil {
		return nil, fmt.Errorf("fetch pattern stats: %w", err)
	}

	var stats domain.PatternStats
	if err := json.Unmarshal(body, &stats); err != nil {
		return nil, fmt.Errorf("parse pattern stats: %w", err)
	}
	return &stats, nil
}

// BrainStatus fetches the learning-engine status.
func (c *Client) BrainStatus(ctx context.Context) (*domain.BrainStatus, error) {
	ctx, span := c.tracer.Start(ctx, "api.brain-status")
	defer span.End()

	body, err := c.get(ctx, "/api/brain/status", nil)
	if err != nil {
		return nil, fmt.Errorf("fetch brain status: %w", err)
	}

	var status domain.BrainStatus
	if err := json.Unmarshal(body, &status); err != nil {
		return nil, fmt.Errorf("parse brain status: %w", err)
	}
	return &status, nil
}

// Logs fetches recent backend log entries, optionally filtered by level.
func (c *Client) Logs(ctx context.Context, level string, limit int) ([]domain.LogEntry, error) {
	ctx, span := c.tracer.Start(ctx, "api.logs")
	defer span.End()

	q := url.Values{}
	if level != "" && !strings.EqualFold(level, "all") {
		q.Set("level", level)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	body, err := c.get(ctx, "/api/logs", q)
	if err != nil {
		return nil, fmt.Errorf("fetch logs: %w", err)
	}

	var entries []domain.LogEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("parse logs: %w", err)
	}
	return entries, nil
}

// LogStats fetches aggregate log counters.
func (c *Client) LogStats(ctx context.Context) (*domain.LogStats, error) {
	ctx, span := c.tracer.Start(ctx, "api.log-stats")
	defer span.End()

	body, err := c.get(ctx, "/api/logs/stats", nil)
	if err != nil {
		return nil, fmt.Errorf("fetch log stats: %w", err)
	}

	var stats domain.LogStats
	if err := json.Unmarshal(body, &stats); err != nil {
		return nil, fmt.Errorf("parse log stats: %w", err)
	}
	return &stats, nil
}

// AgentStatus fetches the trading agent's state.
func (c *Client) AgentStatus(ctx context.Context) (*domain.AgentStatus, error) {
	ctx, span := c.tracer.Start(ctx, "api.agent-status")
	defer span.End()

	body, err := c.get(ctx, "/api/agent/status", nil)
	if err != nil {
		return nil, fmt.Errorf("fetch agent status: %w", err)
	}

	var status domain.AgentStatus
	if err := json.Unmarshal(body, &status); err != nil {
		return nil, fmt.Errorf("parse agent status: %w", err)
	}
	return &status, nil
}

// AgentStart asks the backend to start the autonomous agent loop.
func (c *Client) AgentStart(ctx context.Context) error {
	ctx, span := c.tracer.Start(ctx, "api.agent-start")
	defer span.End()

	if _, err := c.do(ctx, http.MethodPost, "/api/agent/start", nil, nil); err != nil {
		return fmt.Errorf("start agent: %w", err)
	}
	return nil
}

// AgentStop asks the backend to stop the agent loop.
func (c *Client) AgentStop(ctx context.Context) error {
	ctx, span := c.tracer.Start(ctx, "api.agent-stop")
	defer span.End()

	if _, err := c.do(ctx, http.MethodPost, "/api/agent/stop", nil, nil); err != nil {
		return fmt.Errorf("stop agent: %w", err)
	}
	return nil
}

// AgentRun triggers a single agent cycle.
func (c *Client) AgentRun(ctx context.Context) error {
	ctx, span := c.tracer.Start(ctx, "api.agent-run")
	defer span.End()

	if _, err := c.do(ctx, http.MethodPost, "/api/agent/run", nil, nil); err != nil {
		return fmt.Errorf("run agent: %w", err)
	}
	return nil
}

// FetchWatchlist fetches the authenticated user's watchlist symbols. The
// backend has shipped both bare-string and object list shapes, so both decode.
func (c *Client) FetchWatchlist(ctx context.Context) ([]string, error) {
	ctx, span := c.tracer.Start(ctx, "api.fetch-watchlist")
	defer span.End()

	body, err := c.get(ctx, "/api/users/me/watchlist", nil)
	if err != nil {
		return nil, fmt.Errorf("fetch watchlist: %w", err)
	}

	var items []watchlistItem
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("parse watchlist: %w", err)
	}

	symbols := make([]string, 0, len(items))
	for _, it := range items {
		if it.Symbol != "" {
			symbols = append(symbols, it.Symbol)
		}
	}
	return symbols, nil
}

type watchlistItem struct {
	Symbol string
}

func (w *watchlistItem) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &w.Symbol)
	}
	var obj struct {
		Symbol string `json:"symbol"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	w.Symbol = obj.Symbol
	return nil
}

// AddWatchlistSymbol adds a symbol to the server-side watchlist.
func (c *Client) AddWatchlistSymbol(ctx context.Context, symbol string) error {
	ctx, span := c.tracer.Start(ctx, "api.add-watchlist-symbol")
	defer span.End()

	payload, _ := json.Marshal(map[string]string{"symbol": symbol})
	if _, err := c.do(ctx, http.MethodPost, "/api/users/me/watchlist", nil, payload); err != nil {
		return fmt.Errorf("add %s to watchlist: %w", symbol, err)
	}
	return nil
}

// RemoveWatchlistSymbol removes a symbol from the server-side watchlist.
func (c *Client) RemoveWatchlistSymbol(ctx context.Context, symbol string) error {
	ctx, span := c.tracer.Start(ctx, "api.remove-watchlist-symbol")
	defer span.End()

	path := "/api/users/me/watchlist/" + url.PathEscape(symbol)
	if _, err := c.do(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("remove %s from watchlist: %w", symbol, err)
	}
	return nil
}

// Login exchanges credentials for a bearer token. The auth endpoints are
// form-encoded, unlike the rest of the API.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	ctx, span := c.tracer.Start(ctx, "api.login")
	defer span.End()

	form := url.Values{"username": {username}, "password": {password}}
	body, err := c.doForm(ctx, "/api/auth/token", form)
	if err != nil {
		return "", fmt.Errorf("login: %w", err)
	}
	return parseToken(body)
}

// Register creates an account and returns a bearer token for it.
func (c *Client) Register(ctx context.Context, username, password string) (string, error) {
	ctx, span := c.tracer.Start(ctx, "api.register")
	defer span.End()

	form := url.Values{"username": {username}, "password": {password}}
	body, err := c.doForm(ctx, "/api/auth/register", form)
	if err != nil {
		return "", fmt.Errorf("register: %w", err)
	}
	return parseToken(body)
}

func parseToken(body []byte) (string, error) {
	var resp struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("parse token response: %w", err)
	}
	if resp.AccessToken == "" {
		return "", errors.New("token response missing access_token")
	}
	return resp.AccessToken, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	return c.do(ctx, http.MethodGet, path, query, nil)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, jsonBody []byte) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if jsonBody != nil {
		reader = strings.NewReader(string(jsonBody))
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if jsonBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.authorize(req)

	return c.send(req)
}

func (c *Client) doForm(ctx context.Context, path string, form url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	c.authorize(req)

	return c.send(req)
}

func (c *Client) authorize(req *http.Request) {
	if c.tokens == nil {
		return
	}
	if token := c.tokens.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

func (c *Client) send(req *http.Request) ([]byte, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, ErrUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("backend API error %d: %s", resp.StatusCode, string(body))
	}

	return io.ReadAll(resp.Body)
}
