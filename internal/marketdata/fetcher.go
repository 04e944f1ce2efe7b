package marketdata

import (
	"context"
	"fmt"
	"sync"

	"marketdeck/internal/domain"
)

// API is the per-asset surface of the backend client.
type API interface {
	PriceHistory(ctx context.Context, symbol string, days int) ([]domain.PricePoint, error)
	Prediction(ctx context.Context, symbol string) (*domain.Prediction, error)
	Patterns(ctx context.Context, symbol string) ([]domain.Pattern, error)
	AssetNews(ctx context.Context, symbol string) ([]domain.NewsItem, error)
	Technicals(ctx context.Context, symbol string) (*domain.TechnicalSummary, error)
}

// Snapshot is everything the dashboard shows for the selected asset.
type Snapshot struct {
	Asset      domain.Asset
	Prices     []domain.PricePoint
	Prediction *domain.Prediction
	Patterns   []domain.Pattern
	News       []domain.NewsItem
	Technicals *domain.TechnicalSummary
	Loading    bool
	Errs       []error
}

// Update is the result of one fetch cycle, tagged with the generation it was
// started under so stale cycles can be discarded.
type Update struct {
	Gen      uint64
	Asset    domain.Asset
	Snapshot Snapshot
}

// Fetcher loads the per-asset data bundle. Every selection bumps a generation
// counter; results from a superseded selection are dropped instead of
// overwriting the newer asset's data, so rapid reselection can never leave
// one asset's panels showing another asset's numbers.
type Fetcher struct {
	mu   sync.Mutex
	api  API
	days int
	gen  uint64
	snap Snapshot
}

func NewFetcher(api API, priceDays int) *Fetcher {
	return &Fetcher{api: api, days: priceDays}
}

// Begin records a new selection and returns the generation token to fetch
// under. Prior data stays visible, flagged as loading, until the fetch lands.
func (f *Fetcher) Begin(asset domain.Asset) uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.gen++
	f.snap.Asset = asset
	f.snap.Loading = true
	f.snap.Errs = nil
	return f.gen
}

// Fetch loads all per-asset endpoints concurrently and returns the combined
// update. Individual endpoint failures are collected rather than aborting the
// cycle; the panels that did load still get fresh data.
func (f *Fetcher) Fetch(ctx context.Context, asset domain.Asset, gen uint64) Update {
	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		snap = Snapshot{Asset: asset}
	)

	fail := func(err error) {
		mu.Lock()
		snap.Errs = append(snap.Errs, err)
		mu.Unlock()
	}

	wg.Add(5)
	go func() {
		defer wg.Done()
		points, err := f.api.PriceHistory(ctx, asset.Symbol, f.days)
		if err != nil {
			fail(fmt.Errorf("prices: %w", err))
			return
		}
		mu.Lock()
		snap.Prices = points
		mu.Unlock()
	}()
	go func() {
		defer wg.Done()
		p, err := f.api.Prediction(ctx, asset.Symbol)
		if err != nil {
			fail(fmt.Errorf("prediction: %w", err))
			return
		}
		mu.Lock()
		snap.Prediction = p
		mu.Unlock()
	}()
	go func() {
		defer wg.Done()
		patterns, err := f.api.Patterns(ctx, asset.Symbol)
		if err != nil {
			fail(fmt.Errorf("patterns: %w", err))
			return
		}
		mu.Lock()
		snap.Patterns = patterns
		mu.Unlock()
	}()
	go func() {
		defer wg.Done()
		news, err := f.api.AssetNews(ctx, asset.Symbol)
		if err != nil {
			fail(fmt.Errorf("news: %w", err))
			return
		}
		mu.Lock()
		snap.News = news
		mu.Unlock()
	}()
	go func() {
		defer wg.Done()
		t, err := f.api.Technicals(ctx, asset.Symbol)
		if err != nil {
			fail(fmt.Errorf("technicals: %w", err))
			return
		}
		mu.Lock()
		snap.Technicals = t
		mu.Unlock()
	}()
	wg.Wait()

	return Update{Gen: gen, Asset: asset, Snapshot: snap}
}

// Apply merges a fetch result into the current snapshot. Stale updates (a
// newer Begin happened since) are dropped and Apply reports false. Panels
// whose endpoint failed keep their previous data.
func (f *Fetcher) Apply(u Update) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if u.Gen != f.gen {
		return false
	}

	next := u.Snapshot
	if next.Prices == nil {
		next.Prices = f.snap.Prices
	}
	if next.Prediction == nil {
		next.Prediction = f.snap.Prediction
	}
	if next.Patterns == nil {
		next.Patterns = f.snap.Patterns
	}
	if next.News == nil {
		next.News = f.snap.News
	}
	if next.Technicals == nil {
		next.Technicals = f.snap.Technicals
	}
	next.Loading = false
	f.snap = next
	return true
}

// Snapshot returns the current view state.
func (f *Fetcher) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

// SelectAndWait runs a full select-fetch-apply cycle synchronously.
func (f *Fetcher) SelectAndWait(ctx context.Context, asset domain.Asset) Snapshot {
	gen := f.Begin(asset)
	f.Apply(f.Fetch(ctx, asset, gen))
	return f.Snapshot()
}
