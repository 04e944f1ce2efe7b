package marketdata

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"marketdeck/internal/domain"
)

type fakeAPI struct {
	mu         sync.Mutex
	prices     map[string][]domain.PricePoint
	priceErr   error
	predErr    error
	patternErr error
	newsErr    error
	techErr    error
	delay      time.Duration
}

func (f *fakeAPI) PriceHistory(_ context.Context, symbol string, _ int) ([]domain.PricePoint, error) {
	time.Sleep(f.delay)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.priceErr != nil {
		return nil, f.priceErr
	}
	return f.prices[symbol], nil
}

func (f *fakeAPI) Prediction(_ context.Context, symbol string) (*domain.Prediction, error) {
	if f.predErr != nil {
		return nil, f.predErr
	}
	return &domain.Prediction{Symbol: symbol, Signal: domain.SignalBuy}, nil
}

func (f *fakeAPI) Patterns(_ context.Context, symbol string) ([]domain.Pattern, error) {
	if f.patternErr != nil {
		return nil, f.patternErr
	}
	return []domain.Pattern{{Name: "Double Bottom", Type: domain.PatternBullish, Symbol: symbol}}, nil
}

func (f *fakeAPI) AssetNews(_ context.Context, symbol string) ([]domain.NewsItem, error) {
	if f.newsErr != nil {
		return nil, f.newsErr
	}
	return []domain.NewsItem{{Title: "News for " + symbol}}, nil
}

func (f *fakeAPI) Technicals(_ context.Context, _ string) (*domain.TechnicalSummary, error) {
	if f.techErr != nil {
		return nil, f.techErr
	}
	return &domain.TechnicalSummary{Summary: domain.Recommendation{Verdict: "BUY"}}, nil
}

func series(closes ...float64) []domain.PricePoint {
	points := make([]domain.PricePoint, len(closes))
	for i, c := range closes {
		points[i] = domain.PricePoint{Close: c}
	}
	return points
}

func TestFetcherLoadsFullBundle(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{prices: map[string][]domain.PricePoint{"AAPL": series(100, 105)}}
	f := NewFetcher(api, 30)

	snap := f.SelectAndWait(context.Background(), domain.Asset{Symbol: "AAPL", Name: "Apple"})

	if snap.Loading {
		t.Error("expected loading cleared after fetch")
	}
	if len(snap.Errs) != 0 {
		t.Errorf("unexpected errors: %v", snap.Errs)
	}
	if len(snap.Prices) != 2 || snap.Prices[1].Close != 105 {
		t.Errorf("unexpected prices: %+v", snap.Prices)
	}
	if snap.Prediction == nil || snap.Prediction.Symbol != "AAPL" {
		t.Errorf("unexpected prediction: %+v", snap.Prediction)
	}
	if len(snap.Patterns) != 1 || len(snap.News) != 1 || snap.Technicals == nil {
		t.Errorf("incomplete bundle: %+v", snap)
	}
}

func TestFetcherDropsStaleUpdate(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{prices: map[string][]domain.PricePoint{
		"AAPL": series(100),
		"TSLA": series(200),
	}}
	f := NewFetcher(api, 30)

	apple := domain.Asset{Symbol: "AAPL", Name: "Apple"}
	tesla := domain.Asset{Symbol: "TSLA", Name: "Tesla"}

	// First selection starts, then the user reselects before it lands.
	staleGen := f.Begin(apple)
	staleUpdate := f.Fetch(context.Background(), apple, staleGen)

	freshGen := f.Begin(tesla)
	freshUpdate := f.Fetch(context.Background(), tesla, freshGen)

	if !f.Apply(freshUpdate) {
		t.Fatal("expected current update to apply")
	}
	if f.Apply(staleUpdate) {
		t.Fatal("expected superseded update to be dropped")
	}

	snap := f.Snapshot()
	if snap.Asset.Symbol != "TSLA" || snap.Prices[0].Close != 200 {
		t.Fatalf("stale data overwrote the newer selection: %+v", snap)
	}
}

func TestFetcherStaleApplyOutOfOrder(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{prices: map[string][]domain.PricePoint{
		"AAPL": series(100),
		"TSLA": series(200),
	}}
	f := NewFetcher(api, 30)

	staleGen := f.Begin(domain.Asset{Symbol: "AAPL"})
	staleUpdate := f.Fetch(context.Background(), domain.Asset{Symbol: "AAPL"}, staleGen)

	freshGen := f.Begin(domain.Asset{Symbol: "TSLA"})

	// Slow first response arrives before the second fetch even runs.
	if f.Apply(staleUpdate) {
		t.Fatal("expected superseded update to be dropped")
	}
	if snap := f.Snapshot(); !snap.Loading {
		t.Fatal("expected snapshot still loading for the newer selection")
	}

	f.Apply(f.Fetch(context.Background(), domain.Asset{Symbol: "TSLA"}, freshGen))
	if snap := f.Snapshot(); snap.Prices[0].Close != 200 {
		t.Fatalf("unexpected prices: %+v", snap.Prices)
	}
}

func TestFetcherPartialFailureKeepsPriorData(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{prices: map[string][]domain.PricePoint{"AAPL": series(100, 105)}}
	f := NewFetcher(api, 30)
	f.SelectAndWait(context.Background(), domain.Asset{Symbol: "AAPL"})

	api.mu.Lock()
	api.priceErr = errors.New("price service down")
	api.mu.Unlock()

	snap := f.SelectAndWait(context.Background(), domain.Asset{Symbol: "AAPL"})

	if len(snap.Errs) != 1 {
		t.Fatalf("expected one collected error, got %v", snap.Errs)
	}
	if len(snap.Prices) != 2 {
		t.Fatalf("expected prior prices retained, got %+v", snap.Prices)
	}
	if snap.Prediction == nil || snap.Technicals == nil {
		t.Fatal("expected surviving endpoints to refresh")
	}
}

func TestFetcherBeginMarksLoading(t *testing.T) {
	t.Parallel()

	f := NewFetcher(&fakeAPI{}, 30)
	f.Begin(domain.Asset{Symbol: "AAPL", Name: "Apple"})

	snap := f.Snapshot()
	if !snap.Loading {
		t.Error("expected loading flag set")
	}
	if snap.Asset.Symbol != "AAPL" {
		t.Errorf("expected selected asset recorded, got %+v", snap.Asset)
	}
}
