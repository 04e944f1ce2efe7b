package watchlist

import (
	"context"
	"fmt"
	"sync"

	"marketdeck/internal/domain"
)

// Remote is the server-side watchlist surface of the API client.
type Remote interface {
	FetchWatchlist(ctx context.Context) ([]string, error)
	AddWatchlistSymbol(ctx context.Context, symbol string) error
	RemoveWatchlistSymbol(ctx context.Context, symbol string) error
}

// Service mirrors the server-side watchlist locally. Mutations apply to the
// local copy first so the UI updates immediately, then sync to the server;
// a failed sync rolls the local copy back.
type Service struct {
	mu     sync.Mutex
	remote Remote
	items  []domain.Asset
}

func NewService(remote Remote) *Service {
	return &Service{remote: remote}
}

// Load replaces the local copy with the server's watchlist. The feed carries
// only symbols, so the symbol doubles as the display name until richer data
// arrives from elsewhere.
func (s *Service) Load(ctx context.Context) error {
	symbols, err := s.remote.FetchWatchlist(ctx)
	if err != nil {
		return fmt.Errorf("load watchlist: %w", err)
	}

	items := make([]domain.Asset, 0, len(symbols))
	for _, sym := range symbols {
		items = append(items, domain.Asset{Symbol: sym, Name: sym, Type: domain.AssetStock})
	}

	s.mu.Lock()
	s.items = items
	s.mu.Unlock()
	return nil
}

// Items returns a copy of the current watchlist in insertion order.
func (s *Service) Items() []domain.Asset {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Asset(nil), s.items...)
}

func (s *Service) Contains(symbol string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indexOf(symbol) >= 0
}

// Add appends the asset locally, then syncs. Adding a symbol already on the
// list is a no-op. On sync failure the asset is removed again.
func (s *Service) Add(ctx context.Context, asset domain.Asset) error {
	s.mu.Lock()
	if s.indexOf(asset.Symbol) >= 0 {
		s.mu.Unlock()
		return nil
	}
	s.items = append(s.items, asset)
	s.mu.Unlock()

	return s.commit(
		func() { s.removeLocal(asset.Symbol) },
		func() error { return s.remote.AddWatchlistSymbol(ctx, asset.Symbol) },
		fmt.Sprintf("add %s to watchlist", asset.Symbol),
	)
}

// Remove deletes the symbol locally, then syncs. Removing an absent symbol is
// a no-op. On sync failure the row is restored at its previous position.
func (s *Service) Remove(ctx context.Context, symbol string) error {
	s.mu.Lock()
	idx := s.indexOf(symbol)
	if idx < 0 {
		s.mu.Unlock()
		return nil
	}
	removed := s.items[idx]
	s.items = append(s.items[:idx], s.items[idx+1:]...)
	s.mu.Unlock()

	return s.commit(
		func() { s.insertLocal(idx, removed) },
		func() error { return s.remote.RemoveWatchlistSymbol(ctx, symbol) },
		fmt.Sprintf("remove %s from watchlist", symbol),
	)
}

// Toggle adds the asset when absent and removes it when present, reporting
// whether it ended up on the list.
func (s *Service) Toggle(ctx context.Context, asset domain.Asset) (bool, error) {
	if s.Contains(asset.Symbol) {
		return false, s.Remove(ctx, asset.Symbol)
	}
	return true, s.Add(ctx, asset)
}

// Clear drops the local copy. Used on logout; the server copy is untouched.
func (s *Service) Clear() {
	s.mu.Lock()
	s.items = nil
	s.mu.Unlock()
}

// commit runs the remote sync for an already-applied local mutation and rolls
// it back on failure.
func (s *Service) commit(revert func(), sync func() error, op string) error {
	if err := sync(); err != nil {
		revert()
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// indexOf requires s.mu held.
func (s *Service) indexOf(symbol string) int {
	for i, a := range s.items {
		if a.Symbol == symbol {
			return i
		}
	}
	return -1
}

func (s *Service) removeLocal(symbol string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx := s.indexOf(symbol); idx >= 0 {
		s.items = append(s.items[:idx], s.items[idx+1:]...)
	}
}

func (s *Service) insertLocal(idx int, asset domain.Asset) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexOf(asset.Symbol) >= 0 {
		return
	}
	if idx > len(s.items) {
		idx = len(s.items)
	}
	s.items = append(s.items[:idx], append([]domain.Asset{asset}, s.items[idx:]...)...)
}
