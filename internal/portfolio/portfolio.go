package portfolio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"

	"marketdeck/internal/domain"
	"marketdeck/internal/store"
)

const stateKey = "demo_portfolio"

var (
	ErrInvalidQuantity      = errors.New("portfolio: quantity must be positive")
	ErrInvalidPrice         = errors.New("portfolio: price must be positive")
	ErrInsufficientFunds    = errors.New("portfolio: insufficient funds")
	ErrInsufficientHoldings = errors.New("portfolio: insufficient holdings")
)

// Side is the direction of a paper trade.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Ledger is the local paper-trading account. Every accepted trade is
// persisted before it is reported back, so a crash never loses a fill.
type Ledger struct {
	mu    sync.Mutex
	kv    store.KV
	state domain.PortfolioState
}

// NewLedger loads the persisted portfolio, starting a fresh one with the
// given cash when none exists. A corrupt persisted state is discarded rather
// than wedging the account.
func NewLedger(ctx context.Context, kv store.KV, startingCash float64) (*Ledger, error) {
	l := &Ledger{
		kv: kv,
		state: domain.PortfolioState{
			Cash:     startingCash,
			Holdings: make(map[string]float64),
		},
	}

	data, err := kv.Get(ctx, stateKey)
	if errors.Is(err, store.ErrNotFound) {
		return l, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load portfolio: %w", err)
	}

	var saved domain.PortfolioState
	if err := json.Unmarshal(data, &saved); err != nil {
		log.Printf("Warning: discarding corrupt portfolio state: %v", err)
		return l, nil
	}
	if saved.Holdings == nil {
		saved.Holdings = make(map[string]float64)
	}
	l.state = saved
	return l, nil
}

// Trade executes a paper trade against the ledger. Rejected trades leave the
// state untouched; accepted trades are persisted before returning.
func (l *Ledger) Trade(ctx context.Context, side Side, symbol string, qty, price float64) (domain.PortfolioState, error) {
	if qty <= 0 {
		return l.Snapshot(), ErrInvalidQuantity
	}
	if price <= 0 {
		return l.Snapshot(), ErrInvalidPrice
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	prev := cloneState(l.state)
	cost := qty * price

	switch side {
	case SideBuy:
		if cost > l.state.Cash {
			return cloneState(l.state), ErrInsufficientFunds
		}
		l.state.Cash -= cost
		l.state.Holdings[symbol] += qty
	case SideSell:
		if l.state.Holdings[symbol] < qty {
			return cloneState(l.state), ErrInsufficientHoldings
		}
		l.state.Holdings[symbol] -= qty
		if l.state.Holdings[symbol] == 0 {
			delete(l.state.Holdings, symbol)
		}
		l.state.Cash += cost
	default:
		return cloneState(l.state), fmt.Errorf("portfolio: unknown trade side %q", side)
	}

	if err := l.persist(ctx); err != nil {
		l.state = prev
		return cloneState(l.state), fmt.Errorf("persist portfolio: %w", err)
	}
	return cloneState(l.state), nil
}

// Snapshot returns a copy of the current state.
func (l *Ledger) Snapshot() domain.PortfolioState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return cloneState(l.state)
}

// Position returns the held quantity for a symbol, zero when flat.
func (l *Ledger) Position(symbol string) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state.Holdings[symbol]
}

// MarketValue prices the account: cash plus each holding at the supplied
// price. Holdings without a price contribute nothing.
func (l *Ledger) MarketValue(prices map[string]float64) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	total := l.state.Cash
	for symbol, qty := range l.state.Holdings {
		total += qty * prices[symbol]
	}
	return total
}

// persist requires l.mu held.
func (l *Ledger) persist(ctx context.Context) error {
	data, err := json.Marshal(l.state)
	if err != nil {
		return err
	}
	return l.kv.Set(ctx, stateKey, data)
}

func cloneState(s domain.PortfolioState) domain.PortfolioState {
	holdings := make(map[string]float64, len(s.Holdings))
	for k, v := range s.Holdings {
		holdings[k] = v
	}
	return domain.PortfolioState{Cash: s.Cash, Holdings: holdings}
}
