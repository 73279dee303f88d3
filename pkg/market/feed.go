package market

import (
	"context"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/zeromicro/go-zero/core/logx"
)

// PriceFeed adapts a market.Provider to the two price-reading contracts
// the trading engine and the scheduler consume: an in-memory read-through
// cache (tradingengine.PriceSource) kept current by a pull (scheduler's
// price-refresh tick calling RefreshPrices).
//
// The provider's own Snapshot already caches per-symbol for a short TTL
// (see exchanges/hyperliquid/provider.go); PriceFeed adds the layer above
// it that the rest of the engine depends on — a last-known price per
// symbol that is always available synchronously, without a network call
// on the hot path of order validation.
type PriceFeed struct {
	provider Provider

	mu         sync.RWMutex
	prices     map[string]decimal.Decimal
	indicators map[string]IndicatorInfo
}

// NewPriceFeed wraps provider behind the PriceSource/PriceRefresher shape.
func NewPriceFeed(provider Provider) *PriceFeed {
	return &PriceFeed{
		provider:   provider,
		prices:     make(map[string]decimal.Decimal),
		indicators: make(map[string]IndicatorInfo),
	}
}

// LatestPrice implements tradingengine.PriceSource: a synchronous,
// no-network read of the most recently refreshed mark for symbol.
func (f *PriceFeed) LatestPrice(symbol string) (decimal.Decimal, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	p, ok := f.prices[strings.ToUpper(symbol)]
	return p, ok
}

// Indicators implements orchestrator.IndicatorSource: the technical
// indicators computed on the same snapshot RefreshPrices last pulled, for
// rendering as read-only prompt context (never consulted by validation or
// execution).
func (f *PriceFeed) Indicators(symbol string) (IndicatorInfo, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	info, ok := f.indicators[strings.ToUpper(symbol)]
	return info, ok
}

// RefreshPrices implements scheduler.PriceRefresher: pulls a fresh
// snapshot per symbol from the underlying provider and updates the cache.
// A symbol whose snapshot fails to fetch keeps its last known price and is
// logged, rather than failing the whole tick.
func (f *PriceFeed) RefreshPrices(ctx context.Context, symbols []string) (map[string]decimal.Decimal, error) {
	updated := make(map[string]decimal.Decimal, len(symbols))
	for _, symbol := range symbols {
		snap, err := f.provider.Snapshot(ctx, symbol)
		if err != nil {
			logx.WithContext(ctx).Errorf("market: price refresh symbol=%s err=%v", symbol, err)
			continue
		}
		price := decimal.NewFromFloat(snap.Price.Last)
		key := strings.ToUpper(symbol)
		f.mu.Lock()
		f.prices[key] = price
		f.indicators[key] = snap.Indicators
		f.mu.Unlock()
		updated[key] = price
	}
	return updated, nil
}
