package book

import (
	"errors"
	"sync"
	"time"

	"github.com/yanun0323/logs"

	"main/internal/clock"
	"main/internal/decimal"
)

// ErrInsufficientLiquidity reports that the book cannot absorb the requested
// quantity when sweeping levels for an impact price.
var ErrInsufficientLiquidity = errors.New("book: insufficient liquidity")

// UpdateObserver is invoked after every committed book update. A batch
// applied through ApplyUpdates produces exactly one invocation.
type UpdateObserver func(symbol string)

// LevelUpdate is one price-level change inside a batch.
type LevelUpdate struct {
	Price    decimal.Decimal
	Amount   decimal.Decimal
	UpdateID int64
}

// Book is the per-symbol order book. All operations are safe for concurrent
// use by market-data producers and strategy readers.
type Book struct {
	symbol string
	bids   *Side
	asks   *Side
	clk    *clock.Clock

	mu             sync.Mutex
	lastUpdateID   int64
	lastUpdateTime time.Time

	obsMu     sync.Mutex
	observers []UpdateObserver
}

// New creates an empty book for symbol. A nil clk uses the shared clock.
func New(symbol string, clk *clock.Clock) *Book {
	if clk == nil {
		clk = clock.Shared()
	}
	return &Book{
		symbol:         symbol,
		bids:           NewSide(OrderBids, clk),
		asks:           NewSide(OrderAsks, clk),
		clk:            clk,
		lastUpdateTime: clk.Now(),
	}
}

// Symbol returns the trading symbol this book tracks.
func (b *Book) Symbol() string { return b.symbol }

// UpdateBid applies a single bid-level update and notifies observers.
func (b *Book) UpdateBid(price, amount decimal.Decimal, updateID int64) {
	b.bids.Update(price, amount, updateID)
	b.commit(updateID)
	b.notify()
}

// UpdateAsk applies a single ask-level update and notifies observers.
func (b *Book) UpdateAsk(price, amount decimal.Decimal, updateID int64) {
	b.asks.Update(price, amount, updateID)
	b.commit(updateID)
	b.notify()
}

// ApplyUpdates applies a batch of bid and ask updates, advancing the update
// watermark once and notifying observers once for the whole batch.
func (b *Book) ApplyUpdates(bids, asks []LevelUpdate, finalUpdateID int64) {
	for _, u := range bids {
		b.bids.Update(u.Price, u.Amount, u.UpdateID)
	}
	for _, u := range asks {
		b.asks.Update(u.Price, u.Amount, u.UpdateID)
	}
	b.commit(finalUpdateID)
	b.notify()
}

func (b *Book) commit(updateID int64) {
	b.mu.Lock()
	b.lastUpdateID = updateID
	b.lastUpdateTime = b.clk.Now()
	b.mu.Unlock()
}

// LastUpdateID returns the monotonic sequence watermark.
func (b *Book) LastUpdateID() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastUpdateID
}

// LastUpdateTime returns when the book last changed.
func (b *Book) LastUpdateTime() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastUpdateTime
}

// BestBid returns the highest bid price, or zero when there are no bids.
func (b *Book) BestBid() decimal.Decimal {
	if e, ok := b.bids.Best(); ok {
		return e.Price
	}
	return decimal.Zero()
}

// BestAsk returns the lowest ask price, or zero when there are no asks.
func (b *Book) BestAsk() decimal.Decimal {
	if e, ok := b.asks.Best(); ok {
		return e.Price
	}
	return decimal.Zero()
}

// MidPrice returns (bid+ask)/2, or zero unless both sides are populated.
func (b *Book) MidPrice() decimal.Decimal {
	bid, ask := b.BestBid(), b.BestAsk()
	if bid.IsZero() || ask.IsZero() {
		return decimal.Zero()
	}
	mid, err := bid.Add(ask).Div(decimal.New(2))
	if err != nil {
		return decimal.Zero()
	}
	return mid
}

// Spread returns ask-bid, or zero unless both sides are populated.
func (b *Book) Spread() decimal.Decimal {
	bid, ask := b.BestBid(), b.BestAsk()
	if bid.IsZero() || ask.IsZero() {
		return decimal.Zero()
	}
	return ask.Sub(bid)
}

// Bids returns up to limit bid levels in priority order; limit 0 means all.
func (b *Book) Bids(limit int) []Entry { return b.bids.Levels(limit) }

// Asks returns up to limit ask levels in priority order; limit 0 means all.
func (b *Book) Asks(limit int) []Entry { return b.asks.Levels(limit) }

// ImpactPrice sweeps the opposing side from the best price outward until
// quantity is consumed and returns the volume-weighted average execution
// price. ErrInsufficientLiquidity reports a book too shallow for quantity.
func (b *Book) ImpactPrice(isBuy bool, quantity decimal.Decimal) (decimal.Decimal, error) {
	if quantity.IsZero() {
		return decimal.Zero(), nil
	}

	var levels []Entry
	if isBuy {
		levels = b.asks.Levels(0)
	} else {
		levels = b.bids.Levels(0)
	}

	remaining := quantity
	totalCost := decimal.Zero()
	for _, level := range levels {
		if remaining.IsZero() {
			break
		}
		consume := decimal.Min(level.Amount, remaining)
		cost, err := consume.Mul(level.Price)
		if err != nil {
			return decimal.Zero(), err
		}
		totalCost = totalCost.Add(cost)
		remaining = remaining.Sub(consume)
	}

	if remaining.IsPositive() {
		return decimal.Zero(), ErrInsufficientLiquidity
	}
	return totalCost.Div(quantity)
}

// VolumeAtPrice returns how much can be bought at or under price (isBuy) or
// sold at or over price (!isBuy).
func (b *Book) VolumeAtPrice(isBuy bool, price decimal.Decimal) decimal.Decimal {
	if isBuy {
		return b.asks.VolumeAtOrBetter(price)
	}
	return b.bids.VolumeAtOrBetter(price)
}

// Valid reports book integrity: empty sides are valid, and populated sides
// must not cross (best bid strictly below best ask).
func (b *Book) Valid() bool {
	bid, ask := b.BestBid(), b.BestAsk()
	if bid.IsZero() || ask.IsZero() {
		return true
	}
	return bid.LessThan(ask)
}

// RegisterObserver adds an update callback. Observers are invoked on every
// committed update; a panicking observer never interrupts the others.
func (b *Book) RegisterObserver(fn UpdateObserver) {
	if fn == nil {
		return
	}
	b.obsMu.Lock()
	b.observers = append(b.observers, fn)
	b.obsMu.Unlock()
}

func (b *Book) notify() {
	b.obsMu.Lock()
	observers := make([]UpdateObserver, len(b.observers))
	copy(observers, b.observers)
	b.obsMu.Unlock()

	for _, fn := range observers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					logs.Errorf("book observer panicked, symbol: %s, err: %+v", b.symbol, r)
				}
			}()
			fn(b.symbol)
		}()
	}
}

// Clear drops all levels and resets the update watermark.
func (b *Book) Clear() {
	b.bids.Clear()
	b.asks.Clear()
	b.mu.Lock()
	b.lastUpdateID = 0
	b.lastUpdateTime = b.clk.Now()
	b.mu.Unlock()
}
