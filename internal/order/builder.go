package order

import (
	"errors"
	"time"

	"main/internal/clock"
	"main/internal/decimal"
)

var (
	ErrMissingID       = errors.New("order: client order id is required")
	ErrMissingPair     = errors.New("order: trading pair is required")
	ErrMissingSide     = errors.New("order: side and quantity are required")
	ErrInvalidQuantity = errors.New("order: quantity must be greater than zero")
	ErrMissingPrice    = errors.New("order: price is required for limit orders")
)

// Builder constructs orders fluently. Build fails with an explicit error
// when a required field is missing; nothing is silently defaulted.
type Builder struct {
	id       string
	pair     string
	side     Side
	sideSet  bool
	typ      Type
	price    decimal.Decimal
	quantity decimal.Decimal
	expiry   time.Time
	clk      *clock.Clock
}

// NewBuilder starts an empty limit-order builder.
func NewBuilder() *Builder {
	return &Builder{typ: TypeLimit}
}

// ID sets the client order id.
func (b *Builder) ID(clientOrderID string) *Builder {
	b.id = clientOrderID
	return b
}

// Pair sets the trading pair, e.g. "BTC-USDT".
func (b *Builder) Pair(tradingPair string) *Builder {
	b.pair = tradingPair
	return b
}

// Buy sets the side to BUY with the given quantity.
func (b *Builder) Buy(quantity decimal.Decimal) *Builder {
	b.side = SideBuy
	b.sideSet = true
	b.quantity = quantity
	return b
}

// Sell sets the side to SELL with the given quantity.
func (b *Builder) Sell(quantity decimal.Decimal) *Builder {
	b.side = SideSell
	b.sideSet = true
	b.quantity = quantity
	return b
}

// AtPrice sets the limit price and implies a LIMIT order.
func (b *Builder) AtPrice(price decimal.Decimal) *Builder {
	b.price = price
	b.typ = TypeLimit
	return b
}

// Market switches the order type to MARKET.
func (b *Builder) Market() *Builder {
	b.typ = TypeMarket
	return b
}

// Limit switches the order type to LIMIT.
func (b *Builder) Limit() *Builder {
	b.typ = TypeLimit
	return b
}

// ExpireAt sets an optional expiry time.
func (b *Builder) ExpireAt(t time.Time) *Builder {
	b.expiry = t
	return b
}

// WithClock injects the clock used for timestamps; tests pass a backtest
// clock here.
func (b *Builder) WithClock(clk *clock.Clock) *Builder {
	b.clk = clk
	return b
}

// Build validates the collected fields and returns the pending order.
func (b *Builder) Build() (*LimitOrder, error) {
	if b.id == "" {
		return nil, ErrMissingID
	}
	if b.pair == "" {
		return nil, ErrMissingPair
	}
	if !b.sideSet {
		return nil, ErrMissingSide
	}
	if !b.quantity.IsPositive() {
		return nil, ErrInvalidQuantity
	}
	if b.typ == TypeLimit && !b.price.IsPositive() {
		return nil, ErrMissingPrice
	}

	clk := b.clk
	if clk == nil {
		clk = clock.Shared()
	}
	o := newOrder(b.id, b.pair, b.side, b.typ, b.price, b.quantity, clk)
	o.ExpiryTime = b.expiry
	return o, nil
}
