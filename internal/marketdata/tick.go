// Package marketdata defines the tick types crossing the market-data
// boundary and a feed capability interface with a synthetic implementation
// for backtesting and demos.
package marketdata

import (
	"time"

	"main/internal/decimal"
	"main/internal/order"
)

// Tick is one book-level update from a feed. IsBid selects the side the
// level belongs to; a zero quantity removes the level.
type Tick struct {
	Symbol   string
	Price    decimal.Decimal
	Quantity decimal.Decimal
	Time     time.Time
	IsBid    bool
}

// TradeTick is one public trade print from a feed.
type TradeTick struct {
	Symbol   string
	Price    decimal.Decimal
	Quantity decimal.Decimal
	Time     time.Time
	Side     order.Side
}

// TickHandler consumes book ticks.
type TickHandler func(Tick)

// TradeHandler consumes trade prints.
type TradeHandler func(TradeTick)

// Feed is the capability a market-data source offers. One implementation
// exists per venue; Simulator is the in-process one.
type Feed interface {
	Connect() error
	Disconnect() error
	SubscribeOrderBook(symbol string, handler TickHandler) error
	SubscribeTrades(symbol string, handler TradeHandler) error
	Unsubscribe(symbol string) error
}
