package core

import (
	"time"

	"main/internal/decimal"
	"main/internal/order"
)

// Trade is one settled execution, recorded in the append-only history.
type Trade struct {
	TradeID         string          `json:"trade_id"`
	ClientOrderID   string          `json:"client_order_id"`
	ExchangeOrderID string          `json:"exchange_order_id,omitempty"`
	Symbol          string          `json:"symbol"`
	Side            order.Side      `json:"side"`
	Price           decimal.Decimal `json:"price"`
	Quantity        decimal.Decimal `json:"quantity"`
	Fee             decimal.Decimal `json:"fee"`
	FeeCurrency     string          `json:"fee_currency"`
	Time            time.Time       `json:"time"`
}

// Value returns the traded notional, price times quantity.
func (t Trade) Value() (decimal.Decimal, error) {
	return t.Price.Mul(t.Quantity)
}

// Position is the per-symbol holding. Quantity goes negative for shorts.
// UnrealizedPnL is marked against the book mid price at query time.
type Position struct {
	Symbol        string          `json:"symbol"`
	Quantity      decimal.Decimal `json:"quantity"`
	AveragePrice  decimal.Decimal `json:"average_price"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
	RealizedPnL   decimal.Decimal `json:"realized_pnl"`
	LastUpdate    time.Time       `json:"last_update"`
}

// Balance is the per-currency holding.
type Balance struct {
	Currency   string          `json:"currency"`
	Total      decimal.Decimal `json:"total"`
	Available  decimal.Decimal `json:"available"`
	Locked     decimal.Decimal `json:"locked"`
	LastUpdate time.Time       `json:"last_update"`
}

// Statistics is a point-in-time summary of the engine.
type Statistics struct {
	Running        bool            `json:"running"`
	ActiveOrders   int             `json:"active_orders"`
	Positions      int             `json:"positions"`
	TotalTrades    int             `json:"total_trades"`
	RealizedPnL    decimal.Decimal `json:"realized_pnl"`
	DailyPnL       decimal.Decimal `json:"daily_pnl"`
	UnrealizedPnL  decimal.Decimal `json:"unrealized_pnl"`
	PortfolioValue decimal.Decimal `json:"portfolio_value"`
	Timestamp      time.Time       `json:"timestamp"`
}
