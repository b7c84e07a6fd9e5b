package core

import (
	"main/internal/marketdata"
	"main/internal/order"
)

// Callbacks are the engine's outbound notifications. Every callback is
// delivered from the event worker, never from the caller's goroutine, so
// implementations may take their time without blocking the engine. Nil
// entries are skipped.
type Callbacks struct {
	OnOrderFilled    func(o *order.LimitOrder)
	OnOrderCancelled func(o *order.LimitOrder)
	OnOrderRejected  func(o *order.LimitOrder, reason string)
	OnTradeExecuted  func(t Trade)
	OnPositionUpdate func(p Position)
	OnBalanceUpdate  func(b Balance)
	OnTradeTick      func(tick marketdata.TradeTick)
	OnError          func(err error)
}
