// Package core implements the trading engine orchestrator: order
// submission through risk gates, the active-order index, position and
// balance settlement, trade history, and asynchronous callback dispatch.
//
// All engine state lives behind one reader-writer lock. The event queue
// has its own locking and is never touched while the state lock is held,
// so enqueuing a notification cannot deadlock against a mutation.
package core

import (
	"errors"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/yanun0323/logs"

	"main/internal/book"
	"main/internal/bus"
	"main/internal/clock"
	"main/internal/decimal"
	"main/internal/marketdata"
	"main/internal/order"
	"main/internal/risk"
)

var (
	ErrNotRunning     = errors.New("core: engine is not running")
	ErrInvalidOrder   = errors.New("core: order failed validation")
	ErrDuplicateOrder = errors.New("core: client order id already active")
	ErrUnknownOrder   = errors.New("core: unknown client order id")
	ErrRiskRejected   = errors.New("core: order rejected by risk limits")
)

// Config carries the construction-time inputs. A nil Clock falls back to
// the process-shared clock; a nil Risk uses the default limits.
type Config struct {
	Clock *clock.Clock
	Risk  *risk.Limits
}

// Core is the trading engine. Safe for concurrent use.
type Core struct {
	clk   *clock.Clock
	books *book.Manager
	risk  *risk.Engine

	mu        sync.RWMutex
	orders    map[string]*order.LimitOrder
	positions map[string]Position
	balances  map[string]Balance
	trades    []Trade
	dailyPnL  decimal.Decimal
	totalPnL  decimal.Decimal

	running   atomic.Bool
	updateSeq atomic.Int64

	qmu   sync.RWMutex
	queue *bus.Queue

	cbMu      sync.RWMutex
	callbacks Callbacks
}

// New builds a stopped engine from the given configuration.
func New(cfg Config) *Core {
	clk := cfg.Clock
	if clk == nil {
		clk = clock.Shared()
	}
	limits := risk.DefaultLimits()
	if cfg.Risk != nil {
		limits = *cfg.Risk
	}
	return &Core{
		clk:       clk,
		books:     book.NewManager(clk),
		risk:      risk.NewEngine(limits),
		orders:    make(map[string]*order.LimitOrder),
		positions: make(map[string]Position),
		balances:  make(map[string]Balance),
	}
}

// Clock returns the engine's clock.
func (c *Core) Clock() *clock.Clock { return c.clk }

// Books returns the order book manager.
func (c *Core) Books() *book.Manager { return c.books }

// Running reports whether the engine is accepting orders.
func (c *Core) Running() bool { return c.running.Load() }

// SetCallbacks replaces the callback set. Takes effect for events
// dispatched after the call.
func (c *Core) SetCallbacks(cb Callbacks) {
	c.cbMu.Lock()
	c.callbacks = cb
	c.cbMu.Unlock()
}

// RiskLimits returns the current risk configuration.
func (c *Core) RiskLimits() risk.Limits {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.risk.Limits()
}

// SetRiskLimits replaces the risk configuration.
func (c *Core) SetRiskLimits(limits risk.Limits) {
	c.mu.Lock()
	c.risk.SetLimits(limits)
	c.mu.Unlock()
}

// Start brings the engine up: event worker first, then the clock. Calling
// Start on a running engine is a no-op.
func (c *Core) Start() {
	if !c.running.CompareAndSwap(false, true) {
		return
	}

	c.qmu.Lock()
	c.queue = bus.NewQueue()
	c.qmu.Unlock()

	c.clk.Start()
	logs.Info("trading core started")
}

// Stop drains the event queue and stops the clock. Calling Stop on a
// stopped engine is a no-op.
func (c *Core) Stop() {
	if !c.running.CompareAndSwap(true, false) {
		return
	}

	c.qmu.Lock()
	q := c.queue
	c.queue = nil
	c.qmu.Unlock()
	if q != nil {
		q.Close()
	}

	c.clk.Stop()
	logs.Info("trading core stopped")
}

// emit schedules fn on the event worker with the callback set current at
// dispatch time. Dropped when the engine is stopped. Never call this with
// the state lock held.
func (c *Core) emit(fn func(cb Callbacks)) {
	c.qmu.RLock()
	q := c.queue
	c.qmu.RUnlock()
	if q == nil {
		return
	}
	_ = q.Publish(func() {
		c.cbMu.RLock()
		cb := c.callbacks
		c.cbMu.RUnlock()
		fn(cb)
	})
}

// SubmitOrder validates and risk-checks the order, then stores an OPEN
// copy in the active index. The caller's order is not mutated. A risk
// rejection returns ErrRiskRejected and notifies OnOrderRejected; the
// active index is untouched.
func (c *Core) SubmitOrder(o *order.LimitOrder) error {
	if o == nil || !o.Valid() {
		return ErrInvalidOrder
	}
	if !c.running.Load() {
		return ErrNotRunning
	}

	accepted := o.Clone()

	c.mu.Lock()
	if _, exists := c.orders[accepted.ClientOrderID]; exists {
		c.mu.Unlock()
		return ErrDuplicateOrder
	}
	view := risk.StateView{
		Position: c.positions[accepted.TradingPair].Quantity,
		DailyPnL: c.dailyPnL,
	}
	reason := c.risk.Evaluate(accepted, view)
	if reason != risk.ReasonNone {
		c.mu.Unlock()
		accepted.Reject(reason.String())
		c.emit(func(cb Callbacks) {
			if cb.OnOrderRejected != nil {
				cb.OnOrderRejected(accepted, reason.String())
			}
		})
		return ErrRiskRejected
	}
	if err := accepted.SetStatus(order.StatusOpen); err != nil {
		c.mu.Unlock()
		return err
	}
	c.orders[accepted.ClientOrderID] = accepted
	c.mu.Unlock()
	return nil
}

// CancelOrder cancels an active order and notifies OnOrderCancelled.
// Returns false when the id is not active; unknown ids are benign.
func (c *Core) CancelOrder(clientOrderID string) bool {
	c.mu.Lock()
	o, ok := c.orders[clientOrderID]
	if !ok {
		c.mu.Unlock()
		return false
	}
	o.Cancel()
	delete(c.orders, clientOrderID)
	snapshot := o.Clone()
	c.mu.Unlock()

	c.emit(func(cb Callbacks) {
		if cb.OnOrderCancelled != nil {
			cb.OnOrderCancelled(snapshot)
		}
	})
	return true
}

// ModifyOrder updates the price of an active order in place. Quantity
// modification is a cancel-and-replace at the exchange and is not handled
// here. Returns false for unknown ids or a non-positive price.
func (c *Core) ModifyOrder(clientOrderID string, newPrice decimal.Decimal) bool {
	if !newPrice.IsPositive() {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	o, ok := c.orders[clientOrderID]
	if !ok {
		return false
	}
	o.SetPrice(newPrice)
	return true
}

// ApplyExecution feeds a fill from the execution boundary into an active
// order: the execution is appended, a Trade is recorded, position and
// balances settle, and the relevant callbacks are queued. The order
// leaves the active index once terminal.
func (c *Core) ApplyExecution(clientOrderID string, quantity, price, fee decimal.Decimal, feeCurrency string) error {
	if !c.running.Load() {
		return ErrNotRunning
	}

	c.mu.Lock()
	o, ok := c.orders[clientOrderID]
	if !ok {
		c.mu.Unlock()
		return ErrUnknownOrder
	}
	if err := o.AddExecution(uuid.NewString(), quantity, price, fee, feeCurrency); err != nil {
		c.mu.Unlock()
		return err
	}

	trade := Trade{
		TradeID:         uuid.NewString(),
		ClientOrderID:   o.ClientOrderID,
		ExchangeOrderID: o.ExchangeOrderID,
		Symbol:          o.TradingPair,
		Side:            o.Side,
		Price:           price,
		Quantity:        quantity,
		Fee:             fee,
		FeeCurrency:     feeCurrency,
		Time:            c.clk.Now(),
	}
	c.trades = append(c.trades, trade)

	pos, posErr := c.settlePositionLocked(trade)
	updated, balErr := c.settleBalancesLocked(trade)
	settleErr := errors.Join(posErr, balErr)

	filled := o.IsFilled()
	snapshot := o.Clone()
	if o.Status.Terminal() {
		delete(c.orders, clientOrderID)
	}
	c.mu.Unlock()

	if settleErr != nil {
		c.emit(func(cb Callbacks) {
			if cb.OnError != nil {
				cb.OnError(settleErr)
			}
		})
	}
	c.emit(func(cb Callbacks) {
		if cb.OnTradeExecuted != nil {
			cb.OnTradeExecuted(trade)
		}
		if cb.OnPositionUpdate != nil {
			cb.OnPositionUpdate(pos)
		}
		if cb.OnBalanceUpdate != nil {
			for _, b := range updated {
				cb.OnBalanceUpdate(b)
			}
		}
	})
	if filled {
		c.emit(func(cb Callbacks) {
			if cb.OnOrderFilled != nil {
				cb.OnOrderFilled(snapshot)
			}
		})
	}
	return nil
}

// UpdatePosition settles a trade against the position map directly,
// bypassing the active-order index. Intended for backtest drivers that
// replay a trade log.
func (c *Core) UpdatePosition(trade Trade) {
	c.mu.Lock()
	pos, err := c.settlePositionLocked(trade)
	c.mu.Unlock()

	if err != nil {
		c.emit(func(cb Callbacks) {
			if cb.OnError != nil {
				cb.OnError(err)
			}
		})
	}
	c.emit(func(cb Callbacks) {
		if cb.OnPositionUpdate != nil {
			cb.OnPositionUpdate(pos)
		}
	})
}

// settlePositionLocked applies one trade to its symbol's position. Buys
// recompute the volume-weighted average entry price; sells realize
// quantity*(price-average) into the P&L accumulators. Selling more than
// the current holding flips the position short; there is no oversell
// guard. On arithmetic overflow the quantity still moves but the average
// price is left untouched, and the error is returned for reporting.
func (c *Core) settlePositionLocked(trade Trade) (Position, error) {
	pos := c.positions[trade.Symbol]
	pos.Symbol = trade.Symbol

	var settleErr error
	if trade.Side == order.SideBuy {
		newQty := pos.Quantity.Add(trade.Quantity)
		avg, err := weightedAverage(pos.Quantity, pos.AveragePrice, trade.Quantity, trade.Price, newQty)
		if err != nil {
			settleErr = err
		} else {
			pos.AveragePrice = avg
		}
		pos.Quantity = newQty
	} else {
		diff := trade.Price.Sub(pos.AveragePrice)
		realized, err := trade.Quantity.Mul(diff)
		if err != nil {
			settleErr = err
		} else {
			pos.RealizedPnL = pos.RealizedPnL.Add(realized)
			c.totalPnL = c.totalPnL.Add(realized)
			c.dailyPnL = c.dailyPnL.Add(realized)
		}
		pos.Quantity = pos.Quantity.Sub(trade.Quantity)
	}

	pos.LastUpdate = c.clk.Now()
	c.positions[trade.Symbol] = pos
	return pos, settleErr
}

func weightedAverage(oldQty, oldAvg, addQty, addPrice, newQty decimal.Decimal) (decimal.Decimal, error) {
	if newQty.IsZero() {
		return decimal.Zero(), nil
	}
	oldNotional, err := oldQty.Mul(oldAvg)
	if err != nil {
		return decimal.Zero(), err
	}
	addNotional, err := addQty.Mul(addPrice)
	if err != nil {
		return decimal.Zero(), err
	}
	return oldNotional.Add(addNotional).Div(newQty)
}

// settleBalancesLocked moves the traded base and quote amounts plus the
// fee through the balance map and returns the touched balances. An
// unrepresentable notional moves the base and fee but not the quote, and
// the error is returned for reporting.
func (c *Core) settleBalancesLocked(trade Trade) ([]Balance, error) {
	base, quote := order.SplitPair(trade.Symbol)
	value, valueErr := trade.Value()

	var updated []Balance
	if trade.Side == order.SideBuy {
		updated = append(updated, c.applyBalanceLocked(base, trade.Quantity))
		if valueErr == nil {
			updated = append(updated, c.applyBalanceLocked(quote, value.Neg()))
		}
	} else {
		updated = append(updated, c.applyBalanceLocked(base, trade.Quantity.Neg()))
		if valueErr == nil {
			updated = append(updated, c.applyBalanceLocked(quote, value))
		}
	}
	if trade.Fee.IsPositive() && trade.FeeCurrency != "" {
		updated = append(updated, c.applyBalanceLocked(trade.FeeCurrency, trade.Fee.Neg()))
	}
	return updated, valueErr
}

func (c *Core) applyBalanceLocked(currency string, delta decimal.Decimal) Balance {
	bal := c.balances[currency]
	bal.Currency = currency
	bal.Total = bal.Total.Add(delta)
	bal.Available = bal.Available.Add(delta)
	bal.Locked = bal.Total.Sub(bal.Available)
	bal.LastUpdate = c.clk.Now()
	c.balances[currency] = bal
	return bal
}

// UpdateBalance credits (or debits, with a negative delta) a currency.
// Both total and available move together; there is no separate lock-up
// reservation path in this engine.
func (c *Core) UpdateBalance(currency string, delta decimal.Decimal) {
	c.mu.Lock()
	bal := c.applyBalanceLocked(currency, delta)
	c.mu.Unlock()

	c.emit(func(cb Callbacks) {
		if cb.OnBalanceUpdate != nil {
			cb.OnBalanceUpdate(bal)
		}
	})
}

// GetOrder returns a copy of an active order.
func (c *Core) GetOrder(clientOrderID string) (*order.LimitOrder, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	o, ok := c.orders[clientOrderID]
	if !ok {
		return nil, false
	}
	return o.Clone(), true
}

// GetActiveOrders returns copies of every active order, ordered by
// client order id.
func (c *Core) GetActiveOrders() []*order.LimitOrder {
	c.mu.RLock()
	out := make([]*order.LimitOrder, 0, len(c.orders))
	for _, o := range c.orders {
		out = append(out, o.Clone())
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ClientOrderID < out[j].ClientOrderID })
	return out
}

// GetActiveOrdersBySymbol returns copies of the active orders for one
// trading pair, ordered by client order id.
func (c *Core) GetActiveOrdersBySymbol(symbol string) []*order.LimitOrder {
	c.mu.RLock()
	var out []*order.LimitOrder
	for _, o := range c.orders {
		if o.TradingPair == symbol {
			out = append(out, o.Clone())
		}
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ClientOrderID < out[j].ClientOrderID })
	return out
}

// GetPosition returns the position for a symbol with unrealized P&L
// marked against the current book mid price.
func (c *Core) GetPosition(symbol string) (Position, bool) {
	c.mu.RLock()
	pos, ok := c.positions[symbol]
	c.mu.RUnlock()
	if !ok {
		return Position{}, false
	}
	pos.UnrealizedPnL = c.markToMid(pos)
	return pos, true
}

// GetAllPositions returns every position, ordered by symbol, with
// unrealized P&L marked against current mid prices.
func (c *Core) GetAllPositions() []Position {
	c.mu.RLock()
	out := make([]Position, 0, len(c.positions))
	for _, pos := range c.positions {
		out = append(out, pos)
	}
	c.mu.RUnlock()

	for i := range out {
		out[i].UnrealizedPnL = c.markToMid(out[i])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// markToMid computes quantity*(mid-average) for a position. Zero when the
// book has no two-sided market or the position is flat.
func (c *Core) markToMid(pos Position) decimal.Decimal {
	if pos.Quantity.IsZero() || !c.books.Has(pos.Symbol) {
		return decimal.Zero()
	}
	mid := c.books.Get(pos.Symbol).MidPrice()
	if mid.IsZero() {
		return decimal.Zero()
	}
	unrealized, err := pos.Quantity.Mul(mid.Sub(pos.AveragePrice))
	if err != nil {
		return decimal.Zero()
	}
	return unrealized
}

// GetBalance returns the balance for a currency.
func (c *Core) GetBalance(currency string) (Balance, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	bal, ok := c.balances[currency]
	return bal, ok
}

// GetAllBalances returns every balance, ordered by currency.
func (c *Core) GetAllBalances() []Balance {
	c.mu.RLock()
	out := make([]Balance, 0, len(c.balances))
	for _, bal := range c.balances {
		out = append(out, bal)
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Currency < out[j].Currency })
	return out
}

// GetTradeHistory returns the most recent trades, oldest first. A limit
// of zero or less returns everything.
func (c *Core) GetTradeHistory(limit int) []Trade {
	c.mu.RLock()
	defer c.mu.RUnlock()
	trades := c.trades
	if limit > 0 && len(trades) > limit {
		trades = trades[len(trades)-limit:]
	}
	out := make([]Trade, len(trades))
	copy(out, trades)
	return out
}

// GetTradeHistoryBySymbol returns the most recent trades for one symbol,
// oldest first.
func (c *Core) GetTradeHistoryBySymbol(symbol string, limit int) []Trade {
	c.mu.RLock()
	var out []Trade
	for _, t := range c.trades {
		if t.Symbol == symbol {
			out = append(out, t)
		}
	}
	c.mu.RUnlock()

	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

// GetRealizedPnL returns the total realized P&L since construction or the
// last Reset.
func (c *Core) GetRealizedPnL() decimal.Decimal {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.totalPnL
}

// GetDailyPnL returns the realized P&L since the last daily rollover.
func (c *Core) GetDailyPnL() decimal.Decimal {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dailyPnL
}

// ResetDailyPnL zeroes the daily accumulator, for the day-boundary
// rollover. Total realized P&L is unaffected.
func (c *Core) ResetDailyPnL() {
	c.mu.Lock()
	c.dailyPnL = decimal.Zero()
	c.mu.Unlock()
}

// GetUnrealizedPnL sums unrealized P&L across all positions at current
// mid prices.
func (c *Core) GetUnrealizedPnL() decimal.Decimal {
	total := decimal.Zero()
	for _, pos := range c.GetAllPositions() {
		total = total.Add(pos.UnrealizedPnL)
	}
	return total
}

// PortfolioValue sums balance totals and the market value of open
// positions. Currency conversion is out of scope; amounts are summed as
// reported.
func (c *Core) PortfolioValue() decimal.Decimal {
	c.mu.RLock()
	total := decimal.Zero()
	for _, bal := range c.balances {
		total = total.Add(bal.Total)
	}
	positions := make([]Position, 0, len(c.positions))
	for _, pos := range c.positions {
		positions = append(positions, pos)
	}
	c.mu.RUnlock()

	for _, pos := range positions {
		if pos.Quantity.IsZero() || !c.books.Has(pos.Symbol) {
			continue
		}
		mid := c.books.Get(pos.Symbol).MidPrice()
		if mid.IsZero() {
			continue
		}
		if value, err := pos.Quantity.Mul(mid); err == nil {
			total = total.Add(value)
		}
	}
	return total
}

// Statistics returns a point-in-time engine summary.
func (c *Core) Statistics() Statistics {
	c.mu.RLock()
	stats := Statistics{
		Running:      c.running.Load(),
		ActiveOrders: len(c.orders),
		Positions:    len(c.positions),
		TotalTrades:  len(c.trades),
		RealizedPnL:  c.totalPnL,
		DailyPnL:     c.dailyPnL,
		Timestamp:    c.clk.Now(),
	}
	c.mu.RUnlock()

	stats.UnrealizedPnL = c.GetUnrealizedPnL()
	stats.PortfolioValue = c.PortfolioValue()
	return stats
}

// SubscribeMarketData registers a symbol for tick routing, creating its
// order book.
func (c *Core) SubscribeMarketData(symbol string) {
	c.books.Get(symbol)
	logs.Infof("subscribed market data, symbol: %s", symbol)
}

// UnsubscribeMarketData drops a symbol's book; subsequent ticks for it
// are ignored.
func (c *Core) UnsubscribeMarketData(symbol string) {
	c.books.Remove(symbol)
	logs.Infof("unsubscribed market data, symbol: %s", symbol)
}

// HandleTick routes a book tick into the symbol's order book. Ticks for
// unsubscribed symbols are dropped.
func (c *Core) HandleTick(tick marketdata.Tick) {
	if !c.books.Has(tick.Symbol) {
		return
	}
	id := c.updateSeq.Add(1)
	b := c.books.Get(tick.Symbol)
	if tick.IsBid {
		b.UpdateBid(tick.Price, tick.Quantity, id)
	} else {
		b.UpdateAsk(tick.Price, tick.Quantity, id)
	}
}

// HandleTradeTick forwards a public trade print to the strategy callback.
func (c *Core) HandleTradeTick(tick marketdata.TradeTick) {
	c.emit(func(cb Callbacks) {
		if cb.OnTradeTick != nil {
			cb.OnTradeTick(tick)
		}
	})
}

// Reset clears every piece of mutable state: orders, positions, balances,
// trade history, P&L accumulators, and order books. For backtest and test
// isolation only.
func (c *Core) Reset() {
	c.mu.Lock()
	c.orders = make(map[string]*order.LimitOrder)
	c.positions = make(map[string]Position)
	c.balances = make(map[string]Balance)
	c.trades = nil
	c.dailyPnL = decimal.Zero()
	c.totalPnL = decimal.Zero()
	c.mu.Unlock()

	c.books.ClearAll()
}
