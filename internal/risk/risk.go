// Package risk implements the pre-trade gates: order size, resulting
// position size, and daily loss. Each gate toggles independently and any
// failing gate rejects the order.
package risk

import (
	"main/internal/decimal"
	"main/internal/order"
)

// Limits is the risk configuration, supplied at construction and replaceable
// wholesale. A zero limit disables its gate even when the toggle is on.
type Limits struct {
	MaxPositionSize    decimal.Decimal `json:"maxPositionSize"`
	MaxOrderSize       decimal.Decimal `json:"maxOrderSize"`
	MaxDailyLoss       decimal.Decimal `json:"maxDailyLoss"`
	MaxDrawdown        decimal.Decimal `json:"maxDrawdown"`
	MaxOrdersPerSecond int             `json:"maxOrdersPerSecond"`

	EnablePositionLimits bool `json:"enablePositionLimits"`
	EnableOrderLimits    bool `json:"enableOrderLimits"`
	EnableLossLimits     bool `json:"enableLossLimits"`
}

// DefaultLimits mirrors the engine's conservative defaults.
func DefaultLimits() Limits {
	return Limits{
		MaxPositionSize:      decimal.New(1000),
		MaxOrderSize:         decimal.New(100),
		MaxDailyLoss:         decimal.New(10000),
		MaxOrdersPerSecond:   100,
		EnablePositionLimits: true,
		EnableOrderLimits:    true,
		EnableLossLimits:     true,
	}
}

// Reason identifies which gate rejected an order.
type Reason uint8

const (
	ReasonNone Reason = iota
	ReasonOrderSize
	ReasonPositionSize
	ReasonDailyLoss
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonOrderSize:
		return "order size exceeds limit"
	case ReasonPositionSize:
		return "resulting position exceeds limit"
	case ReasonDailyLoss:
		return "daily loss limit reached"
	default:
		return "unknown"
	}
}

// StateView is the portfolio snapshot a risk decision evaluates against.
type StateView struct {
	Position decimal.Decimal
	DailyPnL decimal.Decimal
}

// Engine evaluates orders against the configured limits.
type Engine struct {
	limits Limits
}

// NewEngine creates an engine with the given limits.
func NewEngine(limits Limits) *Engine {
	return &Engine{limits: limits}
}

// Limits returns the current configuration.
func (e *Engine) Limits() Limits { return e.limits }

// SetLimits replaces the configuration wholesale.
func (e *Engine) SetLimits(limits Limits) { e.limits = limits }

// Evaluate runs every enabled gate and returns the first failing one, or
// ReasonNone when the order passes.
func (e *Engine) Evaluate(o *order.LimitOrder, state StateView) Reason {
	if e.limits.EnableOrderLimits && e.limits.MaxOrderSize.IsPositive() {
		if o.Quantity.GreaterThan(e.limits.MaxOrderSize) {
			return ReasonOrderSize
		}
	}

	if e.limits.EnablePositionLimits && e.limits.MaxPositionSize.IsPositive() {
		next := state.Position
		if o.IsBuy() {
			next = next.Add(o.Quantity)
		} else {
			next = next.Sub(o.Quantity)
		}
		if next.Abs().GreaterThan(e.limits.MaxPositionSize) {
			return ReasonPositionSize
		}
	}

	if e.limits.EnableLossLimits && e.limits.MaxDailyLoss.IsPositive() {
		if state.DailyPnL.LessThan(e.limits.MaxDailyLoss.Neg()) {
			return ReasonDailyLoss
		}
	}

	return ReasonNone
}
