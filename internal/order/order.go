// Package order implements the limit-order entity: lifecycle state machine,
// fill and execution tracking, validation, and the JSON export contract.
package order

import (
	"errors"
	"strings"
	"time"

	"main/internal/clock"
	"main/internal/decimal"
)

var (
	ErrInvalidTransition = errors.New("order: invalid state transition")
	ErrInvalidFill       = errors.New("order: invalid fill quantity")
)

// executionEpsilon bounds the allowed drift between the execution sum and
// the cumulative filled quantity.
var executionEpsilon = decimal.MustParse("0.00000001")

// defaultQuoteCurrency is assumed when a pair has no BASE-QUOTE separator.
const defaultQuoteCurrency = "USDT"

// ExecutionDetail is one fill against the order. Immutable once appended.
type ExecutionDetail struct {
	ExecutionID string
	Quantity    decimal.Decimal
	Price       decimal.Decimal
	FeeAmount   decimal.Decimal
	FeeCurrency string
	Time        time.Time
}

// Value returns quantity * price for this execution.
func (e ExecutionDetail) Value() (decimal.Decimal, error) {
	return e.Quantity.Mul(e.Price)
}

// LimitOrder is a single order identified by its client order id. It is not
// internally synchronized; the owning component guards access.
type LimitOrder struct {
	ClientOrderID   string
	TradingPair     string
	Side            Side
	Type            Type
	BaseCurrency    string
	QuoteCurrency   string
	Price           decimal.Decimal
	Quantity        decimal.Decimal
	FilledQuantity  decimal.Decimal
	Status          Status
	CreationTime    time.Time
	LastUpdateTime  time.Time
	ExchangeOrderID string
	RejectionReason string
	ExpiryTime      time.Time
	Executions      []ExecutionDetail

	clk *clock.Clock
}

// New creates a pending order, deriving base/quote currencies from the pair.
// Timestamps come from the shared clock; the builder can inject another.
func New(clientOrderID, pair string, side Side, price, quantity decimal.Decimal) *LimitOrder {
	return newOrder(clientOrderID, pair, side, TypeLimit, price, quantity, clock.Shared())
}

func newOrder(clientOrderID, pair string, side Side, typ Type, price, quantity decimal.Decimal, clk *clock.Clock) *LimitOrder {
	base, quote := SplitPair(pair)
	now := clk.Now()
	return &LimitOrder{
		ClientOrderID:  clientOrderID,
		TradingPair:    pair,
		Side:           side,
		Type:           typ,
		BaseCurrency:   base,
		QuoteCurrency:  quote,
		Price:          price,
		Quantity:       quantity,
		Status:         StatusPending,
		CreationTime:   now,
		LastUpdateTime: now,
		clk:            clk,
	}
}

// SplitPair parses "BASE-QUOTE". Without a separator the whole string is the
// base and the quote defaults to USDT.
func SplitPair(pair string) (base, quote string) {
	if idx := strings.IndexByte(pair, '-'); idx >= 0 {
		return pair[:idx], pair[idx+1:]
	}
	return pair, defaultQuoteCurrency
}

func (o *LimitOrder) now() time.Time {
	if o.clk != nil {
		return o.clk.Now()
	}
	return clock.Shared().Now()
}

// SetStatus forces a status, stamping the update time. Transitions out of a
// terminal state are rejected.
func (o *LimitOrder) SetStatus(s Status) error {
	if o.Status.Terminal() && s != o.Status {
		return ErrInvalidTransition
	}
	o.Status = s
	o.LastUpdateTime = o.now()
	return nil
}

// SetPrice replaces the order price (in-place modify path).
func (o *LimitOrder) SetPrice(price decimal.Decimal) {
	o.Price = price
	o.LastUpdateTime = o.now()
}

// SetExchangeOrderID records the venue-assigned id.
func (o *LimitOrder) SetExchangeOrderID(id string) {
	o.ExchangeOrderID = id
	o.LastUpdateTime = o.now()
}

// ApplyFill adds quantity to the cumulative fill and rederives the status.
// Fills against a terminal order and fills beyond the remaining quantity
// are rejected.
func (o *LimitOrder) ApplyFill(quantity, price decimal.Decimal) error {
	if o.Status.Terminal() {
		return ErrInvalidTransition
	}
	if !quantity.IsPositive() || quantity.GreaterThan(o.RemainingQuantity()) {
		return ErrInvalidFill
	}
	o.FilledQuantity = o.FilledQuantity.Add(quantity)
	o.rederiveStatus()
	o.LastUpdateTime = o.now()
	return nil
}

// AddExecution appends an execution record and applies its quantity as a
// fill. The execution sequence is append-only. Executions beyond the
// remaining quantity, or whose notional is unrepresentable, are rejected.
func (o *LimitOrder) AddExecution(executionID string, quantity, price, feeAmount decimal.Decimal, feeCurrency string) error {
	if o.Status.Terminal() {
		return ErrInvalidTransition
	}
	if !quantity.IsPositive() || quantity.GreaterThan(o.RemainingQuantity()) {
		return ErrInvalidFill
	}
	if _, err := quantity.Mul(price); err != nil {
		return err
	}
	o.Executions = append(o.Executions, ExecutionDetail{
		ExecutionID: executionID,
		Quantity:    quantity,
		Price:       price,
		FeeAmount:   feeAmount,
		FeeCurrency: feeCurrency,
		Time:        o.now(),
	})
	o.FilledQuantity = o.FilledQuantity.Add(quantity)
	o.rederiveStatus()
	o.LastUpdateTime = o.now()
	return nil
}

func (o *LimitOrder) rederiveStatus() {
	if o.FilledQuantity.GreaterOrEqual(o.Quantity) {
		o.Status = StatusFilled
	} else if o.FilledQuantity.IsPositive() {
		o.Status = StatusPartial
	}
}

// Cancel forces CANCELLED regardless of the current fill level. Cancelling
// an order already in a terminal state is a no-op.
func (o *LimitOrder) Cancel() {
	if o.Status.Terminal() {
		return
	}
	o.Status = StatusCancelled
	o.LastUpdateTime = o.now()
}

// Reject marks the order REJECTED with a reason.
func (o *LimitOrder) Reject(reason string) {
	if o.Status.Terminal() {
		return
	}
	o.Status = StatusRejected
	o.RejectionReason = reason
	o.LastUpdateTime = o.now()
}

// Expire marks the order EXPIRED.
func (o *LimitOrder) Expire() {
	if o.Status.Terminal() {
		return
	}
	o.Status = StatusExpired
	o.LastUpdateTime = o.now()
}

// Valid checks structural consistency: identity fields present, positive
// quantity, a price for limit orders, the fill within [0, quantity], and the
// execution sum within epsilon of the cumulative fill.
func (o *LimitOrder) Valid() bool {
	if o.ClientOrderID == "" || o.TradingPair == "" {
		return false
	}
	if !o.Quantity.IsPositive() {
		return false
	}
	if o.Type == TypeLimit && !o.Price.IsPositive() {
		return false
	}
	if o.FilledQuantity.IsNegative() || o.FilledQuantity.GreaterThan(o.Quantity) {
		return false
	}

	// A fill tracked without execution records (ApplyFill) leaves the
	// ledger empty; only check the sum when executions exist.
	if len(o.Executions) > 0 {
		executed := decimal.Zero()
		for _, exec := range o.Executions {
			executed = executed.Add(exec.Quantity)
		}
		if executed.Sub(o.FilledQuantity).Abs().GreaterThan(executionEpsilon) {
			return false
		}
	}
	return true
}

// RemainingQuantity returns quantity - filled.
func (o *LimitOrder) RemainingQuantity() decimal.Decimal {
	return o.Quantity.Sub(o.FilledQuantity)
}

// FillPercentage returns filled/quantity * 100, zero for a zero quantity.
func (o *LimitOrder) FillPercentage() decimal.Decimal {
	if o.Quantity.IsZero() {
		return decimal.Zero()
	}
	ratio, err := o.FilledQuantity.Div(o.Quantity)
	if err != nil {
		return decimal.Zero()
	}
	pct, err := ratio.Mul(decimal.New(100))
	if err != nil {
		return decimal.Zero()
	}
	return pct
}

// ExecutedValue sums quantity*price over all executions.
func (o *LimitOrder) ExecutedValue() (decimal.Decimal, error) {
	total := decimal.Zero()
	for _, exec := range o.Executions {
		v, err := exec.Value()
		if err != nil {
			return decimal.Zero(), err
		}
		total = total.Add(v)
	}
	return total, nil
}

// AverageExecutionPrice returns executed notional / filled quantity, zero
// when unfilled.
func (o *LimitOrder) AverageExecutionPrice() (decimal.Decimal, error) {
	if o.FilledQuantity.IsZero() {
		return decimal.Zero(), nil
	}
	value, err := o.ExecutedValue()
	if err != nil {
		return decimal.Zero(), err
	}
	return value.Div(o.FilledQuantity)
}

// TotalFees sums fee amounts across executions. Fees are assumed to share a
// currency; cross-currency conversion is out of scope.
func (o *LimitOrder) TotalFees() decimal.Decimal {
	total := decimal.Zero()
	for _, exec := range o.Executions {
		total = total.Add(exec.FeeAmount)
	}
	return total
}

// Age returns how long the order has existed.
func (o *LimitOrder) Age() time.Duration {
	return o.now().Sub(o.CreationTime)
}

func (o *LimitOrder) IsBuy() bool       { return o.Side == SideBuy }
func (o *LimitOrder) IsSell() bool      { return o.Side == SideSell }
func (o *LimitOrder) IsFilled() bool    { return o.Status == StatusFilled }
func (o *LimitOrder) IsCancelled() bool { return o.Status == StatusCancelled }

// IsActive reports whether the order still rests in the market.
func (o *LimitOrder) IsActive() bool {
	return o.Status == StatusOpen || o.Status == StatusPartial
}

// Clone returns a deep copy, including the execution sequence.
func (o *LimitOrder) Clone() *LimitOrder {
	cp := *o
	if len(o.Executions) > 0 {
		cp.Executions = make([]ExecutionDetail, len(o.Executions))
		copy(cp.Executions, o.Executions)
	}
	return &cp
}

// String renders a compact human-readable form.
func (o *LimitOrder) String() string {
	var sb strings.Builder
	sb.WriteString("LimitOrder(id=")
	sb.WriteString(o.ClientOrderID)
	sb.WriteString(" pair=")
	sb.WriteString(o.TradingPair)
	sb.WriteString(" side=")
	sb.WriteString(o.Side.String())
	sb.WriteString(" type=")
	sb.WriteString(o.Type.String())
	sb.WriteString(" price=")
	sb.WriteString(o.Price.String())
	sb.WriteString(" qty=")
	sb.WriteString(o.Quantity.String())
	sb.WriteString(" filled=")
	sb.WriteString(o.FilledQuantity.String())
	sb.WriteString(" status=")
	sb.WriteString(o.Status.String())
	sb.WriteString(")")
	return sb.String()
}
