package order

import (
	"encoding/json"
	"time"

	"github.com/yanun0323/errors"

	"main/internal/decimal"
)

// executionJSON is the export form of one execution.
type executionJSON struct {
	ExecutionID string          `json:"execution_id"`
	Quantity    decimal.Decimal `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	FeeAmount   decimal.Decimal `json:"fee_amount"`
	FeeCurrency string          `json:"fee_currency"`
	Timestamp   int64           `json:"timestamp"`
	Value       decimal.Decimal `json:"value"`
}

// orderJSON is the export contract: stored fields plus computed values.
// Computed fields are emitted but ignored on import.
type orderJSON struct {
	ClientOrderID   string          `json:"client_order_id"`
	TradingPair     string          `json:"trading_pair"`
	Side            string          `json:"side"`
	Type            string          `json:"type"`
	BaseCurrency    string          `json:"base_currency"`
	QuoteCurrency   string          `json:"quote_currency"`
	Price           decimal.Decimal `json:"price"`
	Quantity        decimal.Decimal `json:"quantity"`
	FilledQuantity  decimal.Decimal `json:"filled_quantity"`
	Status          string          `json:"status"`
	CreationTime    int64           `json:"creation_time"`
	LastUpdateTime  int64           `json:"last_update_time"`
	ExchangeOrderID string          `json:"exchange_order_id,omitempty"`
	RejectionReason string          `json:"rejection_reason,omitempty"`
	ExpiryTime      int64           `json:"expiry_time,omitempty"`
	Executions      []executionJSON `json:"executions"`

	RemainingQuantity decimal.Decimal `json:"remaining_quantity"`
	FillPercentage    decimal.Decimal `json:"fill_percentage"`
	AgeMs             int64           `json:"age_ms"`
	IsActive          bool            `json:"is_active"`
	AverageExecPrice  decimal.Decimal `json:"average_execution_price"`
	TotalFees         decimal.Decimal `json:"total_fees"`
}

// MarshalJSON exports the order with its execution history and computed
// fields (remaining quantity, fill percentage, age, average execution price,
// total fees).
func (o *LimitOrder) MarshalJSON() ([]byte, error) {
	executions := make([]executionJSON, 0, len(o.Executions))
	for _, exec := range o.Executions {
		value, err := exec.Value()
		if err != nil {
			return nil, errors.Wrap(err, "execution value")
		}
		executions = append(executions, executionJSON{
			ExecutionID: exec.ExecutionID,
			Quantity:    exec.Quantity,
			Price:       exec.Price,
			FeeAmount:   exec.FeeAmount,
			FeeCurrency: exec.FeeCurrency,
			Timestamp:   exec.Time.UnixMilli(),
			Value:       value,
		})
	}

	avgPrice, err := o.AverageExecutionPrice()
	if err != nil {
		return nil, errors.Wrap(err, "average execution price")
	}

	var expiry int64
	if !o.ExpiryTime.IsZero() {
		expiry = o.ExpiryTime.UnixMilli()
	}

	return json.Marshal(orderJSON{
		ClientOrderID:   o.ClientOrderID,
		TradingPair:     o.TradingPair,
		Side:            o.Side.String(),
		Type:            o.Type.String(),
		BaseCurrency:    o.BaseCurrency,
		QuoteCurrency:   o.QuoteCurrency,
		Price:           o.Price,
		Quantity:        o.Quantity,
		FilledQuantity:  o.FilledQuantity,
		Status:          o.Status.String(),
		CreationTime:    o.CreationTime.UnixMilli(),
		LastUpdateTime:  o.LastUpdateTime.UnixMilli(),
		ExchangeOrderID: o.ExchangeOrderID,
		RejectionReason: o.RejectionReason,
		ExpiryTime:      expiry,
		Executions:      executions,

		RemainingQuantity: o.RemainingQuantity(),
		FillPercentage:    o.FillPercentage(),
		AgeMs:             o.Age().Milliseconds(),
		IsActive:          o.IsActive(),
		AverageExecPrice:  avgPrice,
		TotalFees:         o.TotalFees(),
	})
}

// UnmarshalJSON restores an order from its export form. Computed fields are
// recomputed, not trusted.
func (o *LimitOrder) UnmarshalJSON(data []byte) error {
	var raw orderJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return errors.Wrap(err, "decode order")
	}

	side, err := ParseSide(raw.Side)
	if err != nil {
		return err
	}
	typ, err := ParseType(raw.Type)
	if err != nil {
		return err
	}
	status, err := ParseStatus(raw.Status)
	if err != nil {
		return err
	}

	o.ClientOrderID = raw.ClientOrderID
	o.TradingPair = raw.TradingPair
	o.Side = side
	o.Type = typ
	o.BaseCurrency = raw.BaseCurrency
	o.QuoteCurrency = raw.QuoteCurrency
	o.Price = raw.Price
	o.Quantity = raw.Quantity
	o.FilledQuantity = raw.FilledQuantity
	o.Status = status
	o.CreationTime = time.UnixMilli(raw.CreationTime)
	o.LastUpdateTime = time.UnixMilli(raw.LastUpdateTime)
	o.ExchangeOrderID = raw.ExchangeOrderID
	o.RejectionReason = raw.RejectionReason
	if raw.ExpiryTime != 0 {
		o.ExpiryTime = time.UnixMilli(raw.ExpiryTime)
	} else {
		o.ExpiryTime = time.Time{}
	}

	o.Executions = o.Executions[:0]
	for _, exec := range raw.Executions {
		o.Executions = append(o.Executions, ExecutionDetail{
			ExecutionID: exec.ExecutionID,
			Quantity:    exec.Quantity,
			Price:       exec.Price,
			FeeAmount:   exec.FeeAmount,
			FeeCurrency: exec.FeeCurrency,
			Time:        time.UnixMilli(exec.Timestamp),
		})
	}
	return nil
}
