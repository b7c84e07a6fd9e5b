// Package recorder persists the trade log to PostgreSQL. It is a
// best-effort sink: a failed insert is logged and dropped, never allowed
// to stall the engine.
package recorder

import (
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"gorm.io/gorm"

	"main/internal/core"
	"main/pkg/conn"
)

// TradeRow is the persisted form of one trade. Decimal amounts are
// stored as their canonical strings so no precision is lost in transit.
type TradeRow struct {
	ID              uint      `gorm:"primaryKey"`
	TradeID         string    `gorm:"uniqueIndex;size:64"`
	ClientOrderID   string    `gorm:"index;size:64"`
	ExchangeOrderID string    `gorm:"size:64"`
	Symbol          string    `gorm:"index;size:32"`
	Side            string    `gorm:"size:8"`
	Price           string    `gorm:"size:48"`
	Quantity        string    `gorm:"size:48"`
	Fee             string    `gorm:"size:48"`
	FeeCurrency     string    `gorm:"size:16"`
	ExecutedAt      time.Time `gorm:"index"`
	CreatedAt       time.Time
}

// TableName keeps the table name stable across gorm naming strategies.
func (TradeRow) TableName() string { return "trades" }

// Recorder writes trades through a gorm connection.
type Recorder struct {
	db *gorm.DB
}

// New opens a PostgreSQL connection and migrates the trades table.
func New(opt conn.PostgresOption) (*Recorder, error) {
	db, err := conn.OpenPostgres(opt)
	if err != nil {
		return nil, errors.Wrap(err, "open postgres")
	}
	return NewWithDB(db)
}

// NewWithDB wraps an existing connection; tests pass a sqlite or mock
// handle here.
func NewWithDB(db *gorm.DB) (*Recorder, error) {
	if err := db.AutoMigrate(&TradeRow{}); err != nil {
		return nil, errors.Wrap(err, "migrate trades table")
	}
	return &Recorder{db: db}, nil
}

// Record inserts one trade.
func (r *Recorder) Record(t core.Trade) error {
	row := rowFromTrade(t)
	if err := r.db.Create(&row).Error; err != nil {
		return errors.Wrap(err, "insert trade")
	}
	return nil
}

// Recent returns the newest rows for a symbol, newest first. An empty
// symbol matches everything.
func (r *Recorder) Recent(symbol string, limit int) ([]TradeRow, error) {
	if limit <= 0 {
		limit = 100
	}
	q := r.db.Order("executed_at desc").Limit(limit)
	if symbol != "" {
		q = q.Where("symbol = ?", symbol)
	}
	var rows []TradeRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "query trades")
	}
	return rows, nil
}

// Hook adapts the recorder to the engine's OnTradeExecuted callback.
// Insert failures are logged, not propagated.
func (r *Recorder) Hook() func(core.Trade) {
	return func(t core.Trade) {
		if err := r.Record(t); err != nil {
			logs.Errorf("record trade failed, trade: %s, err: %+v", t.TradeID, err)
		}
	}
}

// Close releases the connection pool.
func (r *Recorder) Close() error {
	return conn.ClosePostgres(r.db)
}

func rowFromTrade(t core.Trade) TradeRow {
	return TradeRow{
		TradeID:         t.TradeID,
		ClientOrderID:   t.ClientOrderID,
		ExchangeOrderID: t.ExchangeOrderID,
		Symbol:          t.Symbol,
		Side:            t.Side.String(),
		Price:           t.Price.String(),
		Quantity:        t.Quantity.String(),
		Fee:             t.Fee.String(),
		FeeCurrency:     t.FeeCurrency,
		ExecutedAt:      t.Time,
	}
}
