package book

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"main/internal/clock"
	"main/internal/decimal"
)

func testClock() *clock.Clock {
	c := clock.New(clock.ModeBacktest)
	c.SetTime(time.Unix(1_700_000_000, 0))
	return c
}

func d(s string) decimal.Decimal { return decimal.MustParse(s) }

func TestSideOrdering(t *testing.T) {
	clk := testClock()

	bids := NewSide(OrderBids, clk)
	bids.Update(d("100"), d("1"), 1)
	bids.Update(d("102"), d("2"), 2)
	bids.Update(d("101"), d("3"), 3)

	levels := bids.Levels(0)
	if len(levels) != 3 {
		t.Fatalf("bid levels: %d", len(levels))
	}
	for i, want := range []string{"102", "101", "100"} {
		if got := levels[i].Price.String(); got != want {
			t.Fatalf("bid level %d: got %s want %s", i, got, want)
		}
	}

	asks := NewSide(OrderAsks, clk)
	asks.Update(d("102"), d("2"), 1)
	asks.Update(d("100"), d("1"), 2)
	asks.Update(d("101"), d("3"), 3)

	levels = asks.Levels(0)
	for i, want := range []string{"100", "101", "102"} {
		if got := levels[i].Price.String(); got != want {
			t.Fatalf("ask level %d: got %s want %s", i, got, want)
		}
	}

	if best, ok := asks.Best(); !ok || best.Price.String() != "100" {
		t.Fatalf("ask best: %+v ok=%v", best, ok)
	}
}

func TestSideZeroAmountRemovesLevel(t *testing.T) {
	side := NewSide(OrderBids, testClock())
	side.Update(d("100"), d("5"), 1)
	side.Update(d("101"), d("1"), 2)

	side.Update(d("100"), d("0"), 3)

	if side.Len() != 1 {
		t.Fatalf("levels after removal: %d", side.Len())
	}
	best, ok := side.Best()
	if !ok || best.Price.String() != "101" {
		t.Fatalf("best after removal: %+v", best)
	}
	for _, e := range side.Levels(0) {
		if e.Price.Equal(d("100")) {
			t.Fatal("removed level still reported")
		}
	}
}

func TestSideUpdateReplacesNotAccumulates(t *testing.T) {
	side := NewSide(OrderAsks, testClock())
	side.Update(d("100"), d("5"), 1)
	side.Update(d("100"), d("2"), 2)

	best, _ := side.Best()
	if best.Amount.String() != "2" {
		t.Fatalf("amount should be replaced, got %s", best.Amount)
	}
	if best.UpdateID != 2 {
		t.Fatalf("update id not advanced: %d", best.UpdateID)
	}
}

func TestSideUpdateKeepsTimePriority(t *testing.T) {
	clk := testClock()
	side := NewSide(OrderBids, clk)

	side.Update(d("100"), d("5"), 1)
	arrived, _ := side.Best()

	clk.AdvanceTime(time.Second)
	side.Update(d("100"), d("2"), 2)

	best, _ := side.Best()
	if !best.Time.Equal(arrived.Time) {
		t.Fatalf("amount update reset arrival time: %s -> %s", arrived.Time, best.Time)
	}

	// A fresh level after removal gets a fresh arrival time.
	side.Update(d("100"), d("0"), 3)
	clk.AdvanceTime(time.Second)
	side.Update(d("100"), d("1"), 4)
	best, _ = side.Best()
	if !best.Time.After(arrived.Time) {
		t.Fatalf("re-added level kept stale time: %s", best.Time)
	}
}

func TestSideVolumeAtOrBetter(t *testing.T) {
	clk := testClock()

	asks := NewSide(OrderAsks, clk)
	asks.Update(d("100"), d("1"), 1)
	asks.Update(d("101"), d("2"), 2)
	asks.Update(d("105"), d("10"), 3)

	if got := asks.VolumeAtOrBetter(d("101")).String(); got != "3" {
		t.Fatalf("ask volume at or under 101: %s", got)
	}

	bids := NewSide(OrderBids, clk)
	bids.Update(d("99"), d("4"), 1)
	bids.Update(d("98"), d("1"), 2)
	bids.Update(d("90"), d("7"), 3)

	if got := bids.VolumeAtOrBetter(d("98")).String(); got != "5" {
		t.Fatalf("bid volume at or over 98: %s", got)
	}
}

func TestBookValidityAfterUpdates(t *testing.T) {
	b := New("BTC-USDT", testClock())
	if !b.Valid() {
		t.Fatal("empty book should be valid")
	}

	b.UpdateBid(d("100"), d("1"), 1)
	if !b.Valid() {
		t.Fatal("one-sided book should be valid")
	}

	b.UpdateAsk(d("101"), d("1"), 2)
	if !b.Valid() {
		t.Fatal("bid < ask should be valid")
	}

	b.UpdateAsk(d("99"), d("1"), 3)
	if b.Valid() {
		t.Fatal("crossed book should be invalid")
	}
}

func TestBookBestMidSpread(t *testing.T) {
	b := New("BTC-USDT", testClock())

	if !b.MidPrice().IsZero() || !b.Spread().IsZero() {
		t.Fatal("empty book mid/spread should be zero")
	}

	b.UpdateBid(d("100"), d("1"), 1)
	if !b.MidPrice().IsZero() {
		t.Fatal("one-sided mid should be zero")
	}

	b.UpdateAsk(d("102"), d("1"), 2)
	if got := b.BestBid().String(); got != "100" {
		t.Fatalf("best bid: %s", got)
	}
	if got := b.BestAsk().String(); got != "102" {
		t.Fatalf("best ask: %s", got)
	}
	if got := b.MidPrice().String(); got != "101" {
		t.Fatalf("mid: %s", got)
	}
	if got := b.Spread().String(); got != "2" {
		t.Fatalf("spread: %s", got)
	}
}

func TestImpactPrice(t *testing.T) {
	b := New("BTC-USDT", testClock())
	b.UpdateAsk(d("100"), d("1"), 1)
	b.UpdateAsk(d("101"), d("2"), 2)

	// qty 2 sweeps 1@100 and 1@101: average (100+101)/2 = 100.5.
	avg, err := b.ImpactPrice(true, d("2"))
	if err != nil {
		t.Fatalf("impact: %v", err)
	}
	if got := avg.String(); got != "100.5" {
		t.Fatalf("impact price: %s", got)
	}

	if _, err := b.ImpactPrice(true, d("10")); !errors.Is(err, ErrInsufficientLiquidity) {
		t.Fatalf("expected ErrInsufficientLiquidity, got %v", err)
	}

	zero, err := b.ImpactPrice(true, decimal.Zero())
	if err != nil || !zero.IsZero() {
		t.Fatalf("zero quantity: %s, %v", zero, err)
	}

	b.UpdateBid(d("99"), d("3"), 3)
	avg, err = b.ImpactPrice(false, d("2"))
	if err != nil {
		t.Fatalf("sell impact: %v", err)
	}
	if got := avg.String(); got != "99" {
		t.Fatalf("sell impact price: %s", got)
	}
}

func TestVolumeAtPrice(t *testing.T) {
	b := New("BTC-USDT", testClock())
	b.UpdateAsk(d("100"), d("1"), 1)
	b.UpdateAsk(d("101"), d("2"), 2)
	b.UpdateBid(d("99"), d("4"), 3)

	if got := b.VolumeAtPrice(true, d("100")).String(); got != "1" {
		t.Fatalf("buy volume: %s", got)
	}
	if got := b.VolumeAtPrice(true, d("101")).String(); got != "3" {
		t.Fatalf("buy volume: %s", got)
	}
	if got := b.VolumeAtPrice(false, d("99")).String(); got != "4" {
		t.Fatalf("sell volume: %s", got)
	}
}

func TestObserversAndBatchNotification(t *testing.T) {
	b := New("BTC-USDT", testClock())

	var single, batch atomic.Int32
	b.RegisterObserver(func(symbol string) {
		if symbol != "BTC-USDT" {
			t.Errorf("observer symbol: %s", symbol)
		}
		single.Add(1)
	})
	b.RegisterObserver(func(string) { batch.Add(1) })

	b.UpdateBid(d("100"), d("1"), 1)
	if single.Load() != 1 || batch.Load() != 1 {
		t.Fatalf("single update notifications: %d/%d", single.Load(), batch.Load())
	}

	b.ApplyUpdates(
		[]LevelUpdate{{Price: d("99"), Amount: d("1"), UpdateID: 2}, {Price: d("98"), Amount: d("2"), UpdateID: 3}},
		[]LevelUpdate{{Price: d("101"), Amount: d("1"), UpdateID: 4}},
		5,
	)
	if single.Load() != 2 || batch.Load() != 2 {
		t.Fatalf("batch should notify once: %d/%d", single.Load(), batch.Load())
	}
	if b.LastUpdateID() != 5 {
		t.Fatalf("watermark: %d", b.LastUpdateID())
	}
}

func TestPanickingObserverIsolated(t *testing.T) {
	b := New("BTC-USDT", testClock())

	var reached atomic.Int32
	b.RegisterObserver(func(string) { panic("observer boom") })
	b.RegisterObserver(func(string) { reached.Add(1) })

	b.UpdateBid(d("100"), d("1"), 1)
	if reached.Load() != 1 {
		t.Fatal("panicking observer blocked the next one")
	}
}

func TestSnapshot(t *testing.T) {
	b := New("BTC-USDT", testClock())
	b.UpdateBid(d("100"), d("1.5"), 1)
	b.UpdateBid(d("99"), d("2"), 2)
	b.UpdateAsk(d("101"), d("0.5"), 3)

	snap := b.Snapshot(1)
	if snap.Symbol != "BTC-USDT" || snap.LastUpdateID != 3 {
		t.Fatalf("snapshot header: %+v", snap)
	}
	if len(snap.Bids) != 1 || len(snap.Asks) != 1 {
		t.Fatalf("snapshot depth: %d/%d", len(snap.Bids), len(snap.Asks))
	}
	if snap.Bids[0] != [2]string{"100", "1.5"} {
		t.Fatalf("snapshot bid: %v", snap.Bids[0])
	}
	if snap.Asks[0] != [2]string{"101", "0.5"} {
		t.Fatalf("snapshot ask: %v", snap.Asks[0])
	}

	if _, err := b.SnapshotJSON(0); err != nil {
		t.Fatalf("snapshot json: %v", err)
	}
}

func TestConcurrentUpdatesAndReads(t *testing.T) {
	b := New("BTC-USDT", testClock())

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				price := decimal.New(int64(90 + (i+w)%10))
				b.UpdateBid(price, d("1"), int64(i))
				b.UpdateAsk(price.Add(decimal.New(20)), d("1"), int64(i))
			}
		}(w)
	}
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				b.BestBid()
				b.Bids(5)
				b.MidPrice()
				_, _ = b.ImpactPrice(true, d("1"))
			}
		}()
	}
	wg.Wait()

	if !b.Valid() {
		t.Fatal("book invalid after concurrent updates")
	}
}

func TestManager(t *testing.T) {
	m := NewManager(testClock())

	if m.Has("BTC-USDT") {
		t.Fatal("manager should start empty")
	}

	b1 := m.Get("BTC-USDT")
	b2 := m.Get("BTC-USDT")
	if b1 != b2 {
		t.Fatal("get should return the same book")
	}
	m.Get("ETH-USDT")

	symbols := m.Symbols()
	if len(symbols) != 2 || symbols[0] != "BTC-USDT" || symbols[1] != "ETH-USDT" {
		t.Fatalf("symbols: %v", symbols)
	}

	m.Remove("BTC-USDT")
	if m.Has("BTC-USDT") {
		t.Fatal("remove failed")
	}

	m.ClearAll()
	if len(m.Symbols()) != 0 {
		t.Fatal("clear all failed")
	}
}

func TestManagerConcurrentGet(t *testing.T) {
	m := NewManager(testClock())

	var wg sync.WaitGroup
	books := make([]*Book, 16)
	for i := range books {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			books[i] = m.Get("BTC-USDT")
		}(i)
	}
	wg.Wait()

	for _, b := range books[1:] {
		if b != books[0] {
			t.Fatal("concurrent get returned different books")
		}
	}
}
