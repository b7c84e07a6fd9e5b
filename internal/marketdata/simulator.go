package marketdata

import (
	"errors"
	"math/rand"
	"sync"
	"time"

	"main/internal/clock"
	"main/internal/decimal"
	"main/internal/order"
)

var (
	ErrNotConnected = errors.New("marketdata: feed not connected")
	ErrBadConfig    = errors.New("marketdata: base price must be positive")
)

// SimulatorConfig controls the synthetic feed.
type SimulatorConfig struct {
	BasePrice decimal.Decimal
	Spread    decimal.Decimal
	TickSize  decimal.Decimal
	Depth     int
	Interval  time.Duration
	Seed      int64
}

// Simulator is an in-process Feed producing a random walk around the base
// price. With a nonzero Interval it emits on its own goroutine after
// Connect; with a zero Interval the caller drives it via Step, which is
// the deterministic mode backtests use.
type Simulator struct {
	clk *clock.Clock

	mu         sync.Mutex
	cfg        SimulatorConfig
	rng        *rand.Rand
	halfSpread decimal.Decimal
	prices     map[string]decimal.Decimal
	bookSubs   map[string]TickHandler
	tradeSubs  map[string]TradeHandler
	connected  bool
	done       chan struct{}
	wg         sync.WaitGroup
}

// NewSimulator validates the configuration and builds a disconnected
// simulator. A nil clock falls back to the process-shared clock.
func NewSimulator(cfg SimulatorConfig, clk *clock.Clock) (*Simulator, error) {
	if !cfg.BasePrice.IsPositive() {
		return nil, ErrBadConfig
	}
	if cfg.TickSize.IsZero() {
		cfg.TickSize = decimal.MustParse("0.5")
	}
	if cfg.Spread.IsZero() {
		cfg.Spread = cfg.TickSize
	}
	if cfg.Depth <= 0 {
		cfg.Depth = 5
	}
	if clk == nil {
		clk = clock.Shared()
	}

	halfSpread, err := cfg.Spread.Div(decimal.New(2))
	if err != nil {
		return nil, err
	}
	return &Simulator{
		clk:        clk,
		cfg:        cfg,
		rng:        rand.New(rand.NewSource(cfg.Seed)),
		halfSpread: halfSpread,
		prices:     make(map[string]decimal.Decimal),
		bookSubs:   make(map[string]TickHandler),
		tradeSubs:  make(map[string]TradeHandler),
	}, nil
}

// Connect marks the feed live and, in interval mode, starts the emitter.
func (s *Simulator) Connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connected {
		return nil
	}
	s.connected = true
	if s.cfg.Interval > 0 {
		s.done = make(chan struct{})
		s.wg.Add(1)
		go s.run(s.done)
	}
	return nil
}

// Disconnect stops the emitter and marks the feed down. Subscriptions
// survive a reconnect.
func (s *Simulator) Disconnect() error {
	s.mu.Lock()
	if !s.connected {
		s.mu.Unlock()
		return nil
	}
	s.connected = false
	done := s.done
	s.done = nil
	s.mu.Unlock()

	if done != nil {
		close(done)
	}
	s.wg.Wait()
	return nil
}

// SubscribeOrderBook registers a handler for a symbol's book ticks.
func (s *Simulator) SubscribeOrderBook(symbol string, handler TickHandler) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bookSubs[symbol] = handler
	if _, ok := s.prices[symbol]; !ok {
		s.prices[symbol] = s.cfg.BasePrice
	}
	return nil
}

// SubscribeTrades registers a handler for a symbol's trade prints.
func (s *Simulator) SubscribeTrades(symbol string, handler TradeHandler) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tradeSubs[symbol] = handler
	if _, ok := s.prices[symbol]; !ok {
		s.prices[symbol] = s.cfg.BasePrice
	}
	return nil
}

// Unsubscribe drops both subscriptions for a symbol.
func (s *Simulator) Unsubscribe(symbol string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.bookSubs, symbol)
	delete(s.tradeSubs, symbol)
	delete(s.prices, symbol)
	return nil
}

func (s *Simulator) run(done chan struct{}) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := s.Step(); err != nil {
				return
			}
		}
	}
}

// Step advances every subscribed symbol one walk increment and delivers
// the resulting ticks synchronously. Returns ErrNotConnected when the
// feed is down.
func (s *Simulator) Step() error {
	s.mu.Lock()
	if !s.connected {
		s.mu.Unlock()
		return ErrNotConnected
	}

	type emission struct {
		book   TickHandler
		trade  TradeHandler
		ticks  []Tick
		prints []TradeTick
	}

	now := s.clk.Now()
	var out []emission
	for symbol, mid := range s.prices {
		mid = s.walk(mid)
		s.prices[symbol] = mid

		e := emission{book: s.bookSubs[symbol], trade: s.tradeSubs[symbol]}
		if e.book != nil {
			e.ticks = s.levels(symbol, mid, now)
		}
		if e.trade != nil && s.rng.Intn(4) == 0 {
			side := order.SideBuy
			if s.rng.Intn(2) == 0 {
				side = order.SideSell
			}
			e.prints = append(e.prints, TradeTick{
				Symbol:   symbol,
				Price:    mid,
				Quantity: s.size(),
				Time:     now,
				Side:     side,
			})
		}
		out = append(out, e)
	}
	s.mu.Unlock()

	for _, e := range out {
		for _, tick := range e.ticks {
			e.book(tick)
		}
		for _, print := range e.prints {
			e.trade(print)
		}
	}
	return nil
}

// walk moves the mid one tick up, down, or nowhere. The price never
// crosses zero.
func (s *Simulator) walk(mid decimal.Decimal) decimal.Decimal {
	switch s.rng.Intn(3) {
	case 0:
		return mid.Add(s.cfg.TickSize)
	case 1:
		next := mid.Sub(s.cfg.TickSize)
		if next.IsPositive() {
			return next
		}
	}
	return mid
}

// levels builds Depth bid and ask ticks around the mid.
func (s *Simulator) levels(symbol string, mid decimal.Decimal, now time.Time) []Tick {
	ticks := make([]Tick, 0, 2*s.cfg.Depth)
	bid := mid.Sub(s.halfSpread)
	ask := mid.Add(s.halfSpread)
	for i := 0; i < s.cfg.Depth; i++ {
		if bid.IsPositive() {
			ticks = append(ticks, Tick{Symbol: symbol, Price: bid, Quantity: s.size(), Time: now, IsBid: true})
		}
		ticks = append(ticks, Tick{Symbol: symbol, Price: ask, Quantity: s.size(), Time: now, IsBid: false})
		bid = bid.Sub(s.cfg.TickSize)
		ask = ask.Add(s.cfg.TickSize)
	}
	return ticks
}

func (s *Simulator) size() decimal.Decimal {
	return decimal.New(int64(1 + s.rng.Intn(9)))
}
