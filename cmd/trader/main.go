package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/yanun0323/logs"

	"main/internal/clock"
	"main/internal/core"
	"main/internal/marketdata"
	"main/internal/ops"
	"main/internal/order"
	"main/internal/recorder"
)

const backtestStep = 100 * time.Millisecond

func main() {
	configPath := flag.String("config", "", "Path to JSON config")
	statsInterval := flag.Duration("stats-interval", 15*time.Second, "Statistics log interval")
	duration := flag.Duration("duration", 0, "Run time (0=until signal)")
	pyroscopeAddr := flag.String("pyroscope", "", "Pyroscope server address (empty=disabled)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if *duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *duration)
		defer cancel()
	}

	if *pyroscopeAddr != "" {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: "trader",
			ServerAddress:   *pyroscopeAddr,
			Tags:            map[string]string{"env": "local"},
			Logger:          quietLogger{},
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileAllocSpace,
				pyroscope.ProfileInuseObjects,
				pyroscope.ProfileInuseSpace,
			},
		})
		if err != nil {
			fatal("pyroscope start failed, err: %+v", err)
		}
		defer func() {
			_ = profiler.Stop()
		}()
	}

	loaded, err := loadConfig(*configPath)
	if err != nil {
		fatal("config load failed, err: %+v", err)
	}

	clk := clock.New(loaded.ClockMode)
	if loaded.ClockMode != clock.ModeRealtime {
		clk.SetTime(time.Now())
	}
	clock.SetShared(clk)

	engine := core.New(core.Config{Clock: clk, Risk: &loaded.Risk})

	callbacks := core.Callbacks{
		OnOrderFilled: func(o *order.LimitOrder) {
			avg, err := o.AverageExecutionPrice()
			if err != nil {
				logs.Errorf("order filled, id: %s, avg unavailable, err: %+v", o.ClientOrderID, err)
				return
			}
			logs.Infof("order filled, id: %s, avg: %s", o.ClientOrderID, avg)
		},
		OnOrderCancelled: func(o *order.LimitOrder) {
			logs.Infof("order cancelled, id: %s", o.ClientOrderID)
		},
		OnOrderRejected: func(o *order.LimitOrder, reason string) {
			logs.Infof("order rejected, id: %s, reason: %s", o.ClientOrderID, reason)
		},
		OnError: func(err error) {
			logs.Errorf("engine error, err: %+v", err)
		},
	}

	var sink *recorder.Recorder
	if loaded.Recorder.Enabled {
		sink, err = recorder.New(loaded.Recorder.Conn)
		if err != nil {
			fatal("recorder init failed, err: %+v", err)
		}
		defer sink.Close()

		record := sink.Hook()
		callbacks.OnTradeExecuted = func(t core.Trade) {
			logs.Infof("trade executed, id: %s, %s %s %s@%s", t.TradeID, t.Symbol, t.Side, t.Quantity, t.Price)
			record(t)
		}
	} else {
		callbacks.OnTradeExecuted = func(t core.Trade) {
			logs.Infof("trade executed, id: %s, %s %s %s@%s", t.TradeID, t.Symbol, t.Side, t.Quantity, t.Price)
		}
	}
	engine.SetCallbacks(callbacks)

	engine.Start()
	defer engine.Stop()

	// Realtime mode lets the feed emit on its own goroutine; caller-driven
	// modes step it from the drive loop below.
	simCfg := loaded.Simulator
	if loaded.ClockMode == clock.ModeRealtime {
		if simCfg.Interval <= 0 {
			simCfg.Interval = 100 * time.Millisecond
		}
	} else {
		simCfg.Interval = 0
	}
	feed, err := marketdata.NewSimulator(simCfg, clk)
	if err != nil {
		fatal("simulator init failed, err: %+v", err)
	}
	for _, symbol := range loaded.Symbols {
		engine.SubscribeMarketData(symbol)
		if err := feed.SubscribeOrderBook(symbol, engine.HandleTick); err != nil {
			fatal("subscribe book failed, symbol: %s, err: %+v", symbol, err)
		}
		if err := feed.SubscribeTrades(symbol, engine.HandleTradeTick); err != nil {
			fatal("subscribe trades failed, symbol: %s, err: %+v", symbol, err)
		}
	}
	if err := feed.Connect(); err != nil {
		fatal("feed connect failed, err: %+v", err)
	}
	defer feed.Disconnect()

	logs.Infof("trader running, mode: %s, symbols: %v", loaded.ClockMode, loaded.Symbols)

	stats := time.NewTicker(*statsInterval)
	defer stats.Stop()

	// Caller-driven clock modes get a drive ticker; realtime leaves the
	// channel nil (never firing) since the feed emits on its own.
	var drive <-chan time.Time
	if loaded.ClockMode != clock.ModeRealtime {
		interval := loaded.Simulator.Interval
		if interval <= 0 {
			interval = 10 * time.Millisecond
		}
		driver := time.NewTicker(interval)
		defer driver.Stop()
		drive = driver.C
	}
	for {
		select {
		case <-ctx.Done():
			logStatistics(engine)
			return
		case <-stats.C:
			logStatistics(engine)
		case <-drive:
			// Caller-driven modes: move time forward and step the feed.
			clk.AdvanceTime(backtestStep)
			if err := feed.Step(); err != nil {
				logs.Errorf("feed step failed, err: %+v", err)
				return
			}
		}
	}
}

func loadConfig(path string) (ops.Loaded, error) {
	if path == "" {
		return ops.Parse([]byte(`{}`))
	}
	return ops.Load(path)
}

func logStatistics(engine *core.Core) {
	stats := engine.Statistics()
	logs.Infof("stats: orders=%d positions=%d trades=%d realized=%s daily=%s unrealized=%s portfolio=%s",
		stats.ActiveOrders, stats.Positions, stats.TotalTrades,
		stats.RealizedPnL, stats.DailyPnL, stats.UnrealizedPnL, stats.PortfolioValue)

	for _, symbol := range engine.Books().Symbols() {
		b := engine.Books().Get(symbol)
		logs.Infof("book: %s bid=%s ask=%s mid=%s", symbol, b.BestBid(), b.BestAsk(), b.MidPrice())
	}
}

func fatal(format string, args ...any) {
	logs.Errorf(format, args...)
	os.Exit(1)
}

type quietLogger struct{}

func (quietLogger) Infof(_ string, _ ...interface{})  {}
func (quietLogger) Debugf(_ string, _ ...interface{}) {}
func (quietLogger) Errorf(_ string, _ ...interface{}) {}
