package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/shopspring/decimal"
	"github.com/yanun0323/logs"

	"main/internal/bus"
	"main/internal/ingest"
	"main/internal/journal"
	"main/internal/marketdata"
	"main/internal/ops"
	"main/internal/order"
	"main/internal/order/delegator"
	binancedelegator "main/internal/order/delegator/binance"
	"main/internal/order/delegator/paper"
	"main/internal/risk"
	"main/internal/server"
	"main/internal/state"
	"main/internal/strategy"
	"main/pkg/conn"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to YAML config")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loaded, err := ops.Load(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	if loaded.File.Profile.Enabled {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: loaded.File.App.Name,
			ServerAddress:   loaded.File.Profile.ServerURL,
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileInuseSpace,
			},
		})
		if err != nil {
			log.Fatalf("pyroscope start failed: %v", err)
		}
		defer func() {
			_ = profiler.Stop()
		}()
	}

	buffer := marketdata.NewBuffer(marketdata.Config{
		TickCapacity:  loaded.File.Buffer.TickCapacity,
		KlineCapacity: loaded.File.Buffer.KlineCapacity,
		DepthCapacity: loaded.File.Buffer.DepthCapacity,
		TradeCapacity: loaded.File.Buffer.TradeCapacity,
	})

	eventBus := bus.New(bus.Config{
		HistorySize:    loaded.File.Bus.HistorySize,
		AsyncQueueSize: loaded.File.Bus.AsyncQueueSize,
	})

	engine := risk.NewEngine(loaded.RiskParams)
	sizer := risk.NewSizer(engine)

	book := state.NewBook(state.BookConfig{
		Bus:           eventBus,
		Engine:        engine,
		InitialEquity: loaded.InitialEquity,
	})
	defer book.Shutdown()

	// The paper venue reports fills back into the manager; the manager is
	// assigned before any order can be submitted, so the closure is safe.
	var manager *order.Manager
	venue := buildDelegator(loaded, buffer, func(id string, qty, price decimal.Decimal) {
		if err := manager.ApplyFill(id, qty, price); err != nil {
			logs.Errorf("apply simulated fill: %v", err)
		}
	})

	manager, err = order.NewManager(order.Config{
		Delegator: venue,
		Engine:    engine,
		Bus:       eventBus,
		Equity:    book.Equity,
		Price:     buffer.LastPrice,
	})
	if err != nil {
		log.Fatalf("order manager init failed: %v", err)
	}

	if loaded.File.Journal.DSN != "" {
		pg, err := conn.NewPostgres(conn.Option{DSN: loaded.File.Journal.DSN})
		if err != nil {
			log.Fatalf("journal database connect failed: %v", err)
		}
		defer pg.Close()

		trades, err := journal.New(pg.DB(), eventBus)
		if err != nil {
			log.Fatalf("journal init failed: %v", err)
		}
		defer trades.Shutdown()
	}

	provider, err := buildProvider(loaded)
	if err != nil {
		log.Fatalf("strategy init failed: %v", err)
	}
	runner, err := strategy.NewRunner(strategy.RunnerConfig{
		Provider:      provider,
		Buffer:        buffer,
		Bus:           eventBus,
		Manager:       manager,
		Book:          book,
		Sizer:         sizer,
		RiskPct:       loaded.RiskPerTrade,
		MinConfidence: loaded.File.Strategy.MinConfidence,
	})
	if err != nil {
		log.Fatalf("strategy runner init failed: %v", err)
	}
	defer runner.Shutdown()

	supervisor := ingest.NewSupervisor(ingest.Config{
		BaseURL:      loaded.File.Exchange.StreamURL,
		BaseDelay:    loaded.File.Exchange.BaseDelay,
		MaxAttempts:  loaded.File.Exchange.MaxAttempts,
		PingInterval: loaded.File.Exchange.PingInterval,
		Buffer:       buffer,
		Bus:          eventBus,
	})
	for _, key := range loaded.Streams {
		if err := supervisor.Subscribe(ctx, key); err != nil {
			log.Fatalf("subscribe %s failed: %v", key.Name(), err)
		}
	}

	monitor := state.NewMonitor(state.MonitorConfig{
		Book:          book,
		Manager:       manager,
		Prices:        buffer.LastPrice,
		CheckInterval: loaded.File.Monitor.CheckInterval,
	})
	go monitor.Run(ctx)

	statusServer := server.New(server.Config{
		Addr:       loaded.File.Server.Addr,
		Bus:        eventBus,
		Supervisor: supervisor,
		Manager:    manager,
		Book:       book,
	})
	go func() {
		if err := statusServer.Run(); err != nil {
			logs.Errorf("status server: %v", err)
			stop()
		}
	}()

	eventBus.Publish(bus.SystemEvent{Action: "started", Message: loaded.File.App.Name, At: time.Now()})
	logs.Infof("%s running in %s mode, %d streams",
		loaded.File.App.Name, loaded.File.Exchange.Mode, len(loaded.Streams))

	<-ctx.Done()
	logs.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	supervisor.Close()
	if err := statusServer.Shutdown(shutdownCtx); err != nil {
		logs.Errorf("status server shutdown: %v", err)
	}
	if err := eventBus.Shutdown(shutdownCtx); err != nil {
		logs.Errorf("bus shutdown: %v", err)
	}
}

func buildDelegator(loaded *ops.Loaded, buffer *marketdata.Buffer, onFill paper.FillFunc) delegator.Delegator {
	if loaded.File.Exchange.Mode == "binance" {
		return binancedelegator.New(binancedelegator.Config{
			APIKey:    loaded.File.Exchange.APIKey,
			APISecret: loaded.File.Exchange.APISecret,
			BaseURL:   loaded.File.Exchange.RestURL,
		})
	}
	return paper.New(buffer.LastPrice, onFill)
}

func buildProvider(loaded *ops.Loaded) (strategy.SignalProvider, error) {
	strategy.Register(strategy.NewSMACross(loaded.File.Strategy.FastPeriod, loaded.File.Strategy.SlowPeriod))
	return strategy.Lookup(loaded.File.Strategy.Provider)
}
