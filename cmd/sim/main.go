package main

import (
	"flag"
	"log"

	"go.uber.org/zap"

	"marketsim/params"
	"marketsim/pkg/agents"
	"marketsim/pkg/api"
	"marketsim/pkg/journal"
	"marketsim/pkg/sim"
	"marketsim/pkg/util"
)

func main() {
	var (
		configPath = flag.String("config", "", "YAML config file (defaults used when empty)")
		envPath    = flag.String("env", "", ".env file overriding the config")
	)
	flag.Parse()

	cfg := params.Default()
	if *configPath != "" {
		var err error
		cfg, err = params.LoadFile(*configPath)
		if err != nil {
			log.Fatalf("config: %v", err)
		}
	}
	cfg = params.LoadFromEnv(cfg, *envPath)

	var (
		logger *zap.Logger
		err    error
	)
	if cfg.Logging.AppLog != "" {
		logger, err = util.NewLoggerWithFile(cfg.Logging.AppLog)
	} else {
		logger, err = util.NewLogger()
	}
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	// ---- Sinks: CSV order log, optional pebble journal ----
	csvLog, err := journal.NewCSVLog(cfg.Logging.CSVPath, cfg.Logging.BufferLines, sugar)
	if err != nil {
		sugar.Fatalw("open order log", "err", err)
	}
	defer csvLog.Close()

	sinks := sim.MultiSink{csvLog}
	if cfg.Logging.JournalDir != "" {
		ej, err := journal.OpenEventJournal(cfg.Logging.JournalDir)
		if err != nil {
			sugar.Fatalw("open event journal", "err", err)
		}
		defer ej.Close()
		sinks = append(sinks, ej)
	}

	// ---- Engine + controller ----
	simCfg := sim.Config{
		BuyPrice:            cfg.Market.BuyPrice,
		TickSize:            cfg.Market.TickSize,
		StartupTicks:        cfg.Market.StartupTicks,
		EndTicks:            cfg.Market.EndTicks,
		MovingAverageWindow: cfg.Market.MovingAverageWindow,
		Seed:                cfg.Market.Seed,
		SnapshotEvery:       cfg.Market.SnapshotEvery,
	}
	engine, err := sim.NewMatchingEngine(simCfg, sinks, sugar)
	if err != nil {
		sugar.Fatalw("engine", "err", err)
	}
	controller := sim.NewController(engine, simCfg, sugar)

	// ---- Agent population (example strategies) ----
	seed := cfg.Market.Seed
	gap := float64(cfg.Market.StartupTicks) / 20
	for i := 0; i < cfg.Agents.LiquidityProviders; i++ {
		controller.AddAgent(agents.NewLiquidityProvider(engine, seed+100+int64(i), gap))
	}
	var noise []*agents.NoiseTrader
	for i := 0; i < cfg.Agents.NoiseTraders; i++ {
		t := agents.NewNoiseTrader(engine, seed+1000+int64(i), gap*2)
		noise = append(noise, t)
		controller.AddAgent(t)
	}
	if len(noise) > 0 && cfg.Agents.ShockMeanGapTicks > 0 {
		controller.SetGroupEvent(agents.NewSentimentShock(seed+7, noise), cfg.Agents.ShockMeanGapTicks)
	}

	// ---- Optional snapshot API ----
	if cfg.API.Enabled {
		server := api.NewServer(sugar)
		controller.SetPublisher(server)
		go func() {
			if err := server.Start(cfg.API.Addr); err != nil {
				sugar.Errorw("api server stopped", "err", err)
			}
		}()
	}

	if err := controller.Run(); err != nil {
		sugar.Fatalw("run", "err", err)
	}

	sugar.Infow("done",
		"last_trade_price", engine.LastTradePrice(),
		"best_bid_qty", engine.BestBidQuantity(),
		"best_ask_qty", engine.BestAskQuantity(),
	)
}
