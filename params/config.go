package params

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Market holds the engine parameters. Prices are integer cents and must be
// multiples of TickSize; times are ticks.
type Market struct {
	BuyPrice            int64 `yaml:"buy_price"`
	TickSize            int64 `yaml:"tick_size"`
	StartupTicks        int64 `yaml:"startup_ticks"`
	EndTicks            int64 `yaml:"end_ticks"`
	MovingAverageWindow int   `yaml:"moving_average_window"`
	Seed                int64 `yaml:"seed"`
	SnapshotEvery       int64 `yaml:"snapshot_every"`
}

// Agents sizes the example agent populations wired in cmd/sim.
type Agents struct {
	LiquidityProviders int     `yaml:"liquidity_providers"`
	NoiseTraders       int     `yaml:"noise_traders"`
	ShockMeanGapTicks  float64 `yaml:"shock_mean_gap_ticks"`
}

// Logging configures the run's collaborator sinks.
type Logging struct {
	// CSVPath is the order/trade log destination.
	CSVPath string `yaml:"csv_path"`
	// BufferLines is the CSV buffer flush threshold.
	BufferLines int `yaml:"buffer_lines"`
	// JournalDir enables the pebble event journal when non-empty.
	JournalDir string `yaml:"journal_dir"`
	// AppLog is the zap log file ("" logs to console only).
	AppLog string `yaml:"app_log"`
}

// API configures the snapshot HTTP/WebSocket server.
type API struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

type Config struct {
	Market  Market  `yaml:"market"`
	Agents  Agents  `yaml:"agents"`
	Logging Logging `yaml:"logging"`
	API     API     `yaml:"api"`
}

func Default() Config {
	return Config{
		Market: Market{
			BuyPrice:            12500, // $125.00
			TickSize:            25,    // $0.25 book granularity
			StartupTicks:        30_000,
			EndTicks:            150_000,
			MovingAverageWindow: 500,
			Seed:                1,
			SnapshotEvery:       500,
		},
		Agents: Agents{
			LiquidityProviders: 10,
			NoiseTraders:       40,
			ShockMeanGapTicks:  15_000,
		},
		Logging: Logging{
			CSVPath:     "data/orders.csv",
			BufferLines: 8192,
			JournalDir:  "",
			AppLog:      "",
		},
		API: API{
			Enabled: false,
			Addr:    ":8089",
		},
	}
}

// LoadFile reads a YAML config, starting from defaults.
func LoadFile(path string) (Config, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// LoadFromEnv loads configuration from a .env file (if present) and
// environment variables, layered over the given base.
// Priority: ENV > .env file > base.
func LoadFromEnv(base Config, envPath string) Config {
	cfg := base

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	envInt64(&cfg.Market.BuyPrice, "SIM_BUY_PRICE")
	envInt64(&cfg.Market.TickSize, "SIM_TICK_SIZE")
	envInt64(&cfg.Market.StartupTicks, "SIM_STARTUP_TICKS")
	envInt64(&cfg.Market.EndTicks, "SIM_END_TICKS")
	envInt(&cfg.Market.MovingAverageWindow, "SIM_MA_WINDOW")
	envInt64(&cfg.Market.Seed, "SIM_SEED")
	envInt64(&cfg.Market.SnapshotEvery, "SIM_SNAPSHOT_EVERY")

	envInt(&cfg.Agents.LiquidityProviders, "SIM_LIQUIDITY_PROVIDERS")
	envInt(&cfg.Agents.NoiseTraders, "SIM_NOISE_TRADERS")

	if v := os.Getenv("SIM_CSV_PATH"); v != "" {
		cfg.Logging.CSVPath = v
	}
	envInt(&cfg.Logging.BufferLines, "SIM_CSV_BUFFER_LINES")
	if v := os.Getenv("SIM_JOURNAL_DIR"); v != "" {
		cfg.Logging.JournalDir = v
	}
	if v := os.Getenv("SIM_APP_LOG"); v != "" {
		cfg.Logging.AppLog = v
	}

	if v := os.Getenv("SIM_API_ADDR"); v != "" {
		cfg.API.Enabled = true
		cfg.API.Addr = v
	}

	return cfg
}

func envInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func envInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
