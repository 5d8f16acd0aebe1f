package params

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sim.yaml")
	yaml := `
market:
  buy_price: 5000
  seed: 7
logging:
  csv_path: out.csv
`
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Market.BuyPrice != 5000 {
		t.Errorf("buy price = %d, want 5000", cfg.Market.BuyPrice)
	}
	if cfg.Market.Seed != 7 {
		t.Errorf("seed = %d, want 7", cfg.Market.Seed)
	}
	if cfg.Logging.CSVPath != "out.csv" {
		t.Errorf("csv path = %q", cfg.Logging.CSVPath)
	}
	// Untouched keys keep their defaults.
	if cfg.Market.TickSize != Default().Market.TickSize {
		t.Errorf("tick size = %d, want default", cfg.Market.TickSize)
	}
}

func TestLoadFileMissing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("SIM_BUY_PRICE", "20000")
	t.Setenv("SIM_END_TICKS", "1234")
	t.Setenv("SIM_API_ADDR", ":9001")
	t.Setenv("SIM_MA_WINDOW", "bogus")

	cfg := LoadFromEnv(Default(), "")
	if cfg.Market.BuyPrice != 20000 {
		t.Errorf("buy price = %d, want 20000", cfg.Market.BuyPrice)
	}
	if cfg.Market.EndTicks != 1234 {
		t.Errorf("end ticks = %d, want 1234", cfg.Market.EndTicks)
	}
	if !cfg.API.Enabled || cfg.API.Addr != ":9001" {
		t.Errorf("api = %+v, want enabled on :9001", cfg.API)
	}
	// Unparseable values fall back to the base.
	if cfg.Market.MovingAverageWindow != Default().Market.MovingAverageWindow {
		t.Errorf("ma window = %d, want default", cfg.Market.MovingAverageWindow)
	}
}
