package config

import (
	"path/filepath"
	"testing"
)

func TestLoadConfigMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	def := DefaultConfig()
	if cfg.Block.Angular != def.Block.Angular || cfg.Processing.Iterations != def.Processing.Iterations {
		t.Error("missing file did not fall back to defaults")
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "nlsam.yaml")

	cfg := DefaultConfig()
	cfg.Block.SizeZ = 5
	cfg.Processing.Iterations = 3
	cfg.Processing.GreedySubsampler = false
	cfg.Processing.Seed = 42

	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}
	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if loaded.Block.SizeZ != 5 || loaded.Processing.Iterations != 3 ||
		loaded.Processing.GreedySubsampler || loaded.Processing.Seed != 42 {
		t.Errorf("round trip lost values: %+v", loaded)
	}
}

func TestParamsConversion(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Block.SizeX = 2
	cfg.Block.Angular = 4
	cfg.Processing.NumCores = 3

	p := cfg.Params()
	if p.BlockSize != [4]int{2, 3, 3, 4} {
		t.Errorf("BlockSize = %v, want [2 3 3 4]", p.BlockSize)
	}
	if p.Workers != 3 || !p.Greedy || p.NIter != 10 {
		t.Errorf("unexpected params: %+v", p)
	}
}
