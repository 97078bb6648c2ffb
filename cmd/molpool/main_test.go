package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/molpool/molpool/internal/config"
)

func TestLoadConfig_FlagsOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "molpool.yaml")
	if err := os.WriteFile(path, []byte("mode: fit\ndata_dir: /from/file\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("MOLPOOL_DATA_DIR", "/from/env")

	cfg, err := loadConfig(path, "", "/trained", "predict")
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if cfg.DataDir != "/from/env" {
		t.Errorf("data dir = %s, want env value", cfg.DataDir)
	}
	if cfg.Mode != config.ModePredict || cfg.TrainedDir != "/trained" {
		t.Errorf("mode %s trained %s", cfg.Mode, cfg.TrainedDir)
	}

	cfg, err = loadConfig(path, "/from/flag", "", "")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DataDir != "/from/flag" || cfg.Mode != config.ModeFit {
		t.Errorf("data dir %s mode %s", cfg.DataDir, cfg.Mode)
	}
}
