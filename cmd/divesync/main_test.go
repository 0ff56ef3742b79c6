package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chrissnell/divesync/internal/analysis"
	"github.com/chrissnell/divesync/pkg/config"
	"github.com/chrissnell/divesync/pkg/deco"
	"github.com/chrissnell/divesync/pkg/gas"
	"github.com/chrissnell/divesync/pkg/zhl16"
)

func TestParseLevel(t *testing.T) {
	air := gas.Air()

	tests := []struct {
		arg     string
		depth   float64
		minutes int
		recipe  string
		wantErr bool
	}{
		{"30:20", 30, 20, "21", false},
		{"12.5:5:32", 12.5, 5, "32", false},
		{"40:10:18,45", 40, 10, "18,45", false},
		{"30", 0, 0, "", true},
		{"x:10", 0, 0, "", true},
		{"30:ten", 0, 0, "", true},
		{"30:10:bogus", 0, 0, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			l, err := parseLevel(tt.arg, air)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if l.Depth != tt.depth || l.Time != tt.minutes || l.Mix.Recipe() != tt.recipe {
				t.Errorf("got %+v (%s)", l, l.Mix.Recipe())
			}
		})
	}
}

func TestBuildProfile(t *testing.T) {
	air := gas.Air()

	p, err := buildProfile(nil, 18, 40, air)
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Levels) != 1 || p.TotalTime() != 40 {
		t.Errorf("single level profile %+v", p)
	}

	p, err = buildProfile([]string{"30:10:21,30", "15:5:50"}, 99, 99, air)
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Levels) != 2 || p.TotalTime() != 15 || p.Levels[1].Mix.Type() != gas.Nitrox {
		t.Errorf("levels should win over -d/-t: %+v", p)
	}

	if _, err := buildProfile(nil, 18, 0, air); err == nil {
		t.Error("missing time should fail")
	}
}

func TestPrintSummary(t *testing.T) {
	res, err := deco.NewRunner(deco.New(deco.ZHL16(zhl16.VariantA))).Run(5, deco.SingleLevel(40, 30, gas.Air()))
	if err != nil {
		t.Fatal(err)
	}
	sum, err := analysis.Summarize(res)
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	printSummary(&buf, sum)
	out := buf.String()

	rows := 0
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "|") {
			rows++
		}
	}
	if rows != zhl16.NumCompartments+1 {
		t.Errorf("expected a header and 16 compartment rows, got %d:\n%s", rows, out)
	}
	if !strings.Contains(out, "% M-value") {
		t.Errorf("header missing:\n%s", out)
	}
	if !strings.Contains(out, "requires a ceiling") {
		t.Errorf("30 min at 40 m needs decompression:\n%s", out)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig("", "yaml")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Defaults.Algorithm != "zhl16-a" {
		t.Errorf("unexpected defaults %+v", cfg.Defaults)
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv(config.EnvName("defaults.algorithm"), "zhl16-c")

	cfg, err := loadConfig("", "yaml")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Defaults.Algorithm != "zhl16-c" {
		t.Errorf("env override not applied: %q", cfg.Defaults.Algorithm)
	}
}

func TestLoadConfigYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "divesync.yaml")
	yaml := "defaults:\n  algorithm: zhl16-b\n  interval: 2\n  gas: \"32\"\n"
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadConfig(path, "yaml")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Defaults.Algorithm != "zhl16-b" || cfg.Defaults.Interval != 2 || cfg.Server.Port != 8080 {
		t.Errorf("unexpected config %+v", cfg)
	}

	if _, err := loadConfig(path, "toml"); err == nil {
		t.Error("unknown backend should fail")
	}
}

func TestOpenStores(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.DataDir = t.TempDir()

	m, err := openStores(context.Background(), cfg, storeSelection{csv: true, sqlite: true})
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	if m.Len() != 2 {
		t.Fatalf("opened %d stores", m.Len())
	}
	if _, ok := m.Reader(); !ok {
		t.Error("sqlite store should be able to read runs back")
	}
	if _, err := os.Stat(filepath.Join(cfg.Storage.DataDir, "runs.db")); err != nil {
		t.Errorf("sqlite database not created: %v", err)
	}

	// timescaledb and archive are skipped when not configured
	m2, err := openStores(context.Background(), cfg, storeSelection{timescaledb: true, archive: true})
	if err != nil {
		t.Fatal(err)
	}
	if m2.Len() != 0 {
		t.Errorf("unconfigured stores opened: %d", m2.Len())
	}
}
