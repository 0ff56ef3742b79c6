package main

import (
	"strings"
	"testing"
	"time"
)

func TestBuildQuery(t *testing.T) {
	tests := []struct {
		name     string
		cfg      Config
		contains []string
		args     int
		wantErr  bool
	}{
		{
			name:     "all snapshots",
			cfg:      Config{},
			contains: []string{"FROM dive_snapshots s JOIN dive_runs r", "s.last_depth", "ORDER BY r.created_at, s.step, s.compartment"},
		},
		{
			name:     "one run",
			cfg:      Config{RunID: "2b1f"},
			contains: []string{"WHERE r.id = $1"},
			args:     1,
		},
		{
			name:     "run and since",
			cfg:      Config{RunID: "2b1f", Since: "2024-06-01T00:00:00Z"},
			contains: []string{"r.id = $1 AND r.created_at >= $2"},
			args:     2,
		},
		{
			name:     "list",
			cfg:      Config{List: true, Since: "2024-06-01T00:00:00Z"},
			contains: []string{"FROM dive_runs r WHERE r.created_at >= $1 ORDER BY r.created_at", "r.profile"},
			args:     1,
		},
		{
			name:    "bad since",
			cfg:     Config{Since: "yesterday"},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args, err := buildQuery(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			for _, c := range tt.contains {
				if !strings.Contains(query, c) {
					t.Errorf("query %q missing %q", query, c)
				}
			}
			if len(args) != tt.args {
				t.Errorf("got %d args, want %d", len(args), tt.args)
			}
		})
	}
}

func TestFormatValue(t *testing.T) {
	id := [16]byte{0x6f, 0x1c, 0x3f, 0x4e, 0, 0, 0x40, 0, 0x80, 0, 0, 0, 0, 0, 0, 1}

	tests := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, ""},
		{"float", 1.25, "1.25"},
		{"int", int64(7), "7"},
		{"string", "Trimix", "Trimix"},
		{"time", time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC), "2024-06-01T12:00:00Z"},
		{"uuid", id, "6f1c3f4e-0000-4000-8000-000000000001"},
		{"jsonb", []any{map[string]any{"depth": 30.0}}, `[{"depth":30}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatValue(tt.in); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRecord(t *testing.T) {
	rec := record([]string{"step", "gas_type", "missing"}, map[string]any{"step": int32(3), "gas_type": "Nitrox"})
	if strings.Join(rec, ",") != "3,Nitrox," {
		t.Errorf("got %v", rec)
	}
}
