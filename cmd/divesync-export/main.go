// divesync-export dumps stored compartment snapshots from Postgres or
// TimescaleDB to CSV or JSON lines.
package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/chrissnell/divesync/internal/database"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ExportFormat string

const (
	FormatCSV  ExportFormat = "csv"
	FormatJSON ExportFormat = "json"
)

type Config struct {
	DSN    string
	Host   string
	Port   int
	DB     string
	User   string
	Pass   string
	SSL    string
	Format ExportFormat
	Output string
	RunID  string
	Since  string
	List   bool
}

func main() {
	var cfg Config

	flag.StringVar(&cfg.DSN, "dsn", os.Getenv("DIVESYNC_STORAGE_TIMESCALEDB_CONNECTION_STRING"), "Full connection string; overrides the individual connection flags")
	flag.StringVar(&cfg.Host, "host", "localhost", "Database host")
	flag.IntVar(&cfg.Port, "port", 5432, "Database port")
	flag.StringVar(&cfg.DB, "database", "divesync", "Database name")
	flag.StringVar(&cfg.User, "user", "postgres", "Database user")
	flag.StringVar(&cfg.Pass, "password", "", "Database password")
	flag.StringVar(&cfg.SSL, "sslmode", "disable", "SSL mode (disable, require, etc)")
	formatStr := flag.String("format", "csv", "Export format: csv or json")
	flag.StringVar(&cfg.Output, "output", "-", "Output file, or - for stdout")
	flag.StringVar(&cfg.RunID, "run", "", "Only export snapshots of this run ID")
	flag.StringVar(&cfg.Since, "since", "", "Only export runs created at or after this RFC3339 time")
	flag.BoolVar(&cfg.List, "list", false, "List stored runs instead of exporting snapshots")
	flag.Parse()

	switch ExportFormat(*formatStr) {
	case FormatCSV, FormatJSON:
		cfg.Format = ExportFormat(*formatStr)
	default:
		log.Fatalf("Invalid format: %s. Must be csv or json", *formatStr)
	}

	connStr := cfg.DSN
	if connStr == "" {
		connStr = fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
			cfg.Host, cfg.Port, cfg.DB, cfg.User, cfg.Pass, cfg.SSL)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	out := io.Writer(os.Stdout)
	if cfg.Output != "-" {
		f, err := os.Create(cfg.Output)
		if err != nil {
			log.Fatalf("Failed to create output file: %v", err)
		}
		defer f.Close()
		out = f
	}

	query, args, err := buildQuery(cfg)
	if err != nil {
		log.Fatal(err)
	}

	count, err := export(ctx, pool, out, cfg.Format, query, args...)
	if err != nil {
		log.Fatalf("Export failed: %v", err)
	}
	log.Printf("Exported %d rows", count)
}

// buildQuery returns the snapshot or run listing query with its arguments
func buildQuery(cfg Config) (string, []any, error) {
	var (
		where []string
		args  []any
	)
	if cfg.RunID != "" {
		args = append(args, cfg.RunID)
		where = append(where, fmt.Sprintf("r.id = $%d", len(args)))
	}
	if cfg.Since != "" {
		since, err := time.Parse(time.RFC3339, cfg.Since)
		if err != nil {
			return "", nil, fmt.Errorf("invalid -since %q: %w", cfg.Since, err)
		}
		args = append(args, since)
		where = append(where, fmt.Sprintf("r.created_at >= $%d", len(args)))
	}

	var b strings.Builder
	if cfg.List {
		fmt.Fprintf(&b, "SELECT r.id, r.created_at, r.algorithm, r.interval_minutes, r.profile FROM %s r", database.RunsTable)
	} else {
		cols := make([]string, len(database.SnapshotColumns))
		for i, c := range database.SnapshotColumns {
			cols[i] = "s." + c
		}
		fmt.Fprintf(&b, "SELECT %s FROM %s s JOIN %s r ON r.id = s.run_id",
			strings.Join(cols, ", "), database.SnapshotsTable, database.RunsTable)
	}
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	if cfg.List {
		b.WriteString(" ORDER BY r.created_at")
	} else {
		b.WriteString(" ORDER BY r.created_at, s.step, s.compartment")
	}
	return b.String(), args, nil
}

func export(ctx context.Context, pool *pgxpool.Pool, w io.Writer, format ExportFormat, query string, args ...any) (int64, error) {
	rows, err := pool.Query(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	columns := make([]string, len(fieldDescs))
	for i, fd := range fieldDescs {
		columns[i] = fd.Name
	}

	var (
		csvw *csv.Writer
		enc  *json.Encoder
	)
	switch format {
	case FormatCSV:
		csvw = csv.NewWriter(w)
		defer csvw.Flush()
		if err := csvw.Write(columns); err != nil {
			return 0, fmt.Errorf("failed to write headers: %w", err)
		}
	case FormatJSON:
		enc = json.NewEncoder(w)
	}

	var count int64
	for rows.Next() {
		values, err := pgx.RowToMap(rows)
		if err != nil {
			return count, fmt.Errorf("failed to scan row: %w", err)
		}

		if enc != nil {
			if err := enc.Encode(values); err != nil {
				return count, fmt.Errorf("failed to write record: %w", err)
			}
		} else {
			if err := csvw.Write(record(columns, values)); err != nil {
				return count, fmt.Errorf("failed to write record: %w", err)
			}
		}

		count++
		if count%100000 == 0 {
			log.Printf("Processed %d rows...", count)
		}
	}

	if err := rows.Err(); err != nil {
		return count, fmt.Errorf("row iteration error: %w", err)
	}
	return count, nil
}

// record orders a row map by columns and formats each value for CSV
func record(columns []string, values map[string]any) []string {
	rec := make([]string, len(columns))
	for i, col := range columns {
		rec[i] = formatValue(values[col])
	}
	return rec
}

func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case [16]byte:
		return fmt.Sprintf("%x-%x-%x-%x-%x", t[0:4], t[4:6], t[6:8], t[8:10], t[10:16])
	case []byte:
		return string(t)
	case map[string]any, []any:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(b)
	default:
		return fmt.Sprintf("%v", t)
	}
}
