// config-convert moves a divesync configuration between a YAML file and a
// SQLite settings database.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/chrissnell/divesync/pkg/config"
)

func main() {
	var (
		yamlFile   = flag.String("yaml", "", "Path to YAML configuration file (required)")
		sqliteFile = flag.String("sqlite", "", "Path to SQLite database file (required)")
		toYAML     = flag.Bool("to-yaml", false, "Convert from SQLite to YAML instead")
		force      = flag.Bool("force", false, "Overwrite an existing target file")
		dryRun     = flag.Bool("dry-run", false, "Show what would be done without executing")
	)
	flag.Parse()

	if *yamlFile == "" || *sqliteFile == "" {
		fmt.Fprintf(os.Stderr, "Usage: %s -yaml <config.yaml> -sqlite <config.db> [-to-yaml]\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	src, dst := *yamlFile, *sqliteFile
	if *toYAML {
		src, dst = dst, src
	}

	if _, err := os.Stat(src); os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Error: source file does not exist: %s\n", src)
		os.Exit(1)
	}

	if _, err := os.Stat(dst); err == nil && !*force {
		fmt.Fprintf(os.Stderr, "Error: target file already exists: %s\n", dst)
		fmt.Fprintf(os.Stderr, "Use -force to overwrite or choose a different filename\n")
		os.Exit(1)
	}

	fmt.Printf("Converting configuration...\n")
	fmt.Printf("  Source: %s\n", src)
	fmt.Printf("  Target: %s\n", dst)

	if *dryRun {
		fmt.Println("DRY RUN - No changes will be made")
	}

	var err error
	if *toYAML {
		err = sqliteToYAML(*sqliteFile, *yamlFile, *dryRun, *force)
	} else {
		err = yamlToSQLite(*yamlFile, *sqliteFile, *dryRun, *force)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *dryRun {
		fmt.Println("DRY RUN complete - nothing written")
		return
	}
	fmt.Printf("Conversion completed successfully: %s\n", dst)
}

func yamlToSQLite(yamlFile, sqliteFile string, dryRun, force bool) error {
	cfg, err := loadValidated(config.NewYAMLProvider(yamlFile))
	if err != nil {
		return fmt.Errorf("loading YAML configuration: %w", err)
	}
	printConfigSummary(os.Stdout, cfg)
	if dryRun {
		return nil
	}

	if force {
		if err := os.Remove(sqliteFile); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing existing database: %w", err)
		}
	}

	provider, err := config.NewSQLiteProvider(sqliteFile)
	if err != nil {
		return err
	}
	defer provider.Close()

	if err := provider.SaveConfig(cfg); err != nil {
		return fmt.Errorf("saving configuration: %w", err)
	}
	return nil
}

func sqliteToYAML(sqliteFile, yamlFile string, dryRun, force bool) error {
	provider, err := config.NewSQLiteProvider(sqliteFile)
	if err != nil {
		return err
	}
	defer provider.Close()

	cfg, err := loadValidated(provider)
	if err != nil {
		return fmt.Errorf("loading SQLite configuration: %w", err)
	}
	printConfigSummary(os.Stdout, cfg)
	if dryRun {
		return nil
	}

	return config.WriteYAML(yamlFile, cfg)
}

func loadValidated(p config.ConfigProvider) (*config.ConfigData, error) {
	cfg, err := p.LoadConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func printConfigSummary(w io.Writer, cfg *config.ConfigData) {
	fmt.Fprintln(w, "\nConfiguration summary:")
	fmt.Fprintf(w, "  Defaults: algorithm=%s interval=%d gas=%s\n",
		cfg.Defaults.Algorithm, cfg.Defaults.Interval, cfg.Defaults.Gas)

	fmt.Fprintf(w, "  Storage: data_dir=%s\n", cfg.Storage.DataDir)
	if cfg.Storage.CSV {
		fmt.Fprintln(w, "    - csv")
	}
	if s := cfg.Storage.SQLite; s != nil {
		fmt.Fprintf(w, "    - sqlite (%s)\n", s.Path)
	}
	if cfg.Storage.TimescaleDB != nil {
		fmt.Fprintln(w, "    - timescaledb")
	}
	if a := cfg.Storage.Archive; a != nil {
		fmt.Fprintf(w, "    - archive (%s/%s)\n", a.Endpoint, a.Bucket)
	}

	fmt.Fprintf(w, "  Server: %s:%d, ndl cache %d, store runs %t\n",
		cfg.Server.ListenAddr, cfg.Server.Port, cfg.Server.NDLCacheSize, cfg.Server.StoreRuns)
	fmt.Fprintf(w, "  Plot: %s (%.1fx%.1f in)\n", cfg.Plot.Dir, cfg.Plot.Width, cfg.Plot.Height)
	fmt.Fprintln(w)
}
