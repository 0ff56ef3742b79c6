package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/chrissnell/divesync/internal/analysis"
	"github.com/chrissnell/divesync/internal/log"
	"github.com/chrissnell/divesync/internal/metrics"
	"github.com/chrissnell/divesync/internal/plot"
	"github.com/chrissnell/divesync/internal/server"
	"github.com/chrissnell/divesync/internal/storage"
	"github.com/chrissnell/divesync/pkg/config"
	"github.com/chrissnell/divesync/pkg/deco"
	"github.com/chrissnell/divesync/pkg/gas"
	"github.com/olekukonko/tablewriter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	return nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// parseLevel parses depth:time[:gas]. A missing gas uses defaultGas.
func parseLevel(arg string, defaultGas gas.Mix) (deco.Level, error) {
	parts := strings.SplitN(arg, ":", 3)
	if len(parts) < 2 {
		return deco.Level{}, fmt.Errorf("level %q must be depth:time[:gas]", arg)
	}

	depth, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return deco.Level{}, fmt.Errorf("level %q: bad depth: %w", arg, err)
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil {
		return deco.Level{}, fmt.Errorf("level %q: bad time: %w", arg, err)
	}

	mix := defaultGas
	if len(parts) == 3 {
		if mix, err = gas.ParseMix(parts[2]); err != nil {
			return deco.Level{}, fmt.Errorf("level %q: %w", arg, err)
		}
	}
	return deco.Level{Depth: depth, Time: minutes, Mix: mix}, nil
}

// buildProfile makes a profile from --level flags, or from -d/-t when no
// levels are given
func buildProfile(levels []string, depth float64, minutes int, mix gas.Mix) (*deco.Profile, error) {
	if len(levels) == 0 {
		if minutes <= 0 {
			return nil, errors.New("either --level or both --depth and --time are required")
		}
		return deco.SingleLevel(depth, minutes, mix), nil
	}

	p := deco.NewProfile()
	for _, arg := range levels {
		l, err := parseLevel(arg, mix)
		if err != nil {
			return nil, err
		}
		p.Levels = append(p.Levels, l)
	}
	return p, nil
}

func runProfile(cfg *config.ConfigData) error {
	variant, err := deco.ParseVariant(orDefault(*runAlgo, cfg.Defaults.Algorithm))
	if err != nil {
		return err
	}
	mix, err := gas.ParseMix(orDefault(*runGas, cfg.Defaults.Gas))
	if err != nil {
		return err
	}
	interval := *runInterval
	if interval == 0 {
		interval = cfg.Defaults.Interval
	}

	profile, err := buildProfile(*runLevels, *runDepth, *runTime, mix)
	if err != nil {
		return err
	}

	runner := deco.NewRunner(deco.New(variant), deco.WithLogger(log.Named("runner")))
	res, err := runner.Run(interval, profile)
	if err != nil {
		return err
	}
	run := storage.NewRun(variant, profile, res)

	fmt.Printf("Ran %d min profile with %s, %d snapshot sets every %d min\n",
		profile.TotalTime(), variant, res.Steps(), interval)

	if *runJSON {
		if err := writeJSON(os.Stdout, run); err != nil {
			return err
		}
	}

	if *runSummary {
		sum, err := analysis.Summarize(res)
		if err != nil {
			return err
		}
		printSummary(os.Stdout, sum)
	}

	if *runPlot {
		opts := plot.DefaultOptions()
		opts.Title = fmt.Sprintf("%s, %s", variant, profileTitle(profile))
		opts.Width, opts.Height = cfg.Plot.Width, cfg.Plot.Height
		opts.Ceiling = true

		dir := config.ExpandPath(cfg.Plot.Dir)
		path := plot.Path(dir, run.CreatedAt)
		if err := plot.Render(res, path, opts); err != nil {
			return fmt.Errorf("rendering plot: %w", err)
		}
		fmt.Printf("Plot written to %s\n", path)
	}

	sel := storeSelection{csv: *runCSV, sqlite: *runSQLite}
	if *runStore {
		sel = allStores()
	}
	if !sel.any() {
		return nil
	}

	ctx := context.Background()
	stores, err := openStores(ctx, cfg, sel)
	if err != nil {
		return err
	}
	defer stores.Close()

	var errs []error
	for _, s := range stores.Stores() {
		loc, err := s.StoreRun(ctx, run)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		fmt.Printf("Stored run %s in %s: %s\n", run.ID, s.Name(), loc)
	}
	return errors.Join(errs...)
}

func profileTitle(p *deco.Profile) string {
	parts := make([]string, len(p.Levels))
	for i, l := range p.Levels {
		parts[i] = fmt.Sprintf("%gm/%dmin on %s", l.Depth, l.Time, l.Mix.Recipe())
	}
	return strings.Join(parts, ", ")
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printSummary(w io.Writer, sum *analysis.Summary) {
	table := tablewriter.NewWriter(w)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	table.SetHeader([]string{"cpt", "peak ATA", "mean ATA", "final ATA", "rate ATA/min", "ceiling ATA", "% M-value"})
	for _, c := range sum.Compartments {
		marker := ""
		if c.Compartment == sum.Controlling {
			marker = "*"
		}
		table.Append([]string{
			fmt.Sprintf("%d%s", c.Compartment+1, marker),
			fmt.Sprintf("%.3f", c.PeakLoading),
			fmt.Sprintf("%.3f", c.MeanLoading),
			fmt.Sprintf("%.3f", c.FinalLoading),
			fmt.Sprintf("%.4f", c.LoadingRate),
			fmt.Sprintf("%.3f", c.PeakCeiling),
			fmt.Sprintf("%.1f", c.PeakMValuePct),
		})
	}
	table.Render()

	ctrl := sum.ControllingCompartment()
	if sum.NeedsDecompression() {
		fmt.Fprintf(w, "Controlling compartment %d requires a ceiling of %.1f m\n", ctrl.Compartment+1, ctrl.PeakCeilingDepth)
	} else {
		fmt.Fprintf(w, "No decompression required; compartment %d is closest to its limit\n", ctrl.Compartment+1)
	}
}

func computeNDL(cfg *config.ConfigData) error {
	algo, err := deco.Lookup(*ndlAlgo)
	if err != nil {
		return err
	}
	mix, err := gas.ParseMix(orDefault(*ndlGas, cfg.Defaults.Gas))
	if err != nil {
		return err
	}

	ndl, err := algo.ComputeNDL(deco.SingleLevel(*ndlDepth, *ndlTime, mix))
	if err != nil {
		return err
	}

	fmt.Printf("No decompression limit for depth: %gm is %d, with algorithm: %s\n", *ndlDepth, ndl, algo.Variant())
	return nil
}

func computeDeco(cfg *config.ConfigData) error {
	algo, err := deco.Lookup(*decoAlgo)
	if err != nil {
		return err
	}
	mix, err := gas.ParseMix(orDefault(*decoGas, cfg.Defaults.Gas))
	if err != nil {
		return err
	}

	stops, err := algo.ComputeDecoStops(deco.SingleLevel(*decoDepth, *decoTime, mix))
	if err != nil {
		return fmt.Errorf("deco stops with %s: %w", algo.Variant(), err)
	}
	for _, s := range stops {
		fmt.Printf("%gm for %d min\n", s.Depth, s.Time)
	}
	return nil
}

func listAlgorithms() {
	for _, v := range deco.Variants() {
		status := ""
		if v.Model != deco.ModelZHL16 {
			status = " (not implemented)"
		}
		fmt.Printf("%s%s\n", v, status)
	}
}

func serve(cfg *config.ConfigData) error {
	if *servePort != 0 {
		cfg.Server.Port = *servePort
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stores, err := openStores(ctx, cfg, allStores())
	if err != nil {
		return err
	}
	defer stores.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	srv, err := server.New(cfg.Server, cfg.Defaults,
		server.WithLogger(log.Named("server")),
		server.WithMetrics(metrics.New(reg), reg),
		server.WithStore(stores),
		server.WithHealth(monitorStores(ctx, stores)),
	)
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	if err := srv.Start(ctx, &wg); err != nil {
		return err
	}

	<-ctx.Done()
	wg.Wait()
	log.Info("divesync server stopped")
	return nil
}
