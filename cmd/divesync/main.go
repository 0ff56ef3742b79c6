package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/chrissnell/divesync/internal/log"
	"github.com/chrissnell/divesync/pkg/config"
	"gopkg.in/alecthomas/kingpin.v2"
)

const version = "0.3-" + runtime.GOOS + "/" + runtime.GOARCH

var (
	app        = kingpin.New("divesync", "Dive decompression engine: run profiles, compute no-decompression limits and serve results over HTTP.")
	cfgFile    = app.Flag("config", "Path to configuration source (YAML file or SQLite database). Optional.").Short('c').String()
	cfgBackend = app.Flag("config-backend", "Configuration backend: 'yaml' or 'sqlite'").Default("yaml").Enum("yaml", "sqlite")
	envFiles   = app.Flag("env-file", "dotenv file(s) to load DIVESYNC_* overrides from").Default(".env").Strings()
	debug      = app.Flag("debug", "Turn on debugging output").Bool()
	logFile    = app.Flag("log-file", "Also write JSON logs to this file, rotated").String()

	runCmd      = app.Command("run", "Run a dive profile and report tissue loading")
	runDepth    = runCmd.Flag("depth", "Dive depth in metres").Short('d').Float64()
	runTime     = runCmd.Flag("time", "Dive time in minutes").Short('t').Int()
	runLevels   = runCmd.Flag("level", "Profile level as depth:time[:gas], repeatable, instead of -d/-t").Short('l').Strings()
	runAlgo     = runCmd.Flag("algorithm", "Decompression algorithm (zhl16-a, zhl16-b, zhl16-c, dsat)").Short('a').String()
	runGas      = runCmd.Flag("gas", "Gas recipe: O2 percent, or O2,He percents for trimix").Short('g').String()
	runInterval = runCmd.Flag("interval", "Snapshot interval in minutes").Short('i').Int()
	runCSV      = runCmd.Flag("csv", "Write <data-dir>/<timestamp>-<run id>/result.csv").Bool()
	runSQLite   = runCmd.Flag("sqlite", "Store the run in the configured SQLite database").Bool()
	runStore    = runCmd.Flag("store", "Store the run in every configured store").Bool()
	runPlot     = runCmd.Flag("plot", "Render a PNG chart into the plot directory").Bool()
	runSummary  = runCmd.Flag("summary", "Print a per-compartment summary").Bool()
	runJSON     = runCmd.Flag("json", "Print the full result as JSON").Bool()

	ndlCmd   = app.Command("ndl", "Compute the no-decompression limit for a depth")
	ndlDepth = ndlCmd.Flag("depth", "Dive depth in metres").Short('d').Required().Float64()
	ndlTime  = ndlCmd.Flag("time", "Minutes already spent at depth").Short('t').Default("0").Int()
	ndlAlgo  = ndlCmd.Flag("algorithm", "Decompression algorithm").Short('a').Required().String()
	ndlGas   = ndlCmd.Flag("gas", "Gas recipe").Short('g').String()

	decoCmd   = app.Command("deco", "Compute decompression stops")
	decoDepth = decoCmd.Flag("depth", "Dive depth in metres").Short('d').Required().Float64()
	decoTime  = decoCmd.Flag("time", "Dive time in minutes").Short('t').Required().Int()
	decoAlgo  = decoCmd.Flag("algorithm", "Decompression algorithm").Short('a').Required().String()
	decoGas   = decoCmd.Flag("gas", "Gas recipe").Short('g').String()

	serveCmd  = app.Command("serve", "Serve the HTTP API")
	servePort = serveCmd.Flag("port", "Listen port, overriding the configuration").Int()

	algorithmsCmd = app.Command("algorithms", "List the available algorithms")

	versionCmd = app.Command("version", "Show version and exit")
)

func main() {
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	if command == versionCmd.FullCommand() {
		fmt.Printf("divesync %s\n", version)
		return
	}

	if err := config.LoadDotEnv(*envFiles...); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load environment files: %v\n", err)
		os.Exit(1)
	}

	cfg, err := loadConfig(*cfgFile, *cfgBackend)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := initLogging(cfg); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	switch command {
	case runCmd.FullCommand():
		err = runProfile(cfg)
	case ndlCmd.FullCommand():
		err = computeNDL(cfg)
	case decoCmd.FullCommand():
		err = computeDeco(cfg)
	case serveCmd.FullCommand():
		err = serve(cfg)
	case algorithmsCmd.FullCommand():
		listAlgorithms()
	}

	if err != nil {
		log.Errorf("%s: %v", command, err)
		log.Sync()
		os.Exit(1)
	}
}

func initLogging(cfg *config.ConfigData) error {
	dbg := *debug || cfg.Logging.Debug
	path := *logFile
	if path == "" {
		path = cfg.Logging.File
	}
	if path == "" {
		return log.Init(dbg)
	}
	return log.InitWithFile(dbg, log.FileOptions{
		Path:       config.ExpandPath(path),
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
}
