package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/facility-names/pkg/backfill"
	"github.com/hazyhaar/facility-names/pkg/collision"
	"github.com/hazyhaar/facility-names/pkg/naming"
	"github.com/hazyhaar/facility-names/pkg/slug"
	"github.com/hazyhaar/facility-names/pkg/store"
)

const version = "0.3.0"

type config struct {
	Addr                 string `yaml:"addr"`
	DBPath               string `yaml:"db_path"`
	TypesFile            string `yaml:"types_file"`
	RemoveParentheticals bool   `yaml:"remove_parentheticals"`
	GeohashPrecision     int    `yaml:"geohash_precision"`
	Workers              int    `yaml:"workers"`
	GlobalDedupe         bool   `yaml:"global_dedupe"`
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		cmdServe(os.Args[2:])
	case "backfill":
		cmdBackfill(os.Args[2:])
	case "import":
		cmdImport(os.Args[2:])
	case "mcp":
		cmdMCP(os.Args[2:])
	case "version":
		fmt.Println(version)
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: facility-names <command> [flags]

Commands:
  serve      Start the HTTP server
  backfill   Synthesize names and slugs for stored facilities
  import     Load facility source records from a CSV file or URL
  mcp        Serve the MCP tools on stdio
  version    Print the version
`)
}

func defaultConfig() config {
	return config{
		Addr:                 ":8421",
		DBPath:               "facilities.db",
		RemoveParentheticals: true,
		GeohashPrecision:     collision.DefaultGeohashPrecision,
		GlobalDedupe:         true,
	}
}

// loadConfig reads the YAML config over the defaults. A missing file means defaults.
func loadConfig(path string, logger *slog.Logger) (config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Info("no config file, using defaults", "path", path)
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// app holds the components shared by every subcommand.
type app struct {
	cfg     config
	logger  *slog.Logger
	store   *store.SQLite
	orch    *backfill.Orchestrator
	metrics *prometheus.Registry
}

func newApp(cfg config, logger *slog.Logger) (*app, error) {
	vocab := naming.DefaultVocabulary()
	if cfg.TypesFile != "" {
		v, err := naming.LoadVocabulary(cfg.TypesFile)
		if err != nil {
			return nil, err
		}
		vocab = v
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	slugOpts := slug.Options{RemoveParentheticals: cfg.RemoveParentheticals}
	orch := backfill.New(backfill.Config{
		Store: st,
		Synthesizer: naming.NewSynthesizer(naming.Options{
			RemoveParentheticals: cfg.RemoveParentheticals,
			Vocabulary:           vocab,
		}),
		Resolver:    collision.NewResolver(collision.Options{GeohashPrecision: cfg.GeohashPrecision}),
		SlugOptions: slugOpts,
		Workers:     cfg.Workers,
		Metrics:     backfill.NewMetrics(reg),
		Logger:      logger,
	})

	logger.Info("facility store opened", "path", cfg.DBPath, "types", vocab.Len())
	return &app{cfg: cfg, logger: logger, store: st, orch: orch, metrics: reg}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

// mustApp loads config and builds the app, exiting on failure.
func mustApp(cfgPath string, verbose bool) *app {
	logger := newLogger(verbose)
	cfg, err := loadConfig(cfgPath, logger)
	if err != nil {
		logger.Error("config", "error", err)
		os.Exit(1)
	}
	a, err := newApp(cfg, logger)
	if err != nil {
		logger.Error("startup", "error", err)
		os.Exit(1)
	}
	return a
}
