package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/hazyhaar/facility-names/pkg/backfill"
)

func cmdBackfill(args []string) {
	fs := flag.NewFlagSet("backfill", flag.ExitOnError)
	cfgPath := fs.String("config", "config.yaml", "path to config file")
	countries := fs.String("country", "", "comma-separated ISO3 codes to process (default: all)")
	dryRun := fs.Bool("dry-run", false, "compute and report without writing")
	globalDedupe := fs.Bool("global-dedupe", true, "also re-resolve duplicated slugs outside -country (overrides config)")
	verbose := fs.Bool("v", false, "debug logging")
	fs.Parse(args)

	a := mustApp(*cfgPath, *verbose)
	defer a.Close()

	opts := backfill.Options{DryRun: *dryRun, GlobalDedupe: a.cfg.GlobalDedupe}
	if flagSet(fs, "global-dedupe") {
		opts.GlobalDedupe = *globalDedupe
	}
	for _, c := range strings.Split(*countries, ",") {
		if c = strings.TrimSpace(c); c != "" {
			opts.Countries = append(opts.Countries, c)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	report, err := a.orch.Run(ctx, opts)
	if err != nil {
		a.logger.Error("backfill failed", "error", err)
		a.Close()
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(report)

	if !report.OK() {
		a.logger.Error("backfill finished with unresolved collisions", "count", len(report.Unresolved))
		a.Close()
		os.Exit(2)
	}
}

func flagSet(fs *flag.FlagSet, name string) bool {
	set := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}
