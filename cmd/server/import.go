package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/hazyhaar/facility-names/pkg/importer"
)

func cmdImport(args []string) {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	cfgPath := fs.String("config", "config.yaml", "path to config file")
	file := fs.String("file", "", "CSV (or ZIP containing a CSV) to import")
	url := fs.String("url", "", "URL of a CSV (or ZIP) to download and import")
	formatPath := fs.String("format", "", "YAML file describing delimiter, encoding and column names")
	country := fs.String("country", "", "ISO3 code for rows without a country column")
	verbose := fs.Bool("v", false, "debug logging")
	fs.Parse(args)

	if (*file == "") == (*url == "") {
		fmt.Fprintln(os.Stderr, "Usage:")
		fmt.Fprintln(os.Stderr, "  facility-names import -file <path> [-format <yaml>] [-country <ISO3>]")
		fmt.Fprintln(os.Stderr, "  facility-names import -url <url> [-format <yaml>] [-country <ISO3>]")
		os.Exit(1)
	}

	a := mustApp(*cfgPath, *verbose)
	defer a.Close()

	format := importer.DefaultFormat()
	if *formatPath != "" {
		f, err := importer.LoadFormat(*formatPath)
		if err != nil {
			a.logger.Error("import format", "error", err)
			a.Close()
			os.Exit(1)
		}
		format = f
	}
	if *country != "" {
		format.Country = *country
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Hour)
	defer cancel()

	var (
		stats importer.Stats
		err   error
	)
	if *file != "" {
		stats, err = importer.ImportFile(ctx, *file, format, a.store, a.logger)
	} else {
		stats, err = importer.ImportURL(ctx, *url, format, a.store, a.logger)
	}
	if err != nil {
		a.logger.Error("import failed", "error", err, "imported", stats.Imported)
		a.Close()
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(stats)
}
