// Package importer loads facility source records from delimited files into a
// facility store.
package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/facility-names/pkg/facility"
)

// Upserter receives batches of parsed facilities.
type Upserter interface {
	Upsert(ctx context.Context, fs []facility.Facility) error
}

// Format describes the layout of an input file.
type Format struct {
	Delimiter     string `yaml:"delimiter"`      // default ","
	Encoding      string `yaml:"encoding"`       // any WHATWG label; default utf-8
	ListSeparator string `yaml:"list_separator"` // default ";"
	// Country is used for rows that have no country column value.
	Country string `yaml:"country"`
	// Columns maps a field name to a header name. Unmapped fields are looked
	// up under their own name.
	Columns   map[string]string `yaml:"columns"`
	BatchSize int               `yaml:"batch_size"`
}

// Field names accepted in Format.Columns.
const (
	ColID          = "facility_id"
	ColCountry     = "country_iso3"
	ColRawName     = "raw_name"
	ColOperator    = "operator_display"
	ColTown        = "town"
	ColRegion      = "region"
	ColPrimaryType = "primary_type"
	ColCommodities = "commodities"
	ColAliases     = "aliases"
	ColLat         = "lat"
	ColLon         = "lon"
	ColPrecision   = "precision"
)

var allColumns = []string{ColID, ColCountry, ColRawName, ColOperator, ColTown, ColRegion,
	ColPrimaryType, ColCommodities, ColAliases, ColLat, ColLon, ColPrecision}

// DefaultFormat is a comma separated UTF-8 file whose headers are the field names.
func DefaultFormat() Format {
	return Format{Delimiter: ",", Encoding: "utf-8", ListSeparator: ";", BatchSize: 500}
}

// LoadFormat reads a Format from a YAML file, filling defaults first.
func LoadFormat(path string) (Format, error) {
	f := DefaultFormat()
	data, err := os.ReadFile(path)
	if err != nil {
		return f, fmt.Errorf("read format: %w", err)
	}
	if err := yaml.Unmarshal(data, &f); err != nil {
		return f, fmt.Errorf("parse format %s: %w", path, err)
	}
	return f, nil
}

// Stats summarizes one import.
type Stats struct {
	Rows     int      `json:"rows"`
	Imported int      `json:"imported"`
	Rejected int      `json:"rejected"`
	Errors   []string `json:"errors,omitempty"`
}

const maxReportedErrors = 50

// ImportCSV parses r according to format and upserts valid rows in batches.
// Rows missing a mandatory field are rejected and counted; they do not stop
// the import. A nil logger uses slog.Default().
func ImportCSV(ctx context.Context, r io.Reader, format Format, w Upserter, logger *slog.Logger) (Stats, error) {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultFormat()
	if format.ListSeparator == "" {
		format.ListSeparator = def.ListSeparator
	}
	if format.BatchSize <= 0 {
		format.BatchSize = def.BatchSize
	}

	reader := r
	if enc := format.Encoding; enc != "" && !strings.EqualFold(enc, "utf-8") && !strings.EqualFold(enc, "utf8") {
		e, err := htmlindex.Get(enc)
		if err != nil {
			return Stats{}, fmt.Errorf("unsupported encoding %q: %w", enc, err)
		}
		reader = transform.NewReader(r, e.NewDecoder())
	}

	cr := csv.NewReader(reader)
	if delim := format.Delimiter; delim != "" {
		cr.Comma = []rune(delim)[0]
	}
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return Stats{}, fmt.Errorf("read header: %w", err)
	}
	idx, err := resolveColumns(header, format.Columns)
	if err != nil {
		return Stats{}, err
	}

	var (
		stats Stats
		batch []facility.Facility
	)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := w.Upsert(ctx, batch); err != nil {
			return fmt.Errorf("upsert batch ending at row %d: %w", stats.Rows, err)
		}
		stats.Imported += len(batch)
		batch = batch[:0]
		return nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return stats, fmt.Errorf("read row %d: %w", stats.Rows+2, err)
		}
		stats.Rows++

		f, err := parseRow(record, idx, format)
		if err == nil {
			err = f.Validate()
		}
		if err != nil {
			stats.Rejected++
			if len(stats.Errors) < maxReportedErrors {
				stats.Errors = append(stats.Errors, fmt.Sprintf("row %d: %v", stats.Rows+1, err))
			}
			logger.Warn("import: row rejected", "row", stats.Rows+1, "error", err)
			continue
		}
		batch = append(batch, f)
		if len(batch) >= format.BatchSize {
			if err := flush(); err != nil {
				return stats, err
			}
		}
	}
	if err := flush(); err != nil {
		return stats, err
	}
	logger.Info("import: done", "rows", stats.Rows, "imported", stats.Imported, "rejected", stats.Rejected)
	return stats, nil
}

func resolveColumns(header []string, mapping map[string]string) (map[string]int, error) {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		pos[strings.ToLower(h)] = i
	}
	idx := make(map[string]int)
	for _, col := range allColumns {
		name := col
		if m, ok := mapping[col]; ok && m != "" {
			name = m
		}
		if i, ok := pos[strings.ToLower(name)]; ok {
			idx[col] = i
		}
	}
	for _, col := range []string{ColID, ColRawName} {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("header has no %q column", col)
		}
	}
	return idx, nil
}

func parseRow(record []string, idx map[string]int, format Format) (facility.Facility, error) {
	get := func(col string) string {
		i, ok := idx[col]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	f := facility.Facility{
		ID: get(ColID),
		Source: facility.Source{
			CountryISO3:     facility.NormalizeCountry(get(ColCountry)),
			RawName:         get(ColRawName),
			OperatorDisplay: get(ColOperator),
			Town:            get(ColTown),
			Region:          get(ColRegion),
			PrimaryType:     get(ColPrimaryType),
			Commodities:     splitList(get(ColCommodities), format.ListSeparator),
			Aliases:         splitList(get(ColAliases), format.ListSeparator),
		},
	}
	if f.CountryISO3 == "" {
		f.CountryISO3 = facility.NormalizeCountry(format.Country)
	}

	lat, lon := get(ColLat), get(ColLon)
	if lat != "" && lon != "" {
		la, err := strconv.ParseFloat(lat, 64)
		if err != nil {
			return f, fmt.Errorf("lat %q: %w", lat, err)
		}
		lo, err := strconv.ParseFloat(lon, 64)
		if err != nil {
			return f, fmt.Errorf("lon %q: %w", lon, err)
		}
		f.Coordinates = &facility.Coordinates{Lat: la, Lon: lo, Precision: facility.ParsePrecision(get(ColPrecision))}
	}
	return f, nil
}

func splitList(s, sep string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
