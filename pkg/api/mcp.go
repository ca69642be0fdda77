package api

import (
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hazyhaar/facility-names/pkg/backfill"
	"github.com/hazyhaar/facility-names/pkg/facility"
	"github.com/hazyhaar/facility-names/pkg/kit"
)

// RegisterMCPTools registers the facility naming tools on the server.
func RegisterMCPTools(srv *server.MCPServer, svc Service) {
	eps := newEndpoints(svc)
	registerPreview(srv, eps.preview)
	registerLookupSlug(srv, eps.lookupSlug)
	registerRunBackfill(srv, eps.backfill)
}

func registerPreview(srv *server.MCPServer, ep kit.Endpoint) {
	tool := mcp.NewTool("preview_facility_name",
		mcp.WithDescription("Synthesize the canonical name, base slug and confidence of a facility from its source fields, without reserving anything."),
		mcp.WithString("raw_name", mcp.Required(), mcp.Description("Name as found in the source")),
		mcp.WithString("country_iso3", mcp.Description("ISO 3166-1 alpha-3 country code")),
		mcp.WithString("operator", mcp.Description("Operator display name")),
		mcp.WithString("town", mcp.Description("Nearest town")),
		mcp.WithString("region", mcp.Description("Region or province")),
		mcp.WithString("primary_type", mcp.Description("Facility type (mine, smelter, ...)")),
		mcp.WithString("commodities", mcp.Description("Comma-separated commodities, most important first")),
	)

	kit.RegisterMCPTool(srv, tool, ep, func(args kit.Args) (any, error) {
		src := facility.Source{
			CountryISO3:     facility.NormalizeCountry(args.String("country_iso3")),
			RawName:         args.String("raw_name"),
			OperatorDisplay: args.String("operator"),
			Town:            args.String("town"),
			Region:          args.String("region"),
			PrimaryType:     args.String("primary_type"),
			Commodities:     splitList(args.String("commodities")),
		}
		if src.RawName == "" {
			return nil, fmt.Errorf("raw_name is required")
		}
		return &previewReq{Source: src}, nil
	})
}

func registerLookupSlug(srv *server.MCPServer, ep kit.Endpoint) {
	tool := mcp.NewTool("lookup_slug",
		mcp.WithDescription("Return the facility that owns a slug."),
		mcp.WithString("slug", mcp.Required(), mcp.Description("Facility slug, e.g. karee-mine-rustenburg")),
	)

	kit.RegisterMCPTool(srv, tool, ep, func(args kit.Args) (any, error) {
		return &lookupSlugReq{Slug: args.String("slug")}, nil
	})
}

func registerRunBackfill(srv *server.MCPServer, ep kit.Endpoint) {
	tool := mcp.NewTool("run_backfill",
		mcp.WithDescription("Run the naming backfill and return its report. Dry run unless apply is true."),
		mcp.WithString("countries", mcp.Description("Comma-separated ISO3 codes; empty means all countries")),
		mcp.WithBoolean("apply", mcp.Description("Persist derived attributes (default false)")),
		mcp.WithBoolean("global_dedupe", mcp.Description("Also re-resolve facilities in other countries whose persisted slug is duplicated (default true)")),
	)

	kit.RegisterMCPTool(srv, tool, ep, func(args kit.Args) (any, error) {
		return &backfillReq{Options: backfill.Options{
			Countries:    splitList(args.String("countries")),
			DryRun:       !args.Bool("apply", false),
			GlobalDedupe: args.Bool("global_dedupe", true),
		}}, nil
	})
}
