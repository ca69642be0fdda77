package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hazyhaar/facility-names/pkg/backfill"
	"github.com/hazyhaar/facility-names/pkg/facility"
	"github.com/hazyhaar/facility-names/pkg/kit"
	"github.com/hazyhaar/facility-names/pkg/slug"
)

// Lookup is the read surface of the facility store used by the API.
type Lookup interface {
	Get(ctx context.Context, id string) (facility.Facility, error)
	BySlug(ctx context.Context, slug string) (facility.Facility, error)
	Count(ctx context.Context) (int, error)
}

// Service bundles what the endpoints need.
type Service struct {
	Facilities   Lookup
	Orchestrator *backfill.Orchestrator
	Logger       *slog.Logger
}

// errBadRequest marks errors caused by the caller.
var errBadRequest = errors.New("bad request")

// Shared request/response types used by both HTTP and MCP transports.

type previewReq struct {
	Source facility.Source `json:"source"`
}

type lookupSlugReq struct {
	Slug string
}

type getFacilityReq struct {
	ID string
}

type backfillReq struct {
	Options backfill.Options
}

type lookupSlugResponse struct {
	Slug       string `json:"slug"`
	FacilityID string `json:"facility_id"`
	Name       string `json:"canonical_name"`
}

type endpoints struct {
	preview     kit.Endpoint
	lookupSlug  kit.Endpoint
	getFacility kit.Endpoint
	backfill    kit.Endpoint
}

func newEndpoints(svc Service) endpoints {
	wrap := func(name string, ep kit.Endpoint) kit.Endpoint {
		return kit.Chain(kit.RequestID(), kit.Logging(svc.Logger, name))(ep)
	}
	return endpoints{
		preview:     wrap("preview_facility_name", previewEndpoint(svc)),
		lookupSlug:  wrap("lookup_slug", lookupSlugEndpoint(svc)),
		getFacility: wrap("get_facility", getFacilityEndpoint(svc)),
		backfill:    wrap("run_backfill", backfillEndpoint(svc)),
	}
}

func previewEndpoint(svc Service) kit.Endpoint {
	return func(_ context.Context, request any) (any, error) {
		req := request.(*previewReq)
		if strings.TrimSpace(req.Source.RawName) == "" {
			return nil, fmt.Errorf("%w: raw_name is required", errBadRequest)
		}
		return svc.Orchestrator.Preview(req.Source), nil
	}
}

func lookupSlugEndpoint(svc Service) kit.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req := request.(*lookupSlugReq)
		if !slug.Valid(req.Slug) {
			return nil, fmt.Errorf("%w: %q is not a valid slug", errBadRequest, req.Slug)
		}
		f, err := svc.Facilities.BySlug(ctx, req.Slug)
		if err != nil {
			return nil, err
		}
		return lookupSlugResponse{Slug: f.Slug, FacilityID: f.ID, Name: f.CanonicalName}, nil
	}
}

func getFacilityEndpoint(svc Service) kit.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req := request.(*getFacilityReq)
		if strings.TrimSpace(req.ID) == "" {
			return nil, fmt.Errorf("%w: missing facility id", errBadRequest)
		}
		return svc.Facilities.Get(ctx, req.ID)
	}
}

func backfillEndpoint(svc Service) kit.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req := request.(*backfillReq)
		return svc.Orchestrator.Run(ctx, req.Options)
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
