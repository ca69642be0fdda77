package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hazyhaar/facility-names/pkg/backfill"
	"github.com/hazyhaar/facility-names/pkg/facility"
	"github.com/hazyhaar/facility-names/pkg/slug"
	"github.com/hazyhaar/facility-names/pkg/store"
)

func testServer(t *testing.T) (*httptest.Server, *store.Memory) {
	t.Helper()
	st := store.NewMemory(
		facility.Facility{ID: "ZAF-0100", Source: facility.Source{CountryISO3: "ZAF", RawName: "Waterval Smelter", PrimaryType: "smelter"}},
		facility.Facility{ID: "ZAF-0200", Source: facility.Source{CountryISO3: "ZAF", RawName: "Waterval Smelter", PrimaryType: "smelter", Region: "Mpumalanga"}},
	)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := prometheus.NewRegistry()
	orch := backfill.New(backfill.Config{
		Store:       st,
		SlugOptions: slug.DefaultOptions(),
		Metrics:     backfill.NewMetrics(reg),
		Logger:      logger,
	})
	svc := Service{Facilities: st, Orchestrator: orch, Logger: logger}
	ts := httptest.NewServer(NewRouter(svc, promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	t.Cleanup(ts.Close)
	return ts, st
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

func TestPreview(t *testing.T) {
	ts, _ := testServer(t)

	resp := postJSON(t, ts.URL+"/v1/preview", `{"source":{"raw_name":"Karee Mine (Rustenburg)","town":"Rustenburg","primary_type":"mine"}}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var p backfill.Preview
	decode(t, resp, &p)
	if p.BaseSlug != "karee-mine-rustenburg" || p.Name.Canonical != "Karee Mine Rustenburg" {
		t.Errorf("preview = %+v", p)
	}

	for _, body := range []string{`{`, `{"source":{"town":"Rustenburg"}}`} {
		if resp := postJSON(t, ts.URL+"/v1/preview", body); resp.StatusCode != http.StatusBadRequest {
			t.Errorf("body %s: status = %d, want 400", body, resp.StatusCode)
		}
	}
}

func TestBackfillDefaultsToDryRun(t *testing.T) {
	ts, st := testServer(t)

	resp := postJSON(t, ts.URL+"/v1/backfill", `{"countries":["zaf"]}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var report backfill.Report
	decode(t, resp, &report)
	if !report.DryRun || report.Processed != 2 || report.CollisionsDetected != 1 {
		t.Errorf("report = %+v", report)
	}
	if f, _ := st.Get(context.Background(), "ZAF-0100"); f.Slug != "" {
		t.Errorf("dry run persisted slug %q", f.Slug)
	}
}

func TestBackfillApplyThenLookup(t *testing.T) {
	ts, _ := testServer(t)

	if resp := postJSON(t, ts.URL+"/v1/backfill", `{"dry_run":false}`); resp.StatusCode != http.StatusOK {
		t.Fatalf("backfill status = %d", resp.StatusCode)
	}

	resp, err := http.Get(ts.URL + "/v1/slugs/waterval-smelter-mpumalanga")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("lookup status = %d", resp.StatusCode)
	}
	var got lookupSlugResponse
	decode(t, resp, &got)
	if got.FacilityID != "ZAF-0200" {
		t.Errorf("lookup = %+v", got)
	}

	resp2, err := http.Get(ts.URL + "/v1/facilities/ZAF-0100")
	if err != nil {
		t.Fatal(err)
	}
	defer resp2.Body.Close()
	var f facility.Facility
	decode(t, resp2, &f)
	if f.Slug != "waterval-smelter" || f.CanonicalName == "" {
		t.Errorf("facility = %+v", f)
	}
}

func TestBackfillCountryRunRespectsOtherCountries(t *testing.T) {
	ts, st := testServer(t)
	ctx := context.Background()
	aus := facility.Facility{ID: "AUS-0001", Source: facility.Source{CountryISO3: "AUS", RawName: "Waterval Smelter", PrimaryType: "smelter"}}
	if err := st.Upsert(ctx, []facility.Facility{aus}); err != nil {
		t.Fatal(err)
	}
	if err := st.ApplyDerived(ctx, []facility.Update{{ID: "AUS-0001", Derived: facility.Derived{Slug: "waterval-smelter"}}}); err != nil {
		t.Fatal(err)
	}

	resp := postJSON(t, ts.URL+"/v1/backfill", `{"countries":["ZAF"],"dry_run":false}`)
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("status = %d: %s", resp.StatusCode, body)
	}

	owner, err := st.BySlug(ctx, "waterval-smelter")
	if err != nil || owner.ID != "AUS-0001" {
		t.Fatalf("waterval-smelter owner = %q, %v", owner.ID, err)
	}
	if f, _ := st.Get(ctx, "ZAF-0100"); f.Slug != "waterval-smelter-zaf-0100" {
		t.Errorf("ZAF-0100 slug = %q", f.Slug)
	}
}

func TestLookupErrors(t *testing.T) {
	ts, _ := testServer(t)
	tests := []struct {
		path string
		code int
	}{
		{"/v1/slugs/unknown-slug", http.StatusNotFound},
		{"/v1/slugs/Not_A_Slug", http.StatusBadRequest},
		{"/v1/facilities/NOPE", http.StatusNotFound},
		{"/v1/backfill", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		resp, err := http.Get(ts.URL + tt.path)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != tt.code {
			t.Errorf("GET %s = %d, want %d", tt.path, resp.StatusCode, tt.code)
		}
	}
}

func TestHealthAndMetrics(t *testing.T) {
	ts, _ := testServer(t)

	resp, err := http.Get(ts.URL + "/v1/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var h healthResponse
	decode(t, resp, &h)
	if h.Status != "ok" || h.Facilities != 2 || h.BackfillState != backfill.StateIdle {
		t.Errorf("health = %+v", h)
	}

	postJSON(t, ts.URL+"/v1/backfill", `{}`)
	mresp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer mresp.Body.Close()
	var buf bytes.Buffer
	buf.ReadFrom(mresp.Body)
	if !strings.Contains(buf.String(), `facility_names_backfill_runs_total{mode="dry_run",outcome="ok"} 1`) {
		t.Errorf("metrics output missing run counter:\n%s", buf.String())
	}
}

func TestCORSPreflight(t *testing.T) {
	ts, _ := testServer(t)
	req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/v1/preview", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent || resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("preflight = %d %v", resp.StatusCode, resp.Header)
	}
}
