package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hazyhaar/facility-names/pkg/backfill"
	"github.com/hazyhaar/facility-names/pkg/kit"
	"github.com/hazyhaar/facility-names/pkg/store"
)

// NewRouter returns an http.Handler with all facility naming routes. A nil
// metrics handler leaves /metrics unrouted.
func NewRouter(svc Service, metrics http.Handler) http.Handler {
	mux := http.NewServeMux()
	h := &handler{eps: newEndpoints(svc), svc: svc}

	mux.HandleFunc("POST /v1/preview", h.handlePreview)
	mux.HandleFunc("GET /v1/slugs/{slug}", h.handleLookupSlug)
	mux.HandleFunc("GET /v1/facilities/{id}", h.handleGetFacility)
	mux.HandleFunc("GET /v1/backfill", methodNotAllowed)
	mux.HandleFunc("POST /v1/backfill", h.handleBackfill)
	mux.HandleFunc("GET /v1/health", h.handleHealth)
	if metrics != nil {
		mux.Handle("GET /metrics", metrics)
	}

	return cors(mux)
}

type handler struct {
	eps endpoints
	svc Service
}

// --- preview ---

func (h *handler) handlePreview(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 64*1024) // 64 KiB max
	var req previewReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	h.serve(w, r, h.eps.preview, &req)
}

// --- lookups ---

func (h *handler) handleLookupSlug(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, h.eps.lookupSlug, &lookupSlugReq{Slug: r.PathValue("slug")})
}

func (h *handler) handleGetFacility(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, h.eps.getFacility, &getFacilityReq{ID: r.PathValue("id")})
}

// --- backfill ---

type httpBackfillRequest struct {
	Countries    []string `json:"countries,omitempty"`
	DryRun       *bool    `json:"dry_run,omitempty"`
	GlobalDedupe *bool    `json:"global_dedupe,omitempty"`
}

// handleBackfill runs synchronously. Without an explicit "dry_run": false the
// run is a dry run; global_dedupe defaults to true.
func (h *handler) handleBackfill(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 16*1024)
	var req httpBackfillRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}
	dryRun := req.DryRun == nil || *req.DryRun
	dedupe := req.GlobalDedupe == nil || *req.GlobalDedupe
	h.serve(w, r, h.eps.backfill, &backfillReq{Options: backfill.Options{
		Countries:    req.Countries,
		DryRun:       dryRun,
		GlobalDedupe: dedupe,
	}})
}

// --- health ---

type healthResponse struct {
	Status        string         `json:"status"`
	Facilities    int            `json:"facilities"`
	BackfillState backfill.State `json:"backfill_state"`
}

func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.Facilities.Count(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Status:        "ok",
		Facilities:    n,
		BackfillState: h.svc.Orchestrator.State(),
	})
}

// --- helpers ---

func (h *handler) serve(w http.ResponseWriter, r *http.Request, ep kit.Endpoint, req any) {
	ctx := kit.WithTransport(r.Context(), kit.TransportHTTP)
	if id := r.Header.Get("X-Request-ID"); id != "" {
		ctx = kit.WithRequestID(ctx, id)
	}
	resp, err := ep(ctx, req)
	if err != nil {
		writeError(w, statusOf(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, backfill.ErrRunInProgress):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func methodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

// cors is a simple CORS middleware for browser-based clients.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
