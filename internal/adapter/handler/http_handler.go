package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/rl1809/aircraft-assembly/internal/core/domain"
	"github.com/rl1809/aircraft-assembly/internal/core/service"
)

const (
	apiPrefix = "/api/v1"

	headerMemberID       = "X-Member-ID"
	headerTeam           = "X-Team"
	headerTeamType       = "X-Team-Type"
	headerIdempotencyKey = "Idempotency-Key"

	maxBodyBytes = 1 << 20
)

// Services bundles the core services exposed by the transports.
type Services struct {
	Allocator *service.AssemblyAllocator
	Resolver  *service.AvailabilityResolver
	Inventory *service.InventoryService
	Aircraft  *service.AircraftService
}

type HTTPHandler struct {
	svc     Services
	logger  *zap.Logger
	timeout time.Duration
}

func NewHTTPHandler(svc Services, logger *zap.Logger, timeout time.Duration) *HTTPHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPHandler{svc: svc, logger: logger, timeout: timeout}
}

// Routes builds the REST mux wrapped in logging and timeout middleware.
func (h *HTTPHandler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+apiPrefix+"/health", h.HealthCheck)
	mux.Handle("GET "+apiPrefix+"/metrics", promhttp.Handler())

	mux.HandleFunc("GET "+apiPrefix+"/parts", h.ListParts)
	mux.HandleFunc("POST "+apiPrefix+"/parts", h.CreatePart)
	mux.HandleFunc("GET "+apiPrefix+"/parts/{id}", h.GetPart)
	mux.HandleFunc("DELETE "+apiPrefix+"/parts/{id}", h.RecyclePart)
	mux.HandleFunc("GET "+apiPrefix+"/parts/available/{aircraftType}", h.AvailableParts)
	mux.HandleFunc("GET "+apiPrefix+"/parts/inventory-status", h.InventoryStatus)

	mux.HandleFunc("GET "+apiPrefix+"/aircraft", h.ListAircraft)
	mux.HandleFunc("POST "+apiPrefix+"/aircraft", h.Assemble)
	mux.HandleFunc("GET "+apiPrefix+"/aircraft/requirements", h.Requirements)
	mux.HandleFunc("GET "+apiPrefix+"/aircraft/{id}", h.GetAircraft)

	return h.withLogging(h.withTimeout(mux))
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPHandler) AvailableParts(w http.ResponseWriter, r *http.Request) {
	aircraftType := domain.NormalizeAircraftType(r.PathValue("aircraftType"))

	report, err := h.svc.Resolver.CheckAvailability(r.Context(), aircraftType)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := toAvailabilityResponse(report)
	if suggest, _ := strconv.ParseBool(r.URL.Query().Get("suggest")); suggest {
		if sel, ok := report.Suggest(); ok {
			resp.Suggested = sel.Keyed()
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *HTTPHandler) InventoryStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.svc.Inventory.InventoryStatus(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toInventoryStatusResponse(status))
}

func (h *HTTPHandler) Requirements(w http.ResponseWriter, r *http.Request) {
	reports, err := h.svc.Resolver.RequirementsOverview(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	resp := make([]AvailabilityResponse, 0, len(reports))
	for _, report := range reports {
		resp = append(resp, toAvailabilityResponse(report))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *HTTPHandler) ListParts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, draw, err := parsePage(q)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	filter := domain.PartFilter{
		AircraftType: domain.NormalizeAircraftType(q.Get("aircraft_type")),
		Owner:        q.Get("owner"),
	}
	if raw := q.Get("part_type"); raw != "" {
		if filter.Type, err = domain.ParsePartType(raw); err != nil {
			h.writeError(w, r, err)
			return
		}
	}
	if raw := q.Get("state"); raw != "" {
		filter.State = domain.PartState(strings.ToUpper(raw))
		if !filter.State.Valid() {
			h.writeError(w, r, domain.InvalidArgument(fmt.Sprintf("unknown state %q", raw)))
			return
		}
	}
	if filter.Created, err = parseTimeRange(q); err != nil {
		h.writeError(w, r, err)
		return
	}

	result, err := h.svc.Inventory.ListParts(r.Context(), filter, page)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DataTableResponse[PartResponse]{
		Draw:            draw,
		RecordsTotal:    result.Total,
		RecordsFiltered: result.Total,
		Data:            toPartResponses(result.Items),
	})
}

func (h *HTTPHandler) CreatePart(w http.ResponseWriter, r *http.Request) {
	var req CreatePartRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	partType, aircraftType, err := parseCreatePart(req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	part, err := h.svc.Inventory.CreatePart(r.Context(), service.CreatePartRequest{
		Caller:       callerFromHeaders(r.Header),
		Type:         partType,
		AircraftType: aircraftType,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPartResponse(part))
}

func (h *HTTPHandler) GetPart(w http.ResponseWriter, r *http.Request) {
	part, err := h.svc.Inventory.GetPart(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPartResponse(part))
}

func (h *HTTPHandler) RecyclePart(w http.ResponseWriter, r *http.Request) {
	part, err := h.svc.Inventory.RecyclePart(r.Context(), callerFromHeaders(r.Header), r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DetailResponse{Detail: fmt.Sprintf("part %s recycled", part.SerialNumber)})
}

func (h *HTTPHandler) ListAircraft(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, draw, err := parsePage(q)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	filter := domain.AircraftFilter{
		AircraftType: domain.NormalizeAircraftType(q.Get("aircraft_type")),
		SerialNumber: strings.TrimSpace(q.Get("serial_number")),
		Owner:        q.Get("owner"),
	}
	if filter.Created, err = parseTimeRange(q); err != nil {
		h.writeError(w, r, err)
		return
	}

	result, err := h.svc.Aircraft.ListAircraft(r.Context(), filter, page)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	data := make([]AircraftResponse, 0, len(result.Items))
	for _, a := range result.Items {
		data = append(data, toAircraftResponse(a))
	}
	writeJSON(w, http.StatusOK, DataTableResponse[AircraftResponse]{
		Draw:            draw,
		RecordsTotal:    result.Total,
		RecordsFiltered: result.Total,
		Data:            data,
	})
}

func (h *HTTPHandler) Assemble(w http.ResponseWriter, r *http.Request) {
	var req AssembleAircraftRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	aircraftType, sel, err := parseAssemble(req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	requestID := r.Header.Get(headerIdempotencyKey)
	if requestID == "" {
		requestID = req.RequestID
	}

	aircraft, err := h.svc.Allocator.Assemble(r.Context(), service.AssembleRequest{
		RequestID:    requestID,
		Caller:       callerFromHeaders(r.Header),
		AircraftType: aircraftType,
		Selection:    sel,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAircraftResponse(aircraft))
}

func (h *HTTPHandler) GetAircraft(w http.ResponseWriter, r *http.Request) {
	detail, err := h.svc.Aircraft.GetAircraft(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAircraftDetailResponse(detail))
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := httpStatus(err)
	if e, ok := domain.AsError(err); ok {
		writeJSON(w, status, toErrorResponse(e))
		return
	}

	h.logger.Error("request failed",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Error(err))
	resp := ErrorResponse{Detail: "internal error", Code: "INTERNAL"}
	if status == http.StatusGatewayTimeout {
		resp = ErrorResponse{Detail: "request timed out", Code: "TIMEOUT"}
	}
	writeJSON(w, status, resp)
}

func (h *HTTPHandler) withTimeout(next http.Handler) http.Handler {
	if h.timeout <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

func (h *HTTPHandler) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		h.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)))
	})
}

func callerFromHeaders(header http.Header) domain.Caller {
	return domain.Caller{
		Member:   header.Get(headerMemberID),
		Team:     header.Get(headerTeam),
		TeamType: domain.ParseTeamType(header.Get(headerTeamType)),
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return domain.InvalidArgument(fmt.Sprintf("invalid request body: %v", err))
	}
	return nil
}

// parsePage reads DataTables style paging: start, length, draw and order.
func parsePage(q map[string][]string) (domain.PageRequest, int, error) {
	get := func(key string) string {
		if v := q[key]; len(v) > 0 {
			return v[0]
		}
		return ""
	}

	var page domain.PageRequest
	var draw int
	for _, p := range []struct {
		key string
		dst *int
	}{{"start", &page.Offset}, {"length", &page.Limit}, {"draw", &draw}} {
		raw := get(p.key)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return domain.PageRequest{}, 0, domain.InvalidArgument(fmt.Sprintf("%s must be a non-negative integer", p.key))
		}
		*p.dst = n
	}
	if draw == 0 {
		draw = 1
	}

	switch strings.ToLower(get("order")) {
	case "", "asc":
	case "desc":
		page.Descending = true
	default:
		return domain.PageRequest{}, 0, domain.InvalidArgument("order must be asc or desc")
	}
	return page.Normalize(), draw, nil
}

// parseTimeRange accepts RFC 3339 timestamps or plain dates. A plain date
// in created_before covers the whole day.
func parseTimeRange(q map[string][]string) (domain.TimeRange, error) {
	var r domain.TimeRange
	for _, p := range []struct {
		key   string
		dst   *time.Time
		endOf bool
	}{{"created_after", &r.After, false}, {"created_before", &r.Before, true}} {
		v := q[p.key]
		if len(v) == 0 || v[0] == "" {
			continue
		}
		if t, err := time.Parse(time.RFC3339, v[0]); err == nil {
			*p.dst = t.UTC()
			continue
		}
		t, err := time.Parse(time.DateOnly, v[0])
		if err != nil {
			return domain.TimeRange{}, domain.InvalidArgument(fmt.Sprintf("%s must be RFC 3339 or YYYY-MM-DD", p.key))
		}
		if p.endOf {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		*p.dst = t
	}
	return r, nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
