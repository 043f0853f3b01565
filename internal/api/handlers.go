// Package api exposes HTTP handlers for the saunalog service.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"example.com/saunalog/internal/auth"
	"example.com/saunalog/internal/domain"
)

// Handler coordinates HTTP requests with the session ledger.
type Handler struct {
	ledger *domain.Ledger
}

// NewHandler builds a Handler.
func NewHandler(ledger *domain.Ledger) *Handler {
	return &Handler{ledger: ledger}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/days", h.listDays)
	mux.HandleFunc("/v1/days/", h.dayTree)
	mux.HandleFunc("/v1/stats/average", h.overallAverage)
	mux.HandleFunc("/v1/facilities", h.listFacilities)
	mux.HandleFunc("/healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// dayTree dispatches /v1/days/{date}/sessions[/{index}] and
// /v1/days/{date}/meta.
func (h *Handler) dayTree(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/days/")
	parts := strings.Split(rest, "/")

	switch {
	case len(parts) == 2 && parts[1] == "sessions":
		h.sessions(w, r, parts[0])
	case len(parts) == 3 && parts[1] == "sessions":
		h.sessionByIndex(w, r, parts[0], parts[2])
	case len(parts) == 2 && parts[1] == "meta":
		h.dayMeta(w, r, parts[0])
	default:
		writeError(w, http.StatusNotFound, "not_found", "unknown resource")
	}
}

func (h *Handler) sessions(w http.ResponseWriter, r *http.Request, date string) {
	switch r.Method {
	case http.MethodGet:
		h.listSessions(w, r, date)
	case http.MethodPost:
		h.appendSession(w, r, date)
	case http.MethodPut:
		h.replaceSessions(w, r, date)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) appendSession(w http.ResponseWriter, r *http.Request, date string) {
	claims, ok := h.requireScope(w, r, auth.ScopeSessionsWrite)
	if !ok {
		return
	}

	var req AppendSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}

	order, err := h.ledger.Append(r.Context(), claims.Subject, date, req.Minutes, req.Meta.Patch(), claims.Name)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, AppendSessionResponse{
		Date:  date,
		Order: order,
	})
}

func (h *Handler) listSessions(w http.ResponseWriter, r *http.Request, date string) {
	claims, ok := h.requireScope(w, r, auth.ScopeSessionsRead)
	if !ok {
		return
	}

	sessions, err := h.ledger.ListSessions(r.Context(), claims.Subject, date)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, SessionListResponse{Date: date, Sessions: sessions})
}

func (h *Handler) replaceSessions(w http.ResponseWriter, r *http.Request, date string) {
	claims, ok := h.requireScope(w, r, auth.ScopeSessionsWrite)
	if !ok {
		return
	}

	var req ReplaceSessionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}

	if err := h.ledger.ReplaceAll(r.Context(), claims.Subject, date, req.Sessions); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) sessionByIndex(w http.ResponseWriter, r *http.Request, date, rawIndex string) {
	if r.Method != http.MethodDelete {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	claims, ok := h.requireScope(w, r, auth.ScopeSessionsWrite)
	if !ok {
		return
	}

	index, err := strconv.Atoi(rawIndex)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_index", "index must be an integer")
		return
	}

	if err := h.ledger.RemoveAt(r.Context(), claims.Subject, date, index); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) dayMeta(w http.ResponseWriter, r *http.Request, date string) {
	switch r.Method {
	case http.MethodGet:
		claims, ok := h.requireScope(w, r, auth.ScopeSessionsRead)
		if !ok {
			return
		}
		meta, err := h.ledger.GetDayMeta(r.Context(), claims.Subject, date)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toMetaView(meta))
	case http.MethodPut:
		claims, ok := h.requireScope(w, r, auth.ScopeSessionsWrite)
		if !ok {
			return
		}
		var req SetDayMetaRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
			return
		}
		meta := domain.DayMeta{
			FacilityName:       domain.NormalizeFacility(req.FacilityName),
			ConditionRating:    domain.NormalizeRating(req.ConditionRating),
			SatisfactionRating: domain.NormalizeRating(req.SatisfactionRating),
		}
		if err := h.ledger.SetDayMeta(r.Context(), claims.Subject, date, meta); err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toMetaView(meta))
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) listDays(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	claims, ok := h.requireScope(w, r, auth.ScopeSessionsRead)
	if !ok {
		return
	}

	facility := r.URL.Query().Get("facility")
	days, err := h.ledger.ListDays(r.Context(), claims.Subject, facility)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, DayListResponse{Items: days})
}

func (h *Handler) overallAverage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	claims, ok := h.requireScope(w, r, auth.ScopeSessionsRead)
	if !ok {
		return
	}

	avg, err := h.ledger.OverallAverage(r.Context(), claims.Subject)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AverageResponse{AverageMinutes: avg})
}

func (h *Handler) listFacilities(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	claims, ok := h.requireScope(w, r, auth.ScopeSessionsRead)
	if !ok {
		return
	}

	names, err := h.ledger.ListFacilities(r.Context(), claims.Subject)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, FacilityListResponse{Items: names})
}

// requireScope resolves the authenticated principal and enforces the scope.
// Holders of sessions:write implicitly satisfy sessions:read.
func (h *Handler) requireScope(w http.ResponseWriter, r *http.Request, scope string) (*auth.Claims, bool) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return nil, false
	}
	if claims.HasScope(scope) {
		return claims, true
	}
	if scope == auth.ScopeSessionsRead && claims.HasScope(auth.ScopeSessionsWrite) {
		return claims, true
	}
	writeError(w, http.StatusForbidden, "forbidden", "scope "+scope+" required")
	return nil, false
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidDate):
		writeError(w, http.StatusBadRequest, "invalid_date", "date must be a valid YYYY-MM-DD calendar date")
	case errors.Is(err, domain.ErrInvalidMinutes):
		writeError(w, http.StatusBadRequest, "invalid_minutes", "minutes must round to a positive integer")
	case errors.Is(err, domain.ErrInvalidIndex):
		writeError(w, http.StatusBadRequest, "invalid_index", "no session at that index")
	default:
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
