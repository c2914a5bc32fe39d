// Package handlers exposes the billing services as a JSON API.
package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/diewo77/go-billing/httpx"
	"github.com/diewo77/go-billing/internal/billing"
	"github.com/diewo77/go-billing/internal/logger"
	"github.com/diewo77/go-billing/internal/numbering"
	"github.com/diewo77/go-billing/internal/services"
	"github.com/diewo77/go-billing/internal/store"
	"github.com/diewo77/go-billing/validation"
)

const (
	defaultLimit = 50
	maxLimit     = 200
)

// writeError maps service errors onto status codes and stable error codes.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *billing.ValidationError
	if errors.As(err, &ve) {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", ve.Violations)
		return
	}
	switch {
	case errors.Is(err, services.ErrNotFound):
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
	case errors.Is(err, numbering.ErrUnknownKind):
		httpx.JSONError(w, http.StatusNotFound, "unknown_sequence", nil)
	case errors.Is(err, services.ErrNotEditable):
		httpx.JSONError(w, http.StatusConflict, "document_not_editable", nil)
	case errors.Is(err, services.ErrQuoteExpired):
		httpx.JSONError(w, http.StatusConflict, "quote_expired", nil)
	case errors.Is(err, services.ErrInvalidTransition):
		httpx.JSONError(w, http.StatusConflict, "invalid_status_transition", nil)
	case errors.Is(err, services.ErrCustomerArchived):
		httpx.JSONError(w, http.StatusConflict, "customer_archived", nil)
	case errors.Is(err, services.ErrScheduleNotActive):
		httpx.JSONError(w, http.StatusConflict, "schedule_not_active", nil)
	case errors.Is(err, services.ErrScheduleEnded):
		httpx.JSONError(w, http.StatusConflict, "schedule_ended", nil)
	case errors.Is(err, services.ErrScheduleChanged), errors.Is(err, numbering.ErrAllocationConflict):
		httpx.JSONError(w, http.StatusConflict, "concurrent_update", nil)
	default:
		l := logger.FromRequest(r)
		var se *store.Error
		if errors.As(err, &se) {
			l.Error().Err(se.Err).Str("op", se.Op).Str("entity", se.Entity).Msg("store failure")
			httpx.JSONError(w, http.StatusInternalServerError, "store_failure", nil)
			return
		}
		l.Error().Err(err).Msg("request failed")
		httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
	}
}

func badJSON(w http.ResponseWriter) {
	httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
}

func idParam(w http.ResponseWriter, r *http.Request) (uint, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id == 0 {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return 0, false
	}
	return uint(id), true
}

// listFilter reads limit/offset (or page) and the common filters from the
// query string. Invalid values fall back to defaults.
func listFilter(r *http.Request) services.ListFilter {
	q := r.URL.Query()
	f := services.ListFilter{
		Limit:  defaultLimit,
		Status: strings.TrimSpace(q.Get("status")),
		Query:  strings.TrimSpace(q.Get("q")),
	}
	if n, err := strconv.Atoi(q.Get("limit")); err == nil && n > 0 && n <= maxLimit {
		f.Limit = n
	}
	if n, err := strconv.Atoi(q.Get("offset")); err == nil && n > 0 {
		f.Offset = n
	} else if n, err := strconv.Atoi(q.Get("page")); err == nil && n > 1 {
		f.Offset = (n - 1) * f.Limit
	}
	if n, err := strconv.ParseUint(q.Get("customer_id"), 10, 64); err == nil {
		f.CustomerID = uint(n)
	}
	if b, err := strconv.ParseBool(q.Get("archived")); err == nil {
		f.Archived = b
	}
	return f
}

func page(items any, total int64, f services.ListFilter) httpx.Page {
	return httpx.Page{Items: items, Total: total, Limit: f.Limit, Offset: f.Offset}
}

// statusRequest is the body of every status change endpoint.
type statusRequest struct {
	Status string `json:"status"`
}

func decodeStatus(w http.ResponseWriter, r *http.Request, allowed []string) (string, bool) {
	var req statusRequest
	if err := httpx.Decode(r, &req); err != nil {
		badJSON(w)
		return "", false
	}
	v := validation.Violations{}
	validation.Required("status", req.Status, v)
	if v.Empty() {
		validation.OneOf("status", req.Status, allowed, v)
	}
	if !v.Empty() {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", v)
		return "", false
	}
	return req.Status, true
}
