package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/diewo77/go-billing/httpx"
	"github.com/diewo77/go-billing/internal/models"
	"github.com/diewo77/go-billing/internal/services"
)

var quoteStatuses = []string{
	string(models.QuoteStatusDraft),
	string(models.QuoteStatusSent),
	string(models.QuoteStatusAccepted),
	string(models.QuoteStatusRejected),
}

type QuoteHandler struct {
	Svc *services.QuoteService
}

func NewQuoteHandler(svc *services.QuoteService) *QuoteHandler {
	return &QuoteHandler{Svc: svc}
}

func (h *QuoteHandler) Routes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Post("/{id}/status", h.SetStatus)
	r.Post("/{id}/convert", h.Convert)
}

// PublicRoutes mounts the customer-facing endpoints keyed by the quote token.
func (h *QuoteHandler) PublicRoutes(r chi.Router) {
	r.Get("/{token}", h.Public)
	r.Post("/{token}/accept", h.respond(true))
	r.Post("/{token}/reject", h.respond(false))
}

func (h *QuoteHandler) List(w http.ResponseWriter, r *http.Request) {
	f := listFilter(r)
	items, total, err := h.Svc.List(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, page(items, total, f))
}

func (h *QuoteHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in services.QuoteInput
	if err := httpx.Decode(r, &in); err != nil {
		badJSON(w)
		return
	}
	q, err := h.Svc.Create(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, q)
}

func (h *QuoteHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	q, err := h.Svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

func (h *QuoteHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var in services.QuoteInput
	if err := httpx.Decode(r, &in); err != nil {
		badJSON(w)
		return
	}
	q, err := h.Svc.Update(r.Context(), id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

// SetStatus moves the quote along its lifecycle. "converted" is reached
// only through Convert.
func (h *QuoteHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	status, ok := decodeStatus(w, r, quoteStatuses)
	if !ok {
		return
	}
	q, err := h.Svc.SetStatus(r.Context(), id, models.QuoteStatus(status))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

func (h *QuoteHandler) Convert(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	inv, err := h.Svc.ConvertToInvoice(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, inv)
}

func tokenParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	token, err := uuid.Parse(chi.URLParam(r, "token"))
	if err != nil {
		// an unparseable token is just an unknown one
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return uuid.Nil, false
	}
	return token, true
}

func (h *QuoteHandler) Public(w http.ResponseWriter, r *http.Request) {
	token, ok := tokenParam(w, r)
	if !ok {
		return
	}
	q, err := h.Svc.GetByToken(r.Context(), token)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

func (h *QuoteHandler) respond(accept bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := tokenParam(w, r)
		if !ok {
			return
		}
		q, err := h.Svc.Respond(r.Context(), token, accept)
		if err != nil {
			writeError(w, r, err)
			return
		}
		httpx.JSON(w, http.StatusOK, q)
	}
}
