package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/diewo77/go-billing/httpx"
	"github.com/diewo77/go-billing/internal/models"
	"github.com/diewo77/go-billing/internal/services"
)

type RecurringHandler struct {
	Svc *services.RecurringService
}

func NewRecurringHandler(svc *services.RecurringService) *RecurringHandler {
	return &RecurringHandler{Svc: svc}
}

func (h *RecurringHandler) Routes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Post("/run", h.Run)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Post("/{id}/pause", h.change(h.Svc.Pause))
	r.Post("/{id}/resume", h.change(h.Svc.Resume))
	r.Post("/{id}/generate", h.Generate)
}

func (h *RecurringHandler) List(w http.ResponseWriter, r *http.Request) {
	f := listFilter(r)
	items, total, err := h.Svc.List(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, page(items, total, f))
}

func (h *RecurringHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in services.RecurringInput
	if err := httpx.Decode(r, &in); err != nil {
		badJSON(w)
		return
	}
	rec, err := h.Svc.Create(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, rec)
}

func (h *RecurringHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	rec, err := h.Svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rec)
}

func (h *RecurringHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var in services.RecurringInput
	if err := httpx.Decode(r, &in); err != nil {
		badJSON(w)
		return
	}
	rec, err := h.Svc.Update(r.Context(), id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rec)
}

// change adapts a Pause/Resume style service method to a handler.
func (h *RecurringHandler) change(fn func(context.Context, uint) (*models.RecurringInvoice, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(w, r)
		if !ok {
			return
		}
		rec, err := fn(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		httpx.JSON(w, http.StatusOK, rec)
	}
}

func (h *RecurringHandler) Generate(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	res, err := h.Svc.Generate(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if res.Generated {
		status = http.StatusCreated
	}
	httpx.JSON(w, status, res)
}

// Run generates every due invoice, catching up missed periods.
func (h *RecurringHandler) Run(w http.ResponseWriter, r *http.Request) {
	report, err := h.Svc.RunDueNow(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}
