package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/diewo77/go-billing/httpx"
	"github.com/diewo77/go-billing/internal/services"
)

type NumberHandler struct {
	Svc *services.NumberService
}

func NewNumberHandler(svc *services.NumberService) *NumberHandler {
	return &NumberHandler{Svc: svc}
}

// Routes mounts POST /{kind} (reserve) and GET /{kind} (preview).
func (h *NumberHandler) Routes(r chi.Router) {
	r.Post("/{kind}", h.Next)
	r.Get("/{kind}", h.Peek)
}

type numberResponse struct {
	Kind   string `json:"kind"`
	Number string `json:"number"`
}

func (h *NumberHandler) Next(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "kind")
	n, err := h.Svc.GetNextNumber(r.Context(), kind)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, numberResponse{Kind: kind, Number: n})
}

func (h *NumberHandler) Peek(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "kind")
	n, err := h.Svc.Peek(r.Context(), kind)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, numberResponse{Kind: kind, Number: n})
}
