package inventory

import (
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/bookstore-orderflow/internal/httpx"
)

type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

func (h *Handler) HandleListStock(w http.ResponseWriter, r *http.Request) {
	bookID := r.PathValue("bookId")

	units, err := h.service.ListByBook(r.Context(), bookID)
	if err != nil {
		httpx.WriteDomainError(h.logger, w, err)
		return
	}

	h.logger.Info("stock listed", "book_id", bookID, "count", len(units))
	httpx.WriteJSON(h.logger, w, http.StatusOK, units)
}

func (h *Handler) HandleGetStock(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	unit, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.WriteDomainError(h.logger, w, err)
		return
	}

	httpx.WriteJSON(h.logger, w, http.StatusOK, unit)
}

func (h *Handler) HandleEnter(w http.ResponseWriter, r *http.Request) {
	var req EntryInput
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteDomainError(h.logger, w, err)
		return
	}

	units, err := h.service.Enter(r.Context(), req)
	if err != nil {
		httpx.WriteDomainError(h.logger, w, err)
		return
	}

	httpx.WriteJSON(h.logger, w, http.StatusCreated, units)
}
