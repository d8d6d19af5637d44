package cart

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

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	customerID, ok := httpx.CustomerID(h.logger, w, r)
	if !ok {
		return
	}

	view, err := h.service.Get(r.Context(), customerID)
	if err != nil {
		httpx.WriteDomainError(h.logger, w, err)
		return
	}

	httpx.WriteJSON(h.logger, w, http.StatusOK, view)
}

type addItemRequest struct {
	BookID   string `json:"book_id"`
	Quantity int    `json:"quantity"`
}

func (h *Handler) HandleAddItem(w http.ResponseWriter, r *http.Request) {
	customerID, ok := httpx.CustomerID(h.logger, w, r)
	if !ok {
		return
	}

	var req addItemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteDomainError(h.logger, w, err)
		return
	}

	view, err := h.service.AddItem(r.Context(), customerID, req.BookID, req.Quantity)
	if err != nil {
		httpx.WriteDomainError(h.logger, w, err)
		return
	}

	httpx.WriteJSON(h.logger, w, http.StatusOK, view)
}

type removeItemsRequest struct {
	ItemIDs []string `json:"item_ids"`
}

func (h *Handler) HandleRemoveItems(w http.ResponseWriter, r *http.Request) {
	customerID, ok := httpx.CustomerID(h.logger, w, r)
	if !ok {
		return
	}

	var req removeItemsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteDomainError(h.logger, w, err)
		return
	}

	view, err := h.service.RemoveItems(r.Context(), customerID, req.ItemIDs)
	if err != nil {
		httpx.WriteDomainError(h.logger, w, err)
		return
	}

	httpx.WriteJSON(h.logger, w, http.StatusOK, view)
}

func (h *Handler) HandleClear(w http.ResponseWriter, r *http.Request) {
	customerID, ok := httpx.CustomerID(h.logger, w, r)
	if !ok {
		return
	}

	if err := h.service.Clear(r.Context(), customerID); err != nil {
		httpx.WriteDomainError(h.logger, w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
