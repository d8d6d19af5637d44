package returns

import (
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/bookstore-orderflow/internal/domain"
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

type storeRequest struct {
	Type         string   `json:"type"`
	StockUnitIDs []string `json:"stock_unit_ids"`
	Description  string   `json:"description"`
}

func (h *Handler) HandleStore(w http.ResponseWriter, r *http.Request) {
	customerID, ok := httpx.CustomerID(h.logger, w, r)
	if !ok {
		return
	}

	var req storeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteDomainError(h.logger, w, err)
		return
	}
	typ, err := domain.ParseReturnType(req.Type)
	if err != nil {
		httpx.WriteDomainError(h.logger, w, err)
		return
	}

	created, err := h.service.Store(r.Context(), StoreInput{
		CustomerID:   customerID,
		Type:         typ,
		StockUnitIDs: req.StockUnitIDs,
		Description:  req.Description,
	})
	if err != nil {
		httpx.WriteDomainError(h.logger, w, err)
		return
	}

	httpx.WriteJSON(h.logger, w, http.StatusCreated, created)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	customerID, ok := httpx.CustomerID(h.logger, w, r)
	if !ok {
		return
	}

	requests, err := h.service.List(r.Context(), customerID)
	if err != nil {
		httpx.WriteDomainError(h.logger, w, err)
		return
	}

	httpx.WriteJSON(h.logger, w, http.StatusOK, requests)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	req, err := h.service.Get(r.Context(), r.PathValue("id"), r.Header.Get(httpx.CustomerHeader))
	if err != nil {
		httpx.WriteDomainError(h.logger, w, err)
		return
	}

	httpx.WriteJSON(h.logger, w, http.StatusOK, req)
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteDomainError(h.logger, w, err)
		return
	}
	status, err := domain.ParseReturnStatus(req.Status)
	if err != nil {
		httpx.WriteDomainError(h.logger, w, err)
		return
	}

	updated, err := h.service.UpdateStatus(r.Context(), r.PathValue("id"), status)
	if err != nil {
		httpx.WriteDomainError(h.logger, w, err)
		return
	}

	httpx.WriteJSON(h.logger, w, http.StatusOK, updated)
}
