package orders

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/bookstore-orderflow/internal/domain"
	"github.com/joao-fontenele/bookstore-orderflow/internal/httpx"
)

const IdempotencyHeader = "Idempotency-Key"

// IdempotencyGuard rejects a checkout replayed with the same key.
type IdempotencyGuard interface {
	Claim(ctx context.Context, scope, key string) error
	Forget(ctx context.Context, scope, key string) error
}

type Handler struct {
	service *Service
	guard   IdempotencyGuard
	logger  *slog.Logger
}

// NewHandler builds the order endpoints. guard may be nil to accept every
// checkout.
func NewHandler(service *Service, guard IdempotencyGuard, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		guard:   guard,
		logger:  logger,
	}
}

func (h *Handler) HandleCheckout(w http.ResponseWriter, r *http.Request) {
	customerID, ok := httpx.CustomerID(h.logger, w, r)
	if !ok {
		return
	}

	var req CheckoutInput
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteDomainError(h.logger, w, err)
		return
	}
	req.CustomerID = customerID

	key := r.Header.Get(IdempotencyHeader)
	if key != "" && h.guard != nil {
		if err := h.guard.Claim(r.Context(), customerID, key); err != nil {
			httpx.WriteDomainError(h.logger, w, err)
			return
		}
	}

	order, err := h.service.Checkout(r.Context(), req)
	if err != nil {
		if key != "" && h.guard != nil {
			if ferr := h.guard.Forget(r.Context(), customerID, key); ferr != nil {
				h.logger.Error("failed to release idempotency key", "error", ferr, "customer_id", customerID)
			}
		}
		httpx.WriteDomainError(h.logger, w, err)
		return
	}

	httpx.WriteJSON(h.logger, w, http.StatusCreated, order)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	order, err := h.service.Get(r.Context(), id, r.Header.Get(httpx.CustomerHeader))
	if err != nil {
		httpx.WriteDomainError(h.logger, w, err)
		return
	}

	h.logger.Info("order retrieved", "order_id", order.ID)
	httpx.WriteJSON(h.logger, w, http.StatusOK, order)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	customerID, ok := httpx.CustomerID(h.logger, w, r)
	if !ok {
		return
	}

	orders, err := h.service.List(r.Context(), customerID)
	if err != nil {
		httpx.WriteDomainError(h.logger, w, err)
		return
	}

	h.logger.Info("orders listed", "customer_id", customerID, "count", len(orders))
	httpx.WriteJSON(h.logger, w, http.StatusOK, orders)
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req updateStatusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteDomainError(h.logger, w, err)
		return
	}

	status, err := domain.ParseOrderStatus(req.Status)
	if err != nil {
		httpx.WriteDomainError(h.logger, w, err)
		return
	}

	order, err := h.service.UpdateStatus(r.Context(), id, status)
	if err != nil {
		httpx.WriteDomainError(h.logger, w, err)
		return
	}

	httpx.WriteJSON(h.logger, w, http.StatusOK, order)
}
