// Package email is the notification collaborator: an HTTP sink that accepts
// messages and a client that sends to it.
package email

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/joao-fontenele/bookstore-orderflow/internal/httpx"
)

type Handler struct {
	logger *slog.Logger
}

func NewHandler(logger *slog.Logger) *Handler {
	return &Handler{
		logger: logger,
	}
}

type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

type sendResponse struct {
	Status string `json:"status"`
}

func (h *Handler) HandleSend(w http.ResponseWriter, r *http.Request) {
	var msg Message
	if err := httpx.DecodeJSON(r, &msg); err != nil {
		httpx.WriteError(h.logger, w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !strings.Contains(msg.To, "@") {
		httpx.WriteError(h.logger, w, http.StatusBadRequest, "invalid recipient")
		return
	}

	h.logger.Info("email sent", "to", msg.To, "subject", msg.Subject)

	httpx.WriteJSON(h.logger, w, http.StatusOK, sendResponse{Status: "sent"})
}
