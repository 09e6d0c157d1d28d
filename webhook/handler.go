// Copyright 2026 The GSMS Authors
// SPDX-License-Identifier: Apache-2.0

package webhook

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jtrinklein/gsms/record"
)

// twimlEmpty is the reply that tells the provider to do nothing.
const twimlEmpty = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`

// InboundRouter forwards an inbound SMS into the sender's active
// room. *router.Router satisfies it.
type InboundRouter interface {
	RouteInboundSMS(ctx context.Context, phone, text string) error
}

// Config holds configuration for creating a Handler.
type Config struct {
	// Router receives every accepted inbound SMS. Required.
	Router InboundRouter

	// Logger receives structured log output. If nil, slog.Default()
	// is used.
	Logger *slog.Logger
}

// Handler is the HTTP surface for the SMS provider's webhook.
type Handler struct {
	router InboundRouter
	logger *slog.Logger
	mux    *http.ServeMux
}

// New creates the webhook handler.
func New(cfg Config) (*Handler, error) {
	if cfg.Router == nil {
		return nil, fmt.Errorf("webhook: Router is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	h := &Handler{
		router: cfg.Router,
		logger: logger,
		mux:    http.NewServeMux(),
	}
	h.mux.HandleFunc("POST /sms", h.handleSMS)
	h.mux.HandleFunc("GET /healthz", h.handleHealthz)
	return h, nil
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	h.mux.ServeHTTP(writer, request)
}

func (h *Handler) handleSMS(writer http.ResponseWriter, request *http.Request) {
	if err := request.ParseForm(); err != nil {
		http.Error(writer, "malformed form body", http.StatusBadRequest)
		return
	}

	from := request.PostFormValue("From")
	if from == "" {
		http.Error(writer, "missing From", http.StatusBadRequest)
		return
	}
	phone, ok := normalizePhone(from)
	if !ok {
		http.Error(writer, "unsupported sender number", http.StatusBadRequest)
		return
	}
	body := request.PostFormValue("Body")

	if err := h.router.RouteInboundSMS(request.Context(), phone, body); err != nil {
		// The provider would retry on a 5xx and duplicate the message,
		// so ack anyway.
		h.logger.Error("inbound sms not routed",
			"phone", phone,
			"error", err)
	}

	writer.Header().Set("Content-Type", "text/xml")
	fmt.Fprint(writer, twimlEmpty)
}

func (h *Handler) handleHealthz(writer http.ResponseWriter, request *http.Request) {
	writer.WriteHeader(http.StatusOK)
	fmt.Fprintln(writer, "ok")
}

// normalizePhone strips the +1 country prefix and reports whether the
// result is a plain 10-digit number.
func normalizePhone(from string) (string, bool) {
	phone := strings.TrimPrefix(from, "+1")
	return phone, record.ValidPhone(phone)
}
