package httpx

import (
	"context"
	"github.com/ariefcatur/go-farm-orders/internal/notify"
	"github.com/ariefcatur/go-farm-orders/internal/orders"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"net/http"
	"strconv"
	"time"
)

type NotificationsHandler struct {
	Inbox *notify.Inbox
	Log   *zap.Logger
}

func (h *NotificationsHandler) Register(r chi.Router) {
	r.Get("/notifications/{recipientId}", h.list)
}

func (h *NotificationsHandler) list(w http.ResponseWriter, r *http.Request) {
	var n int64
	if s := r.URL.Query().Get("limit"); s != "" {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil || v <= 0 {
			badRequest(w, "invalid limit")
			return
		}
		n = v
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()
	out, err := h.Inbox.List(ctx, chi.URLParam(r, "recipientId"), n)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	if out == nil {
		out = []orders.Envelope{}
	}
	writeJSON(w, http.StatusOK, out)
}
