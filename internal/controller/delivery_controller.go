// internal/controller/delivery_controller.go
package controller

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/openletter/newsletter-backend/internal/queue"
	"github.com/openletter/newsletter-backend/internal/service"
)

// trackingPixel is a 1x1 transparent gif served by the open-tracking
// endpoint.
var trackingPixel = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00, 0x80, 0x00,
	0x00, 0x00, 0x00, 0x00, 0xff, 0xff, 0xff, 0x21, 0xf9, 0x04, 0x01, 0x00,
	0x00, 0x00, 0x00, 0x2c, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00,
	0x00, 0x02, 0x02, 0x44, 0x01, 0x00, 0x3b,
}

type DeliveryController struct {
	DeliveryService *service.DeliveryService
	Queue           queue.Publisher
}

// RetryDelivery queues one delivery for re-attempt by the worker.
func (c *DeliveryController) RetryDelivery(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid delivery id", http.StatusBadRequest)
		return
	}

	if err := c.Queue.PublishRetry(id); err != nil {
		http.Error(w, "failed to queue retry", http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"delivery_id": id,
		"status":      "retry_queued",
	})
}

// TrackOpen records an email open and returns the pixel. Failures are
// swallowed; the pixel must always render.
func (c *DeliveryController) TrackOpen(w http.ResponseWriter, r *http.Request) {
	if id, err := strconv.Atoi(chi.URLParam(r, "id")); err == nil {
		_ = c.DeliveryService.MarkOpened(r.Context(), id)
	}

	w.Header().Set("Content-Type", "image/gif")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(trackingPixel)
}
