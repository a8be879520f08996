package controller_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openletter/newsletter-backend/internal/controller"
)

type MockPublisher struct {
	published []int
	err       error
}

func (m *MockPublisher) PublishRetry(deliveryID int) error {
	if m.err != nil {
		return m.err
	}
	m.published = append(m.published, deliveryID)
	return nil
}

func TestRetryDeliveryQueuesJob(t *testing.T) {
	pub := &MockPublisher{}
	ctrl := &controller.DeliveryController{Queue: pub}

	r := chi.NewRouter()
	r.Post("/deliveries/{id}/retry", ctrl.RetryDelivery)

	req := httptest.NewRequest("POST", "/deliveries/42/retry", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, []int{42}, pub.published)
}

func TestRetryDeliveryInvalidID(t *testing.T) {
	ctrl := &controller.DeliveryController{Queue: &MockPublisher{}}

	r := chi.NewRouter()
	r.Post("/deliveries/{id}/retry", ctrl.RetryDelivery)

	req := httptest.NewRequest("POST", "/deliveries/not-a-number/retry", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
