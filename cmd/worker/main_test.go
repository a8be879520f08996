package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"

	appErrors "github.com/openletter/newsletter-backend/internal/errors"
)

func TestNextRetryCount(t *testing.T) {
	assert.Equal(t, 0, nextRetryCount(nil))
	assert.Equal(t, 0, nextRetryCount(amqp.Table{}))
	assert.Equal(t, 2, nextRetryCount(amqp.Table{"x-retry-count": int32(2)}))
	assert.Equal(t, 3, nextRetryCount(amqp.Table{"x-retry-count": int64(3)}))
	assert.Equal(t, 0, nextRetryCount(amqp.Table{"x-retry-count": "bogus"}))
}

func TestIsPermanent(t *testing.T) {
	assert.True(t, isPermanent(appErrors.NewDeliveryNotFound(7)))
	assert.True(t, isPermanent(appErrors.NewNewsletterNotFound(7)))
	assert.True(t, isPermanent(fmt.Errorf("retry: %w", appErrors.NewSubscriberNotFound("9"))))

	assert.False(t, isPermanent(appErrors.NewStoreUnavailable(errors.New("connection refused"))))
	assert.False(t, isPermanent(errors.New("amqp channel closed")))
}
