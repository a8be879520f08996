package channel

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openletter/newsletter-backend/internal/model"
)

func testSMSAdapter(url string) *SMSAdapter {
	return NewSMSAdapter(url, "test-key", "+254700000000", 1000, zap.NewNop().Sugar())
}

func TestSMSAdapterSent(t *testing.T) {
	var got smsRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	adapter := testSMSAdapter(server.URL)
	sub := &model.Subscriber{ID: 1, ContactMethod: model.ContactSMS, Phone: "+254711111111"}
	n := &model.Newsletter{ID: 2, Title: "Alert", Content: "hello"}

	outcome := adapter.Send(context.Background(), sub, n, nil)

	assert.Equal(t, OutcomeSent, outcome.Status)
	assert.Equal(t, "+254711111111", got.To)
	assert.Equal(t, "+254700000000", got.From)
	assert.Contains(t, got.Body, "Alert")
}

func TestSMSAdapterProviderRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	adapter := testSMSAdapter(server.URL)
	sub := &model.Subscriber{Phone: "+254711111111"}

	outcome := adapter.Send(context.Background(), sub, &model.Newsletter{Title: "t"}, nil)

	assert.Equal(t, OutcomeFailed, outcome.Status)
	assert.Equal(t, "provider_status_502", outcome.Reason)
}

func TestSMSAdapterUnconfiguredIsDeferred(t *testing.T) {
	adapter := testSMSAdapter("")
	sub := &model.Subscriber{Phone: "+254711111111"}

	outcome := adapter.Send(context.Background(), sub, &model.Newsletter{Title: "t"}, nil)

	assert.Equal(t, OutcomeDeferred, outcome.Status)
	assert.Equal(t, model.ReasonChannelUnconfigured, outcome.Reason)
}

func TestSMSAdapterMissingPhone(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	adapter := testSMSAdapter(server.URL)
	outcome := adapter.Send(context.Background(), &model.Subscriber{}, &model.Newsletter{Title: "t"}, nil)

	assert.Equal(t, OutcomeFailed, outcome.Status)
	assert.Equal(t, model.ReasonMissingContact, outcome.Reason)
	assert.False(t, called, "no provider call for a subscriber without a phone")
}

func TestSMSAdapterTimeout(t *testing.T) {
	block := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer server.Close()
	defer close(block)

	adapter := testSMSAdapter(server.URL)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome := adapter.Send(ctx, &model.Subscriber{Phone: "+254711111111"}, &model.Newsletter{Title: "t"}, nil)

	assert.Equal(t, OutcomeFailed, outcome.Status)
	assert.Equal(t, model.ReasonTimeout, outcome.Reason)
}
