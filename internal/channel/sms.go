package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/openletter/newsletter-backend/internal/model"
)

// SMSAdapter posts to the SMS gateway's JSON API. An adapter without a
// configured gateway URL reports every attempt as deferred rather than
// erroring, so SMS can stay a stub in environments without a provider.
type SMSAdapter struct {
	apiURL  string
	apiKey  string
	from    string
	client  *http.Client
	limiter *rate.Limiter
	log     *zap.SugaredLogger
}

func NewSMSAdapter(apiURL, apiKey, from string, sendsPerSecond float64, log *zap.SugaredLogger) *SMSAdapter {
	return &SMSAdapter{
		apiURL:  apiURL,
		apiKey:  apiKey,
		from:    from,
		client:  &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(sendsPerSecond), 1),
		log:     log,
	}
}

func (a *SMSAdapter) Method() string { return model.ContactSMS }

type smsRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
	Body string `json:"body"`
}

func (a *SMSAdapter) Send(ctx context.Context, sub *model.Subscriber, n *model.Newsletter, categoryNames []string) Outcome {
	if sub.Phone == "" {
		return Failed(model.ReasonMissingContact)
	}
	if a.apiURL == "" {
		return Deferred(model.ReasonChannelUnconfigured)
	}

	if err := a.limiter.Wait(ctx); err != nil {
		return Failed(model.ReasonTimeout)
	}

	payload, err := json.Marshal(smsRequest{
		From: a.from,
		To:   sub.Phone,
		Body: RenderSMS(n, sub),
	})
	if err != nil {
		return Failed("encode_error")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.apiURL, bytes.NewReader(payload))
	if err != nil {
		return Failed("request_error")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, err := a.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return Failed(model.ReasonTimeout)
		}
		a.log.Warnw("sms send failed", "subscriber_id", sub.ID, "newsletter_id", n.ID, "error", err)
		return Failed("provider_unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		a.log.Warnw("sms provider rejected send", "subscriber_id", sub.ID, "newsletter_id", n.ID, "status", resp.StatusCode)
		return Failed(fmt.Sprintf("provider_status_%d", resp.StatusCode))
	}

	a.log.Infow("sms sent", "subscriber_id", sub.ID, "newsletter_id", n.ID)
	return Sent()
}

var _ Adapter = (*SMSAdapter)(nil)
