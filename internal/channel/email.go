package channel

import (
	"context"
	"strings"

	"github.com/resend/resend-go/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/openletter/newsletter-backend/internal/model"
)

// EmailAdapter delivers via the Resend transactional email API.
type EmailAdapter struct {
	client  *resend.Client
	from    string
	baseURL string
	limiter *rate.Limiter
	log     *zap.SugaredLogger
}

func NewEmailAdapter(apiKey, from, baseURL string, sendsPerSecond float64, log *zap.SugaredLogger) *EmailAdapter {
	return &EmailAdapter{
		client:  resend.NewClient(apiKey),
		from:    from,
		baseURL: baseURL,
		limiter: rate.NewLimiter(rate.Limit(sendsPerSecond), 1),
		log:     log,
	}
}

func (a *EmailAdapter) Method() string { return model.ContactEmail }

func (a *EmailAdapter) Send(ctx context.Context, sub *model.Subscriber, n *model.Newsletter, categoryNames []string) Outcome {
	if sub.Email == "" {
		return Failed(model.ReasonMissingContact)
	}

	if err := a.limiter.Wait(ctx); err != nil {
		return Failed(model.ReasonTimeout)
	}

	html, text := RenderEmail(n, sub, categoryNames, a.baseURL)
	params := &resend.SendEmailRequest{
		From:    a.from,
		To:      []string{sub.Email},
		Subject: n.Subject,
		Html:    html,
		Text:    text,
	}

	sent, err := a.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		if ctx.Err() != nil {
			return Failed(model.ReasonTimeout)
		}
		if isDomainUnverified(err) {
			a.log.Warnw("email deferred, sending domain not verified", "subscriber_id", sub.ID, "newsletter_id", n.ID)
			return Deferred(model.ReasonProviderDeferred)
		}
		a.log.Warnw("email send failed", "subscriber_id", sub.ID, "newsletter_id", n.ID, "error", err)
		return Failed("provider_error")
	}

	a.log.Infow("email sent", "subscriber_id", sub.ID, "newsletter_id", n.ID, "message_id", sent.Id)
	return Sent()
}

// isDomainUnverified spots Resend's soft rejection for an unverified sending
// domain, which will keep failing until the domain is reconfigured.
func isDomainUnverified(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "verify a domain") || strings.Contains(msg, "domain is not verified")
}

var _ Adapter = (*EmailAdapter)(nil)
