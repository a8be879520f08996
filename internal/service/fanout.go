// internal/service/fanout.go
package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/openletter/newsletter-backend/internal/channel"
	"github.com/openletter/newsletter-backend/internal/model"
	"github.com/openletter/newsletter-backend/internal/repository"
)

// Fanout dispatches one newsletter to every matched subscriber and
// reconciles the per-recipient outcomes into delivery rows and a summary.
type Fanout struct {
	SubscriberRepo repository.SubscriberRepositoryInterface
	CategoryRepo   repository.CategoryRepositoryInterface
	DeliveryRepo   repository.DeliveryRepositoryInterface
	Adapters       map[string]channel.Adapter
	Concurrency    int
	SendTimeout    time.Duration
	Log            *zap.SugaredLogger
}

type fanoutJob struct {
	delivery   *model.Delivery
	subscriber model.Subscriber
}

// Send runs the fan-out. It fails only when recipient resolution or
// delivery-row creation fails; individual send failures are recorded on
// their rows and absorbed into the stats.
func (f *Fanout) Send(ctx context.Context, n *model.Newsletter) (model.DeliveryStats, error) {
	recipients, err := f.SubscriberRepo.ListActiveByCategories(ctx, n.CategoryIDs)
	if err != nil {
		return model.DeliveryStats{}, err
	}
	ids := make([]int, len(recipients))
	for i, sub := range recipients {
		ids[i] = sub.ID
	}
	// Rows from an earlier send whose subscriber has since left the
	// audience would skew the stored stats, so they are dropped first.
	if err := f.DeliveryRepo.PruneOutsideAudience(ctx, n.ID, ids); err != nil {
		return model.DeliveryStats{}, err
	}

	if len(recipients) == 0 {
		// Sending to nobody is a valid, complete fan-out.
		return model.DeliveryStats{}, nil
	}

	categoryNames, err := f.CategoryRepo.NamesByIDs(ctx, n.CategoryIDs)
	if err != nil {
		return model.DeliveryStats{}, err
	}

	// Rows are created before any send attempt so a crash mid-batch leaves
	// an auditable pending record instead of silent loss.
	jobs := make([]fanoutJob, 0, len(recipients))
	for _, sub := range recipients {
		d, err := f.DeliveryRepo.CreateOrReset(ctx, n.ID, sub.ID, sub.ContactMethod)
		if err != nil {
			return model.DeliveryStats{}, err
		}
		jobs = append(jobs, fanoutJob{delivery: d, subscriber: sub})
	}

	workers := f.Concurrency
	if workers <= 0 {
		workers = 4
	}
	if workers > len(jobs) {
		workers = len(jobs)
	}

	jobCh := make(chan fanoutJob)
	resultCh := make(chan string, len(jobs))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobCh {
				resultCh <- f.deliverOne(ctx, n, categoryNames, job)
			}
		}()
	}

	for _, job := range jobs {
		jobCh <- job
	}
	close(jobCh)
	wg.Wait()
	close(resultCh)

	var stats model.DeliveryStats
	for status := range resultCh {
		stats.Total++
		switch status {
		case model.DeliverySent:
			stats.Sent++
		case model.DeliveryPending:
			stats.Pending++
		default:
			stats.Failed++
		}
	}

	f.Log.Infow("fan-out complete",
		"newsletter_id", n.ID,
		"total", stats.Total, "sent", stats.Sent,
		"pending", stats.Pending, "failed", stats.Failed,
	)
	return stats, nil
}

func (f *Fanout) deliverOne(ctx context.Context, n *model.Newsletter, categoryNames []string, job fanoutJob) string {
	status, reason := f.Attempt(ctx, n, &job.subscriber, categoryNames)
	if err := f.DeliveryRepo.UpdateStatus(ctx, job.delivery.ID, status, reason); err != nil {
		f.Log.Errorw("failed to record delivery outcome",
			"delivery_id", job.delivery.ID, "status", status, "error", err)
		return model.DeliveryFailed
	}
	return status
}

// Attempt runs a single send attempt and maps the adapter outcome to a
// delivery status plus reason. Subscribers with a broken or unsupported
// contact method fail without touching any adapter.
func (f *Fanout) Attempt(ctx context.Context, n *model.Newsletter, sub *model.Subscriber, categoryNames []string) (status, reason string) {
	switch sub.ContactMethod {
	case model.ContactEmail:
		if sub.Email == "" {
			return model.DeliveryFailed, model.ReasonMissingContact
		}
	case model.ContactSMS:
		if sub.Phone == "" {
			return model.DeliveryFailed, model.ReasonMissingContact
		}
	default:
		return model.DeliveryFailed, model.ReasonUnsupportedMethod
	}

	adapter, ok := f.Adapters[sub.ContactMethod]
	if !ok {
		return model.DeliveryFailed, model.ReasonUnsupportedMethod
	}

	sendCtx := ctx
	if f.SendTimeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, f.SendTimeout)
		defer cancel()
	}

	outcome := adapter.Send(sendCtx, sub, n, categoryNames)
	switch outcome.Status {
	case channel.OutcomeSent:
		return model.DeliverySent, ""
	case channel.OutcomeDeferred:
		return model.DeliveryPending, outcome.Reason
	default:
		r := outcome.Reason
		if r == "" {
			r = "send_failed"
		}
		return model.DeliveryFailed, r
	}
}
