// internal/service/delivery_service.go
package service

import (
	"context"
	"strconv"

	"go.uber.org/zap"

	appErrors "github.com/openletter/newsletter-backend/internal/errors"
	"github.com/openletter/newsletter-backend/internal/model"
	"github.com/openletter/newsletter-backend/internal/repository"
)

type DeliveryService struct {
	DeliveryRepo   repository.DeliveryRepositoryInterface
	NewsletterRepo repository.NewsletterRepositoryInterface
	SubscriberRepo repository.SubscriberRepositoryInterface
	CategoryRepo   repository.CategoryRepositoryInterface
	Fanout         *Fanout
	Log            *zap.SugaredLogger
}

// ListByNewsletter returns the delivery status list for one newsletter.
func (s *DeliveryService) ListByNewsletter(ctx context.Context, newsletterID int) ([]model.Delivery, error) {
	if _, err := s.NewsletterRepo.GetByID(ctx, newsletterID); err != nil {
		return nil, err
	}
	return s.DeliveryRepo.ListByNewsletter(ctx, newsletterID)
}

// Retry re-attempts a single delivery in place. It is idempotent: a
// delivery that already went out is returned untouched, and no duplicate
// row is ever created.
func (s *DeliveryService) Retry(ctx context.Context, deliveryID int) (*model.Delivery, error) {
	d, err := s.DeliveryRepo.GetByID(ctx, deliveryID)
	if err != nil {
		return nil, err
	}
	if d.Status == model.DeliverySent {
		return d, nil
	}

	n, err := s.NewsletterRepo.GetByID(ctx, d.NewsletterID)
	if err != nil {
		return nil, err
	}
	sub, err := s.SubscriberRepo.GetByID(ctx, d.SubscriberID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, appErrors.NewSubscriberNotFound(strconv.Itoa(d.SubscriberID))
	}

	if !sub.IsActive {
		if err := s.DeliveryRepo.UpdateStatus(ctx, d.ID, model.DeliveryFailed, "subscriber_inactive"); err != nil {
			return nil, err
		}
		return s.DeliveryRepo.GetByID(ctx, d.ID)
	}

	categoryNames, err := s.CategoryRepo.NamesByIDs(ctx, n.CategoryIDs)
	if err != nil {
		return nil, err
	}

	status, reason := s.Fanout.Attempt(ctx, n, sub, categoryNames)
	s.Log.Infow("delivery retried", "delivery_id", d.ID, "status", status, "reason", reason)
	if err := s.DeliveryRepo.UpdateStatus(ctx, d.ID, status, reason); err != nil {
		return nil, err
	}
	return s.DeliveryRepo.GetByID(ctx, d.ID)
}

// MarkOpened records the open-tracking hit for a delivery.
func (s *DeliveryService) MarkOpened(ctx context.Context, deliveryID int) error {
	return s.DeliveryRepo.MarkOpened(ctx, deliveryID)
}
