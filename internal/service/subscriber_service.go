// internal/service/subscriber_service.go
package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	appErrors "github.com/openletter/newsletter-backend/internal/errors"
	"github.com/openletter/newsletter-backend/internal/model"
	"github.com/openletter/newsletter-backend/internal/repository"
)

type SubscriberService struct {
	SubscriberRepo repository.SubscriberRepositoryInterface
	Log            *zap.SugaredLogger
}

type SubscribeInput struct {
	FirstName     string
	ContactMethod string
	Email         string
	Phone         string
	Frequency     string
	CategoryIDs   []int
}

// Subscribe creates a subscriber, or reactivates an existing one signing up
// again with the same address.
func (s *SubscriberService) Subscribe(ctx context.Context, in SubscribeInput) (*model.Subscriber, error) {
	var contact string
	switch in.ContactMethod {
	case model.ContactEmail:
		if in.Email == "" {
			return nil, appErrors.NewValidation("email is required for the email contact method")
		}
		contact = in.Email
	case model.ContactSMS:
		if in.Phone == "" {
			return nil, appErrors.NewValidation("phone is required for the sms contact method")
		}
		contact = in.Phone
	default:
		return nil, appErrors.NewValidation("unsupported contact method %q", in.ContactMethod)
	}
	if len(in.CategoryIDs) == 0 {
		return nil, appErrors.NewValidation("at least one category is required")
	}
	if in.Frequency == "" {
		in.Frequency = "weekly"
	}

	existing, err := s.SubscriberRepo.GetByContact(ctx, in.ContactMethod, contact)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if err := s.SubscriberRepo.SetActive(ctx, existing.ID, true); err != nil {
			return nil, err
		}
		if err := s.SubscriberRepo.UpdatePreferences(ctx, existing.ID, in.Frequency, in.CategoryIDs); err != nil {
			return nil, err
		}
		s.Log.Infow("subscriber reactivated", "subscriber_id", existing.ID)
		existing.IsActive = true
		existing.Frequency = in.Frequency
		existing.CategoryIDs = in.CategoryIDs
		return existing, nil
	}

	sub := &model.Subscriber{
		FirstName:        in.FirstName,
		ContactMethod:    in.ContactMethod,
		Email:            in.Email,
		Phone:            in.Phone,
		IsActive:         true,
		Frequency:        in.Frequency,
		UnsubscribeToken: newToken(),
		PreferencesToken: newToken(),
	}
	if err := s.SubscriberRepo.Create(ctx, sub, in.CategoryIDs); err != nil {
		return nil, err
	}
	s.Log.Infow("subscriber created", "subscriber_id", sub.ID, "contact_method", sub.ContactMethod)
	return sub, nil
}

// UpdatePreferences applies a preferences-token holder's new category set
// and frequency.
func (s *SubscriberService) UpdatePreferences(ctx context.Context, token, frequency string, categoryIDs []int) (*model.Subscriber, error) {
	sub, err := s.SubscriberRepo.GetByPreferencesToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, appErrors.NewSubscriberNotFound("with preferences token")
	}
	if len(categoryIDs) == 0 {
		return nil, appErrors.NewValidation("at least one category is required")
	}
	if err := s.SubscriberRepo.UpdatePreferences(ctx, sub.ID, frequency, categoryIDs); err != nil {
		return nil, err
	}
	if frequency != "" {
		sub.Frequency = frequency
	}
	sub.CategoryIDs = categoryIDs
	return sub, nil
}

// Unsubscribe deactivates the token holder. The row is kept; only explicit
// admin removal deletes it.
func (s *SubscriberService) Unsubscribe(ctx context.Context, token string) error {
	sub, err := s.SubscriberRepo.GetByUnsubscribeToken(ctx, token)
	if err != nil {
		return err
	}
	if sub == nil {
		return appErrors.NewSubscriberNotFound("with unsubscribe token")
	}
	if err := s.SubscriberRepo.SetActive(ctx, sub.ID, false); err != nil {
		return err
	}
	s.Log.Infow("subscriber unsubscribed", "subscriber_id", sub.ID)
	return nil
}

// List fetches subscribers with pagination
func (s *SubscriberService) List(ctx context.Context, page, pageSize int, active *bool) ([]model.Subscriber, map[string]int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	offset := (page - 1) * pageSize

	subscribers, total, err := s.SubscriberRepo.List(ctx, offset, pageSize, active)
	if err != nil {
		return nil, nil, err
	}

	totalPages := (total + pageSize - 1) / pageSize
	pagination := map[string]int{
		"page":        page,
		"page_size":   pageSize,
		"total_count": total,
		"total_pages": totalPages,
	}
	return subscribers, pagination, nil
}

func (s *SubscriberService) Delete(ctx context.Context, id int) error {
	return s.SubscriberRepo.Delete(ctx, id)
}

// newToken builds an unguessable 64-character token. uuid reads from
// crypto/rand, two concatenated give 244 bits of entropy.
func newToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "") + strings.ReplaceAll(uuid.NewString(), "-", "")
}
