package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appErrors "github.com/openletter/newsletter-backend/internal/errors"
	"github.com/openletter/newsletter-backend/internal/model"
	"github.com/openletter/newsletter-backend/internal/service"
)

// InMemorySubscriberRepo backs the subscriber lifecycle tests.
type InMemorySubscriberRepo struct {
	nextID      int
	subscribers map[int]*model.Subscriber
}

func NewInMemorySubscriberRepo() *InMemorySubscriberRepo {
	return &InMemorySubscriberRepo{subscribers: map[int]*model.Subscriber{}}
}

func (r *InMemorySubscriberRepo) GetByID(ctx context.Context, id int) (*model.Subscriber, error) {
	if s, ok := r.subscribers[id]; ok {
		copied := *s
		return &copied, nil
	}
	return nil, nil
}

func (r *InMemorySubscriberRepo) GetByContact(ctx context.Context, method, contact string) (*model.Subscriber, error) {
	for _, s := range r.subscribers {
		if s.ContactMethod == method && (s.Email == contact || s.Phone == contact) {
			copied := *s
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *InMemorySubscriberRepo) GetByUnsubscribeToken(ctx context.Context, token string) (*model.Subscriber, error) {
	for _, s := range r.subscribers {
		if s.UnsubscribeToken == token {
			copied := *s
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *InMemorySubscriberRepo) GetByPreferencesToken(ctx context.Context, token string) (*model.Subscriber, error) {
	for _, s := range r.subscribers {
		if s.PreferencesToken == token {
			copied := *s
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *InMemorySubscriberRepo) Create(ctx context.Context, s *model.Subscriber, categoryIDs []int) error {
	r.nextID++
	s.ID = r.nextID
	s.CategoryIDs = categoryIDs
	copied := *s
	r.subscribers[s.ID] = &copied
	return nil
}

func (r *InMemorySubscriberRepo) SetActive(ctx context.Context, id int, active bool) error {
	if s, ok := r.subscribers[id]; ok {
		s.IsActive = active
	}
	return nil
}

func (r *InMemorySubscriberRepo) UpdatePreferences(ctx context.Context, id int, frequency string, categoryIDs []int) error {
	if s, ok := r.subscribers[id]; ok {
		if frequency != "" {
			s.Frequency = frequency
		}
		s.CategoryIDs = categoryIDs
	}
	return nil
}

func (r *InMemorySubscriberRepo) List(ctx context.Context, offset, limit int, active *bool) ([]model.Subscriber, int, error) {
	return nil, 0, nil
}

func (r *InMemorySubscriberRepo) Delete(ctx context.Context, id int) error {
	delete(r.subscribers, id)
	return nil
}

func (r *InMemorySubscriberRepo) ListActiveByCategories(ctx context.Context, categoryIDs []int) ([]model.Subscriber, error) {
	return nil, nil
}

func newSubscriberService(repo *InMemorySubscriberRepo) *service.SubscriberService {
	return &service.SubscriberService{SubscriberRepo: repo, Log: zap.NewNop().Sugar()}
}

func TestSubscribeCreatesTokens(t *testing.T) {
	svc := newSubscriberService(NewInMemorySubscriberRepo())

	sub, err := svc.Subscribe(context.Background(), service.SubscribeInput{
		FirstName:     "Alice",
		ContactMethod: model.ContactEmail,
		Email:         "alice@example.com",
		CategoryIDs:   []int{1, 2},
	})
	require.NoError(t, err)

	assert.True(t, sub.IsActive)
	assert.Equal(t, "weekly", sub.Frequency, "frequency defaults when omitted")
	assert.GreaterOrEqual(t, len(sub.UnsubscribeToken), 32)
	assert.GreaterOrEqual(t, len(sub.PreferencesToken), 32)
	assert.NotEqual(t, sub.UnsubscribeToken, sub.PreferencesToken)
}

func TestSubscribeRejectsMissingContactField(t *testing.T) {
	svc := newSubscriberService(NewInMemorySubscriberRepo())

	_, err := svc.Subscribe(context.Background(), service.SubscribeInput{
		ContactMethod: model.ContactEmail,
		CategoryIDs:   []int{1},
	})
	var validation *appErrors.ErrValidation
	require.ErrorAs(t, err, &validation)

	_, err = svc.Subscribe(context.Background(), service.SubscribeInput{
		ContactMethod: model.ContactSMS,
		CategoryIDs:   []int{1},
	})
	require.ErrorAs(t, err, &validation)

	_, err = svc.Subscribe(context.Background(), service.SubscribeInput{
		ContactMethod: "fax",
		Email:         "a@example.com",
		CategoryIDs:   []int{1},
	})
	require.ErrorAs(t, err, &validation)
}

func TestSubscribeReactivatesExisting(t *testing.T) {
	repo := NewInMemorySubscriberRepo()
	svc := newSubscriberService(repo)

	first, err := svc.Subscribe(context.Background(), service.SubscribeInput{
		ContactMethod: model.ContactEmail,
		Email:         "bob@example.com",
		CategoryIDs:   []int{1},
	})
	require.NoError(t, err)

	require.NoError(t, svc.Unsubscribe(context.Background(), first.UnsubscribeToken))

	second, err := svc.Subscribe(context.Background(), service.SubscribeInput{
		ContactMethod: model.ContactEmail,
		Email:         "bob@example.com",
		Frequency:     "daily",
		CategoryIDs:   []int{2},
	})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID, "resubscribing must not duplicate the subscriber")
	assert.True(t, second.IsActive)
	assert.Equal(t, "daily", second.Frequency)
}

func TestUnsubscribeDeactivates(t *testing.T) {
	repo := NewInMemorySubscriberRepo()
	svc := newSubscriberService(repo)

	sub, err := svc.Subscribe(context.Background(), service.SubscribeInput{
		ContactMethod: model.ContactSMS,
		Phone:         "+254700000001",
		CategoryIDs:   []int{1},
	})
	require.NoError(t, err)

	require.NoError(t, svc.Unsubscribe(context.Background(), sub.UnsubscribeToken))

	stored, _ := repo.GetByID(context.Background(), sub.ID)
	assert.False(t, stored.IsActive)

	err = svc.Unsubscribe(context.Background(), "no-such-token")
	var notFound *appErrors.ErrSubscriberNotFound
	require.ErrorAs(t, err, &notFound)
}

func TestUpdatePreferencesByToken(t *testing.T) {
	repo := NewInMemorySubscriberRepo()
	svc := newSubscriberService(repo)

	sub, err := svc.Subscribe(context.Background(), service.SubscribeInput{
		ContactMethod: model.ContactEmail,
		Email:         "carol@example.com",
		CategoryIDs:   []int{1},
	})
	require.NoError(t, err)

	updated, err := svc.UpdatePreferences(context.Background(), sub.PreferencesToken, "monthly", []int{2, 3})
	require.NoError(t, err)
	assert.Equal(t, "monthly", updated.Frequency)
	assert.Equal(t, []int{2, 3}, updated.CategoryIDs)

	_, err = svc.UpdatePreferences(context.Background(), sub.PreferencesToken, "", nil)
	var validation *appErrors.ErrValidation
	require.ErrorAs(t, err, &validation, "an empty category set is rejected")
}
