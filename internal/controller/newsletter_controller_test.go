package controller_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openletter/newsletter-backend/internal/controller"
	appErrors "github.com/openletter/newsletter-backend/internal/errors"
	"github.com/openletter/newsletter-backend/internal/model"
	"github.com/openletter/newsletter-backend/internal/service"
)

// --- Mock repositories ---

type MockNewsletterRepo struct {
	nextID      int
	newsletters map[int]*model.Newsletter
}

func NewMockNewsletterRepo() *MockNewsletterRepo {
	return &MockNewsletterRepo{newsletters: map[int]*model.Newsletter{}}
}

func (m *MockNewsletterRepo) Create(ctx context.Context, n *model.Newsletter, categoryIDs []int) error {
	m.nextID++
	n.ID = m.nextID
	n.CreatedAt = time.Now()
	n.CategoryIDs = categoryIDs
	copied := *n
	m.newsletters[n.ID] = &copied
	return nil
}

func (m *MockNewsletterRepo) Update(ctx context.Context, n *model.Newsletter, categoryIDs []int) error {
	copied := *n
	m.newsletters[n.ID] = &copied
	return nil
}

func (m *MockNewsletterRepo) GetByID(ctx context.Context, id int) (*model.Newsletter, error) {
	n, ok := m.newsletters[id]
	if !ok {
		return nil, appErrors.NewNewsletterNotFound(id)
	}
	copied := *n
	return &copied, nil
}

func (m *MockNewsletterRepo) List(ctx context.Context, offset, limit int, status string) ([]*model.Newsletter, int, error) {
	out := []*model.Newsletter{}
	for _, n := range m.newsletters {
		if status == "" || n.Status == status {
			out = append(out, n)
		}
	}
	return out, len(out), nil
}

func (m *MockNewsletterRepo) MarkSent(ctx context.Context, id int, sentAt time.Time) error {
	n, ok := m.newsletters[id]
	if !ok {
		return appErrors.NewNewsletterNotFound(id)
	}
	n.Status = model.NewsletterSent
	n.SentAt = &sentAt
	return nil
}

type MockDeliveryRepo struct {
	stats model.DeliveryStats
}

func (m *MockDeliveryRepo) CreateOrReset(ctx context.Context, newsletterID, subscriberID int, method string) (*model.Delivery, error) {
	return &model.Delivery{ID: 1, NewsletterID: newsletterID, SubscriberID: subscriberID}, nil
}
func (m *MockDeliveryRepo) UpdateStatus(ctx context.Context, id int, status, reason string) error {
	return nil
}
func (m *MockDeliveryRepo) GetByID(ctx context.Context, id int) (*model.Delivery, error) {
	return nil, appErrors.NewDeliveryNotFound(id)
}
func (m *MockDeliveryRepo) ListByNewsletter(ctx context.Context, newsletterID int) ([]model.Delivery, error) {
	return []model.Delivery{}, nil
}
func (m *MockDeliveryRepo) Stats(ctx context.Context, newsletterID int) (model.DeliveryStats, error) {
	return m.stats, nil
}
func (m *MockDeliveryRepo) MarkOpened(ctx context.Context, id int) error { return nil }
func (m *MockDeliveryRepo) PruneOutsideAudience(ctx context.Context, newsletterID int, subscriberIDs []int) error {
	return nil
}

type MockFanout struct {
	stats model.DeliveryStats
}

func (m *MockFanout) Send(ctx context.Context, n *model.Newsletter) (model.DeliveryStats, error) {
	return m.stats, nil
}

func newRouter(stats model.DeliveryStats) (*chi.Mux, *MockNewsletterRepo) {
	repo := NewMockNewsletterRepo()
	svc := &service.NewsletterService{
		NewsletterRepo: repo,
		DeliveryRepo:   &MockDeliveryRepo{stats: stats},
		Fanout:         &MockFanout{stats: stats},
		Log:            zap.NewNop().Sugar(),
	}
	ctrl := &controller.NewsletterController{
		NewsletterService: svc,
		Validate:          validator.New(),
	}

	r := chi.NewRouter()
	r.Post("/newsletters", ctrl.CreateNewsletter)
	r.Get("/newsletters/{id}", ctrl.GetNewsletter)
	r.Post("/newsletters/{id}/send", ctrl.SendNewsletter)
	r.Post("/newsletters/{id}/resend", ctrl.ResendNewsletter)
	return r, repo
}

// --- Tests ---

func TestCreateNewsletterDraft(t *testing.T) {
	r, repo := newRouter(model.DeliveryStats{})

	body, _ := json.Marshal(map[string]interface{}{
		"title":        "Weekly Tech",
		"subject":      "This week",
		"content":      "<p>hello</p>",
		"category_ids": []int{1},
	})
	req := httptest.NewRequest("POST", "/newsletters", bytes.NewReader(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)

	var res map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&res))
	assert.NotContains(t, res, "stats", "draft creation must not fan out")

	stored, err := repo.GetByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, model.NewsletterDraft, stored.Status)
}

func TestCreateNewsletterValidation(t *testing.T) {
	r, _ := newRouter(model.DeliveryStats{})

	body, _ := json.Marshal(map[string]interface{}{
		"title": "missing everything else",
	})
	req := httptest.NewRequest("POST", "/newsletters", bytes.NewReader(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSendNewsletterReturnsStats(t *testing.T) {
	stats := model.DeliveryStats{Total: 3, Sent: 2, Failed: 1}
	r, repo := newRouter(stats)

	require.NoError(t, repo.Create(context.Background(), &model.Newsletter{
		Title: "t", Subject: "s", Content: "c", Status: model.NewsletterDraft,
	}, []int{1}))

	req := httptest.NewRequest("POST", "/newsletters/1/send", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var res struct {
		Stats model.DeliveryStats `json:"stats"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&res))
	assert.Equal(t, stats, res.Stats)
}

func TestSendTwiceConflicts(t *testing.T) {
	r, repo := newRouter(model.DeliveryStats{})

	require.NoError(t, repo.Create(context.Background(), &model.Newsletter{
		Title: "t", Subject: "s", Content: "c", Status: model.NewsletterDraft,
	}, []int{1}))

	req := httptest.NewRequest("POST", "/newsletters/1/send", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest("POST", "/newsletters/1/send", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestResendSentNewsletter(t *testing.T) {
	r, repo := newRouter(model.DeliveryStats{Total: 2, Sent: 2})

	now := time.Now()
	require.NoError(t, repo.Create(context.Background(), &model.Newsletter{
		Title: "t", Subject: "s", Content: "c", Status: model.NewsletterSent, SentAt: &now,
	}, []int{1}))

	req := httptest.NewRequest("POST", "/newsletters/1/resend", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var res struct {
		Stats model.DeliveryStats `json:"stats"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&res))
	assert.Equal(t, 2, res.Stats.Total)
}

func TestGetUnknownNewsletter(t *testing.T) {
	r, _ := newRouter(model.DeliveryStats{})

	req := httptest.NewRequest("GET", "/newsletters/99", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
