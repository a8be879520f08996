// internal/service/newsletter_service.go
package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/openletter/newsletter-backend/internal/errors"
	"github.com/openletter/newsletter-backend/internal/model"
	"github.com/openletter/newsletter-backend/internal/repository"
)

// Lifecycle actions accepted on create/update.
const (
	ActionDraft = "draft"
	ActionSend  = "send"
)

// FanoutRunner lets tests substitute the orchestrator.
type FanoutRunner interface {
	Send(ctx context.Context, n *model.Newsletter) (model.DeliveryStats, error)
}

type NewsletterService struct {
	NewsletterRepo repository.NewsletterRepositoryInterface
	DeliveryRepo   repository.DeliveryRepositoryInterface
	Fanout         FanoutRunner
	Log            *zap.SugaredLogger
}

type NewsletterInput struct {
	Title       string
	Subject     string
	Content     string
	AuthorID    int
	CategoryIDs []int
}

// NewsletterDetails is the stats-enriched read model.
type NewsletterDetails struct {
	ID          int                 `json:"id"`
	Title       string              `json:"title"`
	Subject     string              `json:"subject"`
	Content     string              `json:"content"`
	Status      string              `json:"status"`
	AuthorID    int                 `json:"author_id"`
	CategoryIDs []int               `json:"category_ids"`
	SentAt      *time.Time          `json:"sent_at,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   *time.Time          `json:"updated_at,omitempty"`
	Stats       model.DeliveryStats `json:"stats"`
}

// Create persists a newsletter; action "send" additionally runs the fan-out
// and returns its stats.
func (s *NewsletterService) Create(ctx context.Context, in NewsletterInput, action string) (*model.Newsletter, *model.DeliveryStats, error) {
	n := &model.Newsletter{
		Title:    in.Title,
		Subject:  in.Subject,
		Content:  in.Content,
		Status:   model.NewsletterDraft,
		AuthorID: in.AuthorID,
	}
	if err := s.NewsletterRepo.Create(ctx, n, in.CategoryIDs); err != nil {
		return nil, nil, err
	}

	if action == ActionSend {
		return s.send(ctx, n)
	}
	return n, nil, nil
}

// Update edits a draft; action "send" sends it afterwards. A newsletter
// that already went out cannot be edited or implicitly re-sent.
func (s *NewsletterService) Update(ctx context.Context, id int, in NewsletterInput, action string) (*model.Newsletter, *model.DeliveryStats, error) {
	n, err := s.NewsletterRepo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if n.Status == model.NewsletterSent {
		return nil, nil, appErrors.NewAlreadySent(id)
	}

	n.Title = in.Title
	n.Subject = in.Subject
	n.Content = in.Content
	if in.AuthorID != 0 {
		n.AuthorID = in.AuthorID
	}
	if err := s.NewsletterRepo.Update(ctx, n, in.CategoryIDs); err != nil {
		return nil, nil, err
	}

	if action == ActionSend {
		return s.send(ctx, n)
	}
	return n, nil, nil
}

// Send transitions a draft to sent and fans it out.
func (s *NewsletterService) Send(ctx context.Context, id int) (*model.Newsletter, *model.DeliveryStats, error) {
	n, err := s.NewsletterRepo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if n.Status == model.NewsletterSent {
		return nil, nil, appErrors.NewAlreadySent(id)
	}
	return s.send(ctx, n)
}

// Resend is the explicit re-fan-out of an already-sent newsletter. Existing
// delivery rows are reset to pending and re-attempted; the audience is
// resolved fresh against the current category membership, and rows for
// subscribers who have since left it are dropped.
func (s *NewsletterService) Resend(ctx context.Context, id int) (*model.Newsletter, *model.DeliveryStats, error) {
	n, err := s.NewsletterRepo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if n.Status != model.NewsletterSent {
		return nil, nil, appErrors.NewValidation("newsletter %d has not been sent yet", id)
	}

	s.Log.Infow("resending newsletter", "newsletter_id", id)
	stats, err := s.Fanout.Send(ctx, n)
	if err != nil {
		return nil, nil, err
	}
	return n, &stats, nil
}

func (s *NewsletterService) send(ctx context.Context, n *model.Newsletter) (*model.Newsletter, *model.DeliveryStats, error) {
	now := time.Now()
	if err := s.NewsletterRepo.MarkSent(ctx, n.ID, now); err != nil {
		return nil, nil, err
	}
	n.Status = model.NewsletterSent
	n.SentAt = &now

	stats, err := s.Fanout.Send(ctx, n)
	if err != nil {
		return nil, nil, err
	}
	return n, &stats, nil
}

// List fetches newsletters with pagination
func (s *NewsletterService) List(ctx context.Context, page, pageSize int, status string) ([]model.Newsletter, map[string]int, error) {
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

	ptrs, total, err := s.NewsletterRepo.List(ctx, offset, pageSize, status)
	if err != nil {
		return nil, nil, err
	}

	newsletters := make([]model.Newsletter, len(ptrs))
	for i, n := range ptrs {
		newsletters[i] = *n
	}

	totalPages := (total + pageSize - 1) / pageSize
	pagination := map[string]int{
		"page":        page,
		"page_size":   pageSize,
		"total_count": total,
		"total_pages": totalPages,
	}

	return newsletters, pagination, nil
}

// GetWithStats fetches a newsletter together with its delivery summary.
func (s *NewsletterService) GetWithStats(ctx context.Context, id int) (*NewsletterDetails, error) {
	n, err := s.NewsletterRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	stats, err := s.DeliveryRepo.Stats(ctx, id)
	if err != nil {
		return nil, err
	}

	return &NewsletterDetails{
		ID:          n.ID,
		Title:       n.Title,
		Subject:     n.Subject,
		Content:     n.Content,
		Status:      n.Status,
		AuthorID:    n.AuthorID,
		CategoryIDs: n.CategoryIDs,
		SentAt:      n.SentAt,
		CreatedAt:   n.CreatedAt,
		UpdatedAt:   n.UpdatedAt,
		Stats:       stats,
	}, nil
}
