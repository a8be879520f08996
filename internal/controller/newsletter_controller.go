// internal/controller/newsletter_controller.go
package controller

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/openletter/newsletter-backend/internal/service"
)

type NewsletterController struct {
	NewsletterService *service.NewsletterService
	DeliveryService   *service.DeliveryService
	Validate          *validator.Validate
}

type newsletterRequest struct {
	Title       string `json:"title" validate:"required"`
	Subject     string `json:"subject" validate:"required"`
	Content     string `json:"content" validate:"required"`
	AuthorID    int    `json:"author_id"`
	CategoryIDs []int  `json:"category_ids" validate:"required,min=1"`
	Action      string `json:"action" validate:"omitempty,oneof=draft send"`
}

func (c *NewsletterController) CreateNewsletter(w http.ResponseWriter, r *http.Request) {
	var body newsletterRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if err := c.Validate.Struct(body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	action := body.Action
	if action == "" {
		action = service.ActionDraft
	}

	n, stats, err := c.NewsletterService.Create(r.Context(), service.NewsletterInput{
		Title:       body.Title,
		Subject:     body.Subject,
		Content:     body.Content,
		AuthorID:    body.AuthorID,
		CategoryIDs: body.CategoryIDs,
	}, action)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := map[string]interface{}{"newsletter": n}
	if stats != nil {
		resp["stats"] = stats
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (c *NewsletterController) UpdateNewsletter(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid newsletter id", http.StatusBadRequest)
		return
	}

	var body newsletterRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if err := c.Validate.Struct(body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	action := body.Action
	if action == "" {
		action = service.ActionDraft
	}

	n, stats, err := c.NewsletterService.Update(r.Context(), id, service.NewsletterInput{
		Title:       body.Title,
		Subject:     body.Subject,
		Content:     body.Content,
		AuthorID:    body.AuthorID,
		CategoryIDs: body.CategoryIDs,
	}, action)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := map[string]interface{}{"newsletter": n}
	if stats != nil {
		resp["stats"] = stats
	}
	writeJSON(w, http.StatusOK, resp)
}

func (c *NewsletterController) ListNewsletters(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	status := r.URL.Query().Get("status")

	newsletters, pagination, err := c.NewsletterService.List(r.Context(), page, pageSize, status)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data":       newsletters,
		"pagination": pagination,
	})
}

// GetNewsletter returns a newsletter together with its delivery stats.
func (c *NewsletterController) GetNewsletter(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid newsletter id", http.StatusBadRequest)
		return
	}

	details, err := c.NewsletterService.GetWithStats(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, details)
}

func (c *NewsletterController) SendNewsletter(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid newsletter id", http.StatusBadRequest)
		return
	}

	n, stats, err := c.NewsletterService.Send(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"newsletter": n,
		"stats":      stats,
	})
}

func (c *NewsletterController) ResendNewsletter(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid newsletter id", http.StatusBadRequest)
		return
	}

	n, stats, err := c.NewsletterService.Resend(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"newsletter": n,
		"stats":      stats,
	})
}

func (c *NewsletterController) ListDeliveries(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid newsletter id", http.StatusBadRequest)
		return
	}

	deliveries, err := c.DeliveryService.ListByNewsletter(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"data": deliveries})
}
