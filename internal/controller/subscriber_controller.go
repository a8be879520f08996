// internal/controller/subscriber_controller.go
package controller

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/openletter/newsletter-backend/internal/repository"
	"github.com/openletter/newsletter-backend/internal/service"
)

type SubscriberController struct {
	SubscriberService *service.SubscriberService
	CategoryRepo      repository.CategoryRepositoryInterface
	Validate          *validator.Validate
}

type subscribeRequest struct {
	FirstName     string `json:"first_name"`
	ContactMethod string `json:"contact_method" validate:"required,oneof=email sms"`
	Email         string `json:"email" validate:"omitempty,email"`
	Phone         string `json:"phone" validate:"omitempty,e164"`
	Frequency     string `json:"frequency" validate:"omitempty,oneof=daily weekly monthly"`
	CategoryIDs   []int  `json:"category_ids" validate:"required,min=1"`
}

// Subscribe backs the public subscription form.
func (c *SubscriberController) Subscribe(w http.ResponseWriter, r *http.Request) {
	var body subscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if err := c.Validate.Struct(body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	sub, err := c.SubscriberService.Subscribe(r.Context(), service.SubscribeInput{
		FirstName:     body.FirstName,
		ContactMethod: body.ContactMethod,
		Email:         body.Email,
		Phone:         body.Phone,
		Frequency:     body.Frequency,
		CategoryIDs:   body.CategoryIDs,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, sub)
}

type preferencesRequest struct {
	Frequency   string `json:"frequency" validate:"omitempty,oneof=daily weekly monthly"`
	CategoryIDs []int  `json:"category_ids" validate:"required,min=1"`
}

func (c *SubscriberController) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	var body preferencesRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if err := c.Validate.Struct(body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	sub, err := c.SubscriberService.UpdatePreferences(r.Context(), token, body.Frequency, body.CategoryIDs)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sub)
}

func (c *SubscriberController) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	if err := c.SubscriberService.Unsubscribe(r.Context(), token); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "unsubscribed"})
}

func (c *SubscriberController) ListSubscribers(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))

	var active *bool
	if v := r.URL.Query().Get("active"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			http.Error(w, "invalid active filter", http.StatusBadRequest)
			return
		}
		active = &b
	}

	subscribers, pagination, err := c.SubscriberService.List(r.Context(), page, pageSize, active)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data":       subscribers,
		"pagination": pagination,
	})
}

func (c *SubscriberController) DeleteSubscriber(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid subscriber id", http.StatusBadRequest)
		return
	}

	if err := c.SubscriberService.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (c *SubscriberController) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := c.CategoryRepo.ListAll(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"data": categories})
}
