// internal/controller/respond.go
package controller

import (
	"encoding/json"
	"errors"
	"net/http"

	appErrors "github.com/openletter/newsletter-backend/internal/errors"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	var (
		newsletterNotFound *appErrors.ErrNewsletterNotFound
		subscriberNotFound *appErrors.ErrSubscriberNotFound
		deliveryNotFound   *appErrors.ErrDeliveryNotFound
		alreadySent        *appErrors.ErrAlreadySent
		validation         *appErrors.ErrValidation
		storeUnavailable   *appErrors.ErrStoreUnavailable
	)

	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &newsletterNotFound),
		errors.As(err, &subscriberNotFound),
		errors.As(err, &deliveryNotFound):
		status = http.StatusNotFound
	case errors.As(err, &alreadySent):
		status = http.StatusConflict
	case errors.As(err, &validation):
		status = http.StatusBadRequest
	case errors.As(err, &storeUnavailable):
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, map[string]string{"error": err.Error()})
}
