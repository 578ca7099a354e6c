// Package handler provides HTTP handlers for the CleanAirRoute API.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/cleanairroute/cleanairroute/internal/api/models"
	"github.com/cleanairroute/cleanairroute/internal/api/response"
)

// validate checks request bodies against their struct tags.
var validate = validator.New()

// decodeValid decodes the request body into dst and validates it. Writes a
// problem response and returns false when either step fails.
func decodeValid(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return false
	}
	if err := validate.Struct(dst); err != nil {
		response.BadRequest(w, r, "request validation failed", fieldErrors(err))
		return false
	}
	return true
}

// fieldErrors flattens validator errors into the wire field error list.
func fieldErrors(err error) []models.FieldError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make([]models.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, models.FieldError{
			Field:   fe.Field(),
			Message: "failed " + fe.Tag() + " validation",
			Code:    fe.Tag(),
		})
	}
	return out
}
