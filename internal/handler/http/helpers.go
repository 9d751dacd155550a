package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/grocery-storefront/internal/apiclient"
	"github.com/vasiliy-maslov/grocery-storefront/internal/cart"
	"github.com/vasiliy-maslov/grocery-storefront/internal/order"
	"github.com/vasiliy-maslov/grocery-storefront/internal/session"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type ValidationErrorResponse struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details"`
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, ErrorResponse{Error: message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"Failed to marshal JSON response"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(response); err != nil {
		log.Error().Err(err).Msg("Failed to write JSON response")
	}
}

func formatValidationErrors(errs validator.ValidationErrors) map[string]string {
	details := make(map[string]string, len(errs))
	for _, fe := range errs {
		field := fe.Field()
		switch fe.Tag() {
		case "required":
			details[field] = "is required"
		case "email":
			details[field] = "must be a valid email"
		case "oneof":
			details[field] = "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
		case "min":
			details[field] = "must be at least " + fe.Param()
		case "gte", "lte":
			details[field] = fmt.Sprintf("must be %s %s", fe.Tag(), fe.Param())
		default:
			details[field] = "failed on " + fe.Tag()
		}
	}
	return details
}

// decodeAndValidate decodes the JSON body into dst and validates it. It writes the error response
// itself and reports whether the handler may continue.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, validate *validator.Validate, dst any) bool {
	return decodeBody(w, r, validate, dst, false)
}

// decodeOptionalAndValidate accepts an empty body and leaves dst untouched.
func decodeOptionalAndValidate(w http.ResponseWriter, r *http.Request, validate *validator.Validate, dst any) bool {
	return decodeBody(w, r, validate, dst, true)
}

func decodeBody(w http.ResponseWriter, r *http.Request, validate *validator.Validate, dst any, optional bool) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return true
		}
		log.Warn().Err(err).Str("path", r.URL.Path).Msg("Failed to decode request body")
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request payload: %v", err))
		return false
	}

	if err := validate.Struct(dst); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			respondWithJSON(w, http.StatusBadRequest, ValidationErrorResponse{
				Error:   "Validation failed",
				Details: formatValidationErrors(validationErrors),
			})
			return false
		}
		log.Error().Err(err).Type("validation_error_type", err).Msg("Unexpected error type during validation")
		respondWithError(w, http.StatusInternalServerError, "Internal validation error")
		return false
	}
	return true
}

func mapErrorToStatusCode(err error) int {
	var rf *apiclient.RequestFailed

	switch {
	case errors.Is(err, cart.ErrInvalidProduct),
		errors.Is(err, cart.ErrInvalidPrice),
		errors.Is(err, order.ErrInvalidStatus),
		errors.Is(err, order.ErrInvalidPriority),
		errors.Is(err, order.ErrMissingFailureReason),
		errors.Is(err, order.ErrInvalidLocation),
		errors.Is(err, session.ErrInvalidIdentity):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrNotLoggedIn):
		return http.StatusUnauthorized
	case errors.Is(err, order.ErrAccessDenied):
		return http.StatusForbidden
	case errors.Is(err, order.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, cart.ErrCheckoutBlocked),
		errors.Is(err, order.ErrIllegalTransition):
		return http.StatusConflict
	case errors.Is(err, cart.ErrInvalidCheckoutState),
		errors.Is(err, order.ErrDriverRequired):
		return http.StatusUnprocessableEntity
	case errors.As(err, &rf):
		if rf.IsAuth() {
			return rf.Status
		}
		return http.StatusBadGateway
	case errors.Is(err, apiclient.ErrMalformedResponse):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondWithServiceError logs err and writes it with the mapped status. Server-side failures get a
// generic message.
func respondWithServiceError(w http.ResponseWriter, err error, fallback string) {
	code := mapErrorToStatusCode(err)
	if code >= http.StatusInternalServerError {
		log.Error().Err(err).Int("status", code).Msg(fallback)
		if code == http.StatusBadGateway {
			respondWithError(w, code, fallback+": "+err.Error())
			return
		}
		respondWithError(w, code, fallback)
		return
	}
	log.Warn().Err(err).Int("status", code).Msg(fallback)
	respondWithError(w, code, err.Error())
}
