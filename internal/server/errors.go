package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/eventpass/internal/authorization"
	checkindomain "github.com/smallbiznis/eventpass/internal/checkin/domain"
	credentialdomain "github.com/smallbiznis/eventpass/internal/credential/domain"
	eventdomain "github.com/smallbiznis/eventpass/internal/event/domain"
	paymentdomain "github.com/smallbiznis/eventpass/internal/payment/domain"
	registrationdomain "github.com/smallbiznis/eventpass/internal/registration/domain"
	"github.com/smallbiznis/eventpass/pkg/db/pagination"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type               string            `json:"type"`
	Message            string            `json:"message"`
	Errors             []ValidationError `json:"errors,omitempty"`
	CheckedInAt        *time.Time        `json:"checked_in_at,omitempty"`
	CheckedInByStaffID string            `json:"checked_in_by_staff_id,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrOrgRequired        = errors.New("organization_required")
	ErrRateLimited        = errors.New("rate_limited")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

// statusBySentinel lists domain errors that surface with their own code as
// the error type.
var statusBySentinel = []struct {
	err    error
	status int
}{
	{paymentdomain.ErrGatewayUnavailable, http.StatusServiceUnavailable},
	{ErrServiceUnavailable, http.StatusServiceUnavailable},

	{paymentdomain.ErrSignatureMismatch, http.StatusPaymentRequired},
	{paymentdomain.ErrPaymentFailed, http.StatusPaymentRequired},

	{ErrUnauthorized, http.StatusUnauthorized},
	{credentialdomain.ErrInvalidToken, http.StatusUnauthorized},
	{paymentdomain.ErrInvalidWebhookSignature, http.StatusUnauthorized},

	{ErrForbidden, http.StatusForbidden},
	{authorization.ErrForbidden, http.StatusForbidden},

	{registrationdomain.ErrDuplicateRegistration, http.StatusConflict},
	{registrationdomain.ErrEventFull, http.StatusConflict},
	{registrationdomain.ErrAlreadyCheckedIn, http.StatusConflict},
	{registrationdomain.ErrTransactionNotCompleted, http.StatusConflict},
	{registrationdomain.ErrNotRegistrationPayment, http.StatusConflict},
	{registrationdomain.ErrNotDonationPayment, http.StatusConflict},
	{credentialdomain.ErrRegistrationNotConfirmed, http.StatusConflict},
	{checkindomain.ErrRegistrationNotConfirmed, http.StatusConflict},

	{credentialdomain.ErrTokenRevoked, http.StatusGone},
	{credentialdomain.ErrTokenExpired, http.StatusGone},
	{paymentdomain.ErrTransactionExpired, http.StatusGone},

	{checkindomain.ErrGuestCountExceeded, http.StatusUnprocessableEntity},
	{paymentdomain.ErrAmountMismatch, http.StatusUnprocessableEntity},

	{ErrRateLimited, http.StatusTooManyRequests},
}

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func classifyErrorForLog(err error) (int, string) {
	status, payload := mapError(err)
	return status, payload.Type
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	var already *checkindomain.AlreadyCheckedInError
	if errors.As(err, &already) {
		checkedInAt := already.Record.CheckedInAt
		return http.StatusConflict, errorPayload{
			Type:               "ALREADY_CHECKED_IN",
			Message:            "registration already checked in",
			CheckedInAt:        &checkedInAt,
			CheckedInByStaffID: already.Record.CheckedInByStaffID.String(),
		}
	}
	if errors.Is(err, checkindomain.ErrAlreadyCheckedIn) {
		return http.StatusConflict, errorPayload{
			Type:    "ALREADY_CHECKED_IN",
			Message: "registration already checked in",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	for _, entry := range statusBySentinel {
		if errors.Is(err, entry.err) {
			code := entry.err.Error()
			return entry.status, errorPayload{
				Type:    code,
				Message: strings.ReplaceAll(code, "_", " "),
			}
		}
	}

	if isNotFoundError(err) {
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	}

	return http.StatusInternalServerError, errorPayload{
		Type:    "internal_error",
		Message: "internal server error",
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, ErrOrgRequired),
		errors.Is(err, pagination.ErrInvalidPageToken),
		errors.Is(err, paymentdomain.ErrInvalidOrganization),
		errors.Is(err, paymentdomain.ErrInvalidUser),
		errors.Is(err, paymentdomain.ErrInvalidReferenceType),
		errors.Is(err, paymentdomain.ErrInvalidIntent),
		errors.Is(err, paymentdomain.ErrInvalidGuest),
		errors.Is(err, paymentdomain.ErrInvalidAmount),
		errors.Is(err, paymentdomain.ErrInvalidCurrency),
		errors.Is(err, paymentdomain.ErrInvalidPayload),
		errors.Is(err, eventdomain.ErrInvalidOrganization),
		errors.Is(err, eventdomain.ErrInvalidName),
		errors.Is(err, eventdomain.ErrInvalidFee),
		errors.Is(err, eventdomain.ErrInvalidCurrency),
		errors.Is(err, eventdomain.ErrInvalidCapacity),
		errors.Is(err, eventdomain.ErrInvalidStartsAt),
		errors.Is(err, registrationdomain.ErrInvalidOrganization),
		errors.Is(err, credentialdomain.ErrInvalidOrganization),
		errors.Is(err, checkindomain.ErrInvalidOrganization),
		errors.Is(err, checkindomain.ErrInvalidStaff),
		errors.Is(err, authorization.ErrInvalidRole):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, eventdomain.ErrNotFound),
		errors.Is(err, paymentdomain.ErrTransactionNotFound),
		errors.Is(err, paymentdomain.ErrEventNotFound),
		errors.Is(err, paymentdomain.ErrProviderNotFound),
		errors.Is(err, registrationdomain.ErrNotFound),
		errors.Is(err, registrationdomain.ErrTransactionNotFound),
		errors.Is(err, registrationdomain.ErrEventNotFound),
		errors.Is(err, checkindomain.ErrNotCheckedIn),
		errors.Is(err, checkindomain.ErrEventNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	for _, sentinel := range []error{
		ErrInvalidRequest,
		ErrOrgRequired,
		pagination.ErrInvalidPageToken,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return err.Error()
}

func validationErrorField(code string) string {
	switch code {
	case "invalid_request":
		return "request"
	case "organization_required":
		return HeaderOrg
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	case "organization_required":
		return "organization header is required"
	default:
		return "invalid value"
	}
}
