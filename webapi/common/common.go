// Package common holds the response envelope, RFC 9457 problem details and
// request helpers shared by the HTTP handlers.
package common

import (
	"errors"
	"strings"
	"sync"

	"github.com/amirasaad/bankcards/pkg/domain"
	"github.com/amirasaad/bankcards/pkg/idempotency"
	"github.com/amirasaad/bankcards/pkg/repository"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// IdempotencyKeyHeader carries the client idempotency key of mutating requests.
const IdempotencyKeyHeader = "Idempotency-Key"

// Response defines the standard API response structure for success cases.
type Response struct {
	Status  int    `json:"status"`         // HTTP status code
	Message string `json:"message"`        // Human-readable explanation
	Data    any    `json:"data,omitempty"` // Response data
}

// ProblemDetails follows RFC 9457 Problem Details for HTTP APIs.
type ProblemDetails struct {
	Type     string `json:"type,omitempty"`     // A URI reference that identifies the problem type
	Title    string `json:"title"`              // Short, human-readable summary
	Status   int    `json:"status"`             // HTTP status code
	Detail   string `json:"detail,omitempty"`   // Human-readable explanation
	Instance string `json:"instance,omitempty"` // URI reference that identifies the specific occurrence
	Code     string `json:"code,omitempty"`     // Stable domain error kind
	Errors   any    `json:"errors,omitempty"`   // Optional: additional error details
}

// SuccessResponseJSON writes a Response envelope.
func SuccessResponseJSON(c *fiber.Ctx, status int, message string, data any) error {
	return c.Status(status).JSON(Response{Status: status, Message: message, Data: data})
}

// ProblemDetailsJSON writes err as problem details. The status is derived from
// err unless an int is passed in opts; a string in opts replaces the detail.
// Internal errors never expose their message.
func ProblemDetailsJSON(c *fiber.Ctx, title string, err error, opts ...any) error {
	status := ErrorToStatusCode(err)
	kind := domain.KindOf(err)
	detail := ""
	if err != nil && kind != domain.KindInternal {
		detail = err.Error()
	}
	var fe *fiber.Error
	if errors.As(err, &fe) {
		status = fe.Code
		detail = fe.Message
	}
	for _, o := range opts {
		switch v := o.(type) {
		case int:
			status = v
		case string:
			detail = v
		}
	}
	if status == fiber.StatusInternalServerError && detail == "" {
		detail = "An unexpected error occurred"
	}
	pd := ProblemDetails{
		Type:     "about:blank",
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: c.OriginalURL(),
	}
	if err != nil {
		pd.Code = string(kind)
	}
	if domain.IsRetryable(err) {
		c.Set(fiber.HeaderRetryAfter, "1")
	}
	c.Set(fiber.HeaderContentType, "application/problem+json")
	return c.Status(status).JSON(pd)
}

// ErrorToStatusCode maps domain errors to HTTP status codes.
func ErrorToStatusCode(err error) int {
	if err == nil {
		return fiber.StatusInternalServerError
	}
	switch domain.KindOf(err) {
	case domain.KindCardNotFound, domain.KindCustomerNotFound:
		return fiber.StatusNotFound
	case domain.KindCardAlreadyExists, domain.KindCustomerAlreadyExists,
		domain.KindAlreadyBlocked, domain.KindRequestInProgress:
		return fiber.StatusConflict
	case domain.KindNoAccessToOtherData:
		return fiber.StatusForbidden
	case domain.KindCardBlocked, domain.KindInsufficientFunds:
		return fiber.StatusUnprocessableEntity
	case domain.KindInvalidIdempotencyKey, domain.KindValidation:
		return fiber.StatusBadRequest
	case domain.KindInvalidCredentials:
		return fiber.StatusUnauthorized
	case domain.KindLockTimeout:
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// BindAndValidate parses the request body and validates it using go-playground/validator.
// Returns a pointer to the struct (populated), or writes an error response and returns nil.
func BindAndValidate[T any](c *fiber.Ctx) (*T, error) {
	validateOnce.Do(func() { validate = validator.New() })
	var input T
	if err := c.BodyParser(&input); err != nil {
		return nil, ProblemDetailsJSON(c, "Invalid request body", domain.ErrValidation, err.Error())
	}
	if err := validate.Struct(input); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				fields[fe.Field()] = fe.Tag()
			}
			c.Set(fiber.HeaderContentType, "application/problem+json")
			return nil, c.Status(fiber.StatusBadRequest).JSON(ProblemDetails{
				Type:     "about:blank",
				Title:    "Validation failed",
				Status:   fiber.StatusBadRequest,
				Detail:   "request body failed validation",
				Instance: c.OriginalURL(),
				Code:     string(domain.KindValidation),
				Errors:   fields,
			})
		}
		return nil, ProblemDetailsJSON(c, "Validation failed", domain.ErrValidation, err.Error())
	}
	return &input, nil
}

// IdempotencyKey returns the trimmed Idempotency-Key header. An empty key
// means a 400 response has already been written.
func IdempotencyKey(c *fiber.Ctx) (string, error) {
	key := strings.TrimSpace(c.Get(IdempotencyKeyHeader))
	if err := idempotency.ValidateKey(key); err != nil {
		return "", ProblemDetailsJSON(c, "Invalid idempotency key", err,
			"the "+IdempotencyKeyHeader+" header must hold a non-blank key")
	}
	return key, nil
}

// PageRequest reads the page and size query parameters.
func PageRequest(c *fiber.Ctx) repository.PageRequest {
	return repository.PageRequest{
		Page: c.QueryInt("page", 0),
		Size: c.QueryInt("size", repository.DefaultPageSize),
	}.Normalize()
}
