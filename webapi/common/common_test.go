package common

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/amirasaad/bankcards/pkg/domain"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorToStatusCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrCardNotFound, fiber.StatusNotFound},
		{domain.ErrCustomerNotFound, fiber.StatusNotFound},
		{domain.ErrCardAlreadyExists, fiber.StatusConflict},
		{domain.ErrAlreadyBlocked, fiber.StatusConflict},
		{domain.ErrRequestInProgress, fiber.StatusConflict},
		{domain.ErrNoAccessToOtherData, fiber.StatusForbidden},
		{domain.ErrCardBlocked, fiber.StatusUnprocessableEntity},
		{fmt.Errorf("withdraw: %w", domain.ErrInsufficientFunds), fiber.StatusUnprocessableEntity},
		{domain.ErrInvalidIdempotencyKey, fiber.StatusBadRequest},
		{domain.ErrValidation, fiber.StatusBadRequest},
		{domain.ErrInvalidCredentials, fiber.StatusUnauthorized},
		{domain.ErrLockTimeout, fiber.StatusServiceUnavailable},
		{errors.New("boom"), fiber.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ErrorToStatusCode(tt.err), tt.err.Error())
	}
}

func problemFor(t *testing.T, err error, opts ...any) (*http.Response, ProblemDetails) {
	t.Helper()
	app := fiber.New()
	app.Get("/x", func(c *fiber.Ctx) error { return ProblemDetailsJSON(c, "Failed", err, opts...) })
	resp, reqErr := app.Test(httptest.NewRequest(http.MethodGet, "/x", nil))
	require.NoError(t, reqErr)
	defer resp.Body.Close() //nolint: errcheck
	var pd ProblemDetails
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&pd))
	return resp, pd
}

func TestProblemDetailsJSON(t *testing.T) {
	resp, pd := problemFor(t, domain.ErrLockTimeout)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "application/problem+json", resp.Header.Get(fiber.HeaderContentType))
	assert.Equal(t, "1", resp.Header.Get(fiber.HeaderRetryAfter))
	assert.Equal(t, string(domain.KindLockTimeout), pd.Code)
	assert.Equal(t, "/x", pd.Instance)

	_, pd = problemFor(t, errors.New("pq: secret connection string"))
	assert.Equal(t, fiber.StatusInternalServerError, pd.Status)
	assert.NotContains(t, pd.Detail, "secret")

	resp, pd = problemFor(t, domain.ErrValidation, "custom detail", fiber.StatusTeapot)
	assert.Equal(t, fiber.StatusTeapot, resp.StatusCode)
	assert.Equal(t, "custom detail", pd.Detail)
}

type bindInput struct {
	Name string `json:"name" validate:"required"`
}

func TestBindAndValidate(t *testing.T) {
	app := fiber.New()
	app.Post("/", func(c *fiber.Ctx) error {
		in, err := BindAndValidate[bindInput](c)
		if in == nil {
			return err
		}
		return c.SendString(in.Name)
	})
	post := func(body string) *http.Response {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		resp, err := app.Test(req)
		require.NoError(t, err)
		t.Cleanup(func() { _ = resp.Body.Close() })
		return resp
	}
	assert.Equal(t, fiber.StatusOK, post(`{"name":"a"}`).StatusCode)
	assert.Equal(t, fiber.StatusBadRequest, post(`{}`).StatusCode)
	assert.Equal(t, fiber.StatusBadRequest, post(`{"name":`).StatusCode)
}

func TestIdempotencyKeyAndPaging(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		key, err := IdempotencyKey(c)
		if key == "" {
			return err
		}
		p := PageRequest(c)
		return c.SendString(fmt.Sprintf("%s %d %d", key, p.Page, p.Size))
	})

	req := httptest.NewRequest(http.MethodGet, "/?page=2&size=500", nil)
	req.Header.Set(IdempotencyKeyHeader, " abc ")
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close() //nolint: errcheck
	body := make([]byte, 64)
	n, _ := resp.Body.Read(body)
	assert.Equal(t, "abc 2 100", string(body[:n]))

	resp2, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	defer resp2.Body.Close() //nolint: errcheck
	assert.Equal(t, fiber.StatusBadRequest, resp2.StatusCode)
}
