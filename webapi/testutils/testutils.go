// Package testutils provides an end-to-end test suite that serves the full
// HTTP API over in-memory stores.
package testutils

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/amirasaad/bankcards/infra/cache"
	"github.com/amirasaad/bankcards/infra/repository/memory"
	"github.com/amirasaad/bankcards/pkg/app"
	"github.com/amirasaad/bankcards/pkg/commands"
	"github.com/amirasaad/bankcards/pkg/config"
	"github.com/amirasaad/bankcards/pkg/utils"
	"github.com/amirasaad/bankcards/webapi"
	"github.com/amirasaad/bankcards/webapi/common"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"
)

// TestPassword is the password of every customer created by the suite.
const TestPassword = "password123"

// E2ETestSuite serves the API over fresh in-memory stores for every test.
type E2ETestSuite struct {
	suite.Suite
	App    *fiber.App
	AppSvc *app.App
	Config *config.App
	store  *cache.MemoryIdempotencyStore
}

// SetupSuite lowers the bcrypt cost for speed.
func (s *E2ETestSuite) SetupSuite() {
	utils.PasswordCost = bcrypt.MinCost
}

// TearDownSuite restores the bcrypt cost.
func (s *E2ETestSuite) TearDownSuite() {
	utils.PasswordCost = 12
}

// SetupTest builds a new application.
func (s *E2ETestSuite) SetupTest() {
	s.Config = &config.App{
		Env:         "test",
		Auth:        &config.Auth{Jwt: &config.Jwt{Secret: "e2e-secret", Expiry: time.Hour, Issuer: "bankcards"}},
		Idempotency: &config.Idempotency{TTL: time.Hour, ClaimTTL: 5 * time.Second},
		Ledger:      &config.Ledger{LockTimeout: 2 * time.Second},
		Card:        &config.Card{DefaultCurrency: "RUB", NumberPrefix: "4000"},
	}
	s.store = cache.NewMemoryIdempotencyStore(s.Config.Idempotency.TTL)
	deps := &app.Deps{
		Uow:         memory.NewUoW(memory.NewStore(s.Config.Ledger.LockTimeout)),
		Idempotency: s.store,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	s.AppSvc = app.New(deps, s.Config)
	s.App = webapi.SetupApp(s.AppSvc)
}

// TearDownTest stops the idempotency store janitor.
func (s *E2ETestSuite) TearDownTest() {
	s.store.Close()
}

// MakeRequest sends a request with an optional JSON body and bearer token.
func (s *E2ETestSuite) MakeRequest(method, path, body, token string) *http.Response {
	return s.MakeIdempotentRequest(method, path, body, token, "")
}

// MakeIdempotentRequest is MakeRequest with an Idempotency-Key header.
func (s *E2ETestSuite) MakeIdempotentRequest(method, path, body, token, key string) *http.Response {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	if key != "" {
		req.Header.Set(common.IdempotencyKeyHeader, key)
	}
	resp, err := s.App.Test(req, -1)
	s.Require().NoError(err)
	return resp
}

// CreateCustomer registers a customer and returns a token for it.
func (s *E2ETestSuite) CreateCustomer(email, name string, admin bool) string {
	cmd := commands.Register{Email: email, Password: TestPassword, Name: name}
	register := s.AppSvc.AuthService.Register
	if admin {
		register = s.AppSvc.AuthService.CreateAdmin
	}
	c, err := register(context.Background(), cmd)
	s.Require().NoError(err)
	token, err := s.AppSvc.AuthService.GenerateToken(c)
	s.Require().NoError(err)
	return token
}

// Decode reads a Response envelope and decodes its data into out.
func (s *E2ETestSuite) Decode(resp *http.Response, out any) common.Response {
	defer resp.Body.Close() //nolint: errcheck
	var envelope struct {
		common.Response
		Data json.RawMessage `json:"data"`
	}
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&envelope))
	if out != nil && len(envelope.Data) > 0 {
		s.Require().NoError(json.Unmarshal(envelope.Data, out))
	}
	return envelope.Response
}

// DecodeProblem reads a problem details body.
func (s *E2ETestSuite) DecodeProblem(resp *http.Response) common.ProblemDetails {
	defer resp.Body.Close() //nolint: errcheck
	var pd common.ProblemDetails
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&pd))
	return pd
}
