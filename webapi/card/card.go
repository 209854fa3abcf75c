// Package card exposes the card ledger over HTTP: customer routes under
// /api/cards and administrator routes under /api/admin/cards.
package card

import (
	"context"
	"errors"
	"time"

	"github.com/amirasaad/bankcards/pkg/commands"
	"github.com/amirasaad/bankcards/pkg/config"
	"github.com/amirasaad/bankcards/pkg/domain"
	domaincard "github.com/amirasaad/bankcards/pkg/domain/card"
	"github.com/amirasaad/bankcards/pkg/middleware"
	cardsvc "github.com/amirasaad/bankcards/pkg/service/card"
	"github.com/amirasaad/bankcards/webapi/common"
	"github.com/gofiber/fiber/v2"
)

// Routes registers the customer card routes. All of them require a valid JWT.
//
// Routes:
//   - GET    /api/cards                       : List the caller's cards (?status=&page=&size=).
//   - GET    /api/cards/:number               : Get one of the caller's cards.
//   - GET    /api/cards/:number/transactions  : List the transactions of a card.
//   - POST   /api/cards/transfer              : Transfer between cards.
//   - POST   /api/cards/:number/withdraw      : Withdraw from a card.
//   - POST   /api/cards/:number/replenish     : Replenish a card.
//   - POST   /api/cards/:number/block         : Block one of the caller's cards.
func Routes(app *fiber.App, svc *cardsvc.Service, cfg *config.App) {
	g := app.Group("/api/cards", middleware.JwtProtected(cfg.Auth.Jwt))
	g.Get("/", ListCards(svc))
	g.Post("/transfer", Transfer(svc))
	g.Get("/:number", GetCard(svc))
	g.Get("/:number/transactions", ListTransactions(svc))
	g.Post("/:number/withdraw", Withdraw(svc))
	g.Post("/:number/replenish", Replenish(svc))
	g.Post("/:number/block", RequestBlock(svc))
}

// AdminRoutes registers the administrator card routes.
//
// Routes:
//   - GET    /api/admin/cards                      : List all cards.
//   - POST   /api/admin/cards                      : Create a card.
//   - PUT    /api/admin/cards/:number              : Change number and expiry date.
//   - DELETE /api/admin/cards/:number              : Delete a card.
//   - POST   /api/admin/cards/:number/block        : Block a card.
//   - POST   /api/admin/cards/:number/activate     : Activate a card.
//   - GET    /api/admin/cards/:number/transactions : List the transactions of any card.
func AdminRoutes(app *fiber.App, svc *cardsvc.Service, cfg *config.App) {
	g := app.Group("/api/admin/cards", middleware.JwtProtected(cfg.Auth.Jwt), middleware.AdminOnly())
	g.Get("/", ListAllCards(svc))
	g.Post("/", CreateCard(svc))
	g.Put("/:number", UpdateCard(svc))
	g.Delete("/:number", DeleteCard(svc))
	g.Post("/:number/block", BlockCard(svc))
	g.Post("/:number/activate", ActivateCard(svc))
	g.Get("/:number/transactions", CardTransactions(svc))
}

func callerEmail(c *fiber.Ctx) (string, error) {
	caller, ok := middleware.Caller(c)
	if !ok {
		return "", common.ProblemDetailsJSON(c, "Unauthorized", domain.ErrInvalidCredentials, "missing user context")
	}
	return caller.Email, nil
}

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(cardsvc.DateLayout, s)
	if err != nil {
		return time.Time{}, errors.Join(domain.ErrValidation, err)
	}
	return t, nil
}

// ListCards returns the caller's cards.
// @Summary List own cards
// @Tags cards
// @Produce json
// @Param status query string false "ACTIVE, BLOCKED or EXPIRED"
// @Param page query int false "Zero based page"
// @Param size query int false "Page size"
// @Success 200 {object} common.Response "Cards fetched"
// @Failure 400 {object} common.ProblemDetails "Invalid request"
// @Failure 401 {object} common.ProblemDetails "Unauthorized"
// @Failure 500 {object} common.ProblemDetails "Internal server error"
// @Router /api/cards [get]
// @Security Bearer
func ListCards(svc *cardsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		email, err := callerEmail(c)
		if email == "" {
			return err
		}
		var status *domaincard.Status
		if raw := c.Query("status"); raw != "" {
			s, ok := domaincard.ParseStatus(raw)
			if !ok {
				return common.ProblemDetailsJSON(c, "Invalid status", domain.ErrValidation,
					"status must be one of ACTIVE, BLOCKED, EXPIRED")
			}
			status = &s
		}
		page, err := svc.ListCards(c.UserContext(), email, status, common.PageRequest(c))
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to list cards", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Cards fetched", page)
	}
}

// GetCard returns one of the caller's cards.
// @Summary Get own card
// @Tags cards
// @Produce json
// @Param number path string true "Card number"
// @Success 200 {object} common.Response "Card fetched"
// @Failure 401 {object} common.ProblemDetails "Unauthorized"
// @Failure 403 {object} common.ProblemDetails "Forbidden"
// @Failure 404 {object} common.ProblemDetails "Card not found"
// @Failure 500 {object} common.ProblemDetails "Internal server error"
// @Router /api/cards/{number} [get]
// @Security Bearer
func GetCard(svc *cardsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		email, err := callerEmail(c)
		if email == "" {
			return err
		}
		view, err := svc.GetCard(c.UserContext(), c.Params("number"), email)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to get card", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Card fetched", view)
	}
}

// ListTransactions returns the transactions of one of the caller's cards.
// @Summary List card transactions
// @Tags cards
// @Produce json
// @Param number path string true "Card number"
// @Param page query int false "Zero based page"
// @Param size query int false "Page size"
// @Success 200 {object} common.Response "Transactions fetched"
// @Failure 401 {object} common.ProblemDetails "Unauthorized"
// @Failure 403 {object} common.ProblemDetails "Forbidden"
// @Failure 404 {object} common.ProblemDetails "Card not found"
// @Failure 500 {object} common.ProblemDetails "Internal server error"
// @Router /api/cards/{number}/transactions [get]
// @Security Bearer
func ListTransactions(svc *cardsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		email, err := callerEmail(c)
		if email == "" {
			return err
		}
		page, err := svc.ListTransactions(c.UserContext(), c.Params("number"), email, common.PageRequest(c))
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to list transactions", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Transactions fetched", page)
	}
}

// Transfer moves money between two cards.
// @Summary Transfer between cards
// @Tags cards
// @Accept json
// @Produce json
// @Param Idempotency-Key header string true "Idempotency key"
// @Param request body TransferRequest true "Request body"
// @Success 200 {object} common.Response "Transfer successful"
// @Failure 400 {object} common.ProblemDetails "Invalid request"
// @Failure 401 {object} common.ProblemDetails "Unauthorized"
// @Failure 403 {object} common.ProblemDetails "Forbidden"
// @Failure 404 {object} common.ProblemDetails "Card not found"
// @Failure 422 {object} common.ProblemDetails "Card blocked or insufficient funds"
// @Failure 503 {object} common.ProblemDetails "Card is busy, retry"
// @Failure 500 {object} common.ProblemDetails "Internal server error"
// @Router /api/cards/transfer [post]
// @Security Bearer
func Transfer(svc *cardsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		email, err := callerEmail(c)
		if email == "" {
			return err
		}
		key, err := common.IdempotencyKey(c)
		if key == "" {
			return err
		}
		input, err := common.BindAndValidate[TransferRequest](c)
		if input == nil {
			return err
		}
		view, err := svc.Transfer(c.UserContext(), key, commands.Transfer{
			From:     input.FromCardNumber,
			To:       input.ToCardNumber,
			Amount:   input.Amount,
			Currency: input.Currency,
		}, email)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Transfer failed", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Transfer successful", view)
	}
}

// Withdraw takes money from one of the caller's cards.
// @Summary Withdraw from a card
// @Tags cards
// @Accept json
// @Produce json
// @Param number path string true "Card number"
// @Param Idempotency-Key header string true "Idempotency key"
// @Param request body AmountRequest true "Request body"
// @Success 200 {object} common.Response "Withdraw successful"
// @Failure 400 {object} common.ProblemDetails "Invalid request"
// @Failure 401 {object} common.ProblemDetails "Unauthorized"
// @Failure 403 {object} common.ProblemDetails "Forbidden"
// @Failure 404 {object} common.ProblemDetails "Card not found"
// @Failure 422 {object} common.ProblemDetails "Card blocked or insufficient funds"
// @Failure 503 {object} common.ProblemDetails "Card is busy, retry"
// @Failure 500 {object} common.ProblemDetails "Internal server error"
// @Router /api/cards/{number}/withdraw [post]
// @Security Bearer
func Withdraw(svc *cardsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		email, err := callerEmail(c)
		if email == "" {
			return err
		}
		key, err := common.IdempotencyKey(c)
		if key == "" {
			return err
		}
		input, err := common.BindAndValidate[AmountRequest](c)
		if input == nil {
			return err
		}
		view, err := svc.Withdraw(c.UserContext(), key, commands.Withdraw{
			Number:   c.Params("number"),
			Amount:   input.Amount,
			Currency: input.Currency,
		}, email)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Withdraw failed", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Withdraw successful", view)
	}
}

// Replenish adds money to one of the caller's cards.
// @Summary Replenish a card
// @Tags cards
// @Accept json
// @Produce json
// @Param number path string true "Card number"
// @Param Idempotency-Key header string true "Idempotency key"
// @Param request body AmountRequest true "Request body"
// @Success 200 {object} common.Response "Replenish successful"
// @Failure 400 {object} common.ProblemDetails "Invalid request"
// @Failure 401 {object} common.ProblemDetails "Unauthorized"
// @Failure 403 {object} common.ProblemDetails "Forbidden"
// @Failure 404 {object} common.ProblemDetails "Card not found"
// @Failure 422 {object} common.ProblemDetails "Card blocked or insufficient funds"
// @Failure 503 {object} common.ProblemDetails "Card is busy, retry"
// @Failure 500 {object} common.ProblemDetails "Internal server error"
// @Router /api/cards/{number}/replenish [post]
// @Security Bearer
func Replenish(svc *cardsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		email, err := callerEmail(c)
		if email == "" {
			return err
		}
		key, err := common.IdempotencyKey(c)
		if key == "" {
			return err
		}
		input, err := common.BindAndValidate[AmountRequest](c)
		if input == nil {
			return err
		}
		view, err := svc.Replenish(c.UserContext(), key, commands.Replenish{
			Number:   c.Params("number"),
			Amount:   input.Amount,
			Currency: input.Currency,
		}, email)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Replenish failed", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Replenish successful", view)
	}
}

// RequestBlock blocks one of the caller's cards.
// @Summary Block own card
// @Tags cards
// @Produce json
// @Param number path string true "Card number"
// @Param Idempotency-Key header string true "Idempotency key"
// @Success 200 {object} common.Response "Card has been blocked"
// @Failure 400 {object} common.ProblemDetails "Invalid request"
// @Failure 401 {object} common.ProblemDetails "Unauthorized"
// @Failure 403 {object} common.ProblemDetails "Forbidden"
// @Failure 404 {object} common.ProblemDetails "Card not found"
// @Failure 409 {object} common.ProblemDetails "Conflict"
// @Failure 500 {object} common.ProblemDetails "Internal server error"
// @Router /api/cards/{number}/block [post]
// @Security Bearer
func RequestBlock(svc *cardsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		email, err := callerEmail(c)
		if email == "" {
			return err
		}
		key, err := common.IdempotencyKey(c)
		if key == "" {
			return err
		}
		msg, err := svc.RequestBlock(c.UserContext(), key, c.Params("number"), email)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to block card", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, msg, nil)
	}
}

// ListAllCards returns every card.
// @Summary List all cards
// @Tags admin
// @Produce json
// @Param page query int false "Zero based page"
// @Param size query int false "Page size"
// @Success 200 {object} common.Response "Cards fetched"
// @Failure 401 {object} common.ProblemDetails "Unauthorized"
// @Failure 403 {object} common.ProblemDetails "Forbidden"
// @Failure 500 {object} common.ProblemDetails "Internal server error"
// @Router /api/admin/cards [get]
// @Security Bearer
func ListAllCards(svc *cardsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		page, err := svc.ListAllCards(c.UserContext(), common.PageRequest(c))
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to list cards", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Cards fetched", page)
	}
}

// CreateCard issues a card to a customer.
// @Summary Create a card
// @Tags admin
// @Accept json
// @Produce json
// @Param Idempotency-Key header string true "Idempotency key"
// @Param request body CreateCardRequest true "Request body"
// @Success 201 {object} common.Response "Card created"
// @Failure 400 {object} common.ProblemDetails "Invalid request"
// @Failure 401 {object} common.ProblemDetails "Unauthorized"
// @Failure 403 {object} common.ProblemDetails "Forbidden"
// @Failure 409 {object} common.ProblemDetails "Conflict"
// @Failure 500 {object} common.ProblemDetails "Internal server error"
// @Router /api/admin/cards [post]
// @Security Bearer
func CreateCard(svc *cardsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key, err := common.IdempotencyKey(c)
		if key == "" {
			return err
		}
		input, err := common.BindAndValidate[CreateCardRequest](c)
		if input == nil {
			return err
		}
		expiry, err := parseDate(input.ExpiryDate)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Invalid expiry date", err)
		}
		view, err := svc.CreateCard(c.UserContext(), key, commands.CreateCard{
			Number:     input.CardNumber,
			OwnerEmail: input.OwnerEmail,
			ExpiryDate: expiry,
			Currency:   input.Currency,
		})
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to create card", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusCreated, "Card created", view)
	}
}

// UpdateCard changes the number and expiry date of a card.
// @Summary Update a card
// @Tags admin
// @Accept json
// @Produce json
// @Param number path string true "Card number"
// @Param request body UpdateCardRequest true "Request body"
// @Success 200 {object} common.Response "Card updated"
// @Failure 400 {object} common.ProblemDetails "Invalid request"
// @Failure 401 {object} common.ProblemDetails "Unauthorized"
// @Failure 403 {object} common.ProblemDetails "Forbidden"
// @Failure 404 {object} common.ProblemDetails "Card not found"
// @Failure 409 {object} common.ProblemDetails "Conflict"
// @Failure 500 {object} common.ProblemDetails "Internal server error"
// @Router /api/admin/cards/{number} [put]
// @Security Bearer
func UpdateCard(svc *cardsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		input, err := common.BindAndValidate[UpdateCardRequest](c)
		if input == nil {
			return err
		}
		expiry, err := parseDate(input.NewExpiryDate)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Invalid expiry date", err)
		}
		view, err := svc.UpdateCard(c.UserContext(), commands.UpdateCard{
			Number:    c.Params("number"),
			NewNumber: input.NewCardNumber,
			NewExpiry: expiry,
		})
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to update card", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Card updated", view)
	}
}

// DeleteCard removes a card and its outgoing transactions.
// @Summary Delete a card
// @Tags admin
// @Produce json
// @Param number path string true "Card number"
// @Param Idempotency-Key header string true "Idempotency key"
// @Success 200 {object} common.Response "Card deleted"
// @Failure 400 {object} common.ProblemDetails "Invalid request"
// @Failure 401 {object} common.ProblemDetails "Unauthorized"
// @Failure 403 {object} common.ProblemDetails "Forbidden"
// @Failure 404 {object} common.ProblemDetails "Card not found"
// @Failure 500 {object} common.ProblemDetails "Internal server error"
// @Router /api/admin/cards/{number} [delete]
// @Security Bearer
func DeleteCard(svc *cardsvc.Service) fiber.Handler {
	return statusHandler(svc.DeleteCard, "Failed to delete card")
}

// BlockCard blocks any card.
// @Summary Block a card
// @Tags admin
// @Produce json
// @Param number path string true "Card number"
// @Param Idempotency-Key header string true "Idempotency key"
// @Success 200 {object} common.Response "Card blocked"
// @Failure 400 {object} common.ProblemDetails "Invalid request"
// @Failure 401 {object} common.ProblemDetails "Unauthorized"
// @Failure 403 {object} common.ProblemDetails "Forbidden"
// @Failure 404 {object} common.ProblemDetails "Card not found"
// @Failure 500 {object} common.ProblemDetails "Internal server error"
// @Router /api/admin/cards/{number}/block [post]
// @Security Bearer
func BlockCard(svc *cardsvc.Service) fiber.Handler {
	return statusHandler(svc.BlockCard, "Failed to block card")
}

// ActivateCard activates any card.
// @Summary Activate a card
// @Tags admin
// @Produce json
// @Param number path string true "Card number"
// @Param Idempotency-Key header string true "Idempotency key"
// @Success 200 {object} common.Response "Card activated successfully"
// @Failure 400 {object} common.ProblemDetails "Invalid request"
// @Failure 401 {object} common.ProblemDetails "Unauthorized"
// @Failure 403 {object} common.ProblemDetails "Forbidden"
// @Failure 404 {object} common.ProblemDetails "Card not found"
// @Failure 500 {object} common.ProblemDetails "Internal server error"
// @Router /api/admin/cards/{number}/activate [post]
// @Security Bearer
func ActivateCard(svc *cardsvc.Service) fiber.Handler {
	return statusHandler(svc.ActivateCard, "Failed to activate card")
}

func statusHandler(
	op func(ctx context.Context, key, number string) (string, error),
	failure string,
) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key, err := common.IdempotencyKey(c)
		if key == "" {
			return err
		}
		msg, err := op(c.UserContext(), key, c.Params("number"))
		if err != nil {
			return common.ProblemDetailsJSON(c, failure, err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, msg, nil)
	}
}

// CardTransactions returns the transactions of any card.
// @Summary List transactions of any card
// @Tags admin
// @Produce json
// @Param number path string true "Card number"
// @Param page query int false "Zero based page"
// @Param size query int false "Page size"
// @Success 200 {object} common.Response "Transactions fetched"
// @Failure 401 {object} common.ProblemDetails "Unauthorized"
// @Failure 403 {object} common.ProblemDetails "Forbidden"
// @Failure 404 {object} common.ProblemDetails "Card not found"
// @Failure 500 {object} common.ProblemDetails "Internal server error"
// @Router /api/admin/cards/{number}/transactions [get]
// @Security Bearer
func CardTransactions(svc *cardsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		page, err := svc.CardTransactions(c.UserContext(), c.Params("number"), common.PageRequest(c))
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to list transactions", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Transactions fetched", page)
	}
}
