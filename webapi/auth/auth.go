package auth

import (
	"github.com/amirasaad/bankcards/pkg/commands"
	"github.com/amirasaad/bankcards/pkg/domain/customer"
	authsvc "github.com/amirasaad/bankcards/pkg/service/auth"
	"github.com/amirasaad/bankcards/webapi/common"
	"github.com/gofiber/fiber/v2"
)

// Routes registers the public authentication routes.
//
// Routes:
//   - POST /api/auth/register : Sign up a customer.
//   - POST /api/auth/login    : Exchange credentials for a JWT.
func Routes(app *fiber.App, authSvc *authsvc.Service) {
	app.Post("/api/auth/register", Register(authSvc))
	app.Post("/api/auth/login", Login(authSvc))
}

// Register creates a customer with the USER role.
// @Summary Register a customer
// @Tags auth
// @Accept json
// @Produce json
// @Param request body RegisterInput true "Request body"
// @Success 201 {object} common.Response "Customer registered"
// @Failure 400 {object} common.ProblemDetails "Invalid request"
// @Failure 409 {object} common.ProblemDetails "Conflict"
// @Failure 500 {object} common.ProblemDetails "Internal server error"
// @Router /api/auth/register [post]
func Register(authSvc *authsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		input, err := common.BindAndValidate[RegisterInput](c)
		if input == nil {
			return err
		}
		cust, err := authSvc.Register(c.UserContext(), commands.Register{
			Email:    input.Email,
			Password: input.Password,
			Name:     input.Name,
		})
		if err != nil {
			return common.ProblemDetailsJSON(c, "Registration failed", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusCreated, "Customer registered", toCustomerRead(cust))
	}
}

// Login handles user authentication and returns a JWT token.
// @Summary Login
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginInput true "Request body"
// @Success 200 {object} common.Response "Success login"
// @Failure 400 {object} common.ProblemDetails "Invalid request"
// @Failure 401 {object} common.ProblemDetails "Unauthorized"
// @Failure 500 {object} common.ProblemDetails "Internal server error"
// @Router /api/auth/login [post]
func Login(authSvc *authsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		input, err := common.BindAndValidate[LoginInput](c)
		if input == nil {
			return err
		}
		cust, err := authSvc.Login(c.UserContext(), commands.Login{Email: input.Email, Password: input.Password})
		if err != nil {
			return common.ProblemDetailsJSON(c, "Invalid email or password", err)
		}
		token, err := authSvc.GenerateToken(cust)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Internal Server Error", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Success login", fiber.Map{
			"token":    token,
			"customer": toCustomerRead(cust),
		})
	}
}

func toCustomerRead(c *customer.Customer) CustomerRead {
	roles := make([]string, 0, len(c.Roles))
	for _, r := range c.Roles {
		roles = append(roles, string(r))
	}
	return CustomerRead{ID: c.ID, Email: c.Email, Name: c.Name, Roles: roles}
}
