// Package middleware provides the fiber middleware that authenticates callers.
package middleware

import (
	"errors"

	"github.com/amirasaad/bankcards/pkg/config"
	"github.com/amirasaad/bankcards/pkg/domain"
	authsvc "github.com/amirasaad/bankcards/pkg/service/auth"
	"github.com/amirasaad/bankcards/webapi/common"
	jwtware "github.com/gofiber/contrib/jwt"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const (
	tokenKey  = "user"
	callerKey = "caller"
)

// JwtProtected verifies the bearer token and stores the caller it names in
// the request locals.
func JwtProtected(cfg *config.Jwt) fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey:     jwtware.SigningKey{JWTAlg: jwtware.HS256, Key: []byte(cfg.Secret)},
		ContextKey:     tokenKey,
		ErrorHandler:   jwtError,
		SuccessHandler: storeCaller,
	})
}

// AdminOnly rejects callers without the ADMIN role. It must run after
// JwtProtected.
func AdminOnly() fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller, ok := Caller(c)
		if !ok {
			return common.ProblemDetailsJSON(c, "Unauthorized", domain.ErrInvalidCredentials)
		}
		if !caller.IsAdmin() {
			return common.ProblemDetailsJSON(c, "Forbidden", domain.ErrNoAccessToOtherData,
				"administrator role required", fiber.StatusForbidden)
		}
		return c.Next()
	}
}

// Caller returns the authenticated caller of the request.
func Caller(c *fiber.Ctx) (authsvc.Caller, bool) {
	caller, ok := c.Locals(callerKey).(authsvc.Caller)
	return caller, ok
}

func storeCaller(c *fiber.Ctx) error {
	token, _ := c.Locals(tokenKey).(*jwt.Token)
	caller, err := authsvc.CallerFromToken(token)
	if err != nil {
		return jwtError(c, err)
	}
	c.Locals(callerKey, caller)
	return c.Next()
}

func jwtError(c *fiber.Ctx, err error) error {
	if errors.Is(err, jwtware.ErrJWTMissingOrMalformed) {
		return common.ProblemDetailsJSON(c, "Missing or malformed JWT", domain.ErrInvalidCredentials,
			err.Error(), fiber.StatusBadRequest)
	}
	return common.ProblemDetailsJSON(c, "Invalid or expired JWT", domain.ErrInvalidCredentials, err.Error())
}
