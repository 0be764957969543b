package middlewares

import (
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

const SubjectLocalKey = "subject"

// JWTMiddleware requires a bearer token signed with HS256 using secret. The
// token subject is stored in the request locals.
func JWTMiddleware(secret []byte) fiber.Handler {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)

	keyFunc := func(token *jwt.Token) (any, error) {
		return secret, nil
	}

	return func(c fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)

		tokenString, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(tokenString) == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing bearer token",
			})
		}

		claims := &jwt.RegisteredClaims{}

		token, err := parser.ParseWithClaims(strings.TrimSpace(tokenString), claims, keyFunc)
		if err != nil || !token.Valid {
			log.Debug().Err(err).Str("path", c.Path()).Msg("Rejected bearer token")
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid bearer token",
			})
		}

		c.Locals(SubjectLocalKey, claims.Subject)

		return c.Next()
	}
}
