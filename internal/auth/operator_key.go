package auth

import (
	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/spec-kit/workflow-service/pkg/util"
)

const operatorKeyHeader = "X-Operator-Key"

// HashOperatorKey hashes a plaintext operator key with the given cost.
func HashOperatorKey(key string, cost int) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(key), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// CompareOperatorKey verifies a key against its hashed value.
func CompareOperatorKey(hashed, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
}

// RequireOperatorKey guards destructive endpoints behind a shared operator
// key. An empty configured hash disables the check.
func RequireOperatorKey(keyHash string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if keyHash == "" {
			return c.Next()
		}
		provided := c.Get(operatorKeyHeader)
		if provided == "" {
			return apperrors.NewUnauthorized("missing operator key")
		}
		if err := CompareOperatorKey(keyHash, provided); err != nil {
			return apperrors.NewForbidden("invalid operator key")
		}
		return c.Next()
	}
}
