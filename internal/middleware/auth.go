package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/comcin/internal/config"
	"github.com/example/comcin/internal/models"
	"github.com/example/comcin/internal/services"
	"github.com/example/comcin/internal/utils"
)

const (
	userContextKey  = "currentUserID"
	roleContextKey  = "currentUserRole"
	claimContextKey = "currentTokenClaims"
)

// AuthMiddleware validates JWT tokens, rejects revoked or inactive sessions and
// loads the authenticated user ID and role into context.
func AuthMiddleware(cfg *config.Config, db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing authorization header")
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid authorization header")
		}

		claims, err := utils.ParseToken(cfg.JWTSecret, parts[1])
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid token")
		}

		var revoked int64
		if err := db.WithContext(c.UserContext()).Model(&models.RevokedToken{}).
			Where("token_id = ?", claims.TokenID).
			Count(&revoked).Error; err != nil {
			return err
		}
		if revoked > 0 {
			return fiber.NewError(fiber.StatusUnauthorized, "token has been revoked")
		}

		var user models.User
		if err := db.WithContext(c.UserContext()).Select("id", "role", "is_active").
			First(&user, "id = ?", claims.UserID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return fiber.NewError(fiber.StatusUnauthorized, "invalid token")
			}
			return err
		}
		if !user.IsActive {
			return fiber.NewError(fiber.StatusForbidden, "account is deactivated")
		}

		c.Locals(userContextKey, user.ID)
		c.Locals(roleContextKey, user.Role)
		c.Locals(claimContextKey, claims)
		return c.Next()
	}
}

// GetCurrentUserID extracts the authenticated user ID from context.
func GetCurrentUserID(c *fiber.Ctx) (uuid.UUID, bool) {
	value := c.Locals(userContextKey)
	if value == nil {
		return uuid.Nil, false
	}

	if id, ok := value.(uuid.UUID); ok {
		return id, true
	}

	return uuid.Nil, false
}

// GetActor returns the authenticated caller as a services.Actor.
func GetActor(c *fiber.Ctx) (services.Actor, bool) {
	id, ok := GetCurrentUserID(c)
	if !ok {
		return services.Actor{}, false
	}
	role, _ := c.Locals(roleContextKey).(string)
	return services.Actor{ID: id, Role: role}, true
}

// GetTokenClaims returns the parsed access token of the request.
func GetTokenClaims(c *fiber.Ctx) (*utils.TokenClaims, bool) {
	claims, ok := c.Locals(claimContextKey).(*utils.TokenClaims)
	return claims, ok
}

// RequireRole allows only users with the given role.
func RequireRole(role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, ok := GetActor(c)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
		}
		if actor.Role != role {
			return fiber.NewError(fiber.StatusForbidden, "insufficient permissions")
		}
		return c.Next()
	}
}

// RequireAction runs services.CanPerform for actions on unowned resources.
func RequireAction(action services.Action) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, ok := GetActor(c)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
		}
		if !services.CanPerform(actor, action, services.Resource{}) {
			return fiber.NewError(fiber.StatusForbidden, "insufficient permissions")
		}
		return c.Next()
	}
}
