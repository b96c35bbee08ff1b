package middleware

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/example/comcin/internal/config"
	"github.com/example/comcin/internal/database"
	"github.com/example/comcin/internal/models"
	"github.com/example/comcin/internal/services"
	"github.com/example/comcin/internal/utils"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.Migrate(conn))
	return conn
}

func newAuthApp(t *testing.T) (*fiber.App, *gorm.DB, *config.Config) {
	t.Helper()
	db := newTestDB(t)
	cfg := &config.Config{JWTSecret: "test-secret"}

	app := fiber.New()
	protected := app.Group("/api", AuthMiddleware(cfg, db))
	protected.Get("/whoami", func(c *fiber.Ctx) error {
		actor, ok := GetActor(c)
		if !ok {
			return fiber.ErrUnauthorized
		}
		return c.SendString(actor.Role + ":" + actor.ID.String())
	})
	protected.Get("/admin", RequireRole(models.RoleAdmin), func(c *fiber.Ctx) error { return c.SendString("ok") })
	protected.Get("/content", RequireAction(services.ActionManageContent), func(c *fiber.Ctx) error { return c.SendString("ok") })
	return app, db, cfg
}

func makeUser(t *testing.T, db *gorm.DB, role string, active bool) models.User {
	t.Helper()
	user := models.User{Name: role, Email: role + "@example.com", Role: role, PasswordHash: "x", IsActive: true}
	require.NoError(t, db.Create(&user).Error)
	if !active {
		require.NoError(t, db.Model(&user).Update("is_active", false).Error)
	}
	return user
}

func get(t *testing.T, app *fiber.App, path, token string) int {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp.StatusCode
}

func TestAuthMiddleware(t *testing.T) {
	app, db, cfg := newAuthApp(t)
	member := makeUser(t, db, models.RoleMember, true)
	admin := makeUser(t, db, models.RoleAdmin, true)

	memberToken, err := utils.GenerateToken(cfg.JWTSecret, member.ID, member.Role, time.Hour)
	require.NoError(t, err)
	adminToken, err := utils.GenerateToken(cfg.JWTSecret, admin.ID, admin.Role, time.Hour)
	require.NoError(t, err)
	forged, err := utils.GenerateToken("other-secret", admin.ID, admin.Role, time.Hour)
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusUnauthorized, get(t, app, "/api/whoami", ""))
	assert.Equal(t, fiber.StatusUnauthorized, get(t, app, "/api/whoami", forged))
	assert.Equal(t, fiber.StatusOK, get(t, app, "/api/whoami", memberToken))

	assert.Equal(t, fiber.StatusForbidden, get(t, app, "/api/admin", memberToken))
	assert.Equal(t, fiber.StatusOK, get(t, app, "/api/admin", adminToken))
	assert.Equal(t, fiber.StatusForbidden, get(t, app, "/api/content", memberToken))
	assert.Equal(t, fiber.StatusOK, get(t, app, "/api/content", adminToken))
}

func TestAuthMiddlewareRoleComesFromDatabase(t *testing.T) {
	app, db, cfg := newAuthApp(t)
	member := makeUser(t, db, models.RoleMember, true)

	// a token claiming admin does not grant admin to a member account
	token, err := utils.GenerateToken(cfg.JWTSecret, member.ID, models.RoleAdmin, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, get(t, app, "/api/admin", token))
}

func TestAuthMiddlewareRejectsRevokedAndInactive(t *testing.T) {
	app, db, cfg := newAuthApp(t)
	member := makeUser(t, db, models.RoleMember, true)
	inactive := makeUser(t, db, models.RoleAdmin, false)

	token, err := utils.GenerateToken(cfg.JWTSecret, member.ID, member.Role, time.Hour)
	require.NoError(t, err)
	claims, err := utils.ParseToken(cfg.JWTSecret, token)
	require.NoError(t, err)
	require.NoError(t, db.Create(&models.RevokedToken{TokenID: claims.TokenID, ExpiresAt: claims.ExpiresAt}).Error)
	assert.Equal(t, fiber.StatusUnauthorized, get(t, app, "/api/whoami", token))

	inactiveToken, err := utils.GenerateToken(cfg.JWTSecret, inactive.ID, inactive.Role, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, get(t, app, "/api/whoami", inactiveToken))
}
