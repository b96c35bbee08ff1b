package routes

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/comcin/internal/config"
	"github.com/example/comcin/internal/handlers"
	"github.com/example/comcin/internal/metrics"
	"github.com/example/comcin/internal/middleware"
	"github.com/example/comcin/internal/models"
	"github.com/example/comcin/internal/services"
)

// Deps are the external collaborators the routes are built on.
type Deps struct {
	Mailer  services.Mailer
	Blobs   services.BlobStore
	Gateway services.PaymentGateway
}

// Register wires up all HTTP routes.
func Register(app *fiber.App, db *gorm.DB, cfg *config.Config, deps Deps) {
	notifier := services.NewNotifier(db)
	reports := services.NewReportingService(db)
	applications := services.NewApplicationService(db, notifier)
	payments := services.NewPaymentService(db, notifier, deps.Gateway, deps.Blobs)
	registration := services.NewRegistrationService(db, notifier, deps.Mailer, deps.Blobs, cfg.PublicBaseURL, cfg.OTPTTL)
	support := services.NewSupportService(db, notifier, deps.Blobs)
	certificates := services.NewCertificateService(db, notifier, deps.Blobs)

	authHandler := handlers.NewAuthHandler(db, cfg, registration)
	resetHandler := handlers.NewPasswordResetHandler(db, cfg, deps.Mailer)
	adminHandler := handlers.NewAdminHandler(db, reports, applications, notifier)
	userHandler := handlers.NewUserHandler(db)
	paymentHandler := handlers.NewPaymentHandler(db, payments)
	methodHandler := handlers.NewPaymentMethodHandler(db, deps.Blobs)
	memberHandler := handlers.NewMemberHandler(db, reports, notifier, deps.Blobs)
	supportHandler := handlers.NewSupportHandler(db, support, reports)
	contentHandler := handlers.NewContentHandler(db, reports, deps.Blobs)
	certificateHandler := handlers.NewCertificateHandler(db, certificates)

	app.Get("/metrics", metrics.Handler())
	app.Static("/uploads", cfg.UploadDir)

	api := app.Group("/api/v1")
	api.Get("/homepage", contentHandler.Homepage)

	// Auth routes
	limit := middleware.RateLimit(cfg.AuthRatePerSec, cfg.AuthRateBurst)
	api.Post("/register", limit, authHandler.Register)
	api.Post("/login", limit, authHandler.Login)
	api.Post("/forgot-password", limit, resetHandler.ForgotPassword)
	api.Post("/verify-otp", limit, resetHandler.VerifyOTP)
	api.Post("/reset-password", limit, resetHandler.ResetPassword)
	api.Get("/verify-email/:uid/:otp", limit, authHandler.VerifyEmail)

	// Everything registered below requires a valid token.
	protected := api.Group("", middleware.AuthMiddleware(cfg, db))
	protected.Post("/logout", authHandler.Logout)
	protected.Get("/me", authHandler.Me)

	// Admin area
	admin := protected.Group("/admin", middleware.RequireRole(models.RoleAdmin))
	admin.Get("/dashboard", adminHandler.Dashboard)
	admin.Get("/memberships", adminHandler.Memberships)
	admin.Get("/institutions", adminHandler.Institutions)
	admin.Get("/financials", adminHandler.Financials)
	admin.Get("/applications/:user_id", adminHandler.ShowApplication)
	admin.Post("/applications/:user_id/action", adminHandler.ApplicationAction)
	admin.Get("/notifications/:user_id", adminHandler.UserNotifications)

	users := admin.Group("", middleware.RequireAction(services.ActionManageUsers))
	users.Get("/admins", userHandler.ListAdmins)
	users.Post("/admins", userHandler.CreateAdmin)
	users.Put("/admins/:id", userHandler.UpdateUser)
	users.Post("/admins/:id/deactivate", userHandler.SetActive(false))
	users.Post("/admins/:id/activate", userHandler.SetActive(true))
	users.Get("/members", userHandler.ListMembers)
	users.Post("/members", userHandler.CreateMember)
	users.Get("/members/:id", userHandler.ShowMember)
	users.Put("/members/:id", userHandler.UpdateUser)
	users.Post("/members/:id/deactivate", userHandler.SetActive(false))
	users.Post("/members/:id/activate", userHandler.SetActive(true))

	admin.Post("/charges", paymentHandler.CreateCharge)
	admin.Get("/transactions", paymentHandler.ListTransactions)
	admin.Post("/transactions/:id/review", paymentHandler.ReviewTransaction)

	methods := admin.Group("/payment-methods", middleware.RequireAction(services.ActionManagePaymentMethods))
	methods.Get("/", methodHandler.List)
	methods.Post("/", methodHandler.Create)
	methods.Put("/:id", methodHandler.Update)
	methods.Delete("/:id", methodHandler.Delete)

	content := admin.Group("", middleware.RequireAction(services.ActionManageContent))
	content.Get("/content", contentHandler.ListContent)
	content.Post("/content", contentHandler.UpsertContent)
	content.Delete("/content/:section/:key", contentHandler.DeleteContent)
	content.Get("/settings/:section", contentHandler.GetSettings)
	content.Post("/settings/:section", contentHandler.SaveSettings)
	content.Get("/news", contentHandler.ListNews)
	content.Post("/news", contentHandler.CreateNews)
	content.Get("/news/:id", contentHandler.ShowNews)
	content.Put("/news/:id", contentHandler.UpdateNews)
	content.Post("/news/:id/publish", contentHandler.PublishNews)
	content.Delete("/news/:id", contentHandler.DeleteNews)
	content.Get("/testimonials", contentHandler.ListTestimonials)
	content.Post("/testimonials", contentHandler.CreateTestimonial)
	content.Post("/testimonials/:id/publish", contentHandler.PublishTestimonial)
	content.Delete("/testimonials/:id", contentHandler.DeleteTestimonial)

	admin.Get("/support", supportHandler.AdminIndex)
	admin.Get("/support/:id", supportHandler.AdminShow)
	admin.Post("/support/:id/action", supportHandler.AdminAction)

	admin.Get("/certificates", certificateHandler.List)
	admin.Post("/certificates", certificateHandler.Issue)
	admin.Post("/certificates/:id/publish", certificateHandler.Publish)

	// Member area
	member := protected.Group("/member", middleware.RequireRole(models.RoleMember))
	member.Get("/dashboard", memberHandler.Dashboard)
	member.Get("/institution", memberHandler.Institution)
	member.Post("/edit-institution", memberHandler.EditInstitution)
	member.Post("/edit-institution/logo-banner", memberHandler.LogoBanner)
	member.Post("/edit-profile", memberHandler.EditProfile)
	member.Get("/financials", memberHandler.Financials)
	member.Get("/certificates", memberHandler.Certificates)

	member.Get("/payment", paymentHandler.PaymentOptions)
	member.Post("/payment/manual", paymentHandler.ManualPayment)
	member.Post("/payment/paystack/verify", paymentHandler.VerifyPaystack)

	member.Get("/notifications", memberHandler.Notifications)
	member.Post("/notifications/mark-as-read", memberHandler.MarkAsRead)

	member.Get("/support", supportHandler.MemberList)
	member.Post("/support", supportHandler.MemberCreate)
	member.Get("/support/:id", supportHandler.MemberShow)
}
