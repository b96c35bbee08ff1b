package main

import (
	"context"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/example/comcin/internal/config"
	"github.com/example/comcin/internal/database"
	"github.com/example/comcin/internal/handlers"
	"github.com/example/comcin/internal/metrics"
	"github.com/example/comcin/internal/routes"
	"github.com/example/comcin/internal/services"
)

func main() {
	cfg := config.Load()
	db := database.Connect(cfg.DatabaseURL)

	deps := routes.Deps{
		Mailer:  newMailer(cfg),
		Blobs:   services.NewLocalStore(cfg.UploadDir),
		Gateway: services.NewPaystackClient(db, cfg.PaystackBaseURL, cfg.PaystackSecretKey),
	}

	app := fiber.New(fiber.Config{
		AppName:      "COMCIN Backend",
		ErrorHandler: handlers.ErrorHandler,
		BodyLimit:    20 * 1024 * 1024,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORSOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))
	app.Use(metrics.Middleware())

	routes.Register(app, db, cfg, deps)

	log.Printf("Starting server on :%s", cfg.AppPort)
	if err := app.Listen(":" + cfg.AppPort); err != nil {
		log.Fatalf("fiber.Listen error: %v", err)
	}
}

func newMailer(cfg *config.Config) services.Mailer {
	if cfg.AWSAccessKeyID == "" || cfg.AWSSecretKey == "" {
		log.Printf("[Mailer] AWS credentials not set, logging outgoing mail instead")
		return services.LogMailer{}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	mailer, err := services.NewSESMailer(ctx, cfg.AWSAccessKeyID, cfg.AWSSecretKey, cfg.AWSSessionToken, cfg.AWSRegion, cfg.MailFrom)
	if err != nil {
		log.Printf("[Mailer] SES setup failed, logging outgoing mail instead: %v", err)
		return services.LogMailer{}
	}
	return mailer
}
