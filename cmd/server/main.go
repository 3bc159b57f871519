// main.go
//
// Permit application document review and workflow service
// Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC
//
// This file is part of permit-review.
// permit-review is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// permit-review is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with permit-review.
// If not, see <https://www.gnu.org/licenses/>.
// Additional terms under GNU AGPL version 3 section 7:
// a) The reasonable legal notice of original copyright and author attribution must be preserved
//    by including the string: "Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC"
//    in this material, copies, or source code of derived works.

package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	swagger "github.com/gofiber/swagger"
	"github.com/google/uuid"
	"github.com/localnerve/permit-review/internal/blob"
	"github.com/localnerve/permit-review/internal/config"
	"github.com/localnerve/permit-review/internal/database"
	"github.com/localnerve/permit-review/internal/email"
	"github.com/localnerve/permit-review/internal/events"
	"github.com/localnerve/permit-review/internal/handlers"
	"github.com/localnerve/permit-review/internal/logger"
	"github.com/localnerve/permit-review/internal/middleware"
	"github.com/localnerve/permit-review/internal/services"
	"go.uber.org/zap"

	_ "github.com/localnerve/permit-review/docs/api" // Swagger docs
)

// @title Permit Review API
// @version 1.0.0
// @description Document lifecycle and review workflow for permit applications
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.url https://github.com/localnerve/permit-review
// @contact.email info@localnerve.com

// @license.name AGPL-3.0
// @license.url https://www.gnu.org/licenses/agpl-3.0.html

// @host localhost:3000
// @BasePath /api
// @schemes http https

// @securityDefinitions.apikey CookieAuth
// @in cookie
// @name cookie_session

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		// no logger yet
		_, _ = os.Stderr.WriteString("Failed to load configuration: " + err.Error() + "\n")
		os.Exit(1)
	}

	log, err := logger.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		_, _ = os.Stderr.WriteString("Failed to create logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped with error", zap.Error(err))
	}
	log.Info("server stopped")
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx := context.Background()

	db, err := database.Connect(cfg, logger.Service(log, "database"))
	if err != nil {
		return err
	}
	defer database.Close(db)

	if err := database.AutoMigrate(db); err != nil {
		return err
	}

	opts := []services.Option{
		services.WithLogger(logger.Service(log, "engine")),
		services.WithAppURL(cfg.AppURL),
	}

	health := &handlers.HealthHandler{Config: cfg, DB: db, Log: logger.Service(log, "health")}

	switch cfg.BlobBackend {
	case "minio":
		store, err := blob.NewMinIOStore(ctx, blob.MinIOConfig{
			Endpoint:  cfg.MinIOEndpoint,
			AccessKey: cfg.MinIOAccessKey,
			SecretKey: cfg.MinIOSecretKey,
			Bucket:    cfg.MinIOBucket,
			UseSSL:    cfg.MinIOUseSSL,
		})
		if err != nil {
			return err
		}
		opts = append(opts, services.WithBlobStore(store))
		health.Blobs = store
	case "memory":
		log.Warn("document content is kept in memory and lost on restart")
		opts = append(opts, services.WithBlobStore(blob.NewMemoryStore()))
	}

	var subscriber handlers.ChangeSubscriber
	if cfg.RedisURL != "" {
		publisher, err := events.NewRedisPublisher(cfg.RedisURL, cfg.EventsChannel)
		if err != nil {
			return err
		}
		defer publisher.Close()
		opts = append(opts, services.WithPublisher(publisher))
		health.Events = publisher
		subscriber = publisher
		log.Info("publishing change events", zap.String("channel", publisher.Channel()))
	}

	mailer := email.NewService(email.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
	})
	if mailer.IsConfigured() {
		opts = append(opts, services.WithMailer(mailer, cfg.EmailTimeout))
	} else {
		log.Info("SMTP is not configured, notification e-mail is disabled")
	}

	engine := services.New(db, opts...)

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler,
		// base64 content is a third larger than the document
		BodyLimit:             int(cfg.MaxUploadBytes*4/3) + 1<<20,
		DisableStartupMessage: cfg.Environment == "production",
	})

	app.Use(recover.New())
	app.Use(requestid.New(requestid.Config{Generator: uuid.NewString}))
	app.Use(middleware.RequestLogger(logger.Service(log, "http")))
	app.Use(compress.New(compress.Config{
		// event streams flush per message
		Next: func(c *fiber.Ctx) bool { return strings.HasSuffix(c.Path(), "/events") },
	}))

	prometheus := fiberprometheus.New("permit-review")
	prometheus.RegisterAt(app, "/metrics")
	app.Use(prometheus.Middleware)

	app.Get("/swagger/*", swagger.HandlerDefault)
	app.Get("/healthz", health.Check)

	api := app.Group("/api", middleware.VersionMiddleware())

	var eventsHandler *handlers.EventsHandler
	if subscriber != nil {
		eventsHandler = &handlers.EventsHandler{Engine: engine, Subscriber: subscriber, Log: logger.Service(log, "events")}
	}

	sessions := middleware.AuthorizerSessions(cfg, logger.Service(log, "auth"))
	handlers.Register(api, handlers.Handlers{
		Projects:      &handlers.ProjectHandler{Engine: engine},
		Documents:     &handlers.DocumentHandler{Engine: engine, MaxUploadBytes: cfg.MaxUploadBytes},
		Stakeholders:  &handlers.StakeholderHandler{Engine: engine},
		Notifications: &handlers.NotificationHandler{Engine: engine},
		Events:        eventsHandler,
	}, middleware.AuthUser(sessions), middleware.AuthSpecialist(sessions))

	app.Use(handlers.NotFound)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-quit
		log.Info("gracefully shutting down")
		if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			log.Warn("shutdown", zap.Error(err))
		}
	}()

	log.Info("starting server", zap.String("port", cfg.Port), zap.String("database", cfg.DBType))
	if err := app.Listen(":" + cfg.Port); err != nil {
		return err
	}

	// let in-flight notification e-mails finish
	engine.Wait()
	return nil
}
