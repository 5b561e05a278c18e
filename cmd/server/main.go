// Package main runs the event registration HTTP server with the check-in
// feed and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/lumen-events/backend/config"
	"github.com/lumen-events/backend/internal/admin"
	"github.com/lumen-events/backend/internal/badges"
	"github.com/lumen-events/backend/internal/checkin"
	"github.com/lumen-events/backend/internal/events"
	"github.com/lumen-events/backend/internal/guests"
	"github.com/lumen-events/backend/internal/live"
	"github.com/lumen-events/backend/internal/mailer"
	"github.com/lumen-events/backend/internal/middleware"
	"github.com/lumen-events/backend/internal/models"
	"github.com/lumen-events/backend/internal/otp"
	"github.com/lumen-events/backend/internal/payments"
	"github.com/lumen-events/backend/internal/qualifiers"
	"github.com/lumen-events/backend/internal/registrations"
	"github.com/lumen-events/backend/internal/scoping"
	"github.com/lumen-events/backend/internal/swag"
	"github.com/lumen-events/backend/internal/travel"
	"github.com/lumen-events/backend/internal/wallet"
	"github.com/lumen-events/backend/internal/worker"
	"github.com/lumen-events/backend/pkg/database"
	"github.com/lumen-events/backend/pkg/queue"
	"github.com/lumen-events/backend/pkg/redis"
	"github.com/lumen-events/backend/pkg/response"
	"github.com/lumen-events/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), database.PoolOptions{
		MaxConns: int32(cfg.Database.MaxConns),
		MinConns: int32(cfg.Database.MinConns),
	}, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	}, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var s3Client *storage.S3
	if cfg.AWS.Region != "" {
		s3Cfg := storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			PassesBucket:         cfg.AWS.PassesBucket,
			AssetsBucket:         cfg.AWS.AssetsBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}
		s3Client, err = storage.NewS3(ctx, s3Cfg, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		}
	}

	jobQueue := queue.NewQueue(rdb.Client, logger)
	tokenService := admin.NewTokenService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	checker := scoping.NewChecker(cfg.Scoping)
	feed := live.NewFeed(rdb.Client, logger)

	// Repositories
	eventRepo := events.NewRepository(pool)
	qualifierRepo := qualifiers.NewRepository(pool)
	registrationRepo := registrations.NewRepository(pool)
	checkinRepo := checkin.NewRepository(pool)
	adminRepo := admin.NewRepository(pool)
	guestRepo := guests.NewRepository(pool)
	travelRepo := travel.NewRepository(pool)
	swagRepo := swag.NewRepository(pool)
	badgeRepo := badges.NewRepository(pool)
	otpRepo := otp.NewRepository(pool)

	// Identity verification
	hydraTimeout := time.Duration(cfg.Hydra.TimeoutSec) * time.Second
	hydra := otp.NewHydraClient(cfg.Hydra.BaseURL(cfg.AppEnv), hydraTimeout, logger)
	otpService := otp.NewService(otpRepo, eventRepo, qualifierRepo, registrationRepo, adminRepo, hydra, cfg, logger)
	otpHandler := otp.NewHandler(otpService, adminRepo.CreateAttendeeSession, logger)

	// Events
	eventHandler := events.NewHandler(eventRepo, checker, logger)

	// Qualification lists
	qualifierHandler := qualifiers.NewHandler(qualifierRepo, eventHandler, logger)

	// Registrations
	registrationService := registrations.NewService(registrationRepo, otpService, qualifierRepo, checkinRepo, jobQueue, logger)
	registrationHandler := registrations.NewHandler(registrationService, registrationRepo, eventHandler, adminRepo, otpService, logger)

	// Check-in
	checkinHandler := checkin.NewHandler(checkinRepo, registrationRepo, feed, logger)

	// Admin auth and user listing
	adminHandler := admin.NewHandler(adminRepo, otpService, tokenService, logger)

	// Guests and travel
	guestHandler := guests.NewHandler(guestRepo, registrationRepo, eventRepo, qualifierRepo, logger)
	travelHandler := travel.NewHandler(travelRepo, registrationRepo, logger)

	// Swag
	swagHandler := swag.NewHandler(swagRepo, eventHandler, logger)

	// Badges (optional printer bridge and asset store)
	var printerBridge badges.Printer
	if cfg.Printing.Enabled() {
		printerBridge = badges.NewBridge(cfg.Printing.BridgeURL, time.Duration(cfg.Printing.TimeoutSec)*time.Second, logger)
	}
	var assetStore badges.AssetStore
	if s3Client != nil {
		assetStore = s3Client
	}
	badgeHandler := badges.NewHandler(badgeRepo, printerBridge, registrationRepo, eventRepo, checkinRepo, assetStore, cfg.AWS.AssetsBucket, logger)

	// Wallet passes (optional signer)
	var passSigner wallet.PassSigner
	if cfg.Wallet.Enabled() {
		passSigner = wallet.NewSigner(cfg.Wallet.SignerURL, 10*time.Second, logger)
	}
	var passStore wallet.PassStore
	if s3Client != nil {
		passStore = s3Client
	}
	walletHandler := wallet.NewHandler(passSigner, passStore, cfg.AWS.PassesBucket, registrationRepo, eventRepo, checkinRepo, cfg.Wallet, logger)

	// Payments
	paymentService := payments.NewService(registrationRepo, cfg.Stripe, logger)
	paymentHandler := payments.NewHandler(paymentService, registrationRepo, eventRepo, cfg.Stripe.Enabled(), logger)

	adminAuth := middleware.AdminAuth(
		func(token string) (*middleware.AdminClaims, error) {
			claims, err := tokenService.Validate(token)
			if err != nil {
				return nil, err
			}
			jti, err := uuid.Parse(claims.ID)
			if err != nil {
				return nil, admin.ErrInvalidToken
			}
			return &middleware.AdminClaims{
				UserID:  claims.UserID,
				Email:   claims.Email,
				Role:    string(claims.Role),
				Markets: claims.Markets,
				JTI:     jti,
			}, nil
		},
		adminRepo.AuthSessionActive,
	)
	manageRoles := middleware.RequireRole(string(models.RoleAdmin), string(models.RoleEventManager))

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Public: registrant identity verification
	reg := router.Group("/register/otp")
	{
		reg.POST("/generate", otpHandler.Generate)
		reg.POST("/generate-by-id", otpHandler.GenerateByID)
		reg.POST("/portal/generate", otpHandler.GeneratePortal)
		reg.POST("/validate", otpHandler.Validate)
		reg.POST("/session/consume", otpHandler.Consume)
	}

	// Public: event page, registration submit, attendee self-service
	router.GET("/api/events/:id", eventHandler.Get)
	router.POST("/api/events/:id/register", registrationHandler.Register)
	router.PUT("/api/registrations/:id", registrationHandler.Update)
	router.GET("/api/registrations/:id/wallet-pass", walletHandler.GetPass)
	router.POST("/api/registrations/:id/checkout", paymentHandler.CreateCheckout)

	// Admin login (public endpoints; token required beyond this point)
	router.POST("/api/auth/otp/generate", adminHandler.GenerateOtp)
	router.POST("/api/auth/otp/validate", adminHandler.ValidateOtp)

	// Webhooks (signature verified in the handler)
	router.POST("/api/payments/webhook", paymentHandler.Webhook)

	api := router.Group("/api")
	api.Use(adminAuth)
	{
		api.POST("/auth/logout", adminHandler.Logout)
		api.GET("/users", middleware.RequireRole(string(models.RoleAdmin)), adminHandler.List)

		// Events
		api.POST("/events", manageRoles, eventHandler.Create)
		api.GET("/events", eventHandler.List)
		api.PATCH("/events/:id", manageRoles, eventHandler.Update)
		api.PUT("/events/:id/form-fields", manageRoles, eventHandler.UpdateFormFields)
		api.DELETE("/events/:id", middleware.RequireRole(string(models.RoleAdmin)), eventHandler.Archive)
		api.GET("/events/:id/stats", eventHandler.Stats)

		// Qualification lists
		api.POST("/events/:id/qualifiers", manageRoles, qualifierHandler.Create)
		api.GET("/events/:id/qualifiers", qualifierHandler.List)
		api.POST("/events/:id/qualifiers/import", manageRoles, qualifierHandler.Import)
		api.DELETE("/events/:id/qualifiers/:qualifierId", manageRoles, qualifierHandler.Delete)

		// Registrations
		api.GET("/events/:id/registrations", registrationHandler.List)
		api.GET("/events/:id/registrations/lookup", registrationHandler.Lookup)
		api.GET("/registrations/:id", registrationHandler.Get)
		api.DELETE("/registrations/:id", middleware.RequireRole(string(models.RoleAdmin)), registrationHandler.Delete)

		// Check-in
		api.POST("/events/:id/checkin", checkinHandler.Scan)

		// Guests
		api.POST("/registrations/:id/guests", guestHandler.Create)
		api.GET("/registrations/:id/guests", guestHandler.List)
		api.PUT("/guests/:guestId", guestHandler.Update)
		api.DELETE("/guests/:guestId", guestHandler.Delete)

		// Travel
		api.POST("/registrations/:id/flights", travelHandler.CreateFlight)
		api.GET("/registrations/:id/flights", travelHandler.ListFlights)
		api.PUT("/flights/:flightId", travelHandler.UpdateFlight)
		api.DELETE("/flights/:flightId", travelHandler.DeleteFlight)
		api.POST("/registrations/:id/reimbursements", travelHandler.CreateReimbursement)
		api.GET("/registrations/:id/reimbursements", travelHandler.ListReimbursements)
		api.PATCH("/reimbursements/:claimId/status", manageRoles, travelHandler.SetReimbursementStatus)

		// Swag
		api.POST("/events/:id/swag", manageRoles, swagHandler.CreateItem)
		api.GET("/events/:id/swag", swagHandler.ListItems)
		api.PUT("/swag/items/:itemId", manageRoles, swagHandler.UpdateItem)
		api.DELETE("/swag/items/:itemId", manageRoles, swagHandler.DeleteItem)
		api.POST("/swag/items/:itemId/assign", swagHandler.Assign)
		api.GET("/registrations/:id/swag", swagHandler.ListAssignments)
		api.DELETE("/swag/assignments/:assignmentId", swagHandler.Unassign)

		// Badges and printers
		api.POST("/badge-templates", manageRoles, badgeHandler.CreateTemplate)
		api.GET("/events/:id/badge-templates", badgeHandler.ListTemplates)
		api.PUT("/badge-templates/:templateId", manageRoles, badgeHandler.UpdateTemplate)
		api.DELETE("/badge-templates/:templateId", manageRoles, badgeHandler.DeleteTemplate)
		api.POST("/badge-templates/:templateId/asset", manageRoles, badgeHandler.UploadAsset)
		api.POST("/printers", manageRoles, badgeHandler.CreatePrinter)
		api.GET("/printers", badgeHandler.ListPrinters)
		api.DELETE("/printers/:printerId", manageRoles, badgeHandler.DeletePrinter)
		api.GET("/printers/:printerId/logs", badgeHandler.ListPrintLogs)
		api.POST("/registrations/:id/print", badgeHandler.PrintBadge)
	}

	// Check-in live feed (token in Authorization header)
	router.GET("/ws/checkins", adminAuth, feed.ServeWS)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Background worker (confirmation mail, marketing sync, queued prints)
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	mailSender := mailer.NewSender(cfg.Email, logger)
	marketingClient := mailer.NewMarketingClient(cfg.Marketing, logger)
	buildMail := func(recipientName, eventName, locale string) (string, string) {
		return mailer.ConfirmationSubject(eventName, locale), mailer.ConfirmationBody(recipientName, eventName, locale)
	}
	var workerPrinter worker.BadgePrinter
	if printerBridge != nil {
		workerPrinter = printerBridge
	}
	processor := worker.NewProcessor(jobQueue, registrationRepo, eventRepo, checkinRepo, badgeRepo, workerPrinter, mailSender, marketingClient, buildMail, logger)
	go processor.Run(workerCtx)
	logger.Info("job worker started")

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	workerCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
