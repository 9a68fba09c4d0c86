package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alexedwards/argon2id"
	"golang.org/x/sync/errgroup"

	"github.com/diagnosis/luxsuv-tours/internal/domain"
	"github.com/diagnosis/luxsuv-tours/internal/http/handlers"
	"github.com/diagnosis/luxsuv-tours/internal/http/middleware"
	"github.com/diagnosis/luxsuv-tours/internal/http/response"
	"github.com/diagnosis/luxsuv-tours/internal/http/router"
	"github.com/diagnosis/luxsuv-tours/internal/platform/mailer"
	"github.com/diagnosis/luxsuv-tours/internal/platform/media"
	"github.com/diagnosis/luxsuv-tours/internal/platform/payments"
	"github.com/diagnosis/luxsuv-tours/internal/repo/mongodb"
	"github.com/diagnosis/luxsuv-tours/internal/service"
	"github.com/diagnosis/luxsuv-tours/pkg/auth"
	"github.com/diagnosis/luxsuv-tours/pkg/cache"
	"github.com/diagnosis/luxsuv-tours/pkg/config"
	"github.com/diagnosis/luxsuv-tours/pkg/database"
	"github.com/diagnosis/luxsuv-tours/pkg/events"
	"github.com/diagnosis/luxsuv-tours/pkg/logger"
	pkgmw "github.com/diagnosis/luxsuv-tours/pkg/middleware"
)

func main() {
	if err := run(); err != nil {
		logger.Error("tours api stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger.SetDefault(logger.New(os.Stdout, os.Getenv("LOG_LEVEL")))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, db, err := database.Connect(ctx, cfg.Database.URL, cfg.Database.Name)
	if err != nil {
		return err
	}
	defer client.Disconnect(context.Background())
	logger.Info("Connected to MongoDB", "database", cfg.Database.Name)

	if err := mongodb.EnsureIndexes(ctx, db); err != nil {
		return err
	}

	// Redis is optional: without it there is no rate limiting or idempotency.
	var (
		limiter     pkgmw.Counter
		idempotency pkgmw.IdempotencyStore
	)
	if cfg.Redis.URL != "" {
		rdb, err := cache.Connect(ctx, cfg.Redis.URL)
		if err != nil {
			logger.Warn("Redis unavailable, rate limiting disabled", "error", err)
		} else {
			defer rdb.Close()
			limiter, idempotency = rdb, rdb
		}
	}

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.NATS.URL != "" {
		bus, err := events.NewNATSEventBus(cfg.NATS.URL)
		if err != nil {
			return err
		}
		defer bus.Close()
		publisher = bus
	}

	mail, err := mailer.New(cfg.Email)
	if err != nil {
		return err
	}

	var images media.Uploader = media.NewDisk("public/img/tours")
	if cfg.Media.CloudinaryURL != "" {
		if images, err = media.NewCloudinary(cfg.Media.CloudinaryURL, cfg.Media.Folder); err != nil {
			return err
		}
	}

	gateway := payments.NewStripe(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret, cfg.Stripe.Currency)

	validate := domain.NewValidator()
	tokens := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.JWTExpiresIn)
	passwords := service.NewPasswords(argon2id.DefaultParams)
	errs := response.NewTranslator(!cfg.IsProduction())

	users := mongodb.NewUsersRepo(db)
	tours := mongodb.NewToursRepo(db)
	bookings := mongodb.NewBookingsRepo(db)

	authSvc := service.NewAuthService(users, tokens, passwords, validate, publisher)
	reset := service.NewPasswordReset(users, mail, tokens, passwords, validate, publisher,
		service.PasswordResetConfig{TTL: cfg.Auth.PasswordResetTTL, BaseURL: cfg.Server.FrontendURL})
	checkout := service.NewCheckout(tours, bookings, users, gateway, publisher, cfg.Server.FrontendURL)

	guard := middleware.NewAuth(tokens, users, errs)
	cookie := auth.CookieOptions{TTL: cfg.Auth.CookieTTL(), Secure: cfg.Auth.CookieSecure}

	reviewsH := handlers.NewReviewsHandler(mongodb.NewReviewsCollection(db), validate, tours, publisher, guard, errs)
	handler := router.New(router.Deps{
		Errors: errs,
		Users: handlers.NewUsersHandler(handlers.NewAuthHandler(authSvc, reset, cookie),
			authSvc, mongodb.NewUsersCollection(db), validate, guard, errs),
		Tours:           handlers.NewToursHandler(tours, validate, images, reviewsH.Routes(), guard, errs),
		Reviews:         reviewsH,
		Bookings:        handlers.NewBookingsHandler(bookings, checkout, validate, idempotency, guard, errs),
		Limiter:         limiter,
		RateLimit:       cfg.RateLimit.Requests,
		RateLimitWindow: cfg.RateLimit.Window,
		CORSOrigins:     cfg.CORS.Origins,
		MaxUploadBytes:  cfg.Media.MaxUploadSize,
		Dev:             !cfg.IsProduction(),
	})

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting tours api", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down tours api...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
