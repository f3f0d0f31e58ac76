package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/linkgrove/linkgrove/internal/auth"
	"github.com/linkgrove/linkgrove/internal/config"
	"github.com/linkgrove/linkgrove/internal/entitlement"
	"github.com/linkgrove/linkgrove/internal/middleware"
	"github.com/linkgrove/linkgrove/internal/notification"
	"github.com/linkgrove/linkgrove/internal/payment"
	"github.com/linkgrove/linkgrove/internal/platform"
	"github.com/linkgrove/linkgrove/internal/profile"
	"github.com/linkgrove/linkgrove/internal/verify"
	"github.com/linkgrove/linkgrove/internal/walletsdk"
	"github.com/linkgrove/linkgrove/internal/workflow"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	// Sandbox mode may run without backing stores; anything else must not.
	if !d.Cfg.Sandbox {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	app.Use(middleware.Audit(d.Logger))
	if d.Cache != nil {
		app.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}

	// Health
	RegisterHealthRoutes(app, d)

	// Repositories
	var profileRepo profile.Repository
	var grantRepo entitlement.Repository
	if d.DB != nil {
		profileRepo = profile.NewPostgresRepository(d.DB)
		grantRepo = entitlement.NewPostgresRepository(d.DB)
	} else {
		profileRepo = profile.NewMemoryRepository()
		grantRepo = entitlement.NewMemoryRepository()
	}

	var fallback *entitlement.LocalStore
	if d.Cfg.FallbackStorePath != "" {
		fallback = entitlement.NewLocalStore(d.Cfg.FallbackStorePath)
	}
	grants := entitlement.NewStore(grantRepo, fallback, d.Logger)

	// The platform client backs both identity verification and payment
	// approval. Without an API key (sandbox) both degrade to local stubs.
	var platformClient *platform.Client
	if d.Cfg.PlatformAPIKey != "" {
		platformClient = platform.NewClient(d.Cfg.PlatformAPIURL, d.Cfg.PlatformAPIKey)
	}

	var verifier verify.Verifier
	var authority payment.Authority
	var inspector payment.Inspector
	var paymentSDK walletsdk.SDK
	if platformClient != nil {
		inspector = platformClient
	}
	if d.Cfg.Sandbox {
		if platformClient != nil {
			verifier = verify.NewPermissive(platformClient, d.Logger)
		} else {
			verifier = verify.NewPermissive(nil, d.Logger)
		}
		paymentSDK = &walletsdk.Sandbox{PaymentOutcome: walletsdk.OutcomeComplete}
	} else {
		verifier = verify.NewStrict(platformClient)
		authority = platformClient
	}

	notifier := notification.NewLoggerNotifier(d.Logger)
	orchestrator := payment.NewOrchestrator(authority, inspector, grants, notifier, d.Cfg.EntitlementTTL, d.Logger)

	profileSvc := profile.NewService(profileRepo)
	controller, err := workflow.NewController(workflow.Deps{
		Verifier:     verifier,
		Profiles:     profileSvc,
		Orchestrator: orchestrator,
		Grants:       grants,
		Notifier:     notifier,
		PaymentSDK:   paymentSDK,
		GrantTTL:     d.Cfg.EntitlementTTL,
		Logger:       d.Logger,
	})
	if err != nil {
		return err
	}

	sessionSvc := auth.NewService(d.Cfg, profileRepo, d.Cache)
	authHandler := auth.NewHandler(controller, sessionSvc)
	paymentHandler := payment.NewHandler(orchestrator)
	planHandler := workflow.NewHandler(controller)

	// API routes
	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	// Public routes
	rateLimiter := middleware.AuthRateLimit(d.Cache, 10)
	RegisterAuthRoutes(api, authHandler, rateLimiter)

	// Protected routes
	jwtmw := middleware.JWTAuth(d.Cfg, profileRepo)
	protected := api.Group("", jwtmw)
	protected.Post("/auth/logout", authHandler.Logout)
	RegisterPlanRoutes(api, protected, planHandler)
	RegisterPaymentRoutes(protected, paymentHandler)

	// Profile endpoint
	protected.Get("/me", func(c *fiber.Ctx) error {
		uid, _ := c.Locals("user_id").(string)
		if uid == "" {
			return c.SendStatus(http.StatusUnauthorized)
		}
		user, err := profileRepo.FindByExternalID(c.UserContext(), uid)
		if err != nil {
			return fiber.NewError(http.StatusUnauthorized, "user not found")
		}
		grant, err := grants.CurrentGrant(c.UserContext(), uid)
		if err != nil {
			return fiber.NewError(http.StatusInternalServerError, "entitlement lookup failed")
		}
		return c.JSON(fiber.Map{
			"user_id":         user.ExternalID,
			"username":        user.Username,
			"wallet_address":  user.WalletAddress,
			"setup_completed": user.SetupCompleted,
			"plan_id":         user.PlanID,
			"grant":           grant,
			"created_at":      user.CreatedAt,
			"last_seen_at":    user.LastSeenAt,
		})
	})

	protected.Get("/entitlements/current", func(c *fiber.Ctx) error {
		uid, _ := c.Locals("user_id").(string)
		if uid == "" {
			return c.SendStatus(http.StatusUnauthorized)
		}
		grant, err := grants.CurrentGrant(c.UserContext(), uid)
		if err != nil {
			return fiber.NewError(http.StatusInternalServerError, "entitlement lookup failed")
		}
		if grant == nil {
			return c.JSON(fiber.Map{"entitled": false})
		}
		return c.JSON(fiber.Map{"entitled": true, "grant": grant})
	})

	return nil
}
