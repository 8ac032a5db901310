// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"log/slog"
	"strings"
	"time"

	_ "foodgram/docs" // swagger docs
	"foodgram/internal/bootstrap"
	"foodgram/internal/config"
	"foodgram/internal/database"
	"foodgram/internal/featureflags"
	"foodgram/internal/middleware"
	"foodgram/internal/models"
	"foodgram/internal/notifications"
	"foodgram/internal/repository"
	"foodgram/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc

	userRepo repository.UserRepository

	users         *service.UserService
	recipes       *service.RecipeService
	favorites     *service.RecipeMarkService
	cart          *service.RecipeMarkService
	subscriptions *service.SubscriptionService
	catalog       *service.CatalogService
	shoppingList  *service.ShoppingListService

	notifier *notifications.Notifier
	hub      *notifications.Hub
	flags    *featureflags.Manager
}

// NewServer initializes the runtime and builds a Server on top of it.
func NewServer(cfg *config.Config) (*Server, error) {
	db, rdb, err := bootstrap.InitRuntime(cfg)
	if err != nil {
		return nil, err
	}
	return NewServerWithDeps(cfg, db, rdb)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// A nil redisClient disables the feed, the token blacklist and caching.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	flags, err := featureflags.Parse(cfg.FeatureFlags)
	if err != nil {
		return nil, err
	}

	userRepo := repository.NewUserRepository(db)
	recipeRepo := repository.NewRecipeRepository(db)
	tagRepo := repository.NewTagRepository(db)
	ingredientRepo := repository.NewIngredientRepository(db)
	favoriteRepo := repository.NewFavoriteRepository(db)
	cartRepo := repository.NewShoppingCartRepository(db)
	subscriptionRepo := repository.NewSubscriptionRepository(db)

	images := service.NewImageService(cfg)

	s := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("foodgram-api"),
		userRepo:       userRepo,
		users:          service.NewUserService(userRepo, subscriptionRepo, images),
		favorites:      service.NewFavoriteService(favoriteRepo, recipeRepo),
		cart:           service.NewShoppingCartService(cartRepo, recipeRepo),
		subscriptions:  service.NewSubscriptionService(subscriptionRepo, userRepo, recipeRepo),
		catalog:        service.NewCatalogService(tagRepo, ingredientRepo),
		shoppingList:   service.NewShoppingListService(cartRepo),
		flags:          flags,
	}

	deps := service.RecipeDeps{
		Recipes:         recipeRepo,
		Ingredients:     ingredientRepo,
		Tags:            tagRepo,
		Favorites:       favoriteRepo,
		Cart:            cartRepo,
		Subscriptions:   subscriptionRepo,
		Images:          images,
		ShortLinkDomain: cfg.ShortLinkDomain,
	}
	if redisClient != nil {
		s.notifier = notifications.NewNotifier(redisClient)
		s.hub = notifications.NewHub()
		deps.Events = s.notifier
	}
	s.recipes = service.NewRecipeService(deps)

	return s, nil
}

// NewApp builds the Fiber application with middleware and routes installed.
func (s *Server) NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:     "Foodgram API",
		JSONEncoder: json.Marshal,
		JSONDecoder: json.Unmarshal,
		BodyLimit:   (s.maxUploadMB() + 2) * 1024 * 1024,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if fe, ok := err.(*fiber.Error); ok {
				return models.RespondWithError(c, fe.Code, fe)
			}
			middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", slog.String("error", err.Error()))
			return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
		},
	})
	s.app = app

	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

func (s *Server) maxUploadMB() int {
	if s.config.ImageMaxUploadSizeMB > 0 {
		return s.config.ImageMaxUploadSizeMB
	}
	return service.DefaultImageMaxUploadSizeMB
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	if s.config.TracingEnabled {
		app.Use(middleware.TracingMiddleware())
	}
	app.Use(middleware.ContextMiddleware())
	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Media is loaded cross-origin by the SPA.
	app.Use(helmet.New(helmet.Config{CrossOriginResourcePolicy: "cross-origin"}))
	app.Use(middleware.StructuredLogger())

	// CORS runs before the limiter so rejected requests still carry CORS headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:3000,http://127.0.0.1:3000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		ExposeHeaders:    "Content-Disposition",
		AllowCredentials: origins != "*",
		MaxAge:           86400,
	}))

	app.Use(limiter.New(limiter.Config{
		Max:        300,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions || !s.config.IsProduction()
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}
	app.Get("/swagger/*", swagger.HandlerDefault)

	mediaPrefix := strings.TrimSuffix(s.config.MediaURL, "/")
	if strings.HasPrefix(mediaPrefix, "/") && s.config.MediaRoot != "" {
		app.Static(mediaPrefix, s.config.MediaRoot, fiber.Static{MaxAge: 3600})
	}

	app.Get("/s/:code", s.ResolveShortLink)

	api := app.Group("/api")
	if !s.config.IsProduction() {
		api.Get("/monitor", monitor.New(monitor.Config{Title: "Foodgram API Monitor"}))
	}

	auth := api.Group("/auth/token")
	auth.Post("/login", middleware.RateLimit(s.redis, 10, 5*time.Minute, "login"), s.Login)
	auth.Post("/logout", s.AuthRequired(), s.Logout)

	// Specific /users/<word> routes are registered before /users/:id.
	users := api.Group("/users")
	users.Get("/", s.ListUsers)
	users.Post("/", middleware.RateLimit(s.redis, 5, 10*time.Minute, "signup"), s.Register)
	users.Get("/me", s.AuthRequired(), s.GetMe)
	users.Put("/me/avatar", s.AuthRequired(), s.SetAvatar)
	users.Delete("/me/avatar", s.AuthRequired(), s.DeleteAvatar)
	users.Post("/set_password", s.AuthRequired(), s.SetPassword)
	users.Get("/subscriptions", s.AuthRequired(), s.ListSubscriptions)
	users.Post("/:id/subscribe", s.AuthRequired(), s.Subscribe)
	users.Delete("/:id/subscribe", s.AuthRequired(), s.Unsubscribe)
	users.Get("/:id", s.GetUser)

	tags := api.Group("/tags")
	tags.Get("/", s.ListTags)
	tags.Get("/:id", s.GetTag)

	ingredients := api.Group("/ingredients")
	ingredients.Get("/", s.ListIngredients)
	ingredients.Get("/:id", s.GetIngredient)

	recipes := api.Group("/recipes")
	recipes.Get("/", s.ListRecipes)
	recipes.Post("/", s.AuthRequired(), s.CreateRecipe)
	recipes.Get("/download_shopping_cart", s.AuthRequired(), s.DownloadShoppingCart)
	recipes.Get("/:id/get-link", s.GetRecipeLink)
	recipes.Post("/:id/favorite", s.AuthRequired(), s.AddFavorite)
	recipes.Delete("/:id/favorite", s.AuthRequired(), s.RemoveFavorite)
	recipes.Post("/:id/shopping_cart", s.AuthRequired(), s.AddToShoppingCart)
	recipes.Delete("/:id/shopping_cart", s.AuthRequired(), s.RemoveFromShoppingCart)
	recipes.Get("/:id", s.GetRecipe)
	recipes.Put("/:id", s.AuthRequired(), s.UpdateRecipe)
	recipes.Patch("/:id", s.AuthRequired(), s.UpdateRecipe)
	recipes.Delete("/:id", s.AuthRequired(), s.DeleteRecipe)

	api.Post("/ws/ticket", s.AuthRequired(), s.IssueWSTicket)
	api.Get("/ws", s.AuthRequired(), s.FeedUpgradeRequired, s.FeedHandler())
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck pings the database and Redis.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	if sqlDB, err := s.db.DB(); err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if s.redis == nil {
		redisStatus = "unavailable"
	} else if err := s.redis.Ping(ctx).Err(); err != nil {
		redisStatus = "unhealthy"
	}

	status := fiber.StatusOK
	overall := "healthy"
	if dbStatus != "healthy" || redisStatus != "healthy" {
		status = fiber.StatusServiceUnavailable
		overall = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overall,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// Start wires the feed hub and listens on the configured port.
func (s *Server) Start() error {
	s.shutdownCtx, s.shutdownFn = context.WithCancel(context.Background())
	app := s.NewApp()

	if s.notifier != nil && s.hub != nil {
		if err := s.hub.StartWiring(s.shutdownCtx, s.notifier); err != nil {
			middleware.Logger.Error("failed to start feed wiring", slog.String("error", err.Error()))
		}
	}

	middleware.Logger.Info("server starting", slog.String("port", s.config.Port))
	return app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}
	if s.hub != nil {
		_ = s.hub.Shutdown(ctx)
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			middleware.Logger.Error("error closing sql DB", slog.String("error", cerr.Error()))
		}
	}
	if replica := database.GetReadDB(); replica != nil {
		if sqlDB, err := replica.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			middleware.Logger.Error("error closing redis", slog.String("error", rerr.Error()))
		}
	}

	middleware.Logger.Info("server shutdown complete")
	return nil
}
