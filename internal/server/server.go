// Package server contains HTTP and WebSocket handlers for the WorkIt API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"workit/internal/bootstrap"
	"workit/internal/cache"
	"workit/internal/config"
	"workit/internal/database"
	"workit/internal/export"
	"workit/internal/featureflags"
	"workit/internal/middleware"
	"workit/internal/models"
	"workit/internal/notifications"
	"workit/internal/repository"
	"workit/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const (
	tokenIssuer   = "workit-api"
	tokenAudience = "workit-client"
	tokenLifetime = 7 * 24 * time.Hour
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

	userRepo    repository.UserRepository
	projectRepo repository.ProjectRepository
	messageRepo repository.MessageRepository
	postRepo    repository.PostRepository
	commentRepo repository.CommentRepository

	notifier    *notifications.Notifier
	hub         *notifications.Hub
	presence    *notifications.ConnectionManager
	publisher   *realtimePublisher
	limiter     *middleware.RateLimiter
	renderer    export.PDFRenderer
	storage     export.ObjectStorage
	featureFlag *featureflags.Manager

	userService     *service.UserService
	presenceService *service.PresenceService
	projectService  *service.ProjectService
	messageService  *service.MessageService
	postService     *service.PostService
	exportService   *service.ExportService
}

// NewServer brings up the runtime dependencies and builds the export
// backends from configuration.
func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	db, redisClient, err := bootstrap.InitRuntime(ctx, cfg)
	if err != nil {
		return nil, err
	}

	s, err := NewServerWithDeps(cfg, db, redisClient)
	if err != nil {
		return nil, err
	}

	s.renderer = export.NewChromedpRenderer(export.ChromedpConfig{
		RemoteURL: cfg.ChromeRemoteURL,
		NoSandbox: cfg.ChromeNoSandbox,
		Timeout:   cfg.RenderTimeout(),
	})
	if cfg.StorageEnabled() {
		store, err := export.NewS3Storage(ctx, export.StorageConfig{
			Endpoint:      cfg.StorageEndpoint,
			Region:        cfg.StorageRegion,
			Bucket:        cfg.StorageBucket,
			AccessKey:     cfg.StorageAccessKey,
			SecretKey:     cfg.StorageSecretKey,
			UseSSL:        cfg.StorageUseSSL,
			UsePathStyle:  cfg.StoragePathStyle,
			PresignExpiry: time.Duration(cfg.StoragePresignMinutes) * time.Minute,
		})
		if err != nil {
			return nil, fmt.Errorf("object storage setup failed: %w", err)
		}
		if err := store.EnsureBucket(ctx); err != nil {
			middleware.Logger.Warn("invoice bucket check failed", slog.String("error", err.Error()))
		}
		s.storage = store
	}
	s.exportService = service.NewExportService(s.projectRepo, s.postService, s.renderer, s.storage, s.featureFlag)

	return s, nil
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Redis may be nil; events are then delivered to local sockets only. The
// export service starts without a PDF renderer or object storage.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	if cfg == nil || db == nil {
		return nil, errors.New("config and database are required")
	}

	var cmdable redis.Cmdable
	if redisClient != nil {
		cmdable = redisClient
	}
	store := cache.NewStore(cmdable)

	s := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("workit-api"),
		userRepo:       repository.NewUserRepository(db, store),
		projectRepo:    repository.NewProjectRepository(db),
		messageRepo:    repository.NewMessageRepository(db),
		postRepo:       repository.NewPostRepository(db),
		commentRepo:    repository.NewCommentRepository(db),
		limiter:        middleware.NewRateLimiter(cmdable, middleware.RateLimitEnabled(cfg.Env)),
		featureFlag:    featureflags.NewManager(cfg.FeatureFlags),
	}

	s.notifier = notifications.NewNotifier(redisClient)
	s.presence = notifications.NewConnectionManager(redisClient, notifications.ConnectionManagerConfig{
		LastSeenTTL:    cfg.PresenceTTL(),
		ReaperInterval: cfg.PresenceReapInterval(),
	})
	s.hub = notifications.NewHub(s.presence)
	s.publisher = newRealtimePublisher(s.hub, s.notifier, redisClient != nil)

	s.userService = service.NewUserService(s.userRepo)
	s.presenceService = service.NewPresenceService(s.userRepo, s.presence, s.publisher)
	s.projectService = service.NewProjectService(s.projectRepo, store)
	s.messageService = service.NewMessageService(s.messageRepo, s.userRepo, s.publisher)
	s.postService = service.NewPostService(s.postRepo, s.commentRepo, s.userRepo, s.publisher)
	s.exportService = service.NewExportService(s.projectRepo, s.postService, nil, nil, s.featureFlag)

	s.presence.SetCallbacks(s.presenceService.HandleOnline, s.presenceService.HandleOffline)

	return s, nil
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.TracingMiddleware())
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(s.promMiddleware.Middleware)
	}

	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	// CORS runs before anything that can short-circuit so error responses
	// still carry the headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-API-Key, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		ExposeHeaders:    "Content-Disposition, X-Trace-ID",
		AllowCredentials: origins != "*",
		MaxAge:           86400,
	}))

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(models.ErrorResponse{
				Error: "Too many requests, please try again later.",
				Code:  "RATE_LIMITED",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	api := app.Group("/api", middleware.APIKeyRequired(s.config.PublicAPIKey))

	auth := api.Group("/auth")
	auth.Post("/register", s.limiter.Limit("register", 5, 10*time.Minute, middleware.FailOpen), s.Register)
	auth.Post("/login", s.limiter.Limit("login", 10, 5*time.Minute, middleware.FailOpen), s.Login)
	auth.Post("/logout", s.AuthRequired(), s.Logout)

	// Registered ahead of the protected group so the ticket is redeemed once.
	api.Get("/ws", s.AuthRequired(), s.WebsocketHandler())

	protected := api.Group("", s.AuthRequired())

	protected.Get("/flags", s.GetFeatureFlags)

	users := protected.Group("/users")
	users.Get("/me", s.GetMyProfile)
	users.Get("/", s.ListUsers)

	presence := protected.Group("/presence")
	presence.Post("/heartbeat", s.Heartbeat)
	presence.Get("/", s.GetOnlineUsers)

	projects := protected.Group("/projects")
	projects.Get("/", s.ListProjects)
	projects.Post("/", s.CreateProject)
	// Static segments before /:id
	projects.Get("/stats", s.GetDashboardStats)
	projects.Post("/:id/toggle-paid", s.TogglePaid)
	projects.Get("/:id/invoice", s.limiter.Limit("invoice", 20, time.Minute, middleware.FailOpen), s.GenerateInvoice)
	projects.Get("/:id", s.GetProject)
	projects.Put("/:id", s.UpdateProject)
	projects.Delete("/:id", s.DeleteProject)

	messages := protected.Group("/messages")
	messages.Get("/unread", s.GetUnreadCounts)
	messages.Post("/", s.limiter.Limit("send_message", 30, time.Minute, middleware.FailOpen), s.SendMessage)
	messages.Post("/:userId/read", s.MarkMessagesRead)
	messages.Get("/:userId", s.GetConversation)

	posts := protected.Group("/posts")
	posts.Get("/", s.ListPosts)
	posts.Post("/", s.limiter.Limit("create_post", 10, 5*time.Minute, middleware.FailOpen), s.CreatePost)
	posts.Post("/:id/like", s.ToggleLike)
	posts.Get("/:id/comments", s.ListComments)
	posts.Post("/:id/comments", s.limiter.Limit("create_comment", 20, time.Minute, middleware.FailOpen), s.CreateComment)
	posts.Post("/:id/share", s.SharePost)

	protected.Post("/ws/ticket", s.IssueWSTicket)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck reports database and Redis health.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	if err := database.Ping(ctx, s.db); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	} else {
		redisStatus = "unavailable"
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus != "healthy" || redisStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// AuthRequired accepts a single-use WebSocket ticket or a bearer JWT and
// stores the caller's id in locals.
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		isWSPath := strings.HasPrefix(c.Path(), "/api/ws") && c.Path() != "/api/ws/ticket"

		if ticket := c.Query("ticket"); ticket != "" {
			userID, ok := s.redeemWSTicket(c.UserContext(), ticket)
			if ok {
				setUserID(c, userID)
				return c.Next()
			}
			if isWSPath {
				return RespondWithError(c, models.NewUnauthorizedError("Invalid or expired WebSocket ticket"))
			}
		}

		tokenString := ""
		if parts := strings.SplitN(c.Get(fiber.HeaderAuthorization), " ", 2); len(parts) == 2 && parts[0] == "Bearer" {
			tokenString = strings.TrimSpace(parts[1])
		}
		// WebSocket upgrades must use a ticket
		if tokenString == "" && !isWSPath {
			tokenString = c.Query("token")
		}
		if tokenString == "" {
			return RespondWithError(c, models.NewUnauthorizedError("Authorization required"))
		}

		claims, err := s.parseToken(tokenString)
		if err != nil {
			return RespondWithError(c, err)
		}

		userID, err := strconv.ParseUint(claims.Subject, 10, 32)
		if err != nil || userID == 0 {
			return RespondWithError(c, models.NewUnauthorizedError("Invalid user ID in token"))
		}

		if claims.ID != "" && s.redis != nil {
			revoked, err := s.redis.Exists(c.UserContext(), blacklistKey(claims.ID)).Result()
			if err == nil && revoked > 0 {
				return RespondWithError(c, models.NewUnauthorizedError("Token has been revoked"))
			}
		}

		c.Locals("tokenClaims", claims)
		setUserID(c, uint(userID))
		return c.Next()
	}
}

// parseToken validates signature, lifetime, issuer and audience.
func (s *Server) parseToken(tokenString string) (*tokenClaims, error) {
	claims := &tokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(s.config.JWTSecret), nil
	},
		jwt.WithIssuer(tokenIssuer),
		jwt.WithAudience(tokenAudience),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		switch {
		case errors.Is(err, jwt.ErrTokenInvalidIssuer):
			return nil, models.NewUnauthorizedError("Invalid token issuer")
		case errors.Is(err, jwt.ErrTokenInvalidAudience):
			return nil, models.NewUnauthorizedError("Invalid token audience")
		}
		return nil, models.NewUnauthorizedError("Invalid or expired token")
	}
	return claims, nil
}

func setUserID(c *fiber.Ctx, userID uint) {
	c.Locals("userID", userID)
	c.SetUserContext(middleware.WithUserID(c.UserContext(), userID))
}

// App builds the Fiber app with middleware and routes. Start serves it.
func (s *Server) App() *fiber.App {
	if s.app != nil {
		return s.app
	}
	app := fiber.New(fiber.Config{
		AppName:   "WorkIt API",
		BodyLimit: 1 << 20,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
			}
			middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", slog.String("error", err.Error()))
			return RespondWithError(c, models.NewInternalError(err))
		},
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	s.app = app
	return app
}

// Start wires realtime delivery and listens on the configured port.
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	app := s.App()

	if s.redis != nil {
		go func() {
			if err := s.hub.StartWiring(s.shutdownCtx, s.notifier); err != nil {
				middleware.Logger.Error("failed to start notification wiring", slog.String("error", err.Error()))
			}
		}()
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
		if err := s.hub.Shutdown(ctx); err != nil {
			middleware.Logger.Error("error shutting down hub", slog.String("error", err.Error()))
		}
	}

	if s.renderer != nil {
		if err := s.renderer.Close(); err != nil {
			middleware.Logger.Error("error closing renderer", slog.String("error", err.Error()))
		}
	}

	if err := database.Close(s.db); err != nil {
		middleware.Logger.Error("error closing database", slog.String("error", err.Error()))
	}

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			middleware.Logger.Error("error closing redis", slog.String("error", err.Error()))
		}
	}

	middleware.Logger.Info("server shutdown complete")
	return nil
}
