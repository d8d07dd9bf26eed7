package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.uber.org/zap"

	"github.com/forumkit/discussion-board/internal/config"
	"github.com/forumkit/discussion-board/internal/database"
	"github.com/forumkit/discussion-board/internal/devproxy"
	"github.com/forumkit/discussion-board/internal/handlers"
	"github.com/forumkit/discussion-board/internal/logger"
	"github.com/forumkit/discussion-board/internal/middleware"
	"github.com/forumkit/discussion-board/internal/queue"
	"github.com/forumkit/discussion-board/internal/services/identity"
	"github.com/forumkit/discussion-board/internal/services/oidc"
	"github.com/forumkit/discussion-board/internal/session"
	"github.com/forumkit/discussion-board/internal/telemetry"
)

func main() {
	// Parse command-line flags
	debugFlag := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Override debug mode if flag is set
	debugMode := cfg.ServerDebugMode || *debugFlag

	// Initialize logger. Debug runs get console encoding for readability.
	var zapLogger *zap.Logger
	if debugMode {
		zapLogger, err = logger.NewDevelopmentLogger(true)
	} else {
		zapLogger, err = logger.NewProductionLogger(false)
	}
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() {
		if syncErr := zapLogger.Sync(); syncErr != nil {
			// Ignore sync errors in production
			_ = syncErr
		}
	}()

	zapLogger.Info("starting_server",
		zap.Bool("debug_mode", debugMode),
		zap.String("server_port", cfg.ServerPort),
		zap.String("frontend_url", cfg.FrontendURL),
		zap.String("oidc_issuer", cfg.OIDCIssuerURL),
		zap.String("session_store", cfg.SessionStore),
		zap.Bool("otel_enabled", cfg.OTELEnabled),
	)

	// Initialize OpenTelemetry if enabled
	var tracerProvider interface{ Shutdown(context.Context) error }
	if cfg.OTELEnabled {
		if cfg.OTELEndpoint == "" {
			zapLogger.Warn("otel_enabled_but_endpoint_not_configured")
		} else {
			tp, err := telemetry.InitTracer(context.Background(), "discussion-board", cfg.OTELEndpoint)
			if err != nil {
				zapLogger.Warn("failed_to_initialize_otel_tracer", zap.Error(err))
			} else {
				tracerProvider = tp
				zapLogger.Info("otel_tracer_initialized",
					zap.String("endpoint", cfg.OTELEndpoint),
				)
				defer func() {
					shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer shutdownCancel()
					if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
						zapLogger.Error("failed_to_shutdown_otel_tracer", zap.Error(err))
					}
				}()
			}
		}
	}

	// Development-only reverse proxy for a provider in a sibling container
	proxyCtx, proxyCancel := context.WithCancel(context.Background())
	defer proxyCancel()
	if cfg.ProxyOIDCTarget != "" {
		proxy, err := devproxy.New(cfg.ProxyOIDCListen, cfg.ProxyOIDCTarget, zapLogger)
		if err != nil {
			zapLogger.Fatal("failed_to_create_oidc_proxy", zap.Error(err))
		}
		go func() {
			if err := proxy.Start(proxyCtx); err != nil {
				zapLogger.Error("oidc_proxy_stopped_with_error", zap.Error(err))
			}
		}()
	}

	// Connect to database
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			zapLogger.Warn("failed_to_close_database_connection", zap.Error(err))
		}
	}()

	zapLogger.Info("connected_to_database")

	// Select session store
	var sessionStore session.Store
	var redisStore *session.RedisStore
	switch cfg.SessionStore {
	case config.SessionStoreMemory:
		zapLogger.Warn("memory_session_store_enabled",
			zap.String("detail", "sessions are not durable and cannot be shared across instances"),
		)
		sessionStore = session.NewMemoryStore()
	default:
		redisStore, err = session.NewRedisStore(cfg.RedisURL)
		if err != nil {
			zapLogger.Fatal("failed_to_connect_to_redis", zap.Error(err))
		}
		sessionStore = redisStore
		zapLogger.Info("connected_to_redis")
	}
	defer func() {
		if err := sessionStore.Close(); err != nil {
			zapLogger.Warn("failed_to_close_session_store", zap.Error(err))
		}
	}()

	// Discover the OIDC issuer. The server does not come up without it.
	issuer, err := oidc.Discover(context.Background(), oidc.IssuerConfig{
		IssuerURL:    cfg.OIDCIssuerURL,
		ClientID:     cfg.OIDCClientID,
		ClientSecret: cfg.OIDCClientSecret,
		RedirectURL:  cfg.OIDCRedirectURL,
	}, zapLogger)
	if err != nil {
		zapLogger.Fatal("oidc_discovery_failed", zap.Error(err))
	}

	// Connect to RabbitMQ for event publishing (optional)
	var events queue.Publisher
	if cfg.RabbitMQURL != "" {
		publisher, err := connectRabbitMQ(cfg.RabbitMQURL, zapLogger)
		if err != nil {
			zapLogger.Fatal("failed_to_connect_to_rabbitmq_after_retries", zap.Error(err))
		}
		events = publisher
		defer func() {
			if err := events.Close(); err != nil {
				zapLogger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
			}
		}()
	}

	// Initialize repositories and services
	userRepo := database.NewUserRepository(db)
	postRepo := database.NewPostRepository(db)

	loginFlow := oidc.NewFlow(issuer, sessionStore, zapLogger)
	reconciler := identity.NewReconciler(userRepo, zapLogger)
	sessions := session.NewManager(sessionStore, cfg.SessionTTL, zapLogger)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(loginFlow, sessions, reconciler, userRepo, cfg.BaseURL, zapLogger)
	postHandler := handlers.NewPostHandler(postRepo, events, zapLogger)
	healthChecker := handlers.NewHealthChecker(db, sessionStore, events)

	// Setup router
	r := mux.NewRouter()

	// Middleware, outermost first
	if cfg.OTELEnabled && tracerProvider != nil {
		r.Use(otelmux.Middleware("discussion-board"))
		zapLogger.Info("otel_middleware_enabled")
	}
	r.Use(middleware.SecurityHeaders(cfg.EnableHSTS))
	r.Use(middleware.CORS(cfg.FrontendURL))
	r.Use(middleware.MaxRequestSize(middleware.DefaultMaxRequestSize))
	r.Use(middleware.ContentType)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(middleware.ErrorHandler(zapLogger))
	r.Use(middleware.Logging(zapLogger))

	// Rate limiting for login routes, backed by Redis when available
	loginRateLimit := passthrough
	if redisStore != nil {
		limitMW, err := middleware.RateLimit(redisStore.Client(), cfg.LoginRateLimit)
		if err != nil {
			zapLogger.Fatal("failed_to_create_rate_limiter", zap.Error(err))
		}
		loginRateLimit = limitMW
	} else {
		zapLogger.Warn("login_rate_limiting_disabled_without_redis")
	}

	// Public routes
	r.HandleFunc("/healthz", healthChecker.HealthCheck).Methods("GET")
	r.HandleFunc("/version", versionInfo).Methods("GET")

	apiRouter := r.PathPrefix("/api").Subrouter()

	// Login routes, rate limited
	loginRouter := apiRouter.PathPrefix("").Subrouter()
	loginRouter.Use(loginRateLimit)
	authHandler.RegisterPublicRoutes(loginRouter)

	// Public post routes
	apiRouter.HandleFunc("/posts", postHandler.List).Methods("GET")
	apiRouter.HandleFunc("/post/{postId}", postHandler.Get).Methods("GET")

	// Protected routes
	protectedRouter := apiRouter.PathPrefix("").Subrouter()
	protectedRouter.Use(middleware.Auth(sessions, zapLogger))
	protectedRouter.HandleFunc("/user", authHandler.GetUser).Methods("GET")
	protectedRouter.HandleFunc("/create-a-post", postHandler.Create).Methods("POST")

	// Catch-all OPTIONS handler for preflight requests
	r.Methods("OPTIONS").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	// Setup server
	srv := &http.Server{
		Addr:           ":" + cfg.ServerPort,
		Handler:        r,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20, // 1MB max header size
	}

	// Start server in a goroutine
	go func() {
		zapLogger.Info("server_starting",
			zap.String("port", cfg.ServerPort),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("server_failed_to_start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("server_shutting_down")
	proxyCancel()

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Fatal("server_forced_to_shutdown", zap.Error(err))
	}

	zapLogger.Info("server_exited")
}

// connectRabbitMQ retries the connection with exponential backoff to handle
// broker startup delays
func connectRabbitMQ(amqpURL string, zapLogger *zap.Logger) (queue.Publisher, error) {
	const maxRetries = 10
	const initialDelay = 2 * time.Second

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		publisher, err := queue.NewRabbitMQPublisher(amqpURL)
		if err == nil {
			zapLogger.Info("connected_to_rabbitmq")
			return publisher, nil
		}

		lastErr = err
		delay := initialDelay * time.Duration(1<<uint(attempt))
		if delay > 30*time.Second {
			delay = 30 * time.Second
		}
		zapLogger.Warn("failed_to_connect_to_rabbitmq_retrying",
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", maxRetries),
			zap.Error(err),
			zap.Duration("retry_delay", delay),
		)
		time.Sleep(delay)
	}

	return nil, lastErr
}

func passthrough(next http.Handler) http.Handler {
	return next
}

func versionInfo(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	// Only expose minimal version info (sanitized for security)
	if _, err := fmt.Fprintf(w, `{"version":"1.0.0","timestamp":"%s"}`, time.Now().UTC().Format(time.RFC3339)); err != nil {
		_ = err
	}
}
