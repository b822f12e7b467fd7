package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/chantierhq/delegation-engine/pkg/auth"
	"github.com/chantierhq/delegation-engine/pkg/config"
	"github.com/chantierhq/delegation-engine/pkg/database"
	"github.com/chantierhq/delegation-engine/pkg/handlers"
	"github.com/chantierhq/delegation-engine/pkg/logging"
	"github.com/chantierhq/delegation-engine/pkg/mcp"
	mcpauth "github.com/chantierhq/delegation-engine/pkg/mcp/auth"
	"github.com/chantierhq/delegation-engine/pkg/mcp/tools"
	"github.com/chantierhq/delegation-engine/pkg/middleware"
	"github.com/chantierhq/delegation-engine/pkg/repositories"
	"github.com/chantierhq/delegation-engine/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()
	connStr := cfg.Database.ConnectionString()

	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("version", cfg.Version),
		zap.Bool("auth_verification", cfg.Auth.EnableVerification),
		zap.String("database", logging.SanitizeConnectionString(connStr)),
		zap.Bool("stats_cache", cfg.Redis.Host != ""))

	// Migrations run through database/sql; the engine itself uses pgx pool.
	migrationDB, err := sql.Open("pgx", connStr)
	if err != nil {
		logger.Fatal("Failed to open migration connection", zap.String("error", logging.SanitizeError(err)))
	}
	if err := database.RunMigrations(migrationDB, cfg.Database.MigrationsPath, logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.String("error", logging.SanitizeError(err)))
	}
	_ = migrationDB.Close()

	db, err := database.NewConnection(ctx, &database.Config{
		URL:            connStr,
		MaxConnections: cfg.Database.MaxConnections,
	})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.String("error", logging.SanitizeError(err)))
	}
	defer db.Close()

	redisClient, err := database.NewRedisClient(&cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.String("error", logging.SanitizeError(err)))
	}

	// Repositories
	delegationRepo := repositories.NewDelegationRepository(db)
	auditRepo := repositories.NewAuditRepository(db)
	usageRepo := repositories.NewUsageRepository(db)

	// Services
	delegationService := services.NewDelegationService(db, delegationRepo, auditRepo, usageRepo, logger)
	evaluationService := services.NewEvaluationService(db, delegationRepo, auditRepo, usageRepo, logger)
	lifecycleService := services.NewLifecycleService(db, delegationRepo, auditRepo, logger)
	auditService := services.NewAuditService(db, delegationRepo, auditRepo, logger)
	statsService := services.NewStatsService(
		delegationRepo, usageRepo, auditRepo, redisClient,
		time.Duration(cfg.Engine.StatsCacheTTLSeconds)*time.Second,
		time.Duration(cfg.Engine.ExpiringSoonDays)*24*time.Hour,
		logger)

	// Auth
	jwksClient, err := auth.NewJWKSClient(&auth.JWKSConfig{
		EnableVerification: cfg.Auth.EnableVerification,
		JWKSEndpoints:      cfg.Auth.JWKSEndpoints,
	})
	if err != nil {
		logger.Fatal("Failed to create JWKS client", zap.Error(err))
	}
	authService := auth.NewAuthService(jwksClient, logger)
	authMiddleware := auth.NewMiddleware(authService, logger)

	mux := http.NewServeMux()

	handlers.NewHealthHandler(cfg, logger).RegisterRoutes(mux)
	handlers.NewDelegationHandler(delegationService, logger).RegisterRoutes(mux, authMiddleware.RequireAuth)
	handlers.NewEvaluationHandler(evaluationService, logger).RegisterRoutes(mux, authMiddleware.RequireAuth)
	handlers.NewLifecycleHandler(lifecycleService, logger).RegisterRoutes(mux, authMiddleware.RequireAuth)
	handlers.NewAuditHandler(auditService, logger).RegisterRoutes(mux, authMiddleware.RequireAuth)
	handlers.NewStatsHandler(statsService, logger).RegisterRoutes(mux, authMiddleware.RequireAuth)

	// MCP server: read-only delegation tooling over streamable HTTP.
	mcpServer := mcp.NewServer("delegation-engine", cfg.Version, logger)
	tools.RegisterDelegationTools(mcpServer.MCP(), &tools.DelegationToolDeps{
		DelegationService: delegationService,
		EvaluationService: evaluationService,
		Logger:            logger,
	})
	tools.RegisterAuditTools(mcpServer.MCP(), &tools.AuditToolDeps{
		AuditService: auditService,
		Logger:       logger,
	})
	tools.RegisterStatsTools(mcpServer.MCP(), &tools.StatsToolDeps{
		StatsService: statsService,
		Logger:       logger,
	})
	tools.RegisterHealthTool(mcpServer.MCP(), cfg.Version)

	mcpMiddleware := mcpauth.NewMiddleware(authService, logger)
	mcpHandler := mcpMiddleware.RequireAuth(
		middleware.MCPRequestLogger(logger)(mcpServer.NewStreamableHTTPServer()))
	mux.Handle("/mcp", mcpHandler)

	handler := middleware.RequestLogger(logger)(mux)

	addr := cfg.BindAddr + ":" + cfg.Port
	logger.Info("Starting delegation-engine", zap.String("addr", addr), zap.String("version", cfg.Version))
	if err := http.ListenAndServe(addr, handler); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "local" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
