package main

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"

	_ "tertulia/docs"
	"tertulia/internal/ai"
	"tertulia/internal/auth"
	"tertulia/internal/config"
	"tertulia/internal/database"
	"tertulia/internal/group"
	"tertulia/internal/message"
	"tertulia/internal/notification"
	"tertulia/internal/profile"
	"tertulia/internal/realtime"
	mw "tertulia/pkg/middleware"
)

// @title           Tertulia API
// @version         1.0
// @description     Group chat backend with an AI participant.
// @BasePath        /api/v1
func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Load configuration
	cfg := config.Load()

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Initialize database connection
	db, err := database.NewPostgresConnection(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	logger.Info("connected to database")

	// Realtime hub
	hub := realtime.NewHub(logger)
	go hub.Run()

	// Profile feature
	profileRepo := profile.NewRepository(db)
	profileService := profile.NewService(profileRepo)
	profileHandler := profile.NewHandler(profileService)

	// Auth feature (dev token issuer is disabled in production)
	jwtService := auth.NewJWTService(cfg.JWTSecret)
	authHandler := auth.NewHandler(jwtService, profileService, !cfg.IsProduction())

	// Notification feature
	notificationRepo := notification.NewRepository(db)
	notificationService := notification.NewService(notificationRepo, logger)
	notificationHandler := notification.NewHandler(notificationService)

	// Group feature
	groupRepo := group.NewRepository(db)
	groupService := group.NewService(groupRepo, notificationService, hub)
	groupHandler := group.NewHandler(groupService)

	// Message feature
	messageRepo := message.NewRepository(db)
	messageService := message.NewService(messageRepo, profileService, groupService, hub, ai.MentionsAI)
	messageHandler := message.NewHandler(messageService)

	// AI responder feature
	aiClient := ai.NewGatewayClient(ai.GatewayConfig{
		BaseURL: cfg.AIGatewayURL,
		APIKey:  cfg.AIGatewayKey,
		Model:   cfg.AIModel,
	}, logger)
	aiService := ai.NewService(groupService, messageService, aiClient, logger)
	aiHandler := ai.NewHandler(aiService)

	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Get("/swagger/*", httpSwagger.WrapHandler)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Mount("/auth", authHandler.Routes())

		r.Group(func(r chi.Router) {
			r.Use(mw.AuthMiddleware(cfg.JWTSecret))

			r.Get("/ws", realtime.ServeWS(hub))
			r.Mount("/profiles", profileHandler.Routes())
			r.Mount("/groups", groupHandler.Routes(messageHandler.Routes(), aiHandler.Routes()))
			r.Mount("/notifications", notificationHandler.Routes())
		})
	})

	// Start server
	port := cfg.Port
	if port == "" {
		port = "8080"
	}

	logger.Info("server starting", zap.String("port", port))
	if err := http.ListenAndServe(":"+port, r); err != nil {
		logger.Fatal("server failed to start", zap.Error(err))
	}
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsProduction() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
