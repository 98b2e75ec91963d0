package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/payper/backend/docs"
	"github.com/payper/backend/internal/config"
	"github.com/payper/backend/internal/database"
	"github.com/payper/backend/internal/handlers"
	mW "github.com/payper/backend/internal/middleware"
	"github.com/payper/backend/internal/payments"
	"github.com/payper/backend/internal/services"
	"github.com/spf13/viper"
	httpSwagger "github.com/swaggo/http-swagger"
)

// @title Payper Payments API
// @version 1.0
// @description Backend for the Payper consumer payments app
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https

func main() {
	// Initialize config
	viper.SetConfigFile(".env") // explicitly point to .env file
	viper.AutomaticEnv()        // allow environment variables to override .env
	viper.ReadInConfig()        // read .env file

	viper.SetEnvPrefix("")

	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")
	viper.BindEnv("jwt.expiry_hours", "JWT_EXPIRY_HOURS")

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Config file not found, using defaults: %v", err)
	}

	// Initialize Swagger docs
	docs.SwaggerInfo.Title = "Payper Payments API"
	docs.SwaggerInfo.Description = "Backend for the Payper consumer payments app"
	docs.SwaggerInfo.Version = "1.0"
	docs.SwaggerInfo.Host = "localhost:8080"
	docs.SwaggerInfo.BasePath = "/api/v1"
	docs.SwaggerInfo.Schemes = []string{"http", "https"}

	// Initialize stores
	db := database.InitDatabase()
	defer db.Close()

	redisClient := database.InitRedis()
	if redisClient != nil {
		defer redisClient.Close()
	}

	// Payments core: ledger, gateway and confirmation clients, the
	// recovery policy and the orchestration controller.
	paymentsCfg := config.LoadPaymentsConfig()
	ledger := payments.NewSQLLedger(db)
	gateway := payments.NewHTTPIntentGateway(paymentsCfg.IntentGatewayURL, paymentsCfg.APIKey, paymentsCfg.GatewayTimeout)
	confirmer := payments.NewHTTPCardConfirmer(paymentsCfg.ProcessorURL, paymentsCfg.APIKey)
	recovery := payments.NewRecoveryPolicy(redisClient, paymentsCfg.MaxAttempts)
	reconciler := payments.NewRedisReconciler(redisClient)
	controller := payments.NewController(ledger, gateway, confirmer, recovery, reconciler)

	// HTTP services
	paymentService := services.NewPaymentService(db, controller)
	transactionService := services.NewTransactionService(db, ledger)
	ocrService := services.NewOCRService(config.LoadOCRConfig())
	receiptService := services.NewReceiptService(db, ocrService)
	paylinkService := services.NewPaylinkService(redisClient, config.LoadPaylinkConfig())
	paylinkHandler := handlers.NewPaylinkHandler(paylinkService)

	// Initialize auth middleware with Redis
	mW.InitAuthMiddleware(redisClient)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(mW.SecurityHeaders)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Access-Control-Allow-Origin"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("http://localhost:8080/swagger/doc.json"),
	))

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(mW.AuthMiddleware)

			// Card confirmation may wait on cardholder step-up, so
			// payment routes carry no server-side timeout; everything
			// else gets the standard one.
			r.Post("/payments/merchant", paymentService.PayMerchant)
			r.Post("/payments/p2p", paymentService.SendMoney)

			r.Group(func(r chi.Router) {
				r.Use(middleware.Timeout(60 * time.Second))

				r.Get("/transactions", transactionService.ListTransactions)
				r.Get("/transactions/{txId}", transactionService.GetTransaction)

				r.Get("/receipts", receiptService.ListReceipts)
				r.Post("/receipts", receiptService.CreateReceipt)
				r.Delete("/receipts/{receiptId}", receiptService.DeleteReceipt)
				r.Post("/receipts/scan", receiptService.ScanReceipt)

				r.Post("/paylinks/generate", paylinkHandler.GeneratePaylink)
				r.Post("/paylinks/resolve", paylinkHandler.ResolvePaylink)
			})
		})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Start server. No WriteTimeout: confirmation responses may be
	// held open while the cardholder completes step-up auth.
	server := &http.Server{
		Addr:        ":" + port,
		Handler:     r,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Printf("Server starting on :%s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server stopped")
}
