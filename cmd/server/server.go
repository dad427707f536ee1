package main

import (
	"fmt"
	"log"
	"net/http"

	"readgate/config"
	"readgate/db"
	"readgate/handlers"
	"readgate/services/gate"
	"readgate/services/quiz"
	"readgate/services/trust"

	"github.com/gorilla/mux"
)

func main() {
	cfg := config.Load()

	// Missing configuration is a hard failure at service start, never a
	// deferred request-time surprise.
	if cfg.DatabaseURL == "" {
		log.Fatal("DB_URL environment variable is required")
	}

	if cfg.RedisAddr == "" {
		log.Fatal("REDIS_ADDR environment variable is required")
	}

	if cfg.OpenAIAPIKey == "" {
		log.Fatal("OPENAI_API_KEY environment variable is required")
	}

	if cfg.AnthropicAPIKey == "" {
		log.Fatal("ANTHROPIC_API_KEY environment variable is required")
	}

	quizRecordRepo, err := db.NewPostgresQuizRecordRepository(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize quiz record database: %v", err)
	}
	defer quizRecordRepo.Close()

	attemptRepo, err := db.NewPostgresAttemptRepository(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize attempt database: %v", err)
	}
	defer attemptRepo.Close()

	trustCache, err := db.NewRedisTrustScoreCache(cfg.RedisAddr)
	if err != nil {
		log.Fatalf("Failed to initialize trust score cache: %v", err)
	}
	defer trustCache.Close()

	quizOracle, err := quiz.NewLLMOracle(cfg.OpenAIAPIKey)
	if err != nil {
		log.Fatalf("Failed to initialize quiz oracle: %v", err)
	}

	quizService := quiz.NewService(quizRecordRepo, attemptRepo, quizOracle, cfg.QuizTTL, gate.DefaultRetryCap)
	quizHandler := handlers.NewQuizHandler(quizService)

	trustOracle := trust.NewAnthropicOracle(cfg.AnthropicAPIKey)
	trustService := trust.NewService(trustCache, trustOracle, cfg.TrustTTL)
	trustHandler := handlers.NewTrustHandler(trustService)

	router := mux.NewRouter()

	router.Use(corsMiddleware)
	router.Use(jsonMiddleware)

	router.PathPrefix("/").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods("OPTIONS")

	quizHandler.RegisterRoutes(router)
	trustHandler.RegisterRoutes(router)

	router.HandleFunc("/health", healthCheckHandler).Methods("GET")

	addr := ":" + cfg.Port
	fmt.Printf("Server starting on port %s\n", cfg.Port)

	if err := http.ListenAndServe(addr, router); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS, PATCH")
		w.Header().Set("Access-Control-Allow-Headers", "*")
		w.Header().Set("Access-Control-Expose-Headers", "*")
		w.Header().Set("Access-Control-Allow-Credentials", "true")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status": "healthy"}`))
}
