package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	_ "github.com/mattn/go-sqlite3"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"

	"github.com/tasklist/tasklist/database"
	"github.com/tasklist/tasklist/handlers"
	"github.com/tasklist/tasklist/services"
)

func main() {
	if err := LoadEnv(".env"); err != nil {
		log.Fatalf("Failed to load .env file: %v", err)
	}
	cfg := LoadConfig()

	// Initialize database
	db, err := database.InitDB(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	store := database.NewTaskStore(db)
	if cfg.SeedSampleData {
		if err := database.SeedSampleData(context.Background(), store); err != nil {
			log.Printf("Warning: failed to seed sample data: %v", err)
		}
	}

	// Initialize the task-events hub
	hub := services.NewHub()
	go hub.Run()

	// Initialize handlers
	taskHandler := handlers.NewTaskHandler(store, hub)
	eventsHandler := handlers.NewEventsHandler(hub)

	// Setup router
	r := mux.NewRouter()
	r.Use(handlers.RequestLogger)

	api := r.PathPrefix("/api").Subrouter()
	if cfg.RedisAddr != "" {
		limiter := handlers.NewRateLimiter(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}))
		api.Use(limiter.Middleware)
	}

	api.HandleFunc("/health", handlers.Health).Methods("GET")
	api.HandleFunc("/ws", eventsHandler.HandleWebSocket)
	taskHandler.Register(api)

	// Static file server for the frontend build, when present
	if info, err := os.Stat(cfg.StaticDir); err == nil && info.IsDir() {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(cfg.StaticDir)))
	}

	// Setup CORS
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"}, // In production, change to your domain
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	})

	// Start server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      c.Handler(r),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Printf("Server starting on port %s", cfg.Port)
	log.Fatal(server.ListenAndServe())
}
