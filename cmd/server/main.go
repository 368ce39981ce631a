// File: cmd/server/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gorilla/mux"
	"gorm.io/gorm"

	"github.com/weichi/go-chatroom/internal/config"
	"github.com/weichi/go-chatroom/internal/domain"
	"github.com/weichi/go-chatroom/internal/handlers"
	"github.com/weichi/go-chatroom/internal/middleware"
	"github.com/weichi/go-chatroom/internal/ratelimit"
	messagerepo "github.com/weichi/go-chatroom/internal/repository/message"
	userrepo "github.com/weichi/go-chatroom/internal/repository/user"
	"github.com/weichi/go-chatroom/internal/services"
	"github.com/weichi/go-chatroom/internal/services/chat"
	"github.com/weichi/go-chatroom/internal/services/user_services"
)

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func main() {
	cfg := config.Load()
	logger := services.NewLogger("go-chatroom")

	db, err := gorm.Open(sqlite.Open(cfg.DatabasePath), &gorm.Config{})
	if err != nil {
		log.Fatalf("DB Error: %v", err)
	}

	if err := db.AutoMigrate(&domain.User{}, &domain.ChatMessage{}); err != nil {
		log.Fatalf("DB Migration Error: %v", err)
	}

	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		log.Fatalf("Upload directory error: %v", err)
	}

	// --- Repositories ---
	userRepo := userrepo.NewGormUserRepository(db)
	messageRepo := messagerepo.NewMessageRepository(db)

	// --- Services ---
	authService := user_services.NewAuthService(userRepo, cfg.JWTSecretKey, logger)

	roomCfg := chat.Config{
		HistoryLimit:    cfg.HistoryLimit,
		MaxMessageChars: cfg.MaxMessageChars,
		QueueSize:       cfg.WriteQueueSize,
		SendBuffer:      chat.DefaultConfig().SendBuffer,
	}
	registry := chat.NewSessionRegistry()
	router := chat.NewRouter(registry)
	writer := chat.NewQueuedWriter(messageRepo, roomCfg.QueueSize, logger)
	roomService, err := chat.NewRoomService(registry, router, writer, messageRepo, roomCfg, logger)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize room service: %v", err)
	}

	writerCtx, stopWriter := context.WithCancel(context.Background())
	go writer.Run(writerCtx)

	// --- Handlers ---
	authHandler := handlers.NewAuthHandler(authService)
	uploadHandler := handlers.NewUploadHandler(cfg.UploadDir, cfg.UploadMaxBytes)
	messageHandler := handlers.NewMessageHandler(roomService)
	wsHandler := handlers.NewWSHandler(authService, roomService, roomCfg.SendBuffer)

	// --- Router Setup ---
	r := mux.NewRouter()
	authMiddleware := middleware.NewJWTMiddleware(authService)
	authLimiter := ratelimit.NewMemoryRateLimiter(ratelimit.DefaultAuthConfig())
	defer authLimiter.Close()
	rateLimited := middleware.RateLimitMiddleware(authLimiter, "auth")

	r.Use(corsMiddleware)
	r.Use(middleware.RecoverPanic)
	r.Use(middleware.LoggingMiddleware)

	// --- Public Routes ---
	staticRoot := http.Dir("static")
	r.PathPrefix("/static/").Handler(http.StripPrefix("/static/", http.FileServer(staticRoot)))
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}).Methods("GET")
	r.Handle("/register", rateLimited(http.HandlerFunc(authHandler.Register))).Methods("POST", "OPTIONS")
	r.Handle("/token", rateLimited(http.HandlerFunc(authHandler.Login))).Methods("POST", "OPTIONS")
	r.HandleFunc("/upload", uploadHandler.Upload).Methods("POST", "OPTIONS")
	r.HandleFunc("/ws", wsHandler.Serve).Methods("GET")

	// --- Protected Routes ---
	protected := r.PathPrefix("/").Subrouter()
	protected.Use(authMiddleware)
	protected.HandleFunc("/change-password", authHandler.ChangePassword).Methods("POST")
	protected.HandleFunc("/api/messages/{id:[0-9]+}", messageHandler.Delete).Methods("DELETE")

	// --- Server Configuration ---
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Printf("Chat server starting on port %s", cfg.ServerPort)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server startup failed: %v", err)
		}
	}()

	// --- Graceful Shutdown ---
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Println("Shutting down server gracefully...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown failed: %v", err)
	}

	// Stop the writer loop and wait for it to drain queued messages.
	stopWriter()
	select {
	case <-writer.Done():
	case <-ctx.Done():
		log.Println("Writer drain timed out")
	}

	log.Println("Server stopped gracefully")
}
