package main

import (
	"codepair/internal/cache"
	"codepair/internal/config"
	"codepair/internal/repository"
	"codepair/internal/service"
	"codepair/internal/store"
	"codepair/internal/transport/rest"
	"codepair/internal/transport/ws"
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	retentionInterval = time.Hour
	retentionAge      = 24 * time.Hour
)

func main() {
	log.Println("started")
	ctx := context.Background()

	cfg := config.Load()

	// MongoDB connection
	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer mongoClient.Disconnect(ctx)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := mongoClient.Ping(pingCtx, nil); err != nil {
		log.Fatal("Failed to ping MongoDB:", err)
	}
	log.Println("Connected to MongoDB")

	db := mongoClient.Database(cfg.MongoDatabase)

	// Redis connection
	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
	})
	defer rdb.Close()

	if _, err := rdb.Ping(ctx).Result(); err != nil {
		log.Fatal("Failed to ping Redis:", err)
	}
	log.Println("Connected to Redis")

	// WebSocket hub
	wsHub := ws.NewHub()
	log.Println("WebSocket hub started")

	// Session store: mongo repository behind a redis read/write-through cache
	sessionRepo := repository.NewSessionRepo(db)
	sessionCache := cache.NewSessionCache(rdb)
	sessionStore := store.NewSessionStore(sessionRepo, sessionCache)

	// External collaborators
	userClient := service.NewHTTPUserClient(cfg.UserServiceURL)
	questionClient := service.NewHTTPQuestionClient(cfg.QuestionServiceURL)

	// Coordinator
	sessionSvc := service.NewSessionService(sessionStore, userClient, questionClient)

	// Inject broadcaster (wsHub implements service.Broadcaster)
	sessionSvc.SetBroadcaster(wsHub)

	// Retention sweep: out-of-band cleanup of finished sessions, never the
	// coordinator's job.
	go func() {
		ticker := time.NewTicker(retentionInterval)
		defer ticker.Stop()
		for range ticker.C {
			cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			removed, err := sessionStore.RemoveExpiredSessions(cleanupCtx, time.Now().Add(-retentionAge))
			cancel()
			if err != nil {
				log.Printf("Retention sweep failed: %v", err)
				continue
			}
			if removed > 0 {
				log.Printf("Retention sweep removed %d finished sessions", removed)
			}
		}
	}()

	container := &rest.Container{
		SessionService: sessionSvc,
		Verifier:       userClient,
		WSHub:          wsHub,
	}

	router := rest.NewRouter(container)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("Server starting on :%s", cfg.Port)
		log.Println("Endpoints:")
		log.Println("  POST /v1/sessions")
		log.Println("  GET  /v1/sessions/{id}")
		log.Println("  POST /v1/sessions/{id}/terminate")
		log.Println("  WS   /v1/ws/sessions/{id}")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("ListenAndServe:", err)
		}
	}()

	// Wait for interrupt
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
}
