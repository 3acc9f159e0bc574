package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Dan9191/institute-service/internal/config"
	"github.com/Dan9191/institute-service/internal/handler"
	"github.com/Dan9191/institute-service/internal/integrations/docrender"
	"github.com/Dan9191/institute-service/internal/middleware"
	"github.com/Dan9191/institute-service/internal/repository"
	"github.com/Dan9191/institute-service/internal/scheduler"
	"github.com/Dan9191/institute-service/internal/service"
	"github.com/Dan9191/institute-service/internal/utils/email"
	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	logLevel, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Initialize storage
	var store repository.Store
	switch cfg.Storage {
	case "memory":
		logger.Warn("Using in-memory storage; data is lost on restart")
		store = repository.NewMemoryRepository()
	default:
		db, err := sql.Open("postgres", cfg.DBConn)
		if err != nil {
			logger.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()
		if err := db.Ping(); err != nil {
			logger.Fatalf("Failed to ping database: %v", err)
		}
		repo := repository.NewRepository(db)
		if err := repo.EnsureSchema(context.Background()); err != nil {
			logger.Fatalf("Failed to prepare schema: %v", err)
		}
		store = repo
	}

	// Initialize layers
	mailer, err := email.NewMailer(cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to create mailer: %v", err)
	}
	dispatcher := email.NewDispatcher(mailer, logger, cfg.NotifyRetries)
	svc := service.NewService(store, logger, dispatcher, cfg)
	renderer := docrender.NewClient(cfg, logger)
	h := handler.NewHandler(svc, renderer, logger)

	sched, err := scheduler.New(svc, cfg.SweepSchedule, cfg.SweepTimezone, logger)
	if err != nil {
		logger.Fatalf("Failed to create scheduler: %v", err)
	}
	sched.Start()

	// Setup router; every route is protected
	r := mux.NewRouter()
	api := r.PathPrefix("/").Subrouter()
	api.Use(middleware.AuthMiddleware(cfg))
	h.Register(api)

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	go func() {
		logger.Infof("Starting server on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("Server shutdown failed: %v", err)
	}
	select {
	case <-sched.Stop().Done():
	case <-ctx.Done():
		logger.Warn("Sweep still running at shutdown")
	}
	dispatcher.Wait()
}
