package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nzaccagnino/go-notepad/internal/config"
	"github.com/nzaccagnino/go-notepad/internal/db"
	"github.com/nzaccagnino/go-notepad/internal/logging"
	"github.com/nzaccagnino/go-notepad/internal/server"
	"golang.org/x/sync/errgroup"
)

func main() {
	configFile := flag.String("config", "", "path to a notes-server config file")
	createKey := flag.String("create-key", "", "create an API key with this label, print it and exit")
	flag.Parse()

	cfg, err := config.LoadServer(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger := logging.New(cfg.LogLevel)

	database, err := db.NewServerDB(cfg.Driver, cfg.DSN)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.Close()

	if *createKey != "" {
		key, err := database.CreateAPIKey(context.Background(), *createKey)
		if err != nil {
			log.Fatalf("Failed to create API key: %v", err)
		}
		fmt.Println(key)
		fmt.Fprintln(os.Stderr, "Store this key now; it cannot be shown again.")
		return
	}

	srv := server.New(database, server.Options{
		RateLimit:      cfg.RateLimit,
		RequestTimeout: cfg.RequestLimit,
		Logger:         logger,
	})
	defer srv.Close()

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Infof("Starting server on %s", httpServer.Addr)
	logger.Infof("Database: %s (%s)", cfg.Driver, redactDSN(cfg.Driver, cfg.DSN))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
	logger.Infof("Server stopped")
}

// Postgres DSNs carry credentials.
func redactDSN(driver, dsn string) string {
	if driver == "postgres" {
		return "postgres://***"
	}
	return dsn
}
