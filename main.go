// main.go - Entry point and dependency injection
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"toursync/internal/database"
	"toursync/internal/importer"
	"toursync/internal/inbox"
	"toursync/internal/web"
)

type App struct {
	store    *database.SQLiteStore
	scanner  *inbox.Scanner
	cron     *cron.Cron
	server   *http.Server
	shutdown chan os.Signal
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	app := &App{
		shutdown: make(chan os.Signal, 1),
	}

	if err := app.init(); err != nil {
		log.Fatal("Failed to initialize app:", err)
	}

	app.start()

	signal.Notify(app.shutdown, os.Interrupt, syscall.SIGTERM)
	<-app.shutdown

	app.stop()
}

func (app *App) init() error {
	dataDir := envOr("DATA_DIR", "./data")
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	dbPath := envOr("DB_PATH", filepath.Join(dataDir, "tours.db"))
	store, err := database.NewSQLiteStore(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	app.store = store

	inboxDir := envOr("INBOX_DIR", filepath.Join(dataDir, "inbox"))
	if err := os.MkdirAll(inboxDir, 0755); err != nil {
		return fmt.Errorf("create inbox directory: %w", err)
	}
	app.scanner = inbox.NewScanner(importer.New(store), inboxDir)

	app.cron = cron.New()

	router := gin.Default()
	web.NewHandler(store, app.scanner).RegisterRoutes(router)

	app.server = &http.Server{
		Addr:    envOr("ADDR", ":8888"),
		Handler: router,
	}

	return nil
}

func (app *App) start() {
	spec := envOr("SCAN_CRON", "@hourly")
	if _, err := app.cron.AddFunc(spec, func() {
		log.Println("Starting scheduled inbox scan...")
		if _, err := app.scanner.Scan(context.Background()); err != nil {
			log.Printf("Scan failed: %v", err)
		}
	}); err != nil {
		log.Printf("Invalid SCAN_CRON %q: %v", spec, err)
	}
	app.cron.Start()

	// an import run at startup so a prefilled inbox is picked up
	// without waiting for the first cron tick
	go func() {
		if _, err := app.scanner.Scan(context.Background()); err != nil {
			log.Printf("Initial scan failed: %v", err)
		}
	}()

	go func() {
		log.Printf("Server starting on http://localhost%s", app.server.Addr)
		if err := app.server.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("Server error: %v", err)
		}
	}()
}

func (app *App) stop() {
	log.Println("Shutting down...")

	app.cron.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	if app.store != nil {
		app.store.Close()
	}

	log.Println("Shutdown complete")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
