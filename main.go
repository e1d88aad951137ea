package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stock_price_updater/config"
	"stock_price_updater/controllers"
	"stock_price_updater/market"
	"stock_price_updater/models"
	"stock_price_updater/routes"
	"stock_price_updater/scheduler"
	"stock_price_updater/services"

	"github.com/gin-gonic/gin"
)

func main() {
	log.Println("==============================================")
	log.Println("  Stock Price Updater - Starting...")
	log.Println("==============================================")

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	calendar, err := market.NewCalendar()
	if err != nil {
		log.Fatalf("Calendar initialization failed: %v", err)
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Collaborators and the refresh pipeline.
	directory := services.NewStockAPIService(cfg.APIBaseURL, cfg.HTTPTimeout)
	quotes := services.NewFinMindService(cfg.FinMindAPIURL, cfg.FinMindToken, cfg.HTTPTimeout)
	feed := services.NewRealtimeFeedService()
	refresh := services.NewRefreshService(directory, quotes, calendar, cfg.FetchConcurrency)
	refresh.SetPublisher(feed)

	// Root context cancelled on shutdown so an in-flight cycle can abort.
	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The US session window is resolved once here; a process that straddles
	// a DST transition needs a restart to pick up the shifted window.
	jobScheduler := scheduler.NewRefreshScheduler(calendar.Location())
	runScheduled := func() { refresh.RunCycle(rootCtx, false) }
	if err := jobScheduler.ScheduleTaiwanJobs(runScheduled); err != nil {
		log.Fatalf("Scheduler setup failed: %v", err)
	}
	usWindow := calendar.CurrentSessionWindow(models.MarketUS, calendar.Now())
	if err := jobScheduler.ScheduleUSJobs(runScheduled, usWindow); err != nil {
		log.Fatalf("Scheduler setup failed: %v", err)
	}
	jobScheduler.Start()

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(requestLogger())

	rc := controllers.NewRefreshController(refresh, calendar, feed)
	routes.SetupRoutes(router, rc, cfg.JWTSecret)

	server := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Server listening on 0.0.0.0:%s", cfg.Port)
		log.Println("==============================================")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	gracefulShutdown(server, jobScheduler, feed, cancel)
}

// gracefulShutdown blocks until a termination signal, then stops the
// scheduler, cancels any in-flight cycle and drains the HTTP server.
func gracefulShutdown(server *http.Server, jobScheduler *scheduler.RefreshScheduler, feed *services.RealtimeFeedService, cancel context.CancelFunc) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	log.Printf("Received signal %v, shutting down gracefully...", sig)

	cancel()
	jobScheduler.Shutdown()
	feed.Shutdown()

	ctx, release := context.WithTimeout(context.Background(), 10*time.Second)
	defer release()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server shutdown completed")
}

// corsMiddleware returns a CORS middleware handler.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Requested-With")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// requestLogger returns a request logging middleware.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Skip logging for health checks to reduce noise.
		path := c.Request.URL.Path
		if path == "/" || path == "/health" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		duration := time.Since(start)

		log.Printf("%s %s %d %v", c.Request.Method, path, c.Writer.Status(), duration)
	}
}
