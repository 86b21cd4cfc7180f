package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/oceanondawave/CigroTrack-sub001/api"
	"github.com/oceanondawave/CigroTrack-sub001/engine"
	"github.com/oceanondawave/CigroTrack-sub001/remote"
)

func main() {
	log.SetFormatter(&log.JSONFormatter{})
	debug := false
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		debug = true
		log.SetLevel(log.DebugLevel)
	}

	apiURL := os.Getenv("CIGRO_API_URL")
	if apiURL == "" {
		log.Fatal("missing core API config")
	}
	apiToken := os.Getenv("CIGRO_API_TOKEN")

	logger := log.New()
	logger.SetFormatter(&log.JSONFormatter{})
	if debug {
		logger.SetLevel(log.DebugLevel)
	}

	var backend engine.Backend = remote.NewClient(
		apiURL,
		apiToken,
		envDur("HTTP_TIMEOUT", 10*time.Second),
		envInt("HTTP_MAX_RETRIES", 3),
		logger,
	)

	if redisConn := os.Getenv("REDIS_CONNECTION_STRING"); redisConn != "" {
		rc := redis.NewClient(redisOptions(redisConn))
		backend = remote.NewCache(backend, rc, envDur("CACHE_TTL", 30*time.Second), logger)
	}

	mgr := engine.NewManager(backend, logger)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: allowedOrigins(os.Getenv("ALLOWED_ORIGINS")),
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		// Compressing an SSE stream defeats per-event flushing.
		Skipper: func(c echo.Context) bool {
			return strings.HasSuffix(c.Path(), "/stream")
		},
	}))
	e.Use(echoprometheus.NewMiddleware("cigrotrack"))
	e.GET("/metrics", echoprometheus.NewHandler())

	api.Register(e, mgr, logger)

	listenAddr := ":" + envString("PORT", "8080")
	go func() {
		if err := e.Start(listenAddr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		log.Fatalf("shutdown: %v", err)
	}
}
