package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"taskcart-api/api"
	"taskcart-api/catalog"
	"taskcart-api/storage"
	"taskcart-api/store"
)

const (
	defaultProductsURL = "https://dummyjson.com/products?limit=120"
	defaultStaleTime   = 5 * time.Minute
	defaultDeduperTTL  = 24 * time.Hour
)

func main() {
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}

	redisConn := os.Getenv("REDIS_CONNECTION_STRING")
	if redisConn == "" {
		log.Fatal("missing redis config")
	}
	rc := redis.NewClient(parseRedisOptions(redisConn))

	logger := log.New()
	stor := storage.New(rc, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	board, err := store.New(ctx, stor, logger)
	cancel()
	if err != nil {
		log.Fatalf("store: %v", err)
	}

	productsURL := os.Getenv("PRODUCTS_URL")
	if productsURL == "" {
		productsURL = defaultProductsURL
	}
	fallbackFile := os.Getenv("PRODUCTS_FALLBACK_FILE")
	staleTime := envDuration("CATALOG_STALE_TIME", defaultStaleTime)
	client := catalog.NewClient(&http.Client{Timeout: 30 * time.Second}, productsURL, fallbackFile, logger)
	cat := catalog.NewCache(client, staleTime)

	deduper := api.NewRedisDeduper(rc, envDuration("DEDUPER_TTL", defaultDeduperTTL))

	e := echo.New()
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, "Idempotency-Key"},
	}))
	e.Use(api.DecompressRequests())

	api.Register(e, board, cat, stor, deduper, logger)

	listenAddr := ":8080"
	if val, ok := os.LookupEnv("PORT"); ok {
		listenAddr = ":" + val
	}

	e.Logger.Fatal(e.Start(listenAddr))
}

// parseRedisOptions accepts a redis URL, falling back to the
// "host:port,password=...,ssl=true" connection string form.
func parseRedisOptions(conn string) *redis.Options {
	opts, err := redis.ParseURL(conn)
	if err == nil {
		return opts
	}
	parts := strings.Split(conn, ",")
	opts = &redis.Options{Addr: parts[0]}
	for _, p := range parts[1:] {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToLower(kv[0]) {
		case "password":
			opts.Password = kv[1]
		case "ssl":
			if strings.ToLower(kv[1]) == "true" {
				opts.TLSConfig = &tls.Config{}
			}
		}
	}
	return opts
}

func envDuration(name string, fallback time.Duration) time.Duration {
	v := os.Getenv(name)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Fatalf("invalid %s: %v", name, err)
	}
	return d
}
