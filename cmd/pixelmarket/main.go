package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ManuelReschke/PixelMarket/app/controllers"
	"github.com/ManuelReschke/PixelMarket/internal/pkg/archive"
	"github.com/ManuelReschke/PixelMarket/internal/pkg/billing"
	prommetrics "github.com/ManuelReschke/PixelMarket/internal/pkg/billing/metrics/prometheus"
	"github.com/ManuelReschke/PixelMarket/internal/pkg/cache"
	"github.com/ManuelReschke/PixelMarket/internal/pkg/database"
	"github.com/ManuelReschke/PixelMarket/internal/pkg/env"
	"github.com/ManuelReschke/PixelMarket/internal/pkg/jobqueue"
	"github.com/ManuelReschke/PixelMarket/internal/pkg/router"
)

const (
	metricsNamespace = "pixelmarket"
	shutdownTimeout  = 15 * time.Second
)

func main() {
	app, manager := NewApplication()

	go func() {
		if err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000"))); err != nil {
			log.Fatal(err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	// Stop taking deliveries first, then let the workers drain
	log.Println("Shutting down...")
	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		log.Printf("HTTP shutdown: %v", err)
	}
	manager.Stop()
}

func NewApplication() (*fiber.App, *jobqueue.Manager) {
	env.SetupEnvFile()
	database.SetupDatabase()

	cfg, err := billing.LoadConfig()
	if err != nil {
		log.Fatalf("Invalid webhook configuration: %v", err)
	}

	var limiterStorage fiber.Storage
	if cfg.Queue == billing.QueueRedis {
		cache.SetupCache()
		limiterStorage = cache.NewFiberStorage(cache.LimiterDatabase)
	}

	opts := []billing.Option{billing.WithMetrics(prommetrics.DefaultMetrics(metricsNamespace))}
	if archiver := setupArchive(); archiver != nil {
		opts = append(opts, billing.WithArchiver(archiver))
	}
	svc := billing.NewServiceFromDB(database.GetDB(), cfg, opts...)

	manager := jobqueue.InitManager(svc, nil)
	manager.Start()

	// init fiber app
	appConfig := fiber.Config{
		BodyLimit: 4 * 1024 * 1024, // provider payloads are small JSON documents
	}
	controllers.ApplyProxySettings(&appConfig,
		env.GetEnv("PROXY_HEADER", fiber.HeaderXForwardedFor),
		strings.Split(env.GetEnv("TRUSTED_PROXIES", ""), ","),
	)
	app := fiber.New(appConfig)

	// recovery and logging
	app.Use(recover.New(), logger.New())

	adminUser := env.GetEnv("ADMIN_USER", "")
	adminPassword := env.GetEnv("ADMIN_PASSWORD", "")
	if adminUser != "" && adminPassword != "" {
		adminAuth := basicauth.New(basicauth.Config{
			Users: map[string]string{
				adminUser: adminPassword,
			},
		})
		// prometheus metrics and fiber monitor
		app.Get("/metrics", adminAuth, adaptor.HTTPHandler(promhttp.Handler()))
		app.Get("/monitor", adminAuth, monitor.New())
	}

	// SWAGGER / OPENAPI
	if basePath := findBasePath(); basePath != "" {
		app.Use(swagger.New(swagger.Config{
			BasePath: "/docs/api/",
			FilePath: basePath + "public/docs/v1/openapi.yml",
			Path:     "v1",
		}))
	} else {
		log.Println("OpenAPI document not found, /docs/api/v1 is disabled")
	}

	// ROUTER
	router.InstallRouter(app, router.Config{
		Controller:     controllers.NewWebhookController(svc, manager.Dispatcher(), manager.Inspector()),
		AdminUser:      adminUser,
		AdminPassword:  adminPassword,
		LimiterStorage: limiterStorage,
	})

	return app, manager
}

// setupArchive returns the payload archive, or nil when it is disabled or unreachable
func setupArchive() billing.PayloadArchiver {
	cfg, err := archive.LoadConfig()
	if err != nil {
		log.Fatalf("Invalid archive configuration: %v", err)
	}
	if !cfg.IsEnabled() {
		return nil
	}
	client, err := archive.NewClient(cfg)
	if err != nil {
		log.Printf("Warning: payload archive disabled: %v", err)
		return nil
	}
	return client
}

func findBasePath() string {
	// Define possible base paths
	basePaths := []string{
		"./",        // Current directory
		"../../",    // From cmd/pixelmarket to project root
		"../../../", // Fallback
	}
	for _, path := range basePaths {
		if _, err := os.Stat(path + "public/docs/v1/openapi.yml"); err == nil {
			return path
		}
	}
	return ""
}
