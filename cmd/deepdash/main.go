package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/mlsec-tools/deepdash/internal/deepdash"
	"github.com/mlsec-tools/deepdash/internal/deepdash/apis"
	"github.com/mlsec-tools/deepdash/internal/notifications"
	"github.com/mlsec-tools/deepdash/internal/storage"
	"github.com/mlsec-tools/deepdash/internal/webserver"
)

func main() {
	ctx := context.Background()

	// Initialize Logrus
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	if level, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		logger.SetLevel(level)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}

	// Load the .env secrets file if present
	if err := godotenv.Load(); err != nil {
		logger.Info("No .env file found. Proceeding with environment variables.")
	}

	// Load dashboard-specific configuration
	dashCfg, err := deepdash.LoadConfig()
	if err != nil {
		logger.Fatalf("Failed to load dashboard configuration: %v", err)
	}

	// Load storage configuration
	storageCfg, err := storage.LoadConfig()
	if err != nil {
		logger.Fatalf("Failed to load storage configuration: %v", err)
	}

	// Initialize the store. Clients are built once from static credentials
	// and injected into the dashboard.
	var store storage.Store
	switch storageCfg.Backend {
	case "aws":
		store, err = storage.NewAWSStore(ctx, storageCfg, logger)
		if err != nil {
			logger.Fatalf("Failed to initialize AWS store: %v", err)
		}
		logger.WithFields(logrus.Fields{
			"bucket": storageCfg.Bucket,
			"table":  storageCfg.Table,
		}).Info("AWS store initialized successfully")
	case "local":
		store, err = storage.NewBoltStore(storageCfg)
		if err != nil {
			logger.Fatalf("Failed to initialize local store: %v", err)
		}
		logger.WithField("path", storageCfg.LocalPath).Info("Local store initialized successfully")
	default:
		logger.Fatalf("Unsupported storage backend: %s", storageCfg.Backend)
	}
	defer store.Close(ctx)

	// Initialize Notifier (optional)
	notificationCfg, err := notifications.LoadNotificationConfig()
	if err != nil {
		logger.Fatalf("Failed to load notification configuration: %v", err)
	}
	var notifier *notifications.Notifier
	if notificationCfg.Enabled() {
		notifier, err = notifications.NewNotifier(notificationCfg.ShoutrrrURLs)
		if err != nil {
			logger.Fatalf("Failed to initialize notifier: %v", err)
		}
		logger.Info("Notifier initialized successfully")
	} else {
		logger.Warn("No notification targets configured. Skipping notifications.")
	}

	// Initialize the detection client
	detector := apis.NewDeepCheckClient(dashCfg.DetectEndpoint)
	if dashCfg.RateLimit != nil {
		limiter := &apis.RateLimiter{
			Limiter: rate.NewLimiter(dashCfg.RateLimit.Rate, dashCfg.RateLimit.Burst),
			Burst:   dashCfg.RateLimit.Burst,
			Rate:    dashCfg.RateLimit.Rate,
		}
		logger.Infof("Setting rate limiter for %s: %v", detector.ProviderName(), limiter)
		detector.SetRateLimiter(limiter)
	}
	logger.WithField("endpoint", dashCfg.DetectEndpoint).Info("Detection client initialized")

	// Initialize the Dashboard
	dashboard := deepdash.NewDashboard(deepdash.DashboardConfig{
		Detector:       detector,
		Store:          store,
		Notifier:       notifier,
		Prefix:         storageCfg.Prefix,
		ExportFileName: dashCfg.ExportFileName,
	}, logger)

	webServerConfig, err := webserver.NewWebserverConfig()
	if err != nil {
		logger.Fatalf("Failed to load webserver configuration: %v", err)
	}

	// Initialize the Web Server
	webServer := webserver.NewWebServer(dashboard, webServerConfig, logger)

	ctxCancel, cancel := context.WithCancel(ctx)
	defer cancel()

	server, err := webserver.StartWebServer(ctxCancel, webServer)
	if err != nil {
		logger.Fatalf("Failed to start web server: %v", err)
	}

	// Listen for OS signals to handle graceful shutdown
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigs
	logger.Infof("Received signal: %s. Initiating shutdown...", sig)

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatalf("Failed to gracefully shutdown the server: %v", err)
	}

	logger.Info("Shutdown complete. Exiting.")
}
