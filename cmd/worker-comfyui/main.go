package main

import (
	"context"
	"flag"
	"net/http"
	"time"

	"github.com/comfyimg/worker-comfyui/internal/api"
	"github.com/comfyimg/worker-comfyui/internal/cmd"
	"github.com/comfyimg/worker-comfyui/internal/config"
	"github.com/comfyimg/worker-comfyui/internal/engine/comfy"
	"github.com/comfyimg/worker-comfyui/internal/health"
	"github.com/comfyimg/worker-comfyui/internal/input"
	"github.com/comfyimg/worker-comfyui/internal/logger"
	"github.com/comfyimg/worker-comfyui/internal/metrics"
	"github.com/comfyimg/worker-comfyui/internal/output"
	"github.com/comfyimg/worker-comfyui/internal/storage"
	"github.com/comfyimg/worker-comfyui/internal/storage/s3"
	"github.com/comfyimg/worker-comfyui/internal/tracing"
	"github.com/comfyimg/worker-comfyui/internal/worker"

	"github.com/jamiealquiza/envy"
	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/zap"
)

// Comandline flags
var (
	// Global
	listen        = flag.String("listen", ":8000", "listen address")
	metricsListen = flag.String("metrics-listen", ":8001", "metrics listen address")
	loglevel      = zap.LevelFlag("log-level", zap.InfoLevel, "log level (default \"info\") (debug, info, warn, error, dpanic, panic, fatal)")

	// Input
	fetchTimeout = flag.Duration("fetch-timeout", input.DefaultFetchTimeout, "timeout for fetching remote job input")

	// Engine
	comfyAddress = flag.String("comfy-address", comfy.DefaultAddress, "address of the comfyui instance")
	comfyTimeout = flag.Duration("comfy-timeout", time.Minute, "timeout for individual comfyui api calls")
)

func main() {
	// Parse environment variables
	envy.Parse("WORKER")

	// Parse commandline flags
	flag.Parse()

	// Initialize the logger
	log := logger.New(*loglevel)
	defer log.Sync()

	// Set GOMAXPROCS
	maxprocs.Set(maxprocs.Logger(log.Infof))

	// Set up context for shutting down
	shutdownCtx, shutdown := context.WithCancel(context.Background())
	defer shutdown()

	// Initialize tracing
	tracer, err := tracing.New(context.Background(), log, "worker-comfyui")
	if err != nil {
		log.Fatalf("error initializing tracing: %s", err)
	}

	// Read the storage configuration once, missing endpoint or credentials
	// disables uploads entirely and the worker responds with inline base64
	storageConfig := config.StorageFromEnv()

	var uploader storage.Uploader
	if storageConfig.Enabled() {
		uploader, err = s3.New(storageConfig)
		if err != nil {
			log.Fatalf("error initializing object storage: %s", err)
		}

		log.Infof("object storage enabled, bucket %s", storageConfig.Bucket)
	} else {
		log.Infof("object storage disabled, outputs will be returned inline")
	}

	// Initialize the inference engine client
	engine := comfy.New(*comfyAddress, *comfyTimeout)

	// Initialize and start the health checker
	checkerCtx, checkerCancel := context.WithCancel(context.Background())
	defer checkerCancel()

	checker := &health.Checker{
		Ctx:     checkerCtx,
		Storage: uploader,
		Engine:  engine,
		Log:     log,
	}
	go checker.Run()

	// Start the metrics http server
	go metrics.Serve(checkerCtx, log, checker, *metricsListen)

	// Start and listen on http
	api := &api.API{
		Worker: &worker.Worker{
			Resolver:  input.New(*fetchTimeout),
			Engine:    engine,
			Publisher: output.New(uploader),
			Log:       log,
			Tracer:    tracer,
		},
		HealthChecker:  checker,
		Log:            log,
		Tracer:         tracer,
		HandlerTimeout: cmd.HandlerTimeout,
	}
	server := &http.Server{
		Addr:         *listen,
		Handler:      api.Router(),
		ReadTimeout:  cmd.ReadTimeout,
		WriteTimeout: cmd.WriteTimeout,
		ErrorLog:     logger.NewHTTPErrorLog(log),
	}

	go func() {
		if err := server.ListenAndServe(); err != nil {
			log.Infof("shutting down the http server: %s", err)
			shutdown()
		}
	}()

	log.Infof("http server listening on %s", *listen)

	// Wait for shutdown or error
	err = cmd.WaitForInterrupt(shutdownCtx)
	log.Infof("shutting down: %s", err)

	// Shut down http server
	serverCtx, serverCancel := context.WithTimeout(context.Background(), cmd.WriteTimeout)
	defer serverCancel()
	if err := server.Shutdown(serverCtx); err != nil {
		log.Warnf("error shutting down: %s", err)
	}

	tracer.Shutdown(serverCtx)
}
