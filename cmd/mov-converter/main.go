package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mov-converter/internal/converter"
	"mov-converter/internal/downloads"
	"mov-converter/internal/gateway"
	"mov-converter/internal/handlers"
	"mov-converter/internal/logging"
	"mov-converter/internal/memory"
	"mov-converter/internal/metrics"
	"mov-converter/internal/middleware"
	"mov-converter/internal/preview"
	"mov-converter/internal/startup"
	"mov-converter/internal/workspace"

	"github.com/gorilla/mux"
)

const (
	downloadSweepInterval = time.Minute
	shutdownTimeout       = 30 * time.Second

	// staleJobMargin is added to the convert timeout before a leftover job
	// directory counts as abandoned.
	staleJobMargin = 10 * time.Minute
	// unboundedStaleJobAge applies when conversions have no timeout.
	unboundedStaleJobAge = 24 * time.Hour
)

func main() {
	startTime := time.Now()

	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	memory.ConfigureFromEnv()

	metrics.InitializeMetrics()
	metrics.SetAppInfo(startup.Version, startup.Commit, startup.GoVersion)

	// Converter
	conv := converter.New(converter.Options{
		FFmpegPath:  config.FFmpegPath,
		FFprobePath: config.FFprobePath,
		Timeout:     config.ConvertTimeout,
	})
	checkCtx, cancelCheck := context.WithTimeout(context.Background(), 10*time.Second)
	version, engineErr := conv.CheckEngine(checkCtx)
	cancelCheck()
	startup.LogConverterInit(version, engineErr)

	// Workspace
	ws := workspace.NewManager(config.WorkDir)
	swept, sweepErr := ws.Sweep(staleJobAge(config.ConvertTimeout))
	startup.LogWorkspaceInit(ws.BaseDir(), swept, sweepErr)

	// Downloads
	store := downloads.NewStore(config.DownloadTTL)
	store.Start(downloadSweepInterval)
	startup.LogDownloadsInit(store.TTL(), downloadSweepInterval)

	gw := gateway.New(conv, ws,
		gateway.WithProber(conv),
		gateway.WithPreviewer(preview.New(config.FFmpegPath, config.PreviewEnabled)),
	)

	h := handlers.New(gw, store, conv, ws, config)

	router := setupRouter(h)
	startup.LogHTTPRoutes(router, config.LogHealthChecks)

	srv := &http.Server{
		Addr:              ":" + config.Port,
		Handler:           buildHandler(router, h, config),
		ReadHeaderTimeout: 15 * time.Second,
		// Uploads and conversions can legitimately take minutes.
		ReadTimeout:  0,
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	var metricsSrv *http.Server
	if config.MetricsEnabled {
		metricsSrv = startMetricsServer(config.MetricsPort, h.MetricsHandler())
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})

	if err := serve(srv, metricsSrv, conv, store, sigChan); err != nil {
		startup.LogFatal("Server error: %v", err)
	}
}

// serve runs srv until a signal arrives on stop, then shuts everything down.
// It returns only after shutdown has finished; ListenAndServe itself returns
// as soon as Shutdown starts.
func serve(srv, metricsSrv *http.Server, conv *converter.Converter, store *downloads.Store, stop <-chan os.Signal) error {
	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		sig := <-stop
		handleShutdown(sig.String(), srv, metricsSrv, conv, store)
	}()

	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-shutdownDone
	return nil
}

// staleJobAge is how old a job directory must be before the startup sweep
// treats it as abandoned rather than in flight in another instance.
func staleJobAge(convertTimeout time.Duration) time.Duration {
	if convertTimeout <= 0 {
		return unboundedStaleJobAge
	}
	return convertTimeout + staleJobMargin
}

func setupRouter(h *handlers.Handlers) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.Metrics(middleware.DefaultMetricsConfig()))

	// Health check and version routes (no auth required)
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")

	// Pages
	r.HandleFunc("/", h.Index).Methods("GET").Name("index")
	r.HandleFunc("/convert", h.Convert).Methods("POST").Name("convert")
	r.HandleFunc("/download/{token}", h.Download).Methods("GET", "HEAD").Name("download")

	// API
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/convert", h.APIConvert).Methods("POST").Name("api-convert")

	return r
}

// buildHandler wraps the router in the middleware chain. Outermost first:
// request id, compression, access log, auth.
func buildHandler(router http.Handler, h *handlers.Handlers, config *startup.Config) http.Handler {
	authed := h.AuthMiddleware(router)

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	logged := middleware.Logger(loggingConfig)(authed)

	compressed := middleware.Compression(middleware.DefaultCompressionConfig())(logged)

	return middleware.RequestID(compressed)
}

func startMetricsServer(port string, handler http.Handler) *http.Server {
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", handler)

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      metricsMux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logging.Error("Metrics server error: %v", err)
		}
	}()

	return srv
}

func handleShutdown(sig string, srv, metricsSrv *http.Server, conv *converter.Converter, store *downloads.Store) {
	startup.LogShutdownInitiated(sig)

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Engines are killed before Shutdown waits on in-flight requests.
	startup.LogShutdownStep("Stopping active conversions")
	conv.Cleanup()
	startup.LogShutdownStepComplete("Active conversions stopped")

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	startup.LogShutdownStep("Releasing held downloads")
	store.Stop()
	startup.LogShutdownStepComplete("Downloads released")

	if metricsSrv != nil {
		startup.LogShutdownStep("Shutting down metrics server")
		if err := metricsSrv.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		} else {
			startup.LogShutdownStepComplete("Metrics server stopped")
		}
	}

	startup.LogShutdownComplete()
}
