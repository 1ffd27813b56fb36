package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/cors"

	"waveconv/config"
	v1 "waveconv/internal/controller/http/v1"
	"waveconv/internal/auth"
	"waveconv/internal/conversion"
	"waveconv/internal/download"
	"waveconv/internal/storage"
	"waveconv/internal/telemetry/metric"
	"waveconv/internal/transcoder"
	"waveconv/pkg/httpserver"
	"waveconv/pkg/logger"

	ttrace "waveconv/internal/telemetry/trace"
)

var name = "waveconv-server"

// NewServer ...
func NewServer(ctx context.Context, cfg *config.Config) *Server {
	srv := &Server{}

	srv.InitGlobalProvider(ctx, cfg)
	srv.initMetrics()

	return srv
}

type Server struct {
	traceProviderCloseFn []ttrace.CloseFunc
	registry             *prometheus.Registry
	metrics              *metric.Metrics
}

// Run ...
func (s *Server) Run(ctx context.Context, cfg *config.Config) error {
	l := logger.New(cfg.Log.Level)
	l.Info("Starting server...")

	store, err := storage.New(ctx, cfg, l)
	if err != nil {
		l.Fatal(err, "app - Run - storage.New")
	}

	tc, closeTranscoder, err := transcoder.New(ctx, cfg, l)
	if err != nil {
		l.Fatal(err, "app - Run - transcoder.New")
	}

	conversionUsecase := conversion.NewConversionUsecase(store, tc, l, s.metrics, conversion.Options{
		MaxUploadSize: cfg.Upload.MaxSize,
		PublicBaseURL: cfg.HTTP.PublicURL,
	})
	responder := download.NewResponder(store, l, s.metrics)

	sweepCtx, stopSweeper := context.WithCancel(ctx)
	sweeper := conversion.NewSweeper(store, l, s.metrics, cfg.Retention.Interval, cfg.Retention.MaxAge)
	sweeperDone := make(chan struct{})
	go func() {
		sweeper.Run(sweepCtx)
		close(sweeperDone)
	}()

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	handler := gin.New()
	v1.NewRouter(handler, l, v1.Deps{
		Conversion:    conversionUsecase,
		Download:      responder,
		Authorizer:    auth.NewTokenAuthorizer(cfg.Auth.Token),
		Gatherer:      s.registry,
		MaxUploadSize: cfg.Upload.MaxSize,
		Development:   cfg.IsDevelopment(),
	})

	httpServer := httpserver.New(s.cors(cfg.HTTP.CORSOrigins).Handler(handler),
		httpserver.Port(cfg.HTTP.Port),
		httpserver.ReadTimeout(cfg.HTTP.ReadTimeout),
		httpserver.WriteTimeout(cfg.HTTP.WriteTimeout),
		httpserver.ShutdownTimeout(30*time.Second),
	)

	l.Info("server serving on port %s", cfg.HTTP.Port)

	// Waiting signal
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	select {
	case s := <-interrupt:
		l.Info("app - Run - signal: " + s.String())
	case err = <-httpServer.Notify():
		l.Error(fmt.Errorf("app - Run - httpServer.Notify: %w", err))
	}

	l.Info("app - Run - server stopping")

	ctxShutDown, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Shutdown
	if err := httpServer.Shutdown(); err != nil {
		l.Error(fmt.Errorf("app - Run - httpServer.Shutdown: %w", err))
	}

	stopSweeper()
	<-sweeperDone

	if err := closeTranscoder(); err != nil {
		l.Error(fmt.Errorf("app - Run - transcoder close: %w", err))
	}

	for _, closeFn := range s.traceProviderCloseFn {
		if err := closeFn(ctxShutDown); err != nil {
			l.Error(err, "app - Run - unable to close trace provider")
		}
	}

	l.Info("app - Run - server exited properly")

	return err
}

func (s *Server) cors(origins []string) *cors.Cors {
	return cors.New(cors.Options{
		AllowedOrigins:     origins,
		AllowedMethods:     []string{"POST", "GET", "HEAD", "OPTIONS"},
		AllowedHeaders:     []string{"Accept", "Content-Type", "Content-Length", "Accept-Encoding", "Authorization"},
		ExposedHeaders:     []string{"Content-Disposition"},
		MaxAge:             60, // 1 minutes
		AllowCredentials:   false,
		OptionsPassthrough: false,
		Debug:              false,
	})
}
