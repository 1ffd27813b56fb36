package worker

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"waveconv/config"
	"waveconv/internal/controller/rmq"
	"waveconv/internal/transcoder"
	"waveconv/pkg/logger"

	ttrace "waveconv/internal/telemetry/trace"
)

var name = "waveconv-worker"

// NewWorker ...
func NewWorker(ctx context.Context, cfg *config.Config) *Worker {
	worker := &Worker{}

	worker.InitGlobalProvider(ctx, cfg)

	return worker
}

type Worker struct {
	traceProviderCloseFn []ttrace.CloseFunc
}

// Run serves transcode requests with the local ffmpeg until a signal arrives.
func (s *Worker) Run(ctx context.Context, cfg *config.Config) error {
	l := logger.New(cfg.Log.Level)

	ac := transcoder.NewFFmpeg(cfg)
	if err := ac.Probe(ctx); err != nil {
		l.Warn("app - Run - ffmpeg is not available, every request will fail: %v", err)
	}

	amqpWorker, err := rmq.NewAMQPWorker(cfg.RMQ, l, ac)
	if err != nil {
		l.Fatal(err, "app - Run - rmq.NewAMQPWorker")
	}

	consumeCtx, stopConsumer := context.WithCancel(ctx)
	consumerErr := make(chan error, 1)
	go func() {
		consumerErr <- amqpWorker.StartConsumer(consumeCtx)
	}()

	l.Info("transcode worker started on queue %s", cfg.RMQ.RequestQueue)

	// Waiting signal
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	select {
	case s := <-interrupt:
		l.Info("app - Run - signal: " + s.String())
	case err = <-consumerErr:
		l.Error(fmt.Errorf("app - Run - amqpWorker.StartConsumer: %w", err))
	}

	l.Info("app - Run - worker stopping")

	ctxShutDown, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Shutdown
	stopConsumer()
	if err := amqpWorker.CloseChan(); err != nil {
		l.Error(fmt.Errorf("app - Run - amqpWorker.CloseChan: %w", err))
	}

	for _, closeFn := range s.traceProviderCloseFn {
		if err := closeFn(ctxShutDown); err != nil {
			l.Error(err, "app - Run - unable to close trace provider")
		}
	}

	l.Info("app - Run - worker exited properly")

	return err
}
