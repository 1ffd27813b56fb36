package server

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"

	"waveconv/config"
	"waveconv/internal/telemetry/metric"
	ttrace "waveconv/internal/telemetry/trace"
)

func (s *Server) InitGlobalProvider(ctx context.Context, cfg *config.Config) {
	closeFn, err := ttrace.InitGlobal(ctx, name, cfg.OTEL.Exporter, cfg.OTEL.Endpoint)
	if err != nil {
		log.Fatal().Err(err).Msgf("failed initializing the tracer provider")
	}
	s.traceProviderCloseFn = append(s.traceProviderCloseFn, closeFn)
}

func (s *Server) initMetrics() {
	s.registry = prometheus.NewRegistry()
	s.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	s.metrics = metric.NewMetrics(s.registry)
}
