package worker

import (
	"context"

	"github.com/rs/zerolog/log"

	"waveconv/config"
	ttrace "waveconv/internal/telemetry/trace"
)

func (s *Worker) InitGlobalProvider(ctx context.Context, cfg *config.Config) {
	closeFn, err := ttrace.InitGlobal(ctx, name, cfg.OTEL.Exporter, cfg.OTEL.Endpoint)
	if err != nil {
		log.Fatal().Err(err).Msgf("failed initializing the tracer provider")
	}
	s.traceProviderCloseFn = append(s.traceProviderCloseFn, closeFn)
}
