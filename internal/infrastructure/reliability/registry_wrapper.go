package reliability

import (
	"context"

	"peercam/internal/core/domain"
	"peercam/internal/core/ports"
	"peercam/pkg/circuitbreaker"
	"peercam/pkg/retry"

	"go.uber.org/zap"
)

// RegistryWrapper shields the session registry behind retry and a
// circuit breaker, so a flapping redis backend degrades to logged
// errors instead of stalling session bookkeeping.
type RegistryWrapper struct {
	registry ports.SessionRegistry
	logger   *zap.SugaredLogger

	retryConfig retry.Config
	breaker     *circuitbreaker.CircuitBreaker
}

func NewRegistryWrapper(
	registry ports.SessionRegistry,
	retryConfig retry.Config,
	cbConfig circuitbreaker.Config,
	logger *zap.SugaredLogger,
) *RegistryWrapper {
	w := &RegistryWrapper{
		registry:    registry,
		logger:      logger,
		retryConfig: retryConfig,
		breaker:     circuitbreaker.New(cbConfig),
	}

	w.breaker.OnStateChange(func(from, to circuitbreaker.State) {
		logger.Infow("registry circuit breaker state changed",
			"from", from.String(),
			"to", to.String(),
		)
	})

	return w
}

func (w *RegistryWrapper) Save(ctx context.Context, session *domain.Session) error {
	return retry.Do(ctx, w.retryConfig, func() error {
		return w.breaker.Execute(ctx, func() error {
			return w.registry.Save(ctx, session)
		})
	})
}

func (w *RegistryWrapper) GetByID(ctx context.Context, id domain.SessionID) (*domain.Session, error) {
	// Reads go straight through; a stale miss is cheaper than backoff.
	return w.registry.GetByID(ctx, id)
}

func (w *RegistryWrapper) UpdateState(ctx context.Context, id domain.SessionID, state domain.SessionState) error {
	return retry.Do(ctx, w.retryConfig, func() error {
		return w.breaker.Execute(ctx, func() error {
			return w.registry.UpdateState(ctx, id, state)
		})
	})
}

func (w *RegistryWrapper) Delete(ctx context.Context, id domain.SessionID) error {
	return retry.Do(ctx, w.retryConfig, func() error {
		return w.breaker.Execute(ctx, func() error {
			return w.registry.Delete(ctx, id)
		})
	})
}

func (w *RegistryWrapper) ListActive(ctx context.Context) ([]*domain.Session, error) {
	return w.registry.ListActive(ctx)
}

// Stats exposes the breaker counters for the health surface.
func (w *RegistryWrapper) Stats() circuitbreaker.Stats {
	return w.breaker.Stats()
}
