package notification

import (
	"context"
	"fmt"

	"github.com/smallbiznis/eventpass/internal/config"
	"github.com/smallbiznis/eventpass/internal/notification/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("notification",
	fx.Provide(
		NewOutbox,
		func(o *Outbox) domain.Publisher { return o },
		NewSink,
		NewDispatcher,
	),
	fx.Invoke(RunDispatcher),
)

// NewSink selects the delivery sink from configuration.
func NewSink(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (domain.Sink, error) {
	switch cfg.Notify.Sink {
	case "", "log":
		return NewLogSink(log), nil
	case "kafka":
		p, err := NewKafkaProducer(cfg.Notify.KafkaBrokers)
		if err != nil {
			return nil, fmt.Errorf("kafka producer: %w", err)
		}
		sink := NewKafkaSink(p, cfg.Notify.KafkaTopic, log)
		lc.Append(fx.Hook{
			OnStop: func(context.Context) error {
				sink.Close()
				return nil
			},
		})
		return sink, nil
	default:
		return nil, fmt.Errorf("unsupported notification sink %q", cfg.Notify.Sink)
	}
}

func RunDispatcher(lc fx.Lifecycle, d *Dispatcher) {
	var cancel context.CancelFunc
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			var ctx context.Context
			ctx, cancel = context.WithCancel(context.Background())
			go func() {
				defer close(done)
				d.RunForever(ctx)
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			select {
			case <-done:
			case <-ctx.Done():
			}
			return nil
		},
	})
}
