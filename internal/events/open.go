package events

import (
	"context"
	"fmt"
	"strings"

	"github.com/gradebook/apiserver/config"
	"github.com/gradebook/apiserver/internal/logging"
)

// Open builds the Bus selected by cfg.MQ. An empty backend yields a nop bus.
func Open(ctx context.Context, cfg config.MQConfig, log logging.Logger) (*Bus, error) {
	var (
		backend Backend
		err     error
	)
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "":
		return NewNopBus(), nil
	case "rabbitmq":
		backend, err = NewRabbitMQBackend(cfg.RabbitMQ)
	case "pubsub":
		backend, err = NewPubSubBackend(ctx, cfg.PubSub)
	default:
		return nil, fmt.Errorf("unknown mq backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Backend, err)
	}
	return NewBus(backend, cfg.Channel, log), nil
}
