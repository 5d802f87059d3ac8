package service

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/spec-kit/support-resolver/internal/config"
	"github.com/spec-kit/support-resolver/internal/events"
	"github.com/spec-kit/support-resolver/internal/persistence"
)

// NotificationService fans resolution events out to the Redis pub/sub
// channel consumed by the chat front end.
type NotificationService struct {
	dispatcher events.Dispatcher
	redis      *persistence.Redis
	logger     *zap.Logger
	cfg        config.RedisConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, redis *persistence.Redis, logger *zap.Logger, cfg config.RedisConfig) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		redis:      redis,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, n.handleEvent)
	n.dispatcher.Subscribe(events.EventTicketResolved, n.handleEvent)
	n.dispatcher.Subscribe(events.EventResolutionFailed, n.handleEvent)
}

func (n *NotificationService) handleEvent(ctx context.Context, event events.Event) error {
	n.logger.Info("notification",
		zap.String("event_type", string(event.Type)),
		zap.String("ticket_id", event.TicketID))

	payload, err := json.Marshal(event)
	if err != nil {
		n.logger.Error("marshal notification", zap.Error(err))
		return nil
	}
	if err := n.redis.Publish(ctx, n.cfg.NotificationChannel, payload); err != nil {
		// Notifications are best-effort; never fail the run for them.
		n.logger.Warn("publish notification",
			zap.String("channel", n.cfg.NotificationChannel),
			zap.Error(err))
	}
	return nil
}
