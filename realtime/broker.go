package realtime

import (
	"context"
	"strings"

	"github.com/VanitasCaesar1/clinic/models"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const channelPrefix = "chat:"

// LocalBroker hands published messages straight to the hub of this process.
type LocalBroker struct {
	hub *Hub
}

func NewLocalBroker(hub *Hub) *LocalBroker {
	return &LocalBroker{hub: hub}
}

func (b *LocalBroker) PublishMessage(ctx context.Context, event models.MessageEvent) error {
	frame, err := Encode(EventNewMessage, event)
	if err != nil {
		return err
	}
	b.hub.Broadcast(event.AppointmentID, frame)
	return nil
}

// RedisBroker publishes messages on chat:<appointmentId> and relays every
// chat channel back into the local hub, so each instance reaches its own sockets.
type RedisBroker struct {
	redis  *redis.Client
	hub    *Hub
	logger *zap.Logger

	pubsub *redis.PubSub
	done   chan struct{}
}

func NewRedisBroker(client *redis.Client, hub *Hub, logger *zap.Logger) *RedisBroker {
	return &RedisBroker{
		redis:  client,
		hub:    hub,
		logger: logger,
	}
}

// Start subscribes to the chat channels and returns once the subscription is
// confirmed. Events are relayed until Close.
func (b *RedisBroker) Start(ctx context.Context) error {
	pubsub := b.redis.PSubscribe(ctx, channelPrefix+"*")
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return errors.Wrap(err, "failed to subscribe to chat channels")
	}
	b.pubsub = pubsub
	b.done = make(chan struct{})
	go b.relay()
	return nil
}

func (b *RedisBroker) relay() {
	defer close(b.done)
	for msg := range b.pubsub.Channel() {
		room := strings.TrimPrefix(msg.Channel, channelPrefix)
		delivered := b.hub.Broadcast(room, []byte(msg.Payload))
		b.logger.Debug("relayed chat event",
			zap.String("room", room),
			zap.Int("delivered", delivered))
	}
}

func (b *RedisBroker) PublishMessage(ctx context.Context, event models.MessageEvent) error {
	frame, err := Encode(EventNewMessage, event)
	if err != nil {
		return err
	}
	err = b.redis.Publish(ctx, channelPrefix+event.AppointmentID, frame).Err()
	return errors.Wrap(err, "failed to publish chat event")
}

func (b *RedisBroker) Close() error {
	if b.pubsub == nil {
		return nil
	}
	err := b.pubsub.Close()
	<-b.done
	return err
}
