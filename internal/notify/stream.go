package notify

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/lithammer/shortuuid/v3"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/hasanaliduruk/2dWorkflowShipmentBot/internal/model"
)

// Stream publishes engine events onto a Redis stream for downstream
// consumers. Payloads are JSON renderings of the notification.
type Stream struct {
	topic     string
	publisher message.Publisher
}

// NewStream wires a stream sink over an existing Redis client.
func NewStream(rdb redis.UniversalClient, topic string) (*Stream, error) {
	publisher, err := redisstream.NewPublisher(redisstream.PublisherConfig{
		Client: rdb,
	}, watermill.NewStdLogger(false, false))
	if err != nil {
		return nil, errors.Wrap(err, "create stream publisher")
	}
	return &Stream{topic: topic, publisher: publisher}, nil
}

func (s *Stream) Publish(ctx context.Context, n model.Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return errors.Wrap(err, "encode event")
	}
	msg := message.NewMessage(shortuuid.New(), payload)
	msg.SetContext(ctx)
	if err := s.publisher.Publish(s.topic, msg); err != nil {
		return errors.Wrap(err, "publish event")
	}
	return nil
}

func (s *Stream) Close() error {
	return s.publisher.Close()
}
