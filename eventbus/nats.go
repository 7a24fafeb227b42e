package eventbus

import (
	"context"
	"encoding/json"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

var _ Bus = (*NatsConn[Message])(nil)

// NatsConn publishes serialized messages on NATS subjects and decodes
// received payloads into T
type NatsConn[T Message] struct {
	nc  *nats.Conn
	log *zap.Logger
}

func NewNatsBus[T Message](url string, log *zap.Logger) (*NatsConn[T], error) {
	nc, err := nats.Connect(url, nats.Name("rhesis"))
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &NatsConn[T]{nc: nc, log: log}, nil
}

func (eb *NatsConn[T]) Publish(topic string, msg Message) error {
	return eb.nc.Publish(topic, msg.Serialize())
}

func (eb *NatsConn[T]) Subscribe(topic string, handler MessageReceiver) error {
	_, err := eb.nc.Subscribe(topic, eb.consumedMessages(context.Background(), handler.Receive))
	return err
}

func (eb *NatsConn[T]) Close() error {
	if err := eb.nc.Drain(); err != nil {
		eb.nc.Close()
		return err
	}
	return nil
}

func (eb *NatsConn[T]) consumedMessages(ctx context.Context, receiver func(ctx context.Context, msg Message)) func(*nats.Msg) {
	return func(msg *nats.Msg) {
		decoded, err := deserialize[T](msg)
		if err != nil {
			eb.log.Warn("dropping undecodable message", zap.String("subject", msg.Subject), zap.Error(err))
			return
		}
		receiver(ctx, decoded)
	}
}

func deserialize[T any](message *nats.Msg) (T, error) {
	var msg T
	err := json.Unmarshal(message.Data, &msg)
	return msg, err
}
