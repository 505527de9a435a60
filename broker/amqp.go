package broker

import (
	"context"
	"sync"
	"time"

	"github.com/zllovesuki/signup/customer"

	"github.com/google/uuid"
	extErrors "github.com/pkg/errors"
	"github.com/streadway/amqp"
)

var _ customer.Publisher = &AMQPBroker{}

const customerEventsExchange = "customer_events"

// AMQPBroker publishes customer events to RabbitMQ
type AMQPBroker struct {
	mu         sync.Mutex
	connection *amqp.Connection
	channel    *amqp.Channel
}

// NewAMQPBroker returns a Message Broker over RabbitMQ
func NewAMQPBroker(amqpURI string) (*AMQPBroker, error) {
	amqpConn, err := amqp.Dial(amqpURI)
	if err != nil {
		return nil, extErrors.Wrap(err, "Cannot connect to Message Broker")
	}
	amqpChan, err := amqpConn.Channel()
	if err != nil {
		amqpConn.Close()
		return nil, extErrors.Wrap(err, "Cannot create broker channel")
	}
	broker := &AMQPBroker{
		connection: amqpConn,
		channel:    amqpChan,
	}
	if err := broker.setupEventsExchange(); err != nil {
		broker.Close()
		return nil, extErrors.Wrap(err, "Cannot declare exchange for customer events")
	}

	return broker, nil
}

func (a *AMQPBroker) setupEventsExchange() error {
	return a.channel.ExchangeDeclare(
		customerEventsExchange, // name
		"topic",                // type
		true,                   // durable
		false,                  // auto-deleted
		false,                  // internal
		false,                  // no-wait
		nil,                    // arguments
	)
}

// Close will close the channel and connection to release resources
func (a *AMQPBroker) Close() {
	a.channel.Close()
	a.connection.Close()
}

func (a *AMQPBroker) publishViaRoutingKey(exchange, routingKey, messageID string, body []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.channel.Publish(
		exchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/x-protobuf",
			DeliveryMode: amqp.Persistent,
			MessageId:    messageID,
			Timestamp:    time.Now().UTC(),
			Type:         routingKey,
			Body:         body,
		},
	)
}

// PublishRegistered announces a newly created customer
func (a *AMQPBroker) PublishRegistered(ctx context.Context, attempt customer.Attempt) error {
	eventID := uuid.New().String()
	body, err := EncodeRegistered(eventID, attempt)
	if err != nil {
		return err
	}
	if err := a.publishViaRoutingKey(customerEventsExchange, RoutingKeyRegistered, eventID, body); err != nil {
		return extErrors.Wrap(err, "Cannot publish registration event")
	}
	return nil
}
