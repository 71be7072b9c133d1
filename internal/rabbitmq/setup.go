package rabbitmq

import (
	"fmt"

	"github.com/streadway/amqp"
)

const (
	// ExchangeNotifications — direct-обменник доменных событий.
	ExchangeNotifications = "notifications"
	// RoutingUserRegistered — первый вход пользователя.
	RoutingUserRegistered = "user.registered"
	// RoutingSubscriptionEnded — закончился пробный период или премиум.
	RoutingSubscriptionEnded = "subscription.ended"
)

// QueueConfig очередь и ключ, которым она привязана к обменнику.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// NotificationQueues возвращает очереди уведомлений, привязанные к ExchangeNotifications.
func NotificationQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: "notifications.user_registered", RoutingKey: RoutingUserRegistered},
		{QueueName: "notifications.subscription_ended", RoutingKey: RoutingSubscriptionEnded},
	}
}

// SetupChannel открывает канал, объявляет обменник и привязывает к нему queues.
func SetupChannel(conn *amqp.Connection, queues []QueueConfig) (*amqp.Channel, error) {
	const op = "rabbitmq.SetupChannel"

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := ch.Qos(consumerConcurrency, 0, false); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("%s: failed to set QoS: %w", op, err)
	}

	err = ch.ExchangeDeclare(
		ExchangeNotifications,
		"direct",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	for _, q := range queues {
		if err := DeclareQueue(ch, q.QueueName); err != nil {
			_ = ch.Close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if err := ch.QueueBind(q.QueueName, q.RoutingKey, ExchangeNotifications, false, nil); err != nil {
			_ = ch.Close()
			return nil, fmt.Errorf("%s: failed to bind queue %s with routing key %s: %w", op, q.QueueName, q.RoutingKey, err)
		}
	}

	return ch, nil
}

// DeclareQueue объявляет устойчивую очередь name.
func DeclareQueue(ch *amqp.Channel, name string) error {
	if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", name, err)
	}
	return nil
}
