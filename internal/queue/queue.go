package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ravenloom/backend/internal/util"
	"github.com/ravenloom/backend/pkg/logger"

	"github.com/rabbitmq/amqp091-go"
)

// Queue names. Every queue gets a _retry and a _dlq companion.
const (
	IngestQueue = "ingest_queue"
	LearnQueue  = "learn_queue"
)

// Queues lists all work queues consumed by the worker.
var Queues = []string{IngestQueue, LearnQueue}

const retryDelayMs = 10000

func Init() *amqp091.Connection {
	user := util.GetEnv("RABBITMQ_USER")
	pass := util.GetEnv("RABBITMQ_PASSWORD")
	host := util.GetEnv("RABBITMQ_HOST")
	port := util.GetEnv("RABBITMQ_PORT")

	connURL := fmt.Sprintf(
		"amqp://%s:%s@%s:%s/",
		user,
		pass,
		host,
		port,
	)

	conn, err := amqp091.Dial(connURL)
	if err != nil {
		logger.Fatal("Failed to connect to RabbitMQ", "err", err)
	}

	return conn
}

// SetupQueues declares each queue together with its dead letter queue and
// a retry queue that hands messages back to the work queue after ten
// seconds.
func SetupQueues(ch *amqp091.Channel, queueNames []string) error {
	for _, name := range queueNames {
		_, err := ch.QueueDeclare(
			name,
			true,  // durable
			false, // autoDelete
			false, // exclusive
			false, // noWait
			nil,   // args
		)
		if err != nil {
			return fmt.Errorf("failed to declare queue %s: %w", name, err)
		}

		dlqName := name + "_dlq"
		_, err = ch.QueueDeclare(
			dlqName,
			true,
			false,
			false,
			false,
			nil,
		)
		if err != nil {
			return fmt.Errorf("failed to declare queue %s: %w", dlqName, err)
		}

		retryName := name + "_retry"
		_, err = ch.QueueDeclare(
			retryName,
			true,
			false,
			false,
			false,
			amqp091.Table{
				"x-message-ttl":             int32(retryDelayMs),
				"x-dead-letter-exchange":    "",
				"x-dead-letter-routing-key": name,
			},
		)
		if err != nil {
			return fmt.Errorf("failed to declare queue %s: %w", retryName, err)
		}
	}

	return nil
}

// Publisher is the part of an amqp channel used to publish messages.
type Publisher interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

// PublishFIFO sends data as a persistent message to the default exchange.
// The queue must have been declared with SetupQueues.
func PublishFIFO(ch Publisher, queueName string, data []byte) error {
	publishing := amqp091.Publishing{
		ContentType:  "text/plain",
		Body:         data,
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
	}

	return ch.Publish(
		"",
		queueName,
		false,
		false,
		publishing,
	)
}

// PublishJSON marshals msg and publishes it with PublishFIFO.
func PublishJSON(ch Publisher, queueName string, msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	return PublishFIFO(ch, queueName, data)
}
