package queue

import (
	"github.com/ravenloom/backend/pkg/logger"

	amqp "github.com/rabbitmq/amqp091-go"
)

// MaxRetries is the number of redeliveries before a message is parked in
// the dead letter queue.
const MaxRetries = 10

const retriesHeader = "x-retries"

// Retries reads the retry counter of a delivery. Brokers and clients may
// hand integer headers back with different widths.
func Retries(headers amqp.Table) int {
	switch v := headers[retriesHeader].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	case int16:
		return int(v)
	case int8:
		return int(v)
	case uint8:
		return int(v)
	default:
		return 0
	}
}

// HandleProcessingError moves a failed delivery to the retry queue, or to
// the dead letter queue once MaxRetries is reached. The original delivery
// is acked only after the copy was published.
func HandleProcessingError(ch Publisher, msg amqp.Delivery, queueName string) {
	retries := Retries(msg.Headers)

	headers := amqp.Table{}
	for k, v := range msg.Headers {
		headers[k] = v
	}

	target := queueName + "_retry"
	if retries >= MaxRetries {
		target = queueName + "_dlq"
		logger.Info("[Queue] Sending message to DLQ", "dlq", target, "retries", retries)
	} else {
		headers[retriesHeader] = int32(retries + 1)
	}

	pubErr := ch.Publish(
		"",
		target,
		false,
		false,
		amqp.Publishing{
			ContentType:  "text/plain",
			Body:         msg.Body,
			Headers:      headers,
			DeliveryMode: amqp.Persistent,
		},
	)
	if pubErr != nil {
		logger.Error("[Queue] Failed to republish message", "queue", target, "err", pubErr)
		if err := msg.Nack(false, true); err != nil {
			logger.Error("[Queue] Failed to nack message", "err", err)
		}
		return
	}
	if err := msg.Ack(false); err != nil {
		logger.Error("[Queue] Failed to ack message", "err", err)
	}
}
