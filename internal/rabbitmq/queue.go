package rabbitmq

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	stageJobQueue = "dialer_stage_jobs"
	// waitQueueSuffix names the holding queue carrying per-message TTLs.
	// Expired messages dead-letter back into the main queue.
	waitQueueSuffix = ".wait"
)

// envelope is the wire frame around one scheduled job.
type envelope struct {
	JobID   string `json:"job_id"`
	JobName string `json:"job_name"`
	Payload string `json:"payload"`
}

type RabbitMQClient struct {
	ctx     context.Context
	conn    *amqp.Connection
	channel *amqp.Channel
}

func NewRabbitMQClient(ctx context.Context, amqpURL string) (*RabbitMQClient, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		err2 := conn.Close()
		if err2 != nil {
			slog.Error("error occurred while closing connection", "error", err2.Error())
		}

		return nil, err
	}

	client := &RabbitMQClient{
		ctx:     ctx,
		conn:    conn,
		channel: ch,
	}
	if err = client.declareQueues(); err != nil {
		slog.Error("Error while declaring stage job queues", "error", err.Error())
		return nil, err
	}

	return client, nil
}

// Schedule publishes a job due in delaySeconds. A non-positive delay clamps
// to zero and the job is published straight to the main queue.
func (c *RabbitMQClient) Schedule(jobName, payload string, delaySeconds int64) (string, error) {
	env := envelope{
		JobID:   uuid.NewString(),
		JobName: jobName,
		Payload: payload,
	}
	body, err := json.Marshal(env)
	if err != nil {
		return "", err
	}

	if delaySeconds <= 0 {
		err = c.channel.PublishWithContext(
			c.ctx,
			"",            // exchange
			stageJobQueue, // routing key
			false,         // mandatory
			false,         // immediate
			amqp.Publishing{
				ContentType: "application/json",
				Body:        body,
			})
		return env.JobID, err
	}

	err = c.channel.PublishWithContext(
		c.ctx,
		"",                            // exchange
		stageJobQueue+waitQueueSuffix, // routing key
		false,                         // mandatory
		false,                         // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
			Expiration:  strconv.FormatInt(delaySeconds*1000, 10),
		})
	return env.JobID, err
}

func (c *RabbitMQClient) Consume(consumerName string, handler func(jobName, payload string)) error {
	msgs, err := c.channel.ConsumeWithContext(
		c.ctx,
		stageJobQueue, // queue
		consumerName,  // consumer
		true,          // auto-ack
		false,         // exclusive
		false,         // no-local
		false,         // no-wait
		nil,           // args
	)

	if err != nil {
		return err
	}

	go func() {
		for d := range msgs {
			var env envelope
			if err := json.Unmarshal(d.Body, &env); err != nil {
				slog.Error("Dropping undecodable stage job message", "error", err.Error())
				continue
			}
			handler(env.JobName, env.Payload)
		}
	}()

	return nil
}

func (c *RabbitMQClient) Close() error {
	err := c.channel.Close()
	if err != nil {
		return err
	}

	err = c.conn.Close()
	return err
}

func (c *RabbitMQClient) IsHealthy() bool {
	if c.conn.IsClosed() {
		slog.Error("RabbitMQ connection is closed, Rabbit is not healthy")
		return false
	}

	ch, err := c.conn.Channel()
	if err != nil {
		slog.Error("Failed to open RabbitMQ channel, Rabbit is not healthy", "error", err)
		return false
	}
	defer func() {
		err = ch.Close()
		if err != nil {
			slog.Error("Error occurred while closing rabbit channel created for health check", "error", err.Error())
		}
	}()

	return true
}

func (c *RabbitMQClient) declareQueues() (err error) {
	_, err = c.channel.QueueDeclare(
		stageJobQueue, // name
		true,          // durable
		false,         // delete when unused
		false,         // exclusive
		false,         // no-wait
		nil,           // arguments
	)
	if err != nil {
		return err
	}

	_, err = c.channel.QueueDeclare(
		stageJobQueue+waitQueueSuffix, // name
		true,                          // durable
		false,                         // delete when unused
		false,                         // exclusive
		false,                         // no-wait
		amqp.Table{
			"x-dead-letter-exchange":    "",
			"x-dead-letter-routing-key": stageJobQueue,
		},
	)
	return err
}
