package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/hireloop/hireloop/internal/core"
)

// AnalysisJob is the queue payload. It carries only the application id; the
// worker reloads everything else from the database, so a crashed worker
// leaves a re-runnable application behind.
type AnalysisJob struct {
	ApplicationID string `json:"application_id"`
}

var _ core.JobPublisher = (*Rabbit)(nil)

type Rabbit struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   amqp.Queue
	logger  *zap.Logger
}

func NewRabbit(url, queueName string, logger *zap.Logger) (*Rabbit, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	q, err := ch.QueueDeclare(
		queueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}

	logger.Info("connected to rabbitmq", zap.String("queue", q.Name))
	return &Rabbit{conn: conn, channel: ch, queue: q, logger: logger}, nil
}

func (r *Rabbit) Close() error {
	if r.channel != nil {
		_ = r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}

// PublishAnalysisJob enqueues one application for background analysis.
func (r *Rabbit) PublishAnalysisJob(ctx context.Context, applicationID string) error {
	body, err := json.Marshal(AnalysisJob{ApplicationID: applicationID})
	if err != nil {
		return err
	}

	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = r.channel.PublishWithContext(
		pubCtx,
		"",           // exchange
		r.queue.Name, // routing key
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish analysis job: %w", err)
	}
	return nil
}

// ConsumeAnalysisJobs runs the worker loop with manual acks. The handler's
// error decides requeueing: infrastructure errors nack+requeue, pipeline
// outcomes are recorded on rows and ack regardless.
func (r *Rabbit) ConsumeAnalysisJobs(ctx context.Context, maxWorkers int, handler func(ctx context.Context, job AnalysisJob) error) error {
	if maxWorkers <= 0 {
		maxWorkers = 4
	}

	msgs, err := r.channel.Consume(
		r.queue.Name,
		"",
		false, // manual ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("register consumer: %w", err)
	}

	sem := make(chan struct{}, maxWorkers)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-msgs:
				if !ok {
					return
				}
				sem <- struct{}{}
				go func(d amqp.Delivery) {
					defer func() { <-sem }()
					r.handleDelivery(ctx, d, handler)
				}(d)
			}
		}
	}()

	return nil
}

func (r *Rabbit) handleDelivery(ctx context.Context, d amqp.Delivery, handler func(ctx context.Context, job AnalysisJob) error) {
	var job AnalysisJob
	if err := json.Unmarshal(d.Body, &job); err != nil {
		r.logger.Error("invalid job payload, dropping", zap.Error(err))
		_ = d.Nack(false, false)
		return
	}

	if err := handler(ctx, job); err != nil {
		r.logger.Error("job handler failed, requeueing",
			zap.String("application_id", job.ApplicationID), zap.Error(err))
		_ = d.Nack(false, true)
		return
	}
	_ = d.Ack(false)
}
