package rabbitmq

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/suPer8Hu/kbchat/internal/common"
	"github.com/suPer8Hu/kbchat/internal/embedjob"
	"github.com/suPer8Hu/kbchat/internal/telemetry"
)

func RetryQueue(queue string) string { return queue + ".retry" }
func DeadQueue(queue string) string  { return queue + ".dlq" }

// DeclareTopology declares the main queue with its retry and dead-letter
// queues. Publisher and worker both call it so the arguments always match.
func DeclareTopology(ch *amqp.Channel, queue string) error {
	// DLQ
	if _, err := ch.QueueDeclare(DeadQueue(queue), true, false, false, false, nil); err != nil {
		return err
	}

	// Retry queue: message TTL -> dead-letter back to main queue
	if _, err := ch.QueueDeclare(RetryQueue(queue), true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": queue,
	}); err != nil {
		return err
	}

	// Main queue: dead-letter to DLQ on reject/nack(requeue=false)
	_, err := ch.QueueDeclare(queue, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": DeadQueue(queue),
	})
	return err
}

type Publisher struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
	send  func(ctx context.Context, routingKey string, msg amqp.Publishing) error

	dedupe   embedjob.Deduper
	claimTTL time.Duration
	hook     telemetry.Hook
}

func NewPublisher(url, queue string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := DeclareTopology(ch, queue); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	p := &Publisher{conn: conn, ch: ch, queue: queue, hook: telemetry.Nop{}}
	p.send = func(ctx context.Context, routingKey string, msg amqp.Publishing) error {
		return ch.PublishWithContext(ctx, "", routingKey, false, false, msg)
	}
	return p, nil
}

// WithDedupe skips enqueueing a document that already has a pending job.
func (p *Publisher) WithDedupe(d embedjob.Deduper, ttl time.Duration, hook telemetry.Hook) *Publisher {
	p.dedupe = d
	p.claimTTL = ttl
	if hook != nil {
		p.hook = hook
	}
	return p
}

func (p *Publisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// EnqueueEmbedding schedules a backfill for a document stored without a vector.
func (p *Publisher) EnqueueEmbedding(ctx context.Context, userID, documentID uint64) error {
	claimed := false
	if p.dedupe != nil {
		ok, err := p.dedupe.ClaimEmbeddingJob(ctx, documentID, p.claimTTL)
		switch {
		case err != nil:
			// redis unavailable: publish anyway, the worker is idempotent
			p.hook.DependencyFailed(ctx, "rabbitmq", "claim_job", err)
		case !ok:
			return nil
		default:
			claimed = true
		}
	}

	jobID, err := common.NewULID()
	if err != nil {
		return err
	}
	err = p.publish(ctx, p.queue, embedjob.Message{JobID: jobID, UserID: userID, DocumentID: documentID}, 0)
	if err != nil && claimed {
		_ = p.dedupe.ReleaseEmbeddingJob(ctx, documentID)
	}
	return err
}

// Retry parks m in the retry queue; after delay it dead-letters back to the
// main queue with Attempt incremented.
func (p *Publisher) Retry(ctx context.Context, m embedjob.Message, delay time.Duration) error {
	m.Attempt++
	return p.publish(ctx, RetryQueue(p.queue), m, delay)
}

func (p *Publisher) publish(ctx context.Context, routingKey string, m embedjob.Message, ttl time.Duration) error {
	body, err := json.Marshal(m)
	if err != nil {
		return err
	}

	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    m.JobID,
		Body:         body,
		Timestamp:    time.Now(),
	}
	if ttl > 0 {
		msg.Expiration = strconv.FormatInt(ttl.Milliseconds(), 10)
	}
	return p.send(cctx, routingKey, msg)
}
