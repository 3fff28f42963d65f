// Package intake consumes order tasks from RabbitMQ. It is the
// machine-to-machine entry point next to the HTTP API: upstream POS
// systems drop tasks on a queue instead of calling the API directly.
package intake

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"domotica-bridge/internal/domotica"
)

// Task types accepted from the queue.
const (
	taskPedidoCreado = "pedido_creado"
	taskSync         = "sync"
)

// Core runs order insertions. Satisfied by the service facade.
type Core interface {
	InsertComanda(ctx context.Context, req domotica.ComandaRequest) (domotica.ComandaOutcome, error)
}

// Kicker requests an immediate sync cycle. Satisfied by the syncer.
type Kicker interface {
	Kick()
}

// Config locates the broker and the queue topology.
type Config struct {
	URL      string
	Exchange string
	Queue    string
}

// Consumer reads tasks off the queue and dispatches them.
type Consumer struct {
	cfg    Config
	core   Core
	kicker Kicker
	logger *zap.Logger

	conn *amqp.Connection
	ch   *amqp.Channel
}

// task is the wire shape every queue message must carry.
type task struct {
	TaskType string          `json:"task_type"`
	Payload  json.RawMessage `json:"payload"`
}

// New creates a consumer. Connect establishes the broker topology.
func New(cfg Config, core Core, kicker Kicker, logger *zap.Logger) *Consumer {
	return &Consumer{cfg: cfg, core: core, kicker: kicker, logger: logger}
}

// Connect dials the broker and declares the durable exchange, queue and
// binding. Declarations are idempotent on the broker side.
func (c *Consumer) Connect() error {
	conn, err := amqp.Dial(c.cfg.URL)
	if err != nil {
		return fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(c.cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("declare exchange %q: %w", c.cfg.Exchange, err)
	}
	if _, err := ch.QueueDeclare(c.cfg.Queue, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("declare queue %q: %w", c.cfg.Queue, err)
	}
	if err := ch.QueueBind(c.cfg.Queue, "#", c.cfg.Exchange, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("bind queue %q: %w", c.cfg.Queue, err)
	}
	// One unacked task at a time: the browser session serializes
	// anyway, so prefetching just ages messages.
	if err := ch.Qos(1, 0, false); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("set qos: %w", err)
	}
	c.conn = conn
	c.ch = ch
	return nil
}

// Run consumes until ctx ends or the delivery channel closes.
func (c *Consumer) Run(ctx context.Context) error {
	msgs, err := c.ch.Consume(c.cfg.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %q: %w", c.cfg.Queue, err)
	}
	c.logger.Info("intake consuming", zap.String("queue", c.cfg.Queue))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}
			if err := c.processTask(ctx, msg.Body); err != nil {
				c.logger.Warn("task failed", zap.Error(err))
				// Malformed or failed tasks are dropped, not requeued:
				// a bad payload would loop forever.
				if nackErr := msg.Nack(false, false); nackErr != nil {
					c.logger.Warn("nack failed", zap.Error(nackErr))
				}
				continue
			}
			if ackErr := msg.Ack(false); ackErr != nil {
				c.logger.Warn("ack failed", zap.Error(ackErr))
			}
		}
	}
}

// processTask decodes and dispatches one queue message.
func (c *Consumer) processTask(ctx context.Context, body []byte) error {
	var t task
	if err := json.Unmarshal(body, &t); err != nil {
		return fmt.Errorf("decode task: %w", err)
	}

	switch t.TaskType {
	case taskPedidoCreado:
		var req domotica.ComandaRequest
		if err := json.Unmarshal(t.Payload, &req); err != nil {
			return fmt.Errorf("decode pedido payload: %w", err)
		}
		outcome, err := c.core.InsertComanda(ctx, req)
		if err != nil {
			return fmt.Errorf("insert comanda for %q: %w", req.MesaID, err)
		}
		c.logger.Info("queued comanda processed",
			zap.String("mesa", req.MesaID),
			zap.Int("attempted", outcome.Attempted),
			zap.Int("succeeded", outcome.Succeeded),
		)
		if !outcome.Complete() {
			c.logger.Warn("queued comanda incomplete",
				zap.String("mesa", req.MesaID),
				zap.String("first_error", outcome.FirstError),
			)
		}
		return nil
	case taskSync:
		c.kicker.Kick()
		return nil
	default:
		c.logger.Warn("unknown task type", zap.String("task_type", t.TaskType))
		return nil
	}
}

// Close tears the channel and connection down.
func (c *Consumer) Close() {
	if c.ch != nil {
		if err := c.ch.Close(); err != nil {
			c.logger.Warn("close channel", zap.Error(err))
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			c.logger.Warn("close connection", zap.Error(err))
		}
	}
}
