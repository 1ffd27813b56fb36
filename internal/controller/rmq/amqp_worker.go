package rmq

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"github.com/streadway/amqp"
	"go.opentelemetry.io/otel"

	"waveconv/config"
	"waveconv/entity"
	"waveconv/pkg/logger"
	"waveconv/pkg/rabbitmq"
)

// AMQPWorker serves transcode requests from the request queue.
type AMQPWorker struct {
	conn       *amqp.Connection
	amqpChan   *amqp.Channel
	cfg        config.RMQ
	l          logger.Interface
	transcoder entity.Transcoder
}

func NewAMQPWorker(cfg config.RMQ, l logger.Interface, transcoder entity.Transcoder) (*AMQPWorker, error) {
	conn, err := rabbitmq.NewRabbitMQConn(cfg.URL)
	if err != nil {
		return nil, err
	}
	amqpChan, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, pkgerrors.Wrap(err, "amqpw.amqpConn.Channel")
	}

	return &AMQPWorker{conn: conn, amqpChan: amqpChan, cfg: cfg, l: l, transcoder: transcoder}, nil
}

func declareExchange(ch *amqp.Channel, exchange string) error {
	err := ch.ExchangeDeclare(
		exchange,
		exchangeKind,
		exchangeDurable,
		exchangeAutoDelete,
		exchangeInternal,
		exchangeNoWait,
		nil,
	)
	if err != nil {
		return pkgerrors.Wrap(err, "Error ch.ExchangeDeclare")
	}
	return nil
}

// SetupExchangeAndQueue create exchange and queue
func (amqpw *AMQPWorker) SetupExchangeAndQueue(exchange, queueName, bindingKey string) error {
	amqpw.l.Info("Declaring exchange: %s", exchange)
	if err := declareExchange(amqpw.amqpChan, exchange); err != nil {
		return err
	}

	queue, err := amqpw.amqpChan.QueueDeclare(
		queueName,
		queueDurable,
		queueAutoDelete,
		queueExclusive,
		queueNoWait,
		nil,
	)
	if err != nil {
		return pkgerrors.Wrap(err, "Error ch.QueueDeclare")
	}

	amqpw.l.Info("Declared queue, binding it to exchange: Queue: %v, messageCount: %v, "+
		"consumerCount: %v, exchange: %v, bindingKey: %v",
		queue.Name,
		queue.Messages,
		queue.Consumers,
		exchange,
		bindingKey,
	)

	err = amqpw.amqpChan.QueueBind(
		queue.Name,
		bindingKey,
		exchange,
		queueNoWait,
		nil,
	)
	if err != nil {
		return pkgerrors.Wrap(err, "Error ch.QueueBind")
	}

	return nil
}

// CloseChan closes the channel and the connection.
func (amqpw *AMQPWorker) CloseChan() error {
	if err := amqpw.amqpChan.Close(); err != nil {
		amqpw.l.Error(err, "AMQPWorker CloseChan")
	}
	return amqpw.conn.Close()
}

// Publish message
func (amqpw *AMQPWorker) Publish(exchange, key, corrID string, headers amqp.Table, body []byte) error {
	if err := amqpw.amqpChan.Publish(
		exchange,
		key,
		publishMandatory,
		publishImmediate,
		amqp.Publishing{
			ContentType:   "audio/ogg",
			DeliveryMode:  amqp.Transient,
			MessageId:     uuid.New().String(),
			Timestamp:     time.Now(),
			CorrelationId: corrID,
			Headers:       headers,
			Body:          body,
		},
	); err != nil {
		return pkgerrors.Wrap(err, "ch.Publish")
	}

	return nil
}

// StartConsumer blocks until ctx ends or the channel closes.
func (c *AMQPWorker) StartConsumer(ctx context.Context) error {
	if err := c.SetupExchangeAndQueue(c.cfg.Exchange, c.cfg.RequestQueue, routingKey); err != nil {
		return pkgerrors.Wrap(err, "SetupExchangeAndQueue")
	}
	if err := c.amqpChan.Qos(prefetchCount, 0, false); err != nil {
		return pkgerrors.Wrap(err, "ch.Qos")
	}

	deliveries, err := c.amqpChan.Consume(
		c.cfg.RequestQueue,
		"",
		consumeAutoAck,
		consumeExclusive,
		consumeNoLocal,
		consumeNoWait,
		nil,
	)
	if err != nil {
		return pkgerrors.Wrap(err, "Consume")
	}

	closed := c.amqpChan.NotifyClose(make(chan *amqp.Error, 1))
	go c.consume(ctx, deliveries)

	select {
	case <-ctx.Done():
		return nil
	case chanErr := <-closed:
		if chanErr == nil {
			return nil
		}
		c.l.Error(chanErr, "ch.NotifyClose")
		return chanErr
	}
}

func (c *AMQPWorker) consume(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for d := range deliveries {
		c.handle(ctx, d)
	}
}

func (c *AMQPWorker) handle(ctx context.Context, d amqp.Delivery) {
	ctx, span := otel.Tracer(traceName).Start(ctx, "consumer")
	defer span.End()

	ext, _ := d.Headers[headerSourceExt].(string)
	headers, body := c.process(ctx, ext, d.Body)

	if d.ReplyTo == "" {
		c.l.Warn("rmq - AMQPWorker - request %s has no reply queue", d.CorrelationId)
	} else if err := c.Publish(c.cfg.Exchange, d.ReplyTo, d.CorrelationId, headers, body); err != nil {
		c.l.Error(err, "rmq - AMQPWorker - reply to %s", d.CorrelationId)
	}

	if err := d.Ack(false); err != nil {
		c.l.Error(err, "rmq - AMQPWorker - ack")
	}
}

// process runs one conversion and builds the reply.
func (c *AMQPWorker) process(ctx context.Context, ext string, in []byte) (amqp.Table, []byte) {
	var out bytes.Buffer
	start := time.Now()

	err := c.transcoder.Transcode(ctx, bytes.NewReader(in), ext, &out)
	if err != nil {
		c.l.Warn("rmq - AMQPWorker - transcode .%s failed: %v", ext, err)
		return errorHeaders(err), nil
	}

	if limit := c.cfg.MaxMessageSize; limit > 0 && int64(out.Len()) > limit {
		c.l.Warn("rmq - AMQPWorker - .%s output of %d bytes is over the message limit", ext, out.Len())
		return errorHeaders(&entity.TranscodeError{
			Kind:   entity.EncodingFailed,
			Reason: fmt.Sprintf("output exceeds the broker message limit of %d bytes", limit),
		}), nil
	}

	c.l.Info("rmq - AMQPWorker - transcoded %d bytes of .%s into %d bytes in %s",
		len(in), ext, out.Len(), time.Since(start))
	return amqp.Table{}, out.Bytes()
}

func errorHeaders(err error) amqp.Table {
	var te *entity.TranscodeError
	if !errors.As(err, &te) {
		te = &entity.TranscodeError{Kind: entity.EncodingFailed, Reason: err.Error()}
	}
	return amqp.Table{
		headerErrorKind:   string(te.Kind),
		headerErrorReason: te.Reason,
	}
}

func formatMillis(d time.Duration) string {
	return strconv.FormatInt(d.Milliseconds(), 10)
}
