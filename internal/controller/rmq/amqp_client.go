package rmq

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/streadway/amqp"
	"go.opentelemetry.io/otel"

	"waveconv/config"
	"waveconv/entity"
	"waveconv/pkg/logger"
	"waveconv/pkg/rabbitmq"
)

// errClientClosed is returned once Close has been called.
var errClientClosed = errors.New("amqp transcoder closed")

// session is one connection with its channel and reply queue. A session the
// broker closed is replaced as a whole.
type session struct {
	conn       *amqp.Connection
	ch         *amqp.Channel
	replyQueue string
	done       chan struct{}
}

// AMQPTranscoder is an entity.Transcoder that delegates to a worker process
// over RabbitMQ request/reply.
type AMQPTranscoder struct {
	cfg     config.RMQ
	l       logger.Interface
	pending *PendingCalls

	// mu guards sess and serializes publishes, an amqp.Channel must not
	// publish from several goroutines at once.
	mu     sync.Mutex
	sess   *session
	closed bool
}

var _ entity.Transcoder = (*AMQPTranscoder)(nil)

func NewAMQPTranscoder(cfg config.RMQ, l logger.Interface) (*AMQPTranscoder, error) {
	c := &AMQPTranscoder{
		cfg:     cfg,
		l:       l,
		pending: NewPendingCalls(),
	}

	sess, err := c.dial()
	if err != nil {
		return nil, err
	}
	c.sess = sess

	return c, nil
}

func (c *AMQPTranscoder) dial() (*session, error) {
	conn, err := rabbitmq.NewRabbitMQConn(c.cfg.URL)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "conn.Channel")
	}

	s := &session{conn: conn, ch: ch, done: make(chan struct{})}
	deliveries, err := c.setupReplyQueue(s)
	if err != nil {
		conn.Close()
		return nil, err
	}

	closed := ch.NotifyClose(make(chan *amqp.Error, 1))
	go c.consumeReplies(s, deliveries, closed)

	return s, nil
}

func (c *AMQPTranscoder) setupReplyQueue(s *session) (<-chan amqp.Delivery, error) {
	if err := declareExchange(s.ch, c.cfg.Exchange); err != nil {
		return nil, err
	}

	queue, err := s.ch.QueueDeclare("", false, true, true, queueNoWait, nil)
	if err != nil {
		return nil, errors.Wrap(err, "Error ch.QueueDeclare")
	}
	if err := s.ch.QueueBind(queue.Name, queue.Name, c.cfg.Exchange, queueNoWait, nil); err != nil {
		return nil, errors.Wrap(err, "Error ch.QueueBind")
	}
	s.replyQueue = queue.Name

	deliveries, err := s.ch.Consume(queue.Name, "", true, true, consumeNoLocal, consumeNoWait, nil)
	if err != nil {
		return nil, errors.Wrap(err, "Error ch.Consume")
	}

	c.l.Info("rmq - AMQPTranscoder - reply queue %s bound to exchange %s", queue.Name, c.cfg.Exchange)
	return deliveries, nil
}

// consumeReplies closes s.done when the reply consumer stops for any reason.
func (c *AMQPTranscoder) consumeReplies(s *session, deliveries <-chan amqp.Delivery, closed <-chan *amqp.Error) {
	defer close(s.done)

	for d := range deliveries {
		if !c.pending.Resolve(d.CorrelationId, replyFromDelivery(d)) {
			c.l.Warn("rmq - AMQPTranscoder - dropping reply with unknown correlation id %s", d.CorrelationId)
		}
	}

	select {
	case amqpErr := <-closed:
		if amqpErr != nil {
			c.l.Error(amqpErr, "rmq - AMQPTranscoder - channel closed by broker")
			return
		}
	default:
	}
	c.l.Warn("rmq - AMQPTranscoder - reply consumer on %s stopped", s.replyQueue)
}

// current returns a live session, dialing a new one when the last was closed.
// c.mu must be held.
func (c *AMQPTranscoder) current() (*session, error) {
	if c.closed {
		return nil, errClientClosed
	}
	if c.sess != nil {
		select {
		case <-c.sess.done:
			c.retire(c.sess)
		default:
			return c.sess, nil
		}
	}

	c.l.Info("rmq - AMQPTranscoder - connecting to broker")
	s, err := c.dial()
	if err != nil {
		return nil, err
	}
	c.sess = s
	return s, nil
}

// retire drops s so the next call dials again. c.mu must be held.
func (c *AMQPTranscoder) retire(s *session) {
	if c.sess == s {
		c.sess = nil
	}
	// the broker may already have closed it
	_ = s.conn.Close()
}

// Transcode publishes the whole input and waits for the worker's reply.
func (c *AMQPTranscoder) Transcode(ctx context.Context, in io.Reader, sourceExt string, out io.Writer) error {
	ctx, span := otel.Tracer(traceName).Start(ctx, "Transcode")
	defer span.End()

	body, err := c.readRequest(in)
	if err != nil {
		return err
	}

	corrID := uuid.New().String()
	replies := c.pending.Register(corrID)
	defer c.pending.Cancel(corrID)

	sess, err := c.publish(corrID, sourceExt, body)
	if err != nil {
		return &entity.TranscodeError{Kind: entity.EngineUnavailable, Reason: err.Error()}
	}

	if c.cfg.RPCTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.RPCTimeout)
		defer cancel()
	}

	select {
	case r := <-replies:
		if r.Err != nil {
			return r.Err
		}
		if _, err := out.Write(r.Body); err != nil {
			return errors.Wrap(err, "write transcoded output")
		}
		return nil
	case <-sess.done:
		return &entity.TranscodeError{Kind: entity.EngineUnavailable, Reason: "broker connection closed"}
	case <-ctx.Done():
		return &entity.TranscodeError{Kind: entity.EngineUnavailable, Reason: "no reply from transcode worker: " + ctx.Err().Error()}
	}
}

// readRequest refuses inputs the broker would answer with a channel close.
func (c *AMQPTranscoder) readRequest(in io.Reader) ([]byte, error) {
	if c.cfg.MaxMessageSize <= 0 {
		body, err := io.ReadAll(in)
		if err != nil {
			return nil, &entity.TranscodeError{Kind: entity.EncodingFailed, Reason: err.Error()}
		}
		return body, nil
	}

	body, err := io.ReadAll(io.LimitReader(in, c.cfg.MaxMessageSize+1))
	if err != nil {
		return nil, &entity.TranscodeError{Kind: entity.EncodingFailed, Reason: err.Error()}
	}
	if int64(len(body)) > c.cfg.MaxMessageSize {
		return nil, &entity.TranscodeError{
			Kind:   entity.EncodingFailed,
			Reason: fmt.Sprintf("input exceeds the broker message limit of %d bytes", c.cfg.MaxMessageSize),
		}
	}
	return body, nil
}

// publish retries once on a fresh session when the current channel is
// already closed.
func (c *AMQPTranscoder) publish(corrID, sourceExt string, body []byte) (*session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for attempt := 0; ; attempt++ {
		sess, err := c.current()
		if err != nil {
			return nil, err
		}

		msg := amqp.Publishing{
			ContentType:   "application/octet-stream",
			DeliveryMode:  amqp.Transient,
			MessageId:     uuid.New().String(),
			Timestamp:     time.Now(),
			CorrelationId: corrID,
			ReplyTo:       sess.replyQueue,
			Headers:       amqp.Table{headerSourceExt: sourceExt},
			Body:          body,
		}
		if c.cfg.RPCTimeout > 0 {
			// nobody waits for the reply after that
			msg.Expiration = formatMillis(c.cfg.RPCTimeout)
		}

		err = sess.ch.Publish(c.cfg.Exchange, routingKey, publishMandatory, publishImmediate, msg)
		if err == nil {
			return sess, nil
		}
		if !errors.Is(err, amqp.ErrClosed) || attempt > 0 {
			return nil, errors.Wrap(err, "ch.Publish")
		}
		c.retire(sess)
	}
}

// Close -.
func (c *AMQPTranscoder) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	if c.sess == nil {
		return nil
	}
	sess := c.sess
	c.sess = nil

	if err := sess.ch.Close(); err != nil {
		c.l.Error(err, "rmq - AMQPTranscoder - CloseChan")
	}
	return sess.conn.Close()
}

// replyFromDelivery turns the worker's reply back into output or a TranscodeError.
func replyFromDelivery(d amqp.Delivery) Reply {
	kind, ok := d.Headers[headerErrorKind].(string)
	if !ok || kind == "" {
		return Reply{Body: d.Body}
	}
	reason, _ := d.Headers[headerErrorReason].(string)
	return Reply{Err: &entity.TranscodeError{Kind: entity.ParseTranscodeErrorKind(kind), Reason: reason}}
}
