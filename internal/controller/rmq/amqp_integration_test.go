package rmq

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"waveconv/config"
	"waveconv/entity"
	"waveconv/pkg/logger"
)

func setupRabbitMQ(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "rabbitmq:3-alpine",
			ExposedPorts: []string{"5672/tcp"},
			WaitingFor:   wait.ForLog("Server startup complete").WithStartupTimeout(2 * time.Minute),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := c.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, "5672")
	require.NoError(t, err)

	return fmt.Sprintf("amqp://guest:guest@%s:%s/", host, port.Port())
}

func TestAMQPTranscoder_RoundTrip(t *testing.T) {
	url := setupRabbitMQ(t)
	l := logger.New("disabled")
	cfg := config.RMQ{
		URL:            url,
		Exchange:       "waveconv-test",
		RequestQueue:   "transcode_request_test",
		RPCTimeout:     30 * time.Second,
		MaxMessageSize: 1024 * 1024,
	}

	worker, err := NewAMQPWorker(cfg, l, transcodeFunc(func(ctx context.Context, in io.Reader, ext string, out io.Writer) error {
		if ext == "mp4" {
			return &entity.TranscodeError{Kind: entity.InvalidInputFormat, Reason: "moov atom not found"}
		}
		return tagWithExt(ctx, in, ext, out)
	}))
	require.NoError(t, err)
	t.Cleanup(func() { worker.CloseChan() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go worker.StartConsumer(ctx)

	client, err := NewAMQPTranscoder(cfg, l)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	// the worker declares its queue asynchronously
	require.Eventually(t, func() bool {
		ch, err := liveSession(client).conn.Channel()
		if err != nil {
			return false
		}
		defer ch.Close()
		q, err := ch.QueueInspect(cfg.RequestQueue)
		return err == nil && q.Consumers > 0
	}, 30*time.Second, 100*time.Millisecond)

	t.Run("success", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, client.Transcode(context.Background(), strings.NewReader("pcm"), "wav", &out))
		assert.Equal(t, "wav:pcm", out.String())
	})

	t.Run("remote error", func(t *testing.T) {
		var out bytes.Buffer
		err := client.Transcode(context.Background(), strings.NewReader("junk"), "mp4", &out)

		var te *entity.TranscodeError
		require.ErrorAs(t, err, &te)
		assert.Equal(t, entity.InvalidInputFormat, te.Kind)
		assert.Zero(t, out.Len())
	})

	t.Run("reconnects after the broker closes the channel", func(t *testing.T) {
		old := liveSession(client)
		// publishing to a missing exchange makes the broker close the channel with 404
		require.NoError(t, old.ch.Publish("no-such-exchange", routingKey, false, false, amqp.Publishing{Body: []byte("x")}))

		select {
		case <-old.done:
		case <-time.After(10 * time.Second):
			t.Fatal("reply consumer did not stop")
		}

		var out bytes.Buffer
		require.NoError(t, client.Transcode(context.Background(), strings.NewReader("pcm"), "wav", &out))
		assert.Equal(t, "wav:pcm", out.String())
		assert.NotSame(t, old, liveSession(client))
	})

	t.Run("canceled caller", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := client.Transcode(ctx, strings.NewReader("pcm"), "wav", io.Discard)
		var te *entity.TranscodeError
		if err != nil {
			require.ErrorAs(t, err, &te)
			assert.Equal(t, entity.EngineUnavailable, te.Kind)
		}
		assert.Zero(t, client.pending.Len())
	})
}

func liveSession(c *AMQPTranscoder) *session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess
}
