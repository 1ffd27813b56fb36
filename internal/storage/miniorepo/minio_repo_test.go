package miniorepo_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"waveconv/internal/storage/miniorepo"
	"waveconv/internal/storage/storagetest"
)

const (
	testAccessKey = "minioadmin"
	testSecretKey = "minioadmin"
	testBucket    = "waveconv-minio"
)

func setupContainer(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "minio/minio:latest",
			ExposedPorts: []string{"9000/tcp"},
			Env: map[string]string{
				"MINIO_ROOT_USER":     testAccessKey,
				"MINIO_ROOT_PASSWORD": testSecretKey,
			},
			Cmd:        []string{"server", "/data"},
			WaitingFor: wait.ForHTTP("/minio/health/live").WithPort("9000"),
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
	port, err := c.MappedPort(ctx, "9000")
	require.NoError(t, err)

	return fmt.Sprintf("%s:%s", host, port.Port())
}

func TestRepository(t *testing.T) {
	endpoint := setupContainer(t)
	ctx := context.Background()

	cfg := miniorepo.Config{
		Endpoint:   endpoint,
		AccessKey:  testAccessKey,
		SecretKey:  testSecretKey,
		Bucket:     testBucket,
		PresignTTL: 15 * time.Minute,
	}
	repo, err := miniorepo.New(ctx, cfg)
	require.NoError(t, err)

	storagetest.Run(t, repo)

	t.Run("bucket creation is idempotent", func(t *testing.T) {
		_, err := miniorepo.New(ctx, cfg)
		assert.NoError(t, err)
	})

	t.Run("unknown length spans several parts", func(t *testing.T) {
		c := cfg
		c.PartSize = 5 * 1024 * 1024
		small, err := miniorepo.New(ctx, c)
		require.NoError(t, err)

		payload := bytes.Repeat([]byte{0x4f}, 11*1024*1024)
		ref, err := small.Put(ctx, "uploads/big.mov", io.MultiReader(bytes.NewReader(payload)), "")
		require.NoError(t, err)
		assert.Equal(t, int64(len(payload)), ref.Size)

		got, err := small.Get(ctx, "uploads/big.mov")
		require.NoError(t, err)
		defer got.Body.Close()
		body, err := io.ReadAll(got.Body)
		require.NoError(t, err)
		assert.Equal(t, payload, body)
	})

	t.Run("presigned url", func(t *testing.T) {
		c := cfg
		c.Presign = true
		presigning, err := miniorepo.New(ctx, c)
		require.NoError(t, err)

		raw, err := presigning.PublicURL(ctx, "converted/a.oga")
		require.NoError(t, err)
		u, err := url.Parse(raw)
		require.NoError(t, err)
		assert.NotEmpty(t, u.Query().Get("X-Amz-Signature"))
		assert.True(t, strings.HasPrefix(u.Query().Get("response-content-disposition"), "attachment"))
	})
}
