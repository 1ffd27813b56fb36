package s3repo_test

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"waveconv/internal/storage/s3repo"
	"waveconv/internal/storage/storagetest"
)

const (
	testAccessKey = "minioadmin"
	testSecretKey = "minioadmin"
	testBucket    = "waveconv-s3"
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

	return fmt.Sprintf("http://%s:%s", host, port.Port())
}

func newRepo(t *testing.T, endpoint string, mutate func(*s3repo.Config)) *s3repo.S3Repository {
	t.Helper()
	cfg := s3repo.Config{
		Bucket:     testBucket,
		Region:     "us-east-1",
		Endpoint:   endpoint,
		AccessKey:  testAccessKey,
		SecretKey:  testSecretKey,
		PathStyle:  true,
		PresignTTL: 15 * time.Minute,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	repo, err := s3repo.NewS3Repository(context.Background(), cfg)
	require.NoError(t, err)
	return repo
}

func TestS3Repository(t *testing.T) {
	endpoint := setupContainer(t)
	repo := newRepo(t, endpoint, nil)

	storagetest.Run(t, repo)

	t.Run("no public url by default", func(t *testing.T) {
		u, err := repo.PublicURL(context.Background(), "converted/a.oga")
		require.NoError(t, err)
		assert.Empty(t, u)
	})

	t.Run("presigned url", func(t *testing.T) {
		presigning := newRepo(t, endpoint, func(c *s3repo.Config) { c.Presign = true })

		raw, err := presigning.PublicURL(context.Background(), "converted/a.oga")
		require.NoError(t, err)

		u, err := url.Parse(raw)
		require.NoError(t, err)
		assert.Equal(t, "AWS4-HMAC-SHA256", u.Query().Get("X-Amz-Algorithm"))
		assert.True(t, strings.HasPrefix(u.Query().Get("response-content-disposition"), "attachment"))
	})

	t.Run("public base url", func(t *testing.T) {
		public := newRepo(t, endpoint, func(c *s3repo.Config) { c.PublicURL = "https://cdn.example.com/" })

		u, err := public.PublicURL(context.Background(), "converted/a.oga")
		require.NoError(t, err)
		assert.Equal(t, "https://cdn.example.com/converted/a.oga", u)
	})
}
