package miniorepo

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.opentelemetry.io/otel"

	"waveconv/entity"
)

const traceName = "Minio-Repo"

// Config -.
type Config struct {
	Endpoint   string // host:port, a scheme prefix selects TLS
	AccessKey  string
	SecretKey  string
	Bucket     string
	Region     string
	UseSSL     bool
	PublicURL  string
	Presign    bool
	PresignTTL time.Duration
	// PartSize bounds the buffer minio-go allocates per Put. Zero means
	// DefaultPartSize.
	PartSize uint64
}

// DefaultPartSize -.
const DefaultPartSize = 16 * 1024 * 1024

// Repository is an entity.ArtifactStore backed by a MinIO bucket.
type Repository struct {
	client *minio.Client
	cfg    Config
}

var _ entity.ArtifactStore = (*Repository)(nil)

// New connects to MinIO and creates the bucket when missing.
func New(ctx context.Context, cfg Config) (*Repository, error) {
	endpoint, secure := splitEndpoint(cfg.Endpoint, cfg.UseSSL)

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check if bucket exists: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return &Repository{client: client, cfg: cfg}, nil
}

func splitEndpoint(endpoint string, useSSL bool) (string, bool) {
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return endpoint, useSSL
	}
	return u.Host, u.Scheme == "https"
}

// Put streams r with an unknown size, one part at a time.
func (r *Repository) Put(ctx context.Context, key string, body io.Reader, contentType string) (entity.StoredRef, error) {
	ctx, span := otel.Tracer(traceName).Start(ctx, "Put")
	defer span.End()

	info, err := r.client.PutObject(ctx, r.cfg.Bucket, key, body, -1, r.putOptions(contentType))
	if err != nil {
		return entity.StoredRef{}, fmt.Errorf("failed to put object: %w", err)
	}
	return entity.StoredRef{Key: key, Size: info.Size}, nil
}

// putOptions always sets PartSize: without it minio-go sizes the part buffer
// for a 5 TiB object when the length is unknown.
func (r *Repository) putOptions(contentType string) minio.PutObjectOptions {
	partSize := r.cfg.PartSize
	if partSize == 0 {
		partSize = DefaultPartSize
	}
	return minio.PutObjectOptions{ContentType: contentType, PartSize: partSize}
}

func (r *Repository) Get(ctx context.Context, key string) (*entity.Artifact, error) {
	ctx, span := otel.Tracer(traceName).Start(ctx, "Get")
	defer span.End()

	obj, err := r.client.GetObject(ctx, r.cfg.Bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, mapErr("get object", err)
	}
	st, err := obj.Stat()
	if err != nil {
		obj.Close()
		return nil, mapErr("stat object", err)
	}

	return &entity.Artifact{
		Body:        obj,
		Size:        st.Size,
		ContentType: st.ContentType,
		ModTime:     st.LastModified,
	}, nil
}

func (r *Repository) Delete(ctx context.Context, key string) error {
	ctx, span := otel.Tracer(traceName).Start(ctx, "Delete")
	defer span.End()

	if err := r.client.RemoveObject(ctx, r.cfg.Bucket, key, minio.RemoveObjectOptions{}); err != nil {
		if isNoSuchKey(err) {
			return nil
		}
		return fmt.Errorf("failed to remove object: %w", err)
	}
	return nil
}

func (r *Repository) List(ctx context.Context, prefix string) ([]entity.ArtifactInfo, error) {
	ctx, span := otel.Tracer(traceName).Start(ctx, "List")
	defer span.End()

	var out []entity.ArtifactInfo
	for obj := range r.client.ListObjects(ctx, r.cfg.Bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", obj.Err)
		}
		out = append(out, entity.ArtifactInfo{Key: obj.Key, Size: obj.Size, ModTime: obj.LastModified})
	}
	return out, nil
}

// PublicURL prefers a configured public base URL, then a presigned GET.
func (r *Repository) PublicURL(ctx context.Context, key string) (string, error) {
	if r.cfg.PublicURL != "" {
		return strings.TrimSuffix(r.cfg.PublicURL, "/") + "/" + key, nil
	}
	if !r.cfg.Presign {
		return "", nil
	}

	params := make(url.Values)
	params.Set("response-content-disposition", fmt.Sprintf("attachment; filename=%q", path.Base(key)))

	u, err := r.client.PresignedGetObject(ctx, r.cfg.Bucket, key, r.cfg.PresignTTL, params)
	if err != nil {
		return "", fmt.Errorf("failed to presign object: %w", err)
	}
	return u.String(), nil
}

func isNoSuchKey(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound
}

func mapErr(op string, err error) error {
	if isNoSuchKey(err) {
		return entity.ErrNotFound
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}
