package s3repo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.opentelemetry.io/otel"

	"waveconv/entity"
)

const traceName = "S3-Repo"

// Config -.
type Config struct {
	Bucket     string
	Region     string
	Endpoint   string // empty for AWS, e.g. http://localhost:9000 for S3-compatible stores
	AccessKey  string
	SecretKey  string
	PathStyle  bool
	PublicURL  string
	Presign    bool
	PresignTTL time.Duration
}

type S3Repository struct {
	client  *s3.Client
	presign *s3.PresignClient
	cfg     Config
}

var _ entity.ArtifactStore = (*S3Repository)(nil)

func NewS3Repository(ctx context.Context, cfg Config) (*S3Repository, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}

	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	if cfg.Endpoint != "" {
		resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...any) (aws.Endpoint, error) {
			return aws.Endpoint{
				PartitionID:       "aws",
				SigningRegion:     cfg.Region,
				URL:               cfg.Endpoint,
				HostnameImmutable: true,
			}, nil
		})
		opts = append(opts, awsconfig.WithEndpointResolverWithOptions(resolver))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3repo - NewS3Repository - LoadDefaultConfig: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
	})

	repo := &S3Repository{client: client, presign: s3.NewPresignClient(client), cfg: cfg}
	if err := repo.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return repo, nil
}

func (s3Repo *S3Repository) ensureBucket(ctx context.Context) error {
	_, err := s3Repo.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s3Repo.cfg.Bucket)})
	if err == nil {
		return nil
	}
	var nf *types.NotFound
	if !errors.As(err, &nf) && !isStatus(err, http.StatusNotFound) {
		return fmt.Errorf("s3repo - HeadBucket: %w", err)
	}

	input := &s3.CreateBucketInput{Bucket: aws.String(s3Repo.cfg.Bucket)}
	if s3Repo.cfg.Region != "" && s3Repo.cfg.Region != "us-east-1" {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(s3Repo.cfg.Region),
		}
	}
	if _, err := s3Repo.client.CreateBucket(ctx, input); err != nil {
		return fmt.Errorf("s3repo - CreateBucket: %w", err)
	}
	return nil
}

// Put streams r to the bucket with the multipart uploader.
func (s3Repo *S3Repository) Put(ctx context.Context, key string, r io.Reader, contentType string) (entity.StoredRef, error) {
	ctx, span := otel.Tracer(traceName).Start(ctx, "Put")
	defer span.End()

	uploader := manager.NewUploader(s3Repo.client)

	cr := &countingReader{r: r}
	input := &s3.PutObjectInput{
		Bucket: aws.String(s3Repo.cfg.Bucket),
		Key:    aws.String(key),
		Body:   cr,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := uploader.Upload(ctx, input); err != nil {
		return entity.StoredRef{}, fmt.Errorf("s3repo - Put - Upload: %w", err)
	}

	return entity.StoredRef{Key: key, Size: cr.n.Load()}, nil
}

func (s3Repo *S3Repository) Get(ctx context.Context, key string) (*entity.Artifact, error) {
	ctx, span := otel.Tracer(traceName).Start(ctx, "Get")
	defer span.End()

	out, err := s3Repo.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s3Repo.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, entity.ErrNotFound
		}
		return nil, fmt.Errorf("s3repo - Get - GetObject: %w", err)
	}

	return &entity.Artifact{
		Body:        out.Body,
		Size:        out.ContentLength,
		ContentType: aws.ToString(out.ContentType),
		ModTime:     aws.ToTime(out.LastModified),
	}, nil
}

func (s3Repo *S3Repository) Delete(ctx context.Context, key string) error {
	ctx, span := otel.Tracer(traceName).Start(ctx, "Delete")
	defer span.End()

	_, err := s3Repo.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s3Repo.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("s3repo - Delete - DeleteObject: %w", err)
	}
	return nil
}

func (s3Repo *S3Repository) List(ctx context.Context, prefix string) ([]entity.ArtifactInfo, error) {
	ctx, span := otel.Tracer(traceName).Start(ctx, "List")
	defer span.End()

	p := s3.NewListObjectsV2Paginator(s3Repo.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s3Repo.cfg.Bucket),
		Prefix: aws.String(prefix),
	})

	var out []entity.ArtifactInfo
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("s3repo - List - NextPage: %w", err)
		}
		for _, obj := range page.Contents {
			out = append(out, entity.ArtifactInfo{
				Key:     aws.ToString(obj.Key),
				Size:    obj.Size,
				ModTime: aws.ToTime(obj.LastModified),
			})
		}
	}
	return out, nil
}

// PublicURL prefers a configured public base URL, then a presigned GET.
func (s3Repo *S3Repository) PublicURL(ctx context.Context, key string) (string, error) {
	if s3Repo.cfg.PublicURL != "" {
		return strings.TrimSuffix(s3Repo.cfg.PublicURL, "/") + "/" + key, nil
	}
	if !s3Repo.cfg.Presign {
		return "", nil
	}

	req, err := s3Repo.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket:                     aws.String(s3Repo.cfg.Bucket),
		Key:                        aws.String(key),
		ResponseContentDisposition: aws.String(fmt.Sprintf("attachment; filename=%q", path.Base(key))),
	}, s3.WithPresignExpires(s3Repo.cfg.PresignTTL))
	if err != nil {
		return "", fmt.Errorf("s3repo - PublicURL - PresignGetObject: %w", err)
	}
	return req.URL, nil
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	return isStatus(err, http.StatusNotFound)
}

func isStatus(err error, code int) bool {
	var re *awshttp.ResponseError
	return errors.As(err, &re) && re.HTTPStatusCode() == code
}

type countingReader struct {
	r io.Reader
	n atomic.Int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n.Add(int64(n))
	return n, err
}
