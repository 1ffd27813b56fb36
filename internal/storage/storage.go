// Package storage selects the artifact store backend.
package storage

import (
	"context"
	"fmt"

	"waveconv/config"
	"waveconv/entity"
	"waveconv/internal/storage/localfs"
	"waveconv/internal/storage/miniorepo"
	"waveconv/internal/storage/s3repo"
	"waveconv/pkg/logger"
)

// New returns the store named by cfg.Storage.Backend.
func New(ctx context.Context, cfg *config.Config, l logger.Interface) (entity.ArtifactStore, error) {
	sc := cfg.Storage

	var (
		store entity.ArtifactStore
		err   error
	)

	switch sc.Backend {
	case "local":
		l.Info("storage - New - local dir %s", sc.LocalDir)
		store, err = localfs.New(sc.LocalDir)
	case "s3":
		l.Info("storage - New - s3 bucket %s", sc.Bucket)
		store, err = s3repo.NewS3Repository(ctx, s3repo.Config{
			Bucket:     sc.Bucket,
			Region:     sc.Region,
			Endpoint:   sc.Endpoint,
			AccessKey:  sc.AccessKey,
			SecretKey:  sc.SecretKey,
			PathStyle:  sc.PathStyle,
			PublicURL:  sc.PublicURL,
			Presign:    sc.Presign,
			PresignTTL: sc.PresignTTL,
		})
	case "minio":
		l.Info("storage - New - minio bucket %s at %s", sc.Bucket, sc.Endpoint)
		store, err = miniorepo.New(ctx, miniorepo.Config{
			Endpoint:   sc.Endpoint,
			AccessKey:  sc.AccessKey,
			SecretKey:  sc.SecretKey,
			Bucket:     sc.Bucket,
			Region:     sc.Region,
			UseSSL:     sc.UseSSL,
			PublicURL:  sc.PublicURL,
			Presign:    sc.Presign,
			PresignTTL: sc.PresignTTL,
			PartSize:   sc.PartSize,
		})
	default:
		return nil, fmt.Errorf("storage - New - unknown backend %q", sc.Backend)
	}
	if err != nil {
		return nil, err
	}
	return store, nil
}
