package server

import (
	"context"

	"github.com/tongue/fotbroms/internal/config"
	"github.com/tongue/fotbroms/internal/errors"
	"github.com/tongue/fotbroms/pkg/upload"
)

// OpenStore creates the storage backend selected by cfg.
func OpenStore(ctx context.Context, cfg *config.Config) (upload.Store, error) {
	maxSize := cfg.Server.MaxFileSize

	switch cfg.Storage.Backend {
	case config.BackendDisk:
		store, err := upload.NewDiskStore(cfg.Storage.Dir, maxSize)
		if err != nil {
			return nil, errors.New("S004").Wrap(err)
		}
		return store.WithPrefix(cfg.Storage.Prefix), nil

	case config.BackendS3:
		client, err := upload.NewS3Client(ctx, upload.S3ClientOptions{
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			UsePathStyle:    cfg.S3.UsePathStyle,
		})
		if err != nil {
			return nil, errors.New("S004").Wrap(err)
		}
		return upload.NewS3Store(client, cfg.S3.Bucket, cfg.Storage.Prefix, maxSize), nil

	default:
		return nil, errors.New("C001").WithDetailf("unknown storage backend %q", cfg.Storage.Backend)
	}
}
