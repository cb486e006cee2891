package minio

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"s3-etl-pipeline/internal/entity"
	"s3-etl-pipeline/internal/objectstore"
)

type Config struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
}

// Gateway talks to S3-compatible stores (MinIO, Ceph, localstack).
type Gateway struct {
	bucket string
	client *minio.Client
}

func New(cfg Config) (*Gateway, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}
	return &Gateway{bucket: cfg.Bucket, client: client}, nil
}

func (g *Gateway) List(ctx context.Context, prefix string, since time.Time) ([]entity.ObjectInfo, error) {
	var out []entity.ObjectInfo
	for obj := range g.client.ListObjects(ctx, g.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list %s: %w", prefix, classify(obj.Err))
		}
		if obj.LastModified.Before(since) {
			continue
		}
		out = append(out, entity.ObjectInfo{
			Location:     objectstore.Location(g.bucket, obj.Key),
			ModifiedTime: obj.LastModified.UTC(),
			SizeBytes:    obj.Size,
		})
	}
	return out, nil
}

func (g *Gateway) StreamRows(ctx context.Context, location string) (*objectstore.RowReader, error) {
	bucket, key, err := objectstore.ParseLocation(location)
	if err != nil {
		return nil, err
	}
	obj, err := g.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", location, classify(err))
	}
	// GetObject is lazy; Stat surfaces missing keys before any row is read.
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		return nil, fmt.Errorf("get %s: %w", location, classify(err))
	}
	return objectstore.NewRowReader(obj)
}

func (g *Gateway) BucketExists(ctx context.Context) (bool, error) {
	ok, err := g.client.BucketExists(ctx, g.bucket)
	if err != nil {
		return false, classify(err)
	}
	return ok, nil
}

func classify(err error) error {
	resp := minio.ToErrorResponse(err)
	switch {
	case resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket" || resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %w", objectstore.ErrNotFound, err)
	case resp.Code == "AccessDenied" || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %w", objectstore.ErrAccessDenied, err)
	default:
		return fmt.Errorf("%w: %w", objectstore.ErrTransient, err)
	}
}
