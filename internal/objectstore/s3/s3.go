package s3

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"s3-etl-pipeline/internal/entity"
	"s3-etl-pipeline/internal/objectstore"
)

type Config struct {
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
	// Endpoint overrides the AWS endpoint, e.g. for localstack. Path-style
	// addressing is used when it is set.
	Endpoint string
}

type Gateway struct {
	bucket string
	client *s3.Client
}

func New(ctx context.Context, cfg Config) (*Gateway, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &Gateway{bucket: cfg.Bucket, client: client}, nil
}

func (g *Gateway) List(ctx context.Context, prefix string, since time.Time) ([]entity.ObjectInfo, error) {
	p := s3.NewListObjectsV2Paginator(g.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(g.bucket),
		Prefix: aws.String(prefix),
	})

	var out []entity.ObjectInfo
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", prefix, classify(err))
		}
		for _, obj := range page.Contents {
			modified := aws.ToTime(obj.LastModified)
			if modified.Before(since) {
				continue
			}
			out = append(out, entity.ObjectInfo{
				Location:     objectstore.Location(g.bucket, aws.ToString(obj.Key)),
				ModifiedTime: modified.UTC(),
				SizeBytes:    aws.ToInt64(obj.Size),
			})
		}
	}
	return out, nil
}

func (g *Gateway) StreamRows(ctx context.Context, location string) (*objectstore.RowReader, error) {
	bucket, key, err := objectstore.ParseLocation(location)
	if err != nil {
		return nil, err
	}
	out, err := g.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", location, classify(err))
	}
	return objectstore.NewRowReader(out.Body)
}

func (g *Gateway) BucketExists(ctx context.Context) (bool, error) {
	_, err := g.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(g.bucket)})
	if err == nil {
		return true, nil
	}
	err = classify(err)
	if errors.Is(err, objectstore.ErrNotFound) {
		return false, nil
	}
	return false, err
}

func classify(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NoSuchBucket", "NotFound":
			return fmt.Errorf("%w: %w", objectstore.ErrNotFound, err)
		case "AccessDenied", "Forbidden", "InvalidAccessKeyId", "SignatureDoesNotMatch":
			return fmt.Errorf("%w: %w", objectstore.ErrAccessDenied, err)
		}
	}
	return fmt.Errorf("%w: %w", objectstore.ErrTransient, err)
}
