// Package storage holds the object stores uploads are delivered to.
package storage

import (
	"context"
	"errors"
	"fmt"
	"net"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/supplyhub/backend/internal/config"
	"github.com/supplyhub/backend/internal/core/ports"
	"github.com/supplyhub/backend/internal/domain"
	"github.com/supplyhub/backend/internal/infrastructure/logger"
)

const defaultContentType = "application/octet-stream"

// S3API is the subset of the S3 client used here, so tests can swap it out.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Client stores assets as objects in one bucket.
type S3Client struct {
	api       S3API
	bucket    string
	prefix    string
	publicURL string
	log       *logger.Logger
}

// NewS3Client loads credentials from the default AWS chain.
func NewS3Client(ctx context.Context, cfg config.S3Config, log *logger.Logger) (*S3Client, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	if awsCfg.Region == "" {
		awsCfg.Region = "us-east-1"
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	if cfg.PathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	return NewS3ClientWithAPI(s3.NewFromConfig(awsCfg, s3Opts...), cfg, log), nil
}

func NewS3ClientWithAPI(api S3API, cfg config.S3Config, log *logger.Logger) *S3Client {
	if log == nil {
		log = logger.NewNop()
	}
	return &S3Client{
		api:       api,
		bucket:    cfg.Bucket,
		prefix:    strings.Trim(cfg.Prefix, "/"),
		publicURL: strings.TrimRight(cfg.PublicURL, "/"),
		log:       log,
	}
}

func (c *S3Client) Upload(ctx context.Context, file domain.SourceFile, progress ports.ProgressReporter) (*domain.StoredObject, error) {
	key := ObjectKey(c.prefix, file)
	contentType := file.ContentType
	if contentType == "" {
		contentType = defaultContentType
	}
	size := int64(len(file.Content))

	out, err := c.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.bucket),
		Key:           aws.String(key),
		Body:          newProgressReader(file.Content, progress),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return nil, convertAWSError(ctx, "put", err)
	}

	c.log.Debugw("s3_object_put", "bucket", c.bucket, "key", key, "size", size)
	return &domain.StoredObject{
		Key:         key,
		URL:         c.objectURL(key),
		Size:        size,
		ContentType: contentType,
		ETag:        strings.Trim(aws.ToString(out.ETag), `"`),
	}, nil
}

func (c *S3Client) Remove(ctx context.Context, key string) error {
	_, err := c.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return convertAWSError(ctx, "delete", err)
	}
	c.log.Debugw("s3_object_deleted", "bucket", c.bucket, "key", key)
	return nil
}

func (c *S3Client) objectURL(key string) string {
	if c.publicURL != "" {
		return c.publicURL + "/" + key
	}
	return "s3://" + c.bucket + "/" + key
}

// ObjectKey derives the storage key of a file: "<upload id>-<base name>" under
// prefix, or just the base name when the file carries no upload id.
func ObjectKey(prefix string, file domain.SourceFile) string {
	base := path.Base(strings.ReplaceAll(file.Name, "\\", "/"))
	switch base {
	case ".", "..", "/", "":
		base = "unnamed"
	}
	if file.UploadID != "" {
		base = file.UploadID + "-" + base
	}
	if prefix == "" {
		return base
	}
	return prefix + "/" + base
}

// convertAWSError maps SDK failures onto the transfer error taxonomy.
func convertAWSError(ctx context.Context, op string, err error) error {
	if errors.Is(err, context.Canceled) || (ctx.Err() != nil && errors.Is(ctx.Err(), context.Canceled)) {
		return domain.NewTransferError(domain.ErrorKindCanceled, op, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.NewTimeoutError(op, err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		msg := apiErr.ErrorCode()
		if m := apiErr.ErrorMessage(); m != "" {
			msg += ": " + m
		}
		te := domain.NewServerError(op, msg)
		te.Err = fmt.Errorf("%w: %w", domain.ErrTransferServer, err)
		return te
	}

	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return domain.NewTimeoutError(op, err)
	}
	return domain.NewNetworkError(op, err)
}
