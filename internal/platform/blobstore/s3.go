package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// S3API is the subset of *s3.Client used by S3Store.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Store writes objects with PutObject. Non-upsert writes use a
// conditional If-None-Match: * so that an existing key fails instead of
// being replaced.
type S3Store struct {
	client     S3API
	publicBase string
}

// NewS3Store returns a store whose public URLs start with publicBase.
func NewS3Store(client S3API, publicBase string) *S3Store {
	return &S3Store{client: client, publicBase: publicBase}
}

// NewS3Client builds a path-style client from an SDK config. endpoint may
// be empty to use the regional AWS endpoint.
func NewS3Client(cfg aws.Config, endpoint string) *s3.Client {
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
	})
}

func (s *S3Store) Put(ctx context.Context, bucket, path string, body []byte, opts PutOptions) error {
	in := &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(path),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
	}
	if opts.ContentType != "" {
		in.ContentType = aws.String(opts.ContentType)
	}
	if !opts.Upsert {
		in.IfNoneMatch = aws.String("*")
	}

	if _, err := s.client.PutObject(ctx, in); err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "PreconditionFailed" {
			return ErrObjectExists
		}
		return fmt.Errorf("put s3://%s/%s: %w", bucket, path, err)
	}
	return nil
}

func (s *S3Store) PublicURL(bucket, path string) string {
	return publicURL(s.publicBase, bucket, path)
}
