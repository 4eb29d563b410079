package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type s3Putter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Options configures the S3 backend. Credentials come from the default AWS
// chain (environment, shared config, or the execution role).
type S3Options struct {
	Bucket        string
	Region        string
	PublicBaseURL string
}

// S3Store uploads objects to a single bucket.
type S3Store struct {
	client  s3Putter
	bucket  string
	baseURL string
}

func NewS3Store(ctx context.Context, opts S3Options) (*S3Store, error) {
	bucket := strings.TrimSpace(opts.Bucket)
	if bucket == "" {
		return nil, errors.New("storage: s3 bucket is required")
	}
	region := strings.TrimSpace(opts.Region)
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("storage: load aws config: %w", err)
	}
	return newS3Store(s3.NewFromConfig(awsCfg), bucket, region, opts.PublicBaseURL), nil
}

func newS3Store(client s3Putter, bucket, region, publicBaseURL string) *S3Store {
	base := strings.TrimRight(strings.TrimSpace(publicBaseURL), "/")
	if base == "" {
		base = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", bucket, region)
	}
	return &S3Store{client: client, bucket: bucket, baseURL: base}
}

func (s *S3Store) String() string { return "s3" }

// Put uploads obj. S3 always overwrites, which matches how draft keys are
// meant to be reused.
func (s *S3Store) Put(ctx context.Context, obj Object) (Reference, error) {
	key, err := sanitizeKey(obj.Key())
	if err != nil {
		return Reference{}, err
	}
	contentType := strings.TrimSpace(obj.MIMEType)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(obj.Bytes),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(obj.Bytes))),
	})
	if err != nil {
		return Reference{}, fmt.Errorf("storage: s3 put %s: %w", key, err)
	}
	return Reference{URL: s.baseURL + "/" + key, Key: key}, nil
}

var _ Store = (*S3Store)(nil)
