// Copyright (c) 2025 Michael D Henderson. All rights reserved.

package export

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/mdhender/blogbatch/model"
	"github.com/spf13/afero"
)

// SaveTo writes the archive to dir/name on fs and returns its path and
// entry count. No file is created when nothing is selected.
func SaveTo(fs afero.Fs, dir, name string, results []model.ProcessResult) (string, int, error) {
	data, n, err := Bytes(results)
	if err != nil {
		return "", 0, err
	}
	if err := fs.MkdirAll(dir, 0755); err != nil {
		return "", 0, fmt.Errorf("mkdir %s: %w", dir, err)
	}
	full := filepath.Join(dir, name)
	if err := afero.WriteFile(fs, full, data, 0644); err != nil {
		return "", 0, fmt.Errorf("write %s: %w", full, err)
	}
	return full, n, nil
}

// Uploader is the part of the S3 client used by S3Sink.
type Uploader interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Sink uploads archives to a bucket.
type S3Sink struct {
	client    Uploader
	bucket    string
	keyPrefix string
}

func NewS3Sink(client Uploader, bucket, keyPrefix string) *S3Sink {
	return &S3Sink{client: client, bucket: bucket, keyPrefix: keyPrefix}
}

// NewS3SinkFromEnv loads the default AWS configuration (environment,
// shared config, instance role). A non-empty endpoint targets an
// S3-compatible service such as LocalStack or MinIO.
func NewS3SinkFromEnv(ctx context.Context, bucket, keyPrefix, endpoint string) (*S3Sink, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
	return NewS3Sink(client, bucket, keyPrefix), nil
}

// Upload packages results and stores them as keyPrefix/name.
// It returns the object key and entry count.
func (s *S3Sink) Upload(ctx context.Context, name string, results []model.ProcessResult) (string, int, error) {
	data, n, err := Bytes(results)
	if err != nil {
		return "", 0, err
	}
	key := name
	if s.keyPrefix != "" {
		key = path.Join(s.keyPrefix, name)
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String("application/zip"),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return "", 0, fmt.Errorf("put s3://%s/%s: %w", s.bucket, key, err)
	}
	return key, n, nil
}
