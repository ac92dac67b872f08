package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/yoockh/scribe/internal/utils"
)

// S3Store keeps uploads in an S3-compatible bucket (AWS, MinIO).
type S3Store struct {
	client *s3.Client
	bucket string
	prefix string
	now    func() time.Time
}

// NewS3Store uses static keys when both are set and the default AWS
// credential chain otherwise. A non-empty endpoint switches to path-style
// addressing for MinIO-like servers.
func NewS3Store(ctx context.Context, bucket, region, endpoint, accessKey, secretKey string) (*S3Store, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if accessKey != "" && secretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Store{client: client, bucket: bucket, prefix: "uploads/", now: time.Now}, nil
}

func (s *S3Store) Save(ctx context.Context, originalName string, r io.Reader) (*Object, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	base := StoredName(s.now(), originalName)
	for attempt := 0; attempt < maxNameAttempts; attempt++ {
		name := withSuffix(base, attempt)
		_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(s.bucket),
			Key:         aws.String(s.prefix + name),
			Body:        bytes.NewReader(body),
			ContentType: aws.String(http.DetectContentType(body)),
			IfNoneMatch: aws.String("*"),
		})
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "PreconditionFailed" {
			continue
		}
		if err != nil {
			return nil, err
		}

		return &Object{
			Name: name,
			Path: fmt.Sprintf("s3://%s/%s%s", s.bucket, s.prefix, name),
			Size: int64(len(body)),
		}, nil
	}
	return nil, fmt.Errorf("no free name for %s after %d attempts", base, maxNameAttempts)
}

func (s *S3Store) Open(ctx context.Context, name string) (*ObjectReader, error) {
	if !ValidName(name) {
		return nil, utils.ErrNotFound
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.prefix + name),
	})
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ObjectReader{ReadCloser: out.Body, Size: aws.ToInt64(out.ContentLength)}, nil
}

func (s *S3Store) Delete(ctx context.Context, name string) error {
	if !ValidName(name) {
		return utils.ErrNotFound
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.prefix + name),
	})
	return err
}
