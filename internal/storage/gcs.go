package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/yoockh/scribe/internal/utils"
)

// GCSStore keeps uploads as private objects under prefix in a bucket.
type GCSStore struct {
	client *gcs.Client
	bucket string
	prefix string
	now    func() time.Time
}

func NewGCSStore(ctx context.Context, bucket, credentialsFile string) (*GCSStore, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	c, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &GCSStore{client: c, bucket: bucket, prefix: "uploads/", now: time.Now}, nil
}

func (s *GCSStore) Close() error { return s.client.Close() }

func (s *GCSStore) Save(ctx context.Context, originalName string, r io.Reader) (*Object, error) {
	// retries on a name collision need to replay the body
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	base := StoredName(s.now(), originalName)
	for attempt := 0; attempt < maxNameAttempts; attempt++ {
		name := withSuffix(base, attempt)
		obj := s.client.Bucket(s.bucket).Object(s.prefix + name).If(gcs.Conditions{DoesNotExist: true})

		w := obj.NewWriter(ctx)
		w.ContentType = http.DetectContentType(body)
		if _, err := w.Write(body); err != nil {
			_ = w.Close()
			return nil, err
		}
		err := w.Close()
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed {
			continue
		}
		if err != nil {
			return nil, err
		}

		return &Object{
			Name: name,
			Path: fmt.Sprintf("gs://%s/%s%s", s.bucket, s.prefix, name),
			Size: int64(len(body)),
		}, nil
	}
	return nil, fmt.Errorf("no free name for %s after %d attempts", base, maxNameAttempts)
}

func (s *GCSStore) Open(ctx context.Context, name string) (*ObjectReader, error) {
	if !ValidName(name) {
		return nil, utils.ErrNotFound
	}
	rd, err := s.client.Bucket(s.bucket).Object(s.prefix + name).NewReader(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ObjectReader{ReadCloser: rd, Size: rd.Attrs.Size}, nil
}

func (s *GCSStore) Delete(ctx context.Context, name string) error {
	if !ValidName(name) {
		return utils.ErrNotFound
	}
	err := s.client.Bucket(s.bucket).Object(s.prefix + name).Delete(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return nil
	}
	return err
}
