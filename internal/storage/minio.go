package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOStore wraps MinIO and keeps every object in a single bucket.
type MinIOStore struct {
	mc     *minio.Client
	bucket string

	bucketMu    sync.Mutex
	bucketReady bool
}

// NewMinIOStore creates a MinIO-backed store. An empty Endpoint returns ErrDisabled.
func NewMinIOStore(cfg Config) (*MinIOStore, error) {
	if cfg.Endpoint == "" {
		return nil, ErrDisabled
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("minio: bucket is required")
	}
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	return &MinIOStore{mc: mc, bucket: cfg.Bucket}, nil
}

// ensureBucket creates the bucket if it does not exist (idempotent).
func (s *MinIOStore) ensureBucket(ctx context.Context) error {
	s.bucketMu.Lock()
	defer s.bucketMu.Unlock()
	if s.bucketReady {
		return nil
	}
	exists, err := s.mc.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("minio: bucket %s: %w", s.bucket, err)
	}
	if !exists {
		if err := s.mc.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("minio: make bucket %s: %w", s.bucket, err)
		}
	}
	s.bucketReady = true
	return nil
}

// translateError maps MinIO error responses onto the package sentinels.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	resp := minio.ToErrorResponse(err)
	switch {
	case resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket":
		return fmt.Errorf("%w: %s", ErrNotFound, resp.Key)
	case resp.Code == "PreconditionFailed" || resp.StatusCode == http.StatusPreconditionFailed:
		return ErrPreconditionFailed
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	}
	return err
}

func toObjectInfo(info minio.ObjectInfo) ObjectInfo {
	return ObjectInfo{
		Key:          info.Key,
		Size:         info.Size,
		ETag:         info.ETag,
		ContentType:  info.ContentType,
		LastModified: info.LastModified,
	}
}

// List lists objects in the bucket with the given prefix.
func (s *MinIOStore) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	if err := s.ensureBucket(ctx); err != nil {
		return nil, err
	}
	ch := s.mc.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true})
	var out []ObjectInfo
	for obj := range ch {
		if obj.Err != nil {
			return nil, translateError(obj.Err)
		}
		out = append(out, toObjectInfo(obj))
	}
	return out, nil
}

// Get downloads an object.
func (s *MinIOStore) Get(ctx context.Context, key string) (*Object, error) {
	obj, err := s.mc.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, translateError(err)
	}
	defer obj.Close()
	info, err := obj.Stat()
	if err != nil {
		return nil, translateError(err)
	}
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, translateError(err)
	}
	return &Object{Info: toObjectInfo(info), Data: data}, nil
}

// Stat checks for an object without downloading it.
func (s *MinIOStore) Stat(ctx context.Context, key string) (ObjectInfo, error) {
	info, err := s.mc.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return ObjectInfo{}, translateError(err)
	}
	return toObjectInfo(info), nil
}

// Put uploads an object, honouring IfMatch / IfNoneMatch.
func (s *MinIOStore) Put(ctx context.Context, key string, data []byte, opts PutOptions) (ObjectInfo, error) {
	if err := ValidateKey(key); err != nil {
		return ObjectInfo{}, err
	}
	if err := s.ensureBucket(ctx); err != nil {
		return ObjectInfo{}, err
	}
	putOpts := minio.PutObjectOptions{ContentType: opts.ContentType}
	if opts.Public {
		putOpts.UserMetadata = map[string]string{"x-amz-acl": "public-read"}
	}
	switch {
	case opts.IfMatch != "":
		putOpts.SetMatchETag(opts.IfMatch)
	case opts.IfNoneMatch:
		putOpts.SetMatchETagExcept("*")
	}
	info, err := s.mc.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), putOpts)
	if err != nil {
		return ObjectInfo{}, translateError(err)
	}
	return ObjectInfo{
		Key:          key,
		Size:         info.Size,
		ETag:         info.ETag,
		ContentType:  opts.ContentType,
		LastModified: info.LastModified,
	}, nil
}

// Delete removes an object.
func (s *MinIOStore) Delete(ctx context.Context, key string) error {
	err := s.mc.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
	if err = translateError(err); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	return nil
}

// Ping verifies the bucket is reachable.
func (s *MinIOStore) Ping(ctx context.Context) error {
	_, err := s.mc.BucketExists(ctx, s.bucket)
	return err
}

func (s *MinIOStore) Close() error {
	return nil
}
