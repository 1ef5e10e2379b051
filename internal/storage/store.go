// Package storage is the blob store behind the contact ledger.
//
// Three drivers share one contract: a miss is always ErrNotFound and a failed
// write guard is always ErrPreconditionFailed, so callers never inspect
// driver-specific error strings.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned by Get and Stat when the key does not exist.
	ErrNotFound = errors.New("object not found")
	// ErrPreconditionFailed is returned by Put when IfMatch or IfNoneMatch does not hold.
	ErrPreconditionFailed = errors.New("precondition failed")
	// ErrDisabled is returned when storage is not configured.
	ErrDisabled = errors.New("storage service not configured")
)

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	ETag         string    `json:"etag"`
	ContentType  string    `json:"content_type,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// Object is a fetched object with its metadata.
type Object struct {
	Info ObjectInfo
	Data []byte
}

// PutOptions controls how an object is written.
type PutOptions struct {
	ContentType string
	// Public marks the object world-readable.
	Public bool
	// IfMatch only writes when the current ETag equals this value.
	IfMatch string
	// IfNoneMatch only writes when no object exists under the key.
	IfNoneMatch bool
}

// Store is the blob store contract.
type Store interface {
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
	Get(ctx context.Context, key string) (*Object, error)
	Stat(ctx context.Context, key string) (ObjectInfo, error)
	Put(ctx context.Context, key string, data []byte, opts PutOptions) (ObjectInfo, error)
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}

// Config selects and configures a driver.
type Config struct {
	Driver          string `mapstructure:"driver"` // memory, minio, postgres
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"accesskeyid"`
	SecretAccessKey string `mapstructure:"secretaccesskey"`
	UseSSL          bool   `mapstructure:"usessl"`
	Bucket          string `mapstructure:"bucket"`
}

// Driver names.
const (
	DriverMemory   = "memory"
	DriverMinIO    = "minio"
	DriverPostgres = "postgres"
)

// ValidateKey rejects keys that would escape the bucket or are empty.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("empty object key")
	}
	if key[0] == '/' {
		return fmt.Errorf("object key %q must be relative", key)
	}
	for i := 0; i+1 < len(key); i++ {
		if key[i] == '.' && key[i+1] == '.' {
			return fmt.Errorf("object key %q contains '..'", key)
		}
	}
	return nil
}
