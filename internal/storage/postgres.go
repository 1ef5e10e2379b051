package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps objects as rows of the objects table.
// The schema is owned by internal/database migrations.
type PostgresStore struct {
	db     *pgxpool.Pool
	closer func()
}

// NewPostgresStore creates a store on an already-migrated pool.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	rows, err := s.db.Query(ctx, `
		SELECT key, octet_length(data), etag, content_type, updated_at
		FROM objects
		WHERE starts_with(key, $1)
		ORDER BY key`, prefix)
	if err != nil {
		return nil, fmt.Errorf("list objects: %w", err)
	}
	defer rows.Close()

	var out []ObjectInfo
	for rows.Next() {
		var info ObjectInfo
		if err := rows.Scan(&info.Key, &info.Size, &info.ETag, &info.ContentType, &info.LastModified); err != nil {
			return nil, fmt.Errorf("scan object: %w", err)
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Get(ctx context.Context, key string) (*Object, error) {
	obj := &Object{Info: ObjectInfo{Key: key}}
	err := s.db.QueryRow(ctx, `
		SELECT data, etag, content_type, updated_at
		FROM objects WHERE key = $1`, key).
		Scan(&obj.Data, &obj.Info.ETag, &obj.Info.ContentType, &obj.Info.LastModified)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", key, err)
	}
	obj.Info.Size = int64(len(obj.Data))
	return obj, nil
}

func (s *PostgresStore) Stat(ctx context.Context, key string) (ObjectInfo, error) {
	info := ObjectInfo{Key: key}
	err := s.db.QueryRow(ctx, `
		SELECT octet_length(data), etag, content_type, updated_at
		FROM objects WHERE key = $1`, key).
		Scan(&info.Size, &info.ETag, &info.ContentType, &info.LastModified)
	if errors.Is(err, pgx.ErrNoRows) {
		return ObjectInfo{}, ErrNotFound
	}
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("stat object %s: %w", key, err)
	}
	return info, nil
}

func (s *PostgresStore) Put(ctx context.Context, key string, data []byte, opts PutOptions) (ObjectInfo, error) {
	if err := ValidateKey(key); err != nil {
		return ObjectInfo{}, err
	}
	contentType := opts.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	etag := uuid.NewString()

	var (
		modified time.Time
		err      error
	)
	switch {
	case opts.IfMatch != "":
		err = s.db.QueryRow(ctx, `
			UPDATE objects
			SET data = $2, content_type = $3, public = $4, etag = $5, updated_at = NOW()
			WHERE key = $1 AND etag = $6
			RETURNING updated_at`,
			key, data, contentType, opts.Public, etag, opts.IfMatch).Scan(&modified)
	case opts.IfNoneMatch:
		err = s.db.QueryRow(ctx, `
			INSERT INTO objects (key, data, content_type, public, etag)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (key) DO NOTHING
			RETURNING updated_at`,
			key, data, contentType, opts.Public, etag).Scan(&modified)
	default:
		err = s.db.QueryRow(ctx, `
			INSERT INTO objects (key, data, content_type, public, etag)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (key) DO UPDATE
			SET data = EXCLUDED.data, content_type = EXCLUDED.content_type,
			    public = EXCLUDED.public, etag = EXCLUDED.etag, updated_at = NOW()
			RETURNING updated_at`,
			key, data, contentType, opts.Public, etag).Scan(&modified)
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ObjectInfo{}, ErrPreconditionFailed
	}
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("put object %s: %w", key, err)
	}
	return ObjectInfo{
		Key:          key,
		Size:         int64(len(data)),
		ETag:         etag,
		ContentType:  contentType,
		LastModified: modified,
	}, nil
}

func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM objects WHERE key = $1`, key); err != nil {
		return fmt.Errorf("delete object %s: %w", key, err)
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close releases the pool when the store opened it itself.
func (s *PostgresStore) Close() error {
	if s.closer != nil {
		s.closer()
	}
	return nil
}
