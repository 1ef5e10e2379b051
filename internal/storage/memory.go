package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memObject struct {
	data        []byte
	etag        string
	contentType string
	public      bool
	modified    time.Time
}

// MemoryStore keeps objects in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]memObject
	now     func() time.Time
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		objects: make(map[string]memObject),
		now:     time.Now,
	}
}

func (m *MemoryStore) info(key string, o memObject) ObjectInfo {
	return ObjectInfo{
		Key:          key,
		Size:         int64(len(o.data)),
		ETag:         o.etag,
		ContentType:  o.contentType,
		LastModified: o.modified,
	}
}

func (m *MemoryStore) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []ObjectInfo
	for key, o := range m.objects {
		if strings.HasPrefix(key, prefix) {
			out = append(out, m.info(key, o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (m *MemoryStore) Get(ctx context.Context, key string) (*Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.objects[key]
	if !ok {
		return nil, ErrNotFound
	}
	data := make([]byte, len(o.data))
	copy(data, o.data)
	return &Object{Info: m.info(key, o), Data: data}, nil
}

func (m *MemoryStore) Stat(ctx context.Context, key string) (ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return ObjectInfo{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.objects[key]
	if !ok {
		return ObjectInfo{}, ErrNotFound
	}
	return m.info(key, o), nil
}

func (m *MemoryStore) Put(ctx context.Context, key string, data []byte, opts PutOptions) (ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return ObjectInfo{}, err
	}
	if err := ValidateKey(key); err != nil {
		return ObjectInfo{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, exists := m.objects[key]
	if opts.IfNoneMatch && exists {
		return ObjectInfo{}, ErrPreconditionFailed
	}
	if opts.IfMatch != "" && (!exists || existing.etag != opts.IfMatch) {
		return ObjectInfo{}, ErrPreconditionFailed
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	o := memObject{
		data:        buf,
		etag:        uuid.NewString(),
		contentType: opts.ContentType,
		public:      opts.Public,
		modified:    m.now().UTC(),
	}
	m.objects[key] = o
	return m.info(key, o), nil
}

func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

// IsPublic reports whether key was written with Public set.
func (m *MemoryStore) IsPublic(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.objects[key].public
}

func (m *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (m *MemoryStore) Close() error {
	return nil
}
