package contacts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/cmsconsultores/cmsweb/internal/metrics"
	"github.com/cmsconsultores/cmsweb/internal/storage"
	apperrors "github.com/cmsconsultores/cmsweb/pkg/errors"
	"github.com/cmsconsultores/cmsweb/pkg/logger"
)

var allStrategies = []Strategy{StrategyList, StrategyGet, StrategyHead}

func newTestStore(t *testing.T, blobs storage.Store, strategy Strategy) *Store {
	t.Helper()
	s, err := NewStore(blobs, Options{Strategy: strategy}, logger.Discard())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

func readLedger(t *testing.T, blobs storage.Store) []map[string]any {
	t.Helper()
	obj, err := blobs.Get(context.Background(), DefaultKey)
	if err != nil {
		t.Fatalf("Get ledger: %v", err)
	}
	var out []map[string]any
	if err := json.Unmarshal(obj.Data, &out); err != nil {
		t.Fatalf("ledger is not a JSON array of objects: %v\n%s", err, obj.Data)
	}
	return out
}

func TestSubmitScenario(t *testing.T) {
	for _, strategy := range allStrategies {
		t.Run(string(strategy), func(t *testing.T) {
			blobs := storage.NewMemoryStore()
			ctx := context.Background()
			if _, err := blobs.Put(ctx, DefaultKey, []byte(`[]`), storage.PutOptions{ContentType: "application/json"}); err != nil {
				t.Fatalf("seed: %v", err)
			}
			s := newTestStore(t, blobs, strategy)
			fixed := time.Date(2025, 9, 4, 10, 20, 0, 0, time.UTC)
			s.now = func() time.Time { return fixed }

			rec, err := s.Submit(ctx, []byte(`{"nombre":"Ana","email":"a@x.cl"}`))
			if err != nil {
				t.Fatalf("Submit: %v", err)
			}
			if rec.Timestamp() != "2025-09-04T10:20:00.000Z" {
				t.Errorf("returned timestamp = %q", rec.Timestamp())
			}

			ledger := readLedger(t, blobs)
			if len(ledger) != 1 {
				t.Fatalf("ledger length = %d, want 1", len(ledger))
			}
			want := map[string]any{"nombre": "Ana", "email": "a@x.cl", "timestamp": "2025-09-04T10:20:00.000Z"}
			for k, v := range want {
				if ledger[0][k] != v {
					t.Errorf("ledger[0][%s] = %v, want %v", k, ledger[0][k], v)
				}
			}
			if len(ledger[0]) != len(want) {
				t.Errorf("ledger[0] has extra fields: %v", ledger[0])
			}

			info, err := blobs.Stat(ctx, DefaultKey)
			if err != nil {
				t.Fatalf("Stat: %v", err)
			}
			if info.ContentType != "application/json" {
				t.Errorf("content type = %q, want application/json", info.ContentType)
			}
			if !blobs.IsPublic(DefaultKey) {
				t.Error("ledger should be written publicly readable")
			}
		})
	}
}

func TestSubmitAppendOnlyGrowth(t *testing.T) {
	blobs := storage.NewMemoryStore()
	ctx := context.Background()
	prior := `[{"nombre":"Prior","timestamp":"2024-01-01T00:00:00.000Z","extra":{"kept":true}}]`
	if _, err := blobs.Put(ctx, DefaultKey, []byte(prior), storage.PutOptions{}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	s := newTestStore(t, blobs, StrategyList)

	const n = 5
	for i := 0; i < n; i++ {
		if _, err := s.Submit(ctx, []byte(fmt.Sprintf(`{"n":%d}`, i))); err != nil {
			t.Fatalf("Submit %d: %v", i, err)
		}
	}

	ledger := readLedger(t, blobs)
	if len(ledger) != n+1 {
		t.Fatalf("ledger length = %d, want %d", len(ledger), n+1)
	}
	if ledger[0]["nombre"] != "Prior" {
		t.Errorf("prior record changed: %v", ledger[0])
	}
	if extra, _ := ledger[0]["extra"].(map[string]any); extra["kept"] != true {
		t.Errorf("prior record nested field lost: %v", ledger[0])
	}
	for i := 0; i < n; i++ {
		if got := ledger[i+1]["n"]; got != float64(i) {
			t.Errorf("ledger[%d].n = %v, want %d (submission order)", i+1, got, i)
		}
		if ledger[i+1]["timestamp"] == nil {
			t.Errorf("ledger[%d] has no timestamp", i+1)
		}
	}
}

func TestSubmitIgnoresClientTimestamp(t *testing.T) {
	blobs := storage.NewMemoryStore()
	s := newTestStore(t, blobs, StrategyGet)
	s.now = func() time.Time { return time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC) }

	client := "1990-05-05T05:05:05.000Z"
	if _, err := s.Submit(context.Background(), []byte(`{"nombre":"Ana","timestamp":"`+client+`"}`)); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	ledger := readLedger(t, blobs)
	if ledger[0]["timestamp"] == client {
		t.Error("client-supplied timestamp was persisted")
	}
	if ledger[0]["timestamp"] != "2025-01-01T12:00:00.000Z" {
		t.Errorf("timestamp = %v, want server time", ledger[0]["timestamp"])
	}
}

func TestSubmitCreatesMissingLedger(t *testing.T) {
	for _, strategy := range allStrategies {
		t.Run(string(strategy), func(t *testing.T) {
			blobs := storage.NewMemoryStore()
			s := newTestStore(t, blobs, strategy)
			if _, err := s.Submit(context.Background(), []byte(`{"nombre":"Ana"}`)); err != nil {
				t.Fatalf("Submit: %v", err)
			}
			if got := len(readLedger(t, blobs)); got != 1 {
				t.Errorf("ledger length = %d, want 1", got)
			}
		})
	}
}

func TestSubmitSelfHealsCorruptLedger(t *testing.T) {
	for _, corrupt := range []string{`{not json`, `{"a":1}`, `null`} {
		t.Run(corrupt, func(t *testing.T) {
			blobs := storage.NewMemoryStore()
			ctx := context.Background()
			if _, err := blobs.Put(ctx, DefaultKey, []byte(corrupt), storage.PutOptions{}); err != nil {
				t.Fatalf("seed: %v", err)
			}
			s := newTestStore(t, blobs, StrategyHead)
			resetsBefore := testutil.ToFloat64(metrics.LedgerResets)

			if _, err := s.Submit(ctx, []byte(`{"nombre":"Ana"}`)); err != nil {
				t.Fatalf("Submit on corrupt ledger: %v", err)
			}
			ledger := readLedger(t, blobs)
			if len(ledger) != 1 || ledger[0]["nombre"] != "Ana" {
				t.Errorf("ledger = %v, want only the new record", ledger)
			}
			if testutil.ToFloat64(metrics.LedgerResets)-resetsBefore != 1 {
				t.Error("ledger reset was not counted")
			}

			quarantined, err := s.Quarantined(ctx)
			if err != nil {
				t.Fatalf("Quarantined: %v", err)
			}
			if len(quarantined) != 1 {
				t.Fatalf("quarantined copies = %d, want 1", len(quarantined))
			}
			obj, err := blobs.Get(ctx, quarantined[0].Key)
			if err != nil {
				t.Fatalf("Get quarantined: %v", err)
			}
			if string(obj.Data) != corrupt {
				t.Errorf("quarantined content = %q, want %q", obj.Data, corrupt)
			}
			if blobs.IsPublic(quarantined[0].Key) {
				t.Error("quarantined copy must not be public")
			}
		})
	}
}

func TestSubmitEmptyLedgerIsNotCorrupt(t *testing.T) {
	blobs := storage.NewMemoryStore()
	ctx := context.Background()
	if _, err := blobs.Put(ctx, DefaultKey, nil, storage.PutOptions{}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	s := newTestStore(t, blobs, StrategyList)
	if _, err := s.Submit(ctx, []byte(`{"a":1}`)); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	q, _ := s.Quarantined(ctx)
	if len(q) != 0 {
		t.Errorf("empty ledger should not be quarantined, got %d copies", len(q))
	}
	if got := len(readLedger(t, blobs)); got != 1 {
		t.Errorf("ledger length = %d, want 1", got)
	}
}

func TestSubmitMalformedInputLeavesLedgerUntouched(t *testing.T) {
	t.Run("missing ledger stays missing", func(t *testing.T) {
		blobs := storage.NewMemoryStore()
		s := newTestStore(t, blobs, StrategyList)
		_, err := s.Submit(context.Background(), []byte(`nombre=Ana`))
		if apperrors.KindOf(err) != apperrors.KindRequest {
			t.Fatalf("Submit error kind = %q (%v), want request", apperrors.KindOf(err), err)
		}
		if _, err := blobs.Get(context.Background(), DefaultKey); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("ledger should not have been created, Get = %v", err)
		}
	})
	t.Run("existing ledger unchanged", func(t *testing.T) {
		blobs := storage.NewMemoryStore()
		ctx := context.Background()
		seeded, _ := blobs.Put(ctx, DefaultKey, []byte(`[{"a":1}]`), storage.PutOptions{})
		s := newTestStore(t, blobs, StrategyGet)
		if _, err := s.Submit(ctx, []byte(`[1,2,3]`)); apperrors.KindOf(err) != apperrors.KindRequest {
			t.Fatalf("Submit error = %v, want request kind", err)
		}
		info, _ := blobs.Stat(ctx, DefaultKey)
		if info.ETag != seeded.ETag {
			t.Error("ledger was rewritten after a malformed submission")
		}
	})
}

// barrierStore holds the first n ledger reads until all n have happened, so
// the submitters are guaranteed to start from the same version.
type barrierStore struct {
	storage.Store
	n       int32
	reads   atomic.Int32
	arrived sync.WaitGroup
}

func newBarrierStore(inner storage.Store, n int) *barrierStore {
	b := &barrierStore{Store: inner, n: int32(n)}
	b.arrived.Add(n)
	return b
}

func (b *barrierStore) Get(ctx context.Context, key string) (*storage.Object, error) {
	obj, err := b.Store.Get(ctx, key)
	if b.reads.Add(1) <= b.n {
		b.arrived.Done()
		b.arrived.Wait()
	}
	return obj, err
}

func TestConcurrentSubmitsBothSurvive(t *testing.T) {
	for _, seeded := range []bool{false, true} {
		t.Run(fmt.Sprintf("seeded=%v", seeded), func(t *testing.T) {
			mem := storage.NewMemoryStore()
			ctx := context.Background()
			if seeded {
				if _, err := mem.Put(ctx, DefaultKey, []byte(`[{"nombre":"Prior"}]`), storage.PutOptions{}); err != nil {
					t.Fatalf("seed: %v", err)
				}
			}
			blobs := newBarrierStore(mem, 2)
			s := newTestStore(t, blobs, StrategyGet)
			conflictsBefore := testutil.ToFloat64(metrics.LedgerConflicts)

			var wg sync.WaitGroup
			errs := make([]error, 2)
			for i := 0; i < 2; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					_, errs[i] = s.Submit(ctx, []byte(fmt.Sprintf(`{"nombre":"writer-%d"}`, i)))
				}(i)
			}
			wg.Wait()
			for i, err := range errs {
				if err != nil {
					t.Fatalf("writer %d: %v", i, err)
				}
			}

			ledger := readLedger(t, mem)
			want := 2
			if seeded {
				want = 3
			}
			if len(ledger) != want {
				t.Fatalf("ledger length = %d, want %d (lost update): %v", len(ledger), want, ledger)
			}
			names := map[any]bool{}
			for _, r := range ledger {
				names[r["nombre"]] = true
			}
			if !names["writer-0"] || !names["writer-1"] {
				t.Errorf("a concurrent record was lost: %v", ledger)
			}
			if testutil.ToFloat64(metrics.LedgerConflicts)-conflictsBefore < 1 {
				t.Error("expected at least one conflict to be detected and retried")
			}
		})
	}
}

// scriptedStore injects failures on top of a memory store.
type scriptedStore struct {
	*storage.MemoryStore
	getErr         error
	putErr         error
	alwaysConflict bool
	puts           int
}

func (s *scriptedStore) Get(ctx context.Context, key string) (*storage.Object, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.MemoryStore.Get(ctx, key)
}

func (s *scriptedStore) Put(ctx context.Context, key string, data []byte, opts storage.PutOptions) (storage.ObjectInfo, error) {
	s.puts++
	if s.alwaysConflict {
		return storage.ObjectInfo{}, storage.ErrPreconditionFailed
	}
	if s.putErr != nil {
		return storage.ObjectInfo{}, s.putErr
	}
	return s.MemoryStore.Put(ctx, key, data, opts)
}

func TestSubmitStorageFailures(t *testing.T) {
	t.Run("read failure", func(t *testing.T) {
		blobs := &scriptedStore{MemoryStore: storage.NewMemoryStore(), getErr: errors.New("connection refused")}
		s := newTestStore(t, blobs, StrategyGet)
		_, err := s.Submit(context.Background(), []byte(`{"a":1}`))
		if apperrors.KindOf(err) != apperrors.KindStorageRead {
			t.Errorf("error kind = %q (%v), want storage_read", apperrors.KindOf(err), err)
		}
		if blobs.puts != 0 {
			t.Error("nothing should be written after a failed read")
		}
	})
	t.Run("write failure", func(t *testing.T) {
		blobs := &scriptedStore{MemoryStore: storage.NewMemoryStore(), putErr: errors.New("quota exceeded")}
		s := newTestStore(t, blobs, StrategyGet)
		_, err := s.Submit(context.Background(), []byte(`{"a":1}`))
		if apperrors.KindOf(err) != apperrors.KindStorageWrite {
			t.Errorf("error kind = %q (%v), want storage_write", apperrors.KindOf(err), err)
		}
		if !strings.Contains(err.Error(), "quota exceeded") {
			t.Errorf("error should carry the cause: %v", err)
		}
		if blobs.puts != 1 {
			t.Errorf("puts = %d, want 1 (no retry on plain write failure)", blobs.puts)
		}
	})
	t.Run("conflicts exhausted", func(t *testing.T) {
		blobs := &scriptedStore{MemoryStore: storage.NewMemoryStore(), alwaysConflict: true}
		s, err := NewStore(blobs, Options{Strategy: StrategyGet, MaxAttempts: 3}, logger.Discard())
		if err != nil {
			t.Fatalf("NewStore: %v", err)
		}
		_, err = s.Submit(context.Background(), []byte(`{"a":1}`))
		if apperrors.KindOf(err) != apperrors.KindConflict {
			t.Errorf("error kind = %q (%v), want conflict", apperrors.KindOf(err), err)
		}
		if blobs.puts != 3 {
			t.Errorf("puts = %d, want 3 attempts", blobs.puts)
		}
	})
}

// notListedStore hides every object from List, as an eventually consistent
// listing might.
type notListedStore struct {
	*storage.MemoryStore
}

func (notListedStore) List(context.Context, string) ([]storage.ObjectInfo, error) {
	return nil, nil
}

func TestListStrategyTrustsListing(t *testing.T) {
	mem := storage.NewMemoryStore()
	ctx := context.Background()
	if _, err := mem.Put(ctx, DefaultKey, []byte(`[{"a":1}]`), storage.PutOptions{}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	s := newTestStore(t, notListedStore{mem}, StrategyList)
	snap, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if snap.Found {
		t.Error("list strategy should report not found when the key is not listed")
	}
}

func TestStoreList(t *testing.T) {
	blobs := storage.NewMemoryStore()
	ctx := context.Background()
	s := newTestStore(t, blobs, StrategyHead)

	snap, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List on missing ledger: %v", err)
	}
	if snap.Found || len(snap.Ledger) != 0 {
		t.Errorf("missing ledger snapshot = %+v", snap)
	}

	for i := 0; i < 2; i++ {
		if _, err := s.Submit(ctx, []byte(`{"a":1}`)); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}
	snap, err = s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if !snap.Found || len(snap.Ledger) != 2 || snap.Corrupt {
		t.Errorf("snapshot = found:%v len:%d corrupt:%v", snap.Found, len(snap.Ledger), snap.Corrupt)
	}

	if _, err := blobs.Put(ctx, DefaultKey, []byte(`garbage`), storage.PutOptions{}); err != nil {
		t.Fatalf("corrupt: %v", err)
	}
	snap, err = s.List(ctx)
	if err != nil {
		t.Fatalf("List corrupt: %v", err)
	}
	if !snap.Corrupt || len(snap.Ledger) != 0 {
		t.Errorf("corrupt snapshot = %+v", snap)
	}
	obj, _ := blobs.Get(ctx, DefaultKey)
	if string(obj.Data) != "garbage" {
		t.Error("List must not rewrite a corrupt ledger")
	}
}

func TestNewStoreValidation(t *testing.T) {
	if _, err := NewStore(nil, Options{}, nil); err == nil {
		t.Error("NewStore(nil) should fail")
	}
	if _, err := NewStore(storage.NewMemoryStore(), Options{Strategy: "scan"}, nil); err == nil {
		t.Error("unknown strategy should fail")
	}
	if _, err := NewStore(storage.NewMemoryStore(), Options{Key: "../x.json"}, nil); err == nil {
		t.Error("escaping key should fail")
	}
	s, err := NewStore(storage.NewMemoryStore(), Options{}, logger.Discard())
	if err != nil {
		t.Fatalf("NewStore defaults: %v", err)
	}
	if s.Key() != DefaultKey || s.opts.MaxAttempts != DefaultMaxAttempts || s.opts.Strategy != StrategyList {
		t.Errorf("defaults not applied: %+v", s.opts)
	}
}
