// Package contacts persists contact-form submissions in a single JSON ledger
// document held in the blob store.
//
// Every submission reads the whole ledger, appends one record and writes the
// whole ledger back. The write is conditional on the version that was read, so
// two submitters racing on the same version cannot overwrite each other: the
// loser re-reads and tries again.
package contacts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/cmsconsultores/cmsweb/internal/metrics"
	"github.com/cmsconsultores/cmsweb/internal/storage"
	apperrors "github.com/cmsconsultores/cmsweb/pkg/errors"
	"github.com/cmsconsultores/cmsweb/pkg/logger"
)

const (
	// DefaultKey is the ledger object name.
	DefaultKey = "contactos.json"
	// DefaultMaxAttempts bounds the read-modify-write retries on conflict.
	DefaultMaxAttempts = 5
	// DefaultQuarantinePrefix is where discarded corrupt ledgers are kept.
	DefaultQuarantinePrefix = "corrupt/"

	contentTypeJSON = "application/json"
)

// Options configures a Store.
type Options struct {
	Key              string   `mapstructure:"key"`
	Strategy         Strategy `mapstructure:"strategy"`
	MaxAttempts      int      `mapstructure:"maxattempts"`
	QuarantinePrefix string   `mapstructure:"quarantineprefix"`
}

// Store appends contact submissions to the ledger.
type Store struct {
	blobs  storage.Store
	opts   Options
	log    *slog.Logger
	now    func() time.Time
	locate locator
}

// NewStore creates a Store over blobs. Zero-valued options take the defaults.
func NewStore(blobs storage.Store, opts Options, log *slog.Logger) (*Store, error) {
	if blobs == nil {
		return nil, errors.New("contacts: blob store is required")
	}
	if opts.Key == "" {
		opts.Key = DefaultKey
	}
	if err := storage.ValidateKey(opts.Key); err != nil {
		return nil, fmt.Errorf("contacts: ledger key: %w", err)
	}
	if opts.Strategy == "" {
		opts.Strategy = StrategyList
	}
	loc, err := locatorFor(opts.Strategy)
	if err != nil {
		return nil, err
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.QuarantinePrefix == "" {
		opts.QuarantinePrefix = DefaultQuarantinePrefix
	}
	if log == nil {
		log = logger.Get()
	}
	return &Store{
		blobs:  blobs,
		opts:   opts,
		log:    log.With("component", "contacts"),
		now:    time.Now,
		locate: loc,
	}, nil
}

// Key returns the ledger object name.
func (s *Store) Key() string {
	return s.opts.Key
}

// Submit stores one submission and returns the record as persisted.
//
// Errors carry an apperrors.Kind: request for a malformed body, storage_read
// or storage_write for blob store failures, conflict when every attempt lost
// to a concurrent writer.
func (s *Store) Submit(ctx context.Context, body []byte) (Record, error) {
	log := logger.FromContext(ctx, s.log)

	rec, err := ParseRecord(body)
	if err != nil {
		metrics.SubmissionsTotal.WithLabelValues(string(apperrors.KindRequest)).Inc()
		log.Warn("rejected contact submission", "kind", apperrors.KindRequest, "error", err)
		return nil, apperrors.Request("invalid contact payload", err)
	}

	for attempt := 1; attempt <= s.opts.MaxAttempts; attempt++ {
		snap, err := s.locate(ctx, s.blobs, s.opts.Key)
		if err != nil {
			metrics.SubmissionsTotal.WithLabelValues(string(apperrors.KindStorageRead)).Inc()
			log.Error("failed to read contact ledger", "kind", apperrors.KindStorageRead, "key", s.opts.Key, "error", err)
			return nil, apperrors.StorageRead(err)
		}
		ledger := s.decode(ctx, snap)

		rec.Stamp(s.now())
		ledger, err = ledger.Append(rec)
		if err != nil {
			return nil, apperrors.Internal(err)
		}
		data, err := ledger.Encode()
		if err != nil {
			return nil, apperrors.Internal(err)
		}

		putOpts := storage.PutOptions{ContentType: contentTypeJSON, Public: true}
		if snap.found {
			putOpts.IfMatch = snap.etag
		} else {
			putOpts.IfNoneMatch = true
		}
		_, err = s.blobs.Put(ctx, s.opts.Key, data, putOpts)
		if err == nil {
			metrics.SubmissionsTotal.WithLabelValues("ok").Inc()
			metrics.LedgerRecords.Set(float64(len(ledger)))
			log.Info("contact saved", "key", s.opts.Key, "records", len(ledger), "attempt", attempt)
			return rec, nil
		}
		if errors.Is(err, storage.ErrPreconditionFailed) {
			metrics.LedgerConflicts.Inc()
			log.Debug("ledger changed during submission, retrying", "attempt", attempt)
			continue
		}
		metrics.SubmissionsTotal.WithLabelValues(string(apperrors.KindStorageWrite)).Inc()
		log.Error("failed to write contact ledger", "kind", apperrors.KindStorageWrite, "key", s.opts.Key, "error", err)
		return nil, apperrors.StorageWrite(err)
	}

	metrics.SubmissionsTotal.WithLabelValues(string(apperrors.KindConflict)).Inc()
	log.Error("gave up on contact ledger after repeated conflicts", "kind", apperrors.KindConflict, "attempts", s.opts.MaxAttempts)
	return nil, apperrors.Conflict("ledger is busy, try again",
		fmt.Errorf("ledger %s changed on each of %d attempts", s.opts.Key, s.opts.MaxAttempts))
}

// decode turns a snapshot into a ledger. Corrupt content is quarantined and
// replaced by an empty ledger so new submissions are never blocked.
func (s *Store) decode(ctx context.Context, snap snapshot) Ledger {
	if !snap.found {
		return Ledger{}
	}
	ledger, corrupt := DecodeLedger(snap.data)
	if !corrupt {
		return ledger
	}
	log := logger.FromContext(ctx, s.log)
	metrics.LedgerResets.Inc()
	qkey := s.quarantineKey()
	if _, err := s.blobs.Put(ctx, qkey, snap.data, storage.PutOptions{ContentType: "application/octet-stream"}); err != nil {
		log.Error("corrupt contact ledger discarded and could not be preserved",
			"key", s.opts.Key, "bytes", len(snap.data), "error", err)
	} else {
		log.Warn("corrupt contact ledger discarded", "key", s.opts.Key, "preserved_as", qkey, "bytes", len(snap.data))
	}
	return Ledger{}
}

func (s *Store) quarantineKey() string {
	return s.opts.QuarantinePrefix + s.opts.Key + "." + strconv.FormatInt(s.now().UnixNano(), 10)
}

// Snapshot is a read-only view of the ledger.
type Snapshot struct {
	Ledger  Ledger
	ETag    string
	Found   bool
	Corrupt bool
}

// List reads the ledger without modifying it. Corrupt content reads as an
// empty ledger with Corrupt set.
func (s *Store) List(ctx context.Context) (*Snapshot, error) {
	snap, err := s.locate(ctx, s.blobs, s.opts.Key)
	if err != nil {
		return nil, apperrors.StorageRead(err)
	}
	out := &Snapshot{ETag: snap.etag, Found: snap.found, Ledger: Ledger{}}
	if snap.found {
		out.Ledger, out.Corrupt = DecodeLedger(snap.data)
	}
	return out, nil
}

// Quarantined lists preserved corrupt ledgers, oldest first.
func (s *Store) Quarantined(ctx context.Context) ([]storage.ObjectInfo, error) {
	objs, err := s.blobs.List(ctx, s.opts.QuarantinePrefix+s.opts.Key+".")
	if err != nil {
		return nil, apperrors.StorageRead(err)
	}
	return objs, nil
}
