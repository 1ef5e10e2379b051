package contacts

import (
	"context"
	"errors"
	"fmt"

	"github.com/cmsconsultores/cmsweb/internal/storage"
)

// Strategy selects how the ledger document is found in the blob store.
type Strategy string

const (
	// StrategyList lists by prefix and fetches the exact name when listed.
	StrategyList Strategy = "list"
	// StrategyGet fetches by name directly.
	StrategyGet Strategy = "get"
	// StrategyHead checks existence first, then fetches.
	StrategyHead Strategy = "head"
)

// snapshot is what a locator saw: the ledger bytes and their version.
type snapshot struct {
	found bool
	data  []byte
	etag  string
}

type locator func(ctx context.Context, blobs storage.Store, key string) (snapshot, error)

func locatorFor(s Strategy) (locator, error) {
	switch s {
	case StrategyList:
		return locateByList, nil
	case StrategyGet:
		return locateByGet, nil
	case StrategyHead:
		return locateByHead, nil
	}
	return nil, fmt.Errorf("contacts: unknown ledger strategy %q", s)
}

func locateByGet(ctx context.Context, blobs storage.Store, key string) (snapshot, error) {
	obj, err := blobs.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return snapshot{}, nil
	}
	if err != nil {
		return snapshot{}, err
	}
	return snapshot{found: true, data: obj.Data, etag: obj.Info.ETag}, nil
}

func locateByList(ctx context.Context, blobs storage.Store, key string) (snapshot, error) {
	objs, err := blobs.List(ctx, key)
	if err != nil {
		return snapshot{}, err
	}
	for _, o := range objs {
		if o.Key == key {
			// may have been removed since the listing; a miss is still empty
			return locateByGet(ctx, blobs, key)
		}
	}
	return snapshot{}, nil
}

func locateByHead(ctx context.Context, blobs storage.Store, key string) (snapshot, error) {
	_, err := blobs.Stat(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return snapshot{}, nil
	}
	if err != nil {
		return snapshot{}, err
	}
	return locateByGet(ctx, blobs, key)
}
