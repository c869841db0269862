package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/jfloresavalos/InvBF/internal/inventory"
	"github.com/jfloresavalos/InvBF/internal/storage"
)

// Source is the slice of the authority API the cache depends on.
type Source interface {
	CatalogVersion(ctx context.Context) (inventory.CatalogVersion, error)
	Catalog(ctx context.Context) ([]inventory.CatalogEntry, error)
}

// Options tunes a Cache. Zero values take defaults.
type Options struct {
	Codec      Codec
	RetryDelay time.Duration
	Now        func() time.Time
}

const defaultRetryDelay = 5 * time.Second

// Cache owns the device's replica of the catalog.
type Cache struct {
	store      *storage.Store
	src        Source
	codec      Codec
	retryDelay time.Duration
	now        func() time.Time

	snap  atomic.Pointer[Snapshot]
	group singleflight.Group
}

// SyncResult describes what a Sync did.
type SyncResult struct {
	Snapshot   *Snapshot
	Downloaded bool
	// Stale is set when a refresh was needed or unverifiable and the previous
	// snapshot was kept.
	Stale bool
	// Warning carries a non-fatal failure for the caller to surface.
	Warning error
}

// New builds a Cache. src may be nil for a cache that is only restored or
// ingested locally.
func New(store *storage.Store, src Source, opts Options) *Cache {
	if opts.Codec == "" {
		opts.Codec = CodecSnappy
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = defaultRetryDelay
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Cache{
		store:      store,
		src:        src,
		codec:      opts.Codec,
		retryDelay: opts.RetryDelay,
		now:        opts.Now,
	}
}

// Snapshot returns the snapshot in memory, or nil.
func (c *Cache) Snapshot() *Snapshot {
	return c.snap.Load()
}

// Install swaps in snap without persisting it.
func (c *Cache) Install(snap *Snapshot) {
	c.snap.Store(snap)
}

// Lookup resolves code against the current snapshot. It never fails; a miss
// returns the NotFound sentinel.
func (c *Cache) Lookup(code string) (inventory.CatalogEntry, bool) {
	return c.snap.Load().Lookup(code)
}

// VersionCheck asks the authority for the current catalog fingerprint.
func (c *Cache) VersionCheck(ctx context.Context) (inventory.CatalogVersion, error) {
	if c.src == nil {
		return inventory.CatalogVersion{}, &inventory.NetworkError{Op: "catalog version", Err: errors.New("no authority configured")}
	}
	v, err := c.src.CatalogVersion(ctx)
	if err != nil {
		return inventory.CatalogVersion{}, fmt.Errorf("catalog version: %w", err)
	}
	return v, nil
}

// Sync reconciles the local catalog with the authority. Concurrent calls share
// one in-flight run. The only error returned is ctx's when no catalog was ever
// available; every other failure degrades to the existing snapshot plus a
// Warning.
func (c *Cache) Sync(ctx context.Context) (SyncResult, error) {
	v, err, _ := c.group.Do("sync", func() (any, error) {
		return c.sync(ctx)
	})
	if err != nil {
		return SyncResult{}, err
	}
	return v.(SyncResult), nil
}

func (c *Cache) sync(ctx context.Context) (SyncResult, error) {
	current := c.snap.Load()
	if current == nil && c.Restore() {
		current = c.snap.Load()
	}

	version, verr := c.VersionCheck(ctx)
	if verr != nil {
		if current != nil {
			log.Warn().Err(verr).Msg("catalog version check failed, keeping local catalog")
			return SyncResult{Snapshot: current, Stale: true, Warning: verr}, nil
		}
	} else if current != nil && version.Hash != "" && version.Hash == current.Hash() {
		return SyncResult{Snapshot: current}, nil
	}

	var entries []inventory.CatalogEntry
	for {
		var err error
		entries, err = c.download(ctx)
		if err == nil {
			break
		}
		if current != nil {
			log.Warn().Err(err).Msg("catalog download failed, keeping stale catalog")
			return SyncResult{Snapshot: current, Stale: true, Warning: err}, nil
		}
		if inventory.IsValidation(err) {
			return SyncResult{}, err
		}
		log.Warn().Err(err).Dur("retry_in", c.retryDelay).Msg("catalog download failed with no local catalog")
		select {
		case <-ctx.Done():
			return SyncResult{}, ctx.Err()
		case <-time.After(c.retryDelay):
		}
	}

	hash := version.Hash
	if verr != nil || hash == "" {
		if v, err := c.VersionCheck(ctx); err == nil {
			hash = v.Hash
		}
	}

	snap := NewSnapshot(entries, hash, c.now())
	c.snap.Store(snap)
	res := SyncResult{Snapshot: snap, Downloaded: true}
	if err := c.Persist(snap); err != nil {
		log.Warn().Err(err).Int("entries", snap.Len()).Msg("catalog kept in memory only")
		res.Warning = err
	}
	log.Info().Int("entries", snap.Len()).Str("hash", hash).Msg("catalog replaced")
	return res, nil
}

func (c *Cache) download(ctx context.Context) ([]inventory.CatalogEntry, error) {
	if c.src == nil {
		return nil, &inventory.NetworkError{Op: "catalog download", Err: errors.New("no authority configured")}
	}
	entries, err := c.src.Catalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("catalog download: %w", err)
	}
	if len(entries) == 0 {
		return nil, &inventory.ValidationError{Field: "catalog", Reason: "authority returned an empty catalog"}
	}
	return entries, nil
}

type persisted struct {
	CapturedAt time.Time                `json:"capturedAt"`
	Entries    []inventory.CatalogEntry `json:"entries"`
}

// Persist compresses snap into the store along with its hash. On failure the
// previously persisted pair is left intact.
func (c *Cache) Persist(snap *Snapshot) error {
	if snap == nil {
		return nil
	}
	raw, err := json.Marshal(persisted{CapturedAt: snap.CapturedAt(), Entries: snap.entries})
	if err != nil {
		return fmt.Errorf("encode catalog: %w", err)
	}
	payload, err := encode(c.codec, raw)
	if err != nil {
		return fmt.Errorf("compress catalog: %w", err)
	}
	if err := c.store.Put(storage.KeyCatalog, payload); err != nil {
		return err
	}
	return c.store.PutString(storage.KeyCatalogHash, snap.Hash())
}

// Restore loads the persisted snapshot into memory. It reports false, leaving
// memory untouched, when nothing usable is stored.
func (c *Cache) Restore() bool {
	snap, err := c.Load()
	if err != nil {
		log.Warn().Err(err).Msg("persisted catalog unusable")
		return false
	}
	if snap == nil {
		return false
	}
	c.snap.Store(snap)
	return true
}

// Load decodes the persisted snapshot without installing it. Missing data is
// (nil, nil); corrupt or empty data is an error.
func (c *Cache) Load() (*Snapshot, error) {
	payload, ok, err := c.store.Get(storage.KeyCatalog)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	raw, err := decode(payload)
	if err != nil {
		return nil, &inventory.StorageError{Key: storage.KeyCatalog, Err: err}
	}
	var p persisted
	if trimmed := bytes.TrimLeft(raw, " \t\r\n"); len(trimmed) > 0 && trimmed[0] == '[' {
		err = json.Unmarshal(raw, &p.Entries)
	} else {
		err = json.Unmarshal(raw, &p)
	}
	if err != nil {
		return nil, &inventory.StorageError{Key: storage.KeyCatalog, Err: fmt.Errorf("%w: %v", inventory.ErrCorruptPayload, err)}
	}
	if len(p.Entries) == 0 {
		return nil, &inventory.ValidationError{Field: "catalog", Reason: "persisted catalog is empty"}
	}
	return NewSnapshot(p.Entries, c.store.GetString(storage.KeyCatalogHash), p.CapturedAt), nil
}

// Import replaces the catalog with locally ingested entries and persists it.
func (c *Cache) Import(entries []inventory.CatalogEntry) (*Snapshot, error) {
	if len(entries) == 0 {
		return nil, &inventory.ValidationError{Field: "catalog", Reason: "no rows to import"}
	}
	snap := NewSnapshot(entries, LocalHash(entries), c.now())
	c.snap.Store(snap)
	if err := c.Persist(snap); err != nil {
		return snap, err
	}
	return snap, nil
}
