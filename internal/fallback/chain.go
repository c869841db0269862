// Package fallback picks the best catalog available while the authority is
// unreachable.
//
// Sources are tried in a fixed order and the first non-empty one wins:
// the catalog already in memory, then the persisted compressed snapshot, then
// the theoretical-stock extract cached after the last successful connect,
// mapped into catalog shape. When all three come up empty Resolve returns
// inventory.ErrCannotOperate.
package fallback

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jfloresavalos/InvBF/internal/catalog"
	"github.com/jfloresavalos/InvBF/internal/inventory"
	"github.com/jfloresavalos/InvBF/internal/storage"
)

// Tier names a catalog source.
type Tier string

const (
	TierMemory    Tier = "memory"
	TierPersisted Tier = "persisted"
	TierStock     Tier = "stock"
)

// Order is the sequence Resolve walks.
var Order = []Tier{TierMemory, TierPersisted, TierStock}

// Result is the outcome of Resolve.
type Result struct {
	Tier     Tier
	Snapshot *catalog.Snapshot
}

// Chain walks the offline catalog sources.
type Chain struct {
	cache *catalog.Cache
	store *storage.Store
}

// New builds a Chain over cache and the store it persists into.
func New(cache *catalog.Cache, store *storage.Store) *Chain {
	return &Chain{cache: cache, store: store}
}

// Resolve installs the first usable catalog into the cache and reports which
// source supplied it.
func (c *Chain) Resolve() (Result, error) {
	for _, tier := range Order {
		snap, err := c.try(tier)
		if err != nil {
			log.Warn().Err(err).Str("tier", string(tier)).Msg("offline catalog source unusable")
			continue
		}
		if snap.Len() == 0 {
			log.Debug().Str("tier", string(tier)).Msg("offline catalog source empty")
			continue
		}
		log.Info().Str("tier", string(tier)).Int("entries", snap.Len()).Msg("offline catalog resolved")
		return Result{Tier: tier, Snapshot: snap}, nil
	}
	return Result{}, inventory.ErrCannotOperate
}

func (c *Chain) try(tier Tier) (*catalog.Snapshot, error) {
	switch tier {
	case TierMemory:
		return c.cache.Snapshot(), nil
	case TierPersisted:
		if !c.cache.Restore() {
			return nil, nil
		}
		return c.cache.Snapshot(), nil
	case TierStock:
		items, capturedAt, err := LoadStock(c.store)
		if err != nil {
			return nil, err
		}
		entries := catalog.EntriesFromStock(items)
		if len(entries) == 0 {
			return nil, nil
		}
		snap := catalog.NewSnapshot(entries, "", capturedAt)
		c.cache.Install(snap)
		return snap, nil
	default:
		return nil, fmt.Errorf("unknown tier %q", tier)
	}
}

type stockPayload struct {
	CapturedAt time.Time             `json:"capturedAt"`
	Items      []inventory.StockItem `json:"items"`
}

// SaveStock persists the theoretical-stock extract for the stock tier.
func SaveStock(store *storage.Store, items []inventory.StockItem, at time.Time) error {
	raw, err := json.Marshal(stockPayload{CapturedAt: at, Items: items})
	if err != nil {
		return fmt.Errorf("encode stock cache: %w", err)
	}
	return store.Put(storage.KeyStockCache, raw)
}

// LoadStock reads the cached extract. Missing data is an empty result.
func LoadStock(store *storage.Store) ([]inventory.StockItem, time.Time, error) {
	raw, ok, err := store.Get(storage.KeyStockCache)
	if err != nil || !ok {
		return nil, time.Time{}, err
	}
	var p stockPayload
	if len(raw) > 0 && raw[0] == '[' {
		err = json.Unmarshal(raw, &p.Items)
	} else {
		err = json.Unmarshal(raw, &p)
	}
	if err != nil {
		return nil, time.Time{}, &inventory.StorageError{Key: storage.KeyStockCache, Err: fmt.Errorf("%w: %v", inventory.ErrCorruptPayload, err)}
	}
	return p.Items, p.CapturedAt, nil
}
