// Package journal keeps the device's readings for one inventory session.
//
// Scanner readings merge on sku plus location and are inserted at the front so
// the newest appear first. Manual readings merge on sku alone and are appended.
// The two origins never merge into each other. Every mutation is persisted
// before the call returns.
package journal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog/log"

	"github.com/jfloresavalos/InvBF/internal/inventory"
	"github.com/jfloresavalos/InvBF/internal/storage"
)

// Baseline fetches the readings the authority already holds for a device.
type Baseline interface {
	Readings(ctx context.Context, sessionID int64, device string) ([]inventory.ReadingRecord, error)
}

// SyncState reports whether local changes still await the authority.
type SyncState struct {
	Pending  bool
	LastSync time.Time
}

// Totals summarizes journal quantities.
type Totals struct {
	Quantity      int
	Scanner       int
	Manual        int
	Records       int
	ManualRecords int
}

// Journal is safe for concurrent use.
type Journal struct {
	store     *storage.Store
	sessionID int64
	key       string

	mu       sync.Mutex
	records  []inventory.ReadingRecord
	pending  bool
	lastSync time.Time
	revision uint64

	subMu   sync.Mutex
	subs    map[int]func()
	nextSub int
}

// New returns an empty journal for sessionID. Call Restore to load state.
func New(store *storage.Store, sessionID int64) *Journal {
	return &Journal{
		store:     store,
		sessionID: sessionID,
		key:       storage.JournalKey(sessionID),
		subs:      make(map[int]func()),
	}
}

// SessionID returns the session this journal belongs to.
func (j *Journal) SessionID() int64 { return j.sessionID }

// Subscribe registers fn to run after every change. The returned func removes it.
func (j *Journal) Subscribe(fn func()) func() {
	j.subMu.Lock()
	id := j.nextSub
	j.nextSub++
	j.subs[id] = fn
	j.subMu.Unlock()
	return func() {
		j.subMu.Lock()
		delete(j.subs, id)
		j.subMu.Unlock()
	}
}

func (j *Journal) notify() {
	j.subMu.Lock()
	fns := make([]func(), 0, len(j.subs))
	for _, fn := range j.subs {
		fns = append(fns, fn)
	}
	j.subMu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// Record adds quantity of product at location. An existing record under the
// origin's merge key is incremented; otherwise a new record is inserted.
// A persist failure is returned but the in-memory change stands.
func (j *Journal) Record(product inventory.CatalogEntry, quantity int, location string, origin inventory.Origin) error {
	if strings.TrimSpace(product.SKU) == "" {
		return &inventory.ValidationError{Field: "sku", Reason: "required"}
	}
	if quantity < 1 {
		return &inventory.ValidationError{Field: "quantity", Reason: fmt.Sprintf("must be at least 1, got %d", quantity)}
	}
	if !origin.Valid() {
		return &inventory.ValidationError{Field: "origin", Reason: fmt.Sprintf("unknown origin %q", origin)}
	}
	location = strings.TrimSpace(location)

	j.mu.Lock()
	idx := j.findLocked(product.SKU, location, origin)
	switch {
	case idx >= 0:
		j.records[idx].Quantity += quantity
	case origin == inventory.OriginScanner:
		rec := newRecord(product, quantity, location, origin)
		j.records = append([]inventory.ReadingRecord{rec}, j.records...)
	default:
		j.records = append(j.records, newRecord(product, quantity, location, origin))
	}
	err := j.commitLocked()
	j.mu.Unlock()

	j.notify()
	return err
}

func newRecord(p inventory.CatalogEntry, quantity int, location string, origin inventory.Origin) inventory.ReadingRecord {
	return inventory.ReadingRecord{
		SKU:         p.SKU,
		ALU:         p.ALU,
		Description: p.Description,
		Quantity:    quantity,
		Location:    location,
		Origin:      origin,
	}
}

func (j *Journal) findLocked(sku, location string, origin inventory.Origin) int {
	for i, r := range j.records {
		if r.SKU != sku || r.Origin != origin {
			continue
		}
		if origin == inventory.OriginManual || r.Location == location {
			return i
		}
	}
	return -1
}

// Delete removes n units from the record at index, dropping the record when n
// covers its whole quantity. n <= 0 does nothing. Indexes shift after a
// removal, so callers must resolve index right before calling.
func (j *Journal) Delete(index, n int) error {
	if n <= 0 {
		return nil
	}
	j.mu.Lock()
	if index < 0 || index >= len(j.records) {
		size := len(j.records)
		j.mu.Unlock()
		return fmt.Errorf("%w: %d of %d", inventory.ErrIndexOutOfRange, index, size)
	}
	if n >= j.records[index].Quantity {
		j.records = append(j.records[:index:index], j.records[index+1:]...)
	} else {
		j.records[index].Quantity -= n
	}
	err := j.commitLocked()
	j.mu.Unlock()

	j.notify()
	return err
}

// Clear drops every record. The authority still holds the previous push, so
// the journal is left pending until an empty push replaces it.
func (j *Journal) Clear() error {
	j.mu.Lock()
	j.records = nil
	err := j.commitLocked()
	j.mu.Unlock()

	j.notify()
	return err
}

func (j *Journal) commitLocked() error {
	j.pending = true
	j.revision++
	return j.persistLocked()
}

// Records returns a copy of the journal in review order.
func (j *Journal) Records() []inventory.ReadingRecord {
	recs, _ := j.Snapshot()
	return recs
}

// Snapshot returns a copy of the records together with the revision they
// belong to, for use with MarkSynced.
func (j *Journal) Snapshot() ([]inventory.ReadingRecord, uint64) {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]inventory.ReadingRecord, len(j.records))
	copy(out, j.records)
	return out, j.revision
}

// Len returns the number of records.
func (j *Journal) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.records)
}

// Revision increases with every mutation.
func (j *Journal) Revision() uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.revision
}

// State returns the pending flag and last sync time.
func (j *Journal) State() SyncState {
	j.mu.Lock()
	defer j.mu.Unlock()
	return SyncState{Pending: j.pending, LastSync: j.lastSync}
}

// Totals sums quantities over the journal.
func (j *Journal) Totals() Totals {
	j.mu.Lock()
	defer j.mu.Unlock()
	t := Totals{Records: len(j.records)}
	for _, r := range j.records {
		t.Quantity += r.Quantity
		if r.Origin == inventory.OriginManual {
			t.Manual += r.Quantity
			t.ManualRecords++
		} else {
			t.Scanner += r.Quantity
		}
	}
	return t
}

// Digest fingerprints the records, so callers can tell whether a push
// changed anything.
func (j *Journal) Digest() string {
	recs, _ := j.Snapshot()
	raw, _ := json.Marshal(recs)
	return strconv.FormatUint(xxhash.Sum64(raw), 16)
}

// MarkSynced clears the pending flag if the journal is still at rev. It
// reports false when a mutation happened after the pushed snapshot was taken.
func (j *Journal) MarkSynced(rev uint64, at time.Time) bool {
	j.mu.Lock()
	synced := j.revision == rev
	if synced {
		j.pending = false
	}
	j.lastSync = at
	err := j.persistLocked()
	j.mu.Unlock()

	if err != nil {
		log.Warn().Err(err).Int64("session", j.sessionID).Msg("journal sync state not persisted")
	}
	j.notify()
	return synced
}

type persisted struct {
	Pending  bool                      `json:"pending"`
	LastSync *time.Time                `json:"lastSync,omitempty"`
	Revision uint64                    `json:"revision"`
	Records  []inventory.ReadingRecord `json:"records"`
}

func (j *Journal) persistLocked() error {
	p := persisted{Pending: j.pending, Revision: j.revision, Records: j.records}
	if p.Records == nil {
		p.Records = []inventory.ReadingRecord{}
	}
	if !j.lastSync.IsZero() {
		at := j.lastSync
		p.LastSync = &at
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode journal: %w", err)
	}
	return j.store.Put(j.key, raw)
}

// Restore loads the persisted journal. When none exists it adopts the
// authority's baseline for device as already synced. It reports whether the
// baseline was used. A baseline failure leaves the journal empty and returns
// the error; nothing is persisted in that case.
func (j *Journal) Restore(ctx context.Context, baseline Baseline, device string) (bool, error) {
	ok, err := j.restoreLocal()
	if err != nil {
		log.Warn().Err(err).Str("key", j.key).Msg("persisted journal unusable, falling back to baseline")
	}
	if ok {
		j.notify()
		return false, nil
	}
	if baseline == nil {
		return false, &inventory.NetworkError{Op: "journal baseline", Err: fmt.Errorf("no authority configured")}
	}

	recs, err := baseline.Readings(ctx, j.sessionID, device)
	if err != nil {
		return false, fmt.Errorf("journal baseline: %w", err)
	}
	clean := make([]inventory.ReadingRecord, 0, len(recs))
	for _, r := range recs {
		if r.SKU == "" || r.Quantity < 1 {
			continue
		}
		if !r.Origin.Valid() {
			r.Origin = inventory.OriginScanner
		}
		clean = append(clean, r)
	}

	j.mu.Lock()
	j.records = clean
	j.pending = false
	perr := j.persistLocked()
	j.mu.Unlock()

	j.notify()
	if perr != nil {
		return true, perr
	}
	return true, nil
}

func (j *Journal) restoreLocal() (bool, error) {
	raw, ok, err := j.store.Get(j.key)
	if err != nil || !ok {
		return false, err
	}

	var p persisted
	if trimmed := bytes.TrimLeft(raw, " \t\r\n"); len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(raw, &p.Records); err != nil {
			return false, &inventory.StorageError{Key: j.key, Err: fmt.Errorf("%w: %v", inventory.ErrCorruptPayload, err)}
		}
		p.Pending = true
	} else if err := json.Unmarshal(raw, &p); err != nil {
		return false, &inventory.StorageError{Key: j.key, Err: fmt.Errorf("%w: %v", inventory.ErrCorruptPayload, err)}
	}
	for i := range p.Records {
		if !p.Records[i].Origin.Valid() {
			p.Records[i].Origin = inventory.OriginScanner
		}
	}

	j.mu.Lock()
	j.records = p.Records
	j.pending = p.Pending
	j.revision = p.Revision
	j.lastSync = time.Time{}
	if p.LastSync != nil {
		j.lastSync = *p.LastSync
	}
	j.mu.Unlock()
	return true, nil
}

// RestoreLocal loads only the persisted journal, for offline resumption.
// It reports false when nothing usable was stored.
func (j *Journal) RestoreLocal() bool {
	ok, err := j.restoreLocal()
	if err != nil {
		log.Warn().Err(err).Str("key", j.key).Msg("persisted journal unusable")
	}
	if ok {
		j.notify()
	}
	return ok
}
