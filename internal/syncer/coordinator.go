package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/jfloresavalos/InvBF/internal/authority"
	"github.com/jfloresavalos/InvBF/internal/catalog"
	"github.com/jfloresavalos/InvBF/internal/fallback"
	"github.com/jfloresavalos/InvBF/internal/inventory"
	"github.com/jfloresavalos/InvBF/internal/journal"
	"github.com/jfloresavalos/InvBF/internal/oplog"
	"github.com/jfloresavalos/InvBF/internal/state"
	"github.com/jfloresavalos/InvBF/internal/storage"
)

// CatalogFromAuthority marks a catalog that came from (or was confirmed by)
// the authority rather than an offline tier.
const CatalogFromAuthority = "authority"

// Options configures a Coordinator.
type Options struct {
	// Authority is the server address, persisted for the next start.
	Authority string
	// Device names this reader. Empty keeps the persisted name.
	Device string
	// ControlledHardware locks the device name after the first successful push.
	ControlledHardware bool

	Now       func() time.Time
	NewPushID func() string
}

// Coordinator drives connect, offline fallback and push for one device.
type Coordinator struct {
	api   authority.API
	store *storage.Store
	cache *catalog.Cache
	chain *fallback.Chain
	log   *oplog.Log
	state *state.Store
	opts  Options

	connectMu sync.Mutex
	pushMu    sync.Mutex

	mu       sync.Mutex
	device   string
	session  *inventory.Session
	journal  *journal.Journal
	lastPush pushAttempt
}

type pushAttempt struct {
	id        string
	sessionID int64
	revision  uint64
}

// New wires a Coordinator. The device name is resolved from opts, the lock and
// the store, in that order of precedence: a locked name always wins.
func New(api authority.API, store *storage.Store, cache *catalog.Cache, oplogger *oplog.Log, st *state.Store, opts Options) *Coordinator {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewPushID == nil {
		opts.NewPushID = uuid.NewString
	}
	c := &Coordinator{
		api:   api,
		store: store,
		cache: cache,
		chain: fallback.New(cache, store),
		log:   oplogger,
		state: st,
		opts:  opts,
	}

	if opts.Authority != "" {
		if err := store.PutString(storage.KeyAuthority, opts.Authority); err != nil {
			log.Warn().Err(err).Msg("authority address not persisted")
		}
	}

	device := strings.TrimSpace(opts.Device)
	if device == "" {
		device = store.GetString(storage.KeyDevice)
	}
	if locked := c.lockedDevice(); locked != "" && device != locked {
		if device != "" {
			log.Warn().Str("requested", device).Str("locked", locked).Msg("device name is locked, ignoring requested name")
		}
		device = locked
	}
	if device == "" {
		device = "reader"
	}
	c.device = device
	if err := store.PutString(storage.KeyDevice, device); err != nil {
		log.Warn().Err(err).Msg("device name not persisted")
	}
	oplogger.SetDevice(device)
	return c
}

// State exposes the shared status store.
func (c *Coordinator) State() *state.Store { return c.state }

// Cache exposes the catalog cache.
func (c *Coordinator) Cache() *catalog.Cache { return c.cache }

// OpLog exposes the operational log.
func (c *Coordinator) OpLog() *oplog.Log { return c.log }

// Journal returns the journal of the current session, or nil.
func (c *Coordinator) Journal() *journal.Journal {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.journal
}

// Session returns the current session.
func (c *Coordinator) Session() (inventory.Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return inventory.Session{}, false
	}
	return *c.session, true
}

// Device returns the current device name.
func (c *Coordinator) Device() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.device
}

func (c *Coordinator) lockedDevice() string {
	if !c.opts.ControlledHardware {
		return ""
	}
	return c.store.GetString(storage.KeyDeviceLocked)
}

// SetDevice renames the device. On controlled hardware a name locked by an
// earlier push cannot be changed.
func (c *Coordinator) SetDevice(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return &inventory.ValidationError{Field: "device", Reason: "required"}
	}
	if locked := c.lockedDevice(); locked != "" && locked != name {
		return &inventory.ValidationError{Field: "device", Reason: fmt.Sprintf("locked to %q on this hardware", locked)}
	}
	if err := c.store.PutString(storage.KeyDevice, name); err != nil {
		return err
	}
	c.mu.Lock()
	c.device = name
	c.mu.Unlock()
	c.log.SetDevice(name)
	return nil
}

// ConnectResult summarizes a Connect.
type ConnectResult struct {
	Phase        state.Phase
	Session      inventory.Session
	CatalogTier  string
	CatalogStale bool
	BaselineUsed bool
	// Cause is the probe failure that sent the device offline, if any.
	Cause    error
	Warnings []error
}

// Connect probes the authority and brings the device into the best phase it
// can reach. Only an exhausted offline fallback returns an error
// (wrapping inventory.ErrCannotOperate), apart from ctx cancellation.
func (c *Coordinator) Connect(ctx context.Context) (ConnectResult, error) {
	c.connectMu.Lock()
	defer c.connectMu.Unlock()

	c.state.SetPhase(state.PhaseChecking, nil)
	session, err := c.api.ActiveSession(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("session probe failed, switching to offline sources")
		return c.goOffline(err)
	}
	if session == nil {
		c.mu.Lock()
		c.session = nil
		c.journal = nil
		c.mu.Unlock()
		c.state.SetSession(nil)
		c.state.SetPhase(state.PhaseNoSession, inventory.ErrNoSession)
		c.log.Add(oplog.TypeInfo, "No active inventory")
		return ConnectResult{Phase: state.PhaseNoSession}, nil
	}

	res := ConnectResult{Session: *session}
	if err := c.saveSession(session); err != nil {
		res.Warnings = append(res.Warnings, err)
	}
	c.state.SetSession(session)

	syncRes, err := c.cache.Sync(ctx)
	if err != nil {
		if ctx.Err() != nil {
			c.state.SetPhase(state.PhaseDisconnected, err)
			return res, err
		}
		log.Warn().Err(err).Msg("catalog sync failed, switching to offline sources")
		return c.goOffline(err)
	}
	res.CatalogTier = CatalogFromAuthority
	res.CatalogStale = syncRes.Stale
	if syncRes.Warning != nil {
		res.Warnings = append(res.Warnings, syncRes.Warning)
		c.state.SetNotice("Catalog may be out of date: " + syncRes.Warning.Error())
	}
	c.state.SetCatalog(syncRes.Snapshot.Len(), syncRes.Snapshot.Hash(), CatalogFromAuthority, syncRes.Stale)

	if items, err := c.api.Stock(ctx, session.ID); err != nil {
		log.Warn().Err(err).Int64("session", session.ID).Msg("stock extract not cached")
	} else if err := fallback.SaveStock(c.store, items, c.opts.Now()); err != nil {
		log.Warn().Err(err).Msg("stock extract not persisted")
	}

	j := journal.New(c.store, session.ID)
	used, err := j.Restore(ctx, c.api, c.Device())
	res.BaselineUsed = used
	if err != nil {
		res.Warnings = append(res.Warnings, err)
		c.log.Add(oplog.TypeError, "Journal restore: "+err.Error())
		c.state.SetNotice("Journal baseline unavailable: " + err.Error())
	}

	c.mu.Lock()
	c.session = session
	c.journal = j
	c.lastPush = pushAttempt{}
	c.mu.Unlock()

	c.state.SetPhase(state.PhaseActive, nil)
	c.log.Add(oplog.TypeInfo, fmt.Sprintf("Connected to inventory #%d %s (%d products)", session.ID, session.Name, syncRes.Snapshot.Len()))
	res.Phase = state.PhaseActive
	return res, nil
}

func (c *Coordinator) goOffline(cause error) (ConnectResult, error) {
	res := ConnectResult{Cause: cause}
	resolved, err := c.chain.Resolve()
	session := c.loadSession()
	if err != nil || session == nil {
		if err == nil {
			err = fmt.Errorf("%w: no persisted session", inventory.ErrCannotOperate)
		}
		c.mu.Lock()
		c.session = nil
		c.journal = nil
		c.mu.Unlock()
		c.state.SetSession(nil)
		c.state.SetPhase(state.PhaseBlocked, err)
		c.log.Add(oplog.TypeError, "Cannot operate offline: "+err.Error())
		res.Phase = state.PhaseBlocked
		return res, fmt.Errorf("connect: %w (probe: %v)", err, cause)
	}

	j := journal.New(c.store, session.ID)
	j.RestoreLocal()

	c.mu.Lock()
	c.session = session
	c.journal = j
	c.mu.Unlock()

	res.Phase = state.PhaseOffline
	res.Session = *session
	res.CatalogTier = string(resolved.Tier)
	res.CatalogStale = true
	c.state.SetSession(session)
	c.state.SetCatalog(resolved.Snapshot.Len(), resolved.Snapshot.Hash(), string(resolved.Tier), true)
	c.state.SetPhase(state.PhaseOffline, cause)
	c.log.Add(oplog.TypeInfo, fmt.Sprintf("Offline mode: catalog from %s, inventory #%d", resolved.Tier, session.ID))
	return res, nil
}

func (c *Coordinator) saveSession(session *inventory.Session) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	return c.store.Put(storage.KeySession, raw)
}

func (c *Coordinator) loadSession() *inventory.Session {
	raw, ok, err := c.store.Get(storage.KeySession)
	if err != nil || !ok {
		return nil
	}
	var s inventory.Session
	if err := json.Unmarshal(raw, &s); err != nil || s.ID <= 0 {
		log.Warn().Err(err).Msg("persisted session unusable")
		return nil
	}
	return &s
}

// Record adds a reading to the current journal.
func (c *Coordinator) Record(product inventory.CatalogEntry, quantity int, location string, origin inventory.Origin) error {
	j, err := c.recordable()
	if err != nil {
		return err
	}
	if err := j.Record(product, quantity, location, origin); err != nil {
		return err
	}
	if origin == inventory.OriginManual {
		c.log.Add(oplog.TypeInfo, fmt.Sprintf("Manual: %s x%d", product.Description, quantity))
	}
	return nil
}

// Delete removes n units from the record at index and logs it.
func (c *Coordinator) Delete(index, n int) error {
	j, err := c.recordable()
	if err != nil {
		return err
	}
	if n <= 0 {
		return nil
	}
	recs := j.Records()
	if index < 0 || index >= len(recs) {
		return fmt.Errorf("%w: %d of %d", inventory.ErrIndexOutOfRange, index, len(recs))
	}
	target := recs[index]
	if err := j.Delete(index, n); err != nil {
		return err
	}
	removed := n
	if removed > target.Quantity {
		removed = target.Quantity
	}
	c.log.Add(oplog.TypeDelete, fmt.Sprintf("Removed %d x %s (%s)", removed, target.Description, target.SKU))
	return nil
}

// Clear empties the journal. The next push replaces the device's readings on
// the authority with nothing.
func (c *Coordinator) Clear() error {
	j, err := c.recordable()
	if err != nil {
		return err
	}
	if err := j.Clear(); err != nil {
		return err
	}
	c.log.Add(oplog.TypeDelete, "Journal cleared")
	return nil
}

func (c *Coordinator) recordable() (*journal.Journal, error) {
	j := c.Journal()
	if j == nil || !c.state.Snapshot().Phase.CanRecord() {
		return nil, inventory.ErrNoSession
	}
	return j, nil
}

// PushResult describes a successful push.
type PushResult struct {
	PushID   string
	Records  int
	Quantity int
	// Clean is false when the journal changed while the push was in flight,
	// which leaves it pending.
	Clean bool
}

// ErrNotAcknowledged reports a 2xx push reply that did not confirm this push.
var ErrNotAcknowledged = errors.New("push not acknowledged")

// Push sends the whole journal and a slice of the operational log. Any failure
// leaves the journal and its pending flag exactly as they were.
func (c *Coordinator) Push(ctx context.Context) (PushResult, error) {
	c.pushMu.Lock()
	defer c.pushMu.Unlock()

	prev := c.state.Snapshot().Phase
	if prev != state.PhaseActive && prev != state.PhaseOffline {
		return PushResult{}, fmt.Errorf("push: %w (phase %s)", inventory.ErrNoSession, prev)
	}
	c.mu.Lock()
	j, session, device := c.journal, c.session, c.device
	c.mu.Unlock()
	if j == nil || session == nil {
		return PushResult{}, fmt.Errorf("push: %w", inventory.ErrNoSession)
	}
	if locked := c.lockedDevice(); locked != "" && locked != device {
		return PushResult{}, &inventory.ValidationError{Field: "device", Reason: fmt.Sprintf("locked to %q on this hardware", locked)}
	}

	records, rev := j.Snapshot()
	pushID := c.nonceFor(session.ID, rev)
	req := authority.PushRequest{
		Device:   device,
		PushID:   pushID,
		Readings: records,
		Log:      c.log.PushSlice(),
	}

	c.state.SetPhase(state.PhaseSyncing, nil)
	resp, err := c.api.Push(ctx, session.ID, req)
	if err == nil && (!resp.Success || (resp.PushID != "" && resp.PushID != pushID)) {
		err = fmt.Errorf("%w: success=%v pushId=%q", ErrNotAcknowledged, resp.Success, resp.PushID)
	}
	if err != nil {
		if !inventory.IsNetwork(err) {
			c.mu.Lock()
			c.lastPush = pushAttempt{}
			c.mu.Unlock()
		}
		c.state.SetPhase(prev, err)
		c.log.Add(oplog.TypeError, "Sync failed: "+err.Error())
		return PushResult{}, fmt.Errorf("push: %w", err)
	}

	clean := j.MarkSynced(rev, c.opts.Now())
	c.mu.Lock()
	c.lastPush = pushAttempt{}
	c.mu.Unlock()

	if c.opts.ControlledHardware && c.store.GetString(storage.KeyDeviceLocked) == "" {
		if err := c.store.PutString(storage.KeyDeviceLocked, device); err != nil {
			log.Warn().Err(err).Msg("device lock not persisted")
		}
	}

	qty := 0
	for _, r := range records {
		qty += r.Quantity
	}
	c.state.SetPhase(prev, nil)
	c.log.Add(oplog.TypeSync, fmt.Sprintf("Synced %d records, %d units", len(records), qty))
	return PushResult{PushID: pushID, Records: len(records), Quantity: qty, Clean: clean}, nil
}

// nonceFor reuses the last nonce when retrying the same journal revision
// after a transport failure, so the authority can drop a duplicate.
func (c *Coordinator) nonceFor(sessionID int64, rev uint64) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastPush.id != "" && c.lastPush.sessionID == sessionID && c.lastPush.revision == rev {
		return c.lastPush.id
	}
	c.lastPush = pushAttempt{id: c.opts.NewPushID(), sessionID: sessionID, revision: rev}
	return c.lastPush.id
}

// Progress fetches the live count summary for the current session.
func (c *Coordinator) Progress(ctx context.Context) (inventory.Progress, error) {
	session, ok := c.Session()
	if !ok {
		return inventory.Progress{}, inventory.ErrNoSession
	}
	return c.api.Progress(ctx, session.ID)
}
