package syncer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jfloresavalos/InvBF/internal/authority"
	"github.com/jfloresavalos/InvBF/internal/catalog"
	"github.com/jfloresavalos/InvBF/internal/fakeauthority"
	"github.com/jfloresavalos/InvBF/internal/fallback"
	"github.com/jfloresavalos/InvBF/internal/inventory"
	"github.com/jfloresavalos/InvBF/internal/oplog"
	"github.com/jfloresavalos/InvBF/internal/state"
	"github.com/jfloresavalos/InvBF/internal/storage"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

var boot = inventory.CatalogEntry{SKU: "A1", ALU: "007", Description: "Boot"}

type fakeAPI struct {
	mu       sync.Mutex
	session  *inventory.Session
	probeErr error
	catalog  []inventory.CatalogEntry
	hash     string
	stock    []inventory.StockItem
	baseline []inventory.ReadingRecord
	pushErr  error
	pushResp *authority.PushResponse
	onPush   func()
	pushes   []authority.PushRequest
}

var _ authority.API = (*fakeAPI)(nil)

func (f *fakeAPI) ActiveSession(context.Context) (*inventory.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.session, f.probeErr
}

func (f *fakeAPI) CatalogVersion(context.Context) (inventory.CatalogVersion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return inventory.CatalogVersion{Hash: f.hash, Count: len(f.catalog)}, nil
}

func (f *fakeAPI) Catalog(context.Context) ([]inventory.CatalogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.catalog, nil
}

func (f *fakeAPI) Stock(context.Context, int64) ([]inventory.StockItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stock, nil
}

func (f *fakeAPI) Readings(context.Context, int64, string) ([]inventory.ReadingRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.baseline, nil
}

func (f *fakeAPI) Push(_ context.Context, _ int64, req authority.PushRequest) (authority.PushResponse, error) {
	f.mu.Lock()
	f.pushes = append(f.pushes, req)
	hook := f.onPush
	err := f.pushErr
	override := f.pushResp
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	if err != nil {
		return authority.PushResponse{}, err
	}
	if override != nil {
		return *override, nil
	}
	return authority.PushResponse{Success: true, Records: len(req.Readings), PushID: req.PushID}, nil
}

func (f *fakeAPI) Progress(context.Context, int64) (inventory.Progress, error) {
	return inventory.Progress{Summary: inventory.ProgressSummary{TotalCounted: 1}}, nil
}

func (f *fakeAPI) lastPush() authority.PushRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pushes[len(f.pushes)-1]
}

type harness struct {
	api   *fakeAPI
	store *storage.Store
	coord *Coordinator
	ids   int
}

func newHarness(t *testing.T, api *fakeAPI, opts Options) *harness {
	t.Helper()
	store, err := storage.Open(t.TempDir(), 0)
	require.NoError(t, err)
	return newHarnessWithStore(t, api, store, opts)
}

func newHarnessWithStore(t *testing.T, api *fakeAPI, store *storage.Store, opts Options) *harness {
	t.Helper()
	h := &harness{api: api, store: store}
	if opts.NewPushID == nil {
		opts.NewPushID = func() string {
			h.ids++
			return fmt.Sprintf("push-%d", h.ids)
		}
	}
	if opts.Device == "" {
		opts.Device = "Reader 1"
	}
	cache := catalog.New(store, api, catalog.Options{RetryDelay: time.Millisecond})
	h.coord = New(api, store, cache, oplog.Open(store, ""), &state.Store{}, opts)
	return h
}

func onlineAPI() *fakeAPI {
	return &fakeAPI{
		session: &inventory.Session{ID: 7, Name: "Store 3"},
		catalog: []inventory.CatalogEntry{boot},
		hash:    "h1",
		stock:   []inventory.StockItem{{ID: 1, SKU: "A1", ALU: "007", Description: "Boot", Expected: 4}},
	}
}

func TestConnect_ActiveAdoptsBaseline(t *testing.T) {
	api := onlineAPI()
	api.baseline = []inventory.ReadingRecord{{SKU: "A1", Quantity: 2, Location: "L1", Origin: inventory.OriginScanner}}
	h := newHarness(t, api, Options{Authority: "http://inv.local"})

	res, err := h.coord.Connect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, state.PhaseActive, res.Phase)
	assert.True(t, res.BaselineUsed)
	assert.Equal(t, CatalogFromAuthority, res.CatalogTier)

	j := h.coord.Journal()
	require.NotNil(t, j)
	assert.Equal(t, 2, j.Totals().Quantity)
	assert.False(t, j.State().Pending)

	snap := h.coord.State().Snapshot()
	assert.Equal(t, state.PhaseActive, snap.Phase)
	assert.Equal(t, 1, snap.CatalogSize)
	assert.Equal(t, int64(7), snap.Session.ID)

	items, _, err := fallback.LoadStock(h.store)
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, "http://inv.local", h.store.GetString(storage.KeyAuthority))
	assert.NotEmpty(t, h.store.GetString(storage.KeySession))
}

func TestConnect_NoSession(t *testing.T) {
	api := onlineAPI()
	api.session = nil
	h := newHarness(t, api, Options{})

	res, err := h.coord.Connect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, state.PhaseNoSession, res.Phase)
	assert.ErrorIs(t, h.coord.Record(boot, 1, "L1", inventory.OriginScanner), inventory.ErrNoSession)
	_, err = h.coord.Push(context.Background())
	assert.ErrorIs(t, err, inventory.ErrNoSession)
}

func TestConnect_OfflineWithNothingCachedBlocks(t *testing.T) {
	api := &fakeAPI{probeErr: &inventory.NetworkError{Op: "probe", Err: errors.New("no route to host")}}
	h := newHarness(t, api, Options{})

	res, err := h.coord.Connect(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, inventory.ErrCannotOperate)
	assert.Equal(t, state.PhaseBlocked, res.Phase)
	assert.Equal(t, state.PhaseBlocked, h.coord.State().Snapshot().Phase)
	assert.Nil(t, h.coord.Journal())

	entries := h.coord.OpLog().Entries(1)
	require.Len(t, entries, 1)
	assert.Equal(t, oplog.TypeError, entries[0].Type)
}

func TestConnect_OfflineResumesPersistedSession(t *testing.T) {
	api := onlineAPI()
	h := newHarness(t, api, Options{})
	_, err := h.coord.Connect(context.Background())
	require.NoError(t, err)
	require.NoError(t, h.coord.Record(boot, 3, "L1", inventory.OriginScanner))

	// Restart with the authority unreachable.
	api.probeErr = &inventory.NetworkError{Op: "probe", Err: errors.New("timeout")}
	restarted := newHarnessWithStore(t, api, h.store, Options{})
	res, err := restarted.coord.Connect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, state.PhaseOffline, res.Phase)
	assert.Equal(t, string(fallback.TierPersisted), res.CatalogTier)
	assert.True(t, inventory.IsNetwork(res.Cause))

	j := restarted.coord.Journal()
	require.NotNil(t, j)
	assert.Equal(t, 3, j.Totals().Quantity)
	got, ok := restarted.coord.Cache().Lookup("7")
	require.True(t, ok)
	assert.Equal(t, "A1", got.SKU)

	require.NoError(t, restarted.coord.Record(boot, 1, "L1", inventory.OriginScanner))
	assert.Equal(t, 4, j.Totals().Quantity)
}

func TestConnect_OfflineFallsBackToStock(t *testing.T) {
	api := onlineAPI()
	h := newHarness(t, api, Options{})
	_, err := h.coord.Connect(context.Background())
	require.NoError(t, err)
	require.NoError(t, h.store.Delete(storage.KeyCatalog))

	api.probeErr = errors.New("dial tcp: connection refused")
	restarted := newHarnessWithStore(t, api, h.store, Options{})
	res, err := restarted.coord.Connect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, state.PhaseOffline, res.Phase)
	assert.Equal(t, string(fallback.TierStock), res.CatalogTier)
}

func TestPush_FailureLeavesJournalUntouched(t *testing.T) {
	api := onlineAPI()
	h := newHarness(t, api, Options{})
	_, err := h.coord.Connect(context.Background())
	require.NoError(t, err)
	require.NoError(t, h.coord.Record(boot, 2, "L1", inventory.OriginScanner))

	j := h.coord.Journal()
	digest := j.Digest()
	before, _, err := h.store.Get(storage.JournalKey(7))
	require.NoError(t, err)
	logLen := h.coord.OpLog().Len()

	api.pushErr = &authority.StatusError{Path: "/api/inventory/7/sync", Status: http.StatusInternalServerError}
	_, err = h.coord.Push(context.Background())
	require.Error(t, err)

	assert.True(t, j.State().Pending)
	assert.Equal(t, digest, j.Digest())
	after, _, err := h.store.Get(storage.JournalKey(7))
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, logLen+1, h.coord.OpLog().Len())
	assert.Equal(t, oplog.TypeError, h.coord.OpLog().Entries(1)[0].Type)
	assert.Equal(t, state.PhaseActive, h.coord.State().Snapshot().Phase)
}

func TestPush_SuccessClearsPendingAndSendsLog(t *testing.T) {
	api := onlineAPI()
	h := newHarness(t, api, Options{})
	_, err := h.coord.Connect(context.Background())
	require.NoError(t, err)
	require.NoError(t, h.coord.Record(boot, 2, "L1", inventory.OriginScanner))
	require.NoError(t, h.coord.Record(boot, 1, "", inventory.OriginManual))

	res, err := h.coord.Push(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Clean)
	assert.Equal(t, 2, res.Records)
	assert.Equal(t, 3, res.Quantity)
	assert.False(t, h.coord.Journal().State().Pending)

	sent := api.lastPush()
	assert.Equal(t, "Reader 1", sent.Device)
	assert.Len(t, sent.Readings, 2)
	assert.NotEmpty(t, sent.Log)
	assert.LessOrEqual(t, len(sent.Log), oplog.PushEntries)
	assert.Equal(t, oplog.TypeSync, h.coord.OpLog().Entries(1)[0].Type)
}

func TestPush_NonceReusedOnlyForUnchangedRetry(t *testing.T) {
	api := onlineAPI()
	h := newHarness(t, api, Options{})
	_, err := h.coord.Connect(context.Background())
	require.NoError(t, err)
	require.NoError(t, h.coord.Record(boot, 1, "L1", inventory.OriginScanner))

	api.pushErr = &inventory.NetworkError{Op: "push", Err: context.DeadlineExceeded}
	_, err = h.coord.Push(context.Background())
	require.Error(t, err)
	first := api.lastPush().PushID

	_, err = h.coord.Push(context.Background())
	require.Error(t, err)
	assert.Equal(t, first, api.lastPush().PushID)

	require.NoError(t, h.coord.Record(boot, 1, "L1", inventory.OriginScanner))
	api.pushErr = nil
	_, err = h.coord.Push(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, first, api.lastPush().PushID)
}

func TestPush_MismatchedAcknowledgementFails(t *testing.T) {
	api := onlineAPI()
	h := newHarness(t, api, Options{})
	_, err := h.coord.Connect(context.Background())
	require.NoError(t, err)
	require.NoError(t, h.coord.Record(boot, 1, "L1", inventory.OriginScanner))

	api.pushResp = &authority.PushResponse{Success: true, PushID: "someone-else"}
	_, err = h.coord.Push(context.Background())
	assert.ErrorIs(t, err, ErrNotAcknowledged)
	assert.True(t, h.coord.Journal().State().Pending)
}

func TestPush_MutationDuringPushStaysPending(t *testing.T) {
	api := onlineAPI()
	h := newHarness(t, api, Options{})
	_, err := h.coord.Connect(context.Background())
	require.NoError(t, err)
	require.NoError(t, h.coord.Record(boot, 1, "L1", inventory.OriginScanner))

	api.onPush = func() {
		_ = h.coord.Journal().Record(boot, 1, "L2", inventory.OriginScanner)
	}
	res, err := h.coord.Push(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Clean)
	assert.True(t, h.coord.Journal().State().Pending)
}

func TestPush_AllowedOffline(t *testing.T) {
	api := onlineAPI()
	h := newHarness(t, api, Options{})
	_, err := h.coord.Connect(context.Background())
	require.NoError(t, err)

	api.probeErr = errors.New("unreachable")
	_, err = h.coord.Connect(context.Background())
	require.NoError(t, err)
	require.Equal(t, state.PhaseOffline, h.coord.State().Snapshot().Phase)
	require.NoError(t, h.coord.Record(boot, 1, "L1", inventory.OriginScanner))

	_, err = h.coord.Push(context.Background())
	require.NoError(t, err)
	assert.Equal(t, state.PhaseOffline, h.coord.State().Snapshot().Phase)
}

func TestDeviceLock_OnControlledHardware(t *testing.T) {
	api := onlineAPI()
	h := newHarness(t, api, Options{ControlledHardware: true})
	require.NoError(t, h.coord.SetDevice("Reader 9"))
	_, err := h.coord.Connect(context.Background())
	require.NoError(t, err)
	_, err = h.coord.Push(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "Reader 9", h.store.GetString(storage.KeyDeviceLocked))
	err = h.coord.SetDevice("Reader 1")
	assert.True(t, inventory.IsValidation(err))
	assert.NoError(t, h.coord.SetDevice("Reader 9"))

	restarted := newHarnessWithStore(t, api, h.store, Options{ControlledHardware: true, Device: "Other"})
	assert.Equal(t, "Reader 9", restarted.coord.Device())
}

func TestDeviceLock_IgnoredOnOpenHardware(t *testing.T) {
	api := onlineAPI()
	h := newHarness(t, api, Options{})
	_, err := h.coord.Connect(context.Background())
	require.NoError(t, err)
	_, err = h.coord.Push(context.Background())
	require.NoError(t, err)

	assert.Empty(t, h.store.GetString(storage.KeyDeviceLocked))
	assert.NoError(t, h.coord.SetDevice("Reader 2"))
}

func TestDelete_LogsRemoval(t *testing.T) {
	api := onlineAPI()
	h := newHarness(t, api, Options{})
	_, err := h.coord.Connect(context.Background())
	require.NoError(t, err)
	require.NoError(t, h.coord.Record(boot, 3, "L1", inventory.OriginScanner))

	require.NoError(t, h.coord.Delete(0, 5))
	assert.Equal(t, 0, h.coord.Journal().Len())
	entry := h.coord.OpLog().Entries(1)[0]
	assert.Equal(t, oplog.TypeDelete, entry.Type)
	assert.Contains(t, entry.Message, "Removed 3 x Boot")

	assert.ErrorIs(t, h.coord.Delete(0, 1), inventory.ErrIndexOutOfRange)
}

func TestEndToEnd_AgainstFakeAuthority(t *testing.T) {
	fake := fakeauthority.New()
	fake.SetSession(&inventory.Session{ID: 11, Name: "Outlet"})
	fake.SetCatalog([]inventory.CatalogEntry{boot})
	fake.SetReadings(11, "Reader 1", []inventory.ReadingRecord{{SKU: "A1", Quantity: 4, Location: "L1", Origin: inventory.OriginScanner}})
	ts := httptest.NewServer(fake.Handler())
	t.Cleanup(ts.Close)

	client, err := authority.NewClient(ts.URL, authority.Timeouts{})
	require.NoError(t, err)
	store, err := storage.Open(t.TempDir(), 0)
	require.NoError(t, err)
	cache := catalog.New(store, client, catalog.Options{})
	coord := New(client, store, cache, oplog.Open(store, ""), &state.Store{}, Options{Device: "Reader 1"})

	_, err = coord.Connect(context.Background())
	require.NoError(t, err)
	require.NoError(t, coord.Record(boot, 1, "L1", inventory.OriginScanner))

	fake.FailNext(fakeauthority.PathSync, http.StatusServiceUnavailable, 1)
	_, err = coord.Push(context.Background())
	require.Error(t, err)
	assert.Equal(t, 4, fake.Readings(11, "Reader 1")[0].Quantity)

	_, err = coord.Push(context.Background())
	require.NoError(t, err)
	got := fake.Readings(11, "Reader 1")
	require.Len(t, got, 1)
	assert.Equal(t, 5, got[0].Quantity)

	// A second connect finds the same hash and does not download again.
	_, err = coord.Connect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, fake.Hits(fakeauthority.PathCatalog))
}
