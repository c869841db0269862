package catalog

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jfloresavalos/InvBF/internal/inventory"
	"github.com/jfloresavalos/InvBF/internal/storage"
)

type fakeSource struct {
	mu         sync.Mutex
	hash       string
	entries    []inventory.CatalogEntry
	failFirst  int
	versionErr error
	started    chan struct{}
	release    chan struct{}

	downloads atomic.Int32
	versions  atomic.Int32
}

func (f *fakeSource) CatalogVersion(context.Context) (inventory.CatalogVersion, error) {
	f.versions.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.versionErr != nil {
		return inventory.CatalogVersion{}, f.versionErr
	}
	return inventory.CatalogVersion{Hash: f.hash, Count: len(f.entries)}, nil
}

func (f *fakeSource) Catalog(ctx context.Context) ([]inventory.CatalogEntry, error) {
	n := f.downloads.Add(1)
	if f.started != nil {
		f.started <- struct{}{}
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if int(n) <= f.failFirst {
		return nil, &inventory.NetworkError{Op: "GET /api/catalog", Err: errors.New("connection refused")}
	}
	return f.entries, nil
}

func sampleEntries() []inventory.CatalogEntry {
	return []inventory.CatalogEntry{
		{SKU: "A1", ALU: "007", Description: "Boot", Supplier: "Acme", Season: "W24"},
		{SKU: "B2", ALU: "", Description: "Sock", Supplier: "Bolt", Season: "S24"},
		{SKU: "000123", ALU: "X9", Description: "Cap", Supplier: "Acme", Season: "S24"},
	}
}

func newTestCache(t *testing.T, src Source, codec Codec) (*Cache, *storage.Store) {
	t.Helper()
	store, err := storage.Open(t.TempDir(), 0)
	require.NoError(t, err)
	return New(store, src, Options{Codec: codec, RetryDelay: time.Millisecond}), store
}

func TestSnapshot_LookupZeroPadded(t *testing.T) {
	snap := NewSnapshot(sampleEntries(), "h", time.Now())

	for _, code := range []string{"007", "07", "7"} {
		got, ok := snap.Lookup(code)
		require.Truef(t, ok, "lookup %q", code)
		assert.Equal(t, "A1", got.SKU)
	}

	got, ok := snap.Lookup("B2")
	require.True(t, ok)
	assert.Equal(t, "Sock", got.Description)

	got, ok = snap.Lookup("123")
	require.True(t, ok, "stripped sku should match")
	assert.Equal(t, "000123", got.SKU)

	got, ok = snap.Lookup("ZZZ")
	assert.False(t, ok)
	assert.True(t, got.IsNotFound())
	assert.Equal(t, "ZZZ", got.SKU)
	assert.Equal(t, inventory.NotFoundLabel, got.Description)
}

func TestSnapshot_ALUBeforeSKUAndLastWins(t *testing.T) {
	snap := NewSnapshot([]inventory.CatalogEntry{
		{SKU: "555", Description: "by sku"},
		{SKU: "S1", ALU: "555", Description: "first alu"},
		{SKU: "S2", ALU: "555", Description: "second alu"},
	}, "", time.Now())

	got, ok := snap.Lookup("555")
	require.True(t, ok)
	assert.Equal(t, "second alu", got.Description)
}

func TestCache_LookupWithoutSnapshotIsSentinel(t *testing.T) {
	c, _ := newTestCache(t, nil, CodecSnappy)
	got, ok := c.Lookup("42")
	assert.False(t, ok)
	assert.True(t, got.IsNotFound())
}

func TestCache_PersistRestoreEachCodec(t *testing.T) {
	for _, codec := range []Codec{CodecSnappy, CodecZstd, CodecLZ4, CodecNone} {
		t.Run(string(codec), func(t *testing.T) {
			c, store := newTestCache(t, nil, codec)
			snap := NewSnapshot(sampleEntries(), "hash-1", time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
			require.NoError(t, c.Persist(snap))
			assert.Equal(t, "hash-1", store.GetString(storage.KeyCatalogHash))

			fresh := New(store, nil, Options{})
			require.True(t, fresh.Restore())
			got := fresh.Snapshot()
			assert.Equal(t, 3, got.Len())
			assert.Equal(t, "hash-1", got.Hash())
			assert.True(t, got.CapturedAt().Equal(snap.CapturedAt()))
			_, ok := got.Lookup("7")
			assert.True(t, ok)
		})
	}
}

func TestCache_RestoreLegacyPlainArray(t *testing.T) {
	c, store := newTestCache(t, nil, CodecSnappy)
	require.NoError(t, store.PutString(storage.KeyCatalog, `[{"sku":"A1","alu":"007","description":"Boot"}]`))

	require.True(t, c.Restore())
	assert.Equal(t, 1, c.Snapshot().Len())
}

func TestCache_RestoreFailsClosed(t *testing.T) {
	cases := []struct {
		name    string
		payload []byte
	}{
		{name: "garbage", payload: []byte("not a catalog")},
		{name: "truncated snappy", payload: append([]byte("\xff\x06\x00\x00sNaPpY"), 0x01, 0x09, 0x00)},
		{name: "empty array", payload: []byte("[]")},
		{name: "empty object", payload: []byte(`{"entries":[]}`)},
		{name: "bad json", payload: []byte(`{"entries":[`)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, store := newTestCache(t, nil, CodecSnappy)
			prior := NewSnapshot(sampleEntries(), "prior", time.Now())
			c.Install(prior)
			require.NoError(t, store.Put(storage.KeyCatalog, tc.payload))

			assert.False(t, c.Restore())
			assert.Same(t, prior, c.Snapshot())
		})
	}
}

func TestCache_RestoreMissing(t *testing.T) {
	c, _ := newTestCache(t, nil, CodecSnappy)
	assert.False(t, c.Restore())
	assert.Nil(t, c.Snapshot())
}

func TestCache_SyncSameHashSkipsDownload(t *testing.T) {
	src := &fakeSource{hash: "h1", entries: sampleEntries()}
	c, _ := newTestCache(t, src, CodecSnappy)
	prior := NewSnapshot(sampleEntries(), "h1", time.Now())
	c.Install(prior)

	res, err := c.Sync(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Downloaded)
	assert.Same(t, prior, res.Snapshot)
	assert.Same(t, prior, c.Snapshot())
	assert.Equal(t, int32(0), src.downloads.Load())
}

func TestCache_SyncHashMismatchReplacesAndPersists(t *testing.T) {
	src := &fakeSource{hash: "h2", entries: sampleEntries()[:2]}
	c, store := newTestCache(t, src, CodecZstd)
	prior := NewSnapshot(sampleEntries(), "h1", time.Now())
	c.Install(prior)

	res, err := c.Sync(context.Background())
	require.NoError(t, err)
	require.NoError(t, res.Warning)
	assert.True(t, res.Downloaded)
	assert.NotSame(t, prior, c.Snapshot())
	assert.Equal(t, 2, c.Snapshot().Len())
	assert.Equal(t, "h2", c.Snapshot().Hash())
	assert.Equal(t, "h2", store.GetString(storage.KeyCatalogHash))
}

func TestCache_SyncRestoresPersistedBeforeComparing(t *testing.T) {
	src := &fakeSource{hash: "h1", entries: sampleEntries()}
	c, store := newTestCache(t, src, CodecSnappy)
	require.NoError(t, c.Persist(NewSnapshot(sampleEntries(), "h1", time.Now())))

	fresh := New(store, src, Options{})
	res, err := fresh.Sync(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Downloaded)
	assert.Equal(t, 3, res.Snapshot.Len())
	assert.Equal(t, int32(0), src.downloads.Load())
}

func TestCache_SyncDownloadFailureKeepsStale(t *testing.T) {
	src := &fakeSource{hash: "h2", entries: sampleEntries(), failFirst: 100}
	c, _ := newTestCache(t, src, CodecSnappy)
	prior := NewSnapshot(sampleEntries(), "h1", time.Now())
	c.Install(prior)

	res, err := c.Sync(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Stale)
	assert.True(t, inventory.IsNetwork(res.Warning))
	assert.Same(t, prior, c.Snapshot())
	assert.Equal(t, int32(1), src.downloads.Load())
}

func TestCache_SyncVersionFailureKeepsStale(t *testing.T) {
	src := &fakeSource{versionErr: &inventory.NetworkError{Op: "version", Err: errors.New("timeout")}}
	c, _ := newTestCache(t, src, CodecSnappy)
	prior := NewSnapshot(sampleEntries(), "h1", time.Now())
	c.Install(prior)

	res, err := c.Sync(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Stale)
	assert.Same(t, prior, res.Snapshot)
	assert.Equal(t, int32(0), src.downloads.Load())
}

func TestCache_SyncWithoutSnapshotRetriesUntilSuccess(t *testing.T) {
	src := &fakeSource{hash: "h1", entries: sampleEntries(), failFirst: 2}
	c, _ := newTestCache(t, src, CodecSnappy)

	res, err := c.Sync(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Downloaded)
	assert.Equal(t, int32(3), src.downloads.Load())
	assert.Equal(t, "h1", res.Snapshot.Hash())
}

func TestCache_SyncWithoutSnapshotStopsOnCancel(t *testing.T) {
	src := &fakeSource{hash: "h1", failFirst: 1 << 30}
	c, _ := newTestCache(t, src, CodecSnappy)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := c.Sync(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Nil(t, c.Snapshot())
	assert.Greater(t, src.downloads.Load(), int32(1))
}

func TestCache_SyncEmptyDownloadIsValidationError(t *testing.T) {
	src := &fakeSource{hash: "h1"}
	c, _ := newTestCache(t, src, CodecSnappy)

	_, err := c.Sync(context.Background())
	assert.True(t, inventory.IsValidation(err))
	assert.Nil(t, c.Snapshot())
}

func TestCache_SyncVersionRefreshedAfterBlindDownload(t *testing.T) {
	src := &fakeSource{hash: "h9", entries: sampleEntries()}
	src.versionErr = errors.New("first check fails")
	c, _ := newTestCache(t, src, CodecSnappy)

	// The version endpoint recovers while the download is running.
	src.started = make(chan struct{})
	src.release = make(chan struct{})
	done := make(chan SyncResult, 1)
	go func() {
		res, _ := c.Sync(context.Background())
		done <- res
	}()
	<-src.started
	src.mu.Lock()
	src.versionErr = nil
	src.mu.Unlock()
	close(src.release)

	res := <-done
	assert.True(t, res.Downloaded)
	assert.Equal(t, "h9", res.Snapshot.Hash())
}

func TestCache_ConcurrentSyncDownloadsOnce(t *testing.T) {
	src := &fakeSource{hash: "h1", entries: sampleEntries()}
	src.started = make(chan struct{}, 4)
	src.release = make(chan struct{})
	c, _ := newTestCache(t, src, CodecSnappy)

	var wg sync.WaitGroup
	results := make([]SyncResult, 3)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := c.Sync(context.Background())
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}
	<-src.started
	time.Sleep(20 * time.Millisecond)
	close(src.release)
	wg.Wait()

	assert.Equal(t, int32(1), src.downloads.Load())
	for _, res := range results {
		assert.Same(t, c.Snapshot(), res.Snapshot)
	}
}

func TestCache_PersistOverCapacityKeepsMemory(t *testing.T) {
	store, err := storage.Open(t.TempDir(), 8)
	require.NoError(t, err)
	src := &fakeSource{hash: "h1", entries: sampleEntries()}
	c := New(store, src, Options{Codec: CodecNone})

	res, err := c.Sync(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Downloaded)
	assert.ErrorIs(t, res.Warning, inventory.ErrCapacityExceeded)
	assert.Equal(t, 3, c.Snapshot().Len())
	assert.False(t, New(store, nil, Options{}).Restore())
}

func TestParseCodec(t *testing.T) {
	c, err := ParseCodec("")
	require.NoError(t, err)
	assert.Equal(t, CodecSnappy, c)

	c, err = ParseCodec(" LZ4 ")
	require.NoError(t, err)
	assert.Equal(t, CodecLZ4, c)

	_, err = ParseCodec("brotli")
	assert.True(t, inventory.IsValidation(err))
}
