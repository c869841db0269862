// Package oplog is the bounded, user-facing activity log. Entries are kept
// newest first, capped, persisted on every append, and a slice of them travels
// with each journal push.
package oplog

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jfloresavalos/InvBF/internal/inventory"
	"github.com/jfloresavalos/InvBF/internal/storage"
)

// Entry types.
const (
	TypeSync   = "sync"
	TypeDelete = "delete"
	TypeError  = "error"
	TypeInfo   = "info"
)

const (
	// MaxEntries bounds the persisted log.
	MaxEntries = 200
	// PushEntries is how many of the newest entries accompany a push.
	PushEntries = 100
)

// Log is safe for concurrent use.
type Log struct {
	store *storage.Store
	now   func() time.Time

	mu      sync.Mutex
	device  string
	entries []inventory.LogEntry
}

// Open loads any persisted entries. An unreadable log starts empty.
func Open(store *storage.Store, device string) *Log {
	l := &Log{store: store, device: device, now: time.Now}
	raw, ok, err := store.Get(storage.KeyOpLog)
	if err != nil {
		log.Warn().Err(err).Msg("operational log unreadable")
		return l
	}
	if ok {
		if err := json.Unmarshal(raw, &l.entries); err != nil {
			log.Warn().Err(err).Msg("operational log corrupt, starting empty")
			l.entries = nil
		}
	}
	if len(l.entries) > MaxEntries {
		l.entries = l.entries[:MaxEntries]
	}
	return l
}

// SetDevice changes the device name stamped on new entries.
func (l *Log) SetDevice(device string) {
	l.mu.Lock()
	l.device = device
	l.mu.Unlock()
}

// Add prepends an entry and trims the log. Persist failures are logged, not
// returned; the in-memory log stays authoritative.
func (l *Log) Add(kind, msg string) inventory.LogEntry {
	now := l.now()
	l.mu.Lock()
	entry := inventory.LogEntry{
		Time:    now.Format("15:04:05"),
		Date:    now.Format("02/01/2006"),
		Type:    kind,
		Message: msg,
		Device:  l.device,
	}
	l.entries = append([]inventory.LogEntry{entry}, l.entries...)
	if len(l.entries) > MaxEntries {
		l.entries = l.entries[:MaxEntries]
	}
	raw, err := json.Marshal(l.entries)
	l.mu.Unlock()

	if err == nil {
		err = l.store.Put(storage.KeyOpLog, raw)
	}
	if err != nil {
		log.Warn().Err(err).Msg("operational log not persisted")
	}
	return entry
}

// Entries returns up to n of the newest entries; n <= 0 returns all.
func (l *Log) Entries(n int) []inventory.LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n <= 0 || n > len(l.entries) {
		n = len(l.entries)
	}
	out := make([]inventory.LogEntry, n)
	copy(out, l.entries[:n])
	return out
}

// PushSlice returns the entries that accompany a journal push.
func (l *Log) PushSlice() []inventory.LogEntry {
	return l.Entries(PushEntries)
}

// Len returns the number of entries held.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
