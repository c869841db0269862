package catalog

import (
	"strings"
	"time"

	"github.com/jfloresavalos/InvBF/internal/inventory"
)

// Snapshot is an immutable catalog with its lookup indexes. A new catalog is
// always a new Snapshot; nothing mutates one after construction.
type Snapshot struct {
	hash       string
	capturedAt time.Time
	entries    []inventory.CatalogEntry

	bySKU         map[string]int
	byALU         map[string]int
	bySKUStripped map[string]int
	byALUStripped map[string]int
}

// NewSnapshot copies entries and builds every index before returning.
// When an alu is shared by several products the last one wins.
func NewSnapshot(entries []inventory.CatalogEntry, hash string, capturedAt time.Time) *Snapshot {
	s := &Snapshot{
		hash:          hash,
		capturedAt:    capturedAt,
		entries:       make([]inventory.CatalogEntry, len(entries)),
		bySKU:         make(map[string]int, len(entries)),
		byALU:         make(map[string]int, len(entries)),
		bySKUStripped: make(map[string]int, len(entries)),
		byALUStripped: make(map[string]int, len(entries)),
	}
	copy(s.entries, entries)
	for i, e := range s.entries {
		if sku := strings.TrimSpace(e.SKU); sku != "" {
			s.bySKU[sku] = i
			if z := stripZeros(sku); z != "" {
				s.bySKUStripped[z] = i
			}
		}
		if alu := strings.TrimSpace(e.ALU); alu != "" {
			s.byALU[alu] = i
			if z := stripZeros(alu); z != "" {
				s.byALUStripped[z] = i
			}
		}
	}
	return s
}

func stripZeros(code string) string {
	return strings.TrimLeft(code, "0")
}

// Hash is the content hash the snapshot was fetched under.
func (s *Snapshot) Hash() string {
	if s == nil {
		return ""
	}
	return s.hash
}

// CapturedAt is when the snapshot was built.
func (s *Snapshot) CapturedAt() time.Time {
	if s == nil {
		return time.Time{}
	}
	return s.capturedAt
}

// Len returns the number of entries.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.entries)
}

// Entries returns a copy of the catalog rows.
func (s *Snapshot) Entries() []inventory.CatalogEntry {
	if s == nil {
		return nil
	}
	out := make([]inventory.CatalogEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Lookup resolves code by alu, then sku, then both again with leading zeros
// stripped. A miss returns the NotFound sentinel and false.
func (s *Snapshot) Lookup(code string) (inventory.CatalogEntry, bool) {
	code = strings.TrimSpace(code)
	if s == nil || code == "" {
		return inventory.NotFound(code), false
	}
	if i, ok := s.byALU[code]; ok {
		return s.entries[i], true
	}
	if i, ok := s.bySKU[code]; ok {
		return s.entries[i], true
	}
	if z := stripZeros(code); z != "" {
		if i, ok := s.byALUStripped[z]; ok {
			return s.entries[i], true
		}
		if i, ok := s.bySKUStripped[z]; ok {
			return s.entries[i], true
		}
	}
	return inventory.NotFound(code), false
}
