package catalog

import (
	"sort"
	"strings"

	"github.com/jfloresavalos/InvBF/internal/inventory"
)

const defaultSearchLimit = 50

// Query filters a manual-entry search. Empty fields match everything.
type Query struct {
	Text     string
	Supplier string
	Season   string
	Limit    int
}

// Search returns entries whose description, model, alu or sku contains the
// query text, case-insensitively, in catalog order.
func (s *Snapshot) Search(q Query) []inventory.CatalogEntry {
	if s == nil {
		return nil
	}
	limit := q.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	text := strings.ToLower(strings.TrimSpace(q.Text))
	supplier := strings.TrimSpace(q.Supplier)
	season := strings.TrimSpace(q.Season)

	var out []inventory.CatalogEntry
	for _, e := range s.entries {
		if supplier != "" && !strings.EqualFold(e.Supplier, supplier) {
			continue
		}
		if season != "" && !strings.EqualFold(e.Season, season) {
			continue
		}
		if text != "" && !matches(e, text) {
			continue
		}
		out = append(out, e)
		if len(out) >= limit {
			break
		}
	}
	return out
}

func matches(e inventory.CatalogEntry, text string) bool {
	for _, field := range []string{e.Description, e.Model, e.ALU, e.SKU} {
		if strings.Contains(strings.ToLower(field), text) {
			return true
		}
	}
	return false
}

// Suppliers lists the distinct non-empty suppliers, sorted.
func (s *Snapshot) Suppliers() []string {
	return s.distinct(func(e inventory.CatalogEntry) string { return e.Supplier })
}

// Seasons lists the distinct non-empty seasons, sorted.
func (s *Snapshot) Seasons() []string {
	return s.distinct(func(e inventory.CatalogEntry) string { return e.Season })
}

func (s *Snapshot) distinct(field func(inventory.CatalogEntry) string) []string {
	if s == nil {
		return nil
	}
	seen := make(map[string]struct{})
	var out []string
	for _, e := range s.entries {
		v := strings.TrimSpace(field(e))
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// EntriesFromStock maps the theoretical-stock extract into catalog shape.
func EntriesFromStock(items []inventory.StockItem) []inventory.CatalogEntry {
	out := make([]inventory.CatalogEntry, 0, len(items))
	for _, it := range items {
		if strings.TrimSpace(it.SKU) == "" {
			continue
		}
		out = append(out, inventory.CatalogEntry{
			SKU:         it.SKU,
			ALU:         it.ALU,
			Description: it.Description,
			Model:       it.Model,
			Supplier:    it.Supplier,
			Season:      it.Season,
		})
	}
	return out
}
