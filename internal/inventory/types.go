// Package inventory holds the domain types shared by the catalog cache, the
// readings journal and the sync coordinator, plus the error kinds they return.
package inventory

import (
	"fmt"
	"strings"
	"time"
)

// NotFoundLabel is the description given to a lookup miss.
const NotFoundLabel = "NOT FOUND"

// Origin classifies how a reading was produced.
type Origin string

const (
	OriginScanner Origin = "scanner"
	OriginManual  Origin = "manual"
)

// Valid reports whether o is one of the known origin domains.
func (o Origin) Valid() bool {
	return o == OriginScanner || o == OriginManual
}

// ParseOrigin maps a wire value to an Origin. Empty input means scanner,
// matching how the authority stores readings without an origin.
func ParseOrigin(value string) (Origin, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", string(OriginScanner):
		return OriginScanner, nil
	case string(OriginManual):
		return OriginManual, nil
	default:
		return "", &ValidationError{Field: "origin", Reason: fmt.Sprintf("unknown origin %q", value)}
	}
}

// CatalogEntry is one product of the reference dataset.
type CatalogEntry struct {
	SKU         string `json:"sku" validate:"required,max=64"`
	ALU         string `json:"alu" validate:"max=64"`
	Description string `json:"description" validate:"max=200"`
	Model       string `json:"model"`
	Supplier    string `json:"supplier"`
	Season      string `json:"season"`
}

// NotFound returns the sentinel entry for an unresolved code.
func NotFound(code string) CatalogEntry {
	return CatalogEntry{SKU: code, ALU: code, Description: NotFoundLabel}
}

// IsNotFound reports whether e is a lookup-miss sentinel.
func (e CatalogEntry) IsNotFound() bool {
	return e.Description == NotFoundLabel && e.SKU == e.ALU
}

// ReadingRecord is a single count observation in the journal.
type ReadingRecord struct {
	SKU         string `json:"sku"`
	ALU         string `json:"alu"`
	Description string `json:"description"`
	Quantity    int    `json:"quantity"`
	Location    string `json:"location"`
	Origin      Origin `json:"origin"`
}

// Session identifies the inventory currently open on the authority.
type Session struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// CatalogVersion is the lightweight catalog fingerprint served by the authority.
type CatalogVersion struct {
	Hash      string    `json:"hash"`
	Count     int       `json:"count"`
	Timestamp time.Time `json:"timestamp"`
}

// StockItem is a row of the theoretical-stock extract for one inventory.
type StockItem struct {
	ID          int64  `json:"id"`
	SKU         string `json:"sku"`
	ALU         string `json:"alu"`
	Description string `json:"desc"`
	Department  string `json:"department"`
	Model       string `json:"model"`
	Supplier    string `json:"supplier"`
	Season      string `json:"season"`
	Expected    int    `json:"expected"`
}

// LogEntry is one line of the bounded operational log.
type LogEntry struct {
	Time    string `json:"time"`
	Date    string `json:"date"`
	Type    string `json:"type"`
	Message string `json:"msg"`
	Device  string `json:"device"`
}

// Progress is the live count summary served for the monitor view.
type Progress struct {
	Summary  ProgressSummary   `json:"summary"`
	ByDevice map[string]int    `json:"byDevice"`
	Products []ProgressProduct `json:"products"`
}

// ProgressSummary aggregates expected versus counted quantities.
type ProgressSummary struct {
	TotalExpected   int     `json:"totalExpected"`
	TotalCounted    int     `json:"totalCounted"`
	Percent         float64 `json:"percent"`
	TotalProducts   int     `json:"totalProducts"`
	CountedProducts int     `json:"countedProducts"`
}

// ProgressProduct is the per-sku line of the monitor view.
type ProgressProduct struct {
	SKU         string `json:"sku"`
	ALU         string `json:"alu"`
	Description string `json:"description"`
	Department  string `json:"department"`
	Expected    int    `json:"expected"`
	Counted     int    `json:"counted"`
	Difference  int    `json:"difference"`
	Surplus     bool   `json:"surplus"`
}
