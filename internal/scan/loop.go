// Package scan turns raw scanner codes into journal readings.
package scan

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/jfloresavalos/InvBF/internal/inventory"
)

// Lookuper resolves a scanned code; a miss returns the NotFound sentinel.
type Lookuper interface {
	Lookup(code string) (inventory.CatalogEntry, bool)
}

// Recorder commits a reading.
type Recorder interface {
	Record(product inventory.CatalogEntry, quantity int, location string, origin inventory.Origin) error
}

// ErrNothingPending is returned by Confirm when no product awaits confirmation.
var ErrNothingPending = errors.New("no product pending")

// Pending is a scanned product awaiting confirmation.
type Pending struct {
	Code     string
	Product  inventory.CatalogEntry
	Found    bool
	Quantity int
}

// Commit is one reading written to the journal.
type Commit struct {
	Product  inventory.CatalogEntry
	Quantity int
	Location string
	Origin   inventory.Origin
}

// Result describes what a scan did.
type Result struct {
	Code    string
	Product inventory.CatalogEntry
	Found   bool
	// Committed lists readings written by this scan, oldest first: a pending
	// product flushed by the new scan and, in auto-accept mode, the scan itself.
	Committed []Commit
	// Pending is set when the scanned product awaits confirmation.
	Pending bool
}

// Loop holds the scan state for one operator. It is safe for concurrent use.
type Loop struct {
	lookup Lookuper
	rec    Recorder

	mu         sync.Mutex
	autoAccept bool
	location   string
	pending    *Pending
}

// New returns a Loop.
func New(lookup Lookuper, rec Recorder, autoAccept bool, location string) *Loop {
	return &Loop{lookup: lookup, rec: rec, autoAccept: autoAccept, location: strings.TrimSpace(location)}
}

// SetAutoAccept toggles auto-accept mode.
func (l *Loop) SetAutoAccept(on bool) {
	l.mu.Lock()
	l.autoAccept = on
	l.mu.Unlock()
}

// AutoAccept reports whether found products are committed on scan.
func (l *Loop) AutoAccept() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.autoAccept
}

// SetLocation sets the location stamped on new readings.
func (l *Loop) SetLocation(location string) {
	l.mu.Lock()
	l.location = strings.TrimSpace(location)
	l.mu.Unlock()
}

// Location returns the current location.
func (l *Loop) Location() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.location
}

// Pending returns the product awaiting confirmation, if any.
func (l *Loop) Pending() (Pending, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.pending == nil {
		return Pending{}, false
	}
	return *l.pending, true
}

// SetQuantity sets the pending quantity.
func (l *Loop) SetQuantity(n int) error {
	if n < 1 {
		return &inventory.ValidationError{Field: "quantity", Reason: fmt.Sprintf("must be at least 1, got %d", n)}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.pending == nil {
		return ErrNothingPending
	}
	l.pending.Quantity = n
	return nil
}

// Adjust changes the pending quantity by delta, never below 1.
func (l *Loop) Adjust(delta int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.pending == nil {
		return 0
	}
	l.pending.Quantity += delta
	if l.pending.Quantity < 1 {
		l.pending.Quantity = 1
	}
	return l.pending.Quantity
}

// Discard drops the pending product.
func (l *Loop) Discard() {
	l.mu.Lock()
	l.pending = nil
	l.mu.Unlock()
}

// Scan handles one code from the hardware scanner.
func (l *Loop) Scan(code string) (Result, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return Result{}, &inventory.ValidationError{Field: "code", Reason: "empty scan"}
	}
	product, found := l.lookup.Lookup(code)
	res := Result{Code: code, Product: product, Found: found}

	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.autoAccept && l.pending != nil && l.pending.Product.SKU != code && l.pending.Product.ALU != code {
		c, err := l.commitLocked(*l.pending)
		if err != nil {
			return res, err
		}
		res.Committed = append(res.Committed, c)
	}
	l.pending = nil

	if l.autoAccept && found {
		c, err := l.commitLocked(Pending{Code: code, Product: product, Found: true, Quantity: 1})
		if err != nil {
			return res, err
		}
		res.Committed = append(res.Committed, c)
		return res, nil
	}
	l.pending = &Pending{Code: code, Product: product, Found: found, Quantity: 1}
	res.Pending = true
	return res, nil
}

// Confirm commits the pending product with its quantity.
func (l *Loop) Confirm() (Commit, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.pending == nil {
		return Commit{}, ErrNothingPending
	}
	c, err := l.commitLocked(*l.pending)
	if err != nil {
		return Commit{}, err
	}
	l.pending = nil
	return c, nil
}

func (l *Loop) commitLocked(p Pending) (Commit, error) {
	if err := l.rec.Record(p.Product, p.Quantity, l.location, inventory.OriginScanner); err != nil {
		return Commit{}, fmt.Errorf("record %s: %w", p.Product.SKU, err)
	}
	return Commit{Product: p.Product, Quantity: p.Quantity, Location: l.location, Origin: inventory.OriginScanner}, nil
}

// Manual records a product picked by search rather than scanned.
func (l *Loop) Manual(product inventory.CatalogEntry, quantity int) (Commit, error) {
	location := l.Location()
	if err := l.rec.Record(product, quantity, location, inventory.OriginManual); err != nil {
		return Commit{}, err
	}
	return Commit{Product: product, Quantity: quantity, Location: location, Origin: inventory.OriginManual}, nil
}

// Run feeds each line of r to Scan until EOF or ctx is done, then commits
// anything still pending. report sees every scan outcome; a failed scan is
// reported and skipped.
func (l *Loop) Run(ctx context.Context, r io.Reader, report func(Result, error)) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		res, err := l.Scan(line)
		if report != nil {
			report(res, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read scanner input: %w", err)
	}
	if _, ok := l.Pending(); ok {
		c, err := l.Confirm()
		if report != nil {
			report(Result{Code: c.Product.SKU, Product: c.Product, Found: !c.Product.IsNotFound(), Committed: []Commit{c}}, err)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
