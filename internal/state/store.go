package state

import (
	"fmt"
	"sync"
	"time"

	"github.com/jfloresavalos/InvBF/internal/inventory"
)

// Phase is the coordinator's connectivity state.
type Phase int

const (
	PhaseDisconnected Phase = iota
	PhaseChecking
	PhaseActive
	PhaseOffline
	PhaseNoSession
	PhaseSyncing
	PhaseBlocked
)

func (p Phase) String() string {
	switch p {
	case PhaseDisconnected:
		return "disconnected"
	case PhaseChecking:
		return "checking"
	case PhaseActive:
		return "active"
	case PhaseOffline:
		return "offline"
	case PhaseNoSession:
		return "no session"
	case PhaseSyncing:
		return "syncing"
	case PhaseBlocked:
		return "blocked"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// CanRecord reports whether readings may be taken in this phase.
func (p Phase) CanRecord() bool {
	return p == PhaseActive || p == PhaseOffline || p == PhaseSyncing
}

// Snapshot represents the latest data available to the UI.
type Snapshot struct {
	Phase      Phase
	Session    inventory.Session
	HasSession bool

	CatalogSize   int
	CatalogHash   string
	CatalogSource string
	CatalogStale  bool

	Notice    string
	LastError error

	// Liveness is display only; it never drives reconnection.
	Online              bool
	ConsecutiveFailures int
	LastProbe           time.Time

	Progress        inventory.Progress
	HasProgress     bool
	ProgressUpdated time.Time

	LastUpdated time.Time
}

// IsOffline returns true when the liveness probe has failed repeatedly.
func (s Snapshot) IsOffline() bool {
	return s.ConsecutiveFailures >= 2
}

// Store coordinates concurrent updates to the snapshot. The zero value is
// ready to use.
type Store struct {
	mu       sync.RWMutex
	snapshot Snapshot

	subMu   sync.Mutex
	subs    map[int]func(Snapshot)
	nextSub int
}

// Subscribe registers fn to receive a copy after every change. The returned
// func removes it.
func (s *Store) Subscribe(fn func(Snapshot)) func() {
	s.subMu.Lock()
	if s.subs == nil {
		s.subs = make(map[int]func(Snapshot))
	}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()
	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Store) mutate(fn func(*Snapshot)) {
	s.mu.Lock()
	fn(&s.snapshot)
	s.snapshot.LastUpdated = time.Now()
	s.mu.Unlock()

	s.subMu.Lock()
	fns := make([]func(Snapshot), 0, len(s.subs))
	for _, f := range s.subs {
		fns = append(fns, f)
	}
	s.subMu.Unlock()
	if len(fns) == 0 {
		return
	}
	snap := s.Snapshot()
	for _, f := range fns {
		f(snap)
	}
}

// SetPhase moves to phase and records err, which may be nil.
func (s *Store) SetPhase(phase Phase, err error) {
	s.mutate(func(snap *Snapshot) {
		snap.Phase = phase
		snap.LastError = err
	})
}

// SetSession records the active session; nil clears it.
func (s *Store) SetSession(session *inventory.Session) {
	s.mutate(func(snap *Snapshot) {
		if session == nil {
			snap.Session = inventory.Session{}
			snap.HasSession = false
			return
		}
		snap.Session = *session
		snap.HasSession = true
	})
}

// SetCatalog describes the catalog in use and where it came from.
func (s *Store) SetCatalog(size int, hash, source string, stale bool) {
	s.mutate(func(snap *Snapshot) {
		snap.CatalogSize = size
		snap.CatalogHash = hash
		snap.CatalogSource = source
		snap.CatalogStale = stale
	})
}

// SetNotice posts a non-blocking message for the user.
func (s *Store) SetNotice(msg string) {
	s.mutate(func(snap *Snapshot) {
		snap.Notice = msg
	})
}

// RecordLiveness folds one probe outcome into the online indicator. When err
// is non-nil the failure streak grows; success resets it.
func (s *Store) RecordLiveness(err error) {
	s.mutate(func(snap *Snapshot) {
		snap.LastProbe = time.Now()
		if err != nil {
			snap.ConsecutiveFailures++
			snap.Online = false
			return
		}
		snap.ConsecutiveFailures = 0
		snap.Online = true
	})
}

// SetProgress stores a monitor result. On error the previous data is kept.
func (s *Store) SetProgress(progress inventory.Progress, err error) {
	s.mutate(func(snap *Snapshot) {
		if err != nil {
			snap.LastError = err
			return
		}
		snap.Progress = cloneProgress(progress)
		snap.HasProgress = true
		snap.ProgressUpdated = time.Now()
	})
}

// Snapshot returns a copy of the current snapshot.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := s.snapshot
	snap.Progress = cloneProgress(s.snapshot.Progress)
	if s.snapshot.LastError != nil {
		snap.LastError = fmt.Errorf("%w", s.snapshot.LastError)
	}
	return snap
}

func cloneProgress(p inventory.Progress) inventory.Progress {
	out := p
	if len(p.Products) > 0 {
		out.Products = make([]inventory.ProgressProduct, len(p.Products))
		copy(out.Products, p.Products)
	}
	if p.ByDevice != nil {
		out.ByDevice = make(map[string]int, len(p.ByDevice))
		for k, v := range p.ByDevice {
			out.ByDevice[k] = v
		}
	}
	return out
}
