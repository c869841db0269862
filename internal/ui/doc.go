// Package ui provides the terminal interface for counting stock.
//
// The interface is a Bubble Tea program with five views:
//
//   - Scan: code input fed by a keyboard-wedge scanner, pending product and
//     quantity, recent commits
//   - Readings: the journal with per-row deletion and totals
//   - Manual entry: catalog search with supplier and season filters
//   - Monitor: live progress of the open inventory, polled only while shown
//   - Log: the operational log, or the tail of the debug log
//
// The header always shows the coordinator phase, the session, where the
// catalog came from, whether readings are unsent and the liveness probe.
//
// Core packages never call into the UI. The state store and the journal
// notify through callbacks that Run coalesces into a single pending message,
// so a burst of changes costs one redraw and never blocks the caller.
//
// Keys use function and control chords so that letters always reach the
// focused text input. F1 lists them.
package ui
