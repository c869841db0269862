package ui

import "time"

// Terminal width thresholds for responsive layouts.
const (
	// LayoutCompactWidth is the threshold below which compact mode is used.
	LayoutCompactWidth = 100

	// LayoutWideWidth is the minimum width to show model and supplier columns.
	LayoutWideWidth = 130
)

// Display limits.
const (
	// RecentScanLimit is the number of committed scans echoed under the input.
	RecentScanLimit = 8

	// DebugLogLines is the number of debug log lines read for the log view.
	DebugLogLines = 500

	// SearchLimit bounds manual-entry search results.
	SearchLimit = 200
)

// Timing constants.
const (
	// DefaultUIInterval is the clock refresh interval.
	DefaultUIInterval = time.Second

	// FlashDuration is how long a status message stays in the command bar.
	FlashDuration = 4 * time.Second
)
