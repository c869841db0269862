// Package state holds the connectivity and session status shared between the
// sync coordinator, the background pollers and the UI.
//
// Writers call the Set* and Record* methods; readers take a Snapshot, which is
// a copy and safe to keep. Subscribers get a fresh Snapshot after every change,
// which is how the UI learns about updates without the core calling into it.
//
// The liveness fields (Online, ConsecutiveFailures) only drive the on-screen
// indicator. Moving from offline back to active always takes an explicit
// connect.
package state
