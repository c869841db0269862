// Package syncer coordinates the device's connection to the authority.
//
// Connect probes for the active inventory session. On success the catalog is
// reconciled, the stock extract is cached for later offline use, and the
// session's journal is restored, moving the device to the active phase. When
// the probe fails the offline fallback chain supplies a catalog and the last
// known session resumes in the offline phase; if either is missing the device
// is blocked until the user retries. There is no automatic reconnect.
//
// Push always sends the complete journal with a nonce. A retry after a
// transport failure reuses the nonce as long as the journal has not changed.
package syncer
