// Package app is the composition root for invbf.
//
// Open loads config.Config, initializes the zerolog file logger and wires
// the core in dependency order:
//
//	storage.Open ──> authority.NewClient ──> catalog.New
//	      │                                      │
//	      └──> oplog.Open ──> syncer.New <───────┘
//	                              │
//	                              ├──> scan.New     (lookup + record)
//	                              └──> monitor.New  (progress polling)
//
// Nothing touches the network until a caller runs Coordinator.Connect.
// Headless commands use Open directly; Run adds the liveness poller and the
// Bubble Tea front end.
//
// # Liveness
//
// StartLiveness probes the authority at the configured interval and feeds
// state.Store.RecordLiveness. Consecutive failures back off exponentially up
// to 30s. The probe only drives the online indicator: it never reconnects or
// reloads the catalog or journal, which stays an explicit operator action.
package app
