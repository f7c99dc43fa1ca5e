// Package reconciler is the engine that drives hostconfd's subsystem
// reconcilers.
//
// # Overview
//
// Each Reconciler converges one part of the host (zones, FTP vhosts, the
// group database, ...) toward the data store. The Manager gives every
// registered reconciler a Runner and subscribes it to the reconciler's
// notification sources.
//
// # Scheduling
//
// A Runner moves between three states:
//
//   - Idle: no pass in flight. A notification starts one.
//   - Running: a pass is in flight. A notification moves to RunningPending.
//   - RunningPending: further notifications are absorbed. When the pass
//     finishes exactly one more pass starts, since the finished pass may
//     have read its snapshot before the change it was notified about.
//
// Passes of one reconciler never overlap. There is no retry or backoff:
// a failed pass is logged and recorded, and the next notification retries.
// Panics are recovered and recorded as PanicError.
//
// # Passes
//
// Rebuild commits every artifact through the Pass, which tracks whether
// anything changed. If it did and the reconciler implements Restarter, the
// service is restarted once, still under the rebuild lock. Written paths are
// handed to the Relabeler after the lock is released.
//
// Example usage:
//
//	manager := reconciler.NewManager(reconciler.ManagerConfig{Notifier: hub})
//	if _, err := manager.Register(dnsReconciler); err != nil {
//	    return err
//	}
//	if err := manager.Start(ctx); err != nil {
//	    return fmt.Errorf("failed to start reconciliation: %w", err)
//	}
//	defer manager.Stop()
package reconciler
