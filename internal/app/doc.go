// Package app bootstraps hostconfd and drives its lifecycle.
//
// NewApplication loads the configuration, sets up logging, detects the host
// and wires the data store, the notification sources, the host
// collaborators and every enabled subsystem reconciler into a
// reconciler.Manager. Run starts the manager and the sources, reports
// readiness to systemd and blocks until SIGINT, SIGTERM or context
// cancellation, after which in-flight passes are drained before the store
// is closed. Check runs one synchronous pass per reconciler without
// starting any source.
package app
