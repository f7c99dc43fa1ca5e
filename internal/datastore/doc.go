// Package datastore reads the desired host configuration from the master
// database or a local SQLite snapshot of it.
//
// Every Store method returns a complete, consistent view of one table (or
// one table with its children) and never caches: reconcilers call it at the
// start of every pass.
package datastore
