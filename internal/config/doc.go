// Package config loads and validates the hostconfd configuration file.
//
// The file is YAML and is layered on top of DefaultConfig, so a host only
// needs to state what differs from the defaults:
//
//	datastore:
//	  driver: postgres
//	  dsn: "host=master.example.net dbname=hosts sslmode=verify-full"
//	reconcilers:
//	  dns:
//	    enabled: true
//	  groups:
//	    enabled: true
//
// A missing file yields the defaults, in which every reconciler is disabled.
// Validation collects all problems into a ConfigurationErrorCollection.
package config
