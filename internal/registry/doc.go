// Package registry merges desired entries into the host's group database
// without touching what the daemon does not own.
//
// Ownership is decided by id: entries inside the configured managed range
// belong to hostconfd, everything else is treated as read-only. Merge is a
// pure function; callers read the files fresh under the shadow-utils lock,
// merge, and hand the formatted bytes to the commit package.
package registry
