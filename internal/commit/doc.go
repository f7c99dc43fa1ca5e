// Package commit writes configuration artifacts to the filesystem atomically
// and idempotently.
//
// A file is replaced by creating the deterministic sibling ".<name>.new"
// with O_EXCL|O_NOFOLLOW and mode 0, setting owner and mode on the open
// descriptor, writing and syncing the content, and renaming it over the
// target. The parent directory is synced after the rename. A target whose
// bytes and metadata already match is left alone, so a pass over unchanged
// state performs no writes.
//
// Directories are converged with EnsureDirectory and pruned with
// TrimDirectory, which never deletes entries the caller did not create
// unless the directory is declared fully owned.
package commit
