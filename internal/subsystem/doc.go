// Package subsystem holds what the per-subsystem reconcilers share. The
// reconcilers themselves live in the subpackages, one per OS subsystem.
package subsystem
