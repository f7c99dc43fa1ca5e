// Package system wraps the host facilities reconcilers act on: os-release
// detection, systemd units over D-Bus, the rpm package database, SELinux
// relabeling and user and group name resolution.
//
// The subpackage systemtest provides recording fakes of these interfaces.
package system
