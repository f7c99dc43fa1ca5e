package system

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"hostconfd/pkg/logging"
)

// PackageManager installs and removes OS packages.
type PackageManager interface {
	Installed(ctx context.Context, pkg string) (bool, error)
	Install(ctx context.Context, pkgs ...string) error
	Remove(ctx context.Context, pkgs ...string) error
}

// RPMPackages queries the rpm database and changes it with dnf or yum.
type RPMPackages struct {
	// Command is the transaction command, dnf or yum.
	Command string
}

// NewRPMPackages returns a package manager using command for transactions.
func NewRPMPackages(command string) *RPMPackages {
	if command == "" {
		command = "dnf"
	}
	return &RPMPackages{Command: command}
}

// Installed reports whether pkg is in the rpm database. rpm exits 1 for a
// package that is not installed.
func (p *RPMPackages) Installed(ctx context.Context, pkg string) (bool, error) {
	_, err := run(ctx, "rpm", "-q", "--quiet", pkg)
	if err == nil {
		return true, nil
	}
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) && cmdErr.ExitCode == 1 {
		return false, nil
	}
	return false, err
}

func (p *RPMPackages) Install(ctx context.Context, pkgs ...string) error {
	if len(pkgs) == 0 {
		return nil
	}
	logging.Info("Packages", "Installing %s", strings.Join(pkgs, " "))
	args := append([]string{"-y", "-q", "install"}, pkgs...)
	if _, err := run(ctx, p.Command, args...); err != nil {
		return fmt.Errorf("install %s: %w", strings.Join(pkgs, " "), err)
	}
	return nil
}

func (p *RPMPackages) Remove(ctx context.Context, pkgs ...string) error {
	if len(pkgs) == 0 {
		return nil
	}
	logging.Info("Packages", "Removing %s", strings.Join(pkgs, " "))
	args := append([]string{"-y", "-q", "remove"}, pkgs...)
	if _, err := run(ctx, p.Command, args...); err != nil {
		return fmt.Errorf("remove %s: %w", strings.Join(pkgs, " "), err)
	}
	return nil
}
