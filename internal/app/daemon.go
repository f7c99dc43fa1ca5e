package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/coreos/go-systemd/v22/daemon"

	"hostconfd/internal/notify"
	"hostconfd/pkg/logging"
)

// sdNotify reports service state to systemd. A no-op outside a
// Type=notify unit.
var sdNotify = func(state string) {
	if _, err := daemon.SdNotify(false, state); err != nil {
		logging.Warn("Daemon", "sd_notify %q failed: %v", state, err)
	}
}

// runDaemon starts the notification sources, converges every reconciler
// once, then keeps converging on notifications until ctx is cancelled or a
// SIGINT or SIGTERM arrives.
func runDaemon(ctx context.Context, services *Services) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Sources listen before the initial passes read the store, so a change
	// committed during those passes still triggers a follow-up pass.
	started, err := startSources(ctx, services.Sources, services.Hub)
	if err != nil {
		logging.Error("Daemon", err, "Failed to start notification sources")
		shutdown(started, services)
		return err
	}

	if err := services.Manager.Start(ctx); err != nil {
		logging.Error("Daemon", err, "Failed to start reconcilers")
		shutdown(started, services)
		return err
	}

	sdNotify(daemon.SdNotifyReady)
	logging.Info("Daemon", "Running %d reconcilers on %s", len(services.Manager.Names()), services.Host)

	<-ctx.Done()

	sdNotify(daemon.SdNotifyStopping)
	logging.Info("Daemon", "Shutting down")
	return shutdown(started, services)
}

// startSources starts each source in order and returns those that started.
// The first failure stops the startup.
func startSources(ctx context.Context, sources []notify.Source, pub notify.Publisher) ([]notify.Source, error) {
	var started []notify.Source
	for _, src := range sources {
		if err := src.Start(ctx, pub); err != nil {
			return started, fmt.Errorf("source %s: %w", src.Name(), err)
		}
		logging.Debug("Daemon", "Started notification source %s", src.Name())
		started = append(started, src)
	}
	return started, nil
}

// shutdown stops the sources first so no new pass is scheduled, then drains
// the runners, then closes the store.
func shutdown(sources []notify.Source, services *Services) error {
	for _, src := range sources {
		if err := src.Stop(); err != nil {
			logging.Warn("Daemon", "Stopping source %s: %v", src.Name(), err)
		}
	}
	services.Manager.Stop()
	return services.Close()
}
