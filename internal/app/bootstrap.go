package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"hostconfd/internal/config"
	"hostconfd/internal/reconciler"
	"hostconfd/pkg/logging"
)

// Application bootstraps and runs hostconfd.
//
// Example usage:
//
//	cfg := app.NewConfig(false, "/etc/hostconfd/config.yaml")
//	application, err := app.NewApplication(cfg)
//	if err != nil {
//	    return fmt.Errorf("failed to create application: %w", err)
//	}
//	return application.Run(ctx)
type Application struct {
	config   *Config
	services *Services
}

// NewApplication loads the configuration, initializes logging and wires all
// services. Nothing runs until Run or Check is called.
func NewApplication(cfg *Config) (*Application, error) {
	var output io.Writer = os.Stderr
	if cfg.Output != nil {
		output = cfg.Output
	}

	// Text logging until the configuration says otherwise, so load errors
	// are visible.
	bootLevel := logging.LevelInfo
	if cfg.Debug {
		bootLevel = logging.LevelDebug
	}
	logging.InitForCLI(bootLevel, output)

	if cfg.Hostconfd == nil {
		loaded, err := config.LoadConfig(cfg.ConfigPath)
		if err != nil {
			logging.Error("Bootstrap", err, "Failed to load configuration")
			reportConfigErrors(output, err)
			return nil, fmt.Errorf("failed to load configuration: %w", err)
		}
		cfg.Hostconfd = &loaded
	}
	initLogging(cfg, output)

	services, err := InitializeServices(*cfg.Hostconfd)
	if err != nil {
		logging.Error("Bootstrap", err, "Failed to initialize services")
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	return &Application{
		config:   cfg,
		services: services,
	}, nil
}

// reportConfigErrors writes every configuration problem with its hints,
// since the error itself only names the first.
func reportConfigErrors(w io.Writer, err error) {
	var coll config.ConfigurationErrorCollection
	if errors.As(err, &coll) {
		fmt.Fprint(w, coll.Report())
		return
	}
	var single config.ConfigurationError
	if errors.As(err, &single) {
		fmt.Fprint(w, single.Detailed())
	}
}

func initLogging(cfg *Config, output io.Writer) {
	level, err := logging.ParseLevel(cfg.Hostconfd.Logging.Level)
	if err != nil {
		level = logging.LevelInfo
	}
	if cfg.Debug {
		level = logging.LevelDebug
	}
	format := logging.Format(cfg.Hostconfd.Logging.Format)
	if cfg.Interactive {
		format = logging.FormatText
	}
	logging.Init(format, level, output)
}

// Services returns the wired services.
func (a *Application) Services() *Services {
	return a.services
}

// Run starts the daemon and blocks until ctx is cancelled or SIGINT or
// SIGTERM arrives. In-flight passes are drained before it returns.
func (a *Application) Run(ctx context.Context) error {
	return runDaemon(ctx, a.services)
}

// Check runs one synchronous pass of each named reconciler, or of all
// enabled reconcilers when names is empty, then releases all services.
// Notification sources are never started.
func (a *Application) Check(ctx context.Context, names ...string) ([]reconciler.Outcome, error) {
	defer func() {
		a.services.Manager.Stop()
		if err := a.services.Close(); err != nil {
			logging.Warn("Check", "Shutdown: %v", err)
		}
	}()
	return a.services.Manager.RunAll(ctx, names...)
}
