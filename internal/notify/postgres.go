package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lib/pq"

	"hostconfd/pkg/logging"
)

// pingInterval is how long the listener may stay idle before the
// connection is checked.
const pingInterval = 90 * time.Second

// PostgresSource turns LISTEN/NOTIFY on the master database into hub
// notifications. Each channel name is published as a source of the same
// name. After a reconnect every subscriber is notified once, since events
// sent while disconnected are lost.
type PostgresSource struct {
	dsn      string
	channels []string
	minRetry time.Duration
	maxRetry time.Duration

	mu       sync.Mutex
	listener *pq.Listener
	done     chan struct{}
	stopped  chan struct{}
}

// NewPostgresSource creates a source listening on channels.
func NewPostgresSource(dsn string, channels []string, minRetry, maxRetry time.Duration) *PostgresSource {
	return &PostgresSource{
		dsn:      dsn,
		channels: channels,
		minRetry: minRetry,
		maxRetry: maxRetry,
	}
}

func (s *PostgresSource) Name() string { return "postgres" }

// Start opens the listener and subscribes to every channel.
func (s *PostgresSource) Start(ctx context.Context, pub Publisher) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return nil
	}

	listener := pq.NewListener(s.dsn, s.minRetry, s.maxRetry, logListenerEvent)
	for _, channel := range s.channels {
		if err := listener.Listen(channel); err != nil {
			listener.Close()
			return fmt.Errorf("listen %s: %w", channel, err)
		}
	}

	s.listener = listener
	s.done = make(chan struct{})
	s.stopped = make(chan struct{})
	go func() {
		defer close(s.stopped)
		dispatch(ctx, listener.Notify, s.done, pub, listener.Ping)
	}()

	logging.Info("PostgresSource", "Listening on %d channels", len(s.channels))
	return nil
}

// Stop closes the listener and waits for the dispatch loop to exit.
func (s *PostgresSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}

	close(s.done)
	<-s.stopped
	err := s.listener.Close()
	s.listener = nil
	return err
}

// dispatch forwards notifications until ctx ends or done is closed. A nil
// notification is what pq delivers after re-establishing the connection.
func dispatch(ctx context.Context, notifications <-chan *pq.Notification, done <-chan struct{}, pub Publisher, ping func() error) {
	idle := time.NewTimer(pingInterval)
	defer idle.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case n, ok := <-notifications:
			if !ok {
				return
			}
			if n == nil {
				count := pub.PublishAll()
				logging.Info("PostgresSource", "Connection re-established, notified %d subscribers", count)
			} else {
				count := pub.Publish(n.Channel)
				logging.Debug("PostgresSource", "NOTIFY %s from pid %d delivered to %d subscribers", n.Channel, n.BePid, count)
			}
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(pingInterval)
		case <-idle.C:
			if ping != nil {
				if err := ping(); err != nil {
					logging.Warn("PostgresSource", "Listener ping failed: %v", err)
				}
			}
			idle.Reset(pingInterval)
		}
	}
}

func logListenerEvent(ev pq.ListenerEventType, err error) {
	switch ev {
	case pq.ListenerEventConnected:
		logging.Info("PostgresSource", "Listener connected")
	case pq.ListenerEventDisconnected:
		logging.Warn("PostgresSource", "Listener disconnected: %v", err)
	case pq.ListenerEventReconnected:
		logging.Info("PostgresSource", "Listener reconnected")
	case pq.ListenerEventConnectionAttemptFailed:
		logging.Warn("PostgresSource", "Listener connection attempt failed: %v", err)
	}
}
