package postgresql

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lib/pq"
)

const (
	listenerMinReconnect = 1 * time.Second
	listenerMaxReconnect = 30 * time.Second
	// lib/pq recommends pinging an idle listener so a dead connection is noticed
	listenerPingInterval = 90 * time.Second
)

// Listener is a dedicated LISTEN connection on a single channel.
// A nil value received from Notifications means the connection was
// re-established and notifications sent meanwhile may have been lost.
type Listener struct {
	listener *pq.Listener
	channel  string
	logger   *slog.Logger
	stop     chan struct{}
	once     sync.Once
}

// NewListener opens a LISTEN connection using the client's configuration
func (c *Client) NewListener(channel string) (*Listener, error) {
	return NewListener(c.config, channel, c.logger)
}

// NewListener opens a LISTEN connection on channel
func NewListener(config *Config, channel string, logger *slog.Logger) (*Listener, error) {
	logger = logger.With(slog.String("channel", channel))

	events := func(ev pq.ListenerEventType, err error) {
		switch ev {
		case pq.ListenerEventConnected:
			logger.Info("Listener connected")
		case pq.ListenerEventDisconnected:
			logger.Warn("Listener disconnected", slog.Any("error", err))
		case pq.ListenerEventReconnected:
			logger.Info("Listener reconnected")
		case pq.ListenerEventConnectionAttemptFailed:
			logger.Error("Listener connection attempt failed", slog.Any("error", err))
		}
	}

	pl := pq.NewListener(config.DSN(), listenerMinReconnect, listenerMaxReconnect, events)
	if err := pl.Listen(channel); err != nil {
		pl.Close()
		return nil, fmt.Errorf("failed to listen on channel %s: %w", channel, err)
	}

	l := &Listener{
		listener: pl,
		channel:  channel,
		logger:   logger,
		stop:     make(chan struct{}),
	}
	go l.keepAlive()

	logger.Info("Listening for notifications")
	return l, nil
}

// Channel returns the channel name being listened on
func (l *Listener) Channel() string {
	return l.channel
}

// Notifications returns the raw notification stream
func (l *Listener) Notifications() <-chan *pq.Notification {
	return l.listener.NotificationChannel()
}

func (l *Listener) keepAlive() {
	ticker := time.NewTicker(listenerPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			if err := l.listener.Ping(); err != nil {
				l.logger.Warn("Listener ping failed", slog.Any("error", err))
			}
		}
	}
}

// Close unlistens and closes the connection
func (l *Listener) Close() error {
	var err error
	l.once.Do(func() {
		close(l.stop)

		if uerr := l.listener.UnlistenAll(); uerr != nil {
			l.logger.Warn("Failed to unlisten", slog.Any("error", uerr))
		}

		if cerr := l.listener.Close(); cerr != nil {
			err = fmt.Errorf("failed to close listener: %w", cerr)
			return
		}

		l.logger.Info("Listener closed")
	})
	return err
}
