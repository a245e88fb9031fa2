package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/eslsoft/intentd/internal/repository"
)

// NotificationChannel is the LISTEN channel fed by the definition table triggers.
const NotificationChannel = "intentd_definitions"

// PgNotifier turns Postgres NOTIFY payloads (table names) into collection callbacks.
type PgNotifier struct {
	pool   *pgxpool.Pool
	logger logrus.FieldLogger

	mu        sync.RWMutex
	listeners map[repository.Collection][]func()
}

var _ repository.ChangeNotifier = (*PgNotifier)(nil)

func NewPgNotifier(pool *pgxpool.Pool, logger logrus.FieldLogger) *PgNotifier {
	return &PgNotifier{
		pool:      pool,
		logger:    logger.WithField("component", "notifier"),
		listeners: map[repository.Collection][]func(){},
	}
}

func (n *PgNotifier) Listen(collection repository.Collection, callback func()) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.listeners[collection] = append(n.listeners[collection], callback)
}

// Start listens until ctx is done, reconnecting with exponential backoff.
// Every collection is signalled after a reconnect since notifications may have been lost meanwhile.
func (n *PgNotifier) Start(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0

	first := true
	for {
		err := n.listen(ctx, func() {
			b.Reset()
			if !first {
				n.dispatchAll()
			}
			first = false
		})
		if ctx.Err() != nil {
			return nil
		}
		wait := b.NextBackOff()
		n.logger.WithError(err).WithField("retry_in", wait).Warn("notification listener disconnected")
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

func (n *PgNotifier) listen(ctx context.Context, onConnected func()) error {
	conn, err := n.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire listener connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+NotificationChannel); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	onConnected()
	n.logger.WithField("channel", NotificationChannel).Info("listening for definition changes")

	for {
		notification, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			// the connection state is unknown after a failed wait
			_ = conn.Conn().Close(context.Background())
			return fmt.Errorf("wait for notification: %w", err)
		}
		n.dispatch(repository.Collection(notification.Payload))
	}
}

func (n *PgNotifier) dispatch(collection repository.Collection) {
	n.mu.RLock()
	callbacks := append([]func(){}, n.listeners[collection]...)
	n.mu.RUnlock()
	if len(callbacks) == 0 {
		n.logger.WithField("collection", collection).Debug("notification without listener")
		return
	}
	for _, cb := range callbacks {
		cb()
	}
}

func (n *PgNotifier) dispatchAll() {
	n.mu.RLock()
	collections := make([]repository.Collection, 0, len(n.listeners))
	for c := range n.listeners {
		collections = append(collections, c)
	}
	n.mu.RUnlock()
	for _, c := range collections {
		n.dispatch(c)
	}
}
