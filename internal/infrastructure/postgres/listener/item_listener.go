// Package listener reacts to Postgres notifications raised by the schema triggers.
package listener

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"keepmore/internal/domain/item"
)

const (
	channelName       = "plaid_item_linked"
	reconnectInterval = 5 * time.Second
	pingInterval      = 90 * time.Second
	maxInFlight       = 4
)

// LinkedItem is the payload of a plaid_item_linked notification.
type LinkedItem struct {
	ID   string    `json:"id"`
	Kind item.Kind `json:"kind"`
}

// Handler processes one linked item. It runs detached from the listener's
// context so shutdown does not abort a sync halfway.
type Handler func(ctx context.Context, linked LinkedItem)

// ItemListener starts a sync as soon as a new Plaid item row is inserted.
type ItemListener struct {
	connStr    string
	handle     Handler
	sem        *semaphore.Weighted
	inFlight   sync.WaitGroup
	logger     *zap.Logger
	shutdownCh chan struct{}
	done       chan struct{}
}

func NewItemListener(connStr string, handle Handler, logger *zap.Logger) *ItemListener {
	return &ItemListener{
		connStr:    connStr,
		handle:     handle,
		sem:        semaphore.NewWeighted(maxInFlight),
		logger:     logger.Named("item_listener"),
		shutdownCh: make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start begins listening for notifications in a background goroutine
func (l *ItemListener) Start(ctx context.Context) {
	go l.listen(ctx)
	l.logger.Info("item listener started", zap.String("channel", channelName))
}

// Stop closes the connection and waits for running handlers.
func (l *ItemListener) Stop() {
	close(l.shutdownCh)
	<-l.done
	l.inFlight.Wait()
	l.logger.Info("item listener stopped")
}

func (l *ItemListener) listen(ctx context.Context) {
	defer close(l.done)

	for {
		select {
		case <-l.shutdownCh:
			return
		case <-ctx.Done():
			return
		default:
			l.connectAndListen(ctx)
		}

		select {
		case <-l.shutdownCh:
			return
		case <-ctx.Done():
			return
		case <-time.After(reconnectInterval):
			l.logger.Info("reconnecting to notification channel")
		}
	}
}

func (l *ItemListener) connectAndListen(ctx context.Context) {
	listener := pq.NewListener(l.connStr, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		switch ev {
		case pq.ListenerEventConnected:
			l.logger.Info("connected to notification channel")
		case pq.ListenerEventDisconnected:
			l.logger.Warn("disconnected from notification channel", zap.Error(err))
		case pq.ListenerEventReconnected:
			l.logger.Info("reconnected to notification channel")
		case pq.ListenerEventConnectionAttemptFailed:
			l.logger.Warn("connection attempt failed", zap.Error(err))
		}
	})
	defer listener.Close()

	if err := listener.Listen(channelName); err != nil {
		l.logger.Error("failed to listen", zap.String("channel", channelName), zap.Error(err))
		return
	}

	for {
		select {
		case <-l.shutdownCh:
			return
		case <-ctx.Done():
			return
		case n := <-listener.Notify:
			if n == nil {
				// connection lost
				return
			}
			l.dispatch(ctx, n.Extra)
		case <-time.After(pingInterval):
			go func() {
				if err := listener.Ping(); err != nil {
					l.logger.Warn("listener ping failed", zap.Error(err))
				}
			}()
		}
	}
}

func (l *ItemListener) dispatch(ctx context.Context, extra string) {
	linked, err := parsePayload(extra)
	if err != nil {
		l.logger.Error("failed to parse notification", zap.Error(err))
		return
	}

	l.logger.Info("item linked", zap.String("plaid_item_id", linked.ID), zap.String("kind", string(linked.Kind)))

	l.inFlight.Add(1)
	go func() {
		defer l.inFlight.Done()
		hctx := context.WithoutCancel(ctx)
		if err := l.sem.Acquire(hctx, 1); err != nil {
			return
		}
		defer l.sem.Release(1)
		l.handle(hctx, linked)
	}()
}

func parsePayload(extra string) (LinkedItem, error) {
	var linked LinkedItem
	if err := json.Unmarshal([]byte(extra), &linked); err != nil {
		return linked, fmt.Errorf("invalid payload: %w", err)
	}
	if linked.ID == "" {
		return linked, fmt.Errorf("payload has no item id")
	}
	kind, err := item.ParseKind(string(linked.Kind))
	if err != nil {
		return linked, err
	}
	linked.Kind = kind
	return linked, nil
}
