// Package realtime delivers live order changes to per-party subscribers by
// tailing Firestore query snapshots. Every accepted mutation in the store
// layer is a document update, so subscribers see modifications rather than
// delete and re-create pairs.
package realtime

import (
	"context"
	"errors"
	"strings"

	"cloud.google.com/go/firestore"
	"go.uber.org/zap"

	"github.com/mitumba-market/api/internal/domain"
	pfirestore "github.com/mitumba-market/api/internal/platform/firestore"
	fsrepos "github.com/mitumba-market/api/internal/repositories/firestore"
)

const ordersCollection = "orders"

// ChangeKind classifies a change-feed entry.
type ChangeKind string

const (
	ChangeAdded    ChangeKind = "added"
	ChangeModified ChangeKind = "modified"
	ChangeRemoved  ChangeKind = "removed"
)

// OrderChange is one change-feed entry. Order carries the aggregate without
// its items; consumers needing lines re-fetch the order by ID.
type OrderChange struct {
	Kind    ChangeKind
	OrderID string
	Order   domain.Order
}

// Listener fans Firestore order snapshots out to subscribers.
type Listener struct {
	provider *pfirestore.Provider
	logger   *zap.Logger
	buffer   int
}

// ListenerOption customises Listener construction.
type ListenerOption func(*Listener)

// WithBuffer sets the subscription channel capacity.
func WithBuffer(size int) ListenerOption {
	return func(l *Listener) {
		if size > 0 {
			l.buffer = size
		}
	}
}

// NewListener builds a Listener over the shared Firestore provider.
func NewListener(provider *pfirestore.Provider, logger *zap.Logger, opts ...ListenerOption) (*Listener, error) {
	if provider == nil {
		return nil, errors.New("realtime: firestore provider is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Listener{
		provider: provider,
		logger:   logger,
		buffer:   16,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// SubscribeOrders streams changes for every order the party participates
// in. The channel closes when ctx is cancelled or the feed fails; slow
// consumers drop intermediate changes rather than stall the feed.
func (l *Listener) SubscribeOrders(ctx context.Context, party domain.OrderParty) (<-chan OrderChange, error) {
	if strings.TrimSpace(party.UserID) == "" {
		return nil, errors.New("realtime: party user id is required")
	}

	client, err := l.provider.Client(ctx)
	if err != nil {
		return nil, err
	}

	query := client.Collection(ordersCollection).
		Where(fsrepos.OrderPartyField(party.Role), "==", party.UserID)

	changes := make(chan OrderChange, l.buffer)
	go l.pump(ctx, query.Snapshots(ctx), party, changes)
	return changes, nil
}

func (l *Listener) pump(ctx context.Context, snapshots *firestore.QuerySnapshotIterator, party domain.OrderParty, out chan<- OrderChange) {
	defer close(out)
	defer snapshots.Stop()

	for {
		snapshot, err := snapshots.Next()
		if err != nil {
			if ctx.Err() == nil {
				l.logger.Warn("realtime: order feed terminated",
					zap.String("party_role", string(party.Role)),
					zap.Error(err),
				)
			}
			return
		}

		for _, change := range snapshot.Changes {
			entry, ok := l.convert(change)
			if !ok {
				continue
			}
			select {
			case out <- entry:
			case <-ctx.Done():
				return
			default:
				// Drop rather than stall the snapshot iterator; consumers
				// re-fetch current state by ID anyway.
				l.logger.Debug("realtime: dropping change for slow consumer",
					zap.String("order", entry.OrderID),
				)
			}
		}
	}
}

func (l *Listener) convert(change firestore.DocumentChange) (OrderChange, bool) {
	var kind ChangeKind
	switch change.Kind {
	case firestore.DocumentAdded:
		kind = ChangeAdded
	case firestore.DocumentModified:
		kind = ChangeModified
	case firestore.DocumentRemoved:
		kind = ChangeRemoved
	default:
		return OrderChange{}, false
	}

	entry := OrderChange{Kind: kind, OrderID: change.Doc.Ref.ID}
	if kind != ChangeRemoved {
		order, err := fsrepos.DecodeOrderSnapshot(change.Doc)
		if err != nil {
			l.logger.Warn("realtime: undecodable order change",
				zap.String("order", entry.OrderID),
				zap.Error(err),
			)
			return OrderChange{}, false
		}
		entry.Order = order
	}
	return entry, true
}
