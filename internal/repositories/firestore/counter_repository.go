package firestore

import (
	"context"
	"errors"
	"strings"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	pfirestore "github.com/mitumba-market/api/internal/platform/firestore"
	"github.com/mitumba-market/api/internal/repositories"
)

const countersCollection = "counters"

// CounterRepository allocates monotonic sequences inside transactions.
type CounterRepository struct {
	provider *pfirestore.Provider
}

var _ repositories.CounterRepository = (*CounterRepository)(nil)

// NewCounterRepository builds a CounterRepository.
func NewCounterRepository(provider *pfirestore.Provider) *CounterRepository {
	return &CounterRepository{provider: provider}
}

// Next atomically increments the named counter and returns the new value.
// Missing counters start at one.
func (r *CounterRepository) Next(ctx context.Context, name string) (int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, pfirestore.WrapError("counters.next", errors.New("counter name is required"))
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return 0, err
	}
	doc := client.Collection(countersCollection).Doc(name)

	var next int64
	err = pfirestore.RunTransaction(ctx, client, func(ctx context.Context, tx *firestore.Transaction) error {
		snapshot, err := tx.Get(doc)
		switch {
		case err == nil:
			value, valueErr := snapshot.DataAt("value")
			if valueErr != nil {
				return valueErr
			}
			current, ok := value.(int64)
			if !ok {
				return errors.New("counter value is not an integer")
			}
			next = current + 1
		case status.Code(err) == codes.NotFound:
			// First allocation creates the document.
			next = 1
		default:
			return err
		}
		return tx.Set(doc, map[string]any{"value": next})
	})
	if err != nil {
		return 0, err
	}
	return next, nil
}
