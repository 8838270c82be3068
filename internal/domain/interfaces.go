package domain

import "context"

// FilterOp is a comparison understood by every remote backend.
type FilterOp string

const (
	OpEq  FilterOp = "eq"
	OpGte FilterOp = "gte"
	OpLte FilterOp = "lte"
)

// Condition restricts a query to rows where Column Op Value holds.
type Condition struct {
	Column string
	Op     FilterOp
	Value  any
}

// Filter is a conjunction of conditions.
type Filter []Condition

// Eq appends an equality condition.
func (f Filter) Eq(column string, value any) Filter {
	return append(f, Condition{Column: column, Op: OpEq, Value: value})
}

// Gte appends a lower-bound condition.
func (f Filter) Gte(column string, value any) Filter {
	return append(f, Condition{Column: column, Op: OpGte, Value: value})
}

// Lte appends an upper-bound condition.
func (f Filter) Lte(column string, value any) Filter {
	return append(f, Condition{Column: column, Op: OpLte, Value: value})
}

// Order sorts query results. A zero Order leaves the backend's order.
type Order struct {
	Column     string
	Descending bool
}

// RemoteStore is the authoritative per-collection data store.
// Implemented by the remote backends.
type RemoteStore interface {
	Insert(ctx context.Context, collection string, rec Record) (Record, error)
	Update(ctx context.Context, collection, id string, patch Record) (Record, error)
	Delete(ctx context.Context, collection, id string) error
	Query(ctx context.Context, collection string, filter Filter, order Order) ([]Record, error)
}

// KeyValueStore persists text values across restarts.
// Get reports false when the key is absent.
type KeyValueStore interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(key string) error
}

// ConnectivitySource reports network reachability as seen by the runtime.
type ConnectivitySource interface {
	// Online returns the current signal.
	Online() bool

	// Subscribe registers fn for every signal the source emits and
	// returns a function that removes the registration.
	Subscribe(fn func(online bool)) (unsubscribe func())
}
