package domain

// Store is the local persistent store: a key-value store that can be closed.
type Store interface {
	KeyValueStore
	Close() error
}
