package repository

import "context"

// KeyValueStore is durable key-value storage for client-side state.
// Get reports found=false, with a nil error, for a missing key.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}
