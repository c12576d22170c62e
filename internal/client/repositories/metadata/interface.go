// Package metadata is the raw key/value medium under the obfuscated store.
// Values are stored exactly as given; no transform happens at this layer.
package metadata

import "context"

type Repository interface {
	// Get reports ok=false, with a nil error, when the key is absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) (map[string]string, error)
	Keys(ctx context.Context) ([]string, error)
	Clear(ctx context.Context) error
}
