// Package store provides the durable key-value backends the pipeline writes
// resume records to. Values are whole-record blobs; there is no partial
// update, so correctness relies on the single-writer-per-key rule upheld by
// the pipeline.
package store

import "context"

// KV is the durable record store contract: get a value by key or learn it is
// absent, and set a whole value.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}
