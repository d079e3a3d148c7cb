package report

import (
	"context"
	"io"
)

// Store publishes a finished report artifact under a key. Local filesystem is
// the default; scheduled runs can publish to an S3 bucket instead.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader) error
}
