package storage

import "context"

// ObjectStore reads and writes whole objects. Fetch failures are reported as
// SOURCE_UNAVAILABLE and Put failures as SINK_UNAVAILABLE AppErrors.
type ObjectStore interface {
	Fetch(ctx context.Context, bucket, key string) ([]byte, error)
	Put(ctx context.Context, bucket, key string, body []byte) error
}

// ContentTypeCSV is stored with every output object
const ContentTypeCSV = "text/csv"
