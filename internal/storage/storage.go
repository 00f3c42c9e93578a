package storage

import (
	"context"
	"errors"

	"github.com/mlsec-tools/deepdash/internal/storage/models"
)

// ErrObjectNotFound is returned when a delete targets a key that does not
// exist. The AWS backend never returns it (S3 deletes are idempotent); the
// local backend does.
var ErrObjectNotFound = errors.New("object not found")

// ObjectStore exposes the upload bucket: a prefix-scoped listing and
// deletion of a single exact key.
type ObjectStore interface {
	// ListObjects enumerates objects under the configured prefix.
	ListObjects(ctx context.Context) ([]models.StoredObject, error)

	// DeleteObject removes one object by exact key.
	DeleteObject(ctx context.Context, key string) error
}

// RecordStore exposes the detection record table.
type RecordStore interface {
	// ScanRecords reads detection records from the table. Paging is bounded
	// by the configured page cap.
	ScanRecords(ctx context.Context) ([]models.DetectionRecord, error)
}

// Store bundles both storage surfaces plus lifecycle.
type Store interface {
	ObjectStore
	RecordStore

	Close(ctx context.Context) error
}
