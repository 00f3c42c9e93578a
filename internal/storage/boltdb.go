package storage

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/mlsec-tools/deepdash/internal/storage/models"
)

var (
	bucketObjects = []byte("Objects")
	bucketRecords = []byte("Records")
)

// BoltStore implements Store using bbolt. It backs the local development
// setup where no AWS account is available.
type BoltStore struct {
	db     *bbolt.DB
	path   string
	prefix string
}

// NewBoltStore opens (or creates) the database file and sets up the buckets.
func NewBoltStore(config *Config) (*BoltStore, error) {
	db, err := bbolt.Open(config.LocalPath, 0600, nil)
	if err != nil {
		return nil, err
	}

	store := &BoltStore{
		db:     db,
		path:   config.LocalPath,
		prefix: config.Prefix,
	}

	if err := store.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (b *BoltStore) initialize() error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketObjects); err != nil {
			return fmt.Errorf("create Objects bucket: %v", err)
		}
		if _, err := tx.CreateBucketIfNotExists(bucketRecords); err != nil {
			return fmt.Errorf("create Records bucket: %v", err)
		}
		return nil
	})
}

// PutObject stores object metadata; used to seed local setups and in tests.
func (b *BoltStore) PutObject(ctx context.Context, obj models.StoredObject) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketObjects)
		data, err := json.Marshal(obj)
		if err != nil {
			return fmt.Errorf("failed to marshal object %s: %w", obj.Key, err)
		}
		return bucket.Put([]byte(obj.Key), data)
	})
}

// PutRecord appends a detection record; used to seed local setups and in tests.
func (b *BoltStore) PutRecord(ctx context.Context, record models.DetectionRecord) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketRecords)
		id, err := bucket.NextSequence()
		if err != nil {
			return err
		}
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, id)
		data, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("failed to marshal record: %w", err)
		}
		return bucket.Put(key, data)
	})
}

// ListObjects returns objects whose key starts with the configured prefix,
// in key order.
func (b *BoltStore) ListObjects(ctx context.Context) ([]models.StoredObject, error) {
	var objects []models.StoredObject
	err := b.db.View(func(tx *bbolt.Tx) error {
		cursor := tx.Bucket(bucketObjects).Cursor()
		prefix := []byte(b.prefix)
		for k, v := cursor.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = cursor.Next() {
			var obj models.StoredObject
			if err := json.Unmarshal(v, &obj); err != nil {
				return fmt.Errorf("failed to unmarshal object %s: %w", string(k), err)
			}
			objects = append(objects, obj)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return objects, nil
}

// DeleteObject removes one object by exact key. Unlike S3, deleting an
// absent key reports ErrObjectNotFound.
func (b *BoltStore) DeleteObject(ctx context.Context, key string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketObjects)
		if bucket.Get([]byte(key)) == nil {
			return fmt.Errorf("%w: %s", ErrObjectNotFound, key)
		}
		return bucket.Delete([]byte(key))
	})
}

// ScanRecords returns all detection records in insertion order.
func (b *BoltStore) ScanRecords(ctx context.Context) ([]models.DetectionRecord, error) {
	var records []models.DetectionRecord
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketRecords).ForEach(func(k, v []byte) error {
			var record models.DetectionRecord
			if err := json.Unmarshal(v, &record); err != nil {
				return fmt.Errorf("failed to unmarshal record: %w", err)
			}
			records = append(records, record)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Close closes the underlying database file.
func (b *BoltStore) Close(ctx context.Context) error {
	return b.db.Close()
}
