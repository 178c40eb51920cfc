package boltstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"

	bolt "go.etcd.io/bbolt"

	"github.com/lockplane/storemigrate/internal/migration"
)

// ReadMetadata opens the store read-only and reads its _meta bucket.
func (e *Engine) ReadMetadata(_ context.Context, path string) (*migration.Metadata, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, migration.NewStoreError(path, err)
	}
	if info.IsDir() {
		return nil, migration.NewStoreError(path, errors.New("path is a directory"))
	}
	if info.Size() == 0 {
		return nil, migration.NewStoreError(path, errors.New("empty file"))
	}

	db, err := bolt.Open(path, 0o600, e.readOnly())
	if err != nil {
		return nil, migration.NewStoreError(path, err)
	}
	defer func() { _ = db.Close() }()

	md := &migration.Metadata{
		Path:       path,
		Engine:     e.Name(),
		Attributes: map[string]string{"size": strconv.FormatInt(info.Size(), 10)},
	}

	err = db.View(func(tx *bolt.Tx) error {
		meta := tx.Bucket([]byte(metaBucket))
		if meta == nil {
			return fmt.Errorf("missing %s bucket", metaBucket)
		}
		fingerprint := meta.Get(keyFingerprint)
		if len(fingerprint) == 0 {
			return errors.New("missing fingerprint")
		}
		md.Fingerprint = string(fingerprint)
		md.Attributes["layout_version"] = string(meta.Get(keyLayoutVersion))

		buckets := 0
		_ = tx.ForEach(func(name []byte, _ *bolt.Bucket) error {
			if string(name) != metaBucket {
				buckets++
			}
			return nil
		})
		md.Attributes["buckets"] = strconv.Itoa(buckets)
		return nil
	})
	if err != nil {
		return nil, migration.NewStoreError(path, err)
	}
	return md, nil
}

// writeMeta stamps the store with layout.
func writeMeta(tx *bolt.Tx, layout *Layout) error {
	meta, err := tx.CreateBucketIfNotExists([]byte(metaBucket))
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(layout)
	if err != nil {
		return err
	}
	if err := meta.Put(keyFingerprint, []byte(layout.Fingerprint())); err != nil {
		return err
	}
	if err := meta.Put(keyLayoutVersion, []byte(layout.Version())); err != nil {
		return err
	}
	return meta.Put(keyLayout, encoded)
}

// createBuckets creates every bucket of layout and stamps _meta.
func createBuckets(tx *bolt.Tx, layout *Layout) error {
	if err := writeMeta(tx, layout); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	for _, b := range layout.Buckets {
		if _, err := tx.CreateBucketIfNotExists([]byte(b.Name)); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", b.Name, err)
		}
	}
	return nil
}

// ReplaceStore copies replacementPath into a staging file beside
// originalPath and renames it into place.
func (e *Engine) ReplaceStore(_ context.Context, originalPath, replacementPath string) error {
	info, err := os.Stat(originalPath)
	if err != nil {
		return err
	}

	staging := originalPath + ".staging"
	if err := os.Remove(staging); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove stale staging file: %w", err)
	}

	db, err := bolt.Open(replacementPath, 0o600, e.readOnly())
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", replacementPath, err)
	}
	err = db.View(func(tx *bolt.Tx) error {
		return tx.CopyFile(staging, info.Mode().Perm())
	})
	_ = db.Close()
	if err != nil {
		_ = os.Remove(staging)
		return fmt.Errorf("failed to copy %s to %s: %w", replacementPath, staging, err)
	}

	if err := syncFile(staging); err != nil {
		_ = os.Remove(staging)
		return err
	}

	if err := os.Rename(staging, originalPath); err != nil {
		_ = os.Remove(staging)
		return fmt.Errorf("failed to move %s into place: %w", staging, err)
	}

	e.logger.WithField("store", originalPath).Debug("Replaced store")
	return nil
}

func syncFile(path string) error {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to sync %s: %w", path, err)
	}
	return f.Close()
}

// DestroyStore removes the store file.
func (e *Engine) DestroyStore(_ context.Context, path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Create makes a new, empty store at path for layout.
func (e *Engine) Create(path string, layout *Layout) (*bolt.DB, error) {
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("%w: %s", migration.ErrDestinationExists, path)
	}
	db, err := bolt.Open(path, 0o600, e.readWrite())
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bolt.Tx) error { return createBuckets(tx, layout) }); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Open opens a store for use after verifying it is at latest. It never
// migrates; stores at any other version are rejected.
func (e *Engine) Open(ctx context.Context, path string, latest migration.Schema) (*bolt.DB, error) {
	md, err := e.ReadMetadata(ctx, path)
	if err != nil {
		return nil, err
	}
	if !e.IsCompatible(latest, md) {
		return nil, fmt.Errorf("%w: %s is not at version %s", migration.ErrNoCompatibleVersionFound, path, latest.Version())
	}
	return bolt.Open(path, 0o600, e.readWrite())
}

// Put stores rec under key in bucket after normalizing it against layout.
func Put(db *bolt.DB, layout *Layout, bucket, key string, rec Record) error {
	bl := layout.Bucket(bucket)
	if bl == nil {
		return fmt.Errorf("layout %s has no bucket %s", layout.Version(), bucket)
	}
	normalized, err := bl.Normalize(rec)
	if err != nil {
		return err
	}
	data, err := encodeRecord(normalized)
	if err != nil {
		return err
	}
	return db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return fmt.Errorf("bucket %s does not exist", bucket)
		}
		return b.Put([]byte(key), data)
	})
}

// Get reads the record under key in bucket. A missing key returns nil, nil.
func Get(db *bolt.DB, bucket, key string) (Record, error) {
	var rec Record
	err := db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return fmt.Errorf("bucket %s does not exist", bucket)
		}
		data := b.Get([]byte(key))
		if data == nil {
			return nil
		}
		var err error
		rec, err = decodeRecord(data)
		return err
	})
	return rec, err
}
