package boltstore

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"

	"github.com/lockplane/storemigrate/internal/migration"
)

// Migrate creates a store for the destination layout at destinationPath and
// streams every mapped source bucket through its converters. The whole copy
// is one transaction.
func (e *Engine) Migrate(ctx context.Context, step migration.Step, sourcePath, destinationPath string) error {
	source, ok := step.Source.(*Layout)
	if !ok {
		return fmt.Errorf("source schema %s is %T, not a bolt layout", step.Source.Version(), step.Source)
	}
	destination, ok := step.Destination.(*Layout)
	if !ok {
		return fmt.Errorf("destination schema %s is %T, not a bolt layout", step.Destination.Version(), step.Destination)
	}
	mapping, ok := step.Mapping.(*Mapping)
	if !ok {
		return fmt.Errorf("mapping %s is %T, not a bolt mapping", step.Mapping.Name(), step.Mapping)
	}

	if _, err := os.Stat(destinationPath); err == nil {
		return fmt.Errorf("%w: %s", migration.ErrDestinationExists, destinationPath)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to stat destination %s: %w", destinationPath, err)
	}

	log := e.logger.WithFields(logrus.Fields{
		"source":      source.Version(),
		"destination": destination.Version(),
		"mapping":     mapping.Name(),
	})

	srcDB, err := bolt.Open(sourcePath, 0o600, e.readOnly())
	if err != nil {
		return fmt.Errorf("failed to open source %s: %w", sourcePath, err)
	}
	defer func() { _ = srcDB.Close() }()

	dstDB, err := bolt.Open(destinationPath, 0o600, e.readWrite())
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", destinationPath, err)
	}
	defer func() { _ = dstDB.Close() }()

	return srcDB.View(func(srcTx *bolt.Tx) error {
		return dstDB.Update(func(dstTx *bolt.Tx) error {
			if err := createBuckets(dstTx, destination); err != nil {
				return err
			}
			for _, bm := range mapping.Buckets {
				if err := ctx.Err(); err != nil {
					return err
				}
				n, err := copyBucket(srcTx, dstTx, bm, source, destination)
				if err != nil {
					return err
				}
				log.WithFields(logrus.Fields{"bucket": bm.Destination, "records": n}).Debug("Copied bucket")
			}
			return nil
		})
	})
}

func copyBucket(srcTx, dstTx *bolt.Tx, bm BucketMapping, source, destination *Layout) (int, error) {
	layout := destination.Bucket(bm.Destination)
	if layout == nil {
		return 0, fmt.Errorf("mapping fills bucket %q which does not exist in %s", bm.Destination, destination.Version())
	}
	if source.Bucket(bm.SourceBucket()) == nil {
		return 0, fmt.Errorf("mapping reads bucket %q which does not exist in %s", bm.SourceBucket(), source.Version())
	}

	src := srcTx.Bucket([]byte(bm.SourceBucket()))
	if src == nil {
		// Declared but never written to
		return 0, nil
	}
	dst := dstTx.Bucket([]byte(bm.Destination))

	count := 0
	err := src.ForEach(func(k, v []byte) error {
		if v == nil {
			return nil // nested bucket
		}
		rec, err := decodeRecord(v)
		if err != nil {
			return fmt.Errorf("%s/%s: %w", bm.SourceBucket(), k, err)
		}
		out, err := bm.convert(layout, rec)
		if err != nil {
			return fmt.Errorf("%s/%s: %w", bm.SourceBucket(), k, err)
		}
		data, err := encodeRecord(out)
		if err != nil {
			return err
		}
		count++
		return dst.Put(append([]byte(nil), k...), data)
	})
	return count, err
}
