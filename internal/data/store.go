// Package data reads and writes the inverted feature index and the
// vocabulary used by the predictors.
//
// The index is a BoltDB file with one bucket per column of the dataset:
// sparse rows, optional text ids, optional gold labels and a small metadata
// bucket. Rows are keyed by their big-endian row number so a cursor walk
// returns them in input order.
package data

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"classy/internal/sparse"

	"go.etcd.io/bbolt"
)

const (
	metaBucket    = "meta"     // n_features, n_rows
	rowsBucket    = "rows"     // row number -> JSON sparse vector
	textIDsBucket = "text_ids" // row number -> text id
	labelsBucket  = "labels"   // row number -> gold label

	keyNFeatures = "n_features"
	keyNRows     = "n_rows"
)

// Store wraps the BoltDB handle of one index file.
type Store struct {
	db *bbolt.DB
}

// Open opens (or creates, unless readOnly) the index file at path.
func Open(path string, readOnly bool) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second, ReadOnly: readOnly})
	if err != nil {
		return nil, fmt.Errorf("failed to open index %s: %w", path, err)
	}

	if !readOnly {
		err = db.Update(func(tx *bbolt.Tx) error {
			for _, name := range []string{metaBucket, rowsBucket, textIDsBucket, labelsBucket} {
				if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
					return fmt.Errorf("create %s bucket: %w", name, err)
				}
			}
			return nil
		})
		if err != nil {
			db.Close()
			return nil, err
		}
	}

	return &Store{db: db}, nil
}

// Close closes the database. Closing twice is a no-op.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Put replaces the whole content of the store with idx.
func (s *Store) Put(idx *Index) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{rowsBucket, textIDsBucket, labelsBucket} {
			if err := tx.DeleteBucket([]byte(name)); err != nil && err != bbolt.ErrBucketNotFound {
				return fmt.Errorf("reset %s bucket: %w", name, err)
			}
			if _, err := tx.CreateBucket([]byte(name)); err != nil {
				return fmt.Errorf("create %s bucket: %w", name, err)
			}
		}

		meta := tx.Bucket([]byte(metaBucket))
		if err := meta.Put([]byte(keyNFeatures), rowKey(idx.NFeatures)); err != nil {
			return err
		}
		if err := meta.Put([]byte(keyNRows), rowKey(len(idx.Rows))); err != nil {
			return err
		}

		rows := tx.Bucket([]byte(rowsBucket))
		for i, row := range idx.Rows {
			data, err := json.Marshal(row)
			if err != nil {
				return fmt.Errorf("marshal row %d: %w", i, err)
			}
			if err := rows.Put(rowKey(i), data); err != nil {
				return err
			}
		}

		ids := tx.Bucket([]byte(textIDsBucket))
		for i, id := range idx.TextIDs {
			if err := ids.Put(rowKey(i), []byte(id)); err != nil {
				return err
			}
		}

		labels := tx.Bucket([]byte(labelsBucket))
		for i, label := range idx.Labels {
			if err := labels.Put(rowKey(i), rowKey(label)); err != nil {
				return err
			}
		}
		return nil
	})
}

// Get reads the whole index back in row order.
func (s *Store) Get() (*Index, error) {
	idx := &Index{}

	err := s.db.View(func(tx *bbolt.Tx) error {
		meta := tx.Bucket([]byte(metaBucket))
		rows := tx.Bucket([]byte(rowsBucket))
		if meta == nil || rows == nil {
			return fmt.Errorf("not an index file: missing %s or %s bucket", metaBucket, rowsBucket)
		}

		if v := meta.Get([]byte(keyNFeatures)); v != nil {
			idx.NFeatures = keyInt(v)
		}

		c := rows.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var row sparse.Vector
			if err := json.Unmarshal(v, &row); err != nil {
				return fmt.Errorf("unmarshal row %d: %w", keyInt(k), err)
			}
			if len(row.Indices) != len(row.Values) {
				return fmt.Errorf("row %d: %d indices but %d values", keyInt(k), len(row.Indices), len(row.Values))
			}
			idx.Rows = append(idx.Rows, row)
		}

		if b := tx.Bucket([]byte(textIDsBucket)); b != nil {
			c := b.Cursor()
			for k, v := c.First(); k != nil; k, v = c.Next() {
				idx.TextIDs = append(idx.TextIDs, string(v))
			}
		}

		if b := tx.Bucket([]byte(labelsBucket)); b != nil {
			c := b.Cursor()
			for k, v := c.First(); k != nil; k, v = c.Next() {
				idx.Labels = append(idx.Labels, keyInt(v))
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return idx, nil
}

func rowKey(i int) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(i))
	return b
}

func keyInt(b []byte) int {
	if len(b) != 8 {
		return 0
	}
	return int(binary.BigEndian.Uint64(b))
}
