package badger

import (
	"errors"

	"github.com/dgraph-io/badger/v4"
)

// errStopIteration ends a scan early without reporting an error.
var errStopIteration = errors.New("stop iteration")

type scanOptions struct {
	reverse  bool
	keysOnly bool
	start    []byte // Optional seek key; defaults to the prefix (or its end when reversing)
}

// scanPrefix calls fn for every item whose key starts with prefix.
// Returning errStopIteration from fn ends the scan cleanly.
func scanPrefix(tx *badger.Txn, prefix []byte, so scanOptions, fn func(item *badger.Item) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.Reverse = so.reverse
	opts.PrefetchValues = !so.keysOnly
	iter := tx.NewIterator(opts)
	defer iter.Close()

	start := so.start
	if start == nil {
		start = prefix
		if so.reverse {
			start = seekEnd(prefix)
		}
	}

	for iter.Seek(start); iter.ValidForPrefix(prefix); iter.Next() {
		if err := fn(iter.Item()); err != nil {
			if errors.Is(err, errStopIteration) {
				return nil
			}
			return err
		}
	}
	return nil
}

// collectKeys returns copies of every key under prefix.
func collectKeys(tx *badger.Txn, prefix []byte) ([][]byte, error) {
	var keys [][]byte
	err := scanPrefix(tx, prefix, scanOptions{keysOnly: true}, func(item *badger.Item) error {
		keys = append(keys, item.KeyCopy(nil))
		return nil
	})
	return keys, err
}

// deleteKeys deletes every key in keys.
func deleteKeys(tx *badger.Txn, keys [][]byte) error {
	for _, key := range keys {
		if err := tx.Delete(key); err != nil {
			return err
		}
	}
	return nil
}
