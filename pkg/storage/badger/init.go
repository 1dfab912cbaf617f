package badger

import (
	"encoding/json"
	"errors"
	"fmt"

	pkgerrors "github.com/absmach/siteguard/pkg/errors"
	"github.com/dgraph-io/badger/v4"
)

var (
	ErrDBConnection = errors.New("badger database connection error")
	ErrDBQuery      = errors.New("database query error")
	ErrDBScan       = errors.New("database scan error")
	ErrCreate       = errors.New("create error")
	ErrUpdate       = errors.New("update error")
)

const (
	experimentPrefix   = "exp:"
	participantPrefix  = "participant:"
	principalPrefix    = "exp-part:"
	modelPrefix        = "model:"
	contributionPrefix = "contrib:"
	localModelPrefix   = "local:"

	// Optimistic transactions that lose a race are retried this many times
	// before the conflict is surfaced.
	maxTxnRetries = 3
)

type Database struct {
	db *badger.DB
}

func NewDatabase(path string) (*Database, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDBConnection, err)
	}

	return &Database{db: db}, nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

func roundKey(round uint64) string {
	return fmt.Sprintf("%020d", round)
}

func experimentKey(id string) []byte {
	return []byte(experimentPrefix + id)
}

func participantKey(id string) []byte {
	return []byte(participantPrefix + id)
}

func principalKey(experimentID, principalID string) []byte {
	return []byte(principalPrefix + experimentID + ":" + principalID)
}

func modelKey(experimentID string, round uint64) []byte {
	return []byte(modelPrefix + experimentID + ":" + roundKey(round))
}

func contributionRoundPrefix(experimentID string, round uint64) []byte {
	return []byte(contributionPrefix + experimentID + ":" + roundKey(round) + ":")
}

func localModelKey(experimentID, participantID string, round uint64) []byte {
	return []byte(localModelPrefix + experimentID + ":" + participantID + ":" + roundKey(round))
}

func (d *Database) get(key []byte, v any) error {
	return d.db.View(func(txn *badger.Txn) error {
		return getTxn(txn, key, v)
	})
}

func getTxn(txn *badger.Txn, key []byte, v any) error {
	item, err := txn.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return pkgerrors.ErrNotFound
		}

		return fmt.Errorf("%w: %w", ErrDBQuery, err)
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDBQuery, err)
	}
	if err := json.Unmarshal(val, v); err != nil {
		return fmt.Errorf("%w: %w", ErrDBScan, err)
	}

	return nil
}

func exists(txn *badger.Txn, key []byte) (bool, error) {
	_, err := txn.Get(key)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, badger.ErrKeyNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}
}

func setTxn(txn *badger.Txn, key []byte, v any) error {
	val, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCreate, err)
	}
	if err := txn.Set(key, val); err != nil {
		return fmt.Errorf("%w: %w", ErrUpdate, err)
	}

	return nil
}

// update runs fn in a read-write transaction, retrying when badger reports
// a conflicting concurrent commit. A conflict that persists is returned as
// pkgerrors.ErrConflict.
func (d *Database) update(fn func(txn *badger.Txn) error) error {
	var err error
	for range maxTxnRetries {
		err = d.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}

	return pkgerrors.ErrConflict
}

// listWithPrefix returns every value under prefix in key order.
func (d *Database) listWithPrefix(prefix []byte) ([][]byte, error) {
	var items [][]byte
	err := d.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			val, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			items = append(items, val)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	return items, nil
}

func decodeAll[T any](items [][]byte) ([]T, error) {
	out := make([]T, 0, len(items))
	for _, item := range items {
		var v T
		if err := json.Unmarshal(item, &v); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDBScan, err)
		}
		out = append(out, v)
	}

	return out, nil
}

func page[T any](items []T, offset, limit uint64) []T {
	total := uint64(len(items))
	if offset >= total {
		return []T{}
	}
	end := min(offset+limit, total)

	return items[offset:end]
}
