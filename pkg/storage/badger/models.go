package badger

import (
	"context"
	"encoding/json"
	"fmt"

	pkgerrors "github.com/absmach/siteguard/pkg/errors"
	"github.com/absmach/siteguard/pkg/fl"
	"github.com/dgraph-io/badger/v4"
)

type ModelRepository struct {
	db *Database
}

func NewModelRepository(db *Database) *ModelRepository {
	return &ModelRepository{db: db}
}

func (r *ModelRepository) Create(ctx context.Context, m fl.GlobalModel) error {
	if m.ExperimentID == "" {
		return pkgerrors.ErrEmptyKey
	}

	return r.db.update(func(txn *badger.Txn) error {
		found, err := exists(txn, experimentKey(m.ExperimentID))
		if err != nil {
			return err
		}
		if !found {
			return pkgerrors.ErrNotFound
		}
		found, err = exists(txn, modelKey(m.ExperimentID, m.Round))
		if err != nil {
			return err
		}
		if found {
			return pkgerrors.ErrEntityExists
		}

		return setTxn(txn, modelKey(m.ExperimentID, m.Round), m)
	})
}

func (r *ModelRepository) Get(ctx context.Context, experimentID string, round uint64) (fl.GlobalModel, error) {
	var m fl.GlobalModel
	if err := r.db.get(modelKey(experimentID, round), &m); err != nil {
		return fl.GlobalModel{}, err
	}

	return m, nil
}

// Latest walks the experiment's snapshots backwards; round keys are zero
// padded so key order equals round order.
func (r *ModelRepository) Latest(ctx context.Context, experimentID string) (fl.GlobalModel, error) {
	prefix := []byte(modelPrefix + experimentID + ":")

	var m fl.GlobalModel
	err := r.db.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		seek := append(append([]byte{}, prefix...), 0xFF)
		it.Seek(seek)
		if !it.ValidForPrefix(prefix) {
			return pkgerrors.ErrNotFound
		}
		val, err := it.Item().ValueCopy(nil)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrDBQuery, err)
		}
		if err := json.Unmarshal(val, &m); err != nil {
			return fmt.Errorf("%w: %w", ErrDBScan, err)
		}

		return nil
	})
	if err != nil {
		return fl.GlobalModel{}, err
	}

	return m, nil
}
