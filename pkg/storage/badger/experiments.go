package badger

import (
	"cmp"
	"context"
	"slices"
	"time"

	pkgerrors "github.com/absmach/siteguard/pkg/errors"
	"github.com/absmach/siteguard/pkg/fl"
	"github.com/dgraph-io/badger/v4"
)

type ExperimentRepository struct {
	db *Database
}

func NewExperimentRepository(db *Database) *ExperimentRepository {
	return &ExperimentRepository{db: db}
}

func (r *ExperimentRepository) Create(ctx context.Context, e fl.Experiment, initial fl.GlobalModel) error {
	if e.ID == "" {
		return pkgerrors.ErrEmptyKey
	}

	return r.db.update(func(txn *badger.Txn) error {
		found, err := exists(txn, experimentKey(e.ID))
		if err != nil {
			return err
		}
		if found {
			return pkgerrors.ErrEntityExists
		}
		if err := setTxn(txn, experimentKey(e.ID), e); err != nil {
			return err
		}

		return setTxn(txn, modelKey(initial.ExperimentID, initial.Round), initial)
	})
}

func (r *ExperimentRepository) Get(ctx context.Context, id string) (fl.Experiment, error) {
	var e fl.Experiment
	if err := r.db.get(experimentKey(id), &e); err != nil {
		return fl.Experiment{}, err
	}

	return e, nil
}

func (r *ExperimentRepository) List(ctx context.Context, offset, limit uint64) ([]fl.Experiment, uint64, error) {
	items, err := r.db.listWithPrefix([]byte(experimentPrefix))
	if err != nil {
		return nil, 0, err
	}
	experiments, err := decodeAll[fl.Experiment](items)
	if err != nil {
		return nil, 0, err
	}
	slices.SortStableFunc(experiments, func(a, b fl.Experiment) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}

		return cmp.Compare(a.ID, b.ID)
	})

	return page(experiments, offset, limit), uint64(len(experiments)), nil
}

func (r *ExperimentRepository) UpdateStatus(ctx context.Context, id string, version uint64, status fl.Status) (fl.Experiment, error) {
	var updated fl.Experiment
	err := r.db.update(func(txn *badger.Txn) error {
		var e fl.Experiment
		if err := getTxn(txn, experimentKey(id), &e); err != nil {
			return err
		}
		if e.Version != version {
			return pkgerrors.ErrConflict
		}
		e.Status = status
		e.Version++
		e.UpdatedAt = time.Now().UTC()
		updated = e

		return setTxn(txn, experimentKey(id), e)
	})
	if err != nil {
		return fl.Experiment{}, err
	}

	return updated, nil
}

func (r *ExperimentRepository) AdvanceRound(ctx context.Context, id string, version uint64, next fl.GlobalModel) (fl.Experiment, error) {
	var updated fl.Experiment
	err := r.db.update(func(txn *badger.Txn) error {
		var e fl.Experiment
		if err := getTxn(txn, experimentKey(id), &e); err != nil {
			return err
		}
		if e.Version != version || next.Round != e.CurrentRound+1 {
			return pkgerrors.ErrConflict
		}
		found, err := exists(txn, modelKey(id, next.Round))
		if err != nil {
			return err
		}
		if found {
			return pkgerrors.ErrConflict
		}

		e.CurrentRound = next.Round
		e.Status = fl.StatusTraining
		e.Version++
		e.UpdatedAt = time.Now().UTC()
		if err := setTxn(txn, experimentKey(id), e); err != nil {
			return err
		}
		updated = e

		return setTxn(txn, modelKey(id, next.Round), next)
	})
	if err != nil {
		return fl.Experiment{}, err
	}

	return updated, nil
}
