package badger

import (
	"context"

	"github.com/absmach/siteguard/pkg/fl"
	"github.com/dgraph-io/badger/v4"
)

type LocalModelRepository struct {
	db *Database
}

func NewLocalModelRepository(db *Database) *LocalModelRepository {
	return &LocalModelRepository{db: db}
}

func (r *LocalModelRepository) Save(ctx context.Context, m fl.LocalModel) error {
	return r.db.update(func(txn *badger.Txn) error {
		return setTxn(txn, localModelKey(m.ExperimentID, m.ParticipantID, m.Round), m)
	})
}

func (r *LocalModelRepository) Get(ctx context.Context, experimentID, participantID string, round uint64) (fl.LocalModel, error) {
	var m fl.LocalModel
	if err := r.db.get(localModelKey(experimentID, participantID, round), &m); err != nil {
		return fl.LocalModel{}, err
	}

	return m, nil
}
