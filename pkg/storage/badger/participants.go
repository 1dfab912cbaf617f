package badger

import (
	"context"
	"errors"

	pkgerrors "github.com/absmach/siteguard/pkg/errors"
	"github.com/absmach/siteguard/pkg/fl"
	"github.com/dgraph-io/badger/v4"
)

type ParticipantRepository struct {
	db *Database
}

func NewParticipantRepository(db *Database) *ParticipantRepository {
	return &ParticipantRepository{db: db}
}

func (r *ParticipantRepository) Create(ctx context.Context, p fl.Participant) (fl.Participant, bool, error) {
	if p.ID == "" {
		return fl.Participant{}, false, pkgerrors.ErrEmptyKey
	}

	var (
		stored  fl.Participant
		created bool
	)
	err := r.db.update(func(txn *badger.Txn) error {
		created = false
		var id string
		err := getTxn(txn, principalKey(p.ExperimentID, p.PrincipalID), &id)
		switch {
		case err == nil:
			return getTxn(txn, participantKey(id), &stored)
		case !errors.Is(err, pkgerrors.ErrNotFound):
			return err
		}

		if err := setTxn(txn, participantKey(p.ID), p); err != nil {
			return err
		}
		if err := setTxn(txn, principalKey(p.ExperimentID, p.PrincipalID), p.ID); err != nil {
			return err
		}
		stored, created = p, true

		return nil
	})
	if err != nil {
		return fl.Participant{}, false, err
	}

	return stored, created, nil
}

func (r *ParticipantRepository) Get(ctx context.Context, id string) (fl.Participant, error) {
	var p fl.Participant
	if err := r.db.get(participantKey(id), &p); err != nil {
		return fl.Participant{}, err
	}

	return p, nil
}

func (r *ParticipantRepository) GetByPrincipal(ctx context.Context, experimentID, principalID string) (fl.Participant, error) {
	var id string
	if err := r.db.get(principalKey(experimentID, principalID), &id); err != nil {
		return fl.Participant{}, err
	}

	return r.Get(ctx, id)
}

func (r *ParticipantRepository) ListByExperiment(ctx context.Context, experimentID string) ([]fl.Participant, error) {
	items, err := r.db.listWithPrefix([]byte(principalPrefix + experimentID + ":"))
	if err != nil {
		return nil, err
	}
	ids, err := decodeAll[string](items)
	if err != nil {
		return nil, err
	}

	participants := make([]fl.Participant, 0, len(ids))
	for _, id := range ids {
		p, err := r.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		participants = append(participants, p)
	}
	sortByJoined(participants)

	return participants, nil
}
