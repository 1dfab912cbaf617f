package badger

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	pkgerrors "github.com/absmach/siteguard/pkg/errors"
	"github.com/absmach/siteguard/pkg/fl"
	"github.com/dgraph-io/badger/v4"
)

type ContributionRepository struct {
	db *Database
}

func NewContributionRepository(db *Database) *ContributionRepository {
	return &ContributionRepository{db: db}
}

// Keys sort by round, then creation time, then id, which is the order
// aggregation consumes them in.
func contributionKey(c fl.Contribution) []byte {
	return fmt.Appendf(contributionRoundPrefix(c.ExperimentID, c.Round), "%020d:%s", c.CreatedAt.UnixNano(), c.ID)
}

func (r *ContributionRepository) Create(ctx context.Context, c fl.Contribution) error {
	if c.ID == "" {
		return pkgerrors.ErrEmptyKey
	}

	return r.db.update(func(txn *badger.Txn) error {
		found, err := exists(txn, contributionKey(c))
		if err != nil {
			return err
		}
		if found {
			return pkgerrors.ErrEntityExists
		}

		return setTxn(txn, contributionKey(c), c)
	})
}

func (r *ContributionRepository) ListByRound(ctx context.Context, experimentID string, round uint64) ([]fl.Contribution, error) {
	items, err := r.db.listWithPrefix(contributionRoundPrefix(experimentID, round))
	if err != nil {
		return nil, err
	}

	return decodeAll[fl.Contribution](items)
}

func (r *ContributionRepository) List(ctx context.Context, experimentID string, offset, limit uint64) ([]fl.Contribution, uint64, error) {
	items, err := r.db.listWithPrefix([]byte(contributionPrefix + experimentID + ":"))
	if err != nil {
		return nil, 0, err
	}
	contributions, err := decodeAll[fl.Contribution](items)
	if err != nil {
		return nil, 0, err
	}
	slices.SortStableFunc(contributions, func(a, b fl.Contribution) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}

		return cmp.Compare(a.ID, b.ID)
	})

	return page(contributions, offset, limit), uint64(len(contributions)), nil
}

func sortByJoined(participants []fl.Participant) {
	slices.SortStableFunc(participants, func(a, b fl.Participant) int {
		if c := a.JoinedAt.Compare(b.JoinedAt); c != 0 {
			return c
		}

		return cmp.Compare(a.ID, b.ID)
	})
}
