package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	pkgerrors "github.com/absmach/siteguard/pkg/errors"
	"github.com/absmach/siteguard/pkg/fl"
	"github.com/absmach/siteguard/pkg/storage/postgres"
	"github.com/absmach/siteguard/pkg/storage/testutil"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var experimentCols = []string{
	"id", "name", "params", "participant_threshold", "current_round", "status", "version", "created_at", "updated_at",
}

func newMock(t *testing.T) (*postgres.Database, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	return postgres.NewFromDB(sqlx.NewDb(mockDB, "pgx")), mock
}

func experimentRow(e fl.Experiment) *sqlmock.Rows {
	return sqlmock.NewRows(experimentCols).AddRow(
		e.ID, e.Name, []byte(`{"model":"linear","aggregation":"fedavg"}`), int64(e.ParticipantThreshold),
		int64(e.CurrentRound), string(e.Status), int64(e.Version), e.CreatedAt, e.UpdatedAt,
	)
}

func TestExperimentRepository_Get(t *testing.T) {
	db, mock := newMock(t)
	repo := postgres.NewExperimentRepository(db)
	e := testutil.TestExperiment(uuid.NewString())

	cases := []struct {
		desc  string
		setup func()
		err   error
	}{
		{
			desc: "existing experiment",
			setup: func() {
				mock.ExpectQuery(`SELECT (.+) FROM experiments WHERE id = \$1`).
					WithArgs(e.ID).
					WillReturnRows(experimentRow(e))
			},
		},
		{
			desc: "missing experiment",
			setup: func() {
				mock.ExpectQuery(`SELECT (.+) FROM experiments WHERE id = \$1`).
					WithArgs(e.ID).
					WillReturnRows(sqlmock.NewRows(experimentCols))
			},
			err: pkgerrors.ErrNotFound,
		},
		{
			desc: "query failure",
			setup: func() {
				mock.ExpectQuery(`SELECT (.+) FROM experiments WHERE id = \$1`).
					WithArgs(e.ID).
					WillReturnError(errors.New("connection reset"))
			},
			err: postgres.ErrDBQuery,
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			tc.setup()
			got, err := repo.Get(context.Background(), e.ID)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, e, testutil.Normalize(got))
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestExperimentRepository_Create(t *testing.T) {
	db, mock := newMock(t)
	repo := postgres.NewExperimentRepository(db)
	e := testutil.TestExperiment(uuid.NewString())

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO experiments`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO global_models`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	require.NoError(t, repo.Create(context.Background(), e, testutil.TestGlobalModel(e.ID, 0)))

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO experiments`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO global_models`).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()
	err := repo.Create(context.Background(), e, testutil.TestGlobalModel(e.ID, 0))
	assert.ErrorIs(t, err, postgres.ErrCreate)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExperimentRepository_AdvanceRound(t *testing.T) {
	db, mock := newMock(t)
	repo := postgres.NewExperimentRepository(db)
	e := testutil.TestExperiment(uuid.NewString())
	next := testutil.TestGlobalModel(e.ID, 1)

	advanced := e
	advanced.CurrentRound = 1
	advanced.Status = fl.StatusTraining
	advanced.Version = e.Version + 1

	cases := []struct {
		desc  string
		setup func()
		err   error
	}{
		{
			desc: "version matches",
			setup: func() {
				mock.ExpectBegin()
				mock.ExpectQuery(`UPDATE experiments SET current_round`).
					WithArgs(e.ID, int64(e.Version), int64(1), string(fl.StatusTraining), sqlmock.AnyArg(), int64(0)).
					WillReturnRows(experimentRow(advanced))
				mock.ExpectExec(`INSERT INTO global_models`).
					WithArgs(e.ID, int64(1), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectCommit()
			},
		},
		{
			desc: "stale version",
			setup: func() {
				mock.ExpectBegin()
				mock.ExpectQuery(`UPDATE experiments SET current_round`).
					WillReturnRows(sqlmock.NewRows(experimentCols))
				mock.ExpectRollback()
				mock.ExpectQuery(`SELECT EXISTS`).
					WithArgs(e.ID).
					WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
			},
			err: pkgerrors.ErrConflict,
		},
		{
			desc: "missing experiment",
			setup: func() {
				mock.ExpectBegin()
				mock.ExpectQuery(`UPDATE experiments SET current_round`).
					WillReturnRows(sqlmock.NewRows(experimentCols))
				mock.ExpectRollback()
				mock.ExpectQuery(`SELECT EXISTS`).
					WithArgs(e.ID).
					WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
			},
			err: pkgerrors.ErrNotFound,
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			tc.setup()
			got, err := repo.AdvanceRound(context.Background(), e.ID, e.Version, next)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, uint64(1), got.CurrentRound)
				assert.Equal(t, fl.StatusTraining, got.Status)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}

	_, err := repo.AdvanceRound(context.Background(), e.ID, e.Version, testutil.TestGlobalModel(e.ID, 0))
	assert.ErrorIs(t, err, pkgerrors.ErrConflict)
}

func TestModelRepository_Create(t *testing.T) {
	db, mock := newMock(t)
	repo := postgres.NewModelRepository(db)
	m := testutil.TestGlobalModel(uuid.NewString(), 0)

	cases := []struct {
		desc  string
		model fl.GlobalModel
		setup func()
		err   error
	}{
		{
			desc:  "new snapshot",
			model: m,
			setup: func() {
				mock.ExpectBegin()
				mock.ExpectExec(`INSERT INTO global_models`).
					WithArgs(m.ExperimentID, int64(0), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectCommit()
			},
		},
		{
			desc:  "round already stored",
			model: m,
			setup: func() {
				mock.ExpectBegin()
				mock.ExpectExec(`INSERT INTO global_models`).WillReturnError(&pgconn.PgError{Code: "23505"})
				mock.ExpectRollback()
			},
			err: pkgerrors.ErrEntityExists,
		},
		{
			desc:  "missing experiment",
			model: m,
			setup: func() {
				mock.ExpectBegin()
				mock.ExpectExec(`INSERT INTO global_models`).WillReturnError(&pgconn.PgError{Code: "23503"})
				mock.ExpectRollback()
			},
			err: pkgerrors.ErrNotFound,
		},
		{
			desc:  "empty experiment id",
			model: testutil.TestGlobalModel("", 0),
			setup: func() {},
			err:   pkgerrors.ErrEmptyKey,
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			tc.setup()
			err := repo.Create(context.Background(), tc.model)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestParticipantRepository_Create(t *testing.T) {
	db, mock := newMock(t)
	repo := postgres.NewParticipantRepository(db)
	p := testutil.TestParticipant(uuid.NewString(), "principal-a")
	cols := []string{"id", "experiment_id", "principal_id", "joined_at"}

	cases := []struct {
		desc     string
		affected int64
		created  bool
	}{
		{desc: "first join inserts", affected: 1, created: true},
		{desc: "repeated join reads existing", affected: 0, created: false},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			mock.ExpectExec(`INSERT INTO participants (.+) ON CONFLICT`).
				WithArgs(p.ID, p.ExperimentID, p.PrincipalID, sqlmock.AnyArg()).
				WillReturnResult(sqlmock.NewResult(0, tc.affected))
			mock.ExpectQuery(`SELECT (.+) FROM participants WHERE experiment_id = \$1 AND principal_id = \$2`).
				WithArgs(p.ExperimentID, p.PrincipalID).
				WillReturnRows(sqlmock.NewRows(cols).AddRow(p.ID, p.ExperimentID, p.PrincipalID, p.JoinedAt))

			stored, created, err := repo.Create(context.Background(), p)
			require.NoError(t, err)
			assert.Equal(t, tc.created, created)
			assert.Equal(t, p, testutil.Normalize(stored))
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestContributionRepository_ListByRound(t *testing.T) {
	db, mock := newMock(t)
	repo := postgres.NewContributionRepository(db)
	p := testutil.TestParticipant(uuid.NewString(), "principal-a")
	c := testutil.TestContribution(p, 2, 10, time.Now())
	cols := []string{"id", "experiment_id", "participant_id", "principal_id", "round", "weights", "dataset_size", "created_at"}

	mock.ExpectQuery(`SELECT (.+) FROM contributions WHERE experiment_id = \$1 AND round = \$2 ORDER BY created_at, id`).
		WithArgs(p.ExperimentID, int64(2)).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(
			c.ID, c.ExperimentID, c.ParticipantID, c.PrincipalID, int64(2), []byte(`{"w":[1,2],"b":0.5}`), int64(10), c.CreatedAt,
		))

	got, err := repo.ListByRound(context.Background(), p.ExperimentID, 2)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, c, testutil.Normalize(got[0]))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLocalModelRepository_Save(t *testing.T) {
	db, mock := newMock(t)
	repo := postgres.NewLocalModelRepository(db)

	mock.ExpectExec(`INSERT INTO local_models (.+) ON CONFLICT (.+) DO UPDATE`).
		WithArgs("exp", "part", int64(3), []byte(`{"w":[1]}`), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Save(context.Background(), fl.LocalModel{
		ExperimentID:  "exp",
		ParticipantID: "part",
		Round:         3,
		Weights:       fl.Weights{"w": fl.Vector(1)},
		UpdatedAt:     time.Now(),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
