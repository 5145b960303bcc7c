package legacy

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/careorbit/clinic/internal/domain"
)

type passTx struct{}

func (passTx) RunInTx(ctx context.Context, fn func(context.Context) error) error { return fn(ctx) }

func TestWriter_CopiesNonEmptyTablesInOrder(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	f := newLegacyFixture()
	f.snap.Visits = []Visit{{ID: primitive.NewObjectID(), PatientID: f.doe, DoctorID: f.smith, DepartmentID: f.ent}}
	plan, _ := Convert(f.snap, Options{PasswordHash: "h", Now: now})

	ts := tables(plan)
	for _, tb := range ts[:5] {
		mock.ExpectCopyFrom(pgx.Identifier{tb.name}, tb.columns).WillReturnResult(int64(len(tb.rows)))
	}

	w := NewWriter(passTx{}, mock, zerolog.Nop())
	require.NoError(t, w.Apply(context.Background(), plan))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWriter_DuplicateImport(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	f := newLegacyFixture()
	plan, _ := Convert(&Snapshot{Departments: f.snap.Departments}, Options{Now: now})

	mock.ExpectCopyFrom(pgx.Identifier{"department"}, tables(plan)[0].columns).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "department_pkey"})

	err = NewWriter(passTx{}, mock, zerolog.Nop()).Apply(context.Background(), plan)
	assert.True(t, errors.Is(err, domain.ErrDuplicate), "got %v", err)
}
