package visit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careorbit/clinic/internal/domain"
)

func newMockRepoPG(t *testing.T) (pgxmock.PgxPoolIface, Repository) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, NewRepo(mock)
}

func TestRepoPG_Create(t *testing.T) {
	mock, repo := newMockRepoPG(t)
	v := &Visit{
		ID: uuid.New(), PatientID: uuid.New(), DoctorID: uuid.New(), DepartmentID: uuid.New(),
		VisitDate: time.Now(), ReasonForVisit: "Checkup", Status: StatusAssigned, CreatedAt: time.Now(),
	}
	mock.ExpectExec("INSERT INTO visit").
		WithArgs(v.ID, v.PatientID, v.DoctorID, v.DepartmentID, v.VisitDate, v.ReasonForVisit, v.Status, v.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Create(context.Background(), v))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepoPG_GetByID_NotFound(t *testing.T) {
	mock, repo := newMockRepoPG(t)
	id := uuid.New()
	mock.ExpectQuery("SELECT .+ FROM visit WHERE id = \\$1").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"id", "status"}))

	_, err := repo.GetByID(context.Background(), id)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepoPG_GetForUpdate_Locks(t *testing.T) {
	mock, repo := newMockRepoPG(t)
	id := uuid.New()
	mock.ExpectQuery("FOR UPDATE").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"id", "status", "diagnosis"}).AddRow(id, StatusAssigned, ""))

	v, err := repo.GetForUpdate(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, v.ID)
	assert.Equal(t, StatusAssigned, v.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepoPG_ListForDoctor_ActiveFilter(t *testing.T) {
	mock, repo := newMockRepoPG(t)
	doctor := uuid.New()
	start := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 1)
	visitID := uuid.New()

	mock.ExpectQuery("status IN \\('assigned', 'in_progress'\\) ORDER BY v.visit_date ASC").
		WithArgs(doctor, start, end).
		WillReturnRows(pgxmock.NewRows([]string{"visit_id", "status", "patient_id", "patient_name"}).
			AddRow(visitID, StatusInProgress, "PT0007", "Asha Rao"))

	items, err := repo.ListForDoctor(context.Background(), doctor, start, end, true)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, visitID, items[0].VisitID)
	assert.Equal(t, "PT0007", items[0].PatientID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepoPG_ListForDoctor_StoreError(t *testing.T) {
	mock, repo := newMockRepoPG(t)
	mock.ExpectQuery("FROM visit v").WillReturnError(errors.New("connection refused"))

	items, err := repo.ListForDoctor(context.Background(), uuid.New(), time.Now(), time.Now(), false)
	assert.Nil(t, items)
	assert.ErrorIs(t, err, domain.ErrStore)
}

func TestRepoPG_TransitionStatus(t *testing.T) {
	mock, repo := newMockRepoPG(t)
	id := uuid.New()
	mock.ExpectExec("UPDATE visit SET status").
		WithArgs(id, StatusAssigned, StatusInProgress).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	ok, err := repo.TransitionStatus(context.Background(), id, StatusAssigned, StatusInProgress)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepoPG_Complete_MissingVisit(t *testing.T) {
	mock, repo := newMockRepoPG(t)
	mock.ExpectExec("status = 'completed'").WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.Complete(context.Background(), &PrescriptionRecord{VisitID: uuid.New()}, time.Now())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRepoPG_Revise_KeepsFollowUpWhenOmitted(t *testing.T) {
	mock, repo := newMockRepoPG(t)
	rx := &PrescriptionRecord{VisitID: uuid.New(), Symptoms: "Cough", Diagnosis: "Pneumonia", Medications: "Azithromycin"}
	editor := uuid.New()
	at := time.Now()
	mock.ExpectExec("follow_up_date = COALESCE\\(\\$6, follow_up_date\\)").
		WithArgs(rx.VisitID, "Cough", "Pneumonia", "Azithromycin", "", pgxmock.AnyArg(), at, editor).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, repo.Revise(context.Background(), rx, editor, at))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepoPG_UpsertPrescription(t *testing.T) {
	mock, repo := newMockRepoPG(t)
	mock.ExpectExec("ON CONFLICT \\(visit_id\\) DO UPDATE").WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := repo.UpsertPrescription(context.Background(), &PrescriptionRecord{VisitID: uuid.New()}, time.Now())
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepoPG_AppendAudit_RejectedByTrigger(t *testing.T) {
	mock, repo := newMockRepoPG(t)
	mock.ExpectExec("INSERT INTO prescription_audit").
		WillReturnError(&pgconn.PgError{Code: "P0001", Message: "prescription_audit is append-only"})

	err := repo.AppendAudit(context.Background(), &AuditEntry{ID: uuid.New(), VisitID: uuid.New()})
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestRepoPG_ListAudit_Empty(t *testing.T) {
	mock, repo := newMockRepoPG(t)
	id := uuid.New()
	mock.ExpectQuery("FROM prescription_audit a").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"id", "visit_id"}))

	entries, err := repo.ListAudit(context.Background(), id)
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}
