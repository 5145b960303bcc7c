package visit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, v *Visit) error
	GetByID(ctx context.Context, id uuid.UUID) (*Visit, error)
	// GetForUpdate locks the visit row for the surrounding transaction.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Visit, error)
	GetDetails(ctx context.Context, id uuid.UUID) (*Details, error)
	References(ctx context.Context, patientID, doctorID, departmentID uuid.UUID) (Refs, error)

	// ListForDoctor returns the doctor's visits with start <= visit_date < end, oldest first.
	ListForDoctor(ctx context.Context, doctorID uuid.UUID, start, end time.Time, activeOnly bool) ([]*WorklistItem, error)
	ListForPatient(ctx context.Context, patientID uuid.UUID) ([]*Summary, error)

	// TransitionStatus moves the visit from one status to another and reports
	// whether the visit was in the expected status.
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to Status) (bool, error)

	// Prescriptions
	Complete(ctx context.Context, rx *PrescriptionRecord, at time.Time) error
	Revise(ctx context.Context, rx *PrescriptionRecord, editor uuid.UUID, at time.Time) error
	UpsertPrescription(ctx context.Context, rx *PrescriptionRecord, at time.Time) error
	GetPrescription(ctx context.Context, visitID uuid.UUID) (*PrescriptionRecord, error)

	// Audit log
	AppendAudit(ctx context.Context, e *AuditEntry) error
	ListAudit(ctx context.Context, visitID uuid.UUID) ([]*AuditEntry, error)
}
