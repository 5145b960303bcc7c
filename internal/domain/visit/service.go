package visit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/careorbit/clinic/internal/domain"
	"github.com/careorbit/clinic/internal/platform/db"
	"github.com/careorbit/clinic/pkg/derive"
)

type Service struct {
	repo   Repository
	tx     db.TxRunner
	loc    *time.Location
	now    func() time.Time
	logger zerolog.Logger
}

// NewService builds the visit service. loc fixes the clinic's calendar day
// for worklists; nil means the server's local zone.
func NewService(repo Repository, tx db.TxRunner, loc *time.Location, logger zerolog.Logger) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{repo: repo, tx: tx, loc: loc, now: time.Now, logger: logger}
}

func (s *Service) Assign(ctx context.Context, p domain.Principal, in AssignInput) (*Visit, error) {
	if err := p.Require(domain.RoleAdmin); err != nil {
		return nil, err
	}
	switch {
	case in.PatientID == uuid.Nil:
		return nil, domain.Missing("patient_id")
	case in.DoctorID == uuid.Nil:
		return nil, domain.Missing("doctor_id")
	case in.DepartmentID == uuid.Nil:
		return nil, domain.Missing("department_id")
	}
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		reason = DefaultReason
	}

	refs, err := s.repo.References(ctx, in.PatientID, in.DoctorID, in.DepartmentID)
	if err != nil {
		return nil, err
	}
	switch {
	case !refs.PatientExists:
		return nil, fmt.Errorf("%w: patient %s", domain.ErrNotFound, in.PatientID)
	case !refs.DoctorExists:
		return nil, fmt.Errorf("%w: doctor %s", domain.ErrNotFound, in.DoctorID)
	case !refs.DepartmentExists:
		return nil, fmt.Errorf("%w: department %s", domain.ErrNotFound, in.DepartmentID)
	case refs.DoctorDepartmentID != in.DepartmentID:
		return nil, domain.Invalid("doctor_id", "doctor does not belong to the selected department")
	}

	now := s.now()
	v := &Visit{
		ID:             uuid.New(),
		PatientID:      in.PatientID,
		DoctorID:       in.DoctorID,
		DepartmentID:   in.DepartmentID,
		VisitDate:      now,
		ReasonForVisit: reason,
		Status:         StatusAssigned,
		CreatedAt:      now,
	}
	if err := s.repo.Create(ctx, v); err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("visit_id", v.ID.String()).
		Str("patient_id", v.PatientID.String()).
		Str("doctor_id", v.DoctorID.String()).
		Str("assigned_by", p.ID.String()).
		Msg("visit assigned")
	return v, nil
}

// ListForDoctorToday returns the doctor's visits dated within the current
// clinic calendar day, oldest first. Doctors may only read their own list.
func (s *Service) ListForDoctorToday(ctx context.Context, p domain.Principal, doctorID uuid.UUID, activeOnly bool) ([]*WorklistItem, error) {
	if err := p.Require(domain.RoleAdmin, domain.RoleDoctor); err != nil {
		return nil, err
	}
	if p.IsDoctor() && p.ID != doctorID {
		return nil, fmt.Errorf("%w: doctors may only view their own worklist", domain.ErrForbidden)
	}

	now := s.now().In(s.loc)
	start, end := derive.DayBounds(now)
	items, err := s.repo.ListForDoctor(ctx, doctorID, start, end, activeOnly)
	if err != nil {
		return nil, err
	}
	for _, it := range items {
		if it.DateOfBirth != nil {
			it.Age = derive.AgeAt(*it.DateOfBirth, now)
		}
	}
	return items, nil
}

// StartVisit moves an assigned visit to in_progress. Only the assigned
// doctor may start it.
func (s *Service) StartVisit(ctx context.Context, p domain.Principal, visitID uuid.UUID) (*Visit, error) {
	if err := p.Require(domain.RoleDoctor); err != nil {
		return nil, err
	}
	v, err := s.repo.GetByID(ctx, visitID)
	if err != nil {
		return nil, err
	}
	if v.DoctorID != p.ID {
		return nil, fmt.Errorf("%w: visit is assigned to another doctor", domain.ErrForbidden)
	}
	if v.Status != StatusAssigned {
		return nil, fmt.Errorf("%w: visit is %s", domain.ErrConflict, v.Status)
	}
	ok, err := s.repo.TransitionStatus(ctx, visitID, StatusAssigned, StatusInProgress)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: visit status changed concurrently", domain.ErrConflict)
	}
	v.Status = StatusInProgress
	return v, nil
}

// AttachPrescription records the first prescription on a visit and
// completes it. The visit update and the prescription record are written
// in one transaction.
func (s *Service) AttachPrescription(ctx context.Context, p domain.Principal, visitID uuid.UUID, in PrescriptionInput) (*Visit, error) {
	if err := p.Require(domain.RoleDoctor); err != nil {
		return nil, err
	}
	in = in.trimmed()
	switch {
	case in.Symptoms == "":
		return nil, domain.Missing("symptoms")
	case in.Diagnosis == "":
		return nil, domain.Missing("diagnosis")
	case in.Medications == "":
		return nil, domain.Missing("medications")
	}
	followUp, err := parseFollowUp(in.FollowUpDate)
	if err != nil {
		return nil, err
	}

	var out *Visit
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		v, err := s.repo.GetForUpdate(ctx, visitID)
		if err != nil {
			return err
		}
		now := s.now()
		rx := &PrescriptionRecord{
			VisitID:      v.ID,
			PatientID:    v.PatientID,
			DoctorID:     v.DoctorID,
			Symptoms:     in.Symptoms,
			Diagnosis:    in.Diagnosis,
			Medications:  in.Medications,
			Instructions: in.Instructions,
			FollowUpDate: followUp,
		}
		if err := s.repo.Complete(ctx, rx, now); err != nil {
			return err
		}
		if err := s.repo.UpsertPrescription(ctx, rx, now); err != nil {
			return err
		}

		v.Symptoms, v.Diagnosis, v.Medications, v.Instructions = rx.Symptoms, rx.Diagnosis, rx.Medications, rx.Instructions
		v.FollowUpDate = followUp
		v.Status = StatusCompleted
		v.PrescriptionTimestamp = &now
		out = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("visit_id", visitID.String()).Str("doctor_id", p.ID.String()).Msg("prescription attached")
	return out, nil
}

// EditPrescription replaces a visit's prescription fields and appends an
// audit entry holding the fields before and after. Text fields left out of
// in are cleared. A missing follow-up date clears it on the prescription
// record but keeps the one stored on the visit. The visit status is not
// changed.
func (s *Service) EditPrescription(ctx context.Context, p domain.Principal, visitID uuid.UUID, in PrescriptionInput) (*AuditEntry, error) {
	if err := p.Require(domain.RoleDoctor); err != nil {
		return nil, err
	}
	in = in.trimmed()
	followUp, err := parseFollowUp(in.FollowUpDate)
	if err != nil {
		return nil, err
	}

	var entry *AuditEntry
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		v, err := s.repo.GetForUpdate(ctx, visitID)
		if err != nil {
			return err
		}
		now := s.now()
		rx := &PrescriptionRecord{
			VisitID:      v.ID,
			PatientID:    v.PatientID,
			DoctorID:     p.ID,
			Symptoms:     in.Symptoms,
			Diagnosis:    in.Diagnosis,
			Medications:  in.Medications,
			Instructions: in.Instructions,
			FollowUpDate: followUp,
		}
		e := &AuditEntry{
			ID:           uuid.New(),
			VisitID:      v.ID,
			DoctorID:     p.ID,
			DoctorName:   p.Name,
			EditedAt:     now,
			OriginalData: v.Clinical(),
			NewData: ClinicalData{
				Symptoms:     rx.Symptoms,
				Diagnosis:    rx.Diagnosis,
				Medications:  rx.Medications,
				Instructions: rx.Instructions,
				FollowUpDate: formatDate(followUp),
			},
		}
		if err := s.repo.AppendAudit(ctx, e); err != nil {
			return err
		}
		if err := s.repo.Revise(ctx, rx, p.ID, now); err != nil {
			return err
		}
		if err := s.repo.UpsertPrescription(ctx, rx, now); err != nil {
			return err
		}
		entry = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("visit_id", visitID.String()).Str("doctor_id", p.ID.String()).Msg("prescription edited")
	return entry, nil
}

func (s *Service) HistoryForPatient(ctx context.Context, p domain.Principal, patientID uuid.UUID) ([]*Summary, error) {
	if err := p.Require(domain.RoleAdmin, domain.RoleDoctor); err != nil {
		return nil, err
	}
	return s.repo.ListForPatient(ctx, patientID)
}

func (s *Service) AuditTrail(ctx context.Context, p domain.Principal, visitID uuid.UUID) ([]*AuditEntry, error) {
	if err := p.Require(domain.RoleAdmin, domain.RoleDoctor); err != nil {
		return nil, err
	}
	return s.repo.ListAudit(ctx, visitID)
}

func (s *Service) GetDetails(ctx context.Context, p domain.Principal, visitID uuid.UUID) (*Details, error) {
	if err := p.Require(domain.RoleAdmin, domain.RoleDoctor); err != nil {
		return nil, err
	}
	d, err := s.repo.GetDetails(ctx, visitID)
	if err != nil {
		return nil, err
	}
	if d.PatientDOB != nil {
		d.PatientAge = derive.AgeAt(*d.PatientDOB, s.now().In(s.loc))
	}
	return d, nil
}

func (s *Service) GetPrescription(ctx context.Context, p domain.Principal, visitID uuid.UUID) (*PrescriptionRecord, error) {
	if err := p.Require(domain.RoleDoctor, domain.RoleAdmin); err != nil {
		return nil, err
	}
	return s.repo.GetPrescription(ctx, visitID)
}

func (in PrescriptionInput) trimmed() PrescriptionInput {
	return PrescriptionInput{
		Symptoms:     strings.TrimSpace(in.Symptoms),
		Diagnosis:    strings.TrimSpace(in.Diagnosis),
		Medications:  strings.TrimSpace(in.Medications),
		Instructions: strings.TrimSpace(in.Instructions),
		FollowUpDate: strings.TrimSpace(in.FollowUpDate),
	}
}

func parseFollowUp(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := derive.ParseDate(s)
	if err != nil {
		return nil, domain.Invalid("follow_up_date", "must be a YYYY-MM-DD date")
	}
	return &t, nil
}
