package directory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/careorbit/clinic/internal/domain"
	"github.com/careorbit/clinic/pkg/derive"
)

type Service struct {
	repo   Repository
	loc    *time.Location
	now    func() time.Time
	logger zerolog.Logger
}

// NewService builds the directory service. loc decides which calendar day
// counts as "today" for doctor load.
func NewService(repo Repository, loc *time.Location, logger zerolog.Logger) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{repo: repo, loc: loc, now: time.Now, logger: logger}
}

func (s *Service) ListDepartments(ctx context.Context, p domain.Principal) ([]*Department, error) {
	if err := p.Require(domain.RoleAdmin); err != nil {
		return nil, err
	}
	depts, err := s.repo.ListDepartments(ctx)
	if err != nil {
		return nil, err
	}
	if depts == nil {
		depts = []*Department{}
	}
	return depts, nil
}

// ListDoctors returns the department's active doctors annotated with how many
// assigned or in-progress visits they hold today.
func (s *Service) ListDoctors(ctx context.Context, p domain.Principal, departmentID uuid.UUID) ([]*DoctorWithLoad, error) {
	if err := p.Require(domain.RoleAdmin); err != nil {
		return nil, err
	}
	if departmentID == uuid.Nil {
		return nil, domain.Missing("department_id")
	}
	if _, err := s.repo.GetDepartment(ctx, departmentID); err != nil {
		return nil, err
	}
	start, end := derive.DayBounds(s.now().In(s.loc))
	docs, err := s.repo.ListDoctors(ctx, departmentID, start, end)
	if err != nil {
		return nil, err
	}
	for _, d := range docs {
		d.Load = derive.LoadBucket(d.CurrentLoad)
	}
	if docs == nil {
		docs = []*DoctorWithLoad{}
	}
	return docs, nil
}

// GetDoctor is open to admins and to the doctor themself.
func (s *Service) GetDoctor(ctx context.Context, p domain.Principal, id uuid.UUID) (*DoctorProfile, error) {
	if err := p.Require(domain.RoleAdmin, domain.RoleDoctor); err != nil {
		return nil, err
	}
	if p.IsDoctor() && p.ID != id {
		return nil, fmt.Errorf("%w: doctors may only view their own profile", domain.ErrForbidden)
	}
	return s.repo.GetDoctor(ctx, id)
}
