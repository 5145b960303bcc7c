package directory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/careorbit/clinic/internal/domain"
)

type Repository interface {
	ListDepartments(ctx context.Context) ([]*Department, error)
	GetDepartment(ctx context.Context, id uuid.UUID) (*Department, error)
	CreateDepartment(ctx context.Context, d *Department) error

	// ListDoctors returns the department's active doctors with their count
	// of assigned or in_progress visits dated in [start, end).
	ListDoctors(ctx context.Context, departmentID uuid.UUID, start, end time.Time) ([]*DoctorWithLoad, error)
	GetDoctor(ctx context.Context, id uuid.UUID) (*DoctorProfile, error)
	CreateDoctor(ctx context.Context, d *Doctor) error

	GetAdmin(ctx context.Context, id uuid.UUID) (*Admin, error)
	CreateAdmin(ctx context.Context, a *Admin) error

	// Credentials returns the login row for username in the role's table.
	Credentials(ctx context.Context, role domain.Role, username string) (*Credentials, error)
	TouchLastLogin(ctx context.Context, role domain.Role, id uuid.UUID, at time.Time) error
}
