package patient

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	// LastPatientID returns the patient_id with the highest numeric suffix,
	// or "" when no patient exists.
	LastPatientID(ctx context.Context) (string, error)
	ExistsIdentity(ctx context.Context, phone, name, aadhaar string) (bool, error)

	FindByPhone(ctx context.Context, phone string) ([]*Patient, error)
	FindByName(ctx context.Context, name string) ([]*Patient, error)
	// FindFirst returns the first patient matching phone exactly and/or name
	// as a substring. Empty arguments are ignored.
	FindFirst(ctx context.Context, phone, name string) (*Patient, error)

	// Update sets the given columns and stamps updated_at/updated_by.
	Update(ctx context.Context, id uuid.UUID, set map[string]interface{}, by uuid.UUID, at time.Time) (*Patient, error)
	// DeleteIfNoVisits removes the patient unless a visit references it.
	DeleteIfNoVisits(ctx context.Context, id uuid.UUID) error

	List(ctx context.Context, q Query) ([]*ListItem, int, error)
	ListAll(ctx context.Context) ([]*Patient, error)

	// Aggregates
	CountAll(ctx context.Context) (int, error)
	CountCreatedSince(ctx context.Context, since time.Time) (int, error)
	CountWithVisits(ctx context.Context) (int, error)
	BirthDates(ctx context.Context) ([]*time.Time, error)
}
