package seed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/careorbit/clinic/internal/domain"
	"github.com/careorbit/clinic/internal/domain/directory"
	"github.com/careorbit/clinic/internal/domain/patient"
	"github.com/careorbit/clinic/internal/domain/visit"
)

// Fakes embed the repository interfaces and override only what the seeder
// calls; anything else panics.

type fakeDirectory struct {
	directory.Repository
	departments []*directory.Department
	admins      []*directory.Admin
	doctors     []*directory.Doctor
}

func (f *fakeDirectory) CreateDepartment(_ context.Context, d *directory.Department) error {
	f.departments = append(f.departments, d)
	return nil
}

func (f *fakeDirectory) CreateAdmin(_ context.Context, a *directory.Admin) error {
	f.admins = append(f.admins, a)
	return nil
}

func (f *fakeDirectory) CreateDoctor(_ context.Context, d *directory.Doctor) error {
	f.doctors = append(f.doctors, d)
	return nil
}

type fakePatients struct {
	patient.Repository
	created []*patient.Patient
	failOn  string
}

func (f *fakePatients) Create(_ context.Context, p *patient.Patient) error {
	if p.Name == f.failOn {
		return domain.ErrDuplicate
	}
	f.created = append(f.created, p)
	return nil
}

type fakeVisits struct {
	visit.Repository
	created   []*visit.Visit
	completed []*visit.PrescriptionRecord
	records   []*visit.PrescriptionRecord
}

func (f *fakeVisits) Create(_ context.Context, v *visit.Visit) error {
	f.created = append(f.created, v)
	return nil
}

func (f *fakeVisits) Complete(_ context.Context, rx *visit.PrescriptionRecord, _ time.Time) error {
	f.completed = append(f.completed, rx)
	return nil
}

func (f *fakeVisits) UpsertPrescription(_ context.Context, rx *visit.PrescriptionRecord, _ time.Time) error {
	f.records = append(f.records, rx)
	return nil
}

type passTx struct{}

func (passTx) RunInTx(ctx context.Context, fn func(context.Context) error) error { return fn(ctx) }

type fixture struct {
	dir      *fakeDirectory
	patients *fakePatients
	visits   *fakeVisits
	seeder   *Seeder
}

func newFixture() *fixture {
	f := &fixture{dir: &fakeDirectory{}, patients: &fakePatients{}, visits: &fakeVisits{}}
	f.seeder = New(Stores{Directory: f.dir, Patients: f.patients, Visits: f.visits, Tx: passTx{}}, bcrypt.MinCost, zerolog.Nop())
	f.seeder.now = func() time.Time { return time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC) }
	return f
}

func TestRun_SeedsSampleClinic(t *testing.T) {
	f := newFixture()
	sum, err := f.seeder.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, &Summary{Departments: 10, Admins: 2, Doctors: 5, Patients: 3, Visits: 3}, sum)
	assert.Len(t, f.visits.completed, 2)
	assert.Len(t, f.visits.records, 2)
	assert.Equal(t, "PT0001", f.patients.created[0].PatientID)
	assert.Equal(t, "PT0003", f.patients.created[2].PatientID)
}

func TestRun_DoctorsPlacedInTheirDepartments(t *testing.T) {
	f := newFixture()
	_, err := f.seeder.Run(context.Background())
	require.NoError(t, err)

	byName := map[string]*directory.Department{}
	for _, d := range f.dir.departments {
		byName[d.DepartmentName] = d
	}
	for _, d := range f.dir.doctors {
		if d.Username == "dr_johnson" {
			assert.Equal(t, byName["Cardiology"].ID, d.DepartmentID)
			assert.Equal(t, "R201", d.RoomNo)
		}
	}
	for _, v := range f.visits.created {
		var doc *directory.Doctor
		for _, d := range f.dir.doctors {
			if d.ID == v.DoctorID {
				doc = d
			}
		}
		require.NotNil(t, doc, "visit references an unknown doctor")
		assert.Equal(t, doc.DepartmentID, v.DepartmentID)
	}
}

func TestRun_PasswordsAreHashed(t *testing.T) {
	f := newFixture()
	_, err := f.seeder.Run(context.Background())
	require.NoError(t, err)

	for _, a := range f.dir.admins {
		assert.NotContains(t, a.PasswordHash, "123")
	}
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(f.dir.doctors[0].PasswordHash), []byte("doctor123")))
}

func TestRun_PropagatesStoreErrors(t *testing.T) {
	f := newFixture()
	f.patients.failOn = "Jane Smith"
	sum, err := f.seeder.Run(context.Background())
	assert.Nil(t, sum)
	assert.True(t, errors.Is(err, domain.ErrDuplicate), "got %v", err)
}

func TestReset_TruncatesAllTables(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`TRUNCATE TABLE "department", "admin", "doctor", "patient", "visit", "prescription", "prescription_audit"`).
		WillReturnResult(pgxmock.NewResult("TRUNCATE", 0))

	require.NoError(t, Reset(context.Background(), mock))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCredentials(t *testing.T) {
	creds := Credentials()
	assert.Len(t, creds, 7)
	assert.Contains(t, creds[0], "admin1")
}
