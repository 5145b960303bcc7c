// Package seed loads the sample clinic: departments, admin and doctor
// accounts, a few patients and their visits. It backs the seed command and
// the integration tests.
package seed

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/careorbit/clinic/internal/domain/directory"
	"github.com/careorbit/clinic/internal/domain/patient"
	"github.com/careorbit/clinic/internal/domain/visit"
	"github.com/careorbit/clinic/internal/platform/db"
	"github.com/careorbit/clinic/pkg/derive"
)

type department struct {
	name, description string
}

var departments = []department{
	{"ENT", "Ear, Nose & Throat"},
	{"Cardiology", "Heart & Cardiovascular"},
	{"Dentist", "Dental Care"},
	{"Dermatology", "Skin Care"},
	{"General", "General Medicine"},
	{"OPD", "Outpatient Department"},
	{"Gynecology", "Women's Health"},
	{"Pediatrics", "Child Care"},
	{"Orthopedics", "Bone & Joint Care"},
	{"Neurology", "Brain & Nervous System"},
}

type account struct {
	username, password, name, email string
}

var admins = []account{
	{"admin1", "admin123", "System Administrator", "admin1@careorbit.com"},
	{"reception", "reception123", "Reception Desk", "reception@careorbit.com"},
}

type doctor struct {
	account
	department, specialization, room, phone string
}

var doctors = []doctor{
	{account{"dr_smith", "doctor123", "Dr. John Smith", "dr.smith@careorbit.com"}, "ENT", "ENT Specialist", "R101", "+91-9876543210"},
	{account{"dr_johnson", "doctor123", "Dr. Sarah Johnson", "dr.johnson@careorbit.com"}, "Cardiology", "Cardiologist", "R201", "+91-9876543211"},
	{account{"dr_brown", "doctor123", "Dr. Michael Brown", "dr.brown@careorbit.com"}, "Dentist", "Dental Surgeon", "R301", "+91-9876543212"},
	{account{"dr_davis", "doctor123", "Dr. Emily Davis", "dr.davis@careorbit.com"}, "Dermatology", "Dermatologist", "R401", "+91-9876543213"},
	{account{"dr_wilson", "doctor123", "Dr. Robert Wilson", "dr.wilson@careorbit.com"}, "General", "General Physician", "R501", "+91-9876543214"},
}

type samplePatient struct {
	name, phone, aadhaar, dob, gender, address, allergies, chronic string

	registeredDaysAgo int
}

var patients = []samplePatient{
	{"John Doe", "9876543210", "1234-5678-9012", "1985-05-15", "Male", "123 Main Street, City, State - 123456", "None", "None", 30},
	{"Jane Smith", "9876543211", "2345-6789-0123", "1990-08-22", "Female", "456 Oak Avenue, City, State - 123457", "Penicillin", "Hypertension", 25},
	{"Robert Johnson", "9876543212", "3456-7890-1234", "1975-12-10", "Male", "789 Pine Road, City, State - 123458", "Dust", "Diabetes", 20},
}

type sampleVisit struct {
	patient    int
	doctor     string
	daysAgo    int
	reason     string
	rx         *visit.ClinicalData
	followUpIn int
}

var visits = []sampleVisit{
	{0, "dr_smith", 5, "Ear infection", &visit.ClinicalData{
		Symptoms:     "Ear pain, hearing difficulty",
		Diagnosis:    "Acute Otitis Media",
		Medications:  "Amoxicillin 500mg - 1 tablet twice daily for 7 days",
		Instructions: "Keep ear dry, complete the course of antibiotics",
	}, 7},
	{1, "dr_johnson", 3, "Chest pain", &visit.ClinicalData{
		Symptoms:     "Chest discomfort, shortness of breath",
		Diagnosis:    "Angina - Stable",
		Medications:  "Aspirin 75mg - 1 tablet daily\nAtenolol 25mg - 1 tablet daily",
		Instructions: "Avoid strenuous activities, follow up in 2 weeks",
	}, 14},
	{2, "dr_wilson", 1, "Diabetes follow-up", nil, 0},
}

// Stores are the repositories the seeder writes through.
type Stores struct {
	Directory directory.Repository
	Patients  patient.Repository
	Visits    visit.Repository
	Tx        db.TxRunner
}

// Summary counts what Run created.
type Summary struct {
	Departments int
	Admins      int
	Doctors     int
	Patients    int
	Visits      int
}

type Seeder struct {
	stores Stores
	cost   int
	now    func() time.Time
	logger zerolog.Logger
}

// New returns a seeder hashing passwords at bcrypt cost; zero means
// bcrypt.DefaultCost.
func New(stores Stores, cost int, logger zerolog.Logger) *Seeder {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &Seeder{stores: stores, cost: cost, now: time.Now, logger: logger}
}

// Run inserts the sample clinic in one transaction. It fails with a
// duplicate error if the clinic was already seeded.
func (s *Seeder) Run(ctx context.Context) (*Summary, error) {
	sum := &Summary{}
	err := s.stores.Tx.RunInTx(ctx, func(ctx context.Context) error {
		*sum = Summary{}
		now := s.now()

		deptIDs := make(map[string]uuid.UUID, len(departments))
		for _, d := range departments {
			id := uuid.New()
			if err := s.stores.Directory.CreateDepartment(ctx, &directory.Department{
				ID: id, DepartmentName: d.name, Description: d.description, CreatedAt: now,
			}); err != nil {
				return err
			}
			deptIDs[d.name] = id
			sum.Departments++
		}

		for _, a := range admins {
			hash, err := s.hash(a.password)
			if err != nil {
				return err
			}
			if err := s.stores.Directory.CreateAdmin(ctx, &directory.Admin{
				ID: uuid.New(), Username: a.username, PasswordHash: hash, Name: a.name,
				Email: a.email, Active: true, CreatedAt: now,
			}); err != nil {
				return err
			}
			sum.Admins++
		}

		type placed struct{ id, dept uuid.UUID }
		docIDs := make(map[string]placed, len(doctors))
		for _, d := range doctors {
			hash, err := s.hash(d.password)
			if err != nil {
				return err
			}
			doc := &directory.Doctor{
				ID: uuid.New(), Username: d.username, PasswordHash: hash, Name: d.name,
				DepartmentID: deptIDs[d.department], Specialization: d.specialization,
				RoomNo: d.room, Email: d.email, Phone: d.phone, Active: true, CreatedAt: now,
			}
			if err := s.stores.Directory.CreateDoctor(ctx, doc); err != nil {
				return err
			}
			docIDs[d.username] = placed{doc.ID, doc.DepartmentID}
			sum.Doctors++
		}

		patientIDs := make([]uuid.UUID, len(patients))
		for i, sp := range patients {
			dob, err := derive.ParseDate(sp.dob)
			if err != nil {
				return fmt.Errorf("sample patient %q: %w", sp.name, err)
			}
			aadhaar := sp.aadhaar
			p := &patient.Patient{
				ID: uuid.New(), PatientID: derive.FormatPatientID(i + 1), Name: sp.name,
				ContactNumber: sp.phone, DateOfBirth: &dob, Gender: sp.gender, Address: sp.address,
				Allergies: sp.allergies, ChronicIllness: sp.chronic, AadhaarNumber: &aadhaar,
				CreatedAt: now.AddDate(0, 0, -sp.registeredDaysAgo),
			}
			if err := s.stores.Patients.Create(ctx, p); err != nil {
				return err
			}
			patientIDs[i] = p.ID
			sum.Patients++
		}

		for _, sv := range visits {
			doc := docIDs[sv.doctor]
			at := now.AddDate(0, 0, -sv.daysAgo)
			v := &visit.Visit{
				ID: uuid.New(), PatientID: patientIDs[sv.patient], DoctorID: doc.id, DepartmentID: doc.dept,
				VisitDate: at, ReasonForVisit: sv.reason, Status: visit.StatusAssigned, CreatedAt: at,
			}
			if err := s.stores.Visits.Create(ctx, v); err != nil {
				return err
			}
			if sv.rx != nil {
				if err := s.prescribe(ctx, v, *sv.rx, sv.followUpIn, at); err != nil {
					return err
				}
			}
			sum.Visits++
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("seed clinic: %w", err)
	}
	s.logger.Info().
		Int("departments", sum.Departments).
		Int("admins", sum.Admins).
		Int("doctors", sum.Doctors).
		Int("patients", sum.Patients).
		Int("visits", sum.Visits).
		Msg("sample clinic seeded")
	return sum, nil
}

func (s *Seeder) prescribe(ctx context.Context, v *visit.Visit, c visit.ClinicalData, followUpIn int, at time.Time) error {
	follow := at.AddDate(0, 0, followUpIn)
	y, m, d := follow.Date()
	follow = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	rx := &visit.PrescriptionRecord{
		VisitID: v.ID, PatientID: v.PatientID, DoctorID: v.DoctorID,
		Symptoms: c.Symptoms, Diagnosis: c.Diagnosis, Medications: c.Medications,
		Instructions: c.Instructions, FollowUpDate: &follow, CreatedAt: at,
	}
	if err := s.stores.Visits.Complete(ctx, rx, at); err != nil {
		return err
	}
	return s.stores.Visits.UpsertPrescription(ctx, rx, at)
}

func (s *Seeder) hash(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

// Reset empties every clinic table.
func Reset(ctx context.Context, q db.Querier) error {
	names := make([]string, len(db.Tables))
	for i, t := range db.Tables {
		names[i] = pgx.Identifier{t}.Sanitize()
	}
	if _, err := q.Exec(ctx, "TRUNCATE TABLE "+strings.Join(names, ", ")); err != nil {
		return db.MapError(fmt.Errorf("reset clinic tables: %w", err))
	}
	return nil
}

// Credentials lists the seeded logins for the seed command's output.
func Credentials() []string {
	out := make([]string, 0, len(admins)+len(doctors))
	for _, a := range admins {
		out = append(out, fmt.Sprintf("admin  %-10s %s", a.username, a.password))
	}
	for _, d := range doctors {
		out = append(out, fmt.Sprintf("doctor %-10s %s (%s)", d.username, d.password, d.department))
	}
	return out
}
