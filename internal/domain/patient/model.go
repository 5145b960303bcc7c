package patient

import (
	"time"

	"github.com/google/uuid"

	"github.com/careorbit/clinic/internal/domain/visit"
)

// DefaultClinical is stored for allergies and chronic illness when none are given.
const DefaultClinical = "None"

type Patient struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	PatientID      string     `db:"patient_id" json:"patient_id"`
	Name           string     `db:"name" json:"name"`
	ContactNumber  string     `db:"contact_number" json:"contact_number"`
	DateOfBirth    *time.Time `db:"date_of_birth" json:"date_of_birth,omitempty"`
	Gender         string     `db:"gender" json:"gender"`
	Address        string     `db:"address" json:"address"`
	Allergies      string     `db:"allergies" json:"allergies"`
	ChronicIllness string     `db:"chronic_illness" json:"chronic_illness"`
	AadhaarNumber  *string    `db:"aadhaar_number" json:"aadhaar_number,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      *time.Time `db:"updated_at" json:"updated_at,omitempty"`
	UpdatedBy      *uuid.UUID `db:"updated_by" json:"updated_by,omitempty"`

	Age    int              `db:"-" json:"age"`
	Visits []*visit.Summary `db:"-" json:"visits,omitempty"`
}

// ListItem is a patient row on the paginated list with visit activity.
type ListItem struct {
	Patient
	VisitCount    int        `db:"visit_count" json:"visit_count"`
	LastVisitDate *time.Time `db:"last_visit_date" json:"last_visit_date"`
}

// RegisterInput uses the field names of the registration form.
type RegisterInput struct {
	Name           string `json:"name"`
	Phone          string `json:"phone"`
	DOB            string `json:"dob"`
	Gender         string `json:"gender"`
	Address        string `json:"address"`
	Aadhaar        string `json:"aadhaar"`
	Allergies      string `json:"allergies"`
	ChronicIllness string `json:"chronic_illness"`
}

// UpdateInput is a partial update: nil fields are left untouched.
type UpdateInput struct {
	Name           *string `json:"name"`
	ContactNumber  *string `json:"contact_number"`
	DateOfBirth    *string `json:"date_of_birth"`
	Gender         *string `json:"gender"`
	Address        *string `json:"address"`
	Allergies      *string `json:"allergies"`
	ChronicIllness *string `json:"chronic_illness"`
	AadhaarNumber  *string `json:"aadhaar_number"`
}

// Sort fields accepted by List.
var sortFields = map[string]string{
	"created_at":     "p.created_at",
	"name":           "p.name",
	"patient_id":     "p.patient_id",
	"date_of_birth":  "p.date_of_birth",
	"contact_number": "p.contact_number",
}

type ListParams struct {
	Page    int
	PerPage int
	Search  string
	Gender  string
	Sort    string
	Desc    bool
}

// Query is the validated form of ListParams handed to the repository.
type Query struct {
	Search  string
	Gender  string
	OrderBy string
	Desc    bool
	Limit   int
	Offset  int
}

type AgeBucket struct {
	Range string `json:"range"`
	Count int    `json:"count"`
}

// Age histogram ranges, lower bound inclusive.
var ageRanges = []struct {
	label    string
	low, top int
}{
	{"0-20", 0, 20},
	{"20-40", 20, 40},
	{"40-60", 40, 60},
	{"60-80", 60, 80},
	{"80-100", 80, 100},
}

const otherAgeRange = "other"

type Stats struct {
	TotalPatients       int         `json:"total_patients"`
	RecentRegistrations int         `json:"recent_registrations"`
	PatientsWithVisits  int         `json:"patients_with_visits"`
	AgeDistribution     []AgeBucket `json:"age_distribution"`
}

// ExportHeader is the column row of the patient export.
var ExportHeader = []string{
	"Patient ID", "Name", "Phone", "Gender", "Age", "Address",
	"Allergies", "Chronic Illness", "Registration Date",
}
