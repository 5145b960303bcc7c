package db

// Constraint names declared in the schema migration. Repositories match on
// them to tell the two patient uniqueness rules apart.
const (
	PatientIDKey       = "patient_patient_id_key"
	PatientIdentityKey = "patient_identity_key"
	DoctorUsernameKey  = "doctor_username_key"
	AdminUsernameKey   = "admin_username_key"
	DepartmentNameKey  = "department_name_key"
)

// Tables lists the clinic tables in dependency order.
var Tables = []string{
	"department",
	"admin",
	"doctor",
	"patient",
	"visit",
	"prescription",
	"prescription_audit",
}
