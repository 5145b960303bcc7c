package legacy

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/careorbit/clinic/internal/domain/directory"
	"github.com/careorbit/clinic/internal/domain/patient"
	"github.com/careorbit/clinic/internal/domain/visit"
	"github.com/careorbit/clinic/pkg/derive"
)

// namespace for ids derived from ObjectIDs. Fixed so repeated imports of the
// same source produce the same rows.
var namespace = uuid.MustParse("6f1c6a3e-4f0b-5d8e-9a4d-2c7b0e5d1a90")

// IDFor derives the row id for a legacy document.
func IDFor(collection string, oid primitive.ObjectID) uuid.UUID {
	return uuid.NewSHA1(namespace, []byte(collection+":"+oid.Hex()))
}

// Plan is the converted data, ready to write.
type Plan struct {
	Departments   []*directory.Department
	Admins        []*directory.Admin
	Doctors       []*directory.Doctor
	Patients      []*patient.Patient
	Visits        []*visit.Visit
	Prescriptions []*visit.PrescriptionRecord
	Audit         []*visit.AuditEntry
}

// Skip is one legacy document left behind and why.
type Skip struct {
	Collection string `json:"collection"`
	ID         string `json:"id"`
	Reason     string `json:"reason"`
}

type Report struct {
	Imported map[string]int `json:"imported"`
	Skipped  []Skip         `json:"skipped"`
}

func (r *Report) skip(coll string, oid primitive.ObjectID, format string, args ...interface{}) {
	r.Skipped = append(r.Skipped, Skip{Collection: coll, ID: oid.Hex(), Reason: fmt.Sprintf(format, args...)})
}

// Options control conversion.
type Options struct {
	// PasswordHash replaces every account's password. Legacy hashes use a
	// scheme login cannot verify, so imported staff sign in with a temporary
	// password and are expected to change it.
	PasswordHash string
	// Now stamps rows that carry no creation time.
	Now time.Time
}

type converter struct {
	opts   Options
	plan   *Plan
	report *Report

	departments map[primitive.ObjectID]uuid.UUID
	doctors     map[primitive.ObjectID]*directory.Doctor
	patients    map[primitive.ObjectID]*patient.Patient
	visits      map[primitive.ObjectID]*visit.Visit
}

// Convert normalizes a snapshot. Documents that would violate a store
// invariant are skipped and listed in the report rather than failing the run.
func Convert(s *Snapshot, opts Options) (*Plan, *Report) {
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	c := &converter{
		opts:        opts,
		plan:        &Plan{},
		report:      &Report{Imported: map[string]int{}, Skipped: []Skip{}},
		departments: map[primitive.ObjectID]uuid.UUID{},
		doctors:     map[primitive.ObjectID]*directory.Doctor{},
		patients:    map[primitive.ObjectID]*patient.Patient{},
		visits:      map[primitive.ObjectID]*visit.Visit{},
	}
	c.convertDepartments(s.Departments)
	c.convertAdmins(s.Admins)
	c.convertDoctors(s.Doctors)
	c.convertPatients(s.Patients)
	c.convertVisits(s.Visits)
	c.convertPrescriptions(s.Prescriptions)
	c.convertAudit(s.Audit)

	r := c.report
	r.Imported[CollDepartment] = len(c.plan.Departments)
	r.Imported[CollAdmin] = len(c.plan.Admins)
	r.Imported[CollDoctor] = len(c.plan.Doctors)
	r.Imported[CollPatient] = len(c.plan.Patients)
	r.Imported[CollVisit] = len(c.plan.Visits)
	r.Imported[CollPrescription] = len(c.plan.Prescriptions)
	r.Imported[CollAudit] = len(c.plan.Audit)
	return c.plan, r
}

func (c *converter) stamp(t *time.Time) time.Time {
	if t == nil || t.IsZero() {
		return c.opts.Now
	}
	return *t
}

func active(b *bool) bool {
	return b == nil || *b
}

func (c *converter) convertDepartments(docs []Department) {
	seen := map[string]bool{}
	for _, d := range docs {
		name := strings.TrimSpace(d.DepartmentName)
		if name == "" {
			name = strings.TrimSpace(d.Name)
		}
		switch {
		case name == "":
			c.report.skip(CollDepartment, d.ID, "no department name")
			continue
		case seen[name]:
			c.report.skip(CollDepartment, d.ID, "duplicate department name %q", name)
			continue
		}
		seen[name] = true
		id := IDFor(CollDepartment, d.ID)
		c.departments[d.ID] = id
		c.plan.Departments = append(c.plan.Departments, &directory.Department{
			ID: id, DepartmentName: name, Description: d.Description, CreatedAt: c.stamp(d.CreatedAt),
		})
	}
}

func (c *converter) convertAdmins(docs []Admin) {
	seen := map[string]bool{}
	for _, a := range docs {
		username := strings.TrimSpace(a.Username)
		if username == "" || seen[username] {
			c.report.skip(CollAdmin, a.ID, "missing or duplicate username %q", username)
			continue
		}
		seen[username] = true
		name := strings.TrimSpace(a.Name)
		if name == "" {
			name = username
		}
		c.plan.Admins = append(c.plan.Admins, &directory.Admin{
			ID: IDFor(CollAdmin, a.ID), Username: username, PasswordHash: c.opts.PasswordHash,
			Name: name, Email: a.ContactInfo, Active: active(a.IsActive), LastLogin: a.LastLogin,
			CreatedAt: c.stamp(a.CreatedAt),
		})
	}
}

func (c *converter) convertDoctors(docs []Doctor) {
	seen := map[string]bool{}
	for _, d := range docs {
		username := strings.TrimSpace(d.Username)
		if username == "" || seen[username] {
			c.report.skip(CollDoctor, d.ID, "missing or duplicate username %q", username)
			continue
		}
		dept, ok := c.departments[d.DepartmentID]
		if !ok {
			c.report.skip(CollDoctor, d.ID, "department %s not found", d.DepartmentID.Hex())
			continue
		}
		seen[username] = true
		doc := &directory.Doctor{
			ID: IDFor(CollDoctor, d.ID), Username: username, PasswordHash: c.opts.PasswordHash,
			Name: strings.TrimSpace(d.Name), DepartmentID: dept, Specialization: d.Specialization,
			RoomNo: d.RoomNo, Email: d.Email, Phone: d.ContactNumber, Active: active(d.IsActive),
			LastLogin: d.LastLogin, CreatedAt: c.stamp(d.CreatedAt),
		}
		c.doctors[d.ID] = doc
		c.plan.Doctors = append(c.plan.Doctors, doc)
	}
}

func orNone(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return patient.DefaultClinical
	}
	return s
}

func (c *converter) convertPatients(docs []Patient) {
	codes := map[string]bool{}
	identities := map[string]bool{}
	for _, d := range docs {
		code := strings.TrimSpace(d.PatientID)
		name := strings.TrimSpace(d.Name)
		phone := strings.TrimSpace(d.ContactNumber)
		switch {
		case derive.PatientIDSeq(code) < 0:
			c.report.skip(CollPatient, d.ID, "malformed patient id %q", code)
			continue
		case codes[code]:
			c.report.skip(CollPatient, d.ID, "duplicate patient id %q", code)
			continue
		case name == "" || phone == "":
			c.report.skip(CollPatient, d.ID, "missing name or contact number")
			continue
		}
		var aadhaar *string
		if a := strings.TrimSpace(d.AadhaarNumber); a != "" {
			key := phone + "\x00" + name + "\x00" + a
			if identities[key] {
				c.report.skip(CollPatient, d.ID, "duplicate identity for %s", code)
				continue
			}
			identities[key] = true
			aadhaar = &a
		}
		codes[code] = true

		chronic := d.ChronicIllness
		if strings.TrimSpace(chronic) == "" {
			chronic = d.ChronicConditions
		}
		var dob *time.Time
		if d.DateOfBirth != nil && !d.DateOfBirth.IsZero() {
			y, m, day := d.DateOfBirth.Date()
			t := time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
			dob = &t
		}
		p := &patient.Patient{
			ID: IDFor(CollPatient, d.ID), PatientID: code, Name: name, ContactNumber: phone,
			DateOfBirth: dob, Gender: strings.TrimSpace(d.Gender), Address: d.Address,
			Allergies: orNone(d.Allergies), ChronicIllness: orNone(chronic), AadhaarNumber: aadhaar,
			CreatedAt: c.stamp(d.CreatedAt), UpdatedAt: d.UpdatedAt,
		}
		c.patients[d.ID] = p
		c.plan.Patients = append(c.plan.Patients, p)
	}
}

func normalizeStatus(s string) (visit.Status, bool) {
	st := visit.Status(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	switch st {
	case visit.StatusAssigned, visit.StatusInProgress, visit.StatusCompleted:
		return st, true
	case "":
		return visit.StatusAssigned, true
	}
	return "", false
}

func dateOnly(t *time.Time) *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	y, m, d := t.Date()
	out := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &out
}

func (c *converter) convertVisits(docs []Visit) {
	for _, d := range docs {
		pt, ok := c.patients[d.PatientID]
		if !ok {
			c.report.skip(CollVisit, d.ID, "patient %s not imported", d.PatientID.Hex())
			continue
		}
		doc, ok := c.doctors[d.DoctorID]
		if !ok {
			c.report.skip(CollVisit, d.ID, "doctor %s not imported", d.DoctorID.Hex())
			continue
		}
		dept, ok := c.departments[d.DepartmentID]
		if !ok {
			c.report.skip(CollVisit, d.ID, "department %s not imported", d.DepartmentID.Hex())
			continue
		}
		if doc.DepartmentID != dept {
			c.report.skip(CollVisit, d.ID, "doctor %s is not in the visit's department", doc.Username)
			continue
		}
		status, ok := normalizeStatus(d.Status)
		if !ok {
			c.report.skip(CollVisit, d.ID, "unknown status %q", d.Status)
			continue
		}

		date := d.VisitDate
		if date == nil || date.IsZero() {
			date = d.VisitDateTime
		}
		reason := strings.TrimSpace(d.ReasonForVisit)
		if reason == "" {
			reason = visit.DefaultReason
		}
		v := &visit.Visit{
			ID: IDFor(CollVisit, d.ID), PatientID: pt.ID, DoctorID: doc.ID, DepartmentID: dept,
			VisitDate: c.stamp(date), ReasonForVisit: reason, Status: status,
			Symptoms: d.Symptoms, Diagnosis: d.Diagnosis, Medications: d.Medications,
			Instructions: d.Instructions, FollowUpDate: dateOnly(d.FollowUpDate),
			PrescriptionTimestamp: d.PrescriptionTimestamp, LastModified: d.LastModified,
			CreatedAt: c.stamp(d.CreatedAt),
		}
		if d.ModifiedBy != nil {
			if editor, ok := c.doctors[*d.ModifiedBy]; ok {
				v.ModifiedBy = &editor.ID
			}
		}
		c.visits[d.ID] = v
		c.plan.Visits = append(c.plan.Visits, v)
	}
}

func (c *converter) convertPrescriptions(docs []Prescription) {
	seen := map[primitive.ObjectID]int{}
	for _, d := range docs {
		v, ok := c.visits[d.VisitID]
		if !ok {
			c.report.skip(CollPrescription, d.ID, "visit %s not imported", d.VisitID.Hex())
			continue
		}
		rx := &visit.PrescriptionRecord{
			VisitID: v.ID, PatientID: v.PatientID, DoctorID: v.DoctorID,
			Symptoms: d.Symptoms, Diagnosis: d.Diagnosis, Medications: d.Medications,
			Instructions: d.Instructions, FollowUpDate: dateOnly(d.FollowUpDate),
			CreatedAt: c.stamp(d.CreatedAt), UpdatedAt: d.UpdatedAt,
		}
		// One record per visit; a later legacy record replaces an earlier one.
		if i, dup := seen[d.VisitID]; dup {
			c.plan.Prescriptions[i] = rx
			continue
		}
		seen[d.VisitID] = len(c.plan.Prescriptions)
		c.plan.Prescriptions = append(c.plan.Prescriptions, rx)
	}
}

func clinicalData(l Clinical) visit.ClinicalData {
	out := visit.ClinicalData{
		Symptoms: l.Symptoms, Diagnosis: l.Diagnosis, Medications: l.Medications, Instructions: l.Instructions,
	}
	if f := dateOnly(l.FollowUpDate); f != nil {
		s := f.Format(derive.DateLayout)
		out.FollowUpDate = &s
	}
	return out
}

func (c *converter) convertAudit(docs []AuditRecord) {
	for _, d := range docs {
		v, ok := c.visits[d.VisitID]
		if !ok {
			c.report.skip(CollAudit, d.ID, "visit %s not imported", d.VisitID.Hex())
			continue
		}
		editor := v.DoctorID
		if doc, ok := c.doctors[d.DoctorID]; ok {
			editor = doc.ID
		}
		c.plan.Audit = append(c.plan.Audit, &visit.AuditEntry{
			ID: IDFor(CollAudit, d.ID), VisitID: v.ID, DoctorID: editor, EditedAt: c.stamp(d.EditedAt),
			OriginalData: clinicalData(d.OriginalData), NewData: clinicalData(d.NewData),
		})
	}
}
