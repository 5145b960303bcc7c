package patient

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/careorbit/clinic/internal/domain"
	"github.com/careorbit/clinic/internal/domain/visit"
	"github.com/careorbit/clinic/internal/platform/db"
	"github.com/careorbit/clinic/internal/platform/reporting"
	"github.com/careorbit/clinic/pkg/derive"
	"github.com/careorbit/clinic/pkg/pagination"
)

// registerAttempts bounds retries when a concurrent registration takes the
// patient_id this one computed.
const registerAttempts = 3

// HistorySource supplies a patient's visit history. *visit.Service satisfies it.
type HistorySource interface {
	HistoryForPatient(ctx context.Context, p domain.Principal, patientID uuid.UUID) ([]*visit.Summary, error)
}

type Service struct {
	repo    Repository
	history HistorySource
	loc     *time.Location
	now     func() time.Time
	logger  zerolog.Logger
}

func NewService(repo Repository, history HistorySource, loc *time.Location, logger zerolog.Logger) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{repo: repo, history: history, loc: loc, now: time.Now, logger: logger}
}

func (s *Service) today() time.Time {
	return s.now().In(s.loc)
}

func (s *Service) withAge(patients ...*Patient) {
	today := s.today()
	for _, p := range patients {
		if p.DateOfBirth != nil {
			p.Age = derive.AgeAt(*p.DateOfBirth, today)
		}
	}
}

func (s *Service) Register(ctx context.Context, p domain.Principal, in RegisterInput) (*Patient, error) {
	if err := p.Require(domain.RoleAdmin); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	phone := strings.TrimSpace(in.Phone)
	gender := strings.TrimSpace(in.Gender)
	address := strings.TrimSpace(in.Address)
	switch {
	case name == "":
		return nil, domain.Missing("name")
	case phone == "":
		return nil, domain.Missing("phone")
	case strings.TrimSpace(in.DOB) == "":
		return nil, domain.Missing("dob")
	case gender == "":
		return nil, domain.Missing("gender")
	case address == "":
		return nil, domain.Missing("address")
	}
	dob, err := derive.ParseDate(in.DOB)
	if err != nil {
		return nil, domain.Invalid("dob", "must be a YYYY-MM-DD date")
	}

	pt := &Patient{
		ID:             uuid.New(),
		Name:           name,
		ContactNumber:  phone,
		DateOfBirth:    &dob,
		Gender:         gender,
		Address:        address,
		Allergies:      orNone(in.Allergies),
		ChronicIllness: orNone(in.ChronicIllness),
		AadhaarNumber:  optional(in.Aadhaar),
		CreatedAt:      s.now(),
	}
	if pt.AadhaarNumber != nil {
		taken, err := s.repo.ExistsIdentity(ctx, phone, name, *pt.AadhaarNumber)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, fmt.Errorf("%w: a patient with this phone, name and aadhaar number is already registered", domain.ErrDuplicate)
		}
	}

	for attempt := 1; ; attempt++ {
		last, err := s.repo.LastPatientID(ctx)
		if err != nil {
			return nil, err
		}
		if pt.PatientID, err = derive.NextPatientID(last); err != nil {
			return nil, fmt.Errorf("%w: cannot derive next patient id from %q: %w", domain.ErrConflict, last, err)
		}
		err = s.repo.Create(ctx, pt)
		if err == nil {
			break
		}
		if !db.UniqueViolation(err, db.PatientIDKey) || attempt == registerAttempts {
			return nil, err
		}
		s.logger.Warn().Str("patient_id", pt.PatientID).Int("attempt", attempt).Msg("patient id taken, retrying")
	}

	s.withAge(pt)
	pt.Visits = []*visit.Summary{}
	s.logger.Info().
		Str("patient_id", pt.PatientID).
		Str("registered_by", p.ID.String()).
		Msg("patient registered")
	return pt, nil
}

func (s *Service) FindByPhone(ctx context.Context, p domain.Principal, phone string, withHistory bool) ([]*Patient, error) {
	if err := p.Require(domain.RoleAdmin); err != nil {
		return nil, err
	}
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return nil, domain.Missing("phone")
	}
	patients, err := s.repo.FindByPhone(ctx, phone)
	if err != nil {
		return nil, err
	}
	return s.hydrate(ctx, p, patients, withHistory)
}

func (s *Service) FindByName(ctx context.Context, p domain.Principal, name string, withHistory bool) ([]*Patient, error) {
	if err := p.Require(domain.RoleAdmin); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.Missing("name")
	}
	patients, err := s.repo.FindByName(ctx, name)
	if err != nil {
		return nil, err
	}
	return s.hydrate(ctx, p, patients, withHistory)
}

func (s *Service) FindByID(ctx context.Context, p domain.Principal, id uuid.UUID, withHistory bool) (*Patient, error) {
	if err := p.Require(domain.RoleAdmin, domain.RoleDoctor); err != nil {
		return nil, err
	}
	pt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.hydrate(ctx, p, []*Patient{pt}, withHistory); err != nil {
		return nil, err
	}
	return pt, nil
}

// Lookup returns the first patient matching an exact phone and/or a name
// substring, with visit history attached.
func (s *Service) Lookup(ctx context.Context, p domain.Principal, phone, name string) (*Patient, error) {
	if err := p.Require(domain.RoleAdmin); err != nil {
		return nil, err
	}
	phone, name = strings.TrimSpace(phone), strings.TrimSpace(name)
	if phone == "" && name == "" {
		return nil, domain.Invalid("search", "provide a phone number or a name")
	}
	pt, err := s.repo.FindFirst(ctx, phone, name)
	if err != nil {
		return nil, err
	}
	if _, err := s.hydrate(ctx, p, []*Patient{pt}, true); err != nil {
		return nil, err
	}
	return pt, nil
}

func (s *Service) hydrate(ctx context.Context, p domain.Principal, patients []*Patient, withHistory bool) ([]*Patient, error) {
	s.withAge(patients...)
	if !withHistory {
		return patients, nil
	}
	for _, pt := range patients {
		history, err := s.history.HistoryForPatient(ctx, p, pt.ID)
		if err != nil {
			return nil, fmt.Errorf("history for patient %s: %w", pt.PatientID, err)
		}
		pt.Visits = history
	}
	return patients, nil
}

// Update applies the provided fields only. Required fields may be changed
// but not blanked; clearing the aadhaar number is allowed.
func (s *Service) Update(ctx context.Context, p domain.Principal, id uuid.UUID, in UpdateInput) (*Patient, error) {
	if err := p.Require(domain.RoleAdmin); err != nil {
		return nil, err
	}
	set := make(map[string]interface{})
	required := []struct {
		field, column string
		value         *string
	}{
		{"name", "name", in.Name},
		{"contact_number", "contact_number", in.ContactNumber},
		{"gender", "gender", in.Gender},
		{"address", "address", in.Address},
	}
	for _, f := range required {
		if f.value == nil {
			continue
		}
		v := strings.TrimSpace(*f.value)
		if v == "" {
			return nil, domain.Invalid(f.field, "cannot be blank")
		}
		set[f.column] = v
	}
	if in.DateOfBirth != nil {
		dob, err := derive.ParseDate(*in.DateOfBirth)
		if err != nil {
			return nil, domain.Invalid("date_of_birth", "must be a YYYY-MM-DD date")
		}
		set["date_of_birth"] = dob
	}
	if in.Allergies != nil {
		set["allergies"] = orNone(*in.Allergies)
	}
	if in.ChronicIllness != nil {
		set["chronic_illness"] = orNone(*in.ChronicIllness)
	}
	if in.AadhaarNumber != nil {
		set["aadhaar_number"] = optional(*in.AadhaarNumber)
	}
	if len(set) == 0 {
		return nil, domain.Invalid("body", "no fields to update")
	}

	pt, err := s.repo.Update(ctx, id, set, p.ID, s.now())
	if err != nil {
		return nil, err
	}
	s.withAge(pt)
	s.logger.Info().
		Str("patient_id", pt.PatientID).
		Str("updated_by", p.ID.String()).
		Int("fields", len(set)).
		Msg("patient updated")
	return pt, nil
}

func (s *Service) Delete(ctx context.Context, p domain.Principal, id uuid.UUID) error {
	if err := p.Require(domain.RoleAdmin); err != nil {
		return err
	}
	if err := s.repo.DeleteIfNoVisits(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Str("id", id.String()).Str("deleted_by", p.ID.String()).Msg("patient deleted")
	return nil
}

// List is the paginated patient listing. Doctors use it for patient search.
func (s *Service) List(ctx context.Context, p domain.Principal, lp ListParams) ([]*ListItem, int, error) {
	if err := p.Require(domain.RoleAdmin, domain.RoleDoctor); err != nil {
		return nil, 0, err
	}
	sort := lp.Sort
	if sort == "" {
		sort = "created_at"
	}
	orderBy, ok := sortFields[sort]
	if !ok {
		return nil, 0, domain.Invalid("sort", fmt.Sprintf("cannot sort by %q", lp.Sort))
	}
	page := pagination.New(lp.Page, lp.PerPage)
	items, total, err := s.repo.List(ctx, Query{
		Search:  strings.TrimSpace(lp.Search),
		Gender:  strings.TrimSpace(lp.Gender),
		OrderBy: orderBy,
		Desc:    lp.Desc,
		Limit:   page.Limit(),
		Offset:  page.Offset(),
	})
	if err != nil {
		return nil, 0, err
	}
	today := s.today()
	for _, it := range items {
		if it.DateOfBirth != nil {
			it.Age = derive.AgeAt(*it.DateOfBirth, today)
		}
	}
	return items, total, nil
}

func (s *Service) Stats(ctx context.Context, p domain.Principal) (*Stats, error) {
	if err := p.Require(domain.RoleAdmin); err != nil {
		return nil, err
	}
	today := s.today()
	var (
		st    Stats
		dates []*time.Time
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		st.TotalPatients, err = s.repo.CountAll(gctx)
		return err
	})
	g.Go(func() (err error) {
		st.RecentRegistrations, err = s.repo.CountCreatedSince(gctx, derive.MonthStart(today))
		return err
	})
	g.Go(func() (err error) {
		st.PatientsWithVisits, err = s.repo.CountWithVisits(gctx)
		return err
	})
	g.Go(func() (err error) {
		dates, err = s.repo.BirthDates(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	st.AgeDistribution = ageHistogram(dates, today)
	return &st, nil
}

func ageHistogram(dates []*time.Time, asOf time.Time) []AgeBucket {
	out := make([]AgeBucket, len(ageRanges)+1)
	for i, r := range ageRanges {
		out[i].Range = r.label
	}
	out[len(ageRanges)].Range = otherAgeRange

	for _, d := range dates {
		idx := len(ageRanges)
		if d != nil && !d.After(asOf) {
			age := derive.AgeAt(*d, asOf)
			for i, r := range ageRanges {
				if age >= r.low && age < r.top {
					idx = i
					break
				}
			}
		}
		out[idx].Count++
	}
	return out
}

// Export returns every patient as rows under ExportHeader.
func (s *Service) Export(ctx context.Context, p domain.Principal) (*reporting.Table, error) {
	if err := p.Require(domain.RoleAdmin); err != nil {
		return nil, err
	}
	patients, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	s.withAge(patients...)
	t := &reporting.Table{Header: ExportHeader, Rows: make([][]string, 0, len(patients))}
	for _, pt := range patients {
		t.Rows = append(t.Rows, []string{
			pt.PatientID,
			pt.Name,
			pt.ContactNumber,
			pt.Gender,
			strconv.Itoa(pt.Age),
			pt.Address,
			pt.Allergies,
			pt.ChronicIllness,
			pt.CreatedAt.In(s.loc).Format(derive.DateLayout),
		})
	}
	return t, nil
}

func orNone(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return DefaultClinical
	}
	return s
}

func optional(s string) *string {
	if s = strings.TrimSpace(s); s == "" {
		return nil
	}
	return &s
}
