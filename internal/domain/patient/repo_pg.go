package patient

import (
	"context"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/careorbit/clinic/internal/domain"
	"github.com/careorbit/clinic/internal/platform/db"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var columns = []string{
	"id", "patient_id", "name", "contact_number", "date_of_birth", "gender", "address",
	"allergies", "chronic_illness", "aadhaar_number", "created_at", "updated_at", "updated_by",
}

func qualified(alias string) []string {
	out := make([]string, len(columns))
	for i, c := range columns {
		out[i] = alias + "." + c
	}
	return out
}

type repoPG struct {
	db db.Querier
}

func NewRepo(q db.Querier) Repository {
	return &repoPG{db: q}
}

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.db)
}

// errIdentityTaken replaces the driver message for the sparse identity index.
func errIdentityTaken() error {
	return fmt.Errorf("%w: a patient with this phone, name and aadhaar number is already registered", domain.ErrDuplicate)
}

func (r *repoPG) Create(ctx context.Context, p *Patient) error {
	query, args, err := psql.Insert("patient").
		Columns("id", "patient_id", "name", "contact_number", "date_of_birth", "gender", "address",
			"allergies", "chronic_illness", "aadhaar_number", "created_at").
		Values(p.ID, p.PatientID, p.Name, p.ContactNumber, p.DateOfBirth, p.Gender, p.Address,
			p.Allergies, p.ChronicIllness, p.AadhaarNumber, p.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build patient insert: %w", err)
	}
	if _, err := r.conn(ctx).Exec(ctx, query, args...); err != nil {
		if db.UniqueViolation(err, db.PatientIdentityKey) {
			return errIdentityTaken()
		}
		return db.MapError(fmt.Errorf("create patient %s: %w", p.PatientID, err))
	}
	return nil
}

// get returns one patient; label names it in the not-found error.
func (r *repoPG) get(ctx context.Context, b sq.SelectBuilder, label string) (*Patient, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build patient query: %w", err)
	}
	var p Patient
	if err := pgxscan.Get(ctx, r.conn(ctx), &p, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, label)
		}
		return nil, db.MapError(fmt.Errorf("get %s: %w", label, err))
	}
	return &p, nil
}

func (r *repoPG) selectAll(ctx context.Context, b sq.SelectBuilder) ([]*Patient, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build patient query: %w", err)
	}
	out := make([]*Patient, 0)
	if err := pgxscan.Select(ctx, r.conn(ctx), &out, query, args...); err != nil {
		return nil, db.MapError(fmt.Errorf("select patients: %w", err))
	}
	return out, nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return r.get(ctx, psql.Select(columns...).From("patient").Where(sq.Eq{"id": id}), "patient "+id.String())
}

func (r *repoPG) LastPatientID(ctx context.Context) (string, error) {
	var last string
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT patient_id FROM patient
		ORDER BY NULLIF(regexp_replace(patient_id, '\D', '', 'g'), '')::bigint DESC NULLS LAST,
			patient_id DESC
		LIMIT 1`).Scan(&last)
	if err != nil {
		if pgxscan.NotFound(err) {
			return "", nil
		}
		return "", db.MapError(fmt.Errorf("last patient id: %w", err))
	}
	return last, nil
}

func (r *repoPG) ExistsIdentity(ctx context.Context, phone, name, aadhaar string) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM patient
			WHERE contact_number = $1 AND name = $2 AND aadhaar_number = $3
		)`, phone, name, aadhaar).Scan(&exists)
	if err != nil {
		return false, db.MapError(fmt.Errorf("check patient identity: %w", err))
	}
	return exists, nil
}

func (r *repoPG) FindByPhone(ctx context.Context, phone string) ([]*Patient, error) {
	return r.selectAll(ctx, psql.Select(columns...).From("patient").
		Where(sq.Eq{"contact_number": phone}).
		OrderBy("patient_id"))
}

func (r *repoPG) FindByName(ctx context.Context, name string) ([]*Patient, error) {
	return r.selectAll(ctx, psql.Select(columns...).From("patient").
		Where(sq.ILike{"name": containsPattern(name)}).
		OrderBy("name", "patient_id"))
}

func (r *repoPG) FindFirst(ctx context.Context, phone, name string) (*Patient, error) {
	where := sq.And{}
	if phone != "" {
		where = append(where, sq.Eq{"contact_number": phone})
	}
	if name != "" {
		where = append(where, sq.ILike{"name": containsPattern(name)})
	}
	return r.get(ctx, psql.Select(columns...).From("patient").Where(where).OrderBy("patient_id").Limit(1),
		"patient matching search")
}

func (r *repoPG) Update(ctx context.Context, id uuid.UUID, set map[string]interface{}, by uuid.UUID, at time.Time) (*Patient, error) {
	query, args, err := psql.Update("patient").
		SetMap(set).
		Set("updated_at", at).
		Set("updated_by", by).
		Where(sq.Eq{"id": id}).
		Suffix("RETURNING " + strings.Join(columns, ", ")).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build patient update: %w", err)
	}
	var p Patient
	if err := pgxscan.Get(ctx, r.conn(ctx), &p, query, args...); err != nil {
		switch {
		case pgxscan.NotFound(err):
			return nil, fmt.Errorf("%w: patient %s", domain.ErrNotFound, id)
		case db.UniqueViolation(err, db.PatientIdentityKey):
			return nil, errIdentityTaken()
		}
		return nil, db.MapError(fmt.Errorf("update patient %s: %w", id, err))
	}
	return &p, nil
}

// DeleteIfNoVisits deletes in one statement guarded by NOT EXISTS. A visit
// inserted concurrently between the guard and the delete is not prevented
// since visit references carry no foreign key.
func (r *repoPG) DeleteIfNoVisits(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		DELETE FROM patient p
		WHERE p.id = $1
			AND NOT EXISTS (SELECT 1 FROM visit v WHERE v.patient_id = p.id)`, id)
	if err != nil {
		return db.MapError(fmt.Errorf("delete patient %s: %w", id, err))
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM patient WHERE id = $1)`, id).Scan(&exists); err != nil {
		return db.MapError(fmt.Errorf("delete patient %s: %w", id, err))
	}
	if !exists {
		return fmt.Errorf("%w: patient %s", domain.ErrNotFound, id)
	}
	return fmt.Errorf("%w: patient %s has visits and cannot be deleted", domain.ErrConflict, id)
}

func listFilter(q Query) sq.And {
	where := sq.And{}
	if q.Search != "" {
		pat := containsPattern(q.Search)
		where = append(where, sq.Or{
			sq.ILike{"p.name": pat},
			sq.ILike{"p.contact_number": pat},
			sq.ILike{"p.patient_id": pat},
		})
	}
	if q.Gender != "" {
		where = append(where, sq.Eq{"p.gender": q.Gender})
	}
	return where
}

func (r *repoPG) List(ctx context.Context, q Query) ([]*ListItem, int, error) {
	where := listFilter(q)

	countSQL, countArgs, err := psql.Select("COUNT(*)").From("patient p").Where(where).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build patient count: %w", err)
	}
	var total int
	if err := r.conn(ctx).QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, db.MapError(fmt.Errorf("count patients: %w", err))
	}

	dir := " ASC"
	if q.Desc {
		dir = " DESC"
	}
	dataSQL, dataArgs, err := psql.Select(qualified("p")...).
		Column("(SELECT COUNT(*) FROM visit v WHERE v.patient_id = p.id) AS visit_count").
		Column("(SELECT MAX(v.visit_date) FROM visit v WHERE v.patient_id = p.id) AS last_visit_date").
		From("patient p").
		Where(where).
		OrderBy(q.OrderBy+dir, "p.patient_id"+dir).
		Limit(uint64(q.Limit)).
		Offset(uint64(q.Offset)).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build patient list: %w", err)
	}
	items := make([]*ListItem, 0, q.Limit)
	if err := pgxscan.Select(ctx, r.conn(ctx), &items, dataSQL, dataArgs...); err != nil {
		return nil, 0, db.MapError(fmt.Errorf("list patients: %w", err))
	}
	return items, total, nil
}

func (r *repoPG) ListAll(ctx context.Context) ([]*Patient, error) {
	return r.selectAll(ctx, psql.Select(columns...).From("patient").OrderBy("created_at", "patient_id"))
}

func (r *repoPG) count(ctx context.Context, what, query string, args ...interface{}) (int, error) {
	var n int
	if err := r.conn(ctx).QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, db.MapError(fmt.Errorf("count %s: %w", what, err))
	}
	return n, nil
}

func (r *repoPG) CountAll(ctx context.Context) (int, error) {
	return r.count(ctx, "patients", `SELECT COUNT(*) FROM patient`)
}

func (r *repoPG) CountCreatedSince(ctx context.Context, since time.Time) (int, error) {
	return r.count(ctx, "recent patients", `SELECT COUNT(*) FROM patient WHERE created_at >= $1`, since)
}

func (r *repoPG) CountWithVisits(ctx context.Context) (int, error) {
	return r.count(ctx, "patients with visits", `
		SELECT COUNT(*) FROM patient p
		WHERE EXISTS (SELECT 1 FROM visit v WHERE v.patient_id = p.id)`)
}

func (r *repoPG) BirthDates(ctx context.Context) ([]*time.Time, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT date_of_birth FROM patient`)
	if err != nil {
		return nil, db.MapError(fmt.Errorf("patient birth dates: %w", err))
	}
	dates, err := pgx.CollectRows(rows, pgx.RowTo[*time.Time])
	if err != nil {
		return nil, db.MapError(fmt.Errorf("patient birth dates: %w", err))
	}
	return dates, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern builds a LIKE pattern matching s literally anywhere.
func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}
