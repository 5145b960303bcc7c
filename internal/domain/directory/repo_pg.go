package directory

import (
	"context"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"

	"github.com/careorbit/clinic/internal/domain"
	"github.com/careorbit/clinic/internal/platform/db"
)

type repoPG struct {
	db db.Querier
}

func NewRepo(q db.Querier) Repository {
	return &repoPG{db: q}
}

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.db)
}

const doctorCols = `d.id, d.username, d.password_hash, d.name, d.department_id, d.specialization,
	d.room_no, d.email, d.phone, d.active, d.last_login, d.created_at`

func (r *repoPG) ListDepartments(ctx context.Context) ([]*Department, error) {
	var out []*Department
	err := pgxscan.Select(ctx, r.conn(ctx), &out, `
		SELECT id, department_name, description, created_at
		FROM department ORDER BY department_name`)
	if err != nil {
		return nil, db.MapError(fmt.Errorf("list departments: %w", err))
	}
	return out, nil
}

func (r *repoPG) GetDepartment(ctx context.Context, id uuid.UUID) (*Department, error) {
	var d Department
	err := pgxscan.Get(ctx, r.conn(ctx), &d, `
		SELECT id, department_name, description, created_at
		FROM department WHERE id = $1`, id)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, fmt.Errorf("%w: department %s", domain.ErrNotFound, id)
		}
		return nil, db.MapError(fmt.Errorf("get department %s: %w", id, err))
	}
	return &d, nil
}

func (r *repoPG) CreateDepartment(ctx context.Context, d *Department) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO department (id, department_name, description, created_at)
		VALUES ($1, $2, $3, $4)`,
		d.ID, d.DepartmentName, d.Description, d.CreatedAt,
	)
	if err != nil {
		return db.MapError(fmt.Errorf("create department %q: %w", d.DepartmentName, err))
	}
	return nil
}

func (r *repoPG) ListDoctors(ctx context.Context, departmentID uuid.UUID, start, end time.Time) ([]*DoctorWithLoad, error) {
	var out []*DoctorWithLoad
	err := pgxscan.Select(ctx, r.conn(ctx), &out, `
		SELECT `+doctorCols+`,
			COUNT(v.id) FILTER (
				WHERE v.status IN ('assigned', 'in_progress')
				AND v.visit_date >= $2 AND v.visit_date < $3
			) AS current_load
		FROM doctor d
		LEFT JOIN visit v ON v.doctor_id = d.id
		WHERE d.department_id = $1 AND d.active
		GROUP BY d.id
		ORDER BY d.name`,
		departmentID, start, end,
	)
	if err != nil {
		return nil, db.MapError(fmt.Errorf("list doctors for department %s: %w", departmentID, err))
	}
	return out, nil
}

func (r *repoPG) GetDoctor(ctx context.Context, id uuid.UUID) (*DoctorProfile, error) {
	var d DoctorProfile
	err := pgxscan.Get(ctx, r.conn(ctx), &d, `
		SELECT `+doctorCols+`, COALESCE(dp.department_name, 'Unknown') AS department_name
		FROM doctor d
		LEFT JOIN department dp ON dp.id = d.department_id
		WHERE d.id = $1`, id)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, fmt.Errorf("%w: doctor %s", domain.ErrNotFound, id)
		}
		return nil, db.MapError(fmt.Errorf("get doctor %s: %w", id, err))
	}
	return &d, nil
}

func (r *repoPG) CreateDoctor(ctx context.Context, d *Doctor) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO doctor (id, username, password_hash, name, department_id, specialization,
			room_no, email, phone, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		d.ID, d.Username, d.PasswordHash, d.Name, d.DepartmentID, d.Specialization,
		d.RoomNo, d.Email, d.Phone, d.Active, d.CreatedAt,
	)
	if err != nil {
		return db.MapError(fmt.Errorf("create doctor %q: %w", d.Username, err))
	}
	return nil
}

func (r *repoPG) GetAdmin(ctx context.Context, id uuid.UUID) (*Admin, error) {
	var a Admin
	err := pgxscan.Get(ctx, r.conn(ctx), &a, `
		SELECT id, username, password_hash, name, email, active, last_login, created_at
		FROM admin WHERE id = $1`, id)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, fmt.Errorf("%w: admin %s", domain.ErrNotFound, id)
		}
		return nil, db.MapError(fmt.Errorf("get admin %s: %w", id, err))
	}
	return &a, nil
}

func (r *repoPG) CreateAdmin(ctx context.Context, a *Admin) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO admin (id, username, password_hash, name, email, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, a.Username, a.PasswordHash, a.Name, a.Email, a.Active, a.CreatedAt,
	)
	if err != nil {
		return db.MapError(fmt.Errorf("create admin %q: %w", a.Username, err))
	}
	return nil
}

// accountTable maps a role to its table. The result is only ever one of two
// constants, so it is safe to splice into SQL.
func accountTable(role domain.Role) (string, error) {
	switch role {
	case domain.RoleAdmin:
		return "admin", nil
	case domain.RoleDoctor:
		return "doctor", nil
	}
	return "", domain.Invalid("role", fmt.Sprintf("unknown role %q", role))
}

func (r *repoPG) Credentials(ctx context.Context, role domain.Role, username string) (*Credentials, error) {
	table, err := accountTable(role)
	if err != nil {
		return nil, err
	}
	var c Credentials
	err = pgxscan.Get(ctx, r.conn(ctx), &c,
		`SELECT id, name, password_hash, active FROM `+table+` WHERE username = $1`, username)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, fmt.Errorf("%w: %s account", domain.ErrNotFound, role)
		}
		return nil, db.MapError(fmt.Errorf("load %s credentials: %w", role, err))
	}
	return &c, nil
}

func (r *repoPG) TouchLastLogin(ctx context.Context, role domain.Role, id uuid.UUID, at time.Time) error {
	table, err := accountTable(role)
	if err != nil {
		return err
	}
	tag, err := r.conn(ctx).Exec(ctx, `UPDATE `+table+` SET last_login = $2 WHERE id = $1`, id, at)
	if err != nil {
		return db.MapError(fmt.Errorf("touch %s last login: %w", role, err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s %s", domain.ErrNotFound, role, id)
	}
	return nil
}
