package directory

import (
	"time"

	"github.com/google/uuid"

	"github.com/careorbit/clinic/pkg/derive"
)

type Department struct {
	ID             uuid.UUID `db:"id" json:"id"`
	DepartmentName string    `db:"department_name" json:"department_name"`
	Description    string    `db:"description" json:"description"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// Doctor is a doctor account. The password hash is never serialized.
type Doctor struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	Username       string     `db:"username" json:"username"`
	PasswordHash   string     `db:"password_hash" json:"-"`
	Name           string     `db:"name" json:"name"`
	DepartmentID   uuid.UUID  `db:"department_id" json:"department_id"`
	Specialization string     `db:"specialization" json:"specialization"`
	RoomNo         string     `db:"room_no" json:"room_no"`
	Email          string     `db:"email" json:"email"`
	Phone          string     `db:"phone" json:"phone"`
	Active         bool       `db:"active" json:"active"`
	LastLogin      *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
}

// DoctorWithLoad annotates a doctor with today's count of active visits.
type DoctorWithLoad struct {
	Doctor
	CurrentLoad int         `db:"current_load" json:"current_load"`
	Load        derive.Load `db:"-" json:"load"`
}

// DoctorProfile is a doctor with the department name resolved.
type DoctorProfile struct {
	Doctor
	DepartmentName string `db:"department_name" json:"department_name"`
}

type Admin struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	Username     string     `db:"username" json:"username"`
	PasswordHash string     `db:"password_hash" json:"-"`
	Name         string     `db:"name" json:"name"`
	Email        string     `db:"email" json:"email"`
	Active       bool       `db:"active" json:"active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
}

// Credentials is what login needs from an admin or doctor row.
type Credentials struct {
	ID           uuid.UUID `db:"id"`
	Name         string    `db:"name"`
	PasswordHash string    `db:"password_hash"`
	Active       bool      `db:"active"`
}
