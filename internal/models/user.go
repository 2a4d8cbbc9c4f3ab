package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role identifies what a user is allowed to do
type Role string

const (
	RoleAdmin        Role = "admin"
	RoleDoctor       Role = "doctor"
	RoleNurse        Role = "nurse"
	RoleReceptionist Role = "receptionist"
	RolePatient      Role = "patient"
)

// Staff reports whether the role belongs to hospital staff rather than a patient.
func (r Role) Staff() bool {
	switch r {
	case RoleAdmin, RoleNurse, RoleReceptionist:
		return true
	}
	return false
}

// User represents an account that can authenticate against the API
type User struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Email        string    `gorm:"type:varchar(255);not null;uniqueIndex" json:"email"`
	PasswordHash string    `gorm:"type:text;not null" json:"-"`
	FullName     string    `gorm:"type:varchar(255);not null" json:"full_name"`
	Role         Role      `gorm:"type:varchar(20);not null;index" json:"role"`
	PhoneNumber  string    `gorm:"type:varchar(17)" json:"phone_number,omitempty"`
	IsActive     bool      `gorm:"default:true" json:"is_active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName overrides the table name
func (User) TableName() string {
	return "users"
}

// BeforeCreate hook
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// DoctorAvailability is a recurring weekly window during which a doctor
// accepts bookings. Weekday follows 0=Monday..6=Sunday. Start and end are
// minutes since midnight, half-open [Start, End).
type DoctorAvailability struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	DoctorID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_availability_doctor_slot,priority:1" json:"doctor_id"`
	Weekday     int       `gorm:"not null;uniqueIndex:idx_availability_doctor_slot,priority:2" json:"weekday"`
	StartMinute int       `gorm:"not null;uniqueIndex:idx_availability_doctor_slot,priority:3" json:"start_minute"`
	EndMinute   int       `gorm:"not null" json:"end_minute"`
	IsActive    bool      `gorm:"default:true" json:"is_active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName overrides the table name
func (DoctorAvailability) TableName() string {
	return "doctor_availability"
}

// BeforeCreate hook
func (d *DoctorAvailability) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}
