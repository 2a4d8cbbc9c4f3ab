package models

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AppointmentStatus represents the lifecycle state of an appointment
type AppointmentStatus string

const (
	StatusScheduled AppointmentStatus = "scheduled"
	StatusCompleted AppointmentStatus = "completed"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusNoShow    AppointmentStatus = "no_show"
)

// Terminal reports whether no further transitions are allowed from the status.
func (s AppointmentStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusNoShow
}

// Appointment represents a scheduled encounter between a patient and a
// doctor. Date is a UTC midnight day; StartMinute and DurationMinutes define
// the half-open interval [start, start+duration) within that day.
// Appointments are never deleted; cancellation is a status change.
type Appointment struct {
	ID                uuid.UUID         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	AppointmentNumber string            `gorm:"type:varchar(20);not null;uniqueIndex" json:"appointment_number"`
	PatientID         uuid.UUID         `gorm:"type:uuid;not null;index:idx_appointments_patient_date,priority:1" json:"patient_id"`
	DoctorID          uuid.UUID         `gorm:"type:uuid;not null;index:idx_appointments_doctor_date,priority:1" json:"doctor_id"`
	Date              time.Time         `gorm:"type:date;not null;index:idx_appointments_doctor_date,priority:2;index:idx_appointments_patient_date,priority:2" json:"date"`
	StartMinute       int               `gorm:"not null" json:"start_minute"`
	DurationMinutes   int               `gorm:"not null" json:"duration_minutes"`
	Status            AppointmentStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	Reason            string            `gorm:"type:text" json:"reason"`

	CreatedBy uuid.UUID `gorm:"type:uuid" json:"created_by"`

	// Status transition tracking
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	NoShowAt           *time.Time `json:"no_show_at,omitempty"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	CancellationReason string     `gorm:"type:text" json:"cancellation_reason,omitempty"`
	CancelledBy        string     `gorm:"type:varchar(20)" json:"cancelled_by,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName overrides the table name
func (Appointment) TableName() string {
	return "appointments"
}

// BeforeCreate hook
func (a *Appointment) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.AppointmentNumber == "" {
		a.AppointmentNumber = NewAppointmentNumber()
	}
	return nil
}

// EndMinute returns the exclusive end of the appointment interval.
func (a *Appointment) EndMinute() int {
	return a.StartMinute + a.DurationMinutes
}

// NewAppointmentNumber generates a human-readable appointment reference.
func NewAppointmentNumber() string {
	return fmt.Sprintf("APT%06d", rand.Intn(900000)+100000)
}
