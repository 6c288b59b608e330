package appointments

import (
	"clinic-booking/internal/apierrors"
	"clinic-booking/internal/calls"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const (
	dateLayout        = "2006-01-02"
	timeLayout        = "15:04"
	timeLayoutSeconds = "15:04:05"
)

type Mode string

const (
	ModeOnline  Mode = "online"
	ModeOffline Mode = "offline"
)

// Valid checks if the mode is a known one.
func (m Mode) Valid() bool {
	return m == ModeOnline || m == ModeOffline
}

type Status string

const (
	StatusScheduled   Status = "scheduled"
	StatusConfirmed   Status = "confirmed"
	StatusRescheduled Status = "rescheduled"
	StatusInProgress  Status = "in_progress"
	StatusCompleted   Status = "completed"
	StatusCancelled   Status = "cancelled"
)

// Statuses lists every status an appointment can be in.
var Statuses = []Status{StatusScheduled, StatusConfirmed, StatusRescheduled, StatusInProgress, StatusCompleted, StatusCancelled}

// Valid checks if the status is a known one.
func (s Status) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

// Terminal checks if no transition leaves the status.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

type Action string

const (
	ActionCreate       Action = "create"
	ActionApprove      Action = "approve"
	ActionReschedule   Action = "reschedule"
	ActionStartCall    Action = "start_call"
	ActionCompleteCall Action = "complete_call"
	ActionComplete     Action = "complete"
	ActionCancel       Action = "cancel"
)

// Actions lists every transition applied to an existing appointment.
var Actions = []Action{ActionApprove, ActionReschedule, ActionStartCall, ActionCompleteCall, ActionComplete, ActionCancel}

type Appointment struct {
	AppointmentID      uuid.UUID      `json:"aid" dbfield:"aid"`
	PatientID          uuid.UUID      `json:"pid" dbfield:"pid"`
	DoctorID           uuid.UUID      `json:"did" dbfield:"did"`
	Mode               Mode           `json:"mode" dbfield:"mode"`
	Status             Status         `json:"status" dbfield:"status"`
	ScheduledDate      string         `json:"scheduled_date" dbfield:"scheduled_date"`
	ScheduledTime      string         `json:"scheduled_time" dbfield:"scheduled_time"`
	StartTime          *time.Time     `json:"start_time" dbfield:"start_time"`
	EndTime            *time.Time     `json:"end_time" dbfield:"end_time"`
	DurationMinutes    *int32         `json:"duration_minutes" dbfield:"duration_minutes"`
	TokenNumber        *int32         `json:"token_number" dbfield:"token_number"`
	MeetingID          *string        `json:"meeting_id" dbfield:"meeting_id"`
	MeetingLink        *string        `json:"meeting_link" dbfield:"meeting_link"`
	MeetingPassword    *string        `json:"-" dbfield:"meeting_password"`
	ChiefComplaint     string         `json:"chief_complaint" dbfield:"chief_complaint"`
	Symptoms           pq.StringArray `json:"symptoms" dbfield:"symptoms"`
	DoctorNotes        *string        `json:"doctor_notes" dbfield:"doctor_notes"`
	CancellationReason *string        `json:"cancellation_reason" dbfield:"cancellation_reason"`
	CancelledBy        *uuid.UUID     `json:"cancelled_by" dbfield:"cancelled_by"`
	CancelledAt        *time.Time     `json:"cancelled_at" dbfield:"cancelled_at"`
	CreatedAt          time.Time      `json:"created_at" dbfield:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at" dbfield:"updated_at"`
}

// DoctorSummary is the doctor shown next to a patient's appointment.
type DoctorSummary struct {
	DoctorID        uuid.UUID `json:"did"`
	Name            string    `json:"name"`
	Specialization  string    `json:"specialization"`
	ClinicName      *string   `json:"clinic_name"`
	ProfileImageURL *string   `json:"profile_image_url"`
}

// PatientAppointment is an appointment as listed to its patient.
type PatientAppointment struct {
	Appointment
	Doctor *DoctorSummary `json:"doctor"`
}

// CallSession is returned to a participant joining a call.
type CallSession struct {
	Appointment Appointment       `json:"appointment"`
	Credential  *calls.Credential `json:"credential"`
}

// DoctorFilter narrows the doctor's appointment listing.
type DoctorFilter struct {
	Status Status
	Date   string
}

// normalizeTime accepts HH:MM and HH:MM:SS, returning HH:MM.
func normalizeTime(value string) (string, bool) {
	value = strings.TrimSpace(value)
	for _, layout := range []string{timeLayout, timeLayoutSeconds} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.Format(timeLayout), true
		}
	}
	return "", false
}

// normalizeDate accepts YYYY-MM-DD, returning it unchanged.
func normalizeDate(value string) (string, bool) {
	value = strings.TrimSpace(value)
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return "", false
	}
	return t.Format(dateLayout), true
}

type BookingRequest struct {
	DoctorID       uuid.UUID `json:"did"`
	Mode           Mode      `json:"mode"`
	ScheduledDate  string    `json:"scheduledDate"`
	ScheduledTime  string    `json:"scheduledTime"`
	ChiefComplaint string    `json:"chiefComplaint"`
	Symptoms       []string  `json:"symptoms"`
}

// Validate checks if the given request is valid, normalizing its date and time.
func (b *BookingRequest) Validate() error {
	if b.DoctorID == uuid.Nil {
		return apierrors.NewValidationError("did", "required")
	}
	if b.Mode == "" {
		return apierrors.NewValidationError("mode", "required")
	}
	if !b.Mode.Valid() {
		return apierrors.NewValidationError("mode", "must be online or offline")
	}
	if strings.TrimSpace(b.ScheduledDate) == "" {
		return apierrors.NewValidationError("scheduledDate", "required")
	}
	date, ok := normalizeDate(b.ScheduledDate)
	if !ok {
		return apierrors.NewValidationError("scheduledDate", "must be YYYY-MM-DD")
	}
	if strings.TrimSpace(b.ScheduledTime) == "" {
		return apierrors.NewValidationError("scheduledTime", "required")
	}
	tm, ok := normalizeTime(b.ScheduledTime)
	if !ok {
		return apierrors.NewValidationError("scheduledTime", "must be HH:MM")
	}
	b.ChiefComplaint = strings.TrimSpace(b.ChiefComplaint)
	if b.ChiefComplaint == "" {
		return apierrors.NewValidationError("chiefComplaint", "required")
	}
	b.ScheduledDate, b.ScheduledTime = date, tm
	return nil
}

type RescheduleRequest struct {
	NewDate string `json:"newDate"`
	NewTime string `json:"newTime"`
	Reason  string `json:"reason"`
}

// Validate checks if the given request is valid, normalizing its date and time.
func (r *RescheduleRequest) Validate() error {
	if strings.TrimSpace(r.NewDate) == "" {
		return apierrors.NewValidationError("newDate", "required")
	}
	date, ok := normalizeDate(r.NewDate)
	if !ok {
		return apierrors.NewValidationError("newDate", "must be YYYY-MM-DD")
	}
	if strings.TrimSpace(r.NewTime) == "" {
		return apierrors.NewValidationError("newTime", "required")
	}
	tm, ok := normalizeTime(r.NewTime)
	if !ok {
		return apierrors.NewValidationError("newTime", "must be HH:MM")
	}
	r.NewDate, r.NewTime, r.Reason = date, tm, strings.TrimSpace(r.Reason)
	return nil
}

type CancelRequest struct {
	Reason string `json:"reason"`
}

type CompleteRequest struct {
	Notes string `json:"notes"`
}
