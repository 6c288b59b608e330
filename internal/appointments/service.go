// Package appointments contains handlers, services and models used to book appointments and move
// them through their lifecycle.
//
// Every transition runs in one transaction: the row is read with a lock, the actor and the
// transition rules are checked, a token is allocated when needed, and the row is updated only if
// its status is still the one that was checked.
package appointments

import (
	"clinic-booking/internal/apierrors"
	"clinic-booking/internal/calls"
	"clinic-booking/internal/configs"
	"clinic-booking/internal/database"
	"clinic-booking/internal/doctors"
	"clinic-booking/internal/feed"
	"clinic-booking/internal/logging"
	"clinic-booking/internal/metrics"
	"clinic-booking/internal/session"
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Booker determines the methods available to patients to book appointments.
type Booker interface {

	// Book creates a scheduled appointment. Offline appointments get the next token of the day.
	Book(ctx context.Context, s session.PatientSession, request BookingRequest) (*Appointment, error)
}

// Reader determines the methods available to list appointments.
type Reader interface {

	// ListForPatient lists the patient's open appointments with their doctors.
	ListForPatient(ctx context.Context, s session.PatientSession) ([]*PatientAppointment, error)

	// ListForDoctor lists the doctor's open appointments. The date filter only accepts "today".
	ListForDoctor(ctx context.Context, s session.DoctorSession, filter DoctorFilter) ([]*Appointment, error)
}

// Transitioner determines the lifecycle transitions of an appointment.
type Transitioner interface {
	Approve(ctx context.Context, s session.Session, aid uuid.UUID) (*Appointment, error)
	Reschedule(ctx context.Context, s session.Session, aid uuid.UUID, request RescheduleRequest) (*Appointment, error)
	StartCall(ctx context.Context, s session.Session, aid uuid.UUID) (*Appointment, error)
	CompleteCall(ctx context.Context, s session.Session, aid uuid.UUID) (*Appointment, error)
	Complete(ctx context.Context, s session.Session, aid uuid.UUID, request CompleteRequest) (*Appointment, error)
	Cancel(ctx context.Context, s session.Session, aid uuid.UUID, request CancelRequest) (*Appointment, error)
}

// CallHandler determines the methods used by call participants.
type CallHandler interface {

	// JoinCall returns the appointment of an active call with a credential for the participant.
	JoinCall(ctx context.Context, s session.Session, meetingID string) (*CallSession, error)

	// EndCall completes the appointment of the given meeting without computing its duration.
	EndCall(ctx context.Context, s session.Session, meetingID string) (*Appointment, error)
}

// Service determines the methods used to manage appointments.
type Service interface {
	Booker
	Reader
	Transitioner
	CallHandler
}

type defaultService struct {
	repository Repository
	doctors    doctors.Reader
	publisher  feed.Publisher
	issuer     *calls.Issuer
	metrics    *metrics.AppointmentMetrics
	location   *time.Location
	logger     *log.Logger
	now        func() time.Time
}

// ServiceOption determines the Functional Options used to create a new Service.
type ServiceOption func(service *defaultService)

// WithPublisher sets the publisher of the change feed.
func WithPublisher(publisher feed.Publisher) ServiceOption {
	return func(service *defaultService) {
		service.publisher = publisher
	}
}

// WithMetrics sets the lifecycle counters.
func WithMetrics(m *metrics.AppointmentMetrics) ServiceOption {
	return func(service *defaultService) {
		service.metrics = m
	}
}

// WithLogger sets the logger used for failures that do not reach the caller.
func WithLogger(logger *log.Logger) ServiceOption {
	return func(service *defaultService) {
		service.logger = logger
	}
}

// WithClock sets the clock of the service.
func WithClock(now func() time.Time) ServiceOption {
	return func(service *defaultService) {
		service.now = now
	}
}

// WithDoctors sets the doctor directory used to check bookings.
func WithDoctors(reader doctors.Reader) ServiceOption {
	return func(service *defaultService) {
		service.doctors = reader
	}
}

func withRepository(repository Repository) ServiceOption {
	return func(service *defaultService) {
		service.repository = repository
	}
}

// NewService creates a new appointment service.
func NewService(config configs.Config, dbConn database.Connection, opts ...ServiceOption) (Service, error) {
	issuer, err := calls.NewIssuer(config.CallProviderSecret(), config.CallCredentialTTL())
	if err != nil {
		return nil, err
	}
	service := &defaultService{
		publisher: feed.NopPublisher{},
		issuer:    issuer,
		location:  config.Location(),
		now:       time.Now,
	}
	if dbConn != nil {
		service.repository = newRepository(dbConn)
		service.doctors = doctors.NewService(dbConn)
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

func (d defaultService) today() string {
	return d.now().In(d.location).Format(dateLayout)
}

// unexpected wraps errors the caller can not act upon. API and validation errors pass through.
func unexpected(err error) error {
	var apiErr *apierrors.APIError
	var unauthorized *session.UnauthorizedError
	if errors.As(err, &apiErr) || errors.As(err, &unauthorized) || apierrors.IsValidationError(err) {
		return err
	}
	return fmt.Errorf("an unexpected error occurred: %w", err)
}

// logConflict reports unique violations, raised when an allocated token is already held by another
// appointment of the same doctor and day.
func (d defaultService) logConflict(action Action, err error) {
	if database.IsUniqueViolation(err) {
		logging.PrintlnError(d.logger, fmt.Sprint("token conflict on ", action, ": ", err))
	}
}

func (d defaultService) observe(action Action, err error) {
	switch {
	case err == nil:
		d.metrics.ObserveTransition(string(action), metrics.OutcomeApplied)
	case apierrors.KindOf(err) != "" || apierrors.IsValidationError(err):
		d.metrics.ObserveTransition(string(action), metrics.OutcomeRejected)
	default:
		d.metrics.ObserveTransition(string(action), metrics.OutcomeFailed)
	}
}

// publish notifies the patient and the doctor of a committed change. Failures are only logged.
func (d defaultService) publish(ctx context.Context, event string, old, updated *Appointment) {
	e := feed.Event{Event: event, Table: feed.TableAppointments, New: updated}
	if old != nil {
		e.Old = old
	}
	channels := []string{feed.PatientChannel(updated.PatientID), feed.DoctorChannel(updated.DoctorID)}
	if err := d.publisher.Publish(context.WithoutCancel(ctx), e, channels...); err != nil {
		d.metrics.ObserveFeedFailure()
		logging.PrintlnWarn(d.logger, fmt.Sprint("could not publish change of appointment ", updated.AppointmentID, ": ", err))
	}
}

// authorize checks that the session owns the appointment and may perform the action.
func authorize(s session.Session, a Appointment, action Action) error {
	switch v := s.(type) {
	case session.DoctorSession:
		if a.DoctorID != v.DoctorID {
			return apierrors.Forbidden(string(ErrNotDoctorOwner))
		}
		return nil
	case session.PatientSession:
		if action != ActionCancel {
			return apierrors.Forbidden(string(ErrDoctorOnlyAction))
		}
		if a.PatientID != v.PatientID {
			return apierrors.Forbidden(string(ErrNotPatientOwner))
		}
		return nil
	}
	return session.NewUnauthorizedError()
}

// authorizeParticipant checks that the session is the patient or the doctor of the appointment.
func authorizeParticipant(s session.Session, a Appointment) error {
	switch v := s.(type) {
	case session.DoctorSession:
		if a.DoctorID != v.DoctorID {
			return apierrors.Forbidden(string(ErrNotDoctorOwner))
		}
		return nil
	case session.PatientSession:
		if a.PatientID != v.PatientID {
			return apierrors.Forbidden(string(ErrNotPatientOwner))
		}
		return nil
	}
	return session.NewUnauthorizedError()
}

func cleanSymptoms(symptoms []string) []string {
	if len(symptoms) == 0 {
		return nil
	}
	cleaned := make([]string, 0, len(symptoms))
	for _, v := range symptoms {
		if v = strings.TrimSpace(v); v != "" {
			cleaned = append(cleaned, v)
		}
	}
	return cleaned
}

func (d defaultService) Book(ctx context.Context, s session.PatientSession, request BookingRequest) (*Appointment, error) {
	if err := request.Validate(); err != nil {
		d.observe(ActionCreate, err)
		return nil, err
	}
	if request.ScheduledDate < d.today() {
		err := apierrors.NewValidationError("scheduledDate", string(ErrPastDate))
		d.observe(ActionCreate, err)
		return nil, err
	}
	if _, err := d.doctors.Get(ctx, request.DoctorID); err != nil {
		if apierrors.KindOf(err) == apierrors.KindNotFound {
			err = apierrors.NotFound(string(ErrDoctorNotFound))
		}
		d.observe(ActionCreate, err)
		return nil, err
	}
	appointment := Appointment{
		PatientID:      s.PatientID,
		DoctorID:       request.DoctorID,
		Mode:           request.Mode,
		Status:         StatusScheduled,
		ScheduledDate:  request.ScheduledDate,
		ScheduledTime:  request.ScheduledTime,
		ChiefComplaint: request.ChiefComplaint,
		Symptoms:       cleanSymptoms(request.Symptoms),
	}
	var created *Appointment
	err := d.repository.InTransaction(ctx, func(repository Repository) error {
		if appointment.Mode == ModeOffline {
			token, err := repository.NextToken(ctx, appointment.DoctorID, appointment.ScheduledDate)
			if err != nil {
				return err
			}
			appointment.TokenNumber = &token
		}
		var err error
		created, err = repository.Insert(ctx, appointment)
		if err == nil && created == nil {
			err = errors.New("appointment not inserted")
		}
		return err
	})
	if err != nil {
		d.logConflict(ActionCreate, err)
		err = unexpected(err)
		d.observe(ActionCreate, err)
		return nil, err
	}
	d.observe(ActionCreate, nil)
	if created.TokenNumber != nil {
		d.metrics.ObserveTokenAllocated(string(ActionCreate))
	}
	d.publish(ctx, feed.EventInsert, nil, created)
	return created, nil
}

func (d defaultService) ListForPatient(ctx context.Context, s session.PatientSession) ([]*PatientAppointment, error) {
	appointments, err := d.repository.ListByPatient(ctx, s.PatientID)
	if err != nil {
		return nil, unexpected(err)
	}
	summaries := make(map[uuid.UUID]*DoctorSummary)
	listed := make([]*PatientAppointment, 0, len(appointments))
	for _, a := range appointments {
		summary, found := summaries[a.DoctorID]
		if !found {
			doctor, err := d.doctors.Get(ctx, a.DoctorID)
			switch {
			case err == nil:
				summary = &DoctorSummary{
					DoctorID:        doctor.DoctorID,
					Name:            doctor.Name,
					Specialization:  doctor.Specialization,
					ClinicName:      doctor.ClinicName,
					ProfileImageURL: doctor.ProfileImageURL,
				}
			case apierrors.KindOf(err) != apierrors.KindNotFound:
				return nil, err
			}
			summaries[a.DoctorID] = summary
		}
		listed = append(listed, &PatientAppointment{Appointment: *a, Doctor: summary})
	}
	return listed, nil
}

func (d defaultService) ListForDoctor(ctx context.Context, s session.DoctorSession, filter DoctorFilter) ([]*Appointment, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, apierrors.NewValidationError("status", string(ErrInvalidStatusFilter))
	}
	switch filter.Date {
	case "":
	case "today":
		filter.Date = d.today()
	default:
		return nil, apierrors.NewValidationError("date", string(ErrInvalidDateFilter))
	}
	appointments, err := d.repository.ListByDoctor(ctx, s.DoctorID, filter)
	if err != nil {
		return nil, unexpected(err)
	}
	return appointments, nil
}

// preparer completes the change of a transition once the locked row passed the ownership and
// status checks. It runs inside the transaction.
type preparer func(ctx context.Context, repository Repository, current Appointment, change *Change) error

// transition applies a change to the appointment atomically and publishes it once committed.
func (d defaultService) transition(ctx context.Context, s session.Session, aid uuid.UUID, change Change, prepare preparer) (*Appointment, error) {
	change.At = d.now()
	change.ActorUID = s.UserID()
	var old, updated *Appointment
	tokenAllocated := false
	err := d.repository.InTransaction(ctx, func(repository Repository) error {
		current, err := repository.FindForUpdate(ctx, aid)
		if err != nil {
			return err
		}
		if current == nil {
			return apierrors.NotFound(string(ErrAppointmentNotFound))
		}
		if err = authorize(s, *current, change.Action); err != nil {
			return err
		}
		if _, err = NextStatus(current.Mode, current.Status, change.Action); err != nil {
			return err
		}
		if prepare != nil {
			if err = prepare(ctx, repository, *current, &change); err != nil {
				return err
			}
		}
		next, err := Apply(*current, change)
		if err != nil {
			return err
		}
		updated, err = repository.Update(ctx, current.Status, next)
		if err != nil {
			return err
		}
		if updated == nil {
			return apierrors.InvalidTransition(string(ErrStatusChanged))
		}
		old = current
		tokenAllocated = change.Token != nil
		return nil
	})
	if err != nil {
		d.logConflict(change.Action, err)
		err = unexpected(err)
		d.observe(change.Action, err)
		return nil, err
	}
	d.observe(change.Action, nil)
	if tokenAllocated {
		d.metrics.ObserveTokenAllocated(string(change.Action))
	}
	d.publish(ctx, feed.EventUpdate, old, updated)
	return updated, nil
}

func (d defaultService) Approve(ctx context.Context, s session.Session, aid uuid.UUID) (*Appointment, error) {
	return d.transition(ctx, s, aid, Change{Action: ActionApprove}, nil)
}

func (d defaultService) Reschedule(ctx context.Context, s session.Session, aid uuid.UUID, request RescheduleRequest) (*Appointment, error) {
	if err := request.Validate(); err != nil {
		d.observe(ActionReschedule, err)
		return nil, err
	}
	change := Change{Action: ActionReschedule, NewDate: request.NewDate, NewTime: request.NewTime, Notes: request.Reason}
	return d.transition(ctx, s, aid, change, func(ctx context.Context, repository Repository, current Appointment, change *Change) error {
		if change.NewDate < d.today() {
			return apierrors.NewValidationError("newDate", string(ErrPastDate))
		}
		if !ReissuesToken(current, change.NewDate) {
			return nil
		}
		token, err := repository.NextToken(ctx, current.DoctorID, change.NewDate)
		if err != nil {
			return err
		}
		change.Token = &token
		return nil
	})
}

func (d defaultService) StartCall(ctx context.Context, s session.Session, aid uuid.UUID) (*Appointment, error) {
	return d.transition(ctx, s, aid, Change{Action: ActionStartCall}, func(ctx context.Context, repository Repository, current Appointment, change *Change) error {
		if err := CheckCallWindow(current, change.At, d.location); err != nil {
			return err
		}
		meetingID := calls.NewMeetingID(current.AppointmentID, change.At)
		password, err := d.issuer.RoomPassword(meetingID)
		if err != nil {
			return err
		}
		change.MeetingID = meetingID
		change.MeetingLink = calls.MeetingLink(meetingID)
		change.MeetingPassword = password
		return nil
	})
}

func (d defaultService) CompleteCall(ctx context.Context, s session.Session, aid uuid.UUID) (*Appointment, error) {
	return d.transition(ctx, s, aid, Change{Action: ActionCompleteCall}, nil)
}

func (d defaultService) Complete(ctx context.Context, s session.Session, aid uuid.UUID, request CompleteRequest) (*Appointment, error) {
	return d.transition(ctx, s, aid, Change{Action: ActionComplete, Notes: strings.TrimSpace(request.Notes)}, nil)
}

func (d defaultService) Cancel(ctx context.Context, s session.Session, aid uuid.UUID, request CancelRequest) (*Appointment, error) {
	return d.transition(ctx, s, aid, Change{Action: ActionCancel, Notes: strings.TrimSpace(request.Reason)}, nil)
}

func parseMeetingID(meetingID string) (uuid.UUID, error) {
	aid, err := calls.ParseMeetingID(meetingID)
	if err != nil {
		return uuid.Nil, apierrors.NewValidationError("meetingId", err.Error())
	}
	return aid, nil
}

func activeMeeting(a Appointment, meetingID string) bool {
	return a.Status == StatusInProgress && a.MeetingID != nil && *a.MeetingID == meetingID
}

func (d defaultService) JoinCall(ctx context.Context, s session.Session, meetingID string) (*CallSession, error) {
	aid, err := parseMeetingID(meetingID)
	if err != nil {
		return nil, err
	}
	appointment, err := d.repository.Find(ctx, aid)
	if err != nil {
		return nil, unexpected(err)
	}
	if appointment == nil {
		return nil, apierrors.NotFound(string(ErrAppointmentNotFound))
	}
	if err = authorizeParticipant(s, *appointment); err != nil {
		return nil, err
	}
	if !activeMeeting(*appointment, meetingID) {
		return nil, apierrors.InvalidTransition(string(ErrMeetingNotActive))
	}
	participant := calls.Participant{UserID: s.UserID().String(), Role: string(s.Role()), Name: s.DisplayName()}
	credential, err := d.issuer.Mint(meetingID, participant, d.now())
	if err != nil {
		return nil, unexpected(err)
	}
	return &CallSession{Appointment: *appointment, Credential: credential}, nil
}

func (d defaultService) EndCall(ctx context.Context, s session.Session, meetingID string) (*Appointment, error) {
	aid, err := parseMeetingID(meetingID)
	if err != nil {
		return nil, err
	}
	return d.transition(ctx, s, aid, Change{Action: ActionCompleteCall}, func(ctx context.Context, repository Repository, current Appointment, change *Change) error {
		if !activeMeeting(current, meetingID) {
			return apierrors.InvalidTransition(string(ErrMeetingNotActive))
		}
		return nil
	})
}
