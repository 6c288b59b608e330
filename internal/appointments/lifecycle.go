package appointments

import (
	"clinic-booking/internal/apierrors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	callOpensBefore = 15 * time.Minute
	callClosesAfter = 120 * time.Minute
)

// rule lists, per mode, the statuses an action may leave and the status it reaches.
type rule struct {
	online  []Status
	offline []Status
	to      Status
}

var accepted = []Status{StatusConfirmed, StatusRescheduled}

var rules = map[Action]rule{
	ActionApprove: {
		online:  []Status{StatusScheduled},
		offline: []Status{StatusScheduled},
		to:      StatusConfirmed,
	},
	ActionReschedule: {
		online:  []Status{StatusScheduled, StatusConfirmed, StatusRescheduled},
		offline: []Status{StatusScheduled, StatusConfirmed, StatusRescheduled},
		to:      StatusRescheduled,
	},
	ActionStartCall: {
		online: accepted,
		to:     StatusInProgress,
	},
	ActionCompleteCall: {
		online: []Status{StatusInProgress},
		to:     StatusCompleted,
	},
	ActionComplete: {
		online:  []Status{StatusInProgress},
		offline: accepted,
		to:      StatusCompleted,
	},
	ActionCancel: {
		online:  []Status{StatusScheduled, StatusConfirmed, StatusRescheduled, StatusInProgress},
		offline: []Status{StatusScheduled, StatusConfirmed, StatusRescheduled, StatusInProgress},
		to:      StatusCancelled,
	},
}

func (r rule) allowedFrom(mode Mode) []Status {
	if mode == ModeOffline {
		return r.offline
	}
	return r.online
}

func contains(statuses []Status, s Status) bool {
	for _, v := range statuses {
		if v == s {
			return true
		}
	}
	return false
}

func (a Action) label() string {
	return strings.ReplaceAll(string(a), "_", " ")
}

// NextStatus returns the status reached by applying the action to an appointment of the given
// mode and status. Any other outcome is an InvalidTransition error.
func NextStatus(mode Mode, from Status, action Action) (Status, error) {
	r, ok := rules[action]
	if !ok {
		return from, apierrors.InvalidTransition(fmt.Sprintf("unknown action %q", action))
	}
	if contains(r.allowedFrom(mode), from) {
		return r.to, nil
	}
	switch {
	case from.Terminal():
		return from, apierrors.InvalidTransition(fmt.Sprintf("cannot %s a %s appointment", action.label(), from))
	case len(r.allowedFrom(mode)) == 0:
		return from, apierrors.InvalidTransition(fmt.Sprintf("cannot %s an %s appointment", action.label(), mode))
	}
	return from, apierrors.InvalidTransition(fmt.Sprintf("cannot %s an appointment that is %s", action.label(), from))
}

// ScheduledAt combines the scheduled date and time in the given location.
func ScheduledAt(date, tm string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(dateLayout+" "+timeLayout, date+" "+tm, loc)
}

// CheckCallWindow checks that a call for the appointment may start at the given time: from
// 15 minutes before the scheduled time, until 120 minutes after it.
func CheckCallWindow(a Appointment, now time.Time, loc *time.Location) error {
	scheduled, err := ScheduledAt(a.ScheduledDate, a.ScheduledTime, loc)
	if err != nil {
		return fmt.Errorf("invalid schedule of appointment %s: %w", a.AppointmentID, err)
	}
	if now.Before(scheduled.Add(-callOpensBefore)) {
		return apierrors.InvalidTransition(string(ErrCallNotYetAvailable))
	}
	if !now.Before(scheduled.Add(callClosesAfter)) {
		return apierrors.InvalidTransition(string(ErrCallWindowExpired))
	}
	return nil
}

// DurationMinutes returns the whole minutes elapsed since start, or nil without a start.
func DurationMinutes(start *time.Time, end time.Time) *int32 {
	if start == nil {
		return nil
	}
	minutes := int32(end.Sub(*start) / time.Minute)
	if minutes < 0 {
		minutes = 0
	}
	return &minutes
}

// ReissuesToken checks if rescheduling the appointment to the given date needs a new token.
func ReissuesToken(a Appointment, newDate string) bool {
	return a.Mode == ModeOffline && newDate != a.ScheduledDate
}

// Change carries the inputs of a transition.
type Change struct {
	Action          Action
	At              time.Time
	NewDate         string
	NewTime         string
	Notes           string
	Token           *int32
	MeetingID       string
	MeetingLink     string
	MeetingPassword string
	ActorUID        uuid.UUID
}

func stringPtr(s string) *string {
	return &s
}

// Apply returns the appointment after the change, leaving the given one untouched.
func Apply(a Appointment, c Change) (Appointment, error) {
	to, err := NextStatus(a.Mode, a.Status, c.Action)
	if err != nil {
		return a, err
	}
	next := a
	next.Status = to
	at := c.At
	switch c.Action {
	case ActionReschedule:
		next.ScheduledDate, next.ScheduledTime = c.NewDate, c.NewTime
		if c.Notes != "" {
			next.DoctorNotes = stringPtr(c.Notes)
		}
		if c.Token != nil {
			token := *c.Token
			next.TokenNumber = &token
		}
	case ActionStartCall:
		next.MeetingID = stringPtr(c.MeetingID)
		next.MeetingLink = stringPtr(c.MeetingLink)
		next.MeetingPassword = stringPtr(c.MeetingPassword)
		next.StartTime = &at
	case ActionCompleteCall:
		next.EndTime = &at
	case ActionComplete:
		next.EndTime = &at
		next.DurationMinutes = DurationMinutes(a.StartTime, at)
		if c.Notes != "" {
			next.DoctorNotes = stringPtr(c.Notes)
		}
	case ActionCancel:
		if c.Notes != "" {
			next.CancellationReason = stringPtr(c.Notes)
		}
		actor := c.ActorUID
		next.CancelledBy = &actor
		next.CancelledAt = &at
	}
	return next, nil
}
