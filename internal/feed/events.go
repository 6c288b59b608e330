// Package feed delivers appointment changes to the browsers of the patient and the doctor involved.
//
// Events are published on Redis channels after the change is committed and relayed to websocket
// clients. Delivery is best-effort: subscribers that are not connected miss the event.
package feed

import (
	"clinic-booking/internal/session"
	"context"

	"github.com/google/uuid"
)

const (
	EventInsert = "INSERT"
	EventUpdate = "UPDATE"

	TableAppointments = "appointments"

	patientChannelPrefix = "appointments:patient:"
	doctorChannelPrefix  = "appointments:doctor:"
)

// Event describes a committed change of a row.
type Event struct {
	Event string      `json:"event"`
	Table string      `json:"table"`
	Old   interface{} `json:"old"`
	New   interface{} `json:"new"`
}

// Publisher publishes events to channels.
type Publisher interface {
	Publish(ctx context.Context, event Event, channels ...string) error
}

// NopPublisher discards every event.
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, event Event, channels ...string) error {
	return nil
}

// PatientChannel returns the channel carrying the changes of the given patient's appointments.
func PatientChannel(pid uuid.UUID) string {
	return patientChannelPrefix + pid.String()
}

// DoctorChannel returns the channel carrying the changes of the given doctor's appointments.
func DoctorChannel(did uuid.UUID) string {
	return doctorChannelPrefix + did.String()
}

// ChannelFor returns the channel the given session is allowed to follow.
func ChannelFor(s session.Session) (string, bool) {
	switch v := s.(type) {
	case session.PatientSession:
		return PatientChannel(v.PatientID), true
	case session.DoctorSession:
		return DoctorChannel(v.DoctorID), true
	}
	return "", false
}
