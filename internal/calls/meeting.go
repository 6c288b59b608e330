// Package calls builds the video call identifiers and the short-lived credentials participants use
// to join a call room.
package calls

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	meetingIDPrefix = "appointment"
	meetingLinkBase = "/call/"
)

// NewMeetingID creates the meeting id of a call started at the given time.
func NewMeetingID(aid uuid.UUID, startedAt time.Time) string {
	return fmt.Sprintf("%s_%s_%d", meetingIDPrefix, aid, startedAt.UnixMilli())
}

// MeetingLink returns the in-app link of the given meeting.
func MeetingLink(meetingID string) string {
	return meetingLinkBase + meetingID
}

// ParseMeetingID extracts the appointment id from the given meeting id.
func ParseMeetingID(meetingID string) (uuid.UUID, error) {
	parts := strings.Split(meetingID, "_")
	if len(parts) != 3 || parts[0] != meetingIDPrefix {
		return uuid.Nil, ErrInvalidMeetingID
	}
	aid, err := uuid.Parse(parts[1])
	if err != nil {
		return uuid.Nil, ErrInvalidMeetingID
	}
	return aid, nil
}
