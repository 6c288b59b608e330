package appointments

type Error string

const (
	ErrAppointmentNotFound Error = "appointment not found"
	ErrDoctorNotFound      Error = "doctor not found"
	ErrInvalidIdentifier   Error = "invalid identifier"
	ErrNotDoctorOwner      Error = "appointment belongs to another doctor"
	ErrNotPatientOwner     Error = "appointment belongs to another patient"
	ErrDoctorOnlyAction    Error = "only the doctor can perform this action"
	ErrPatientOnlyAction   Error = "only patients can perform this action"
	ErrCallNotYetAvailable Error = "call is not yet available"
	ErrCallWindowExpired   Error = "call window has expired"
	ErrStatusChanged       Error = "appointment was changed by another request"
	ErrMeetingNotActive    Error = "meeting is not active"
	ErrPastDate            Error = "date is in the past"
	ErrInvalidStatusFilter Error = "unknown status"
	ErrInvalidDateFilter   Error = "only today is supported"
	ErrInvalidBody         Error = "must be a valid JSON object"
)

func (e Error) Error() string {
	return string(e)
}
