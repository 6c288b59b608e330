package calls

type Error string

const (
	ErrInvalidMeetingID  Error = "invalid meeting id"
	ErrMissingSecret     Error = "call provider secret is not configured"
	ErrInvalidCredential Error = "invalid call credential"
)

func (e Error) Error() string {
	return string(e)
}
