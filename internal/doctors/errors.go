package doctors

type Error string

const (
	ErrDoctorNotFound    Error = "doctor not found"
	ErrInvalidIdentifier Error = "invalid identifier"
)

func (e Error) Error() string {
	return string(e)
}
