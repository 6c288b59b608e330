package session

type Error string

const (
	ErrPatientAccountNotFound Error = "no patient account found with this email"
	ErrDoctorAccountNotFound  Error = "no doctor account found with this email"
	ErrPatientProfileNotFound Error = "patient profile not found"
	ErrDoctorProfileNotFound  Error = "doctor profile not found"
)

func (e Error) Error() string {
	return string(e)
}

// UnauthorizedError represents the errors returned if the user is not authorized.
type UnauthorizedError struct{}

func NewUnauthorizedError() *UnauthorizedError {
	return &UnauthorizedError{}
}

func (v UnauthorizedError) Error() string {
	return "not authorized"
}
