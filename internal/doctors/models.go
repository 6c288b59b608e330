package doctors

import (
	"github.com/google/uuid"
)

type Doctor struct {
	DoctorID          uuid.UUID `json:"did" dbfield:"did"`
	UID               uuid.UUID `json:"uid" dbfield:"uid"`
	Name              string    `json:"name" dbfield:"name"`
	Email             string    `json:"email" dbfield:"email"`
	ProfileImageURL   *string   `json:"profile_image_url" dbfield:"profile_image_url"`
	Specialization    string    `json:"specialization" dbfield:"specialization"`
	Qualification     string    `json:"qualification" dbfield:"qualification"`
	YearsOfExperience *int32    `json:"years_of_experience" dbfield:"years_of_experience"`
	ConsultationFee   *float64  `json:"consultation_fee" dbfield:"consultation_fee"`
	ClinicName        *string   `json:"clinic_name" dbfield:"clinic_name"`
	City              *string   `json:"city" dbfield:"city"`
	Bio               *string   `json:"bio" dbfield:"bio"`
}

// Filter narrows the doctor directory.
type Filter struct {
	Specialization string
	City           string
}
