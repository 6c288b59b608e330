// Package doctors contains handlers, services and models of the doctor directory.
package doctors

import (
	"clinic-booking/internal/apierrors"
	"clinic-booking/internal/database"
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Reader determines the methods available to read the doctor directory.
type Reader interface {

	// List returns the active doctors matching the given filter, ordered by name.
	List(ctx context.Context, filter Filter) ([]*Doctor, error)

	// Get returns the active doctor with the given ID.
	Get(ctx context.Context, did uuid.UUID) (*Doctor, error)
}

type Service interface {
	Reader
}

type defaultService struct {
	repository Repository
}

// NewService creates a new doctor directory service.
func NewService(dbConn database.Connection) Service {
	return &defaultService{repository: newRepository(dbConn)}
}

func (d defaultService) List(ctx context.Context, filter Filter) ([]*Doctor, error) {
	doctors, err := d.repository.ListActive(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("an unexpected error occurred: %w", err)
	}
	return doctors, nil
}

func (d defaultService) Get(ctx context.Context, did uuid.UUID) (*Doctor, error) {
	doctor, err := d.repository.FindActive(ctx, did)
	if err != nil {
		return nil, fmt.Errorf("an unexpected error occurred: %w", err)
	}
	if doctor == nil {
		return nil, apierrors.NotFound(string(ErrDoctorNotFound))
	}
	return doctor, nil
}
