package repository

import (
	"context"

	"github.com/avarghese/clinicsync/internal/model"
)

// PatientRepository stores clinical records on the system of record.
type PatientRepository interface {
	// Upsert inserts or replaces a record by its client-assigned identifier.
	Upsert(ctx context.Context, p model.PatientRecord) (model.PatientRecord, error)
	// List returns all patient records.
	List(ctx context.Context) ([]model.PatientRecord, error)
	// Get returns a single record or errs.ErrNotFound.
	Get(ctx context.Context, id string) (*model.PatientRecord, error)
	// Search matches query against MRN, mobile and patient name.
	Search(ctx context.Context, query string, limit int) ([]model.PatientRecord, error)
	// Delete removes a record; errs.ErrNotFound when absent.
	Delete(ctx context.Context, id string) error
	// MaxMRNSeq returns the highest MRN sequence already minted for a year.
	MaxMRNSeq(ctx context.Context, year int) (int, error)
}
